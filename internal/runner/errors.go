package runner

import "errors"

var (
	ErrQueueFull      = errors.New("runner command queue is full")
	ErrAlreadyRunning = errors.New("runner is already running")
	ErrNilWorld       = errors.New("nil world")
)
