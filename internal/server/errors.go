package server

import "errors"

var (
	ErrServerAlreadyRunning = errors.New("server is already running")
	ErrServerNotRunning     = errors.New("server is not running")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrInvalidMessage       = errors.New("invalid message")
	ErrRateLimited          = errors.New("rate limit exceeded")
)
