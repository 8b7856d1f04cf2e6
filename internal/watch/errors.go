package watch

import "errors"

var ErrAlreadyRunning = errors.New("watcher is already running")
