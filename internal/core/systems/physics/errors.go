package physics

import "errors"

var ErrBodyNotFound = errors.New("body not found")
