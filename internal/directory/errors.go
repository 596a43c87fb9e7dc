package directory

import "errors"

var (
	ErrNotFound     = errors.New("directory: not found")
	ErrConflict     = errors.New("directory: already exists")
	ErrInvalidInput = errors.New("directory: invalid input")
	ErrInactive     = errors.New("directory: account deactivated")
)
