package static

import "errors"

var (
	ErrNotDirectory = errors.New("static: path is not a directory")
	ErrInvalidBase  = errors.New("static: base path must begin with '/'")
)
