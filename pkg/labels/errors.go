package labels

import "errors"

var (
	ErrInvalidAddress = errors.New("invalid label address")
	ErrMissingName    = errors.New("missing label name")
)
