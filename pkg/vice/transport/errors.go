package transport

import (
	"errors"

	"github.com/Manu343726/vicemon/pkg/utils"
)

var (
	ErrClosed         = errors.New("transport closed")
	ErrAlreadyStarted = errors.New("transport already started")
	ErrNotStarted     = errors.New("transport not started")
	errDropped        = errors.New("connection dropped on request")
)

func makeError(err error, format string, args ...any) error {
	return utils.MakeError(err, format, args...)
}
