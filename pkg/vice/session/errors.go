package session

import (
	"errors"

	"github.com/Manu343726/vicemon/pkg/utils"
)

var (
	ErrUncorrelated       = errors.New("command has no request id")
	ErrUnsupportedVersion = errors.New("unsupported emulator version")
	ErrInvalidRange       = errors.New("invalid memory range")
)

func makeError(err error, format string, args ...any) error {
	return utils.MakeError(err, format, args...)
}
