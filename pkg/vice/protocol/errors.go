package protocol

import (
	"errors"

	"github.com/Manu343726/vicemon/pkg/utils"
)

var (
	// Wrapped by every *ResponseError
	ErrResponse        = errors.New("emulator reported an error")
	ErrShortBody       = errors.New("response body too short")
	ErrUnexpected      = errors.New("unexpected response kind")
	ErrPayloadSize     = errors.New("payload does not fit in a command")
	ErrInvalidFrame    = errors.New("invalid command frame")
	ErrUnknownRegister = errors.New("unknown register")
)

func makeError(err error, format string, args ...any) error {
	return utils.MakeError(err, format, args...)
}
