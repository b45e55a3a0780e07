package codec

import (
	"errors"

	"github.com/Manu343726/vicemon/pkg/utils"
)

var (
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrInvalidOperand     = errors.New("invalid operand")
	ErrUnknownOpCode      = errors.New("no opcode matches instruction")
	ErrBranchOutOfRange   = errors.New("branch target out of range")
	ErrTextCapacity       = errors.New("disassembly text capacity exhausted")
)

func makeError(err error, format string, args ...any) error {
	return utils.MakeError(err, format, args...)
}
