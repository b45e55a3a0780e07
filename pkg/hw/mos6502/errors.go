package mos6502

import (
	"errors"

	"github.com/Manu343726/vicemon/pkg/utils"
)

var (
	ErrInvalidAddressingMode = errors.New("invalid addressing mode")
	ErrUnknownMnemonic       = errors.New("unknown mnemonic")
	ErrNoSuchOpCode          = errors.New("no opcode for mnemonic and addressing mode")
)

func makeError(err error, format string, args ...any) error {
	return utils.MakeError(err, format, args...)
}
