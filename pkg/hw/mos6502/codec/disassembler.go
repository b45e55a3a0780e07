package codec

import (
	"fmt"
	"strings"

	"github.com/Manu343726/vicemon/pkg/hw/mos6502"
	"github.com/Manu343726/vicemon/pkg/utils"
)

// Disassembly request
type Input struct {
	// Machine code to disassemble
	Source []byte
	// Address of Source[0]
	Address uint16
	// Maximum number of lines to produce. Zero or less disassembles the whole source.
	Lines int
	// Maximum length of the disassembly text, newlines included. Zero or less means no limit.
	MaxTextLen int
	// Optional label lookup for operands. Nil disables label substitution.
	Symbols SymbolTable
}

// A single disassembled instruction
type Line struct {
	Address uint16
	OpCode  *mos6502.OpCode
	// Raw instruction bytes, opcode included
	Bytes []byte
	Text  string
}

// Disassembly result
type Output struct {
	// Instruction text, one line per instruction, without trailing newline
	Text string
	// Raw bytes of each line as space separated hex pairs, aligned with Text
	Bytes string
	Lines []Line
	// Opcode of each requested line. Lines that could not be produced are filled with mos6502.Bad()
	OpCodes []*mos6502.OpCode
	// Address of the first byte not disassembled
	EndAddress uint16
	// True if all requested lines were produced
	Complete bool
}

// Disassembles up to in.Lines instructions from in.Source.
//
// Disassembly stops early when the source runs out (a trailing partial
// instruction is left undisassembled) or when the next line would not fit in
// in.MaxTextLen. The second case also returns an error wrapping
// ErrTextCapacity together with the lines produced so far.
func Disassemble(in Input) (Output, error) {
	symbols := in.Symbols
	if symbols == nil {
		symbols = noSymbols{}
	}

	var (
		out      Output
		text     strings.Builder
		bytes    strings.Builder
		err      error
		position int
		address  = in.Address
	)

	for in.Lines <= 0 || len(out.Lines) < in.Lines {
		if position >= len(in.Source) {
			break
		}

		op := mos6502.Get(in.Source[position])
		size := op.Size()

		if position+size > len(in.Source) {
			break
		}

		raw := in.Source[position : position+size]
		line := Line{
			Address: address,
			OpCode:  op,
			Bytes:   raw,
			Text:    formatInstruction(op, raw, address, symbols),
		}

		lineLen := len(line.Text)
		if text.Len() > 0 {
			lineLen++
		}

		if in.MaxTextLen > 0 && text.Len()+lineLen > in.MaxTextLen {
			err = makeError(ErrTextCapacity, "stopped at $%04X after %d lines", address, len(out.Lines))
			break
		}

		if text.Len() > 0 {
			text.WriteByte('\n')
			bytes.WriteByte('\n')
		}

		text.WriteString(line.Text)
		bytes.WriteString(utils.FormatBytes(raw))

		out.Lines = append(out.Lines, line)
		out.OpCodes = append(out.OpCodes, op)
		position += size
		address += uint16(size)
	}

	for len(out.OpCodes) < in.Lines {
		out.OpCodes = append(out.OpCodes, mos6502.Bad())
	}

	out.Text = text.String()
	out.Bytes = bytes.String()
	out.EndAddress = address
	out.Complete = err == nil && (in.Lines <= 0 || len(out.Lines) == in.Lines)

	return out, err
}

// Formats a single instruction. raw must hold the full instruction.
func formatInstruction(op *mos6502.OpCode, raw []byte, address uint16, symbols SymbolTable) string {
	var value uint16

	switch len(raw) {
	case 2:
		value = uint16(raw[1])
	case 3:
		value = uint16(raw[1]) | uint16(raw[2])<<8
	}

	operand := func(hexDigits int) string {
		if label, ok := symbols.FindLabel(value); ok {
			return label
		}

		return fmt.Sprintf("$%0*X", hexDigits, value)
	}

	switch op.Mode {
	case mos6502.AddressingMode_None:
		return op.Mnemonic
	case mos6502.AddressingMode_Immediate:
		return fmt.Sprintf("%v #$%02X", op.Mnemonic, value)
	case mos6502.AddressingMode_ZeroPage:
		return fmt.Sprintf("%v %v", op.Mnemonic, operand(2))
	case mos6502.AddressingMode_ZeroPageX:
		return fmt.Sprintf("%v %v,X", op.Mnemonic, operand(2))
	case mos6502.AddressingMode_ZeroPageY:
		return fmt.Sprintf("%v %v,Y", op.Mnemonic, operand(2))
	case mos6502.AddressingMode_IndirectX:
		return fmt.Sprintf("%v (%v,X)", op.Mnemonic, operand(2))
	case mos6502.AddressingMode_IndirectY:
		return fmt.Sprintf("%v (%v),Y", op.Mnemonic, operand(2))
	case mos6502.AddressingMode_Relative:
		value = address + 2 + uint16(int8(raw[1]))
		return fmt.Sprintf("%v %v", op.Mnemonic, operand(4))
	case mos6502.AddressingMode_Absolute:
		return fmt.Sprintf("%v %v", op.Mnemonic, operand(4))
	case mos6502.AddressingMode_AbsoluteX:
		return fmt.Sprintf("%v %v,X", op.Mnemonic, operand(4))
	case mos6502.AddressingMode_AbsoluteY:
		return fmt.Sprintf("%v %v,Y", op.Mnemonic, operand(4))
	case mos6502.AddressingMode_Indirect:
		return fmt.Sprintf("%v (%v)", op.Mnemonic, operand(4))
	}

	return op.Mnemonic
}
