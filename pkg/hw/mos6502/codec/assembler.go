package codec

import (
	"strings"

	"github.com/Manu343726/vicemon/pkg/hw/mos6502"
)

// Result of assembling a single line. Len is zero when assembly failed.
type Assembled struct {
	OP  byte
	B0  byte
	B1  byte
	Len int
}

// Returns the Len encoded bytes of the instruction
func (a Assembled) Bytes() []byte {
	return []byte{a.OP, a.B0, a.B1}[:a.Len]
}

// Returns true if the line was assembled
func (a Assembled) Ok() bool {
	return a.Len > 0
}

// Copies the encoded bytes into dest and returns the number of bytes written.
// Nothing is written if dest is too small to hold the whole instruction.
func (a Assembled) ToDest(dest []byte) int {
	if len(dest) < a.Len {
		return 0
	}

	return copy(dest, a.Bytes())
}

// Assembles one line of 6502 assembly.
//
// next is the address of the instruction following the one being assembled,
// which is the base relative branches are computed from. Branch targets written
// as a 16 bit address are converted into a signed displacement against it; a
// target written as a single byte is taken as the raw displacement.
//
// On failure the returned value has Len 0 and the error wraps one of
// ErrInvalidInstruction, ErrInvalidOperand, ErrUnknownOpCode or ErrBranchOutOfRange.
func Assemble(line string, next uint16) (Assembled, error) {
	line = strings.TrimSpace(line)

	if len(line) < 3 {
		return Assembled{}, makeError(ErrInvalidInstruction, "'%v'", line)
	}

	mnemonic := line[:3]
	rest := line[3:]

	if rest != "" && rest[0] != ' ' && rest[0] != '\t' {
		return Assembled{}, makeError(ErrInvalidInstruction, "'%v'", line)
	}

	operand, err := parseOperand(strings.TrimSpace(rest))
	if err != nil {
		return Assembled{}, makeError(err, "'%v'", line)
	}

	if op, err := mos6502.Find(mnemonic, operand.mode); err == nil {
		return encode(op, operand.value), nil
	} else if !mos6502.IsMnemonic(mnemonic) {
		return Assembled{}, makeError(ErrInvalidInstruction, "unknown mnemonic '%v'", mnemonic)
	}

	if isBranch(mnemonic) {
		return assembleBranch(mnemonic, operand, next)
	}

	// Zero page operands promote to absolute for instructions with no zero page form (JSR $12)
	if promoted, ok := zeroPageToAbsolute[operand.mode]; ok {
		if op, err := mos6502.Find(mnemonic, promoted); err == nil {
			return encode(op, operand.value), nil
		}
	}

	return Assembled{}, makeError(ErrUnknownOpCode, "%v %v", strings.ToUpper(mnemonic), operand.mode)
}

// Assembles a line located at address pc. Relative branches are computed from pc+2.
func AssembleAt(line string, pc uint16) (Assembled, error) {
	return Assemble(line, pc+2)
}

// Computes the signed 8 bit displacement from next to target
func AbsoluteToRelative(next, target uint16) (byte, error) {
	displacement := int16(target - next)

	if displacement < -128 || displacement > 127 {
		return 0, makeError(ErrBranchOutOfRange, "$%04X is %d bytes away from $%04X", target, displacement, next)
	}

	return byte(int8(displacement)), nil
}

var zeroPageToAbsolute = map[mos6502.AddressingMode]mos6502.AddressingMode{
	mos6502.AddressingMode_ZeroPage:  mos6502.AddressingMode_Absolute,
	mos6502.AddressingMode_ZeroPageX: mos6502.AddressingMode_AbsoluteX,
	mos6502.AddressingMode_ZeroPageY: mos6502.AddressingMode_AbsoluteY,
}

func isBranch(mnemonic string) bool {
	return mnemonic[0] == 'B' || mnemonic[0] == 'b'
}

func assembleBranch(mnemonic string, arg operand, next uint16) (Assembled, error) {
	op, err := mos6502.Find(mnemonic, mos6502.AddressingMode_Relative)
	if err != nil {
		return Assembled{}, makeError(ErrUnknownOpCode, "%v %v", strings.ToUpper(mnemonic), arg.mode)
	}

	switch arg.mode {
	case mos6502.AddressingMode_ZeroPage:
		return encode(op, arg.value), nil
	case mos6502.AddressingMode_Absolute:
		displacement, err := AbsoluteToRelative(next, arg.value)
		if err != nil {
			return Assembled{}, err
		}

		return encode(op, uint16(displacement)), nil
	}

	return Assembled{}, makeError(ErrUnknownOpCode, "%v %v", op.Mnemonic, arg.mode)
}

func encode(op *mos6502.OpCode, value uint16) Assembled {
	result := Assembled{OP: op.Code, Len: op.Size()}

	if result.Len > 1 {
		result.B0 = byte(value)
	}
	if result.Len > 2 {
		result.B1 = byte(value >> 8)
	}

	return result
}

type operand struct {
	mode  mos6502.AddressingMode
	value uint16
}

// Classifies an operand into its addressing mode by scanning character classes:
//
//	#$vv   $aa   $aa,X   $aa,Y   ($aa,X)   ($aa),Y   $aaaa   $aaaa,X   $aaaa,Y   ($aaaa)
//
// The '$' prefix is optional and index registers are case insensitive.
func parseOperand(text string) (operand, error) {
	s := scanner{text: text}

	if s.done() {
		return operand{mode: mos6502.AddressingMode_None}, nil
	}

	var result operand

	switch {
	case s.accept('#'):
		value, ok := s.hexByte(true)
		if !ok {
			return result, makeError(ErrInvalidOperand, "'%v'", text)
		}

		result = operand{mos6502.AddressingMode_Immediate, uint16(value)}

	case s.accept('('):
		first, ok := s.hexByte(true)
		if !ok {
			return result, makeError(ErrInvalidOperand, "'%v'", text)
		}

		switch {
		case s.acceptIndex('X') && s.accept(')'):
			result = operand{mos6502.AddressingMode_IndirectX, uint16(first)}
		case s.accept(')'):
			if s.acceptIndex('Y') {
				result = operand{mos6502.AddressingMode_IndirectY, uint16(first)}
			} else if s.done() {
				// ($aa) is only valid as ($aaaa)
				return result, makeError(ErrInvalidOperand, "'%v'", text)
			}
		default:
			second, ok := s.hexByte(false)
			if !ok || !s.accept(')') {
				return result, makeError(ErrInvalidOperand, "'%v'", text)
			}

			result = operand{mos6502.AddressingMode_Indirect, uint16(first)<<8 | uint16(second)}
		}

	default:
		value, ok := s.hexByte(true)
		if !ok {
			return result, makeError(ErrInvalidOperand, "'%v'", text)
		}

		result = operand{mos6502.AddressingMode_ZeroPage, uint16(value)}

		if lo, ok := s.hexByte(false); ok {
			result = operand{mos6502.AddressingMode_Absolute, uint16(value)<<8 | uint16(lo)}
		}

		switch {
		case s.acceptIndex('X'):
			result.mode = indexed(result.mode, 'X')
		case s.acceptIndex('Y'):
			result.mode = indexed(result.mode, 'Y')
		}
	}

	if !s.done() {
		return operand{}, makeError(ErrInvalidOperand, "unexpected '%v' in '%v'", s.text[s.pos:], text)
	}

	return result, nil
}

func indexed(mode mos6502.AddressingMode, register byte) mos6502.AddressingMode {
	switch {
	case mode == mos6502.AddressingMode_ZeroPage && register == 'X':
		return mos6502.AddressingMode_ZeroPageX
	case mode == mos6502.AddressingMode_ZeroPage && register == 'Y':
		return mos6502.AddressingMode_ZeroPageY
	case mode == mos6502.AddressingMode_Absolute && register == 'X':
		return mos6502.AddressingMode_AbsoluteX
	default:
		return mos6502.AddressingMode_AbsoluteY
	}
}

type scanner struct {
	text string
	pos  int
}

func (s *scanner) done() bool {
	return s.pos >= len(s.text)
}

func (s *scanner) accept(c byte) bool {
	if !s.done() && s.text[s.pos] == c {
		s.pos++
		return true
	}

	return false
}

// Accepts ",X" or ",Y" (any case)
func (s *scanner) acceptIndex(register byte) bool {
	if s.pos+1 < len(s.text) && s.text[s.pos] == ',' && upper(s.text[s.pos+1]) == register {
		s.pos += 2
		return true
	}

	return false
}

// Reads exactly two hex digits, optionally preceded by '$'
func (s *scanner) hexByte(allowPrefix bool) (byte, bool) {
	start := s.pos

	if allowPrefix {
		s.accept('$')
	}

	if s.pos+1 >= len(s.text) {
		s.pos = start
		return 0, false
	}

	hi, okHi := hexDigit(s.text[s.pos])
	lo, okLo := hexDigit(s.text[s.pos+1])

	if !okHi || !okLo {
		s.pos = start
		return 0, false
	}

	s.pos += 2
	return hi<<4 | lo, true
}

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}

	return c
}

func hexDigit(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	}

	return 0, false
}
