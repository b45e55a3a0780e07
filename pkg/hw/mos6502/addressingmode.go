package mos6502

import "strings"

// Represents the operand shape of a 6502 instruction
type AddressingMode uint8

const (
	// Implied or accumulator, no operand bytes (op)
	AddressingMode_None AddressingMode = iota
	// op #$vv
	AddressingMode_Immediate
	// op $aa
	AddressingMode_ZeroPage
	// op $aa,X
	AddressingMode_ZeroPageX
	// op $aa,Y
	AddressingMode_ZeroPageY
	// op ($aa,X)
	AddressingMode_IndirectX
	// op ($aa),Y
	AddressingMode_IndirectY
	// Signed displacement from the address of the next instruction (op $aaaa in text)
	AddressingMode_Relative
	// op $aaaa
	AddressingMode_Absolute
	// op $aaaa,X
	AddressingMode_AbsoluteX
	// op $aaaa,Y
	AddressingMode_AbsoluteY
	// op ($aaaa)
	AddressingMode_Indirect

	// Total addressing modes
	TOTAL_ADDRESSING_MODES
)

var addressingModeSizes = [TOTAL_ADDRESSING_MODES]int{
	AddressingMode_None:      1,
	AddressingMode_Immediate: 2,
	AddressingMode_ZeroPage:  2,
	AddressingMode_ZeroPageX: 2,
	AddressingMode_ZeroPageY: 2,
	AddressingMode_IndirectX: 2,
	AddressingMode_IndirectY: 2,
	AddressingMode_Relative:  2,
	AddressingMode_Absolute:  3,
	AddressingMode_AbsoluteX: 3,
	AddressingMode_AbsoluteY: 3,
	AddressingMode_Indirect:  3,
}

// Returns the total size in bytes (opcode included) of an instruction using this addressing mode.
// Unknown modes are clamped to the size of an implied instruction.
func (m AddressingMode) Size() int {
	if m >= TOTAL_ADDRESSING_MODES {
		return 1
	}

	return addressingModeSizes[m]
}

// Number of operand bytes following the opcode
func (m AddressingMode) OperandSize() int {
	return m.Size() - 1
}

func (m AddressingMode) String() string {
	switch m {
	case AddressingMode_None:
		return "NONE"
	case AddressingMode_Immediate:
		return "IMMEDIATE"
	case AddressingMode_ZeroPage:
		return "ZERO_PAGE"
	case AddressingMode_ZeroPageX:
		return "ZERO_PAGE_X"
	case AddressingMode_ZeroPageY:
		return "ZERO_PAGE_Y"
	case AddressingMode_IndirectX:
		return "INDIRECT_X"
	case AddressingMode_IndirectY:
		return "INDIRECT_Y"
	case AddressingMode_Relative:
		return "RELATIVE"
	case AddressingMode_Absolute:
		return "ABSOLUTE"
	case AddressingMode_AbsoluteX:
		return "ABSOLUTE_X"
	case AddressingMode_AbsoluteY:
		return "ABSOLUTE_Y"
	case AddressingMode_Indirect:
		return "INDIRECT"
	}

	return "ERROR"
}

// Parses an addressing mode from its name, as returned by String()
func ParseAddressingMode(name string) (AddressingMode, error) {
	upper := strings.ToUpper(name)

	for m := AddressingMode_None; m < TOTAL_ADDRESSING_MODES; m++ {
		if m.String() == upper {
			return m, nil
		}
	}

	return 0, makeError(ErrInvalidAddressingMode, "'%v'", name)
}

// Returns true if the operand of this mode is a 16 bit address
func (m AddressingMode) IsWord() bool {
	return m.Size() == 3
}

// MarshalText implements encoding.TextMarshaler so tables can be dumped as yaml
func (m AddressingMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
