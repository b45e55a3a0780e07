package mos6502

import (
	"fmt"
	"slices"
	"strings"
)

// Mnemonic used for byte values that do not decode to a documented instruction
const BadMnemonic = "BAD"

// Describes one of the 256 possible opcode bytes
type OpCode struct {
	// Byte value of the opcode
	Code byte `yaml:"code"`
	// Three letter uppercase mnemonic, BadMnemonic for undocumented opcodes
	Mnemonic string `yaml:"mnemonic"`
	// Operand addressing mode
	Mode AddressingMode `yaml:"mode"`
	// Base cycle cost, without page crossing or branch taken penalties
	Cycles int `yaml:"cycles"`
}

// Total size of the instruction in bytes, derived from its addressing mode
func (op *OpCode) Size() int {
	return op.Mode.Size()
}

// Returns true if the opcode is not a documented instruction
func (op *OpCode) IsBad() bool {
	return op.Mnemonic == BadMnemonic
}

// Returns true for the conditional branch family, which only supports relative addressing
func (op *OpCode) IsBranch() bool {
	return op.Mode == AddressingMode_Relative
}

func (op OpCode) String() string {
	return fmt.Sprintf("%02X %v %v", op.Code, op.Mnemonic, op.Mode)
}

var opCodes = [256]OpCode{
	0x00: {Mnemonic: "BRK", Mode: AddressingMode_None, Cycles: 7},
	0x01: {Mnemonic: "ORA", Mode: AddressingMode_IndirectX, Cycles: 6},
	0x05: {Mnemonic: "ORA", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x06: {Mnemonic: "ASL", Mode: AddressingMode_ZeroPage, Cycles: 5},
	0x08: {Mnemonic: "PHP", Mode: AddressingMode_None, Cycles: 3},
	0x09: {Mnemonic: "ORA", Mode: AddressingMode_Immediate, Cycles: 2},
	0x0A: {Mnemonic: "ASL", Mode: AddressingMode_None, Cycles: 2},
	0x0D: {Mnemonic: "ORA", Mode: AddressingMode_Absolute, Cycles: 4},
	0x0E: {Mnemonic: "ASL", Mode: AddressingMode_Absolute, Cycles: 6},
	0x10: {Mnemonic: "BPL", Mode: AddressingMode_Relative, Cycles: 3},
	0x11: {Mnemonic: "ORA", Mode: AddressingMode_IndirectY, Cycles: 5},
	0x15: {Mnemonic: "ORA", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0x16: {Mnemonic: "ASL", Mode: AddressingMode_ZeroPageX, Cycles: 6},
	0x18: {Mnemonic: "CLC", Mode: AddressingMode_None, Cycles: 2},
	0x19: {Mnemonic: "ORA", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0x1D: {Mnemonic: "ORA", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0x1E: {Mnemonic: "ASL", Mode: AddressingMode_AbsoluteX, Cycles: 7},
	0x20: {Mnemonic: "JSR", Mode: AddressingMode_Absolute, Cycles: 6},
	0x21: {Mnemonic: "AND", Mode: AddressingMode_IndirectX, Cycles: 6},
	0x24: {Mnemonic: "BIT", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x25: {Mnemonic: "AND", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x26: {Mnemonic: "ROL", Mode: AddressingMode_ZeroPage, Cycles: 5},
	0x28: {Mnemonic: "PLP", Mode: AddressingMode_None, Cycles: 4},
	0x29: {Mnemonic: "AND", Mode: AddressingMode_Immediate, Cycles: 2},
	0x2A: {Mnemonic: "ROL", Mode: AddressingMode_None, Cycles: 2},
	0x2C: {Mnemonic: "BIT", Mode: AddressingMode_Absolute, Cycles: 4},
	0x2D: {Mnemonic: "AND", Mode: AddressingMode_Absolute, Cycles: 4},
	0x2E: {Mnemonic: "ROL", Mode: AddressingMode_Absolute, Cycles: 6},
	0x30: {Mnemonic: "BMI", Mode: AddressingMode_Relative, Cycles: 3},
	0x31: {Mnemonic: "AND", Mode: AddressingMode_IndirectY, Cycles: 5},
	0x35: {Mnemonic: "AND", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0x36: {Mnemonic: "ROL", Mode: AddressingMode_ZeroPageX, Cycles: 6},
	0x38: {Mnemonic: "SEC", Mode: AddressingMode_None, Cycles: 2},
	0x39: {Mnemonic: "AND", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0x3D: {Mnemonic: "AND", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0x3E: {Mnemonic: "ROL", Mode: AddressingMode_AbsoluteX, Cycles: 7},
	0x40: {Mnemonic: "RTI", Mode: AddressingMode_None, Cycles: 6},
	0x41: {Mnemonic: "EOR", Mode: AddressingMode_IndirectX, Cycles: 6},
	0x45: {Mnemonic: "EOR", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x46: {Mnemonic: "LSR", Mode: AddressingMode_ZeroPage, Cycles: 5},
	0x48: {Mnemonic: "PHA", Mode: AddressingMode_None, Cycles: 3},
	0x49: {Mnemonic: "EOR", Mode: AddressingMode_Immediate, Cycles: 2},
	0x4A: {Mnemonic: "LSR", Mode: AddressingMode_None, Cycles: 2},
	0x4C: {Mnemonic: "JMP", Mode: AddressingMode_Absolute, Cycles: 3},
	0x4D: {Mnemonic: "EOR", Mode: AddressingMode_Absolute, Cycles: 4},
	0x4E: {Mnemonic: "LSR", Mode: AddressingMode_Absolute, Cycles: 6},
	0x50: {Mnemonic: "BVC", Mode: AddressingMode_Relative, Cycles: 3},
	0x51: {Mnemonic: "EOR", Mode: AddressingMode_IndirectY, Cycles: 5},
	0x55: {Mnemonic: "EOR", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0x56: {Mnemonic: "LSR", Mode: AddressingMode_ZeroPageX, Cycles: 6},
	0x58: {Mnemonic: "CLI", Mode: AddressingMode_None, Cycles: 2},
	0x59: {Mnemonic: "EOR", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0x5D: {Mnemonic: "EOR", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0x5E: {Mnemonic: "LSR", Mode: AddressingMode_AbsoluteX, Cycles: 7},
	0x60: {Mnemonic: "RTS", Mode: AddressingMode_None, Cycles: 6},
	0x61: {Mnemonic: "ADC", Mode: AddressingMode_IndirectX, Cycles: 6},
	0x65: {Mnemonic: "ADC", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x66: {Mnemonic: "ROR", Mode: AddressingMode_ZeroPage, Cycles: 5},
	0x68: {Mnemonic: "PLA", Mode: AddressingMode_None, Cycles: 4},
	0x69: {Mnemonic: "ADC", Mode: AddressingMode_Immediate, Cycles: 2},
	0x6A: {Mnemonic: "ROR", Mode: AddressingMode_None, Cycles: 2},
	0x6C: {Mnemonic: "JMP", Mode: AddressingMode_Indirect, Cycles: 5},
	0x6D: {Mnemonic: "ADC", Mode: AddressingMode_Absolute, Cycles: 4},
	0x6E: {Mnemonic: "ROR", Mode: AddressingMode_Absolute, Cycles: 6},
	0x70: {Mnemonic: "BVS", Mode: AddressingMode_Relative, Cycles: 3},
	0x71: {Mnemonic: "ADC", Mode: AddressingMode_IndirectY, Cycles: 5},
	0x75: {Mnemonic: "ADC", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0x76: {Mnemonic: "ROR", Mode: AddressingMode_ZeroPageX, Cycles: 6},
	0x78: {Mnemonic: "SEI", Mode: AddressingMode_None, Cycles: 2},
	0x79: {Mnemonic: "ADC", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0x7D: {Mnemonic: "ADC", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0x7E: {Mnemonic: "ROR", Mode: AddressingMode_AbsoluteX, Cycles: 7},
	0x81: {Mnemonic: "STA", Mode: AddressingMode_IndirectX, Cycles: 6},
	0x84: {Mnemonic: "STY", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x85: {Mnemonic: "STA", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x86: {Mnemonic: "STX", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0x88: {Mnemonic: "DEY", Mode: AddressingMode_None, Cycles: 2},
	0x8A: {Mnemonic: "TXA", Mode: AddressingMode_None, Cycles: 2},
	0x8C: {Mnemonic: "STY", Mode: AddressingMode_Absolute, Cycles: 4},
	0x8D: {Mnemonic: "STA", Mode: AddressingMode_Absolute, Cycles: 4},
	0x8E: {Mnemonic: "STX", Mode: AddressingMode_Absolute, Cycles: 4},
	0x90: {Mnemonic: "BCC", Mode: AddressingMode_Relative, Cycles: 3},
	0x91: {Mnemonic: "STA", Mode: AddressingMode_IndirectY, Cycles: 6},
	0x94: {Mnemonic: "STY", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0x95: {Mnemonic: "STA", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0x96: {Mnemonic: "STX", Mode: AddressingMode_ZeroPageY, Cycles: 4},
	0x98: {Mnemonic: "TYA", Mode: AddressingMode_None, Cycles: 2},
	0x99: {Mnemonic: "STA", Mode: AddressingMode_AbsoluteY, Cycles: 5},
	0x9A: {Mnemonic: "TXS", Mode: AddressingMode_None, Cycles: 2},
	0x9D: {Mnemonic: "STA", Mode: AddressingMode_AbsoluteX, Cycles: 5},
	0xA0: {Mnemonic: "LDY", Mode: AddressingMode_Immediate, Cycles: 2},
	0xA1: {Mnemonic: "LDA", Mode: AddressingMode_IndirectX, Cycles: 6},
	0xA2: {Mnemonic: "LDX", Mode: AddressingMode_Immediate, Cycles: 2},
	0xA4: {Mnemonic: "LDY", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xA5: {Mnemonic: "LDA", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xA6: {Mnemonic: "LDX", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xA8: {Mnemonic: "TAY", Mode: AddressingMode_None, Cycles: 2},
	0xA9: {Mnemonic: "LDA", Mode: AddressingMode_Immediate, Cycles: 2},
	0xAA: {Mnemonic: "TAX", Mode: AddressingMode_None, Cycles: 2},
	0xAC: {Mnemonic: "LDY", Mode: AddressingMode_Absolute, Cycles: 4},
	0xAD: {Mnemonic: "LDA", Mode: AddressingMode_Absolute, Cycles: 4},
	0xAE: {Mnemonic: "LDX", Mode: AddressingMode_Absolute, Cycles: 4},
	0xB0: {Mnemonic: "BCS", Mode: AddressingMode_Relative, Cycles: 3},
	0xB1: {Mnemonic: "LDA", Mode: AddressingMode_IndirectY, Cycles: 5},
	0xB4: {Mnemonic: "LDY", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0xB5: {Mnemonic: "LDA", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0xB6: {Mnemonic: "LDX", Mode: AddressingMode_ZeroPageY, Cycles: 4},
	0xB8: {Mnemonic: "CLV", Mode: AddressingMode_None, Cycles: 2},
	0xB9: {Mnemonic: "LDA", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0xBA: {Mnemonic: "TSX", Mode: AddressingMode_None, Cycles: 2},
	0xBC: {Mnemonic: "LDY", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0xBD: {Mnemonic: "LDA", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0xBE: {Mnemonic: "LDX", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0xC0: {Mnemonic: "CPY", Mode: AddressingMode_Immediate, Cycles: 2},
	0xC1: {Mnemonic: "CMP", Mode: AddressingMode_IndirectX, Cycles: 6},
	0xC4: {Mnemonic: "CPY", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xC5: {Mnemonic: "CMP", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xC6: {Mnemonic: "DEC", Mode: AddressingMode_ZeroPage, Cycles: 5},
	0xC8: {Mnemonic: "INY", Mode: AddressingMode_None, Cycles: 2},
	0xC9: {Mnemonic: "CMP", Mode: AddressingMode_Immediate, Cycles: 2},
	0xCA: {Mnemonic: "DEX", Mode: AddressingMode_None, Cycles: 2},
	0xCC: {Mnemonic: "CPY", Mode: AddressingMode_Absolute, Cycles: 4},
	0xCD: {Mnemonic: "CMP", Mode: AddressingMode_Absolute, Cycles: 4},
	0xCE: {Mnemonic: "DEC", Mode: AddressingMode_Absolute, Cycles: 6},
	0xD0: {Mnemonic: "BNE", Mode: AddressingMode_Relative, Cycles: 3},
	0xD1: {Mnemonic: "CMP", Mode: AddressingMode_IndirectY, Cycles: 5},
	0xD5: {Mnemonic: "CMP", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0xD6: {Mnemonic: "DEC", Mode: AddressingMode_ZeroPageX, Cycles: 6},
	0xD8: {Mnemonic: "CLD", Mode: AddressingMode_None, Cycles: 2},
	0xD9: {Mnemonic: "CMP", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0xDD: {Mnemonic: "CMP", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0xDE: {Mnemonic: "DEC", Mode: AddressingMode_AbsoluteX, Cycles: 7},
	0xE0: {Mnemonic: "CPX", Mode: AddressingMode_Immediate, Cycles: 2},
	0xE1: {Mnemonic: "SBC", Mode: AddressingMode_IndirectX, Cycles: 6},
	0xE4: {Mnemonic: "CPX", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xE5: {Mnemonic: "SBC", Mode: AddressingMode_ZeroPage, Cycles: 3},
	0xE6: {Mnemonic: "INC", Mode: AddressingMode_ZeroPage, Cycles: 5},
	0xE8: {Mnemonic: "INX", Mode: AddressingMode_None, Cycles: 2},
	0xE9: {Mnemonic: "SBC", Mode: AddressingMode_Immediate, Cycles: 2},
	0xEA: {Mnemonic: "NOP", Mode: AddressingMode_None, Cycles: 2},
	0xEC: {Mnemonic: "CPX", Mode: AddressingMode_Absolute, Cycles: 4},
	0xED: {Mnemonic: "SBC", Mode: AddressingMode_Absolute, Cycles: 4},
	0xEE: {Mnemonic: "INC", Mode: AddressingMode_Absolute, Cycles: 6},
	0xF0: {Mnemonic: "BEQ", Mode: AddressingMode_Relative, Cycles: 3},
	0xF1: {Mnemonic: "SBC", Mode: AddressingMode_IndirectY, Cycles: 5},
	0xF5: {Mnemonic: "SBC", Mode: AddressingMode_ZeroPageX, Cycles: 4},
	0xF6: {Mnemonic: "INC", Mode: AddressingMode_ZeroPageX, Cycles: 6},
	0xF8: {Mnemonic: "SED", Mode: AddressingMode_None, Cycles: 2},
	0xF9: {Mnemonic: "SBC", Mode: AddressingMode_AbsoluteY, Cycles: 4},
	0xFD: {Mnemonic: "SBC", Mode: AddressingMode_AbsoluteX, Cycles: 4},
	0xFE: {Mnemonic: "INC", Mode: AddressingMode_AbsoluteX, Cycles: 7},
}

var mnemonics []string

func init() {
	seen := make(map[string]map[AddressingMode]byte)

	for i := range opCodes {
		op := &opCodes[i]
		op.Code = byte(i)

		if op.Mnemonic == "" {
			op.Mnemonic = BadMnemonic
			op.Mode = AddressingMode_None
			op.Cycles = 2
			continue
		}

		modes, ok := seen[op.Mnemonic]
		if !ok {
			modes = make(map[AddressingMode]byte)
			seen[op.Mnemonic] = modes
			mnemonics = append(mnemonics, op.Mnemonic)
		}

		if other, duplicated := modes[op.Mode]; duplicated {
			panic(fmt.Sprintf("opcodes %02X and %02X share mnemonic %v and addressing mode %v", other, i, op.Mnemonic, op.Mode))
		}

		modes[op.Mode] = byte(i)
	}

	slices.Sort(mnemonics)
}

// Returns the descriptor of the given opcode byte. Every byte value has a descriptor.
func Get(code byte) *OpCode {
	return &opCodes[code]
}

// Returns the descriptor used for undocumented opcodes
func Bad() *OpCode {
	return &opCodes[0xFF]
}

// Returns all 256 opcode descriptors, indexed by byte value
func All() []OpCode {
	return slices.Clone(opCodes[:])
}

// Finds the opcode for a mnemonic and addressing mode. The mnemonic is matched
// case-insensitively and must be exactly three characters long.
func Find(mnemonic string, mode AddressingMode) (*OpCode, error) {
	if len(mnemonic) != 3 {
		return nil, makeError(ErrUnknownMnemonic, "'%v'", mnemonic)
	}

	upper := strings.ToUpper(mnemonic)

	if upper == BadMnemonic {
		return nil, makeError(ErrUnknownMnemonic, "'%v'", mnemonic)
	}

	for i := range opCodes {
		if opCodes[i].Mnemonic == upper && opCodes[i].Mode == mode {
			return &opCodes[i], nil
		}
	}

	return nil, makeError(ErrNoSuchOpCode, "%v %v", upper, mode)
}

// Returns the addressing modes supported by a mnemonic, in opcode order.
// Returns nil for unknown mnemonics.
func Modes(mnemonic string) []AddressingMode {
	upper := strings.ToUpper(mnemonic)

	if upper == BadMnemonic {
		return nil
	}

	var modes []AddressingMode

	for i := range opCodes {
		if opCodes[i].Mnemonic == upper {
			modes = append(modes, opCodes[i].Mode)
		}
	}

	return modes
}

// Returns true if the mnemonic names a documented instruction
func IsMnemonic(mnemonic string) bool {
	_, found := slices.BinarySearch(mnemonics, strings.ToUpper(mnemonic))
	return found
}

// Returns all documented mnemonics in alphabetical order
func Mnemonics() []string {
	return slices.Clone(mnemonics)
}

// Returns up to limit mnemonics starting with the given prefix, in alphabetical
// order. A limit lower or equal than zero means no limit.
func FindMatches(prefix string, limit int) []string {
	prefix = strings.ToUpper(prefix)
	start, _ := slices.BinarySearch(mnemonics, prefix)

	var matches []string

	for _, m := range mnemonics[start:] {
		if !strings.HasPrefix(m, prefix) {
			break
		}

		matches = append(matches, m)

		if limit > 0 && len(matches) == limit {
			break
		}
	}

	return matches
}
