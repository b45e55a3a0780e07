package mos6502

import (
	"strings"

	"github.com/Manu343726/vicemon/pkg/utils"
)

// Processor status register (P)
type Status uint8

const (
	Status_Carry     Status = 1 << 0
	Status_Zero      Status = 1 << 1
	Status_Interrupt Status = 1 << 2
	Status_Decimal   Status = 1 << 3
	Status_Break     Status = 1 << 4
	Status_Unused    Status = 1 << 5
	Status_Overflow  Status = 1 << 6
	Status_Negative  Status = 1 << 7
)

// Returns true if all the given flags are set
func (s Status) Has(flags Status) bool {
	return s&flags == flags
}

// Formats the status register as NV-BDIZC, with '.' for clear flags
func (s Status) String() string {
	const names = "NV-BDIZC"

	var builder strings.Builder

	for i := 0; i < 8; i++ {
		switch {
		case names[i] == '-':
			builder.WriteByte('-')
		case utils.Bit(s, 7-i):
			builder.WriteByte(names[i])
		default:
			builder.WriteByte('.')
		}
	}

	return builder.String()
}
