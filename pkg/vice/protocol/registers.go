package protocol

import (
	"fmt"
	"strings"

	"github.com/Manu343726/vicemon/pkg/utils"
)

// Register identifier used by REGISTERS_GET and REGISTERS_SET
type RegisterID uint8

const (
	Register_A           RegisterID = 0x00
	Register_X           RegisterID = 0x01
	Register_Y           RegisterID = 0x02
	Register_PC          RegisterID = 0x03
	Register_SP          RegisterID = 0x04
	Register_Flags       RegisterID = 0x05
	Register_RasterLine  RegisterID = 0x35
	Register_RasterCycle RegisterID = 0x36
	// Processor port data direction register ($00)
	Register_Port0 RegisterID = 0x37
	// Processor port data register ($01)
	Register_Port1 RegisterID = 0x38
)

var registerNames = map[RegisterID]string{
	Register_A:           "A",
	Register_X:           "X",
	Register_Y:           "Y",
	Register_PC:          "PC",
	Register_SP:          "SP",
	Register_Flags:       "FL",
	Register_RasterLine:  "LIN",
	Register_RasterCycle: "CYC",
	Register_Port0:       "00",
	Register_Port1:       "01",
}

var registerIDs = utils.InvertedMap(registerNames)

// Registers in display order
var RegisterOrder = []RegisterID{
	Register_PC, Register_A, Register_X, Register_Y, Register_SP, Register_Flags,
	Register_Port0, Register_Port1, Register_RasterLine, Register_RasterCycle,
}

func (r RegisterID) String() string {
	if name, ok := registerNames[r]; ok {
		return name
	}

	return fmt.Sprintf("R%02X", uint8(r))
}

// Parses a register name as returned by String(), case insensitive
func ParseRegisterID(name string) (RegisterID, error) {
	if id, ok := registerIDs[strings.ToUpper(name)]; ok {
		return id, nil
	}

	return 0, makeError(ErrUnknownRegister, "'%v'", name)
}
