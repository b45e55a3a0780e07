package codec

import (
	"strings"
	"testing"

	"github.com/Manu343726/vicemon/pkg/hw/mos6502"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var basicRoutine = []byte{
	0xA0, 0x02,
	0xB1, 0x64,
	0xC5, 0x34,
	0x90, 0x17,
	0xD0, 0x07,
	0x88,
	0xB1, 0x64,
	0xC5, 0x33,
	0x90, 0x0E,
	0xA4, 0x65,
	0xC4, 0x2E,
	0x90, 0x08,
	0xD0, 0x0D,
	0xA5, 0x64,
	0xC5, 0x2D,
	0xB0, 0x07,
	0xA5, 0x64,
	0xA4, 0x65,
	0x4C, 0x68, 0xAA,
	0xA0, 0x00,
	0xB1, 0x64,
	0x20, 0x75, 0xB4,
	0xA5, 0x50,
	0xA4, 0x51,
	0x85, 0x6F,
	0x84, 0x70,
	0x20, 0x7A, 0xB6,
}

const basicRoutineText = `LDY #$02
LDA ($64),Y
CMP $34
BCC $AA4B
BNE $AA3D
DEY
LDA ($64),Y
CMP $33
BCC $AA4B
LDY $65
CPY $2E
BCC $AA4B
BNE $AA52
LDA $64
CMP $2D
BCS $AA52
LDA $64
LDY $65
JMP $AA68
LDY #$00
LDA ($64),Y
JSR $B475
LDA $50
LDY $51
STA $6F
STY $70
JSR $B67A`

const basicRoutineBytes = `A0 02
B1 64
C5 34
90 17
D0 07
88
B1 64
C5 33
90 0E
A4 65
C4 2E
90 08
D0 0D
A5 64
C5 2D
B0 07
A5 64
A4 65
4C 68 AA
A0 00
B1 64
20 75 B4
A5 50
A4 51
85 6F
84 70
20 7A B6`

func TestDisassemble(t *testing.T) {
	out, err := Disassemble(Input{Source: basicRoutine, Address: 0xAA2C, Lines: 27})

	require.NoError(t, err)
	assert.Equal(t, basicRoutineText, out.Text)
	assert.Equal(t, basicRoutineBytes, out.Bytes)
	assert.True(t, out.Complete)
	assert.Equal(t, uint16(0xAA2C+len(basicRoutine)), out.EndAddress)

	require.Len(t, out.Lines, 27)
	require.Len(t, out.OpCodes, 27)

	expectedAddresses := []uint16{
		0xAA2C, 0xAA2E, 0xAA30, 0xAA32, 0xAA34, 0xAA36, 0xAA37, 0xAA39, 0xAA3B,
		0xAA3D, 0xAA3F, 0xAA41, 0xAA43, 0xAA45, 0xAA47, 0xAA49, 0xAA4B, 0xAA4D,
		0xAA4F, 0xAA52, 0xAA54, 0xAA56, 0xAA59, 0xAA5B, 0xAA5D, 0xAA5F, 0xAA61,
	}

	textLines := strings.Split(basicRoutineText, "\n")

	for i, line := range out.Lines {
		assert.Equal(t, expectedAddresses[i], line.Address)
		assert.Equal(t, textLines[i], line.Text)
		assert.Equal(t, line.OpCode, out.OpCodes[i])
		assert.Equal(t, line.OpCode.Code, line.Bytes[0])
	}
}

func TestDisassemble_PadsOpCodesWhenSourceRunsOut(t *testing.T) {
	out, err := Disassemble(Input{Source: basicRoutine[:5], Address: 0xAA2C, Lines: 4})

	require.NoError(t, err)
	assert.Equal(t, "LDY #$02\nLDA ($64),Y", out.Text)
	assert.Equal(t, "A0 02\nB1 64", out.Bytes)
	assert.False(t, out.Complete)
	assert.Equal(t, uint16(0xAA30), out.EndAddress)

	require.Len(t, out.OpCodes, 4)
	assert.Equal(t, byte(0xA0), out.OpCodes[0].Code)
	assert.Equal(t, byte(0xB1), out.OpCodes[1].Code)
	assert.Same(t, mos6502.Bad(), out.OpCodes[2])
	assert.Same(t, mos6502.Bad(), out.OpCodes[3])
}

func TestDisassemble_StopsWhenTextCapacityIsExhausted(t *testing.T) {
	out, err := Disassemble(Input{Source: basicRoutine, Address: 0xAA2C, Lines: 27, MaxTextLen: 25})

	assert.ErrorIs(t, err, ErrTextCapacity)
	assert.False(t, out.Complete)
	assert.Equal(t, "LDY #$02\nLDA ($64),Y", out.Text)
	assert.Equal(t, uint16(0xAA30), out.EndAddress)
	assert.Len(t, out.Lines, 2)
	assert.Len(t, out.OpCodes, 27)
	assert.Same(t, mos6502.Bad(), out.OpCodes[26])
}

func TestDisassemble_Symbols(t *testing.T) {
	symbols := SymbolMap{
		0x64:   "PTR",
		0x02:   "TWO",
		0xAA4B: "less",
		0xB475: "STRSPA",
	}

	out, err := Disassemble(Input{Source: basicRoutine, Address: 0xAA2C, Lines: 4, Symbols: symbols})
	require.NoError(t, err)
	assert.Equal(t, "LDY #$02\nLDA (PTR),Y\nCMP $34\nBCC less", out.Text)

	out, err = Disassemble(Input{
		Source:  []byte{0x20, 0x75, 0xB4},
		Address: 0xAA56,
		Symbols: SymbolFunc(func(address uint16) (string, bool) { return symbols.FindLabel(address) }),
	})
	require.NoError(t, err)
	assert.Equal(t, "JSR STRSPA", out.Text)
}

func TestDisassemble_WholeSourceWhenNoLineLimit(t *testing.T) {
	out, err := Disassemble(Input{Source: []byte{0x6C, 0xFC, 0xFF, 0x02, 0xEA}, Address: 0x0800})

	require.NoError(t, err)
	assert.Equal(t, "JMP ($FFFC)\nBAD\nNOP", out.Text)
	assert.Equal(t, "6C FC FF\n02\nEA", out.Bytes)
	assert.True(t, out.Complete)
	assert.Equal(t, uint16(0x0805), out.EndAddress)
}

func TestDisassemble_MisalignedStart(t *testing.T) {
	out, err := Disassemble(Input{Source: basicRoutine[1:], Address: 0xAA2D, Lines: 2})

	require.NoError(t, err)
	assert.Equal(t, "BAD\nLDA ($64),Y", out.Text)
}
