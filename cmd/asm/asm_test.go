package asm

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Manu343726/vicemon/pkg/hw/mos6502"
	"github.com/Manu343726/vicemon/pkg/hw/mos6502/codec"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func init() {
	color.NoColor = true
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	AsmCmd.SetOut(&out)
	AsmCmd.SetErr(&out)
	AsmCmd.SetIn(strings.NewReader(stdin))
	AsmCmd.SetArgs(args)

	err := AsmCmd.Execute()
	return out.String(), err
}

func TestAssembleLines(t *testing.T) {
	program, err := assembleLines([]string{"LDA #$01", "", "; comment", "bne $2200", "jmp ($0300)"}, 0x2200)
	require.NoError(t, err)
	require.Len(t, program, 3)

	assert.Equal(t, uint16(0x2200), program[0].address)
	assert.Equal(t, []byte{0xA9, 0x01}, program[0].Bytes())
	assert.Equal(t, uint16(0x2202), program[1].address)
	assert.Equal(t, []byte{0xD0, 0xFC}, program[1].Bytes())
	assert.Equal(t, "BNE $2200", program[1].text)
	assert.Equal(t, []byte{0x6C, 0x00, 0x03}, program[2].Bytes())

	_, err = assembleLines([]string{"NOP", "LDA"}, 0x1000)
	assert.ErrorContains(t, err, "line 2")

	_, err = assembleLines([]string{"BEQ $2290"}, 0x2200)
	assert.ErrorIs(t, err, codec.ErrBranchOutOfRange)
}

func TestAssembleCommand(t *testing.T) {
	out, err := run(t, "", "assemble", "--address", "0xC000", "LDA #$01", "STA $D020")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"$C000  A9 01     LDA #$01\n"+
		"$C002  8D 20 D0  STA $D020\n", out)

	out, err = run(t, "NOP\nRTS\n", "assemble", "--raw")
	require.NoError(t, err)
	assert.Equal(t, "EA 60\n", out)
	assembleRaw = false
}

func TestReadSource(t *testing.T) {
	data, address, err := readSource([]string{"A9", "01", "$60"}, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA9, 0x01, 0x60}, data)
	assert.Equal(t, uint16(0), address)

	data, _, err = readSource([]string{"0xA9 01,60"}, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xA9, 0x01, 0x60}, data)

	dir := t.TempDir()
	prg := filepath.Join(dir, "game.prg")
	require.NoError(t, os.WriteFile(prg, []byte{0x00, 0xC0, 0xEA, 0x60}, 0o644))

	data, address, err = readSource([]string{prg}, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEA, 0x60}, data)
	assert.Equal(t, uint16(0xC000), address)

	raw := filepath.Join(dir, "code.bin")
	require.NoError(t, os.WriteFile(raw, []byte{0xEA}, 0o644))

	data, address, err = readSource([]string{raw}, false)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xEA}, data)
	assert.Equal(t, uint16(0), address)

	_, _, err = readSource([]string{"not-hex"}, false)
	assert.Error(t, err)
}

func TestDisassembleCommand(t *testing.T) {
	labelFile := filepath.Join(t.TempDir(), "labels.vs")
	require.NoError(t, os.WriteFile(labelFile, []byte("al C:c000 .main\nal C:d020 .border\n"), 0o644))

	out, err := run(t, "", "disassemble", "--address", "$C000", "--labels", labelFile, "A9", "01", "8D", "20", "D0", "D0", "F9")
	require.NoError(t, err)
	assert.Equal(t, ""+
		"main:\n"+
		"  $C000  A9 01     LDA #$01\n"+
		"  $C002  8D 20 D0  STA border\n"+
		"  $C005  D0 F9     BNE main\n", out)

	disassembleLabels = ""
	disassembleAddress = ""
}

func TestSelectOpcodes(t *testing.T) {
	assert.Len(t, selectOpcodes(false, ""), 151)
	assert.Len(t, selectOpcodes(true, ""), 256)

	loads := selectOpcodes(false, "LD")
	for _, op := range loads {
		assert.True(t, strings.HasPrefix(op.Mnemonic, "LD"))
	}
	assert.Len(t, loads, 8+5+5)
}

func TestOpcodesCommandYAML(t *testing.T) {
	out, err := run(t, "", "opcodes", "--prefix", "JMP", "-o", "yaml")
	require.NoError(t, err)

	var decoded []struct {
		Code     int    `yaml:"code"`
		Mnemonic string `yaml:"mnemonic"`
		Mode     string `yaml:"mode"`
		Cycles   int    `yaml:"cycles"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &decoded))
	require.Len(t, decoded, 2)
	assert.Equal(t, 0x4C, decoded[0].Code)
	assert.Equal(t, mos6502.AddressingMode_Absolute.String(), decoded[0].Mode)
	assert.Equal(t, "INDIRECT", decoded[1].Mode)

	opcodesPrefix = ""
	opcodesOutput = "table"

	_, err = run(t, "", "opcodes", "-o", "xml")
	assert.Error(t, err)
	opcodesOutput = "table"
}
