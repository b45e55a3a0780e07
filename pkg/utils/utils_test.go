package utils

import (
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeError(t *testing.T) {
	base := errors.New("base")
	err := MakeError(base, "value %v at %v", 1, "here")

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "base: value 1 at here", err.Error())
}

func TestFormatHex(t *testing.T) {
	assert.Equal(t, "$0A", FormatHex(uint8(10)))
	assert.Equal(t, "$C000", FormatHex(uint16(0xC000)))
	assert.Equal(t, "$00000101", FormatHex(uint32(0x101)))
}

func TestParseHex(t *testing.T) {
	tests := []struct {
		text     string
		expected uint16
	}{
		{"$C000", 0xC000},
		{"0x2200", 0x2200},
		{"ff", 0xFF},
		{" 0X10 ", 0x10},
	}

	for _, test := range tests {
		value, err := ParseHex[uint16](test.text)
		require.NoError(t, err, test.text)
		assert.Equal(t, test.expected, value)
	}

	_, err := ParseHex[uint8]("100")
	assert.Error(t, err)

	_, err = ParseHex[uint16]("zz")
	assert.Error(t, err)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "A9 01 60", FormatBytes([]byte{0xA9, 0x01, 0x60}))
	assert.Equal(t, "", FormatBytes(nil))
}

func TestSortedKeysAndInvertedMap(t *testing.T) {
	input := map[string]int{"b": 2, "a": 1, "c": 3}

	assert.Equal(t, []string{"a", "b", "c"}, SortedKeys(input))
	assert.Equal(t, map[int]string{1: "a", 2: "b", 3: "c"}, InvertedMap(input))
}

func TestChunks(t *testing.T) {
	data := []byte{1, 2, 3, 4, 5}

	assert.Equal(t, [][]byte{{1, 2}, {3, 4}, {5}}, Chunks(data, 2))
	assert.Equal(t, [][]byte{{1, 2, 3, 4, 5}}, Chunks(data, 8))
	assert.Empty(t, Chunks([]byte{}, 4))
}

func TestBits(t *testing.T) {
	assert.Equal(t, 2, HexDigits[uint8]())
	assert.Equal(t, 4, HexDigits[uint16]())
	assert.True(t, Bit(uint8(0x80), 7))
	assert.False(t, Bit(uint8(0x80), 6))
}

func TestHighlightAssembly(t *testing.T) {
	previous := color.NoColor
	defer func() { color.NoColor = previous }()

	color.NoColor = false

	highlighted := HighlightAssembly("LDA #$01")
	assert.NotEqual(t, "LDA #$01", highlighted)
	assert.Contains(t, highlighted, "LDA")
	assert.Contains(t, highlighted, "#$01")

	assert.Equal(t, "", HighlightAssembly(""))

	color.NoColor = true
}
