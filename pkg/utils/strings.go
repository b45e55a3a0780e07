package utils

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/exp/constraints"
)

// Formats an unsigned value as $-prefixed uppercase hex, zero padded to the width of its type
func FormatHex[T constraints.Unsigned](value T) string {
	return fmt.Sprintf("$%0*X", HexDigits[T](), uint64(value))
}

// Parses an address or byte value written as $hex, 0xhex or plain hex
func ParseHex[T constraints.Unsigned](text string) (T, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "$")

	if len(text) > 2 && (text[:2] == "0x" || text[:2] == "0X") {
		text = text[2:]
	}

	var zero T
	value, err := strconv.ParseUint(text, 16, Sizeof[T]()*BitsPerByte)
	if err != nil {
		return zero, err
	}

	return T(value), nil
}

// Formats bytes as space separated uppercase hex pairs
func FormatBytes(data []byte) string {
	return FormatSlice(Map(data, func(b byte) string { return fmt.Sprintf("%02X", b) }), " ")
}

// Returns an string containing all formatted sequence items separated by a given separator
func FormatSlice[T any](input []T, separator string) string {
	var builder strings.Builder

	for i, value := range input {
		builder.WriteString(fmt.Sprint(value))

		if i < len(input)-1 {
			builder.WriteString(separator)
		}
	}

	return builder.String()
}
