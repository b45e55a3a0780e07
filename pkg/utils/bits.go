package utils

import (
	"unsafe"

	"golang.org/x/exp/constraints"
)

const BitsPerByte = 8

// Returns the size in bytes of values of a type
func Sizeof[T any]() int {
	var val T
	return int(unsafe.Sizeof(val))
}

// Number of hex digits needed to print any value of an unsigned type
func HexDigits[T constraints.Unsigned]() int {
	return Sizeof[T]() * 2
}

// Returns true if bit n of value is set
func Bit[T constraints.Unsigned](value T, n int) bool {
	return value&(T(1)<<n) != 0
}
