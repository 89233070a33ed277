package format

import "math/bits"

// Alignment utilities shared by the allocator tiers. All alignments are powers
// of two; callers validate that with IsPow2 before using the other helpers.

// IsPow2 reports whether n is a positive power of two.
func IsPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// AlignUp returns n rounded up to the next multiple of a.
//
// Example:
//
//	AlignUp(1, 8)  = 8
//	AlignUp(8, 8)  = 8
//	AlignUp(9, 64) = 64
func AlignUp(n, a int) int {
	return (n + a - 1) &^ (a - 1)
}

// AlignDown returns n rounded down to a multiple of a.
func AlignDown(n, a int) int {
	return n &^ (a - 1)
}

// Log2 returns floor(log2(n)) for n > 0.
func Log2(n int) int {
	return bits.Len(uint(n)) - 1
}
