// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used for FFT sizes and
ring buffer capacities. All functions are allocation free and safe to call
from the audio goroutine.

	// Ring capacity that can be indexed with a mask
	capacity := bitint.NextPowerOfTwo(requested)
	idx := pos & bitint.Mask(capacity)

	// Verify FFT window size is valid
	isValid := bitint.IsPowerOfTwo(windowSize)
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Subtracting one
// first keeps exact powers of two unchanged. Non-positive sizes yield 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2. A power of two has exactly one
// bit set, so clearing the lowest set bit leaves zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Mask returns the index mask for a power-of-two capacity, or 0 if capacity
// is not a power of two.
func Mask(capacity int) int {
	if !IsPowerOfTwo(capacity) {
		return 0
	}
	return capacity - 1
}
