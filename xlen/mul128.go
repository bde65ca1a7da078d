package xlen

import "math/bits"

// bitsMulUnsigned64 returns the 128-bit product of a*b as (hi, lo).
func bitsMulUnsigned64(a, b uint64) (hi, lo uint64) {
	return bits.Mul64(a, b)
}

// bitsMulSigned64 returns the 128-bit two's-complement product of a*b as
// (hi, lo), following the standard sign-correction over an unsigned
// 128-bit multiply (the same trick math/bits documents for Mul64).
func bitsMulSigned64(a, b int64) (hi, lo uint64) {
	hi, lo = bits.Mul64(uint64(a), uint64(b))
	if a < 0 {
		hi -= uint64(b)
	}
	if b < 0 {
		hi -= uint64(a)
	}
	return hi, lo
}
