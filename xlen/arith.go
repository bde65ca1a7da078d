package xlen

// DivU performs unsigned division with the RISC-V-mandated sentinel for
// division by zero: quotient = all-ones, remainder = dividend.
func (w Width) DivU(a, b uint64) (quotient, remainder uint64) {
	a, b = w.Wrap(a), w.Wrap(b)
	if b == 0 {
		return w.Mask(), a
	}
	return w.Wrap(a / b), w.Wrap(a % b)
}

// RemU returns the remainder half of DivU.
func (w Width) RemU(a, b uint64) uint64 {
	_, r := w.DivU(a, b)
	return r
}

// DivS performs signed division with the RISC-V-mandated sentinels:
// division by zero yields quotient = -1 (all-ones), remainder = dividend;
// and INT_MIN / -1 yields quotient = INT_MIN, remainder = 0, avoiding the
// machine trap that a native signed divide would raise on overflow.
func (w Width) DivS(a, b uint64) (quotient, remainder uint64) {
	as, bs := w.Signed(a), w.Signed(b)
	if bs == 0 {
		return w.Mask(), w.Wrap(a)
	}
	min := w.minSigned()
	if as == min && bs == -1 {
		return w.Wrap(uint64(min)), 0
	}
	return w.FromSigned(as / bs), w.FromSigned(as % bs)
}

// RemS returns the remainder half of DivS.
func (w Width) RemS(a, b uint64) uint64 {
	_, r := w.DivS(a, b)
	return r
}

func (w Width) minSigned() int64 {
	if w == W64 {
		return -1 << 63
	}
	return -1 << 31
}

// Add performs wrapping addition at this width.
func (w Width) Add(a, b uint64) uint64 { return w.Wrap(a + b) }

// Sub performs wrapping subtraction at this width.
func (w Width) Sub(a, b uint64) uint64 { return w.Wrap(a - b) }

// LessSigned reports whether a < b when both are interpreted as w-bit
// two's-complement signed integers.
func (w Width) LessSigned(a, b uint64) bool {
	return w.Signed(a) < w.Signed(b)
}

// LessUnsigned reports whether a < b as w-bit unsigned integers.
func (w Width) LessUnsigned(a, b uint64) bool {
	return w.Wrap(a) < w.Wrap(b)
}

// Sra performs an arithmetic (sign-preserving) right shift by shamt bits,
// masked to this width's valid shift range.
func (w Width) Sra(a uint64, shamt uint64) uint64 {
	s := w.Signed(a)
	return w.FromSigned(s >> (shamt & w.ShiftMask()))
}

// Srl performs a logical right shift by shamt bits.
func (w Width) Srl(a uint64, shamt uint64) uint64 {
	return w.Wrap(w.Wrap(a) >> (shamt & w.ShiftMask()))
}

// Sll performs a logical left shift by shamt bits.
func (w Width) Sll(a uint64, shamt uint64) uint64 {
	return w.Wrap(a << (shamt & w.ShiftMask()))
}

// Mul32HiSigned computes the high 32 bits of a signed 32x32->64 multiply, used by the
// RV32 M-extension MULH family when embedded in an XLEN=64 host word is
// not applicable; RV64's MULH family uses Mul64Hi instead. Kept separate
// from the 64-bit helpers so each width's multiply-high semantics stay
// textually obvious at the call site in the ISA execute stage.
func Mul32HiSigned(a, b int32) int32 {
	return int32((int64(a) * int64(b)) >> 32)
}

// Mul32HiUnsigned computes the high 32 bits of an unsigned 32x32 multiply.
func Mul32HiUnsigned(a, b uint32) uint32 {
	return uint32((uint64(a) * uint64(b)) >> 32)
}

// Mul32HiSignedUnsigned computes the high 32 bits of a*b where a is signed
// and b is unsigned (RISC-V's MULHSU).
func Mul32HiSignedUnsigned(a int32, b uint32) int32 {
	return int32((int64(a) * int64(int64(b))) >> 32)
}

// Mul64HiSigned computes the high 64 bits of a signed 64x64 multiply.
func Mul64HiSigned(a, b int64) int64 {
	hi, _ := bitsMulSigned64(a, b)
	return int64(hi)
}

// Mul64HiUnsigned computes the high 64 bits of an unsigned 64x64 multiply.
func Mul64HiUnsigned(a, b uint64) uint64 {
	hi, _ := bitsMulUnsigned64(a, b)
	return hi
}

// Mul64HiSignedUnsigned computes the high 64 bits of a*b where a is signed
// and b is unsigned.
func Mul64HiSignedUnsigned(a int64, b uint64) int64 {
	neg := a < 0
	ua := uint64(a)
	if neg {
		ua = uint64(-a)
	}
	hi, lo := bitsMulUnsigned64(ua, b)
	if !neg {
		return int64(hi)
	}
	// Negate the 128-bit product (hi:lo) and return the high word.
	lo = ^lo + 1
	borrow := uint64(0)
	if lo == 0 {
		borrow = 1
	}
	hi = ^hi + borrow
	return int64(hi)
}
