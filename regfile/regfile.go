// Package regfile implements the RISC-V integer register file: 32
// general-purpose registers plus the program counter, stored at the
// emulator's configured XLEN width.
package regfile

import "github.com/clabby/brisc/xlen"

// NumRegs is the number of general-purpose integer registers (x0-x31).
const NumRegs = 32

// RegFile holds the integer register file for one hart. Values are
// stored as uint64 regardless of XLEN; callers narrow with the hart's
// xlen.Width as needed (spec.md §3 "Register File").
type RegFile struct {
	// X holds general-purpose registers x0-x31. X[0] is always read as
	// zero; writes to it are silently discarded (RISC-V x0 convention).
	X [NumRegs]uint64

	// PC is the program counter.
	PC uint64

	width xlen.Width
}

// New creates a register file for the given XLEN.
func New(w xlen.Width) *RegFile {
	return &RegFile{width: w}
}

// Width reports the register file's configured XLEN.
func (r *RegFile) Width() xlen.Width {
	return r.width
}

// Read returns the value of register reg, masked to the configured
// XLEN. Reading x0 always returns 0.
func (r *RegFile) Read(reg uint8) uint64 {
	if reg == 0 {
		return 0
	}
	return r.width.Wrap(r.X[reg])
}

// Write sets register reg to value, masked to the configured XLEN.
// Writes to x0 are silently discarded.
func (r *RegFile) Write(reg uint8, value uint64) {
	if reg == 0 {
		return
	}
	r.X[reg] = r.width.Wrap(value)
}

// Reset zeroes every register and the program counter.
func (r *RegFile) Reset() {
	for i := range r.X {
		r.X[i] = 0
	}
	r.PC = 0
}

// Snapshot returns a copy of the current register contents, useful for
// trace/debug output without exposing the live array.
func (r *RegFile) Snapshot() [NumRegs]uint64 {
	out := r.X
	out[0] = 0
	return out
}
