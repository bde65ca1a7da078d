package isa

import "errors"

// Decode error taxonomy (spec.md §7: "DecodeError: IllegalOpcode,
// UnsupportedExtension, Reserved").
var (
	// ErrIllegalOpcode is raised for a major opcode that is not a valid
	// encoding of any instruction, for JALR with a nonzero funct3, and for
	// instruction lengths beyond 32 bits, which RISC-V reserves. Invalid
	// funct combinations under a known opcode raise ErrReserved.
	ErrIllegalOpcode = errors.New("isa: illegal opcode")

	// ErrUnsupportedExtension is raised when an encoding belongs to an
	// extension that was not enabled for this decode (including a
	// compressed encoding seen while the C extension is disabled).
	ErrUnsupportedExtension = errors.New("isa: unsupported extension")

	// ErrReserved is raised for a bit pattern the RISC-V spec marks
	// reserved for future use or leaves undefined (e.g. an all-zero
	// compressed word, an unassigned funct3/funct7 value under a known
	// opcode, or a reserved compressed slot).
	ErrReserved = errors.New("isa: reserved encoding")
)
