// Package faults defines the sentinel error taxonomy raised by the
// memory bus, pipeline, and kernel boundary (spec.md §7 "Error Handling
// Design"). Callers use errors.Is against these sentinels; concrete
// faults wrap them with fmt.Errorf("...: %w", ...) to attach the
// offending address or register.
package faults

import "errors"

// Fault is the sentinel taxonomy for runtime (post-decode) faults, as
// opposed to isa.DecodeError which covers malformed instruction words.
var (
	// ErrMisalignedAccess is raised when a memory access's address is
	// not a multiple of its width and the bus does not permit
	// unaligned access for that width.
	ErrMisalignedAccess = errors.New("faults: misaligned memory access")

	// ErrAccessFault names an access outside any mapped region. The
	// sparse memory bus reads never-written addresses as zero, and
	// nothing in this module currently returns this error.
	ErrAccessFault = errors.New("faults: access fault")

	// ErrBreakpoint signals an EBREAK instruction reached execution.
	// The pipeline surfaces it to the caller rather than handling it;
	// Step/Run callers decide whether to halt or continue.
	ErrBreakpoint = errors.New("faults: breakpoint")

	// ErrUnsupportedSyscall is raised by a Kernel implementation when
	// it receives a syscall number it does not recognize.
	ErrUnsupportedSyscall = errors.New("faults: unsupported syscall")

	// ErrHalted is returned by Step/Run once the emulator has reached
	// a terminal state (an exit syscall was serviced). Further calls
	// to Step are a programming error.
	ErrHalted = errors.New("faults: emulator halted")

	// ErrCycleLimitExceeded is raised by Step/Run when a host-supplied
	// cycle cap elapses without the program exiting or faulting on its
	// own (spec.md §4.5 "Cancellation and timeouts").
	ErrCycleLimitExceeded = errors.New("faults: cycle limit exceeded")

	// ErrUnalignedEntry is raised by Build when the configured entry
	// point does not meet the alignment required by the enabled
	// extension set (2 bytes with C, 4 bytes otherwise).
	ErrUnalignedEntry = errors.New("faults: misaligned entry point")

	// ErrMissingMemory is raised by Build when no memory bus was ever
	// attached to the builder.
	ErrMissingMemory = errors.New("faults: builder has no memory")
)
