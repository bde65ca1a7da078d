// Package loader parses RISC-V ELF binaries into a Program ready to be
// placed into the emulator's memory bus (spec.md §6 "ELF Loading").
package loader

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"

	"github.com/clabby/brisc/xlen"
)

// Sentinel errors comparable with errors.Is; Load wraps them with
// fmt.Errorf("...: %w", err) to attach the offending path or value,
// mirroring faults.Fault's wrap-a-sentinel convention (spec.md §7).
var (
	// ErrUnsupportedMachine is raised when the ELF's machine type is not
	// EM_RISCV.
	ErrUnsupportedMachine = errors.New("loader: unsupported machine type")

	// ErrWrongEndianness is raised when the ELF is not little-endian.
	ErrWrongEndianness = errors.New("loader: not a little-endian ELF file")

	// ErrXLENMismatch is raised when the ELF's class (32/64-bit) does not
	// match the emulator's configured XLEN.
	ErrXLENMismatch = errors.New("loader: ELF class does not match configured XLEN")

	// ErrShortRead is raised when a PT_LOAD segment's file contents
	// cannot be read in full.
	ErrShortRead = errors.New("loader: short read for segment")
)

// SegmentFlags records a loadable segment's memory protection bits.
type SegmentFlags uint32

const (
	SegmentFlagExecute SegmentFlags = 1 << iota
	SegmentFlagWrite
	SegmentFlagRead
)

// DefaultStackSize is the default guest stack allocation (8MB).
const DefaultStackSize = 8 * 1024 * 1024

// DefaultStackTop32 is the default initial stack pointer for rv32 user
// binaries, just below the conventional top of a 32-bit address space.
const DefaultStackTop32 = 0x7ffff000

// DefaultStackTop64 is the default initial stack pointer for rv64 user
// binaries, a conventional high address in the user address range.
const DefaultStackTop64 = 0x7ffffffff000

// Segment is one PT_LOAD program header's contents, ready to be copied
// into guest memory at VirtAddr.
type Segment struct {
	VirtAddr uint64
	Data     []byte
	MemSize  uint64
	Flags    SegmentFlags
}

// Program is a fully parsed ELF binary ready for execution.
type Program struct {
	EntryPoint uint64
	Segments   []Segment
	InitialSP  uint64
}

// Load parses the RISC-V ELF binary at path for the given XLEN. It
// rejects files whose class or machine type doesn't match w (spec.md §6:
// "reject an ELF whose class does not match the emulator's configured
// XLEN").
func Load(path string, w xlen.Width) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loader: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return load(f, w)
}

func load(f *elf.File, w xlen.Width) (*Program, error) {
	if f.Machine != elf.EM_RISCV {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedMachine, f.Machine)
	}
	if f.Data != elf.ELFDATA2LSB {
		return nil, fmt.Errorf("%w", ErrWrongEndianness)
	}

	switch w {
	case xlen.W64:
		if f.Class != elf.ELFCLASS64 {
			return nil, fmt.Errorf("%w: got %v, want rv64", ErrXLENMismatch, f.Class)
		}
	case xlen.W32:
		if f.Class != elf.ELFCLASS32 {
			return nil, fmt.Errorf("%w: got %v, want rv32", ErrXLENMismatch, f.Class)
		}
	default:
		return nil, fmt.Errorf("loader: invalid xlen.Width %d", w)
	}

	prog := &Program{
		EntryPoint: f.Entry,
		InitialSP:  defaultStackTop(w),
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD {
			continue
		}

		data := make([]byte, phdr.Filesz)
		if phdr.Filesz > 0 {
			n, err := phdr.ReadAt(data, 0)
			if err != nil && err != io.EOF {
				return nil, fmt.Errorf("loader: read segment at 0x%x: %w", phdr.Vaddr, err)
			}
			if uint64(n) != phdr.Filesz {
				return nil, fmt.Errorf("%w: segment at 0x%x: got %d bytes, expected %d",
					ErrShortRead, phdr.Vaddr, n, phdr.Filesz)
			}
		}

		var flags SegmentFlags
		if phdr.Flags&elf.PF_X != 0 {
			flags |= SegmentFlagExecute
		}
		if phdr.Flags&elf.PF_W != 0 {
			flags |= SegmentFlagWrite
		}
		if phdr.Flags&elf.PF_R != 0 {
			flags |= SegmentFlagRead
		}

		prog.Segments = append(prog.Segments, Segment{
			VirtAddr: phdr.Vaddr,
			Data:     data,
			MemSize:  phdr.Memsz,
			Flags:    flags,
		})
	}

	return prog, nil
}

func defaultStackTop(w xlen.Width) uint64 {
	if w == xlen.W32 {
		return DefaultStackTop32
	}
	return DefaultStackTop64
}
