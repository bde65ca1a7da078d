// Package emulator wires together the decoder, register file, memory
// bus, pipeline, and kernel into a runnable single-hart RISC-V machine,
// exposing the builder/step/run surface described in spec.md §4.5.
package emulator

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/clabby/brisc/faults"
	"github.com/clabby/brisc/isa"
	"github.com/clabby/brisc/kernel"
	"github.com/clabby/brisc/loader"
	"github.com/clabby/brisc/membus"
	"github.com/clabby/brisc/pipeline"
	"github.com/clabby/brisc/regfile"
	"github.com/clabby/brisc/xlen"
)

// Builder assembles an Emulator's configuration surface (spec.md §4.5
// "Configuration surface"): xlen, enabled extensions, memory, kernel,
// and initial pc. Create one with NewBuilder (the zero value has no
// XLEN set, and Build rejects it); call the With* methods and finish
// with Build.
type Builder struct {
	width      xlen.Width
	extensions isa.Extensions
	mem        *membus.Memory
	kern       kernel.Kernel
	entryPC    uint64
	haveEntry  bool
	initialSP  uint64
	haveSP     bool
	cycleLimit uint64
	trace      *log.Logger
	traceMem   bool
	traceMax   int
}

// NewBuilder creates a builder defaulting to rv64i with no optional
// extensions.
func NewBuilder() *Builder {
	return &Builder{width: xlen.W64}
}

// WithXLEN selects the register width (32 or 64).
func (b *Builder) WithXLEN(w xlen.Width) *Builder {
	b.width = w
	return b
}

// WithExtensions enables the given M/A/C extension bits.
func (b *Builder) WithExtensions(ext isa.Extensions) *Builder {
	b.extensions = ext
	return b
}

// WithMemory attaches an external memory bus. If neither this nor
// WithProgram is called, Build fails with faults.ErrMissingMemory.
func (b *Builder) WithMemory(mem *membus.Memory) *Builder {
	b.mem = mem
	return b
}

// WithKernel attaches an external kernel. If never called, Build
// creates a kernel.DefaultKernel bound to the host's stdio.
func (b *Builder) WithKernel(kern kernel.Kernel) *Builder {
	b.kern = kern
	return b
}

// WithEntryPoint sets the initial program counter directly.
func (b *Builder) WithEntryPoint(pc uint64) *Builder {
	b.entryPC = pc
	b.haveEntry = true
	return b
}

// WithStackPointer sets the initial x2 (sp) value.
func (b *Builder) WithStackPointer(sp uint64) *Builder {
	b.initialSP = sp
	b.haveSP = true
	return b
}

// WithCycleLimit bounds Run to at most n cycles (0, the default, means
// unlimited); a limit that elapses raises faults.ErrCycleLimitExceeded
// (spec.md §4.5 "Cancellation and timeouts").
func (b *Builder) WithCycleLimit(n uint64) *Builder {
	b.cycleLimit = n
	return b
}

// WithTrace enables per-cycle execution tracing to w: one structured
// log line per Step reporting the cycle count and the register file's
// pc field, which Build sets to the entry point and the pipeline, which
// tracks its own fetch address, does not update. When includeMemory is
// set, each line also reports
// the stack pointer (x2) and return-value register (x10/a0), a cheap
// proxy for memory/syscall activity without threading the pipeline's
// internal latches out to this layer. maxEntries caps the number of
// lines written (0 means unlimited); further cycles still execute, they
// just stop being logged. Off by default. This is a diagnostic side
// channel only; it never affects timing (spec.md §9 "no precise cycle
// accounting beyond the 5-stage model").
func (b *Builder) WithTrace(w io.Writer, includeMemory bool, maxEntries int) *Builder {
	b.trace = log.New(w, "brisc: ", log.LstdFlags)
	b.traceMem = includeMemory
	b.traceMax = maxEntries
	return b
}

// WithProgram loads an ELF-derived Program's segments into the
// builder's memory (creating one first if WithMemory was never
// called), and adopts its entry point and initial stack pointer unless
// those were already set explicitly.
func (b *Builder) WithProgram(prog *loader.Program) *Builder {
	if b.mem == nil {
		b.mem = membus.New()
	}
	for _, seg := range prog.Segments {
		b.mem.LoadBytes(seg.VirtAddr, seg.Data)
	}
	if !b.haveEntry {
		b.entryPC = prog.EntryPoint
		b.haveEntry = true
	}
	if !b.haveSP {
		b.initialSP = prog.InitialSP
		b.haveSP = true
	}
	return b
}

// entryAlignment returns the minimum pc alignment for the configured
// extension set: 2 bytes when C is enabled (compressed instructions
// are legal fetch targets), 4 otherwise.
func (b *Builder) entryAlignment() uint64 {
	if b.extensions.Has(isa.ExtC) {
		return 2
	}
	return 4
}

// Build validates the configuration and returns a runnable Emulator.
func (b *Builder) Build() (*Emulator, error) {
	if !b.width.Valid() {
		return nil, fmt.Errorf("emulator: invalid xlen %d", b.width)
	}
	if b.mem == nil {
		return nil, faults.ErrMissingMemory
	}
	if b.entryPC%b.entryAlignment() != 0 {
		return nil, fmt.Errorf("%w: pc 0x%x not aligned to %d bytes", faults.ErrUnalignedEntry, b.entryPC, b.entryAlignment())
	}

	kern := b.kern
	if kern == nil {
		kern = kernel.NewDefaultKernel(os.Stdin, os.Stdout, os.Stderr)
	}

	regs := regfile.New(b.width)
	regs.PC = b.entryPC
	if b.haveSP {
		regs.Write(2, b.initialSP)
	}

	dec := isa.NewDecoder()
	pl := pipeline.New(regs, b.mem, dec, kern, b.width, b.extensions, b.entryPC)

	return &Emulator{
		pipeline:   pl,
		regs:       regs,
		mem:        b.mem,
		cycleLimit: b.cycleLimit,
		trace:      b.trace,
		traceMem:   b.traceMem,
		traceMax:   b.traceMax,
	}, nil
}

// Emulator is a built, runnable RISC-V machine. Construct one with
// Builder.
type Emulator struct {
	pipeline *pipeline.Pipeline
	regs     *regfile.RegFile
	mem      *membus.Memory

	cycleLimit uint64
	cycles     uint64
	trace      *log.Logger
	traceMem   bool
	traceMax   int
	traceCount int
}

// Registers exposes the live register file, e.g. for trace output.
func (e *Emulator) Registers() *regfile.RegFile {
	return e.regs
}

// Memory exposes the live memory bus.
func (e *Emulator) Memory() *membus.Memory {
	return e.mem
}

// CycleCount reports the number of cycles executed so far.
func (e *Emulator) CycleCount() uint64 {
	return e.cycles
}

// Halted reports whether an exit syscall has terminated the program.
func (e *Emulator) Halted() bool {
	return e.pipeline.Halted
}

// ExitCode reports the exit code once Halted is true.
func (e *Emulator) ExitCode() int64 {
	return e.pipeline.ExitCode
}

// Step advances the pipeline by one cycle (spec.md §4.5 "step() runs
// one cycle").
func (e *Emulator) Step() error {
	if e.cycleLimit > 0 && e.cycles >= e.cycleLimit {
		return faults.ErrCycleLimitExceeded
	}
	e.cycles++
	err := e.pipeline.Tick()
	if e.trace != nil && (e.traceMax <= 0 || e.traceCount < e.traceMax) {
		e.traceCount++
		if e.traceMem {
			e.trace.Printf("cycle=%d pc=0x%x halted=%t sp=0x%x a0=0x%x",
				e.cycles, e.regs.PC, e.pipeline.Halted, e.regs.Read(2), e.regs.Read(10))
		} else {
			e.trace.Printf("cycle=%d pc=0x%x halted=%t", e.cycles, e.regs.PC, e.pipeline.Halted)
		}
	}
	return err
}

// Run steps until the program exits or a fault is raised, returning
// the exit code on normal termination (spec.md §4.5 "run() steps until
// the exit flag is set or a fault is raised, returning the exit code
// or the fault").
func (e *Emulator) Run() (int64, error) {
	for {
		err := e.Step()
		if err != nil {
			return 0, err
		}
		if e.pipeline.Halted {
			return e.pipeline.ExitCode, nil
		}
	}
}
