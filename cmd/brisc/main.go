// Command brisc runs a RISC-V ELF binary against the emulator core.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/clabby/brisc/config"
	"github.com/clabby/brisc/emulator"
	"github.com/clabby/brisc/isa"
	"github.com/clabby/brisc/loader"
	"github.com/clabby/brisc/membus"
	"github.com/clabby/brisc/xlen"
)

var (
	configPath = flag.String("config", "", "Path to a brisc.toml config file (default: platform config dir)")
	xlenFlag   = flag.Int("xlen", 0, "Override the register width (32 or 64); 0 uses the config value")
	cycleLimit = flag.Uint64("cycle-limit", 0, "Override the cycle cap; 0 uses the config value")
	verbose    = flag.Bool("v", false, "Print entry point, segment count, and cycle count before exiting")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: brisc [options] <program.elf>\n\nOptions:\n")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "brisc: %v\n", err)
		os.Exit(1)
	}

	width := resolveWidth(cfg)
	programPath := flag.Arg(0)

	prog, err := loader.Load(programPath, width)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brisc: error loading %s: %v\n", programPath, err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("Loaded: %s\n", programPath)
		fmt.Printf("Entry point: 0x%x\n", prog.EntryPoint)
		fmt.Printf("Segments: %d\n", len(prog.Segments))
	}

	limit := cfg.Machine.CycleLimit
	if *cycleLimit != 0 {
		limit = *cycleLimit
	}

	mem := membus.New()
	var tracker *membus.PageTracker
	if cfg.PageTracker.Enabled {
		tracker = membus.NewPageTracker(cfg.PageTracker.CapacityPages, cfg.PageTracker.Associativity)
		mem.AttachTracker(tracker)
	}

	builder := emulator.NewBuilder().
		WithXLEN(width).
		WithExtensions(resolveExtensions(cfg)).
		WithMemory(mem).
		WithProgram(prog).
		WithCycleLimit(limit)

	traceFile, err := openTraceFile(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "brisc: error opening trace file: %v\n", err)
		os.Exit(1)
	}
	if traceFile != nil {
		defer func() { _ = traceFile.Close() }()
		builder = builder.WithTrace(traceFile, cfg.Trace.IncludeMemory, cfg.Trace.MaxEntries)
	}

	e, err := builder.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "brisc: error building emulator: %v\n", err)
		os.Exit(1)
	}

	exitCode, err := e.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "brisc: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		fmt.Printf("\nExit code: %d\n", exitCode)
		fmt.Printf("Cycles: %d\n", e.CycleCount())
		if tracker != nil {
			stats := tracker.Stats()
			fmt.Printf("Page touches: %d, evictions: %d\n", stats.Touches, stats.Evictions)
		}
	}

	os.Exit(int(exitCode))
}

// openTraceFile opens cfg.Trace.OutputFile when tracing is enabled, or
// returns nil if tracing is off. The caller is responsible for closing
// the returned file.
func openTraceFile(cfg *config.Config) (*os.File, error) {
	if !cfg.Trace.Enabled {
		return nil, nil
	}
	f, err := os.OpenFile(cfg.Trace.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644) // #nosec G304 -- user-configured trace path
	if err != nil {
		return nil, err
	}
	return f, nil
}

func loadConfig() (*config.Config, error) {
	if *configPath != "" {
		return config.LoadFrom(*configPath)
	}
	return config.Load()
}

func resolveWidth(cfg *config.Config) xlen.Width {
	x := cfg.Machine.XLEN
	if *xlenFlag != 0 {
		x = *xlenFlag
	}
	if x == 32 {
		return xlen.W32
	}
	return xlen.W64
}

func resolveExtensions(cfg *config.Config) isa.Extensions {
	var ext isa.Extensions
	if cfg.Machine.ExtM {
		ext |= isa.ExtM
	}
	if cfg.Machine.ExtA {
		ext |= isa.ExtA
	}
	if cfg.Machine.ExtC {
		ext |= isa.ExtC
	}
	return ext
}
