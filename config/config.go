// Package config loads brisc's TOML configuration file, covering the
// builder knobs spec.md §4.5 enumerates (xlen, extensions, cycle limit,
// entry point) plus trace/instrumentation toggles that sit outside the
// core (spec.md §4.5 "Feature/CLI surface. Not part of the core.").
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config is brisc's on-disk configuration shape.
type Config struct {
	// Machine controls the core builder surface.
	Machine struct {
		XLEN       int    `toml:"xlen"`        // 32 or 64
		ExtM       bool   `toml:"ext_m"`       // multiply/divide
		ExtA       bool   `toml:"ext_a"`       // atomics
		ExtC       bool   `toml:"ext_c"`       // compressed
		EntryPoint string `toml:"entry_point"` // hex string, e.g. "0x80000000"
		CycleLimit uint64 `toml:"cycle_limit"` // 0 means unlimited
	} `toml:"machine"`

	// Trace controls optional execution tracing, entirely outside the
	// pipeline's core semantics.
	Trace struct {
		Enabled       bool   `toml:"enabled"`
		OutputFile    string `toml:"output_file"`
		IncludeMemory bool   `toml:"include_memory"`
		MaxEntries    int    `toml:"max_entries"`
	} `toml:"trace"`

	// PageTracker controls the diagnostic page-residency instrumentation
	// membus.PageTracker provides; purely informational, never gates
	// pipeline timing (spec.md §9 "no precise cycle accounting beyond
	// the 5-stage model").
	PageTracker struct {
		Enabled       bool `toml:"enabled"`
		CapacityPages int  `toml:"capacity_pages"`
		Associativity int  `toml:"associativity"`
	} `toml:"page_tracker"`
}

// DefaultConfig returns brisc's built-in default configuration.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Machine.XLEN = 64
	cfg.Machine.ExtM = true
	cfg.Machine.ExtA = true
	cfg.Machine.ExtC = true
	cfg.Machine.EntryPoint = "0x80000000"
	cfg.Machine.CycleLimit = 0

	cfg.Trace.Enabled = false
	cfg.Trace.OutputFile = "trace.log"
	cfg.Trace.IncludeMemory = false
	cfg.Trace.MaxEntries = 100000

	cfg.PageTracker.Enabled = false
	cfg.PageTracker.CapacityPages = 1024
	cfg.PageTracker.Associativity = 4

	return cfg
}

// GetConfigPath returns the platform-specific config file path for
// brisc, following the XDG-ish convention of a single dotted config
// directory under the user's home.
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "brisc")

	case "darwin", "linux":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "brisc.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "brisc")

	default:
		return "brisc.toml"
	}

	if err := os.MkdirAll(configDir, 0750); err != nil {
		return "brisc.toml"
	}

	return filepath.Join(configDir, "brisc.toml")
}

// Load loads configuration from the default config file, falling back
// to DefaultConfig if it does not exist.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file, falling back
// to DefaultConfig if it does not exist.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	return cfg, nil
}

// SaveTo writes the configuration to the specified file in TOML form.
func (c *Config) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("config: failed to create directory %s: %w", dir, err)
	}

	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("config: failed to create %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("config: failed to encode: %w", err)
	}

	return nil
}
