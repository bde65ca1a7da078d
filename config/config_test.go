package config_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clabby/brisc/config"
)

var _ = Describe("DefaultConfig", func() {
	It("defaults to rv64 with all optional extensions enabled", func() {
		cfg := config.DefaultConfig()
		Expect(cfg.Machine.XLEN).To(Equal(64))
		Expect(cfg.Machine.ExtM).To(BeTrue())
		Expect(cfg.Machine.ExtA).To(BeTrue())
		Expect(cfg.Machine.ExtC).To(BeTrue())
		Expect(cfg.Machine.EntryPoint).To(Equal("0x80000000"))
		Expect(cfg.Machine.CycleLimit).To(BeZero())
	})

	It("defaults tracing and page tracking to disabled", func() {
		cfg := config.DefaultConfig()
		Expect(cfg.Trace.Enabled).To(BeFalse())
		Expect(cfg.PageTracker.Enabled).To(BeFalse())
	})
})

var _ = Describe("LoadFrom", func() {
	It("returns the default config when the file does not exist", func() {
		dir := GinkgoT().TempDir()
		cfg, err := config.LoadFrom(filepath.Join(dir, "missing.toml"))
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Machine.XLEN).To(Equal(64))
	})

	It("round-trips custom values through SaveTo/LoadFrom", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "brisc.toml")

		cfg := config.DefaultConfig()
		cfg.Machine.XLEN = 32
		cfg.Machine.ExtC = false
		cfg.Machine.CycleLimit = 1000
		cfg.Trace.Enabled = true
		cfg.Trace.OutputFile = "my-trace.log"

		Expect(cfg.SaveTo(path)).To(Succeed())

		loaded, err := config.LoadFrom(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.Machine.XLEN).To(Equal(32))
		Expect(loaded.Machine.ExtC).To(BeFalse())
		Expect(loaded.Machine.CycleLimit).To(BeEquivalentTo(1000))
		Expect(loaded.Trace.Enabled).To(BeTrue())
		Expect(loaded.Trace.OutputFile).To(Equal("my-trace.log"))
	})

	It("errors on malformed TOML", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "bad.toml")
		Expect(os.WriteFile(path, []byte("machine = not valid toml {{"), 0644)).To(Succeed())

		_, err := config.LoadFrom(path)
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("SaveTo", func() {
	It("creates intermediate directories", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "nested", "deeper", "brisc.toml")

		cfg := config.DefaultConfig()
		Expect(cfg.SaveTo(path)).To(Succeed())

		_, err := os.Stat(path)
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("GetConfigPath", func() {
	It("returns a non-empty path ending in brisc.toml", func() {
		path := config.GetConfigPath()
		Expect(path).NotTo(BeEmpty())
		Expect(filepath.Base(path)).To(Equal("brisc.toml"))
	})
})
