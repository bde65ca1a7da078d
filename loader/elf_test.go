package loader_test

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clabby/brisc/loader"
	"github.com/clabby/brisc/xlen"
)

const emRISCV = 243

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "brisc-elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	Context("with a valid rv64 ELF binary", func() {
		var elfPath string

		BeforeEach(func() {
			elfPath = filepath.Join(tempDir, "test.elf")
			createMinimalRV64ELF(elfPath, 0x400000, 0x400080, []byte{
				0x13, 0x05, 0xa0, 0x02, // addi a0, x0, 42
			})
		})

		It("loads without error", func() {
			prog, err := loader.Load(elfPath, xlen.W64)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog).NotTo(BeNil())
		})

		It("extracts the entry point", func() {
			prog, err := loader.Load(elfPath, xlen.W64)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.EntryPoint).To(BeEquivalentTo(0x400080))
		})

		It("sets an rv64-appropriate initial stack pointer", func() {
			prog, err := loader.Load(elfPath, xlen.W64)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.InitialSP).To(BeEquivalentTo(loader.DefaultStackTop64))
		})

		It("marks the code segment executable", func() {
			prog, err := loader.Load(elfPath, xlen.W64)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Flags & loader.SegmentFlagExecute).NotTo(BeZero())
		})
	})

	Context("with a class/xlen mismatch", func() {
		It("rejects a 64-bit ELF when configured for rv32", func() {
			elfPath := filepath.Join(tempDir, "test.elf")
			createMinimalRV64ELF(elfPath, 0x400000, 0x400000, []byte{0x00})
			_, err := loader.Load(elfPath, xlen.W32)
			Expect(errors.Is(err, loader.ErrXLENMismatch)).To(BeTrue())
		})
	})

	Context("with a non-RISC-V ELF", func() {
		It("rejects it", func() {
			elfPath := filepath.Join(tempDir, "x86.elf")
			createMinimalELF(elfPath, 62, 2, 0x400000, 0x400000, []byte{0x00})
			_, err := loader.Load(elfPath, xlen.W64)
			Expect(errors.Is(err, loader.ErrUnsupportedMachine)).To(BeTrue())
		})
	})

	Context("with an invalid path", func() {
		It("returns an error for a nonexistent file", func() {
			_, err := loader.Load(filepath.Join(tempDir, "missing.elf"), xlen.W64)
			Expect(err).To(HaveOccurred())
		})
	})

	Context("with a truncated segment", func() {
		It("reports a short read", func() {
			elfPath := filepath.Join(tempDir, "truncated.elf")
			h := elfHeader64(0x400000, emRISCV)
			p := progHeader64(0x5, 120, 0x400000, 8, 8)

			f, err := os.Create(elfPath)
			Expect(err).NotTo(HaveOccurred())
			_, _ = f.Write(h)
			_, _ = f.Write(p)
			_, _ = f.Write([]byte{0x01, 0x02}) // claims 8 bytes of segment data, has 2
			Expect(f.Close()).To(Succeed())

			_, err = loader.Load(elfPath, xlen.W64)
			Expect(errors.Is(err, loader.ErrShortRead)).To(BeTrue())
		})
	})

	Context("with BSS (Memsz > Filesz)", func() {
		It("reports the full memory size while keeping the file-backed data short", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			createBSSSegmentELF(elfPath, 0x10000, []byte{0x01, 0x02, 0x03, 0x04}, 4096)
			prog, err := loader.Load(elfPath, xlen.W64)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(1))
			Expect(prog.Segments[0].Data).To(HaveLen(4))
			Expect(prog.Segments[0].MemSize).To(BeEquivalentTo(4096))
		})
	})
})

func elfHeader64(entryPoint uint64, machine uint16) []byte {
	h := make([]byte, 64)
	copy(h[0:4], []byte{0x7f, 'E', 'L', 'F'})
	h[4] = 2 // ELFCLASS64
	h[5] = 1 // ELFDATA2LSB
	h[6] = 1 // EV_CURRENT
	binary.LittleEndian.PutUint16(h[16:18], 2) // ET_EXEC
	binary.LittleEndian.PutUint16(h[18:20], machine)
	binary.LittleEndian.PutUint32(h[20:24], 1)
	binary.LittleEndian.PutUint64(h[24:32], entryPoint)
	binary.LittleEndian.PutUint64(h[32:40], 64) // phoff
	binary.LittleEndian.PutUint64(h[40:48], 0)  // shoff
	binary.LittleEndian.PutUint32(h[48:52], 0)
	binary.LittleEndian.PutUint16(h[52:54], 64)
	binary.LittleEndian.PutUint16(h[54:56], 56)
	binary.LittleEndian.PutUint16(h[56:58], 1)
	binary.LittleEndian.PutUint16(h[58:60], 0)
	binary.LittleEndian.PutUint16(h[60:62], 0)
	binary.LittleEndian.PutUint16(h[62:64], 0)
	return h
}

func progHeader64(flags uint32, offset, vaddr, filesz, memsz uint64) []byte {
	p := make([]byte, 56)
	binary.LittleEndian.PutUint32(p[0:4], 1) // PT_LOAD
	binary.LittleEndian.PutUint32(p[4:8], flags)
	binary.LittleEndian.PutUint64(p[8:16], offset)
	binary.LittleEndian.PutUint64(p[16:24], vaddr)
	binary.LittleEndian.PutUint64(p[24:32], vaddr)
	binary.LittleEndian.PutUint64(p[32:40], filesz)
	binary.LittleEndian.PutUint64(p[40:48], memsz)
	binary.LittleEndian.PutUint64(p[48:56], 0x1000)
	return p
}

func createMinimalRV64ELF(path string, loadAddr, entryPoint uint64, code []byte) {
	createMinimalELF(path, emRISCV, 0x5, loadAddr, entryPoint, code)
}

func createMinimalELF(path string, machine uint16, flags uint32, loadAddr, entryPoint uint64, code []byte) {
	h := elfHeader64(entryPoint, machine)
	p := progHeader64(flags, 120, loadAddr, uint64(len(code)), uint64(len(code)))

	f, _ := os.Create(path)
	defer func() { _ = f.Close() }()
	_, _ = f.Write(h)
	_, _ = f.Write(p)
	_, _ = f.Write(code)
}

func createBSSSegmentELF(path string, loadAddr uint64, data []byte, memSize uint64) {
	h := elfHeader64(loadAddr, emRISCV)
	p := progHeader64(0x6, 120, loadAddr, uint64(len(data)), memSize)

	f, _ := os.Create(path)
	defer func() { _ = f.Close() }()
	_, _ = f.Write(h)
	_, _ = f.Write(p)
	_, _ = f.Write(data)
}
