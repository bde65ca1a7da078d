package emulator_test

import (
	"bytes"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clabby/brisc/emulator"
	"github.com/clabby/brisc/faults"
	"github.com/clabby/brisc/isa"
	"github.com/clabby/brisc/loader"
	"github.com/clabby/brisc/membus"
	"github.com/clabby/brisc/xlen"
)

func encodeI(imm uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

func addi(rd, rs1 uint32, imm int32) uint32 {
	return encodeI(uint32(imm), rs1, 0b000, rd, 0b0010011)
}

func ecall() uint32 {
	return encodeI(0, 0, 0, 0, 0b1110011)
}

func loadWords(mem *membus.Memory, base uint64, words []uint32) {
	for i, w := range words {
		mem.LoadBytes(base+uint64(i*4), []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)})
	}
}

var _ = Describe("Builder", func() {
	It("rejects a missing memory bus", func() {
		_, err := emulator.NewBuilder().Build()
		Expect(errors.Is(err, faults.ErrMissingMemory)).To(BeTrue())
	})

	It("rejects a misaligned entry point when C is disabled", func() {
		mem := membus.New()
		_, err := emulator.NewBuilder().WithMemory(mem).WithEntryPoint(0x1002).Build()
		Expect(errors.Is(err, faults.ErrUnalignedEntry)).To(BeTrue())
	})

	It("accepts a 2-byte-aligned entry point when C is enabled", func() {
		mem := membus.New()
		loadWords(mem, 0x1002, []uint32{addi(0, 0, 0)})
		_, err := emulator.NewBuilder().
			WithMemory(mem).
			WithExtensions(isa.ExtC).
			WithEntryPoint(0x1002).
			Build()
		Expect(err).NotTo(HaveOccurred())
	})

	It("builds successfully with valid configuration", func() {
		mem := membus.New()
		e, err := emulator.NewBuilder().WithMemory(mem).WithEntryPoint(0x1000).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(e).NotTo(BeNil())
	})
})

var _ = Describe("Emulator", func() {
	It("runs a program to exit and reports the exit code", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{
			addi(10, 0, 5),  // a0 = 5
			addi(17, 0, 93), // a7 = SyscallExit
			ecall(),
		})
		e, err := emulator.NewBuilder().WithXLEN(xlen.W64).WithMemory(mem).WithEntryPoint(0x1000).Build()
		Expect(err).NotTo(HaveOccurred())

		code, err := e.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(BeEquivalentTo(5))
		Expect(e.Halted()).To(BeTrue())
	})

	It("stops with a cycle limit fault if the program never exits", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{
			addi(5, 0, 1),
			addi(5, 0, 1),
			addi(5, 0, 1),
			addi(5, 0, 1),
		})
		e, err := emulator.NewBuilder().WithMemory(mem).WithEntryPoint(0x1000).WithCycleLimit(2).Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Run()
		Expect(errors.Is(err, faults.ErrCycleLimitExceeded)).To(BeTrue())
	})

	It("propagates an unsupported syscall error from the default kernel", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{
			addi(17, 0, 1), // a7 = 1, not recognized by the default kernel
			ecall(),
		})
		e, err := emulator.NewBuilder().WithMemory(mem).WithEntryPoint(0x1000).Build()
		Expect(err).NotTo(HaveOccurred())

		_, err = e.Run()
		Expect(errors.Is(err, faults.ErrUnsupportedSyscall)).To(BeTrue())
	})

	It("exposes the live register file for trace output", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{addi(5, 0, 99)})
		e, err := emulator.NewBuilder().WithMemory(mem).WithEntryPoint(0x1000).Build()
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 5; i++ {
			Expect(e.Step()).To(Succeed())
		}
		Expect(e.Registers().Read(5)).To(BeEquivalentTo(99))
	})
})

var _ = Describe("Builder with a loaded Program", func() {
	It("adopts the program's entry point and stack pointer", func() {
		data := make([]byte, 0, 4)
		for _, w := range []uint32{addi(5, 0, 1)} {
			data = append(data, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
		}
		prog := &loader.Program{
			EntryPoint: 0x1000,
			InitialSP:  0x7ffffffff000,
			Segments: []loader.Segment{
				{VirtAddr: 0x1000, Data: data, MemSize: uint64(len(data)), Flags: loader.SegmentFlagExecute | loader.SegmentFlagRead},
			},
		}

		e, err := emulator.NewBuilder().WithProgram(prog).Build()
		Expect(err).NotTo(HaveOccurred())
		Expect(e.Registers().PC).To(BeEquivalentTo(0x1000))
		Expect(e.Registers().Read(2)).To(BeEquivalentTo(0x7ffffffff000))
	})
})

var _ = Describe("execution tracing", func() {
	It("writes one log line per step when enabled", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{addi(5, 0, 1), addi(5, 0, 1)})
		var buf bytes.Buffer
		e, err := emulator.NewBuilder().
			WithMemory(mem).
			WithEntryPoint(0x1000).
			WithTrace(&buf, false, 0).
			Build()
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 3; i++ {
			Expect(e.Step()).To(Succeed())
		}
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(3))
		Expect(lines[0]).To(ContainSubstring("cycle=1"))
	})

	It("stops emitting lines once maxEntries is reached", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{addi(5, 0, 1), addi(5, 0, 1), addi(5, 0, 1)})
		var buf bytes.Buffer
		e, err := emulator.NewBuilder().
			WithMemory(mem).
			WithEntryPoint(0x1000).
			WithTrace(&buf, false, 2).
			Build()
		Expect(err).NotTo(HaveOccurred())

		for i := 0; i < 4; i++ {
			Expect(e.Step()).To(Succeed())
		}
		lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
		Expect(lines).To(HaveLen(2))
	})

	It("includes sp/a0 when includeMemory is set", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{addi(5, 0, 1)})
		var buf bytes.Buffer
		e, err := emulator.NewBuilder().
			WithMemory(mem).
			WithEntryPoint(0x1000).
			WithTrace(&buf, true, 0).
			Build()
		Expect(err).NotTo(HaveOccurred())

		Expect(e.Step()).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("sp="))
		Expect(buf.String()).To(ContainSubstring("a0="))
	})
})

var _ = Describe("default kernel wiring", func() {
	It("is used when no kernel is supplied explicitly", func() {
		mem := membus.New()
		loadWords(mem, 0x1000, []uint32{
			addi(17, 0, 93),
			ecall(),
		})
		e, err := emulator.NewBuilder().WithMemory(mem).WithEntryPoint(0x1000).WithKernel(nil).Build()
		Expect(err).NotTo(HaveOccurred())
		code, err := e.Run()
		Expect(err).NotTo(HaveOccurred())
		Expect(code).To(BeEquivalentTo(0))
	})
})
