package pipeline_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/clabby/brisc/faults"
	"github.com/clabby/brisc/isa"
	"github.com/clabby/brisc/kernel"
	"github.com/clabby/brisc/membus"
	"github.com/clabby/brisc/pipeline"
	"github.com/clabby/brisc/regfile"
	"github.com/clabby/brisc/xlen"
)

// encodeR builds a 32-bit R-type word.
func encodeR(funct7, rs2, rs1, funct3, rd, opcode uint32) uint32 {
	return funct7<<25 | rs2<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeI builds a 32-bit I-type word.
func encodeI(imm uint32, rs1, funct3, rd, opcode uint32) uint32 {
	return (imm&0xfff)<<20 | rs1<<15 | funct3<<12 | rd<<7 | opcode
}

// encodeB builds a 32-bit B-type word from a byte offset.
func encodeB(offset uint32, rs2, rs1, funct3, opcode uint32) uint32 {
	b12 := (offset >> 12) & 0x1
	b11 := (offset >> 11) & 0x1
	b10_5 := (offset >> 5) & 0x3f
	b4_1 := (offset >> 1) & 0xf
	return b12<<31 | b10_5<<25 | rs2<<20 | rs1<<15 | funct3<<12 | b4_1<<8 | b11<<7 | opcode
}

const (
	opOpImm  = 0b0010011
	opOp     = 0b0110011
	opLoad   = 0b0000011
	opBranch = 0b1100011
	opSystem = 0b1110011
)

func addi(rd, rs1 uint32, imm int32) uint32 {
	return encodeI(uint32(imm), rs1, 0b000, rd, opOpImm)
}

func add(rd, rs1, rs2 uint32) uint32 {
	return encodeR(0, rs2, rs1, 0b000, rd, opOp)
}

func lw(rd, rs1 uint32, imm int32) uint32 {
	return encodeI(uint32(imm), rs1, 0b010, rd, opLoad)
}

func beq(rs1, rs2 uint32, offset int32) uint32 {
	return encodeB(uint32(offset), rs2, rs1, 0b000, opBranch)
}

func ecall() uint32 {
	return encodeI(0, 0, 0, 0, opSystem)
}

// stubKernel exits immediately with whatever value is in a0.
type stubKernel struct{}

func (stubKernel) Syscall(regs kernel.Registers, mem kernel.Memory) (kernel.Result, error) {
	if regs.Read(kernel.RegA7) != kernel.SyscallExit {
		return kernel.Result{}, faults.ErrUnsupportedSyscall
	}
	return kernel.Result{Exited: true, ExitCode: int64(regs.Read(kernel.RegA0))}, nil
}

func newTestPipeline(words []uint32, entry uint64) (*pipeline.Pipeline, *regfile.RegFile) {
	mem := membus.New()
	for i, w := range words {
		buf := []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
		mem.LoadBytes(entry+uint64(i*4), buf)
	}
	regs := regfile.New(xlen.W64)
	dec := isa.NewDecoder()
	p := pipeline.New(regs, mem, dec, stubKernel{}, xlen.W64, isa.ExtM|isa.ExtA|isa.ExtC, entry)
	return p, regs
}

var _ = Describe("Pipeline", func() {
	const entry = 0x1000

	It("retires a straight-line ADDI after full pipeline latency", func() {
		p, regs := newTestPipeline([]uint32{addi(5, 0, 42)}, entry)
		for i := 0; i < 5; i++ {
			Expect(p.Tick()).To(Succeed())
		}
		Expect(regs.Read(5)).To(BeEquivalentTo(42))
	})

	It("forwards EX/MEM results to a dependent instruction without stalling", func() {
		words := []uint32{
			addi(5, 0, 10),
			addi(6, 5, 1), // depends on x5 one instruction later
		}
		p, regs := newTestPipeline(words, entry)
		for i := 0; i < 6; i++ {
			Expect(p.Tick()).To(Succeed())
		}
		Expect(regs.Read(5)).To(BeEquivalentTo(10))
		Expect(regs.Read(6)).To(BeEquivalentTo(11))
	})

	It("forwards MEM/WB results when the dependency is two instructions back", func() {
		words := []uint32{
			addi(5, 0, 10),
			addi(0, 0, 0), // nop spacer
			add(6, 5, 5),
		}
		p, regs := newTestPipeline(words, entry)
		for i := 0; i < 8; i++ {
			Expect(p.Tick()).To(Succeed())
		}
		Expect(regs.Read(6)).To(BeEquivalentTo(20))
	})

	It("stalls on a load-use hazard and still produces the correct result", func() {
		mem := membus.New()
		mem.LoadBytes(0x800, []byte{0x09, 0x00, 0x00, 0x00}) // word at 0x800 = 9

		prog := []uint32{
			addi(5, 0, 0x800), // x5 = 0x800
			lw(6, 5, 0),       // x6 = mem[x5] = 9
			addi(7, 6, 1),     // x7 = x6 + 1, immediately dependent on the load
		}

		p, regs := newPipelineWithMem(mem, prog, entry)
		for i := 0; i < 12; i++ {
			Expect(p.Tick()).To(Succeed())
		}
		Expect(regs.Read(6)).To(BeEquivalentTo(9))
		Expect(regs.Read(7)).To(BeEquivalentTo(10))
	})

	It("squashes the two wrong-path instructions after a taken branch", func() {
		words := []uint32{
			beq(0, 0, 12), // always taken, branch over the next two instructions
			addi(5, 0, 111),
			addi(5, 0, 222),
			addi(6, 0, 333),
		}
		p, regs := newTestPipeline(words, entry)
		for i := 0; i < 10; i++ {
			Expect(p.Tick()).To(Succeed())
		}
		Expect(regs.Read(5)).To(BeEquivalentTo(0))
		Expect(regs.Read(6)).To(BeEquivalentTo(333))
	})

	It("halts with the exit code supplied to the exit syscall", func() {
		words := []uint32{
			addi(10, 0, 7),  // a0 = 7
			addi(17, 0, 93), // a7 = SyscallExit
			ecall(),
		}
		p, regs := newTestPipeline(words, entry)
		_ = regs
		var lastErr error
		for i := 0; i < 10 && !p.Halted; i++ {
			lastErr = p.Tick()
		}
		Expect(lastErr).NotTo(HaveOccurred())
		Expect(p.Halted).To(BeTrue())
		Expect(p.ExitCode).To(BeEquivalentTo(7))
	})

	It("surfaces a breakpoint fault without halting", func() {
		words := []uint32{
			encodeI(1, 0, 0, 0, opSystem), // EBREAK
		}
		p, _ := newTestPipeline(words, entry)

		var sawBreakpoint bool
		for i := 0; i < 6; i++ {
			err := p.Tick()
			if err != nil {
				Expect(errors.Is(err, faults.ErrBreakpoint)).To(BeTrue())
				sawBreakpoint = true
			}
		}
		Expect(sawBreakpoint).To(BeTrue())
		Expect(p.Halted).To(BeFalse())
	})
})

func newPipelineWithMem(mem *membus.Memory, words []uint32, entry uint64) (*pipeline.Pipeline, *regfile.RegFile) {
	for i, w := range words {
		buf := []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
		mem.LoadBytes(entry+uint64(i*4), buf)
	}
	regs := regfile.New(xlen.W64)
	dec := isa.NewDecoder()
	p := pipeline.New(regs, mem, dec, stubKernel{}, xlen.W64, isa.ExtM|isa.ExtA|isa.ExtC, entry)
	return p, regs
}
