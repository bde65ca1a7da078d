package pipeline

import (
	"errors"
	"fmt"

	"github.com/clabby/brisc/faults"
	"github.com/clabby/brisc/isa"
	"github.com/clabby/brisc/kernel"
	"github.com/clabby/brisc/membus"
	"github.com/clabby/brisc/regfile"
	"github.com/clabby/brisc/xlen"
)

// Pipeline is the 5-stage IF/ID/EX/MEM/WB state machine. A single Tick
// processes WB, MEM, EX, ID, and IF in that order against a snapshot of
// the latches taken at the start of the cycle, then commits all four
// latches at once (spec.md §9 "Pipeline state as plain records, not
// closures"). This ordering gives a same-cycle write-then-read register
// file: WB retires before ID reads, resolving the MEM/WB-to-ID hazard
// without a forwarding path.
type Pipeline struct {
	Regs    *regfile.RegFile
	Mem     *membus.Memory
	Decoder *isa.Decoder
	Kernel  kernel.Kernel
	Width   xlen.Width
	Ext     isa.Extensions

	ifid   IFIDRegister
	idex   IDEXRegister
	exmem  EXMEMRegister
	memwb  MEMWBRegister
	hazard *HazardUnit

	fetchPC uint64

	Halted   bool
	ExitCode int64
}

// New creates a pipeline with all latches empty (bubbles), fetching
// starting at entryPC.
func New(regs *regfile.RegFile, mem *membus.Memory, dec *isa.Decoder, kern kernel.Kernel, w xlen.Width, ext isa.Extensions, entryPC uint64) *Pipeline {
	return &Pipeline{
		Regs:    regs,
		Mem:     mem,
		Decoder: dec,
		Kernel:  kern,
		Width:   w,
		Ext:     ext,
		hazard:  NewHazardUnit(),
		fetchPC: entryPC,
	}
}

// Drained reports whether every latch is empty, i.e. no in-flight
// instruction remains. Emulator.Run does not consult it: Run returns as
// soon as the halting ECALL has been serviced in MEM, and the younger
// instructions still latched behind it are never committed.
func (p *Pipeline) Drained() bool {
	return !p.ifid.Valid && !p.idex.Valid && !p.exmem.Valid && !p.memwb.Valid
}

// Tick advances the pipeline by one cycle.
func (p *Pipeline) Tick() error {
	if p.Halted {
		return faults.ErrHalted
	}

	oldIFID, oldIDEX, oldEXMEM, oldMEMWB := p.ifid, p.idex, p.exmem, p.memwb

	p.writeback(&oldMEMWB)

	newMEMWB, err := p.memStage(&oldEXMEM)
	if err != nil && !errors.Is(err, faults.ErrBreakpoint) {
		return err
	}
	memErr := err

	newEXMEM := p.exStage(&oldIDEX, &oldEXMEM, &oldMEMWB)

	newIDEX, loadUse, decErr := p.idStage(&oldIFID, &oldIDEX)
	if decErr != nil {
		return decErr
	}

	stalls := p.hazard.ComputeStalls(loadUse, newEXMEM.BranchTaken)

	if stalls.StallID || stalls.FlushID {
		newIDEX.Clear()
	}

	var newIFID IFIDRegister
	switch {
	case stalls.FlushIF:
		newIFID.Clear()
		p.fetchPC = newEXMEM.BranchTarget
	case stalls.StallIF:
		newIFID = oldIFID
	default:
		fetched, ferr := p.fetchStage()
		if ferr != nil {
			return ferr
		}
		newIFID = fetched
	}

	p.ifid, p.idex, p.exmem, p.memwb = newIFID, newIDEX, newEXMEM, newMEMWB

	return memErr
}

func (p *Pipeline) writeback(memwb *MEMWBRegister) {
	if !memwb.Valid || !memwb.RegWrite {
		return
	}
	val := memwb.ALUResult
	if memwb.MemToReg {
		val = memwb.MemData
	}
	p.Regs.Write(memwb.Rd, val)
}

func (p *Pipeline) memStage(exmem *EXMEMRegister) (MEMWBRegister, error) {
	if !exmem.Valid {
		return MEMWBRegister{}, nil
	}

	out := MEMWBRegister{
		Valid:     true,
		PC:        exmem.PC,
		Inst:      exmem.Inst,
		ALUResult: exmem.ALUResult,
		Rd:        exmem.Rd,
		RegWrite:  exmem.RegWrite,
		MemToReg:  exmem.MemToReg,
	}

	inst := exmem.Inst

	switch {
	case inst.IsEnvCall():
		result, err := p.Kernel.Syscall(p.Regs, p.Mem)
		if err != nil {
			return out, fmt.Errorf("pipeline: ecall at pc 0x%x: %w", exmem.PC, err)
		}
		out.RegWrite = false
		if result.Exited {
			p.Halted = true
			p.ExitCode = result.ExitCode
		}
		return out, nil

	case inst.IsBreakpoint():
		return out, fmt.Errorf("pipeline: ebreak at pc 0x%x: %w", exmem.PC, faults.ErrBreakpoint)

	case inst.Op == isa.OpLRW || inst.Op == isa.OpLRD:
		p.Mem.LoadReserved(exmem.ALUResult, inst.MemWidth)
		v, err := p.Mem.Read(exmem.ALUResult, inst.MemWidth)
		if err != nil {
			return out, fmt.Errorf("pipeline: lr at pc 0x%x: %w", exmem.PC, err)
		}
		out.MemData = signExtendMem(v, inst.MemWidth, inst.MemSigned, p.Width)
		return out, nil

	case inst.Op == isa.OpSCW || inst.Op == isa.OpSCD:
		ok, err := p.Mem.StoreConditional(exmem.ALUResult, inst.MemWidth, exmem.StoreValue)
		if err != nil {
			return out, fmt.Errorf("pipeline: sc at pc 0x%x: %w", exmem.PC, err)
		}
		if ok {
			out.ALUResult = 0
		} else {
			out.ALUResult = 1
		}
		return out, nil

	case inst.IsAMO():
		old, err := p.Mem.Read(exmem.ALUResult, inst.MemWidth)
		if err != nil {
			return out, fmt.Errorf("pipeline: amo at pc 0x%x: %w", exmem.PC, err)
		}
		signedOld := signExtendMem(old, inst.MemWidth, true, p.Width)
		aw := xlen.W64
		if inst.MemWidth == 4 {
			aw = xlen.W32
		}
		newVal := amoCompute(inst.Op, signedOld, exmem.StoreValue, aw)
		if err := p.Mem.Write(exmem.ALUResult, inst.MemWidth, newVal); err != nil {
			return out, fmt.Errorf("pipeline: amo at pc 0x%x: %w", exmem.PC, err)
		}
		out.MemData = signedOld
		out.MemToReg = true
		return out, nil

	case inst.IsLoad():
		v, err := p.Mem.Read(exmem.ALUResult, inst.MemWidth)
		if err != nil {
			return out, fmt.Errorf("pipeline: load at pc 0x%x: %w", exmem.PC, err)
		}
		out.MemData = signExtendMem(v, inst.MemWidth, inst.MemSigned, p.Width)
		return out, nil

	case inst.IsStore():
		if err := p.Mem.Write(exmem.ALUResult, inst.MemWidth, exmem.StoreValue); err != nil {
			return out, fmt.Errorf("pipeline: store at pc 0x%x: %w", exmem.PC, err)
		}
		return out, nil

	default:
		return out, nil
	}
}

// signExtendMem widens a narrow memory value read at the given width to
// the full register width, sign-extending if signed is set (LB/LH/LW as
// opposed to LBU/LHU/LWU) and zero-extending otherwise.
func signExtendMem(v uint64, width uint8, signed bool, w xlen.Width) uint64 {
	bits := uint(width) * 8
	if !signed || bits >= uint(w) {
		return w.Wrap(v)
	}
	shift := 64 - bits
	return w.Wrap(uint64(int64(v<<shift) >> shift))
}

// amoCompute applies an A-extension atomic-memory-operation's update
// function to the value loaded from memory (old, sign-extended to the
// register width) and the raw register operand (val); aw is the
// operation's width, at which both are compared and combined.
func amoCompute(op isa.Op, old, val uint64, aw xlen.Width) uint64 {
	switch op {
	case isa.OpAMOSWAPW, isa.OpAMOSWAPD:
		return val
	case isa.OpAMOADDW, isa.OpAMOADDD:
		return aw.Add(old, val)
	case isa.OpAMOXORW, isa.OpAMOXORD:
		return aw.Wrap(old ^ val)
	case isa.OpAMOANDW, isa.OpAMOANDD:
		return aw.Wrap(old & val)
	case isa.OpAMOORW, isa.OpAMOORD:
		return aw.Wrap(old | val)
	case isa.OpAMOMINW, isa.OpAMOMIND:
		if aw.LessSigned(old, val) {
			return old
		}
		return val
	case isa.OpAMOMAXW, isa.OpAMOMAXD:
		if aw.LessSigned(old, val) {
			return val
		}
		return old
	case isa.OpAMOMINUW, isa.OpAMOMINUD:
		if aw.LessUnsigned(old, val) {
			return old
		}
		return val
	case isa.OpAMOMAXUW, isa.OpAMOMAXUD:
		if aw.LessUnsigned(old, val) {
			return val
		}
		return old
	default:
		return old
	}
}

func (p *Pipeline) exStage(idex *IDEXRegister, exmem *EXMEMRegister, memwb *MEMWBRegister) EXMEMRegister {
	if !idex.Valid {
		return EXMEMRegister{}
	}

	fwd := p.hazard.DetectForwarding(idex, exmem, memwb)
	rs1 := idex.Rs1Value
	if idex.Rs1Used {
		rs1 = p.hazard.GetForwardedValue(fwd.ForwardRs1, idex.Rs1Value, exmem, memwb)
	}
	rs2 := idex.Rs2Value
	if idex.Rs2Used {
		rs2 = p.hazard.GetForwardedValue(fwd.ForwardRs2, idex.Rs2Value, exmem, memwb)
	}

	result := executeALU(idex.Inst, rs1, rs2, idex.PC, p.Width)

	inst := idex.Inst
	return EXMEMRegister{
		Valid:        true,
		PC:           idex.PC,
		Size:         idex.Size,
		Inst:         inst,
		ALUResult:    result.Value,
		StoreValue:   rs2,
		Rd:           inst.Rd,
		RegWrite:     inst.WritesRd(),
		MemRead:      inst.IsLoad(),
		MemWrite:     inst.IsStore(),
		MemToReg:     inst.IsLoad(),
		IsAMO:        inst.IsAMO(),
		IsLR:         inst.Op == isa.OpLRW || inst.Op == isa.OpLRD,
		IsSC:         inst.Op == isa.OpSCW || inst.Op == isa.OpSCD,
		BranchTaken:  result.BranchTaken,
		BranchTarget: result.BranchTarget,
	}
}

func (p *Pipeline) idStage(ifid *IFIDRegister, aheadIDEX *IDEXRegister) (IDEXRegister, bool, error) {
	if !ifid.Valid {
		return IDEXRegister{}, false, nil
	}

	inst, err := p.Decoder.Decode(ifid.Word, p.Width, p.Ext)
	if err != nil {
		return IDEXRegister{}, false, fmt.Errorf("pipeline: decode at pc 0x%x: %w", ifid.PC, err)
	}

	rs1Used := inst.UsesRs1()
	rs2Used := inst.UsesRs2()

	hazard := p.hazard.DetectLoadUseHazard(aheadIDEX, inst.Rs1, inst.Rs2, rs1Used, rs2Used)
	if hazard {
		return IDEXRegister{}, true, nil
	}

	var rs1Value, rs2Value uint64
	if rs1Used {
		rs1Value = p.Regs.Read(inst.Rs1)
	}
	if rs2Used {
		rs2Value = p.Regs.Read(inst.Rs2)
	}

	return IDEXRegister{
		Valid:    true,
		PC:       ifid.PC,
		Size:     ifid.Size,
		Inst:     inst,
		Rs1Value: rs1Value,
		Rs2Value: rs2Value,
		Rs1Used:  rs1Used,
		Rs2Used:  rs2Used,
	}, false, nil
}

func (p *Pipeline) fetchStage() (IFIDRegister, error) {
	pc := p.fetchPC

	low, err := p.Mem.Read(pc, 2)
	if err != nil {
		return IFIDRegister{}, fmt.Errorf("pipeline: fetch at pc 0x%x: %w", pc, err)
	}

	size, err := p.Decoder.Length(uint16(low), p.Ext)
	if err != nil {
		return IFIDRegister{}, fmt.Errorf("pipeline: fetch at pc 0x%x: %w", pc, err)
	}

	word := low
	if size == 4 {
		high, err := p.Mem.Read(pc+2, 2)
		if err != nil {
			return IFIDRegister{}, fmt.Errorf("pipeline: fetch at pc 0x%x: %w", pc, err)
		}
		word = low | high<<16
	}

	p.fetchPC = pc + size

	return IFIDRegister{Valid: true, PC: pc, Word: uint32(word), Size: size}, nil
}
