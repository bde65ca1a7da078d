package pipeline

import (
	"github.com/clabby/brisc/isa"
	"github.com/clabby/brisc/xlen"
)

// aluResult is the EX stage's output: a computed value (register result,
// memory effective address, or link address) plus an optional branch
// redirect.
type aluResult struct {
	Value        uint64
	BranchTaken  bool
	BranchTarget uint64
}

// executeALU evaluates the arithmetic/comparison/address-computation
// portion of EX for a decoded instruction. Memory-system effects (the
// actual load/store/AMO access) happen in the MEM stage against the
// address this returns in Value.
func executeALU(inst *isa.DecodedInstruction, rs1, rs2, pc uint64, w xlen.Width) aluResult {
	opw := w
	if inst.Is32BitOp {
		opw = xlen.W32
	}

	switch inst.Op {
	case isa.OpADD:
		return aluResult{Value: w.Add(rs1, rs2)}
	case isa.OpADDI:
		return aluResult{Value: w.Add(rs1, uint64(inst.Imm))}
	case isa.OpADDW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Add(rs1, rs2)))}
	case isa.OpADDIW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Add(rs1, uint64(inst.Imm))))}
	case isa.OpSUB:
		return aluResult{Value: w.Sub(rs1, rs2)}
	case isa.OpSUBW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Sub(rs1, rs2)))}

	case isa.OpAND:
		return aluResult{Value: w.Wrap(rs1 & rs2)}
	case isa.OpANDI:
		return aluResult{Value: w.Wrap(rs1 & uint64(inst.Imm))}
	case isa.OpOR:
		return aluResult{Value: w.Wrap(rs1 | rs2)}
	case isa.OpORI:
		return aluResult{Value: w.Wrap(rs1 | uint64(inst.Imm))}
	case isa.OpXOR:
		return aluResult{Value: w.Wrap(rs1 ^ rs2)}
	case isa.OpXORI:
		return aluResult{Value: w.Wrap(rs1 ^ uint64(inst.Imm))}

	case isa.OpSLL:
		return aluResult{Value: w.Sll(rs1, rs2)}
	case isa.OpSLLI:
		return aluResult{Value: w.Sll(rs1, uint64(inst.Imm))}
	case isa.OpSRL:
		return aluResult{Value: w.Srl(rs1, rs2)}
	case isa.OpSRLI:
		return aluResult{Value: w.Srl(rs1, uint64(inst.Imm))}
	case isa.OpSRA:
		return aluResult{Value: w.Sra(rs1, rs2)}
	case isa.OpSRAI:
		return aluResult{Value: w.Sra(rs1, uint64(inst.Imm))}
	case isa.OpSLLW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Sll(rs1, rs2)))}
	case isa.OpSLLIW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Sll(rs1, uint64(inst.Imm))))}
	case isa.OpSRLW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Srl(rs1, rs2)))}
	case isa.OpSRLIW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Srl(rs1, uint64(inst.Imm))))}
	case isa.OpSRAW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Sra(rs1, rs2)))}
	case isa.OpSRAIW:
		return aluResult{Value: w.FromSigned(opw.Signed(opw.Sra(rs1, uint64(inst.Imm))))}

	case isa.OpSLT:
		return aluResult{Value: boolToReg(w.LessSigned(rs1, rs2))}
	case isa.OpSLTI:
		return aluResult{Value: boolToReg(w.LessSigned(rs1, uint64(inst.Imm)))}
	case isa.OpSLTU:
		return aluResult{Value: boolToReg(w.LessUnsigned(rs1, rs2))}
	case isa.OpSLTIU:
		return aluResult{Value: boolToReg(w.LessUnsigned(rs1, uint64(inst.Imm)))}

	case isa.OpMUL:
		return aluResult{Value: w.Wrap(rs1 * rs2)}
	case isa.OpMULW:
		v := uint32(rs1) * uint32(rs2)
		return aluResult{Value: w.FromSigned(int64(int32(v)))}
	case isa.OpMULH:
		return aluResult{Value: mulHigh(rs1, rs2, w, true, true)}
	case isa.OpMULHSU:
		return aluResult{Value: mulHigh(rs1, rs2, w, true, false)}
	case isa.OpMULHU:
		return aluResult{Value: mulHigh(rs1, rs2, w, false, false)}

	case isa.OpDIV:
		q, _ := w.DivS(rs1, rs2)
		return aluResult{Value: q}
	case isa.OpDIVU:
		q, _ := w.DivU(rs1, rs2)
		return aluResult{Value: q}
	case isa.OpREM:
		return aluResult{Value: w.RemS(rs1, rs2)}
	case isa.OpREMU:
		return aluResult{Value: w.RemU(rs1, rs2)}
	case isa.OpDIVW:
		q, _ := opw.DivS(rs1, rs2)
		return aluResult{Value: w.FromSigned(opw.Signed(q))}
	case isa.OpDIVUW:
		q, _ := opw.DivU(rs1, rs2)
		return aluResult{Value: w.FromSigned(opw.Signed(q))}
	case isa.OpREMW:
		r := opw.RemS(rs1, rs2)
		return aluResult{Value: w.FromSigned(opw.Signed(r))}
	case isa.OpREMUW:
		r := opw.RemU(rs1, rs2)
		return aluResult{Value: w.FromSigned(opw.Signed(r))}

	case isa.OpLUI:
		return aluResult{Value: w.Wrap(uint64(inst.Imm))}
	case isa.OpAUIPC:
		return aluResult{Value: w.Add(pc, uint64(inst.Imm))}

	case isa.OpJAL:
		return aluResult{Value: w.Add(pc, inst.Size), BranchTaken: true, BranchTarget: w.Add(pc, uint64(inst.Imm))}
	case isa.OpJALR:
		target := w.Wrap((rs1+uint64(inst.Imm))&^1)
		return aluResult{Value: w.Add(pc, inst.Size), BranchTaken: true, BranchTarget: target}

	case isa.OpBEQ:
		return branchResult(rs1 == rs2, pc, inst, w)
	case isa.OpBNE:
		return branchResult(rs1 != rs2, pc, inst, w)
	case isa.OpBLT:
		return branchResult(w.LessSigned(rs1, rs2), pc, inst, w)
	case isa.OpBGE:
		return branchResult(!w.LessSigned(rs1, rs2), pc, inst, w)
	case isa.OpBLTU:
		return branchResult(w.LessUnsigned(rs1, rs2), pc, inst, w)
	case isa.OpBGEU:
		return branchResult(!w.LessUnsigned(rs1, rs2), pc, inst, w)

	case isa.OpLB, isa.OpLH, isa.OpLW, isa.OpLD, isa.OpLBU, isa.OpLHU, isa.OpLWU,
		isa.OpSB, isa.OpSH, isa.OpSW, isa.OpSD:
		return aluResult{Value: w.Add(rs1, uint64(inst.Imm))}

	default:
		if inst.IsAMO() || inst.Op == isa.OpLRW || inst.Op == isa.OpLRD {
			return aluResult{Value: rs1}
		}
		// FENCE/FENCE.I/ECALL/EBREAK carry no ALU result.
		return aluResult{}
	}
}

func branchResult(taken bool, pc uint64, inst *isa.DecodedInstruction, w xlen.Width) aluResult {
	if !taken {
		return aluResult{}
	}
	return aluResult{BranchTaken: true, BranchTarget: w.Add(pc, uint64(inst.Imm))}
}

func boolToReg(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func mulHigh(rs1, rs2 uint64, w xlen.Width, signed1, signed2 bool) uint64 {
	if w == xlen.W32 {
		a, b := uint32(rs1), uint32(rs2)
		switch {
		case signed1 && signed2:
			return w.Wrap(uint64(uint32(xlen.Mul32HiSigned(int32(a), int32(b)))))
		case signed1 && !signed2:
			return w.Wrap(uint64(uint32(xlen.Mul32HiSignedUnsigned(int32(a), b))))
		default:
			return w.Wrap(uint64(xlen.Mul32HiUnsigned(a, b)))
		}
	}
	switch {
	case signed1 && signed2:
		return uint64(xlen.Mul64HiSigned(int64(rs1), int64(rs2)))
	case signed1 && !signed2:
		return uint64(xlen.Mul64HiSignedUnsigned(int64(rs1), rs2))
	default:
		return xlen.Mul64HiUnsigned(rs1, rs2)
	}
}
