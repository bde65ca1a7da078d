package pipeline

// HazardUnit detects data hazards between in-flight instructions and
// decides forwarding/stalling, mirroring a textbook 5-stage forwarding
// unit: EX/MEM results have priority over MEM/WB results since they are
// one cycle fresher (spec.md §4.4 "Hazard handling").
type HazardUnit struct{}

// NewHazardUnit creates a hazard detection/forwarding unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// ForwardingSource names where an operand's value should come from.
type ForwardingSource uint8

const (
	ForwardNone ForwardingSource = iota
	ForwardFromEXMEM
	ForwardFromMEMWB
)

// ForwardingResult carries the forwarding decision for both operands of
// the instruction currently in ID/EX.
type ForwardingResult struct {
	ForwardRs1 ForwardingSource
	ForwardRs2 ForwardingSource
}

// DetectForwarding decides, for the instruction latched in idex, whether
// either source operand should be forwarded from a later stage instead
// of the register file value read at decode time.
func (h *HazardUnit) DetectForwarding(idex *IDEXRegister, exmem *EXMEMRegister, memwb *MEMWBRegister) ForwardingResult {
	var result ForwardingResult
	if !idex.Valid {
		return result
	}

	if idex.Rs1Used && idex.Inst.Rs1 != 0 {
		result.ForwardRs1 = forwardingSourceFor(idex.Inst.Rs1, exmem, memwb)
	}
	if idex.Rs2Used && idex.Inst.Rs2 != 0 {
		result.ForwardRs2 = forwardingSourceFor(idex.Inst.Rs2, exmem, memwb)
	}
	return result
}

func forwardingSourceFor(reg uint8, exmem *EXMEMRegister, memwb *MEMWBRegister) ForwardingSource {
	if exmem.Valid && exmem.RegWrite && exmem.Rd == reg && exmem.Rd != 0 {
		return ForwardFromEXMEM
	}
	if memwb.Valid && memwb.RegWrite && memwb.Rd == reg && memwb.Rd != 0 {
		return ForwardFromMEMWB
	}
	return ForwardNone
}

// GetForwardedValue resolves a ForwardingSource into the concrete value
// to use in place of a stale register-file read.
func (h *HazardUnit) GetForwardedValue(source ForwardingSource, original uint64, exmem *EXMEMRegister, memwb *MEMWBRegister) uint64 {
	switch source {
	case ForwardFromEXMEM:
		return exmem.ALUResult
	case ForwardFromMEMWB:
		if memwb.MemToReg {
			return memwb.MemData
		}
		return memwb.ALUResult
	default:
		return original
	}
}

// DetectLoadUseHazard reports whether the load currently in ID/EX
// produces a value the instruction currently in IF/ID (already decoded
// for hazard-checking purposes) needs, which forwarding cannot resolve
// because the loaded value isn't available until after MEM.
func (h *HazardUnit) DetectLoadUseHazard(idex *IDEXRegister, nextRs1, nextRs2 uint8, nextRs1Used, nextRs2Used bool) bool {
	if !idex.Valid || idex.Inst == nil || !idex.Inst.IsLoad() {
		return false
	}
	rd := idex.Inst.Rd
	if rd == 0 {
		return false
	}
	if nextRs1Used && nextRs1 == rd {
		return true
	}
	if nextRs2Used && nextRs2 == rd {
		return true
	}
	return false
}

// StallResult describes the pipeline-control actions a Tick must take.
type StallResult struct {
	StallIF        bool
	StallID        bool
	InsertBubbleEX bool
	FlushIF        bool
	FlushID        bool
}

// ComputeStalls combines a load-use hazard and a taken-branch signal
// into the concrete stall/flush actions for this cycle.
func (h *HazardUnit) ComputeStalls(loadUseHazard, branchTaken bool) StallResult {
	var result StallResult
	if loadUseHazard {
		result.StallIF = true
		result.StallID = true
		result.InsertBubbleEX = true
	}
	if branchTaken {
		result.FlushIF = true
		result.FlushID = true
	}
	return result
}
