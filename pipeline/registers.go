// Package pipeline implements the 5-stage in-order IF/ID/EX/MEM/WB
// pipeline described in spec.md §4.4, with load-use stalling, EX/MEM and
// MEM/WB forwarding, and branch/jump squash on redirect.
package pipeline

import "github.com/clabby/brisc/isa"

// IFIDRegister holds state latched between Fetch and Decode.
type IFIDRegister struct {
	Valid bool
	PC    uint64
	Word  uint32
	Size  uint64
}

// Clear invalidates the register, turning it into a pipeline bubble.
func (r *IFIDRegister) Clear() { *r = IFIDRegister{} }

// IDEXRegister holds state latched between Decode and Execute.
type IDEXRegister struct {
	Valid bool
	PC    uint64
	Size  uint64
	Inst  *isa.DecodedInstruction

	Rs1Value uint64
	Rs2Value uint64

	Rs1Used bool
	Rs2Used bool
}

// Clear invalidates the register, turning it into a pipeline bubble.
func (r *IDEXRegister) Clear() { *r = IDEXRegister{} }

// EXMEMRegister holds state latched between Execute and Memory.
type EXMEMRegister struct {
	Valid bool
	PC    uint64
	Size  uint64
	Inst  *isa.DecodedInstruction

	ALUResult  uint64 // effective address for loads/stores/AMOs, computed result otherwise
	StoreValue uint64

	Rd       uint8
	RegWrite bool
	MemRead  bool
	MemWrite bool
	MemToReg bool

	IsAMO bool
	IsLR  bool
	IsSC  bool

	BranchTaken  bool
	BranchTarget uint64
}

// Clear invalidates the register, turning it into a pipeline bubble.
func (r *EXMEMRegister) Clear() { *r = EXMEMRegister{} }

// MEMWBRegister holds state latched between Memory and Writeback.
type MEMWBRegister struct {
	Valid bool
	PC    uint64
	Inst  *isa.DecodedInstruction

	ALUResult uint64
	MemData   uint64

	Rd       uint8
	RegWrite bool
	MemToReg bool
}

// Clear invalidates the register, turning it into a pipeline bubble.
func (r *MEMWBRegister) Clear() { *r = MEMWBRegister{} }
