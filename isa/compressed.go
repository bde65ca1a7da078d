package isa

import "github.com/clabby/brisc/xlen"

// Compressed (RVC) decoding: 16-bit encodings are expanded to their
// 32-bit-equivalent DecodedInstruction, with Size left at 2 so the
// pipeline advances pc by 2 instead of 4 (spec.md §4.1 "Compressed
// decoding"). Field names below (funct3c, rd2, rs1p, ...) mirror the
// RVC quadrant/format layout from the RISC-V ISA manual.

// cReg expands a 3-bit compressed register field (x8-x15) to a full index.
func cReg(v uint16) uint8 { return uint8(v&0x7) + 8 }

func funct3c(w uint16) uint16 { return (w >> 13) & 0x7 }
func quadrant(w uint16) uint16 { return w & 0x3 }

func (d *Decoder) decodeCompressed(w uint16, xl xlen.Width) (*DecodedInstruction, error) {
	if w == 0 {
		return nil, ErrReserved
	}

	var inst *DecodedInstruction
	var err error

	switch quadrant(w) {
	case 0b00:
		inst, err = d.decodeCQ0(w, xl)
	case 0b01:
		inst, err = d.decodeCQ1(w, xl)
	case 0b10:
		inst, err = d.decodeCQ2(w, xl)
	default:
		return nil, ErrReserved
	}
	if err != nil {
		return nil, err
	}
	inst.Size = 2
	return inst, nil
}

// decodeCQ0 handles quadrant 0: C.ADDI4SPN, C.LW, C.LD, C.SW, C.SD (and
// the reserved C.LQ/C.FLD/C.FSD/C.FLW/C.FSW slots, which this emulator
// does not implement float/vector extensions for and treats as illegal).
func (d *Decoder) decodeCQ0(w uint16, xl xlen.Width) (*DecodedInstruction, error) {
	rdp := cReg(w >> 2)
	rs1p := cReg(w >> 7)

	switch funct3c(w) {
	case 0b000: // C.ADDI4SPN
		nzuimm := ((w>>11)&0x3)<<4 | ((w>>7)&0xf)<<6 | ((w>>6)&0x1)<<2 | ((w>>5)&0x1)<<3
		if nzuimm == 0 {
			return nil, ErrReserved
		}
		return &DecodedInstruction{Op: OpADDI, Format: FormatI, Rd: rdp, Rs1: 2, Imm: int64(nzuimm)}, nil

	case 0b010: // C.LW
		off := ((w>>6)&0x1)<<2 | ((w>>10)&0x7)<<3 | ((w>>5)&0x1)<<6
		return &DecodedInstruction{Op: OpLW, Format: FormatI, Rd: rdp, Rs1: rs1p, Imm: int64(off), MemWidth: 4, MemSigned: true}, nil

	case 0b011: // C.LD (RV64)
		if xl != xlen.W64 {
			return nil, ErrReserved
		}
		off := ((w>>10)&0x7)<<3 | ((w>>5)&0x3)<<6
		return &DecodedInstruction{Op: OpLD, Format: FormatI, Rd: rdp, Rs1: rs1p, Imm: int64(off), MemWidth: 8, MemSigned: true}, nil

	case 0b110: // C.SW
		off := ((w>>6)&0x1)<<2 | ((w>>10)&0x7)<<3 | ((w>>5)&0x1)<<6
		return &DecodedInstruction{Op: OpSW, Format: FormatS, Rs1: rs1p, Rs2: rdp, Imm: int64(off), MemWidth: 4}, nil

	case 0b111: // C.SD (RV64)
		if xl != xlen.W64 {
			return nil, ErrReserved
		}
		off := ((w>>10)&0x7)<<3 | ((w>>5)&0x3)<<6
		return &DecodedInstruction{Op: OpSD, Format: FormatS, Rs1: rs1p, Rs2: rdp, Imm: int64(off), MemWidth: 8}, nil

	default:
		return nil, ErrReserved
	}
}

// decodeCQ1 handles quadrant 1: C.ADDI/C.NOP, C.ADDIW, C.LI, C.ADDI16SP,
// C.LUI, C.SRLI/C.SRAI/C.ANDI/C.SUB/C.XOR/C.OR/C.AND/C.SUBW/C.ADDW (CA/CB
// format), C.J, C.BEQZ, C.BNEZ.
func (d *Decoder) decodeCQ1(w uint16, xl xlen.Width) (*DecodedInstruction, error) {
	rd5 := uint8((w >> 7) & 0x1f)

	switch funct3c(w) {
	case 0b000: // C.ADDI (incl. C.NOP when rd==0, imm==0)
		imm := cImm6(w)
		return &DecodedInstruction{Op: OpADDI, Format: FormatI, Rd: rd5, Rs1: rd5, Imm: imm}, nil

	case 0b001: // C.ADDIW (RV64 only; C.JAL on RV32, not modeled since RV32 JAL covers calls)
		if xl != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		if rd5 == 0 {
			return nil, ErrReserved
		}
		imm := cImm6(w)
		return &DecodedInstruction{Op: OpADDIW, Format: FormatI, Rd: rd5, Rs1: rd5, Imm: imm, Is32BitOp: true}, nil

	case 0b010: // C.LI
		imm := cImm6(w)
		return &DecodedInstruction{Op: OpADDI, Format: FormatI, Rd: rd5, Rs1: 0, Imm: imm}, nil

	case 0b011:
		if rd5 == 2 { // C.ADDI16SP
			nz := ((w>>6)&0x1)<<4 | ((w>>2)&0x1)<<5 | ((w>>5)&0x1)<<6 | ((w>>3)&0x3)<<7 | ((w>>12)&0x1)<<9
			imm := signExtend(uint32(nz), 10)
			if imm == 0 {
				return nil, ErrReserved
			}
			return &DecodedInstruction{Op: OpADDI, Format: FormatI, Rd: 2, Rs1: 2, Imm: imm}, nil
		}
		// C.LUI
		if rd5 == 0 {
			return nil, ErrReserved
		}
		nz := ((w>>2)&0x1f)<<12 | ((w>>12)&0x1)<<17
		imm := signExtend(uint32(nz), 18)
		if imm == 0 {
			return nil, ErrReserved
		}
		return &DecodedInstruction{Op: OpLUI, Format: FormatU, Rd: rd5, Imm: imm}, nil

	case 0b100:
		return d.decodeCQ1Misc(w, xl)

	case 0b101: // C.J
		return &DecodedInstruction{Op: OpJAL, Format: FormatJ, Rd: 0, Imm: cJumpOffset(w)}, nil

	case 0b110: // C.BEQZ
		rs1p := cReg(w >> 7)
		return &DecodedInstruction{Op: OpBEQ, Format: FormatB, Rs1: rs1p, Rs2: 0, Imm: cBranchOffset(w)}, nil

	case 0b111: // C.BNEZ
		rs1p := cReg(w >> 7)
		return &DecodedInstruction{Op: OpBNE, Format: FormatB, Rs1: rs1p, Rs2: 0, Imm: cBranchOffset(w)}, nil

	default:
		return nil, ErrReserved
	}
}

// decodeCQ1Misc handles the CB/CA-format funct3=100 block: C.SRLI,
// C.SRAI, C.ANDI, and the CA-format register-register ops (C.SUB, C.XOR,
// C.OR, C.AND, C.SUBW, C.ADDW).
func (d *Decoder) decodeCQ1Misc(w uint16, xl xlen.Width) (*DecodedInstruction, error) {
	rdp := cReg(w >> 7)
	top2 := (w >> 10) & 0x3

	switch top2 {
	case 0b00: // C.SRLI
		shamtVal := cShamt(w)
		return &DecodedInstruction{Op: OpSRLI, Format: FormatI, Rd: rdp, Rs1: rdp, Imm: int64(shamtVal)}, nil
	case 0b01: // C.SRAI
		shamtVal := cShamt(w)
		return &DecodedInstruction{Op: OpSRAI, Format: FormatI, Rd: rdp, Rs1: rdp, Imm: int64(shamtVal)}, nil
	case 0b10: // C.ANDI
		imm := cImm6(w)
		return &DecodedInstruction{Op: OpANDI, Format: FormatI, Rd: rdp, Rs1: rdp, Imm: imm}, nil
	case 0b11:
		rs2p := cReg(w >> 2)
		wide := (w>>12)&0x1 != 0
		switch (w >> 5) & 0x3 {
		case 0b00:
			if wide {
				if xl != xlen.W64 {
					return nil, ErrUnsupportedExtension
				}
				return &DecodedInstruction{Op: OpSUBW, Format: FormatR, Rd: rdp, Rs1: rdp, Rs2: rs2p, Is32BitOp: true}, nil
			}
			return &DecodedInstruction{Op: OpSUB, Format: FormatR, Rd: rdp, Rs1: rdp, Rs2: rs2p}, nil
		case 0b01:
			if wide {
				if xl != xlen.W64 {
					return nil, ErrUnsupportedExtension
				}
				return &DecodedInstruction{Op: OpADDW, Format: FormatR, Rd: rdp, Rs1: rdp, Rs2: rs2p, Is32BitOp: true}, nil
			}
			return &DecodedInstruction{Op: OpXOR, Format: FormatR, Rd: rdp, Rs1: rdp, Rs2: rs2p}, nil
		case 0b10:
			if wide {
				return nil, ErrReserved
			}
			return &DecodedInstruction{Op: OpOR, Format: FormatR, Rd: rdp, Rs1: rdp, Rs2: rs2p}, nil
		case 0b11:
			if wide {
				return nil, ErrReserved
			}
			return &DecodedInstruction{Op: OpAND, Format: FormatR, Rd: rdp, Rs1: rdp, Rs2: rs2p}, nil
		}
	}
	return nil, ErrReserved
}

// decodeCQ2 handles quadrant 2: C.SLLI, C.LWSP, C.LDSP, C.JR, C.MV,
// C.EBREAK, C.JALR, C.ADD, C.SWSP, C.SDSP.
func (d *Decoder) decodeCQ2(w uint16, xl xlen.Width) (*DecodedInstruction, error) {
	rd5 := uint8((w >> 7) & 0x1f)
	rs2 := uint8((w >> 2) & 0x1f)

	switch funct3c(w) {
	case 0b000: // C.SLLI
		shamtVal := cShamt(w)
		return &DecodedInstruction{Op: OpSLLI, Format: FormatI, Rd: rd5, Rs1: rd5, Imm: int64(shamtVal)}, nil

	case 0b010: // C.LWSP
		if rd5 == 0 {
			return nil, ErrReserved
		}
		off := ((w>>4)&0x7)<<2 | ((w>>12)&0x1)<<5 | ((w>>2)&0x3)<<6
		return &DecodedInstruction{Op: OpLW, Format: FormatI, Rd: rd5, Rs1: 2, Imm: int64(off), MemWidth: 4, MemSigned: true}, nil

	case 0b011: // C.LDSP (RV64)
		if xl != xlen.W64 || rd5 == 0 {
			return nil, ErrReserved
		}
		off := ((w>>5)&0x3)<<3 | ((w>>12)&0x1)<<5 | ((w>>2)&0x7)<<6
		return &DecodedInstruction{Op: OpLD, Format: FormatI, Rd: rd5, Rs1: 2, Imm: int64(off), MemWidth: 8, MemSigned: true}, nil

	case 0b100:
		bit12 := (w >> 12) & 0x1
		if bit12 == 0 {
			if rs2 == 0 { // C.JR
				if rd5 == 0 {
					return nil, ErrReserved
				}
				return &DecodedInstruction{Op: OpJALR, Format: FormatI, Rd: 0, Rs1: rd5, Imm: 0}, nil
			}
			// C.MV
			return &DecodedInstruction{Op: OpADD, Format: FormatR, Rd: rd5, Rs1: 0, Rs2: rs2}, nil
		}
		if rd5 == 0 && rs2 == 0 { // C.EBREAK
			return &DecodedInstruction{Op: OpEBREAK, Format: FormatSystem}, nil
		}
		if rs2 == 0 { // C.JALR
			return &DecodedInstruction{Op: OpJALR, Format: FormatI, Rd: 1, Rs1: rd5, Imm: 0}, nil
		}
		// C.ADD
		return &DecodedInstruction{Op: OpADD, Format: FormatR, Rd: rd5, Rs1: rd5, Rs2: rs2}, nil

	case 0b110: // C.SWSP
		off := ((w>>9)&0xf)<<2 | ((w>>7)&0x3)<<6
		return &DecodedInstruction{Op: OpSW, Format: FormatS, Rs1: 2, Rs2: rs2, Imm: int64(off), MemWidth: 4}, nil

	case 0b111: // C.SDSP (RV64)
		if xl != xlen.W64 {
			return nil, ErrReserved
		}
		off := ((w>>10)&0x7)<<3 | ((w>>7)&0x7)<<6
		return &DecodedInstruction{Op: OpSD, Format: FormatS, Rs1: 2, Rs2: rs2, Imm: int64(off), MemWidth: 8}, nil

	default:
		return nil, ErrReserved
	}
}

// cImm6 decodes the common 6-bit sign-extended immediate found in
// C.ADDI/C.ADDIW/C.LI/C.ANDI: {w[12], w[6:2]}.
func cImm6(w uint16) int64 {
	v := ((w>>12)&0x1)<<5 | (w>>2)&0x1f
	return signExtend(uint32(v), 6)
}

// cShamt decodes the 6-bit shift amount used by C.SLLI/C.SRLI/C.SRAI.
func cShamt(w uint16) uint32 {
	return uint32((w>>12)&0x1)<<5 | uint32((w>>2)&0x1f)
}

// cJumpOffset decodes the C.J/C.JAL 11-bit signed jump offset.
func cJumpOffset(w uint16) int64 {
	v := uint32((w>>3)&0x7)<<1 |
		uint32((w>>11)&0x1)<<4 |
		uint32((w>>2)&0x1)<<5 |
		uint32((w>>7)&0x1)<<6 |
		uint32((w>>6)&0x1)<<7 |
		uint32((w>>9)&0x3)<<8 |
		uint32((w>>8)&0x1)<<10 |
		uint32((w>>12)&0x1)<<11
	return signExtend(v, 12)
}

// cBranchOffset decodes the C.BEQZ/C.BNEZ 8-bit signed branch offset.
func cBranchOffset(w uint16) int64 {
	v := uint32((w>>3)&0x3)<<1 |
		uint32((w>>10)&0x3)<<3 |
		uint32((w>>2)&0x1)<<5 |
		uint32((w>>5)&0x3)<<6 |
		uint32((w>>12)&0x1)<<8
	return signExtend(v, 9)
}
