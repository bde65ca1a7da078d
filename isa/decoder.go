package isa

import "github.com/clabby/brisc/xlen"

// Decoder turns a RISC-V encoded word into a DecodedInstruction. It is a
// pure function of (word, xlen, extensions): no state, no side effects,
// which keeps it trivially unit-testable and shareable (spec.md §4.1
// rationale).
type Decoder struct{}

// NewDecoder creates a new RISC-V instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes one instruction. word holds a 16-bit compressed encoding
// in its low 16 bits (high bits ignored) when the low two bits are not
// both 1, or a full 32-bit encoding otherwise, per the standard RISC-V
// length-encoding scheme (spec.md §4.1 "Length determination").
func (d *Decoder) Decode(word uint32, w xlen.Width, ext Extensions) (*DecodedInstruction, error) {
	low2 := word & 0x3
	if low2 != 0b11 {
		if !ext.Has(ExtC) {
			return nil, ErrUnsupportedExtension
		}
		return d.decodeCompressed(uint16(word), w)
	}

	if (word>>2)&0x7 == 0b111 {
		// 48-bit-or-longer encodings are reserved; not supported.
		return nil, ErrIllegalOpcode
	}

	inst, err := d.decode32(word, w, ext)
	if err != nil {
		return nil, err
	}
	inst.Size = 4
	return inst, nil
}

// Length reports the encoded instruction length (2 or 4 bytes) given only
// the first 16 bits fetched at pc, without fully decoding the instruction.
// The fetch stage uses this to decide whether a second halfword must be
// read before decoding.
func (d *Decoder) Length(low16 uint16, ext Extensions) (uint64, error) {
	if low16&0x3 != 0b11 {
		if !ext.Has(ExtC) {
			return 0, ErrUnsupportedExtension
		}
		return 2, nil
	}
	if (low16>>2)&0x7 == 0b111 {
		return 0, ErrIllegalOpcode
	}
	return 4, nil
}

func (d *Decoder) decode32(word uint32, w xlen.Width, ext Extensions) (*DecodedInstruction, error) {
	switch opcode(word) {
	case opLui:
		return &DecodedInstruction{Op: OpLUI, Format: FormatU, Rd: rd(word), Imm: immU(word)}, nil

	case opAuipc:
		return &DecodedInstruction{Op: OpAUIPC, Format: FormatU, Rd: rd(word), Imm: immU(word)}, nil

	case opJal:
		return &DecodedInstruction{Op: OpJAL, Format: FormatJ, Rd: rd(word), Imm: immJ(word)}, nil

	case opJalr:
		if funct3(word) != 0 {
			return nil, ErrIllegalOpcode
		}
		return &DecodedInstruction{Op: OpJALR, Format: FormatI, Rd: rd(word), Rs1: rs1(word), Imm: immI(word)}, nil

	case opBranch:
		return d.decodeBranch(word)

	case opLoad:
		return d.decodeLoad(word, w)

	case opStore:
		return d.decodeStore(word, w)

	case opOpImm:
		return d.decodeOpImm(word, w)

	case opOpImm32:
		if w != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		return d.decodeOpImm32(word)

	case opOp:
		return d.decodeOp(word, ext)

	case opOp32:
		if w != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		return d.decodeOp32(word, ext)

	case opMiscMem:
		return d.decodeFence(word)

	case opSystem:
		return d.decodeSystem(word)

	case opAmo:
		if !ext.Has(ExtA) {
			return nil, ErrUnsupportedExtension
		}
		return d.decodeAmo(word, w)

	default:
		return nil, ErrIllegalOpcode
	}
}

func (d *Decoder) decodeBranch(word uint32) (*DecodedInstruction, error) {
	var op Op
	switch funct3(word) {
	case 0b000:
		op = OpBEQ
	case 0b001:
		op = OpBNE
	case 0b100:
		op = OpBLT
	case 0b101:
		op = OpBGE
	case 0b110:
		op = OpBLTU
	case 0b111:
		op = OpBGEU
	default:
		return nil, ErrReserved
	}
	return &DecodedInstruction{
		Op: op, Format: FormatB, Funct3: funct3(word),
		Rs1: rs1(word), Rs2: rs2(word), Imm: immB(word),
	}, nil
}

func (d *Decoder) decodeLoad(word uint32, w xlen.Width) (*DecodedInstruction, error) {
	f3 := funct3(word)
	var op Op
	var width uint8
	var signed bool
	switch f3 {
	case 0b000:
		op, width, signed = OpLB, 1, true
	case 0b001:
		op, width, signed = OpLH, 2, true
	case 0b010:
		op, width, signed = OpLW, 4, true
	case 0b011:
		if w != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		op, width, signed = OpLD, 8, true
	case 0b100:
		op, width, signed = OpLBU, 1, false
	case 0b101:
		op, width, signed = OpLHU, 2, false
	case 0b110:
		if w != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		op, width, signed = OpLWU, 4, false
	default:
		return nil, ErrReserved
	}
	return &DecodedInstruction{
		Op: op, Format: FormatI, Funct3: f3, Rd: rd(word), Rs1: rs1(word),
		Imm: immI(word), MemWidth: width, MemSigned: signed,
	}, nil
}

func (d *Decoder) decodeStore(word uint32, w xlen.Width) (*DecodedInstruction, error) {
	f3 := funct3(word)
	var op Op
	var width uint8
	switch f3 {
	case 0b000:
		op, width = OpSB, 1
	case 0b001:
		op, width = OpSH, 2
	case 0b010:
		op, width = OpSW, 4
	case 0b011:
		if w != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		op, width = OpSD, 8
	default:
		return nil, ErrReserved
	}
	return &DecodedInstruction{
		Op: op, Format: FormatS, Funct3: f3, Rs1: rs1(word), Rs2: rs2(word),
		Imm: immS(word), MemWidth: width,
	}, nil
}

func (d *Decoder) decodeOpImm(word uint32, w xlen.Width) (*DecodedInstruction, error) {
	f3 := funct3(word)
	base := &DecodedInstruction{Format: FormatI, Funct3: f3, Rd: rd(word), Rs1: rs1(word), Imm: immI(word)}
	switch f3 {
	case 0b000:
		base.Op = OpADDI
	case 0b010:
		base.Op = OpSLTI
	case 0b011:
		base.Op = OpSLTIU
	case 0b100:
		base.Op = OpXORI
	case 0b110:
		base.Op = OpORI
	case 0b111:
		base.Op = OpANDI
	case 0b001:
		if funct7(word)&0x7e != 0 {
			return nil, ErrReserved
		}
		base.Op = OpSLLI
		base.Imm = int64(shamt(word, w))
	case 0b101:
		switch {
		case isZeroTopShamtBit(word, w, false):
			base.Op = OpSRLI
		case isZeroTopShamtBit(word, w, true):
			base.Op = OpSRAI
		default:
			return nil, ErrReserved
		}
		base.Imm = int64(shamt(word, w))
	default:
		return nil, ErrReserved
	}
	return base, nil
}

// shamt extracts the shift amount, 5 bits for RV32 (bit 25 must be 0) and
// 6 bits for RV64.
func shamt(word uint32, w xlen.Width) uint32 {
	if w == xlen.W64 {
		return (word >> 20) & 0x3f
	}
	return (word >> 20) & 0x1f
}

// isZeroTopShamtBit checks the funct7 top bit that distinguishes SRAI
// from SRLI (bit 30), and validates bit 25 is clear for RV32.
func isZeroTopShamtBit(word uint32, w xlen.Width, arithmetic bool) bool {
	top := (word >> 30) & 1
	if w != xlen.W64 && (word>>25)&1 != 0 {
		return false
	}
	if arithmetic {
		return top == 1
	}
	return top == 0
}

func (d *Decoder) decodeOpImm32(word uint32) (*DecodedInstruction, error) {
	f3 := funct3(word)
	base := &DecodedInstruction{Format: FormatI, Funct3: f3, Rd: rd(word), Rs1: rs1(word), Is32BitOp: true}
	switch f3 {
	case 0b000:
		base.Op = OpADDIW
		base.Imm = immI(word)
	case 0b001:
		if funct7(word) != 0 {
			return nil, ErrReserved
		}
		base.Op = OpSLLIW
		base.Imm = int64((word >> 20) & 0x1f)
	case 0b101:
		f7 := funct7(word)
		switch f7 {
		case 0b0000000:
			base.Op = OpSRLIW
		case 0b0100000:
			base.Op = OpSRAIW
		default:
			return nil, ErrReserved
		}
		base.Imm = int64((word >> 20) & 0x1f)
	default:
		return nil, ErrReserved
	}
	return base, nil
}

func (d *Decoder) decodeOp(word uint32, ext Extensions) (*DecodedInstruction, error) {
	f3, f7 := funct3(word), funct7(word)
	base := &DecodedInstruction{Format: FormatR, Funct3: f3, Rd: rd(word), Rs1: rs1(word), Rs2: rs2(word)}

	if f7 == 0b0000001 {
		if !ext.Has(ExtM) {
			return nil, ErrUnsupportedExtension
		}
		switch f3 {
		case 0b000:
			base.Op = OpMUL
		case 0b001:
			base.Op = OpMULH
		case 0b010:
			base.Op = OpMULHSU
		case 0b011:
			base.Op = OpMULHU
		case 0b100:
			base.Op = OpDIV
		case 0b101:
			base.Op = OpDIVU
		case 0b110:
			base.Op = OpREM
		case 0b111:
			base.Op = OpREMU
		}
		return base, nil
	}

	switch f3 {
	case 0b000:
		switch f7 {
		case 0b0000000:
			base.Op = OpADD
		case 0b0100000:
			base.Op = OpSUB
		default:
			return nil, ErrReserved
		}
	case 0b001:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpSLL
	case 0b010:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpSLT
	case 0b011:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpSLTU
	case 0b100:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpXOR
	case 0b101:
		switch f7 {
		case 0b0000000:
			base.Op = OpSRL
		case 0b0100000:
			base.Op = OpSRA
		default:
			return nil, ErrReserved
		}
	case 0b110:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpOR
	case 0b111:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpAND
	}
	return base, nil
}

func (d *Decoder) decodeOp32(word uint32, ext Extensions) (*DecodedInstruction, error) {
	f3, f7 := funct3(word), funct7(word)
	base := &DecodedInstruction{Format: FormatR, Funct3: f3, Rd: rd(word), Rs1: rs1(word), Rs2: rs2(word), Is32BitOp: true}

	if f7 == 0b0000001 {
		if !ext.Has(ExtM) {
			return nil, ErrUnsupportedExtension
		}
		switch f3 {
		case 0b000:
			base.Op = OpMULW
		case 0b100:
			base.Op = OpDIVW
		case 0b101:
			base.Op = OpDIVUW
		case 0b110:
			base.Op = OpREMW
		case 0b111:
			base.Op = OpREMUW
		default:
			return nil, ErrReserved
		}
		return base, nil
	}

	switch f3 {
	case 0b000:
		switch f7 {
		case 0b0000000:
			base.Op = OpADDW
		case 0b0100000:
			base.Op = OpSUBW
		default:
			return nil, ErrReserved
		}
	case 0b001:
		if f7 != 0 {
			return nil, ErrReserved
		}
		base.Op = OpSLLW
	case 0b101:
		switch f7 {
		case 0b0000000:
			base.Op = OpSRLW
		case 0b0100000:
			base.Op = OpSRAW
		default:
			return nil, ErrReserved
		}
	default:
		return nil, ErrReserved
	}
	return base, nil
}

func (d *Decoder) decodeFence(word uint32) (*DecodedInstruction, error) {
	switch funct3(word) {
	case 0b000:
		return &DecodedInstruction{Op: OpFENCE, Format: FormatFence}, nil
	case 0b001:
		return &DecodedInstruction{Op: OpFENCEI, Format: FormatFence}, nil
	default:
		return nil, ErrReserved
	}
}

func (d *Decoder) decodeSystem(word uint32) (*DecodedInstruction, error) {
	if funct3(word) != 0 || rd(word) != 0 || rs1(word) != 0 {
		return nil, ErrReserved
	}
	switch (word >> 20) & 0xfff {
	case 0x000:
		return &DecodedInstruction{Op: OpECALL, Format: FormatSystem}, nil
	case 0x001:
		return &DecodedInstruction{Op: OpEBREAK, Format: FormatSystem}, nil
	default:
		return nil, ErrReserved
	}
}

func (d *Decoder) decodeAmo(word uint32, w xlen.Width) (*DecodedInstruction, error) {
	f3 := funct3(word)
	var width uint8
	var wide bool
	switch f3 {
	case 0b010:
		width = 4
	case 0b011:
		if w != xlen.W64 {
			return nil, ErrUnsupportedExtension
		}
		width, wide = 8, true
	default:
		return nil, ErrReserved
	}

	aq, rl := aqRl(word)
	base := &DecodedInstruction{
		Format: FormatAMO, Funct3: f3, Rd: rd(word), Rs1: rs1(word), Rs2: rs2(word),
		MemWidth: width, Aq: aq, Rl: rl,
	}

	f5 := funct5(word)
	switch f5 {
	case amoLR:
		if rs2(word) != 0 {
			return nil, ErrReserved
		}
		base.Op = pick(wide, OpLRD, OpLRW)
	case amoSC:
		base.Op = pick(wide, OpSCD, OpSCW)
	case amoSWAP:
		base.Op = pick(wide, OpAMOSWAPD, OpAMOSWAPW)
	case amoADD:
		base.Op = pick(wide, OpAMOADDD, OpAMOADDW)
	case amoXOR:
		base.Op = pick(wide, OpAMOXORD, OpAMOXORW)
	case amoAND:
		base.Op = pick(wide, OpAMOANDD, OpAMOANDW)
	case amoOR:
		base.Op = pick(wide, OpAMOORD, OpAMOORW)
	case amoMIN:
		base.Op = pick(wide, OpAMOMIND, OpAMOMINW)
	case amoMAX:
		base.Op = pick(wide, OpAMOMAXD, OpAMOMAXW)
	case amoMINU:
		base.Op = pick(wide, OpAMOMINUD, OpAMOMINUW)
	case amoMAXU:
		base.Op = pick(wide, OpAMOMAXUD, OpAMOMAXUW)
	default:
		return nil, ErrReserved
	}
	return base, nil
}

func pick(wide bool, ifWide, ifNarrow Op) Op {
	if wide {
		return ifWide
	}
	return ifNarrow
}
