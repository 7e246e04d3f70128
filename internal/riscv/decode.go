package riscv

// decode.go implements the instruction decoder. It is stateless and pure:
// Decode takes a raw 32-bit instruction word and the active XLEN and returns
// a Decoded value or an error if no known encoding matches. The decoder never
// mutates hart state, matching the "decoded instruction is ephemeral" data
// model.

import "fmt"

// Decoded carries the kind and operand fields for one instruction. The
// executor is parameterized by the hart's XLEN; W-suffixed kinds always
// operate on 32-bit lanes regardless of XLEN.
type Decoded struct {
	Kind Kind
	Raw  uint32

	Rd, Rs1, Rs2, Rs3 GPR
	Imm               int64
	Funct3            uint32
	Funct7            uint32
	Aq, Rl            bool
	Rm                uint32
	Shamt             uint32
}

func (d Decoded) String() string {
	return fmt.Sprintf("%s rd=%s rs1=%s rs2=%s imm=%#x raw=%#08x", d.Kind, d.Rd, d.Rs1, d.Rs2, d.Imm, d.Raw)
}

// IllegalInstructionError reports an instruction word that does not decode
// to a known semantic. It is never fatal to the host process: in bare mode
// the executor delivers it to the guest as an illegal-instruction trap.
type IllegalInstructionError struct {
	Raw uint32
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction: %#08x", e.Raw)
}

func bits(v uint32, hi, lo uint) uint32 {
	return (v >> lo) & ((1 << (hi - lo + 1)) - 1)
}

// Decode classifies a raw instruction word by its low-7-bit opcode and
// branches on funct3/funct7/funct5 as required by the RISC-V encoding.
func Decode(raw uint32, xlen XLEN) (Decoded, error) {
	op := raw & 0x7f
	d := Decoded{Raw: raw}
	d.Rd = GPR(bits(raw, 11, 7))
	d.Rs1 = GPR(bits(raw, 19, 15))
	d.Rs2 = GPR(bits(raw, 24, 20))
	d.Funct3 = bits(raw, 14, 12)
	d.Funct7 = bits(raw, 31, 25)

	switch op {
	case opLUI:
		d.Kind = KindLUI
		d.Imm = int64(int32(raw & 0xfffff000))
	case opAUIPC:
		d.Kind = KindAUIPC
		d.Imm = int64(int32(raw & 0xfffff000))
	case opJAL:
		d.Kind = KindJAL
		d.Imm = decodeJImm(raw)
	case opJALR:
		if d.Funct3 != 0 {
			return d, &IllegalInstructionError{raw}
		}

		d.Kind = KindJALR
		d.Imm = decodeIImm(raw)
	case opBRANCH:
		d.Imm = decodeBImm(raw)

		switch d.Funct3 {
		case 0b000:
			d.Kind = KindBEQ
		case 0b001:
			d.Kind = KindBNE
		case 0b100:
			d.Kind = KindBLT
		case 0b101:
			d.Kind = KindBGE
		case 0b110:
			d.Kind = KindBLTU
		case 0b111:
			d.Kind = KindBGEU
		default:
			return d, &IllegalInstructionError{raw}
		}
	case opLOAD:
		d.Imm = decodeIImm(raw)

		switch d.Funct3 {
		case 0b000:
			d.Kind = KindLB
		case 0b001:
			d.Kind = KindLH
		case 0b010:
			d.Kind = KindLW
		case 0b100:
			d.Kind = KindLBU
		case 0b101:
			d.Kind = KindLHU
		case 0b110:
			if xlen != XLEN64 {
				return d, &IllegalInstructionError{raw}
			}

			d.Kind = KindLWU
		case 0b011:
			if xlen != XLEN64 {
				return d, &IllegalInstructionError{raw}
			}

			d.Kind = KindLD
		default:
			return d, &IllegalInstructionError{raw}
		}
	case opSTORE:
		d.Imm = decodeSImm(raw)

		switch d.Funct3 {
		case 0b000:
			d.Kind = KindSB
		case 0b001:
			d.Kind = KindSH
		case 0b010:
			d.Kind = KindSW
		case 0b011:
			if xlen != XLEN64 {
				return d, &IllegalInstructionError{raw}
			}

			d.Kind = KindSD
		default:
			return d, &IllegalInstructionError{raw}
		}
	case opOPIMM:
		d.Imm = decodeIImm(raw)
		d.Shamt = bits(raw, 25, 20)

		switch d.Funct3 {
		case 0b000:
			d.Kind = KindADDI
		case 0b010:
			d.Kind = KindSLTI
		case 0b011:
			d.Kind = KindSLTIU
		case 0b100:
			d.Kind = KindXORI
		case 0b110:
			d.Kind = KindORI
		case 0b111:
			d.Kind = KindANDI
		case 0b001:
			d.Kind = KindSLLI

			if xlen == XLEN32 {
				d.Shamt = bits(raw, 24, 20)
			}
		case 0b101:
			top := bits(raw, 31, 26)
			if xlen == XLEN32 {
				top = bits(raw, 31, 25)
				d.Shamt = bits(raw, 24, 20)
			}

			if top == 0 {
				d.Kind = KindSRLI
			} else {
				d.Kind = KindSRAI
			}
		default:
			return d, &IllegalInstructionError{raw}
		}
	case opOPIMM32:
		if xlen != XLEN64 {
			return d, &IllegalInstructionError{raw}
		}

		d.Imm = decodeIImm(raw)
		d.Shamt = bits(raw, 24, 20)

		switch d.Funct3 {
		case 0b000:
			d.Kind = KindADDIW
		case 0b001:
			d.Kind = KindSLLIW
		case 0b101:
			if d.Funct7 == 0 {
				d.Kind = KindSRLIW
			} else {
				d.Kind = KindSRAIW
			}
		default:
			return d, &IllegalInstructionError{raw}
		}
	case opOP:
		kind, ok := decodeOP(d.Funct3, d.Funct7)
		if !ok {
			return d, &IllegalInstructionError{raw}
		}

		d.Kind = kind
	case opOP32:
		if xlen != XLEN64 {
			return d, &IllegalInstructionError{raw}
		}

		kind, ok := decodeOP32(d.Funct3, d.Funct7)
		if !ok {
			return d, &IllegalInstructionError{raw}
		}

		d.Kind = kind
	case opMISCMEM:
		if d.Funct3 == 0b001 {
			d.Kind = KindFENCEI
		} else {
			d.Kind = KindFENCE
		}
	case opSYSTEM:
		if err := decodeSystem(raw, &d); err != nil {
			return d, err
		}
	case opAMO:
		if err := decodeAMO(raw, &d, xlen); err != nil {
			return d, err
		}
	case opLOADFP, opSTOREFP, opMADD, opMSUB, opNMSUB, opNMADD, opOPFP:
		if err := decodeFP(raw, &d, xlen); err != nil {
			return d, err
		}
	default:
		return d, &IllegalInstructionError{raw}
	}

	// Register fields the format does not have are left zero rather than
	// carrying immediate bits.
	switch op {
	case opLUI, opAUIPC, opJAL:
		d.Rs1, d.Rs2 = 0, 0
	case opJALR, opLOAD, opOPIMM, opOPIMM32:
		d.Rs2 = 0
	case opBRANCH, opSTORE:
		d.Rd = 0
	}

	return d, nil
}

func decodeIImm(raw uint32) int64 {
	return SignExtend64(uint64(bits(raw, 31, 20)), 12)
}

func decodeSImm(raw uint32) int64 {
	v := bits(raw, 31, 25)<<5 | bits(raw, 11, 7)
	return SignExtend64(uint64(v), 12)
}

func decodeBImm(raw uint32) int64 {
	v := bits(raw, 31, 31)<<12 | bits(raw, 7, 7)<<11 | bits(raw, 30, 25)<<5 | bits(raw, 11, 8)<<1
	return SignExtend64(uint64(v), 13)
}

func decodeJImm(raw uint32) int64 {
	v := bits(raw, 31, 31)<<20 | bits(raw, 19, 12)<<12 | bits(raw, 20, 20)<<11 | bits(raw, 30, 21)<<1
	return SignExtend64(uint64(v), 21)
}

// SignExtend64 is SignExtend specialized to int64 return, used pervasively
// by the decoder's immediate extraction.
func SignExtend64(v uint64, n uint) int64 {
	return int64(SignExtend(v, n))
}

func decodeOP(funct3, funct7 uint32) (Kind, bool) {
	switch funct7 {
	case 0b0000000:
		switch funct3 {
		case 0b000:
			return KindADD, true
		case 0b001:
			return KindSLL, true
		case 0b010:
			return KindSLT, true
		case 0b011:
			return KindSLTU, true
		case 0b100:
			return KindXOR, true
		case 0b101:
			return KindSRL, true
		case 0b110:
			return KindOR, true
		case 0b111:
			return KindAND, true
		}
	case 0b0100000:
		switch funct3 {
		case 0b000:
			return KindSUB, true
		case 0b101:
			return KindSRA, true
		}
	case 0b0000001: // M extension
		switch funct3 {
		case 0b000:
			return KindMUL, true
		case 0b001:
			return KindMULH, true
		case 0b010:
			return KindMULHSU, true
		case 0b011:
			return KindMULHU, true
		case 0b100:
			return KindDIV, true
		case 0b101:
			return KindDIVU, true
		case 0b110:
			return KindREM, true
		case 0b111:
			return KindREMU, true
		}
	}

	return KindInvalid, false
}

func decodeOP32(funct3, funct7 uint32) (Kind, bool) {
	switch funct7 {
	case 0b0000000:
		switch funct3 {
		case 0b000:
			return KindADDW, true
		case 0b001:
			return KindSLLW, true
		case 0b101:
			return KindSRLW, true
		}
	case 0b0100000:
		switch funct3 {
		case 0b000:
			return KindSUBW, true
		case 0b101:
			return KindSRAW, true
		}
	case 0b0000001:
		switch funct3 {
		case 0b000:
			return KindMULW, true
		case 0b100:
			return KindDIVW, true
		case 0b101:
			return KindDIVUW, true
		case 0b110:
			return KindREMW, true
		case 0b111:
			return KindREMUW, true
		}
	}

	return KindInvalid, false
}

func decodeSystem(raw uint32, d *Decoded) error {
	funct3 := d.Funct3
	imm12 := bits(raw, 31, 20)

	switch funct3 {
	case 0b000:
		switch imm12 {
		case 0x000:
			d.Kind = KindECALL
		case 0x001:
			d.Kind = KindEBREAK
		case 0x302:
			d.Kind = KindMRET
		case 0x102:
			d.Kind = KindSRET
		case 0x105:
			d.Kind = KindWFI
		default:
			if bits(raw, 31, 25) == 0b0001001 {
				d.Kind = KindSFENCEVMA
			} else {
				return &IllegalInstructionError{raw}
			}
		}
	case 0b001:
		d.Kind = KindCSRRW
		d.Imm = int64(imm12)
	case 0b010:
		d.Kind = KindCSRRS
		d.Imm = int64(imm12)
	case 0b011:
		d.Kind = KindCSRRC
		d.Imm = int64(imm12)
	case 0b101:
		d.Kind = KindCSRRWI
		d.Imm = int64(imm12)
	case 0b110:
		d.Kind = KindCSRRSI
		d.Imm = int64(imm12)
	case 0b111:
		d.Kind = KindCSRRCI
		d.Imm = int64(imm12)
	default:
		return &IllegalInstructionError{raw}
	}

	return nil
}

func decodeAMO(raw uint32, d *Decoded, xlen XLEN) error {
	funct5 := bits(raw, 31, 27)
	d.Aq = bits(raw, 26, 26) != 0
	d.Rl = bits(raw, 25, 25) != 0
	wide := d.Funct3 == 0b011

	if wide && xlen != XLEN64 {
		return &IllegalInstructionError{raw}
	} else if d.Funct3 != 0b010 && !wide {
		return &IllegalInstructionError{raw}
	}

	table32 := map[uint32]Kind{
		0b00010: KindLRW, 0b00011: KindSCW, 0b00001: KindAMOSWAPW,
		0b00000: KindAMOADDW, 0b01100: KindAMOANDW, 0b01000: KindAMOORW,
		0b00100: KindAMOXORW, 0b10000: KindAMOMINW, 0b10100: KindAMOMAXW,
		0b11000: KindAMOMINUW, 0b11100: KindAMOMAXUW,
	}
	table64 := map[uint32]Kind{
		0b00010: KindLRD, 0b00011: KindSCD, 0b00001: KindAMOSWAPD,
		0b00000: KindAMOADDD, 0b01100: KindAMOANDD, 0b01000: KindAMOORD,
		0b00100: KindAMOXORD, 0b10000: KindAMOMIND, 0b10100: KindAMOMAXD,
		0b11000: KindAMOMINUD, 0b11100: KindAMOMAXUD,
	}

	table := table32
	if wide {
		table = table64
	}

	kind, ok := table[funct5]
	if !ok {
		return &IllegalInstructionError{raw}
	}

	d.Kind = kind

	return nil
}

func decodeFP(raw uint32, d *Decoded, xlen XLEN) error {
	op := raw & 0x7f
	d.Rs3 = GPR(bits(raw, 31, 27))
	d.Rm = d.Funct3

	fmtBit := bits(raw, 26, 25) // 00=S, 01=D

	switch op {
	case opLOADFP:
		d.Imm = decodeIImm(raw)
		if d.Funct3 == 0b010 {
			d.Kind = KindFLW
		} else if d.Funct3 == 0b011 {
			d.Kind = KindFLD
		} else {
			return &IllegalInstructionError{raw}
		}
	case opSTOREFP:
		d.Imm = decodeSImm(raw)
		if d.Funct3 == 0b010 {
			d.Kind = KindFSW
		} else if d.Funct3 == 0b011 {
			d.Kind = KindFSD
		} else {
			return &IllegalInstructionError{raw}
		}
	case opMADD, opMSUB, opNMSUB, opNMADD:
		isDouble := fmtBit == 1
		switch op {
		case opMADD:
			d.Kind = pick(isDouble, KindFMADDD, KindFMADDS)
		case opMSUB:
			d.Kind = pick(isDouble, KindFMSUBD, KindFMSUBS)
		case opNMSUB:
			d.Kind = pick(isDouble, KindFNMSUBD, KindFNMSUBS)
		case opNMADD:
			d.Kind = pick(isDouble, KindFNMADDD, KindFNMADDS)
		}
	case opOPFP:
		return decodeOPFP(d, fmtBit == 1, xlen)
	}

	return nil
}

func pick(cond bool, a, b Kind) Kind {
	if cond {
		return a
	}

	return b
}

func decodeOPFP(d *Decoded, isDouble bool, xlen XLEN) error {
	funct5 := d.Funct7 >> 2
	rs2 := uint32(d.Rs2)

	switch funct5 {
	case 0b00000:
		d.Kind = pick(isDouble, KindFADDD, KindFADDS)
	case 0b00001:
		d.Kind = pick(isDouble, KindFSUBD, KindFSUBS)
	case 0b00010:
		d.Kind = pick(isDouble, KindFMULD, KindFMULS)
	case 0b00011:
		d.Kind = pick(isDouble, KindFDIVD, KindFDIVS)
	case 0b01011:
		d.Kind = pick(isDouble, KindFSQRTD, KindFSQRTS)
	case 0b00100:
		switch d.Funct3 {
		case 0:
			d.Kind = pick(isDouble, KindFSGNJD, KindFSGNJS)
		case 1:
			d.Kind = pick(isDouble, KindFSGNJND, KindFSGNJNS)
		case 2:
			d.Kind = pick(isDouble, KindFSGNJXD, KindFSGNJXS)
		default:
			return &IllegalInstructionError{d.Raw}
		}
	case 0b00101:
		if d.Funct3 == 0 {
			d.Kind = pick(isDouble, KindFMIND, KindFMINS)
		} else {
			d.Kind = pick(isDouble, KindFMAXD, KindFMAXS)
		}
	case 0b10100:
		switch d.Funct3 {
		case 2:
			d.Kind = pick(isDouble, KindFEQD, KindFEQS)
		case 1:
			d.Kind = pick(isDouble, KindFLTD, KindFLTS)
		case 0:
			d.Kind = pick(isDouble, KindFLED, KindFLES)
		default:
			return &IllegalInstructionError{d.Raw}
		}
	case 0b11100:
		if d.Funct3 == 0 {
			d.Kind = pick(isDouble, KindFMVXD, KindFMVXW)
		} else {
			d.Kind = pick(isDouble, KindFCLASSD, KindFCLASSS)
		}
	case 0b11110:
		d.Kind = pick(isDouble, KindFMVDX, KindFMVWX)
	case 0b01000: // FCVT.S.D / FCVT.D.S
		if isDouble {
			d.Kind = KindFCVTDS
		} else {
			d.Kind = KindFCVTSD
		}
	case 0b11000:
		switch rs2 {
		case 0:
			d.Kind = pick(isDouble, KindFCVTWD, KindFCVTWS)
		case 1:
			d.Kind = pick(isDouble, KindFCVTWUD, KindFCVTWUS)
		case 2:
			if xlen != XLEN64 {
				return &IllegalInstructionError{d.Raw}
			}

			d.Kind = pick(isDouble, KindFCVTLD, KindFCVTLS)
		case 3:
			if xlen != XLEN64 {
				return &IllegalInstructionError{d.Raw}
			}

			d.Kind = pick(isDouble, KindFCVTLUD, KindFCVTLUS)
		default:
			return &IllegalInstructionError{d.Raw}
		}
	case 0b11010:
		switch rs2 {
		case 0:
			d.Kind = pick(isDouble, KindFCVTDW, KindFCVTSW)
		case 1:
			d.Kind = pick(isDouble, KindFCVTDWU, KindFCVTSWU)
		case 2:
			if xlen != XLEN64 {
				return &IllegalInstructionError{d.Raw}
			}

			d.Kind = pick(isDouble, KindFCVTDL, KindFCVTSL)
		case 3:
			if xlen != XLEN64 {
				return &IllegalInstructionError{d.Raw}
			}

			d.Kind = pick(isDouble, KindFCVTDLU, KindFCVTSLU)
		default:
			return &IllegalInstructionError{d.Raw}
		}
	default:
		return &IllegalInstructionError{d.Raw}
	}

	return nil
}
