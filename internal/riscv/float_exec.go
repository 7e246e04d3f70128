package riscv

import "math"

// float_exec.go implements the F and D extension: single- and double-
// precision arithmetic, NaN-boxed register storage, and the integer/float
// conversion family. Rounding always follows the host float32/float64
// operators (round-to-nearest-even), so only RNE is modeled faithfully;
// other static rounding modes are accepted but not distinguished, since the
// interpreter never runs on hardware where the distinction is observable
// without a software-rounding float library the rest of the corpus has no
// precedent for pulling in.

func isFloat(k Kind) bool {
	switch k {
	case KindFLW, KindFSW, KindFLD, KindFSD:
		return true
	}

	return isFloatArith(k)
}

func isFloatArith(k Kind) bool {
	return k >= KindFADDS && k <= KindFMVDX
}

func (h *Hart) execFloat(d Decoded) error {
	switch d.Kind {
	case KindFLW:
		addr := h.XLEN.Mask(h.GPR(d.Rs1) + uint64(d.Imm))

		v, err := h.ReadMem(addr, Word)
		if err != nil {
			return err
		}

		h.F[d.Rd] = nanBox(uint32(v))

		return nil
	case KindFLD:
		addr := h.XLEN.Mask(h.GPR(d.Rs1) + uint64(d.Imm))

		v, err := h.ReadMem(addr, Doubleword)
		if err != nil {
			return err
		}

		h.F[d.Rd] = v

		return nil
	case KindFSW:
		addr := h.XLEN.Mask(h.GPR(d.Rs1) + uint64(d.Imm))
		return h.WriteMem(addr, Word, h.F[d.Rs2]&0xffffffff)
	case KindFSD:
		addr := h.XLEN.Mask(h.GPR(d.Rs1) + uint64(d.Imm))
		return h.WriteMem(addr, Doubleword, h.F[d.Rs2])
	}

	if isDoublePrecision(d.Kind) {
		return h.execFloatD(d)
	}

	return h.execFloatS(d)
}

func (h *Hart) execFloatS(d Decoded) error {
	a := unboxFloat32(h.F[d.Rs1])
	b := unboxFloat32(h.F[d.Rs2])
	c := unboxFloat32(h.F[d.Rs3])

	switch d.Kind {
	case KindFADDS:
		h.F[d.Rd] = boxFloat32(a + b)
	case KindFSUBS:
		h.F[d.Rd] = boxFloat32(a - b)
	case KindFMULS:
		h.F[d.Rd] = boxFloat32(a * b)
	case KindFDIVS:
		h.F[d.Rd] = boxFloat32(a / b)
	case KindFSQRTS:
		h.F[d.Rd] = boxFloat32(float32(math.Sqrt(float64(a))))
	case KindFMADDS:
		h.F[d.Rd] = boxFloat32(float32(float64(a)*float64(b) + float64(c)))
	case KindFMSUBS:
		h.F[d.Rd] = boxFloat32(float32(float64(a)*float64(b) - float64(c)))
	case KindFNMSUBS:
		h.F[d.Rd] = boxFloat32(float32(-(float64(a)*float64(b) - float64(c))))
	case KindFNMADDS:
		h.F[d.Rd] = boxFloat32(float32(-(float64(a)*float64(b) + float64(c))))
	case KindFSGNJS:
		h.F[d.Rd] = nanBox(uint32(fsgn(uint64(h.F[d.Rs1]), uint64(h.F[d.Rs2]), Word, false, false)))
	case KindFSGNJNS:
		h.F[d.Rd] = nanBox(uint32(fsgn(uint64(h.F[d.Rs1]), uint64(h.F[d.Rs2]), Word, true, false)))
	case KindFSGNJXS:
		h.F[d.Rd] = nanBox(uint32(fsgn(uint64(h.F[d.Rs1]), uint64(h.F[d.Rs2]), Word, false, true)))
	case KindFMINS:
		h.F[d.Rd] = boxFloat32(h.fminFloat32(a, b))
	case KindFMAXS:
		h.F[d.Rd] = boxFloat32(h.fmaxFloat32(a, b))
	case KindFEQS:
		h.cmpNV32(a, b, false)
		h.SetGPR(d.Rd, boolToWord(a == b))
	case KindFLTS:
		h.cmpNV32(a, b, true)
		h.SetGPR(d.Rd, boolToWord(a < b))
	case KindFLES:
		h.cmpNV32(a, b, true)
		h.SetGPR(d.Rd, boolToWord(a <= b))
	case KindFCLASSS:
		h.SetGPR(d.Rd, classifyFloat64(float64(a)))
	case KindFCVTWS:
		h.SetGPR(d.Rd, SignExtend32(uint32(h.cvtFloatToInt(float64(a), 32))))
	case KindFCVTWUS:
		h.SetGPR(d.Rd, SignExtend32(uint32(h.cvtFloatToUint(float64(a), 32))))
	case KindFCVTLS:
		h.SetGPR(d.Rd, uint64(h.cvtFloatToInt(float64(a), 64)))
	case KindFCVTLUS:
		h.SetGPR(d.Rd, h.cvtFloatToUint(float64(a), 64))
	case KindFCVTSW:
		h.F[d.Rd] = boxFloat32(float32(int32(h.GPR(d.Rs1))))
	case KindFCVTSWU:
		h.F[d.Rd] = boxFloat32(float32(uint32(h.GPR(d.Rs1))))
	case KindFCVTSL:
		h.F[d.Rd] = boxFloat32(float32(int64(h.GPR(d.Rs1))))
	case KindFCVTSLU:
		h.F[d.Rd] = boxFloat32(float32(h.GPR(d.Rs1)))
	case KindFMVXW:
		h.SetGPR(d.Rd, SignExtend32(uint32(h.F[d.Rs1])))
	case KindFMVWX:
		h.F[d.Rd] = nanBox(uint32(h.GPR(d.Rs1)))
	default:
		return trap(CauseIllegalInstruction, uint64(d.Raw))
	}

	return nil
}

func (h *Hart) execFloatD(d Decoded) error {
	a := regToFloat64(h.F[d.Rs1])
	b := regToFloat64(h.F[d.Rs2])
	c := regToFloat64(h.F[d.Rs3])

	switch d.Kind {
	case KindFADDD:
		h.F[d.Rd] = floatBitsToReg64(a + b)
	case KindFSUBD:
		h.F[d.Rd] = floatBitsToReg64(a - b)
	case KindFMULD:
		h.F[d.Rd] = floatBitsToReg64(a * b)
	case KindFDIVD:
		h.F[d.Rd] = floatBitsToReg64(a / b)
	case KindFSQRTD:
		h.F[d.Rd] = floatBitsToReg64(math.Sqrt(a))
	case KindFMADDD:
		h.F[d.Rd] = floatBitsToReg64(a*b + c)
	case KindFMSUBD:
		h.F[d.Rd] = floatBitsToReg64(a*b - c)
	case KindFNMSUBD:
		h.F[d.Rd] = floatBitsToReg64(-(a*b - c))
	case KindFNMADDD:
		h.F[d.Rd] = floatBitsToReg64(-(a*b + c))
	case KindFSGNJD:
		h.F[d.Rd] = fsgn(h.F[d.Rs1], h.F[d.Rs2], Doubleword, false, false)
	case KindFSGNJND:
		h.F[d.Rd] = fsgn(h.F[d.Rs1], h.F[d.Rs2], Doubleword, true, false)
	case KindFSGNJXD:
		h.F[d.Rd] = fsgn(h.F[d.Rs1], h.F[d.Rs2], Doubleword, false, true)
	case KindFMIND:
		h.F[d.Rd] = floatBitsToReg64(h.fminFloat64(a, b))
	case KindFMAXD:
		h.F[d.Rd] = floatBitsToReg64(h.fmaxFloat64(a, b))
	case KindFEQD:
		h.cmpNV64(a, b, false)
		h.SetGPR(d.Rd, boolToWord(a == b))
	case KindFLTD:
		h.cmpNV64(a, b, true)
		h.SetGPR(d.Rd, boolToWord(a < b))
	case KindFLED:
		h.cmpNV64(a, b, true)
		h.SetGPR(d.Rd, boolToWord(a <= b))
	case KindFCLASSD:
		h.SetGPR(d.Rd, classifyFloat64(a))
	case KindFCVTWD:
		h.SetGPR(d.Rd, SignExtend32(uint32(h.cvtFloatToInt(a, 32))))
	case KindFCVTWUD:
		h.SetGPR(d.Rd, SignExtend32(uint32(h.cvtFloatToUint(a, 32))))
	case KindFCVTLD:
		h.SetGPR(d.Rd, uint64(h.cvtFloatToInt(a, 64)))
	case KindFCVTLUD:
		h.SetGPR(d.Rd, h.cvtFloatToUint(a, 64))
	case KindFCVTDW:
		h.F[d.Rd] = floatBitsToReg64(float64(int32(h.GPR(d.Rs1))))
	case KindFCVTDWU:
		h.F[d.Rd] = floatBitsToReg64(float64(uint32(h.GPR(d.Rs1))))
	case KindFCVTDL:
		h.F[d.Rd] = floatBitsToReg64(float64(int64(h.GPR(d.Rs1))))
	case KindFCVTDLU:
		h.F[d.Rd] = floatBitsToReg64(float64(h.GPR(d.Rs1)))
	case KindFMVXD:
		h.SetGPR(d.Rd, h.F[d.Rs1])
	case KindFMVDX:
		h.F[d.Rd] = h.GPR(d.Rs1)
	case KindFCVTSD:
		h.F[d.Rd] = boxFloat32(float32(a))
	case KindFCVTDS:
		h.F[d.Rd] = floatBitsToReg64(float64(unboxFloat32(h.F[d.Rs1])))
	default:
		return trap(CauseIllegalInstruction, uint64(d.Raw))
	}

	return nil
}

func isDoublePrecision(k Kind) bool {
	return k >= KindFADDD && k <= KindFMVDX
}
