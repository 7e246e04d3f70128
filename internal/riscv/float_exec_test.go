package riscv

import (
	"math"
	"testing"
)

func newFloatTestHart(t *testing.T) *Hart {
	t.Helper()

	bus := NewBus()
	bus.Map("ram", 0, 4096, NewRAM(4096))

	return New(WithBus(bus), WithXLEN(XLEN64), WithMode(ModeBare))
}

func TestExecFloatArithmeticSinglePrecision(t *testing.T) {
	h := newFloatTestHart(t)

	h.F[1] = boxFloat32(2.0)
	h.F[2] = boxFloat32(3.0)

	if err := h.execFloat(Decoded{Kind: KindFADDS, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FADD.S: %v", err)
	}

	if got := unboxFloat32(h.F[3]); got != 5.0 {
		t.Errorf("FADD.S = %v, want 5", got)
	}
}

func TestExecFloatArithmeticDoublePrecision(t *testing.T) {
	h := newFloatTestHart(t)

	h.F[1] = floatBitsToReg64(2.0)
	h.F[2] = floatBitsToReg64(3.0)

	if err := h.execFloat(Decoded{Kind: KindFMULD, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FMUL.D: %v", err)
	}

	if got := regToFloat64(h.F[3]); got != 6.0 {
		t.Errorf("FMUL.D = %v, want 6", got)
	}
}

func TestExecFloatLoadStoreWord(t *testing.T) {
	h := newFloatTestHart(t)
	h.SetGPR(1, 0x100)
	h.F[2] = boxFloat32(1.5)

	if err := h.execFloat(Decoded{Kind: KindFSW, Rs1: 1, Rs2: 2, Imm: 0}); err != nil {
		t.Fatalf("FSW: %v", err)
	}

	if err := h.execFloat(Decoded{Kind: KindFLW, Rd: 3, Rs1: 1, Imm: 0}); err != nil {
		t.Fatalf("FLW: %v", err)
	}

	if got := unboxFloat32(h.F[3]); got != 1.5 {
		t.Errorf("FLW after FSW = %v, want 1.5", got)
	}
}

func TestExecFloatLoadStoreDouble(t *testing.T) {
	h := newFloatTestHart(t)
	h.SetGPR(1, 0x200)
	h.F[2] = floatBitsToReg64(-7.5)

	if err := h.execFloat(Decoded{Kind: KindFSD, Rs1: 1, Rs2: 2, Imm: 0}); err != nil {
		t.Fatalf("FSD: %v", err)
	}

	if err := h.execFloat(Decoded{Kind: KindFLD, Rd: 3, Rs1: 1, Imm: 0}); err != nil {
		t.Fatalf("FLD: %v", err)
	}

	if got := regToFloat64(h.F[3]); got != -7.5 {
		t.Errorf("FLD after FSD = %v, want -7.5", got)
	}
}

func TestExecFloatComparisons(t *testing.T) {
	h := newFloatTestHart(t)
	h.F[1] = boxFloat32(1.0)
	h.F[2] = boxFloat32(2.0)

	if err := h.execFloat(Decoded{Kind: KindFLTS, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FLT.S: %v", err)
	}

	if h.GPR(3) != 1 {
		t.Errorf("FLT.S(1,2) = %d, want 1", h.GPR(3))
	}

	if err := h.execFloat(Decoded{Kind: KindFEQS, Rd: 4, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FEQ.S: %v", err)
	}

	if h.GPR(4) != 0 {
		t.Errorf("FEQ.S(1,2) = %d, want 0", h.GPR(4))
	}
}

func TestExecFloatIntegerConversions(t *testing.T) {
	h := newFloatTestHart(t)
	h.SetGPR(1, ^uint64(41)) // -42 in two's complement

	if err := h.execFloat(Decoded{Kind: KindFCVTDW, Rd: 2, Rs1: 1}); err != nil {
		t.Fatalf("FCVT.D.W: %v", err)
	}

	if got := regToFloat64(h.F[2]); got != -42.0 {
		t.Errorf("FCVT.D.W = %v, want -42", got)
	}

	if err := h.execFloat(Decoded{Kind: KindFCVTWD, Rd: 3, Rs1: 2}); err != nil {
		t.Fatalf("FCVT.W.D: %v", err)
	}

	if got := int64(h.GPR(3)); got != -42 {
		t.Errorf("FCVT.W.D = %d, want -42", got)
	}
}

func TestExecFloatMoveBitPatternPreservesNaN(t *testing.T) {
	h := newFloatTestHart(t)

	bits := math.Float32bits(float32(math.NaN()))
	h.SetGPR(1, uint64(bits))

	if err := h.execFloat(Decoded{Kind: KindFMVWX, Rd: 2, Rs1: 1}); err != nil {
		t.Fatalf("FMV.W.X: %v", err)
	}

	if err := h.execFloat(Decoded{Kind: KindFMVXW, Rd: 3, Rs1: 2}); err != nil {
		t.Fatalf("FMV.X.W: %v", err)
	}

	if uint32(h.GPR(3)) != bits {
		t.Errorf("FMV.X.W(FMV.W.X(x)) = %#x, want %#x", uint32(h.GPR(3)), bits)
	}
}

func TestExecFloatMinMaxIgnoresNaN(t *testing.T) {
	h := newFloatTestHart(t)
	h.F[1] = boxFloat32(float32(math.NaN()))
	h.F[2] = boxFloat32(4.0)

	if err := h.execFloat(Decoded{Kind: KindFMINS, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FMIN.S: %v", err)
	}

	if got := unboxFloat32(h.F[3]); got != 4.0 {
		t.Errorf("FMIN.S(NaN, 4) = %v, want 4 (NaN operand ignored)", got)
	}
}

func TestExecFloatCVTDSWidensSinglePrecision(t *testing.T) {
	h := newFloatTestHart(t)
	h.F[1] = boxFloat32(1.5)

	if err := h.execFloat(Decoded{Kind: KindFCVTDS, Rd: 2, Rs1: 1}); err != nil {
		t.Fatalf("FCVT.D.S: %v", err)
	}

	if got := regToFloat64(h.F[2]); got != 1.5 {
		t.Errorf("FCVT.D.S = %v, want 1.5", got)
	}
}

func TestExecFloatCVTWSSaturatesOnNaNAndOverflow(t *testing.T) {
	h := newFloatTestHart(t)

	h.F[1] = boxFloat32(float32(math.NaN()))
	if err := h.execFloat(Decoded{Kind: KindFCVTWS, Rd: 2, Rs1: 1}); err != nil {
		t.Fatalf("FCVT.W.S (NaN): %v", err)
	}

	if got := int32(h.GPR(2)); got != math.MaxInt32 {
		t.Errorf("FCVT.W.S(NaN) = %d, want MaxInt32", got)
	}

	if h.CSR.fflags&fflagNV == 0 {
		t.Error("expected NV to be set converting NaN to an integer")
	}

	h.CSR.fflags = 0
	h.F[1] = boxFloat32(1e30) // far beyond int32 range

	if err := h.execFloat(Decoded{Kind: KindFCVTWS, Rd: 3, Rs1: 1}); err != nil {
		t.Fatalf("FCVT.W.S (overflow): %v", err)
	}

	if got := int32(h.GPR(3)); got != math.MaxInt32 {
		t.Errorf("FCVT.W.S(1e30) = %d, want MaxInt32 (saturated)", got)
	}

	if h.CSR.fflags&fflagNV == 0 {
		t.Error("expected NV to be set on out-of-range conversion")
	}
}

func TestExecFloatFEQOnlySetsNVForSignalingNaN(t *testing.T) {
	h := newFloatTestHart(t)

	quiet := math.Float32frombits(canonicalNaN32Bits)
	signaling := math.Float32frombits(0x7f800001) // exponent all-ones, nonzero mantissa, MSB clear

	h.F[1] = boxFloat32(quiet)
	h.F[2] = boxFloat32(1.0)

	if err := h.execFloat(Decoded{Kind: KindFEQS, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FEQ.S (quiet NaN): %v", err)
	}

	if h.CSR.fflags&fflagNV != 0 {
		t.Error("did not expect NV for FEQ.S against a quiet NaN")
	}

	h.F[1] = boxFloat32(signaling)
	h.CSR.fflags = 0

	if err := h.execFloat(Decoded{Kind: KindFEQS, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("FEQ.S (signaling NaN): %v", err)
	}

	if h.CSR.fflags&fflagNV == 0 {
		t.Error("expected NV for FEQ.S against a signaling NaN")
	}
}

func TestIsFloatAndIsDoublePrecisionRanges(t *testing.T) {
	if !isFloat(KindFLW) || !isFloat(KindFADDS) || !isFloat(KindFADDD) {
		t.Error("expected FLW/FADD.S/FADD.D to be classified as float instructions")
	}

	if isFloat(KindADD) {
		t.Error("did not expect the integer ADD to be classified as a float instruction")
	}

	if isDoublePrecision(KindFADDS) {
		t.Error("did not expect FADD.S to be classified as double precision")
	}

	if !isDoublePrecision(KindFADDD) {
		t.Error("expected FADD.D to be classified as double precision")
	}
}
