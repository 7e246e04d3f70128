package riscv

import (
	"context"
	"testing"
)

func TestAmoCombineArithmeticAndLogic(t *testing.T) {
	tcs := []struct {
		name  string
		kind  Kind
		old   uint64
		rhs   uint64
		width Width
		want  uint64
	}{
		{"swap", KindAMOSWAPW, 1, 2, Word, 2},
		{"add", KindAMOADDW, 1, 2, Word, 3},
		{"and", KindAMOANDW, 0b110, 0b011, Word, 0b010},
		{"or", KindAMOORW, 0b110, 0b011, Word, 0b111},
		{"xor", KindAMOXORW, 0b110, 0b011, Word, 0b101},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := amoCombine(tc.kind, tc.old, tc.rhs, tc.width)
			if got != tc.want {
				t.Errorf("got %#x, want %#x", got, tc.want)
			}
		})
	}
}

func TestAmoCombineSignedMinMax(t *testing.T) {
	// -1 (as a 32-bit word) is signed-less-than 1, but unsigned-greater.
	negOne := uint64(0xffffffff)
	one := uint64(1)

	if got := amoCombine(KindAMOMINW, negOne, one, Word); got != negOne {
		t.Errorf("min(-1, 1) = %#x, want -1 (signed)", got)
	}

	if got := amoCombine(KindAMOMAXW, negOne, one, Word); got != one {
		t.Errorf("max(-1, 1) = %#x, want 1 (signed)", got)
	}

	if got := amoCombine(KindAMOMINUW, negOne, one, Word); got != one {
		t.Errorf("minu(0xffffffff, 1) = %#x, want 1 (unsigned)", got)
	}

	if got := amoCombine(KindAMOMAXUW, negOne, one, Word); got != negOne {
		t.Errorf("maxu(0xffffffff, 1) = %#x, want 0xffffffff (unsigned)", got)
	}
}

func TestAmoCombineDoublewordSignedMinMax(t *testing.T) {
	negOne := uint64(1<<64 - 1)
	one := uint64(1)

	if got := amoCombine(KindAMOMIND, negOne, one, Doubleword); got != negOne {
		t.Errorf("min(-1, 1) = %#x, want -1 (signed)", got)
	}

	if got := amoCombine(KindAMOMAXUD, negOne, one, Doubleword); got != negOne {
		t.Errorf("maxu = %#x, want the larger unsigned value", got)
	}
}

func TestExecLRSCRoundTrip(t *testing.T) {
	bus := NewBus()
	bus.Map("ram", 0, 4096, NewRAM(4096))

	h := New(WithBus(bus), WithXLEN(XLEN64), WithMode(ModeBare))

	if err := bus.Store(0x100, Doubleword, 7, IntentWrite); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	h.SetGPR(1, 0x100) // rs1: address
	h.SetGPR(2, 99)    // rs2: value to conditionally store

	if err := h.execAMO(Decoded{Kind: KindLRD, Rd: 3, Rs1: 1}); err != nil {
		t.Fatalf("LR.D: %v", err)
	}

	if got := h.GPR(3); got != 7 {
		t.Errorf("LR.D loaded %d, want 7", got)
	}

	if err := h.execAMO(Decoded{Kind: KindSCD, Rd: 4, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("SC.D: %v", err)
	}

	if got := h.GPR(4); got != 0 {
		t.Errorf("SC.D result = %d, want 0 (success)", got)
	}

	v, err := h.ReadMem(0x100, Doubleword)
	if err != nil {
		t.Fatalf("ReadMem: %v", err)
	}

	if v != 99 {
		t.Errorf("mem[0x100] = %d, want 99", v)
	}

	// The reservation was consumed by the first SC; a second attempt fails.
	if err := h.execAMO(Decoded{Kind: KindSCD, Rd: 5, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("SC.D: %v", err)
	}

	if got := h.GPR(5); got != 1 {
		t.Errorf("second SC.D result = %d, want 1 (failure)", got)
	}
}

func TestLRReservationInvalidatedByTrap(t *testing.T) {
	bus := NewBus()
	bus.Map("ram", 0, 4096, NewRAM(4096))

	h := New(WithBus(bus), WithXLEN(XLEN64), WithMode(ModeBare))
	h.Priv = Machine

	if err := bus.Store(0x100, Doubleword, 7, IntentWrite); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	h.SetGPR(1, 0x100)
	h.SetGPR(2, 99)

	if err := h.execAMO(Decoded{Kind: KindLRD, Rd: 3, Rs1: 1}); err != nil {
		t.Fatalf("LR.D: %v", err)
	}

	// Any trap between the LR and its paired SC invalidates the reservation,
	// even one unrelated to the reserved address.
	h.enterTrap(CauseIllegalInstruction, 0)

	if err := h.execAMO(Decoded{Kind: KindSCD, Rd: 4, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("SC.D: %v", err)
	}

	if got := h.GPR(4); got != 1 {
		t.Errorf("SC.D after an intervening trap = %d, want 1 (failure)", got)
	}
}

func TestLRReservationInvalidatedBySFENCEVMA(t *testing.T) {
	bus := NewBus()
	bus.Map("ram", 0, 4096, NewRAM(4096))

	h := New(WithBus(bus), WithXLEN(XLEN64), WithMode(ModeBare))
	h.Priv = Machine

	if err := bus.Store(0x100, Doubleword, 7, IntentWrite); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	h.SetGPR(1, 0x100)
	h.SetGPR(2, 99)

	if err := h.execAMO(Decoded{Kind: KindLRD, Rd: 3, Rs1: 1}); err != nil {
		t.Fatalf("LR.D: %v", err)
	}

	nextPC := h.PC
	if err := h.execute(context.Background(), Decoded{Kind: KindSFENCEVMA}, &nextPC); err != nil {
		t.Fatalf("SFENCE.VMA: %v", err)
	}

	if err := h.execAMO(Decoded{Kind: KindSCD, Rd: 4, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("SC.D: %v", err)
	}

	if got := h.GPR(4); got != 1 {
		t.Errorf("SC.D after an intervening SFENCE.VMA = %d, want 1 (failure)", got)
	}
}

func TestExecAMOAddReturnsOldValue(t *testing.T) {
	bus := NewBus()
	bus.Map("ram", 0, 4096, NewRAM(4096))

	h := New(WithBus(bus), WithXLEN(XLEN64), WithMode(ModeBare))

	if err := bus.Store(0x200, Word, 10, IntentWrite); err != nil {
		t.Fatalf("seed memory: %v", err)
	}

	h.SetGPR(1, 0x200)
	h.SetGPR(2, 5)

	if err := h.execAMO(Decoded{Kind: KindAMOADDW, Rd: 3, Rs1: 1, Rs2: 2}); err != nil {
		t.Fatalf("AMOADD.W: %v", err)
	}

	if got := h.GPR(3); got != 10 {
		t.Errorf("AMOADD.W returned %d, want the old value 10", got)
	}

	v, err := h.ReadMem(0x200, Word)
	if err != nil {
		t.Fatalf("ReadMem: %v", err)
	}

	if v != 15 {
		t.Errorf("mem[0x200] = %d, want 15", v)
	}
}
