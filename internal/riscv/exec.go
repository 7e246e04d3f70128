package riscv

import (
	"context"
	"errors"
	"math"
)

// exec.go implements the instruction execution loop and the per-Kind
// semantics the decoder's output is dispatched to. Run drives Step in a
// loop until the context is cancelled or the hart halts; Step fetches,
// decodes, and executes exactly one instruction, handling any trap raised
// along the way by vectoring into the guest (bare mode) rather than
// propagating it to the caller.

// Run executes instructions until ctx is cancelled or the hart halts (a user
// mode exception, or a user mode ECALL with no syscall handler). A hart
// waiting in WFI makes no progress until an interrupt arrives or ctx is
// cancelled.
func (h *Hart) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := h.Step(ctx); err != nil {
			if errors.Is(err, ErrHalted) {
				return nil
			}

			return err
		}

		if h.halted {
			return nil
		}
	}
}

// Step executes a single instruction: fetch, decode, execute, and (for bare
// mode) interrupt servicing. Architectural exceptions and interrupts are
// handled internally via enterTrap and never returned to the caller; Step
// only returns an error for host-fatal conditions.
func (h *Hart) Step(ctx context.Context) error {
	if h.Mode == ModeBare {
		if cause, ok := h.pendingInterrupt(); ok {
			h.wfi = false
			h.enterTrap(cause, 0)

			return nil
		}
	}

	if h.wfi {
		return nil
	}

	raw, err := h.fetchOrTrap()
	if err != nil {
		return nil
	}

	d, err := Decode(raw, h.XLEN)
	if err != nil {
		h.raiseOrAbort(err)
		return nil
	}

	nextPC := h.PC + 4

	if err := h.execute(ctx, d, &nextPC); err != nil {
		h.raiseOrAbort(err)
		return nil
	}

	h.PC = nextPC
	h.retired++
	h.CSR.instret++
	h.CSR.cycle++

	return nil
}

func (h *Hart) fetchOrTrap() (uint32, error) {
	raw, err := h.FetchInstruction()
	if err != nil {
		h.raiseOrAbort(err)
		return 0, err
	}

	return raw, nil
}

// raiseOrAbort delivers a *TrapError to the guest in bare mode, or aborts
// the whole Run loop immediately in user mode, where there is no guest
// trap handler to receive it.
func (h *Hart) raiseOrAbort(err error) {
	var ie *IllegalInstructionError
	if errors.As(err, &ie) {
		err = trap(CauseIllegalInstruction, uint64(ie.Raw))
	}

	var te *TrapError
	if errors.As(err, &te) {
		if h.Mode == ModeBare {
			h.enterTrap(te.Cause, te.Tval)
			return
		}
	}

	h.halted = true
}

func (h *Hart) execute(ctx context.Context, d Decoded, nextPC *uint64) error {
	switch d.Kind {
	case KindLUI:
		h.SetGPR(d.Rd, uint64(d.Imm))
	case KindAUIPC:
		h.SetGPR(d.Rd, h.XLEN.Mask(h.PC+uint64(d.Imm)))
	case KindJAL:
		h.SetGPR(d.Rd, h.XLEN.Mask(h.PC+4))
		*nextPC = h.XLEN.Mask(h.PC + uint64(d.Imm))
	case KindJALR:
		target := h.XLEN.Mask((h.GPR(d.Rs1) + uint64(d.Imm)) &^ 1)
		h.SetGPR(d.Rd, h.XLEN.Mask(h.PC+4))
		*nextPC = target
	case KindBEQ, KindBNE, KindBLT, KindBGE, KindBLTU, KindBGEU:
		if branchTaken(d.Kind, h.GPR(d.Rs1), h.GPR(d.Rs2), h.XLEN) {
			*nextPC = h.XLEN.Mask(h.PC + uint64(d.Imm))
		}
	case KindLB, KindLH, KindLW, KindLBU, KindLHU, KindLWU, KindLD:
		return h.execLoad(d)
	case KindSB, KindSH, KindSW, KindSD:
		return h.execStore(d)
	case KindADDI, KindSLTI, KindSLTIU, KindXORI, KindORI, KindANDI,
		KindSLLI, KindSRLI, KindSRAI,
		KindADD, KindSUB, KindSLL, KindSLT, KindSLTU, KindXOR, KindSRL, KindSRA, KindOR, KindAND:
		h.execALU(d)
	case KindADDIW, KindSLLIW, KindSRLIW, KindSRAIW,
		KindADDW, KindSUBW, KindSLLW, KindSRLW, KindSRAW:
		h.execALU32(d)
	case KindMUL, KindMULH, KindMULHU, KindMULHSU, KindDIV, KindDIVU, KindREM, KindREMU:
		h.execM(d)
	case KindMULW, KindDIVW, KindDIVUW, KindREMW, KindREMUW:
		h.execM32(d)
	case KindFENCE, KindFENCEI:
		// No-op: the interpreter has no instruction cache and executes
		// memory operations in program order already.
	case KindECALL:
		return h.execECALL()
	case KindEBREAK:
		return trap(CauseBreakpoint, h.PC)
	case KindMRET:
		return h.mret()
	case KindSRET:
		return h.sret()
	case KindWFI:
		h.wfi = true
	case KindSFENCEVMA:
		h.MMU.Flush()
		h.Bus.ClearReservation()
	case KindCSRRW, KindCSRRS, KindCSRRC, KindCSRRWI, KindCSRRSI, KindCSRRCI:
		return h.execCSR(d)
	default:
		if isAMO(d.Kind) {
			return h.execAMO(d)
		}

		if isFloat(d.Kind) {
			return h.execFloat(d)
		}

		return trap(CauseIllegalInstruction, uint64(d.Raw))
	}

	return nil
}

func branchTaken(kind Kind, a, b uint64, xlen XLEN) bool {
	sa, sb := signed(a, xlen), signed(b, xlen)

	switch kind {
	case KindBEQ:
		return a == b
	case KindBNE:
		return a != b
	case KindBLT:
		return sa < sb
	case KindBGE:
		return sa >= sb
	case KindBLTU:
		return a < b
	case KindBGEU:
		return a >= b
	default:
		panic(ErrUnreachable)
	}
}

func signed(v uint64, xlen XLEN) int64 {
	if xlen == XLEN32 {
		return int64(int32(v))
	}

	return int64(v)
}

func (h *Hart) execLoad(d Decoded) error {
	addr := h.XLEN.Mask(h.GPR(d.Rs1) + uint64(d.Imm))

	var width Width

	switch d.Kind {
	case KindLB, KindLBU:
		width = Byte
	case KindLH, KindLHU:
		width = Halfword
	case KindLW, KindLWU:
		width = Word
	case KindLD:
		width = Doubleword
	}

	v, err := h.ReadMem(addr, width)
	if err != nil {
		return err
	}

	switch d.Kind {
	case KindLB:
		v = uint64(int64(int8(v)))
	case KindLH:
		v = uint64(int64(int16(v)))
	case KindLW:
		v = uint64(int64(int32(v)))
	}

	h.SetGPR(d.Rd, h.XLEN.Mask(v))

	return nil
}

func (h *Hart) execStore(d Decoded) error {
	addr := h.XLEN.Mask(h.GPR(d.Rs1) + uint64(d.Imm))
	v := h.GPR(d.Rs2)

	var width Width

	switch d.Kind {
	case KindSB:
		width = Byte
	case KindSH:
		width = Halfword
	case KindSW:
		width = Word
	case KindSD:
		width = Doubleword
	}

	return h.WriteMem(addr, width, v)
}

func (h *Hart) execALU(d Decoded) {
	a := h.GPR(d.Rs1)
	var b uint64

	imm := d.Kind == KindADDI || d.Kind == KindSLTI || d.Kind == KindSLTIU ||
		d.Kind == KindXORI || d.Kind == KindORI || d.Kind == KindANDI ||
		d.Kind == KindSLLI || d.Kind == KindSRLI || d.Kind == KindSRAI

	if imm {
		b = uint64(d.Imm)
	} else {
		b = h.GPR(d.Rs2)
	}

	sa, sb := signed(a, h.XLEN), signed(b, h.XLEN)
	shamt := b & h.XLEN.ShiftMask()

	var r uint64

	switch d.Kind {
	case KindADDI, KindADD:
		r = a + b
	case KindSUB:
		r = a - b
	case KindSLTI, KindSLT:
		r = boolToWord(sa < sb)
	case KindSLTIU, KindSLTU:
		r = boolToWord(a < b)
	case KindXORI, KindXOR:
		r = a ^ b
	case KindORI, KindOR:
		r = a | b
	case KindANDI, KindAND:
		r = a & b
	case KindSLLI, KindSLL:
		r = a << shamt
	case KindSRLI, KindSRL:
		r = h.XLEN.Mask(a) >> shamt
	case KindSRAI, KindSRA:
		r = uint64(sa >> shamt)
	default:
		panic(ErrUnreachable)
	}

	h.SetGPR(d.Rd, h.XLEN.Mask(r))
}

func boolToWord(b bool) uint64 {
	if b {
		return 1
	}

	return 0
}

// execALU32 implements the RV64-only W-suffixed instructions, which always
// compute on the low 32 bits and sign-extend the result to 64.
func (h *Hart) execALU32(d Decoded) {
	a := uint32(h.GPR(d.Rs1))

	var b uint32

	imm := d.Kind == KindADDIW || d.Kind == KindSLLIW || d.Kind == KindSRLIW || d.Kind == KindSRAIW
	if imm {
		b = uint32(d.Imm)
	} else {
		b = uint32(h.GPR(d.Rs2))
	}

	shamt := b & 0x1f

	var r uint32

	switch d.Kind {
	case KindADDIW, KindADDW:
		r = a + b
	case KindSUBW:
		r = a - b
	case KindSLLIW, KindSLLW:
		r = a << shamt
	case KindSRLIW, KindSRLW:
		r = a >> shamt
	case KindSRAIW, KindSRAW:
		r = uint32(int32(a) >> shamt)
	default:
		panic(ErrUnreachable)
	}

	h.SetGPR(d.Rd, SignExtend32(r))
}

func (h *Hart) execM(d Decoded) {
	a, b := h.GPR(d.Rs1), h.GPR(d.Rs2)
	sa, sb := signed(a, h.XLEN), signed(b, h.XLEN)

	var r uint64

	switch d.Kind {
	case KindMUL:
		r = a * b
	case KindMULH:
		if h.XLEN == XLEN32 {
			r = uint64(uint32((sa * sb) >> 32))
		} else {
			r = uint64(MulHS(sa, sb))
		}
	case KindMULHU:
		if h.XLEN == XLEN32 {
			r = uint64(uint32((a * b) >> 32))
		} else {
			r = MulHU(a, b)
		}
	case KindMULHSU:
		if h.XLEN == XLEN32 {
			r = uint64(uint32((sa * int64(uint32(b))) >> 32))
		} else {
			r = uint64(MulHSU(sa, b))
		}
	case KindDIV:
		minInt := int64(math.MinInt64)
		if h.XLEN == XLEN32 {
			minInt = int64(math.MinInt32)
		}

		q, _ := DivS(sa, sb, minInt)
		r = uint64(q)
	case KindDIVU:
		q, _ := DivU(h.XLEN.Mask(a), h.XLEN.Mask(b))
		r = q
	case KindREM:
		minInt := int64(math.MinInt64)
		if h.XLEN == XLEN32 {
			minInt = int64(math.MinInt32)
		}

		_, rem := DivS(sa, sb, minInt)
		r = uint64(rem)
	case KindREMU:
		_, rem := DivU(h.XLEN.Mask(a), h.XLEN.Mask(b))
		r = rem
	default:
		panic(ErrUnreachable)
	}

	h.SetGPR(d.Rd, h.XLEN.Mask(r))
}

func (h *Hart) execM32(d Decoded) {
	a, b := int32(h.GPR(d.Rs1)), int32(h.GPR(d.Rs2))
	ua, ub := uint32(a), uint32(b)

	var r uint32

	switch d.Kind {
	case KindMULW:
		r = ua * ub
	case KindDIVW:
		q, _ := DivS(int64(a), int64(b), math.MinInt32)
		r = uint32(q)
	case KindDIVUW:
		q, _ := DivU(uint64(ua), uint64(ub))
		r = uint32(q)
	case KindREMW:
		_, rem := DivS(int64(a), int64(b), math.MinInt32)
		r = uint32(rem)
	case KindREMUW:
		_, rem := DivU(uint64(ua), uint64(ub))
		r = uint32(rem)
	default:
		panic(ErrUnreachable)
	}

	h.SetGPR(d.Rd, SignExtend32(r))
}

func (h *Hart) execECALL() error {
	if h.Mode == ModeUser {
		if h.Syscall == nil {
			return ErrHalted
		}

		return h.Syscall.Syscall(h)
	}

	switch h.Priv {
	case User:
		return trap(CauseEnvironmentCallFromU, 0)
	case Supervisor:
		return trap(CauseEnvironmentCallFromS, 0)
	default:
		return trap(CauseEnvironmentCallFromM, 0)
	}
}

func (h *Hart) execCSR(d Decoded) error {
	addr := uint32(d.Imm)

	old, err := h.CSR.Read(addr, h.Priv)
	if err != nil {
		return err
	}

	immForm := d.Kind == KindCSRRWI || d.Kind == KindCSRRSI || d.Kind == KindCSRRCI

	var src uint64
	if immForm {
		src = uint64(d.Rs1)
	} else {
		src = h.GPR(d.Rs1)
	}

	var newVal uint64

	// CSRRS/CSRRC with a zero source (x0, or a zero immediate) are defined
	// to skip the write entirely, so that a read-only CSR can still be read
	// through them.
	writes := true

	switch d.Kind {
	case KindCSRRW, KindCSRRWI:
		newVal = src
	case KindCSRRS, KindCSRRSI:
		newVal = old | src
		writes = src != 0
	case KindCSRRC, KindCSRRCI:
		newVal = old &^ src
		writes = src != 0
	default:
		panic(ErrUnreachable)
	}

	if writes {
		if err := h.CSR.Write(addr, newVal, h.Priv); err != nil {
			return err
		}

		// A write to satp conservatively flushes the TLB: the address
		// space (and possibly the translation mode) may have changed, and
		// any cached entry could now resolve the wrong physical page.
		if addr == csrSATP {
			h.MMU.Flush()
		}
	}

	h.SetGPR(d.Rd, old)

	return nil
}
