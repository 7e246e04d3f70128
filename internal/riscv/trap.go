package riscv

// trap.go implements interrupt prioritization and the trap entry/return
// sequences shared by ECALL/EBREAK/exceptions and asynchronous interrupts.

// pendingInterrupt returns the highest-priority interrupt that is both
// pending and enabled for delivery at the hart's current privilege and
// global-enable state, following the fixed RISC-V priority order: machine
// before supervisor, external before software before timer.
func (h *Hart) pendingInterrupt() (TrapCause, bool) {
	pending := h.CSR.mip & h.CSR.mie

	check := func(bit uint64, cause TrapCause) (TrapCause, bool) {
		if pending&bit != 0 {
			return TrapCause(uint64(cause) | interruptBit), true
		}

		return 0, false
	}

	// Machine-level interrupts, gated by mstatus.MIE only when the hart is
	// already in Machine mode (interrupts targeting a lower privilege are
	// always globally enabled from the perspective of a higher one).
	mEnabled := h.Priv != Machine || h.CSR.mstatus&statusMIE != 0
	if mEnabled {
		if c, ok := check(ipMEIP, CauseMachineExternalInterrupt); ok {
			return c, true
		}
		if c, ok := check(ipMSIP, CauseMachineSoftwareInterrupt); ok {
			return c, true
		}
		if c, ok := check(ipMTIP, CauseMachineTimerInterrupt); ok {
			return c, true
		}
	}

	delegated := pending & h.CSR.mideleg

	sEnabled := h.Priv == User || (h.Priv == Supervisor && h.CSR.mstatus&statusSIE != 0)
	if sEnabled {
		if delegated&ipSEIP != 0 {
			return TrapCause(uint64(CauseSupervisorExternalInterrupt) | interruptBit), true
		}
		if delegated&ipSSIP != 0 {
			return TrapCause(uint64(CauseSupervisorSoftwareInterrupt) | interruptBit), true
		}
		if delegated&ipSTIP != 0 {
			return TrapCause(uint64(CauseSupervisorTimerInterrupt) | interruptBit), true
		}
	}

	return 0, false
}

// enterTrap performs the architectural trap-entry sequence: pick the target
// privilege via delegation, save the return state, and redirect the PC to
// the handler's trap vector.
func (h *Hart) enterTrap(cause TrapCause, tval uint64) {
	h.Bus.ClearReservation()

	delegateToS := h.Priv != Machine && !cause.IsInterrupt() && h.CSR.medeleg&(1<<cause.Code()) != 0
	if cause.IsInterrupt() {
		delegateToS = h.Priv != Machine && h.CSR.mideleg&(1<<cause.Code()) != 0
	}

	if delegateToS {
		h.CSR.sepc = h.PC
		h.CSR.scause = uint64(cause)
		h.CSR.stval = tval

		if h.CSR.mstatus&statusSIE != 0 {
			h.CSR.mstatus |= statusSPIE
		} else {
			h.CSR.mstatus &^= statusSPIE
		}

		h.CSR.mstatus &^= statusSIE

		if h.Priv == Supervisor {
			h.CSR.mstatus |= statusSPP
		} else {
			h.CSR.mstatus &^= statusSPP
		}

		h.Priv = Supervisor
		h.PC = trapTarget(h.CSR.stvec, cause)

		return
	}

	h.CSR.mepc = h.PC
	h.CSR.mcause = uint64(cause)
	h.CSR.mtval = tval

	if h.CSR.mstatus&statusMIE != 0 {
		h.CSR.mstatus |= statusMPIE
	} else {
		h.CSR.mstatus &^= statusMPIE
	}

	h.CSR.mstatus &^= statusMIE
	h.CSR.SetMPP(h.Priv)
	h.Priv = Machine
	h.PC = trapTarget(h.CSR.mtvec, cause)
}

// trapTarget resolves a tvec CSR (base + mode) against a cause, implementing
// vectored mode's "base + 4*cause" dispatch for interrupts.
func trapTarget(tvec uint64, cause TrapCause) uint64 {
	base := tvec &^ 0b11
	mode := tvec & 0b11

	if mode == 1 && cause.IsInterrupt() {
		return base + 4*cause.Code()
	}

	return base
}

// mret executes the trap-return sequence for MRET.
func (h *Hart) mret() error {
	if h.Priv != Machine {
		return trap(CauseIllegalInstruction, 0)
	}

	if h.CSR.mstatus&statusMPIE != 0 {
		h.CSR.mstatus |= statusMIE
	} else {
		h.CSR.mstatus &^= statusMIE
	}

	h.CSR.mstatus |= statusMPIE

	prev := h.CSR.MPP()
	h.CSR.SetMPP(User)
	h.Priv = prev
	h.PC = h.CSR.mepc

	return nil
}

// sret executes the trap-return sequence for SRET.
func (h *Hart) sret() error {
	if h.Priv == User {
		return trap(CauseIllegalInstruction, 0)
	}

	if h.CSR.mstatus&statusSPIE != 0 {
		h.CSR.mstatus |= statusSIE
	} else {
		h.CSR.mstatus &^= statusSIE
	}

	h.CSR.mstatus |= statusSPIE

	if h.CSR.mstatus&statusSPP != 0 {
		h.Priv = Supervisor
	} else {
		h.Priv = User
	}

	h.CSR.mstatus &^= statusSPP
	h.PC = h.CSR.sepc

	return nil
}
