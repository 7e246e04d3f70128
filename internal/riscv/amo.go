package riscv

// amo.go implements the A-extension: load-reserved/store-conditional and
// the atomic-memory-operation family, all funnelled through the bus's
// reservation set so that LR/SC pairing works the same whether or not any
// AMO ever executes between them.

func isAMO(k Kind) bool {
	switch k {
	case KindLRW, KindSCW, KindAMOSWAPW, KindAMOADDW, KindAMOANDW, KindAMOORW, KindAMOXORW,
		KindAMOMINW, KindAMOMAXW, KindAMOMINUW, KindAMOMAXUW,
		KindLRD, KindSCD, KindAMOSWAPD, KindAMOADDD, KindAMOANDD, KindAMOORD, KindAMOXORD,
		KindAMOMIND, KindAMOMAXD, KindAMOMINUD, KindAMOMAXUD:
		return true
	default:
		return false
	}
}

func (h *Hart) execAMO(d Decoded) error {
	width := Word
	if isDoubleAMO(d.Kind) {
		width = Doubleword
	}

	addr := h.GPR(d.Rs1)
	isLoadReserved := d.Kind == KindLRW || d.Kind == KindLRD

	if addr%width.Bytes() != 0 {
		if isLoadReserved {
			return trap(CauseLoadAddressMisaligned, addr)
		}

		return trap(CauseStoreAddressMisaligned, addr)
	}

	intent := IntentWrite
	if isLoadReserved {
		intent = IntentRead
	}

	paddr, err := h.translate(addr, intent)
	if err != nil {
		return err
	}

	switch d.Kind {
	case KindLRW, KindLRD:
		v, err := h.Bus.Load(paddr, width, IntentRead)
		if err != nil {
			return trap(CauseLoadAccessFault, addr)
		}

		h.Bus.Reserve(paddr)
		h.SetGPR(d.Rd, signExtendWidth(v, width))

		return nil
	case KindSCW, KindSCD:
		ok, err := h.Bus.StoreConditional(paddr, width, h.XLEN.Mask(h.GPR(d.Rs2)))
		if err != nil {
			return trap(CauseStoreAccessFault, addr)
		}

		if ok {
			h.SetGPR(d.Rd, 0)
		} else {
			h.SetGPR(d.Rd, 1)
		}

		return nil
	}

	old, err := h.Bus.Load(paddr, width, IntentRead)
	if err != nil {
		return trap(CauseLoadAccessFault, addr)
	}

	rhs := h.XLEN.Mask(h.GPR(d.Rs2))

	result := amoCombine(d.Kind, old, rhs, width)

	if err := h.Bus.Store(paddr, width, result, IntentWrite); err != nil {
		return trap(CauseStoreAccessFault, addr)
	}

	h.SetGPR(d.Rd, signExtendWidth(old, width))

	return nil
}

func isDoubleAMO(k Kind) bool {
	switch k {
	case KindLRD, KindSCD, KindAMOSWAPD, KindAMOADDD, KindAMOANDD, KindAMOORD, KindAMOXORD,
		KindAMOMIND, KindAMOMAXD, KindAMOMINUD, KindAMOMAXUD:
		return true
	default:
		return false
	}
}

func signExtendWidth(v uint64, width Width) uint64 {
	if width == Word {
		return SignExtend32(uint32(v))
	}

	return v
}

func amoCombine(kind Kind, old, rhs uint64, width Width) uint64 {
	var oldSigned, rhsSigned int64

	if width == Word {
		oldSigned, rhsSigned = int64(int32(old)), int64(int32(rhs))
	} else {
		oldSigned, rhsSigned = int64(old), int64(rhs)
	}

	switch kind {
	case KindAMOSWAPW, KindAMOSWAPD:
		return rhs
	case KindAMOADDW, KindAMOADDD:
		return old + rhs
	case KindAMOANDW, KindAMOANDD:
		return old & rhs
	case KindAMOORW, KindAMOORD:
		return old | rhs
	case KindAMOXORW, KindAMOXORD:
		return old ^ rhs
	case KindAMOMINW, KindAMOMIND:
		if oldSigned < rhsSigned {
			return old
		}

		return rhs
	case KindAMOMAXW, KindAMOMAXD:
		if oldSigned > rhsSigned {
			return old
		}

		return rhs
	case KindAMOMINUW, KindAMOMINUD:
		if maskWidth(old, width) < maskWidth(rhs, width) {
			return old
		}

		return rhs
	case KindAMOMAXUW, KindAMOMAXUD:
		if maskWidth(old, width) > maskWidth(rhs, width) {
			return old
		}

		return rhs
	default:
		panic(ErrUnreachable)
	}
}

func maskWidth(v uint64, width Width) uint64 {
	if width == Word {
		return v & 0xffffffff
	}

	return v
}
