package riscv

// mmu.go implements Sv32 and Sv39 virtual memory: a page-table walker and a
// small direct-mapped TLB. Translation is invoked from the executor's memory
// accessors; SFENCE.VMA invalidates cached entries.

const (
	satpModeBare = 0
	satpModeSv32 = 1 // stored in satp[31] on RV32
	satpModeSv39 = 8 // stored in satp[63:60] on RV64
)

const pteV = uint64(1) << 0
const pteR = uint64(1) << 1
const pteW = uint64(1) << 2
const pteX = uint64(1) << 3
const pteU = uint64(1) << 4
const pteG = uint64(1) << 5
const pteA = uint64(1) << 6
const pteD = uint64(1) << 7

type tlbEntry struct {
	valid  bool
	vpn    uint64
	phys   uint64 // physical page number
	perm   uint64 // R/W/X/U bits from the leaf PTE
	global bool
}

const tlbSize = 64

// MMU translates virtual addresses to physical addresses under the active
// satp mode, backed by a small direct-mapped TLB.
type MMU struct {
	bus  *Bus
	xlen XLEN

	tlb [tlbSize]tlbEntry
}

func newMMU(bus *Bus, xlen XLEN) *MMU {
	return &MMU{bus: bus, xlen: xlen}
}

// Flush invalidates the whole TLB, or only entries matching a given virtual
// address and address-space id when SFENCE.VMA names one. Only the global
// flush is implemented; rs1/rs2 are accepted for instruction-level fidelity
// but the interpreter always does the coarse thing rather than track ASIDs,
// since precise selective invalidation offers no observable guest benefit
// that a full flush doesn't already provide.
func (m *MMU) Flush() {
	for i := range m.tlb {
		m.tlb[i] = tlbEntry{}
	}
}

func (m *MMU) lookup(vpn uint64) (tlbEntry, bool) {
	idx := vpn % tlbSize
	e := m.tlb[idx]

	if e.valid && e.vpn == vpn {
		return e, true
	}

	return tlbEntry{}, false
}

func (m *MMU) insert(vpn, phys, perm uint64, global bool) {
	idx := vpn % tlbSize
	m.tlb[idx] = tlbEntry{valid: true, vpn: vpn, phys: phys, perm: perm, global: global}
}

// satpMode extracts the active translation scheme from satp for the hart's
// XLEN.
func satpMode(satp uint64, xlen XLEN) int {
	if xlen == XLEN32 {
		if satp&(1<<31) != 0 {
			return satpModeSv32
		}

		return satpModeBare
	}

	return int(satp >> 60)
}

// Translate walks satp's page table (or passes through unchanged in Bare
// mode) to resolve a virtual address for the given access intent, returning
// the corresponding *TrapError on any page fault.
func (m *MMU) Translate(vaddr uint64, satp uint64, priv Privilege, intent Intent, sum, mxr bool) (uint64, error) {
	mode := satpMode(satp, m.xlen)
	if mode == satpModeBare || priv == Machine {
		return vaddr, nil
	}

	if mode == satpModeSv32 {
		return m.translateSv32(vaddr, satp, priv, intent, sum, mxr)
	}

	if mode == satpModeSv39 {
		return m.translateSv39(vaddr, satp, priv, intent, sum, mxr)
	}

	return 0, pageFault(intent, vaddr)
}

func pageFault(intent Intent, vaddr uint64) error {
	switch intent {
	case IntentExecute:
		return trap(CauseInstructionPageFault, vaddr)
	case IntentWrite:
		return trap(CauseStorePageFault, vaddr)
	default:
		return trap(CauseLoadPageFault, vaddr)
	}
}

func checkPerm(pte uint64, priv Privilege, intent Intent, sum, mxr bool) bool {
	if pte&pteU != 0 && priv == Supervisor && !sum {
		return false
	}

	if pte&pteU == 0 && priv == User {
		return false
	}

	switch intent {
	case IntentExecute:
		return pte&pteX != 0
	case IntentWrite:
		return pte&pteW != 0
	default:
		readable := pte&pteR != 0 || (mxr && pte&pteX != 0)
		return readable
	}
}

// translateSv32 implements the two-level Sv32 walk (RV32 only): 4KiB pages,
// 10-bit VPNs, 22-bit physical page numbers.
func (m *MMU) translateSv32(vaddr, satp uint64, priv Privilege, intent Intent, sum, mxr bool) (uint64, error) {
	vpn := []uint64{(vaddr >> 12) & 0x3ff, (vaddr >> 22) & 0x3ff}
	root := (satp & 0x3fffff) << 12

	tlbKey := vaddr >> 12
	if e, ok := m.lookup(tlbKey); ok && checkPerm(e.perm, priv, intent, sum, mxr) {
		return e.phys<<12 | vaddr&0xfff, nil
	}

	a := root

	for level := 1; level >= 0; level-- {
		pteAddr := a + vpn[level]*4
		raw, err := m.bus.Load(pteAddr, Word, IntentRead)
		if err != nil {
			return 0, pageFault(intent, vaddr)
		}

		pte := raw

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, pageFault(intent, vaddr)
		}

		isLeaf := pte&(pteR|pteX) != 0
		if !isLeaf {
			a = ((pte >> 10) & 0x3fffff) << 12
			continue
		}

		if level == 1 && (pte>>10)&0x3ff != 0 {
			return 0, pageFault(intent, vaddr) // misaligned superpage
		}

		if !checkPerm(pte, priv, intent, sum, mxr) {
			return 0, pageFault(intent, vaddr)
		}

		if pte&pteA == 0 || (intent == IntentWrite && pte&pteD == 0) {
			// Hardware A/D update is not modeled; treat as a fault so
			// software (or a future update-on-fault path) can set them.
			return 0, pageFault(intent, vaddr)
		}

		ppn := (pte >> 10) & 0x3fffff
		if level == 1 {
			ppn = ppn&^0x3ff | vpn[0]
		}

		m.insert(tlbKey, ppn, pte&(pteR|pteW|pteX|pteU), pte&pteG != 0)

		return ppn<<12 | vaddr&0xfff, nil
	}

	return 0, pageFault(intent, vaddr)
}

// translateSv39 implements the three-level Sv39 walk: 4KiB pages, 9-bit
// VPNs, 44-bit physical page numbers, sign-extended 39-bit virtual
// addresses.
func (m *MMU) translateSv39(vaddr, satp uint64, priv Privilege, intent Intent, sum, mxr bool) (uint64, error) {
	if SignExtend(vaddr, 39) != vaddr {
		return 0, pageFault(intent, vaddr)
	}

	vpn := []uint64{(vaddr >> 12) & 0x1ff, (vaddr >> 21) & 0x1ff, (vaddr >> 30) & 0x1ff}
	root := (satp & 0xfffffffffff) << 12

	tlbKey := vaddr >> 12
	if e, ok := m.lookup(tlbKey); ok && checkPerm(e.perm, priv, intent, sum, mxr) {
		return e.phys<<12 | vaddr&0xfff, nil
	}

	a := root

	for level := 2; level >= 0; level-- {
		pteAddr := a + vpn[level]*8
		pte, err := m.bus.Load(pteAddr, Doubleword, IntentRead)
		if err != nil {
			return 0, pageFault(intent, vaddr)
		}

		if pte&pteV == 0 || (pte&pteR == 0 && pte&pteW != 0) {
			return 0, pageFault(intent, vaddr)
		}

		isLeaf := pte&(pteR|pteX) != 0
		if !isLeaf {
			a = ((pte >> 10) & 0xfffffffffff) << 12
			continue
		}

		ppn := (pte >> 10) & 0xfffffffffff

		for l := 0; l < level; l++ {
			mask := uint64(0x1ff) << (9 * l)
			if ppn&mask != 0 {
				return 0, pageFault(intent, vaddr) // misaligned superpage
			}
		}

		if !checkPerm(pte, priv, intent, sum, mxr) {
			return 0, pageFault(intent, vaddr)
		}

		if pte&pteA == 0 || (intent == IntentWrite && pte&pteD == 0) {
			return 0, pageFault(intent, vaddr)
		}

		for l := 0; l < level; l++ {
			shift := uint(9 * l)
			ppn = ppn&^(0x1ff<<shift) | vpn[l]<<shift
		}

		m.insert(tlbKey, ppn, pte&(pteR|pteW|pteX|pteU), pte&pteG != 0)

		return ppn<<12 | vaddr&0xfff, nil
	}

	return 0, pageFault(intent, vaddr)
}
