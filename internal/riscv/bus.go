package riscv

import "sort"

// Device is a memory-mapped peripheral or memory region. Load and Store
// operate on physical addresses already translated by the MMU (or passed
// through unchanged in bare-metal physical mode); both width and byte order
// are little-endian per the base RISC-V specification.
type Device interface {
	Load(addr uint64, width Width) (uint64, error)
	Store(addr uint64, width Width, value uint64) error
}

// region is one Device mapped into the physical address space at [Base,
// Base+Size).
type region struct {
	Base, Size uint64
	Name       string
	Device     Device
}

func (r region) contains(addr uint64) bool {
	return addr >= r.Base && addr < r.Base+r.Size
}

// Bus is the physical address space: an ordered list of mapped regions plus
// the reservation-set bookkeeping backing LR/SC.
type Bus struct {
	regions []region

	reserveValid bool
	reserveAddr  uint64
}

// NewBus returns an empty physical bus. Call Map to attach RAM and MMIO
// device windows before use.
func NewBus() *Bus {
	return &Bus{}
}

// Map attaches a device at the given physical base address. Overlapping
// regions are a configuration error caught at Map time rather than at first
// access, so it panics; all mappings happen during machine construction,
// never in response to guest-controlled input.
func (b *Bus) Map(name string, base, size uint64, dev Device) {
	for _, r := range b.regions {
		if base < r.Base+r.Size && r.Base < base+size {
			panic("riscv: bus region " + name + " overlaps " + r.Name)
		}
	}

	b.regions = append(b.regions, region{Base: base, Size: size, Name: name, Device: dev})

	sort.Slice(b.regions, func(i, j int) bool { return b.regions[i].Base < b.regions[j].Base })
}

func (b *Bus) find(addr uint64) (region, bool) {
	for _, r := range b.regions {
		if r.contains(addr) {
			return r, true
		}
	}

	return region{}, false
}

// Load reads width bits at addr from whichever region claims it.
func (b *Bus) Load(addr uint64, width Width, intent Intent) (uint64, error) {
	r, ok := b.find(addr)
	if !ok {
		return 0, &AccessFaultError{Addr: addr, Intent: intent}
	}

	return r.Device.Load(addr-r.Base, width)
}

// Store writes value truncated to width bits at addr. Any reservation
// covering addr is invalidated, per the RISC-V A-extension rule that any
// store to a reserved address (by any hart) breaks the reservation.
func (b *Bus) Store(addr uint64, width Width, value uint64, intent Intent) error {
	r, ok := b.find(addr)
	if !ok {
		return &AccessFaultError{Addr: addr, Intent: intent}
	}

	if b.reserveValid && sameReservationGranule(addr, b.reserveAddr) {
		b.reserveValid = false
	}

	return r.Device.Store(addr-r.Base, width, value)
}

func sameReservationGranule(a, b uint64) bool {
	const granule = 8
	return a/granule == b/granule
}

// Reserve records a load-reserved at addr, per LR.W/LR.D.
func (b *Bus) Reserve(addr uint64) {
	b.reserveValid = true
	b.reserveAddr = addr
}

// ClearReservation invalidates any outstanding LR reservation. Called on
// every trap entry, since any trap between an LR and its paired SC breaks
// the reservation per the A-extension.
func (b *Bus) ClearReservation() {
	b.reserveValid = false
}

// StoreConditional attempts the paired store for SC.W/SC.D. It reports
// success (true) only if a matching reservation was live; any success or
// failure clears the reservation, matching the architecture's "at most one
// SC may succeed per LR" rule.
func (b *Bus) StoreConditional(addr uint64, width Width, value uint64) (bool, error) {
	ok := b.reserveValid && sameReservationGranule(addr, b.reserveAddr)
	b.reserveValid = false

	if !ok {
		return false, nil
	}

	if err := b.Store(addr, width, value, IntentWrite); err != nil {
		return false, err
	}

	return true, nil
}

// RAM is a flat byte-addressable Device backing guest physical memory.
type RAM struct {
	bytes []byte
}

// NewRAM allocates size bytes of zeroed guest memory.
func NewRAM(size uint64) *RAM {
	return &RAM{bytes: make([]byte, size)}
}

// Bytes exposes the backing slice for bulk operations such as ELF segment
// loading; offset is relative to the region's own base, not the bus address.
func (m *RAM) Bytes() []byte { return m.bytes }

func (m *RAM) Load(addr uint64, width Width) (uint64, error) {
	n := width.Bytes()
	if addr+n > uint64(len(m.bytes)) {
		return 0, &AccessFaultError{Addr: addr, Intent: IntentRead}
	}

	var v uint64

	for i := uint64(0); i < n; i++ {
		v |= uint64(m.bytes[addr+i]) << (8 * i)
	}

	return v, nil
}

func (m *RAM) Store(addr uint64, width Width, value uint64) error {
	n := width.Bytes()
	if addr+n > uint64(len(m.bytes)) {
		return &AccessFaultError{Addr: addr, Intent: IntentWrite}
	}

	for i := uint64(0); i < n; i++ {
		m.bytes[addr+i] = byte(value >> (8 * i))
	}

	return nil
}
