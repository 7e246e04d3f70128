// Package virtio implements a legacy (pre-1.0) virtio-mmio block device: the
// control register window plus a single virtqueue walked directly out of
// guest memory when the driver notifies it, enough to back a read/write
// block device for a guest kernel without pulling in a full virtio-1.0
// negotiation state machine.
package virtio

import (
	"sync"

	"github.com/wkrp/rvemu/internal/riscv"
)

const (
	regMagicValue   = 0x000
	regVersion      = 0x004
	regDeviceID     = 0x008
	regVendorID     = 0x00c
	regHostFeatures = 0x010
	regGuestFeatures = 0x020
	regGuestPageSize = 0x028
	regQueueSel     = 0x030
	regQueueNumMax  = 0x034
	regQueueNum     = 0x038
	regQueueAlign   = 0x03c
	regQueuePFN     = 0x040
	regQueueNotify  = 0x050
	regInterruptStatus = 0x060
	regInterruptACK = 0x064
	regStatus       = 0x070
	regConfig       = 0x100
)

const magicValue = 0x74726976 // "virt"
const deviceIDBlock = 2
const queueNumMax = 128

// descriptor flags.
const (
	descNext  = 1
	descWrite = 2
)

// Block is a virtio-mmio block device backed by an in-memory image. Reads
// and writes to guest memory happen through Bus, which must be set to the
// same bus the device is itself mapped on before the guest issues its first
// request.
type Block struct {
	mu sync.Mutex

	Image []byte
	Bus   *riscv.Bus

	guestPageSize uint32
	queueNum      uint32
	queueAlign    uint32
	queuePFN      uint32
	queueSel      uint32
	status        uint32
	interruptStat uint32

	// Interrupt is invoked after a request completes, so the owning PLIC or
	// CLINT line can be raised.
	Interrupt func()
}

// NewBlock returns a block device presenting image as its backing store.
func NewBlock(image []byte) *Block {
	return &Block{Image: image, guestPageSize: 4096, queueAlign: 4096}
}

func (b *Block) Load(addr uint64, width riscv.Width) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch addr {
	case regMagicValue:
		return magicValue, nil
	case regVersion:
		return 1, nil // legacy interface
	case regDeviceID:
		return deviceIDBlock, nil
	case regVendorID:
		return 0x554d4551, nil // "QEMU" vendor id, widely recognized by guest drivers
	case regHostFeatures:
		return 0, nil
	case regQueueNumMax:
		return queueNumMax, nil
	case regQueuePFN:
		return uint64(b.queuePFN), nil
	case regInterruptStatus:
		return uint64(b.interruptStat), nil
	case regStatus:
		return uint64(b.status), nil
	default:
		if addr >= regConfig {
			return b.readConfig(addr - regConfig, width)
		}

		return 0, nil
	}
}

func (b *Block) readConfig(offset uint64, width riscv.Width) (uint64, error) {
	// The block config space's first field is the 64-bit capacity in
	// 512-byte sectors.
	if offset >= 8 {
		return 0, nil
	}

	capacity := uint64(len(b.Image)) / 512

	return (capacity >> (offset * 8)) & widthMask(width), nil
}

func widthMask(w riscv.Width) uint64 {
	if w == riscv.Doubleword {
		return ^uint64(0)
	}

	return 1<<(w.Bytes()*8) - 1
}

func (b *Block) Store(addr uint64, width riscv.Width, value uint64) error {
	b.mu.Lock()

	switch addr {
	case regGuestFeatures:
	case regGuestPageSize:
		b.guestPageSize = uint32(value)
	case regQueueSel:
		b.queueSel = uint32(value)
	case regQueueNum:
		b.queueNum = uint32(value)
	case regQueueAlign:
		b.queueAlign = uint32(value)
	case regQueuePFN:
		b.queuePFN = uint32(value)
	case regQueueNotify:
		b.mu.Unlock()
		b.processQueue()

		return nil
	case regInterruptACK:
		b.interruptStat &^= uint32(value)
	case regStatus:
		b.status = uint32(value)
	}

	b.mu.Unlock()

	return nil
}

// virtqueue layout constants for the legacy split-ring format.
const (
	descSize = 16
)

func (b *Block) processQueue() {
	b.mu.Lock()
	base := uint64(b.queuePFN) * uint64(b.guestPageSize)
	num := uint64(b.queueNum)
	bus := b.Bus
	b.mu.Unlock()

	if bus == nil || base == 0 {
		return
	}

	descTable := base
	availRing := descTable + num*descSize
	usedRing := align(availRing+4+2*num, uint64(b.queueAlign))

	availIdx, err := readU16(bus, availRing+2)
	if err != nil {
		return
	}

	usedIdx, err := readU16(bus, usedRing+2)
	if err != nil {
		return
	}

	for usedIdx != availIdx {
		slot, err := readU16(bus, availRing+4+2*(uint64(usedIdx)%num))
		if err != nil {
			return
		}

		length := b.handleChain(bus, descTable, uint64(slot))

		writeU32(bus, usedRing+4+8*(uint64(usedIdx)%num), uint32(slot))
		writeU32(bus, usedRing+4+8*(uint64(usedIdx)%num)+4, length)

		usedIdx++

		writeU16(bus, usedRing+2, usedIdx)
	}

	b.mu.Lock()
	b.interruptStat |= 1
	b.mu.Unlock()

	if b.Interrupt != nil {
		b.Interrupt()
	}
}

// handleChain walks one descriptor chain implementing the virtio-blk request
// format: a read-only header (type, reserved, sector), a data buffer, and a
// single write-only status byte.
func (b *Block) handleChain(bus *riscv.Bus, descTable, head uint64) uint32 {
	type desc struct {
		addr, length uint64
		flags        uint16
		next         uint16
	}

	readDesc := func(idx uint64) desc {
		base := descTable + idx*descSize

		addr, _ := readU64(bus, base)
		length, _ := readU32(bus, base+8)
		flags, _ := readU16(bus, base+12)
		next, _ := readU16(bus, base+14)

		return desc{addr, uint64(length), flags, next}
	}

	header := readDesc(head)
	if header.length < 16 {
		return 0
	}

	reqType, _ := readU32(bus, header.addr)
	sector, _ := readU64(bus, header.addr+8)

	if header.flags&descNext == 0 {
		return 0
	}

	data := readDesc(uint64(header.next))

	var written uint32

	offset := sector * 512

	switch reqType {
	case 0: // VIRTIO_BLK_T_IN: device reads from image, writes to guest buffer
		for i := uint64(0); i < data.length && offset+i < uint64(len(b.Image)); i++ {
			bus.Store(data.addr+i, riscv.Byte, uint64(b.Image[offset+i]), riscv.IntentWrite)
		}

		written = uint32(data.length)
	case 1: // VIRTIO_BLK_T_OUT: device reads from guest buffer, writes to image
		for i := uint64(0); i < data.length && offset+i < uint64(len(b.Image)); i++ {
			v, _ := bus.Load(data.addr+i, riscv.Byte, riscv.IntentRead)
			b.Image[offset+i] = byte(v)
		}

		written = uint32(data.length)
	}

	if data.flags&descNext != 0 {
		status := readDesc(uint64(data.next))
		bus.Store(status.addr, riscv.Byte, 0, riscv.IntentWrite) // VIRTIO_BLK_S_OK
	}

	return written
}

func align(v, a uint64) uint64 {
	return (v + a - 1) &^ (a - 1)
}

func readU16(bus *riscv.Bus, addr uint64) (uint16, error) {
	v, err := bus.Load(addr, riscv.Halfword, riscv.IntentRead)
	return uint16(v), err
}

func readU32(bus *riscv.Bus, addr uint64) (uint32, error) {
	v, err := bus.Load(addr, riscv.Word, riscv.IntentRead)
	return uint32(v), err
}

func readU64(bus *riscv.Bus, addr uint64) (uint64, error) {
	return bus.Load(addr, riscv.Doubleword, riscv.IntentRead)
}

func writeU16(bus *riscv.Bus, addr uint64, v uint16) {
	bus.Store(addr, riscv.Halfword, uint64(v), riscv.IntentWrite)
}

func writeU32(bus *riscv.Bus, addr uint64, v uint32) {
	bus.Store(addr, riscv.Word, uint64(v), riscv.IntentWrite)
}
