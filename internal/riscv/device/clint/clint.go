// Package clint implements the core-local interruptor: the machine-level
// timer and software interrupt source shared by every hart, following the
// SiFive CLINT memory map used by virt-style RISC-V platforms.
package clint

import (
	"sync"

	"github.com/wkrp/rvemu/internal/riscv"
)

const (
	msipBase    = 0x0000
	msipStride  = 4
	mtimecmpBase = 0x4000
	mtimecmpStride = 8
	mtimeOffset = 0xbff8
)

// CLINT holds per-hart software-interrupt-pending bits and timer compare
// registers plus a single free-running mtime counter shared by all harts.
type CLINT struct {
	mu sync.Mutex

	numHarts int
	msip     []uint32
	mtimecmp []uint64
	mtime    uint64

	// SetMSIP and SetMTIP are invoked whenever a write changes a hart's
	// pending bit, so the owning Hart's mip can be kept in sync without the
	// device needing direct access to CSR state.
	SetMSIP func(hart int, pending bool)
	SetMTIP func(hart int, pending bool)
}

// New returns a CLINT sized for numHarts harts.
func New(numHarts int) *CLINT {
	return &CLINT{
		numHarts: numHarts,
		msip:     make([]uint32, numHarts),
		mtimecmp: make([]uint64, numHarts),
	}
}

// Tick advances mtime by one tick and re-evaluates every hart's timer
// interrupt line. Callers drive this from a host ticker; the device itself
// runs no goroutines.
func (c *CLINT) Tick() {
	c.mu.Lock()
	c.mtime++
	mtime := c.mtime
	mtimecmp := append([]uint64(nil), c.mtimecmp...)
	c.mu.Unlock()

	if c.SetMTIP == nil {
		return
	}

	for hart, cmp := range mtimecmp {
		c.SetMTIP(hart, mtime >= cmp)
	}
}

func (c *CLINT) Load(addr uint64, width riscv.Width) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case addr == mtimeOffset:
		return c.mtime, nil
	case addr >= msipBase && addr < msipBase+uint64(c.numHarts*msipStride):
		hart := (addr - msipBase) / msipStride
		return uint64(c.msip[hart]), nil
	case addr >= mtimecmpBase && addr < mtimecmpBase+uint64(c.numHarts*mtimecmpStride):
		hart := (addr - mtimecmpBase) / mtimecmpStride
		return c.mtimecmp[hart], nil
	default:
		return 0, nil
	}
}

func (c *CLINT) Store(addr uint64, width riscv.Width, value uint64) error {
	c.mu.Lock()

	switch {
	case addr == mtimeOffset:
		c.mtime = value
		c.mu.Unlock()

		return nil
	case addr >= msipBase && addr < msipBase+uint64(c.numHarts*msipStride):
		hart := (addr - msipBase) / msipStride
		c.msip[hart] = uint32(value) & 1
		pending := c.msip[hart] != 0
		c.mu.Unlock()

		if c.SetMSIP != nil {
			c.SetMSIP(int(hart), pending)
		}

		return nil
	case addr >= mtimecmpBase && addr < mtimecmpBase+uint64(c.numHarts*mtimecmpStride):
		hart := (addr - mtimecmpBase) / mtimecmpStride
		c.mtimecmp[hart] = value
		mtime := c.mtime
		c.mu.Unlock()

		if c.SetMTIP != nil {
			c.SetMTIP(int(hart), mtime >= value)
		}

		return nil
	default:
		c.mu.Unlock()
		return nil
	}
}
