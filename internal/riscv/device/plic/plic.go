// Package plic implements a platform-level interrupt controller subset:
// priority registers, a pending bitmap, per-context enable bitmaps, and the
// claim/complete register pair, modeled on the SiFive PLIC used by virt
// RISC-V platforms.
package plic

import (
	"sync"

	"github.com/wkrp/rvemu/internal/riscv"
)

const maxSources = 32

const (
	priorityBase = 0x000000
	pendingBase  = 0x001000
	enableBase   = 0x002000
	enableStride = 0x80
	contextBase  = 0x200000
	contextStride = 0x1000
)

// PLIC routes up to maxSources external interrupt lines to one or more
// contexts (one per hart/privilege pair that can claim interrupts).
type PLIC struct {
	mu sync.Mutex

	numContexts int
	priority    [maxSources]uint32
	pending     uint32
	enable      []uint32 // one bitmap per context
	threshold   []uint32
	claimed     uint32

	// NotifyContext is invoked whenever a context's effective interrupt
	// line (any enabled, pending, above-threshold source) changes state,
	// so the owning Hart can keep mip.SEIP/MEIP in sync.
	NotifyContext func(context int, pending bool)
}

// New returns a PLIC configured for numContexts claim contexts.
func New(numContexts int) *PLIC {
	return &PLIC{
		numContexts: numContexts,
		enable:      make([]uint32, numContexts),
		threshold:   make([]uint32, numContexts),
	}
}

// Raise marks source (1..maxSources-1) pending, as an external device would
// by asserting its interrupt line.
func (p *PLIC) Raise(source uint32) {
	p.mu.Lock()
	p.pending |= 1 << source
	p.mu.Unlock()

	p.reevaluate()
}

func (p *PLIC) reevaluate() {
	if p.NotifyContext == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for ctx := 0; ctx < p.numContexts; ctx++ {
		active := p.pending &^ (1 << 0) & p.enable[ctx]
		fire := false

		for src := uint32(1); src < maxSources; src++ {
			if active&(1<<src) != 0 && p.priority[src] > p.threshold[ctx] {
				fire = true
				break
			}
		}

		p.NotifyContext(ctx, fire)
	}
}

func (p *PLIC) Load(addr uint64, width riscv.Width) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case addr >= priorityBase && addr < priorityBase+maxSources*4:
		return uint64(p.priority[(addr-priorityBase)/4]), nil
	case addr == pendingBase:
		return uint64(p.pending), nil
	case addr >= enableBase && addr < enableBase+uint64(p.numContexts)*enableStride:
		ctx := (addr - enableBase) / enableStride
		return uint64(p.enable[ctx]), nil
	case addr >= contextBase && addr < contextBase+uint64(p.numContexts)*contextStride:
		ctx := (addr - contextBase) / contextStride
		offset := (addr - contextBase) % contextStride

		if offset == 0 {
			return uint64(p.threshold[ctx]), nil
		}

		if offset == 4 {
			return uint64(p.claim(int(ctx))), nil
		}

		return 0, nil
	default:
		return 0, nil
	}
}

func (p *PLIC) claim(ctx int) uint32 {
	for src := uint32(1); src < maxSources; src++ {
		if p.pending&(1<<src) != 0 && p.enable[ctx]&(1<<src) != 0 {
			p.pending &^= 1 << src
			p.claimed |= 1 << src

			return src
		}
	}

	return 0
}

func (p *PLIC) Store(addr uint64, width riscv.Width, value uint64) error {
	p.mu.Lock()

	switch {
	case addr >= priorityBase && addr < priorityBase+maxSources*4:
		p.priority[(addr-priorityBase)/4] = uint32(value)
	case addr >= enableBase && addr < enableBase+uint64(p.numContexts)*enableStride:
		ctx := (addr - enableBase) / enableStride
		p.enable[ctx] = uint32(value)
	case addr >= contextBase && addr < contextBase+uint64(p.numContexts)*contextStride:
		ctx := (addr - contextBase) / contextStride
		offset := (addr - contextBase) % contextStride

		if offset == 0 {
			p.threshold[ctx] = uint32(value)
		} else if offset == 4 {
			p.claimed &^= 1 << uint32(value)
		}
	}

	p.mu.Unlock()
	p.reevaluate()

	return nil
}
