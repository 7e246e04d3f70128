// Package uart implements a 16550-compatible serial port. Received bytes
// are fed in through Push and transmitted bytes are handed to a callback, so
// a host terminal (wired up through cmd/internal/tty) can sit on the other
// end without the device package knowing anything about ttys.
package uart

import (
	"sync"

	"github.com/wkrp/rvemu/internal/riscv"
)

// Register offsets, relative to the device's base address, matching ns16550a.
const (
	regRBR = 0x0 // receiver buffer (read)
	regTHR = 0x0 // transmitter holding (write)
	regDLL = 0x0 // divisor latch low, when LCR.DLAB set
	regIER = 0x1
	regDLM = 0x1 // divisor latch high, when LCR.DLAB set
	regIIR = 0x2 // interrupt identification (read)
	regFCR = 0x2 // FIFO control (write)
	regLCR = 0x3
	regMCR = 0x4
	regLSR = 0x5
	regMSR = 0x6
	regSCR = 0x7
)

// Line Status Register bits.
const (
	lsrDR   = 1 << 0 // data ready
	lsrTHRE = 1 << 5 // transmit holding register empty
	lsrTEMT = 1 << 6 // transmitter empty
)

const ierRDA = 1 << 0 // receive data available interrupt enable

// UART is a minimal 16550 with a one-byte receive path (RX) and a callback
// for transmitted bytes (TX), enough to drive a guest console.
type UART struct {
	mu sync.Mutex

	rxByte  byte
	rxReady bool

	ier byte
	lcr byte
	dll byte
	dlm byte

	// TX is invoked synchronously from Store whenever the guest writes the
	// transmit holding register; nil discards output.
	TX func(b byte)

	irq func()
}

// New returns a UART with no data pending. SetIRQ should be called once the
// owning PLIC or CLINT line is known, so the device can signal interrupts
// when bytes arrive.
func New() *UART {
	return &UART{}
}

// SetIRQ installs the callback invoked when an RX interrupt becomes pending.
func (u *UART) SetIRQ(f func()) { u.irq = f }

// Push delivers one byte from the host side (a real terminal, a pty, a
// test harness) into the receive buffer, raising an interrupt if enabled.
func (u *UART) Push(b byte) {
	u.mu.Lock()
	u.rxByte = b
	u.rxReady = true
	raise := u.ier&ierRDA != 0
	u.mu.Unlock()

	if raise && u.irq != nil {
		u.irq()
	}
}

func (u *UART) Load(addr uint64, width riscv.Width) (uint64, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch addr {
	case regRBR:
		if u.lcr&0x80 != 0 {
			return uint64(u.dll), nil
		}

		u.rxReady = false

		return uint64(u.rxByte), nil
	case regIER:
		if u.lcr&0x80 != 0 {
			return uint64(u.dlm), nil
		}

		return uint64(u.ier), nil
	case regIIR:
		if u.ier&ierRDA != 0 && u.rxReady {
			return 0x04, nil // RX data available
		}

		return 0x01, nil // no interrupt pending
	case regLCR:
		return uint64(u.lcr), nil
	case regLSR:
		lsr := byte(lsrTHRE | lsrTEMT)
		if u.rxReady {
			lsr |= lsrDR
		}

		return uint64(lsr), nil
	case regMSR:
		return 0, nil
	default:
		return 0, nil
	}
}

func (u *UART) Store(addr uint64, width riscv.Width, value uint64) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	b := byte(value)

	switch addr {
	case regTHR:
		if u.lcr&0x80 != 0 {
			u.dll = b
			return nil
		}

		if u.TX != nil {
			u.TX(b)
		}
	case regIER:
		if u.lcr&0x80 != 0 {
			u.dlm = b
			return nil
		}

		u.ier = b
	case regFCR:
		// FIFO control: the model has no FIFO to configure, accepted and
		// discarded.
	case regLCR:
		u.lcr = b
	case regMCR, regSCR:
		// Modem control / scratch: unobserved by the guest-facing console.
	}

	return nil
}
