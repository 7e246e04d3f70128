package riscv

import (
	"log/slog"
)

// hart.go defines Hart, the per-core interpreter state, and its functional-
// options constructor. Construction happens in two passes, mirroring how
// the rest of the machine is wired up: options run once before the bus and
// devices exist (to set XLEN, mode, and the logger) and once after (to let
// callers attach a fully mapped Bus), so that an option can depend on
// whichever half of construction it needs.

// Hart is one RISC-V hardware thread: its integer and floating-point
// register files, program counter, CSR file, privilege mode, and the bus/MMU
// it executes against.
type Hart struct {
	XLEN XLEN
	Mode ExecMode

	PC uint64
	X  [NumGPR]uint64
	F  [NumFPR]uint64

	Priv Privilege
	CSR  *CSRFile

	Bus *Bus
	MMU *MMU

	// Syscall services ECALL in ModeUser; nil in ModeBare, where ECALL
	// traps architecturally instead.
	Syscall SyscallHandler

	log *slog.Logger

	halted bool
	wfi    bool

	retired uint64
}

// SyscallHandler services an environment call made while the hart is
// running in user mode, emulating a Linux system call directly on the host
// rather than trapping into a guest kernel.
type SyscallHandler interface {
	Syscall(h *Hart) error
}

// Option configures a Hart during New. Options are applied in two phases:
// pre-bus options (WithXLEN, WithMode, WithLogger, WithHartID) configure the
// values New itself needs before it can build CSR/MMU state, and post-bus
// options (WithBus, WithSyscallHandler) attach collaborators assembled by
// the caller afterward.
type Option func(*Hart)

// WithXLEN selects the native integer width. Defaults to XLEN64.
func WithXLEN(xlen XLEN) Option {
	return func(h *Hart) { h.XLEN = xlen }
}

// WithMode selects user-mode syscall passthrough or bare-metal supervisor
// execution. Defaults to ModeBare.
func WithMode(mode ExecMode) Option {
	return func(h *Hart) { h.Mode = mode }
}

// WithLogger attaches a structured logger; a nil logger is replaced with
// slog.Default() by New.
func WithLogger(log *slog.Logger) Option {
	return func(h *Hart) { h.log = log }
}

// WithHartID sets the value read back from the mhartid CSR.
func WithHartID(id uint64) Option {
	return func(h *Hart) { h.CSR.HartID = id }
}

// WithBus attaches the physical bus the hart executes against. Required;
// New panics if it's never supplied, since a hart with no memory cannot
// fetch its first instruction.
func WithBus(bus *Bus) Option {
	return func(h *Hart) { h.Bus = bus }
}

// WithSyscallHandler installs the handler used to service ECALL in
// ModeUser.
func WithSyscallHandler(s SyscallHandler) Option {
	return func(h *Hart) { h.Syscall = s }
}

// WithEntry sets the initial program counter, typically the ELF entry
// point.
func WithEntry(pc uint64) Option {
	return func(h *Hart) { h.PC = pc }
}

// WithPrivilege sets the hart's initial privilege mode. Bare-metal machines
// usually start in Machine mode (the default); user-mode processes start in
// User mode directly since there's no supervisor to receive a boot trap.
func WithPrivilege(p Privilege) Option {
	return func(h *Hart) { h.Priv = p }
}

// New constructs a Hart, running options twice: once to collect CPU
// configuration (XLEN, mode, logger, hart ID) and once more after the CSR
// file and MMU exist, so options that need them (WithBus) see a fully
// formed receiver.
func New(opts ...Option) *Hart {
	h := &Hart{
		XLEN: XLEN64,
		Mode: ModeBare,
		Priv: Machine,
		CSR:  newCSRFile(0, XLEN64),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.CSR.xlen = h.XLEN

	if h.log == nil {
		h.log = slog.Default()
	}

	if h.MMU == nil && h.Bus != nil {
		h.MMU = newMMU(h.Bus, h.XLEN)
	}

	for _, opt := range opts {
		opt(h)
	}

	if h.Bus == nil {
		panic("riscv: Hart constructed without a Bus; call New with WithBus")
	}

	if h.MMU == nil {
		h.MMU = newMMU(h.Bus, h.XLEN)
	}

	return h
}

// GPR returns register r, always zero for x0.
func (h *Hart) GPR(r GPR) uint64 {
	if r == 0 {
		return 0
	}

	return h.XLEN.Mask(h.X[r])
}

// SetGPR writes register r, silently discarding writes to x0.
func (h *Hart) SetGPR(r GPR, v uint64) {
	if r == 0 {
		return
	}

	h.X[r] = h.XLEN.Mask(v)
}

// Retired returns the number of instructions committed so far, backing the
// instret CSR.
func (h *Hart) Retired() uint64 { return h.retired }

// sum and mxr report the corresponding mstatus bits read by the MMU's
// permission check.
func (h *Hart) sum() bool { return h.CSR.mstatus&(1<<18) != 0 }
func (h *Hart) mxr() bool { return h.CSR.mstatus&(1<<19) != 0 }

func (h *Hart) translate(vaddr uint64, intent Intent) (uint64, error) {
	return h.MMU.Translate(vaddr, h.CSR.satp, h.Priv, intent, h.sum(), h.mxr())
}

// ReadMem loads width bits from a virtual address, translating through the
// MMU first.
func (h *Hart) ReadMem(vaddr uint64, width Width) (uint64, error) {
	paddr, err := h.translate(vaddr, IntentRead)
	if err != nil {
		return 0, err
	}

	v, err := h.Bus.Load(paddr, width, IntentRead)
	if err != nil {
		return 0, trap(CauseLoadAccessFault, vaddr)
	}

	return v, nil
}

// WriteMem stores width bits of value to a virtual address, translating
// through the MMU first.
func (h *Hart) WriteMem(vaddr uint64, width Width, value uint64) error {
	paddr, err := h.translate(vaddr, IntentWrite)
	if err != nil {
		return err
	}

	if err := h.Bus.Store(paddr, width, value, IntentWrite); err != nil {
		return trap(CauseStoreAccessFault, vaddr)
	}

	return nil
}

// FetchInstruction loads the 32-bit word at the current PC. The core
// implements no compressed (C) extension, so any fetch target not aligned to
// a 4-byte boundary is architecturally misaligned.
func (h *Hart) FetchInstruction() (uint32, error) {
	if h.PC%4 != 0 {
		return 0, trap(CauseInstructionAddressMisaligned, h.PC)
	}

	paddr, err := h.translate(h.PC, IntentExecute)
	if err != nil {
		return 0, err
	}

	v, err := h.Bus.Load(paddr, Word, IntentExecute)
	if err != nil {
		return 0, trap(CauseInstructionAccessFault, h.PC)
	}

	return uint32(v), nil
}
