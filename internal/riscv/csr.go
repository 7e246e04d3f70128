package riscv

// csr.go implements the control and status register file: mstatus/sstatus,
// the trap-delegation and interrupt-enable registers, and the supervisor
// address-translation register. Reads and writes go through CSRFile.Read and
// CSRFile.Write so that WARL (write-any, read-legal) masking happens in one
// place.

// CSR addresses used by this implementation. Only the subset required by
// Machine and Supervisor mode trap handling and Sv32/Sv39 translation is
// modeled; unrecognized CSRs trap as illegal instructions.
const (
	csrFFLAGS = 0x001
	csrFRM    = 0x002
	csrFCSR   = 0x003

	csrSSTATUS    = 0x100
	csrSIE        = 0x104
	csrSTVEC      = 0x105
	csrSCOUNTEREN = 0x106
	csrSSCRATCH   = 0x140
	csrSEPC       = 0x141
	csrSCAUSE     = 0x142
	csrSTVAL      = 0x143
	csrSIP        = 0x144
	csrSATP       = 0x180

	csrMSTATUS    = 0x300
	csrMISA       = 0x301
	csrMEDELEG    = 0x302
	csrMIDELEG    = 0x303
	csrMIE        = 0x304
	csrMTVEC      = 0x305
	csrMCOUNTEREN = 0x306
	csrMSCRATCH   = 0x340
	csrMEPC       = 0x341
	csrMCAUSE     = 0x342
	csrMTVAL      = 0x343
	csrMIP        = 0x344

	csrMHARTID = 0xf14

	csrMCYCLE   = 0xb00
	csrMINSTRET = 0xb02

	csrCYCLE   = 0xc00
	csrTIME    = 0xc01
	csrINSTRET = 0xc02
)

// mstatus / sstatus bit positions used by trap entry/return.
const (
	statusSIE  = uint64(1) << 1
	statusMIE  = uint64(1) << 3
	statusSPIE = uint64(1) << 5
	statusMPIE = uint64(1) << 7
	statusSPP  = uint64(1) << 8
	statusMPP  = uint64(3) << 11
	statusMPPShift = 11
)

// mip / mie / sip / sie bit positions.
const (
	ipSSIP = uint64(1) << 1
	ipMSIP = uint64(1) << 3
	ipSTIP = uint64(1) << 5
	ipMTIP = uint64(1) << 7
	ipSEIP = uint64(1) << 9
	ipMEIP = uint64(1) << 11

	sMask = ipSSIP | ipSTIP | ipSEIP // bits visible through sip/sie
)

// CSRFile holds all control and status register state for one hart.
type CSRFile struct {
	HartID uint64

	mstatus uint64
	mie     uint64
	mip     uint64
	mtvec   uint64
	mepc    uint64
	mcause  uint64
	mtval   uint64
	mscratch uint64
	medeleg uint64
	mideleg uint64
	mcounteren uint64

	stvec      uint64
	sepc       uint64
	scause     uint64
	stval      uint64
	sscratch   uint64
	satp       uint64
	scounteren uint64

	fflags uint64
	frm    uint64

	cycle, instret uint64

	xlen XLEN
}

func newCSRFile(hartID uint64, xlen XLEN) *CSRFile {
	return &CSRFile{HartID: hartID, xlen: xlen}
}

func isReadOnly(addr uint32) bool { return (addr>>10)&0b11 == 0b11 }

func csrPrivilege(addr uint32) Privilege {
	switch (addr >> 8) & 0b11 {
	case 0b00:
		return User
	case 0b01:
		return Supervisor
	default:
		return Machine
	}
}

// Read returns the current value of csr, or an illegal-instruction trap if
// the current privilege cannot access it or the number is unrecognized.
func (c *CSRFile) Read(addr uint32, priv Privilege) (uint64, error) {
	if csrPrivilege(addr) > priv {
		return 0, trap(CauseIllegalInstruction, uint64(addr))
	}

	switch addr {
	case csrFFLAGS:
		return c.fflags, nil
	case csrFRM:
		return c.frm, nil
	case csrFCSR:
		return c.frm<<5 | c.fflags, nil
	case csrMSTATUS, csrSSTATUS:
		v := c.mstatus
		if addr == csrSSTATUS {
			v &= sstatusMask
		}

		return v, nil
	case csrMISA:
		return c.misa(), nil
	case csrMEDELEG:
		return c.medeleg, nil
	case csrMIDELEG:
		return c.mideleg, nil
	case csrMIE:
		return c.mie, nil
	case csrSIE:
		return c.mie & sMask, nil
	case csrMTVEC:
		return c.mtvec, nil
	case csrSTVEC:
		return c.stvec, nil
	case csrMCOUNTEREN:
		return c.mcounteren, nil
	case csrSCOUNTEREN:
		return c.scounteren, nil
	case csrMSCRATCH:
		return c.mscratch, nil
	case csrSSCRATCH:
		return c.sscratch, nil
	case csrMEPC:
		return c.mepc, nil
	case csrSEPC:
		return c.sepc, nil
	case csrMCAUSE:
		return c.mcause, nil
	case csrSCAUSE:
		return c.scause, nil
	case csrMTVAL:
		return c.mtval, nil
	case csrSTVAL:
		return c.stval, nil
	case csrMIP:
		return c.mip, nil
	case csrSIP:
		return c.mip & sMask, nil
	case csrSATP:
		return c.satp, nil
	case csrMHARTID:
		return c.HartID, nil
	case csrMCYCLE, csrCYCLE, csrTIME:
		return c.cycle, nil
	case csrMINSTRET, csrINSTRET:
		return c.instret, nil
	default:
		return 0, trap(CauseIllegalInstruction, uint64(addr))
	}
}

const sstatusMask = statusSIE | statusSPIE | statusSPP | (uint64(3) << 13) /*FS*/ | (uint64(1) << 18) /*SUM*/ | (uint64(1) << 19) /*MXR*/ | (uint64(1) << 63) /*SD*/

func (c *CSRFile) misa() uint64 {
	var mxl uint64 = 1
	if c.xlen == XLEN64 {
		mxl = 2
	}

	extensions := uint64(1<<('I'-'A') | 1<<('M'-'A') | 1<<('A'-'A') | 1<<('F'-'A') | 1<<('D'-'A') | 1<<('S'-'A') | 1<<('U'-'A'))

	shift := uint64(30)
	if c.xlen == XLEN64 {
		shift = 62
	}

	return mxl<<shift | extensions
}

// Write sets csr to value, applying WARL masking per register. Returns an
// illegal-instruction trap for read-only or privilege-inaccessible targets.
func (c *CSRFile) Write(addr uint32, value uint64, priv Privilege) error {
	if isReadOnly(addr) {
		return trap(CauseIllegalInstruction, uint64(addr))
	}

	if csrPrivilege(addr) > priv {
		return trap(CauseIllegalInstruction, uint64(addr))
	}

	switch addr {
	case csrFFLAGS:
		c.fflags = value & 0x1f
	case csrFRM:
		c.frm = value & 0x7
	case csrFCSR:
		c.frm = (value >> 5) & 0x7
		c.fflags = value & 0x1f
	case csrMSTATUS:
		c.mstatus = c.mstatus&^mstatusWritable | value&mstatusWritable
	case csrSSTATUS:
		c.mstatus = c.mstatus&^sstatusMask | value&sstatusMask
	case csrMEDELEG:
		c.medeleg = value & 0xffff
	case csrMIDELEG:
		c.mideleg = value & sMask
	case csrMIE:
		c.mie = value & ieMask
	case csrSIE:
		c.mie = c.mie&^sMask | value&sMask
	case csrMTVEC:
		c.mtvec = value &^ 0b10 // mode must be Direct(0) or Vectored(1)
	case csrSTVEC:
		c.stvec = value &^ 0b10
	case csrMCOUNTEREN:
		c.mcounteren = value
	case csrSCOUNTEREN:
		c.scounteren = value
	case csrMSCRATCH:
		c.mscratch = value
	case csrSSCRATCH:
		c.sscratch = value
	case csrMEPC:
		c.mepc = value &^ 1
	case csrSEPC:
		c.sepc = value &^ 1
	case csrMCAUSE:
		c.mcause = value
	case csrSCAUSE:
		c.scause = value
	case csrMTVAL:
		c.mtval = value
	case csrSTVAL:
		c.stval = value
	case csrMIP:
		c.mip = c.mip&^ipSoftWritable | value&ipSoftWritable
	case csrSIP:
		c.mip = c.mip&^ipSSIP | value&ipSSIP
	case csrSATP:
		c.satp = value
	case csrMCYCLE:
		c.cycle = value
	case csrMINSTRET:
		c.instret = value
	default:
		return trap(CauseIllegalInstruction, uint64(addr))
	}

	return nil
}

const mstatusWritable = statusSIE | statusMIE | statusSPIE | statusMPIE | statusSPP | statusMPP | (uint64(3) << 13) | (uint64(1) << 18) | (uint64(1) << 19)
const ieMask = ipSSIP | ipMSIP | ipSTIP | ipMTIP | ipSEIP | ipMEIP
const ipSoftWritable = ipSSIP | ipSTIP // machine software/timer pending bits are set by devices, not CSR writes

// MPP returns the privilege level recorded in mstatus.MPP.
func (c *CSRFile) MPP() Privilege { return Privilege((c.mstatus & statusMPP) >> statusMPPShift) }

// SetMPP overwrites mstatus.MPP.
func (c *CSRFile) SetMPP(p Privilege) {
	c.mstatus = c.mstatus&^statusMPP | (uint64(p)<<statusMPPShift)&statusMPP
}
