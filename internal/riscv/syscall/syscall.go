// Package syscall services Linux-compatible environment calls made by a
// guest binary running directly under the interpreter's user-mode executor,
// translating the handful of syscalls a typical statically linked RISC-V
// binary needs into host equivalents.
package syscall

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/wkrp/rvemu/internal/riscv"
)

// RISC-V Linux syscall numbers (generic ABI, shared across RV32 and RV64).
const (
	sysGetcwd       = 17
	sysDup          = 23
	sysFcntl        = 25
	sysIoctl        = 29
	sysOpenat       = 56
	sysClose        = 57
	sysLseek        = 62
	sysRead         = 63
	sysWrite        = 64
	sysWritev       = 66
	sysReadlinkat   = 78
	sysFstatat      = 79
	sysFstat        = 80
	sysExit         = 93
	sysExitGroup    = 94
	sysSetTidAddr   = 96
	sysClockGetTime = 113
	sysGetpid       = 172
	sysGettimeofday = 169
	sysBrk          = 214
	sysMunmap       = 215
	sysMmap         = 222
	sysRtSigaction  = 134
	sysRtSigprocmask = 135
)

// Handler services ECALL for a single guest process, emulating Linux
// syscalls directly against host file descriptors. It implements
// riscv.SyscallHandler.
type Handler struct {
	Log *slog.Logger

	files map[int64]*os.File
	nextFD int64

	brk uint64

	Exited   bool
	ExitCode int
}

// NewHandler returns a Handler with stdin/stdout/stderr pre-opened at file
// descriptors 0, 1, 2, and the program break initialized to brkStart (the
// image's end address, rounded up to a page).
func NewHandler(log *slog.Logger, brkStart uint64) *Handler {
	h := &Handler{
		Log:    log,
		files:  make(map[int64]*os.File),
		nextFD: 3,
		brk:    brkStart,
	}

	h.files[0] = os.Stdin
	h.files[1] = os.Stdout
	h.files[2] = os.Stderr

	return h
}

func (h *Handler) regArgs(hart *riscv.Hart) (a0, a1, a2, a3, a4, a5 uint64) {
	return hart.GPR(10), hart.GPR(11), hart.GPR(12), hart.GPR(13), hart.GPR(14), hart.GPR(15)
}

// Syscall dispatches on the syscall number in a7, reading arguments from
// a0-a5 and writing the return value (or -errno) back to a0.
func (h *Handler) Syscall(hart *riscv.Hart) error {
	num := hart.GPR(17)
	a0, a1, a2, a3, _, _ := h.regArgs(hart)

	var ret int64

	switch num {
	case sysWrite:
		ret = h.write(int64(a0), hart, a1, a2)
	case sysWritev:
		ret = h.writev(int64(a0), hart, a1, a2)
	case sysRead:
		ret = h.read(int64(a0), hart, a1, a2)
	case sysOpenat:
		ret = h.openat(hart, a1, a2, a3)
	case sysClose:
		ret = h.close(int64(a0))
	case sysLseek:
		ret = h.lseek(int64(a0), int64(a1), int64(a2))
	case sysFstat:
		ret = h.fstat(int64(a0), hart, a1)
	case sysBrk:
		ret = int64(h.brk2(a0))
	case sysExit, sysExitGroup:
		h.Exited = true
		h.ExitCode = int(int32(a0))

		return nil
	case sysGetpid:
		ret = int64(os.Getpid())
	case sysGettimeofday:
		ret = h.gettimeofday(hart, a0)
	case sysClockGetTime:
		ret = h.clockGetTime(hart, a0, a1)
	case sysSetTidAddr:
		ret = int64(os.Getpid())
	case sysIoctl, sysFcntl, sysRtSigaction, sysRtSigprocmask:
		ret = 0 // accepted as a no-op; the guest only needs these to not fail
	case sysMmap:
		ret = h.mmap(a1)
	case sysMunmap:
		ret = 0
	case sysDup:
		ret = int64(a0)
	default:
		if h.Log != nil {
			h.Log.Warn("unimplemented syscall", "number", num)
		}

		ret = -int64(eNOSYS)
	}

	hart.SetGPR(10, uint64(ret))

	return nil
}

// Linux errno values the emulated syscalls can return; only the subset
// actually produced below is named.
const (
	eBADF  = 9
	eNOENT = 2
	eNOSYS = 38
	eINVAL = 22
)

func (h *Handler) write(fd int64, hart *riscv.Hart, addr, count uint64) int64 {
	f, ok := h.files[fd]
	if !ok {
		return -eBADF
	}

	buf := make([]byte, count)

	for i := range buf {
		v, err := hart.ReadMem(addr+uint64(i), riscv.Byte)
		if err != nil {
			return -eINVAL
		}

		buf[i] = byte(v)
	}

	n, err := f.Write(buf)
	if err != nil {
		return -eINVAL
	}

	return int64(n)
}

func (h *Handler) writev(fd int64, hart *riscv.Hart, iovAddr, iovcnt uint64) int64 {
	f, ok := h.files[fd]
	if !ok {
		return -eBADF
	}

	var total int64

	wordSize := uint64(8)
	if hart.XLEN == riscv.XLEN32 {
		wordSize = 4
	}

	for i := uint64(0); i < iovcnt; i++ {
		base := iovAddr + i*2*wordSize

		iovBase, _ := hart.ReadMem(base, widthOf(wordSize))
		iovLen, _ := hart.ReadMem(base+wordSize, widthOf(wordSize))

		buf := make([]byte, iovLen)

		for j := range buf {
			v, _ := hart.ReadMem(iovBase+uint64(j), riscv.Byte)
			buf[j] = byte(v)
		}

		n, err := f.Write(buf)
		if err != nil {
			return -eINVAL
		}

		total += int64(n)
	}

	return total
}

func widthOf(wordSize uint64) riscv.Width {
	if wordSize == 4 {
		return riscv.Word
	}

	return riscv.Doubleword
}

func (h *Handler) read(fd int64, hart *riscv.Hart, addr, count uint64) int64 {
	f, ok := h.files[fd]
	if !ok {
		return -eBADF
	}

	buf := make([]byte, count)

	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return -eINVAL
	}

	for i := 0; i < n; i++ {
		hart.WriteMem(addr+uint64(i), riscv.Byte, uint64(buf[i]))
	}

	return int64(n)
}

func (h *Handler) openat(hart *riscv.Hart, pathAddr, flags, mode uint64) int64 {
	path := readCString(hart, pathAddr)

	f, err := os.OpenFile(path, hostFlags(flags), os.FileMode(mode))
	if err != nil {
		return -eNOENT
	}

	fd := h.nextFD
	h.nextFD++
	h.files[fd] = f

	return fd
}

func hostFlags(guestFlags uint64) int {
	// The Linux generic O_* bit layout matches Go's os package constants
	// for the subset used here (read/write/create/trunc/append).
	flags := os.O_RDONLY

	switch guestFlags & 0x3 {
	case 1:
		flags = os.O_WRONLY
	case 2:
		flags = os.O_RDWR
	}

	if guestFlags&0o100 != 0 {
		flags |= os.O_CREATE
	}

	if guestFlags&0o1000 != 0 {
		flags |= os.O_TRUNC
	}

	if guestFlags&0o2000 != 0 {
		flags |= os.O_APPEND
	}

	return flags
}

func (h *Handler) close(fd int64) int64 {
	f, ok := h.files[fd]
	if !ok {
		return -eBADF
	}

	if fd > 2 {
		f.Close()
		delete(h.files, fd)
	}

	return 0
}

func (h *Handler) lseek(fd, offset, whence int64) int64 {
	f, ok := h.files[fd]
	if !ok {
		return -eBADF
	}

	n, err := f.Seek(offset, int(whence))
	if err != nil {
		return -eINVAL
	}

	return n
}

func (h *Handler) fstat(fd int64, hart *riscv.Hart, statAddr uint64) int64 {
	f, ok := h.files[fd]
	if !ok {
		return -eBADF
	}

	info, err := f.Stat()
	if err != nil {
		return -eINVAL
	}

	// A minimal struct stat: only st_size (offset 48, 8 bytes) and st_mode
	// (offset 24, 4 bytes) are populated, enough for libc's stdio buffering
	// heuristics; every other field is left zeroed.
	hart.WriteMem(statAddr+24, riscv.Word, uint64(info.Mode()))
	hart.WriteMem(statAddr+48, riscv.Doubleword, uint64(info.Size()))

	return 0
}

// mmap satisfies an anonymous mapping request by extending the program
// break, returning the start of the newly mapped region. File-backed mmap
// isn't modeled; the guest ABI programs here only ever ask for anonymous,
// MAP_PRIVATE allocations (malloc arenas and thread stacks).
func (h *Handler) mmap(length uint64) int64 {
	const pageSize = 4096

	aligned := (length + pageSize - 1) &^ (pageSize - 1)

	addr := h.brk
	h.brk += aligned

	return int64(addr)
}

func (h *Handler) brk2(requested uint64) uint64 {
	if requested == 0 {
		return h.brk
	}

	h.brk = requested

	return h.brk
}

func (h *Handler) gettimeofday(hart *riscv.Hart, addr uint64) int64 {
	if addr == 0 {
		return 0
	}

	now := time.Now()
	hart.WriteMem(addr, riscv.Doubleword, uint64(now.Unix()))
	hart.WriteMem(addr+8, riscv.Doubleword, uint64(now.Nanosecond()/1000))

	return 0
}

func (h *Handler) clockGetTime(hart *riscv.Hart, clockID, addr uint64) int64 {
	if addr == 0 {
		return 0
	}

	now := time.Now()
	hart.WriteMem(addr, riscv.Doubleword, uint64(now.Unix()))
	hart.WriteMem(addr+8, riscv.Doubleword, uint64(now.Nanosecond()))

	return 0
}

func readCString(hart *riscv.Hart, addr uint64) string {
	var buf []byte

	for {
		v, err := hart.ReadMem(addr+uint64(len(buf)), riscv.Byte)
		if err != nil || v == 0 {
			break
		}

		buf = append(buf, byte(v))
	}

	return string(buf)
}
