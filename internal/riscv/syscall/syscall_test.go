package syscall

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wkrp/rvemu/internal/riscv"
)

func newTestHart(t *testing.T) *riscv.Hart {
	t.Helper()

	bus := riscv.NewBus()
	bus.Map("ram", 0, 4096, riscv.NewRAM(4096))

	return riscv.New(riscv.WithBus(bus), riscv.WithXLEN(riscv.XLEN64), riscv.WithMode(riscv.ModeUser))
}

func writeCString(t *testing.T, hart *riscv.Hart, addr uint64, s string) {
	t.Helper()

	for i := 0; i < len(s); i++ {
		if err := hart.WriteMem(addr+uint64(i), riscv.Byte, uint64(s[i])); err != nil {
			t.Fatalf("write string byte %d: %v", i, err)
		}
	}

	if err := hart.WriteMem(addr+uint64(len(s)), riscv.Byte, 0); err != nil {
		t.Fatalf("write string terminator: %v", err)
	}
}

func call(t *testing.T, h *Handler, hart *riscv.Hart, num, a0, a1, a2, a3 uint64) uint64 {
	t.Helper()

	hart.SetGPR(17, num)
	hart.SetGPR(10, a0)
	hart.SetGPR(11, a1)
	hart.SetGPR(12, a2)
	hart.SetGPR(13, a3)

	if err := h.Syscall(hart); err != nil {
		t.Fatalf("Syscall(%d): %v", num, err)
	}

	return hart.GPR(10)
}

func TestOpenatWriteLseekReadCloseRoundTrip(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	path := filepath.Join(t.TempDir(), "guest.txt")
	const pathAddr = 0x100
	writeCString(t, hart, pathAddr, path)

	const flags = 0o100 | 0o2 // O_CREAT | O_RDWR
	fd := call(t, h, hart, sysOpenat, 0, pathAddr, flags, 0o644)
	if int64(fd) < 3 {
		t.Fatalf("openat returned fd %d, want >= 3", int64(fd))
	}

	const bufAddr = 0x200
	msg := "hello"
	writeCString(t, hart, bufAddr, msg)

	n := call(t, h, hart, sysWrite, fd, bufAddr, uint64(len(msg)), 0)
	if int64(n) != int64(len(msg)) {
		t.Fatalf("write returned %d, want %d", int64(n), len(msg))
	}

	if ret := call(t, h, hart, sysLseek, fd, 0, 0 /* SEEK_SET */, 0); int64(ret) != 0 {
		t.Fatalf("lseek returned %d, want 0", int64(ret))
	}

	const readAddr = 0x300
	n = call(t, h, hart, sysRead, fd, readAddr, uint64(len(msg)), 0)
	if int64(n) != int64(len(msg)) {
		t.Fatalf("read returned %d, want %d", int64(n), len(msg))
	}

	for i := 0; i < len(msg); i++ {
		v, err := hart.ReadMem(readAddr+uint64(i), riscv.Byte)
		if err != nil {
			t.Fatalf("read back byte %d: %v", i, err)
		}

		if byte(v) != msg[i] {
			t.Errorf("byte %d = %q, want %q", i, byte(v), msg[i])
		}
	}

	if ret := call(t, h, hart, sysClose, fd, 0, 0, 0); ret != 0 {
		t.Errorf("close returned %d, want 0", int64(ret))
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file to exist on disk: %v", err)
	}
}

func TestOpenatMissingFileReturnsENOENT(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	const pathAddr = 0x100
	writeCString(t, hart, pathAddr, filepath.Join(t.TempDir(), "does-not-exist"))

	fd := call(t, h, hart, sysOpenat, 0, pathAddr, 0 /* O_RDONLY */, 0)
	if int64(fd) != -eNOENT {
		t.Errorf("openat of missing file = %d, want -ENOENT", int64(fd))
	}
}

func TestWriteToBadFDReturnsEBADF(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	ret := call(t, h, hart, sysWrite, 99, 0x100, 1, 0)
	if int64(ret) != -eBADF {
		t.Errorf("write to bad fd = %d, want -EBADF", int64(ret))
	}
}

func TestFstatReportsSize(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	path := filepath.Join(t.TempDir(), "sized.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	const pathAddr = 0x100
	writeCString(t, hart, pathAddr, path)

	fd := call(t, h, hart, sysOpenat, 0, pathAddr, 0 /* O_RDONLY */, 0)

	const statAddr = 0x400
	if ret := call(t, h, hart, sysFstat, fd, statAddr, 0, 0); ret != 0 {
		t.Fatalf("fstat returned %d, want 0", int64(ret))
	}

	size, err := hart.ReadMem(statAddr+48, riscv.Doubleword)
	if err != nil {
		t.Fatalf("read st_size: %v", err)
	}

	if size != 10 {
		t.Errorf("st_size = %d, want 10", size)
	}
}

func TestBrkReturnsCurrentBreakOnQuery(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	if got := call(t, h, hart, sysBrk, 0, 0, 0, 0); got != 0x10000 {
		t.Errorf("brk(0) = %#x, want %#x", got, 0x10000)
	}
}

func TestBrkMovesBreakWhenRequestedNonZero(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	if got := call(t, h, hart, sysBrk, 0x20000, 0, 0, 0); got != 0x20000 {
		t.Errorf("brk(0x20000) = %#x, want 0x20000", got)
	}

	if got := call(t, h, hart, sysBrk, 0, 0, 0, 0); got != 0x20000 {
		t.Errorf("brk(0) after move = %#x, want 0x20000", got)
	}
}

func TestMmapExtendsBreakAndReturnsOldBreak(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	// mmap(NULL, 0x1000, prot, flags, -1, 0): length 0x1000, already page-sized.
	if got := call(t, h, hart, sysMmap, 0, 0x1000, 0, 0); got != 0x10000 {
		t.Errorf("mmap = %#x, want 0x10000 (the break before mapping)", got)
	}

	if h.brk != 0x11000 {
		t.Errorf("brk after mmap = %#x, want 0x11000", h.brk)
	}

	// A second mapping starts where the first left off.
	if got := call(t, h, hart, sysMmap, 0, 0x1000, 0, 0); got != 0x11000 {
		t.Errorf("second mmap = %#x, want 0x11000", got)
	}
}

func TestMmapRoundsLengthUpToPageSize(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	if got := call(t, h, hart, sysMmap, 0, 1, 0, 0); got != 0x10000 {
		t.Errorf("mmap(1) = %#x, want 0x10000", got)
	}

	if h.brk != 0x11000 {
		t.Errorf("brk after mmap(1) = %#x, want 0x11000 (rounded up to a page)", h.brk)
	}
}

func TestExitSetsExitedAndExitCode(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	hart.SetGPR(17, sysExit)
	hart.SetGPR(10, ^uint64(0)) // all-ones a0: truncated to int32 then int, it reads as -1

	if err := h.Syscall(hart); err != nil {
		t.Fatalf("Syscall(exit): %v", err)
	}

	if !h.Exited {
		t.Fatal("expected Exited to be true after an exit syscall")
	}

	if h.ExitCode != -1 {
		t.Errorf("ExitCode = %d, want -1", h.ExitCode)
	}
}

func TestUnimplementedSyscallReturnsENOSYS(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	const bogusSyscallNumber = 9999
	ret := call(t, h, hart, bogusSyscallNumber, 0, 0, 0, 0)
	if int64(ret) != -eNOSYS {
		t.Errorf("unimplemented syscall = %d, want -ENOSYS", int64(ret))
	}
}

func TestIoctlIsAcceptedAsNoop(t *testing.T) {
	hart := newTestHart(t)
	h := NewHandler(nil, 0x10000)

	ret := call(t, h, hart, sysIoctl, 0, 0, 0, 0)
	if int64(ret) != 0 {
		t.Errorf("ioctl = %d, want 0", int64(ret))
	}
}
