package clint

import (
	"testing"

	"github.com/wkrp/rvemu/internal/riscv"
)

func TestMsipStoreInvokesSetMSIP(t *testing.T) {
	c := New(2)

	var gotHart int
	var gotPending bool
	c.SetMSIP = func(hart int, pending bool) { gotHart, gotPending = hart, pending }

	if err := c.Store(msipBase+1*msipStride, riscv.Word, 1); err != nil {
		t.Fatalf("Store msip: %v", err)
	}

	if gotHart != 1 || !gotPending {
		t.Errorf("SetMSIP(hart=%d, pending=%v), want (1, true)", gotHart, gotPending)
	}

	v, err := c.Load(msipBase+1*msipStride, riscv.Word)
	if err != nil {
		t.Fatalf("Load msip: %v", err)
	}

	if v != 1 {
		t.Errorf("msip readback = %d, want 1", v)
	}
}

func TestMtimeStoreAndLoadRoundTrip(t *testing.T) {
	c := New(1)

	if err := c.Store(mtimeOffset, riscv.Doubleword, 0x1234); err != nil {
		t.Fatalf("Store mtime: %v", err)
	}

	v, err := c.Load(mtimeOffset, riscv.Doubleword)
	if err != nil {
		t.Fatalf("Load mtime: %v", err)
	}

	if v != 0x1234 {
		t.Errorf("mtime = %#x, want 0x1234", v)
	}
}

func TestTickRaisesTimerInterruptAtDeadline(t *testing.T) {
	c := New(1)

	if err := c.Store(mtimecmpBase, riscv.Doubleword, 3); err != nil {
		t.Fatalf("Store mtimecmp: %v", err)
	}

	var pending []bool
	c.SetMTIP = func(hart int, p bool) { pending = append(pending, p) }

	c.Tick() // mtime=1
	c.Tick() // mtime=2
	c.Tick() // mtime=3, reaches the deadline

	if len(pending) != 3 {
		t.Fatalf("got %d SetMTIP calls, want 3", len(pending))
	}

	if pending[0] || pending[1] {
		t.Errorf("MTIP raised before the deadline: %v", pending)
	}

	if !pending[2] {
		t.Error("expected MTIP pending once mtime reaches mtimecmp")
	}
}

func TestMtimecmpStoreImmediatelyReevaluatesMTIP(t *testing.T) {
	c := New(1)
	if err := c.Store(mtimeOffset, riscv.Doubleword, 10); err != nil {
		t.Fatalf("Store mtime: %v", err)
	}

	var gotPending bool
	c.SetMTIP = func(hart int, p bool) { gotPending = p }

	if err := c.Store(mtimecmpBase, riscv.Doubleword, 5); err != nil {
		t.Fatalf("Store mtimecmp: %v", err)
	}

	if !gotPending {
		t.Error("expected MTIP already pending: mtime (10) >= new mtimecmp (5)")
	}
}
