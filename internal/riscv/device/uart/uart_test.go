package uart

import (
	"testing"

	"github.com/wkrp/rvemu/internal/riscv"
)

func TestPushMakesDataReady(t *testing.T) {
	u := New()

	lsr, err := u.Load(regLSR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load LSR: %v", err)
	}

	if lsr&lsrDR != 0 {
		t.Fatal("data ready before any Push")
	}

	u.Push('!')

	lsr, err = u.Load(regLSR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load LSR: %v", err)
	}

	if lsr&lsrDR == 0 {
		t.Fatal("expected LSR.DR set after Push")
	}

	v, err := u.Load(regRBR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load RBR: %v", err)
	}

	if v != '!' {
		t.Errorf("RBR = %q, want '!'", v)
	}
}

func TestReadingRBRClearsDataReady(t *testing.T) {
	u := New()
	u.Push('x')

	if _, err := u.Load(regRBR, riscv.Byte); err != nil {
		t.Fatalf("Load RBR: %v", err)
	}

	lsr, err := u.Load(regLSR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load LSR: %v", err)
	}

	if lsr&lsrDR != 0 {
		t.Error("expected LSR.DR clear after reading RBR")
	}
}

func TestStoreTHRInvokesTX(t *testing.T) {
	u := New()

	var got []byte
	u.TX = func(b byte) { got = append(got, b) }

	if err := u.Store(regTHR, riscv.Byte, 'h'); err != nil {
		t.Fatalf("Store THR: %v", err)
	}

	if err := u.Store(regTHR, riscv.Byte, 'i'); err != nil {
		t.Fatalf("Store THR: %v", err)
	}

	if string(got) != "hi" {
		t.Errorf("TX received %q, want %q", got, "hi")
	}
}

func TestPushRaisesInterruptWhenEnabled(t *testing.T) {
	u := New()

	var raised bool
	u.SetIRQ(func() { raised = true })

	u.Push('a')
	if raised {
		t.Error("interrupt raised with IER.RDA disabled")
	}

	if err := u.Store(regIER, riscv.Byte, ierRDA); err != nil {
		t.Fatalf("Store IER: %v", err)
	}

	u.Push('b')
	if !raised {
		t.Error("expected an interrupt once IER.RDA is enabled")
	}
}

func TestIIRReportsRXDataAvailable(t *testing.T) {
	u := New()

	if err := u.Store(regIER, riscv.Byte, ierRDA); err != nil {
		t.Fatalf("Store IER: %v", err)
	}

	iir, err := u.Load(regIIR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load IIR: %v", err)
	}

	if iir != 0x01 {
		t.Errorf("IIR = %#x, want 0x01 (no interrupt pending)", iir)
	}

	u.Push('z')

	iir, err = u.Load(regIIR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load IIR: %v", err)
	}

	if iir != 0x04 {
		t.Errorf("IIR = %#x, want 0x04 (RX data available)", iir)
	}
}

func TestDivisorLatchAccessGatedByLCR(t *testing.T) {
	u := New()

	if err := u.Store(regLCR, riscv.Byte, 0x80); err != nil { // set DLAB
		t.Fatalf("Store LCR: %v", err)
	}

	if err := u.Store(regTHR, riscv.Byte, 0x12); err != nil { // writes DLL while DLAB set
		t.Fatalf("Store DLL: %v", err)
	}

	if err := u.Store(regIER, riscv.Byte, 0x34); err != nil { // writes DLM while DLAB set
		t.Fatalf("Store DLM: %v", err)
	}

	dll, err := u.Load(regRBR, riscv.Byte)
	if err != nil {
		t.Fatalf("Load DLL: %v", err)
	}

	if dll != 0x12 {
		t.Errorf("DLL = %#x, want 0x12", dll)
	}

	dlm, err := u.Load(regIER, riscv.Byte)
	if err != nil {
		t.Fatalf("Load DLM: %v", err)
	}

	if dlm != 0x34 {
		t.Errorf("DLM = %#x, want 0x34", dlm)
	}
}
