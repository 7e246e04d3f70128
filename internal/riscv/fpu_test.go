package riscv

import (
	"math"
	"testing"
)

func TestNanBoxRoundTrip(t *testing.T) {
	f := float32(3.25)
	boxed := boxFloat32(f)

	if !isBoxed(boxed) {
		t.Fatal("expected a freshly boxed value to read as boxed")
	}

	if got := unboxFloat32(boxed); got != f {
		t.Errorf("unboxFloat32 = %v, want %v", got, f)
	}
}

func TestUnboxFloat32RejectsImproperlyBoxedValue(t *testing.T) {
	// Upper 32 bits not all ones: not a validly boxed single.
	v := uint64(0x0000000100000000) | uint64(math.Float32bits(1.0))

	if isBoxed(v) {
		t.Fatal("expected an improperly boxed value to read as not boxed")
	}

	if got := unboxFloat32(v); !math.IsNaN(float64(got)) {
		t.Errorf("unboxFloat32 of an improperly boxed value = %v, want NaN", got)
	}
}

func TestClassifyFloat64(t *testing.T) {
	cases := []struct {
		name string
		f    float64
		want uint64
	}{
		{"-inf", math.Inf(-1), 1 << 0},
		{"-normal", -2.0, 1 << 1},
		{"-zero", math.Copysign(0, -1), 1 << 3},
		{"+zero", 0, 1 << 4},
		{"+normal", 2.0, 1 << 6},
		{"+inf", math.Inf(1), 1 << 7},
		{"qNaN", math.NaN(), 1 << 9},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := classifyFloat64(c.f); got != c.want {
				t.Errorf("classifyFloat64(%v) = %#x, want %#x", c.f, got, c.want)
			}
		})
	}
}

func TestFsgnInjection(t *testing.T) {
	a := uint64(math.Float64bits(2.0))
	bPos := uint64(math.Float64bits(3.0))
	bNeg := uint64(math.Float64bits(-3.0))

	if got := math.Float64frombits(fsgn(a, bNeg, Doubleword, false, false)); got != -2.0 {
		t.Errorf("FSGNJ with negative sign source = %v, want -2", got)
	}

	if got := math.Float64frombits(fsgn(a, bNeg, Doubleword, true, false)); got != 2.0 {
		t.Errorf("FSGNJN with negative sign source = %v, want 2", got)
	}

	if got := math.Float64frombits(fsgn(a, bNeg, Doubleword, false, true)); got != -2.0 {
		t.Errorf("FSGNJX(2, -3) = %v, want -2 (signs differ)", got)
	}

	if got := math.Float64frombits(fsgn(a, bPos, Doubleword, false, true)); got != 2.0 {
		t.Errorf("FSGNJX(2, 3) = %v, want 2 (signs match)", got)
	}
}
