package bignum

import (
	"math"
	"math/cmplx"
	"testing"
)

func TestZeroIsAbsorbing(t *testing.T) {
	z := Zero()
	if !z.IsZero() {
		t.Fatalf("Zero() is not zero")
	}
	if got := z.Mul(3 + 4i); !got.IsZero() {
		t.Fatalf("zero times scalar is nonzero: %v", got)
	}
	if got := New(2).MulBig(Zero()); !got.IsZero() {
		t.Fatalf("nonzero times zero is nonzero: %v", got)
	}
	if got := z.Value(); got != 0 {
		t.Fatalf("zero value: got=%v want=0", got)
	}
	if !math.IsInf(z.LogAbs(), -1) {
		t.Fatalf("zero LogAbs: got=%v want=-Inf", z.LogAbs())
	}
}

func TestMulCommutesWithValue(t *testing.T) {
	a := New(1 + 2i)
	b := FromLogDecomposition(-1, 3.5)
	want := (1 + 2i) * complex(-math.Exp(3.5), 0)
	got := a.MulBig(b).Value()
	if cmplx.Abs(got-want) > 1e-12*cmplx.Abs(want) {
		t.Fatalf("product value: got=%v want=%v", got, want)
	}
	got2 := b.MulBig(a).Value()
	if cmplx.Abs(got-got2) > 1e-12*cmplx.Abs(want) {
		t.Fatalf("multiplication not commutative: %v vs %v", got, got2)
	}
}

func TestLargeProductDoesNotOverflow(t *testing.T) {
	// A product of determinants around 1e200 each overflows float64 after
	// two factors; the log-magnitude representation must not.
	b := FromLogDecomposition(1, 500)
	p := b.MulBig(b).MulBig(b)
	if p.IsZero() {
		t.Fatalf("product collapsed to zero")
	}
	if got, want := p.LogAbs(), 1500.0; math.Abs(got-want) > 1e-9 {
		t.Fatalf("LogAbs: got=%v want=%v", got, want)
	}
	if !math.IsInf(real(p.Value()), 1) {
		t.Fatalf("Value should overflow to +Inf, got %v", p.Value())
	}
}

func TestPow(t *testing.T) {
	b := FromLogDecomposition(1i, 2)
	p := b.Pow(0.5)
	if got, want := p.LogAbs(), 1.0; math.Abs(got-want) > 1e-12 {
		t.Fatalf("Pow LogAbs: got=%v want=%v", got, want)
	}
	if got, want := p.Base(), cmplx.Pow(1i, 0.5); cmplx.Abs(got-want) > 1e-12 {
		t.Fatalf("Pow phase: got=%v want=%v", got, want)
	}
	if !Zero().Pow(2).IsZero() {
		t.Fatalf("zero to a power is not zero")
	}
}

func TestRatio(t *testing.T) {
	a := FromLogDecomposition(2i, 10)
	b := FromLogDecomposition(1+1i, 9)
	want := 2i / (1 + 1i) * complex(math.E, 0)
	if got := a.Ratio(b); cmplx.Abs(got-want) > 1e-12*cmplx.Abs(want) {
		t.Fatalf("ratio: got=%v want=%v", got, want)
	}
	if got := Zero().Ratio(a); got != 0 {
		t.Fatalf("zero ratio: got=%v want=0", got)
	}
	if got := a.Ratio(Zero()); !math.IsInf(real(got), 1) {
		t.Fatalf("ratio with zero denominator: got=%v want=+Inf", got)
	}
}

func TestUnitPhase(t *testing.T) {
	b := New(-3)
	if got := b.UnitPhase(); cmplx.Abs(got-(-1)) > 1e-15 {
		t.Fatalf("unit phase: got=%v want=-1", got)
	}
}
