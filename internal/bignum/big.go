// Package bignum provides a complex scalar split into an ordinary-precision
// factor and a large log-magnitude exponent, so that products of many
// determinants neither overflow nor underflow float64.
package bignum

import (
	"math"
	"math/cmplx"
)

// Big represents the value Base() * exp(L), where L is a log-magnitude
// kept alongside the phase part returned by Base.
//
// The phase part is not required to have unit magnitude: it accumulates
// every multiplicative update since the value was last anchored by a
// from-scratch decomposition, while the log-magnitude part carries the
// large exponent fixed at anchor time. The zero value of Big is the
// number zero.
type Big struct {
	phase        complex128
	logMagnitude float64
}

// New constructs a Big holding exactly v.
func New(v complex128) Big {
	if v == 0 {
		return Big{}
	}
	return Big{phase: v}
}

// FromLogDecomposition constructs a Big from a unit-magnitude phase and a
// log-magnitude, as read off an LU diagonal: phase is the permutation sign
// times the product of diag_i/|diag_i|, logAbs is the sum of log|diag_i|.
func FromLogDecomposition(phase complex128, logAbs float64) Big {
	return Big{phase: phase, logMagnitude: logAbs}
}

// Zero returns the distinguished zero value.
func Zero() Big {
	return Big{}
}

// IsZero reports whether the value is zero. Zero is absorbing under
// multiplication.
func (b Big) IsZero() bool {
	return b.phase == 0
}

// IsNonzero reports whether the value is nonzero.
func (b Big) IsNonzero() bool {
	return b.phase != 0
}

// Mul returns b scaled by an ordinary-precision factor.
func (b Big) Mul(v complex128) Big {
	b.phase *= v
	if b.phase == 0 {
		return Big{}
	}
	return b
}

// MulBig returns the product of two Big values.
func (b Big) MulBig(o Big) Big {
	if b.IsZero() || o.IsZero() {
		return Big{}
	}
	return Big{phase: b.phase * o.phase, logMagnitude: b.logMagnitude + o.logMagnitude}
}

// Pow returns b raised to a real exponent. The zero value stays zero.
func (b Big) Pow(exponent float64) Big {
	if b.IsZero() {
		return Big{}
	}
	return Big{
		phase:        cmplx.Pow(b.phase, complex(exponent, 0)),
		logMagnitude: b.logMagnitude * exponent,
	}
}

// Base returns the ordinary-precision factor accumulated since the value
// was last anchored. This is the quantity compared against the
// determinant cutoffs.
func (b Big) Base() complex128 {
	return b.phase
}

// Value returns the represented value in ordinary precision. It may
// overflow or underflow when the log-magnitude is large.
func (b Big) Value() complex128 {
	if b.IsZero() {
		return 0
	}
	return b.phase * complex(math.Exp(b.logMagnitude), 0)
}

// LogAbs returns the natural log of the value's magnitude, or -Inf for
// zero.
func (b Big) LogAbs() float64 {
	if b.IsZero() {
		return math.Inf(-1)
	}
	return math.Log(cmplx.Abs(b.phase)) + b.logMagnitude
}

// UnitPhase returns the value's phase factor of unit magnitude. It panics
// on zero, which has no phase.
func (b Big) UnitPhase() complex128 {
	if b.IsZero() {
		panic("bignum: zero has no phase")
	}
	return b.phase / complex(cmplx.Abs(b.phase), 0)
}

// Ratio returns b/o in ordinary precision. A zero numerator gives 0; a
// zero denominator with nonzero numerator gives +Inf.
func (b Big) Ratio(o Big) complex128 {
	if b.IsZero() {
		return 0
	}
	if o.IsZero() {
		return complex(math.Inf(1), 0)
	}
	return b.phase / o.phase * complex(math.Exp(b.logMagnitude-o.logMagnitude), 0)
}
