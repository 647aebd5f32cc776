package lattice

import (
	"math"
	"math/cmplx"
)

// BoundaryCondition describes one dimension of a torus: the complex
// amplitude advances by a phase of 2*pi*p when wrapping once around the
// system. p is kept as an exact rational in [0, 1]; p = 0 encodes open
// boundary conditions, whose "phase" is zero.
type BoundaryCondition struct {
	num, den int
}

// Canonical boundary conditions.
var (
	Open         = NewBoundaryCondition(0, 1)
	Periodic     = NewBoundaryCondition(1, 1)
	Antiperiodic = NewBoundaryCondition(1, 2)
)

// NewBoundaryCondition builds the boundary condition with twist p =
// num/den. It panics unless 0 <= p <= 1 and den > 0.
func NewBoundaryCondition(num, den int) BoundaryCondition {
	if den <= 0 || num < 0 || num > den {
		panic("lattice: boundary condition twist must be a rational in [0, 1]")
	}
	g := gcd(num, den)
	return BoundaryCondition{num: num / g, den: den / g}
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// P returns the twist fraction as (numerator, denominator).
func (bc BoundaryCondition) P() (num, den int) {
	return bc.num, bc.den
}

// TwistFraction returns p as a float64.
func (bc BoundaryCondition) TwistFraction() float64 {
	return float64(bc.num) / float64(bc.den)
}

// Equal compares boundary conditions by their twist fraction.
func (bc BoundaryCondition) Equal(o BoundaryCondition) bool {
	return bc.num*o.den == o.num*bc.den
}

// Phase returns the phase factor acquired when crossing the boundary in
// the positive direction: zero for open boundary conditions, a point on
// the unit circle otherwise.
func (bc BoundaryCondition) Phase() complex128 {
	if bc.num == 0 {
		return 0
	}
	// exact values where we can provide them
	switch {
	case bc.num == bc.den:
		return 1
	case 2*bc.num == bc.den:
		return -1
	case 4*bc.num == bc.den:
		return 1i
	case 4*bc.num == 3*bc.den:
		return -1i
	}
	return cmplx.Exp(complex(0, 2*math.Pi*bc.TwistFraction()))
}
