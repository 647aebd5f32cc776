package wavefunction

import (
	"math"
	"math/cmplx"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"vmc/internal/lattice"
)

// OrbitalDefinitions tabulates a set of single-particle orbitals over
// every lattice site. Row index is the orbital, column index the site.
// The table is immutable after construction and shared read-only between
// amplitude clones.
type OrbitalDefinitions struct {
	orbitals *mat.CDense
	lat      *lattice.Lattice
	nFilled  int
}

// NewFilledOrbitals builds plane-wave orbitals from momentum indices and
// per-dimension boundary conditions: orbital n evaluates to
// exp(2*pi*i * sum_d (k_d + p_d) x_d / L_d), where k are the momentum
// indices and p the boundary twists.
func NewFilledOrbitals(momenta [][]int, lat *lattice.Lattice, bcs []lattice.BoundaryCondition) (*OrbitalDefinitions, error) {
	if len(bcs) != lat.Dimensions() {
		return nil, errors.Errorf("orbitals: %d boundary conditions for a %d-dimensional lattice", len(bcs), lat.Dimensions())
	}
	if len(momenta) == 0 {
		return nil, errors.New("orbitals: no filled momenta")
	}
	n := len(momenta)
	total := lat.TotalSites()
	table := mat.NewCDense(n, total, nil)
	for o, k := range momenta {
		if len(k) != lat.Dimensions() {
			return nil, errors.Errorf("orbitals: momentum %v has wrong dimension", k)
		}
		for d := range k {
			if k[d] < 0 || k[d] >= lat.Length[d] {
				return nil, errors.Errorf("orbitals: momentum index %d out of range for dimension %d", k[d], d)
			}
		}
		for s := 0; s < total; s++ {
			site := lat.SiteFromIndex(s)
			arg := 0.0
			for d := range k {
				kd := float64(k[d]) + bcs[d].TwistFraction()
				arg += kd * float64(site.Bravais[d]) / float64(lat.Length[d])
			}
			table.Set(o, s, cmplx.Exp(complex(0, 2*math.Pi*arg)))
		}
	}
	return &OrbitalDefinitions{orbitals: table, lat: lat, nFilled: n}, nil
}

// AtSite returns the column of all orbital values at one site.
func (o *OrbitalDefinitions) AtSite(site int) []complex128 {
	col := make([]complex128, o.nFilled)
	for i := 0; i < o.nFilled; i++ {
		col[i] = o.orbitals.At(i, site)
	}
	return col
}

// At returns a single orbital value.
func (o *OrbitalDefinitions) At(orbital, site int) complex128 {
	return o.orbitals.At(orbital, site)
}

// NumFilled returns the number of orbitals, which equals the particle
// count of the species they describe.
func (o *OrbitalDefinitions) NumFilled() int {
	return o.nFilled
}

// NumSites returns the number of lattice sites tabulated.
func (o *OrbitalDefinitions) NumSites() int {
	return o.lat.TotalSites()
}

// Lattice returns the lattice the table was built on.
func (o *OrbitalDefinitions) Lattice() *lattice.Lattice {
	return o.lat
}
