package wavefunction

import (
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"vmc/internal/bignum"
	"vmc/internal/detmat"
	"vmc/internal/lattice"
	"vmc/internal/position"
)

// DBL is the d-wave Bose liquid wave function: the product of two Slater
// determinants over the same particles, each raised to a tunable real
// exponent.
type DBL struct {
	r                    *position.Arguments
	orbitals1, orbitals2 *OrbitalDefinitions
	d1Exponent           float64
	d2Exponent           float64
	engine1, engine2     *detmat.Engine

	moveInProgress bool
	lastMove       position.Move
	oldSites       []int
}

// NewDBL builds the amplitude. Both orbital tables must match the single
// species's filling. A negative exponent turns a tiny determinant into a
// huge weight, so the corresponding engine runs extra carefully.
func NewDBL(r *position.Arguments, orbitals1, orbitals2 *OrbitalDefinitions, d1Exponent, d2Exponent float64) (*DBL, error) {
	if r.NumSpecies() != 1 {
		return nil, errors.Errorf("dbl: expected 1 species, got %d", r.NumSpecies())
	}
	if r.NumFilled(0) != orbitals1.NumFilled() || r.NumFilled(0) != orbitals2.NumFilled() {
		return nil, errors.New("dbl: orbital counts do not match the filling")
	}
	d := &DBL{
		r:          r,
		orbitals1:  orbitals1,
		orbitals2:  orbitals2,
		d1Exponent: d1Exponent,
		d2Exponent: d2Exponent,
	}
	d.reinitialize()
	return d, nil
}

func engineOptionsForExponent(exp float64) detmat.Options {
	opts := detmat.DefaultOptions()
	opts.ExtraCareful = exp < 0
	return opts
}

func orbitalMatrix(r *position.Arguments, species int, orbitals *OrbitalDefinitions, columnOffset, size int, m *mat.CDense) {
	for i := 0; i < r.NumFilled(species); i++ {
		col := orbitals.AtSite(r.At(position.Particle{Index: i, Species: species}))
		for o := 0; o < size; o++ {
			m.Set(o, columnOffset+i, col[o])
		}
	}
}

func (d *DBL) reinitialize() {
	n := d.r.NumFilled(0)
	m1 := mat.NewCDense(n, n, nil)
	m2 := mat.NewCDense(n, n, nil)
	orbitalMatrix(d.r, 0, d.orbitals1, 0, n, m1)
	orbitalMatrix(d.r, 0, d.orbitals2, 0, n, m2)
	d.engine1 = detmat.New(m1, engineOptionsForExponent(d.d1Exponent))
	d.engine2 = detmat.New(m2, engineOptionsForExponent(d.d2Exponent))
}

// PerformMove applies the move and updates the touched columns of both
// determinants.
func (d *DBL) PerformMove(move position.Move) error {
	if d.moveInProgress {
		panic("wavefunction: move already in progress")
	}
	if len(move) == 0 {
		panic("wavefunction: empty move")
	}
	old := recordOrigins(d.r, move)
	if err := d.r.ApplyMove(move); err != nil {
		return err
	}
	d.lastMove = move
	d.oldSites = old

	n := d.r.NumFilled(0)
	src1 := mat.NewCDense(n, len(move), nil)
	src2 := mat.NewCDense(n, len(move), nil)
	cols := make([]detmat.ColumnUpdate, len(move))
	for k, sp := range move {
		c1 := d.orbitals1.AtSite(sp.Destination)
		c2 := d.orbitals2.AtSite(sp.Destination)
		for o := 0; o < n; o++ {
			src1.Set(o, k, c1[o])
			src2.Set(o, k, c2[o])
		}
		cols[k] = detmat.ColumnUpdate{Matrix: sp.Particle.Index, Source: k}
	}
	d.engine1.UpdateColumns(cols, src1)
	d.engine2.UpdateColumns(cols, src2)
	d.moveInProgress = true
	return nil
}

// Psi returns det1^d1 * det2^d2 as a big scalar.
func (d *DBL) Psi() bignum.Big {
	return d.engine1.Determinant().Pow(d.d1Exponent).
		MulBig(d.engine2.Determinant().Pow(d.d2Exponent))
}

// FinishMove commits both engines.
func (d *DBL) FinishMove() {
	if !d.moveInProgress {
		panic("wavefunction: no move to finish")
	}
	d.engine1.FinishColumnsUpdate()
	d.engine2.FinishColumnsUpdate()
	d.moveInProgress = false
}

// CancelMove rolls back both engines and the positions.
func (d *DBL) CancelMove() {
	if !d.moveInProgress {
		panic("wavefunction: no move to cancel")
	}
	d.engine1.CancelColumnsUpdate()
	d.engine2.CancelColumnsUpdate()
	if err := d.r.ApplyMove(reverseMove(d.lastMove, d.oldSites)); err != nil {
		panic(errors.Wrap(err, "wavefunction: reverse move failed"))
	}
	d.moveInProgress = false
}

// SwapParticles relabels two particles in both determinants.
func (d *DBL) SwapParticles(i, j, species int) {
	if species != 0 {
		panic("dbl: only species 0 exists")
	}
	d.r.SwapParticles(i, j, species)
	d.engine1.SwapColumns(i, j)
	d.engine2.SwapColumns(i, j)
}

// Reset replaces the configuration and rebuilds both engines.
func (d *DBL) Reset(r *position.Arguments) {
	d.r = r
	d.reinitialize()
}

// Clone deep-copies the amplitude; orbital tables stay shared.
func (d *DBL) Clone() Amplitude {
	if d.moveInProgress {
		panic("wavefunction: clone with move in progress")
	}
	return &DBL{
		r:          d.r.Clone(),
		orbitals1:  d.orbitals1,
		orbitals2:  d.orbitals2,
		d1Exponent: d.d1Exponent,
		d2Exponent: d.d2Exponent,
		engine1:    d.engine1.Clone(),
		engine2:    d.engine2.Clone(),
	}
}

// ProposeMove draws a single-particle move to a nearby empty site.
func (d *DBL) ProposeMove(rng *rand.Rand) position.Move {
	return proposeSingleParticleMove(d, rng)
}

// Positions returns the configuration.
func (d *DBL) Positions() *position.Arguments {
	return d.r
}

// Lattice returns the underlying lattice.
func (d *DBL) Lattice() *lattice.Lattice {
	return d.orbitals1.Lattice()
}
