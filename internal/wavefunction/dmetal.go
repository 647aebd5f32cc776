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

// DMetal is the d-wave metal wave function: two "d" determinants over
// all N particles and one "f" determinant per spin species, each raised
// to its own exponent. Spin-resolved column updates route to the correct
// f engine; the d engines index up particles first and down particles
// after them.
type DMetal struct {
	r *position.Arguments

	orbitalsD1, orbitalsD2     *OrbitalDefinitions
	orbitalsFUp, orbitalsFDown *OrbitalDefinitions

	d1Exponent, d2Exponent       float64
	fUpExponent, fDownExponent   float64
	engineD1, engineD2           *detmat.Engine
	engineFUp, engineFDown       *detmat.Engine

	moveInProgress       bool
	touchedUp, touchedDown bool
	lastMove             position.Move
	oldSites             []int
}

// NewDMetal builds the amplitude from the four orbital tables. The
// configuration must have two species: up (0) and down (1).
func NewDMetal(r *position.Arguments, d1, d2, fUp, fDown *OrbitalDefinitions, d1Exp, d2Exp, fUpExp, fDownExp float64) (*DMetal, error) {
	if r.NumSpecies() != 2 {
		return nil, errors.Errorf("dmetal: expected 2 species, got %d", r.NumSpecies())
	}
	total := r.NumFilled(0) + r.NumFilled(1)
	if d1.NumFilled() != total || d2.NumFilled() != total {
		return nil, errors.New("dmetal: d orbital counts do not match the total filling")
	}
	if fUp.NumFilled() != r.NumFilled(0) || fDown.NumFilled() != r.NumFilled(1) {
		return nil, errors.New("dmetal: f orbital counts do not match the per-species fillings")
	}
	m := &DMetal{
		r:             r,
		orbitalsD1:    d1,
		orbitalsD2:    d2,
		orbitalsFUp:   fUp,
		orbitalsFDown: fDown,
		d1Exponent:    d1Exp,
		d2Exponent:    d2Exp,
		fUpExponent:   fUpExp,
		fDownExponent: fDownExp,
	}
	m.reinitialize()
	return m, nil
}

func (m *DMetal) reinitialize() {
	nUp, nDown := m.r.NumFilled(0), m.r.NumFilled(1)
	n := nUp + nDown
	matD1 := mat.NewCDense(n, n, nil)
	matD2 := mat.NewCDense(n, n, nil)
	matFUp := mat.NewCDense(nUp, nUp, nil)
	matFDown := mat.NewCDense(nDown, nDown, nil)

	orbitalMatrix(m.r, 0, m.orbitalsD1, 0, n, matD1)
	orbitalMatrix(m.r, 1, m.orbitalsD1, nUp, n, matD1)
	orbitalMatrix(m.r, 0, m.orbitalsD2, 0, n, matD2)
	orbitalMatrix(m.r, 1, m.orbitalsD2, nUp, n, matD2)
	orbitalMatrix(m.r, 0, m.orbitalsFUp, 0, nUp, matFUp)
	orbitalMatrix(m.r, 1, m.orbitalsFDown, 0, nDown, matFDown)

	m.engineD1 = detmat.New(matD1, engineOptionsForExponent(m.d1Exponent))
	m.engineD2 = detmat.New(matD2, engineOptionsForExponent(m.d2Exponent))
	m.engineFUp = detmat.New(matFUp, engineOptionsForExponent(m.fUpExponent))
	m.engineFDown = detmat.New(matFDown, engineOptionsForExponent(m.fDownExponent))
}

// dColumn maps a particle to its column in the d engines.
func (m *DMetal) dColumn(p position.Particle) int {
	if p.Species == 0 {
		return p.Index
	}
	return p.Index + m.r.NumFilled(0)
}

// PerformMove applies the move, updating the d engines for every moved
// particle and each f engine for its own species.
func (m *DMetal) PerformMove(move position.Move) error {
	if m.moveInProgress {
		panic("wavefunction: move already in progress")
	}
	if len(move) == 0 {
		panic("wavefunction: empty move")
	}
	old := recordOrigins(m.r, move)
	if err := m.r.ApplyMove(move); err != nil {
		return err
	}
	m.lastMove = move
	m.oldSites = old

	n := m.r.NumFilled(0) + m.r.NumFilled(1)
	srcD1 := mat.NewCDense(n, len(move), nil)
	srcD2 := mat.NewCDense(n, len(move), nil)
	colsD := make([]detmat.ColumnUpdate, len(move))

	var colsUp, colsDown []detmat.ColumnUpdate
	var upVals, downVals [][]complex128

	for k, sp := range move {
		c1 := m.orbitalsD1.AtSite(sp.Destination)
		c2 := m.orbitalsD2.AtSite(sp.Destination)
		for o := 0; o < n; o++ {
			srcD1.Set(o, k, c1[o])
			srcD2.Set(o, k, c2[o])
		}
		colsD[k] = detmat.ColumnUpdate{Matrix: m.dColumn(sp.Particle), Source: k}

		if sp.Particle.Species == 0 {
			colsUp = append(colsUp, detmat.ColumnUpdate{Matrix: sp.Particle.Index, Source: len(upVals)})
			upVals = append(upVals, m.orbitalsFUp.AtSite(sp.Destination))
		} else {
			colsDown = append(colsDown, detmat.ColumnUpdate{Matrix: sp.Particle.Index, Source: len(downVals)})
			downVals = append(downVals, m.orbitalsFDown.AtSite(sp.Destination))
		}
	}

	m.engineD1.UpdateColumns(colsD, srcD1)
	m.engineD2.UpdateColumns(colsD, srcD2)
	m.touchedUp, m.touchedDown = len(colsUp) > 0, len(colsDown) > 0
	if m.touchedUp {
		m.engineFUp.UpdateColumns(colsUp, columnsToCDense(upVals))
	}
	if m.touchedDown {
		m.engineFDown.UpdateColumns(colsDown, columnsToCDense(downVals))
	}
	m.moveInProgress = true
	return nil
}

func columnsToCDense(cols [][]complex128) *mat.CDense {
	rows := len(cols[0])
	out := mat.NewCDense(rows, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			out.Set(i, j, v)
		}
	}
	return out
}

// Psi returns the product of the four exponentiated determinants.
func (m *DMetal) Psi() bignum.Big {
	return m.engineD1.Determinant().Pow(m.d1Exponent).
		MulBig(m.engineD2.Determinant().Pow(m.d2Exponent)).
		MulBig(m.engineFUp.Determinant().Pow(m.fUpExponent)).
		MulBig(m.engineFDown.Determinant().Pow(m.fDownExponent))
}

// FinishMove commits every engine the move touched.
func (m *DMetal) FinishMove() {
	if !m.moveInProgress {
		panic("wavefunction: no move to finish")
	}
	m.engineD1.FinishColumnsUpdate()
	m.engineD2.FinishColumnsUpdate()
	if m.touchedUp {
		m.engineFUp.FinishColumnsUpdate()
	}
	if m.touchedDown {
		m.engineFDown.FinishColumnsUpdate()
	}
	m.moveInProgress = false
}

// CancelMove rolls back every engine the move touched and the positions.
func (m *DMetal) CancelMove() {
	if !m.moveInProgress {
		panic("wavefunction: no move to cancel")
	}
	m.engineD1.CancelColumnsUpdate()
	m.engineD2.CancelColumnsUpdate()
	if m.touchedUp {
		m.engineFUp.CancelColumnsUpdate()
	}
	if m.touchedDown {
		m.engineFDown.CancelColumnsUpdate()
	}
	if err := m.r.ApplyMove(reverseMove(m.lastMove, m.oldSites)); err != nil {
		panic(errors.Wrap(err, "wavefunction: reverse move failed"))
	}
	m.moveInProgress = false
}

// SwapParticles relabels two particles of one species across the
// affected engines.
func (m *DMetal) SwapParticles(i, j, species int) {
	m.r.SwapParticles(i, j, species)
	offset := 0
	if species == 1 {
		offset = m.r.NumFilled(0)
	}
	m.engineD1.SwapColumns(i+offset, j+offset)
	m.engineD2.SwapColumns(i+offset, j+offset)
	if species == 0 {
		m.engineFUp.SwapColumns(i, j)
	} else {
		m.engineFDown.SwapColumns(i, j)
	}
}

// Reset replaces the configuration and rebuilds all four engines.
func (m *DMetal) Reset(r *position.Arguments) {
	m.r = r
	m.reinitialize()
}

// Clone deep-copies the amplitude; orbital tables stay shared.
func (m *DMetal) Clone() Amplitude {
	if m.moveInProgress {
		panic("wavefunction: clone with move in progress")
	}
	return &DMetal{
		r:             m.r.Clone(),
		orbitalsD1:    m.orbitalsD1,
		orbitalsD2:    m.orbitalsD2,
		orbitalsFUp:   m.orbitalsFUp,
		orbitalsFDown: m.orbitalsFDown,
		d1Exponent:    m.d1Exponent,
		d2Exponent:    m.d2Exponent,
		fUpExponent:   m.fUpExponent,
		fDownExponent: m.fDownExponent,
		engineD1:      m.engineD1.Clone(),
		engineD2:      m.engineD2.Clone(),
		engineFUp:     m.engineFUp.Clone(),
		engineFDown:   m.engineFDown.Clone(),
	}
}

// ProposeMove draws a single-particle move to a nearby empty site.
func (m *DMetal) ProposeMove(rng *rand.Rand) position.Move {
	return proposeSingleParticleMove(m, rng)
}

// Positions returns the configuration.
func (m *DMetal) Positions() *position.Arguments {
	return m.r
}

// Lattice returns the underlying lattice.
func (m *DMetal) Lattice() *lattice.Lattice {
	return m.orbitalsD1.Lattice()
}
