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

// FreeFermion is a single Slater determinant without a Jastrow factor:
// one determinant engine over the N x N matrix of orbital values at the
// occupied sites, with one column per particle.
type FreeFermion struct {
	r        *position.Arguments
	orbitals *OrbitalDefinitions
	opts     detmat.Options
	engine   *detmat.Engine

	moveInProgress bool
	pendingMulti   bool
	lastMove       position.Move
	oldSites       []int
}

// NewFreeFermion builds the amplitude for the given configuration. The
// configuration must hold a single species filling every orbital.
func NewFreeFermion(r *position.Arguments, orbitals *OrbitalDefinitions, opts detmat.Options) (*FreeFermion, error) {
	if r.NumSpecies() != 1 {
		return nil, errors.Errorf("free fermion: expected 1 species, got %d", r.NumSpecies())
	}
	if r.NumFilled(0) != orbitals.NumFilled() {
		return nil, errors.Errorf("free fermion: %d particles but %d orbitals", r.NumFilled(0), orbitals.NumFilled())
	}
	if r.NumSites() != orbitals.NumSites() {
		return nil, errors.New("free fermion: configuration and orbital table disagree on site count")
	}
	f := &FreeFermion{r: r, orbitals: orbitals, opts: opts}
	f.reinitialize()
	return f, nil
}

func (f *FreeFermion) reinitialize() {
	n := f.r.NumFilled(0)
	m := mat.NewCDense(n, n, nil)
	for i := 0; i < n; i++ {
		col := f.orbitals.AtSite(f.r.At(position.Particle{Index: i, Species: 0}))
		for o := 0; o < n; o++ {
			m.Set(o, i, col[o])
		}
	}
	f.engine = detmat.New(m, f.opts)
}

// PerformMove applies the move to the positions and routes one column
// update per moved particle into the engine.
func (f *FreeFermion) PerformMove(move position.Move) error {
	if f.moveInProgress {
		panic("wavefunction: move already in progress")
	}
	if len(move) == 0 {
		panic("wavefunction: empty move")
	}
	old := recordOrigins(f.r, move)
	if err := f.r.ApplyMove(move); err != nil {
		return err
	}
	f.lastMove = move
	f.oldSites = old

	if len(move) == 1 {
		f.engine.UpdateColumn(move[0].Particle.Index, f.orbitals.AtSite(move[0].Destination))
		f.pendingMulti = false
	} else {
		n := f.r.NumFilled(0)
		src := mat.NewCDense(n, len(move), nil)
		cols := make([]detmat.ColumnUpdate, len(move))
		for k, sp := range move {
			col := f.orbitals.AtSite(sp.Destination)
			for o := 0; o < n; o++ {
				src.Set(o, k, col[o])
			}
			cols[k] = detmat.ColumnUpdate{Matrix: sp.Particle.Index, Source: k}
		}
		f.engine.UpdateColumns(cols, src)
		f.pendingMulti = true
	}
	f.moveInProgress = true
	return nil
}

// Psi returns the amplitude, tentative during a move.
func (f *FreeFermion) Psi() bignum.Big {
	return f.engine.Determinant()
}

// FinishMove commits the pending move.
func (f *FreeFermion) FinishMove() {
	if !f.moveInProgress {
		panic("wavefunction: no move to finish")
	}
	if f.pendingMulti {
		f.engine.FinishColumnsUpdate()
	} else {
		f.engine.FinishColumnUpdate()
	}
	f.moveInProgress = false
}

// CancelMove rolls back the pending move.
func (f *FreeFermion) CancelMove() {
	if !f.moveInProgress {
		panic("wavefunction: no move to cancel")
	}
	if f.pendingMulti {
		f.engine.CancelColumnsUpdate()
	} else {
		f.engine.CancelColumnUpdate()
	}
	if err := f.r.ApplyMove(reverseMove(f.lastMove, f.oldSites)); err != nil {
		panic(errors.Wrap(err, "wavefunction: reverse move failed"))
	}
	f.moveInProgress = false
}

// SwapParticles relabels two particles; their engine columns swap and
// the amplitude flips sign.
func (f *FreeFermion) SwapParticles(i, j, species int) {
	if species != 0 {
		panic("free fermion: only species 0 exists")
	}
	f.r.SwapParticles(i, j, species)
	f.engine.SwapColumns(i, j)
}

// Reset replaces the configuration and rebuilds the engine.
func (f *FreeFermion) Reset(r *position.Arguments) {
	f.r = r
	f.reinitialize()
}

// Clone deep-copies the amplitude; the orbital table stays shared.
func (f *FreeFermion) Clone() Amplitude {
	if f.moveInProgress {
		panic("wavefunction: clone with move in progress")
	}
	return &FreeFermion{
		r:        f.r.Clone(),
		orbitals: f.orbitals,
		opts:     f.opts,
		engine:   f.engine.Clone(),
	}
}

// ProposeMove draws a single-particle move to a nearby empty site.
func (f *FreeFermion) ProposeMove(rng *rand.Rand) position.Move {
	return proposeSingleParticleMove(f, rng)
}

// Positions returns the configuration.
func (f *FreeFermion) Positions() *position.Arguments {
	return f.r
}

// Lattice returns the underlying lattice.
func (f *FreeFermion) Lattice() *lattice.Lattice {
	return f.orbitals.Lattice()
}
