// Package wavefunction defines the trial wave-function amplitude
// contract and the concrete families built from incremental determinant
// engines: free fermion, DBL, D-metal, and RVB.
package wavefunction

import (
	"math/rand"

	"vmc/internal/bignum"
	"vmc/internal/lattice"
	"vmc/internal/position"
)

// Amplitude evaluates a trial wave function at the particle
// configuration it carries. Implementations hold one or more determinant
// engines and mirror their move/finish/cancel cycle: after PerformMove
// the amplitude reports the tentative post-move value until the move is
// either committed or rolled back.
type Amplitude interface {
	// PerformMove applies a multi-particle move. No other move may be in
	// progress.
	PerformMove(move position.Move) error
	// Psi returns the current amplitude; during a move, the tentative
	// post-move amplitude.
	Psi() bignum.Big
	// FinishMove commits the pending move.
	FinishMove()
	// CancelMove rolls back the pending move, restoring positions and
	// engines.
	CancelMove()
	// SwapParticles relabels two particles of one species without
	// changing the physical configuration.
	SwapParticles(i, j, species int)
	// Reset replaces the configuration and rebuilds all engines.
	Reset(r *position.Arguments)
	// Clone returns a deep copy sharing only immutable tables.
	Clone() Amplitude
	// ProposeMove draws a random move appropriate for this family. An
	// empty move means "nothing to propose" and is rejected upstream.
	ProposeMove(rng *rand.Rand) position.Move
	// Positions returns the configuration. Callers must not modify it.
	Positions() *position.Arguments
	// Lattice returns the lattice shared by all clones.
	Lattice() *lattice.Lattice
}

// proposeSingleParticleMove is the default proposal: a uniformly random
// particle stepped to a nearby empty site.
func proposeSingleParticleMove(a Amplitude, rng *rand.Rand) position.Move {
	r := a.Positions()
	p := r.RandomParticle(rng)
	site := a.Lattice().PlanParticleMoveToNearbyEmptySite(p, r, rng)
	if site == r.At(p) {
		return nil
	}
	return position.Move{{Particle: p, Destination: site}}
}

// reverseMove builds the move that undoes a move, given the origin sites
// recorded before it was applied.
func reverseMove(m position.Move, oldSites []int) position.Move {
	rev := make(position.Move, len(m))
	for i, sp := range m {
		rev[i] = position.SingleParticleMove{Particle: sp.Particle, Destination: oldSites[i]}
	}
	return rev
}

func recordOrigins(r *position.Arguments, m position.Move) []int {
	old := make([]int, len(m))
	for i, sp := range m {
		old[i] = r.At(sp.Particle)
	}
	return old
}
