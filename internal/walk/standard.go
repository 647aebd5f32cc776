// Package walk implements the Monte Carlo transition proposers: the
// standard single-copy walk and the two-copy Renyi walks built on a
// swapped system.
package walk

import (
	"math"
	"math/rand"

	"vmc/internal/bignum"
	"vmc/internal/wavefunction"
)

// Standard is the plain Metropolis walk over one wave function: pick a
// particle, step it to a nearby empty site, and weight by
// |psi_new/psi_old|^2. The amplitude handle is shared copy-on-write, so
// measurements may keep references to earlier states.
type Standard struct {
	wf *wavefunction.Handle

	transitionInProgress bool
	movePerformed        bool
	oldPsi               bignum.Big
}

// NewStandard builds the walk around a shared amplitude handle.
func NewStandard(wf *wavefunction.Handle) *Standard {
	return &Standard{wf: wf}
}

// Wavefunction exposes the walk's current amplitude to measurements.
func (w *Standard) Wavefunction() wavefunction.Amplitude {
	return w.wf.Get()
}

// ComputeProbabilityRatioOfRandomTransition proposes one move and
// returns |psi_new/psi_old|^2. A zero return means the move is
// impossible (or lands on a singular configuration) and will be
// rejected.
func (w *Standard) ComputeProbabilityRatioOfRandomTransition(rng *rand.Rand) float64 {
	if w.transitionInProgress {
		panic("walk: transition already in progress")
	}
	w.transitionInProgress = true
	w.movePerformed = false

	move := w.wf.Get().ProposeMove(rng)
	if len(move) == 0 {
		return 0
	}

	amp := w.wf.MakeUnique()
	w.oldPsi = amp.Psi()
	if err := amp.PerformMove(move); err != nil {
		panic(err)
	}
	w.movePerformed = true

	// a singular configuration is not an error: it simply has no weight
	if amp.Psi().IsZero() {
		return 0
	}
	// the log-magnitude difference survives where the plain ratio of two
	// big amplitudes would overflow
	return math.Exp(2 * (amp.Psi().LogAbs() - w.oldPsi.LogAbs()))
}

// AcceptTransition commits the pending move.
func (w *Standard) AcceptTransition() {
	if !w.transitionInProgress {
		panic("walk: no transition to accept")
	}
	if !w.movePerformed {
		panic("walk: accepting an impossible transition")
	}
	w.wf.Get().FinishMove()
	w.transitionInProgress = false
}

// RejectTransition rolls back the pending move, if one was performed.
func (w *Standard) RejectTransition() {
	if !w.transitionInProgress {
		panic("walk: no transition to reject")
	}
	if w.movePerformed {
		w.wf.Get().CancelMove()
	}
	w.transitionInProgress = false
}
