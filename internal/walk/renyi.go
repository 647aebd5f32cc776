package walk

import (
	"math/cmplx"
	"math/rand"

	"github.com/pkg/errors"

	"vmc/internal/bignum"
	"vmc/internal/lattice"
	"vmc/internal/position"
	"vmc/internal/swap"
	"vmc/internal/wavefunction"
)

// swapWalk is the shared machinery of the Renyi walks: two independent
// configuration copies with equal subsystem particle counts, plus a
// swapped system tracking the two shadow amplitudes. A step moves a
// particle in one copy; when that move changes subsystem membership, a
// matching particle of the other copy crosses the boundary in the same
// direction so that a swap stays possible (Y. Zhang et al., PRL 107,
// 067202 (2011)).
type swapWalk struct {
	phialpha1, phialpha2 *wavefunction.Handle
	swapped              *swap.SwappedSystem
	subsystem            lattice.Subsystem
	updateBeforeAccept   bool

	transitionInProgress bool
	moved1, moved2       bool
	particle1, particle2 position.Particle
	updatePerformed      bool
}

func newSwapWalk(wf *wavefunction.Handle, subsystem lattice.Subsystem, updateBeforeAccept bool) (swapWalk, error) {
	w := swapWalk{
		phialpha1:          wf.Share(),
		phialpha2:          wavefunction.NewHandle(wf.Get().Clone()),
		swapped:            swap.New(subsystem),
		subsystem:          subsystem,
		updateBeforeAccept: updateBeforeAccept,
	}
	if err := w.swapped.Initialize(w.phialpha1.Get(), w.phialpha2.Get()); err != nil {
		return swapWalk{}, errors.Wrap(err, "walk: swapped system")
	}
	return w, nil
}

// Phialpha1 returns the first unswapped amplitude.
func (w *swapWalk) Phialpha1() wavefunction.Amplitude {
	return w.phialpha1.Get()
}

// Phialpha2 returns the second unswapped amplitude.
func (w *swapWalk) Phialpha2() wavefunction.Amplitude {
	return w.phialpha2.Get()
}

// Phibeta1 returns the first swapped amplitude.
func (w *swapWalk) Phibeta1() wavefunction.Amplitude {
	return w.swapped.Phibeta1()
}

// Phibeta2 returns the second swapped amplitude.
func (w *swapWalk) Phibeta2() wavefunction.Amplitude {
	return w.swapped.Phibeta2()
}

// VerifySwappedSystem recomputes the swapped configurations from scratch
// and checks the tracked phibetas against them. Diagnostic, used by the
// careful mode.
func (w *swapWalk) VerifySwappedSystem() error {
	return w.swapped.VerifyPhibetas(w.phialpha1.Get(), w.phialpha2.Get())
}

// step proposes one transition and returns the four amplitude ratios
// plus the forward/backward proposal count correction for paired
// boundary-crossing moves. ok is false when no transition could be
// built; nothing is mutated in that case.
func (w *swapWalk) step(rng *rand.Rand) (r1, r2, rb1, rb2 complex128, proposal float64, ok bool) {
	if w.transitionInProgress {
		panic("walk: transition already in progress")
	}
	w.transitionInProgress = true
	w.moved1, w.moved2 = false, false
	w.updatePerformed = false

	primaryCopy := rng.Intn(2)
	primary, other := w.phialpha1, w.phialpha2
	if primaryCopy == 1 {
		primary, other = w.phialpha2, w.phialpha1
	}
	lat := primary.Get().Lattice()
	rPrimary := primary.Get().Positions()

	p := rPrimary.RandomParticle(rng)
	dest := lat.PlanParticleMoveToNearbyEmptySite(p, rPrimary, rng)
	if dest == rPrimary.At(p) {
		return 0, 0, 0, 0, 0, false
	}
	wasIn := w.subsystem.SiteIsWithin(rPrimary.At(p), lat)
	nowIn := w.subsystem.SiteIsWithin(dest, lat)

	var primaryMove, otherMove position.Move
	primaryMove = position.Move{{Particle: p, Destination: dest}}
	var otherParticle position.Particle
	forwardChoices := 0

	if wasIn != nowIn {
		// the other copy must lose or gain a same-species subsystem
		// particle in the same step
		rOther := other.Get().Positions()
		candidates := make([]int, 0, rOther.NumFilled(p.Species))
		for i := 0; i < rOther.NumFilled(p.Species); i++ {
			site := rOther.At(position.Particle{Index: i, Species: p.Species})
			if w.subsystem.SiteIsWithin(site, lat) == wasIn {
				candidates = append(candidates, i)
			}
		}
		if len(candidates) == 0 {
			return 0, 0, 0, 0, 0, false
		}
		empty := make([]int, 0, rOther.NumSites())
		for site := 0; site < rOther.NumSites(); site++ {
			if w.subsystem.SiteIsWithin(site, lat) == nowIn && !rOther.IsOccupied(site, p.Species) {
				empty = append(empty, site)
			}
		}
		if len(empty) == 0 {
			return 0, 0, 0, 0, 0, false
		}
		otherParticle = position.Particle{
			Index:   candidates[rng.Intn(len(candidates))],
			Species: p.Species,
		}
		otherMove = position.Move{{Particle: otherParticle, Destination: empty[rng.Intn(len(empty))]}}
		forwardChoices = len(candidates) * len(empty)
	}

	oldBeta1 := w.swapped.Phibeta1().Psi()
	oldBeta2 := w.swapped.Phibeta2().Psi()

	applyTo := func(h *wavefunction.Handle, m position.Move) (bignum.Big, bignum.Big) {
		amp := h.MakeUnique()
		old := amp.Psi()
		if err := amp.PerformMove(m); err != nil {
			panic(err)
		}
		return old, amp.Psi()
	}

	var p1, p2 *position.Particle
	r1, r2 = 1, 1
	if primaryCopy == 0 {
		old, neu := applyTo(w.phialpha1, primaryMove)
		r1 = neu.Ratio(old)
		w.moved1, w.particle1 = true, p
		p1 = &w.particle1
		if otherMove != nil {
			old2, neu2 := applyTo(w.phialpha2, otherMove)
			r2 = neu2.Ratio(old2)
			w.moved2, w.particle2 = true, otherParticle
			p2 = &w.particle2
		}
	} else {
		old, neu := applyTo(w.phialpha2, primaryMove)
		r2 = neu.Ratio(old)
		w.moved2, w.particle2 = true, p
		p2 = &w.particle2
		if otherMove != nil {
			old1, neu1 := applyTo(w.phialpha1, otherMove)
			r1 = neu1.Ratio(old1)
			w.moved1, w.particle1 = true, otherParticle
			p1 = &w.particle1
		}
	}

	// for a paired crossing, the reverse transition draws from different
	// candidate and destination pools; the count ratio keeps the
	// proposal balanced
	proposal = 1
	if otherMove != nil {
		rOther := other.Get().Positions()
		backCandidates, backEmpty := 0, 0
		for i := 0; i < rOther.NumFilled(p.Species); i++ {
			site := rOther.At(position.Particle{Index: i, Species: p.Species})
			if w.subsystem.SiteIsWithin(site, lat) == nowIn {
				backCandidates++
			}
		}
		for site := 0; site < rOther.NumSites(); site++ {
			if w.subsystem.SiteIsWithin(site, lat) == wasIn && !rOther.IsOccupied(site, p.Species) {
				backEmpty++
			}
		}
		proposal = float64(forwardChoices) / float64(backCandidates*backEmpty)
	}

	rb1, rb2 = 1, 1
	if w.updateBeforeAccept {
		w.swapped.Update(p1, p2, w.phialpha1.Get(), w.phialpha2.Get())
		w.updatePerformed = true
		rb1 = w.swapped.Phibeta1().Psi().Ratio(oldBeta1)
		rb2 = w.swapped.Phibeta2().Psi().Ratio(oldBeta2)
	}
	return r1, r2, rb1, rb2, proposal, true
}

func (w *swapWalk) accept() {
	if !w.transitionInProgress {
		panic("walk: no transition to accept")
	}
	if !w.moved1 && !w.moved2 {
		panic("walk: accepting an impossible transition")
	}
	if !w.updatePerformed {
		var p1, p2 *position.Particle
		if w.moved1 {
			p1 = &w.particle1
		}
		if w.moved2 {
			p2 = &w.particle2
		}
		w.swapped.Update(p1, p2, w.phialpha1.Get(), w.phialpha2.Get())
		w.updatePerformed = true
	}
	if w.moved1 {
		w.phialpha1.Get().FinishMove()
	}
	if w.moved2 {
		w.phialpha2.Get().FinishMove()
	}
	w.swapped.FinishUpdate()
	w.transitionInProgress = false
}

func (w *swapWalk) reject() {
	if !w.transitionInProgress {
		panic("walk: no transition to reject")
	}
	if w.updatePerformed {
		w.swapped.CancelUpdate()
	}
	if w.moved1 {
		w.phialpha1.Get().CancelMove()
	}
	if w.moved2 {
		w.phialpha2.Get().CancelMove()
	}
	w.transitionInProgress = false
}

// RenyiMod samples the stationary distribution proportional to
// |phialpha1 * phialpha2 * phibeta1 * phibeta2|; the mod measurement
// turns its samples into the modulus of the swap expectation value.
type RenyiMod struct {
	swapWalk
}

// NewRenyiMod builds the walk from a shared amplitude. The second copy
// starts as a clone, so the subsystem counts trivially match.
func NewRenyiMod(wf *wavefunction.Handle, subsystem lattice.Subsystem, updateBeforeAccept bool) (*RenyiMod, error) {
	base, err := newSwapWalk(wf, subsystem, updateBeforeAccept)
	if err != nil {
		return nil, err
	}
	return &RenyiMod{swapWalk: base}, nil
}

// ComputeProbabilityRatioOfRandomTransition returns the modulus of the
// product of the amplitude ratios, times the proposal correction for
// paired boundary-crossing moves. The phibeta ratios enter only when the
// swapped update runs before acceptance.
func (w *RenyiMod) ComputeProbabilityRatioOfRandomTransition(rng *rand.Rand) float64 {
	r1, r2, rb1, rb2, proposal, ok := w.step(rng)
	if !ok {
		return 0
	}
	return proposal * w.probabilityRatio(r1, r2, rb1, rb2)
}

func (w *RenyiMod) probabilityRatio(r1, r2, rb1, rb2 complex128) float64 {
	return cmplx.Abs(r1 * r2 * rb1 * rb2)
}

// AcceptTransition commits the pending transition.
func (w *RenyiMod) AcceptTransition() {
	w.accept()
}

// RejectTransition rolls back the pending transition.
func (w *RenyiMod) RejectTransition() {
	w.reject()
}

// RenyiSign shares the mod walk's stationary distribution; the sign of
// the swap expectation is carried entirely by its measurement, which
// averages the phase of phibeta1*phibeta2/(phialpha1*phialpha2).
type RenyiSign struct {
	swapWalk
}

// NewRenyiSign builds the walk from a shared amplitude.
func NewRenyiSign(wf *wavefunction.Handle, subsystem lattice.Subsystem, updateBeforeAccept bool) (*RenyiSign, error) {
	base, err := newSwapWalk(wf, subsystem, updateBeforeAccept)
	if err != nil {
		return nil, err
	}
	return &RenyiSign{swapWalk: base}, nil
}

// ComputeProbabilityRatioOfRandomTransition returns the modulus of the
// product of the amplitude ratios, times the proposal correction for
// paired boundary-crossing moves. The phibeta ratios enter only when the
// swapped update runs before acceptance.
func (w *RenyiSign) ComputeProbabilityRatioOfRandomTransition(rng *rand.Rand) float64 {
	r1, r2, rb1, rb2, proposal, ok := w.step(rng)
	if !ok {
		return 0
	}
	return proposal * w.probabilityRatio(r1, r2, rb1, rb2)
}

func (w *RenyiSign) probabilityRatio(r1, r2, rb1, rb2 complex128) float64 {
	return cmplx.Abs(r1 * r2 * rb1 * rb2)
}

// AcceptTransition commits the pending transition.
func (w *RenyiSign) AcceptTransition() {
	w.accept()
}

// RejectTransition rolls back the pending transition.
func (w *RenyiSign) RejectTransition() {
	w.reject()
}
