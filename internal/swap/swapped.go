// Package swap maintains the "swapped" wave-function amplitudes used by
// the Renyi entanglement estimators: for two independent configuration
// copies, it tracks which particles of each copy currently sit inside a
// geometric subsystem and keeps two shadow amplitudes whose
// configurations exchange those particles between the copies.
package swap

import (
	"github.com/pkg/errors"

	"vmc/internal/lattice"
	"vmc/internal/position"
	"vmc/internal/wavefunction"
)

// State is the bookkeeping phase.
type State int

// States of the swapped system.
const (
	Uninitialized State = iota
	Ready
	UpdateInProgress
)

// SwappedSystem pairs the subsystem particles of two copies. The k-th
// entries of copy1Indices[s] and copy2Indices[s] are swapped with each
// other; an index appears in a list exactly when that particle's
// position in the corresponding phialpha lies inside the subsystem.
// Phibeta mutations are copy-on-write: the handles may share amplitudes
// with the rest of the simulation.
type SwappedSystem struct {
	subsystem lattice.Subsystem

	copy1Indices [][]int
	copy2Indices [][]int

	phibeta1, phibeta2           *wavefunction.Handle
	phibeta1Dirty, phibeta2Dirty bool

	state State

	// rollback info for the most recent update
	recentDelta               int
	recentParticle1           position.Particle
	recentParticle2           position.Particle
}

// New creates an uninitialized swapped system over a subsystem.
func New(subsystem lattice.Subsystem) *SwappedSystem {
	return &SwappedSystem{subsystem: subsystem, state: Uninitialized}
}

// Subsystem returns the region the pairing is defined over.
func (s *SwappedSystem) Subsystem() lattice.Subsystem {
	return s.subsystem
}

// Phibeta1 returns the first swapped amplitude for read-only use.
func (s *SwappedSystem) Phibeta1() wavefunction.Amplitude {
	return s.phibeta1.Get()
}

// Phibeta2 returns the second swapped amplitude for read-only use.
func (s *SwappedSystem) Phibeta2() wavefunction.Amplitude {
	return s.phibeta2.Get()
}

// Initialize scans both phialphas for subsystem membership and builds
// the phibetas. The subsystem particle counts of the two copies must
// match.
func (s *SwappedSystem) Initialize(phialpha1, phialpha2 wavefunction.Amplitude) error {
	if s.state != Uninitialized {
		panic("swap: already initialized")
	}
	r1, r2 := phialpha1.Positions(), phialpha2.Positions()
	if r1.NumSpecies() != r2.NumSpecies() || r1.NumSites() != r2.NumSites() {
		panic("swap: copies disagree on species or site count")
	}
	if !s.subsystem.LatticeMakesSense(phialpha1.Lattice()) {
		panic("swap: subsystem incompatible with lattice")
	}

	lat := phialpha1.Lattice()
	nSpecies := r1.NumSpecies()
	s.copy1Indices = make([][]int, nSpecies)
	s.copy2Indices = make([][]int, nSpecies)
	for species := 0; species < nSpecies; species++ {
		if r1.NumFilled(species) != r2.NumFilled(species) {
			panic("swap: copies disagree on filling")
		}
		for i := 0; i < r1.NumFilled(species); i++ {
			p := position.Particle{Index: i, Species: species}
			if s.subsystem.SiteIsWithin(r1.At(p), lat) {
				s.copy1Indices[species] = append(s.copy1Indices[species], i)
			}
			if s.subsystem.SiteIsWithin(r2.At(p), lat) {
				s.copy2Indices[species] = append(s.copy2Indices[species], i)
			}
		}
	}
	if !s.subsystemParticleCountsMatch() {
		return errors.New("swap: subsystem particle counts do not match")
	}
	s.reinitializePhibetas(phialpha1, phialpha2)
	s.state = Ready
	return nil
}

func intIndex(v []int, x int) int {
	for i, y := range v {
		if y == x {
			return i
		}
	}
	return -1
}

// Update must be called after the phialpha moves have been applied. A
// nil particle means that copy did not move. The membership deltas of
// the two copies must agree and lie in {-1, 0, +1}; when nonzero, both
// particles must move, be of the same species, and end on the same side
// of the boundary. Both particles moving with delta zero is forbidden,
// which caps the work at one phibeta move per copy.
func (s *SwappedSystem) Update(particle1, particle2 *position.Particle, phialpha1, phialpha2 wavefunction.Amplitude) {
	if s.state != Ready {
		panic("swap: update with update already in progress")
	}
	s.state = UpdateInProgress

	r1, r2 := phialpha1.Positions(), phialpha2.Positions()
	lat := phialpha1.Lattice()

	// >= 0 when the particle was paired before the move, -1 when it was
	// outside the subsystem, -2 when it is not moving at all
	pairingIndex1, pairingIndex2 := -2, -2
	if particle1 != nil {
		pairingIndex1 = intIndex(s.copy1Indices[particle1.Species], particle1.Index)
	}
	if particle2 != nil {
		pairingIndex2 = intIndex(s.copy2Indices[particle2.Species], particle2.Index)
	}

	nowIn1 := particle1 != nil && s.subsystem.SiteIsWithin(r1.At(*particle1), lat)
	nowIn2 := particle2 != nil && s.subsystem.SiteIsWithin(r2.At(*particle2), lat)

	delta1 := boolToInt(nowIn1) - boolToInt(pairingIndex1 >= 0)
	delta2 := boolToInt(nowIn2) - boolToInt(pairingIndex2 >= 0)
	if particle1 == nil && delta1 != 0 {
		panic("swap: delta without a moving particle")
	}
	if particle2 == nil && delta2 != 0 {
		panic("swap: delta without a moving particle")
	}
	if delta1 != delta2 {
		panic("swap: membership deltas disagree between copies")
	}
	delta := delta1
	if delta != 0 {
		if particle1 == nil || particle2 == nil || particle1.Species != particle2.Species {
			panic("swap: nonzero delta requires paired moves of one species")
		}
		if nowIn1 != nowIn2 {
			panic("swap: particles end on different sides of the boundary")
		}
	} else if particle1 != nil && particle2 != nil {
		panic("swap: simultaneous moves require a membership change")
	}

	s.recentDelta = delta
	if particle1 != nil {
		s.recentParticle1 = *particle1
	}
	if particle2 != nil {
		s.recentParticle2 = *particle2
	}

	if delta == -1 {
		// a particle of the same species leaves the subsystem in each
		// copy; if they are not paired with each other, re-pair so the
		// particles staying behind remain correctly matched
		species := particle1.Species
		c1 := s.copy1Indices[species]
		c2 := s.copy2Indices[species]

		beta1 := s.phibeta1.MakeUnique()
		beta2 := s.phibeta2.MakeUnique()

		if pairingIndex1 != pairingIndex2 {
			beta1.SwapParticles(c1[pairingIndex1], c1[pairingIndex2], species)
			beta2.SwapParticles(c2[pairingIndex1], c2[pairingIndex2], species)
			if pairingIndex1 < pairingIndex2 {
				c1[pairingIndex1], c1[pairingIndex2] = c1[pairingIndex2], c1[pairingIndex1]
			} else {
				c2[pairingIndex1], c2[pairingIndex2] = c2[pairingIndex2], c2[pairingIndex1]
			}
		}

		maxPairing := pairingIndex1
		if pairingIndex2 > maxPairing {
			maxPairing = pairingIndex2
		}
		if s.phibeta1Dirty || s.phibeta2Dirty {
			panic("swap: phibeta already dirty")
		}
		mustMove(beta1, position.Particle{Index: c1[maxPairing], Species: species}, r1.At(*particle1))
		mustMove(beta2, position.Particle{Index: c2[maxPairing], Species: species}, r2.At(*particle2))
		s.phibeta1Dirty = true
		s.phibeta2Dirty = true

		// drop the now-empty pair slot
		c1[maxPairing] = c1[len(c1)-1]
		s.copy1Indices[species] = c1[:len(c1)-1]
		c2[maxPairing] = c2[len(c2)-1]
		s.copy2Indices[species] = c2[:len(c2)-1]
		return
	}

	// delta is 0 or +1: entering particles pair with each other at the
	// new last slot; within-subsystem moves touch one phibeta per copy
	if delta == 1 {
		s.copy1Indices[particle1.Species] = append(s.copy1Indices[particle1.Species], particle1.Index)
		pairingIndex1 = len(s.copy1Indices[particle1.Species]) - 1
		s.copy2Indices[particle2.Species] = append(s.copy2Indices[particle2.Species], particle2.Index)
		pairingIndex2 = len(s.copy2Indices[particle2.Species]) - 1
	}
	if !s.subsystemParticleCountsMatch() {
		panic("swap: pairing lists out of sync")
	}

	if particle1 != nil {
		// a move inside the subsystem in copy 1 shows up in phibeta2,
		// which carries copy 1's subsystem particles
		target, dirty := s.phibeta1, &s.phibeta1Dirty
		betaParticle := *particle1
		if nowIn1 {
			target, dirty = s.phibeta2, &s.phibeta2Dirty
			betaParticle = position.Particle{
				Index:   s.copy2Indices[particle1.Species][pairingIndex1],
				Species: particle1.Species,
			}
		}
		if *dirty {
			panic("swap: phibeta already dirty")
		}
		mustMove(target.MakeUnique(), betaParticle, r1.At(*particle1))
		*dirty = true
	}
	if particle2 != nil {
		target, dirty := s.phibeta2, &s.phibeta2Dirty
		betaParticle := *particle2
		if nowIn2 {
			target, dirty = s.phibeta1, &s.phibeta1Dirty
			betaParticle = position.Particle{
				Index:   s.copy1Indices[particle2.Species][pairingIndex2],
				Species: particle2.Species,
			}
		}
		if *dirty {
			panic("swap: phibeta already dirty")
		}
		mustMove(target.MakeUnique(), betaParticle, r2.At(*particle2))
		*dirty = true
	}
}

func mustMove(a wavefunction.Amplitude, p position.Particle, site int) {
	err := a.PerformMove(position.Move{{Particle: p, Destination: site}})
	if err != nil {
		panic(errors.Wrap(err, "swap: phibeta move failed"))
	}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// FinishUpdate commits the dirty phibeta moves.
func (s *SwappedSystem) FinishUpdate() {
	if s.state != UpdateInProgress {
		panic("swap: no update to finish")
	}
	s.state = Ready
	if !s.subsystemParticleCountsMatch() {
		panic("swap: pairing lists out of sync")
	}
	if s.phibeta1Dirty {
		s.phibeta1.Get().FinishMove()
	}
	s.phibeta1Dirty = false
	if s.phibeta2Dirty {
		s.phibeta2.Get().FinishMove()
	}
	s.phibeta2Dirty = false
}

// CancelUpdate rolls back the dirty phibeta moves and restores the
// pairing lists.
func (s *SwappedSystem) CancelUpdate() {
	if s.state != UpdateInProgress {
		panic("swap: no update to cancel")
	}
	s.state = Ready
	if s.phibeta1Dirty {
		s.phibeta1.Get().CancelMove()
	}
	s.phibeta1Dirty = false
	if s.phibeta2Dirty {
		s.phibeta2.Get().CancelMove()
	}
	s.phibeta2Dirty = false

	if s.recentDelta != 0 {
		if s.recentParticle1.Species != s.recentParticle2.Species {
			panic("swap: rollback species mismatch")
		}
		species := s.recentParticle1.Species
		if s.recentDelta == 1 {
			// the entering pair was appended; drop it again
			c1 := s.copy1Indices[species]
			s.copy1Indices[species] = c1[:len(c1)-1]
			c2 := s.copy2Indices[species]
			s.copy2Indices[species] = c2[:len(c2)-1]
		} else {
			// the leaving pair returns to the subsystem; re-pair them at
			// the end
			s.copy1Indices[species] = append(s.copy1Indices[species], s.recentParticle1.Index)
			s.copy2Indices[species] = append(s.copy2Indices[species], s.recentParticle2.Index)
		}
	}
}

func (s *SwappedSystem) subsystemParticleCountsMatch() bool {
	if len(s.copy1Indices) != len(s.copy2Indices) {
		return false
	}
	for i := range s.copy1Indices {
		if len(s.copy1Indices[i]) != len(s.copy2Indices[i]) {
			return false
		}
	}
	return true
}

// reinitializePhibetas rebuilds both shadow amplitudes from swapped
// copies of the phialpha configurations.
func (s *SwappedSystem) reinitializePhibetas(phialpha1, phialpha2 wavefunction.Amplitude) {
	r1, r2 := s.swapPositions(phialpha1.Positions(), phialpha2.Positions())

	beta1 := phialpha1.Clone()
	beta1.Reset(r1)
	s.phibeta1 = wavefunction.NewHandle(beta1)
	s.phibeta1Dirty = false

	beta2 := phialpha2.Clone()
	beta2.Reset(r2)
	s.phibeta2 = wavefunction.NewHandle(beta2)
	s.phibeta2Dirty = false
}

// swapPositions exchanges the paired subsystem particles of the two
// configurations and returns the results.
func (s *SwappedSystem) swapPositions(r1, r2 *position.Arguments) (*position.Arguments, *position.Arguments) {
	v1 := make([][]int, r1.NumSpecies())
	v2 := make([][]int, r2.NumSpecies())
	for species := range v1 {
		v1[species] = r1.RVector(species)
		v2[species] = r2.RVector(species)
		for k := range s.copy1Indices[species] {
			i1 := s.copy1Indices[species][k]
			i2 := s.copy2Indices[species][k]
			v1[species][i1], v2[species][i2] = v2[species][i2], v1[species][i1]
		}
	}
	return position.New(v1, r1.NumSites()), position.New(v2, r2.NumSites())
}

// VerifyPhibetas recomputes the swapped configurations from scratch and
// checks them against the tracked phibetas, along with the pairing-list
// membership invariant. It is a diagnostic, enabled by the careful mode.
func (s *SwappedSystem) VerifyPhibetas(phialpha1, phialpha2 wavefunction.Amplitude) error {
	r1, r2 := phialpha1.Positions(), phialpha2.Positions()
	lat := phialpha1.Lattice()

	for species := 0; species < r1.NumSpecies(); species++ {
		c1, c2 := 0, 0
		for i := 0; i < r1.NumFilled(species); i++ {
			p := position.Particle{Index: i, Species: species}
			in1 := s.subsystem.SiteIsWithin(r1.At(p), lat)
			in2 := s.subsystem.SiteIsWithin(r2.At(p), lat)
			if in1 != (intIndex(s.copy1Indices[species], i) >= 0) {
				return errors.Errorf("copy 1 pairing list wrong for particle %v", p)
			}
			if in2 != (intIndex(s.copy2Indices[species], i) >= 0) {
				return errors.Errorf("copy 2 pairing list wrong for particle %v", p)
			}
			if in1 {
				c1++
			}
			if in2 {
				c2++
			}
		}
		if c1 != c2 || c1 != len(s.copy1Indices[species]) {
			return errors.Errorf("subsystem counts out of sync for species %d", species)
		}
	}

	w1, w2 := s.swapPositions(r1, r2)
	b1, b2 := s.phibeta1.Get().Positions(), s.phibeta2.Get().Positions()
	for species := 0; species < r1.NumSpecies(); species++ {
		for i := 0; i < r1.NumFilled(species); i++ {
			p := position.Particle{Index: i, Species: species}
			if w1.At(p) != b1.At(p) {
				return errors.Errorf("phibeta1 position wrong for particle %v: got %d want %d", p, b1.At(p), w1.At(p))
			}
			if w2.At(p) != b2.At(p) {
				return errors.Errorf("phibeta2 position wrong for particle %v: got %d want %d", p, b2.At(p), w2.At(p))
			}
		}
	}
	return nil
}

// CountsForMatch reports whether two amplitudes have matching subsystem
// particle counts for every species, the precondition for a swap to be
// possible at all.
func CountsForMatch(wf1, wf2 wavefunction.Amplitude, subsystem lattice.Subsystem) bool {
	r1, r2 := wf1.Positions(), wf2.Positions()
	lat := wf1.Lattice()
	for species := 0; species < r1.NumSpecies(); species++ {
		count1, count2 := 0, 0
		for i := 0; i < r1.NumFilled(species); i++ {
			p := position.Particle{Index: i, Species: species}
			if subsystem.SiteIsWithin(r1.At(p), lat) {
				count1++
			}
			if subsystem.SiteIsWithin(r2.At(p), lat) {
				count2++
			}
		}
		if count1 != count2 {
			return false
		}
	}
	return true
}
