package swap

import (
	"testing"

	"vmc/internal/detmat"
	"vmc/internal/lattice"
	"vmc/internal/position"
	"vmc/internal/wavefunction"
)

func buildAmplitude(t *testing.T, l *lattice.Lattice, sites []int) wavefunction.Amplitude {
	t.Helper()
	var momenta [][]int
	for k := 0; k < len(sites); k++ {
		momenta = append(momenta, []int{k})
	}
	o, err := wavefunction.NewFilledOrbitals(momenta, l, []lattice.BoundaryCondition{lattice.Periodic})
	if err != nil {
		t.Fatalf("orbitals: %v", err)
	}
	r := position.New([][]int{sites}, l.TotalSites())
	f, err := wavefunction.NewFreeFermion(r, o, detmat.DefaultOptions())
	if err != nil {
		t.Fatalf("free fermion: %v", err)
	}
	return f
}

func chain(t *testing.T, n int) *lattice.Lattice {
	t.Helper()
	l, err := lattice.New([]int{n}, 1)
	if err != nil {
		t.Fatalf("lattice: %v", err)
	}
	return l
}

func verify(t *testing.T, s *SwappedSystem, a1, a2 wavefunction.Amplitude) {
	t.Helper()
	if err := s.VerifyPhibetas(a1, a2); err != nil {
		t.Fatalf("verify phibetas: %v", err)
	}
}

func moveParticle(t *testing.T, a wavefunction.Amplitude, p position.Particle, dest int) {
	t.Helper()
	if err := a.PerformMove(position.Move{{Particle: p, Destination: dest}}); err != nil {
		t.Fatalf("move: %v", err)
	}
}

func TestInitializePairsSubsystemParticles(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	// both copies have two particles inside sites {0..3}
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{1, 3, 4, 6})
	s := New(sub)
	if err := s.Initialize(a1, a2); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	verify(t, s, a1, a2)
	if !CountsForMatch(a1, a2, sub) {
		t.Fatalf("counts should match")
	}
}

func TestInitializeRejectsMismatchedCounts(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{4, 5, 6, 7})
	if CountsForMatch(a1, a2, sub) {
		t.Fatalf("counts should not match")
	}
	s := New(sub)
	if err := s.Initialize(a1, a2); err == nil {
		t.Fatalf("initialize accepted mismatched counts")
	}
}

func TestUpdateMoveWithinSubsystem(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{1, 3, 4, 6})
	s := New(sub)
	if err := s.Initialize(a1, a2); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// particle 0 of copy 1 moves 0 -> 1: stays inside the subsystem
	p := position.Particle{Index: 0, Species: 0}
	moveParticle(t, a1, p, 1)
	s.Update(&p, nil, a1, a2)
	s.FinishUpdate()
	a1.FinishMove()
	verify(t, s, a1, a2)
}

func TestUpdateMoveOutsideSubsystem(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{1, 3, 4, 6})
	s := New(sub)
	if err := s.Initialize(a1, a2); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// particle 2 of copy 2 moves 4 -> 5: entirely outside the subsystem
	p := position.Particle{Index: 2, Species: 0}
	moveParticle(t, a2, p, 5)
	s.Update(nil, &p, a1, a2)
	s.FinishUpdate()
	a2.FinishMove()
	verify(t, s, a1, a2)
}

func TestUpdatePairEnteringAndCancel(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{1, 3, 4, 6})
	s := New(sub)
	if err := s.Initialize(a1, a2); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// a particle enters the subsystem in both copies: particle 2 moves
	// 5 -> 3 in copy 1 and particle 2 moves 4 -> 2 in copy 2
	p1 := position.Particle{Index: 2, Species: 0}
	p2 := position.Particle{Index: 2, Species: 0}
	moveParticle(t, a1, p1, 3)
	moveParticle(t, a2, p2, 2)

	s.Update(&p1, &p2, a1, a2)
	s.FinishUpdate()
	a1.FinishMove()
	a2.FinishMove()
	verify(t, s, a1, a2)

	// now the pair leaves again, and the rejection path must restore the
	// pairing lists
	moveParticle(t, a1, p1, 4)
	moveParticle(t, a2, p2, 7)
	s.Update(&p1, &p2, a1, a2)
	s.CancelUpdate()
	a1.CancelMove()
	a2.CancelMove()
	verify(t, s, a1, a2)

	// and the same leave committed
	moveParticle(t, a1, p1, 4)
	moveParticle(t, a2, p2, 7)
	s.Update(&p1, &p2, a1, a2)
	s.FinishUpdate()
	a1.FinishMove()
	a2.FinishMove()
	verify(t, s, a1, a2)
}

func TestUpdateLeavingRequiresRepair(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	// copy 1 subsystem particles: indices 0 (site 0) and 1 (site 2)
	// copy 2 subsystem particles: indices 0 (site 1) and 1 (site 3)
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{1, 3, 4, 6})
	s := New(sub)
	if err := s.Initialize(a1, a2); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// particle 0 leaves in copy 1 (pairing slot 0) while particle 1
	// leaves in copy 2 (pairing slot 1): slots differ, forcing a re-pair
	p1 := position.Particle{Index: 0, Species: 0}
	p2 := position.Particle{Index: 1, Species: 0}
	moveParticle(t, a1, p1, 6)
	moveParticle(t, a2, p2, 5)
	s.Update(&p1, &p2, a1, a2)
	s.FinishUpdate()
	a1.FinishMove()
	a2.FinishMove()
	verify(t, s, a1, a2)
}

func TestCopyOnWriteClonesSharedPhibetas(t *testing.T) {
	l := chain(t, 8)
	sub := lattice.NewSimpleSubsystem([]int{4})
	a1 := buildAmplitude(t, l, []int{0, 2, 5, 7})
	a2 := buildAmplitude(t, l, []int{1, 3, 4, 6})
	s := New(sub)
	if err := s.Initialize(a1, a2); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// grab an extra reference, as a measurement would, to the phibeta
	// that the move below mutates: a move inside the subsystem in copy 1
	// lands in phibeta2
	shadow2 := s.phibeta2.Share()
	before := shadow2.Get().Positions().RVector(0)

	p := position.Particle{Index: 0, Species: 0}
	moveParticle(t, a1, p, 1)
	s.Update(&p, nil, a1, a2)
	s.FinishUpdate()
	a1.FinishMove()

	// the externally held phibeta snapshot must be untouched
	after := shadow2.Get().Positions().RVector(0)
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("shared phibeta mutated in place: %v -> %v", before, after)
		}
	}
}
