package position

import (
	"math/rand"
	"testing"

	"github.com/pkg/errors"
)

func newTestArguments(t *testing.T) *Arguments {
	t.Helper()
	return New([][]int{{0, 2, 5}, {1, 2}}, 6)
}

func TestOccupancyInvariant(t *testing.T) {
	a := newTestArguments(t)
	if got, want := a.NumSpecies(), 2; got != want {
		t.Fatalf("species: got=%d want=%d", got, want)
	}
	if got, want := a.NumFilledTotal(), 5; got != want {
		t.Fatalf("filled: got=%d want=%d", got, want)
	}
	for s := 0; s < a.NumSpecies(); s++ {
		for i := 0; i < a.NumFilled(s); i++ {
			p := Particle{Index: i, Species: s}
			if got := a.ParticleIndexAt(a.At(p), s); got != i {
				t.Fatalf("occupancy reverse map broken at %v: got=%d", p, got)
			}
		}
	}
	if a.IsOccupied(3, 0) || a.IsOccupied(0, 1) {
		t.Fatalf("unexpected occupancy")
	}
}

func TestUpdatePosition(t *testing.T) {
	a := newTestArguments(t)
	p := Particle{Index: 0, Species: 0}
	if err := a.UpdatePosition(p, 3); err != nil {
		t.Fatalf("legal move failed: %v", err)
	}
	if got := a.At(p); got != 3 {
		t.Fatalf("position after move: got=%d want=3", got)
	}
	if a.IsOccupied(0, 0) {
		t.Fatalf("old site still occupied")
	}
	// moving onto an occupied same-species site fails
	if err := a.UpdatePosition(p, 2); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
	// a different species on the target site is fine
	if err := a.UpdatePosition(p, 1); err != nil {
		t.Fatalf("cross-species site should be free: %v", err)
	}
	// moving a particle onto its own site is a no-op, not an error
	if err := a.UpdatePosition(p, 1); err != nil {
		t.Fatalf("self move failed: %v", err)
	}
}

func TestApplyMoveExchange(t *testing.T) {
	a := newTestArguments(t)
	// same-species particles 0 and 1 exchange sites 0 and 2
	m := Move{
		{Particle: Particle{Index: 0, Species: 0}, Destination: 2},
		{Particle: Particle{Index: 1, Species: 0}, Destination: 0},
	}
	if err := a.ApplyMove(m); err != nil {
		t.Fatalf("exchange move failed: %v", err)
	}
	if a.At(Particle{0, 0}) != 2 || a.At(Particle{1, 0}) != 0 {
		t.Fatalf("exchange did not land: %d %d", a.At(Particle{0, 0}), a.At(Particle{1, 0}))
	}
	if a.ParticleIndexAt(2, 0) != 0 || a.ParticleIndexAt(0, 0) != 1 {
		t.Fatalf("occupancy out of sync after exchange")
	}
}

func TestApplyMoveRejectsCollision(t *testing.T) {
	a := newTestArguments(t)
	m := Move{{Particle: Particle{Index: 0, Species: 0}, Destination: 5}}
	if err := a.ApplyMove(m); !errors.Is(err, ErrInvalidMove) {
		t.Fatalf("expected ErrInvalidMove, got %v", err)
	}
	// nothing was mutated
	if a.At(Particle{0, 0}) != 0 || !a.IsOccupied(0, 0) {
		t.Fatalf("failed move mutated state")
	}
}

func TestMoveValidate(t *testing.T) {
	dup := Move{
		{Particle: Particle{0, 0}, Destination: 1},
		{Particle: Particle{0, 0}, Destination: 3},
	}
	if err := dup.Validate(); err == nil {
		t.Fatalf("duplicate particle accepted")
	}
	clash := Move{
		{Particle: Particle{0, 0}, Destination: 3},
		{Particle: Particle{1, 0}, Destination: 3},
	}
	if err := clash.Validate(); err == nil {
		t.Fatalf("duplicate destination accepted")
	}
}

func TestSwapParticles(t *testing.T) {
	a := newTestArguments(t)
	a.SwapParticles(0, 2, 0)
	if a.At(Particle{0, 0}) != 5 || a.At(Particle{2, 0}) != 0 {
		t.Fatalf("swap positions: got %d %d", a.At(Particle{0, 0}), a.At(Particle{2, 0}))
	}
	if a.ParticleIndexAt(5, 0) != 0 || a.ParticleIndexAt(0, 0) != 2 {
		t.Fatalf("swap occupancy out of sync")
	}
}

func TestRandomParticleCoversAllSpecies(t *testing.T) {
	a := newTestArguments(t)
	rng := rand.New(rand.NewSource(3))
	seen := map[Particle]int{}
	for i := 0; i < 5000; i++ {
		seen[a.RandomParticle(rng)]++
	}
	if len(seen) != 5 {
		t.Fatalf("random particle missed some particles: %v", seen)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	a := newTestArguments(t)
	c := a.Clone()
	if err := c.UpdatePosition(Particle{0, 0}, 4); err != nil {
		t.Fatalf("move on clone failed: %v", err)
	}
	if a.At(Particle{0, 0}) != 0 {
		t.Fatalf("mutating clone affected original")
	}
}
