package wavefunction

import (
	"math/cmplx"
	"math/rand"
	"testing"

	"vmc/internal/detmat"
	"vmc/internal/lattice"
	"vmc/internal/position"
)

func chainLattice(t *testing.T, length int) *lattice.Lattice {
	t.Helper()
	l, err := lattice.New([]int{length}, 1)
	if err != nil {
		t.Fatalf("lattice: %v", err)
	}
	return l
}

func halfFilledOrbitals(t *testing.T, l *lattice.Lattice) *OrbitalDefinitions {
	t.Helper()
	var momenta [][]int
	for k := 0; k < l.TotalSites()/2; k++ {
		momenta = append(momenta, []int{k})
	}
	o, err := NewFilledOrbitals(momenta, l, []lattice.BoundaryCondition{lattice.Periodic})
	if err != nil {
		t.Fatalf("orbitals: %v", err)
	}
	return o
}

// det2 evaluates a 2x2 determinant of orbital values directly.
func det2(o *OrbitalDefinitions, sites []int) complex128 {
	return o.At(0, sites[0])*o.At(1, sites[1]) - o.At(1, sites[0])*o.At(0, sites[1])
}

func TestFreeFermionRatioMatchesDirectDeterminant(t *testing.T) {
	// 4-site chain at half filling: moving [0 2] -> [1 2] must change
	// psi by exactly the ratio of the two 2x2 determinants
	l := chainLattice(t, 4)
	o := halfFilledOrbitals(t, l)
	r := position.New([][]int{{0, 2}}, 4)
	f, err := NewFreeFermion(r, o, detmat.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFreeFermion: %v", err)
	}

	oldPsi := f.Psi()
	if cmplx.Abs(oldPsi.Value()-det2(o, []int{0, 2})) > 1e-12 {
		t.Fatalf("initial psi: got=%v want=%v", oldPsi.Value(), det2(o, []int{0, 2}))
	}

	move := position.Move{{Particle: position.Particle{Index: 0, Species: 0}, Destination: 1}}
	if err := f.PerformMove(move); err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	newPsi := f.Psi()
	wantRatio := det2(o, []int{1, 2}) / det2(o, []int{0, 2})
	gotRatio := newPsi.Ratio(oldPsi)
	if cmplx.Abs(gotRatio-wantRatio) > 1e-12 {
		t.Fatalf("psi ratio: got=%v want=%v", gotRatio, wantRatio)
	}
	f.FinishMove()
	if got := f.Positions().At(position.Particle{Index: 0, Species: 0}); got != 1 {
		t.Fatalf("position after finish: got=%d want=1", got)
	}
}

func TestFreeFermionCancelRestoresEverything(t *testing.T) {
	l := chainLattice(t, 6)
	o := halfFilledOrbitals(t, l)
	r := position.New([][]int{{0, 2, 4}}, 6)
	f, err := NewFreeFermion(r, o, detmat.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFreeFermion: %v", err)
	}
	before := f.Psi()
	beforeSites := f.Positions().RVector(0)

	move := position.Move{{Particle: position.Particle{Index: 1, Species: 0}, Destination: 3}}
	if err := f.PerformMove(move); err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	f.CancelMove()

	if f.Psi() != before {
		t.Fatalf("psi changed by cancelled move: %v vs %v", f.Psi().Value(), before.Value())
	}
	after := f.Positions().RVector(0)
	for i := range beforeSites {
		if after[i] != beforeSites[i] {
			t.Fatalf("positions changed by cancelled move: %v vs %v", after, beforeSites)
		}
	}
}

func TestFreeFermionSwapParticlesFlipsSign(t *testing.T) {
	l := chainLattice(t, 4)
	o := halfFilledOrbitals(t, l)
	r := position.New([][]int{{0, 2}}, 4)
	f, err := NewFreeFermion(r, o, detmat.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFreeFermion: %v", err)
	}
	before := f.Psi().Value()
	f.SwapParticles(0, 1, 0)
	if got := f.Psi().Value(); cmplx.Abs(got+before) > 1e-12 {
		t.Fatalf("swap did not negate psi: before=%v after=%v", before, got)
	}
	// the configuration is physically unchanged
	if f.Positions().At(position.Particle{Index: 0, Species: 0}) != 2 {
		t.Fatalf("swap moved a particle")
	}
}

func TestFreeFermionCloneIsIndependent(t *testing.T) {
	l := chainLattice(t, 6)
	o := halfFilledOrbitals(t, l)
	r := position.New([][]int{{0, 2, 4}}, 6)
	f, err := NewFreeFermion(r, o, detmat.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFreeFermion: %v", err)
	}
	c := f.Clone()
	move := position.Move{{Particle: position.Particle{Index: 0, Species: 0}, Destination: 1}}
	if err := c.PerformMove(move); err != nil {
		t.Fatalf("PerformMove on clone: %v", err)
	}
	c.FinishMove()
	if f.Positions().At(position.Particle{Index: 0, Species: 0}) != 0 {
		t.Fatalf("clone move leaked into original")
	}
	if c.Positions().At(position.Particle{Index: 0, Species: 0}) != 1 {
		t.Fatalf("clone move did not land")
	}
}

func TestHandleCopyOnWrite(t *testing.T) {
	l := chainLattice(t, 4)
	o := halfFilledOrbitals(t, l)
	r := position.New([][]int{{0, 2}}, 4)
	f, err := NewFreeFermion(r, o, detmat.DefaultOptions())
	if err != nil {
		t.Fatalf("NewFreeFermion: %v", err)
	}
	h1 := NewHandle(f)
	if !h1.Unique() {
		t.Fatalf("fresh handle is not unique")
	}
	h2 := h1.Share()
	if h1.Unique() || h2.Unique() {
		t.Fatalf("shared handles report unique")
	}
	amp := h2.MakeUnique()
	if amp == h1.Get().(*FreeFermion) {
		t.Fatalf("MakeUnique did not clone a shared amplitude")
	}
	if !h1.Unique() || !h2.Unique() {
		t.Fatalf("handles not unique after copy-on-write split")
	}
	// mutating through h2 must not affect h1
	move := position.Move{{Particle: position.Particle{Index: 0, Species: 0}, Destination: 1}}
	if err := amp.PerformMove(move); err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	amp.FinishMove()
	if h1.Get().Positions().At(position.Particle{Index: 0, Species: 0}) != 0 {
		t.Fatalf("copy-on-write leaked a mutation")
	}
}

func TestDBLPsiMatchesProductOfDeterminants(t *testing.T) {
	l := chainLattice(t, 4)
	o1 := halfFilledOrbitals(t, l)
	o2, err := NewFilledOrbitals([][]int{{0}, {3}}, l, []lattice.BoundaryCondition{lattice.Antiperiodic})
	if err != nil {
		t.Fatalf("orbitals: %v", err)
	}
	r := position.New([][]int{{0, 2}}, 4)
	d, err := NewDBL(r, o1, o2, 0.7, -0.4)
	if err != nil {
		t.Fatalf("NewDBL: %v", err)
	}
	want := cmplx.Pow(det2(o1, []int{0, 2}), 0.7) * cmplx.Pow(det2(o2, []int{0, 2}), -0.4)
	if got := d.Psi().Value(); cmplx.Abs(got-want) > 1e-10*cmplx.Abs(want) {
		t.Fatalf("dbl psi: got=%v want=%v", got, want)
	}

	move := position.Move{{Particle: position.Particle{Index: 1, Species: 0}, Destination: 3}}
	if err := d.PerformMove(move); err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	want = cmplx.Pow(det2(o1, []int{0, 3}), 0.7) * cmplx.Pow(det2(o2, []int{0, 3}), -0.4)
	if got := d.Psi().Value(); cmplx.Abs(got-want) > 1e-10*cmplx.Abs(want) {
		t.Fatalf("dbl psi after move: got=%v want=%v", got, want)
	}
	d.FinishMove()
}

func TestDMetalMoveRoutesToCorrectEngines(t *testing.T) {
	l := chainLattice(t, 8)
	dOrb := halfFilledOrbitals(t, l) // 4 orbitals for 4 particles total
	fUp, err := NewFilledOrbitals([][]int{{0}, {1}}, l, []lattice.BoundaryCondition{lattice.Antiperiodic})
	if err != nil {
		t.Fatalf("orbitals: %v", err)
	}
	fDown, err := NewFilledOrbitals([][]int{{0}, {7}}, l, []lattice.BoundaryCondition{lattice.Antiperiodic})
	if err != nil {
		t.Fatalf("orbitals: %v", err)
	}
	r := position.New([][]int{{0, 2}, {4, 6}}, 8)
	m, err := NewDMetal(r, dOrb, dOrb, fUp, fDown, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("NewDMetal: %v", err)
	}
	before := m.Psi()
	if before.IsZero() {
		t.Fatalf("initial dmetal psi is zero")
	}

	// move a down particle; psi changes, and cancel restores it
	move := position.Move{{Particle: position.Particle{Index: 0, Species: 1}, Destination: 5}}
	if err := m.PerformMove(move); err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	m.CancelMove()
	if m.Psi() != before {
		t.Fatalf("cancel did not restore dmetal psi")
	}

	if err := m.PerformMove(move); err != nil {
		t.Fatalf("PerformMove: %v", err)
	}
	m.FinishMove()
	fresh, err := NewDMetal(m.Positions().Clone(), dOrb, dOrb, fUp, fDown, 1, 1, 1, 1)
	if err != nil {
		t.Fatalf("NewDMetal fresh: %v", err)
	}
	got, want := m.Psi().Value(), fresh.Psi().Value()
	if cmplx.Abs(got-want) > 1e-9*cmplx.Abs(want) {
		t.Fatalf("dmetal psi after move: got=%v want=%v", got, want)
	}
}

func TestRVBSwapMatchesScratch(t *testing.T) {
	l := chainLattice(t, 6)
	phi := make([]complex128, 6)
	for i := range phi {
		phi[i] = complex(float64(i+1), float64(6-i)*0.3)
	}
	r := position.New([][]int{{0, 2, 4}, {1, 3, 5}}, 6)
	w, err := NewRVB(r, l, phi)
	if err != nil {
		t.Fatalf("NewRVB: %v", err)
	}
	rng := rand.New(rand.NewSource(17))
	for step := 0; step < 20; step++ {
		move := w.ProposeMove(rng)
		if len(move) == 0 {
			continue
		}
		if err := w.PerformMove(move); err != nil {
			t.Fatalf("step %d: PerformMove: %v", step, err)
		}
		if step%3 == 0 {
			w.CancelMove()
			continue
		}
		w.FinishMove()

		fresh, err := NewRVB(w.Positions().Clone(), l, phi)
		if err != nil {
			t.Fatalf("fresh RVB: %v", err)
		}
		got, want := w.Psi().Value(), fresh.Psi().Value()
		if want == 0 {
			if !w.Psi().IsZero() && cmplx.Abs(got) > 1e-8 {
				t.Fatalf("step %d: psi should be (near) zero, got %v", step, got)
			}
			continue
		}
		if cmplx.Abs(got-want) > 1e-8*cmplx.Abs(want) {
			t.Fatalf("step %d: rvb psi got=%v want=%v", step, got, want)
		}
	}
}

func TestRVBSwapParticlesFlipsSign(t *testing.T) {
	l := chainLattice(t, 4)
	phi := []complex128{1, 2i, -1, 0.5}
	r := position.New([][]int{{0, 2}, {1, 3}}, 4)
	w, err := NewRVB(r, l, phi)
	if err != nil {
		t.Fatalf("NewRVB: %v", err)
	}
	before := w.Psi().Value()
	w.SwapParticles(0, 1, 1)
	if got := w.Psi().Value(); cmplx.Abs(got+before) > 1e-12 {
		t.Fatalf("down swap did not negate psi: %v vs %v", got, before)
	}
}

func TestOrbitalTableValues(t *testing.T) {
	l := chainLattice(t, 4)
	o, err := NewFilledOrbitals([][]int{{1}}, l, []lattice.BoundaryCondition{lattice.Periodic})
	if err != nil {
		t.Fatalf("orbitals: %v", err)
	}
	// k = 1 on a 4-site chain with the periodic twist p = 1: the phase
	// advances by (k + p)/L = 1/2 turn per site, so values are (-1)^x
	want := []complex128{1, -1, 1, -1}
	for x := 0; x < 4; x++ {
		if got := o.At(0, x); cmplx.Abs(got-want[x]) > 1e-12 {
			t.Fatalf("orbital at %d: got=%v want=%v", x, got, want[x])
		}
	}
}
