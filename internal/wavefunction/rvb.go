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

// RVB is a resonating-valence-bond spin wave function: a single M x M
// determinant whose (i, j) entry is phi(r_up_i - r_down_j) for a
// translation-invariant pair function phi indexed by lattice site. Every
// site holds exactly one spinon, so the only allowed move is swapping an
// up particle with a down particle; that swap replaces one row and one
// column of the matrix.
type RVB struct {
	r   *position.Arguments
	lat *lattice.Lattice
	phi []complex128

	engine *detmat.Engine

	moveInProgress bool
	lastMove       position.Move
	oldSites       []int
}

// NewRVB builds the amplitude. Both species must be at half filling and
// together cover every lattice site; phi must have one entry per site.
func NewRVB(r *position.Arguments, lat *lattice.Lattice, phi []complex128) (*RVB, error) {
	if r.NumSpecies() != 2 {
		return nil, errors.Errorf("rvb: expected 2 species, got %d", r.NumSpecies())
	}
	if 2*r.NumFilled(0) != lat.TotalSites() || 2*r.NumFilled(1) != lat.TotalSites() {
		return nil, errors.New("rvb: both species must be at half filling")
	}
	if len(phi) != lat.TotalSites() {
		return nil, errors.New("rvb: pair function must have one entry per site")
	}
	w := &RVB{r: r, lat: lat, phi: append([]complex128(nil), phi...)}
	w.reinitialize()
	return w, nil
}

// pairValue evaluates phi at the wrapped difference of an up and a down
// site.
func (w *RVB) pairValue(upSite, downSite int) complex128 {
	diff := w.lat.SiteFromIndex(upSite)
	down := w.lat.SiteFromIndex(downSite)
	w.lat.SubtractSiteVector(&diff, down.Bravais, nil)
	return w.phi[w.lat.SiteToIndex(diff)]
}

func (w *RVB) reinitialize() {
	m := w.r.NumFilled(0)
	mphi := mat.NewCDense(m, m, nil)
	up := w.r.RVector(0)
	down := w.r.RVector(1)
	for i := 0; i < m; i++ {
		for j := 0; j < m; j++ {
			mphi.Set(i, j, w.pairValue(up[i], down[j]))
		}
	}
	w.engine = detmat.New(mphi, detmat.DefaultOptions())
}

// PerformMove applies an up/down swap, staging the moved up particle's
// row and the moved down particle's column as one simultaneous update.
// Both are evaluated on the post-move positions, so the crossing entry
// is consistent.
func (w *RVB) PerformMove(move position.Move) error {
	if w.moveInProgress {
		panic("wavefunction: move already in progress")
	}
	if len(move) != 2 || move[0].Particle.Species == move[1].Particle.Species {
		panic("rvb: moves must swap one up particle with one down particle")
	}
	if w.r.At(move[0].Particle) != move[1].Destination || w.r.At(move[1].Particle) != move[0].Destination {
		panic("rvb: moves must exchange the two particles' sites")
	}

	old := recordOrigins(w.r, move)
	if err := w.r.ApplyMove(move); err != nil {
		return err
	}
	w.lastMove = move
	w.oldSites = old

	upEntry := move[0]
	downEntry := move[1]
	if upEntry.Particle.Species != 0 {
		upEntry, downEntry = downEntry, upEntry
	}

	m := w.r.NumFilled(0)
	src := mat.NewCDense(m, m, nil)
	up := w.r.RVector(0)
	down := w.r.RVector(1)
	row := upEntry.Particle.Index
	col := downEntry.Particle.Index
	for j := 0; j < m; j++ {
		src.Set(row, j, w.pairValue(up[row], down[j]))
	}
	for i := 0; i < m; i++ {
		src.Set(i, col, w.pairValue(up[i], down[col]))
	}
	w.engine.UpdateRowsAndColumns([]int{row}, []int{col}, src)
	w.moveInProgress = true
	return nil
}

// Psi returns the amplitude, tentative during a move.
func (w *RVB) Psi() bignum.Big {
	return w.engine.Determinant()
}

// FinishMove commits the pending swap.
func (w *RVB) FinishMove() {
	if !w.moveInProgress {
		panic("wavefunction: no move to finish")
	}
	w.engine.FinishRowsAndColumnsUpdate()
	w.moveInProgress = false
}

// CancelMove rolls back the pending swap.
func (w *RVB) CancelMove() {
	if !w.moveInProgress {
		panic("wavefunction: no move to cancel")
	}
	w.engine.CancelRowsAndColumnsUpdate()
	if err := w.r.ApplyMove(reverseMove(w.lastMove, w.oldSites)); err != nil {
		panic(errors.Wrap(err, "wavefunction: reverse move failed"))
	}
	w.moveInProgress = false
}

// SwapParticles relabels two particles of one species: rows for up,
// columns for down.
func (w *RVB) SwapParticles(i, j, species int) {
	w.r.SwapParticles(i, j, species)
	if species == 0 {
		w.engine.SwapRows(i, j)
	} else {
		w.engine.SwapColumns(i, j)
	}
}

// Reset replaces the configuration and rebuilds the engine.
func (w *RVB) Reset(r *position.Arguments) {
	w.r = r
	w.reinitialize()
}

// Clone deep-copies the amplitude; the pair function table stays shared.
func (w *RVB) Clone() Amplitude {
	if w.moveInProgress {
		panic("wavefunction: clone with move in progress")
	}
	return &RVB{
		r:      w.r.Clone(),
		lat:    w.lat,
		phi:    w.phi,
		engine: w.engine.Clone(),
	}
}

// ProposeMove picks a random particle, walks it to a nearby site, and
// swaps it with the opposite-species particle found there. Every site is
// singly occupied, so the walk terminates at the particle's own origin
// and the proposal is empty whenever no swap is available.
func (w *RVB) ProposeMove(rng *rand.Rand) position.Move {
	p := w.r.RandomParticle(rng)
	site := w.lat.PlanParticleMoveToNearbyEmptySite(p, w.r, rng)
	if site == w.r.At(p) {
		return nil
	}
	other := p.Species ^ 1
	otherIndex := w.r.ParticleIndexAt(site, other)
	if otherIndex < 0 {
		// the target site holds no opposite spinon; a swap move is not
		// possible from here
		return nil
	}
	return position.Move{
		{Particle: p, Destination: site},
		{Particle: position.Particle{Index: otherIndex, Species: other}, Destination: w.r.At(p)},
	}
}

// Positions returns the configuration.
func (w *RVB) Positions() *position.Arguments {
	return w.r
}

// Lattice returns the underlying lattice.
func (w *RVB) Lattice() *lattice.Lattice {
	return w.lat
}
