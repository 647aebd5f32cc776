// Package measure implements the physical observables: the
// density-density correlator over the standard walk and the two Renyi
// entanglement estimators over the swap walks.
package measure

import (
	"vmc/internal/lattice"
	"vmc/internal/metropolis"
	"vmc/internal/position"
	"vmc/internal/walk"
)

// DensityDensity accumulates <n(0) n(r)> resolved by the basis index of
// the reference site: for every particle pair (i, j) it increments the
// bin of the wrapped relative site j - i under basis index of i.
type DensityDensity struct {
	lat *lattice.Lattice

	accum       [][]uint64 // basis x site
	denominator []uint64   // basis

	current            [][]uint64
	currentDenominator []uint64
}

// NewDensityDensity creates the measurement; sizes are fixed at
// Initialize time.
func NewDensityDensity() *DensityDensity {
	return &DensityDensity{}
}

// Initialize sizes the accumulators from the walk's lattice.
func (d *DensityDensity) Initialize(w metropolis.Walk) {
	sw, okWalk := w.(*walk.Standard)
	if !okWalk {
		panic("measure: density-density requires a standard walk")
	}
	d.lat = sw.Wavefunction().Lattice()
	basis := d.lat.BasisIndices
	total := d.lat.TotalSites()
	d.accum = makeCounts(basis, total)
	d.current = makeCounts(basis, total)
	d.denominator = make([]uint64, basis)
	d.currentDenominator = make([]uint64, basis)
}

func makeCounts(basis, sites int) [][]uint64 {
	out := make([][]uint64, basis)
	for i := range out {
		out[i] = make([]uint64, sites)
	}
	return out
}

// StepAdvanced recounts the pair correlations for the new configuration
// and folds them in.
func (d *DensityDensity) StepAdvanced(w metropolis.Walk) {
	sw := w.(*walk.Standard)
	r := sw.Wavefunction().Positions()

	for i := range d.current {
		for j := range d.current[i] {
			d.current[i][j] = 0
		}
	}
	for i := range d.currentDenominator {
		d.currentDenominator[i] = 0
	}

	for si := 0; si < r.NumSpecies(); si++ {
		for i := 0; i < r.NumFilled(si); i++ {
			siteI := d.lat.SiteFromIndex(r.At(position.Particle{Index: i, Species: si}))
			for sj := 0; sj < r.NumSpecies(); sj++ {
				for j := 0; j < r.NumFilled(sj); j++ {
					rel := d.lat.SiteFromIndex(r.At(position.Particle{Index: j, Species: sj}))
					d.lat.SubtractSiteVector(&rel, siteI.Bravais, nil)
					d.current[siteI.BasisIndex][d.lat.SiteToIndex(rel)]++
				}
			}
			d.currentDenominator[siteI.BasisIndex]++
		}
	}
	d.StepRepeated(w)
}

// StepRepeated re-adds the previous configuration's contribution.
func (d *DensityDensity) StepRepeated(metropolis.Walk) {
	for i := range d.accum {
		for j := range d.accum[i] {
			d.accum[i][j] += d.current[i][j]
		}
	}
	for i := range d.denominator {
		d.denominator[i] += d.currentDenominator[i]
	}
}

// Get returns the normalized correlator for one relative site and basis
// index.
func (d *DensityDensity) Get(siteIndex, basisIndex int) float64 {
	if d.denominator[basisIndex] == 0 {
		return 0
	}
	return float64(d.accum[basisIndex][siteIndex]) / float64(d.denominator[basisIndex])
}

// BasisIndices returns the number of basis rows.
func (d *DensityDensity) BasisIndices() int {
	return len(d.accum)
}

// NumSites returns the number of relative-site columns.
func (d *DensityDensity) NumSites() int {
	if len(d.accum) == 0 {
		return 0
	}
	return len(d.accum[0])
}

// Result returns the full correlator as a basis x site matrix.
func (d *DensityDensity) Result() [][]float64 {
	out := make([][]float64, d.BasisIndices())
	for b := range out {
		out[b] = make([]float64, d.NumSites())
		for s := range out[b] {
			out[b][s] = d.Get(s, b)
		}
	}
	return out
}
