// Package lattice implements an N-dimensional Bravais lattice with a
// basis, twisted boundary conditions, and the random-walk move proposer
// used by the Monte Carlo walks.
package lattice

import (
	"math/cmplx"
	"math/rand"

	"github.com/pkg/errors"

	"vmc/internal/position"
)

// Site is a lattice site: integer Bravais coordinates plus a basis
// index.
type Site struct {
	Bravais    []int
	BasisIndex int
}

// Clone returns an independent copy of the site.
func (s Site) Clone() Site {
	return Site{Bravais: append([]int(nil), s.Bravais...), BasisIndex: s.BasisIndex}
}

// Equal reports whether two sites coincide.
func (s Site) Equal(o Site) bool {
	if s.BasisIndex != o.BasisIndex || len(s.Bravais) != len(o.Bravais) {
		return false
	}
	for i := range s.Bravais {
		if s.Bravais[i] != o.Bravais[i] {
			return false
		}
	}
	return true
}

type moveAxis struct {
	bravais    []int
	basisIndex int
}

// Lattice is a finite periodic lattice of Length[0] x ... x Length[D-1]
// Bravais cells with BasisIndices sites per cell. Site indices use
// mixed-radix packing with the Bravais coordinates least significant.
type Lattice struct {
	Length       []int
	BasisIndices int

	totalSites  int
	offset      []int
	basisOffset int
	moveAxes    []moveAxis
}

// New constructs a lattice. Every length must be positive.
func New(length []int, basisIndices int) (*Lattice, error) {
	if len(length) == 0 {
		return nil, errors.New("lattice: no dimensions given")
	}
	if basisIndices <= 0 {
		return nil, errors.New("lattice: basis index count must be positive")
	}
	l := &Lattice{
		Length:       append([]int(nil), length...),
		BasisIndices: basisIndices,
		offset:       make([]int, len(length)),
	}
	c := 1
	for i, n := range length {
		if n <= 0 {
			return nil, errors.Errorf("lattice: length[%d] = %d must be positive", i, n)
		}
		l.offset[i] = c
		c *= n
	}
	l.basisOffset = c
	l.totalSites = c * basisIndices

	// default move axes: one unit step per dimension, plus a basis hop
	// when the basis is nontrivial
	for i := range length {
		axis := moveAxis{bravais: make([]int, len(length))}
		axis.bravais[i] = 1
		l.moveAxes = append(l.moveAxes, axis)
	}
	if basisIndices > 1 {
		l.moveAxes = append(l.moveAxes, moveAxis{bravais: make([]int, len(length)), basisIndex: 1})
	}
	return l, nil
}

// Dimensions returns the number of Bravais dimensions.
func (l *Lattice) Dimensions() int {
	return len(l.Length)
}

// TotalSites returns the number of sites, including the basis.
func (l *Lattice) TotalSites() int {
	return l.totalSites
}

// SiteFromIndex unpacks a site index.
func (l *Lattice) SiteFromIndex(n int) Site {
	if n < 0 || n >= l.totalSites {
		panic("lattice: site index out of range")
	}
	s := Site{Bravais: make([]int, len(l.Length))}
	for i, length := range l.Length {
		s.Bravais[i] = n % length
		n /= length
	}
	s.BasisIndex = n
	return s
}

// SiteToIndex packs a site into its index.
func (l *Lattice) SiteToIndex(s Site) int {
	if !l.SiteIsValid(s) {
		panic("lattice: site out of range")
	}
	n := 0
	for i := range l.Length {
		n += s.Bravais[i] * l.offset[i]
	}
	return n + s.BasisIndex*l.basisOffset
}

// SiteIsValid reports whether the site lies within the lattice.
func (l *Lattice) SiteIsValid(s Site) bool {
	if len(s.Bravais) != len(l.Length) {
		return false
	}
	for i := range l.Length {
		if s.Bravais[i] < 0 || s.Bravais[i] >= l.Length[i] {
			return false
		}
	}
	return s.BasisIndex >= 0 && s.BasisIndex < l.BasisIndices
}

// EnforceBoundary wraps each Bravais coordinate into [0, Length[d]) by
// repeated shifts, accumulating the boundary phase per wrap: a positive
// wrap multiplies by the dimension's phase, a negative wrap divides (for
// unit-magnitude phases, division is conjugation; for open boundary
// conditions the accumulated phase is zero). The basis index is reduced
// modulo the basis size. Pass nil boundary conditions to wrap without
// tracking a phase.
func (l *Lattice) EnforceBoundary(s *Site, bcs []BoundaryCondition) complex128 {
	phaseChange := complex128(1)
	for d, length := range l.Length {
		for s.Bravais[d] >= length {
			s.Bravais[d] -= length
			if bcs != nil {
				phaseChange *= bcs[d].Phase()
			}
		}
		for s.Bravais[d] < 0 {
			s.Bravais[d] += length
			if bcs != nil {
				phaseChange *= inversePhase(bcs[d].Phase())
			}
		}
	}
	for s.BasisIndex < 0 {
		s.BasisIndex += l.BasisIndices
	}
	s.BasisIndex %= l.BasisIndices

	return phaseChange
}

func inversePhase(p complex128) complex128 {
	if p == 0 {
		return 0
	}
	return cmplx.Conj(p) / complex(real(p)*real(p)+imag(p)*imag(p), 0)
}

// AddSiteVector adds a Bravais vector to the site in place and wraps,
// returning the accumulated boundary phase.
func (l *Lattice) AddSiteVector(s *Site, bravais []int, bcs []BoundaryCondition) complex128 {
	for i := range bravais {
		s.Bravais[i] += bravais[i]
	}
	return l.EnforceBoundary(s, bcs)
}

// SubtractSiteVector subtracts a Bravais vector from the site in place
// and wraps, returning the accumulated boundary phase.
func (l *Lattice) SubtractSiteVector(s *Site, bravais []int, bcs []BoundaryCondition) complex128 {
	for i := range bravais {
		s.Bravais[i] -= bravais[i]
	}
	return l.EnforceBoundary(s, bcs)
}

// MoveAxesCount returns the number of configured move axes.
func (l *Lattice) MoveAxesCount() int {
	return len(l.moveAxes)
}

// MoveSite steps the site one unit along a move axis in the given
// direction (+1 or -1) and wraps it back into the lattice.
func (l *Lattice) MoveSite(s *Site, axis, direction int) {
	if direction != 1 && direction != -1 {
		panic("lattice: step direction must be +1 or -1")
	}
	m := l.moveAxes[axis]
	for i := range m.bravais {
		s.Bravais[i] += direction * m.bravais[i]
	}
	s.BasisIndex += direction * m.basisIndex
	l.EnforceBoundary(s, nil)
}

// PlanParticleMoveToNearbyEmptySite walks one step at a time along a
// random axis and direction, starting from the particle's site, until it
// lands on either a site empty for the particle's species or the
// particle's own origin. Returning the origin means the proposed move is
// a no-op, which callers reject with probability zero.
func (l *Lattice) PlanParticleMoveToNearbyEmptySite(p position.Particle, r *position.Arguments, rng *rand.Rand) int {
	axis := 0
	if len(l.moveAxes) > 1 {
		axis = rng.Intn(len(l.moveAxes))
	}
	direction := rng.Intn(2)*2 - 1

	origin := r.At(p)
	site := l.SiteFromIndex(origin)
	for {
		l.MoveSite(&site, axis, direction)
		idx := l.SiteToIndex(site)
		if idx == origin || !r.IsOccupied(idx, p.Species) {
			return idx
		}
	}
}
