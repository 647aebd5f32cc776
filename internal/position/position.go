// Package position tracks the site occupied by every particle of every
// species, together with the reverse site->particle index.
package position

import (
	"math/rand"

	"github.com/pkg/errors"
)

// Particle identifies one particle: its index within a species's filled
// list and the species itself.
type Particle struct {
	Index   int
	Species int
}

// SingleParticleMove sends one particle to a destination site index.
type SingleParticleMove struct {
	Particle    Particle
	Destination int
}

// Move is a set of single-particle moves applied atomically. Within one
// move no two entries may touch the same particle, and the destinations
// must be jointly consistent (no double occupancy after the move).
type Move []SingleParticleMove

// Validate checks the per-move constraints that do not depend on the
// current configuration.
func (m Move) Validate() error {
	for i := range m {
		for j := 0; j < i; j++ {
			if m[i].Particle == m[j].Particle {
				return errors.Errorf("move touches particle %v twice", m[i].Particle)
			}
			if m[i].Particle.Species == m[j].Particle.Species && m[i].Destination == m[j].Destination {
				return errors.Errorf("move sends two %d-species particles to site %d", m[i].Particle.Species, m[i].Destination)
			}
		}
	}
	return nil
}

// ErrInvalidMove is returned when a move would place two particles of the
// same species on one site.
var ErrInvalidMove = errors.New("invalid move: site already occupied by same species")

// Arguments is the particle configuration: per species, an ordered list
// of occupied site indices plus the reverse occupancy map.
type Arguments struct {
	r           [][]int // species -> particle index -> site
	occupancy   [][]int // species -> site -> particle index, or -1
	totalSites  int
	totalFilled int
}

// New constructs the configuration from per-species position lists. It
// panics if a position is out of range or doubly occupied, which is a
// caller bug.
func New(r [][]int, totalSites int) *Arguments {
	a := &Arguments{totalSites: totalSites}
	a.resetFrom(r)
	return a
}

func (a *Arguments) resetFrom(r [][]int) {
	a.r = make([][]int, len(r))
	a.occupancy = make([][]int, len(r))
	a.totalFilled = 0
	for s := range r {
		a.r[s] = append([]int(nil), r[s]...)
		a.occupancy[s] = make([]int, a.totalSites)
		for i := range a.occupancy[s] {
			a.occupancy[s][i] = -1
		}
		for i, site := range r[s] {
			if site < 0 || site >= a.totalSites {
				panic("position: site index out of range")
			}
			if a.occupancy[s][site] != -1 {
				panic("position: two same-species particles on one site")
			}
			a.occupancy[s][site] = i
		}
		a.totalFilled += len(r[s])
	}
	if a.totalFilled > a.totalSites {
		panic("position: more particles than sites")
	}
}

// Reset replaces the whole configuration. Per-species fillings must not
// change over the life of a simulation.
func (a *Arguments) Reset(r [][]int) {
	if len(r) != len(a.r) {
		panic("position: species count changed on reset")
	}
	for s := range r {
		if len(r[s]) != len(a.r[s]) {
			panic("position: filling changed on reset")
		}
	}
	a.resetFrom(r)
}

// Clone returns an independent deep copy.
func (a *Arguments) Clone() *Arguments {
	c := &Arguments{
		r:           make([][]int, len(a.r)),
		occupancy:   make([][]int, len(a.occupancy)),
		totalSites:  a.totalSites,
		totalFilled: a.totalFilled,
	}
	for s := range a.r {
		c.r[s] = append([]int(nil), a.r[s]...)
		c.occupancy[s] = append([]int(nil), a.occupancy[s]...)
	}
	return c
}

// NumSpecies returns the number of particle species.
func (a *Arguments) NumSpecies() int {
	return len(a.r)
}

// NumFilled returns the number of particles of one species.
func (a *Arguments) NumFilled(species int) int {
	return len(a.r[species])
}

// NumFilledTotal returns the particle count across all species.
func (a *Arguments) NumFilledTotal() int {
	return a.totalFilled
}

// NumSites returns the number of lattice sites.
func (a *Arguments) NumSites() int {
	return a.totalSites
}

// ParticleIsValid reports whether p refers to an existing particle.
func (a *Arguments) ParticleIsValid(p Particle) bool {
	return p.Species >= 0 && p.Species < len(a.r) && p.Index >= 0 && p.Index < len(a.r[p.Species])
}

// At returns the site occupied by a particle.
func (a *Arguments) At(p Particle) int {
	return a.r[p.Species][p.Index]
}

// IsOccupied reports whether a site holds a particle of the given
// species.
func (a *Arguments) IsOccupied(site, species int) bool {
	return a.occupancy[species][site] != -1
}

// ParticleIndexAt returns the index of the particle of the given species
// at a site, or -1 when the site is empty for that species.
func (a *Arguments) ParticleIndexAt(site, species int) int {
	return a.occupancy[species][site]
}

// RVector returns a copy of one species's ordered position list.
func (a *Arguments) RVector(species int) []int {
	return append([]int(nil), a.r[species]...)
}

// UpdatePosition moves a single particle. It fails with ErrInvalidMove
// when another particle of the same species already occupies the
// destination.
func (a *Arguments) UpdatePosition(p Particle, site int) error {
	if !a.ParticleIsValid(p) {
		panic("position: invalid particle")
	}
	if site < 0 || site >= a.totalSites {
		panic("position: site index out of range")
	}
	if other := a.occupancy[p.Species][site]; other != -1 && other != p.Index {
		return errors.Wrapf(ErrInvalidMove, "species %d site %d", p.Species, site)
	}
	a.occupancy[p.Species][a.r[p.Species][p.Index]] = -1
	a.r[p.Species][p.Index] = site
	a.occupancy[p.Species][site] = p.Index
	return nil
}

// ApplyMove applies a multi-particle move in two phases so that
// particles may exchange sites within one move.
func (a *Arguments) ApplyMove(m Move) error {
	if err := m.Validate(); err != nil {
		return err
	}
	moving := make(map[Particle]bool, len(m))
	for _, sp := range m {
		if !a.ParticleIsValid(sp.Particle) {
			panic("position: invalid particle in move")
		}
		moving[sp.Particle] = true
	}
	for _, sp := range m {
		s := sp.Particle.Species
		if idx := a.occupancy[s][sp.Destination]; idx != -1 && !moving[Particle{Index: idx, Species: s}] {
			return errors.Wrapf(ErrInvalidMove, "species %d site %d", s, sp.Destination)
		}
	}
	for _, sp := range m {
		s := sp.Particle.Species
		a.occupancy[s][a.r[s][sp.Particle.Index]] = -1
	}
	for _, sp := range m {
		s := sp.Particle.Species
		a.r[s][sp.Particle.Index] = sp.Destination
		a.occupancy[s][sp.Destination] = sp.Particle.Index
	}
	return nil
}

// SwapParticles exchanges the labels of two particles of one species.
// The physical configuration is unchanged.
func (a *Arguments) SwapParticles(i, j, species int) {
	ri, rj := a.r[species][i], a.r[species][j]
	a.r[species][i], a.r[species][j] = rj, ri
	a.occupancy[species][ri] = j
	a.occupancy[species][rj] = i
}

// RandomParticle picks a particle uniformly over all filled particles of
// all species.
func (a *Arguments) RandomParticle(rng *rand.Rand) Particle {
	n := rng.Intn(a.totalFilled)
	for s := range a.r {
		if n < len(a.r[s]) {
			return Particle{Index: n, Species: s}
		}
		n -= len(a.r[s])
	}
	panic("position: filled counts out of sync")
}
