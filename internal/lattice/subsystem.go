package lattice

// Subsystem is a geometric region of the lattice, used to decide which
// particles take part in the replica swap.
type Subsystem interface {
	// SiteIsWithin reports whether a site index lies inside the region.
	SiteIsWithin(siteIndex int, l *Lattice) bool
	// LatticeMakesSense reports whether the region is compatible with a
	// lattice.
	LatticeMakesSense(l *Lattice) bool
}

// SimpleSubsystem is a parallelepiped aligned with the lattice's
// primitive vectors and anchored at the origin. All basis indices of a
// cell inside the box belong to the region.
type SimpleSubsystem struct {
	Length []int
}

// NewSimpleSubsystem builds a box region with the given side lengths,
// one per lattice dimension.
func NewSimpleSubsystem(length []int) SimpleSubsystem {
	return SimpleSubsystem{Length: append([]int(nil), length...)}
}

// LatticeMakesSense requires matching dimensionality and a box no larger
// than the lattice.
func (s SimpleSubsystem) LatticeMakesSense(l *Lattice) bool {
	if len(s.Length) != l.Dimensions() {
		return false
	}
	for d, n := range s.Length {
		if n < 0 || n > l.Length[d] {
			return false
		}
	}
	return true
}

// SiteIsWithin reports whether the site's Bravais coordinates all fall
// inside the box.
func (s SimpleSubsystem) SiteIsWithin(siteIndex int, l *Lattice) bool {
	site := l.SiteFromIndex(siteIndex)
	for d := range s.Length {
		if site.Bravais[d] >= s.Length[d] {
			return false
		}
	}
	return true
}
