package wavefunction

// Handle is a shared-ownership reference to an Amplitude with
// copy-on-write semantics: amplitudes are shared immutably by default
// and cloned on first write. All handles sharing one amplitude also
// share a reference count, so uniqueness probes are O(1).
type Handle struct {
	amp  Amplitude
	refs *int
}

// NewHandle wraps an amplitude in a fresh, unique handle.
func NewHandle(a Amplitude) *Handle {
	refs := 1
	return &Handle{amp: a, refs: &refs}
}

// Share returns a new handle to the same amplitude, bumping the shared
// reference count.
func (h *Handle) Share() *Handle {
	*h.refs++
	return &Handle{amp: h.amp, refs: h.refs}
}

// Get returns the amplitude for read-only use.
func (h *Handle) Get() Amplitude {
	return h.amp
}

// Unique reports whether this handle is the only reference.
func (h *Handle) Unique() bool {
	return *h.refs == 1
}

// MakeUnique returns an amplitude safe to mutate: the shared one when
// this is the only reference, otherwise a fresh clone that this handle
// detaches onto.
func (h *Handle) MakeUnique() Amplitude {
	if *h.refs > 1 {
		*h.refs--
		refs := 1
		h.amp = h.amp.Clone()
		h.refs = &refs
	}
	return h.amp
}

// Replace detaches the handle from its current amplitude and points it
// at a new one.
func (h *Handle) Replace(a Amplitude) {
	*h.refs--
	refs := 1
	h.amp = a
	h.refs = &refs
}
