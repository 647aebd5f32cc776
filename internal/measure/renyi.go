package measure

import (
	"math"
	"math/cmplx"

	"vmc/internal/estimate"
	"vmc/internal/metropolis"
	"vmc/internal/walk"
)

// RenyiMod estimates the modulus part of the swap expectation value.
// Its walk samples weight |phialpha1 phialpha2 phibeta1 phibeta2|, under
// which the mean of |phialpha1 phialpha2 / (phibeta1 phibeta2)| is the
// reciprocal of <|SWAP|>.
type RenyiMod struct {
	estimate  estimate.Binned[float64]
	lastValue float64
}

// NewRenyiMod creates the measurement.
func NewRenyiMod() *RenyiMod {
	return &RenyiMod{}
}

// Initialize checks the walk type.
func (m *RenyiMod) Initialize(w metropolis.Walk) {
	if _, okWalk := w.(*walk.RenyiMod); !okWalk {
		panic("measure: renyi-mod requires a renyi-mod walk")
	}
}

// StepAdvanced samples the amplitude ratio for the new configuration.
func (m *RenyiMod) StepAdvanced(w metropolis.Walk) {
	rw := w.(*walk.RenyiMod)
	logRatio := rw.Phialpha1().Psi().LogAbs() + rw.Phialpha2().Psi().LogAbs() -
		rw.Phibeta1().Psi().LogAbs() - rw.Phibeta2().Psi().LogAbs()
	m.lastValue = math.Exp(logRatio)
	m.estimate.AddValue(m.lastValue)
}

// StepRepeated re-adds the previous sample.
func (m *RenyiMod) StepRepeated(metropolis.Walk) {
	m.estimate.AddValue(m.lastValue)
}

// Get returns the current estimate of <|SWAP|>.
func (m *RenyiMod) Get() float64 {
	return 1 / m.estimate.CumulativeResult()
}

// Estimate exposes the binned accumulator for error analysis.
func (m *RenyiMod) Estimate() *estimate.Binned[float64] {
	return &m.estimate
}

// RenyiSign estimates the phase part of the swap expectation value: the
// mean of s/|s| with s = phibeta1 phibeta2 / (phialpha1 phialpha2). The
// imaginary part must average to zero; reporting it is a sanity check.
type RenyiSign struct {
	estimate  estimate.Running[complex128]
	lastValue complex128
}

// NewRenyiSign creates the measurement.
func NewRenyiSign() *RenyiSign {
	return &RenyiSign{}
}

// Initialize checks the walk type.
func (m *RenyiSign) Initialize(w metropolis.Walk) {
	if _, okWalk := w.(*walk.RenyiSign); !okWalk {
		panic("measure: renyi-sign requires a renyi-sign walk")
	}
}

// StepAdvanced samples the swap phase for the new configuration.
func (m *RenyiSign) StepAdvanced(w metropolis.Walk) {
	rw := w.(*walk.RenyiSign)
	beta := rw.Phibeta1().Psi().MulBig(rw.Phibeta2().Psi())
	alpha := rw.Phialpha1().Psi().MulBig(rw.Phialpha2().Psi())
	m.lastValue = beta.UnitPhase() * cmplx.Conj(alpha.UnitPhase())
	m.estimate.AddValue(m.lastValue)
}

// StepRepeated re-adds the previous sample.
func (m *RenyiSign) StepRepeated(metropolis.Walk) {
	m.estimate.AddValue(m.lastValue)
}

// Get returns the mean phase.
func (m *RenyiSign) Get() complex128 {
	return m.estimate.CumulativeResult()
}
