// Package metropolis drives a Markov chain: it composes a walk, which
// proposes and applies transitions, with a set of measurements, and
// enforces the step/measurement ordering across accept, reject, and
// repeat outcomes.
package metropolis

import (
	"fmt"
	"math"
	"math/rand"
)

// Walk proposes random transitions. After each
// ComputeProbabilityRatioOfRandomTransition call exactly one of
// AcceptTransition or RejectTransition must follow.
type Walk interface {
	ComputeProbabilityRatioOfRandomTransition(rng *rand.Rand) float64
	AcceptTransition()
	RejectTransition()
}

// Measurement observes the walk after each step. StepAdvanced is called
// when the walk has moved to a new state (or when no state has been
// observed yet); StepRepeated when the previous state repeats.
type Measurement interface {
	Initialize(w Walk)
	StepAdvanced(w Walk)
	StepRepeated(w Walk)
}

// InvalidProbabilityError reports a negative or NaN probability ratio.
// It is fatal: the walk has been restored to a consistent rejected
// state, but the chain must not continue.
type InvalidProbabilityError struct {
	Ratio float64
}

func (e *InvalidProbabilityError) Error() string {
	return fmt.Sprintf("invalid probability ratio: %v", e.Ratio)
}

// Simulation is a single-threaded Metropolis simulation.
type Simulation struct {
	walk         Walk
	measurements []Measurement
	rng          *rand.Rand

	steps              int
	stepsAccepted      int
	stepsFullyRejected int

	measurementNotYetUpdated bool
}

// New runs the initialization sweeps (with no measurements) and then
// initializes each measurement against the equilibrated walk.
func New(walk Walk, measurements []Measurement, initializationSweeps int, rng *rand.Rand) (*Simulation, error) {
	s := &Simulation{
		walk:                     walk,
		measurements:             measurements,
		rng:                      rng,
		measurementNotYetUpdated: true,
	}
	for i := 0; i < initializationSweeps; i++ {
		if _, err := s.performSingleStep(); err != nil {
			return nil, err
		}
	}
	for _, m := range s.measurements {
		m.Initialize(s.walk)
	}
	return s, nil
}

// Iterate performs n steps, routing each outcome to the measurements.
func (s *Simulation) Iterate(n int) error {
	for i := 0; i < n; i++ {
		accepted, err := s.performSingleStep()
		if err != nil {
			return err
		}
		if accepted || s.measurementNotYetUpdated {
			for _, m := range s.measurements {
				m.StepAdvanced(s.walk)
			}
			s.measurementNotYetUpdated = false
		} else {
			for _, m := range s.measurements {
				m.StepRepeated(s.walk)
			}
		}
	}
	return nil
}

func (s *Simulation) performSingleStep() (bool, error) {
	ratio := s.walk.ComputeProbabilityRatioOfRandomTransition(s.rng)

	// phrased so that NaN also fails the test
	if !(ratio >= 0) || math.IsNaN(ratio) {
		// restore a consistent state before bailing out
		s.walk.RejectTransition()
		return false, &InvalidProbabilityError{Ratio: ratio}
	}

	s.steps++
	if ratio >= 1 || (ratio > 0 && ratio > s.rng.Float64()) {
		s.walk.AcceptTransition()
		s.stepsAccepted++
		return true, nil
	}
	s.walk.RejectTransition()
	if ratio == 0 {
		s.stepsFullyRejected++
	}
	return false, nil
}

// Steps returns how many steps have completed.
func (s *Simulation) Steps() int {
	return s.steps
}

// StepsAccepted returns how many steps were accepted.
func (s *Simulation) StepsAccepted() int {
	return s.stepsAccepted
}

// StepsFullyRejected returns how many steps were rejected with zero
// probability.
func (s *Simulation) StepsFullyRejected() int {
	return s.stepsFullyRejected
}

// AcceptanceRatio returns the fraction of accepted steps.
func (s *Simulation) AcceptanceRatio() float64 {
	if s.steps == 0 {
		return 0
	}
	return float64(s.stepsAccepted) / float64(s.steps)
}
