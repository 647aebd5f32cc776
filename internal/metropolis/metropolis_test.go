package metropolis

import (
	"math"
	"math/rand"
	"testing"
)

// toyWalk always proposes a transition with a fixed probability ratio.
type toyWalk struct {
	ratio      float64
	inProgress bool
	accepted   int
	rejected   int
}

func (w *toyWalk) ComputeProbabilityRatioOfRandomTransition(*rand.Rand) float64 {
	if w.inProgress {
		panic("toy walk: transition already in progress")
	}
	w.inProgress = true
	return w.ratio
}

func (w *toyWalk) AcceptTransition() {
	if !w.inProgress {
		panic("toy walk: nothing to accept")
	}
	w.inProgress = false
	w.accepted++
}

func (w *toyWalk) RejectTransition() {
	if !w.inProgress {
		panic("toy walk: nothing to reject")
	}
	w.inProgress = false
	w.rejected++
}

type countingMeasurement struct {
	initialized int
	advanced    int
	repeated    int
}

func (m *countingMeasurement) Initialize(Walk)   { m.initialized++ }
func (m *countingMeasurement) StepAdvanced(Walk) { m.advanced++ }
func (m *countingMeasurement) StepRepeated(Walk) { m.repeated++ }

func TestAcceptanceRateConvergesToMinOneRatio(t *testing.T) {
	for _, ratio := range []float64{0.25, 0.7, 1.5} {
		walk := &toyWalk{ratio: ratio}
		sim, err := New(walk, nil, 0, rand.New(rand.NewSource(42)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		n := 1_000_000
		if err := sim.Iterate(n); err != nil {
			t.Fatalf("Iterate: %v", err)
		}
		want := math.Min(1, ratio)
		got := sim.AcceptanceRatio()
		if math.Abs(got-want) > 3/math.Sqrt(float64(n)) {
			t.Fatalf("ratio %v: acceptance got=%v want=%v", ratio, got, want)
		}
	}
}

func TestMeasurementOrdering(t *testing.T) {
	walk := &toyWalk{ratio: 0}
	m := &countingMeasurement{}
	sim, err := New(walk, []Measurement{m}, 3, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.initialized != 1 {
		t.Fatalf("initialize calls: got=%d want=1", m.initialized)
	}
	if m.advanced != 0 || m.repeated != 0 {
		t.Fatalf("measurements observed initialization sweeps")
	}

	// every step is fully rejected, but the very first post-init step
	// must still advance the measurement once
	if err := sim.Iterate(5); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if m.advanced != 1 {
		t.Fatalf("advanced calls: got=%d want=1", m.advanced)
	}
	if m.repeated != 4 {
		t.Fatalf("repeated calls: got=%d want=4", m.repeated)
	}
	if sim.StepsFullyRejected() != 8 {
		t.Fatalf("fully rejected: got=%d want=8", sim.StepsFullyRejected())
	}
}

func TestEveryStepPairsComputeWithAcceptOrReject(t *testing.T) {
	walk := &toyWalk{ratio: 0.5}
	sim, err := New(walk, nil, 10, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sim.Iterate(100); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	if walk.accepted+walk.rejected != 110 {
		t.Fatalf("unbalanced transitions: %d accepted, %d rejected", walk.accepted, walk.rejected)
	}
	if walk.accepted != sim.StepsAccepted() {
		t.Fatalf("accept bookkeeping: walk=%d sim=%d", walk.accepted, sim.StepsAccepted())
	}
}

func TestInvalidProbabilityIsFatalButConsistent(t *testing.T) {
	for _, bad := range []float64{-0.5, math.NaN()} {
		walk := &toyWalk{ratio: bad}
		sim, err := New(walk, nil, 0, rand.New(rand.NewSource(3)))
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		err = sim.Iterate(1)
		if err == nil {
			t.Fatalf("ratio %v accepted", bad)
		}
		if _, isInvalid := err.(*InvalidProbabilityError); !isInvalid {
			t.Fatalf("unexpected error type: %T", err)
		}
		// the walk was restored by a reject, so another step is well
		// formed from its point of view
		if walk.rejected != 1 {
			t.Fatalf("walk not restored: %d rejects", walk.rejected)
		}
	}
}
