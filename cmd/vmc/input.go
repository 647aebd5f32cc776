package main

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// jsonLine renders one output value as a compact single line.
func jsonLine(v any) (string, error) {
	data, err := json.Marshal(v)
	return string(data), err
}

// simulationInput is the JSON system definition read from stdin.
type simulationInput struct {
	RNG    *rngInput    `json:"rng"`
	System *systemInput `json:"system"`
}

type rngInput struct {
	Seed *int64 `json:"seed"`
}

type systemInput struct {
	Lattice      *latticeInput      `json:"lattice"`
	Wavefunction *wavefunctionInput `json:"wavefunction"`
}

type latticeInput struct {
	Size []int `json:"size"`
}

type wavefunctionInput struct {
	Type     string         `json:"type"`
	Orbitals *orbitalsInput `json:"orbitals"`
}

type orbitalsInput struct {
	Filling            [][]int `json:"filling"`
	BoundaryConditions []int   `json:"boundary-conditions"`
}

// parseInput decodes and validates the driver input. Unknown keys,
// missing required keys, and malformed values are all errors.
func parseInput(r io.Reader) (*simulationInput, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var in simulationInput
	if err := dec.Decode(&in); err != nil {
		return nil, errors.Wrap(err, "json input")
	}
	if err := validateInput(&in); err != nil {
		return nil, err
	}
	return &in, nil
}

func validateInput(in *simulationInput) error {
	if in.RNG == nil {
		return errors.New("rng must be given")
	}
	if in.RNG.Seed == nil {
		return errors.New("seed must be given")
	}
	if *in.RNG.Seed < 0 {
		return errors.New("seed must be a non-negative integer")
	}
	if in.System == nil {
		return errors.New("system must be given")
	}
	if in.System.Lattice == nil {
		return errors.New("lattice must be given")
	}
	size := in.System.Lattice.Size
	if len(size) < 1 || len(size) > 2 {
		return errors.New("lattice size must have 1 or 2 dimensions")
	}
	for _, n := range size {
		if n <= 0 {
			return errors.New("lattice dimensions must be positive integers")
		}
	}
	wf := in.System.Wavefunction
	if wf == nil {
		return errors.New("wavefunction must be given")
	}
	if wf.Type != "free-fermion" {
		return errors.Errorf("invalid wavefunction type %q", wf.Type)
	}
	if wf.Orbitals == nil {
		return errors.New("orbitals must be given")
	}
	bcs := wf.Orbitals.BoundaryConditions
	if len(bcs) != len(size) {
		return errors.New("boundary-conditions must match the lattice dimension")
	}
	for _, n := range bcs {
		if n <= 0 {
			return errors.New("invalid boundary condition specifier")
		}
	}
	if len(wf.Orbitals.Filling) == 0 {
		return errors.New("filling must not be empty")
	}
	for _, k := range wf.Orbitals.Filling {
		if len(k) != len(size) {
			return errors.New("momentum vectors must match the lattice dimension")
		}
		for d, kd := range k {
			if kd < 0 || kd >= size[d] {
				return errors.New("invalid momentum index")
			}
		}
	}
	totalSites := 1
	for _, n := range size {
		totalSites *= n
	}
	if len(wf.Orbitals.Filling) > totalSites {
		return errors.New("more filled orbitals than lattice sites")
	}
	return nil
}
