package timestep_test

import (
	"testing"

	"gorgonia.org/tensor"

	ts "sfneuman.com/gorltask/timestep"
)

func vec(data ...float64) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(len(data)),
		tensor.WithBacking(data),
	)
}

func TestClose(t *testing.T) {
	step := ts.New(vec(1, 2))
	if step.Closed {
		t.Fatal("a new time step should be open")
	}

	step.Close(vec(0), nil, 0.5, true, 1)
	if !step.Closed {
		t.Error("closing should mark the step closed")
	}
	if step.Reward != 0.5 || !step.Done || step.Mask != 1 {
		t.Errorf("got %v", step)
	}
}

func TestToNumericClonesTensors(t *testing.T) {
	obs := vec(1, 2)
	step := ts.New(obs)
	step.Close(vec(0), nil, 1.0, false, 1)

	numeric := ts.ToNumeric(step)
	numeric.Observation.Data().([]float64)[0] = 9
	if obs.Data().([]float64)[0] == 9 {
		t.Error("conversion should clone the observation")
	}
	if numeric.Action == nil {
		t.Error("conversion should carry the action")
	}
	if numeric.DistInputs != nil {
		t.Error("a nil tensor should stay nil through conversion")
	}
}
