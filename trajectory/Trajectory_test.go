package trajectory_test

import (
	"testing"

	"gorgonia.org/tensor"

	ts "sfneuman.com/gorltask/timestep"
	"sfneuman.com/gorltask/trajectory"
)

// obs returns a 1-dimensional observation holding a single value
func obs(value float64) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1),
		tensor.WithBacking([]float64{value}),
	)
}

// action returns a 1-dimensional action holding a single value
func action(value float64) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1),
		tensor.WithBacking([]float64{value}),
	)
}

// makeTrajectory returns a trajectory with one closed step per
// reward, extended in order, plus the trailing open step
func makeTrajectory(rewards ...float64) *trajectory.Trajectory {
	traj := trajectory.New(obs(0))
	for i, reward := range rewards {
		done := i == len(rewards)-1
		traj.Extend(action(float64(i)), nil, obs(float64(i+1)), reward,
			done, 1)
	}
	return traj
}

func TestLenCountsExtends(t *testing.T) {
	traj := trajectory.New(obs(0))
	if traj.Len() != 1 {
		t.Fatalf("fresh trajectory has length %d, want 1", traj.Len())
	}

	for i := 1; i <= 5; i++ {
		traj.Extend(action(1), nil, obs(float64(i)), 0, false, 1)
		if traj.Len() != i+1 {
			t.Errorf("after %d extends got length %d, want %d", i,
				traj.Len(), i+1)
		}
	}
}

func TestCalculateReturns(t *testing.T) {
	gamma := 0.5
	rewards := []float64{1, 2, 3}
	traj := makeTrajectory(rewards...)
	traj.CalculateReturns(gamma)

	steps := traj.Steps()

	// The last closed step's return is its own reward, since the
	// trailing open step carries no reward
	last := steps[len(rewards)-1]
	if last.DiscountedReturn != rewards[len(rewards)-1] {
		t.Errorf("last closed step has return %v, want %v",
			last.DiscountedReturn, rewards[len(rewards)-1])
	}

	for i := 0; i < len(rewards)-1; i++ {
		want := rewards[i] + gamma*steps[i+1].DiscountedReturn
		if steps[i].DiscountedReturn != want {
			t.Errorf("step %d has return %v, want %v", i,
				steps[i].DiscountedReturn, want)
		}
	}
}

func TestTotalReturn(t *testing.T) {
	traj := makeTrajectory(1, 2, 3)
	if total := traj.TotalReturn(); total != 6 {
		t.Errorf("got total return %v, want 6", total)
	}
}

func TestDone(t *testing.T) {
	traj := trajectory.New(obs(0))
	if traj.Done() {
		t.Error("a trajectory without interactions should never be done")
	}

	defer func() {
		if recover() == nil {
			t.Error("setting done without interactions should panic")
		}
	}()
	traj.SetDone(true)
}

func TestSetDone(t *testing.T) {
	traj := makeTrajectory(1, 1)
	if !traj.Done() {
		t.Fatal("trajectory should be done")
	}

	traj.SetDone(false)
	if traj.Done() {
		t.Error("trajectory should not be done after SetDone(false)")
	}
}

func TestSliceIsView(t *testing.T) {
	traj := makeTrajectory(1, 2, 3)
	slice := traj.Slice(1, 3)

	if slice.Len() != 2 {
		t.Fatalf("slice has length %d, want 2", slice.Len())
	}
	if slice.Steps()[0] != traj.Steps()[1] {
		t.Error("slice should share timesteps with its trajectory")
	}
}

func TestToNumericCaches(t *testing.T) {
	traj := makeTrajectory(1, 2, 3)

	calls := 0
	counting := func(step *ts.TimeStep) ts.Numeric {
		calls++
		return ts.ToNumeric(step)
	}

	first, err := traj.ToNumeric(0, counting)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}
	if calls != traj.Len() {
		t.Fatalf("converter called %d times, want %d", calls, traj.Len())
	}

	second, err := traj.ToNumeric(0, counting)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}
	if calls != traj.Len() {
		t.Errorf("cached conversion recomputed: %d converter calls, want %d",
			calls, traj.Len())
	}
	if first.Observations != second.Observations {
		t.Error("cached conversion returned a different result")
	}

	// Growing the trajectory invalidates the cache
	traj.Extend(action(1), nil, obs(4), 0, false, 1)
	if _, err := traj.ToNumeric(0, counting); err != nil {
		t.Fatalf("toNumeric: %v", err)
	}
	if calls != 2*traj.Len()-1 {
		t.Errorf("converter called %d times after extend, want %d", calls,
			2*traj.Len()-1)
	}
}

func TestToNumericCacheKeyedByMargin(t *testing.T) {
	traj := makeTrajectory(1, 2)

	first, err := traj.ToNumeric(0, nil)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}
	second, err := traj.ToNumeric(2, nil)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}

	if first.Observations == second.Observations {
		t.Error("conversions with different margins should not share a cache")
	}
}

func TestToNumericShapes(t *testing.T) {
	traj := makeTrajectory(1, 2, 3) // 4 timesteps, 3 closed

	numeric, err := traj.ToNumeric(0, nil)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}

	if got := numeric.Observations.Shape()[0]; got != 4 {
		t.Errorf("got %d observations, want 4", got)
	}
	for name, field := range map[string]*tensor.Dense{
		"actions": numeric.Actions,
		"rewards": numeric.Rewards,
		"returns": numeric.Returns,
		"dones":   numeric.Dones,
		"mask":    numeric.Mask,
	} {
		if got := field.Shape()[0]; got != 3 {
			t.Errorf("got %d %s, want 3", got, name)
		}
	}
	if numeric.DistInputs != nil {
		t.Error("dist inputs were never set, so the field should be nil")
	}
}

func TestToNumericMargin(t *testing.T) {
	for _, margin := range []int{1, 2, 4} {
		traj := makeTrajectory(1, 2, 3)
		numeric, err := traj.ToNumeric(margin, nil)
		if err != nil {
			t.Fatalf("margin %d: %v", margin, err)
		}

		// The observation axis gets margin - 1 synthetic entries: the
		// trailing open timestep already contributed an observation
		// without a matching action
		wantObs := traj.Len() + margin - 1
		if got := numeric.Observations.Shape()[0]; got != wantObs {
			t.Errorf("margin %d: got %d observations, want %d", margin,
				got, wantObs)
		}

		wantRows := traj.Len() - 1 + margin
		masks := numeric.Mask.Data().([]float64)
		dones := numeric.Dones.Data().([]float64)
		if len(masks) != wantRows {
			t.Fatalf("margin %d: got %d mask entries, want %d", margin,
				len(masks), wantRows)
		}
		for i := len(masks) - margin; i < len(masks); i++ {
			if masks[i] != 0 {
				t.Errorf("margin %d: mask entry %d is %v, want 0", margin,
					i, masks[i])
			}
			if dones[i] != 1 {
				t.Errorf("margin %d: done entry %d is %v, want 1", margin,
					i, dones[i])
			}
		}
		if got := numeric.Actions.Shape()[0]; got != wantRows {
			t.Errorf("margin %d: got %d actions, want %d", margin, got,
				wantRows)
		}
	}
}

func TestToNumericMarginZeroBoundary(t *testing.T) {
	traj := makeTrajectory(1, 2, 3)
	numeric, err := traj.ToNumeric(0, nil)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}

	// No margin means no synthetic entries anywhere
	if got := numeric.Observations.Shape()[0]; got != traj.Len() {
		t.Errorf("got %d observations, want %d", got, traj.Len())
	}
	masks := numeric.Mask.Data().([]float64)
	for i, mask := range masks {
		if mask != 1 {
			t.Errorf("mask entry %d is %v, want 1", i, mask)
		}
	}
}

func TestToNumericSingleStep(t *testing.T) {
	traj := trajectory.New(obs(7))
	numeric, err := traj.ToNumeric(3, nil)
	if err != nil {
		t.Fatalf("toNumeric: %v", err)
	}

	// A lone open timestep is never extended by the margin
	if got := numeric.Observations.Shape()[0]; got != 1 {
		t.Errorf("got %d observations, want 1", got)
	}
	if numeric.Actions != nil {
		t.Error("no actions were taken, so the field should be nil")
	}
}
