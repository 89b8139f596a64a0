// Package trajectory implements ordered sequences of timesteps
// recorded while an agent interacts with an environment. Trajectories
// are created open, prolonged step-by-step, and once finished allow
// re-calculating discounted returns and conversion to a fixed-shape
// numeric form.
package trajectory

import (
	"bytes"
	"encoding/gob"

	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"

	ts "sfneuman.com/gorltask/timestep"
)

// Trajectory is a growable sequence of timesteps representing one
// episode or episode slice. A fresh Trajectory holds exactly one open
// timestep. All timesteps except the last are closed; the last stays
// open, awaiting the next action, unless the trajectory is a finished
// slice.
type Trajectory struct {
	steps []*ts.TimeStep
	cache *numericCache
}

// New returns a new Trajectory starting at the given observation
func New(observation *tensor.Dense) *Trajectory {
	return &Trajectory{steps: []*ts.TimeStep{ts.New(observation)}}
}

// Len returns the number of timesteps in the trajectory
func (t *Trajectory) Len() int {
	return len(t.steps)
}

// Steps returns the timesteps of the trajectory. The returned slice
// must not be modified.
func (t *Trajectory) Steps() []*ts.TimeStep {
	return t.steps
}

// LastObservation returns the observation of the last timestep
func (t *Trajectory) LastObservation() *tensor.Dense {
	return t.steps[len(t.steps)-1].Observation
}

// TotalReturn returns the undiscounted sum of all rewards in the
// trajectory
func (t *Trajectory) TotalReturn() float64 {
	rewards := make([]float64, 0, len(t.steps))
	for _, step := range t.steps {
		if step.Closed {
			rewards = append(rewards, step.Reward)
		}
	}
	return floats.Sum(rewards)
}

// Done returns whether the trajectory is finished. A trajectory with
// fewer than two timesteps has no interactions yet and is never done.
func (t *Trajectory) Done() bool {
	if len(t.steps) < 2 {
		return false
	}
	return t.steps[len(t.steps)-2].Done
}

// SetDone overwrites the done flag of the last interaction. This is
// used to terminate a trajectory externally, e.g. when a time limit
// is hit before the environment signals the end of the episode.
//
// SetDone panics if the trajectory has no interactions yet.
func (t *Trajectory) SetDone(done bool) {
	if len(t.steps) < 2 {
		panic("setDone: no interactions yet in the trajectory")
	}
	t.steps[len(t.steps)-2].Done = done
}

// Extend takes the given action in the last open timestep, recording
// the reward and done flag the environment returned for it, and
// appends a new open timestep holding the observation the environment
// transitioned to. The mask parameter flags whether the new
// interaction should contribute to a loss computation; it is 1 for
// ordinary interactions.
func (t *Trajectory) Extend(action, distInputs, newObservation *tensor.Dense,
	reward float64, done bool, mask float64) {
	last := t.steps[len(t.steps)-1]
	last.Close(action, distInputs, reward, done, mask)
	t.steps = append(t.steps, ts.New(newObservation))
}

// CalculateReturns recalculates the discounted return of every
// timestep with discount factor gamma in a single backward pass. It
// should be called once the trajectory (or slice) is complete.
func (t *Trajectory) CalculateReturns(gamma float64) {
	ret := 0.0
	for i := len(t.steps) - 1; i >= 0; i-- {
		ret = gamma*ret + t.steps[i].Reward
		t.steps[i].DiscountedReturn = ret
	}
}

// Slice returns a view of the timesteps in [from, to). The returned
// Trajectory shares timesteps with t; neither should be extended
// afterwards.
func (t *Trajectory) Slice(from, to int) *Trajectory {
	return &Trajectory{steps: t.steps[from:to]}
}

// GobEncode implements gob.GobEncoder so trajectories can be
// persisted by epoch
func (t *Trajectory) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(t.steps); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// GobDecode implements gob.GobDecoder
func (t *Trajectory) GobDecode(data []byte) error {
	dec := gob.NewDecoder(bytes.NewReader(data))
	return dec.Decode(&t.steps)
}
