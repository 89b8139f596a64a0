// Package timestep implements timesteps of the agent-environment interaction
package timestep

import (
	"fmt"

	"gorgonia.org/tensor"
)

// TimeStep packages together a single timestep in an environment. A
// TimeStep starts out open, holding only the observation at the
// beginning of the step. Closing the step records the action taken in
// that observation together with everything the environment returned
// for it. Action, DistInputs, Reward, Done, and Mask are only
// meaningful on a closed step and are set together by Close.
type TimeStep struct {
	Observation *tensor.Dense
	Action      *tensor.Dense
	DistInputs  *tensor.Dense
	Reward      float64
	Done        bool
	Mask        float64

	// DiscountedReturn is computed by a backward pass over a finished
	// trajectory, see trajectory.CalculateReturns.
	DiscountedReturn float64

	Closed bool
}

// New returns a new open TimeStep holding only an observation
func New(observation *tensor.Dense) *TimeStep {
	return &TimeStep{Observation: observation}
}

// Close closes an open TimeStep by recording the action taken and what
// the environment returned for it. The mask parameter flags whether
// the step should contribute to a loss computation (1) or not (0).
func (t *TimeStep) Close(action, distInputs *tensor.Dense, reward float64,
	done bool, mask float64) {
	t.Action = action
	t.DistInputs = distInputs
	t.Reward = reward
	t.Done = done
	t.Mask = mask
	t.Closed = true
}

func (t *TimeStep) String() string {
	str := "TimeStep | Observation: %v  |  Action: %v  |  Reward:  %.2f  |  " +
		"Done: %v"

	return fmt.Sprintf(str, t.Observation, t.Action, t.Reward, t.Done)
}

// Numeric is the fixed-shape numeric form of a single TimeStep.
// Tensor-valued fields may be nil when the corresponding TimeStep
// field was never set, for example when a policy provides no
// distribution inputs. Scalar fields use 0/1 for booleans.
type Numeric struct {
	Observation *tensor.Dense
	Action      *tensor.Dense
	DistInputs  *tensor.Dense
	Reward      float64
	Return      float64
	Done        float64
	Mask        float64
}

// Converter turns a TimeStep into its numeric form. Alternative
// representations, such as embeddings that include actions, can be
// plugged in by supplying a custom Converter.
type Converter func(*TimeStep) Numeric

// ToNumeric is the default Converter. Tensors are copied so that the
// numeric form does not alias the TimeStep.
func ToNumeric(t *TimeStep) Numeric {
	done := 0.0
	if t.Done {
		done = 1.0
	}

	return Numeric{
		Observation: cloneTensor(t.Observation),
		Action:      cloneTensor(t.Action),
		DistInputs:  cloneTensor(t.DistInputs),
		Reward:      t.Reward,
		Return:      t.DiscountedReturn,
		Done:        done,
		Mask:        t.Mask,
	}
}

func cloneTensor(t *tensor.Dense) *tensor.Dense {
	if t == nil {
		return nil
	}

	backing := make([]float64, t.Shape().TotalSize())
	copy(backing, t.Data().([]float64))
	shape := append([]int{}, t.Shape()...)
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(backing),
	)
}
