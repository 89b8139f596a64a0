package environment

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

// StepType denotes the type of step a SuiteStep can be: the first
// step of an episode, a middle step, or a last step
type StepType int

const (
	First StepType = iota
	Mid
	Last
)

func (s StepType) String() string {
	switch s {
	case First:
		return "First"
	case Last:
		return "Last"
	default:
		return "Mid"
	}
}

// SuiteStep is the step protocol of DeepMind-suite style
// environments: instead of an explicit done flag, termination is
// carried by the step type.
type SuiteStep struct {
	StepType    StepType
	Observation *tensor.Dense
	Reward      float64
}

// SuiteEnvironment is an environment following the DeepMind suite
// protocol. Both Reset and Step return SuiteSteps, and the action and
// observation layouts are described by specs rather than Gym-style
// space objects.
type SuiteEnvironment interface {
	Reset() (SuiteStep, error)
	Step(action *tensor.Dense) (SuiteStep, error)

	// ActionCount returns the number of discrete actions
	ActionCount() int

	// ObservationShape returns the shape of observations
	ObservationShape() []int
}

// suiteEnv adapts a SuiteEnvironment to the Environment interface,
// normalizing the step protocol so players stay protocol-agnostic.
type suiteEnv struct {
	env          SuiteEnvironment
	actions      *Discrete
	observations *Box
}

// FromSuite wraps a DeepMind-suite style environment in the standard
// Environment interface. The action space becomes a Discrete space
// over the environment's action count, and the observation space an
// unbounded Box of the environment's observation shape.
func FromSuite(env SuiteEnvironment, seed uint64) Environment {
	size := 1
	for _, dim := range env.ObservationShape() {
		size *= dim
	}
	low := make([]float64, size)
	high := make([]float64, size)
	for i := 0; i < size; i++ {
		low[i] = math.Inf(-1)
		high[i] = math.Inf(1)
	}

	return &suiteEnv{
		env:          env,
		actions:      NewDiscrete(env.ActionCount(), seed),
		observations: NewBox(low, high, seed),
	}
}

func (s *suiteEnv) Reset() (*tensor.Dense, error) {
	step, err := s.env.Reset()
	if err != nil {
		return nil, fmt.Errorf("reset: %v", err)
	}
	return step.Observation, nil
}

func (s *suiteEnv) Step(action *tensor.Dense) (Step, error) {
	step, err := s.env.Step(action)
	if err != nil {
		return Step{}, fmt.Errorf("step: %v", err)
	}

	return Step{
		Observation: step.Observation,
		Reward:      step.Reward,
		Done:        step.StepType == Last,
	}, nil
}

func (s *suiteEnv) ActionSpace() Space {
	return s.actions
}

func (s *suiteEnv) ObservationSpace() Space {
	return s.observations
}
