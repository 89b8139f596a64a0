// Package environment outlines the interface boundary between the
// replay subsystem and the environments it collects experience from.
// Concrete simulated environments live outside this module; anything
// that can reset, step, and describe its action and observation
// spaces can be played.
package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
	"gorgonia.org/tensor"
)

// Step is the normalized result of a single environment transition:
// the observation the environment moved to, the reward for the
// transition, and whether the episode ended with it. Environments
// following the DeepMind suite protocol are normalized to this form
// by the suite adapter before a player ever sees them.
type Step struct {
	Observation *tensor.Dense
	Reward      float64
	Done        bool
}

// Environment is a stateful environment handle. It must not be driven
// by more than one logical caller at a time.
type Environment interface {
	// Reset starts a new episode, returning its first observation
	Reset() (*tensor.Dense, error)

	// Step takes a single environmental step
	Step(action *tensor.Dense) (Step, error)

	ActionSpace() Space
	ObservationSpace() Space
}

// Space describes the set of legal actions or observations, in the
// style of Gym spaces. Sample draws a random element, used for
// unconfigured initial data collection.
type Space interface {
	Sample() *tensor.Dense
	Shape() []int
}

// Discrete is a Space of n distinct actions, encoded as tensors of
// shape (1,) holding the values 0 to n-1.
type Discrete struct {
	n   int
	rng *rand.Rand
}

// NewDiscrete returns a new Discrete space with n actions
func NewDiscrete(n int, seed uint64) *Discrete {
	return &Discrete{n: n, rng: rand.New(rand.NewSource(seed))}
}

// N returns the number of actions in the space
func (d *Discrete) N() int {
	return d.n
}

// Sample returns an action drawn uniformly from the space
func (d *Discrete) Sample() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1),
		tensor.WithBacking([]float64{float64(d.rng.Intn(d.n))}),
	)
}

// Shape returns the shape of actions in the space
func (d *Discrete) Shape() []int {
	return []int{1}
}

// Box is a Space of vectors bounded elementwise between Low and High
type Box struct {
	Low  []float64
	High []float64
	rng  []distuv.Uniform
}

// NewBox returns a new Box space with the given elementwise bounds
func NewBox(low, high []float64, seed uint64) *Box {
	src := rand.NewSource(seed)
	rng := make([]distuv.Uniform, len(low))
	for i := range rng {
		rng[i] = distuv.Uniform{Min: low[i], Max: high[i], Src: src}
	}

	return &Box{Low: low, High: high, rng: rng}
}

// Sample returns a vector drawn uniformly from within the bounds of
// the space
func (b *Box) Sample() *tensor.Dense {
	sample := make([]float64, len(b.rng))
	for i := range sample {
		sample[i] = b.rng[i].Rand()
	}

	return tensor.New(
		tensor.WithShape(len(sample)),
		tensor.WithBacking(sample),
	)
}

// Shape returns the shape of vectors in the space
func (b *Box) Shape() []int {
	return []int{len(b.Low)}
}
