package task

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// Source provides the randomness behind the trajectory samplers: a
// categorical draw over a weight vector and a uniform integer draw.
// Tests supply deterministic implementations.
type Source interface {
	// Categorical returns an index in [0, len(weights)) with
	// probability weights[i] / sum(weights)
	Categorical(weights []float64) int

	// Intn returns a uniform integer in [0, n)
	Intn(n int) int
}

// randSource implements Source with a categorical distribution over a
// shared pseudo-random source
type randSource struct {
	src rand.Source
	rng *rand.Rand
}

// NewSource returns a new pseudo-random Source with the given seed
func NewSource(seed uint64) Source {
	src := rand.NewSource(seed)
	return &randSource{src: src, rng: rand.New(src)}
}

func (r *randSource) Categorical(weights []float64) int {
	dist := distuv.NewCategorical(weights, r.src)
	return int(dist.Rand())
}

func (r *randSource) Intn(n int) int {
	return r.rng.Intn(n)
}

// proportionalIndex chooses an index in [0, items) with probability
// proportional to its weight. It fails if the weight count does not
// match the item count.
func proportionalIndex(src Source, items int, weights []float64) (int,
	error) {
	if items != len(weights) {
		return 0, &TaskError{Op: "proportionalIndex", Err: errLengthMismatch}
	}
	return src.Categorical(weights), nil
}
