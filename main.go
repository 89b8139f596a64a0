package main

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"

	env "sfneuman.com/gorltask/environment"
	"sfneuman.com/gorltask/task"
	"sfneuman.com/gorltask/trajectory"
	"sfneuman.com/gorltask/utils/floatutils"
	"sfneuman.com/gorltask/utils/progressbar"
)

// chain is a small deterministic corridor environment: the agent
// starts at the left end and is rewarded for reaching the right end.
type chain struct {
	length       int
	position     int
	actions      *env.Discrete
	observations *env.Box
}

func newChain(length int, seed uint64) *chain {
	return &chain{
		length:  length,
		actions: env.NewDiscrete(2, seed),
		observations: env.NewBox([]float64{0},
			[]float64{float64(length - 1)}, seed),
	}
}

func (c *chain) observe() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1),
		tensor.WithBacking([]float64{float64(c.position)}),
	)
}

func (c *chain) Reset() (*tensor.Dense, error) {
	c.position = 0
	return c.observe(), nil
}

func (c *chain) Step(action *tensor.Dense) (env.Step, error) {
	if action.Data().([]float64)[0] > 0.5 {
		c.position++
	} else if c.position > 0 {
		c.position--
	}

	done := c.position == c.length-1
	reward := 0.0
	if done {
		reward = 1.0
	}
	return env.Step{Observation: c.observe(), Reward: reward, Done: done}, nil
}

func (c *chain) ActionSpace() env.Space {
	return c.actions
}

func (c *chain) ObservationSpace() env.Space {
	return c.observations
}

func main() {
	var seed uint64 = 192382

	corridor := newChain(8, seed)
	t, err := task.New(corridor, task.Config{
		Gamma:         0.99,
		MaxSteps:      10,
		TimeLimit:     50,
		NReplayEpochs: 2,
		Seed:          seed,
	})
	if err != nil {
		log.Fatalf("could not create task: %v", err)
	}

	// A right-biased policy that records the log-probabilities its
	// actions were drawn from
	rng := rand.New(rand.NewSource(seed))
	right := 0.8
	distInputs := []float64{math.Log(1 - right), math.Log(right)}
	policy := func(*trajectory.Trajectory) (*tensor.Dense, *tensor.Dense,
		error) {
		action := 0.0
		if rng.Float64() < right {
			action = 1.0
		}
		return tensor.New(
				tensor.WithShape(1),
				tensor.WithBacking([]float64{action}),
			), tensor.New(
				tensor.WithShape(2),
				tensor.WithBacking(append([]float64{}, distInputs...)),
			), nil
	}

	// Gather initial experience, one trajectory at a time
	initial := 30
	bar := progressbar.New(40, initial)
	for i := 0; i < initial; i++ {
		_, err := t.CollectTrajectories(policy, task.CollectConfig{
			NTrajectories: 1,
			EpochID:       0,
		})
		if err != nil {
			log.Fatalf("could not collect initial trajectories: %v", err)
		}
		bar.Increment()
		bar.Display()
	}
	fmt.Println()

	// Collect a few training epochs; old ones age out of the window
	best := math.Inf(-1)
	for epoch := 1; epoch <= 3; epoch++ {
		mean, err := t.CollectTrajectories(policy, task.CollectConfig{
			NInteractions: 200,
			EpochID:       epoch,
		})
		if err != nil {
			log.Fatalf("could not collect epoch %d: %v", epoch, err)
		}
		best = floatutils.Max(best, mean)
		fmt.Printf("epoch %d: mean return %.3f, retained epochs %v\n",
			epoch, mean, t.Epochs())
	}
	fmt.Printf("%d trajectories, %d interactions, best mean return %.3f\n",
		t.NTrajectories(), t.NInteractions(), best)

	// Sample a batch of padded trajectory slices
	batches := t.BatchStream(8, task.StreamConfig{
		MaxSliceLength: 4,
		Margin:         1,
	})
	batch, err := batches.Next()
	if err != nil {
		log.Fatalf("could not sample batch: %v", err)
	}
	fmt.Printf("batch observations %v, rewards %v, mask %v\n",
		batch.Observations.Shape(), batch.Rewards.Shape(),
		batch.Mask.Shape())

	// Round-trip the replay buffer through disk
	dir, err := os.MkdirTemp("", "gorltask")
	if err != nil {
		log.Fatalf("could not create save directory: %v", err)
	}
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "task.bin")
	if err := t.SaveToFile(filename); err != nil {
		log.Fatalf("could not save task: %v", err)
	}

	restored, err := task.New(newChain(8, seed), task.Config{
		NReplayEpochs: 2,
		Seed:          seed,
	})
	if err != nil {
		log.Fatalf("could not create task: %v", err)
	}
	if err := restored.InitFromFile(filename); err != nil {
		log.Fatalf("could not restore task: %v", err)
	}
	fmt.Printf("restored %d trajectories over epochs %v\n",
		restored.NTrajectories(), restored.Epochs())
}
