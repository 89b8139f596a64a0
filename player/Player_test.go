package player_test

import (
	"errors"
	"testing"

	"gorgonia.org/tensor"

	env "sfneuman.com/gorltask/environment"
	"sfneuman.com/gorltask/player"
	"sfneuman.com/gorltask/trajectory"
)

// countingEnv ends its episodes after a fixed number of steps and
// counts its resets, so tests can tell resumed slices from fresh ones.
type countingEnv struct {
	episodeLen int
	steps      int
	resets     int

	actions *env.Discrete
}

func newCountingEnv(episodeLen int) *countingEnv {
	return &countingEnv{episodeLen: episodeLen, actions: env.NewDiscrete(2, 1)}
}

func (c *countingEnv) observe() *tensor.Dense {
	return tensor.New(
		tensor.WithShape(1),
		tensor.WithBacking([]float64{float64(c.steps)}),
	)
}

func (c *countingEnv) Reset() (*tensor.Dense, error) {
	c.steps = 0
	c.resets++
	return c.observe(), nil
}

func (c *countingEnv) Step(action *tensor.Dense) (env.Step, error) {
	c.steps++
	return env.Step{
		Observation: c.observe(),
		Reward:      1.0,
		Done:        c.steps >= c.episodeLen,
	}, nil
}

func (c *countingEnv) ActionSpace() env.Space {
	return c.actions
}

func (c *countingEnv) ObservationSpace() env.Space {
	return env.NewBox([]float64{0}, []float64{1}, 1)
}

func TestPlayStopsAtMaxSteps(t *testing.T) {
	e := newCountingEnv(100)

	traj, err := player.Play(e, player.RandomPolicy(e.ActionSpace()), 4, nil)
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	if traj.Len() != 5 {
		t.Errorf("got trajectory length %d, want 5", traj.Len())
	}
	if traj.Done() {
		t.Error("a step-capped slice should not be done")
	}
}

func TestPlayStopsAtDone(t *testing.T) {
	e := newCountingEnv(3)

	traj, err := player.Play(e, player.RandomPolicy(e.ActionSpace()), 0, nil)
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	if traj.Len() != 4 {
		t.Errorf("got trajectory length %d, want 4", traj.Len())
	}
	if !traj.Done() {
		t.Error("trajectory should be done")
	}
}

func TestPlayResumesWithoutReset(t *testing.T) {
	e := newCountingEnv(100)
	policy := player.RandomPolicy(e.ActionSpace())

	first, err := player.Play(e, policy, 2, nil)
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	second, err := player.Play(e, policy, 2, first.LastObservation())
	if err != nil {
		t.Fatalf("play: %v", err)
	}

	if e.resets != 1 {
		t.Errorf("resuming reset the environment, got %d resets", e.resets)
	}
	if got := second.Steps()[0].Observation; got != first.LastObservation() {
		t.Error("the resumed slice should start from the last observation")
	}
}

func TestPlayPolicyError(t *testing.T) {
	e := newCountingEnv(100)
	policy := func(*trajectory.Trajectory) (*tensor.Dense, *tensor.Dense,
		error) {
		return nil, nil, errors.New("no action")
	}

	if _, err := player.Play(e, policy, 2, nil); err == nil {
		t.Error("a failing policy should fail the play")
	}
}

func TestRandomPolicySamplesSpace(t *testing.T) {
	space := env.NewDiscrete(3, 1)
	policy := player.RandomPolicy(space)

	for i := 0; i < 20; i++ {
		action, distInputs, err := policy(nil)
		if err != nil {
			t.Fatalf("policy: %v", err)
		}
		if distInputs != nil {
			t.Fatal("random policy should have no distribution inputs")
		}
		if a := action.Data().([]float64)[0]; a < 0 || a > 2 {
			t.Fatalf("sampled action %v outside the space", a)
		}
	}
}
