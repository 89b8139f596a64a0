// Package task implements RL tasks: an environment together with a
// replay buffer of the trajectories collected in it, partitioned by
// training epoch.
//
// A Task is created once per training run, or restored from persisted
// state, and lives for the run's duration. Epochs age out of the
// replay buffer continuously as new ones are collected. No internal
// synchronization is provided; a Task instance assumes a single owner
// goroutine, and callers that must interleave collection and sampling
// concurrently have to serialize the two themselves.
package task

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
	"gorgonia.org/tensor"

	env "sfneuman.com/gorltask/environment"
	"sfneuman.com/gorltask/player"
	ts "sfneuman.com/gorltask/timestep"
	"sfneuman.com/gorltask/trajectory"
	"sfneuman.com/gorltask/utils/intutils"
)

// Config implements a specific configuration of a Task
type Config struct {
	// Gamma is the discount factor for calculating returns. The zero
	// value defaults to 0.99.
	Gamma float64

	// MaxSteps cuts all trajectory slices at that many steps. The
	// slice is continued on the next Play call, up to TimeLimit.
	// Zero means no cut.
	MaxSteps int

	// TimeLimit stops all trajectories after that many cumulative
	// steps, even if the environment never signals done. Zero
	// defaults to MaxSteps.
	TimeLimit int

	// NReplayEpochs is the size of the replay buffer expressed in
	// epochs. The zero value defaults to 1.
	NReplayEpochs int

	// InitialTrajectories is the number of random-policy trajectories
	// collected into epoch 0 at construction
	InitialTrajectories int

	// EvalEnv is a separate environment for evaluation episodes. Nil
	// defaults to the training environment.
	EvalEnv env.Environment

	// Converter overrides the default timestep-to-numeric conversion
	Converter ts.Converter

	// Source overrides the sampling randomness; nil uses a
	// pseudo-random Source seeded with Seed
	Source Source

	Seed uint64
}

// Task owns an environment and a replay buffer of the experience
// collected in it
type Task struct {
	env           env.Environment
	evalEnv       env.Environment
	gamma         float64
	maxSteps      int
	timeLimit     int
	nReplayEpochs int
	converter     ts.Converter
	source        Source

	buffer *epochBuffer

	// savedUnchanged tracks the epochs that have not received new
	// trajectories since they were last saved, so repeated saves can
	// skip them. Always a subset of the retained epochs.
	savedUnchanged map[int]bool

	// lastObservation carries the in-progress episode across Play
	// calls; nil means the next Play starts a fresh episode
	lastObservation *tensor.Dense
	stepsLeft       int

	nTrajectories int
	nInteractions int
}

// New creates a Task playing in e, configured by c. If
// c.InitialTrajectories > 0, that many random-policy trajectories are
// collected into epoch 0 before New returns.
func New(e env.Environment, c Config) (*Task, error) {
	if c.Gamma == 0 {
		c.Gamma = 0.99
	}
	if c.TimeLimit == 0 {
		c.TimeLimit = c.MaxSteps
	}
	if c.NReplayEpochs == 0 {
		c.NReplayEpochs = 1
	}
	if c.EvalEnv == nil {
		c.EvalEnv = e
	}
	if c.Source == nil {
		c.Source = NewSource(c.Seed)
	}

	t := &Task{
		env:            e,
		evalEnv:        c.EvalEnv,
		gamma:          c.Gamma,
		maxSteps:       c.MaxSteps,
		timeLimit:      c.TimeLimit,
		nReplayEpochs:  c.NReplayEpochs,
		converter:      c.Converter,
		source:         c.Source,
		buffer:         newEpochBuffer(),
		savedUnchanged: make(map[int]bool),
		stepsLeft:      c.TimeLimit,
	}

	if c.InitialTrajectories > 0 {
		random := player.RandomPolicy(e.ActionSpace())
		initial := make([]*trajectory.Trajectory, c.InitialTrajectories)
		for i := range initial {
			traj, err := t.Play(random, 0, false)
			if err != nil {
				return nil, fmt.Errorf("new: could not collect initial "+
					"trajectories: %v", err)
			}
			initial[i] = traj
		}
		t.buffer.append(0, initial)
	}

	return t, nil
}

// Env returns the training environment
func (t *Task) Env() env.Environment {
	return t.env
}

// EvalEnv returns the evaluation environment
func (t *Task) EvalEnv() env.Environment {
	return t.evalEnv
}

// Gamma returns the discount factor
func (t *Task) Gamma() float64 {
	return t.gamma
}

// MaxSteps returns the per-slice step cut
func (t *Task) MaxSteps() int {
	return t.maxSteps
}

// ActionSpace returns the action space of the training environment
func (t *Task) ActionSpace() env.Space {
	return t.env.ActionSpace()
}

// ObservationSpace returns the observation space of the training
// environment
func (t *Task) ObservationSpace() env.Space {
	return t.env.ObservationSpace()
}

// Epochs returns the ids of the retained epochs in increasing order
func (t *Task) Epochs() []int {
	return t.buffer.ids()
}

// Trajectories returns the trajectories collected into an epoch, in
// collection order, or nil if the epoch is not retained
func (t *Task) Trajectories(epoch int) []*trajectory.Trajectory {
	return t.buffer.get(epoch)
}

// SetNReplayEpochs changes the size of the replay window. The new
// size takes effect at the next collection.
func (t *Task) SetNReplayEpochs(n int) {
	t.nReplayEpochs = n
}

// NTrajectories returns the number of trajectories collected over the
// task's lifetime. An epoch filter is accepted but not implemented
// yet; the global total is returned regardless.
func (t *Task) NTrajectories(epochs ...int) int {
	return t.nTrajectories
}

// NInteractions returns the number of environment interactions
// collected over the task's lifetime. An epoch filter is accepted but
// not implemented yet; the global total is returned regardless.
func (t *Task) NInteractions(epochs ...int) int {
	return t.nInteractions
}

// capSteps returns the smaller of two step limits, where a limit <= 0
// means unbounded
func capSteps(a, b int) int {
	if a <= 0 {
		return b
	}
	if b <= 0 {
		return a
	}
	return intutils.Min(a, b)
}

// Play plays one episode slice with the given policy and returns it
// with discounted returns already calculated.
//
// In eval mode the evaluation environment is always reset, steps are
// capped at the time limit, and the cross-call episode state is left
// untouched. In training mode the slice resumes the in-progress
// episode, if any, and steps are capped at whatever remains of the
// time limit; reaching the limit exactly forces the done flag so the
// episode terminates even if the environment never signaled it.
//
// maxSteps <= 0 uses the task's configured MaxSteps.
//
// Play panics if the steps-remaining counter would go negative, which
// indicates a played slice longer than its cap.
func (t *Task) Play(policy player.Policy, maxSteps int,
	onlyEval bool) (*trajectory.Trajectory, error) {
	if maxSteps <= 0 {
		maxSteps = t.maxSteps
	}

	var traj *trajectory.Trajectory
	var err error
	if onlyEval {
		traj, err = player.Play(t.evalEnv, policy,
			capSteps(maxSteps, t.timeLimit), nil)
		if err != nil {
			return nil, fmt.Errorf("play: %v", err)
		}
	} else {
		traj, err = player.Play(t.env, policy,
			capSteps(maxSteps, t.stepsLeft), t.lastObservation)
		if err != nil {
			return nil, fmt.Errorf("play: %v", err)
		}

		if t.timeLimit > 0 {
			t.stepsLeft -= traj.Len() - 1 // The initial reset doesn't count
			if t.stepsLeft < 0 {
				panic(fmt.Sprintf("play: %v more steps played than the "+
					"time limit allows", -t.stepsLeft))
			}
			if t.stepsLeft == 0 {
				traj.SetDone(true)
			}
		}

		// Pass the episode state between trajectory slices
		if traj.Done() {
			t.lastObservation = nil
			if t.timeLimit > 0 {
				t.stepsLeft = t.timeLimit
			}
		} else {
			t.lastObservation = traj.LastObservation()
		}
	}

	traj.CalculateReturns(t.gamma)
	return traj, nil
}

// CollectConfig configures one collection call
type CollectConfig struct {
	// Exactly one of NTrajectories and NInteractions must be set.
	// NTrajectories plays that many episode slices; NInteractions
	// plays slices until that many environment steps were taken.
	NTrajectories int
	NInteractions int

	// OnlyEval evaluates the policy without touching the buffer
	OnlyEval bool

	// MaxSteps overrides the task's per-slice step cut
	MaxSteps int

	// EpochID is the epoch the new trajectories are collected into
	EpochID int
}

// CollectTrajectories collects experience by playing the given policy
// and returns the mean total return of the collected trajectories,
// or 0 if none were produced.
//
// Unless c.OnlyEval is set, the new trajectories are appended to
// epoch c.EpochID, the epoch is marked changed for the next save, the
// buffer is pruned to the replay window ending at c.EpochID, and the
// lifetime counters are updated.
func (t *Task) CollectTrajectories(policy player.Policy,
	c CollectConfig) (float64, error) {
	if (c.NTrajectories > 0) == (c.NInteractions > 0) {
		return 0, &TaskError{Op: "collectTrajectories", Err: errBudget}
	}

	maxSteps := c.MaxSteps
	if maxSteps <= 0 {
		maxSteps = t.maxSteps
	}

	var collected []*trajectory.Trajectory
	if c.NTrajectories > 0 {
		for i := 0; i < c.NTrajectories; i++ {
			traj, err := t.Play(policy, maxSteps, c.OnlyEval)
			if err != nil {
				return 0, fmt.Errorf("collectTrajectories: %v", err)
			}
			collected = append(collected, traj)
		}
	} else {
		for remaining := c.NInteractions; remaining > 0; {
			traj, err := t.Play(policy, capSteps(remaining, maxSteps), false)
			if err != nil {
				return 0, fmt.Errorf("collectTrajectories: %v", err)
			}
			collected = append(collected, traj)
			remaining -= traj.Len() - 1 // The initial reset does not count
		}
	}

	returns := make([]float64, len(collected))
	for i, traj := range collected {
		returns[i] = traj.TotalReturn()
	}
	mean := 0.0
	if len(returns) > 0 {
		mean = stat.Mean(returns, nil)
	}

	if c.OnlyEval {
		return mean, nil
	}

	if len(collected) > 0 {
		t.buffer.append(c.EpochID, collected)
	}
	delete(t.savedUnchanged, c.EpochID)

	// Age epochs out of the replay window. This is a designed
	// deletion, not an error path.
	t.buffer.prune(c.EpochID - t.nReplayEpochs)
	for epoch := range t.savedUnchanged {
		if !t.buffer.contains(epoch) {
			delete(t.savedUnchanged, epoch)
		}
	}

	t.nTrajectories += len(collected)
	for _, traj := range collected {
		t.nInteractions += traj.Len() - 1
	}

	return mean, nil
}

// RemoveEpoch drops an epoch's trajectories entirely. Removing an
// absent epoch is a no-op.
func (t *Task) RemoveEpoch(epoch int) {
	t.buffer.remove(epoch)
	delete(t.savedUnchanged, epoch)
}
