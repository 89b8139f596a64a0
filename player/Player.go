// Package player implements playing episodes in an environment with
// a policy
package player

import (
	"fmt"

	"gorgonia.org/tensor"

	env "sfneuman.com/gorltask/environment"
	"sfneuman.com/gorltask/trajectory"
)

// Policy chooses the next action given the trajectory played so far.
// Alongside the action it may return auxiliary distribution inputs,
// such as the log-probabilities the action was drawn from, which are
// recorded in the trajectory; a nil tensor means none.
type Policy func(*trajectory.Trajectory) (action,
	distInputs *tensor.Dense, err error)

// RandomPolicy returns a Policy drawing actions from the given space,
// with no distribution inputs. It is used to gather initial data
// before any learner is configured.
func RandomPolicy(space env.Space) Policy {
	return func(*trajectory.Trajectory) (*tensor.Dense, *tensor.Dense,
		error) {
		return space.Sample(), nil, nil
	}
}

// Play plays an episode slice in e, taking actions according to
// policy, and returns the resulting trajectory.
//
// If lastObservation is nil, the environment is reset and the slice
// starts from the observation the reset returned. Otherwise the slice
// resumes the in-progress episode from lastObservation without
// resetting, which lets one logical episode span multiple Play calls.
//
// The slice ends when the environment signals done or after maxSteps
// steps, whichever comes first; maxSteps <= 0 means no step limit, in
// which case an environment that never signals done will loop
// forever. Play keeps no state between calls; resuming is entirely
// the caller's responsibility via lastObservation.
func Play(e env.Environment, policy Policy, maxSteps int,
	lastObservation *tensor.Dense) (*trajectory.Trajectory, error) {
	if lastObservation == nil {
		observation, err := e.Reset()
		if err != nil {
			return nil, fmt.Errorf("play: could not reset environment: %v",
				err)
		}
		lastObservation = observation
	}

	traj := trajectory.New(lastObservation)
	done := false
	for step := 0; !done && (maxSteps <= 0 || step < maxSteps); step++ {
		action, distInputs, err := policy(traj)
		if err != nil {
			return nil, fmt.Errorf("play: policy failed: %v", err)
		}

		next, err := e.Step(action)
		if err != nil {
			return nil, fmt.Errorf("play: could not step environment: %v",
				err)
		}

		traj.Extend(action, distInputs, next.Observation, next.Reward,
			next.Done, 1)
		done = next.Done
	}

	return traj, nil
}
