package task

import (
	"errors"
	"fmt"
)

// TaskError implements an error that occurred during an operation on
// a Task
type TaskError struct {
	Op  string
	Err error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

var (
	// errBudget is returned when a collection call does not specify
	// exactly one of a trajectory or an interaction budget
	errBudget = errors.New("exactly one of NTrajectories and " +
		"NInteractions must be set")

	// errNoTrajectories is returned when sampling from a buffer that
	// holds no trajectories in any of the requested epochs
	errNoTrajectories = errors.New("no trajectories to sample from")

	// errLengthMismatch is returned when a weighted choice is given
	// mismatched item and weight counts
	errLengthMismatch = errors.New("items and weights must have the " +
		"same length")
)
