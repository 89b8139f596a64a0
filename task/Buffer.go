package task

import (
	"sort"

	"sfneuman.com/gorltask/trajectory"
)

// epochBuffer maps epoch ids to the trajectories collected during
// that epoch, in collection order. Lookups never materialize missing
// epochs; only appending does, so that pruning and iteration stay
// auditable.
type epochBuffer struct {
	epochs map[int][]*trajectory.Trajectory
}

func newEpochBuffer() *epochBuffer {
	return &epochBuffer{epochs: make(map[int][]*trajectory.Trajectory)}
}

// get returns the trajectories of an epoch, or nil if the epoch was
// never collected into
func (b *epochBuffer) get(epoch int) []*trajectory.Trajectory {
	return b.epochs[epoch]
}

// append adds trajectories to an epoch, creating it if needed
func (b *epochBuffer) append(epoch int, trajs []*trajectory.Trajectory) {
	b.epochs[epoch] = append(b.epochs[epoch], trajs...)
}

// set replaces an epoch's trajectory list
func (b *epochBuffer) set(epoch int, trajs []*trajectory.Trajectory) {
	b.epochs[epoch] = trajs
}

// remove drops an epoch entirely; removing an absent epoch is a no-op
func (b *epochBuffer) remove(epoch int) {
	delete(b.epochs, epoch)
}

// prune drops every epoch with id < min
func (b *epochBuffer) prune(min int) {
	for epoch := range b.epochs {
		if epoch < min {
			delete(b.epochs, epoch)
		}
	}
}

// ids returns the retained epoch ids in increasing order
func (b *epochBuffer) ids() []int {
	ids := make([]int, 0, len(b.epochs))
	for epoch := range b.epochs {
		ids = append(ids, epoch)
	}
	sort.Ints(ids)
	return ids
}

// contains returns whether an epoch is retained
func (b *epochBuffer) contains(epoch int) bool {
	_, ok := b.epochs[epoch]
	return ok
}
