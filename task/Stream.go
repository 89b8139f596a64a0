package task

import (
	"fmt"

	"gorgonia.org/tensor"

	"sfneuman.com/gorltask/trajectory"
	"sfneuman.com/gorltask/utils/intutils"
	"sfneuman.com/gorltask/utils/tensorutils"
)

// StreamConfig configures a stream of trajectory slices
type StreamConfig struct {
	// Epochs selects the epochs to sample from; nil means all
	// retained epochs. Indices wrap modulo the largest epoch id + 1,
	// so -1 means the most recent epoch.
	Epochs []int

	// MaxSliceLength is the maximum length of the sampled slices;
	// zero returns whole trajectories
	MaxSliceLength int

	// MinSliceLength is a lower bound on the time axis of batches;
	// only batch streams use it
	MinSliceLength int

	// Margin is the number of extra steps past "done" included in
	// slices, so that consumers see the terminal states in the
	// training data
	Margin int

	// SampleUniformly samples trajectories uniformly instead of
	// proportionally to the number of slices in each
	SampleUniformly bool
}

// Stream is an unbounded source of random trajectory slices. Each
// Next call independently samples an epoch proportionally to its
// total slice count, a trajectory within that epoch, and a slice
// start within that trajectory, then yields the converted slice.
// Consumers pull as many slices as they need.
//
// A Stream reads the task's buffer without synchronizing; it must not
// run concurrently with collection.
type Stream struct {
	task *Task
	conf StreamConfig
}

// Stream returns a stream of random trajectory slices from the
// configured epochs
func (t *Task) Stream(c StreamConfig) *Stream {
	return &Stream{task: t, conf: c}
}

// slices returns how many distinct slices of length up to
// maxSliceLength a trajectory has. A trajectory [a, b, c, end] has 2
// slices of length 2 with margin 0, [a, b] and [b, c], and 3 with
// margin 1.
func (s *Stream) slices(t *trajectory.Trajectory) int {
	if s.conf.MaxSliceLength <= 0 {
		return 1
	}
	return intutils.Max(1, t.Len()+s.conf.Margin-s.conf.MaxSliceLength)
}

// epochIndices resolves the configured epoch set against the buffer:
// indices wrap modulo the largest epoch id + 1, duplicates are
// dropped, and so are epochs without trajectories.
func (s *Stream) epochIndices() []int {
	all := s.task.buffer.ids()
	if len(all) == 0 {
		return nil
	}
	modulus := all[len(all)-1] + 1

	requested := s.conf.Epochs
	if requested == nil {
		requested = all
	}

	seen := make(map[int]bool)
	var indices []int
	for _, epoch := range requested {
		epoch = ((epoch % modulus) + modulus) % modulus
		if seen[epoch] {
			continue
		}
		seen[epoch] = true
		if len(s.task.buffer.get(epoch)) > 0 {
			indices = append(indices, epoch)
		}
	}
	return indices
}

// Next samples and returns one trajectory slice
func (s *Stream) Next() (trajectory.Numeric, error) {
	indices := s.epochIndices()
	if len(indices) == 0 {
		return trajectory.Numeric{},
			&TaskError{Op: "next", Err: errNoTrajectories}
	}

	// Sample an epoch proportionally to the number of slices in each
	// epoch. Skipped when there is just one.
	epochID := indices[0]
	if len(indices) > 1 {
		weights := make([]float64, len(indices))
		for i, epoch := range indices {
			for _, t := range s.task.buffer.get(epoch) {
				weights[i] += float64(s.slices(t))
			}
		}
		chosen, err := proportionalIndex(s.task.source, len(indices), weights)
		if err != nil {
			return trajectory.Numeric{}, fmt.Errorf("next: %v", err)
		}
		epochID = indices[chosen]
	}
	epoch := s.task.buffer.get(epochID)

	// Sample a trajectory proportionally to the number of slices in
	// each one
	weights := make([]float64, len(epoch))
	for i, t := range epoch {
		if s.conf.SampleUniformly {
			weights[i] = 1
		} else {
			weights[i] = float64(s.slices(t))
		}
	}
	chosen, err := proportionalIndex(s.task.source, len(epoch), weights)
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: %v", err)
	}
	traj := epoch[chosen]

	// Sample a slice start within the trajectory
	sliceStart := s.task.source.Intn(s.slices(traj))

	// Convert the whole trajectory while adding the margin. The
	// result is cached, so this is not repeated for every sample.
	numeric, err := traj.ToNumeric(s.conf.Margin, s.task.converter)
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: %v", err)
	}

	sliceEnd := sliceStart + s.conf.MaxSliceLength
	if s.conf.MaxSliceLength <= 0 {
		sliceEnd = sliceStart + tensorutils.Rows(numeric.Observations)
	}
	return numeric.SliceRows(sliceStart, sliceEnd), nil
}

// BatchStream is an unbounded source of batches of trajectory slices.
// Each Next call pulls slices from the underlying Stream until a full
// batch is accumulated, then stacks the batch fieldwise, padding
// entries of differing lengths with trailing zeros up to the next
// power of two.
type BatchStream struct {
	stream    *Stream
	batchSize int
}

// BatchStream returns a stream of batches of batchSize trajectory
// slices from the configured epochs
func (t *Task) BatchStream(batchSize int, c StreamConfig) *BatchStream {
	return &BatchStream{stream: t.Stream(c), batchSize: batchSize}
}

// Next samples and returns one batch. Every field of the result has
// shape (batchSize, time, ...).
func (b *BatchStream) Next() (trajectory.Numeric, error) {
	batch := make([]trajectory.Numeric, b.batchSize)
	for i := range batch {
		slice, err := b.stream.Next()
		if err != nil {
			return trajectory.Numeric{}, err
		}
		batch[i] = slice
	}

	// Transpose the batch from a list of per-slice field tuples to
	// one tuple of per-field lists, padding and stacking each field
	field := func(get func(trajectory.Numeric) *tensor.Dense) (*tensor.Dense,
		error) {
		entries := make([]*tensor.Dense, len(batch))
		for i, slice := range batch {
			entries[i] = get(slice)
		}
		return padAndStack(entries, b.stream.conf.MinSliceLength)
	}

	observations, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.Observations })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: observations: %v", err)
	}
	actions, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.Actions })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: actions: %v", err)
	}
	distInputs, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.DistInputs })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: dist inputs: %v", err)
	}
	rewards, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.Rewards })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: rewards: %v", err)
	}
	returns, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.Returns })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: returns: %v", err)
	}
	dones, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.Dones })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: dones: %v", err)
	}
	mask, err := field(
		func(n trajectory.Numeric) *tensor.Dense { return n.Mask })
	if err != nil {
		return trajectory.Numeric{}, fmt.Errorf("next: mask: %v", err)
	}

	return trajectory.Numeric{
		Observations: observations,
		Actions:      actions,
		DistInputs:   distInputs,
		Rewards:      rewards,
		Returns:      returns,
		Dones:        dones,
		Mask:         mask,
	}, nil
}

// padAndStack stacks one batch field along a new leading batch axis.
// Nil entries act as placeholders shaped like the first non-nil
// entry. Entries of differing time-axis lengths are padded with
// trailing zeros up to the next power of two at least as large as the
// longest entry (and at least minLen, if given) before stacking.
//
// padAndStack panics if every entry is nil.
func padAndStack(entries []*tensor.Dense, minLen int) (*tensor.Dense, error) {
	var prototype *tensor.Dense
	for _, entry := range entries {
		if entry != nil {
			prototype = entry
			break
		}
	}
	if prototype == nil {
		panic("padAndStack: all tensors to pad are nil")
	}

	filled := make([]*tensor.Dense, len(entries))
	maxLen, minEntry := 0, 0
	for i, entry := range entries {
		if entry == nil {
			entry = tensorutils.ZerosLike(prototype)
		}
		filled[i] = entry

		rows := tensorutils.Rows(entry)
		if i == 0 || rows > maxLen {
			maxLen = rows
		}
		if i == 0 || rows < minEntry {
			minEntry = rows
		}
	}
	if minLen > 0 {
		maxLen = intutils.Max(maxLen, minLen)
	}

	if maxLen == minEntry { // No padding needed
		return tensorutils.Stack(filled)
	}

	padLen := intutils.NextPowerOfTwo(maxLen)
	for i, entry := range filled {
		filled[i] = tensorutils.PadRows(entry, padLen)
	}
	return tensorutils.Stack(filled)
}
