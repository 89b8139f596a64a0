package trajectory

import (
	"fmt"
	"reflect"

	"gorgonia.org/tensor"

	ts "sfneuman.com/gorltask/timestep"
	"sfneuman.com/gorltask/utils/tensorutils"
)

// Numeric is the fixed-shape numeric form of a trajectory or of a
// batch of trajectory slices. Every field has time as its leading
// axis (or batch then time, for batches). Fields that were never set
// on any timestep are nil. The observation axis is one entry longer
// than the others because the trailing open timestep contributes an
// observation without a matching action.
type Numeric struct {
	Observations *tensor.Dense
	Actions      *tensor.Dense
	DistInputs   *tensor.Dense
	Rewards      *tensor.Dense
	Returns      *tensor.Dense
	Dones        *tensor.Dense
	Mask         *tensor.Dense
}

// SliceRows slices every field of n along the time axis. Ranges are
// clamped per field, since the observation axis is longer than the
// others.
func (n Numeric) SliceRows(from, to int) Numeric {
	return Numeric{
		Observations: tensorutils.SliceRows(n.Observations, from, to),
		Actions:      tensorutils.SliceRows(n.Actions, from, to),
		DistInputs:   tensorutils.SliceRows(n.DistInputs, from, to),
		Rewards:      tensorutils.SliceRows(n.Rewards, from, to),
		Returns:      tensorutils.SliceRows(n.Returns, from, to),
		Dones:        tensorutils.SliceRows(n.Dones, from, to),
		Mask:         tensorutils.SliceRows(n.Mask, from, to),
	}
}

// numericCache records the arguments of the last conversion together
// with its result. The cache is valid while the key matches and the
// trajectory has not grown, which is checked against the expected
// observation length instead of intercepting every mutation.
type numericCache struct {
	margin    int
	converter uintptr
	value     Numeric
}

// converterKey identifies a Converter by its code pointer. Two
// distinct closures over the same function literal share a key, so a
// Converter carrying state that changes the produced shapes should be
// passed as the same value on every call.
func converterKey(conv ts.Converter) uintptr {
	return reflect.ValueOf(conv).Pointer()
}

// expectedRows returns the observation length that a conversion with
// the given margin produces. The margin extension only applies when
// there is more than one observation.
func (t *Trajectory) expectedRows(margin int) int {
	if len(t.steps) > 1 && margin > 0 {
		return len(t.steps) + margin - 1
	}
	return len(t.steps)
}

// ToNumeric converts the trajectory to its numeric form, stacking
// every field of every timestep along a new time axis.
//
// If margin > 0, all fields are extended past the natural end of the
// trajectory by margin synthetic entries with mask 0 and done set.
// This makes sure that any fixed-length window of the trajectory
// exposes a terminal entry regardless of where the slice is placed.
// The synthetic observations are zeros shaped like the last real
// observation, and only margin-1 of them are appended since the
// trailing open timestep already contributed an observation. The
// other tensor fields get margin zero entries shaped like their own
// last real value, or stay nil if that value was nil.
//
// A nil conv uses the default timestep.ToNumeric. The result is
// cached per (margin, conv) and reused until the trajectory grows.
func (t *Trajectory) ToNumeric(margin int, conv ts.Converter) (Numeric, error) {
	if conv == nil {
		conv = ts.ToNumeric
	}
	key := converterKey(conv)

	if t.cache != nil && t.cache.margin == margin &&
		t.cache.converter == key && t.cache.value.Observations != nil &&
		tensorutils.Rows(t.cache.value.Observations) == t.expectedRows(margin) {
		return t.cache.value, nil
	}

	var (
		observations []*tensor.Dense
		actions      []*tensor.Dense
		distInputs   []*tensor.Dense
		rewards      []float64
		returns      []float64
		dones        []float64
		masks        []float64
	)
	for _, step := range t.steps {
		n := conv(step)
		observations = append(observations, n.Observation)
		if !step.Closed {
			continue
		}
		actions = append(actions, n.Action)
		distInputs = append(distInputs, n.DistInputs)
		rewards = append(rewards, n.Reward)
		returns = append(returns, n.Return)
		dones = append(dones, n.Done)
		masks = append(masks, n.Mask)
	}

	if len(observations) > 1 && margin > 0 {
		lastObservation := observations[len(observations)-1]
		actionFiller := zeroFiller(actions)
		distInputsFiller := zeroFiller(distInputs)
		for i := 0; i < margin; i++ {
			masks = append(masks, 0)
			dones = append(dones, 1)
			rewards = append(rewards, 0)
			returns = append(returns, 0)
			actions = append(actions, actionFiller)
			distInputs = append(distInputs, distInputsFiller)
		}
		for i := 0; i < margin-1; i++ {
			observations = append(observations,
				tensorutils.ZerosLike(lastObservation))
		}
	}

	value, err := stackFields(observations, actions, distInputs,
		rewards, returns, dones, masks)
	if err != nil {
		return Numeric{}, fmt.Errorf("toNumeric: %v", err)
	}

	t.cache = &numericCache{margin: margin, converter: key, value: value}
	return value, nil
}

// zeroFiller returns the synthetic margin entry for a tensor field: a
// zero tensor shaped like the field's last entry, or nil if that
// entry is nil.
func zeroFiller(entries []*tensor.Dense) *tensor.Dense {
	last := entries[len(entries)-1]
	if last == nil {
		return nil
	}
	return tensorutils.ZerosLike(last)
}

func stackFields(observations, actions, distInputs []*tensor.Dense,
	rewards, returns, dones, masks []float64) (Numeric, error) {
	obs, err := tensorutils.Stack(observations)
	if err != nil {
		return Numeric{}, fmt.Errorf("observations: %v", err)
	}
	acts, err := tensorutils.Stack(actions)
	if err != nil {
		return Numeric{}, fmt.Errorf("actions: %v", err)
	}
	dist, err := tensorutils.Stack(distInputs)
	if err != nil {
		return Numeric{}, fmt.Errorf("dist inputs: %v", err)
	}

	return Numeric{
		Observations: obs,
		Actions:      acts,
		DistInputs:   dist,
		Rewards:      vectorOrNil(rewards),
		Returns:      vectorOrNil(returns),
		Dones:        vectorOrNil(dones),
		Mask:         vectorOrNil(masks),
	}, nil
}

func vectorOrNil(data []float64) *tensor.Dense {
	if len(data) == 0 {
		return nil
	}
	return tensorutils.Vector(data)
}
