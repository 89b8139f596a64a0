// Package tensorutils provides utilities for working with tensors
// whose leading axis is a time or batch axis.
package tensorutils

import (
	"fmt"

	"gorgonia.org/tensor"
)

// ZerosLike returns a new zero tensor with the same shape as t
func ZerosLike(t *tensor.Dense) *tensor.Dense {
	shape := append([]int{}, t.Shape()...)
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(make([]float64, t.Shape().TotalSize())),
	)
}

// Vector returns a 1-dimensional tensor backed by data. The backing
// slice is not copied.
func Vector(data []float64) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(len(data)),
		tensor.WithBacking(data),
	)
}

// Rows returns the size of the leading axis of t
func Rows(t *tensor.Dense) int {
	return t.Shape()[0]
}

// rowSize returns the number of elements in a single entry along the
// leading axis of t
func rowSize(t *tensor.Dense) int {
	size := 1
	for _, dim := range t.Shape()[1:] {
		size *= dim
	}
	return size
}

// Stack stacks tensors of equal shape along a new leading axis.
// Stacking n tensors of shape S results in a tensor of shape (n,) + S.
// Nil entries are replaced by zero tensors shaped like the first
// non-nil entry. If ts is empty or all entries are nil, Stack returns
// a nil tensor.
func Stack(ts []*tensor.Dense) (*tensor.Dense, error) {
	var prototype *tensor.Dense
	for _, t := range ts {
		if t != nil {
			prototype = t
			break
		}
	}
	if prototype == nil {
		return nil, nil
	}

	size := prototype.Shape().TotalSize()
	backing := make([]float64, len(ts)*size)
	for i, t := range ts {
		if t == nil {
			continue // Leave the zero filler in place
		}
		if !t.Shape().Eq(prototype.Shape()) {
			return nil, fmt.Errorf("stack: tensor %d has shape %v, want %v",
				i, t.Shape(), prototype.Shape())
		}
		copy(backing[i*size:(i+1)*size], t.Data().([]float64))
	}

	shape := append([]int{len(ts)}, prototype.Shape()...)
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(backing),
	), nil
}

// SliceRows returns a copy of the entries from (inclusive) to
// (exclusive) along the leading axis of t. The range is clamped to
// the available entries. A nil t stays nil, and an empty range
// results in a nil tensor.
func SliceRows(t *tensor.Dense, from, to int) *tensor.Dense {
	if t == nil {
		return nil
	}
	rows := Rows(t)
	if from < 0 {
		from = 0
	}
	if to > rows {
		to = rows
	}
	if from >= to {
		return nil
	}

	size := rowSize(t)
	backing := make([]float64, (to-from)*size)
	copy(backing, t.Data().([]float64)[from*size:to*size])

	shape := append([]int{to - from}, t.Shape()[1:]...)
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(backing),
	)
}

// PadRows appends zero entries to the leading axis of t until it has
// rows entries. If t already has at least rows entries, a plain copy
// is returned.
func PadRows(t *tensor.Dense, rows int) *tensor.Dense {
	existing := Rows(t)
	if rows < existing {
		rows = existing
	}

	size := rowSize(t)
	backing := make([]float64, rows*size)
	copy(backing, t.Data().([]float64))

	shape := append([]int{rows}, t.Shape()[1:]...)
	return tensor.New(
		tensor.WithShape(shape...),
		tensor.WithBacking(backing),
	)
}
