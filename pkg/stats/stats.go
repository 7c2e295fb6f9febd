// Package stats provides exact percentile helpers used as a reference for the
// streaming tracker.
package stats

import (
	"cmp"
	"slices"
)

// Rank returns the zero-based rank of the p-th percentile in n values.
func Rank(n, p int) int {
	return (p * n) / 100
}

// Percentile returns the p-th percentile of a sorted slice.
// The slice must already be sorted in ascending order.
// Returns the zero value if the slice is empty.
func Percentile[T any](sorted []T, p int) T {
	if len(sorted) == 0 {
		var zero T
		return zero
	}
	idx := Rank(len(sorted), p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Exact keeps every value in sorted order. It is the naive oracle the
// streaming tracker is checked against: O(n) per insert, O(1) per query.
type Exact[T cmp.Ordered] struct {
	values []T
	p      int
}

// NewExact creates an exact percentile oracle for p.
func NewExact[T cmp.Ordered](p int) *Exact[T] {
	return &Exact[T]{p: p}
}

// Insert adds a value.
func (e *Exact[T]) Insert(v T) {
	i, _ := slices.BinarySearch(e.values, v)
	e.values = slices.Insert(e.values, i, v)
}

// Len returns the number of values inserted.
func (e *Exact[T]) Len() int {
	return len(e.values)
}

// Percentile returns the exact percentile and false if nothing was inserted.
func (e *Exact[T]) Percentile() (T, bool) {
	if len(e.values) == 0 {
		var zero T
		return zero, false
	}
	return Percentile(e.values, e.p), true
}
