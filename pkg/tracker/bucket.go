package tracker

import "slices"

// Bucket holds a subset of the tracked values together with a cached lower
// bound. Values stay in insertion order until a caller asks for them sorted.
type Bucket[T any] struct {
	min     T
	values  []T
	sorted  bool
	compare func(a, b T) int
}

// NewBucket creates a bucket holding exactly one value, which is also its
// lower bound.
func NewBucket[T any](value T, compare func(a, b T) int) *Bucket[T] {
	return &Bucket[T]{
		min:     value,
		values:  []T{value},
		sorted:  true,
		compare: compare,
	}
}

// Min returns the cached lower bound.
func (b *Bucket[T]) Min() T {
	return b.min
}

// Len returns the number of values in the bucket.
func (b *Bucket[T]) Len() int {
	return len(b.values)
}

// Append adds a value and marks the bucket unsorted. The lower bound is left
// alone; callers appending a new minimum must follow up with SetMin.
func (b *Bucket[T]) Append(value T) {
	b.values = append(b.values, value)
	b.sorted = false
}

// SetMin overwrites the cached lower bound without checking it.
func (b *Bucket[T]) SetMin(value T) {
	b.min = value
}

// Sorted reports whether the values are currently in ascending order.
func (b *Bucket[T]) Sorted() bool {
	return b.sorted
}

// EnsureSorted sorts the values if they are not sorted already.
func (b *Bucket[T]) EnsureSorted() {
	if b.sorted {
		return
	}
	slices.SortFunc(b.values, b.compare)
	b.sorted = true
}

// At returns the value at index i in the current order. It panics if i is
// out of range.
func (b *Bucket[T]) At(i int) T {
	return b.values[i]
}

// SplitAtMedian partitions the bucket around its median with linear-time
// selection and returns a new bucket holding the upper half. For n values the
// receiver keeps the lower n/2 and the returned bucket gets the remaining
// n-n/2, with the median as its lower bound. Neither half is sorted. The
// bucket must hold at least two values.
func (b *Bucket[T]) SplitAtMedian() *Bucket[T] {
	mid := len(b.values) / 2
	selectNth(b.values, mid, b.compare)

	upper := make([]T, len(b.values)-mid)
	copy(upper, b.values[mid:])

	// Clear the tail so the lower half does not pin values it no longer owns.
	clear(b.values[mid:])
	b.values = b.values[:mid]
	b.sorted = false

	return &Bucket[T]{
		min:     upper[0],
		values:  upper,
		sorted:  false,
		compare: b.compare,
	}
}
