package tracker

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

// DefaultMaxBucketSize is the size above which the bucket holding the target
// rank is split. It was tuned by timing runs and matters little unless it is
// pathological.
const DefaultMaxBucketSize = 64

var (
	// ErrInvalidPercentile is returned when the percentile is outside [1, 99].
	ErrInvalidPercentile = errors.New("percentile must be between 1 and 99 inclusive")

	// ErrInvalidBucketSize is returned when the split threshold is below 2.
	ErrInvalidBucketSize = errors.New("max bucket size must be at least 2")

	// ErrEmpty is returned when the percentile is queried before any insert.
	ErrEmpty = errors.New("no values have been inserted")
)

// Option configures a Tracker.
type Option func(*options)

type options struct {
	maxBucketSize int
}

// WithMaxBucketSize sets the split threshold for the target bucket.
func WithMaxBucketSize(n int) Option {
	return func(o *options) {
		o.maxBucketSize = n
	}
}

// Tracker maintains a running estimate of a single fixed percentile over a
// stream of values.
//
// Inserted values are routed into buckets ordered by lower bound. Only the
// bucket containing the target rank is ever sorted, and it is split when it
// grows past the size threshold. All of that work is deferred until the next
// call to Percentile.
//
// A Tracker is not safe for concurrent use. Percentile mutates internal state,
// so concurrent Insert and Percentile calls need external locking.
type Tracker[T any] struct {
	buckets    []*Bucket[T]
	compare    func(a, b T) int
	count      int
	percentile int
	maxSize    int

	// idx and offset locate the bucket holding the target rank and the
	// number of values in all buckets before it. Valid only when !dirty.
	idx    int
	offset int
	dirty  bool
}

// New creates a tracker for the given percentile over a naturally ordered
// type. Values are compared with cmp.Compare, so floating point NaN sorts
// before every other value.
func New[T cmp.Ordered](percentile int, opts ...Option) (*Tracker[T], error) {
	return NewFunc(percentile, cmp.Compare[T], opts...)
}

// NewFunc creates a tracker ordered by compare, which must define a total
// order: negative when a < b, zero when equal, positive when a > b.
func NewFunc[T any](percentile int, compare func(a, b T) int, opts ...Option) (*Tracker[T], error) {
	if percentile < 1 || percentile > 99 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidPercentile, percentile)
	}

	o := options{maxBucketSize: DefaultMaxBucketSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.maxBucketSize < 2 {
		return nil, fmt.Errorf("%w, got %d", ErrInvalidBucketSize, o.maxBucketSize)
	}

	return &Tracker[T]{
		compare:    compare,
		percentile: percentile,
		maxSize:    o.maxBucketSize,
	}, nil
}

// Insert adds a value. It only routes the value into a bucket; sorting,
// splitting and pointer maintenance happen on the next Percentile call.
func (t *Tracker[T]) Insert(value T) {
	if len(t.buckets) == 0 {
		t.buckets = append(t.buckets, NewBucket(value, t.compare))
		t.count++
		return
	}

	i, found := slices.BinarySearchFunc(t.buckets, value, func(b *Bucket[T], v T) int {
		return t.compare(b.min, v)
	})

	var into int
	switch {
	case found:
		into = i
		t.buckets[into].Append(value)
	case i == 0:
		// Below every bound: the first bucket takes it as its new minimum.
		into = 0
		t.buckets[into].Append(value)
		t.buckets[into].SetMin(value)
	case i == len(t.buckets):
		into = i - 1
		t.buckets[into].Append(value)
	case i > 0 && i < len(t.buckets):
		into = i - 1
		t.buckets[into].Append(value)
	default:
		panic(fmt.Sprintf("tracker: routing reached position %d of %d buckets", i, len(t.buckets)))
	}

	t.count++
	if into < t.idx {
		t.offset++
	}
	t.dirty = true
}

// Percentile returns the value at rank percentile*Len()/100 of all inserted
// values in ascending order. It returns ErrEmpty before the first insert.
func (t *Tracker[T]) Percentile() (T, error) {
	if t.count == 0 {
		var zero T
		return zero, ErrEmpty
	}
	t.rebalance()
	return t.buckets[t.idx].At(t.targetPos() - t.offset), nil
}

// Len returns the number of values inserted so far.
func (t *Tracker[T]) Len() int {
	return t.count
}

// Target returns the percentile the tracker was created for.
func (t *Tracker[T]) Target() int {
	return t.percentile
}

// Buckets returns the current number of buckets.
func (t *Tracker[T]) Buckets() int {
	return len(t.buckets)
}

func (t *Tracker[T]) targetPos() int {
	return t.percentile * t.count / 100
}

// rebalance is the single place where deferred work happens. It re-anchors
// the rank pointer, splits the target bucket until it is within bound, and
// sorts it.
func (t *Tracker[T]) rebalance() {
	if !t.dirty {
		return
	}

	pos := t.targetPos()
	for pos-t.offset >= t.buckets[t.idx].Len() {
		t.offset += t.buckets[t.idx].Len()
		t.idx++
		if t.idx >= len(t.buckets) {
			panic(fmt.Sprintf("tracker: rank %d is past the last of %d buckets", pos, len(t.buckets)))
		}
	}
	for pos < t.offset {
		t.idx--
		if t.idx < 0 {
			panic(fmt.Sprintf("tracker: rank %d is before the first bucket", pos))
		}
		t.offset -= t.buckets[t.idx].Len()
	}

	for t.buckets[t.idx].Len() > t.maxSize {
		upper := t.buckets[t.idx].SplitAtMedian()
		t.buckets = slices.Insert(t.buckets, t.idx+1, upper)

		if lower := t.buckets[t.idx].Len(); pos-t.offset >= lower {
			t.offset += lower
			t.idx++
		}
	}

	t.buckets[t.idx].EnsureSorted()
	t.dirty = false
}
