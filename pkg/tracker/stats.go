package tracker

import (
	"errors"
	"fmt"
)

// Stats is a snapshot of the tracker's internal layout, useful for debugging
// and for reporting bucket behavior in benchmarks.
type Stats struct {
	Count         int  `json:"count"`
	Percentile    int  `json:"percentile"`
	TargetRank    int  `json:"target_rank"`
	Buckets       int  `json:"buckets"`
	BucketIndex   int  `json:"bucket_index"`
	BucketOffset  int  `json:"bucket_offset"`
	LargestBucket int  `json:"largest_bucket"`
	MaxBucketSize int  `json:"max_bucket_size"`
	OffsetValid   bool `json:"offset_valid"`
}

// Stats rebalances the tracker and returns a snapshot of its layout.
func (t *Tracker[T]) Stats() Stats {
	s := Stats{
		Count:         t.count,
		Percentile:    t.percentile,
		Buckets:       len(t.buckets),
		MaxBucketSize: t.maxSize,
	}
	if t.count == 0 {
		s.OffsetValid = true
		return s
	}

	t.rebalance()
	s.TargetRank = t.targetPos()
	s.BucketIndex = t.idx
	s.BucketOffset = t.offset
	s.Buckets = len(t.buckets)
	for _, b := range t.buckets {
		s.LargestBucket = max(s.LargestBucket, b.Len())
	}
	s.OffsetValid = t.precedingLen() == t.offset
	return s
}

// VerifyOffset rebalances the tracker and reports whether the cached offset
// equals the number of values in the buckets before the target bucket.
func (t *Tracker[T]) VerifyOffset() bool {
	if t.count == 0 {
		return t.offset == 0
	}
	t.rebalance()
	return t.precedingLen() == t.offset
}

// Check rebalances the tracker and verifies its structural invariants: bounds
// never decrease between adjacent buckets, every bound is the minimum of its
// bucket, every value in a bucket is no greater than any value in the next,
// the cached offset is consistent and the target bucket is within the size
// threshold. It walks every value, so it is meant for tests and verification
// runs only.
func (t *Tracker[T]) Check() error {
	if t.count == 0 {
		if len(t.buckets) != 0 {
			return fmt.Errorf("empty tracker holds %d buckets", len(t.buckets))
		}
		return nil
	}
	t.rebalance()

	var errs []error
	total := 0
	for i, b := range t.buckets {
		total += b.Len()
		if b.Len() == 0 {
			errs = append(errs, fmt.Errorf("bucket %d is empty", i))
			continue
		}

		least, greatest := b.At(0), b.At(0)
		for j := 1; j < b.Len(); j++ {
			v := b.At(j)
			if t.compare(v, least) < 0 {
				least = v
			}
			if t.compare(v, greatest) > 0 {
				greatest = v
			}
		}
		if t.compare(least, b.min) != 0 {
			errs = append(errs, fmt.Errorf("bucket %d: bound %v is not the minimum %v", i, b.min, least))
		}

		if i+1 < len(t.buckets) {
			next := t.buckets[i+1]
			if t.compare(b.min, next.min) > 0 {
				errs = append(errs, fmt.Errorf("bucket %d: bound %v exceeds next bound %v", i, b.min, next.min))
			}
			if t.compare(greatest, next.min) > 0 {
				errs = append(errs, fmt.Errorf("bucket %d: value %v exceeds next bound %v", i, greatest, next.min))
			}
		}
	}

	if total != t.count {
		errs = append(errs, fmt.Errorf("buckets hold %d values, count is %d", total, t.count))
	}
	if got := t.precedingLen(); got != t.offset {
		errs = append(errs, fmt.Errorf("offset %d, buckets before %d hold %d", t.offset, t.idx, got))
	}
	if n := t.buckets[t.idx].Len(); n > t.maxSize {
		errs = append(errs, fmt.Errorf("target bucket %d holds %d values, max %d", t.idx, n, t.maxSize))
	}
	if !t.buckets[t.idx].Sorted() {
		errs = append(errs, fmt.Errorf("target bucket %d is not sorted", t.idx))
	}

	return errors.Join(errs...)
}

func (t *Tracker[T]) precedingLen() int {
	n := 0
	for _, b := range t.buckets[:t.idx] {
		n += b.Len()
	}
	return n
}
