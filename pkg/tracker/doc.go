// Package tracker provides a streaming percentile tracker.
//
// A Tracker partitions inserted values into buckets ordered by lower bound.
// Inserting routes a value with a binary search over the bucket bounds and
// does nothing else. Querying lazily walks a cached pointer to the bucket
// holding the target rank, splits that bucket around its median while it is
// larger than the size threshold, and sorts only that bucket.
//
// The reported value is the element at rank floor(p*n/100) of the n inserted
// values, with duplicates counted individually. No interpolation is done.
//
//	t, err := tracker.New[int64](90)
//	if err != nil {
//		return err
//	}
//	for _, v := range latencies {
//		t.Insert(v)
//	}
//	p90, err := t.Percentile()
package tracker
