package tracker

// selectNth reorders values so that values[k] holds the element that would be
// at position k in ascending order, every element before it compares <= and
// every element after it compares >=. Expected O(n).
//
// The partition is three-way so runs of equal keys are settled in a single
// pass instead of degrading to quadratic behavior.
func selectNth[T any](values []T, k int, compare func(a, b T) int) {
	lo, hi := 0, len(values)-1
	for lo < hi {
		pivot := values[lo+(hi-lo)/2]
		lt, gt := partition3(values, lo, hi, pivot, compare)
		switch {
		case k < lt:
			hi = lt - 1
		case k > gt:
			lo = gt + 1
		default:
			return
		}
	}
}

// partition3 rearranges values[lo:hi+1] into [< pivot][== pivot][> pivot] and
// returns the bounds of the middle run.
func partition3[T any](values []T, lo, hi int, pivot T, compare func(a, b T) int) (lt, gt int) {
	lt, i, gt := lo, lo, hi
	for i <= gt {
		switch c := compare(values[i], pivot); {
		case c < 0:
			values[lt], values[i] = values[i], values[lt]
			lt++
			i++
		case c > 0:
			values[i], values[gt] = values[gt], values[i]
			gt--
		default:
			i++
		}
	}
	return lt, gt
}
