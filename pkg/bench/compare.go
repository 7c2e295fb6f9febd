package bench

// Delta is the change of one case against a saved baseline.
type Delta struct {
	ID       string  `json:"id"`
	Baseline float64 `json:"baseline_ns_per_op"`
	Current  float64 `json:"current_ns_per_op"`
	// Change is relative: 0.1 means ten percent slower than the baseline.
	Change float64 `json:"change"`
	// New is set when the baseline has no matching case.
	New bool `json:"new,omitempty"`
	// DigestChanged is set when the query results differ from the baseline,
	// which means the tracker answered differently on identical input.
	DigestChanged bool `json:"digest_changed,omitempty"`
}

// Compare matches current results against baseline by case ID. The result
// follows the order of current.
func Compare(baseline, current []Result) []Delta {
	byID := make(map[string]Result, len(baseline))
	for _, r := range baseline {
		byID[r.ID()] = r
	}

	deltas := make([]Delta, 0, len(current))
	for _, cur := range current {
		d := Delta{ID: cur.ID(), Current: cur.NsPerOp}
		base, ok := byID[cur.ID()]
		if !ok {
			d.New = true
			deltas = append(deltas, d)
			continue
		}
		d.Baseline = base.NsPerOp
		if base.NsPerOp > 0 {
			d.Change = (cur.NsPerOp - base.NsPerOp) / base.NsPerOp
		}
		d.DigestChanged = base.Digest != cur.Digest
		deltas = append(deltas, d)
	}
	return deltas
}

// Regressions returns the deltas slower than threshold.
func Regressions(deltas []Delta, threshold float64) []Delta {
	var out []Delta
	for _, d := range deltas {
		if !d.New && d.Change > threshold {
			out = append(out, d)
		}
	}
	return out
}
