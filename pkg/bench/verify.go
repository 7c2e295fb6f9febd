package bench

import (
	"context"
	"fmt"
	"runtime"

	"github.com/sourcegraph/conc/pool"

	"github.com/panbanda/ptile/pkg/config"
	"github.com/panbanda/ptile/pkg/stats"
	"github.com/panbanda/ptile/pkg/tracker"
	"github.com/panbanda/ptile/pkg/workload"
)

// Mismatch is the first query where the tracker disagreed with the oracle.
type Mismatch struct {
	Index int   `json:"index"`
	Got   int64 `json:"got"`
	Want  int64 `json:"want"`
}

// Verification is the outcome of checking one distribution at one percentile.
type Verification struct {
	Distribution string    `json:"distribution"`
	Percentile   int       `json:"percentile"`
	Values       int       `json:"values"`
	Queries      int       `json:"queries"`
	Mismatches   int       `json:"mismatches"`
	First        *Mismatch `json:"first_mismatch,omitempty"`
	Violation    string    `json:"violation,omitempty"`
	Buckets      int       `json:"buckets"`
}

// OK reports whether the tracker matched the oracle and kept its invariants.
func (v Verification) OK() bool {
	return v.Mismatches == 0 && v.Violation == ""
}

// Verifier runs trackers side by side with the exact oracle.
type Verifier struct {
	cfg        config.VerifyConfig
	bucketSize int
	onResult   func(Verification)
}

// NewVerifier creates a verifier for cfg's verify and tracker sections.
func NewVerifier(cfg *config.Config, onResult func(Verification)) *Verifier {
	return &Verifier{
		cfg:        cfg.Verify,
		bucketSize: cfg.Tracker.MaxBucketSize,
		onResult:   onResult,
	}
}

// Total returns the number of verifications Run performs.
func (v *Verifier) Total() int {
	return len(v.cfg.Distributions) * len(v.cfg.Percentiles)
}

// Run checks every configured distribution at every configured percentile.
func (v *Verifier) Run(ctx context.Context) ([]Verification, error) {
	type job struct {
		dist workload.Distribution
		p    int
	}
	var jobs []job
	for _, name := range v.cfg.Distributions {
		d, err := workload.Lookup(name)
		if err != nil {
			return nil, err
		}
		for _, p := range v.cfg.Percentiles {
			jobs = append(jobs, job{dist: d, p: p})
		}
	}

	results := make([]Verification, len(jobs))
	p := pool.New().WithMaxGoroutines(runtime.GOMAXPROCS(0)).WithContext(ctx).WithCancelOnError()
	for i, j := range jobs {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			values := j.dist.Generate(v.cfg.Seed, v.cfg.Size)
			res, err := v.check(j.dist.Name, j.p, values)
			if err != nil {
				return err
			}
			results[i] = res
			if v.onResult != nil {
				v.onResult(res)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// check feeds values to a tracker and the oracle. In eager mode every insert
// is followed by a query on both; in deferred mode only the final state is
// compared, which exercises long runs of unvalidated inserts.
func (v *Verifier) check(name string, p int, values []int64) (Verification, error) {
	t, err := tracker.New[int64](p, tracker.WithMaxBucketSize(v.bucketSize))
	if err != nil {
		return Verification{}, err
	}
	oracle := stats.NewExact[int64](p)
	res := Verification{Distribution: name, Percentile: p, Values: len(values)}

	compare := func(i int) {
		got, err := t.Percentile()
		if err != nil {
			res.Violation = err.Error()
			return
		}
		want, _ := oracle.Percentile()
		res.Queries++
		if got != want {
			res.Mismatches++
			if res.First == nil {
				res.First = &Mismatch{Index: i, Got: got, Want: want}
			}
		}
	}

	for i, x := range values {
		t.Insert(x)
		oracle.Insert(x)
		if !v.cfg.Deferred {
			compare(i)
			if !t.VerifyOffset() && res.Violation == "" {
				res.Violation = fmt.Sprintf("bucket offset inconsistent after insert %d", i)
			}
		}
	}
	if v.cfg.Deferred && len(values) > 0 {
		compare(len(values) - 1)
	}

	if err := t.Check(); err != nil && res.Violation == "" {
		res.Violation = err.Error()
	}
	res.Buckets = t.Buckets()
	return res, nil
}
