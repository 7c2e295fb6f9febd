// Package bench runs synthetic workloads through the percentile tracker and
// reports per-operation cost, throughput and bucket behavior.
package bench

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"github.com/panbanda/ptile/pkg/config"
	"github.com/panbanda/ptile/pkg/tracker"
	"github.com/panbanda/ptile/pkg/workload"
)

// ErrNondeterministic is returned when two samples of the same case produce
// different query results.
var ErrNondeterministic = errors.New("samples produced different results")

// Case is one benchmark workload.
type Case struct {
	Group        string `json:"group"`
	Name         string `json:"name"`
	Percentile   int    `json:"percentile"`
	Distribution string `json:"distribution"`
	Size         int    `json:"size"`
	// Pattern is empty for streaming cases, which query after every insert.
	Pattern string `json:"pattern,omitempty"`
	Ops     int    `json:"ops,omitempty"`
}

// ID identifies a case across runs.
func (c Case) ID() string {
	return c.Group + "/" + c.Name + "/" + strconv.Itoa(c.Percentile)
}

// Result is the measured outcome of one case.
type Result struct {
	Case

	Samples       int     `json:"samples"`
	Inserts       int     `json:"inserts"`
	Gets          int     `json:"gets"`
	NsPerOp       float64 `json:"ns_per_op"`
	StdDevNs      float64 `json:"stddev_ns"`
	MBPerSec      float64 `json:"mb_per_sec"`
	Buckets       int     `json:"buckets"`
	LargestBucket int     `json:"largest_bucket"`
	Distinct      uint64  `json:"distinct"`
	Final         int64   `json:"final"`
	Digest        string  `json:"digest"`
}

// Runner executes the cases described by a config.
type Runner struct {
	bench      config.BenchConfig
	percentile int
	bucketSize int
	onResult   func(Result)
}

// Option configures a Runner.
type Option func(*Runner)

// WithProgress calls fn after each case finishes. fn may be called from
// several goroutines at once when more than one worker is configured.
func WithProgress(fn func(Result)) Option {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// NewRunner creates a runner for cfg's bench and tracker sections.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		bench:      cfg.Bench,
		percentile: cfg.Tracker.Percentile,
		bucketSize: cfg.Tracker.MaxBucketSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cases expands the configured groups into concrete cases, in group order.
func (r *Runner) Cases() ([]Case, error) {
	var cases []Case
	for _, group := range r.bench.Groups {
		switch group {
		case config.GroupThroughput:
			for _, size := range r.bench.Sizes {
				for _, p := range r.bench.Percentiles {
					cases = append(cases, Case{
						Group:        group,
						Name:         fmt.Sprintf("size_%d", size),
						Percentile:   p,
						Distribution: "uniform",
						Size:         size,
					})
				}
			}
		case config.GroupDistributions:
			for _, name := range r.bench.Distributions {
				if _, err := workload.Lookup(name); err != nil {
					return nil, err
				}
				cases = append(cases, Case{
					Group:        group,
					Name:         name,
					Percentile:   r.percentile,
					Distribution: name,
					Size:         r.bench.DistributionSize,
				})
			}
		case config.GroupPatterns:
			for _, name := range r.bench.Patterns {
				if _, err := workload.LookupPattern(name); err != nil {
					return nil, err
				}
				cases = append(cases, Case{
					Group:        group,
					Name:         name,
					Percentile:   r.percentile,
					Distribution: "uniform",
					Size:         r.bench.PatternOps,
					Pattern:      name,
					Ops:          r.bench.PatternOps,
				})
			}
		default:
			return nil, fmt.Errorf("unknown benchmark group %q", group)
		}
	}
	return cases, nil
}

// Run executes every case and returns results in case order. Cases run on
// up to Workers goroutines, each with its own trackers.
func (r *Runner) Run(ctx context.Context) ([]Result, error) {
	cases, err := r.Cases()
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return nil, nil
	}

	workers := r.bench.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]Result, len(cases))
	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for i, c := range cases {
		p.Go(func(ctx context.Context) error {
			res, err := r.RunCase(ctx, c)
			if err != nil {
				return fmt.Errorf("%s: %w", c.ID(), err)
			}
			results[i] = res
			if r.onResult != nil {
				r.onResult(res)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// RunCase measures a single case over the configured number of samples.
// Each sample builds a fresh tracker over the same pre-generated values.
func (r *Runner) RunCase(ctx context.Context, c Case) (Result, error) {
	dist, err := workload.Lookup(c.Distribution)
	if err != nil {
		return Result{}, err
	}
	var pattern *workload.Pattern
	if c.Pattern != "" {
		pt, err := workload.LookupPattern(c.Pattern)
		if err != nil {
			return Result{}, err
		}
		pattern = &pt
	}

	values := dist.Generate(r.bench.Seed, c.Size)
	samples := max(r.bench.Samples, 1)
	res := Result{
		Case:     c,
		Samples:  samples,
		Distinct: workload.Distinct(values),
	}

	perOp := make([]float64, 0, samples)
	perSample := make([]float64, 0, samples)

	for s := 0; s < samples; s++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		t, err := tracker.New[int64](c.Percentile, tracker.WithMaxBucketSize(r.bucketSize))
		if err != nil {
			return Result{}, err
		}

		digest := xxhash.New()
		var buf [8]byte
		var last int64
		sink := func(v int64) {
			binary.LittleEndian.PutUint64(buf[:], uint64(v))
			digest.Write(buf[:])
			last = v
		}

		start := time.Now()
		var counts workload.Counts
		if pattern != nil {
			counts = pattern.Run(t, values, c.Ops, sink)
		} else {
			counts = workload.Stream(t, values, sink)
		}
		elapsed := time.Since(start)

		sum := strconv.FormatUint(digest.Sum64(), 16)
		if s == 0 {
			st := t.Stats()
			res.Inserts = counts.Inserts
			res.Gets = counts.Gets
			res.Buckets = st.Buckets
			res.LargestBucket = st.LargestBucket
			res.Final = last
			res.Digest = sum
		} else if sum != res.Digest {
			return Result{}, fmt.Errorf("%w: sample %d digest %s, want %s", ErrNondeterministic, s, sum, res.Digest)
		}

		ops := max(counts.Ops(), 1)
		perOp = append(perOp, float64(elapsed.Nanoseconds())/float64(ops))
		perSample = append(perSample, elapsed.Seconds())
	}

	res.NsPerOp, res.StdDevNs = meanStdDev(perOp)
	meanSeconds := stat.Mean(perSample, nil)
	if meanSeconds > 0 {
		res.MBPerSec = float64(res.Inserts*workload.BytesPerValue) / meanSeconds / 1e6
	}
	return res, nil
}

// meanStdDev is stat.MeanStdDev with a zero deviation for a single sample.
func meanStdDev(xs []float64) (mean, std float64) {
	if len(xs) == 1 {
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}
