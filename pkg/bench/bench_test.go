package bench

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/ptile/pkg/config"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Bench.Sizes = []int{500}
	cfg.Bench.Percentiles = []int{10, 90}
	cfg.Bench.DistributionSize = 400
	cfg.Bench.PatternOps = 600
	cfg.Bench.Samples = 2
	cfg.Verify.Size = 300
	cfg.Verify.Percentiles = []int{1, 50, 99}
	return cfg
}

func TestCases(t *testing.T) {
	cfg := smallConfig()
	r := NewRunner(cfg)

	cases, err := r.Cases()
	require.NoError(t, err)

	// 1 size x 2 percentiles, 6 distributions, 3 patterns.
	require.Len(t, cases, 2+6+3)

	assert.Equal(t, "throughput/size_500/10", cases[0].ID())
	assert.Equal(t, "throughput/size_500/90", cases[1].ID())
	assert.Equal(t, "distributions/uniform/90", cases[2].ID())
	assert.Equal(t, 400, cases[2].Size)

	last := cases[len(cases)-1]
	assert.Equal(t, "get_heavy", last.Pattern)
	assert.Equal(t, 600, last.Ops)
}

func TestCasesSingleGroup(t *testing.T) {
	cfg := smallConfig()
	cfg.Bench.Groups = []string{config.GroupPatterns}

	cases, err := NewRunner(cfg).Cases()
	require.NoError(t, err)
	require.Len(t, cases, 3)
	for _, c := range cases {
		assert.Equal(t, config.GroupPatterns, c.Group)
	}
}

func TestCasesUnknown(t *testing.T) {
	cfg := smallConfig()
	cfg.Bench.Groups = []string{"latency"}
	_, err := NewRunner(cfg).Cases()
	assert.Error(t, err)

	cfg = smallConfig()
	cfg.Bench.Distributions = []string{"zipf"}
	_, err = NewRunner(cfg).Cases()
	assert.Error(t, err)
}

func TestRunStreamingCase(t *testing.T) {
	r := NewRunner(smallConfig())
	c := Case{Group: config.GroupThroughput, Name: "size_500", Percentile: 90, Distribution: "uniform", Size: 500}

	res, err := r.RunCase(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Samples)
	assert.Equal(t, 500, res.Inserts)
	assert.Equal(t, 500, res.Gets)
	assert.Greater(t, res.NsPerOp, 0.0)
	assert.GreaterOrEqual(t, res.StdDevNs, 0.0)
	assert.Greater(t, res.MBPerSec, 0.0)
	assert.Greater(t, res.Buckets, 1)
	assert.Greater(t, res.LargestBucket, 0)
	assert.Equal(t, uint64(500), res.Distinct)
	assert.NotEmpty(t, res.Digest)
}

func TestRunPatternCase(t *testing.T) {
	r := NewRunner(smallConfig())
	c := Case{
		Group: config.GroupPatterns, Name: "insert_heavy", Percentile: 90,
		Distribution: "uniform", Size: 550, Pattern: "insert_heavy", Ops: 550,
	}

	res, err := r.RunCase(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, 550, res.Inserts+res.Gets)
	assert.Equal(t, 500, res.Inserts)
	assert.Equal(t, 50, res.Gets)
}

func TestRunCaseDeterministic(t *testing.T) {
	r := NewRunner(smallConfig())
	c := Case{Group: config.GroupDistributions, Name: "skewed", Percentile: 90, Distribution: "skewed", Size: 400}

	a, err := r.RunCase(context.Background(), c)
	require.NoError(t, err)
	b, err := r.RunCase(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, a.Digest, b.Digest)
	assert.Equal(t, a.Final, b.Final)
	assert.Equal(t, a.Buckets, b.Buckets)
}

func TestRunCaseDescendingFinal(t *testing.T) {
	r := NewRunner(smallConfig())
	c := Case{Group: config.GroupDistributions, Name: "descending", Percentile: 90, Distribution: "descending", Size: 400}

	res, err := r.RunCase(context.Background(), c)
	require.NoError(t, err)

	// 0..399 at p90 is rank 360.
	assert.Equal(t, int64(360), res.Final)
}

func TestRun(t *testing.T) {
	cfg := smallConfig()
	cfg.Bench.Workers = 3

	var mu sync.Mutex
	seen := 0
	r := NewRunner(cfg, WithProgress(func(Result) {
		mu.Lock()
		seen++
		mu.Unlock()
	}))

	results, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 11)
	assert.Equal(t, 11, seen)

	cases, err := r.Cases()
	require.NoError(t, err)
	for i, res := range results {
		assert.Equal(t, cases[i].ID(), res.ID(), "results keep case order")
	}
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewRunner(smallConfig()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompare(t *testing.T) {
	mk := func(name string, ns float64, digest string) Result {
		return Result{
			Case:    Case{Group: config.GroupDistributions, Name: name, Percentile: 90},
			NsPerOp: ns,
			Digest:  digest,
		}
	}
	baseline := []Result{mk("uniform", 100, "a"), mk("normal", 50, "b")}
	current := []Result{mk("uniform", 120, "a"), mk("normal", 40, "c"), mk("skewed", 10, "d")}

	deltas := Compare(baseline, current)
	require.Len(t, deltas, 3)

	assert.Equal(t, "distributions/uniform/90", deltas[0].ID)
	assert.InDelta(t, 0.2, deltas[0].Change, 1e-9)
	assert.False(t, deltas[0].DigestChanged)

	assert.InDelta(t, -0.2, deltas[1].Change, 1e-9)
	assert.True(t, deltas[1].DigestChanged)

	assert.True(t, deltas[2].New)

	reg := Regressions(deltas, 0.1)
	require.Len(t, reg, 1)
	assert.Equal(t, "distributions/uniform/90", reg[0].ID)
}

func TestVerifyEager(t *testing.T) {
	cfg := smallConfig()
	cfg.Tracker.MaxBucketSize = 8

	var mu sync.Mutex
	seen := 0
	v := NewVerifier(cfg, func(Verification) {
		mu.Lock()
		seen++
		mu.Unlock()
	})
	assert.Equal(t, 6*3, v.Total())

	results, err := v.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 18)
	assert.Equal(t, 18, seen)

	for _, res := range results {
		assert.True(t, res.OK(), "%s p%d: %+v", res.Distribution, res.Percentile, res)
		assert.Equal(t, 300, res.Queries)
		assert.Equal(t, 300, res.Values)
	}
}

func TestVerifyDeferred(t *testing.T) {
	cfg := smallConfig()
	cfg.Verify.Deferred = true

	results, err := NewVerifier(cfg, nil).Run(context.Background())
	require.NoError(t, err)
	for _, res := range results {
		assert.True(t, res.OK(), "%s p%d: %+v", res.Distribution, res.Percentile, res)
		assert.Equal(t, 1, res.Queries)
	}
}

func TestVerificationOK(t *testing.T) {
	assert.True(t, Verification{}.OK())
	assert.False(t, Verification{Mismatches: 1}.OK())
	assert.False(t, Verification{Violation: "offset"}.OK())
}
