// Package workload generates deterministic synthetic value streams and usage
// patterns for exercising a percentile tracker.
package workload

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrUnknownDistribution is returned when a distribution name is not registered.
var ErrUnknownDistribution = errors.New("unknown distribution")

// BytesPerValue is the payload size of one generated value, used for
// throughput figures.
const BytesPerValue = 8

// NewRand returns a ChaCha8-backed generator for seed. The same seed always
// yields the same stream.
func NewRand(seed uint64) *rand.Rand {
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:], seed)
	return rand.New(rand.NewChaCha8(key))
}

// Distribution is a named value generator.
type Distribution struct {
	Name        string
	Description string
	generate    func(rng *rand.Rand, n int) []int64
}

// Generate returns n values drawn from the distribution with the given seed.
func (d Distribution) Generate(seed uint64, n int) []int64 {
	return d.generate(NewRand(seed), n)
}

var distributions = []Distribution{
	{
		Name:        "uniform",
		Description: "uniform over the full int64 range",
		generate: func(rng *rand.Rand, n int) []int64 {
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(rng.Uint64())
			}
			return out
		},
	},
	{
		Name:        "normal",
		Description: "normal, mean 0, standard deviation 1000",
		generate: func(rng *rand.Rand, n int) []int64 {
			return fromQuantile(rng, n, distuv.Normal{Mu: 0, Sigma: 1000}.Quantile)
		},
	},
	{
		Name:        "lognormal",
		Description: "log-normal, latency shaped with a long right tail",
		generate: func(rng *rand.Rand, n int) []int64 {
			return fromQuantile(rng, n, distuv.LogNormal{Mu: 6, Sigma: 1}.Quantile)
		},
	},
	{
		Name:        "skewed",
		Description: "right-skewed in [0, 1000), heavy duplicates",
		generate: func(rng *rand.Rand, n int) []int64 {
			out := make([]int64, n)
			for i := range out {
				x := rng.Float64()
				out[i] = int64(x * x * 1000)
			}
			return out
		},
	},
	{
		Name:        "ascending",
		Description: "0, 1, 2, ... n-1",
		generate: func(_ *rand.Rand, n int) []int64 {
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(i)
			}
			return out
		},
	},
	{
		Name:        "descending",
		Description: "n-1, n-2, ... 0",
		generate: func(_ *rand.Rand, n int) []int64 {
			out := make([]int64, n)
			for i := range out {
				out[i] = int64(n - 1 - i)
			}
			return out
		},
	},
}

// fromQuantile draws n values by inverse transform sampling. Uniform draws of
// exactly 0 are skipped since the quantile there is infinite.
func fromQuantile(rng *rand.Rand, n int, quantile func(float64) float64) []int64 {
	out := make([]int64, n)
	for i := range out {
		u := rng.Float64()
		for u == 0 {
			u = rng.Float64()
		}
		out[i] = int64(math.Round(quantile(u)))
	}
	return out
}

// Distributions returns every registered distribution in a stable order.
func Distributions() []Distribution {
	out := make([]Distribution, len(distributions))
	copy(out, distributions)
	return out
}

// DistributionNames returns the names of every registered distribution.
func DistributionNames() []string {
	names := make([]string, len(distributions))
	for i, d := range distributions {
		names[i] = d.Name
	}
	return names
}

// Lookup finds a distribution by name.
func Lookup(name string) (Distribution, error) {
	for _, d := range distributions {
		if d.Name == name {
			return d, nil
		}
	}
	return Distribution{}, fmt.Errorf("%w: %q", ErrUnknownDistribution, name)
}

// Distinct counts the distinct values in a stream.
func Distinct(values []int64) uint64 {
	bm := roaring64.New()
	for _, v := range values {
		bm.Add(uint64(v))
	}
	return bm.GetCardinality()
}
