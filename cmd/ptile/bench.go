package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/ptile/internal/cache"
	"github.com/panbanda/ptile/internal/output"
	"github.com/panbanda/ptile/internal/progress"
	"github.com/panbanda/ptile/pkg/bench"
	"github.com/panbanda/ptile/pkg/config"
)

func benchCmd() *cli.Command {
	return &cli.Command{
		Name:    "bench",
		Aliases: []string{"b"},
		Usage:   "Benchmark the tracker on synthetic workloads",
		Description: `Runs the throughput, distribution and usage pattern groups. Every case
queries after each insert (or follows its pattern) on a fresh tracker per
sample, from values generated with a fixed seed.`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "group",
				Aliases: []string{"g"},
				Usage:   "Groups to run: throughput, distributions, patterns (default from config)",
			},
			&cli.IntFlag{
				Name:  "samples",
				Usage: "Samples per case (default from config)",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Cases to run in parallel (default from config)",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for generated values (default from config)",
			},
			&cli.BoolFlag{
				Name:  "save",
				Usage: "Save results as a baseline",
			},
			&cli.BoolFlag{
				Name:  "compare",
				Usage: "Compare results against the saved baseline",
			},
			&cli.StringFlag{
				Name:  "baseline",
				Value: "default",
				Usage: "Baseline name for --save and --compare",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Value: 0.05,
				Usage: "Relative change treated as a regression or improvement",
			},
		},
		Action: runBenchCmd,
	}
}

// baselineKey is what makes two runs comparable. Samples and workers are
// left out since they do not change what is measured.
type baselineKey struct {
	Tracker          config.TrackerConfig `json:"tracker"`
	Groups           []string             `json:"groups"`
	Sizes            []int                `json:"sizes"`
	Percentiles      []int                `json:"percentiles"`
	Distributions    []string             `json:"distributions"`
	DistributionSize int                  `json:"distribution_size"`
	Patterns         []string             `json:"patterns"`
	PatternOps       int                  `json:"pattern_ops"`
	Seed             uint64               `json:"seed"`
}

func fingerprint(cfg *config.Config) (string, error) {
	return cache.Fingerprint(baselineKey{
		Tracker:          cfg.Tracker,
		Groups:           cfg.Bench.Groups,
		Sizes:            cfg.Bench.Sizes,
		Percentiles:      cfg.Bench.Percentiles,
		Distributions:    cfg.Bench.Distributions,
		DistributionSize: cfg.Bench.DistributionSize,
		Patterns:         cfg.Bench.Patterns,
		PatternOps:       cfg.Bench.PatternOps,
		Seed:             cfg.Bench.Seed,
	})
}

func baselineCacheKey(name string) string {
	return "bench/baseline/" + name
}

// benchReport is the serialized form of a bench run.
type benchReport struct {
	Results []bench.Result `json:"results"`
	Deltas  []bench.Delta  `json:"deltas,omitempty"`
}

func runBenchCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("group") {
		cfg.Bench.Groups = c.StringSlice("group")
	}
	if c.IsSet("samples") {
		cfg.Bench.Samples = c.Int("samples")
	}
	if c.IsSet("workers") {
		cfg.Bench.Workers = c.Int("workers")
	}
	if c.IsSet("seed") {
		cfg.Bench.Seed = c.Uint64("seed")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid bench settings: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	store, err := openCache(cfg)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	key, err := fingerprint(cfg)
	if err != nil {
		return err
	}
	name := c.String("baseline")

	var baseline []bench.Result
	if c.Bool("compare") {
		baseline, err = loadBaseline(store, name, key, formatter)
		if err != nil {
			return err
		}
	}

	var bar *progress.Bar
	runner := bench.NewRunner(cfg, bench.WithProgress(func(res bench.Result) {
		bar.Tick()
		formatter.Debug("%s: %.1f ns/op, %d buckets", res.ID(), res.NsPerOp, res.Buckets)
	}))
	cases, err := runner.Cases()
	if err != nil {
		return err
	}
	bar = progress.New("Benchmarking", len(cases))

	ctx, stop := signalContext(c.Context)
	defer stop()

	results, err := runner.Run(ctx)
	if err != nil {
		bar.FinishError(err)
		return fmt.Errorf("benchmark failed: %w", err)
	}
	bar.Finish()

	report := benchReport{Results: results}
	if baseline != nil {
		report.Deltas = bench.Compare(baseline, results)
	}

	if c.Bool("save") {
		if !store.Enabled() {
			formatter.Warning("cache is disabled, baseline %q not saved", name)
		} else if err := store.Put(baselineCacheKey(name), key, results); err != nil {
			return fmt.Errorf("failed to save baseline: %w", err)
		} else {
			formatter.Success("Saved baseline %q (%d cases)", name, len(results))
		}
	}

	if err := formatter.Output(benchTable(report, formatter.Colored(), c.Float64("threshold"))); err != nil {
		return err
	}

	if regs := bench.Regressions(report.Deltas, c.Float64("threshold")); len(regs) > 0 {
		formatter.Warning("%d of %d cases slower than baseline by more than %.0f%%", len(regs), len(report.Deltas), c.Float64("threshold")*100)
	}
	for _, d := range report.Deltas {
		if d.DigestChanged {
			formatter.Warning("%s: query results differ from baseline", d.ID)
		}
	}
	return nil
}

// loadBaseline reads the named baseline. A missing or incompatible baseline
// is reported and treated as absent.
func loadBaseline(store *cache.Cache, name, key string, formatter *output.Formatter) ([]bench.Result, error) {
	var baseline []bench.Result
	entry, err := store.Get(baselineCacheKey(name), key, &baseline)
	switch {
	case err == nil:
		formatter.Info("Comparing against baseline %q from %s", name, entry.Timestamp.Format("2006-01-02 15:04"))
		return baseline, nil
	case errors.Is(err, cache.ErrMiss):
		formatter.Warning("no baseline %q found, run with --save first", name)
		return nil, nil
	case errors.Is(err, cache.ErrFingerprintMismatch):
		formatter.Warning("baseline %q was recorded with different settings, not comparing", name)
		return nil, nil
	default:
		return nil, fmt.Errorf("failed to read baseline: %w", err)
	}
}

func benchTable(report benchReport, colored bool, threshold float64) *output.Table {
	headers := []string{"Case", "P", "ns/op", "±", "MB/s", "Buckets", "Largest", "Distinct", "Digest"}
	deltas := make(map[string]bench.Delta, len(report.Deltas))
	if len(report.Deltas) > 0 {
		headers = append(headers, "Change")
		for _, d := range report.Deltas {
			deltas[d.ID] = d
		}
	}

	rows := make([][]string, 0, len(report.Results))
	for _, r := range report.Results {
		row := []string{
			r.Group + "/" + r.Name,
			strconv.Itoa(r.Percentile),
			fmt.Sprintf("%.1f", r.NsPerOp),
			fmt.Sprintf("%.1f", r.StdDevNs),
			fmt.Sprintf("%.1f", r.MBPerSec),
			strconv.Itoa(r.Buckets),
			strconv.Itoa(r.LargestBucket),
			strconv.FormatUint(r.Distinct, 10),
			r.Digest,
		}
		if len(report.Deltas) > 0 {
			row = append(row, formatDelta(deltas[r.ID()], colored, threshold))
		}
		rows = append(rows, row)
	}

	return output.NewTable("Benchmark", headers, rows, nil, report)
}

func formatDelta(d bench.Delta, colored bool, threshold float64) string {
	if d.New {
		return "new"
	}
	text := fmt.Sprintf("%+.1f%%", d.Change*100)
	if !colored {
		return text
	}
	return output.DeltaColor(d.Change, threshold, text)
}
