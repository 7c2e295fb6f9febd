package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/ptile/internal/output"
	"github.com/panbanda/ptile/internal/progress"
	"github.com/panbanda/ptile/pkg/bench"
)

func verifyCmd() *cli.Command {
	return &cli.Command{
		Name:  "verify",
		Usage: "Check the tracker against an exact oracle",
		Description: `Feeds every configured distribution through a tracker and a naive exact
oracle at every configured percentile. By default both are queried after
every insert; --deferred compares only the final answer. Structural
invariants are checked at the end of each run.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "deferred",
				Usage: "Query only after all values are inserted",
			},
			&cli.IntFlag{
				Name:  "size",
				Usage: "Values per run (default from config)",
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Seed for generated values (default from config)",
			},
			&cli.IntFlag{
				Name:  "bucket-size",
				Usage: "Maximum bucket size before a split (default from config)",
			},
		},
		Action: runVerifyCmd,
	}
}

func runVerifyCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("deferred") {
		cfg.Verify.Deferred = c.Bool("deferred")
	}
	if c.IsSet("size") {
		cfg.Verify.Size = c.Int("size")
	}
	if c.IsSet("seed") {
		cfg.Verify.Seed = c.Uint64("seed")
	}
	if c.IsSet("bucket-size") {
		cfg.Tracker.MaxBucketSize = c.Int("bucket-size")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid verify settings: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	var bar *progress.Bar
	verifier := bench.NewVerifier(cfg, func(bench.Verification) { bar.Tick() })
	bar = progress.New("Verifying", verifier.Total())

	ctx, stop := signalContext(c.Context)
	defer stop()

	results, err := verifier.Run(ctx)
	if err != nil {
		bar.FinishError(err)
		return fmt.Errorf("verification aborted: %w", err)
	}
	bar.Finish()

	if err := formatter.Output(verifyTable(results, formatter.Colored())); err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			if r.First != nil {
				formatter.Error("%s p%d: value %d got %d, want %d", r.Distribution, r.Percentile, r.First.Index, r.First.Got, r.First.Want)
			}
			if r.Violation != "" {
				formatter.Error("%s p%d: %s", r.Distribution, r.Percentile, r.Violation)
			}
		}
	}
	if failed > 0 {
		return fmt.Errorf("verification failed: %d of %d runs", failed, len(results))
	}

	mode := "eager"
	if cfg.Verify.Deferred {
		mode = "deferred"
	}
	formatter.Success("All %d runs match the oracle (%s, %d values each)", len(results), mode, cfg.Verify.Size)
	return nil
}

func verifyTable(results []bench.Verification, colored bool) *output.Table {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		status := "ok"
		switch {
		case !r.OK() && colored:
			status = color.RedString("FAIL")
		case !r.OK():
			status = "FAIL"
		case colored:
			status = color.GreenString(status)
		}
		rows = append(rows, []string{
			r.Distribution,
			strconv.Itoa(r.Percentile),
			strconv.Itoa(r.Values),
			strconv.Itoa(r.Queries),
			strconv.Itoa(r.Mismatches),
			strconv.Itoa(r.Buckets),
			status,
		})
	}
	return output.NewTable(
		"Verification",
		[]string{"Distribution", "P", "Values", "Queries", "Mismatches", "Buckets", "Status"},
		rows,
		nil,
		results,
	)
}
