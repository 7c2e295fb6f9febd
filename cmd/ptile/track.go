package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/ptile/internal/output"
	"github.com/panbanda/ptile/internal/progress"
	"github.com/panbanda/ptile/pkg/config"
	"github.com/panbanda/ptile/pkg/input"
	"github.com/panbanda/ptile/pkg/tracker"
	"github.com/panbanda/ptile/pkg/watch"
)

func trackCmd() *cli.Command {
	return &cli.Command{
		Name:      "track",
		Aliases:   []string{"t"},
		Usage:     "Track a percentile over newline-separated values",
		ArgsUsage: "[file...]",
		Description: `Reads one value per line from each file, or from stdin when no file is
given ("-" also means stdin). Blank lines and lines starting with # are
skipped.`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "percentile",
				Aliases: []string{"p"},
				Usage:   "Percentile to track, 1-99 (default from config)",
			},
			&cli.StringFlag{
				Name:  "type",
				Usage: "Value type: int or float (default from config)",
			},
			&cli.IntFlag{
				Name:  "bucket-size",
				Usage: "Maximum bucket size before a split (default from config)",
			},
			&cli.BoolFlag{
				Name:  "running",
				Usage: "Print the running percentile after every value",
			},
			&cli.BoolFlag{
				Name:  "follow",
				Usage: "Keep reading values appended to the file",
			},
		},
		Action: runTrackCmd,
	}
}

// trackResult is the summary printed when tracking ends.
type trackResult struct {
	Count      int           `json:"count"`
	Percentile int           `json:"percentile"`
	Value      any           `json:"value"`
	Buckets    int           `json:"buckets"`
	Stats      tracker.Stats `json:"stats"`
}

func runTrackCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.IsSet("percentile") {
		cfg.Tracker.Percentile = c.Int("percentile")
	}
	if c.IsSet("type") {
		cfg.Input.Type = c.String("type")
	}
	if c.IsSet("bucket-size") {
		cfg.Tracker.MaxBucketSize = c.Int("bucket-size")
	}
	if err := input.CheckType(cfg.Input.Type); err != nil {
		return err
	}

	files := c.Args().Slice()
	if c.Bool("follow") && len(files) != 1 {
		return fmt.Errorf("--follow needs exactly one file, got %d", len(files))
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	opts := trackOptions{
		files:   files,
		running: c.Bool("running"),
		follow:  c.Bool("follow"),
		stdin:   c.App.Reader,
	}

	if cfg.Input.Type == input.TypeFloat {
		return track(c.Context, cfg, formatter, input.ParseFloat, opts)
	}
	return track(c.Context, cfg, formatter, input.ParseInt, opts)
}

type trackOptions struct {
	files   []string
	running bool
	follow  bool
	stdin   io.Reader
}

func track[T input.Number](ctx context.Context, cfg *config.Config, formatter *output.Formatter, parse input.ParseFunc[T], opts trackOptions) error {
	t, err := tracker.New[T](cfg.Tracker.Percentile, tracker.WithMaxBucketSize(cfg.Tracker.MaxBucketSize))
	if err != nil {
		return err
	}

	insert := func(v T) error {
		t.Insert(v)
		if opts.running {
			p, err := t.Percentile()
			if err != nil {
				return err
			}
			fmt.Fprintf(formatter.Writer(), "%d\t%v\n", t.Len(), p)
		}
		return nil
	}

	switch {
	case opts.follow:
		if err := follow(ctx, opts.files[0], formatter, parse, insert); err != nil {
			return err
		}
	case len(opts.files) == 0:
		if err := scanReader(opts.stdin, "stdin", parse, insert); err != nil {
			return err
		}
	default:
		for _, path := range opts.files {
			if err := scanFile(path, opts.stdin, parse, insert); err != nil {
				return err
			}
		}
	}

	value, err := t.Percentile()
	if errors.Is(err, tracker.ErrEmpty) {
		formatter.Warning("no values read")
		return err
	}
	if err != nil {
		return err
	}

	stats := t.Stats()
	formatter.Debug("buckets=%d largest=%d index=%d offset=%d", stats.Buckets, stats.LargestBucket, stats.BucketIndex, stats.BucketOffset)

	res := trackResult{
		Count:      t.Len(),
		Percentile: t.Target(),
		Value:      value,
		Buckets:    stats.Buckets,
		Stats:      stats,
	}
	section := &output.Section{
		Title: fmt.Sprintf("p%d", res.Percentile),
		Fields: [][2]string{
			{"count", strconv.Itoa(res.Count)},
			{"value", fmt.Sprint(value)},
			{"buckets", strconv.Itoa(res.Buckets)},
		},
		Data: res,
	}
	return formatter.Output(section)
}

func scanFile[T input.Number](path string, stdin io.Reader, parse input.ParseFunc[T], fn func(T) error) error {
	if path == "-" {
		return scanReader(stdin, "stdin", parse, fn)
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return scanReader(f, path, parse, fn)
}

func scanReader[T input.Number](r io.Reader, name string, parse input.ParseFunc[T], fn func(T) error) error {
	if r == nil {
		r = os.Stdin
	}
	if err := input.NewParser(parse).Scan(r, fn); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// follow feeds every line of path, present and future, to fn until ctx or
// an interrupt stops it.
func follow[T input.Number](ctx context.Context, path string, formatter *output.Formatter, parse input.ParseFunc[T], fn func(T) error) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	spinner := progress.NewSpinner("Following " + path)
	defer spinner.Finish()

	parser := input.NewParser(parse)
	follower, err := watch.NewFollower(path, func(line string) error {
		v, ok, err := parser.Line(line)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if !ok {
			return nil
		}
		spinner.Tick()
		return fn(v)
	}, watch.WithErrorHandler(func(err error) {
		formatter.Warning("watch error: %v", err)
	}))
	if err != nil {
		return err
	}

	formatter.Info("Following %s, press Ctrl+C to stop", path)
	err = follower.Start(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
