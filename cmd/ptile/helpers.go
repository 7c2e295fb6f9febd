package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/ptile/internal/cache"
	"github.com/panbanda/ptile/internal/output"
	"github.com/panbanda/ptile/pkg/config"
)

// loadConfig loads the config named by --config, or searches the standard
// locations, then applies the global output flags on top.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var opts []config.LoadOption
	if path := c.String("config"); path != "" {
		opts = append(opts, config.WithPath(path))
	}

	result, err := config.LoadConfig(opts...)
	if err != nil {
		return nil, err
	}
	cfg := result.Config

	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// newFormatter creates the result formatter for cfg and --output.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	return output.NewFormatter(
		output.ParseFormat(cfg.Output.Format),
		c.String("output"),
		cfg.Output.Color,
		output.WithVerbose(cfg.Output.Verbose),
	)
}

// openCache opens the baseline cache described by cfg.
func openCache(cfg *config.Config) (*cache.Cache, error) {
	return cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
}

// signalContext derives a context from parent that is also canceled on
// SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
