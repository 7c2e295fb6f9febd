package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/ptile/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage saved benchmark baselines",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache statistics",
				Action: runCacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Remove every saved baseline",
				Action: runCacheClear,
			},
			{
				Name:      "drop",
				Usage:     "Remove one saved baseline",
				ArgsUsage: "<name>",
				Action:    runCacheDrop,
			},
		},
	}
}

func runCacheStats(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(&output.Section{
		Title: "Cache",
		Fields: [][2]string{
			{"dir", cfg.Cache.Dir},
			{"enabled", strconv.FormatBool(store.Enabled())},
			{"entries", strconv.Itoa(stats.Entries)},
			{"bytes", strconv.FormatInt(stats.TotalSize, 10)},
			{"newest", stats.NewestAge.Round(time.Second).String()},
			{"oldest", stats.OldestAge.Round(time.Second).String()},
		},
		Data: stats,
	})
}

func runCacheClear(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	formatter.Success("Cache cleared")
	return nil
}

func runCacheDrop(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("expected one baseline name, got %d", c.Args().Len())
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openCache(cfg)
	if err != nil {
		return err
	}
	name := c.Args().First()
	if err := store.Invalidate(baselineCacheKey(name)); err != nil {
		return fmt.Errorf("failed to drop baseline %q: %w", name, err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	formatter.Success("Dropped baseline %q", name)
	return nil
}
