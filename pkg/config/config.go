package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/ptile/pkg/tracker"
	"github.com/panbanda/ptile/pkg/workload"
)

// Config holds all configuration options for ptile.
type Config struct {
	// Tracker construction
	Tracker TrackerConfig `koanf:"tracker" toml:"tracker" yaml:"tracker"`

	// How input values are parsed
	Input InputConfig `koanf:"input" toml:"input" yaml:"input"`

	// Synthetic benchmark workloads
	Bench BenchConfig `koanf:"bench" toml:"bench" yaml:"bench"`

	// Oracle verification runs
	Verify VerifyConfig `koanf:"verify" toml:"verify" yaml:"verify"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache" yaml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output" yaml:"output"`
}

// TrackerConfig controls how trackers are built.
type TrackerConfig struct {
	Percentile    int `koanf:"percentile" toml:"percentile" yaml:"percentile"`
	MaxBucketSize int `koanf:"max_bucket_size" toml:"max_bucket_size" yaml:"max_bucket_size"`
}

// InputConfig controls value parsing for the track command.
type InputConfig struct {
	Type string `koanf:"type" toml:"type" yaml:"type"` // int, float
}

// BenchConfig defines the benchmark workloads.
type BenchConfig struct {
	Groups           []string `koanf:"groups" toml:"groups" yaml:"groups"`
	Sizes            []int    `koanf:"sizes" toml:"sizes" yaml:"sizes"`
	Percentiles      []int    `koanf:"percentiles" toml:"percentiles" yaml:"percentiles"`
	Distributions    []string `koanf:"distributions" toml:"distributions" yaml:"distributions"`
	DistributionSize int      `koanf:"distribution_size" toml:"distribution_size" yaml:"distribution_size"`
	Patterns         []string `koanf:"patterns" toml:"patterns" yaml:"patterns"`
	PatternOps       int      `koanf:"pattern_ops" toml:"pattern_ops" yaml:"pattern_ops"`
	Samples          int      `koanf:"samples" toml:"samples" yaml:"samples"`
	Seed             uint64   `koanf:"seed" toml:"seed" yaml:"seed"`
	Workers          int      `koanf:"workers" toml:"workers" yaml:"workers"`
}

// VerifyConfig defines oracle verification runs.
type VerifyConfig struct {
	Size          int      `koanf:"size" toml:"size" yaml:"size"`
	Percentiles   []int    `koanf:"percentiles" toml:"percentiles" yaml:"percentiles"`
	Distributions []string `koanf:"distributions" toml:"distributions" yaml:"distributions"`
	Deferred      bool     `koanf:"deferred" toml:"deferred" yaml:"deferred"`
	Seed          uint64   `koanf:"seed" toml:"seed" yaml:"seed"`
}

// CacheConfig controls caching of benchmark baselines.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled" yaml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir" yaml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl" yaml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format" yaml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color" yaml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose" yaml:"verbose"`
}

// Benchmark groups.
const (
	GroupThroughput    = "throughput"
	GroupDistributions = "distributions"
	GroupPatterns      = "patterns"
)

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			Percentile:    90,
			MaxBucketSize: tracker.DefaultMaxBucketSize,
		},
		Input: InputConfig{
			Type: "int",
		},
		Bench: BenchConfig{
			Groups:           []string{GroupThroughput, GroupDistributions, GroupPatterns},
			Sizes:            []int{100_000, 1_000_000},
			Percentiles:      []int{10, 50, 90},
			Distributions:    workload.DistributionNames(),
			DistributionSize: 1_000_000,
			Patterns:         workload.PatternNames(),
			PatternOps:       1_000_000,
			Samples:          10,
			Seed:             42,
			Workers:          1,
		},
		Verify: VerifyConfig{
			Size:          4096,
			Percentiles:   []int{1, 10, 25, 50, 75, 90, 95, 99},
			Distributions: workload.DistributionNames(),
			Deferred:      false,
			Seed:          42,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".ptile/cache",
			TTL:     24 * 30,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}

	// Lists in the file replace the defaults instead of overlaying them.
	resetIfSet(k, "bench.groups", &cfg.Bench.Groups)
	resetIfSet(k, "bench.sizes", &cfg.Bench.Sizes)
	resetIfSet(k, "bench.percentiles", &cfg.Bench.Percentiles)
	resetIfSet(k, "bench.distributions", &cfg.Bench.Distributions)
	resetIfSet(k, "bench.patterns", &cfg.Bench.Patterns)
	resetIfSet(k, "verify.percentiles", &cfg.Verify.Percentiles)
	resetIfSet(k, "verify.distributions", &cfg.Verify.Distributions)

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func resetIfSet[T any](k *koanf.Koanf, key string, s *[]T) {
	if k.Exists(key) {
		*s = nil
	}
}

// configNames are the file names searched for, in order.
var configNames = []string{
	"ptile.toml",
	"ptile.yaml",
	"ptile.yml",
	"ptile.json",
	".ptile.toml",
	".ptile.yaml",
	".ptile.yml",
	".ptile.json",
}

// searchDirs are the directories searched for config files, in order.
var searchDirs = []string{".", ".ptile"}

// FindConfigFile returns the first config file in the standard locations,
// or "" when none exists.
func FindConfigFile() string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := FindConfigFile(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// LoadResult is a loaded config together with where it came from.
type LoadResult struct {
	Config *Config
	Source string // empty when defaults were used
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

type loadOptions struct {
	path string
}

// WithPath loads from an explicit file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads and validates configuration. Without WithPath it searches
// the standard locations and falls back to defaults.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	path := o.path
	if path == "" {
		path = FindConfigFile()
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// ValidationError describes one invalid config value.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var (
	inputTypes    = []string{"int", "float"}
	outputFormats = []string{"text", "json", "markdown", "md", "toon"}
	benchGroups   = []string{GroupThroughput, GroupDistributions, GroupPatterns}
)

// Validate checks every value and returns all problems joined together.
func (c *Config) Validate() error {
	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !validPercentile(c.Tracker.Percentile) {
		add("tracker.percentile", "must be between 1 and 99, got %d", c.Tracker.Percentile)
	}
	if c.Tracker.MaxBucketSize < 2 {
		add("tracker.max_bucket_size", "must be at least 2, got %d", c.Tracker.MaxBucketSize)
	}
	if !slices.Contains(inputTypes, c.Input.Type) {
		add("input.type", "must be one of %v, got %q", inputTypes, c.Input.Type)
	}

	for _, g := range c.Bench.Groups {
		if !slices.Contains(benchGroups, g) {
			add("bench.groups", "unknown group %q", g)
		}
	}
	for _, n := range c.Bench.Sizes {
		if n <= 0 {
			add("bench.sizes", "sizes must be positive, got %d", n)
		}
	}
	for _, p := range c.Bench.Percentiles {
		if !validPercentile(p) {
			add("bench.percentiles", "must be between 1 and 99, got %d", p)
		}
	}
	for _, name := range c.Bench.Distributions {
		if _, err := workload.Lookup(name); err != nil {
			add("bench.distributions", "%v", err)
		}
	}
	for _, name := range c.Bench.Patterns {
		if _, err := workload.LookupPattern(name); err != nil {
			add("bench.patterns", "%v", err)
		}
	}
	if c.Bench.DistributionSize <= 0 {
		add("bench.distribution_size", "must be positive, got %d", c.Bench.DistributionSize)
	}
	if c.Bench.PatternOps <= 0 {
		add("bench.pattern_ops", "must be positive, got %d", c.Bench.PatternOps)
	}
	if c.Bench.Samples <= 0 {
		add("bench.samples", "must be positive, got %d", c.Bench.Samples)
	}
	if c.Bench.Workers <= 0 {
		add("bench.workers", "must be positive, got %d", c.Bench.Workers)
	}

	if c.Verify.Size <= 0 {
		add("verify.size", "must be positive, got %d", c.Verify.Size)
	}
	for _, p := range c.Verify.Percentiles {
		if !validPercentile(p) {
			add("verify.percentiles", "must be between 1 and 99, got %d", p)
		}
	}
	for _, name := range c.Verify.Distributions {
		if _, err := workload.Lookup(name); err != nil {
			add("verify.distributions", "%v", err)
		}
	}

	if c.Cache.Enabled && c.Cache.Dir == "" {
		add("cache.dir", "required when the cache is enabled")
	}
	if !slices.Contains(outputFormats, strings.ToLower(c.Output.Format)) {
		add("output.format", "must be one of %v, got %q", outputFormats, c.Output.Format)
	}

	return errors.Join(errs...)
}

func validPercentile(p int) bool {
	return p >= 1 && p <= 99
}
