package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg == nil {
		t.Fatal("DefaultConfig() returned nil")
	}

	if cfg.Tracker.Percentile != 90 {
		t.Errorf("Tracker.Percentile = %d, want 90", cfg.Tracker.Percentile)
	}
	if cfg.Tracker.MaxBucketSize != 64 {
		t.Errorf("Tracker.MaxBucketSize = %d, want 64", cfg.Tracker.MaxBucketSize)
	}
	if cfg.Input.Type != "int" {
		t.Errorf("Input.Type = %s, want int", cfg.Input.Type)
	}

	if len(cfg.Bench.Groups) != 3 {
		t.Errorf("Bench.Groups = %v, want all three groups", cfg.Bench.Groups)
	}
	if cfg.Bench.Seed != 42 {
		t.Errorf("Bench.Seed = %d, want 42", cfg.Bench.Seed)
	}
	if cfg.Bench.Workers != 1 {
		t.Errorf("Bench.Workers = %d, want 1", cfg.Bench.Workers)
	}

	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled should be true by default")
	}
	if cfg.Output.Format != "text" {
		t.Errorf("Output.Format = %s, want text", cfg.Output.Format)
	}
	if !cfg.Output.Color {
		t.Error("Output.Color should be true by default")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ptile.toml")

	content := `
[tracker]
percentile = 99
max_bucket_size = 128

[input]
type = "float"

[bench]
sizes = [1000, 5000]
percentiles = [25, 50, 75]
seed = 7

[cache]
enabled = false

[output]
format = "json"
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 99, cfg.Tracker.Percentile)
	assert.Equal(t, 128, cfg.Tracker.MaxBucketSize)
	assert.Equal(t, "float", cfg.Input.Type)
	assert.Equal(t, []int{1000, 5000}, cfg.Bench.Sizes)
	assert.Equal(t, []int{25, 50, 75}, cfg.Bench.Percentiles)
	assert.Equal(t, uint64(7), cfg.Bench.Seed)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "json", cfg.Output.Format)

	// Untouched sections keep their defaults.
	assert.Equal(t, 10, cfg.Bench.Samples)
	assert.Equal(t, 4096, cfg.Verify.Size)
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ptile.yaml")

	content := `
tracker:
  percentile: 50

verify:
  size: 1000
  deferred: true

output:
  format: markdown
`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Tracker.Percentile)
	assert.Equal(t, 1000, cfg.Verify.Size)
	assert.True(t, cfg.Verify.Deferred)
	assert.Equal(t, "markdown", cfg.Output.Format)
}

func TestLoadJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ptile.json")

	content := `{
  "tracker": {
    "percentile": 10
  },
  "bench": {
    "samples": 3,
    "workers": 4
  }
}`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Tracker.Percentile)
	assert.Equal(t, 3, cfg.Bench.Samples)
	assert.Equal(t, 4, cfg.Bench.Workers)
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/ptile.toml")
	if err == nil {
		t.Error("Load() should return error for non-existent file")
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "ptile.toml")

	content := `[tracker
invalid toml`

	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() should return error for invalid config")
	}
}

func TestLoadOrDefault(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := LoadOrDefault()
	require.NotNil(t, cfg)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOrDefaultWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	content := `
[tracker]
percentile = 75
`
	require.NoError(t, os.MkdirAll(filepath.Join(tmpDir, ".ptile"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".ptile", "ptile.toml"), []byte(content), 0644))

	t.Chdir(tmpDir)

	cfg := LoadOrDefault()
	assert.Equal(t, 75, cfg.Tracker.Percentile)
	assert.Equal(t, filepath.Join(".ptile", "ptile.toml"), FindConfigFile())
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults without file", func(t *testing.T) {
		t.Chdir(t.TempDir())

		result, err := LoadConfig()
		require.NoError(t, err)
		assert.Empty(t, result.Source)
		assert.Equal(t, DefaultConfig(), result.Config)
	})

	t.Run("explicit path", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.yml")
		require.NoError(t, os.WriteFile(path, []byte("tracker:\n  percentile: 33\n"), 0644))

		result, err := LoadConfig(WithPath(path))
		require.NoError(t, err)
		assert.Equal(t, path, result.Source)
		assert.Equal(t, 33, result.Config.Tracker.Percentile)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ptile.toml")
		require.NoError(t, os.WriteFile(path, []byte("[tracker]\npercentile = 100\n"), 0644))

		_, err := LoadConfig(WithPath(path))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "tracker.percentile")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"percentile zero", func(c *Config) { c.Tracker.Percentile = 0 }, "tracker.percentile"},
		{"percentile hundred", func(c *Config) { c.Tracker.Percentile = 100 }, "tracker.percentile"},
		{"bucket size", func(c *Config) { c.Tracker.MaxBucketSize = 1 }, "tracker.max_bucket_size"},
		{"input type", func(c *Config) { c.Input.Type = "decimal" }, "input.type"},
		{"group", func(c *Config) { c.Bench.Groups = []string{"latency"} }, "bench.groups"},
		{"size", func(c *Config) { c.Bench.Sizes = []int{0} }, "bench.sizes"},
		{"bench percentile", func(c *Config) { c.Bench.Percentiles = []int{50, 0} }, "bench.percentiles"},
		{"distribution", func(c *Config) { c.Bench.Distributions = []string{"zipf"} }, "bench.distributions"},
		{"pattern", func(c *Config) { c.Bench.Patterns = []string{"write_only"} }, "bench.patterns"},
		{"samples", func(c *Config) { c.Bench.Samples = 0 }, "bench.samples"},
		{"workers", func(c *Config) { c.Bench.Workers = 0 }, "bench.workers"},
		{"verify size", func(c *Config) { c.Verify.Size = -1 }, "verify.size"},
		{"cache dir", func(c *Config) { c.Cache.Dir = "" }, "cache.dir"},
		{"format", func(c *Config) { c.Output.Format = "xml" }, "output.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tracker.Percentile = 0
	cfg.Output.Format = "xml"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tracker.percentile")
	assert.Contains(t, err.Error(), "output.format")
}

func TestLoadReplacesLists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ptile.toml")
	content := `
[bench]
distributions = ["ascending"]
sizes = [10]

[verify]
percentiles = [50]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"ascending"}, cfg.Bench.Distributions)
	assert.Equal(t, []int{10}, cfg.Bench.Sizes)
	assert.Equal(t, []int{50}, cfg.Verify.Percentiles)
	// Lists absent from the file keep their defaults.
	assert.Equal(t, DefaultConfig().Bench.Patterns, cfg.Bench.Patterns)
}
