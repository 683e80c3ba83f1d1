package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 3, cfg.Features.Depth)
	assert.Equal(t, [5]float64{1, 0.5, 0.5, 0.25, 0.25}, cfg.WeightVector())
	assert.Equal(t, "weighted-score", cfg.Matcher.Strategy)
	assert.Equal(t, 1, cfg.Library.Workers)
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("HALLUCINATOR_LIBRARY_ROOT", "")
	t.Setenv("HALLUCINATOR_STRATEGY", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Library, cfg.Library)
}

func TestLoadDecodesFile(t *testing.T) {
	t.Setenv("HALLUCINATOR_LIBRARY_ROOT", "")
	t.Setenv("HALLUCINATOR_STRATEGY", "")
	t.Setenv("LOG_LEVEL", "")

	path := filepath.Join(t.TempDir(), "hallucinator.toml")
	content := `
[library]
root = "/srv/faces"
pattern = "*svg*"
workers = 4

[features]
depth = 2

[matcher]
strategy = "parent-vector"
scale = 3
filter = "linear"

[capture]
poll_interval = "100ms"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/faces", cfg.Library.Root)
	assert.Equal(t, "*svg*", cfg.Library.Pattern)
	assert.Equal(t, 4, cfg.Library.Workers)
	assert.Equal(t, 2, cfg.Features.Depth)
	assert.Equal(t, "parent-vector", cfg.Matcher.Strategy)
	assert.Equal(t, 3, cfg.Matcher.Scale)
	assert.Equal(t, 100*time.Millisecond, cfg.Capture.PollInterval.Duration)
	// untouched sections keep their defaults
	assert.Equal(t, 64, cfg.Session.ROIHalfWidth)
}

func TestEnvironmentOverrides(t *testing.T) {
	env := map[string]string{
		"HALLUCINATOR_LIBRARY_ROOT": "/tmp/lib",
		"HALLUCINATOR_DUMP_DIR":     "/tmp/dump",
		"HALLUCINATOR_STRATEGY":     "parent-vector",
		"LOG_LEVEL":                 "debug",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "/tmp/lib", cfg.Library.Root)
	assert.Equal(t, "/tmp/dump", cfg.Diagnostics.DumpDir)
	assert.Equal(t, "parent-vector", cfg.Matcher.Strategy)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero depth", func(c *Config) { c.Features.Depth = 0 }},
		{"short weights", func(c *Config) { c.Features.Weights = []float64{1} }},
		{"scale below one", func(c *Config) { c.Matcher.Scale = 0 }},
		{"unknown filter", func(c *Config) { c.Matcher.Filter = "bicubic" }},
		{"bad glob", func(c *Config) { c.Library.Pattern = "[" }},
		{"no workers", func(c *Config) { c.Matcher.Workers = 0 }},
		{"empty roi", func(c *Config) { c.Session.ROIHalfHeight = 0 }},
		{"dump format", func(c *Config) { c.Diagnostics.Format = "gif" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
