package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Library     LibraryConfig     `toml:"library"`
	Features    FeaturesConfig    `toml:"features"`
	Matcher     MatcherConfig     `toml:"matcher"`
	Session     SessionConfig     `toml:"session"`
	Capture     CaptureConfig     `toml:"capture"`
	Diagnostics DiagnosticsConfig `toml:"diagnostics"`
	Log         LogConfig         `toml:"log"`
}

type LibraryConfig struct {
	Root    string `toml:"root"`
	Pattern string `toml:"pattern"`
	// Cache is the path of the feature snapshot; empty disables caching.
	Cache   string `toml:"cache"`
	Workers int    `toml:"workers"`
}

type FeaturesConfig struct {
	Depth   int       `toml:"depth"`
	Weights []float64 `toml:"weights"`
}

type MatcherConfig struct {
	Strategy string `toml:"strategy"`
	Scale    int    `toml:"scale"`
	Filter   string `toml:"filter"`
	Workers  int    `toml:"workers"`
}

type SessionConfig struct {
	ROIHalfWidth  int `toml:"roi_half_width"`
	ROIHalfHeight int `toml:"roi_half_height"`
}

type CaptureConfig struct {
	Device       int      `toml:"device"`
	PollInterval Duration `toml:"poll_interval"`
}

type DiagnosticsConfig struct {
	DumpDir string `toml:"dump_dir"`
	Format  string `toml:"format"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// Duration decodes TOML strings such as "40ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func Default() Config {
	return Config{
		Library: LibraryConfig{
			Root:    "assets",
			Pattern: "*",
			Workers: 1,
		},
		Features: FeaturesConfig{
			Depth:   3,
			Weights: []float64{1.0, 0.5, 0.5, 0.25, 0.25},
		},
		Matcher: MatcherConfig{
			Strategy: "weighted-score",
			Scale:    2,
			Filter:   "lanczos",
			Workers:  runtime.NumCPU(),
		},
		Session: SessionConfig{
			ROIHalfWidth:  64,
			ROIHalfHeight: 48,
		},
		Capture: CaptureConfig{
			Device:       0,
			PollInterval: Duration{40 * time.Millisecond},
		},
		Diagnostics: DiagnosticsConfig{
			Format: "png",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// An empty or missing path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, fmt.Errorf("failed to decode config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("failed to stat config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides through lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("HALLUCINATOR_LIBRARY_ROOT"); ok && v != "" {
		c.Library.Root = v
	}
	if v, ok := lookup("HALLUCINATOR_DUMP_DIR"); ok {
		c.Diagnostics.DumpDir = v
	}
	if v, ok := lookup("HALLUCINATOR_STRATEGY"); ok && v != "" {
		c.Matcher.Strategy = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.Log.Level = v
	}
}

func (c Config) Validate() error {
	var errs []error

	if c.Library.Root == "" {
		errs = append(errs, errors.New("library.root must be set"))
	}
	if _, err := filepath.Match(c.Library.Pattern, "probe"); err != nil || c.Library.Pattern == "" {
		errs = append(errs, fmt.Errorf("library.pattern %q is not a valid glob", c.Library.Pattern))
	}
	if c.Library.Workers < 1 {
		errs = append(errs, fmt.Errorf("library.workers must be at least 1, got %d", c.Library.Workers))
	}
	if c.Features.Depth < 1 {
		errs = append(errs, fmt.Errorf("features.depth must be at least 1, got %d", c.Features.Depth))
	}
	if len(c.Features.Weights) != 5 {
		errs = append(errs, fmt.Errorf("features.weights must have 5 entries, got %d", len(c.Features.Weights)))
	}
	if c.Matcher.Strategy == "" {
		errs = append(errs, errors.New("matcher.strategy must be set"))
	}
	if c.Matcher.Scale < 1 {
		errs = append(errs, fmt.Errorf("matcher.scale must be at least 1, got %d", c.Matcher.Scale))
	}
	switch strings.ToLower(c.Matcher.Filter) {
	case "nearest", "linear", "lanczos", "pyramid":
	default:
		errs = append(errs, fmt.Errorf("matcher.filter %q is not supported", c.Matcher.Filter))
	}
	if c.Matcher.Workers < 1 {
		errs = append(errs, fmt.Errorf("matcher.workers must be at least 1, got %d", c.Matcher.Workers))
	}
	if c.Session.ROIHalfWidth < 1 || c.Session.ROIHalfHeight < 1 {
		errs = append(errs, fmt.Errorf("session ROI half size must be positive, got %dx%d",
			c.Session.ROIHalfWidth, c.Session.ROIHalfHeight))
	}
	if c.Capture.PollInterval.Duration <= 0 {
		errs = append(errs, errors.New("capture.poll_interval must be positive"))
	}
	switch strings.ToLower(c.Diagnostics.Format) {
	case "png", "jpg", "jpeg":
	default:
		errs = append(errs, fmt.Errorf("diagnostics.format %q is not supported", c.Diagnostics.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// WeightVector returns the feature weights as a fixed array.
func (c Config) WeightVector() [5]float64 {
	var w [5]float64
	copy(w[:], c.Features.Weights)
	return w
}
