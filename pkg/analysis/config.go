package analysis

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dd0wney/cluso-lineage/pkg/impact"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/loader"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
	"github.com/dd0wney/cluso-lineage/pkg/validation"
)

// DefaultAnalysisTimeout bounds a whole analysis when the request sets none.
const DefaultAnalysisTimeout = 2 * time.Minute

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LINEAGE_"

// Config holds engine settings shared by every analysis.
type Config struct {
	MaxParallelFetches int           `yaml:"max_parallel_fetches" validate:"min=1,max=1024"`
	MaxRetries         int           `yaml:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay     time.Duration `yaml:"retry_base_delay" validate:"min=0"`
	RetryMultiplier    float64       `yaml:"retry_multiplier" validate:"gte=1"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout" validate:"min=0"`
	AnalysisTimeout    time.Duration `yaml:"analysis_timeout" validate:"min=0"`

	// MaxNodes caps the graph size; 0 means unlimited.
	MaxNodes int `yaml:"max_nodes" validate:"min=0"`

	DefaultDecayFactor float64               `yaml:"default_decay_factor" validate:"gte=0,lte=1"`
	Risk               impact.RiskThresholds `yaml:"risk"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxParallelFetches: loader.DefaultMaxParallelFetches,
		MaxRetries:         loader.DefaultMaxRetries,
		RetryBaseDelay:     loader.DefaultRetryBaseDelay,
		RetryMultiplier:    loader.DefaultRetryMultiplier,
		FetchTimeout:       loader.DefaultFetchTimeout,
		AnalysisTimeout:    DefaultAnalysisTimeout,
		DefaultDecayFactor: impact.DefaultDecayFactor,
		Risk:               impact.DefaultThresholds(),
	}
}

// LoadConfig reads a YAML config over the defaults, applies LINEAGE_*
// environment overrides and validates the result. An empty path skips the
// file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	ints := map[string]*int{
		"MAX_PARALLEL_FETCHES": &c.MaxParallelFetches,
		"MAX_RETRIES":          &c.MaxRetries,
		"MAX_NODES":            &c.MaxNodes,
	}
	floats := map[string]*float64{
		"RETRY_MULTIPLIER":     &c.RetryMultiplier,
		"DEFAULT_DECAY_FACTOR": &c.DefaultDecayFactor,
		"RISK_HIGH":            &c.Risk.High,
		"RISK_MEDIUM":          &c.Risk.Medium,
	}
	durations := map[string]*time.Duration{
		"RETRY_BASE_DELAY": &c.RetryBaseDelay,
		"FETCH_TIMEOUT":    &c.FetchTimeout,
		"ANALYSIS_TIMEOUT": &c.AnalysisTimeout,
	}

	for name, dst := range ints {
		if v, ok := lookupTrimmed(lookup, name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = n
		}
	}
	for name, dst := range floats {
		if v, ok := lookupTrimmed(lookup, name); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = f
		}
	}
	for name, dst := range durations {
		if v, ok := lookupTrimmed(lookup, name); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return envError(name, v, err)
			}
			*dst = d
		}
	}
	return nil
}

func lookupTrimmed(lookup func(string) (string, bool), name string) (string, bool) {
	v, ok := lookup(EnvPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func envError(name, value string, err error) error {
	return lineage.InvalidConfig("%s%s=%q: %v", EnvPrefix, name, value, err)
}

// Validate checks the config. Errors wrap lineage.ErrInvalidConfig.
func (c Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return lineage.InvalidConfig("config: %v", err)
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	return nil
}

// LoaderOptions maps the config onto loader options for one analysis.
func (c Config) LoaderOptions(minConfidence float64, logger logging.Logger, reg *metrics.Registry) loader.Options {
	return loader.Options{
		MaxParallelFetches: c.MaxParallelFetches,
		MaxRetries:         c.MaxRetries,
		RetryBaseDelay:     c.RetryBaseDelay,
		RetryMultiplier:    c.RetryMultiplier,
		FetchTimeout:       c.FetchTimeout,
		MaxNodes:           c.MaxNodes,
		MinConfidence:      minConfidence,
		Logger:             logger,
		Metrics:            reg,
	}
}
