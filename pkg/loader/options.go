package loader

import (
	"time"

	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
	"github.com/dd0wney/cluso-lineage/pkg/parallel"
	"github.com/dd0wney/cluso-lineage/pkg/validation"
)

// Defaults for Options.
const (
	DefaultMaxParallelFetches = 8
	DefaultMaxRetries         = 3
	DefaultRetryBaseDelay     = 200 * time.Millisecond
	DefaultRetryMultiplier    = 2.0
	DefaultFetchTimeout       = 30 * time.Second
)

// Options configures a Loader.
type Options struct {
	// MaxParallelFetches bounds concurrent catalog calls for one Load.
	MaxParallelFetches int

	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries     int
	RetryBaseDelay time.Duration
	// RetryMultiplier is the backoff growth factor between retries.
	RetryMultiplier float64

	// FetchTimeout bounds each attempt. Zero means no per-attempt bound.
	FetchTimeout time.Duration

	// MaxNodes caps the number of distinct ids admitted into the graph.
	// Zero means unlimited. Roots are always admitted.
	MaxNodes int

	// MinConfidence drops edges whose confidence is below it at fetch time.
	MinConfidence float64

	Logger  logging.Logger
	Metrics *metrics.Registry
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MaxParallelFetches: DefaultMaxParallelFetches,
		MaxRetries:         DefaultMaxRetries,
		RetryBaseDelay:     DefaultRetryBaseDelay,
		RetryMultiplier:    DefaultRetryMultiplier,
		FetchTimeout:       DefaultFetchTimeout,
	}
}

// Validate checks the options. Errors wrap lineage.ErrInvalidConfig.
func (o Options) Validate() error {
	err := validation.NewConfigValidator("loader").
		RangeInt("MaxParallelFetches", o.MaxParallelFetches, 1, parallel.MaxWorkers).
		RangeInt("MaxRetries", o.MaxRetries, 0, 10).
		NonNegativeDuration("RetryBaseDelay", o.RetryBaseDelay).
		MinFloat("RetryMultiplier", o.RetryMultiplier, 1).
		NonNegativeDuration("FetchTimeout", o.FetchTimeout).
		NonNegative("MaxNodes", o.MaxNodes).
		RangeFloat("MinConfidence", o.MinConfidence, 0, 1).
		Validate()
	if err != nil {
		return lineage.InvalidConfig("%v", err)
	}
	return nil
}

func (o Options) withDefaults() Options {
	if o.MaxParallelFetches == 0 {
		o.MaxParallelFetches = DefaultMaxParallelFetches
	}
	if o.RetryMultiplier == 0 {
		o.RetryMultiplier = DefaultRetryMultiplier
	}
	o.Logger = logging.OrNop(o.Logger)
	return o
}
