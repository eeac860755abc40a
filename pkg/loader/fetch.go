package loader

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/dd0wney/cluso-lineage/pkg/catalog"
	"github.com/dd0wney/cluso-lineage/pkg/lineage"
	"github.com/dd0wney/cluso-lineage/pkg/logging"
	"github.com/dd0wney/cluso-lineage/pkg/metrics"
)

const (
	metricsOpEntity        = metrics.OpFetchEntity
	metricsOpRelationships = metrics.OpFetchRelationships
)

// retryFetch runs fetch with exponential backoff. Transient catalog errors
// and per-attempt timeouts are retried up to MaxRetries times; everything
// else ends the fetch immediately. No attempt starts once the analysis
// context is done.
func retryFetch[T any](r *run, op string, id lineage.NodeID, fetch func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opts.RetryBaseDelay
	b.Multiplier = r.opts.RetryMultiplier
	b.RandomizationFactor = 0

	attempt := 0
	start := time.Now()
	res, err := backoff.Retry(r.ctx, func() (T, error) {
		attempt++
		if err := r.ctx.Err(); err != nil {
			var zero T
			return zero, backoff.Permanent(err)
		}

		actx, cancel := r.attemptContext()
		defer cancel()

		v, err := fetch(actx)
		if err == nil || retryable(err, actx, r.ctx) {
			return v, err
		}
		return v, backoff.Permanent(err)
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(r.opts.MaxRetries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.mu.Lock()
			r.stats.Retries++
			r.mu.Unlock()
			r.opts.Metrics.RecordRetry(op)
			r.logger.Warn("catalog fetch failed, retrying",
				logging.Operation(op),
				logging.NodeID(id),
				logging.Attempt(attempt),
				logging.Duration("next_backoff", next),
				logging.Error(err))
		}),
	)

	r.opts.Metrics.RecordFetch(op, fetchStatus(err, r.ctx), time.Since(start))
	return res, err
}

// attemptContext bounds one attempt. With a FetchTimeout the attempt is
// detached from analysis cancellation so in-flight calls can finish; without
// one it shares the analysis context.
func (r *run) attemptContext() (context.Context, context.CancelFunc) {
	if r.opts.FetchTimeout <= 0 {
		return context.WithCancel(r.ctx)
	}
	return context.WithTimeout(context.WithoutCancel(r.ctx), r.opts.FetchTimeout)
}

func retryable(err error, attemptCtx, analysisCtx context.Context) bool {
	if lineage.IsNotFound(err) {
		return false
	}
	if catalog.IsTransient(err) {
		return true
	}
	// A per-attempt timeout is transient; the analysis deadline is not.
	return errors.Is(err, context.DeadlineExceeded) &&
		attemptCtx.Err() != nil && analysisCtx.Err() == nil
}

func fetchStatus(err error, analysisCtx context.Context) string {
	switch {
	case err == nil:
		return "ok"
	case lineage.IsNotFound(err):
		return "not_found"
	case analysisCtx.Err() != nil:
		return "cancelled"
	default:
		return "error"
	}
}

// normalize validates a raw catalog edge fetched for id in direction d and
// converts it to a graph edge.
func (r *run) normalize(id lineage.NodeID, d lineage.Direction, raw catalog.RawEdge) (lineage.Edge, bool) {
	if raw.Source == "" || raw.Target == "" {
		r.malformed("skipped malformed edge from %s (%s): missing source or target", id, d)
		return lineage.Edge{}, false
	}

	e := lineage.Edge{
		Source:           raw.Source,
		Target:           raw.Target,
		RelationshipType: raw.RelationshipType,
		Confidence:       lineage.DefaultConfidence,
	}
	if e.Near(d) != id {
		r.malformed("skipped malformed edge %s: not incident to %s (%s)", e, id, d)
		return lineage.Edge{}, false
	}

	if raw.Confidence != nil {
		c := *raw.Confidence
		switch {
		case math.IsNaN(c):
			r.malformed("skipped malformed edge %s -> %s: confidence is NaN", e.Source, e.Target)
			return lineage.Edge{}, false
		case c < 0 || c > 1:
			clamped := math.Min(1, math.Max(0, c))
			r.warn("clamped confidence %g of edge %s -> %s to %g", c, e.Source, e.Target, clamped)
			c = clamped
		}
		e.Confidence = c
	}

	if e.Confidence < r.opts.MinConfidence {
		r.mu.Lock()
		r.stats.DroppedLowConfidence++
		r.mu.Unlock()
		return lineage.Edge{}, false
	}
	return e, true
}

func (r *run) malformed(format string, args ...any) {
	r.mu.Lock()
	r.stats.MalformedEdges++
	r.mu.Unlock()
	r.opts.Metrics.RecordMalformedEdge()
	r.warn(format, args...)
}
