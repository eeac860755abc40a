package health

import (
	"context"

	"github.com/dd0wney/cluso-lineage/pkg/catalog"
)

// SimpleCheck always reports healthy.
func SimpleCheck() CheckFunc {
	return func(context.Context) Check {
		return Check{Status: StatusHealthy}
	}
}

// CatalogCheck reports whether the catalog answers a ping.
func CatalogCheck(p catalog.Pinger) CheckFunc {
	return func(ctx context.Context) Check {
		if err := p.Ping(ctx); err != nil {
			return Check{Status: StatusUnhealthy, Message: err.Error()}
		}
		return Check{Status: StatusHealthy, Message: "Catalog reachable"}
	}
}

// InFlightCheck reports degraded once more than limit analyses run at once.
// A limit of zero disables the check.
func InFlightCheck(inFlight func() int, limit int) CheckFunc {
	return func(context.Context) Check {
		n := inFlight()
		check := Check{
			Status:  StatusHealthy,
			Message: "Analysis load normal",
			Details: map[string]any{"in_flight": n, "limit": limit},
		}
		if limit > 0 && n > limit {
			check.Status = StatusDegraded
			check.Message = "Too many concurrent analyses"
		}
		return check
	}
}
