package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.err
}

func TestReadinessAndLivenessAreSeparate(t *testing.T) {
	hc := NewHealthChecker()

	liveCalled, readyCalled := false, false
	hc.RegisterLivenessCheck("live", func(context.Context) Check {
		liveCalled = true
		return Check{Status: StatusHealthy}
	})
	hc.RegisterReadinessCheck("ready", func(context.Context) Check {
		readyCalled = true
		return Check{Status: StatusHealthy}
	})

	resp := hc.CheckReadiness(context.Background())
	assert.True(t, readyCalled)
	assert.False(t, liveCalled)
	assert.Contains(t, resp.Checks, "ready")

	resp = hc.CheckLiveness(context.Background())
	assert.True(t, liveCalled)
	assert.Contains(t, resp.Checks, "live")
	assert.NotContains(t, resp.Checks, "ready")
}

func TestCheckStatusAggregation(t *testing.T) {
	tests := []struct {
		name           string
		checkStatuses  []Status
		expectedStatus Status
	}{
		{"all healthy", []Status{StatusHealthy, StatusHealthy}, StatusHealthy},
		{"one degraded", []Status{StatusHealthy, StatusDegraded}, StatusDegraded},
		{"one unhealthy", []Status{StatusHealthy, StatusUnhealthy}, StatusUnhealthy},
		{"degraded and unhealthy", []Status{StatusDegraded, StatusUnhealthy, StatusHealthy}, StatusUnhealthy},
		{"no checks", nil, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			for i, status := range tt.checkStatuses {
				hc.RegisterReadinessCheck(string(rune('a'+i)), func(context.Context) Check {
					return Check{Status: status}
				})
			}

			resp := hc.CheckReadiness(context.Background())
			assert.Equal(t, tt.expectedStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.checkStatuses))
		})
	}
}

func TestCheckMetadata(t *testing.T) {
	hc := NewHealthChecker()
	hc.RegisterReadinessCheck("slow", func(context.Context) Check {
		time.Sleep(10 * time.Millisecond)
		return Check{Status: StatusHealthy}
	})

	before := time.Now()
	resp := hc.CheckReadiness(context.Background())

	check := resp.Checks["slow"]
	assert.Equal(t, "slow", check.Name)
	assert.GreaterOrEqual(t, check.Duration, 10*time.Millisecond)
	assert.False(t, check.LastChecked.Before(before))
	assert.False(t, resp.Timestamp.Before(before))
}

func TestCheckTimeoutIsApplied(t *testing.T) {
	hc := NewHealthChecker()
	hc.SetCheckTimeout(20 * time.Millisecond)

	hc.RegisterReadinessCheck("catalog", func(ctx context.Context) Check {
		<-ctx.Done()
		return Check{Status: StatusUnhealthy, Message: ctx.Err().Error()}
	})

	resp := hc.CheckReadiness(context.Background())
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Equal(t, context.DeadlineExceeded.Error(), resp.Checks["catalog"].Message)
}

func TestCatalogCheck(t *testing.T) {
	check := CatalogCheck(fakePinger{})(context.Background())
	assert.Equal(t, StatusHealthy, check.Status)

	check = CatalogCheck(fakePinger{err: errors.New("connection refused")})(context.Background())
	assert.Equal(t, StatusUnhealthy, check.Status)
	assert.Equal(t, "connection refused", check.Message)
}

func TestInFlightCheck(t *testing.T) {
	tests := []struct {
		name     string
		inFlight int
		limit    int
		want     Status
	}{
		{"under limit", 3, 10, StatusHealthy},
		{"at limit", 10, 10, StatusHealthy},
		{"over limit", 11, 10, StatusDegraded},
		{"disabled", 500, 0, StatusHealthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := InFlightCheck(func() int { return tt.inFlight }, tt.limit)(context.Background())
			assert.Equal(t, tt.want, check.Status)
			assert.Equal(t, tt.inFlight, check.Details["in_flight"])
		})
	}
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		status     Status
		liveness   bool
		wantStatus int
	}{
		{"ready healthy", StatusHealthy, false, http.StatusOK},
		{"ready degraded", StatusDegraded, false, http.StatusServiceUnavailable},
		{"ready unhealthy", StatusUnhealthy, false, http.StatusServiceUnavailable},
		{"live healthy", StatusHealthy, true, http.StatusOK},
		{"live degraded", StatusDegraded, true, http.StatusOK},
		{"live unhealthy", StatusUnhealthy, true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hc := NewHealthChecker()
			fn := func(context.Context) Check { return Check{Status: tt.status} }

			var handler http.HandlerFunc
			if tt.liveness {
				hc.RegisterLivenessCheck("probe", fn)
				handler = hc.LivenessHandler()
			} else {
				hc.RegisterReadinessCheck("probe", fn)
				handler = hc.ReadinessHandler()
			}

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var resp Response
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
			assert.Equal(t, tt.status, resp.Status)
			assert.Contains(t, resp.Checks, "probe")
		})
	}
}
