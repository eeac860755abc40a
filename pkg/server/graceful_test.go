package server

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dd0wney/cluso-lineage/pkg/logging"
)

func TestGracefulServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	var logs bytes.Buffer
	gs := NewGracefulServer(ln.Addr().String(), handler, logging.NewJSONLogger(&logs, logging.InfoLevel))
	gs.SetShutdownTimeout(time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gs.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, gs.IsShuttingDown())
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}

	assert.True(t, gs.IsShuttingDown())
	select {
	case <-gs.ShutdownChannel():
	default:
		t.Error("shutdown channel should be closed")
	}
	assert.Contains(t, logs.String(), "server shutdown complete")
}

func TestGracefulServer_ShutdownIsIdempotent(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", http.NotFoundHandler(), nil)

	assert.NoError(t, gs.Shutdown(time.Second))
	assert.NoError(t, gs.Shutdown(time.Second))
	assert.True(t, gs.IsShuttingDown())
}

func TestGracefulServer_RunReportsListenErrors(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	gs := NewGracefulServer(ln.Addr().String(), http.NotFoundHandler(), nil)
	assert.Error(t, gs.Run(context.Background()))
}

func TestGracefulServer_ReloadConfig(t *testing.T) {
	gs := NewGracefulServer("127.0.0.1:0", http.NotFoundHandler(), nil)

	assert.NoError(t, gs.ReloadConfig(), "no reload func is not an error")

	var calls atomic.Int32
	gs.SetConfigReloadFunc(func() error {
		calls.Add(1)
		return nil
	})
	require.NoError(t, gs.ReloadConfig())
	assert.Equal(t, int32(1), calls.Load())

	gs.SetConfigReloadFunc(func() error { return errors.New("bad config") })
	assert.EqualError(t, gs.ReloadConfig(), "bad config")
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{"client id kept", "abc-123", "abc-123"},
		{"unsafe characters stripped", "abc<script>", "abcscript"},
		{"truncated", strings.Repeat("x", 100), strings.Repeat("x", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, seen)
			assert.Equal(t, tt.want, rec.Header().Get(RequestIDHeader))
		})
	}

	t.Run("generated", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
	})
}

func TestPanicRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewJSONLogger(&logs, logging.InfoLevel)

	h := PanicRecovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
	assert.Contains(t, logs.String(), "boom")
	assert.Contains(t, logs.String(), "/explode")
}

func TestLoggingMiddleware(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewJSONLogger(&logs, logging.DebugLevel)

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), RequestID(), Logging(logger))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/brew", nil))

	out := logs.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"path":"/brew"`)
	assert.Contains(t, out, "request_id")
}
