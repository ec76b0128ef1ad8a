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

func TestReportAllDependenciesUp(t *testing.T) {
	h := New("version=1.2.3")
	h.AddProbe("postgres", func(context.Context) error { return nil })
	h.AddProbe("redis", func(context.Context) error { return nil })

	report := h.Report(context.Background())

	assert.Equal(t, StateUp, report.State)
	assert.Equal(t, "version=1.2.3", report.Version)
	require.Len(t, report.Dependencies, 2)
	assert.Equal(t, StateUp, report.Dependencies["postgres"].State)
	assert.Equal(t, StateUp, report.Dependencies["redis"].State)
	assert.Nil(t, report.Outbox)
}

func TestReportDependencyDown(t *testing.T) {
	h := New("dev")
	h.AddProbe("postgres", func(context.Context) error { return errors.New("connection refused") })
	h.AddProbe("redis", func(context.Context) error { return nil })

	report := h.Report(context.Background())

	assert.Equal(t, StateDown, report.State)
	assert.Equal(t, StateDown, report.Dependencies["postgres"].State)
	assert.Equal(t, "connection refused", report.Dependencies["postgres"].Error)
	assert.Equal(t, StateUp, report.Dependencies["redis"].State)
}

func TestReportOutboxBacklogWithinLimit(t *testing.T) {
	h := New("dev")
	h.TrackOutbox(func() (Backlog, error) {
		return Backlog{Pending: 3, OldestAge: 5 * time.Second}, nil
	})

	report := h.Report(context.Background())

	assert.Equal(t, StateUp, report.State)
	require.NotNil(t, report.Outbox)
	assert.Equal(t, 3, report.Outbox.Pending)
	assert.InDelta(t, 5.0, report.Outbox.OldestAgeSeconds, 0.01)
}

func TestReportOutboxBacklogDegradesService(t *testing.T) {
	tests := []struct {
		name    string
		backlog Backlog
	}{
		{name: "too many pending", backlog: Backlog{Pending: degradedBacklog + 1}},
		{name: "oldest record too stale", backlog: Backlog{Pending: 1, OldestAge: degradedOldestAge + time.Second}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New("dev")
			h.TrackOutbox(func() (Backlog, error) { return tt.backlog, nil })

			report := h.Report(context.Background())

			assert.Equal(t, StateDegraded, report.State)
		})
	}
}

func TestReportOutboxStatsErrorDegradesService(t *testing.T) {
	h := New("dev")
	h.TrackOutbox(func() (Backlog, error) { return Backlog{}, errors.New("stats unavailable") })

	report := h.Report(context.Background())

	assert.Equal(t, StateDegraded, report.State)
	require.NotNil(t, report.Outbox)
	assert.Equal(t, "stats unavailable", report.Outbox.Error)
}

func TestReportDownWinsOverDegraded(t *testing.T) {
	h := New("dev")
	h.AddProbe("postgres", func(context.Context) error { return errors.New("down") })
	h.TrackOutbox(func() (Backlog, error) {
		return Backlog{Pending: degradedBacklog + 1}, nil
	})

	report := h.Report(context.Background())

	assert.Equal(t, StateDown, report.State)
}

func TestServeHTTPEncodesReport(t *testing.T) {
	h := New("dev")
	h.AddProbe("postgres", func(context.Context) error { return nil })
	h.TrackOutbox(func() (Backlog, error) {
		return Backlog{Pending: 7, OldestAge: time.Second}, nil
	})

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var report Report
	require.NoError(t, json.NewDecoder(w.Body).Decode(&report))
	assert.Equal(t, StateUp, report.State)
	require.NotNil(t, report.Outbox)
	assert.Equal(t, 7, report.Outbox.Pending)
}

func TestServeHTTPDependencyDownReturns503(t *testing.T) {
	h := New("dev")
	h.AddProbe("postgres", func(context.Context) error { return errors.New("down") })

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadinessDegradedStillReady(t *testing.T) {
	h := New("dev")
	h.TrackOutbox(func() (Backlog, error) {
		return Backlog{Pending: degradedBacklog + 1}, nil
	})

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready", w.Body.String())
}

func TestReadinessDependencyDownNotReady(t *testing.T) {
	h := New("dev")
	h.AddProbe("postgres", func(context.Context) error { return errors.New("down") })

	w := httptest.NewRecorder()
	h.Readiness(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not ready", w.Body.String())
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	Liveness(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestProbeTimeoutReportedAsDown(t *testing.T) {
	h := New("dev")
	h.AddProbe("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	report := h.Report(ctx)

	assert.Equal(t, StateDown, report.State)
	assert.Equal(t, StateDown, report.Dependencies["slow"].State)
}
