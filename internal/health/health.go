// Package health отдаёт состояние конвейера заказов для healthz/readyz проб.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// State описывает агрегированное состояние сервиса или зависимости.
type State string

const (
	StateUp       State = "up"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

const (
	probeTimeout = 2 * time.Second

	// Бэклог outbox выше порога означает, что фулфилмент отстаёт от оплат.
	degradedBacklog   = 500
	degradedOldestAge = 2 * time.Minute
)

// Probe проверяет одну внешнюю зависимость (postgres, redis, kafka).
type Probe func(ctx context.Context) error

// Backlog описывает невыгруженный хвост transactional outbox.
type Backlog struct {
	Pending   int
	OldestAge time.Duration
}

// BacklogFunc снимает текущий бэклог outbox.
type BacklogFunc func() (Backlog, error)

// DependencyReport — результат одной пробы в ответе healthz.
type DependencyReport struct {
	State     State  `json:"state"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// OutboxReport — срез бэклога outbox в ответе healthz.
type OutboxReport struct {
	Pending          int     `json:"pending"`
	OldestAgeSeconds float64 `json:"oldest_age_seconds"`
	Error            string  `json:"error,omitempty"`
}

// Report — полный ответ healthz.
type Report struct {
	State         State                       `json:"state"`
	Version       string                      `json:"version,omitempty"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Dependencies  map[string]DependencyReport `json:"dependencies,omitempty"`
	Outbox        *OutboxReport               `json:"outbox,omitempty"`
}

// Handler собирает пробы зависимостей и бэклог outbox в один отчёт.
type Handler struct {
	version string
	started time.Time

	mu      sync.RWMutex
	probes  map[string]Probe
	backlog BacklogFunc
}

// New создаёт health handler без зарегистрированных проб.
func New(version string) *Handler {
	return &Handler{
		version: version,
		started: time.Now(),
		probes:  make(map[string]Probe),
	}
}

// AddProbe регистрирует пробу зависимости под именем name.
func (h *Handler) AddProbe(name string, probe Probe) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// TrackOutbox подключает источник бэклога outbox к отчёту.
func (h *Handler) TrackOutbox(fn BacklogFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog = fn
}

// Report выполняет все пробы и собирает сводку.
// Любая упавшая проба даёт down; отстающий outbox даёт degraded.
func (h *Handler) Report(ctx context.Context) Report {
	h.mu.RLock()
	probes := make(map[string]Probe, len(h.probes))
	for name, probe := range h.probes {
		probes[name] = probe
	}
	backlog := h.backlog
	h.mu.RUnlock()

	report := Report{
		State:         StateUp,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}

	if len(probes) > 0 {
		report.Dependencies = make(map[string]DependencyReport, len(probes))
	}
	for _, name := range sortedNames(probes) {
		dep := runProbe(ctx, probes[name])
		report.Dependencies[name] = dep
		if dep.State == StateDown {
			report.State = StateDown
		}
	}

	if backlog != nil {
		outbox, state := inspectBacklog(backlog)
		report.Outbox = &outbox
		if state == StateDegraded && report.State == StateUp {
			report.State = StateDegraded
		}
	}

	return report
}

// ServeHTTP отдаёт полный отчёт; 503 только когда зависимость недоступна.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())

	code := http.StatusOK
	if report.State == StateDown {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}

// Readiness отвечает 200 пока все зависимости доступны.
// Degraded означает отставание конвейера, а не неготовность к трафику.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	report := h.Report(r.Context())
	if report.State == StateDown {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Liveness отвечает 200 пока процесс жив.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func runProbe(ctx context.Context, probe Probe) DependencyReport {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := probe(probeCtx)
	latency := time.Since(start).Milliseconds()

	if err != nil {
		return DependencyReport{State: StateDown, Error: err.Error(), LatencyMs: latency}
	}
	return DependencyReport{State: StateUp, LatencyMs: latency}
}

func inspectBacklog(fn BacklogFunc) (OutboxReport, State) {
	backlog, err := fn()
	if err != nil {
		return OutboxReport{Error: err.Error()}, StateDegraded
	}

	report := OutboxReport{
		Pending:          backlog.Pending,
		OldestAgeSeconds: backlog.OldestAge.Seconds(),
	}
	if report.OldestAgeSeconds < 0 {
		report.OldestAgeSeconds = 0
	}

	if backlog.Pending > degradedBacklog || backlog.OldestAge > degradedOldestAge {
		return report, StateDegraded
	}
	return report, StateUp
}

func sortedNames(probes map[string]Probe) []string {
	names := make([]string, 0, len(probes))
	for name := range probes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
