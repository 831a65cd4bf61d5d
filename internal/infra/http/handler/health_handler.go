package handler

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const readyTimeout = 5 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps map[string]Pinger
}

// HealthHandlerOption configures the health handler.
type HealthHandlerOption func(*HealthHandler)

// WithDependency adds a named dependency to the readiness probe. Nil pingers
// are ignored so optional backends can be passed unconditionally.
func WithDependency(name string, p Pinger) HealthHandlerOption {
	return func(h *HealthHandler) {
		if p != nil {
			h.deps[name] = p
		}
	}
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(opts ...HealthHandlerOption) *HealthHandler {
	h := &HealthHandler{deps: make(map[string]Pinger)}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse is the readiness payload.
type ReadyResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
	})
}

// Ready handles GET /ready. It answers 503 when any dependency fails.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	var (
		mu     sync.Mutex
		checks = make(map[string]CheckResult, len(h.deps))
		g      errgroup.Group
	)
	for name, p := range h.deps {
		g.Go(func() error {
			result := checkDependency(ctx, p)
			mu.Lock()
			checks[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	resp := ReadyResponse{
		Status:    "ready",
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}
	status := http.StatusOK
	for _, c := range checks {
		if c.Status != "ok" {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, resp)
}

func checkDependency(ctx context.Context, p Pinger) CheckResult {
	start := time.Now()
	err := p.Ping(ctx)
	result := CheckResult{Status: "ok", Duration: time.Since(start).String()}
	if err != nil {
		result.Status = "error"
		result.Error = err.Error()
	}
	return result
}
