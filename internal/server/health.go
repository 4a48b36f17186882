package server

import (
	"net/http"
	"sync/atomic"
	"time"
)

const (
	healthStatusOK           = "ok"
	healthStatusNotReady     = "not ready"
	healthStatusShuttingDown = "shutting down"
	healthStatusMissing      = "missing"
	healthStatusDegraded     = "degraded"
)

// healthCheck is one named readiness probe. Advisory checks are reported
// but never fail readiness: a signed-out dashboard still has to serve the
// sign-in page.
type healthCheck struct {
	name     string
	advisory bool
	run      func() string
}

// HealthChecker serves liveness and readiness endpoints.
type HealthChecker struct {
	ready         atomic.Bool
	serverContext *ServerContext
	startTime     time.Time
	checks        []healthCheck
}

// NewHealthChecker creates a HealthChecker that starts out ready.
func NewHealthChecker(sc *ServerContext) *HealthChecker {
	h := &HealthChecker{serverContext: sc, startTime: time.Now()}
	h.ready.Store(true)

	h.checks = []healthCheck{
		{name: "ready", run: func() string {
			if !h.ready.Load() {
				return healthStatusNotReady
			}
			return healthStatusOK
		}},
		{name: "shutdown", run: func() string {
			if h.isServerShuttingDown() {
				return healthStatusShuttingDown
			}
			return healthStatusOK
		}},
	}
	if sc != nil {
		h.checks = append(h.checks,
			healthCheck{name: "credentials", advisory: true, run: func() string {
				if InspectCredentials(sc.Store(), time.Now()).Present {
					return healthStatusOK
				}
				return healthStatusMissing
			}},
			healthCheck{name: "sync", advisory: true, run: func() string {
				if sc.Scheduler().Snapshot().Error != "" {
					return healthStatusDegraded
				}
				return healthStatusOK
			}},
		)
	}
	return h
}

// SetReady flips readiness, for example while draining on shutdown.
func (h *HealthChecker) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *HealthChecker) IsReady() bool {
	return h.ready.Load()
}

func (h *HealthChecker) isServerShuttingDown() bool {
	return h.serverContext != nil && h.serverContext.IsShutdown()
}

// HealthResponse is the body of /healthz and /readyz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// DetailedHealthResponse adds uptime and sync information.
type DetailedHealthResponse struct {
	Status      string            `json:"status"`
	Uptime      string            `json:"uptime"`
	Checks      map[string]string `json:"checks"`
	SyncState   string            `json:"syncState,omitempty"`
	SyncError   string            `json:"syncError,omitempty"`
	LastUpdated *time.Time        `json:"lastUpdated,omitempty"`
	Credentials bool              `json:"credentials"`
	AIBackend   string            `json:"aiBackend,omitempty"`
}

// evaluate runs every check and returns the overall status and HTTP code.
func (h *HealthChecker) evaluate() (string, int, map[string]string) {
	results := make(map[string]string, len(h.checks))
	status, code := healthStatusOK, http.StatusOK
	for _, c := range h.checks {
		result := c.run()
		results[c.name] = result
		if result != healthStatusOK && !c.advisory && code == http.StatusOK {
			status, code = result, http.StatusServiceUnavailable
		}
	}
	return status, code, results
}

// LivenessHandler serves /healthz. It only proves the process answers.
func (h *HealthChecker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, HealthResponse{Status: healthStatusOK})
	})
}

// ReadinessHandler serves /readyz.
func (h *HealthChecker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, code, checks := h.evaluate()
		writeJSON(w, code, HealthResponse{Status: status, Checks: checks})
	})
}

// DetailedHealthHandler serves /healthz/detailed.
func (h *HealthChecker) DetailedHealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status, code, checks := h.evaluate()
		response := DetailedHealthResponse{
			Status: status,
			Uptime: time.Since(h.startTime).Truncate(time.Second).String(),
			Checks: checks,
		}
		if sc := h.serverContext; sc != nil {
			snap := sc.Scheduler().Snapshot()
			response.SyncState = snap.State.String()
			response.SyncError = snap.Error
			if !snap.LastUpdated.IsZero() {
				response.LastUpdated = &snap.LastUpdated
			}
			response.Credentials = checks["credentials"] == healthStatusOK
			response.AIBackend = sc.Insights().BackendName()
		}
		writeJSON(w, code, response)
	})
}

// RegisterHealthEndpoints registers health check endpoints on the given mux.
func (h *HealthChecker) RegisterHealthEndpoints(mux *http.ServeMux) {
	mux.Handle("GET /healthz", h.LivenessHandler())
	mux.Handle("GET /readyz", h.ReadinessHandler())
	mux.Handle("GET /healthz/detailed", h.DetailedHealthHandler())
}
