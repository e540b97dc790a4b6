package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is served by HealthHandler.
type HealthResponse struct {
	Status     Status                 `json:"status"`
	Ready      bool                   `json:"ready"`
	Uptime     string                 `json:"uptime"`
	Components map[string]CheckResult `json:"components,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// HealthResponse builds the /healthz body. With full set every check is
// run first and its result included.
func (c *Checker) HealthResponse(ctx context.Context, full bool) HealthResponse {
	var comps map[string]CheckResult
	if full {
		comps = c.Check(ctx)
	}
	c.mu.RLock()
	ready, uptime := c.ready, time.Since(c.started)
	c.mu.RUnlock()

	return HealthResponse{
		Status:     c.OverallStatus(),
		Ready:      ready,
		Uptime:     uptime.Round(time.Second).String(),
		Components: comps,
		Timestamp:  time.Now(),
	}
}

func reply(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// LivenessHandler answers 200 while the process serves requests.
func (c *Checker) LivenessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]interface{}{"status": "alive", "timestamp": time.Now()})
	})
}

// ReadinessHandler answers 503 before SetReady(true) or while a critical
// component is unhealthy.
func (c *Checker) ReadinessHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !c.IsReady() {
			reply(w, http.StatusServiceUnavailable, map[string]interface{}{"status": "not ready", "timestamp": time.Now()})
			return
		}
		status := c.OverallStatus()
		code := http.StatusOK
		if status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		reply(w, code, map[string]interface{}{"status": status, "ready": true, "timestamp": time.Now()})
	})
}

// HealthHandler serves HealthResponse; ?full=true runs every check.
// Degraded still answers 200.
func (c *Checker) HealthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := c.HealthResponse(r.Context(), r.URL.Query().Get("full") == "true")
		code := http.StatusOK
		if resp.Status == StatusUnhealthy || resp.Status == StatusUnknown {
			code = http.StatusServiceUnavailable
		}
		reply(w, code, resp)
	})
}
