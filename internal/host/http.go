package host

import (
	"encoding/json"
	"image/png"
	"net/http"
	"time"

	"inputoverlay/internal/logging"
	"inputoverlay/internal/source"
	"inputoverlay/internal/store"
)

// StatusResponse is served at /status.
type StatusResponse struct {
	Version string                 `json:"version,omitempty"`
	Uptime  string                 `json:"uptime"`
	Config  string                 `json:"config"`
	Overlay bool                   `json:"overlay_enabled"`
	Source  source.Status          `json:"source"`
	History *store.Stats           `json:"history,omitempty"`
	Metrics map[string]interface{} `json:"metrics"`
}

// Status returns the data served at /status.
func (h *Host) Status() StatusResponse {
	resp := StatusResponse{
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
		Config:  h.loader.Path(),
		Overlay: h.Config().Overlay.Enabled,
		Source:  h.source.Status(),
		Metrics: h.pipeline.Snapshot(),
	}
	if h.store != nil {
		if stats, err := h.store.Stats(); err == nil {
			resp.History = stats
		}
	}
	return resp
}

// Handler returns the HTTP status mux:
//
//	/metrics      Prometheus text, JSON with Accept: application/json
//	/livez        process liveness
//	/readyz       readiness
//	/healthz      aggregated health, ?full=true for every component
//	/status       source, history and metrics summary
//	/properties   settings visibility for the loaded layout
//	/frame.png    the current composited frame
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", h.registry.HTTPHandler())
	mux.Handle("GET /livez", h.checker.LivenessHandler())
	mux.Handle("GET /readyz", h.checker.ReadinessHandler())
	mux.Handle("GET /healthz", h.checker.HealthHandler())
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.Status())
	})
	mux.HandleFunc("GET /properties", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, h.source.Properties())
	})
	mux.HandleFunc("GET /frame.png", func(w http.ResponseWriter, r *http.Request) {
		frame := h.Frame()
		if frame.Bounds().Empty() {
			http.Error(w, "no frame: overlay not loaded", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		png.Encode(w, frame)
	})
	return h.withRequestID(mux)
}

// withRequestID tags every request with an ID, logs it and turns handler
// panics into crash reports.
func (h *Host) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = h.logger.NewRequestID()
		}
		ctx := logging.ContextWithRequestID(r.Context(), id)
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		defer func() {
			if rec := recover(); rec != nil {
				h.crash.HandlePanic(rec, map[string]interface{}{
					"request_id": id,
					"path":       r.URL.Path,
				})
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r.WithContext(ctx))
		h.logger.WithContext(ctx).Debug("http request",
			"method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
