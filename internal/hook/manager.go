package hook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"inputoverlay/internal/health"
	"inputoverlay/internal/input"
)

// Status describes one hook for status output.
type Status struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Running   bool   `json:"running"`
	Reason    string `json:"reason,omitempty"`
}

// Manager starts a set of hooks and tolerates the ones that cannot run.
type Manager struct {
	mu      sync.Mutex
	hooks   []Hook
	started []Hook
	status  map[string]Status
	logger  *slog.Logger
}

// NewManager creates a manager for hooks.
func NewManager(logger *slog.Logger, hooks ...Hook) *Manager {
	if logger == nil {
		logger = slog.Default().With("component", "hook")
	}
	return &Manager{
		hooks:  hooks,
		status: make(map[string]Status),
		logger: logger,
	}
}

// Start starts every hook. Hooks that are unavailable are logged and
// skipped; the returned error joins only unexpected start failures, and
// hooks that did start keep running regardless.
func (m *Manager) Start(ctx context.Context, cb Callback) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for _, h := range m.hooks {
		name := h.Name()
		if ok, reason := h.Available(); !ok {
			m.status[name] = Status{Name: name, Reason: reason}
			m.logger.Warn("input hook unavailable", "hook", name, "reason", reason)
			continue
		}

		err := h.Start(ctx, m.guard(name, cb))
		switch {
		case err == nil:
			m.started = append(m.started, h)
			m.status[name] = Status{Name: name, Available: true, Running: true}
			m.logger.Info("input hook started", "hook", name)
		case errors.Is(err, ErrHookUnavailable):
			m.status[name] = Status{Name: name, Reason: err.Error()}
			m.logger.Warn("input hook unavailable", "hook", name, "error", err)
		case errors.Is(err, ErrAlreadyRunning):
			m.status[name] = Status{Name: name, Available: true, Running: true}
		default:
			m.status[name] = Status{Name: name, Available: true, Reason: err.Error()}
			m.logger.Error("input hook failed to start", "hook", name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// guard keeps a panicking callback from taking down the hook goroutine.
func (m *Manager) guard(name string, cb Callback) Callback {
	return func(ev input.Event) {
		defer func() {
			if r := recover(); r != nil {
				m.logger.Error("input callback panicked", "hook", name, "event", ev.String(), "panic", r)
			}
		}()
		cb(ev)
	}
}

// Stop stops every started hook, in reverse start order. When it returns
// no callback is running.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for i := len(m.started) - 1; i >= 0; i-- {
		h := m.started[i]
		if err := h.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.Name(), err))
		}
		st := m.status[h.Name()]
		st.Running = false
		m.status[h.Name()] = st
	}
	m.started = nil
	return errors.Join(errs...)
}

// Status returns the status of every hook, sorted by name.
func (m *Manager) Status() []Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Status, 0, len(m.hooks))
	for _, h := range m.hooks {
		st, ok := m.status[h.Name()]
		if !ok {
			avail, reason := h.Available()
			st = Status{Name: h.Name(), Available: avail, Reason: reason}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HealthCheck reports degraded while any hook is not running. Missing
// hooks never make the overlay unhealthy.
func (m *Manager) HealthCheck() health.Check {
	return func(ctx context.Context) health.CheckResult {
		details := make(map[string]interface{})
		degraded := false
		for _, st := range m.Status() {
			if st.Running {
				details[st.Name] = "running"
				continue
			}
			degraded = true
			if st.Reason != "" {
				details[st.Name] = st.Reason
			} else {
				details[st.Name] = "stopped"
			}
		}
		if degraded {
			return health.CheckResult{
				Status:  health.StatusDegraded,
				Message: "some input hooks are not running",
				Details: details,
			}
		}
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Message: "all input hooks running",
			Details: details,
		}
	}
}
