// Package source adapts the overlay core to a host's source callbacks:
// update, tick, render and destroy, plus the size, property visibility and
// status queries a host shows in its UI.
//
// A Source owns one settings store, one element holder, one compositor and
// the input hooks feeding them. Render and Tick run on the host's render
// goroutine, hook callbacks on the hooks' own goroutines, and Update on
// whatever goroutine applies settings. None of them blocks the others for
// longer than a map update.
package source

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"inputoverlay/internal/element"
	"inputoverlay/internal/gfx"
	"inputoverlay/internal/health"
	"inputoverlay/internal/hook"
	"inputoverlay/internal/input"
	"inputoverlay/internal/layout"
	"inputoverlay/internal/metrics"
	"inputoverlay/internal/overlay"
	"inputoverlay/internal/settings"
)

// ErrDestroyed is returned by Update after Destroy.
var ErrDestroyed = errors.New("source destroyed")

// History receives every input event the overlay displays.
type History interface {
	Record(ev input.Event)
}

// Options configures a Source.
type Options struct {
	// Hooks feed the source. They are started by New and stopped by Destroy.
	Hooks []hook.Hook
	// History, when set, receives every applied press and release.
	History History
	// Metrics defaults to a pipeline on the default registry.
	Metrics *metrics.Pipeline
	Logger  *slog.Logger
}

// Source is one overlay instance.
type Source struct {
	store   *settings.Store
	holder  *element.Holder
	overlay *overlay.Overlay
	hooks   *hook.Manager
	history History
	metrics *metrics.Pipeline
	logger  *slog.Logger

	mu        sync.Mutex // serializes Update and Destroy
	loaded    bool
	image     string
	layout    string
	destroyed bool
}

// New creates a source, loads its assets and starts the hooks. Asset and
// hook failures are logged and surfaced through Status; they never make
// New fail.
func New(ctx context.Context, initial settings.Settings, opts Options) *Source {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "source")
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewPipeline(nil)
	}

	store := settings.NewStore(initial.Clamp())
	holder := element.NewHolder(element.SettingsDeadZone(store))
	s := &Source{
		store:   store,
		holder:  holder,
		overlay: overlay.New(store, holder, logger.With("component", "overlay")),
		hooks:   hook.NewManager(logger.With("component", "hook"), opts.Hooks...),
		history: opts.History,
		metrics: m,
		logger:  logger,
	}

	if err := s.Update(ctx, initial); err != nil {
		logger.Warn("initial load incomplete", "error", err)
	}
	if err := s.hooks.Start(ctx, s.handle); err != nil {
		logger.Error("input hooks failed", "error", err)
	}
	s.countHooks()
	return s
}

// Update publishes next as the current settings and reloads the atlas and
// layout when either path changed or the last load did not complete. The
// returned error describes a missing or malformed asset; the source keeps
// rendering in its fallback mode.
func (s *Source) Update(ctx context.Context, next settings.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}

	next = next.Clamp()
	s.store.Set(next)

	if s.loaded && next.ImageFile == s.image && next.LayoutFile == s.layout && s.complete(next) {
		return nil
	}
	return s.reloadLocked(ctx)
}

// complete reports whether the last load found every asset cur names.
func (s *Source) complete(cur settings.Settings) bool {
	if s.overlay.Err() != nil {
		return false
	}
	return cur.LayoutFile == "" || s.overlay.IsLoaded()
}

// Reload reloads the atlas and layout from their current paths, for
// example after the files changed on disk.
func (s *Source) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return ErrDestroyed
	}
	return s.reloadLocked(ctx)
}

func (s *Source) reloadLocked(ctx context.Context) error {
	cur := s.store.Load()
	start := time.Now()
	err := s.overlay.Load(ctx)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	s.loaded = true
	s.image = cur.ImageFile
	s.layout = cur.LayoutFile
	s.metrics.RecordLoad(time.Since(start), err,
		s.overlay.IsLoaded(), s.overlay.PassThrough(), s.overlay.Registry().Len())
	return err
}

// handle runs on hook goroutines.
func (s *Source) handle(ev input.Event) {
	if !s.accepts(ev, s.store.Load()) {
		s.metrics.RecordFiltered()
		return
	}
	changed := s.holder.Apply(ev)
	s.metrics.RecordEvent(ev.Timestamp, changed)

	if s.history != nil && changed && (ev.Kind == input.KindKey || ev.Kind == input.KindButton) {
		s.history.Record(ev)
	}
}

// accepts applies the gamepad and mouse settings to ev.
func (s *Source) accepts(ev input.Event, cur *settings.Settings) bool {
	switch ev.Code.Class() {
	case input.ClassGamepad:
		return cur.GamepadEnabled && ev.Device == cur.GamepadID
	case input.ClassMouse:
		if ev.Kind == input.KindMove {
			return cur.MouseMovementEnabled
		}
	}
	return true
}

// Tick advances time-based element state by dt.
func (s *Source) Tick(dt time.Duration) {
	s.holder.Tick(dt)
}

// Render draws the current frame into fx.
func (s *Source) Render(fx gfx.Effect) {
	start := time.Now()
	s.overlay.Draw(fx)
	s.metrics.RecordFrame(time.Since(start))
}

// Width returns the frame width.
func (s *Source) Width() int {
	w, _ := s.overlay.Size()
	return w
}

// Height returns the frame height.
func (s *Source) Height() int {
	_, h := s.overlay.Size()
	return h
}

// IsLoaded reports whether both the atlas and a layout are loaded.
func (s *Source) IsLoaded() bool {
	return s.overlay.IsLoaded()
}

// Settings returns the current settings snapshot.
func (s *Source) Settings() settings.Settings {
	return *s.store.Load()
}

// Overlay returns the compositor.
func (s *Source) Overlay() *overlay.Overlay {
	return s.overlay
}

// Holder returns the element state holder.
func (s *Source) Holder() *element.Holder {
	return s.holder
}

// Properties returns the advanced settings a UI should show for the
// loaded layout. Layouts that failed to load hide all of them.
func (s *Source) Properties() Properties {
	cur := s.store.Load()
	v := layout.Visible(s.overlay.Layout())
	fields := v.Fields()
	center := layout.MonitorCenterVisible(cur.UseMonitorCenter) && v.MouseFields
	fields[layout.FieldMonitorHCenter] = center
	fields[layout.FieldMonitorVCenter] = center
	return Properties{Visibility: v, Fields: fields}
}

// Properties is the visibility of the advanced settings.
type Properties struct {
	layout.Visibility
	Fields map[string]bool
}

// Status describes the source for status output and health checks.
type Status struct {
	Mode        string        `json:"mode"`
	Loaded      bool          `json:"loaded"`
	PassThrough bool          `json:"pass_through"`
	Width       int           `json:"width"`
	Height      int           `json:"height"`
	Elements    int           `json:"elements"`
	ImageFile   string        `json:"image_file,omitempty"`
	LayoutFile  string        `json:"layout_file,omitempty"`
	Error       string        `json:"error,omitempty"`
	Warnings    []string      `json:"warnings,omitempty"`
	Hooks       []hook.Status `json:"hooks"`
	LoadedAt    time.Time     `json:"loaded_at,omitempty"`
}

// Status returns the current status.
func (s *Source) Status() Status {
	cur := s.store.Load()
	w, h := s.overlay.Size()
	st := Status{
		Mode:        s.overlay.Mode().String(),
		Loaded:      s.overlay.IsLoaded(),
		PassThrough: s.overlay.PassThrough(),
		Width:       w,
		Height:      h,
		Elements:    s.overlay.Registry().Len(),
		ImageFile:   cur.ImageFile,
		LayoutFile:  cur.LayoutFile,
		Hooks:       s.hooks.Status(),
		LoadedAt:    s.overlay.LoadedAt(),
	}
	if err := s.overlay.Err(); err != nil {
		st.Error = err.Error()
	}
	for _, w := range s.overlay.Registry().Warnings() {
		st.Warnings = append(st.Warnings, w.Error())
	}
	return st
}

// HealthCheck reports degraded while the source renders in a fallback
// mode. A missing image or layout never makes the host unhealthy.
func (s *Source) HealthCheck() health.Check {
	return func(ctx context.Context) health.CheckResult {
		st := s.Status()
		details := map[string]interface{}{
			"mode":     st.Mode,
			"elements": st.Elements,
		}
		if len(st.Warnings) > 0 {
			details["warnings"] = len(st.Warnings)
		}
		switch {
		case st.Loaded:
			return health.CheckResult{Status: health.StatusHealthy, Message: "overlay loaded", Details: details}
		case st.PassThrough:
			return health.CheckResult{Status: health.StatusDegraded, Message: "no layout, drawing the image as is", Details: details, Error: st.Error}
		default:
			return health.CheckResult{Status: health.StatusDegraded, Message: "overlay not loaded", Details: details, Error: st.Error}
		}
	}
}

// Hooks returns the hook manager, for health checks.
func (s *Source) Hooks() *hook.Manager {
	return s.hooks
}

// Destroy stops every hook. No hook callback runs after it returns.
func (s *Source) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	err := s.hooks.Stop()
	s.countHooks()
	return err
}

func (s *Source) countHooks() {
	var running int64
	for _, st := range s.hooks.Status() {
		if st.Running {
			running++
		}
	}
	s.metrics.HooksRunning.Set(running)
}
