// Package host runs one overlay source outside a streaming application.
//
// A Host owns the pieces around a source.Source: the configuration loader
// and its hot reload, the logger, the platform input hooks, the optional
// input history, the asset watcher, health checks, metrics and the HTTP
// status server. Both command line hosts build on it.
package host

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"net/http"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"inputoverlay/internal/config"
	"inputoverlay/internal/gfx"
	"inputoverlay/internal/health"
	"inputoverlay/internal/hook"
	"inputoverlay/internal/logging"
	"inputoverlay/internal/metrics"
	"inputoverlay/internal/source"
	"inputoverlay/internal/store"
	"inputoverlay/internal/watcher"
)

// Options configures a Host.
type Options struct {
	// ConfigPath is the configuration file. Empty uses config.FindConfigFile.
	ConfigPath string

	// Version is reported in crash reports and /status.
	Version string

	// Hooks replaces the platform hooks when non-nil.
	Hooks []hook.Hook

	// Logger replaces the logger built from the configuration.
	Logger *logging.Logger
}

// Host is a running overlay.
type Host struct {
	version string
	started time.Time

	loader   *config.Loader
	logger   *logging.Logger
	crash    *logging.CrashHandler
	registry *metrics.Registry
	pipeline *metrics.Pipeline
	checker  *health.Checker

	source   *source.Source
	store    *store.Store
	recorder *store.Recorder
	watcher  *watcher.Watcher

	frameMu sync.Mutex
	canvas  *gfx.Canvas

	configErr atomic.Pointer[error] // last rejected reload

	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
	closeErr  error
}

// New loads the configuration and starts the overlay. Missing assets and
// unavailable hooks are not errors; an invalid configuration or an
// unusable history database is.
func New(ctx context.Context, opts Options) (*Host, error) {
	path := opts.ConfigPath
	if path == "" {
		path = config.FindConfigFile()
	}

	bootLogger := opts.Logger
	if bootLogger == nil {
		bootLogger = logging.Default()
	}
	loader := config.NewLoader(path, bootLogger.WithComponent("config").Logger)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	for _, w := range config.Check(cfg).Warnings() {
		bootLogger.Warn("configuration warning", "field", w.Field, "message", w.Message)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		lc, err := cfg.LoggerConfig()
		if err != nil {
			return nil, err
		}
		if logger, err = logging.New(lc); err != nil {
			return nil, fmt.Errorf("create logger: %w", err)
		}
	}

	registry := metrics.NewRegistry(cfg.Metrics.Namespace, "")
	h := &Host{
		version:  opts.Version,
		started:  time.Now(),
		loader:   loader,
		logger:   logger,
		registry: registry,
		pipeline: metrics.NewPipeline(registry),
		checker:  health.NewChecker(),
		canvas:   gfx.NewCanvas(0, 0),
		crash: logging.NewCrashHandler(&logging.CrashHandlerConfig{
			Version:   opts.Version,
			Component: "inputoverlay",
			Logger:    logger.WithComponent("crash").Logger,
		}),
	}
	if bg, err := config.ParseColor(cfg.Preview.Background); err == nil {
		h.canvas.SetBackground(rgba(bg))
	}

	if err := h.openHistory(cfg); err != nil {
		logger.Close()
		return nil, err
	}

	hooks := opts.Hooks
	if hooks == nil {
		ho := cfg.HookOptions()
		ho.Logger = logger.WithComponent("hook").Logger
		hooks = hook.Platform(ho)
	}
	srcOpts := source.Options{
		Hooks:   hooks,
		Metrics: h.pipeline,
		Logger:  logger.WithComponent("source").Logger,
	}
	if h.recorder != nil {
		srcOpts.History = h.recorder
	}
	h.source = source.New(ctx, cfg.Settings(loader.Dir()), srcOpts)

	runCtx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel

	if cfg.Watch.Enabled {
		if err := h.startWatcher(runCtx, cfg); err != nil {
			logger.Warn("asset watcher unavailable", "error", err)
		}
	}
	h.registerChecks(cfg)

	loader.OnChange(func(old, next *config.Config) { h.applyConfig(runCtx, old, next) })
	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload unavailable", "path", loader.Path(), "error", err)
	} else {
		h.wg.Add(1)
		go h.reportConfigErrors(runCtx)
	}

	h.checker.SetReady(true)
	logger.Info("overlay started",
		"config", loader.Path(),
		"mode", h.source.Status().Mode,
		"hooks", len(hooks),
		"history", h.recorder != nil,
	)
	return h, nil
}

func (h *Host) openHistory(cfg *config.Config) error {
	if !cfg.History.Enabled {
		return nil
	}
	st, err := store.Open(cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if days := cfg.History.RetentionDays; days > 0 {
		n, err := st.Prune(time.Now().AddDate(0, 0, -days))
		if err != nil {
			h.logger.Warn("history prune failed", "error", err)
		} else if n > 0 {
			h.logger.Info("pruned input history", "entries", n, "days", days)
		}
	}

	rc := store.DefaultRecorderConfig()
	rc.Layout = cfg.Overlay.LayoutFile
	rc.FlushInterval = time.Duration(cfg.History.FlushIntervalMs) * time.Millisecond
	rc.BatchSize = cfg.History.BatchSize
	rc.Metrics = h.pipeline
	rc.Logger = h.logger.WithComponent("store").Logger
	rec, err := store.NewRecorder(st, rc)
	if err != nil {
		st.Close()
		return fmt.Errorf("start history: %w", err)
	}
	h.store = st
	h.recorder = rec
	return nil
}

func (h *Host) startWatcher(ctx context.Context, cfg *config.Config) error {
	debounce := time.Duration(cfg.Watch.DebounceMs) * time.Millisecond
	w, err := watcher.New(debounce, h.logger.WithComponent("watcher").Logger)
	if err != nil {
		return err
	}
	s := cfg.Settings(h.loader.Dir())
	if err := w.SetPaths(s.ImageFile, s.LayoutFile); err != nil {
		h.logger.Warn("watching assets", "error", err)
	}
	h.watcher = w

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.crash.RecoverWithContext(map[string]interface{}{"goroutine": "watcher"}, func() {
			w.Run(ctx, func(ctx context.Context, _ watcher.Event) error {
				return h.source.Reload(ctx)
			})
		})
	}()
	return nil
}

func (h *Host) registerChecks(cfg *config.Config) {
	h.checker.RegisterFunc("source", false, h.source.HealthCheck())
	h.checker.RegisterFunc("hooks", false, h.source.Hooks().HealthCheck())
	h.checker.RegisterFunc("memory", false, health.MemoryCheck(512<<20))
	h.checker.RegisterFunc("config", false, h.configCheck)
	if h.store != nil {
		h.checker.RegisterFunc("history", true, health.DatabaseCheck(h.store.DB().PingContext))
		h.checker.RegisterFunc("history_disk", false, health.DiskSpaceCheck(filepath.Dir(cfg.HistoryPath()), 64<<20))
	}
}

// configCheck is degraded while the file on disk is a rejected edit and
// the previous configuration is still in effect.
func (h *Host) configCheck(ctx context.Context) health.CheckResult {
	details := map[string]interface{}{"path": h.loader.Path()}
	if errp := h.configErr.Load(); errp != nil {
		return health.CheckResult{
			Status:  health.StatusDegraded,
			Message: "configuration reload rejected",
			Error:   (*errp).Error(),
			Details: details,
		}
	}
	return health.CheckResult{Status: health.StatusHealthy, Message: "configuration ok", Details: details}
}

// applyConfig runs on the loader's goroutine after a valid reload.
func (h *Host) applyConfig(ctx context.Context, old, next *config.Config) {
	h.configErr.Store(nil)
	s := next.Settings(h.loader.Dir())
	if err := h.source.Update(ctx, s); err != nil && !errors.Is(err, source.ErrDestroyed) {
		h.logger.Warn("overlay reload incomplete", "error", err)
	}
	if h.watcher != nil {
		if err := h.watcher.SetPaths(s.ImageFile, s.LayoutFile); err != nil {
			h.logger.Warn("watching assets", "error", err)
		}
	}
	if bg, err := config.ParseColor(next.Preview.Background); err == nil {
		h.frameMu.Lock()
		h.canvas.SetBackground(rgba(bg))
		h.frameMu.Unlock()
	}

	if old.HookOptions() != next.HookOptions() {
		h.logger.Warn("hook settings changed; restart to apply")
	}
	logLevelOnly := old.Logging != next.Logging
	if logLevelOnly {
		a, b := old.Logging, next.Logging
		a.Level, b.Level = "", ""
		logLevelOnly = a == b
	}
	if logLevelOnly {
		if level, err := logging.ParseLevel(next.Logging.Level); err == nil {
			h.logger.SetLevel(level)
			h.logger.Info("log level changed", "level", logging.LevelString(level))
		}
	}
	if old.History != next.History || old.Metrics != next.Metrics || (old.Logging != next.Logging && !logLevelOnly) {
		h.logger.Warn("history, logging or metrics settings changed; restart to apply")
	}
	h.logger.Info("configuration reloaded", "mode", h.source.Status().Mode)
}

func (h *Host) reportConfigErrors(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-h.loader.Errors():
			if !ok {
				return
			}
			h.configErr.Store(&err)
		}
	}
}

// Source returns the overlay source.
func (h *Host) Source() *source.Source {
	return h.source
}

// Config returns the current configuration.
func (h *Host) Config() *config.Config {
	return h.loader.Config()
}

// Logger returns the host logger.
func (h *Host) Logger() *logging.Logger {
	return h.logger
}

// Checker returns the health checker.
func (h *Host) Checker() *health.Checker {
	return h.checker
}

// Metrics returns the pipeline metrics.
func (h *Host) Metrics() *metrics.Pipeline {
	return h.pipeline
}

// Crash returns the crash handler.
func (h *Host) Crash() *logging.CrashHandler {
	return h.crash
}

// History returns the history store, or nil when history is disabled.
func (h *Host) History() *store.Store {
	return h.store
}

// Frame renders the current frame and returns a copy of it. With the
// overlay disabled the frame is empty.
func (h *Host) Frame() *image.RGBA {
	h.frameMu.Lock()
	defer h.frameMu.Unlock()

	src := h.source
	h.canvas.Resize(src.Width(), src.Height())
	h.canvas.Clear()
	if h.Config().Overlay.Enabled {
		src.Render(h.canvas)
	}

	frame := h.canvas.Image()
	out := image.NewRGBA(frame.Bounds())
	copy(out.Pix, frame.Pix)
	return out
}

// Run ticks the source at fps until ctx is done, serving HTTP when metrics
// are enabled.
func (h *Host) Run(ctx context.Context, fps int) error {
	if fps <= 0 {
		fps = 60
	}

	errc := make(chan error, 1)
	if cfg := h.Config(); cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           h.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			h.logger.Info("status server listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			return fmt.Errorf("status server: %w", err)
		case now := <-ticker.C:
			h.source.Tick(now.Sub(last))
			h.pipeline.UpdateUptime()
			last = now
		}
	}
}

// Close stops the hooks, flushes the history and releases every resource.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.checker.SetReady(false)
		var errs []error
		errs = append(errs, h.loader.Close())
		if h.watcher != nil {
			errs = append(errs, h.watcher.Stop())
		}
		h.cancel()
		h.wg.Wait()

		errs = append(errs, h.source.Destroy())
		if h.recorder != nil {
			if err := h.recorder.Close(); err != nil && !errors.Is(err, store.ErrRecorderClosed) {
				errs = append(errs, err)
			}
			if n := h.recorder.Dropped(); n > 0 {
				h.logger.Warn("history entries dropped", "count", n)
			}
			errs = append(errs, h.store.Close())
		}
		h.logger.Info("overlay stopped", "uptime", time.Since(h.started).Round(time.Second))
		errs = append(errs, h.logger.Close())
		h.closeErr = errors.Join(errs...)
	})
	return h.closeErr
}

// rgba converts 0xRRGGBBAA to a color.
func rgba(v uint32) color.NRGBA {
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}
