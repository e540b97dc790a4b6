package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is the quiet period before a changed file is reloaded.
const DefaultReloadDebounce = 100 * time.Millisecond

// Loader owns the configuration file: it loads it, and once Watch is
// called, reloads it after every edit. A reload that fails to parse or
// validate keeps the previous configuration and is reported on Errors.
type Loader struct {
	path     string
	debounce time.Duration
	logger   *slog.Logger

	mu       sync.RWMutex
	config   *Config
	raw      []byte
	onChange []func(old, new *Config)

	watcher *fsnotify.Watcher
	errs    chan error
	stop    context.CancelFunc
	done    chan struct{}
}

// NewLoader returns a Loader for path. It reads nothing until Load.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default().With("component", "config")
	}
	return &Loader{
		path:     path,
		debounce: DefaultReloadDebounce,
		logger:   logger,
		errs:     make(chan error, 1),
	}
}

// Path returns the configuration file path.
func (l *Loader) Path() string { return l.path }

// Dir returns the directory relative asset paths are resolved against.
func (l *Loader) Dir() string { return filepath.Dir(l.path) }

// Load reads the file, or the defaults when it does not exist, and makes
// the result current.
func (l *Loader) Load() (*Config, error) {
	raw, _ := os.ReadFile(l.path)
	cfg, err := l.read()
	if err != nil {
		return nil, err
	}
	l.mu.Lock()
	l.config, l.raw = cfg, raw
	l.mu.Unlock()
	return cfg, nil
}

// read decodes, migrates in memory, overrides from the environment and
// validates the file.
func (l *Loader) read() (*Config, error) {
	cfg, err := loadConfigFromFile(l.path)
	if err != nil {
		return nil, err
	}
	r, err := MigrateConfig(cfg, "")
	if err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	if r != nil {
		l.logger.Info("migrated configuration",
			"from", r.FromVersion, "to", r.ToVersion, "changes", len(r.Changes))
		for _, w := range r.Warnings {
			l.logger.Warn("configuration migration", "warning", w)
		}
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

// Config returns the current configuration.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// OnChange registers cb to run, on the loader's goroutine, after each
// successful reload.
func (l *Loader) OnChange(cb func(old, new *Config)) {
	l.mu.Lock()
	l.onChange = append(l.onChange, cb)
	l.mu.Unlock()
}

// Errors delivers reload and watch failures. Only the newest unread one
// is kept.
func (l *Loader) Errors() <-chan error { return l.errs }

// Watch starts reloading the file when it changes. The parent directory is
// watched so that editors replacing the file by rename are seen.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(l.Dir()); err != nil {
		w.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.watcher, l.stop, l.done = w, cancel, make(chan struct{})
	go l.run(ctx)
	return nil
}

func (l *Loader) run(ctx context.Context) {
	defer close(l.done)

	timer := time.NewTimer(l.debounce)
	timer.Stop()
	defer timer.Stop()

	name := filepath.Base(l.path)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != name || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}
			timer.Reset(l.debounce)
		case <-timer.C:
			l.reload()
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.report(err)
		}
	}
}

// reload applies the file if its bytes changed since the last load.
func (l *Loader) reload() {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		// Renamed away mid-save; the Create that follows reloads it.
		return
	}
	l.mu.RLock()
	same := err == nil && bytes.Equal(raw, l.raw)
	l.mu.RUnlock()
	if same {
		return
	}

	cfg, err := l.read()
	if err != nil {
		l.mu.Lock()
		l.raw = raw
		l.mu.Unlock()
		l.report(fmt.Errorf("reload config: %w", err))
		return
	}

	l.mu.Lock()
	old := l.config
	l.config, l.raw = cfg, raw
	cbs := make([]func(old, new *Config), len(l.onChange))
	copy(cbs, l.onChange)
	l.mu.Unlock()

	l.logger.Info("configuration reloaded", "path", l.path)
	for _, cb := range cbs {
		cb(old, cfg)
	}
}

func (l *Loader) report(err error) {
	l.logger.Warn("configuration watch", "error", err)
	select {
	case <-l.errs:
	default:
	}
	select {
	case l.errs <- err:
	default:
	}
}

// Close stops watching. It is safe to call without Watch.
func (l *Loader) Close() error {
	if l.watcher == nil {
		return nil
	}
	l.stop()
	err := l.watcher.Close()
	<-l.done
	l.watcher = nil
	return err
}

// LoadOrCreate loads path, first writing the default configuration there
// if the file does not exist. created reports whether it did.
func LoadOrCreate(path string) (cfg *Config, created bool, err error) {
	if path == "" {
		path = ConfigPath()
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg = DefaultConfig()
		if err := SaveConfig(cfg, path); err != nil {
			return nil, false, fmt.Errorf("create default config: %w", err)
		}
		return cfg, true, nil
	}
	cfg, err = NewLoader(path, nil).Load()
	return cfg, false, err
}
