package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"inputoverlay/internal/hook"
	"inputoverlay/internal/settings"
)

// ErrInvalidConfig matches every validation failure under errors.Is.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidationError is one problem with one field. A Warning does not stop
// the configuration from loading.
type ValidationError struct {
	Field   string
	Message string
	Warning bool
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// IsWarning reports whether the issue is non-fatal.
func (e *ValidationError) IsWarning() bool { return e.Warning }

// ValidationErrors is the list of issues found by Check.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i := range e {
		msgs[i] = e[i].Error()
	}
	return strings.Join(msgs, "; ")
}

// Is makes errors.Is(err, ErrInvalidConfig) hold for validation failures.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

func (e ValidationErrors) filter(warning bool) ValidationErrors {
	var out ValidationErrors
	for _, v := range e {
		if v.Warning == warning {
			out = append(out, v)
		}
	}
	return out
}

// Warnings returns the non-fatal issues.
func (e ValidationErrors) Warnings() ValidationErrors { return e.filter(true) }

// Errors returns the fatal issues.
func (e ValidationErrors) Errors() ValidationErrors { return e.filter(false) }

// HasErrors reports whether any issue is fatal.
func (e ValidationErrors) HasErrors() bool { return len(e.Errors()) > 0 }

// ValidateConfig fails with the fatal issues of c, if any.
func ValidateConfig(c *Config) error {
	if errs := Check(c).Errors(); len(errs) > 0 {
		return errs
	}
	return nil
}

// issues collects ValidationErrors.
type issues ValidationErrors

func (is *issues) fail(field, format string, args ...interface{}) {
	*is = append(*is, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (is *issues) warn(field, format string, args ...interface{}) {
	*is = append(*is, ValidationError{Field: field, Message: fmt.Sprintf(format, args...), Warning: true})
}

func (is *issues) between(field string, v, lo, hi float64) {
	if v < lo || v > hi {
		is.fail(field, "value must be between %v and %v", lo, hi)
	}
}

func (is *issues) atLeast(field string, v, lo int, unit string) {
	if v < lo {
		is.fail(field, "must be at least %d%s", lo, unit)
	}
}

func (is *issues) oneOf(field, v string, valid ...string) bool {
	for _, ok := range valid {
		if v == ok {
			return true
		}
	}
	is.fail(field, "invalid value %q (valid: %s)", v, strings.Join(valid, ", "))
	return false
}

// Check returns every issue in c, warnings included.
func Check(c *Config) ValidationErrors {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var is issues
	if c.Version < 1 || c.Version > Version {
		is.fail("version", "unsupported version %d (current: %d)", c.Version, Version)
	}
	is.overlay(&c.Overlay)
	is.hooks(&c.Hooks)
	is.watch(&c.Watch)
	is.history(&c.History)
	is.logging(&c.Logging)
	is.metrics(&c.Metrics)
	is.preview(&c.Preview)
	return ValidationErrors(is)
}

// A missing atlas is only a warning: the overlay draws nothing until the
// file appears, and the watcher picks it up.
func (is *issues) overlay(o *OverlayConfig) {
	switch img := expandPath(o.ImageFile); {
	case o.Enabled && img == "":
		is.warn("overlay.image_file", "required field is missing")
	case img != "" && filepath.IsAbs(img):
		if _, err := os.Stat(img); err != nil {
			is.warn("overlay.image_file", "image not found: %s", o.ImageFile)
		}
	}

	is.between("overlay.mouse_sensitivity", float64(o.MouseSensitivity),
		settings.MinMouseSensitivity, settings.MaxMouseSensitivity)
	is.between("overlay.mouse_dead_zone", float64(o.MouseDeadZone), 0, settings.MaxMouseDeadZone)
	is.between("overlay.monitor_h_center", float64(o.MonitorHCenter), -settings.MaxMonitorCenter, settings.MaxMonitorCenter)
	is.between("overlay.monitor_v_center", float64(o.MonitorVCenter), -settings.MaxMonitorCenter, settings.MaxMonitorCenter)
	is.between("overlay.gamepad_id", float64(o.GamepadID), 0, settings.MaxGamepadID)
	for field, dz := range map[string]float64{
		"overlay.left_dead_zone":  float64(o.LeftDeadZone),
		"overlay.right_dead_zone": float64(o.RightDeadZone),
	} {
		if dz < 0 || dz >= 1 {
			is.fail(field, "value must be in [0, 1)")
		}
	}
}

func (is *issues) hooks(h *HooksConfig) {
	is.between("hooks.pads", float64(h.Pads), 1, hook.MaxPads)
	is.between("hooks.poll_interval_ms", float64(h.PollIntervalMs), 1, 1000)
	is.atLeast("hooks.reconnect_interval_ms", h.ReconnectIntervalMs, 100, "ms")
	if !h.KeyboardMouse && !h.Gamepad {
		is.warn("hooks.disabled", "all input hooks are disabled; the overlay will never change")
	}
}

func (is *issues) watch(w *WatchConfig) {
	if w.Enabled {
		is.atLeast("watch.debounce_ms", w.DebounceMs, 10, "ms")
	}
}

func (is *issues) history(h *HistoryConfig) {
	if !h.Enabled {
		return
	}
	if h.Path == "" {
		is.fail("history.path", "required field is missing")
	}
	is.atLeast("history.flush_interval_ms", h.FlushIntervalMs, 10, "ms")
	is.atLeast("history.batch_size", h.BatchSize, 1, "")
	is.atLeast("history.retention_days", h.RetentionDays, 0, " days")
}

func (is *issues) logging(l *LoggingConfig) {
	is.oneOf("logging.level", l.Level, "debug", "info", "warn", "error")
	is.oneOf("logging.format", l.Format, "text", "json")
	if is.oneOf("logging.output", l.Output, "stdout", "stderr", "file", "both") &&
		(l.Output == "file" || l.Output == "both") && l.FilePath == "" {
		is.fail("logging.file_path", "required when output is file or both")
	}
	is.atLeast("logging.max_size_mb", l.MaxSizeMB, 1, " MB")
	is.atLeast("logging.max_backups", l.MaxBackups, 0, "")
	is.atLeast("logging.max_age_days", l.MaxAgeDays, 0, " days")
}

func (is *issues) metrics(m *MetricsConfig) {
	if !m.Enabled {
		return
	}
	if _, _, err := net.SplitHostPort(m.Listen); err != nil {
		is.fail("metrics.listen", "invalid listen address %q: %v", m.Listen, err)
	}
	if i := strings.IndexFunc(m.Namespace, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}); i >= 0 {
		is.fail("metrics.namespace", "invalid character %q in namespace", m.Namespace[i])
	}
}

func (is *issues) preview(p *PreviewConfig) {
	is.between("preview.fps", float64(p.FPS), 1, 240)
	if p.Scale <= 0 || p.Scale > 8 {
		is.fail("preview.scale", "value must be in (0, 8]")
	}
	if _, err := ParseColor(p.Background); err != nil {
		is.fail("preview.background", "%v", err)
	}
}

// ParseColor parses "#rrggbb" or "#rrggbbaa" into 0xRRGGBBAA.
func ParseColor(s string) (uint32, error) {
	if !strings.HasPrefix(s, "#") || (len(s) != 7 && len(s) != 9) {
		return 0, fmt.Errorf("invalid color %q (want #rrggbb)", s)
	}
	var v uint32
	for _, r := range s[1:] {
		var d uint32
		switch {
		case r >= '0' && r <= '9':
			d = uint32(r - '0')
		case r >= 'a' && r <= 'f':
			d = uint32(r-'a') + 10
		case r >= 'A' && r <= 'F':
			d = uint32(r-'A') + 10
		default:
			return 0, fmt.Errorf("invalid color %q (want #rrggbb)", s)
		}
		v = v<<4 | d
	}
	if len(s) == 7 {
		v = v<<8 | 0xff
	}
	return v, nil
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
