// Package config handles configuration loading, validation, and management for inputoverlay.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"inputoverlay/internal/hook"
	"inputoverlay/internal/logging"
	"inputoverlay/internal/settings"
)

// Version is the current configuration schema version.
const Version = 2

// Config holds the complete process configuration.
type Config struct {
	// Version is the configuration schema version for migrations.
	Version int `toml:"version" json:"version" yaml:"version"`

	// Overlay holds the source settings: atlas, layout, mouse and gamepad.
	Overlay OverlayConfig `toml:"overlay" json:"overlay" yaml:"overlay"`

	// Hooks selects and tunes the input hooks.
	Hooks HooksConfig `toml:"hooks" json:"hooks" yaml:"hooks"`

	// Watch configures reloading when the atlas or layout changes on disk.
	Watch WatchConfig `toml:"watch" json:"watch" yaml:"watch"`

	// History configures the input history database.
	History HistoryConfig `toml:"history" json:"history" yaml:"history"`

	// Logging configuration.
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`

	// Metrics configures the HTTP status endpoint.
	Metrics MetricsConfig `toml:"metrics" json:"metrics" yaml:"metrics"`

	// Preview configures the preview window.
	Preview PreviewConfig `toml:"preview" json:"preview" yaml:"preview"`

	// mu protects concurrent access to the config.
	mu sync.RWMutex `toml:"-" json:"-" yaml:"-"`
}

// OverlayConfig holds the settings of one overlay source.
type OverlayConfig struct {
	// Enabled turns compositing on. With it off the hooks still feed the
	// input history.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// ImageFile is the texture atlas (png, jpg, bmp, gif, tiff, webp).
	ImageFile string `toml:"image_file" json:"image_file" yaml:"image_file"`

	// LayoutFile is the layout config. Empty draws the whole atlas.
	LayoutFile string `toml:"layout_file" json:"layout_file" yaml:"layout_file"`

	// MouseMovement enables mouse movement and wheel elements.
	MouseMovement bool `toml:"mouse_movement" json:"mouse_movement" yaml:"mouse_movement"`

	// MouseSensitivity is the movement in pixels for a full deflection.
	MouseSensitivity int `toml:"mouse_sensitivity" json:"mouse_sensitivity" yaml:"mouse_sensitivity"`

	// MouseDeadZone is the movement in pixels ignored around the center.
	MouseDeadZone int `toml:"mouse_dead_zone" json:"mouse_dead_zone" yaml:"mouse_dead_zone"`

	// UseMonitorCenter measures movement from a fixed screen point.
	UseMonitorCenter bool `toml:"use_monitor_center" json:"use_monitor_center" yaml:"use_monitor_center"`
	MonitorHCenter   int  `toml:"monitor_h_center" json:"monitor_h_center" yaml:"monitor_h_center"`
	MonitorVCenter   int  `toml:"monitor_v_center" json:"monitor_v_center" yaml:"monitor_v_center"`

	// Gamepad enables gamepad elements.
	Gamepad bool `toml:"gamepad" json:"gamepad" yaml:"gamepad"`

	// GamepadID selects the pad slot the overlay follows.
	GamepadID int `toml:"gamepad_id" json:"gamepad_id" yaml:"gamepad_id"`

	// LeftDeadZone and RightDeadZone are stick dead zones in [0, 1).
	LeftDeadZone  float64 `toml:"left_dead_zone" json:"left_dead_zone" yaml:"left_dead_zone"`
	RightDeadZone float64 `toml:"right_dead_zone" json:"right_dead_zone" yaml:"right_dead_zone"`
}

// HooksConfig holds input hook configuration.
type HooksConfig struct {
	// KeyboardMouse installs the keyboard and mouse hook.
	KeyboardMouse bool `toml:"keyboard_mouse" json:"keyboard_mouse" yaml:"keyboard_mouse"`

	// Gamepad starts the gamepad poller.
	Gamepad bool `toml:"gamepad" json:"gamepad" yaml:"gamepad"`

	// Pads is the number of gamepad slots to poll.
	Pads int `toml:"pads" json:"pads" yaml:"pads"`

	// PollIntervalMs bounds one gamepad read.
	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms" yaml:"poll_interval_ms"`

	// ReconnectIntervalMs is the delay between gamepad open attempts.
	ReconnectIntervalMs int `toml:"reconnect_interval_ms" json:"reconnect_interval_ms" yaml:"reconnect_interval_ms"`

	// Enabled is the version 1 switch for both hooks. Migration moves it
	// into KeyboardMouse and Gamepad.
	Enabled *bool `toml:"enabled,omitempty" json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// WatchConfig holds asset watching configuration.
type WatchConfig struct {
	// Enabled reloads the overlay when the atlas or layout changes.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// DebounceMs is how long a file must be quiet before reloading.
	DebounceMs int `toml:"debounce_ms" json:"debounce_ms" yaml:"debounce_ms"`
}

// HistoryConfig holds input history configuration.
type HistoryConfig struct {
	// Enabled records presses and releases to Path.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Path is the SQLite database path.
	Path string `toml:"path" json:"path" yaml:"path"`

	// FlushIntervalMs bounds how long an entry stays in memory.
	FlushIntervalMs int `toml:"flush_interval_ms" json:"flush_interval_ms" yaml:"flush_interval_ms"`

	// BatchSize flushes early once this many entries are pending.
	BatchSize int `toml:"batch_size" json:"batch_size" yaml:"batch_size"`

	// RetentionDays prunes entries older than this at startup. 0 keeps all.
	RetentionDays int `toml:"retention_days" json:"retention_days" yaml:"retention_days"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Enabled turns logging off entirely when false.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `toml:"level" json:"level" yaml:"level"`

	// Format is the log format: "text" or "json".
	Format string `toml:"format" json:"format" yaml:"format"`

	// Output is where to write logs: "stdout", "stderr", "file", or "both".
	Output string `toml:"output" json:"output" yaml:"output"`

	// FilePath is the path to the log file.
	FilePath string `toml:"file_path" json:"file_path" yaml:"file_path"`

	// MaxSizeMB is the maximum log file size before rotation.
	MaxSizeMB int `toml:"max_size_mb" json:"max_size_mb" yaml:"max_size_mb"`

	// MaxBackups is the number of rotated log files to keep.
	MaxBackups int `toml:"max_backups" json:"max_backups" yaml:"max_backups"`

	// MaxAgeDays is the maximum age of log files in days.
	MaxAgeDays int `toml:"max_age_days" json:"max_age_days" yaml:"max_age_days"`
}

// MetricsConfig holds the HTTP status endpoint configuration.
type MetricsConfig struct {
	// Enabled starts the HTTP server.
	Enabled bool `toml:"enabled" json:"enabled" yaml:"enabled"`

	// Listen is the listen address.
	Listen string `toml:"listen" json:"listen" yaml:"listen"`

	// Namespace prefixes every metric name.
	Namespace string `toml:"namespace" json:"namespace" yaml:"namespace"`
}

// PreviewConfig holds preview window configuration.
type PreviewConfig struct {
	// FPS is the target redraw rate.
	FPS int `toml:"fps" json:"fps" yaml:"fps"`

	// Scale multiplies the frame size for the window.
	Scale float64 `toml:"scale" json:"scale" yaml:"scale"`

	// Background is the window color as "#rrggbb".
	Background string `toml:"background" json:"background" yaml:"background"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	dir := DataDir()
	s := settings.Default()

	return &Config{
		Version: Version,
		Overlay: OverlayConfig{
			Enabled:          true,
			MouseMovement:    s.MouseMovementEnabled,
			MouseSensitivity: s.MouseSensitivity,
			MouseDeadZone:    s.MouseDeadZone,
			Gamepad:          s.GamepadEnabled,
			LeftDeadZone:     s.LeftDeadZone,
			RightDeadZone:    s.RightDeadZone,
		},
		Hooks: HooksConfig{
			KeyboardMouse:       true,
			Gamepad:             true,
			Pads:                hook.MaxPads,
			PollIntervalMs:      50,
			ReconnectIntervalMs: 2000,
		},
		Watch: WatchConfig{
			Enabled:    true,
			DebounceMs: 250,
		},
		History: HistoryConfig{
			Enabled:         false,
			Path:            filepath.Join(dir, "history.db"),
			FlushIntervalMs: 1000,
			BatchSize:       256,
			RetentionDays:   30,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			FilePath:   filepath.Join(PlatformLogDir(), "inputoverlay.log"),
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Listen:    "127.0.0.1:9464",
			Namespace: "inputoverlay",
		},
		Preview: PreviewConfig{
			FPS:        60,
			Scale:      1,
			Background: "#00ff00",
		},
	}
}

// ConfigPath returns the default configuration file path.
func ConfigPath() string {
	return filepath.Join(PlatformConfigDir(), "config.toml")
}

// Load reads configuration from the specified path.
// If the file doesn't exist, returns default configuration.
// Supports TOML, JSON, and YAML formats based on file extension.
func Load(path string) (*Config, error) {
	if path == "" {
		path = ConfigPath()
	}

	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	if cfg.Version < Version {
		if _, err := MigrateConfig(cfg, ""); err != nil {
			return nil, err
		}
	}

	// Apply environment variable overrides
	cfg.ApplyEnvOverrides()

	return cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	return ValidateConfig(c)
}

// EnsureDirectories creates the directories for the history database and log file.
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if c.History.Enabled {
		dirs = append(dirs, filepath.Dir(expandPath(c.History.Path)))
	}
	if c.Logging.Enabled && (c.Logging.Output == "file" || c.Logging.Output == "both") {
		dirs = append(dirs, filepath.Dir(expandPath(c.Logging.FilePath)))
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DataDir returns the base data directory.
// Uses platform-specific paths or the INPUTOVERLAY_DATA_DIR override.
func DataDir() string {
	if envDir := os.Getenv("INPUTOVERLAY_DATA_DIR"); envDir != "" {
		return envDir
	}
	return PlatformDataDir()
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables are prefixed with INPUTOVERLAY_ and use underscores.
func (c *Config) ApplyEnvOverrides() {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Overlay overrides
	if v := os.Getenv("INPUTOVERLAY_IMAGE_FILE"); v != "" {
		c.Overlay.ImageFile = v
	}
	if v, ok := os.LookupEnv("INPUTOVERLAY_LAYOUT_FILE"); ok {
		c.Overlay.LayoutFile = v
	}

	// History overrides
	if v := os.Getenv("INPUTOVERLAY_HISTORY_PATH"); v != "" {
		c.History.Path = v
	}

	// Logging overrides
	if v := os.Getenv("INPUTOVERLAY_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("INPUTOVERLAY_LOG_PATH"); v != "" {
		c.Logging.FilePath = v
	}

	// Metrics overrides
	if v := os.Getenv("INPUTOVERLAY_METRICS_LISTEN"); v != "" {
		c.Metrics.Listen = v
		c.Metrics.Enabled = true
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	clone := &Config{
		Version: c.Version,
		Overlay: c.Overlay,
		Hooks:   c.Hooks,
		Watch:   c.Watch,
		History: c.History,
		Logging: c.Logging,
		Metrics: c.Metrics,
		Preview: c.Preview,
	}
	if c.Hooks.Enabled != nil {
		v := *c.Hooks.Enabled
		clone.Hooks.Enabled = &v
	}
	return clone
}

// Settings converts the overlay section into source settings. Relative
// asset paths are resolved against base, normally the config file's
// directory.
func (c *Config) Settings(base string) settings.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()

	o := c.Overlay
	return settings.Settings{
		ImageFile:            resolvePath(base, o.ImageFile),
		LayoutFile:           resolvePath(base, o.LayoutFile),
		MouseMovementEnabled: o.MouseMovement,
		MouseSensitivity:     o.MouseSensitivity,
		MouseDeadZone:        o.MouseDeadZone,
		UseMonitorCenter:     o.UseMonitorCenter,
		MonitorHCenter:       o.MonitorHCenter,
		MonitorVCenter:       o.MonitorVCenter,
		GamepadEnabled:       o.Gamepad,
		GamepadID:            o.GamepadID,
		LeftDeadZone:         o.LeftDeadZone,
		RightDeadZone:        o.RightDeadZone,
	}
}

// HookOptions converts the hooks section into platform hook options.
func (c *Config) HookOptions() hook.Options {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return hook.Options{
		KeyboardMouse:     c.Hooks.KeyboardMouse,
		Gamepad:           c.Hooks.Gamepad && c.Overlay.Gamepad,
		Pads:              c.Hooks.Pads,
		PollInterval:      time.Duration(c.Hooks.PollIntervalMs) * time.Millisecond,
		ReconnectInterval: time.Duration(c.Hooks.ReconnectIntervalMs) * time.Millisecond,
	}
}

// LoggerConfig converts the logging section into a logger configuration.
func (c *Config) LoggerConfig() (*logging.Config, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l := c.Logging
	cfg := logging.DefaultConfig()
	level, err := logging.ParseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	if l.Format == "json" {
		cfg.Format = logging.FormatJSON
	}
	cfg.Output = l.Output
	if !l.Enabled {
		cfg.Output = "discard"
	}
	cfg.FilePath = expandPath(l.FilePath)
	cfg.MaxSize = int64(l.MaxSizeMB)
	cfg.MaxBackups = l.MaxBackups
	cfg.MaxAge = l.MaxAgeDays
	return cfg, nil
}

// HistoryPath returns the history database path with ~ expanded.
func (c *Config) HistoryPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandPath(c.History.Path)
}

func resolvePath(base, path string) string {
	if path == "" {
		return ""
	}
	path = expandPath(path)
	if filepath.IsAbs(path) || base == "" {
		return path
	}
	return filepath.Join(base, path)
}
