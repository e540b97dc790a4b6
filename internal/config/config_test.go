package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"inputoverlay/internal/logging"
	"inputoverlay/internal/settings"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg == nil {
		t.Fatal("DefaultConfig returned nil")
	}

	if cfg.Version != Version {
		t.Errorf("expected version %d, got %d", Version, cfg.Version)
	}
	if !cfg.Hooks.KeyboardMouse || !cfg.Hooks.Gamepad {
		t.Error("hooks should be enabled by default")
	}
	if cfg.History.Enabled {
		t.Error("history should be disabled by default")
	}
	if !strings.HasSuffix(cfg.History.Path, "history.db") {
		t.Errorf("history path should end with history.db: %s", cfg.History.Path)
	}

	// The only default issue is the missing atlas, which is a warning.
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
	if w := Check(cfg).Warnings(); len(w) != 1 || w[0].Field != "overlay.image_file" {
		t.Errorf("expected one image_file warning, got %v", w)
	}
}

func TestDefaultSettingsMatch(t *testing.T) {
	got := DefaultConfig().Settings("")
	want := settings.Default()
	if got != want {
		t.Errorf("Settings() = %+v, want %+v", got, want)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if !strings.HasSuffix(path, "config.toml") {
		t.Errorf("expected path ending with config.toml, got %s", path)
	}
	if !strings.Contains(path, appName) {
		t.Errorf("config path should contain %s: %s", appName, path)
	}
}

func TestDataDirOverride(t *testing.T) {
	t.Setenv("INPUTOVERLAY_DATA_DIR", "/tmp/io-data")
	if got := DataDir(); got != "/tmp/io-data" {
		t.Errorf("DataDir() = %s", got)
	}
	if got := DefaultConfig().History.Path; got != filepath.Join("/tmp/io-data", "history.db") {
		t.Errorf("history path = %s", got)
	}
}

func TestLoadNonexistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Overlay.MouseSensitivity != settings.Default().MouseSensitivity {
		t.Errorf("expected default sensitivity, got %d", cfg.Overlay.MouseSensitivity)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeConfig(t, "config.toml", `
version = 2

[overlay]
image_file = "atlas.png"
layout_file = "layouts/wasd.toml"
mouse_movement = false
gamepad_id = 2
left_dead_zone = 0.25

[hooks]
gamepad = false

[history]
enabled = true
path = "/tmp/history.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Overlay.ImageFile != "atlas.png" || cfg.Overlay.GamepadID != 2 {
		t.Errorf("overlay not decoded: %+v", cfg.Overlay)
	}
	if cfg.Overlay.MouseMovement {
		t.Error("mouse_movement should be false")
	}
	if cfg.Hooks.Gamepad || !cfg.Hooks.KeyboardMouse {
		t.Errorf("hooks = %+v", cfg.Hooks)
	}
	// Unset keys keep their defaults
	if cfg.Overlay.MouseSensitivity != 50 {
		t.Errorf("mouse_sensitivity default lost: %d", cfg.Overlay.MouseSensitivity)
	}

	s := cfg.Settings(filepath.Dir(path))
	if s.ImageFile != filepath.Join(filepath.Dir(path), "atlas.png") {
		t.Errorf("image not resolved: %s", s.ImageFile)
	}
	if s.LayoutFile != filepath.Join(filepath.Dir(path), "layouts", "wasd.toml") {
		t.Errorf("layout not resolved: %s", s.LayoutFile)
	}
	if s.MouseMovementEnabled || s.LeftDeadZone != 0.25 {
		t.Errorf("settings = %+v", s)
	}

	opts := cfg.HookOptions()
	if opts.Gamepad || !opts.KeyboardMouse {
		t.Errorf("hook options = %+v", opts)
	}
	if opts.PollInterval != 50*time.Millisecond {
		t.Errorf("poll interval = %v", opts.PollInterval)
	}
}

func TestLoadJSONAndYAML(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"config.json", `{"version": 2, "overlay": {"image_file": "/a.png", "gamepad_id": 1}}`},
		{"config.yaml", "version: 2\noverlay:\n  image_file: /a.png\n  gamepad_id: 1\n"},
		{"config.yml", "version: 2\noverlay:\n  image_file: /a.png\n  gamepad_id: 1\n"},
		{"config", `{"version": 2, "overlay": {"image_file": "/a.png", "gamepad_id": 1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, tt.name, tt.content))
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if cfg.Overlay.ImageFile != "/a.png" || cfg.Overlay.GamepadID != 1 {
				t.Errorf("overlay = %+v", cfg.Overlay)
			}
		})
	}
}

func TestLoadMalformed(t *testing.T) {
	if _, err := Load(writeConfig(t, "config.toml", "[overlay\nimage_file =")); err == nil {
		t.Error("expected decode error")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("INPUTOVERLAY_IMAGE_FILE", "/env/atlas.png")
	t.Setenv("INPUTOVERLAY_LAYOUT_FILE", "")
	t.Setenv("INPUTOVERLAY_LOG_LEVEL", "debug")
	t.Setenv("INPUTOVERLAY_METRICS_LISTEN", "127.0.0.1:9999")

	cfg, err := Load(writeConfig(t, "config.toml", "[overlay]\nlayout_file = \"x.toml\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Overlay.ImageFile != "/env/atlas.png" {
		t.Errorf("image override: %s", cfg.Overlay.ImageFile)
	}
	if cfg.Overlay.LayoutFile != "" {
		t.Errorf("empty layout override should force pass-through: %q", cfg.Overlay.LayoutFile)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level override: %s", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Listen != "127.0.0.1:9999" {
		t.Errorf("metrics override: %+v", cfg.Metrics)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"version", func(c *Config) { c.Version = 9 }, "version"},
		{"sensitivity", func(c *Config) { c.Overlay.MouseSensitivity = 0 }, "overlay.mouse_sensitivity"},
		{"dead zone", func(c *Config) { c.Overlay.MouseDeadZone = 51 }, "overlay.mouse_dead_zone"},
		{"monitor center", func(c *Config) { c.Overlay.MonitorHCenter = -10000 }, "overlay.monitor_h_center"},
		{"gamepad id", func(c *Config) { c.Overlay.GamepadID = 4 }, "overlay.gamepad_id"},
		{"stick dead zone", func(c *Config) { c.Overlay.RightDeadZone = 1 }, "overlay.right_dead_zone"},
		{"pads", func(c *Config) { c.Hooks.Pads = 0 }, "hooks.pads"},
		{"poll", func(c *Config) { c.Hooks.PollIntervalMs = 0 }, "hooks.poll_interval_ms"},
		{"reconnect", func(c *Config) { c.Hooks.ReconnectIntervalMs = 10 }, "hooks.reconnect_interval_ms"},
		{"debounce", func(c *Config) { c.Watch.DebounceMs = 1 }, "watch.debounce_ms"},
		{"history path", func(c *Config) { c.History.Enabled = true; c.History.Path = "" }, "history.path"},
		{"history batch", func(c *Config) { c.History.Enabled = true; c.History.BatchSize = 0 }, "history.batch_size"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log output", func(c *Config) { c.Logging.Output = "syslog" }, "logging.output"},
		{"log file", func(c *Config) { c.Logging.Output = "file"; c.Logging.FilePath = "" }, "logging.file_path"},
		{"listen", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Listen = "nope" }, "metrics.listen"},
		{"namespace", func(c *Config) { c.Metrics.Enabled = true; c.Metrics.Namespace = "a-b" }, "metrics.namespace"},
		{"fps", func(c *Config) { c.Preview.FPS = 0 }, "preview.fps"},
		{"scale", func(c *Config) { c.Preview.Scale = 0 }, "preview.scale"},
		{"background", func(c *Config) { c.Preview.Background = "green" }, "preview.background"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should match ErrInvalidConfig: %v", err)
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidationErrors, got %T", err)
			}
			found := false
			for _, e := range verrs {
				if e.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("no error for %s in %v", tt.field, verrs)
			}
		})
	}
}

func TestDisabledHooksIsWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Hooks.KeyboardMouse = false
	cfg.Hooks.Gamepad = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled hooks should only warn: %v", err)
	}
	if len(Check(cfg).Warnings()) != 2 {
		t.Errorf("warnings = %v", Check(cfg).Warnings())
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want uint32
		ok   bool
	}{
		{"#00ff00", 0x00ff00ff, true},
		{"#FF000080", 0xff000080, true},
		{"00ff00", 0, false},
		{"#00ff0", 0, false},
		{"#gg0000", 0, false},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseColor(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestMigrateV1(t *testing.T) {
	path := writeConfig(t, "config.toml", `
version = 1

[hooks]
enabled = false
pads = 0

[watch]
debounce_ms = 0
`)
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	result, err := MigrateConfig(cfg, path)
	if err != nil {
		t.Fatalf("MigrateConfig: %v", err)
	}
	if result.FromVersion != 1 || result.ToVersion != Version {
		t.Errorf("result = %+v", result)
	}
	if result.Backup == "" {
		t.Error("expected a backup file")
	} else if _, err := os.Stat(result.Backup); err != nil {
		t.Errorf("backup missing: %v", err)
	}
	if cfg.Version != Version {
		t.Errorf("version = %d", cfg.Version)
	}
	if cfg.Hooks.Enabled != nil || cfg.Hooks.KeyboardMouse || cfg.Hooks.Gamepad {
		t.Errorf("hooks.enabled not split: %+v", cfg.Hooks)
	}
	if cfg.Hooks.Pads == 0 || cfg.Watch.DebounceMs == 0 {
		t.Errorf("defaults not restored: %+v %+v", cfg.Hooks, cfg.Watch)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("warnings = %v", result.Warnings)
	}

	again, err := MigrateConfig(cfg, path)
	if err != nil || again != nil {
		t.Errorf("second migration = %v, %v", again, err)
	}
}

func TestMigrateFile(t *testing.T) {
	path := writeConfig(t, "config.toml", `
version = 1

[hooks]
enabled = true
`)
	result, err := MigrateFile(path)
	if err != nil {
		t.Fatalf("MigrateFile: %v", err)
	}
	if result == nil || result.Backup == "" {
		t.Fatalf("result = %+v", result)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load migrated file: %v", err)
	}
	if loaded.Version != Version || !loaded.Hooks.KeyboardMouse || !loaded.Hooks.Gamepad {
		t.Errorf("migrated config = %+v", loaded.Hooks)
	}
	if loaded.Hooks.Enabled != nil {
		t.Error("hooks.enabled should not be written back")
	}

	again, err := MigrateFile(path)
	if err != nil || again != nil {
		t.Errorf("second MigrateFile = %v, %v", again, err)
	}

	if _, err := MigrateFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestSaveAndReload(t *testing.T) {
	for _, name := range []string{"out.toml", "out.json", "out.yaml"} {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Overlay.ImageFile = "/img.png"
			cfg.Overlay.GamepadID = 3
			cfg.Preview.Background = "#112233"

			path := filepath.Join(t.TempDir(), "nested", name)
			if err := SaveConfig(cfg, path); err != nil {
				t.Fatalf("SaveConfig: %v", err)
			}
			loaded, err := Load(path)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if loaded.Overlay != cfg.Overlay || loaded.Preview != cfg.Preview {
				t.Errorf("round trip changed config:\n got %+v\nwant %+v", loaded.Overlay, cfg.Overlay)
			}
		})
	}
}

func TestEncodeAs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Overlay.GamepadID = 2

	for _, format := range []string{"toml", "json", "yaml", "yml"} {
		out, err := cfg.EncodeAs(format)
		if err != nil {
			t.Fatalf("EncodeAs(%s): %v", format, err)
		}
		if !strings.Contains(string(out), "gamepad_id") {
			t.Errorf("%s output missing gamepad_id:\n%s", format, out)
		}
	}
	if _, err := cfg.EncodeAs("ini"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestLoadWithoutExtension(t *testing.T) {
	path := writeConfig(t, "overlayrc", "{\"overlay\": {\"gamepad_id\": 3}}")
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Overlay.GamepadID != 3 {
		t.Errorf("gamepad_id = %d", cfg.Overlay.GamepadID)
	}

	path = writeConfig(t, "garbage", "= = =\n\t- [")
	if _, err := loadConfigFromFile(path); err == nil {
		t.Error("expected error for unparseable file")
	}
}

func TestLoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	_, created, err := LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate: %v", err)
	}
	if !created {
		t.Error("expected file to be created")
	}
	_, created, err = LoadOrCreate(path)
	if err != nil {
		t.Fatalf("LoadOrCreate again: %v", err)
	}
	if created {
		t.Error("second call should load the existing file")
	}
}

func TestClone(t *testing.T) {
	enabled := true
	cfg := DefaultConfig()
	cfg.Hooks.Enabled = &enabled

	clone := cfg.Clone()
	clone.Overlay.GamepadID = 3
	*clone.Hooks.Enabled = false

	if cfg.Overlay.GamepadID != 0 {
		t.Error("clone shares overlay section")
	}
	if !*cfg.Hooks.Enabled {
		t.Error("clone shares hooks.enabled pointer")
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"
	cfg.Logging.Format = "json"

	lc, err := cfg.LoggerConfig()
	if err != nil {
		t.Fatalf("LoggerConfig: %v", err)
	}
	if lc.Level != logging.LevelWarn || lc.Format != logging.FormatJSON {
		t.Errorf("logger config = %+v", lc)
	}

	cfg.Logging.Enabled = false
	lc, _ = cfg.LoggerConfig()
	if lc.Output != "discard" {
		t.Errorf("disabled logging output = %s", lc.Output)
	}
}

func TestFindConfigFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	if got := FindConfigFile(); got != "" && filepath.Dir(got) == "." {
		t.Errorf("unexpected config in empty dir: %s", got)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("version: 2\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := FindConfigFile(); got != filepath.Join(".", "config.yaml") {
		t.Errorf("FindConfigFile() = %s", got)
	}
}

func TestLoaderHotReload(t *testing.T) {
	path := writeConfig(t, "config.toml", "[overlay]\ngamepad_id = 1\n")

	l := NewLoader(path, nil)
	l.debounce = 10 * time.Millisecond
	cfg, err := l.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Overlay.GamepadID != 1 {
		t.Fatalf("gamepad_id = %d", cfg.Overlay.GamepadID)
	}

	var got atomic.Int64
	got.Store(-1)
	l.OnChange(func(old, new *Config) {
		if old.Overlay.GamepadID == 1 {
			got.Store(int64(new.Overlay.GamepadID))
		}
	})
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer l.Close()

	if err := os.WriteFile(path, []byte("[overlay]\ngamepad_id = 2\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for got.Load() != 2 {
		if time.Now().After(deadline) {
			t.Fatal("change callback not invoked")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if l.Config().Overlay.GamepadID != 2 {
		t.Errorf("Config() not updated")
	}
}

func TestLoaderRejectsInvalidReload(t *testing.T) {
	path := writeConfig(t, "config.toml", "[overlay]\ngamepad_id = 1\n")

	l := NewLoader(path, nil)
	l.debounce = 10 * time.Millisecond
	if _, err := l.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := l.Watch(); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer l.Close()

	if err := os.WriteFile(path, []byte("[overlay]\ngamepad_id = 7\n"), 0600); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-l.Errors():
		if !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload error reported")
	}
	if l.Config().Overlay.GamepadID != 1 {
		t.Error("invalid reload replaced the config")
	}
}

func TestPlatformDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")
	t.Setenv("XDG_STATE_HOME", "")
	home := homeDir()

	tests := []struct {
		goos string
		kind dirKind
		want string
	}{
		{"linux", configDir, filepath.Join("/xdg/config", appName)},
		{"linux", logDir, filepath.Join(home, ".local", "state", appName)},
		{"darwin", configDir, filepath.Join(home, "Library", "Application Support", appName)},
		{"darwin", logDir, filepath.Join(home, "Library", "Logs", appName)},
	}
	for _, tt := range tests {
		if got := platformDir(tt.goos, tt.kind); got != tt.want {
			t.Errorf("platformDir(%s, %d) = %s, want %s", tt.goos, tt.kind, got, tt.want)
		}
	}
}
