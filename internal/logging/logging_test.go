package logging

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected Level
		hasError bool
	}{
		{"debug", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"info", LevelInfo, false},
		{"INFO", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"ERROR", LevelError, false},
		{"invalid", LevelInfo, true},
		{"", LevelInfo, true},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			if test.hasError && err == nil {
				t.Error("expected error, got nil")
			}
			if !test.hasError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !test.hasError && level != test.expected {
				t.Errorf("expected %v, got %v", test.expected, level)
			}
		})
	}
}

func TestLevelStringRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelDebug, LevelInfo, LevelWarn, LevelError} {
		got, err := ParseLevel(LevelString(level))
		if err != nil || got != level {
			t.Errorf("ParseLevel(LevelString(%v)) = %v, %v", level, got, err)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Level != LevelInfo || cfg.Format != FormatText || cfg.Output != "stderr" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.MaxSize <= 0 || cfg.MaxAge <= 0 || cfg.MaxBackups <= 0 {
		t.Errorf("rotation limits must be positive: %+v", cfg)
	}
	if !strings.HasSuffix(cfg.FilePath, "inputoverlay.log") {
		t.Errorf("file path = %s", cfg.FilePath)
	}
}

func TestChildLoggersTagLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.log")
	logger, err := New(&Config{Output: "file", FilePath: path, MaxSize: 1, Component: "root"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.WithComponent("layout").Info("parsed")
	logger.WithRequestID("req-1").Info("served")
	if err := logger.Sync(); err != nil {
		t.Errorf("Sync: %v", err)
	}
	logger.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", data)
	}
	if !strings.Contains(lines[0], "component=layout") {
		t.Errorf("component missing: %s", lines[0])
	}
	if !strings.Contains(lines[1], "request_id=req-1") || !strings.Contains(lines[1], "component=root") {
		t.Errorf("request line: %s", lines[1])
	}
}

func TestRequestIDContext(t *testing.T) {
	if got := RequestIDFromContext(nil); got != "" {
		t.Errorf("nil context: %q", got)
	}
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Errorf("empty context: %q", got)
	}
	ctx = ContextWithRequestID(ctx, "test-request-456")
	if got := RequestIDFromContext(ctx); got != "test-request-456" {
		t.Errorf("got %q", got)
	}
}

func TestShouldRedact(t *testing.T) {
	tests := []struct {
		key      string
		expected bool
	}{
		{"password", true},
		{"PASSWORD", true},
		{"user_password", true},
		{"secret", true},
		{"api_key", true},
		{"apikey", true},
		{"token", true},
		{"auth_token", true},
		{"bearer", true},
		{"credential", true},
		{"cookie", true},
		{"code", false},
		{"layout", false},
		{"session_id", false},
		{"pressed", false},
		{"timestamp", false},
	}

	for _, test := range tests {
		t.Run(test.key, func(t *testing.T) {
			result := shouldRedact(test.key)
			if result != test.expected {
				t.Errorf("shouldRedact(%q) = %v, expected %v", test.key, result, test.expected)
			}
		})
	}
}

func TestNewRequestID(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "discard"
	cfg.Component = "test"

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	id1 := logger.NewRequestID()
	id2 := logger.NewRequestID()

	if id1 == "" {
		t.Error("NewRequestID returned empty string")
	}
	if id1 == id2 {
		t.Error("NewRequestID returned duplicate IDs")
	}
	if !strings.HasPrefix(id1, "test-") {
		t.Errorf("NewRequestID should start with component name, got %q", id1)
	}
}

func TestJSONFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.log")
	cfg := &Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    "file",
		FilePath:  path,
		MaxSize:   1,
		Component: "test",
	}

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create JSON logger: %v", err)
	}
	logger.Info("layout loaded", "elements", 12, "token", "hunter2")
	logger.Debug("hidden")
	if err := logger.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	if entry["msg"] != "layout loaded" {
		t.Errorf("msg = %v", entry["msg"])
	}
	if entry["component"] != "test" {
		t.Errorf("component = %v", entry["component"])
	}
	if entry["elements"] != float64(12) {
		t.Errorf("elements = %v", entry["elements"])
	}
	if entry["token"] != "[REDACTED]" {
		t.Errorf("token was not redacted: %v", entry["token"])
	}
}

func TestDiscardOutput(t *testing.T) {
	logger, err := New(&Config{Output: "discard", Level: LevelDebug})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer logger.Close()

	if logger.sink.w != io.Discard {
		t.Errorf("expected io.Discard writer, got %v", logger.sink.w)
	}
	if logger.sink.rotator != nil {
		t.Error("discard output should not open a log file")
	}
	logger.Info("dropped")
}

func TestFileRotator(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 3,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	testData := []byte("test log line\n")
	n, err := rotator.Write(testData)
	if err != nil {
		t.Fatalf("failed to write: %v", err)
	}
	if n != len(testData) {
		t.Errorf("expected to write %d bytes, wrote %d", len(testData), n)
	}
	if err := rotator.Sync(); err != nil {
		t.Errorf("sync failed: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !bytes.Equal(data, testData) {
		t.Errorf("log content = %q", data)
	}
	if files := rotator.Files(); len(files) != 1 || files[0] != logPath {
		t.Errorf("Files() = %v", files)
	}
}

func TestFileRotatorAppendsToExisting(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "test.log")
	if err := os.WriteFile(logPath, []byte("old\n"), 0640); err != nil {
		t.Fatal(err)
	}

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	rotator.Write([]byte("new\n"))
	rotator.Close()

	data, _ := os.ReadFile(logPath)
	if string(data) != "old\nnew\n" {
		t.Errorf("log content = %q", data)
	}
}

// megabyteLine fills most of a 1 MB rotation window in one write.
var megabyteLine = append(bytes.Repeat([]byte("x"), 700*1024), '\n')

func TestFileRotatorRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	// Each write after the first crosses the 1 MB limit.
	for i := 0; i < 4; i++ {
		if _, err := rotator.Write(megabyteLine); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	files := rotator.Files()
	want := []string{
		logPath,
		filepath.Join(dir, "test.1.log"),
		filepath.Join(dir, "test.2.log"),
	}
	if len(files) != len(want) {
		t.Fatalf("Files() = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("Files()[%d] = %s, want %s", i, files[i], want[i])
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "test.3.log")); !os.IsNotExist(err) {
		t.Error("backup beyond MaxBackups was kept")
	}

	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != int64(len(megabyteLine)) {
		t.Errorf("current log size = %d, want %d", info.Size(), len(megabyteLine))
	}
}

func TestFileRotatorCompress(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	rotator, err := NewFileRotator(&Config{
		FilePath:   logPath,
		MaxSize:    1,
		MaxBackups: 3,
		Compress:   true,
	})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	for i := 0; i < 3; i++ {
		if _, err := rotator.Write(megabyteLine); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	// The newest backup stays plain; older ones are gzipped.
	if _, err := os.Stat(filepath.Join(dir, "test.1.log")); err != nil {
		t.Errorf("expected plain newest backup: %v", err)
	}
	gzPath := filepath.Join(dir, "test.2.log.gz")
	f, err := os.Open(gzPath)
	if err != nil {
		t.Fatalf("expected compressed backup: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read gzip: %v", err)
	}
	if !bytes.Equal(data, megabyteLine) {
		t.Errorf("decompressed backup has %d bytes, want %d", len(data), len(megabyteLine))
	}
	if _, err := os.Stat(filepath.Join(dir, "test.2.log")); !os.IsNotExist(err) {
		t.Error("uncompressed copy of backup 2 was left behind")
	}
}

func TestFileRotatorNoBackups(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "test.log")

	rotator, err := NewFileRotator(&Config{FilePath: logPath, MaxSize: 1})
	if err != nil {
		t.Fatalf("failed to create rotator: %v", err)
	}
	defer rotator.Close()

	rotator.Write(megabyteLine)
	rotator.Write(megabyteLine)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the live log, got %d files", len(entries))
	}
}

func TestSetLevelAppliesToChildren(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.log")
	logger, err := New(&Config{Level: LevelWarn, Output: "file", FilePath: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	child := logger.WithComponent("overlay")

	child.Info("before")
	logger.SetLevel(LevelDebug)
	if child.Level() != LevelDebug {
		t.Errorf("child level = %v", child.Level())
	}
	child.Debug("after")
	if err := child.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(data), "before") {
		t.Error("info line logged at warn level")
	}
	if !strings.Contains(string(data), "msg=after") || !strings.Contains(string(data), "component=overlay") {
		t.Errorf("debug line missing after SetLevel: %q", data)
	}
}

func TestLoggerWithContext(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Output = "discard"

	logger, err := New(cfg)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	defer logger.Close()

	ctx := ContextWithRequestID(context.Background(), "test-req-789")
	if child := logger.WithContext(ctx); child == logger {
		t.Error("WithContext should return a child logger when a request ID is present")
	}
	if child := logger.WithContext(context.Background()); child != logger {
		t.Error("WithContext without a request ID should return the same logger")
	}
}

func TestCrashHandler(t *testing.T) {
	var got []CrashReport
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  t.TempDir(),
		Version:   "1.0.0",
		Component: "test",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnCrash:   func(r CrashReport) { got = append(got, r) },
	})

	handler.HandlePanic("test panic value", map[string]interface{}{
		"layout": "keyboard.json",
	})

	reports, err := handler.CrashReports()
	if err != nil {
		t.Fatalf("failed to get crash reports: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 crash report, got %d", len(reports))
	}

	report := reports[0]
	if report.PanicValue != "test panic value" {
		t.Errorf("expected panic value 'test panic value', got %q", report.PanicValue)
	}
	if report.Version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", report.Version)
	}
	if report.Component != "test" {
		t.Errorf("expected component 'test', got %q", report.Component)
	}
	if report.Context["layout"] != "keyboard.json" {
		t.Errorf("context = %v", report.Context)
	}
	if report.StackTrace == "" {
		t.Error("stack trace is empty")
	}
	if len(got) != 1 {
		t.Errorf("OnCrash called %d times", len(got))
	}
}

func TestCrashHandlerRecovery(t *testing.T) {
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  t.TempDir(),
		Component: "test",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	ran := false
	handler.Recover(func() {
		ran = true
		panic("intentional test panic")
	})
	if !ran {
		t.Error("function did not run")
	}

	reports, _ := handler.CrashReports()
	if len(reports) != 1 {
		t.Fatalf("expected 1 crash report, got %d", len(reports))
	}
	if reports[0].PanicValue != "intentional test panic" {
		t.Errorf("panic value = %q", reports[0].PanicValue)
	}
}

func TestCrashHandlerCleanupOld(t *testing.T) {
	dir := t.TempDir()
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:  dir,
		Component: "test",
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	for i := 0; i < 3; i++ {
		handler.HandlePanic("test panic", nil)
		time.Sleep(time.Millisecond)
	}

	reports, _ := handler.CrashReports()
	if len(reports) != 3 {
		t.Fatalf("expected 3 reports, got %d", len(reports))
	}

	// Age every report past the cutoff.
	old := time.Now().Add(-48 * time.Hour)
	files, _ := filepath.Glob(filepath.Join(dir, "crash-*.json"))
	for _, f := range files {
		os.Chtimes(f, old, old)
	}

	if err := handler.CleanupOldCrashReports(24 * time.Hour); err != nil {
		t.Errorf("CleanupOldCrashReports failed: %v", err)
	}
	reports, _ = handler.CrashReports()
	if len(reports) != 0 {
		t.Errorf("expected no reports after cleanup, got %d", len(reports))
	}
}

func TestCrashHandlerKeepsNewest(t *testing.T) {
	handler := NewCrashHandler(&CrashHandlerConfig{
		CrashDir:   t.TempDir(),
		Component:  "test",
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		MaxReports: 2,
	})

	for _, v := range []string{"first", "second", "third"} {
		handler.HandlePanic(v, nil)
		time.Sleep(time.Millisecond)
	}

	reports, err := handler.CrashReports()
	if err != nil {
		t.Fatalf("CrashReports: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}
	if reports[0].PanicValue != "second" || reports[1].PanicValue != "third" {
		t.Errorf("kept %q and %q", reports[0].PanicValue, reports[1].PanicValue)
	}
}
