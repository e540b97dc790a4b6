package logging

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sort"
	"sync"
	"time"
)

// CrashReport is the JSON file written for a recovered panic.
type CrashReport struct {
	Timestamp    time.Time              `json:"timestamp"`
	Version      string                 `json:"version,omitempty"`
	GoVersion    string                 `json:"go_version"`
	GOOS         string                 `json:"goos"`
	GOARCH       string                 `json:"goarch"`
	NumGoroutine int                    `json:"num_goroutine"`
	PanicValue   string                 `json:"panic_value"`
	StackTrace   string                 `json:"stack_trace"`
	Component    string                 `json:"component,omitempty"`
	Context      map[string]interface{} `json:"context,omitempty"`
}

// DefaultMaxCrashReports bounds the crash directory when
// CrashHandlerConfig.MaxReports is zero.
const DefaultMaxCrashReports = 50

// CrashHandlerConfig configures a CrashHandler.
type CrashHandlerConfig struct {
	CrashDir  string // DefaultCrashDir() when empty
	Version   string
	Component string
	Logger    *slog.Logger

	// MaxReports is how many reports are kept; older ones are removed
	// when a new one is written.
	MaxReports int

	// OnCrash runs after each report is written.
	OnCrash func(CrashReport)
}

// CrashHandler turns panics into crash reports in a directory.
type CrashHandler struct {
	cfg CrashHandlerConfig
	mu  sync.Mutex
}

// DefaultCrashDir is the crashes directory beside the default log file.
func DefaultCrashDir() string {
	return filepath.Join(filepath.Dir(defaultLogPath()), "crashes")
}

var (
	crashMu      sync.Mutex
	defaultCrash *CrashHandler
)

// DefaultCrashHandler returns the process crash handler.
func DefaultCrashHandler() *CrashHandler {
	crashMu.Lock()
	defer crashMu.Unlock()
	if defaultCrash == nil {
		defaultCrash = NewCrashHandler(&CrashHandlerConfig{Component: "inputoverlay"})
	}
	return defaultCrash
}

// SetDefaultCrashHandler replaces the process crash handler.
func SetDefaultCrashHandler(h *CrashHandler) {
	crashMu.Lock()
	defaultCrash = h
	crashMu.Unlock()
}

// NewCrashHandler returns a handler for cfg; nil uses the defaults.
func NewCrashHandler(cfg *CrashHandlerConfig) *CrashHandler {
	h := &CrashHandler{}
	if cfg != nil {
		h.cfg = *cfg
	}
	if h.cfg.CrashDir == "" {
		h.cfg.CrashDir = DefaultCrashDir()
	}
	if h.cfg.Logger == nil {
		h.cfg.Logger = slog.Default()
	}
	if h.cfg.MaxReports <= 0 {
		h.cfg.MaxReports = DefaultMaxCrashReports
	}
	return h
}

// Dir returns the crash report directory.
func (h *CrashHandler) Dir() string { return h.cfg.CrashDir }

// Recover runs fn, reporting a panic instead of propagating it.
func (h *CrashHandler) Recover(fn func()) {
	h.RecoverWithContext(nil, fn)
}

// RecoverWithContext is Recover with info attached to the report.
func (h *CrashHandler) RecoverWithContext(info map[string]interface{}, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			h.HandlePanic(r, info)
		}
	}()
	fn()
}

// HandlePanic records v, typically a recover() value, with the current
// stack and returns the report.
func (h *CrashHandler) HandlePanic(v interface{}, info map[string]interface{}) CrashReport {
	report := CrashReport{
		Timestamp:    time.Now().UTC(),
		Version:      h.cfg.Version,
		GoVersion:    runtime.Version(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		PanicValue:   fmt.Sprint(v),
		StackTrace:   string(debug.Stack()),
		Component:    h.cfg.Component,
		Context:      info,
	}

	h.mu.Lock()
	path, err := h.write(report)
	if err == nil {
		h.trim()
	}
	h.mu.Unlock()

	if err != nil {
		h.cfg.Logger.Error("panic recovered, crash report not written",
			"panic", report.PanicValue, "error", err, "stack", report.StackTrace)
	} else {
		h.cfg.Logger.Error("panic recovered", "panic", report.PanicValue, "report", path)
	}
	if h.cfg.OnCrash != nil {
		h.cfg.OnCrash(report)
	}
	return report
}

func (h *CrashHandler) write(r CrashReport) (string, error) {
	if err := os.MkdirAll(h.cfg.CrashDir, 0750); err != nil {
		return "", fmt.Errorf("create crash directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("crash-%s-%s.json", r.Component, r.Timestamp.Format("20060102-150405.000000000"))
	path := filepath.Join(h.cfg.CrashDir, name)
	return path, os.WriteFile(path, data, 0640)
}

// files returns the report files, oldest first. The timestamped names of
// one component sort chronologically.
func (h *CrashHandler) files() ([]string, error) {
	files, err := filepath.Glob(filepath.Join(h.cfg.CrashDir, "crash-*.json"))
	sort.Strings(files)
	return files, err
}

func (h *CrashHandler) trim() {
	files, err := h.files()
	if err != nil {
		return
	}
	for len(files) > h.cfg.MaxReports {
		os.Remove(files[0])
		files = files[1:]
	}
}

// CrashReports returns the stored reports, oldest first. Unreadable
// files are skipped.
func (h *CrashHandler) CrashReports() ([]CrashReport, error) {
	files, err := h.files()
	if err != nil {
		return nil, err
	}
	reports := make([]CrashReport, 0, len(files))
	for _, f := range files {
		var r CrashReport
		data, err := os.ReadFile(f)
		if err != nil || json.Unmarshal(data, &r) != nil {
			continue
		}
		reports = append(reports, r)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Timestamp.Before(reports[j].Timestamp)
	})
	return reports, nil
}

// CleanupOldCrashReports removes reports last modified before maxAge ago.
func (h *CrashHandler) CleanupOldCrashReports(maxAge time.Duration) error {
	files, err := h.files()
	if err != nil {
		return err
	}
	cutoff := time.Now().Add(-maxAge)
	for _, f := range files {
		if info, err := os.Stat(f); err == nil && info.ModTime().Before(cutoff) {
			os.Remove(f)
		}
	}
	return nil
}

// RecoverPanic reports a panic through the default handler:
//
//	defer logging.RecoverPanic()
func RecoverPanic() {
	if r := recover(); r != nil {
		DefaultCrashHandler().HandlePanic(r, nil)
	}
}
