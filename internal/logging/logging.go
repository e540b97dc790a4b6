// Package logging provides structured logging with slog for inputoverlay.
//
// Every package logs through a component logger derived from one process
// logger. All of them share one output: stderr, stdout, a size-rotated
// file, both, or nothing when logging is switched off. The level can be
// changed while running, so a configuration reload applies it without a
// restart. HTTP status handlers tag their lines with a request ID.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level represents a logging level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Format represents the output format for logs.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

// Config holds the logging configuration.
type Config struct {
	Level  Level
	Format Format

	// Output is "stdout", "stderr", "file", "both" (stderr and file) or
	// "discard".
	Output string

	// FilePath, MaxSize (MB), MaxAge (days), MaxBackups and Compress
	// configure the rotated file used by "file" and "both".
	FilePath   string
	MaxSize    int64
	MaxAge     int
	MaxBackups int
	Compress   bool

	AddSource bool

	// Component is attached to every line and prefixes request IDs.
	Component string
}

// DefaultConfig returns a default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		Format:     FormatText,
		Output:     "stderr",
		FilePath:   defaultLogPath(),
		MaxSize:    20,
		MaxAge:     14,
		MaxBackups: 3,
		Compress:   true,
		Component:  "inputoverlay",
	}
}

// defaultLogPath returns the platform log file.
func defaultLogPath() string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Logs", "inputoverlay", "inputoverlay.log")
	case "windows":
		dir := os.Getenv("LOCALAPPDATA")
		if dir == "" {
			dir = os.Getenv("APPDATA")
		}
		return filepath.Join(dir, "inputoverlay", "logs", "inputoverlay.log")
	default:
		state := os.Getenv("XDG_STATE_HOME")
		if state == "" {
			state = filepath.Join(home, ".local", "state")
		}
		return filepath.Join(state, "inputoverlay", "inputoverlay.log")
	}
}

// sink is the output shared by a logger and all of its children.
type sink struct {
	w         io.Writer
	rotator   *FileRotator
	level     slog.LevelVar
	component string
	seq       atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// Logger is a slog.Logger bound to a shared output.
type Logger struct {
	*slog.Logger
	sink *sink
}

var (
	defaultMu     sync.Mutex
	defaultLogger *Logger
)

// Default returns the process logger, creating a stderr logger on first use.
func Default() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultLogger == nil {
		l, err := New(DefaultConfig())
		if err != nil {
			l = &Logger{Logger: slog.Default(), sink: &sink{w: os.Stderr}}
		}
		defaultLogger = l
	}
	return defaultLogger
}

// SetDefault replaces the process logger and slog's default.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defaultLogger = l
	defaultMu.Unlock()
	slog.SetDefault(l.Logger)
}

// New creates a logger writing to cfg.Output.
func New(cfg *Config) (*Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &sink{component: cfg.Component}
	if err := s.open(cfg); err != nil {
		return nil, fmt.Errorf("setup writers: %w", err)
	}
	s.level.Set(cfg.Level)

	opts := &slog.HandlerOptions{
		Level:       &s.level,
		AddSource:   cfg.AddSource,
		ReplaceAttr: redact,
	}
	var handler slog.Handler
	if cfg.Format == FormatJSON {
		handler = slog.NewJSONHandler(s.w, opts)
	} else {
		handler = slog.NewTextHandler(s.w, opts)
	}

	logger := slog.New(handler)
	if cfg.Component != "" {
		logger = logger.With(slog.String("component", cfg.Component))
	}
	return &Logger{Logger: logger, sink: s}, nil
}

func (s *sink) open(cfg *Config) error {
	var toStderr bool
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		s.w = os.Stdout
		return nil
	case "discard":
		s.w = io.Discard
		return nil
	case "file":
	case "both":
		toStderr = true
	default:
		s.w = os.Stderr
		return nil
	}

	rotator, err := NewFileRotator(cfg)
	if err != nil {
		return err
	}
	s.rotator = rotator
	s.w = rotator
	if toStderr {
		s.w = io.MultiWriter(os.Stderr, rotator)
	}
	return nil
}

var sensitiveKeys = []string{
	"password", "secret", "token", "credential",
	"auth", "cookie", "api_key", "apikey", "bearer",
}

// shouldRedact reports whether an attribute key names a secret.
func shouldRedact(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if shouldRedact(a.Key) {
		a.Value = slog.StringValue("[REDACTED]")
	}
	return a
}

func (l *Logger) child(logger *slog.Logger) *Logger {
	return &Logger{Logger: logger, sink: l.sink}
}

// WithComponent returns a logger that tags lines with name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.child(l.Logger.With(slog.String("component", name)))
}

// WithRequestID returns a logger that tags lines with id.
func (l *Logger) WithRequestID(id string) *Logger {
	return l.child(l.Logger.With(slog.String("request_id", id)))
}

// WithContext returns a request-scoped logger when ctx carries a request
// ID, and l otherwise.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	if id := RequestIDFromContext(ctx); id != "" {
		return l.WithRequestID(id)
	}
	return l
}

// NewRequestID returns a process-unique request ID.
func (l *Logger) NewRequestID() string {
	n := l.sink.seq.Add(1)
	return fmt.Sprintf("%s-%d-%d", l.sink.component, time.Now().UnixNano(), n)
}

// SetLevel changes the level of l and every logger sharing its output.
func (l *Logger) SetLevel(level Level) {
	l.sink.level.Set(level)
}

// Level returns the current level.
func (l *Logger) Level() Level {
	return l.sink.level.Level()
}

// Close closes the log file, if any. Children share the file, so closing
// any of them closes it for all.
func (l *Logger) Close() error {
	s := l.sink
	s.closeOnce.Do(func() {
		if s.rotator != nil {
			s.closeErr = s.rotator.Close()
		}
	})
	return s.closeErr
}

// Sync flushes the log file to disk.
func (l *Logger) Sync() error {
	if l.sink.rotator != nil {
		return l.sink.rotator.Sync()
	}
	return nil
}

type contextKey int

const requestIDKey contextKey = iota

// ContextWithRequestID returns a context carrying requestID.
func ContextWithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// Debug logs through the default logger.
func Debug(msg string, args ...any) { Default().Debug(msg, args...) }

// Info logs through the default logger.
func Info(msg string, args ...any) { Default().Info(msg, args...) }

// Warn logs through the default logger.
func Warn(msg string, args ...any) { Default().Warn(msg, args...) }

// Error logs through the default logger.
func Error(msg string, args ...any) { Default().Error(msg, args...) }

// ParseLevel parses debug, info, warn (or warning) and error.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level: %s", s)
}

// LevelString is the inverse of ParseLevel.
func LevelString(level Level) string {
	switch level {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "info"
}
