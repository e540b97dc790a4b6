package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"inputoverlay/internal/input"
	"inputoverlay/internal/metrics"
)

// ErrRecorderClosed is returned by Close when called twice.
var ErrRecorderClosed = errors.New("recorder closed")

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Layout is stored with the session.
	Layout string
	// FlushInterval bounds how long an entry waits in memory.
	FlushInterval time.Duration
	// BatchSize flushes early once this many entries are pending.
	BatchSize int
	// QueueSize bounds the entries waiting for the writer. Record drops
	// entries when the queue is full.
	QueueSize int

	Metrics *metrics.Pipeline
	Logger  *slog.Logger
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		FlushInterval: time.Second,
		BatchSize:     256,
		QueueSize:     4096,
	}
}

// Recorder writes input history in batches from its own goroutine, so
// hook callbacks never wait on the disk.
type Recorder struct {
	store   *Store
	session int64
	cfg     RecorderConfig
	logger  *slog.Logger

	queue   chan Entry
	done    chan struct{}
	dropped atomic.Uint64

	mu     sync.RWMutex // guards closed against sends on a closed queue
	closed bool
}

// NewRecorder opens a session in s and starts the writer.
func NewRecorder(s *Store, cfg RecorderConfig) (*Recorder, error) {
	def := DefaultRecorderConfig()
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default().With("component", "history")
	}

	session, err := s.BeginSession(cfg.Layout, time.Now())
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}

	r := &Recorder{
		store:   s,
		session: session,
		cfg:     cfg,
		logger:  logger,
		queue:   make(chan Entry, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// Session returns the session the recorder writes to.
func (r *Recorder) Session() int64 {
	return r.session
}

// Dropped returns the number of entries dropped because the queue was full.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Record queues ev. It never blocks.
func (r *Recorder) Record(ev input.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- EntryFromEvent(r.session, ev):
	default:
		if r.dropped.Add(1) == 1 {
			r.logger.Warn("history queue full, dropping entries")
		}
	}
}

func (r *Recorder) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	pending := make([]Entry, 0, r.cfg.BatchSize)
	for {
		select {
		case e, ok := <-r.queue:
			if !ok {
				r.flush(pending)
				return
			}
			pending = append(pending, e)
			if len(pending) >= r.cfg.BatchSize {
				r.flush(pending)
				pending = pending[:0]
			}
		case <-ticker.C:
			r.flush(pending)
			pending = pending[:0]
		}
	}
}

func (r *Recorder) flush(entries []Entry) {
	if len(entries) == 0 {
		return
	}
	err := r.store.Insert(context.Background(), entries)
	if err != nil {
		r.logger.Error("history write failed", "entries", len(entries), "error", err)
	}
	if r.cfg.Metrics != nil {
		for range entries {
			r.cfg.Metrics.RecordHistory(err)
		}
	}
}

// Close flushes pending entries and ends the session. Events recorded
// after Close are discarded.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	return r.store.EndSession(r.session, time.Now())
}
