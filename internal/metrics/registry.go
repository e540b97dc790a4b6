package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
)

// Registry holds metrics under a common name prefix.
type Registry struct {
	prefix string

	mu      sync.RWMutex
	metrics map[string]metric // by full name plus labels
}

// NewRegistry returns a registry prefixing names with namespace and
// subsystem, each joined by "_" when set.
func NewRegistry(namespace, subsystem string) *Registry {
	var prefix string
	for _, p := range []string{namespace, subsystem} {
		if p != "" {
			prefix += p + "_"
		}
	}
	return &Registry{prefix: prefix, metrics: make(map[string]metric)}
}

// register returns the metric already registered under name and labels,
// or stores the one built by mk. Registering one series twice with a
// different type panics.
func register[M metric](r *Registry, name string, labels Labels, mk func(full string) M) M {
	full := r.prefix + name
	key := full + labels.String()

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.metrics[key]; ok {
		existing, ok := m.(M)
		if !ok {
			panic(fmt.Sprintf("metrics: %s registered as %s", key, m.kind()))
		}
		return existing
	}
	m := mk(full)
	r.metrics[key] = m
	return m
}

// RegisterCounter registers a counter, or returns the existing one.
func (r *Registry) RegisterCounter(name, help string, labels Labels) *Counter {
	return register(r, name, labels, func(full string) *Counter { return NewCounter(full, help, labels) })
}

// RegisterGauge registers a gauge, or returns the existing one.
func (r *Registry) RegisterGauge(name, help string, labels Labels) *Gauge {
	return register(r, name, labels, func(full string) *Gauge { return NewGauge(full, help, labels) })
}

// RegisterHistogram registers a histogram, or returns the existing one.
func (r *Registry) RegisterHistogram(name, help string, labels Labels, buckets []float64) *Histogram {
	return register(r, name, labels, func(full string) *Histogram { return NewHistogram(full, help, labels, buckets) })
}

// sorted returns the metrics ordered by name, then labels. Callers hold
// r.mu.
func (r *Registry) sorted() []metric {
	type entry struct {
		name, key string
		m         metric
	}
	entries := make([]entry, 0, len(r.metrics))
	for k, m := range r.metrics {
		entries = append(entries, entry{m.describe().name, k, m})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].name != entries[j].name {
			return entries[i].name < entries[j].name
		}
		return entries[i].key < entries[j].key
	})
	out := make([]metric, len(entries))
	for i, e := range entries {
		out[i] = e.m
	}
	return out
}

type promWriter struct {
	w   io.Writer
	err error
}

func (p *promWriter) printf(format string, args ...interface{}) {
	if p.err == nil {
		_, p.err = fmt.Fprintf(p.w, format, args...)
	}
}

// WritePrometheus writes every metric in the Prometheus text format, in
// name order, with one HELP/TYPE header per metric name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := &promWriter{w: w}
	var last string
	for _, m := range r.sorted() {
		d := m.describe()
		if d.name != last {
			p.printf("# HELP %s %s\n# TYPE %s %s\n", d.name, d.help, d.name, m.kind())
			last = d.name
		}
		m.write(p)
	}
	return p.err
}

// Snapshot returns the current value of every metric keyed by name and
// labels. Histograms contribute _count, _mean and _p95 entries.
func (r *Registry) Snapshot() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]interface{}, len(r.metrics))
	for key, m := range r.metrics {
		m.snapshot(key, out)
	}
	return out
}

// WriteJSON writes Snapshot as indented JSON.
func (r *Registry) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Snapshot())
}

// Reset zeroes every metric.
func (r *Registry) Reset() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.metrics {
		m.reset()
	}
}

// HTTPHandler serves the registry, as JSON when the client asks for it.
func (r *Registry) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.Contains(req.Header.Get("Accept"), "application/json") {
			w.Header().Set("Content-Type", "application/json")
			r.WriteJSON(w)
			return
		}
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.WritePrometheus(w)
	})
}

var defaultRegistry atomic.Pointer[Registry]

func init() {
	defaultRegistry.Store(NewRegistry("inputoverlay", ""))
}

// Default returns the process registry.
func Default() *Registry { return defaultRegistry.Load() }

// SetDefault replaces the process registry.
func SetDefault(r *Registry) { defaultRegistry.Store(r) }
