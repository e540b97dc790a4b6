// Package metrics provides Prometheus-compatible metrics for the overlay
// pipeline.
//
// Counters, gauges and histograms are lock-free or take a short mutex, so
// they are safe to update from hook callbacks and the render loop. A
// Registry renders them in the Prometheus text format or as JSON.
package metrics

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MetricType is the Prometheus TYPE of a metric.
type MetricType int

const (
	TypeCounter MetricType = iota
	TypeGauge
	TypeHistogram
)

func (t MetricType) String() string {
	switch t {
	case TypeCounter:
		return "counter"
	case TypeGauge:
		return "gauge"
	case TypeHistogram:
		return "histogram"
	}
	return "untyped"
}

// Labels are the label pairs of one series.
type Labels map[string]string

// String renders labels as {k="v",...} with sorted keys and escaped values.
func (l Labels) String() string {
	if len(l) == 0 {
		return ""
	}
	return "{" + l.pairs() + "}"
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

// pairs renders the label pairs without braces, followed by extra.
func (l Labels) pairs(extra ...string) string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]string, 0, len(keys)+len(extra))
	for _, k := range keys {
		out = append(out, k+`="`+labelEscaper.Replace(l[k])+`"`)
	}
	return strings.Join(append(out, extra...), ",")
}

// desc is the identity shared by every metric type.
type desc struct {
	name   string
	help   string
	labels Labels
}

// Name returns the full metric name.
func (d *desc) Name() string { return d.name }

// metric is what a Registry can export.
type metric interface {
	describe() *desc
	kind() MetricType
	write(p *promWriter)
	snapshot(key string, into map[string]interface{})
	reset()
}

// Counter only goes up.
type Counter struct {
	desc
	value atomic.Uint64
}

// NewCounter returns an unregistered counter.
func NewCounter(name, help string, labels Labels) *Counter {
	return &Counter{desc: desc{name, help, labels}}
}

func (c *Counter) Inc()          { c.value.Add(1) }
func (c *Counter) Add(v uint64)  { c.value.Add(v) }
func (c *Counter) Value() uint64 { return c.value.Load() }

func (c *Counter) describe() *desc  { return &c.desc }
func (c *Counter) kind() MetricType { return TypeCounter }
func (c *Counter) reset()           { c.value.Store(0) }
func (c *Counter) write(p *promWriter) {
	p.printf("%s%s %d\n", c.name, c.labels, c.Value())
}
func (c *Counter) snapshot(key string, into map[string]interface{}) { into[key] = c.Value() }

// Gauge is a value that can go up and down.
type Gauge struct {
	desc
	value atomic.Int64
}

// NewGauge returns an unregistered gauge.
func NewGauge(name, help string, labels Labels) *Gauge {
	return &Gauge{desc: desc{name, help, labels}}
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// SetBool sets the gauge to 1 or 0.
func (g *Gauge) SetBool(v bool) {
	var n int64
	if v {
		n = 1
	}
	g.value.Store(n)
}

func (g *Gauge) describe() *desc  { return &g.desc }
func (g *Gauge) kind() MetricType { return TypeGauge }
func (g *Gauge) reset()           { g.value.Store(0) }
func (g *Gauge) write(p *promWriter) {
	p.printf("%s%s %d\n", g.name, g.labels, g.Value())
}
func (g *Gauge) snapshot(key string, into map[string]interface{}) { into[key] = g.Value() }

// FrameBuckets suit per-frame work, in seconds.
var FrameBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.004, 0.008, 0.016, 0.033, 0.066,
}

// DurationBuckets suit file loads and queries, in seconds.
var DurationBuckets = []float64{
	0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// Histogram counts observations into fixed buckets.
type Histogram struct {
	desc
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, not cumulative; the last is +Inf
	sum    float64
	count  uint64
}

// NewHistogram returns an unregistered histogram. Nil bounds use
// DurationBuckets; bounds need not be sorted.
func NewHistogram(name, help string, labels Labels, bounds []float64) *Histogram {
	if bounds == nil {
		bounds = DurationBuckets
	}
	bounds = append([]float64(nil), bounds...)
	sort.Float64s(bounds)
	return &Histogram{
		desc:   desc{name, help, labels},
		bounds: bounds,
		counts: make([]uint64, len(bounds)+1),
	}
}

// Observe records v in the first bucket whose bound is >= v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	h.counts[sort.SearchFloat64s(h.bounds, v)]++
	h.sum += v
	h.count++
	h.mu.Unlock()
}

// ObserveDuration records d in seconds.
func (h *Histogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }

// Since records the time elapsed since start.
func (h *Histogram) Since(start time.Time) { h.ObserveDuration(time.Since(start)) }

// Count returns the number of observations.
func (h *Histogram) Count() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// Mean returns the mean observation, or 0.
func (h *Histogram) Mean() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.count == 0 {
		return 0
	}
	return h.sum / float64(h.count)
}

// Quantile estimates the q-th quantile (0..1) by linear interpolation
// inside the bucket holding that rank. Ranks in the +Inf bucket report the
// largest bound.
func (h *Histogram) Quantile(q float64) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 || len(h.bounds) == 0 {
		return 0
	}
	rank := max(uint64(math.Ceil(float64(h.count)*q)), 1)
	var below uint64
	for i, n := range h.counts {
		if below+n < rank {
			below += n
			continue
		}
		if i == len(h.bounds) {
			break
		}
		lo := 0.0
		if i > 0 {
			lo = h.bounds[i-1]
		}
		return lo + (h.bounds[i]-lo)*float64(rank-below)/float64(n)
	}
	return h.bounds[len(h.bounds)-1]
}

func (h *Histogram) describe() *desc  { return &h.desc }
func (h *Histogram) kind() MetricType { return TypeHistogram }

func (h *Histogram) reset() {
	h.mu.Lock()
	clear(h.counts)
	h.sum, h.count = 0, 0
	h.mu.Unlock()
}

func (h *Histogram) write(p *promWriter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var cum uint64
	for i, bound := range h.bounds {
		cum += h.counts[i]
		p.printf("%s_bucket{%s} %d\n", h.name, h.labels.pairs(fmt.Sprintf(`le="%g"`, bound)), cum)
	}
	cum += h.counts[len(h.bounds)]
	p.printf("%s_bucket{%s} %d\n", h.name, h.labels.pairs(`le="+Inf"`), cum)
	p.printf("%s_sum%s %g\n", h.name, h.labels, h.sum)
	p.printf("%s_count%s %d\n", h.name, h.labels, h.count)
}

func (h *Histogram) snapshot(key string, into map[string]interface{}) {
	into[key+"_count"] = h.Count()
	into[key+"_mean"] = h.Mean()
	into[key+"_p95"] = h.Quantile(0.95)
}
