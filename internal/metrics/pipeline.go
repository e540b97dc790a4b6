package metrics

import (
	"time"
)

// Pipeline holds the metrics of one overlay source.
type Pipeline struct {
	registry *Registry

	// Counters
	EventsTotal    *Counter
	EventsApplied  *Counter
	EventsFiltered *Counter
	FramesTotal    *Counter
	LoadsTotal     *Counter
	LoadErrors     *Counter
	HistoryWrites  *Counter
	HistoryErrors  *Counter

	// Gauges
	Elements      *Gauge
	Loaded        *Gauge
	PassThrough   *Gauge
	HooksRunning  *Gauge
	UptimeSeconds *Gauge

	// Histograms
	FrameDuration *Histogram
	LoadDuration  *Histogram
	EventLatency  *Histogram
}

var startTime = time.Now()

// NewPipeline registers the pipeline metrics in registry (Default when nil).
func NewPipeline(registry *Registry) *Pipeline {
	if registry == nil {
		registry = Default()
	}
	return &Pipeline{
		registry: registry,

		EventsTotal: registry.RegisterCounter(
			"events_total",
			"Input events delivered by the hooks",
			nil,
		),
		EventsApplied: registry.RegisterCounter(
			"events_applied_total",
			"Input events that changed element state",
			nil,
		),
		EventsFiltered: registry.RegisterCounter(
			"events_filtered_total",
			"Input events dropped by the gamepad or mouse settings",
			nil,
		),
		FramesTotal: registry.RegisterCounter(
			"frames_total",
			"Frames rendered",
			nil,
		),
		LoadsTotal: registry.RegisterCounter(
			"loads_total",
			"Atlas and layout loads",
			nil,
		),
		LoadErrors: registry.RegisterCounter(
			"load_errors_total",
			"Loads that fell back to pass-through or not-loaded",
			nil,
		),
		HistoryWrites: registry.RegisterCounter(
			"history_writes_total",
			"Input history rows written",
			nil,
		),
		HistoryErrors: registry.RegisterCounter(
			"history_errors_total",
			"Input history writes that failed",
			nil,
		),

		Elements: registry.RegisterGauge(
			"elements",
			"Elements in the loaded layout",
			nil,
		),
		Loaded: registry.RegisterGauge(
			"loaded",
			"1 when both the atlas and a layout are loaded",
			nil,
		),
		PassThrough: registry.RegisterGauge(
			"pass_through",
			"1 when the whole atlas is drawn without a layout",
			nil,
		),
		HooksRunning: registry.RegisterGauge(
			"hooks_running",
			"Input hooks currently running",
			nil,
		),
		UptimeSeconds: registry.RegisterGauge(
			"uptime_seconds",
			"Seconds since the process started",
			nil,
		),

		FrameDuration: registry.RegisterHistogram(
			"frame_duration_seconds",
			"Time spent drawing one frame",
			nil,
			FrameBuckets,
		),
		LoadDuration: registry.RegisterHistogram(
			"load_duration_seconds",
			"Time spent loading the atlas and layout",
			nil,
			DurationBuckets,
		),
		EventLatency: registry.RegisterHistogram(
			"event_latency_seconds",
			"Delay between an input event and its application",
			nil,
			FrameBuckets,
		),
	}
}

// RecordEvent records one delivered event.
func (p *Pipeline) RecordEvent(ts time.Time, applied bool) {
	p.EventsTotal.Inc()
	if applied {
		p.EventsApplied.Inc()
	}
	if !ts.IsZero() {
		p.EventLatency.Since(ts)
	}
}

// RecordFiltered records an event dropped by the settings.
func (p *Pipeline) RecordFiltered() {
	p.EventsTotal.Inc()
	p.EventsFiltered.Inc()
}

// RecordFrame records one rendered frame.
func (p *Pipeline) RecordFrame(d time.Duration) {
	p.FramesTotal.Inc()
	p.FrameDuration.ObserveDuration(d)
}

// RecordLoad records a load and the state it left behind.
func (p *Pipeline) RecordLoad(d time.Duration, err error, loaded, passThrough bool, elements int) {
	p.LoadsTotal.Inc()
	p.LoadDuration.ObserveDuration(d)
	if err != nil {
		p.LoadErrors.Inc()
	}
	p.Loaded.SetBool(loaded)
	p.PassThrough.SetBool(passThrough)
	p.Elements.Set(int64(elements))
}

// RecordHistory records one input history write.
func (p *Pipeline) RecordHistory(err error) {
	if err != nil {
		p.HistoryErrors.Inc()
		return
	}
	p.HistoryWrites.Inc()
}

// UpdateUptime updates the uptime gauge.
func (p *Pipeline) UpdateUptime() {
	p.UptimeSeconds.Set(int64(time.Since(startTime).Seconds()))
}

// Registry returns the registry the metrics live in.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Snapshot returns the headline values for status output.
func (p *Pipeline) Snapshot() map[string]interface{} {
	p.UpdateUptime()
	return map[string]interface{}{
		"events_total":         p.EventsTotal.Value(),
		"events_applied_total": p.EventsApplied.Value(),
		"events_filtered":      p.EventsFiltered.Value(),
		"frames_total":         p.FramesTotal.Value(),
		"loads_total":          p.LoadsTotal.Value(),
		"load_errors_total":    p.LoadErrors.Value(),
		"elements":             p.Elements.Value(),
		"hooks_running":        p.HooksRunning.Value(),
		"uptime_seconds":       p.UptimeSeconds.Value(),
		"frame_avg_seconds":    p.FrameDuration.Mean(),
		"frame_p95_seconds":    p.FrameDuration.Quantile(0.95),
	}
}
