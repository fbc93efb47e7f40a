// Package metrics counts download activity with Prometheus collectors.
//
// A Recorder consumes orchestrator events and results. Short-lived CLI runs
// export the counters through the node_exporter textfile collector with
// WriteTextfile.
package metrics

import (
	"github.com/handiism/factorio-mod-downloader/internal/download"
	"github.com/handiism/factorio-mod-downloader/internal/model"
	"github.com/prometheus/client_golang/prometheus"
)

// Values of the result label.
const (
	ResultDownloaded = "downloaded"
	ResultSkipped    = "skipped"
	ResultFailed     = "failed"
)

// Recorder holds the collectors of one process.
type Recorder struct {
	registry *prometheus.Registry

	modsTotal          *prometheus.CounterVec
	bytesTotal         prometheus.Counter
	eventsTotal        *prometheus.CounterVec
	invocationDuration prometheus.Histogram
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		modsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmd_mods_total",
				Help: "Number of mods processed by result.",
			},
			[]string{"result"},
		),
		bytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fmd_bytes_downloaded_total",
				Help: "Total number of artifact bytes received, resumed bytes excluded.",
			},
		),
		eventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fmd_events_total",
				Help: "Number of orchestrator events by kind.",
			},
			[]string{"kind"},
		),
		invocationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fmd_invocation_duration_seconds",
				Help:    "Time taken by one download request.",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
			},
		),
	}

	r.registry.MustRegister(
		r.modsTotal,
		r.bytesTotal,
		r.eventsTotal,
		r.invocationDuration,
	)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe counts one orchestrator event.
func (r *Recorder) Observe(event download.Event) {
	r.eventsTotal.WithLabelValues(event.Kind.String()).Inc()

	switch event.Kind {
	case download.EventComplete:
		if event.Skipped {
			r.modsTotal.WithLabelValues(ResultSkipped).Inc()
			return
		}
		r.modsTotal.WithLabelValues(ResultDownloaded).Inc()
	case download.EventError:
		r.modsTotal.WithLabelValues(ResultFailed).Inc()
	}
}

// RecordResult records the duration and received bytes of a finished
// request.
func (r *Recorder) RecordResult(result model.AggregateResult) {
	r.invocationDuration.Observe(result.Duration.Seconds())
	r.bytesTotal.Add(float64(result.TotalBytes))
}

// WriteTextfile writes the collectors in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
