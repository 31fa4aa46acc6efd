// Package metrics defines the Prometheus instrumentation for the
// harvest pipeline and the prober, exposed on /metrics when a metrics
// address is configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	SourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsift_sources_total",
			Help: "Processed sources by terminal status",
		},
		[]string{"status"},
	)

	FetchedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsift_fetched_bytes_total",
			Help: "Body bytes received across all fetches",
		},
	)

	ChannelsWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "streamsift_channels_written_total",
			Help: "Channel records written to accepted playlists",
		},
	)

	SourcesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsift_sources_in_flight",
			Help: "Pipeline sequences currently executing",
		},
	)

	FetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "streamsift_fetch_duration_seconds",
			Help:    "Wall time of one full source sequence",
			Buckets: prometheus.DefBuckets,
		},
	)

	RunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "streamsift_run_duration_seconds",
			Help: "Wall time of the last completed harvest run",
		},
	)
)

// Prober metrics
var (
	ProbeVerdicts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "streamsift_probe_verdicts_total",
			Help: "Stream liveness verdicts by result",
		},
		[]string{"verdict"},
	)
)
