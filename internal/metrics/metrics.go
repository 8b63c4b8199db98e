package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the capture and
// transcription pipeline.
type Metrics struct {
	// Capture pipeline
	BlocksCaptured  prometheus.Counter
	SamplesCaptured prometheus.Counter
	BlocksDiscarded prometheus.Counter
	QueueDepth      prometheus.Gauge

	// Windowing and transcription
	WindowsAssembled      prometheus.Counter
	WindowsSkipped        prometheus.Counter
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures prometheus.Counter
	TranscriptionDuration prometheus.Histogram
	TranscriptsPending    prometheus.Gauge

	// Transport
	WSClients    prometheus.Gauge
	HTTPRequests *prometheus.CounterVec
}

// New creates and registers all metrics against the given registerer. Tests
// pass a fresh registry; main passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		BlocksCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_blocks_total",
			Help: "Total number of frame blocks delivered by the capture engine",
		}),
		SamplesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_samples_total",
			Help: "Total number of audio samples delivered by the capture engine",
		}),
		BlocksDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "capture_blocks_discarded_total",
			Help: "Total number of frame blocks discarded by queue drains",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "capture_queue_depth",
			Help: "Current number of frame blocks waiting in the delivery queue",
		}),
		WindowsAssembled: factory.NewCounter(prometheus.CounterOpts{
			Name: "windows_assembled_total",
			Help: "Total number of complete windows handed to the transcription sink",
		}),
		WindowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "windows_skipped_total",
			Help: "Total number of windows skipped by the energy gate",
		}),
		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_requests_total",
			Help: "Total number of windows sent for transcription",
		}),
		TranscriptionFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "transcription_failures_total",
			Help: "Total number of windows whose transcription failed",
		}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "transcription_duration_seconds",
			Help:    "Time spent transcribing one window",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		TranscriptsPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "transcripts_pending",
			Help: "Transcript records waiting to be pulled or broadcast",
		}),
		WSClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_clients",
			Help: "Currently connected WebSocket clients",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by endpoint and status code",
		}, []string{"method", "endpoint", "status_code"}),
	}
}
