// Package metrics provides Prometheus metrics for the decoder pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "handmorse"

// Actuator request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeError     = "error"
)

// Metrics holds all Prometheus metrics for the process.
type Metrics struct {
	// Classifier metrics
	FramesTotal    *prometheus.CounterVec
	FramesRejected prometheus.Counter

	// Decoder metrics
	ImpulsesTotal *prometheus.CounterVec
	LettersTotal  *prometheus.CounterVec
	OverflowTotal prometheus.Counter
	ResetsTotal   prometheus.Counter

	// Actuator metrics
	ActuatorRequests *prometheus.CounterVec
	ActuatorDropped  prometheus.Counter
	ActuatorLatency  prometheus.Histogram

	// Sink metrics
	DisplayClients   prometheus.Gauge
	TranscriptErrors prometheus.Counter
}

// Default is registered with the default Prometheus registry and served on /metrics.
var Default = New(prometheus.DefaultRegisterer)

// New creates all metrics and registers them with reg.
// A nil reg creates unregistered metrics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of classifier frames processed",
		}, []string{"pose"}),
		FramesRejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Total number of malformed frame lines skipped",
		}),

		ImpulsesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impulses_total",
			Help:      "Total number of impulses accepted into a signal",
		}, []string{"kind"}),
		LettersTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "letters_total",
			Help:      "Total number of letters decoded",
		}, []string{"result"}),
		OverflowTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_overflow_total",
			Help:      "Total number of impulses rejected by a full signal",
		}),
		ResetsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resets_total",
			Help:      "Total number of sentence resets",
		}),

		ActuatorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_requests_total",
			Help:      "Total number of actuator notifications attempted",
		}, []string{"outcome"}),
		ActuatorDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actuator_dropped_total",
			Help:      "Total number of actuator notifications dropped on a full queue",
		}),
		ActuatorLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "actuator_latency_seconds",
			Help:      "Actuator request latency in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.2, 0.3, 0.5},
		}),

		DisplayClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "display_clients",
			Help:      "Number of connected websocket display clients",
		}),
		TranscriptErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_errors_total",
			Help:      "Total number of transcript write failures",
		}),
	}
}

// RecordFrame records one classifier frame with its pose label.
func (m *Metrics) RecordFrame(pose string) {
	m.FramesTotal.WithLabelValues(pose).Inc()
}

// RecordImpulse records an accepted impulse.
func (m *Metrics) RecordImpulse(kind string) {
	m.ImpulsesTotal.WithLabelValues(kind).Inc()
}

// RecordLetter records a decoded letter; unknown codes are counted separately.
func (m *Metrics) RecordLetter(known bool) {
	result := "known"
	if !known {
		result = "unknown"
	}
	m.LettersTotal.WithLabelValues(result).Inc()
}

// RecordActuator records the outcome and latency of one actuator request.
func (m *Metrics) RecordActuator(outcome string, latencySeconds float64) {
	m.ActuatorRequests.WithLabelValues(outcome).Inc()
	m.ActuatorLatency.Observe(latencySeconds)
}
