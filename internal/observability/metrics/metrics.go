// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "therapy_transcription"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Connection metrics
	ConnectionsTotal   prometheus.Counter
	ConnectionsActive  prometheus.Gauge
	ConnectionDuration prometheus.Histogram

	// Audio ingestion metrics
	AudioBytesReceived  prometheus.Counter
	AudioChunksReceived prometheus.Counter
	FileSubmissions     prometheus.Counter

	// Flush metrics
	FlushesTotal  *prometheus.CounterVec
	FlushLatency  prometheus.Histogram
	FlushBacklog  prometheus.Gauge
	TurnsEmitted  prometheus.Counter
	EmptyFlushes  prometheus.Counter

	// Conversion metrics
	ConversionLatency  prometheus.Histogram
	ConversionFailures prometheus.Counter

	// Engine metrics
	EngineLatency *prometheus.HistogramVec
	EngineErrors  *prometheus.CounterVec

	// Protocol metrics
	ProtocolErrors *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of websocket connections accepted",
		}),
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently active websocket connections",
		}),
		ConnectionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connection_duration_seconds",
			Help:      "Duration of websocket connections in seconds",
			Buckets:   []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received over binary frames",
		}),
		AudioChunksReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_received_total",
			Help:      "Total audio chunks received over binary frames",
		}),
		FileSubmissions: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "file_submissions_total",
			Help:      "Total audio_file batch submissions",
		}),

		FlushesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flushes_total",
			Help:      "Total buffer flushes by kind (partial, final, file)",
		}, []string{"kind"}),
		FlushLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "flush_latency_seconds",
			Help:      "End-to-end flush latency (normalize + transcribe + segment)",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		FlushBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flush_backlog",
			Help:      "Flush jobs queued but not yet processed, across connections",
		}),
		TurnsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_turns_emitted_total",
			Help:      "Total speaker turns emitted in transcript results",
		}),
		EmptyFlushes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_flushes_total",
			Help:      "Flushes that produced no speech segments",
		}),

		ConversionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "conversion_latency_seconds",
			Help:      "Format normalization latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15, 30},
		}),
		ConversionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversion_failures_total",
			Help:      "Total format normalization failures",
		}),

		EngineLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_latency_seconds",
			Help:      "Transcription engine call latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		EngineErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "engine_errors_total",
			Help:      "Total transcription engine errors",
		}, []string{"provider"}),

		ProtocolErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_errors_total",
			Help:      "Total protocol errors sent to clients",
		}, []string{"kind"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordConnectionStart records a new connection being accepted.
func (m *Metrics) RecordConnectionStart() {
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

// RecordConnectionEnd records a connection closing.
func (m *Metrics) RecordConnectionEnd(durationSeconds float64) {
	m.ConnectionsActive.Dec()
	m.ConnectionDuration.Observe(durationSeconds)
}

// RecordChunk records an inbound binary audio chunk.
func (m *Metrics) RecordChunk(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioChunksReceived.Inc()
}

// RecordFlush records a completed flush of the given kind.
func (m *Metrics) RecordFlush(kind string, turns int, latencySeconds float64) {
	m.FlushesTotal.WithLabelValues(kind).Inc()
	m.FlushLatency.Observe(latencySeconds)
	if turns == 0 {
		m.EmptyFlushes.Inc()
	} else {
		m.TurnsEmitted.Add(float64(turns))
	}
}

// RecordConversion records a normalization attempt.
func (m *Metrics) RecordConversion(err error, latencySeconds float64) {
	m.ConversionLatency.Observe(latencySeconds)
	if err != nil {
		m.ConversionFailures.Inc()
	}
}

// RecordEngineCall records a transcription engine invocation.
func (m *Metrics) RecordEngineCall(provider string, err error, latencySeconds float64) {
	m.EngineLatency.WithLabelValues(provider).Observe(latencySeconds)
	if err != nil {
		m.EngineErrors.WithLabelValues(provider).Inc()
	}
}

// RecordProtocolError records an error message sent to a client.
func (m *Metrics) RecordProtocolError(kind string) {
	m.ProtocolErrors.WithLabelValues(kind).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
