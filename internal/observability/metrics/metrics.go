// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "live_caption"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Recognition session metrics
	SessionsTotal    prometheus.Counter
	SessionsActive   prometheus.Gauge
	SessionsFailed   prometheus.Counter
	InterimThrottled prometheus.Counter

	// Audio metrics
	AudioBytesReceived  prometheus.Counter
	AudioFramesReceived prometheus.Counter

	// Caption metrics
	CaptionsPartial prometheus.Counter
	CaptionsFinal   prometheus.Counter
	HistoryWrites   prometheus.Counter
	HistoryErrors   prometheus.Counter

	// Translation metrics
	TranslationLatency *prometheus.HistogramVec
	TranslationErrors  *prometheus.CounterVec

	// Synthesis metrics
	SynthesisLatency *prometheus.HistogramVec
	SynthesisErrors  *prometheus.CounterVec

	// Distribution metrics
	PublishTotal  *prometheus.CounterVec
	PublishErrors *prometheus.CounterVec

	// Kafka export metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec

	// Viewer metrics
	ViewersActive prometheus.Gauge
}

// Default is the global metrics instance.
var Default = New()

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		// Recognition session metrics
		SessionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_sessions_total",
			Help:      "Total number of recognition sessions created",
		}),
		SessionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "recognition_sessions_active",
			Help:      "Number of currently active recognition sessions",
		}),
		SessionsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_sessions_failed_total",
			Help:      "Total number of recognition sessions that failed or were cancelled",
		}),
		InterimThrottled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interim_throttled_total",
			Help:      "Total number of interim results suppressed by the per-speaker rate limit",
		}),

		// Audio metrics
		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),

		// Caption metrics
		CaptionsPartial: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captions_partial_total",
			Help:      "Total number of partial captions published",
		}),
		CaptionsFinal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captions_final_total",
			Help:      "Total number of final captions published",
		}),
		HistoryWrites: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_writes_total",
			Help:      "Total number of caption history appends",
		}),
		HistoryErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_errors_total",
			Help:      "Total number of failed caption history appends",
		}),

		// Translation metrics
		TranslationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "translation_latency_seconds",
			Help:      "Batch translation latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"source_lang"}),
		TranslationErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translation_errors_total",
			Help:      "Total number of failed translation batches",
		}, []string{"source_lang"}),

		// Synthesis metrics
		SynthesisLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "synthesis_latency_seconds",
			Help:      "Speech synthesis latency in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"lang"}),
		SynthesisErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_errors_total",
			Help:      "Total number of failed synthesis tasks",
		}, []string{"lang"}),

		// Distribution metrics
		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total number of payloads published to viewer groups",
		}, []string{"kind"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total number of failed viewer publishes",
		}, []string{"kind"}),

		// Kafka export metrics
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

		// Viewer metrics
		ViewersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewers_active",
			Help:      "Number of connected viewer sessions",
		}),
	}
}

// RecordSessionStart records a new recognition session.
func (m *Metrics) RecordSessionStart() {
	m.SessionsTotal.Inc()
	m.SessionsActive.Inc()
}

// RecordSessionEnd records a session leaving the active set.
func (m *Metrics) RecordSessionEnd() {
	m.SessionsActive.Dec()
}

// RecordSessionFailed records a session creation failure or cancellation.
func (m *Metrics) RecordSessionFailed() {
	m.SessionsFailed.Inc()
}

// RecordInterimThrottled records an interim suppressed by the rate limit.
func (m *Metrics) RecordInterimThrottled() {
	m.InterimThrottled.Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordCaption records a published caption.
func (m *Metrics) RecordCaption(isFinal bool) {
	if isFinal {
		m.CaptionsFinal.Inc()
	} else {
		m.CaptionsPartial.Inc()
	}
}

// RecordHistoryWrite records a caption history append attempt.
func (m *Metrics) RecordHistoryWrite(err error) {
	m.HistoryWrites.Inc()
	if err != nil {
		m.HistoryErrors.Inc()
	}
}

// RecordTranslation records a batch translation attempt.
func (m *Metrics) RecordTranslation(sourceLang string, err error, latencySeconds float64) {
	m.TranslationLatency.WithLabelValues(sourceLang).Observe(latencySeconds)
	if err != nil {
		m.TranslationErrors.WithLabelValues(sourceLang).Inc()
	}
}

// RecordSynthesis records a synthesis attempt for one language.
func (m *Metrics) RecordSynthesis(lang string, err error, latencySeconds float64) {
	m.SynthesisLatency.WithLabelValues(lang).Observe(latencySeconds)
	if err != nil {
		m.SynthesisErrors.WithLabelValues(lang).Inc()
	}
}

// RecordPublish records a viewer publish attempt.
func (m *Metrics) RecordPublish(kind string, err error) {
	m.PublishTotal.WithLabelValues(kind).Inc()
	if err != nil {
		m.PublishErrors.WithLabelValues(kind).Inc()
	}
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
