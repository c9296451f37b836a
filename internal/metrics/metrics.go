// Package metrics holds the process-wide Prometheus registry and the
// instrument handles the room core reports into. A single Handle is built in
// main and injected into room construction; no package-level singletons.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Handle bundles every instrument the room core writes to.
type Handle struct {
	Registry *prometheus.Registry

	TranslatorLatency *prometheus.HistogramVec
	SegmentOutcomes   *prometheus.CounterVec
	TTSQueueDepth     *prometheus.GaugeVec
	TTSBacklogSeconds *prometheus.GaugeVec
	TTSRateMultiplier *prometheus.GaugeVec
	TTSOutcomes       *prometheus.CounterVec
	WatchdogAdvisory  *prometheus.CounterVec
}

// New builds a Handle registered against a fresh registry.
func New() *Handle {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Handle{
		Registry: reg,
		TranslatorLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "relay",
			Subsystem: "translator",
			Name:      "latency_seconds",
			Help:      "Latency of Translator Client calls per target language and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"target_lang", "provider", "outcome"}),
		SegmentOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "segment",
			Name:      "outcomes_total",
			Help:      "Segment Processor acceptance outcomes by reason.",
		}, []string{"room", "reason"}),
		TTSQueueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "tts",
			Name:      "queue_depth",
			Help:      "Number of pending items in a per-room per-language TTS queue.",
		}, []string{"room", "lang"}),
		TTSBacklogSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "tts",
			Name:      "backlog_seconds",
			Help:      "Estimated seconds of audio still to play in a TTS queue.",
		}, []string{"room", "lang"}),
		TTSRateMultiplier: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "relay",
			Subsystem: "tts",
			Name:      "rate_multiplier",
			Help:      "Current speed-ramp rate multiplier applied to synthesis requests.",
		}, []string{"room", "lang"}),
		TTSOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "tts",
			Name:      "outcomes_total",
			Help:      "TTS queue item outcomes by reason (enqueued, duplicate_version, stale_version, error, skipped).",
		}, []string{"room", "lang", "reason"}),
		WatchdogAdvisory: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay",
			Subsystem: "watchdog",
			Name:      "restart_advisories_total",
			Help:      "Number of restart advisories emitted by the Watchdog.",
		}, []string{"room"}),
	}
}
