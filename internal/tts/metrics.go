package tts

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricSynthesisTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tts_synthesis_total",
		Help: "Total synthesis sessions by terminal status",
	}, []string{"status"})

	metricConnectMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_connect_ms",
		Help:    "Time to establish provider connection (ms)",
		Buckets: prometheus.ExponentialBuckets(10, 1.8, 10),
	})

	metricFirstAudioMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tts_first_audio_ms",
		Help:    "Latency from session start to first audio chunk (ms)",
		Buckets: prometheus.ExponentialBuckets(20, 1.6, 10),
	})

	metricAudioBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_audio_bytes_total",
		Help: "Total synthesized audio bytes received",
	})

	metricTextChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_text_chunks_total",
		Help: "Total text increments submitted for synthesis",
	})

	metricPrewarms = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_pool_prewarms_total",
		Help: "Synthesis sessions pre-warmed during idle",
	})

	metricPoolHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_pool_hits_total",
		Help: "Turns served by a pre-warmed session",
	})

	metricPoolMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tts_pool_misses_total",
		Help: "Turns that had to dial a session inline",
	})
)
