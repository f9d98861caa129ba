package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "session_calls_active",
		Help: "Currently connected media-stream calls",
	})

	metricFramesIn = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_frames_received_total",
		Help: "Inbound media frames across all calls",
	})

	metricTurns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_turns_total",
		Help: "Turns started, greeting included",
	})

	metricInterrupts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_interrupts_total",
		Help: "Turns aborted by caller barge-in",
	})

	metricSpeculativeRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_speculative_restarts_total",
		Help: "Turns restarted with a merged utterance after late finals",
	})

	metricSynthRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_synth_retries_total",
		Help: "Turns restarted on a fresh synthesis session after a fault",
	})

	metricMarks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_marks_emitted_total",
		Help: "Playback sentinels emitted",
	})

	metricMarkRoundtripMS = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "session_mark_roundtrip_ms",
		Help:    "Time from mark emission to its echo (ms)",
		Buckets: prometheus.ExponentialBuckets(50, 1.8, 10),
	})
)
