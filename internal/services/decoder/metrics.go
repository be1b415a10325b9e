package decoder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels beyond the ones format27.Outcome produces.
const (
	OutcomeDuplicate       = "duplicate"
	OutcomeInvalidEnvelope = "invalid_envelope"
	OutcomePublishError    = "publish_error"
)

var (
	uc = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decoder_uplink_count",
		Help: "The number of handled uplinks (per outcome).",
	}, []string{"outcome"})

	dd = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "decoder_decode_duration_seconds",
		Help:    "Time spent between receiving an uplink and publishing the decoded reading.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	})
)

func uplinkCounter(outcome string) prometheus.Counter {
	return uc.With(prometheus.Labels{"outcome": outcome})
}
