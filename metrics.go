package quota

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultAllowed       = "allowed"
	resultDenied        = "denied"
	resultWriteConflict = "write_conflict"
	resultStoreError    = "store_error"
	resultConfigError   = "config_error"
	resultInvalid       = "invalid"
)

// Metrics contains Prometheus collectors for a Limiter. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	spends        *prometheus.CounterVec
	conflicts     *prometheus.CounterVec
	spendDuration *prometheus.HistogramVec

	storeCalls    *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
}

// NewMetrics registers the limiter collectors with reg. A nil reg falls back
// to prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		spends: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_spend_total",
				Help: "Total number of spend calls by outcome",
			},
			[]string{"event_type", "result"},
		),

		conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_write_conflicts_total",
				Help: "Total number of lost insert or compare-and-swap races",
			},
			[]string{"event_type"},
		),

		spendDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quota_spend_duration_seconds",
				Help:    "Duration of spend calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15), // 50µs to ~800ms
			},
			[]string{"event_type"},
		),

		storeCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quota_store_calls_total",
				Help: "Total number of store calls by operation and status",
			},
			[]string{"op", "status"},
		),

		storeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quota_store_call_duration_seconds",
				Help:    "Duration of store calls in seconds",
				Buckets: prometheus.ExponentialBuckets(0.00005, 2, 15),
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) observeSpend(et EventType, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.spends.WithLabelValues(string(et), result).Inc()
	m.spendDuration.WithLabelValues(string(et)).Observe(d.Seconds())
}

func (m *Metrics) observeConflict(et EventType) {
	if m == nil {
		return
	}
	m.conflicts.WithLabelValues(string(et)).Inc()
}

func (m *Metrics) observeStoreCall(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeCalls.WithLabelValues(op, status).Inc()
	m.storeDuration.WithLabelValues(op).Observe(d.Seconds())
}

func resultOf(d Decision, err error) string {
	switch {
	case err == nil && d.Allowed():
		return resultAllowed
	case err == nil:
		return resultDenied
	case errors.Is(err, ErrWriteConflict):
		return resultWriteConflict
	default:
		return resultStoreError
	}
}
