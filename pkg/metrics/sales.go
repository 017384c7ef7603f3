package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics records the outcome of sale creations.
type SaleMetrics struct {
	duration *prometheus.HistogramVec
	created  prometheus.Counter
	failed   *prometheus.CounterVec
}

// NewSaleMetrics registers the sale engine metrics on the provided registerer.
func NewSaleMetrics(reg prometheus.Registerer) *SaleMetrics {
	if reg == nil {
		return &SaleMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sale_duration_seconds",
		Help:    "Duration of sale creation transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sales_created_total",
		Help: "Successfully committed sales.",
	})
	failed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sales_failed_total",
		Help: "Rejected or aborted sale creations.",
	}, []string{"reason"})
	reg.MustRegister(duration, created, failed)
	return &SaleMetrics{
		duration: duration,
		created:  created,
		failed:   failed,
	}
}

// ObserveDuration records how long a sale creation took for the given outcome.
func (s *SaleMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncCreated increments the committed-sale counter.
func (s *SaleMetrics) IncCreated() {
	if s == nil || s.created == nil {
		return
	}
	s.created.Inc()
}

// IncFailed increments the failure counter for the given reason.
func (s *SaleMetrics) IncFailed(reason string) {
	if s == nil || s.failed == nil {
		return
	}
	s.failed.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
