package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type ledgerMetrics struct {
	requests       *prometheus.CounterVec
	latency        *prometheus.HistogramVec
	totalFunds     prometheus.Gauge
	availableFunds prometheus.Gauge
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *ledgerMetrics
)

// LedgerMetrics returns the lazily-initialised metrics registry used to
// record ledger module activity and pool funds.
func LedgerMetrics() *ledgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &ledgerMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "lendpool",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total ledger module requests segmented by module, method, and outcome.",
			}, []string{"module", "method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "lendpool",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for ledger module operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			totalFunds: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lendpool",
				Subsystem: "pool",
				Name:      "total_funds",
				Help:      "Total funds attributed to the pool in smallest currency units.",
			}),
			availableFunds: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "lendpool",
				Subsystem: "pool",
				Name:      "available_funds",
				Help:      "Pool liquidity not currently lent out, in smallest currency units.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.requests,
			ledgerRegistry.latency,
			ledgerRegistry.totalFunds,
			ledgerRegistry.availableFunds,
		)
	})
	return ledgerRegistry
}

// Observe records one module operation with its outcome and duration.
func (m *ledgerMetrics) Observe(module, method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// SetPoolFunds publishes the committed pool totals.
func (m *ledgerMetrics) SetPoolFunds(total, available uint64) {
	if m == nil {
		return
	}
	m.totalFunds.Set(float64(total))
	m.availableFunds.Set(float64(available))
}
