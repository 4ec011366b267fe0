package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics tracks ledger transfers and settlement run outcomes.
type SettlementMetrics struct {
	transfers *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	runs      *prometheus.CounterVec
	skipped   prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	transfers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_transfers_total",
		Help:      "Ledger transfers submitted during settlement, by outcome.",
	}, []string{"outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "settlement_transfer_duration_seconds",
		Help:      "Time spent waiting on a single ledger transfer.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"outcome"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_runs_total",
		Help:      "Settlement runs by terminal state.",
	}, []string{"state"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_skipped_items_total",
		Help:      "Cart items excluded because their vendor had no payable address.",
	})
	reg.MustRegister(transfers, latency, runs, skipped)
	return &SettlementMetrics{
		transfers: transfers,
		latency:   latency,
		runs:      runs,
		skipped:   skipped,
	}
}

// ObserveTransfer records one transfer outcome ("success", "rejected", "insufficient_funds", "network").
func (m *SettlementMetrics) ObserveTransfer(outcome string, duration time.Duration) {
	if m == nil || m.transfers == nil {
		return
	}
	outcome = normalizeLabel(outcome)
	m.transfers.WithLabelValues(outcome).Inc()
	m.latency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// IncRun counts a settlement run ending in state.
func (m *SettlementMetrics) IncRun(state string) {
	if m == nil || m.runs == nil {
		return
	}
	m.runs.WithLabelValues(normalizeLabel(state)).Inc()
}

// AddSkipped counts items excluded from settlement.
func (m *SettlementMetrics) AddSkipped(n int) {
	if m == nil || m.skipped == nil || n <= 0 {
		return
	}
	m.skipped.Add(float64(n))
}
