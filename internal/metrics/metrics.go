// Package metrics exposes Prometheus instrumentation for the settlement
// core. It implements the risk simulator's Recorder and the engine's
// Observer so fallbacks, decisions, and run outcomes are all counted.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/winverse2755/settlekit/internal/domain"
)

type SettlementMetrics struct {
	riskFallbacks *prometheus.CounterVec
	decisions     *prometheus.CounterVec
	runs          *prometheus.CounterVec
	evalDuration  prometheus.Histogram
}

var (
	once     sync.Once
	registry *SettlementMetrics
)

// Settlement returns the process-wide settlement metrics, registering them on
// first use.
func Settlement() *SettlementMetrics {
	once.Do(func() {
		registry = &SettlementMetrics{
			riskFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settle_risk_fallback_total",
				Help: "Count of conservative risk fallbacks caused by pool-state query failures, by pool.",
			}, []string{"pool_id"}),
			decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settle_decisions_total",
				Help: "Count of decision-log entries by decision.",
			}, []string{"decision"}),
			runs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "settle_runs_total",
				Help: "Count of finished decision runs by terminal status.",
			}, []string{"status"}),
			evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
				Name:    "settle_evaluation_duration_seconds",
				Help:    "Wall time of one full decision run, including retry delays.",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			}),
		}
		prometheus.MustRegister(
			registry.riskFallbacks,
			registry.decisions,
			registry.runs,
			registry.evalDuration,
		)
	})
	return registry
}

// RiskFallback counts one conservative fallback. Systemic upstream outages
// show up as a rate spike here.
func (m *SettlementMetrics) RiskFallback(poolID string) {
	if m == nil {
		return
	}
	if poolID == "" {
		poolID = "unknown"
	}
	m.riskFallbacks.WithLabelValues(poolID).Inc()
}

func (m *SettlementMetrics) DecisionRecorded(d domain.Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(string(d)).Inc()
}

func (m *SettlementMetrics) RunCompleted(status domain.ExecutionStatus) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}

// ObserveRunDuration records the wall time of one decision run.
func (m *SettlementMetrics) ObserveRunDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.evalDuration.Observe(d.Seconds())
}
