package guard

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the inspection subsystem.
type Metrics struct {
	ScansTotal      *prometheus.CounterVec
	ScanDuration    prometheus.Histogram
	ScanFindings    prometheus.Histogram
	ScanScore       prometheus.Histogram
	DispatchesTotal *prometheus.CounterVec
	BroadcastDrops  prometheus.Counter
	PersistFailures prometheus.Counter
}

// NewMetrics registers and returns inspection metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shadowguard_scans_total",
			Help: "Total payload scans by decided action.",
		}, []string{"action"}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shadowguard_scan_duration_seconds",
			Help:    "Duration of the synchronous scan path in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms .. ~1s
		}),
		ScanFindings: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shadowguard_scan_findings",
			Help:    "Resolved findings per scan.",
			Buckets: prometheus.LinearBuckets(0, 1, 16), // 0 .. 15
		}),
		ScanScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shadowguard_scan_risk_score",
			Help:    "Risk score per scan.",
			Buckets: prometheus.LinearBuckets(0, 10, 11), // 0 .. 100
		}),
		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shadowguard_escalation_dispatches_total",
			Help: "Total escalation dispatch attempts by outcome.",
		}, []string{"outcome"}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowguard_broadcast_drops_total",
			Help: "Total broadcast messages dropped for slow subscribers.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shadowguard_event_persist_failures_total",
			Help: "Total event persistence failures after retry.",
		}),
	}

	reg.MustRegister(
		m.ScansTotal,
		m.ScanDuration,
		m.ScanFindings,
		m.ScanScore,
		m.DispatchesTotal,
		m.BroadcastDrops,
		m.PersistFailures,
	)

	return m
}
