package guard

import (
	"sync"

	"github.com/linnemanlabs/shadowguard/internal/risk"
)

// StatsSnapshot is a point-in-time view of aggregate scan statistics.
type StatsSnapshot struct {
	TotalScans  int64            `json:"total_scans"`
	PHIDetected int64            `json:"phi_detected"`
	Allowed     int64            `json:"allowed"`
	Redacted    int64            `json:"redacted"`
	Blocked     int64            `json:"blocked"`
	CallsPlaced int64            `json:"calls_placed"`
	AvgScore    float64          `json:"avg_risk_score"`
	ByService   map[string]int64 `json:"by_service"`
	BySeverity  map[string]int64 `json:"by_severity"`
}

// Aggregator maintains running scan statistics. All methods are safe for
// concurrent use; the running mean is updated incrementally so it is exact
// regardless of interleaving.
type Aggregator struct {
	mu          sync.Mutex
	total       int64
	phiDetected int64
	byAction    map[risk.Action]int64
	callsPlaced int64
	avgScore    float64
	byService   map[string]int64
	bySeverity  map[string]int64
}

// NewAggregator initializes an empty Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		byAction:   make(map[risk.Action]int64),
		byService:  make(map[string]int64),
		bySeverity: make(map[string]int64),
	}
}

// RecordEvent folds one finalized event into the aggregates.
func (a *Aggregator) RecordEvent(ev *Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := float64(a.total)
	a.avgScore = (a.avgScore*n + float64(ev.Score)) / (n + 1)
	a.total++

	if ev.FindingCount > 0 {
		a.phiDetected++
	}
	a.byAction[ev.Action]++
	if ev.Service != "" {
		a.byService[ev.Service]++
	}
	a.bySeverity[string(ev.Severity)]++
}

// RecordCall counts one dispatched escalation call.
func (a *Aggregator) RecordCall() {
	a.mu.Lock()
	a.callsPlaced++
	a.mu.Unlock()
}

// Snapshot returns a consistent copy of the current aggregates.
func (a *Aggregator) Snapshot() StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := StatsSnapshot{
		TotalScans:  a.total,
		PHIDetected: a.phiDetected,
		Allowed:     a.byAction[risk.ActionAllow],
		Redacted:    a.byAction[risk.ActionRedact],
		Blocked:     a.byAction[risk.ActionBlock],
		CallsPlaced: a.callsPlaced,
		AvgScore:    a.avgScore,
		ByService:   make(map[string]int64, len(a.byService)),
		BySeverity:  make(map[string]int64, len(a.bySeverity)),
	}
	for k, v := range a.byService {
		snap.ByService[k] = v
	}
	for k, v := range a.bySeverity {
		snap.BySeverity[k] = v
	}
	return snap
}
