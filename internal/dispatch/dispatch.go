// Package dispatch places rate-limited escalation calls for high-risk
// detection events. It implements guard.Escalator.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/shadowguard/internal/guard"
	"github.com/linnemanlabs/shadowguard/internal/risk"
)

// PageRequest is the escalation context handed to the paging provider.
type PageRequest struct {
	Service     string
	PHITypes    []string
	RiskScore   int
	ActionTaken string
	Timestamp   time.Time
	SourceID    string
}

// PageAck is the provider's acknowledgment of a submitted page.
type PageAck struct {
	CallID string
	Status string
}

// Pager submits one escalation page to the provider.
type Pager interface {
	Page(ctx context.Context, req *PageRequest) (*PageAck, error)
}

// Options tunes escalation behavior.
type Options struct {
	Enabled   bool
	Threshold int
	Cooldown  time.Duration
}

// Dispatcher decides whether a finalized event warrants an escalation call
// and drives the call record lifecycle. At most one dispatch is attempted per
// source within the cooldown window, regardless of concurrent offers.
type Dispatcher struct {
	pager       Pager
	store       guard.Store
	broadcaster *guard.Broadcaster
	stats       *guard.Aggregator
	metrics     *guard.Metrics
	logger      log.Logger

	enabled   bool
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	mu   sync.Mutex
	last map[string]time.Time // source ID -> last dispatch time
}

// New creates a Dispatcher. metrics may be nil.
func New(
	pager Pager,
	store guard.Store,
	broadcaster *guard.Broadcaster,
	stats *guard.Aggregator,
	metrics *guard.Metrics,
	logger log.Logger,
	opts Options,
) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		pager:       pager,
		store:       store,
		broadcaster: broadcaster,
		stats:       stats,
		metrics:     metrics,
		logger:      logger,
		enabled:     opts.Enabled,
		threshold:   opts.Threshold,
		cooldown:    opts.Cooldown,
		now:         time.Now,
		last:        make(map[string]time.Time),
	}
}

// Offer implements guard.Escalator. It returns without dispatching when
// escalation is disabled, the event is not severe enough, or the source's
// cooldown window is still open.
func (d *Dispatcher) Offer(ctx context.Context, ev *guard.Event) {
	if !d.enabled || d.pager == nil {
		return
	}
	if ev.Severity != risk.SeverityHigh && ev.Severity != risk.SeverityCritical {
		return
	}
	if ev.Score < d.threshold {
		return
	}

	if !d.claimWindow(ev.SourceID) {
		d.outcome("suppressed")
		d.logger.Info(ctx, "escalation suppressed by cooldown", "source_id", ev.SourceID, "event_id", ev.ID)
		return
	}

	d.dispatch(ctx, ev)
}

// claimWindow atomically checks and stamps the source's cooldown window. The
// window is consumed even when the subsequent submission fails.
func (d *Dispatcher) claimWindow(sourceID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if last, ok := d.last[sourceID]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	d.last[sourceID] = now
	return true
}

func (d *Dispatcher) dispatch(ctx context.Context, ev *guard.Event) {
	L := d.logger.With("event_id", ev.ID, "source_id", ev.SourceID)

	rec := &guard.CallRecord{
		ID:        ulid.Make().String(),
		EventID:   ev.ID,
		SourceID:  ev.SourceID,
		Status:    guard.CallPending,
		CreatedAt: d.now(),
	}
	if err := d.store.UpsertCallRecord(ctx, rec); err != nil {
		L.Error(ctx, err, "failed to persist pending call record")
	}

	types := make([]string, len(ev.FindingTypes))
	for i, t := range ev.FindingTypes {
		types[i] = string(t)
	}

	ack, err := d.pager.Page(ctx, &PageRequest{
		Service:     ev.Service,
		PHITypes:    types,
		RiskScore:   ev.Score,
		ActionTaken: string(ev.Action),
		Timestamp:   ev.Timestamp,
		SourceID:    ev.SourceID,
	})
	if err != nil {
		rec.Status = guard.CallFailed
		rec.Reason = err.Error()
		if err := d.store.UpsertCallRecord(ctx, rec); err != nil {
			L.Error(ctx, err, "failed to persist failed call record")
		}
		d.outcome("failed")
		L.Error(ctx, err, "escalation call failed")
		return
	}

	rec.Status = guard.CallDispatched
	rec.ProviderCallID = ack.CallID
	if err := d.store.UpsertCallRecord(ctx, rec); err != nil {
		L.Error(ctx, err, "failed to persist dispatched call record")
	}

	d.stats.RecordCall()
	d.outcome("dispatched")
	announced := *rec
	d.broadcaster.Publish(ctx, guard.Message{Type: guard.MsgVoiceCall, Data: &announced})
	L.Info(ctx, "escalation call dispatched", "call_id", ack.CallID, "score", ev.Score)

	// some providers report a terminal state in the submission ack
	switch strings.ToLower(ack.Status) {
	case "completed", "ended":
		rec.Status = guard.CallCompleted
		if err := d.store.UpsertCallRecord(ctx, rec); err != nil {
			L.Error(ctx, err, "failed to persist completed call record")
		}
	}
}

func (d *Dispatcher) outcome(o string) {
	if d.metrics != nil {
		d.metrics.DispatchesTotal.WithLabelValues(o).Inc()
	}
}
