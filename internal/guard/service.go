package guard

import (
	"context"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/shadowguard/internal/phi"
	"github.com/linnemanlabs/shadowguard/internal/risk"
	"github.com/oklog/ulid/v2"
)

// defaultMaxCapturedText bounds the payload text stored on an event.
const defaultMaxCapturedText = 2000

// ScanRequest describes one outbound payload to inspect.
type ScanRequest struct {
	Text      string    `json:"text"`
	Service   string    `json:"service"`
	Method    string    `json:"method"`
	Path      string    `json:"path,omitempty"`
	SourceID  string    `json:"source_id"`
	UserAgent string    `json:"user_agent,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// ResultFinding is one resolved finding as reported to the caller.
type ResultFinding struct {
	Type       phi.EntityType `json:"type"`
	Text       string         `json:"text"`
	Confidence float64        `json:"confidence"`
}

// Decision is the synchronous outcome of a scan. Text holds the payload the
// caller should forward: original on allow, redacted on redact, empty on
// block.
type Decision struct {
	EventID   string          `json:"event_id"`
	Action    risk.Action     `json:"action"`
	Score     int             `json:"score"`
	Severity  risk.Severity   `json:"severity"`
	Text      string          `json:"text,omitempty"`
	Findings  []ResultFinding `json:"findings,omitempty"`
	Breakdown risk.Breakdown  `json:"breakdown,omitempty"`
}

// Escalator is offered every finalized event and decides whether to place an
// escalation call. Implementations must not block the finalize path beyond
// their own dispatch work.
type Escalator interface {
	Offer(ctx context.Context, ev *Event)
}

// ServiceOptions tunes inspection behavior.
type ServiceOptions struct {
	// DetectionEnabled gates the matcher pass. When false, payloads are
	// scored on contextual signals only.
	DetectionEnabled bool

	// MaxCapturedText bounds the bytes of original/redacted text persisted
	// per event. 0 means the 2000-byte default.
	MaxCapturedText int
}

// Service is the business boundary for payload inspection.
type Service struct {
	extractor   *phi.Extractor
	scorer      *risk.Scorer
	policy      *risk.Policy
	boundaries  risk.Boundaries
	store       Store
	stats       *Aggregator
	broadcaster *Broadcaster
	escalator   Escalator
	metrics     *Metrics
	logger      log.Logger

	detectionEnabled bool
	maxCaptured      int
}

// NewService creates a new inspection service. escalator and metrics may be
// nil.
func NewService(
	extractor *phi.Extractor,
	scorer *risk.Scorer,
	policy *risk.Policy,
	boundaries risk.Boundaries,
	store Store,
	stats *Aggregator,
	broadcaster *Broadcaster,
	escalator Escalator,
	metrics *Metrics,
	logger log.Logger,
	opts ServiceOptions,
) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	maxCaptured := opts.MaxCapturedText
	if maxCaptured <= 0 {
		maxCaptured = defaultMaxCapturedText
	}
	if metrics != nil {
		broadcaster.OnDrop(metrics.BroadcastDrops.Inc)
	}
	return &Service{
		extractor:        extractor,
		scorer:           scorer,
		policy:           policy,
		boundaries:       boundaries,
		store:            store,
		stats:            stats,
		broadcaster:      broadcaster,
		escalator:        escalator,
		metrics:          metrics,
		logger:           logger,
		detectionEnabled: opts.DetectionEnabled,
		maxCaptured:      maxCaptured,
	}
}

// Inspect runs the synchronous scan path: detect, resolve, score, decide,
// transform. The returned Decision is complete when Inspect returns;
// persistence, stats, broadcast, and escalation happen asynchronously.
func (s *Service) Inspect(ctx context.Context, req *ScanRequest) *Decision {
	start := time.Now()

	var findings []phi.Finding
	if s.detectionEnabled {
		findings = s.extractor.Scan(ctx, req.Text)
	}
	spans := phi.Resolve(findings)
	types := phi.DistinctTypes(spans)

	score, breakdown := s.scorer.Score(risk.Signals{
		Service:      req.Service,
		Method:       req.Method,
		Types:        types,
		KeywordCount: risk.CountKeywords(req.Text),
	})
	severity := s.boundaries.Tier(score)
	action := s.policy.Decide(score, types)

	text := req.Text
	switch action {
	case risk.ActionRedact:
		text = phi.Redact(req.Text, spans)
	case risk.ActionBlock:
		text = ""
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = start
	}
	ev := &Event{
		ID:           ulid.Make().String(),
		Timestamp:    ts,
		SourceID:     req.SourceID,
		Service:      req.Service,
		Method:       req.Method,
		Path:         req.Path,
		UserAgent:    req.UserAgent,
		Score:        score,
		Severity:     severity,
		Action:       action,
		FindingTypes: types,
		FindingCount: len(spans),
		OriginalText: truncateText(req.Text, s.maxCaptured),
		Status:       StatusActive,
		CreatedAt:    time.Now(),
	}
	if action == risk.ActionRedact {
		ev.RedactedText = truncateText(text, s.maxCaptured)
	}

	// finalize must survive the caller's request context.
	go s.finalize(context.WithoutCancel(ctx), ev)

	if s.metrics != nil {
		s.metrics.ScansTotal.WithLabelValues(string(action)).Inc()
		s.metrics.ScanDuration.Observe(time.Since(start).Seconds())
		s.metrics.ScanFindings.Observe(float64(len(spans)))
		s.metrics.ScanScore.Observe(float64(score))
	}

	dec := &Decision{
		EventID:   ev.ID,
		Action:    action,
		Score:     score,
		Severity:  severity,
		Text:      text,
		Breakdown: breakdown,
	}
	for _, sp := range spans {
		dec.Findings = append(dec.Findings, ResultFinding{
			Type:       sp.Type,
			Text:       sp.Text,
			Confidence: sp.Confidence,
		})
	}
	return dec
}

func (s *Service) finalize(ctx context.Context, ev *Event) {
	L := s.logger.With("event_id", ev.ID, "service", ev.Service, "action", string(ev.Action))

	if err := s.store.AppendEvent(ctx, ev); err != nil {
		L.Warn(ctx, "event persist failed, retrying", "error", err)
		if err := s.store.AppendEvent(ctx, ev); err != nil {
			if s.metrics != nil {
				s.metrics.PersistFailures.Inc()
			}
			L.Error(ctx, err, "event persist failed after retry")
		}
	}

	s.stats.RecordEvent(ev)
	s.broadcaster.Publish(ctx, Message{Type: MsgNewEvent, Data: ev})

	if s.escalator != nil {
		s.escalator.Offer(ctx, ev)
	}

	if ev.FindingCount > 0 || ev.Action != risk.ActionAllow {
		L.Info(ctx, "phi event finalized",
			"score", ev.Score,
			"severity", string(ev.Severity),
			"findings", ev.FindingCount,
		)
	}
}

// UpdateStatus applies an operator status transition and notifies
// subscribers. Returns false when the event does not exist.
func (s *Service) UpdateStatus(ctx context.Context, id string, status EventStatus) (*Event, bool, error) {
	if !ValidEventStatus(status) {
		return nil, false, fmt.Errorf("unknown event status %q", status)
	}
	ev, ok, err := s.store.UpdateEventStatus(ctx, id, status)
	if err != nil || !ok {
		return nil, ok, err
	}
	s.broadcaster.Publish(ctx, Message{Type: MsgStatusUpdate, Data: StatusUpdate{EventID: id, Status: status}})
	return ev, true, nil
}

// GetEvent retrieves an event by ID.
func (s *Service) GetEvent(ctx context.Context, id string) (*Event, bool, error) {
	return s.store.GetEvent(ctx, id)
}

// ListEvents retrieves events matching the filter, newest first.
func (s *Service) ListEvents(ctx context.Context, f EventFilter) ([]*Event, error) {
	return s.store.ListEvents(ctx, f)
}

// ListCalls retrieves escalation call records, newest first.
func (s *Service) ListCalls(ctx context.Context, limit int) ([]*CallRecord, error) {
	return s.store.ListCallRecords(ctx, limit)
}

// CallStats summarizes escalation call activity. TotalPlaced counts every
// successful dispatch since startup; ByStatus covers recent records only.
type CallStats struct {
	TotalPlaced int64            `json:"total_placed"`
	ByStatus    map[string]int64 `json:"by_status"`
}

// callStatsWindow bounds how many recent records feed the status breakdown.
const callStatsWindow = 500

// CallStatsSnapshot returns the escalation call summary.
func (s *Service) CallStatsSnapshot(ctx context.Context) (*CallStats, error) {
	recs, err := s.store.ListCallRecords(ctx, callStatsWindow)
	if err != nil {
		return nil, err
	}
	cs := &CallStats{
		TotalPlaced: s.stats.Snapshot().CallsPlaced,
		ByStatus:    make(map[string]int64, 4),
	}
	for _, r := range recs {
		cs.ByStatus[string(r.Status)]++
	}
	return cs, nil
}

// Stats returns a snapshot of aggregate scan statistics.
func (s *Service) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Subscribe registers a live observer for broadcast messages.
func (s *Service) Subscribe() (<-chan Message, func()) {
	return s.broadcaster.Subscribe()
}

func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
