package guard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/shadowguard/internal/phi"
	"github.com/linnemanlabs/shadowguard/internal/risk"
)

// mockStore implements Store for testing.
type mockStore struct {
	mu        sync.Mutex
	events    map[string]*Event
	calls     map[string]*CallRecord
	appendErr error
	failOnce  bool
}

func newMockStore() *mockStore {
	return &mockStore{
		events: make(map[string]*Event),
		calls:  make(map[string]*CallRecord),
	}
}

func (m *mockStore) AppendEvent(_ context.Context, ev *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		err := m.appendErr
		if m.failOnce {
			m.appendErr = nil
		}
		return err
	}
	cp := *ev
	m.events[ev.ID] = &cp
	return nil
}

func (m *mockStore) GetEvent(_ context.Context, id string) (*Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, false, nil
	}
	cp := *ev
	return &cp, true, nil
}

func (m *mockStore) ListEvents(_ context.Context, _ EventFilter) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Event, 0, len(m.events))
	for _, ev := range m.events {
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func (m *mockStore) UpdateEventStatus(_ context.Context, id string, status EventStatus) (*Event, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev, ok := m.events[id]
	if !ok {
		return nil, false, nil
	}
	ev.Status = status
	cp := *ev
	return &cp, true, nil
}

func (m *mockStore) UpsertCallRecord(_ context.Context, rec *CallRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.calls[rec.ID] = &cp
	return nil
}

func (m *mockStore) ListCallRecords(_ context.Context, _ int) ([]*CallRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*CallRecord, 0, len(m.calls))
	for _, rec := range m.calls {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

// mockEscalator records every offered event.
type mockEscalator struct {
	mu      sync.Mutex
	offered []*Event
}

func (m *mockEscalator) Offer(_ context.Context, ev *Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offered = append(m.offered, ev)
}

func (m *mockEscalator) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.offered)
}

func newTestService(t *testing.T, store Store, esc Escalator) *Service {
	t.Helper()
	policy, err := risk.NewPolicy(40, 70, nil)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	return NewService(
		phi.NewExtractor(phi.DefaultPatternMatchers(), log.Nop()),
		risk.NewScorer(risk.DefaultWeights, []string{"Internal LLM"}),
		policy,
		risk.DefaultBoundaries,
		store,
		NewAggregator(),
		NewBroadcaster(16, log.Nop()),
		esc,
		nil,
		log.Nop(),
		ServiceOptions{DetectionEnabled: true},
	)
}

func waitForEvent(t *testing.T, store *mockStore, id string) *Event {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ev, ok, _ := store.GetEvent(context.Background(), id); ok {
			return ev
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("event %s was not persisted within deadline", id)
	return nil
}

func TestInspect_CleanTextAllowed(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(t, store, nil)

	text := "How do I sort a list in Python?"
	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: text, Service: "Internal LLM", Method: "POST", SourceID: "10.0.0.5",
	})

	if dec.Action != risk.ActionAllow {
		t.Errorf("action = %s, want allow", dec.Action)
	}
	if dec.Text != text {
		t.Errorf("text = %q, want original payload untouched", dec.Text)
	}
	if len(dec.Findings) != 0 {
		t.Errorf("findings = %v, want none", dec.Findings)
	}

	ev := waitForEvent(t, store, dec.EventID)
	if ev.Status != StatusActive {
		t.Errorf("status = %s, want active", ev.Status)
	}
	if ev.Action != risk.ActionAllow {
		t.Errorf("persisted action = %s, want allow", ev.Action)
	}
}

func TestInspect_RedactsMidTierPayload(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(t, store, nil)

	// unknown service + two entity types lands between the thresholds
	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text:     "Contact jane.doe@example.com regarding SSN 123-45-6789",
		Service:  "ChatGPT",
		Method:   "GET",
		SourceID: "10.0.0.5",
	})

	if dec.Action != risk.ActionRedact {
		t.Fatalf("action = %s (score %d), want redact", dec.Action, dec.Score)
	}
	if strings.Contains(dec.Text, "123-45-6789") || strings.Contains(dec.Text, "jane.doe@example.com") {
		t.Errorf("redacted text still contains raw PHI: %q", dec.Text)
	}
	if !strings.Contains(dec.Text, "[REDACTED_SSN]") || !strings.Contains(dec.Text, "[REDACTED_EMAIL]") {
		t.Errorf("redacted text missing placeholders: %q", dec.Text)
	}

	ev := waitForEvent(t, store, dec.EventID)
	if ev.RedactedText == "" {
		t.Error("persisted event missing redacted text")
	}
	if strings.Contains(ev.RedactedText, "123-45-6789") {
		t.Error("persisted redacted text contains raw SSN")
	}
}

func TestInspect_BlocksHighRiskPayload(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	esc := &mockEscalator{}
	svc := newTestService(t, store, esc)

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: "Patient John Smith, SSN 123-45-6789, DOB: 01/15/1980. " +
			"Diagnosis confirmed, prescription issued, discharge pending.",
		Service:  "ChatGPT",
		Method:   "POST",
		SourceID: "10.0.0.5",
	})

	if dec.Action != risk.ActionBlock {
		t.Fatalf("action = %s (score %d), want block", dec.Action, dec.Score)
	}
	if dec.Text != "" {
		t.Errorf("blocked decision text = %q, want empty", dec.Text)
	}
	if dec.Score < 70 {
		t.Errorf("score = %d, want >= 70", dec.Score)
	}
	if dec.Severity != risk.SeverityHigh && dec.Severity != risk.SeverityCritical {
		t.Errorf("severity = %s, want high or critical", dec.Severity)
	}

	waitForEvent(t, store, dec.EventID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if esc.count() == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("escalator was not offered the event")
}

func TestInspect_BroadcastsNewEvent(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(t, store, nil)

	ch, cancel := svc.Subscribe()
	defer cancel()

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: "nothing sensitive", Service: "ChatGPT", Method: "GET", SourceID: "10.0.0.5",
	})

	select {
	case msg := <-ch:
		if msg.Type != MsgNewEvent {
			t.Fatalf("message type = %s, want new_event", msg.Type)
		}
		ev, ok := msg.Data.(*Event)
		if !ok {
			t.Fatalf("message data is %T, want *Event", msg.Data)
		}
		if ev.ID != dec.EventID {
			t.Errorf("broadcast event ID = %s, want %s", ev.ID, dec.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestInspect_PersistRetriesOnce(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	store.appendErr = errors.New("db hiccup")
	store.failOnce = true
	svc := newTestService(t, store, nil)

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: "hello", Service: "ChatGPT", Method: "GET", SourceID: "10.0.0.5",
	})

	// first append fails, retry succeeds
	waitForEvent(t, store, dec.EventID)
}

func TestInspect_UpdatesStats(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(t, store, nil)

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: "hello", Service: "ChatGPT", Method: "GET", SourceID: "10.0.0.5",
	})
	waitForEvent(t, store, dec.EventID)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := svc.Stats(); snap.TotalScans == 1 {
			if snap.ByService["ChatGPT"] != 1 {
				t.Errorf("ByService[ChatGPT] = %d, want 1", snap.ByService["ChatGPT"])
			}
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("stats were not updated")
}

func TestInspect_TruncatesCapturedText(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(t, store, nil)

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: strings.Repeat("x", 5000), Service: "ChatGPT", Method: "GET", SourceID: "10.0.0.5",
	})

	ev := waitForEvent(t, store, dec.EventID)
	if len(ev.OriginalText) != defaultMaxCapturedText {
		t.Errorf("captured text length = %d, want %d", len(ev.OriginalText), defaultMaxCapturedText)
	}
}

func TestInspect_DetectionDisabled(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	policy, _ := risk.NewPolicy(40, 70, nil)
	svc := NewService(
		phi.NewExtractor(phi.DefaultPatternMatchers(), log.Nop()),
		risk.NewScorer(risk.DefaultWeights, nil),
		policy,
		risk.DefaultBoundaries,
		store,
		NewAggregator(),
		NewBroadcaster(16, log.Nop()),
		nil,
		nil,
		log.Nop(),
		ServiceOptions{DetectionEnabled: false},
	)

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: "SSN 123-45-6789", Service: "ChatGPT", Method: "GET", SourceID: "10.0.0.5",
	})
	if len(dec.Findings) != 0 {
		t.Errorf("findings = %v, want none with detection disabled", dec.Findings)
	}
	if dec.Score != 15 {
		t.Errorf("score = %d, want contextual-only 15", dec.Score)
	}
}

func TestUpdateStatus(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	svc := newTestService(t, store, nil)

	dec := svc.Inspect(context.Background(), &ScanRequest{
		Text: "hello", Service: "ChatGPT", Method: "GET", SourceID: "10.0.0.5",
	})
	waitForEvent(t, store, dec.EventID)

	ch, cancel := svc.Subscribe()
	defer cancel()

	ev, ok, err := svc.UpdateStatus(context.Background(), dec.EventID, StatusMitigated)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if !ok {
		t.Fatal("expected event to be found")
	}
	if ev.Status != StatusMitigated {
		t.Errorf("status = %s, want mitigated", ev.Status)
	}

	select {
	case msg := <-ch:
		if msg.Type != MsgStatusUpdate {
			t.Fatalf("message type = %s, want status_update", msg.Type)
		}
		upd, ok := msg.Data.(StatusUpdate)
		if !ok {
			t.Fatalf("message data is %T, want StatusUpdate", msg.Data)
		}
		if upd.EventID != dec.EventID || upd.Status != StatusMitigated {
			t.Errorf("update = %+v, want event %s mitigated", upd, dec.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no status_update broadcast received")
	}
}

func TestUpdateStatus_Invalid(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMockStore(), nil)
	if _, _, err := svc.UpdateStatus(context.Background(), "some-id", "archived"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newMockStore(), nil)
	_, ok, err := svc.UpdateStatus(context.Background(), "missing", StatusResolved)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if ok {
		t.Error("expected ok=false for missing event")
	}
}
