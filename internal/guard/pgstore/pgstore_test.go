package pgstore_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/shadowguard/internal/guard"
	"github.com/linnemanlabs/shadowguard/internal/guard/pgstore"
	"github.com/linnemanlabs/shadowguard/internal/phi"
	"github.com/linnemanlabs/shadowguard/internal/postgres"
	"github.com/linnemanlabs/shadowguard/internal/risk"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("SHADOWGUARD_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("SHADOWGUARD_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func testEvent() *guard.Event {
	now := time.Now().Truncate(time.Microsecond).UTC()
	return &guard.Event{
		ID:           ulid.Make().String(),
		Timestamp:    now,
		SourceID:     "10.0.0.5",
		Service:      "ChatGPT",
		Method:       "POST",
		Path:         "/v1/chat/completions",
		UserAgent:    "curl/8.0",
		Score:        80,
		Severity:     risk.SeverityHigh,
		Action:       risk.ActionBlock,
		FindingTypes: []phi.EntityType{phi.TypeSSN, phi.TypePerson},
		FindingCount: 3,
		OriginalText: "Patient John Smith, SSN 123-45-6789",
		Status:       guard.StatusActive,
		CreatedAt:    now,
	}
}

func TestAppendAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := testEvent()
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	got, ok, err := s.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if !ok {
		t.Fatal("GetEvent returned ok=false, want true")
	}
	if got.Service != ev.Service || got.Score != ev.Score || got.Action != ev.Action {
		t.Errorf("roundtrip mismatch: got %+v", got)
	}
	if len(got.FindingTypes) != 2 || got.FindingTypes[0] != phi.TypeSSN {
		t.Errorf("FindingTypes = %v, want %v", got.FindingTypes, ev.FindingTypes)
	}
	if !got.Timestamp.Equal(ev.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ev.Timestamp)
	}
}

func TestAppendIdempotent(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := testEvent()
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	// retry path replays the same event
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent retry: %v", err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.GetEvent(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for missing ID")
	}
}

func TestListEventsFiltered(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	service := "svc-" + ulid.Make().String()
	for range 3 {
		ev := testEvent()
		ev.Service = service
		if err := s.AppendEvent(ctx, ev); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	out, err := s.ListEvents(ctx, guard.EventFilter{Service: service})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("len = %d, want 3", len(out))
	}

	out, err = s.ListEvents(ctx, guard.EventFilter{Service: service, Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("ListEvents paged: %v", err)
	}
	if len(out) != 1 {
		t.Errorf("paged len = %d, want 1", len(out))
	}
}

func TestUpdateEventStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := testEvent()
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	got, ok, err := s.UpdateEventStatus(ctx, ev.ID, guard.StatusMitigated)
	if err != nil {
		t.Fatalf("UpdateEventStatus: %v", err)
	}
	if !ok {
		t.Fatal("expected event to be found")
	}
	if got.Status != guard.StatusMitigated {
		t.Errorf("Status = %q, want mitigated", got.Status)
	}

	if _, ok, _ := s.UpdateEventStatus(ctx, "missing", guard.StatusResolved); ok {
		t.Error("expected ok=false for missing event")
	}
}

func TestCallRecordLifecycle(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	ev := testEvent()
	if err := s.AppendEvent(ctx, ev); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	rec := &guard.CallRecord{
		ID:        ulid.Make().String(),
		EventID:   ev.ID,
		SourceID:  ev.SourceID,
		Status:    guard.CallPending,
		CreatedAt: time.Now().Truncate(time.Microsecond).UTC(),
	}
	if err := s.UpsertCallRecord(ctx, rec); err != nil {
		t.Fatalf("UpsertCallRecord: %v", err)
	}

	rec.Status = guard.CallDispatched
	rec.ProviderCallID = "vapi-123"
	if err := s.UpsertCallRecord(ctx, rec); err != nil {
		t.Fatalf("UpsertCallRecord update: %v", err)
	}

	got, ok, err := s.GetEvent(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetEvent: %v", err)
	}
	if !ok {
		t.Fatal("expected event")
	}
	if got.CallRef == nil {
		t.Fatal("expected CallRef to be populated")
	}
	if got.CallRef.Status != guard.CallDispatched || got.CallRef.ProviderCallID != "vapi-123" {
		t.Errorf("CallRef = %+v, want dispatched with provider ID", got.CallRef)
	}

	calls, err := s.ListCallRecords(ctx, 10)
	if err != nil {
		t.Fatalf("ListCallRecords: %v", err)
	}
	if len(calls) == 0 {
		t.Fatal("expected at least one call record")
	}
}
