package guard

import "context"

// EventFilter narrows a ListEvents query. Zero values mean no constraint;
// Limit 0 falls back to the store's default page size.
type EventFilter struct {
	Severity string
	Service  string
	Status   string
	Limit    int
	Offset   int
}

// Store is the persistence interface for detection events and escalation
// call records.
type Store interface {
	AppendEvent(ctx context.Context, ev *Event) error
	GetEvent(ctx context.Context, id string) (*Event, bool, error)
	ListEvents(ctx context.Context, f EventFilter) ([]*Event, error)
	UpdateEventStatus(ctx context.Context, id string, status EventStatus) (*Event, bool, error)
	UpsertCallRecord(ctx context.Context, rec *CallRecord) error
	ListCallRecords(ctx context.Context, limit int) ([]*CallRecord, error)
}
