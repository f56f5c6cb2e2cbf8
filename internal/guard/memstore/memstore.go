// Package memstore provides an in-memory implementation of guard.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/shadowguard/internal/guard"
)

const defaultPageSize = 50

// Store holds detection events and call records in memory. Suitable for
// dev/testing.
type Store struct {
	mu         sync.RWMutex
	events     map[string]*guard.Event // event ID -> event
	eventOrder []string                // IDs in append order
	calls      map[string]*guard.CallRecord
	callOrder  []string
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		events: make(map[string]*guard.Event),
		calls:  make(map[string]*guard.CallRecord),
	}
}

// AppendEvent stores a copy of the event.
func (s *Store) AppendEvent(_ context.Context, ev *guard.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.events[ev.ID]; !ok {
		s.eventOrder = append(s.eventOrder, ev.ID)
	}
	cp := *ev
	s.events[ev.ID] = &cp
	return nil
}

// GetEvent retrieves an event by ID. Returns a copy.
func (s *Store) GetEvent(_ context.Context, id string) (*guard.Event, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, false, nil
	}
	cp := *ev
	return &cp, true, nil
}

// ListEvents returns events matching the filter, newest first. Returns copies.
func (s *Store) ListEvents(_ context.Context, f guard.EventFilter) ([]*guard.Event, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*guard.Event, 0, limit)
	skipped := 0
	for i := len(s.eventOrder) - 1; i >= 0 && len(out) < limit; i-- {
		ev := s.events[s.eventOrder[i]]
		if !matches(ev, f) {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		cp := *ev
		out = append(out, &cp)
	}
	return out, nil
}

func matches(ev *guard.Event, f guard.EventFilter) bool {
	if f.Severity != "" && string(ev.Severity) != f.Severity {
		return false
	}
	if f.Service != "" && ev.Service != f.Service {
		return false
	}
	if f.Status != "" && string(ev.Status) != f.Status {
		return false
	}
	return true
}

// UpdateEventStatus sets the operator status for an event. Returns a copy of
// the updated event, or ok=false when the ID is unknown.
func (s *Store) UpdateEventStatus(_ context.Context, id string, status guard.EventStatus) (*guard.Event, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, false, nil
	}
	ev.Status = status
	cp := *ev
	return &cp, true, nil
}

// UpsertCallRecord stores a copy of the call record, replacing any existing
// record with the same ID.
func (s *Store) UpsertCallRecord(_ context.Context, rec *guard.CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.calls[rec.ID]; !ok {
		s.callOrder = append(s.callOrder, rec.ID)
	}
	cp := *rec
	s.calls[rec.ID] = &cp

	// keep the owning event's reference current
	if ev, ok := s.events[rec.EventID]; ok {
		evCp := cp
		ev.CallRef = &evCp
	}
	return nil
}

// ListCallRecords returns call records, newest first. Returns copies.
func (s *Store) ListCallRecords(_ context.Context, limit int) ([]*guard.CallRecord, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*guard.CallRecord, 0, limit)
	for i := len(s.callOrder) - 1; i >= 0 && len(out) < limit; i-- {
		cp := *s.calls[s.callOrder[i]]
		out = append(out, &cp)
	}
	return out, nil
}
