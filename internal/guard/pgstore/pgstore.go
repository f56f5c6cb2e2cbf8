// Package pgstore provides a PostgreSQL implementation of guard.Store.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linnemanlabs/shadowguard/internal/guard"
	"github.com/linnemanlabs/shadowguard/internal/phi"
	"github.com/linnemanlabs/shadowguard/internal/risk"
)

var tracer = otel.Tracer("github.com/linnemanlabs/shadowguard/internal/guard/pgstore")

//go:embed schema.sql
var schema string

const defaultPageSize = 50

// Store persists detection events and call records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema on the given pool and returns a ready Store. The
// pool remains owned by the caller.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const eventColumns = `id, ts, source_id, service, method, path, user_agent,
	score, severity, action, finding_types, finding_count,
	original_text, redacted_text, status, created_at`

// AppendEvent inserts a detection event. Inserting the same ID twice is a
// no-op so the finalize retry is safe.
func (s *Store) AppendEvent(ctx context.Context, ev *guard.Event) error {
	ctx, span := tracer.Start(ctx, "pgstore.AppendEvent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "INSERT"),
	))
	defer span.End()

	typesJSON, err := json.Marshal(ev.FindingTypes)
	if err != nil {
		return fmt.Errorf("marshal finding types: %w", err)
	}

	query := `INSERT INTO phi_events (
		id, ts, source_id, service, method, path, user_agent,
		score, severity, action, finding_types, finding_count,
		original_text, redacted_text, status, created_at
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		ev.ID, ev.Timestamp, ev.SourceID, ev.Service, ev.Method, ev.Path, ev.UserAgent,
		ev.Score, string(ev.Severity), string(ev.Action), typesJSON, ev.FindingCount,
		ev.OriginalText, ev.RedactedText, string(ev.Status), ev.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetEvent retrieves an event by ID, including its latest call record.
func (s *Store) GetEvent(ctx context.Context, id string) (*guard.Event, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.GetEvent", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	query := `SELECT ` + eventColumns + ` FROM phi_events WHERE id = $1`
	ev, err := scanEventRow(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if ev == nil {
		return nil, false, nil
	}

	if err := s.loadCallRef(ctx, ev); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	return ev, true, nil
}

// ListEvents retrieves events matching the filter, newest first.
func (s *Store) ListEvents(ctx context.Context, f guard.EventFilter) ([]*guard.Event, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListEvents", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, clause+"$"+strconv.Itoa(len(args)))
	}
	if f.Severity != "" {
		add("severity = ", f.Severity)
	}
	if f.Service != "" {
		add("service = ", f.Service)
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}

	query := `SELECT ` + eventColumns + ` FROM phi_events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	query += " ORDER BY created_at DESC, id DESC LIMIT $" + strconv.Itoa(len(args))
	args = append(args, f.Offset)
	query += " OFFSET $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []*guard.Event
	for rows.Next() {
		ev, err := scanEventRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

// UpdateEventStatus sets the operator status for an event.
func (s *Store) UpdateEventStatus(ctx context.Context, id string, status guard.EventStatus) (*guard.Event, bool, error) {
	ctx, span := tracer.Start(ctx, "pgstore.UpdateEventStatus", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPDATE"),
	))
	defer span.End()

	query := `UPDATE phi_events SET status = $2 WHERE id = $1 RETURNING ` + eventColumns
	ev, err := scanEventRow(s.pool.QueryRow(ctx, query, id, string(status)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}
	if ev == nil {
		return nil, false, nil
	}
	return ev, true, nil
}

// UpsertCallRecord inserts or updates a call record by ID.
func (s *Store) UpsertCallRecord(ctx context.Context, rec *guard.CallRecord) error {
	ctx, span := tracer.Start(ctx, "pgstore.UpsertCallRecord", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "UPSERT"),
	))
	defer span.End()

	query := `INSERT INTO pager_calls (id, event_id, source_id, status, provider_call_id, reason, created_at)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	ON CONFLICT (id) DO UPDATE SET
		status           = EXCLUDED.status,
		provider_call_id = EXCLUDED.provider_call_id,
		reason           = EXCLUDED.reason`

	_, err := s.pool.Exec(ctx, query,
		rec.ID, rec.EventID, rec.SourceID, string(rec.Status),
		rec.ProviderCallID, rec.Reason, rec.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("upsert call record: %w", err)
	}
	return nil
}

// ListCallRecords retrieves call records, newest first.
func (s *Store) ListCallRecords(ctx context.Context, limit int) ([]*guard.CallRecord, error) {
	ctx, span := tracer.Start(ctx, "pgstore.ListCallRecords", trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", "SELECT"),
	))
	defer span.End()

	if limit <= 0 {
		limit = defaultPageSize
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, source_id, status, provider_call_id, reason, created_at
		 FROM pager_calls ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("query call records: %w", err)
	}
	defer rows.Close()

	var out []*guard.CallRecord
	for rows.Next() {
		rec, err := scanCallRow(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("iterate call records: %w", err)
	}
	return out, nil
}

// loadCallRef attaches the most recent call record for the event, if any.
func (s *Store) loadCallRef(ctx context.Context, ev *guard.Event) error {
	row := s.pool.QueryRow(ctx,
		`SELECT id, event_id, source_id, status, provider_call_id, reason, created_at
		 FROM pager_calls WHERE event_id = $1 ORDER BY created_at DESC LIMIT 1`, ev.ID)
	rec, err := scanCallRow(row)
	if err != nil {
		return err
	}
	ev.CallRef = rec
	return nil
}

// scanEventRow scans a single row into a guard.Event. Returns (nil, nil) when
// no row is found.
func scanEventRow(row pgx.Row) (*guard.Event, error) {
	var (
		ev        guard.Event
		severity  string
		action    string
		status    string
		typesJSON []byte
	)
	err := row.Scan(
		&ev.ID, &ev.Timestamp, &ev.SourceID, &ev.Service, &ev.Method, &ev.Path, &ev.UserAgent,
		&ev.Score, &severity, &action, &typesJSON, &ev.FindingCount,
		&ev.OriginalText, &ev.RedactedText, &status, &ev.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	ev.Severity = risk.Severity(severity)
	ev.Action = risk.Action(action)
	ev.Status = guard.EventStatus(status)

	var types []phi.EntityType
	if err := json.Unmarshal(typesJSON, &types); err != nil {
		return nil, fmt.Errorf("unmarshal finding types: %w", err)
	}
	ev.FindingTypes = types
	return &ev, nil
}

// scanCallRow scans a single row into a guard.CallRecord. Returns (nil, nil)
// when no row is found.
func scanCallRow(row pgx.Row) (*guard.CallRecord, error) {
	var (
		rec    guard.CallRecord
		status string
	)
	err := row.Scan(&rec.ID, &rec.EventID, &rec.SourceID, &status, &rec.ProviderCallID, &rec.Reason, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan call record: %w", err)
	}
	rec.Status = guard.CallStatus(status)
	return &rec, nil
}
