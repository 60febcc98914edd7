package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"custodia/internal/audit"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Postgres persists audit events in PostgreSQL. Events are insert-only; the
// single UPDATE path is archival.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed audit store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the context transaction when one is present, otherwise the pool.
func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

const eventColumns = `
	id, event_type, user_id, resource_type, resource_id, action, description,
	request_id, ip_address, user_agent, threat_level, success, failure_reason,
	old_value, new_value, changes, regulation, compliance_required,
	timestamp, retention_period_days, archived, archived_at
`

func (s *Postgres) Insert(ctx context.Context, event audit.Event) error {
	query := `
		INSERT INTO audit_events (` + eventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
		        $14, $15, $16, $17, $18, $19, $20, $21, $22)
		ON CONFLICT (id) DO NOTHING
	`
	var archivedAt sql.NullTime
	if event.ArchivedAt != nil {
		archivedAt = sql.NullTime{Time: *event.ArchivedAt, Valid: true}
	}
	result, err := s.q(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.EventType),
		event.UserID,
		event.ResourceType,
		event.ResourceID,
		event.Action,
		event.Description,
		event.RequestID,
		event.IPAddress,
		event.UserAgent,
		string(event.ThreatLevel),
		event.Success,
		event.FailureReason,
		nullableJSON(event.OldValue),
		nullableJSON(event.NewValue),
		nullableJSON(event.Changes),
		string(event.Regulation),
		event.ComplianceRequired,
		event.Timestamp,
		event.RetentionPeriodDays,
		event.Archived,
		archivedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, id string) (audit.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM audit_events WHERE id = $1`
	event, err := scanEvent(s.q(ctx).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Event{}, sentinel.ErrNotFound
		}
		return audit.Event{}, fmt.Errorf("find audit event by id: %w", err)
	}
	return event, nil
}

func (s *Postgres) FindByEventType(ctx context.Context, eventType audit.EventType) ([]audit.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE event_type = $1
		ORDER BY timestamp DESC
	`
	return s.queryEvents(ctx, query, string(eventType))
}

func (s *Postgres) FindByUser(ctx context.Context, userID string) ([]audit.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE user_id = $1
		ORDER BY timestamp DESC
	`
	return s.queryEvents(ctx, query, userID)
}

func (s *Postgres) FindSecurityEvents(ctx context.Context, since time.Time) ([]audit.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE event_type = ANY($1::text[]) AND timestamp >= $2
		ORDER BY timestamp DESC
	`
	return s.queryEvents(ctx, query, pq.Array(typeStrings(audit.SecurityEventTypes())), since)
}

func (s *Postgres) FindComplianceEvents(ctx context.Context, since time.Time) ([]audit.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE (compliance_required OR event_type = ANY($1::text[])) AND timestamp >= $2
		ORDER BY timestamp DESC
	`
	return s.queryEvents(ctx, query, pq.Array(typeStrings(audit.ComplianceEventTypes())), since)
}

func (s *Postgres) FindFailedEvents(ctx context.Context, since time.Time) ([]audit.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE NOT success AND timestamp >= $1
		ORDER BY timestamp DESC
	`
	return s.queryEvents(ctx, query, since)
}

func (s *Postgres) AggregateEventCounts(ctx context.Context, since time.Time) ([]EventCount, error) {
	query := `
		SELECT event_type,
		       COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE success) AS succeeded,
		       COUNT(*) FILTER (WHERE NOT success) AS failed
		FROM audit_events
		WHERE timestamp >= $1
		GROUP BY event_type
		ORDER BY total DESC, event_type ASC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("aggregate event counts: %w", err)
	}
	defer rows.Close()

	counts := []EventCount{}
	for rows.Next() {
		var count EventCount
		var eventType string
		if err := rows.Scan(&eventType, &count.Total, &count.Succeeded, &count.Failed); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		count.EventType = audit.EventType(eventType)
		counts = append(counts, count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate event counts: %w", err)
	}
	return counts, nil
}

func (s *Postgres) Archive(ctx context.Context, id string, at time.Time) (audit.Event, error) {
	query := `
		UPDATE audit_events
		SET archived = TRUE, archived_at = $2
		WHERE id = $1
		RETURNING ` + eventColumns
	event, err := scanEvent(s.q(ctx).QueryRowContext(ctx, query, id, at))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return audit.Event{}, sentinel.ErrNotFound
		}
		return audit.Event{}, fmt.Errorf("archive audit event: %w", err)
	}
	return event, nil
}

func (s *Postgres) queryEvents(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (audit.Event, error) {
	var (
		event       audit.Event
		eventType   string
		threatLevel string
		regulation  string
		oldValue    []byte
		newValue    []byte
		changes     []byte
		archivedAt  sql.NullTime
	)
	err := row.Scan(
		&event.ID,
		&eventType,
		&event.UserID,
		&event.ResourceType,
		&event.ResourceID,
		&event.Action,
		&event.Description,
		&event.RequestID,
		&event.IPAddress,
		&event.UserAgent,
		&threatLevel,
		&event.Success,
		&event.FailureReason,
		&oldValue,
		&newValue,
		&changes,
		&regulation,
		&event.ComplianceRequired,
		&event.Timestamp,
		&event.RetentionPeriodDays,
		&event.Archived,
		&archivedAt,
	)
	if err != nil {
		return audit.Event{}, err
	}
	event.EventType = audit.EventType(eventType)
	event.ThreatLevel = audit.ThreatLevel(threatLevel)
	event.Regulation = audit.Regulation(regulation)
	event.OldValue = oldValue
	event.NewValue = newValue
	event.Changes = changes
	if archivedAt.Valid {
		at := archivedAt.Time
		event.ArchivedAt = &at
	}
	return event, nil
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func typeStrings(types []audit.EventType) []string {
	out := make([]string, len(types))
	for i, t := range types {
		out[i] = string(t)
	}
	return out
}
