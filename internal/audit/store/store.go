// Package store persists audit events. Implementations are interface-driven so
// the service layer can swap in-memory and PostgreSQL persistence without
// rewiring business code.
package store

import (
	"context"
	"time"

	"custodia/internal/audit"
)

// EventCount is one row of the per-type aggregate: total events plus
// success/failure sub-counts.
type EventCount struct {
	EventType audit.EventType `json:"eventType"`
	Total     int             `json:"total"`
	Succeeded int             `json:"succeeded"`
	Failed    int             `json:"failed"`
}

// Store is the audit event persistence contract. Single-entity lookups miss
// with sentinel.ErrNotFound; bulk queries return empty slices, never errors,
// for "no results".
type Store interface {
	Insert(ctx context.Context, event audit.Event) error
	FindByID(ctx context.Context, id string) (audit.Event, error)
	FindByEventType(ctx context.Context, eventType audit.EventType) ([]audit.Event, error)
	FindByUser(ctx context.Context, userID string) ([]audit.Event, error)

	// Time-windowed queries: events at or after since.
	FindSecurityEvents(ctx context.Context, since time.Time) ([]audit.Event, error)
	FindComplianceEvents(ctx context.Context, since time.Time) ([]audit.Event, error)
	FindFailedEvents(ctx context.Context, since time.Time) ([]audit.Event, error)

	AggregateEventCounts(ctx context.Context, since time.Time) ([]EventCount, error)

	// Archive marks the event archived as of at. Repeated calls move
	// ArchivedAt forward.
	Archive(ctx context.Context, id string, at time.Time) (audit.Event, error)
}
