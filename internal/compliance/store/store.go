// Package store persists compliance records. Implementations are
// interface-driven so the service layer can swap in-memory and PostgreSQL
// persistence without rewiring business code.
package store

import (
	"context"
	"time"

	"custodia/internal/compliance/models"
)

// Store is the compliance record persistence contract.
//
// Records are never physically deleted; lifecycle changes are soft status
// transitions written through Save. Appends are per-document atomic so
// concurrent appenders to the same record never lose entries; Save is
// version-checked and fails with sentinel.ErrConflict on a stale read.
// Single-entity lookups miss with sentinel.ErrNotFound; bulk queries return
// empty slices for "no results".
type Store interface {
	Get(ctx context.Context, clientID string) (models.ComplianceRecord, error)
	Create(ctx context.Context, record models.ComplianceRecord) error
	Save(ctx context.Context, record models.ComplianceRecord, now time.Time) error

	FindByRegion(ctx context.Context, region models.Region) ([]models.ComplianceRecord, error)

	// FindNonCompliant selects records whose DPA status is not Active, or
	// whose DPA has expired, or whose next audit is overdue, or whose score
	// is below the acceptable threshold, all as of asOf.
	FindNonCompliant(ctx context.Context, asOf time.Time) ([]models.ComplianceRecord, error)

	// FindExpiringSoon selects records where any of the DPA expiration, next
	// audit, or retention review dates fall within [asOf, asOf+horizonDays].
	FindExpiringSoon(ctx context.Context, asOf time.Time, horizonDays int) ([]models.ComplianceRecord, error)

	// AppendChange atomically appends one change-history entry and updates
	// the record's UpdatedAt. Existing entries are never mutated.
	AppendChange(ctx context.Context, clientID string, change models.Change) error

	// AppendNote atomically appends one note.
	AppendNote(ctx context.Context, clientID string, note models.Note) error
}
