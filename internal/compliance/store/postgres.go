package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"custodia/internal/compliance/models"
	"custodia/internal/policy"
	"custodia/pkg/platform/sentinel"
	"custodia/pkg/platform/tx"
)

// Postgres persists compliance records as JSONB documents with the query
// predicates (region, DPA status/expiration, audit dates, score) extracted
// into indexed columns. Appends run as single-document jsonb updates so
// concurrent appenders never lose entries; Save is version-checked.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed compliance store.
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

func (s *Postgres) Get(ctx context.Context, clientID string) (models.ComplianceRecord, error) {
	query := `
		SELECT doc, version, updated_at
		FROM compliance_records
		WHERE client_id = $1
	`
	record, err := scanRecord(s.q(ctx).QueryRowContext(ctx, query, clientID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ComplianceRecord{}, sentinel.ErrNotFound
		}
		return models.ComplianceRecord{}, fmt.Errorf("get compliance record: %w", err)
	}
	return record, nil
}

func (s *Postgres) Create(ctx context.Context, record models.ComplianceRecord) error {
	record.Version = 1
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal compliance record: %w", err)
	}
	query := `
		INSERT INTO compliance_records (
			client_id, preferred_region, backup_region, dpa_status,
			dpa_expiration, next_audit, compliance_score, next_review,
			doc, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 1, $10, $11)
		ON CONFLICT (client_id) DO NOTHING
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		record.ClientID,
		string(record.PreferredRegion),
		string(record.BackupRegion),
		string(record.DataProcessingAgreement.Status),
		record.DataProcessingAgreement.ExpirationDate,
		record.AuditTrail.NextAudit,
		record.AuditTrail.ComplianceScore,
		record.DataRetention.NextReview,
		doc,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create compliance record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("create compliance record: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *Postgres) Save(ctx context.Context, record models.ComplianceRecord, now time.Time) error {
	expectedVersion := record.Version
	record.UpdatedAt = now
	record.Version = expectedVersion + 1
	doc, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal compliance record: %w", err)
	}
	query := `
		UPDATE compliance_records
		SET preferred_region = $3,
		    backup_region = $4,
		    dpa_status = $5,
		    dpa_expiration = $6,
		    next_audit = $7,
		    compliance_score = $8,
		    next_review = $9,
		    doc = $10,
		    version = version + 1,
		    updated_at = $11
		WHERE client_id = $1 AND version = $2
	`
	result, err := s.q(ctx).ExecContext(ctx, query,
		record.ClientID,
		expectedVersion,
		string(record.PreferredRegion),
		string(record.BackupRegion),
		string(record.DataProcessingAgreement.Status),
		record.DataProcessingAgreement.ExpirationDate,
		record.AuditTrail.NextAudit,
		record.AuditTrail.ComplianceScore,
		record.DataRetention.NextReview,
		doc,
		now,
	)
	if err != nil {
		return fmt.Errorf("save compliance record: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("save compliance record: %w", err)
	}
	if affected == 0 {
		return s.missReason(ctx, record.ClientID)
	}
	return nil
}

func (s *Postgres) FindByRegion(ctx context.Context, region models.Region) ([]models.ComplianceRecord, error) {
	query := `
		SELECT doc, version, updated_at
		FROM compliance_records
		WHERE preferred_region = $1 OR backup_region = $1
		ORDER BY client_id
	`
	return s.queryRecords(ctx, query, string(region))
}

func (s *Postgres) FindNonCompliant(ctx context.Context, asOf time.Time) ([]models.ComplianceRecord, error) {
	query := `
		SELECT doc, version, updated_at
		FROM compliance_records
		WHERE dpa_status <> 'Active'
		   OR dpa_expiration < $1
		   OR next_audit < $1
		   OR compliance_score < $2
		ORDER BY client_id
	`
	return s.queryRecords(ctx, query, asOf, policy.MinComplianceScore)
}

func (s *Postgres) FindExpiringSoon(ctx context.Context, asOf time.Time, horizonDays int) ([]models.ComplianceRecord, error) {
	horizon := asOf.AddDate(0, 0, horizonDays)
	query := `
		SELECT doc, version, updated_at
		FROM compliance_records
		WHERE (dpa_expiration BETWEEN $1 AND $2)
		   OR (next_audit BETWEEN $1 AND $2)
		   OR (next_review BETWEEN $1 AND $2)
		ORDER BY client_id
	`
	return s.queryRecords(ctx, query, asOf, horizon)
}

func (s *Postgres) AppendChange(ctx context.Context, clientID string, change models.Change) error {
	entry, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change entry: %w", err)
	}
	query := `
		UPDATE compliance_records
		SET doc = jsonb_set(doc, '{changeHistory}',
		        COALESCE(doc->'changeHistory', '[]'::jsonb) || $2::jsonb),
		    version = version + 1,
		    updated_at = $3
		WHERE client_id = $1
	`
	return s.appendEntry(ctx, query, clientID, entry, change.ChangedAt)
}

func (s *Postgres) AppendNote(ctx context.Context, clientID string, note models.Note) error {
	entry, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal note entry: %w", err)
	}
	query := `
		UPDATE compliance_records
		SET doc = jsonb_set(doc, '{notes}',
		        COALESCE(doc->'notes', '[]'::jsonb) || $2::jsonb),
		    version = version + 1,
		    updated_at = $3
		WHERE client_id = $1
	`
	return s.appendEntry(ctx, query, clientID, entry, note.AddedAt)
}

func (s *Postgres) appendEntry(ctx context.Context, query, clientID string, entry []byte, at time.Time) error {
	result, err := s.q(ctx).ExecContext(ctx, query, clientID, entry, at)
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("append entry: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// missReason distinguishes a version conflict from a missing record after a
// zero-row UPDATE.
func (s *Postgres) missReason(ctx context.Context, clientID string) error {
	var exists bool
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM compliance_records WHERE client_id = $1)`,
		clientID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check compliance record existence: %w", err)
	}
	if exists {
		return sentinel.ErrConflict
	}
	return sentinel.ErrNotFound
}

func (s *Postgres) queryRecords(ctx context.Context, query string, args ...any) ([]models.ComplianceRecord, error) {
	rows, err := s.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query compliance records: %w", err)
	}
	defer rows.Close()

	records := []models.ComplianceRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan compliance record: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compliance records: %w", err)
	}
	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (models.ComplianceRecord, error) {
	var (
		doc       []byte
		version   int64
		updatedAt time.Time
	)
	if err := row.Scan(&doc, &version, &updatedAt); err != nil {
		return models.ComplianceRecord{}, err
	}
	var record models.ComplianceRecord
	if err := json.Unmarshal(doc, &record); err != nil {
		return models.ComplianceRecord{}, fmt.Errorf("unmarshal compliance record: %w", err)
	}
	// Columns are authoritative for version and updated_at: appends bump them
	// without rewriting those fields inside the document.
	record.Version = version
	record.UpdatedAt = updatedAt
	return record, nil
}
