// Package service implements the compliance record operations. All mutations
// go through explicit change-producing operations; records are never silently
// edited and never physically deleted.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"custodia/internal/audit"
	"custodia/internal/compliance/cache"
	"custodia/internal/compliance/metrics"
	"custodia/internal/compliance/models"
	"custodia/internal/compliance/store"
	"custodia/internal/policy"
	"custodia/pkg/clock"
	pstrings "custodia/pkg/platform/strings"
	"custodia/pkg/requestcontext"
)

// Recorder is the audit pipeline the service reports mutations to.
// Satisfied by the audit service.
type Recorder interface {
	Record(ctx context.Context, event audit.Event) (audit.Event, error)
}

// Service coordinates validation, persistence, status derivation, caching, and
// audit emission for compliance records.
type Service struct {
	store    store.Store
	cache    *cache.StatusCache
	recorder Recorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
	clock    clock.Clock
}

// Option configures the Service.
type Option func(*Service)

// WithClock sets the time source for testability.
func WithClock(clk clock.Clock) Option {
	return func(s *Service) {
		if clk != nil {
			s.clock = clk
		}
	}
}

// WithCache sets the Redis status cache. Nil disables caching.
func WithCache(c *cache.StatusCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New constructs a compliance service with its dependencies.
func New(st store.Store, recorder Recorder, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:    st,
		recorder: recorder,
		logger:   logger,
		metrics:  m,
		clock:    clock.System,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Onboard validates and creates a new compliance record. Status defaults to
// Pending Review until the first audit lands.
func (s *Service) Onboard(ctx context.Context, record models.ComplianceRecord) (models.ComplianceRecord, error) {
	now := s.clock()
	if record.Status == "" {
		record.Status = models.StatusPendingReview
	}
	record.CreatedAt = now
	record.UpdatedAt = now
	record.ChangeHistory = nil
	record.Notes = nil
	normalizeLists(&record)

	if err := record.Validate(); err != nil {
		return models.ComplianceRecord{}, err
	}
	if err := s.store.Create(ctx, record); err != nil {
		return models.ComplianceRecord{}, err
	}
	s.metrics.IncrementOnboarded()

	if err := s.audit(ctx, audit.EventUserCreated, record.ClientID,
		"client_onboarded", "compliance record created for client "+record.ClientID, nil); err != nil {
		return models.ComplianceRecord{}, err
	}

	record.Version = 1
	return record, nil
}

// normalizeLists cleans the free-text string lists that arrive from external
// audit tooling: certifications and findings are trimmed and deduplicated.
func normalizeLists(record *models.ComplianceRecord) {
	for region, rs := range record.RegionalCompliance {
		rs.Certifications = pstrings.DedupeAndTrim(rs.Certifications)
		record.RegionalCompliance[region] = rs
	}
	for i, report := range record.AuditTrail.Reports {
		record.AuditTrail.Reports[i].Findings = pstrings.DedupeAndTrim(report.Findings)
	}
}

// Get returns the record for clientID.
func (s *Service) Get(ctx context.Context, clientID string) (models.ComplianceRecord, error) {
	return s.store.Get(ctx, clientID)
}

// Status derives the compliance status of clientID as of now, serving from the
// Redis cache when possible.
func (s *Service) Status(ctx context.Context, clientID string) (policy.ComplianceStatus, error) {
	start := time.Now()
	if status, ok := s.cache.Get(ctx, clientID); ok {
		s.metrics.IncrementCacheHit()
		return status, nil
	}

	record, err := s.store.Get(ctx, clientID)
	if err != nil {
		return policy.ComplianceStatus{}, err
	}
	status := policy.EvaluateCompliance(record, s.clock())
	s.cache.Set(ctx, clientID, status)
	s.metrics.ObserveStatus(start)
	return status, nil
}

// ByRegion returns records whose preferred or backup region matches.
func (s *Service) ByRegion(ctx context.Context, region models.Region) ([]models.ComplianceRecord, error) {
	return s.store.FindByRegion(ctx, region)
}

// NonCompliant returns records failing any compliance condition as of now.
func (s *Service) NonCompliant(ctx context.Context) ([]models.ComplianceRecord, error) {
	return s.store.FindNonCompliant(ctx, s.clock())
}

// ExpiringSoon returns records with a DPA expiration, audit, or retention
// review due within horizonDays of now.
func (s *Service) ExpiringSoon(ctx context.Context, horizonDays int) ([]models.ComplianceRecord, error) {
	return s.store.FindExpiringSoon(ctx, s.clock(), horizonDays)
}

// RecordChange appends one immutable change-history entry. The entry is
// appended atomically in the store, so concurrent callers never lose entries.
func (s *Service) RecordChange(ctx context.Context, clientID, field, oldValue, newValue, changedBy, reason string) error {
	change := models.Change{
		Field:     field,
		OldValue:  oldValue,
		NewValue:  newValue,
		ChangedBy: changedBy,
		ChangedAt: s.clock(),
		Reason:    reason,
	}
	if err := s.store.AppendChange(ctx, clientID, change); err != nil {
		return err
	}
	s.metrics.IncrementChanges()
	s.cache.Invalidate(ctx, clientID)

	changes, _ := json.Marshal(map[string]string{"field": field, "oldValue": oldValue, "newValue": newValue})
	return s.audit(ctx, audit.EventUserUpdated, clientID,
		"compliance_change_recorded",
		fmt.Sprintf("field %q changed on compliance record %s", field, clientID),
		changes)
}

// AddNote appends one note to the record.
func (s *Service) AddNote(ctx context.Context, clientID, content, addedBy string) error {
	note := models.Note{
		Content: content,
		AddedBy: addedBy,
		AddedAt: s.clock(),
	}
	if err := s.store.AppendNote(ctx, clientID, note); err != nil {
		return err
	}
	s.metrics.IncrementNotes()

	return s.audit(ctx, audit.EventUserUpdated, clientID,
		"compliance_note_added", "note added to compliance record "+clientID, nil)
}

// TransitionStatus moves the record to newStatus as a soft transition,
// producing a change-history entry in the same version-checked write. On
// sentinel.ErrConflict the caller should re-read and retry.
func (s *Service) TransitionStatus(ctx context.Context, clientID string, newStatus models.RecordStatus, actor, reason string) (models.ComplianceRecord, error) {
	record, err := s.store.Get(ctx, clientID)
	if err != nil {
		return models.ComplianceRecord{}, err
	}

	now := s.clock()
	oldStatus := record.Status
	record.ChangeHistory = append(record.ChangeHistory, models.Change{
		Field:     "status",
		OldValue:  string(oldStatus),
		NewValue:  string(newStatus),
		ChangedBy: actor,
		ChangedAt: now,
		Reason:    reason,
	})
	record.Status = newStatus

	if err := record.Validate(); err != nil {
		return models.ComplianceRecord{}, err
	}
	if err := s.store.Save(ctx, record, now); err != nil {
		return models.ComplianceRecord{}, err
	}
	s.metrics.IncrementChanges()
	s.cache.Invalidate(ctx, clientID)

	changes, _ := json.Marshal(map[string]string{"field": "status", "oldValue": string(oldStatus), "newValue": string(newStatus)})
	if err := s.audit(ctx, audit.EventUserUpdated, clientID,
		"compliance_status_transition",
		fmt.Sprintf("compliance record %s moved from %s to %s", clientID, oldStatus, newStatus),
		changes); err != nil {
		return models.ComplianceRecord{}, err
	}

	record.Version++
	record.UpdatedAt = now
	return record, nil
}

// audit reports a record mutation to the audit pipeline. Fail-closed: if the
// audit trail cannot be written, the operation reports failure so the gap is
// visible, even though the mutation itself already persisted.
func (s *Service) audit(ctx context.Context, eventType audit.EventType, clientID, action, description string, changes json.RawMessage) error {
	_, err := s.recorder.Record(ctx, audit.Event{
		EventType:          eventType,
		UserID:             requestcontext.ActorID(ctx),
		ResourceType:       "compliance_record",
		ResourceID:         clientID,
		Action:             action,
		Description:        description,
		RequestID:          requestcontext.RequestID(ctx),
		IPAddress:          requestcontext.ClientIP(ctx),
		UserAgent:          requestcontext.UserAgent(ctx),
		Success:            true,
		Changes:            changes,
		ComplianceRequired: true,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "compliance audit emission failed",
			"client_id", clientID,
			"action", action,
			"error", err,
		)
		return fmt.Errorf("record compliance audit event: %w", err)
	}
	return nil
}
