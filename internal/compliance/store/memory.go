package store

import (
	"context"
	"sync"
	"time"

	"custodia/internal/compliance/models"
	"custodia/internal/policy"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps compliance records in a map guarded by a RWMutex. It favors
// clarity over performance and backs unit tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	records map[string]models.ComplianceRecord
}

// NewInMemory constructs an empty in-memory compliance store.
func NewInMemory() *InMemory {
	return &InMemory{records: make(map[string]models.ComplianceRecord)}
}

func (s *InMemory) Get(_ context.Context, clientID string) (models.ComplianceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[clientID]; ok {
		return cloneRecord(record), nil
	}
	return models.ComplianceRecord{}, sentinel.ErrNotFound
}

func (s *InMemory) Create(_ context.Context, record models.ComplianceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.ClientID]; exists {
		return sentinel.ErrConflict
	}
	record.Version = 1
	s.records[record.ClientID] = cloneRecord(record)
	return nil
}

func (s *InMemory) Save(_ context.Context, record models.ComplianceRecord, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.records[record.ClientID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if current.Version != record.Version {
		return sentinel.ErrConflict
	}
	record.UpdatedAt = now
	record.Version++
	s.records[record.ClientID] = cloneRecord(record)
	return nil
}

func (s *InMemory) FindByRegion(_ context.Context, region models.Region) ([]models.ComplianceRecord, error) {
	return s.filter(func(r models.ComplianceRecord) bool {
		return r.PreferredRegion == region || r.BackupRegion == region
	}), nil
}

func (s *InMemory) FindNonCompliant(_ context.Context, asOf time.Time) ([]models.ComplianceRecord, error) {
	return s.filter(func(r models.ComplianceRecord) bool {
		return r.DataProcessingAgreement.Status != models.DPAActive ||
			r.DataProcessingAgreement.ExpirationDate.Before(asOf) ||
			r.AuditTrail.NextAudit.Before(asOf) ||
			r.AuditTrail.ComplianceScore < policy.MinComplianceScore
	}), nil
}

func (s *InMemory) FindExpiringSoon(_ context.Context, asOf time.Time, horizonDays int) ([]models.ComplianceRecord, error) {
	horizon := asOf.AddDate(0, 0, horizonDays)
	within := func(t time.Time) bool {
		return !t.Before(asOf) && !t.After(horizon)
	}
	return s.filter(func(r models.ComplianceRecord) bool {
		return within(r.DataProcessingAgreement.ExpirationDate) ||
			within(r.AuditTrail.NextAudit) ||
			within(r.DataRetention.NextReview)
	}), nil
}

func (s *InMemory) AppendChange(_ context.Context, clientID string, change models.Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[clientID]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.ChangeHistory = append(record.ChangeHistory, change)
	record.UpdatedAt = change.ChangedAt
	record.Version++
	s.records[clientID] = record
	return nil
}

func (s *InMemory) AppendNote(_ context.Context, clientID string, note models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[clientID]
	if !ok {
		return sentinel.ErrNotFound
	}
	record.Notes = append(record.Notes, note)
	record.UpdatedAt = note.AddedAt
	record.Version++
	s.records[clientID] = record
	return nil
}

func (s *InMemory) filter(keep func(models.ComplianceRecord) bool) []models.ComplianceRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []models.ComplianceRecord{}
	for _, record := range s.records {
		if keep(record) {
			matched = append(matched, cloneRecord(record))
		}
	}
	return matched
}

// cloneRecord copies the slices and maps so callers can't mutate stored state
// (or vice versa) behind the store's back.
func cloneRecord(r models.ComplianceRecord) models.ComplianceRecord {
	r.ChangeHistory = append([]models.Change(nil), r.ChangeHistory...)
	r.Notes = append([]models.Note(nil), r.Notes...)
	if r.ComplianceFlags != nil {
		flags := make(map[string]bool, len(r.ComplianceFlags))
		for k, v := range r.ComplianceFlags {
			flags[k] = v
		}
		r.ComplianceFlags = flags
	}
	if r.RegionalCompliance != nil {
		regional := make(map[models.Region]models.RegionalStatus, len(r.RegionalCompliance))
		for k, v := range r.RegionalCompliance {
			v.Certifications = append([]string(nil), v.Certifications...)
			regional[k] = v
		}
		r.RegionalCompliance = regional
	}
	reports := make([]models.AuditReport, len(r.AuditTrail.Reports))
	for i, report := range r.AuditTrail.Reports {
		report.Findings = append([]string(nil), report.Findings...)
		reports[i] = report
	}
	r.AuditTrail.Reports = reports
	return r
}
