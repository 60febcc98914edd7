// Package models defines the per-client compliance record. Records are created
// at onboarding, mutated only through change-producing operations, and never
// physically deleted.
package models

import (
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "custodia/pkg/domain-errors"
)

// Region is one of the jurisdictions the company operates in.
type Region string

const (
	RegionUS Region = "US"
	RegionUK Region = "UK"
	RegionEU Region = "EU"
	RegionCA Region = "CA"
)

// Regions lists every supported region, in stable order.
var Regions = []Region{RegionUS, RegionUK, RegionEU, RegionCA}

// Valid reports whether r is a supported region.
func (r Region) Valid() bool {
	switch r {
	case RegionUS, RegionUK, RegionEU, RegionCA:
		return true
	}
	return false
}

// DPAStatus is the lifecycle state of a Data Processing Agreement.
type DPAStatus string

const (
	DPAActive     DPAStatus = "Active"
	DPAPending    DPAStatus = "Pending"
	DPAExpired    DPAStatus = "Expired"
	DPATerminated DPAStatus = "Terminated"
)

// RecordStatus is the soft lifecycle state of a compliance record.
type RecordStatus string

const (
	StatusActive        RecordStatus = "Active"
	StatusInactive      RecordStatus = "Inactive"
	StatusSuspended     RecordStatus = "Suspended"
	StatusPendingReview RecordStatus = "Pending Review"
)

// DPA is the Data Processing Agreement attached to a client.
// Invariant: EffectiveDate <= ExpirationDate.
type DPA struct {
	Status         DPAStatus `json:"status" validate:"required,oneof=Active Pending Expired Terminated"`
	EffectiveDate  time.Time `json:"effectiveDate"`
	ExpirationDate time.Time `json:"expirationDate"`
	Version        string    `json:"version,omitempty"`
	DocumentURL    string    `json:"documentUrl,omitempty"`
}

// AuditReport is one entry in the client's audit history.
type AuditReport struct {
	Date     time.Time `json:"date"`
	Auditor  string    `json:"auditor,omitempty"`
	Score    int       `json:"score"`
	Findings []string  `json:"findings,omitempty"`
	URL      string    `json:"url,omitempty"`
}

// AuditTrail summarizes the client's audit posture.
type AuditTrail struct {
	LastAudit       time.Time     `json:"lastAudit"`
	NextAudit       time.Time     `json:"nextAudit"`
	ComplianceScore int           `json:"complianceScore" validate:"gte=0,lte=100"`
	Reports         []AuditReport `json:"reports,omitempty"`
}

// DataRetention describes the client's retention policy.
type DataRetention struct {
	Policy              string    `json:"policy,omitempty"`
	NextReview          time.Time `json:"nextReview"`
	RetentionPeriodDays int       `json:"retentionPeriodDays"`
	AutoDelete          bool      `json:"autoDelete"`
}

// RegionalStatus is the per-region certification state.
type RegionalStatus struct {
	Compliant      bool      `json:"compliant"`
	Certifications []string  `json:"certifications,omitempty"`
	LastVerified   time.Time `json:"lastVerified"`
}

// Change is one append-only change-history entry. Entries are immutable once
// appended.
type Change struct {
	Field     string    `json:"field"`
	OldValue  string    `json:"oldValue"`
	NewValue  string    `json:"newValue"`
	ChangedBy string    `json:"changedBy"`
	ChangedAt time.Time `json:"changedAt"`
	Reason    string    `json:"reason,omitempty"`
}

// Note is one append-only free-text annotation.
type Note struct {
	Content string    `json:"content"`
	AddedBy string    `json:"addedBy"`
	AddedAt time.Time `json:"addedAt"`
}

// ComplianceRecord is the per-client compliance document. Identity references
// (ChangedBy, AddedBy) are opaque strings resolved by the external user
// directory.
type ComplianceRecord struct {
	ClientID        string          `json:"clientId" validate:"required"`
	PreferredRegion Region          `json:"preferredRegion" validate:"required,oneof=US UK EU CA"`
	BackupRegion    Region          `json:"backupRegion" validate:"omitempty,oneof=US UK EU CA"`
	ComplianceFlags map[string]bool `json:"complianceFlags,omitempty"`

	DataProcessingAgreement DPA           `json:"dataProcessingAgreement"`
	AuditTrail              AuditTrail    `json:"auditTrail"`
	DataRetention           DataRetention `json:"dataRetention"`

	RegionalCompliance map[Region]RegionalStatus `json:"regionalCompliance,omitempty"`

	ChangeHistory []Change `json:"changeHistory,omitempty"`
	Notes         []Note   `json:"notes,omitempty"`

	Status RecordStatus `json:"status" validate:"required,oneof=Active Inactive Suspended 'Pending Review'"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Version backs optimistic-concurrency writes; appends must never lose
	// history to a lost-update race.
	Version int64 `json:"version"`
}

var validate = validator.New()

// Validate rejects records that violate the declared enumerations, required
// fields, or the DPA date ordering invariant. It runs at the write boundary.
func (r ComplianceRecord) Validate() error {
	if err := validate.Struct(r); err != nil {
		return dErrors.Wrap(dErrors.CodeInvalidInput, "invalid compliance record", err)
	}
	if !r.DataProcessingAgreement.EffectiveDate.IsZero() &&
		r.DataProcessingAgreement.EffectiveDate.After(r.DataProcessingAgreement.ExpirationDate) {
		return dErrors.New(dErrors.CodeInvalidInput, "DPA effective date is after expiration date")
	}
	for region := range r.RegionalCompliance {
		if !region.Valid() {
			return dErrors.New(dErrors.CodeInvalidInput, "unknown region: "+string(region))
		}
	}
	return nil
}
