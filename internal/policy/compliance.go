package policy

import (
	"time"

	"custodia/internal/compliance/models"
)

// MinComplianceScore is the lowest audit score considered acceptable.
const MinComplianceScore = 80

// Issue strings surfaced in ComplianceStatus. Exported so callers and tests
// match on constants rather than copies of the text.
const (
	IssueDPANotActive = "Data Processing Agreement is not active"
	IssueDPAExpired   = "Data Processing Agreement has expired"
	IssueAuditOverdue = "Audit is overdue"
	IssueLowScore     = "Compliance score is below acceptable threshold"
)

// ComplianceStatus is the derived, read-only view of a record's standing.
type ComplianceStatus struct {
	IsCompliant            bool      `json:"isCompliant"`
	Issues                 []string  `json:"issues"`
	Score                  int       `json:"score"`
	NextAudit              time.Time `json:"nextAudit"`
	DPAExpiration          time.Time `json:"dpaExpiration"`
	DaysUntilNextAudit     int       `json:"daysUntilNextAudit"`
	DaysUntilDPAExpiration int       `json:"daysUntilDpaExpiration"`
}

// EvaluateCompliance derives the compliance status of record as of now. All
// checks run unconditionally so multiple issues can co-occur; in particular an
// Expired DPA with a past expiration date yields both the not-active and the
// expired issue. The record is compliant iff the issue list is empty.
//
// This is the single implementation backing both the boolean and the
// issue-list views of compliance.
func EvaluateCompliance(record models.ComplianceRecord, now time.Time) ComplianceStatus {
	dpa := record.DataProcessingAgreement
	trail := record.AuditTrail

	issues := []string{}
	if dpa.Status != models.DPAActive {
		issues = append(issues, IssueDPANotActive)
	}
	if dpa.ExpirationDate.Before(now) {
		issues = append(issues, IssueDPAExpired)
	}
	if trail.NextAudit.Before(now) {
		issues = append(issues, IssueAuditOverdue)
	}
	if trail.ComplianceScore < MinComplianceScore {
		issues = append(issues, IssueLowScore)
	}

	return ComplianceStatus{
		IsCompliant:            len(issues) == 0,
		Issues:                 issues,
		Score:                  trail.ComplianceScore,
		NextAudit:              trail.NextAudit,
		DPAExpiration:          dpa.ExpirationDate,
		DaysUntilNextAudit:     daysUntil(now, trail.NextAudit),
		DaysUntilDPAExpiration: daysUntil(now, dpa.ExpirationDate),
	}
}

// IsCompliant is the boolean shortcut over EvaluateCompliance.
func IsCompliant(record models.ComplianceRecord, now time.Time) bool {
	return EvaluateCompliance(record, now).IsCompliant
}

// daysUntil is the ceiling of (t - now) in days; negative once t is in the past.
func daysUntil(now, t time.Time) int {
	diff := t.Sub(now)
	days := diff / (24 * time.Hour)
	if diff%(24*time.Hour) > 0 {
		days++
	}
	return int(days)
}
