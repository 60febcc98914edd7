// Package policy holds the pure decision logic: retention classification for
// audit events and compliance derivation for client records. Nothing here does
// I/O; time always arrives as a parameter.
package policy

import (
	"time"

	"custodia/internal/audit"
)

// Retention buckets, in days. Compliance-critical events follow the seven-year
// regulatory horizon; the rest taper down by operational sensitivity.
const (
	RetentionComplianceCritical = 2555
	RetentionElevated           = 730
	RetentionStandard           = 365
	RetentionTransient          = 90
	RetentionDefault            = 365
)

// retentionDays maps event types to their assigned retention bucket. Types not
// listed here get RetentionDefault. Editing this table only affects events
// created afterward: existing events keep their originally assigned value.
var retentionDays = map[audit.EventType]int{
	// Compliance-critical
	audit.EventPolicyUpdated:      RetentionComplianceCritical,
	audit.EventComplianceCheck:    RetentionComplianceCritical,
	audit.EventDataExport:         RetentionComplianceCritical,
	audit.EventDataDeletion:       RetentionComplianceCritical,
	audit.EventAuditTrailAccessed: RetentionComplianceCritical,

	// Elevated security / admin
	audit.EventSuspiciousActivity:  RetentionElevated,
	audit.EventMalwareDetected:     RetentionElevated,
	audit.EventAccessDenied:        RetentionElevated,
	audit.EventRateLimitExceeded:   RetentionElevated,
	audit.EventUserCreated:         RetentionElevated,
	audit.EventUserDeleted:         RetentionElevated,
	audit.EventSystemConfigChanged: RetentionElevated,

	// Standard
	audit.EventLoginFailed:    RetentionStandard,
	audit.EventPasswordChange: RetentionStandard,
	audit.EventMFAEnabled:     RetentionStandard,
	audit.EventMFADisabled:    RetentionStandard,
	audit.EventFileUpload:     RetentionStandard,
	audit.EventFileDownload:   RetentionStandard,
	audit.EventFileDelete:     RetentionStandard,

	// Transient system
	audit.EventServerStartup:   RetentionTransient,
	audit.EventServerShutdown:  RetentionTransient,
	audit.EventMaintenanceMode: RetentionTransient,
}

// RetentionDays returns the retention period assigned to eventType. Total over
// the closed enum: unlisted-but-valid types fall back to RetentionDefault.
func RetentionDays(eventType audit.EventType) int {
	if days, ok := retentionDays[eventType]; ok {
		return days
	}
	return RetentionDefault
}

// RetentionExpired reports whether the event's originally assigned retention
// window has elapsed as of now. The stored RetentionPeriodDays is authoritative;
// the classification table is never consulted for existing events.
func RetentionExpired(event audit.Event, now time.Time) bool {
	deadline := event.Timestamp.AddDate(0, 0, event.RetentionPeriodDays)
	return now.After(deadline)
}
