// Package audit defines the immutable audit event model. Events are appended
// once, queried many times, and mutated only by the archival operation.
package audit

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	dErrors "custodia/pkg/domain-errors"
)

// EventType classifies audit events. The set is closed: writes with an
// unrecognized type are rejected at the boundary, never coerced.
type EventType string

const (
	// Authentication events
	EventLoginSuccess   EventType = "login_success"
	EventLoginFailed    EventType = "login_failed"
	EventLogout         EventType = "logout"
	EventPasswordChange EventType = "password_change"
	EventMFAEnabled     EventType = "mfa_enabled"
	EventMFADisabled    EventType = "mfa_disabled"

	// Authorization events
	EventAccessGranted    EventType = "access_granted"
	EventAccessDenied     EventType = "access_denied"
	EventPermissionChange EventType = "permission_change"

	// File operation events
	EventFileUpload   EventType = "file_upload"
	EventFileDownload EventType = "file_download"
	EventFileDelete   EventType = "file_delete"
	EventFileShared   EventType = "file_shared"

	// Admin action events
	EventUserCreated         EventType = "user_created"
	EventUserUpdated         EventType = "user_updated"
	EventUserDeleted         EventType = "user_deleted"
	EventRoleChange          EventType = "role_change"
	EventSystemConfigChanged EventType = "system_config_changed"

	// Security events
	EventSuspiciousActivity EventType = "suspicious_activity"
	EventMalwareDetected    EventType = "malware_detected"
	EventRateLimitExceeded  EventType = "rate_limit_exceeded"
	EventIPBlocked          EventType = "ip_blocked"

	// Compliance events
	EventPolicyUpdated      EventType = "policy_updated"
	EventComplianceCheck    EventType = "compliance_check"
	EventDataExport         EventType = "data_export"
	EventDataDeletion       EventType = "data_deletion"
	EventAuditTrailAccessed EventType = "audit_trail_accessed"

	// System events
	EventServerStartup   EventType = "server_startup"
	EventServerShutdown  EventType = "server_shutdown"
	EventMaintenanceMode EventType = "maintenance_mode"
	EventBackupCreated   EventType = "backup_created"
)

// eventTypes is the closed set used for write-boundary validation.
var eventTypes = map[EventType]struct{}{
	EventLoginSuccess: {}, EventLoginFailed: {}, EventLogout: {},
	EventPasswordChange: {}, EventMFAEnabled: {}, EventMFADisabled: {},
	EventAccessGranted: {}, EventAccessDenied: {}, EventPermissionChange: {},
	EventFileUpload: {}, EventFileDownload: {}, EventFileDelete: {}, EventFileShared: {},
	EventUserCreated: {}, EventUserUpdated: {}, EventUserDeleted: {},
	EventRoleChange: {}, EventSystemConfigChanged: {},
	EventSuspiciousActivity: {}, EventMalwareDetected: {}, EventRateLimitExceeded: {}, EventIPBlocked: {},
	EventPolicyUpdated: {}, EventComplianceCheck: {}, EventDataExport: {},
	EventDataDeletion: {}, EventAuditTrailAccessed: {},
	EventServerStartup: {}, EventServerShutdown: {}, EventMaintenanceMode: {}, EventBackupCreated: {},
}

// Valid reports whether t is a member of the closed event type set.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// ThreatLevel is the qualitative severity attached to an event.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// Regulation names the regulatory framework an event falls under.
type Regulation string

const (
	RegulationGDPR   Regulation = "GDPR"
	RegulationCCPA   Regulation = "CCPA"
	RegulationHIPAA  Regulation = "HIPAA"
	RegulationSOX    Regulation = "SOX"
	RegulationPCIDSS Regulation = "PCI-DSS"
)

// Event is one logged action. Immutable after creation except for the archival
// flags, which only the archival operation touches.
type Event struct {
	ID            string      `json:"id"`
	EventType     EventType   `json:"eventType" validate:"required"`
	UserID        string      `json:"userId,omitempty"`
	ResourceType  string      `json:"resourceType,omitempty"`
	ResourceID    string      `json:"resourceId,omitempty"`
	Action        string      `json:"action" validate:"required"`
	Description   string      `json:"description" validate:"required"`
	RequestID     string      `json:"requestId,omitempty"`
	IPAddress     string      `json:"ipAddress,omitempty"`
	UserAgent     string      `json:"userAgent,omitempty"`
	ThreatLevel   ThreatLevel `json:"threatLevel" validate:"omitempty,oneof=low medium high critical"`
	Success       bool        `json:"success"`
	FailureReason string      `json:"failureReason,omitempty"`

	// Optional structured payload for field-level diffs.
	OldValue json.RawMessage `json:"oldValue,omitempty"`
	NewValue json.RawMessage `json:"newValue,omitempty"`
	Changes  json.RawMessage `json:"changes,omitempty"`

	Regulation         Regulation `json:"regulation,omitempty" validate:"omitempty,oneof=GDPR CCPA HIPAA SOX PCI-DSS"`
	ComplianceRequired bool       `json:"complianceRequired"`

	Timestamp time.Time `json:"timestamp" validate:"required"`

	// RetentionPeriodDays is assigned exactly once at creation from EventType
	// and kept as-is for the life of the event, even if the classification
	// table changes afterward.
	RetentionPeriodDays int `json:"retentionPeriodDays"`

	Archived   bool       `json:"archived"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
}

var validate = validator.New()

// Validate rejects events outside the declared enumerations or missing required
// fields. It runs at the write boundary, before any persistence.
func (e Event) Validate() error {
	if !e.EventType.Valid() {
		return dErrors.New(dErrors.CodeInvalidInput, "unknown event type: "+string(e.EventType))
	}
	if err := validate.Struct(e); err != nil {
		return dErrors.Wrap(dErrors.CodeInvalidInput, "invalid audit event", err)
	}
	return nil
}

// WithArchived returns a copy of e flagged as archived at now. Each call moves
// ArchivedAt forward; callers guard against redundant archival when stable
// timestamps matter.
func (e Event) WithArchived(now time.Time) Event {
	e.Archived = true
	at := now
	e.ArchivedAt = &at
	return e
}
