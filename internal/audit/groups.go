package audit

// Query groups. These drive the security/compliance event lookups; retention
// classification has its own table in the policy package.
var (
	securityEventTypes = []EventType{
		EventSuspiciousActivity,
		EventMalwareDetected,
		EventRateLimitExceeded,
		EventIPBlocked,
		EventAccessDenied,
		EventLoginFailed,
	}

	complianceEventTypes = []EventType{
		EventPolicyUpdated,
		EventComplianceCheck,
		EventDataExport,
		EventDataDeletion,
		EventAuditTrailAccessed,
	}
)

// SecurityEventTypes returns the event types surfaced by security queries.
func SecurityEventTypes() []EventType {
	return append([]EventType(nil), securityEventTypes...)
}

// ComplianceEventTypes returns the event types surfaced by compliance queries.
func ComplianceEventTypes() []EventType {
	return append([]EventType(nil), complianceEventTypes...)
}

// IsSecurity reports whether t belongs to the security query group.
func (t EventType) IsSecurity() bool {
	for _, st := range securityEventTypes {
		if t == st {
			return true
		}
	}
	return false
}

// IsCompliance reports whether t belongs to the compliance query group.
func (t EventType) IsCompliance() bool {
	for _, ct := range complianceEventTypes {
		if t == ct {
			return true
		}
	}
	return false
}
