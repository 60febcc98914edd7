package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"custodia/internal/audit"
)

func TestRetentionDays(t *testing.T) {
	tests := []struct {
		eventType audit.EventType
		want      int
	}{
		// Compliance-critical, seven-year horizon
		{audit.EventPolicyUpdated, RetentionComplianceCritical},
		{audit.EventComplianceCheck, RetentionComplianceCritical},
		{audit.EventDataExport, RetentionComplianceCritical},
		{audit.EventDataDeletion, RetentionComplianceCritical},
		{audit.EventAuditTrailAccessed, RetentionComplianceCritical},

		// Elevated security and admin
		{audit.EventSuspiciousActivity, RetentionElevated},
		{audit.EventMalwareDetected, RetentionElevated},
		{audit.EventAccessDenied, RetentionElevated},
		{audit.EventRateLimitExceeded, RetentionElevated},
		{audit.EventUserCreated, RetentionElevated},
		{audit.EventUserDeleted, RetentionElevated},
		{audit.EventSystemConfigChanged, RetentionElevated},

		// Standard
		{audit.EventLoginFailed, RetentionStandard},
		{audit.EventPasswordChange, RetentionStandard},
		{audit.EventMFAEnabled, RetentionStandard},
		{audit.EventMFADisabled, RetentionStandard},
		{audit.EventFileUpload, RetentionStandard},
		{audit.EventFileDownload, RetentionStandard},
		{audit.EventFileDelete, RetentionStandard},

		// Transient system
		{audit.EventServerStartup, RetentionTransient},
		{audit.EventServerShutdown, RetentionTransient},
		{audit.EventMaintenanceMode, RetentionTransient},

		// Valid types without an explicit bucket fall back to the default
		{audit.EventLoginSuccess, RetentionDefault},
		{audit.EventLogout, RetentionDefault},
		{audit.EventAccessGranted, RetentionDefault},
		{audit.EventFileShared, RetentionDefault},
		{audit.EventUserUpdated, RetentionDefault},
		{audit.EventIPBlocked, RetentionDefault},
		{audit.EventBackupCreated, RetentionDefault},
	}

	for _, tt := range tests {
		t.Run(string(tt.eventType), func(t *testing.T) {
			assert.Equal(t, tt.want, RetentionDays(tt.eventType))
		})
	}
}

func TestRetentionDaysIsTotal(t *testing.T) {
	// Even an unclassified string yields the default rather than zero.
	assert.Equal(t, RetentionDefault, RetentionDays(audit.EventType("never_classified")))
}

func TestRetentionExpired(t *testing.T) {
	recorded := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	event := audit.Event{
		Timestamp:           recorded,
		RetentionPeriodDays: 90,
	}
	deadline := recorded.AddDate(0, 0, 90)

	t.Run("not expired before deadline", func(t *testing.T) {
		assert.False(t, RetentionExpired(event, deadline.Add(-time.Hour)))
	})

	t.Run("not expired exactly at deadline", func(t *testing.T) {
		assert.False(t, RetentionExpired(event, deadline))
	})

	t.Run("expired after deadline", func(t *testing.T) {
		assert.True(t, RetentionExpired(event, deadline.Add(time.Second)))
	})

	t.Run("uses the stored period, not the classification table", func(t *testing.T) {
		// A compliance-critical type whose stored period predates the table
		// keeps its original, shorter window.
		old := audit.Event{
			EventType:           audit.EventDataExport,
			Timestamp:           recorded,
			RetentionPeriodDays: 30,
		}
		assert.True(t, RetentionExpired(old, recorded.AddDate(0, 0, 31)))
	})
}
