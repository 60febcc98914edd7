package audit

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "custodia/pkg/domain-errors"
)

func validEvent() Event {
	return Event{
		ID:          "evt-1",
		EventType:   EventLoginSuccess,
		UserID:      "user-1",
		Action:      "login",
		Description: "user logged in",
		ThreatLevel: ThreatLow,
		Success:     true,
		Timestamp:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestEventTypeValid(t *testing.T) {
	t.Run("accepts known types", func(t *testing.T) {
		for et := range eventTypes {
			assert.True(t, et.Valid(), "expected %s to be valid", et)
		}
	})

	t.Run("rejects unknown types", func(t *testing.T) {
		assert.False(t, EventType("").Valid())
		assert.False(t, EventType("made_up_event").Valid())
		assert.False(t, EventType("LOGIN_SUCCESS").Valid())
	})
}

func TestEventValidate(t *testing.T) {
	t.Run("accepts a well-formed event", func(t *testing.T) {
		assert.NoError(t, validEvent().Validate())
	})

	t.Run("rejects unknown event type", func(t *testing.T) {
		event := validEvent()
		event.EventType = "not_a_real_type"

		err := event.Validate()
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
	})

	t.Run("rejects missing action", func(t *testing.T) {
		event := validEvent()
		event.Action = ""
		assert.Error(t, event.Validate())
	})

	t.Run("rejects missing description", func(t *testing.T) {
		event := validEvent()
		event.Description = ""
		assert.Error(t, event.Validate())
	})

	t.Run("rejects missing timestamp", func(t *testing.T) {
		event := validEvent()
		event.Timestamp = time.Time{}
		assert.Error(t, event.Validate())
	})

	t.Run("rejects unknown threat level", func(t *testing.T) {
		event := validEvent()
		event.ThreatLevel = "severe"
		assert.Error(t, event.Validate())
	})

	t.Run("allows empty optional threat level and regulation", func(t *testing.T) {
		event := validEvent()
		event.ThreatLevel = ""
		event.Regulation = ""
		assert.NoError(t, event.Validate())
	})

	t.Run("rejects unknown regulation", func(t *testing.T) {
		event := validEvent()
		event.Regulation = "FERPA"
		assert.Error(t, event.Validate())
	})

	t.Run("validation errors carry the invalid_input code", func(t *testing.T) {
		event := validEvent()
		event.Action = ""

		var de *dErrors.Error
		require.True(t, errors.As(event.Validate(), &de))
		assert.Equal(t, dErrors.CodeInvalidInput, de.Code)
	})
}

func TestWithArchived(t *testing.T) {
	event := validEvent()
	at := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	archived := event.WithArchived(at)
	assert.True(t, archived.Archived)
	require.NotNil(t, archived.ArchivedAt)
	assert.Equal(t, at, *archived.ArchivedAt)

	// Value-receiver copy: the original stays untouched.
	assert.False(t, event.Archived)
	assert.Nil(t, event.ArchivedAt)
}

func TestQueryGroups(t *testing.T) {
	t.Run("security group membership", func(t *testing.T) {
		for _, et := range SecurityEventTypes() {
			assert.True(t, et.IsSecurity(), "expected %s in security group", et)
		}
		assert.False(t, EventLoginSuccess.IsSecurity())
		assert.False(t, EventDataExport.IsSecurity())
	})

	t.Run("compliance group membership", func(t *testing.T) {
		for _, et := range ComplianceEventTypes() {
			assert.True(t, et.IsCompliance(), "expected %s in compliance group", et)
		}
		assert.False(t, EventLoginFailed.IsCompliance())
		assert.False(t, EventFileUpload.IsCompliance())
	})

	t.Run("group accessors return copies", func(t *testing.T) {
		group := SecurityEventTypes()
		group[0] = "tampered"
		assert.NotEqual(t, EventType("tampered"), SecurityEventTypes()[0])
	})
}
