package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"custodia/internal/audit"
	"custodia/pkg/platform/sentinel"
)

type AuditStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *AuditStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
}

func TestAuditStoreSuite(t *testing.T) {
	suite.Run(t, new(AuditStoreSuite))
}

func (s *AuditStoreSuite) newEvent(eventType audit.EventType, mutate ...func(*audit.Event)) audit.Event {
	event := audit.Event{
		ID:          uuid.NewString(),
		EventType:   eventType,
		UserID:      "user-1",
		Action:      "act",
		Description: "test event",
		ThreatLevel: audit.ThreatLow,
		Success:     true,
		Timestamp:   s.now,
	}
	for _, m := range mutate {
		m(&event)
	}
	return event
}

func (s *AuditStoreSuite) insert(events ...audit.Event) {
	for _, e := range events {
		s.Require().NoError(s.store.Insert(s.ctx, e))
	}
}

// TestInsertAndLookups verifies basic persistence and point lookups.
func (s *AuditStoreSuite) TestInsertAndLookups() {
	s.Run("inserts and finds by ID", func() {
		event := s.newEvent(audit.EventLoginSuccess)
		s.insert(event)

		found, err := s.store.FindByID(s.ctx, event.ID)
		s.Require().NoError(err)
		s.Equal(event, found)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, uuid.NewString())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("rejects duplicate ID", func() {
		event := s.newEvent(audit.EventLogout)
		s.insert(event)
		s.Require().ErrorIs(s.store.Insert(s.ctx, event), sentinel.ErrConflict)
	})
}

// TestFilters verifies the type and user queries.
func (s *AuditStoreSuite) TestFilters() {
	login := s.newEvent(audit.EventLoginSuccess)
	logout := s.newEvent(audit.EventLogout)
	other := s.newEvent(audit.EventLoginSuccess, func(e *audit.Event) { e.UserID = "user-2" })
	s.insert(login, logout, other)

	s.Run("filters by event type", func() {
		events, err := s.store.FindByEventType(s.ctx, audit.EventLoginSuccess)
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("filters by user", func() {
		events, err := s.store.FindByUser(s.ctx, "user-2")
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(other.ID, events[0].ID)
	})

	s.Run("no matches yields empty slice", func() {
		events, err := s.store.FindByEventType(s.ctx, audit.EventMalwareDetected)
		s.Require().NoError(err)
		s.NotNil(events)
		s.Empty(events)
	})
}

// TestTimeWindowedQueries verifies the security, compliance, and failed
// event windows.
func (s *AuditStoreSuite) TestTimeWindowedQueries() {
	since := s.now.AddDate(0, 0, -30)

	inWindow := s.newEvent(audit.EventSuspiciousActivity)
	atBoundary := s.newEvent(audit.EventMalwareDetected, func(e *audit.Event) { e.Timestamp = since })
	tooOld := s.newEvent(audit.EventIPBlocked, func(e *audit.Event) { e.Timestamp = since.Add(-time.Second) })
	nonSecurity := s.newEvent(audit.EventFileUpload)
	s.insert(inWindow, atBoundary, tooOld, nonSecurity)

	s.Run("security window includes boundary, excludes older", func() {
		events, err := s.store.FindSecurityEvents(s.ctx, since)
		s.Require().NoError(err)
		s.Len(events, 2)
		for _, e := range events {
			s.True(e.EventType.IsSecurity())
		}
	})

	s.Run("compliance window matches group or flag", func() {
		grouped := s.newEvent(audit.EventDataExport)
		flagged := s.newEvent(audit.EventUserUpdated, func(e *audit.Event) { e.ComplianceRequired = true })
		s.insert(grouped, flagged)

		events, err := s.store.FindComplianceEvents(s.ctx, since)
		s.Require().NoError(err)
		s.Len(events, 2)
	})

	s.Run("failed window returns only unsuccessful events", func() {
		failed := s.newEvent(audit.EventLoginFailed, func(e *audit.Event) {
			e.Success = false
			e.FailureReason = "bad password"
		})
		s.insert(failed)

		events, err := s.store.FindFailedEvents(s.ctx, since)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(failed.ID, events[0].ID)
	})
}

// TestAggregateEventCounts verifies per-type totals and ordering.
func (s *AuditStoreSuite) TestAggregateEventCounts() {
	since := s.now.AddDate(0, 0, -30)

	s.insert(
		s.newEvent(audit.EventLoginSuccess),
		s.newEvent(audit.EventLoginSuccess),
		s.newEvent(audit.EventLoginFailed, func(e *audit.Event) { e.Success = false }),
		s.newEvent(audit.EventFileUpload),
		s.newEvent(audit.EventFileUpload, func(e *audit.Event) { e.Success = false }),
		s.newEvent(audit.EventLogout, func(e *audit.Event) { e.Timestamp = since.Add(-time.Hour) }),
	)

	counts, err := s.store.AggregateEventCounts(s.ctx, since)
	s.Require().NoError(err)
	s.Require().Len(counts, 3, "events outside the window are excluded")

	s.Run("sorted by total descending then type", func() {
		s.Equal(audit.EventFileUpload, counts[0].EventType)
		s.Equal(audit.EventLoginSuccess, counts[1].EventType)
		s.Equal(audit.EventLoginFailed, counts[2].EventType)
	})

	s.Run("splits success and failure", func() {
		s.Equal(2, counts[0].Total)
		s.Equal(1, counts[0].Succeeded)
		s.Equal(1, counts[0].Failed)

		s.Equal(2, counts[1].Total)
		s.Equal(2, counts[1].Succeeded)
		s.Equal(0, counts[1].Failed)
	})
}

// TestArchive verifies archival flips the flag without touching anything else.
func (s *AuditStoreSuite) TestArchive() {
	s.Run("marks the event archived at the given time", func() {
		event := s.newEvent(audit.EventBackupCreated)
		s.insert(event)

		at := s.now.Add(time.Hour)
		archived, err := s.store.Archive(s.ctx, event.ID, at)
		s.Require().NoError(err)
		s.True(archived.Archived)
		s.Require().NotNil(archived.ArchivedAt)
		s.Equal(at, *archived.ArchivedAt)
		s.Equal(event.RetentionPeriodDays, archived.RetentionPeriodDays)

		found, err := s.store.FindByID(s.ctx, event.ID)
		s.Require().NoError(err)
		s.True(found.Archived)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.Archive(s.ctx, uuid.NewString(), s.now)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
