// Package service implements the audit operations: recording with
// assign-once retention, time-windowed queries, aggregation, and archival.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"custodia/internal/audit"
	"custodia/internal/audit/metrics"
	"custodia/internal/audit/store"
	"custodia/internal/policy"
	"custodia/pkg/clock"
)

// Publisher fans persisted events out to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, event audit.Event) error
}

// Service coordinates validation, retention assignment, persistence, and
// fan-out for audit events.
type Service struct {
	store     store.Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
	clock     clock.Clock
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

// WithPublisher sets the fan-out publisher.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// New constructs an audit service with its dependencies.
func New(st store.Store, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:   st,
		logger:  logger,
		metrics: m,
		clock:   clock.System,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record validates and persists a new audit event. The retention period is
// computed here, exactly once, from the event type; it is never recomputed on
// read, so events keep their originally assigned value even if the
// classification table changes later.
//
// Persistence is synchronous and fail-closed: if the store write fails, the
// caller's operation must fail. Kafka fan-out is best-effort.
func (s *Service) Record(ctx context.Context, event audit.Event) (audit.Event, error) {
	start := time.Now()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock()
	}
	if event.ThreatLevel == "" {
		event.ThreatLevel = defaultThreatLevel(event.UserAgent)
	}
	event.RetentionPeriodDays = policy.RetentionDays(event.EventType)
	event.Archived = false
	event.ArchivedAt = nil

	if err := event.Validate(); err != nil {
		return audit.Event{}, err
	}

	if err := s.store.Insert(ctx, event); err != nil {
		return audit.Event{}, err
	}
	s.metrics.IncrementRecorded(string(event.EventType))
	s.metrics.ObserveRecord(start)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.metrics.IncrementPublishFailure()
			s.logger.WarnContext(ctx, "audit fan-out failed",
				"event_id", event.ID,
				"event_type", event.EventType,
				"error", err,
			)
		}
	}

	return event, nil
}

// defaultThreatLevel is low unless the request came from an automated client,
// which warrants closer review in the security queries.
func defaultThreatLevel(rawUA string) audit.ThreatLevel {
	if rawUA != "" && useragent.New(rawUA).Bot() {
		return audit.ThreatMedium
	}
	return audit.ThreatLow
}

// Get returns a single event by ID.
func (s *Service) Get(ctx context.Context, id string) (audit.Event, error) {
	return s.store.FindByID(ctx, id)
}

// ByEventType returns all events of the given type, newest first.
func (s *Service) ByEventType(ctx context.Context, eventType audit.EventType) ([]audit.Event, error) {
	return s.store.FindByEventType(ctx, eventType)
}

// ByUser returns all events attributed to userID, newest first.
func (s *Service) ByUser(ctx context.Context, userID string) ([]audit.Event, error) {
	return s.store.FindByUser(ctx, userID)
}

// SecurityEvents returns security-group events from the last sinceDays days.
func (s *Service) SecurityEvents(ctx context.Context, sinceDays int) ([]audit.Event, error) {
	return s.store.FindSecurityEvents(ctx, s.since(sinceDays))
}

// ComplianceEvents returns compliance-relevant events from the last sinceDays days.
func (s *Service) ComplianceEvents(ctx context.Context, sinceDays int) ([]audit.Event, error) {
	return s.store.FindComplianceEvents(ctx, s.since(sinceDays))
}

// FailedEvents returns unsuccessful events from the last sinceDays days.
func (s *Service) FailedEvents(ctx context.Context, sinceDays int) ([]audit.Event, error) {
	return s.store.FindFailedEvents(ctx, s.since(sinceDays))
}

// Summary aggregates per-type totals with success/failure sub-counts over the
// last sinceDays days.
func (s *Service) Summary(ctx context.Context, sinceDays int) ([]store.EventCount, error) {
	return s.store.AggregateEventCounts(ctx, s.since(sinceDays))
}

// Archive marks the event archived as of now. Re-archiving moves ArchivedAt
// forward; callers that need a stable timestamp must check Archived first.
func (s *Service) Archive(ctx context.Context, id string) (audit.Event, error) {
	return s.store.Archive(ctx, id, s.clock())
}

// RetentionExpired reports whether the event's retention window has elapsed.
func (s *Service) RetentionExpired(event audit.Event) bool {
	return policy.RetentionExpired(event, s.clock())
}

func (s *Service) since(days int) time.Time {
	return s.clock().AddDate(0, 0, -days)
}
