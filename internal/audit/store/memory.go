package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"custodia/internal/audit"
	"custodia/pkg/platform/sentinel"
)

// InMemory keeps audit events in a slice guarded by a RWMutex. It favors
// clarity over performance and backs unit tests and dev mode.
type InMemory struct {
	mu     sync.RWMutex
	events []audit.Event
	byID   map[string]int
}

// NewInMemory constructs an empty in-memory audit store.
func NewInMemory() *InMemory {
	return &InMemory{byID: make(map[string]int)}
}

func (s *InMemory) Insert(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[event.ID]; exists {
		return sentinel.ErrConflict
	}
	s.byID[event.ID] = len(s.events)
	s.events = append(s.events, event)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id string) (audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byID[id]; ok {
		return s.events[idx], nil
	}
	return audit.Event{}, sentinel.ErrNotFound
}

func (s *InMemory) FindByEventType(_ context.Context, eventType audit.EventType) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.EventType == eventType }), nil
}

func (s *InMemory) FindByUser(_ context.Context, userID string) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool { return e.UserID == userID }), nil
}

func (s *InMemory) FindSecurityEvents(_ context.Context, since time.Time) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool {
		return e.EventType.IsSecurity() && !e.Timestamp.Before(since)
	}), nil
}

func (s *InMemory) FindComplianceEvents(_ context.Context, since time.Time) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool {
		return (e.ComplianceRequired || e.EventType.IsCompliance()) && !e.Timestamp.Before(since)
	}), nil
}

func (s *InMemory) FindFailedEvents(_ context.Context, since time.Time) ([]audit.Event, error) {
	return s.filter(func(e audit.Event) bool {
		return !e.Success && !e.Timestamp.Before(since)
	}), nil
}

func (s *InMemory) AggregateEventCounts(_ context.Context, since time.Time) ([]EventCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[audit.EventType]*EventCount)
	for _, e := range s.events {
		if e.Timestamp.Before(since) {
			continue
		}
		count, ok := byType[e.EventType]
		if !ok {
			count = &EventCount{EventType: e.EventType}
			byType[e.EventType] = count
		}
		count.Total++
		if e.Success {
			count.Succeeded++
		} else {
			count.Failed++
		}
	}

	counts := make([]EventCount, 0, len(byType))
	for _, count := range byType {
		counts = append(counts, *count)
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Total != counts[j].Total {
			return counts[i].Total > counts[j].Total
		}
		return counts[i].EventType < counts[j].EventType
	})
	return counts, nil
}

func (s *InMemory) Archive(_ context.Context, id string, at time.Time) (audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byID[id]
	if !ok {
		return audit.Event{}, sentinel.ErrNotFound
	}
	s.events[idx] = s.events[idx].WithArchived(at)
	return s.events[idx], nil
}

func (s *InMemory) filter(keep func(audit.Event) bool) []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := []audit.Event{}
	for _, e := range s.events {
		if keep(e) {
			matched = append(matched, e)
		}
	}
	return matched
}
