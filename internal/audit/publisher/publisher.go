// Package publisher fans persisted audit events out to Kafka for downstream
// consumers (SIEM, reporting). The Postgres store stays the system of record:
// fan-out is best-effort and never fails the write path.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"custodia/internal/audit"
)

// Sink is the transport the publisher writes to. Satisfied by the platform
// Kafka producer.
type Sink interface {
	Produce(ctx context.Context, key string, payload []byte) error
}

// Publisher serializes audit events and hands them to the sink. Failures are
// returned to the caller, which owns logging and metrics for the fan-out path.
type Publisher struct {
	sink Sink
}

// New creates a publisher over sink. A nil sink disables fan-out.
func New(sink Sink) *Publisher {
	return &Publisher{sink: sink}
}

// Publish emits event to the sink, keyed by event ID so replays stay
// idempotent for downstream consumers.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	if p == nil || p.sink == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	if err := p.sink.Produce(ctx, event.ID, payload); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}
