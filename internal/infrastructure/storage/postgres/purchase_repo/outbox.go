package purchase_repo

import (
	"context"
	"fmt"

	"purchases/internal/domain/purchasing"
	"purchases/internal/infrastructure/storage/postgres"
	"purchases/internal/replication"
)

// AggregateType tags outbox rows written for purchase orders.
const AggregateType = "purchase_order"

// publisher is the part of postgres.OutboxPublisher the writer needs.
type publisher interface {
	PublishBatch(ctx context.Context, events []postgres.DomainEvent) error
}

// OutboxWriter stores order envelopes in sys_outbox.
// It implements purchasing.Outbox.
type OutboxWriter struct {
	publisher publisher
}

// NewOutboxWriter creates a new outbox writer.
func NewOutboxWriter(p *postgres.OutboxPublisher) *OutboxWriter {
	return &OutboxWriter{publisher: p}
}

// Events converts envelopes to outbox events of one order. The payload is the
// envelope wire JSON so the relay can forward it unchanged.
func Events(orderID string, envs []replication.Envelope) ([]postgres.DomainEvent, error) {
	events := make([]postgres.DomainEvent, 0, len(envs))
	for _, env := range envs {
		payload, err := env.Marshal()
		if err != nil {
			return nil, fmt.Errorf("marshal %s envelope: %w", env.Process, err)
		}
		events = append(events, postgres.DomainEvent{
			AggregateType: AggregateType,
			AggregateID:   orderID,
			EventType:     string(env.Process),
			Payload:       payload,
		})
	}
	return events, nil
}

// Write stores envs in the caller's transaction.
func (w *OutboxWriter) Write(ctx context.Context, orderID string, envs []replication.Envelope) error {
	events, err := Events(orderID, envs)
	if err != nil {
		return err
	}
	return w.publisher.PublishBatch(ctx, events)
}

var _ purchasing.Outbox = (*OutboxWriter)(nil)
