// Package worker drains the outbox: terminal saga notifications are
// published to the broker at least once, then deleted.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/niharmallik/sagapay/internal/adapter/storage"
)

// Publisher delivers one outbox event to the broker.
type Publisher interface {
	Publish(ctx context.Context, id string, topic string, payload []byte) error
}

// OutboxSource hands out pending events and removes published ones.
type OutboxSource interface {
	PendingOutbox(ctx context.Context, limit int) ([]storage.OutboxEvent, error)
	DeleteOutbox(ctx context.Context, id string) error
}

// OutboxRelay polls the outbox and publishes pending events. A failed
// publish leaves the row in place; the next tick retries it, so delivery
// is at-least-once and consumers must be idempotent.
type OutboxRelay struct {
	source    OutboxSource
	publisher Publisher
	interval  time.Duration
	batchSize int
}

func NewOutboxRelay(source OutboxSource, publisher Publisher) *OutboxRelay {
	return &OutboxRelay{
		source:    source,
		publisher: publisher,
		interval:  time.Second,
		batchSize: 10,
	}
}

// Start blocks until ctx is cancelled; run it in its own goroutine.
func (r *OutboxRelay) Start(ctx context.Context) {
	slog.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("outbox relay stopped")
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *OutboxRelay) drain(ctx context.Context) {
	events, err := r.source.PendingOutbox(ctx, r.batchSize)
	if err != nil {
		slog.Error("outbox relay failed to fetch events", "error", err)
		return
	}

	for _, event := range events {
		if err := r.publisher.Publish(ctx, event.ID, event.EventType, event.Payload); err != nil {
			slog.Error("outbox relay failed to publish",
				"event_id", event.ID, "tx_id", event.TxID, "error", err)
			continue
		}
		if err := r.source.DeleteOutbox(ctx, event.ID); err != nil {
			// The event will be republished next tick; consumers must
			// tolerate the duplicate.
			slog.Error("outbox relay failed to delete published event",
				"event_id", event.ID, "error", err)
			continue
		}
		slog.Info("saga event published", "event_id", event.ID, "tx_id", event.TxID, "type", event.EventType)
	}
}
