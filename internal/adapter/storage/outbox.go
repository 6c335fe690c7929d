package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/niharmallik/sagapay/internal/core/domain"
)

// OutboxEvent is a terminal-saga notification waiting to be published.
// Rows are written in the same transaction as the saga's terminal update
// and deleted once published (at-least-once delivery).
type OutboxEvent struct {
	ID        string    `json:"id"`
	TxID      string    `json:"tx_id"`
	EventType string    `json:"event_type"`
	Payload   []byte    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// newOutboxEvent snapshots the terminal saga state as a broker message.
func newOutboxEvent(state *domain.SagaState) (OutboxEvent, error) {
	payload, err := json.Marshal(map[string]any{
		"event_type":  string(state.Status),
		"tx_id":       state.TxID,
		"from":        state.Transaction.From,
		"to":          state.Transaction.To,
		"amount":      state.Transaction.Amount,
		"started":     state.Started,
		"ended":       state.Ended,
		"duration_ms": state.Duration.Milliseconds(),
	})
	if err != nil {
		return OutboxEvent{}, fmt.Errorf("marshal outbox payload: %w", err)
	}

	return OutboxEvent{
		ID:        uuid.New().String(),
		TxID:      state.TxID,
		EventType: string(state.Status),
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}, nil
}
