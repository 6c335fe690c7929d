package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niharmallik/sagapay/internal/core/domain"
	"github.com/niharmallik/sagapay/internal/core/saga"
)

// PgSagaStore persists saga state in the sagas table and enqueues outbox
// rows for terminal updates in the same transaction.
type PgSagaStore struct {
	db *pgxpool.Pool
}

func NewPgSagaStore(db *pgxpool.Pool) *PgSagaStore {
	return &PgSagaStore{db: db}
}

// Create inserts the initial state. ON CONFLICT DO NOTHING makes the
// duplicate check atomic: only one submitter ever observes success.
func (s *PgSagaStore) Create(ctx context.Context, state *domain.SagaState) error {
	history, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		INSERT INTO sagas (tx_id, status, from_account, to_account, amount, started, duration_ms, history)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7)
		ON CONFLICT (tx_id) DO NOTHING`,
		state.TxID, state.Status, state.Transaction.From, state.Transaction.To,
		state.Transaction.Amount, state.Started, history,
	)
	if err != nil {
		return fmt.Errorf("insert saga: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return saga.ErrDuplicate
	}
	return nil
}

// Update rewrites the mutable columns; a terminal status also enqueues the
// outbox notification atomically.
func (s *PgSagaStore) Update(ctx context.Context, state *domain.SagaState) error {
	history, err := json.Marshal(state.History)
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin saga update: %w", err)
	}
	defer tx.Rollback(ctx)

	var ended any
	if !state.Ended.IsZero() {
		ended = state.Ended
	}

	_, err = tx.Exec(ctx, `
		UPDATE sagas
		SET status = $2, ended = $3, duration_ms = $4, history = $5
		WHERE tx_id = $1`,
		state.TxID, state.Status, ended, state.Duration.Milliseconds(), history,
	)
	if err != nil {
		return fmt.Errorf("update saga: %w", err)
	}

	if state.Status.Terminal() {
		event, err := newOutboxEvent(state)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO outbox (id, tx_id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			event.ID, event.TxID, event.EventType, event.Payload, event.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("enqueue outbox event: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Get loads the saga state by transaction id.
func (s *PgSagaStore) Get(ctx context.Context, txID string) (*domain.SagaState, error) {
	var (
		state      domain.SagaState
		ended      *time.Time
		durationMs int64
		history    []byte
	)

	err := s.db.QueryRow(ctx, `
		SELECT tx_id, status, from_account, to_account, amount, started, ended, duration_ms, history
		FROM sagas WHERE tx_id = $1`, txID,
	).Scan(
		&state.TxID, &state.Status, &state.Transaction.From, &state.Transaction.To,
		&state.Transaction.Amount, &state.Started, &ended, &durationMs, &history,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, saga.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select saga: %w", err)
	}

	if ended != nil {
		state.Ended = *ended
	}
	state.Duration = time.Duration(durationMs) * time.Millisecond

	if err := json.Unmarshal(history, &state.History); err != nil {
		return nil, fmt.Errorf("unmarshal history: %w", err)
	}
	return &state, nil
}

// PendingOutbox fetches up to limit unpublished events, oldest first,
// locking the rows so concurrent relays never double-publish a batch.
func (s *PgSagaStore) PendingOutbox(ctx context.Context, limit int) ([]OutboxEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tx_id, event_type, payload, created_at
		FROM outbox
		ORDER BY created_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select outbox: %w", err)
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var e OutboxEvent
		if err := rows.Scan(&e.ID, &e.TxID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// DeleteOutbox removes a published event.
func (s *PgSagaStore) DeleteOutbox(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM outbox WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete outbox event: %w", err)
	}
	return nil
}
