package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/niharmallik/sagapay/internal/core/domain"
)

// ErrSequenceConflict means another writer already committed an event at
// the requested sequence. The ledger's per-entity locking makes this
// unreachable in a single process; it guards against stale replicas.
var ErrSequenceConflict = errors.New("event sequence conflict")

// PgEventStore persists account event logs in the account_events table.
type PgEventStore struct {
	db *pgxpool.Pool
}

func NewPgEventStore(db *pgxpool.Pool) *PgEventStore {
	return &PgEventStore{db: db}
}

// Append commits the event at sequence seq. The (account_id, seq) primary
// key rejects any fork of the log.
func (s *PgEventStore) Append(ctx context.Context, id string, seq int, event domain.AccountEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	_, err = s.db.Exec(ctx, `
		INSERT INTO account_events (account_id, seq, kind, payload)
		VALUES ($1, $2, $3, $4)`,
		id, seq, event.Kind(), payload,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("account %s seq %d: %w", id, seq, ErrSequenceConflict)
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// Load replays the account's event log in commit order.
func (s *PgEventStore) Load(ctx context.Context, id string) ([]domain.AccountEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT kind, payload FROM account_events
		WHERE account_id = $1 ORDER BY seq ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	defer rows.Close()

	var events []domain.AccountEvent
	for rows.Next() {
		var (
			kind    string
			payload []byte
		)
		if err := rows.Scan(&kind, &payload); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		event, err := decodeAccountEvent(kind, payload)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func decodeAccountEvent(kind string, payload []byte) (domain.AccountEvent, error) {
	switch kind {
	case domain.KindAccountCreated:
		var e domain.AccountCreated
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return e, nil
	case domain.KindFundsDeposited:
		var e domain.FundsDeposited
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return e, nil
	case domain.KindFundsWithdrawn:
		var e domain.FundsWithdrawn
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", kind, err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown account event kind %q", kind)
	}
}
