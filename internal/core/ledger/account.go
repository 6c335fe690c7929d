// Package ledger holds the event-sourced account entity. Current balance
// is always the fold of the account's committed events; it is never stored
// independently of the log.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/niharmallik/sagapay/internal/core/domain"
)

var (
	ErrAlreadyExists     = errors.New("account already exists")
	ErrNotFound          = errors.New("account does not exist")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("deposit amount must be greater than 0")
)

// EventStore persists the per-account append-only log. Append commits the
// event at sequence seq (1-based) and must refuse any other sequence, so a
// stale writer can never fork the log.
type EventStore interface {
	Append(ctx context.Context, id string, seq int, event domain.AccountEvent) error
	Load(ctx context.Context, id string) ([]domain.AccountEvent, error)
}

// accountState is the fold of an account's events. A zero balance with an
// empty id means the account does not exist.
type accountState struct {
	id      string
	balance int64
}

func (s accountState) empty() bool { return s.id == "" }

func fold(events []domain.AccountEvent) accountState {
	var st accountState
	for _, e := range events {
		st = st.apply(e)
	}
	return st
}

func (s accountState) apply(e domain.AccountEvent) accountState {
	switch ev := e.(type) {
	case domain.AccountCreated:
		return accountState{id: ev.ID, balance: ev.InitialBalance}
	case domain.FundsDeposited:
		return accountState{id: s.id, balance: ev.NewBalance}
	case domain.FundsWithdrawn:
		return accountState{id: s.id, balance: ev.NewBalance}
	default:
		return s
	}
}

// entity serializes all commands against one account. The mutex makes
// check-then-commit atomic relative to other commands on the same id.
type entity struct {
	mu       sync.Mutex
	id       string
	hydrated bool
	seq      int
	state    accountState
}

func (e *entity) hydrate(ctx context.Context, store EventStore) error {
	if e.hydrated {
		return nil
	}
	events, err := store.Load(ctx, e.id)
	if err != nil {
		return fmt.Errorf("load events for account %s: %w", e.id, err)
	}
	e.state = fold(events)
	e.seq = len(events)
	e.hydrated = true
	return nil
}

func (e *entity) commit(ctx context.Context, store EventStore, ev domain.AccountEvent) error {
	if err := store.Append(ctx, e.id, e.seq+1, ev); err != nil {
		return fmt.Errorf("append event for account %s: %w", e.id, err)
	}
	e.seq++
	e.state = e.state.apply(ev)
	return nil
}

// Service owns every account entity in this process. Commands against the
// same account id run one at a time; different ids proceed in parallel.
type Service struct {
	mu       sync.Mutex
	store    EventStore
	entities map[string]*entity
}

func NewService(store EventStore) *Service {
	return &Service{
		store:    store,
		entities: make(map[string]*entity),
	}
}

func (s *Service) entity(id string) *entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	if !ok {
		e = &entity{id: id}
		s.entities[id] = e
	}
	return e
}

// Create opens the account with an initial balance. Fails with
// ErrAlreadyExists if a create event was already committed for this id.
func (s *Service) Create(ctx context.Context, id string, initialBalance int64) error {
	e := s.entity(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.hydrate(ctx, s.store); err != nil {
		return err
	}
	if !e.state.empty() {
		return fmt.Errorf("account [%s]: %w", id, ErrAlreadyExists)
	}
	if err := e.commit(ctx, s.store, domain.AccountCreated{ID: id, InitialBalance: initialBalance}); err != nil {
		return err
	}
	slog.Info("account created", "account", id, "balance", initialBalance)
	return nil
}

// Deposit credits the account. Non-positive amounts are rejected with
// ErrInvalidAmount.
func (s *Service) Deposit(ctx context.Context, id string, amount int64) error {
	e := s.entity(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.hydrate(ctx, s.store); err != nil {
		return err
	}
	if e.state.empty() {
		return fmt.Errorf("account [%s]: %w", id, ErrNotFound)
	}
	if amount <= 0 {
		return ErrInvalidAmount
	}
	prev := e.state.balance
	return e.commit(ctx, s.store, domain.FundsDeposited{NewBalance: prev + amount, PrevBalance: prev})
}

// Withdraw debits the account. Existence is checked before funds, so only
// one failure is ever reported; the event is only committed when the
// resulting balance stays non-negative.
func (s *Service) Withdraw(ctx context.Context, id string, amount int64) error {
	e := s.entity(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.hydrate(ctx, s.store); err != nil {
		return err
	}
	if e.state.empty() {
		return fmt.Errorf("account [%s]: %w", id, ErrNotFound)
	}
	if e.state.balance-amount < 0 {
		return ErrInsufficientFunds
	}
	prev := e.state.balance
	return e.commit(ctx, s.store, domain.FundsWithdrawn{NewBalance: prev - amount, PrevBalance: prev})
}

// Get returns the current balance.
func (s *Service) Get(ctx context.Context, id string) (int64, error) {
	e := s.entity(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.hydrate(ctx, s.store); err != nil {
		return 0, err
	}
	if e.state.empty() {
		return 0, fmt.Errorf("account [%s]: %w", id, ErrNotFound)
	}
	return e.state.balance, nil
}

// VerifyFunds reports whether the balance covers amount. An empty account
// simply reports false; the only error source is storage.
func (s *Service) VerifyFunds(ctx context.Context, id string, amount int64) (bool, error) {
	e := s.entity(id)
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.hydrate(ctx, s.store); err != nil {
		return false, err
	}
	return e.state.balance >= amount, nil
}
