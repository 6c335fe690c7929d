package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/niharmallik/sagapay/internal/core/domain"
	"github.com/niharmallik/sagapay/internal/core/saga"
)

// MemorySagaStore is the in-process twin of PgSagaStore, used in tests and
// as the default wiring when no database is configured. States are cloned
// on both write and read so callers never share mutable history slices.
type MemorySagaStore struct {
	mu     sync.RWMutex
	sagas  map[string]*domain.SagaState
	outbox []OutboxEvent
}

func NewMemorySagaStore() *MemorySagaStore {
	return &MemorySagaStore{sagas: make(map[string]*domain.SagaState)}
}

func (s *MemorySagaStore) Create(_ context.Context, state *domain.SagaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sagas[state.TxID]; exists {
		return saga.ErrDuplicate
	}
	s.sagas[state.TxID] = state.Clone()
	return nil
}

func (s *MemorySagaStore) Update(_ context.Context, state *domain.SagaState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sagas[state.TxID]; !exists {
		return saga.ErrNotFound
	}
	s.sagas[state.TxID] = state.Clone()

	if state.Status.Terminal() {
		event, err := newOutboxEvent(state)
		if err != nil {
			return err
		}
		s.outbox = append(s.outbox, event)
	}
	return nil
}

func (s *MemorySagaStore) Get(_ context.Context, txID string) (*domain.SagaState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, exists := s.sagas[txID]
	if !exists {
		return nil, saga.ErrNotFound
	}
	return state.Clone(), nil
}

func (s *MemorySagaStore) PendingOutbox(_ context.Context, limit int) ([]OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit > len(s.outbox) {
		limit = len(s.outbox)
	}
	events := make([]OutboxEvent, limit)
	copy(events, s.outbox[:limit])
	return events, nil
}

func (s *MemorySagaStore) DeleteOutbox(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range s.outbox {
		if e.ID == id {
			s.outbox = append(s.outbox[:i], s.outbox[i+1:]...)
			return nil
		}
	}
	return nil
}

// MemoryEventStore is the in-process twin of PgEventStore.
type MemoryEventStore struct {
	mu   sync.Mutex
	logs map[string][]domain.AccountEvent
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{logs: make(map[string][]domain.AccountEvent)}
}

func (s *MemoryEventStore) Append(_ context.Context, id string, seq int, event domain.AccountEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq != len(s.logs[id])+1 {
		return fmt.Errorf("account %s seq %d: %w", id, seq, ErrSequenceConflict)
	}
	s.logs[id] = append(s.logs[id], event)
	return nil
}

func (s *MemoryEventStore) Load(_ context.Context, id string) ([]domain.AccountEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logs[id]
	events := make([]domain.AccountEvent, len(log))
	copy(events, log)
	return events, nil
}
