package domain

import (
	"time"
)

// Status is the saga's lifecycle status. It only ever moves forward along
// the transition graph; terminal statuses are never left.
type Status string

const (
	StatusValidatingRequest     Status = "VALIDATING_REQUEST"
	StatusValidationFailed      Status = "VALIDATION_FAILED"
	StatusCheckingSanctions     Status = "CHECKING_SANCTIONS"
	StatusSanctionsFailed       Status = "SANCTIONS_FAILED"
	StatusVerifyingLiquidity    Status = "VERIFYING_LIQUIDITY"
	StatusLiquidityFailed       Status = "LIQUIDITY_FAILED"
	StatusPostingTransaction    Status = "POSTING_TRANSACTION"
	StatusPostingFailed         Status = "POSTING_FAILED"
	StatusClearingTransaction   Status = "CLEARING_TRANSACTION"
	StatusClearingFailed        Status = "CLEARING_FAILED"
	StatusTransactionCompleted  Status = "TRANSACTION_COMPLETED"
	StatusTransactionFailed     Status = "TRANSACTION_FAILED"
	StatusCompensationCompleted Status = "COMPENSATION_COMPLETED"
)

// Terminal reports whether no further step may run for this status.
// CLEARING_FAILED is not terminal: it routes to compensation.
func (s Status) Terminal() bool {
	switch s {
	case StatusValidationFailed,
		StatusSanctionsFailed,
		StatusLiquidityFailed,
		StatusPostingFailed,
		StatusTransactionCompleted,
		StatusTransactionFailed,
		StatusCompensationCompleted:
		return true
	}
	return false
}

// Transaction is the immutable transfer request. Amounts are in minor
// currency units (cents).
type Transaction struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// StepEntry is one line of the saga's append-only audit trail.
type StepEntry struct {
	Name     string    `json:"name"`
	Outcome  string    `json:"outcome"`
	LoggedAt time.Time `json:"logged_at"`
}

// SagaState is the persisted per-transaction aggregate. TxID and
// Transaction never change after creation; History is append-only.
type SagaState struct {
	TxID        string        `json:"tx_id"`
	Transaction Transaction   `json:"transaction"`
	Status      Status        `json:"status"`
	Started     time.Time     `json:"started"`
	Ended       time.Time     `json:"ended,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	History     []StepEntry   `json:"history"`
}

// NewSagaState initializes the aggregate at submission time.
func NewSagaState(txID string, tx Transaction) *SagaState {
	return &SagaState{
		TxID:        txID,
		Transaction: tx,
		Status:      StatusValidatingRequest,
		Started:     time.Now().UTC(),
	}
}

// LogStep appends one audit entry for a logical step attempt.
func (s *SagaState) LogStep(name, outcome string) {
	s.History = append(s.History, StepEntry{
		Name:     name,
		Outcome:  outcome,
		LoggedAt: time.Now().UTC(),
	})
}

// Complete stamps the end of the saga. Ended and Duration stay zero until
// a terminal status is reached.
func (s *SagaState) Complete() {
	s.Ended = time.Now().UTC()
	s.Duration = s.Ended.Sub(s.Started)
}

// Clone returns a deep copy so callers can hand out state without sharing
// the orchestrator's mutable history slice.
func (s *SagaState) Clone() *SagaState {
	cp := *s
	cp.History = make([]StepEntry, len(s.History))
	copy(cp.History, s.History)
	return &cp
}
