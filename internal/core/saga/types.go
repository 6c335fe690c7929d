// Package saga drives the multi-step transfer transaction: an explicit
// state-machine table of decision steps with per-step timeout, bounded
// retry and failover routing, plus a compensating path that reverses the
// source debit when clearing fails.
package saga

import (
	"context"
	"errors"

	"github.com/niharmallik/sagapay/internal/core/domain"
)

var (
	// ErrDuplicate is returned by Store.Create when a saga already exists
	// for the transaction id.
	ErrDuplicate = errors.New("saga already exists")
	// ErrNotFound is returned by Store.Get when no saga was ever started
	// for the transaction id.
	ErrNotFound = errors.New("saga not found")
)

// Outcome is a decision step's business result. Rejections are expected
// outcomes, not errors; execution failures travel as errors instead so the
// executor can retry them.
type Outcome struct {
	Approved bool
	Reason   string
}

// Approved is the affirmative outcome.
func Approved() Outcome { return Outcome{Approved: true} }

// Rejected carries the collaborator's rejection reason.
func Rejected(reason string) Outcome { return Outcome{Reason: reason} }

// Requests sent to the decision collaborators, one per step.
type (
	ValidateRequest struct {
		TxID   string
		From   string
		To     string
		Amount int64
	}

	SanctionRequest struct {
		TxID string
		From string
		To   string
	}

	LiquidityRequest struct {
		TxID    string
		Account string
		Amount  int64
	}

	PostingRequest struct {
		TxID    string
		Account string
		Amount  int64
	}

	ClearingRequest struct {
		TxID    string
		Account string
		Amount  int64
	}

	ReversalRequest struct {
		TxID    string
		Account string
		Amount  int64
	}
)

// Decisions is the boundary to the external decision collaborators. Every
// call answers with exactly one of two business outcomes; an error means
// the call itself failed to execute (timeout, transport) and is retryable.
type Decisions interface {
	Validate(ctx context.Context, req ValidateRequest) (Outcome, error)
	CheckSanctions(ctx context.Context, req SanctionRequest) (Outcome, error)
	VerifyLiquidity(ctx context.Context, req LiquidityRequest) (Outcome, error)
	Post(ctx context.Context, req PostingRequest) (Outcome, error)
	Clear(ctx context.Context, req ClearingRequest) (Outcome, error)
	Reverse(ctx context.Context, req ReversalRequest) (Outcome, error)
}

// Store persists saga state keyed by transaction id. Create must be
// atomic: at most one caller ever observes success for a given id.
type Store interface {
	Create(ctx context.Context, state *domain.SagaState) error
	Update(ctx context.Context, state *domain.SagaState) error
	Get(ctx context.Context, txID string) (*domain.SagaState, error)
}

// SubmitStatus tells the caller whether the submission was accepted or
// recognized as a retry of an already-running transaction.
type SubmitStatus string

const (
	SubmitReceived  SubmitStatus = "RECEIVED"
	SubmitDuplicate SubmitStatus = "DUPLICATE"
)

// SubmitResult is the immediate answer to Submit; progress is observed
// through GetStatus, never by blocking on saga completion.
type SubmitResult struct {
	Status        SubmitStatus
	TxID          string
	CurrentStatus domain.Status
	StartedAt     int64
}
