// Package decision implements the saga's decision collaborators:
// validation, sanction screening, liquidity verification, posting,
// clearing and the compensating reversal. Each answers with exactly one of
// two business outcomes; errors are reserved for execution failures the
// step executor may retry.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/niharmallik/sagapay/internal/core/ledger"
	"github.com/niharmallik/sagapay/internal/core/saga"
	"github.com/niharmallik/sagapay/internal/core/validator"
)

// Service backs every collaborator with the account ledger.
type Service struct {
	ledger *ledger.Service
	denied map[string]struct{}
}

// New wires the collaborators. sanctioned lists account ids the sanction
// check must reject.
func New(l *ledger.Service, sanctioned []string) *Service {
	denied := make(map[string]struct{}, len(sanctioned))
	for _, id := range sanctioned {
		denied[id] = struct{}{}
	}
	return &Service{ledger: l, denied: denied}
}

func outcome(res validator.Result) saga.Outcome {
	if res.OK {
		return saga.Approved()
	}
	return saga.Rejected(res.Reason)
}

// accountExists adapts a ledger lookup into a remote existence check.
// A missing account is a clean negative; anything else is a service error.
func (s *Service) accountExists(id string) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		_, err := s.ledger.Get(ctx, id)
		if errors.Is(err, ledger.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return true, nil
	}
}

// Validate checks the transfer request's fields and that both accounts
// exist. Field failures accumulate so the submitter sees every problem at
// once.
func (s *Service) Validate(ctx context.Context, req saga.ValidateRequest) (saga.Outcome, error) {
	slog.Info("validating transfer request", "tx_id", req.TxID, "from", req.From, "to", req.To, "amount", req.Amount)

	res := validator.New().
		Rule(
			validator.IsEmpty(req.TxID, "transaction id is required"),
			validator.IsLtEqZero(req.Amount, "transaction amount must be greater than 0"),
			validator.IsEmpty(req.From, "source account is required"),
			validator.IsEmpty(req.To, "destination account is required"),
		).
		Remote(
			validator.Exists(s.accountExists(req.From), "source account not found"),
			validator.Exists(s.accountExists(req.To), "destination account not found"),
		).
		Evaluate(ctx)

	return outcome(res), nil
}

// CheckSanctions screens both parties against the deny-list.
func (s *Service) CheckSanctions(ctx context.Context, req saga.SanctionRequest) (saga.Outcome, error) {
	slog.Info("screening accounts", "tx_id", req.TxID, "from", req.From, "to", req.To)

	_, fromDenied := s.denied[req.From]
	_, toDenied := s.denied[req.To]

	res := validator.New().
		Rule(
			validator.IsEmpty(req.TxID, "transaction id is required"),
			validator.IsEmpty(req.From, "source account is required"),
			validator.IsEmpty(req.To, "destination account is required"),
			validator.IsTrue(fromDenied, fmt.Sprintf("source account [%s] is sanctioned", req.From)),
			validator.IsTrue(toDenied, fmt.Sprintf("destination account [%s] is sanctioned", req.To)),
		).
		Evaluate(ctx)

	return outcome(res), nil
}

// VerifyLiquidity confirms the source account covers the amount.
func (s *Service) VerifyLiquidity(ctx context.Context, req saga.LiquidityRequest) (saga.Outcome, error) {
	slog.Info("verifying liquidity", "tx_id", req.TxID, "account", req.Account, "amount", req.Amount)

	res := validator.New().
		Rule(
			validator.IsLtEqZero(req.Amount, "amount must be greater than 0"),
		).
		Remote(
			validator.Exists(func(ctx context.Context) (bool, error) {
				return s.ledger.VerifyFunds(ctx, req.Account, req.Amount)
			}, "source account funds not available"),
		).
		Evaluate(ctx)

	return outcome(res), nil
}

// Post debits the source account.
func (s *Service) Post(ctx context.Context, req saga.PostingRequest) (saga.Outcome, error) {
	slog.Info("posting transaction", "tx_id", req.TxID, "account", req.Account, "amount", req.Amount)
	return depositOrWithdrawOutcome(s.ledger.Withdraw(ctx, req.Account, req.Amount))
}

// Clear credits the destination account.
func (s *Service) Clear(ctx context.Context, req saga.ClearingRequest) (saga.Outcome, error) {
	slog.Info("clearing transaction", "tx_id", req.TxID, "account", req.Account, "amount", req.Amount)
	return depositOrWithdrawOutcome(s.ledger.Deposit(ctx, req.Account, req.Amount))
}

// Reverse credits the debited amount back to the source account.
func (s *Service) Reverse(ctx context.Context, req saga.ReversalRequest) (saga.Outcome, error) {
	slog.Info("reversing posted funds", "tx_id", req.TxID, "account", req.Account, "amount", req.Amount)
	return depositOrWithdrawOutcome(s.ledger.Deposit(ctx, req.Account, req.Amount))
}

// depositOrWithdrawOutcome maps ledger results onto business outcomes.
// Invariant violations are rejections the saga handles through its own
// branches; anything else (storage failure) stays an error so the step
// executor can retry it.
func depositOrWithdrawOutcome(err error) (saga.Outcome, error) {
	switch {
	case err == nil:
		return saga.Approved(), nil
	case errors.Is(err, ledger.ErrNotFound),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrInvalidAmount):
		return saga.Rejected(err.Error()), nil
	default:
		return saga.Outcome{}, err
	}
}
