package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/niharmallik/sagapay/internal/core/domain"
)

const (
	stepValidate   = "validate-transaction"
	stepSanction   = "sanction-check"
	stepLiquidity  = "liquidity-check"
	stepPosting    = "posting-transaction"
	stepClearing   = "transaction-clearing"
	stepCompensate = "compensate"
	stepFailover   = "failover-handler"
)

const (
	outcomeApproved = "approved"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
	outcomeHandling = "handling failure"
)

const persistTimeout = 5 * time.Second

// Config bounds the saga's elapsed time. Zero values fall back to the
// defaults: 60s for the whole saga, 30s per step, 1s for the failover
// handler.
type Config struct {
	SagaTimeout     time.Duration
	StepTimeout     time.Duration
	FailoverTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SagaTimeout <= 0 {
		c.SagaTimeout = 60 * time.Second
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = 30 * time.Second
	}
	if c.FailoverTimeout <= 0 {
		c.FailoverTimeout = time.Second
	}
	return c
}

// Service is the per-process orchestrator. Each submitted transaction gets
// one driver goroutine that owns its SagaState exclusively; the store is
// the only shared surface.
type Service struct {
	store     Store
	decisions Decisions
	cfg       Config
	steps     map[string]step
}

// New builds the orchestrator with its state-machine table.
func New(store Store, decisions Decisions, cfg Config) *Service {
	s := &Service{
		store:     store,
		decisions: decisions,
		cfg:       cfg.withDefaults(),
	}
	s.steps = s.buildSteps()
	return s
}

// buildSteps is the state-machine table: one row per step with its call,
// timeout, retry bound, recovery target and transition. The default
// recover strategy is one retry then failover-handler; clearing gets two
// retries and fails over to compensation instead.
func (s *Service) buildSteps() map[string]step {
	table := []step{
		{
			name:       stepValidate,
			timeout:    s.cfg.StepTimeout,
			maxRetries: 1,
			recoverTo:  stepFailover,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				return s.decisions.Validate(ctx, ValidateRequest{
					TxID:   st.TxID,
					From:   st.Transaction.From,
					To:     st.Transaction.To,
					Amount: st.Transaction.Amount,
				})
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				if out.Approved {
					slog.Info("validation approved", "tx_id", st.TxID)
					return transition{domain.StatusCheckingSanctions, stepSanction, outcomeApproved}
				}
				slog.Warn("validation rejected", "tx_id", st.TxID, "reason", out.Reason)
				return transition{domain.StatusValidationFailed, "", outcomeRejected}
			},
		},
		{
			name:       stepSanction,
			timeout:    s.cfg.StepTimeout,
			maxRetries: 1,
			recoverTo:  stepFailover,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				return s.decisions.CheckSanctions(ctx, SanctionRequest{
					TxID: st.TxID,
					From: st.Transaction.From,
					To:   st.Transaction.To,
				})
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				if out.Approved {
					slog.Info("sanction check approved", "tx_id", st.TxID)
					return transition{domain.StatusVerifyingLiquidity, stepLiquidity, outcomeApproved}
				}
				slog.Warn("sanction check rejected", "tx_id", st.TxID, "reason", out.Reason)
				return transition{domain.StatusSanctionsFailed, "", outcomeRejected}
			},
		},
		{
			name:       stepLiquidity,
			timeout:    s.cfg.StepTimeout,
			maxRetries: 1,
			recoverTo:  stepFailover,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				return s.decisions.VerifyLiquidity(ctx, LiquidityRequest{
					TxID:    st.TxID,
					Account: st.Transaction.From,
					Amount:  st.Transaction.Amount,
				})
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				if out.Approved {
					slog.Info("liquidity check approved", "tx_id", st.TxID)
					return transition{domain.StatusPostingTransaction, stepPosting, outcomeApproved}
				}
				slog.Warn("liquidity check rejected", "tx_id", st.TxID, "reason", out.Reason)
				return transition{domain.StatusLiquidityFailed, "", outcomeRejected}
			},
		},
		{
			name:       stepPosting,
			timeout:    s.cfg.StepTimeout,
			maxRetries: 1,
			recoverTo:  stepFailover,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				return s.decisions.Post(ctx, PostingRequest{
					TxID:    st.TxID,
					Account: st.Transaction.From,
					Amount:  st.Transaction.Amount,
				})
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				if out.Approved {
					slog.Info("transaction posted", "tx_id", st.TxID)
					return transition{domain.StatusClearingTransaction, stepClearing, outcomeApproved}
				}
				slog.Warn("posting rejected", "tx_id", st.TxID, "reason", out.Reason)
				return transition{domain.StatusPostingFailed, "", outcomeRejected}
			},
		},
		{
			name:       stepClearing,
			timeout:    s.cfg.StepTimeout,
			maxRetries: 2,
			recoverTo:  stepCompensate,
			failStatus: domain.StatusClearingFailed,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				return s.decisions.Clear(ctx, ClearingRequest{
					TxID:    st.TxID,
					Account: st.Transaction.To,
					Amount:  st.Transaction.Amount,
				})
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				if out.Approved {
					slog.Info("transaction cleared", "tx_id", st.TxID)
					return transition{domain.StatusTransactionCompleted, "", outcomeApproved}
				}
				slog.Warn("clearing rejected", "tx_id", st.TxID, "reason", out.Reason)
				return transition{domain.StatusClearingFailed, stepCompensate, outcomeRejected}
			},
		},
		{
			name:       stepCompensate,
			timeout:    s.cfg.StepTimeout,
			maxRetries: 1,
			recoverTo:  stepFailover,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				return s.decisions.Reverse(ctx, ReversalRequest{
					TxID:    st.TxID,
					Account: st.Transaction.From,
					Amount:  st.Transaction.Amount,
				})
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				if out.Approved {
					slog.Info("compensation completed", "tx_id", st.TxID)
					return transition{domain.StatusCompensationCompleted, "", outcomeApproved}
				}
				slog.Error("compensation rejected", "tx_id", st.TxID, "reason", out.Reason)
				return transition{domain.StatusTransactionFailed, "", outcomeRejected}
			},
		},
		{
			name:       stepFailover,
			timeout:    s.cfg.FailoverTimeout,
			maxRetries: 0,
			detached:   true,
			call: func(ctx context.Context, st *domain.SagaState) (Outcome, error) {
				slog.Warn("running failover handler", "tx_id", st.TxID)
				return Approved(), nil
			},
			decide: func(st *domain.SagaState, out Outcome) transition {
				return transition{domain.StatusTransactionFailed, "", outcomeHandling}
			},
		},
	}

	steps := make(map[string]step, len(table))
	for _, st := range table {
		steps[st.name] = st
	}
	return steps
}

// Submit starts a transfer saga keyed by txID and returns immediately. A
// second submission for the same txID is answered as a duplicate carrying
// the current status, without re-running any step.
func (s *Service) Submit(ctx context.Context, txID, from, to string, amount int64) (SubmitResult, error) {
	if txID == "" {
		return SubmitResult{}, fmt.Errorf("transaction id is required")
	}

	state := domain.NewSagaState(txID, domain.Transaction{From: from, To: to, Amount: amount})

	err := s.store.Create(ctx, state)
	if errors.Is(err, ErrDuplicate) {
		existing, getErr := s.store.Get(ctx, txID)
		if getErr != nil {
			return SubmitResult{}, fmt.Errorf("load duplicate saga %s: %w", txID, getErr)
		}
		slog.Info("duplicate submission", "tx_id", txID, "status", existing.Status)
		return SubmitResult{
			Status:        SubmitDuplicate,
			TxID:          txID,
			CurrentStatus: existing.Status,
			StartedAt:     existing.Started.UnixMilli(),
		}, nil
	}
	if err != nil {
		return SubmitResult{}, fmt.Errorf("create saga %s: %w", txID, err)
	}

	result := SubmitResult{
		Status:        SubmitReceived,
		TxID:          txID,
		CurrentStatus: state.Status,
		StartedAt:     state.Started.UnixMilli(),
	}

	slog.Info("transfer submitted", "tx_id", txID, "from", from, "to", to, "amount", amount)
	go s.run(state)

	return result, nil
}

// GetStatus returns the latest committed saga state.
func (s *Service) GetStatus(ctx context.Context, txID string) (*domain.SagaState, error) {
	return s.store.Get(ctx, txID)
}

// run drives the state machine to a terminal status. It owns state
// exclusively: steps execute strictly one after another and every
// transition is persisted before the next step begins.
func (s *Service) run(state *domain.SagaState) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SagaTimeout)
	defer cancel()

	current := stepValidate
	for current != "" {
		stp, ok := s.steps[current]
		if !ok {
			slog.Error("unknown step in transition table", "tx_id", state.TxID, "step", current)
			return
		}

		// The whole-saga deadline forces failover no matter which step
		// would run next.
		if ctx.Err() != nil && !stp.detached {
			slog.Warn("saga deadline elapsed", "tx_id", state.TxID, "at_step", current)
			current = stepFailover
			continue
		}

		out, err := execute(ctx, stp, state)
		if err != nil {
			state.LogStep(stp.name, outcomeFailed)

			next := stp.recoverTo
			if ctx.Err() != nil && !stp.detached {
				next = stepFailover
			} else if stp.failStatus != "" {
				state.Status = stp.failStatus
			}

			if next == "" || next == current {
				// The safety net itself failed; force the terminal status.
				state.Status = domain.StatusTransactionFailed
				state.Complete()
				s.persist(state)
				return
			}

			slog.Warn("step failed over", "tx_id", state.TxID, "step", stp.name, "recover_to", next, "error", err)
			s.persist(state)
			current = next
			continue
		}

		tr := stp.decide(state, out)
		state.LogStep(stp.name, tr.entry)
		state.Status = tr.status
		if tr.next == "" {
			state.Complete()
		}
		s.persist(state)
		current = tr.next
	}
}

// persist records the transition on its own context so a final state is
// still written after the saga deadline has elapsed.
func (s *Service) persist(state *domain.SagaState) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := s.store.Update(ctx, state); err != nil {
		slog.Error("failed to persist saga state",
			"tx_id", state.TxID, "status", state.Status, "error", err)
	}
}
