package saga

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/niharmallik/sagapay/internal/core/domain"
)

// stepCall invokes the step's collaborator with whatever request it builds
// from the current state.
type stepCall func(ctx context.Context, state *domain.SagaState) (Outcome, error)

// transition is one row's target in the state-machine table: the status to
// record, the next step to run ("" ends the saga) and the history entry
// for the attempt.
type transition struct {
	status domain.Status
	next   string
	entry  string
}

// step is one row of the state-machine table. failStatus, when set, is
// recorded before routing to recoverTo on retry exhaustion.
type step struct {
	name       string
	timeout    time.Duration
	maxRetries int
	recoverTo  string
	failStatus domain.Status
	detached   bool // run even after the whole-saga deadline elapsed
	call       stepCall
	decide     func(state *domain.SagaState, out Outcome) transition
}

// execute runs the step's call under its timeout, retrying execution
// failures up to maxRetries with no backoff. Business outcomes are never
// retried. The returned error means retries are exhausted (or the saga
// deadline elapsed) and the driver must route to the recovery target.
func execute(ctx context.Context, s step, state *domain.SagaState) (Outcome, error) {
	var lastErr error

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying step",
				"tx_id", state.TxID, "step", s.name,
				"attempt", attempt, "max_retries", s.maxRetries,
				"error", lastErr)
		}

		out, err := invoke(ctx, s, state)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil && !s.detached {
			// Whole-saga deadline elapsed; further retries are pointless.
			break
		}
	}

	return Outcome{}, fmt.Errorf("step %s exhausted retries: %w", s.name, lastErr)
}

// invoke runs a single attempt. The call executes in its own goroutine so
// a collaborator that never answers is abandoned once the step timeout
// elapses; the saga does not wait for it.
func invoke(ctx context.Context, s step, state *domain.SagaState) (Outcome, error) {
	if s.detached {
		ctx = context.Background()
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		out Outcome
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := s.call(cctx, state)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return Outcome{}, fmt.Errorf("step %s: %w", s.name, r.err)
		}
		return r.out, nil
	case <-cctx.Done():
		return Outcome{}, fmt.Errorf("step %s: %w", s.name, cctx.Err())
	}
}
