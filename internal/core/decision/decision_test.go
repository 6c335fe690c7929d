package decision_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niharmallik/sagapay/internal/adapter/storage"
	"github.com/niharmallik/sagapay/internal/core/decision"
	"github.com/niharmallik/sagapay/internal/core/ledger"
	"github.com/niharmallik/sagapay/internal/core/saga"
)

func newCollaborators(t *testing.T, sanctioned []string) (*decision.Service, *ledger.Service) {
	t.Helper()
	accounts := ledger.NewService(storage.NewMemoryEventStore())
	return decision.New(accounts, sanctioned), accounts
}

func TestValidateAccumulatesFieldFailures(t *testing.T) {
	svc, _ := newCollaborators(t, nil)

	out, err := svc.Validate(context.Background(), saga.ValidateRequest{
		TxID:   "",
		From:   "",
		To:     "acc-b",
		Amount: 0,
	})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t,
		"transaction id is required\ntransaction amount must be greater than 0\nsource account is required",
		out.Reason)
}

func TestValidateReportsBothMissingAccounts(t *testing.T) {
	svc, _ := newCollaborators(t, nil)

	out, err := svc.Validate(context.Background(), saga.ValidateRequest{
		TxID:   "tx-1",
		From:   "acc-a",
		To:     "acc-b",
		Amount: 10,
	})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, "source account not found\ndestination account not found", out.Reason)
}

func TestValidateApprovesExistingAccounts(t *testing.T) {
	svc, accounts := newCollaborators(t, nil)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, "acc-a", 100))
	require.NoError(t, accounts.Create(ctx, "acc-b", 100))

	out, err := svc.Validate(ctx, saga.ValidateRequest{
		TxID: "tx-1", From: "acc-a", To: "acc-b", Amount: 10,
	})
	require.NoError(t, err)
	assert.True(t, out.Approved)
}

func TestCheckSanctionsDenyList(t *testing.T) {
	svc, _ := newCollaborators(t, []string{"acc-bad"})
	ctx := context.Background()

	out, err := svc.CheckSanctions(ctx, saga.SanctionRequest{TxID: "tx-1", From: "acc-a", To: "acc-b"})
	require.NoError(t, err)
	assert.True(t, out.Approved)

	out, err = svc.CheckSanctions(ctx, saga.SanctionRequest{TxID: "tx-1", From: "acc-bad", To: "acc-b"})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, "source account [acc-bad] is sanctioned", out.Reason)

	out, err = svc.CheckSanctions(ctx, saga.SanctionRequest{TxID: "tx-1", From: "acc-a", To: "acc-bad"})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, "destination account [acc-bad] is sanctioned", out.Reason)
}

func TestVerifyLiquidity(t *testing.T) {
	svc, accounts := newCollaborators(t, nil)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, "acc-a", 50))

	out, err := svc.VerifyLiquidity(ctx, saga.LiquidityRequest{TxID: "tx-1", Account: "acc-a", Amount: 50})
	require.NoError(t, err)
	assert.True(t, out.Approved)

	out, err = svc.VerifyLiquidity(ctx, saga.LiquidityRequest{TxID: "tx-1", Account: "acc-a", Amount: 51})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, "source account funds not available", out.Reason)

	out, err = svc.VerifyLiquidity(ctx, saga.LiquidityRequest{TxID: "tx-1", Account: "acc-a", Amount: 0})
	require.NoError(t, err)
	assert.False(t, out.Approved)
	assert.Equal(t, "amount must be greater than 0", out.Reason)
}

func TestPostRejectionsAreOutcomesNotErrors(t *testing.T) {
	svc, accounts := newCollaborators(t, nil)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, "acc-a", 5))

	out, err := svc.Post(ctx, saga.PostingRequest{TxID: "tx-1", Account: "acc-a", Amount: 10})
	require.NoError(t, err, "an invariant violation is a rejection, not an execution failure")
	assert.False(t, out.Approved)
	assert.Equal(t, ledger.ErrInsufficientFunds.Error(), out.Reason)

	out, err = svc.Post(ctx, saga.PostingRequest{TxID: "tx-1", Account: "ghost", Amount: 10})
	require.NoError(t, err)
	assert.False(t, out.Approved)

	out, err = svc.Post(ctx, saga.PostingRequest{TxID: "tx-1", Account: "acc-a", Amount: 5})
	require.NoError(t, err)
	assert.True(t, out.Approved)

	balance, err := accounts.Get(ctx, "acc-a")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestClearAndReverseCreditAccounts(t *testing.T) {
	svc, accounts := newCollaborators(t, nil)
	ctx := context.Background()
	require.NoError(t, accounts.Create(ctx, "acc-a", 100))
	require.NoError(t, accounts.Create(ctx, "acc-b", 0))

	out, err := svc.Clear(ctx, saga.ClearingRequest{TxID: "tx-1", Account: "acc-b", Amount: 25})
	require.NoError(t, err)
	assert.True(t, out.Approved)

	out, err = svc.Reverse(ctx, saga.ReversalRequest{TxID: "tx-1", Account: "acc-a", Amount: 25})
	require.NoError(t, err)
	assert.True(t, out.Approved)

	balanceA, err := accounts.Get(ctx, "acc-a")
	require.NoError(t, err)
	assert.Equal(t, int64(125), balanceA)

	balanceB, err := accounts.Get(ctx, "acc-b")
	require.NoError(t, err)
	assert.Equal(t, int64(25), balanceB)
}

func TestClearMissingDestinationIsRejected(t *testing.T) {
	svc, _ := newCollaborators(t, nil)

	out, err := svc.Clear(context.Background(), saga.ClearingRequest{TxID: "tx-1", Account: "ghost", Amount: 25})
	require.NoError(t, err)
	assert.False(t, out.Approved)
}
