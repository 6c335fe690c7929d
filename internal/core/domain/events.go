package domain

// AccountEvent is one committed fact in an account's event log. Events are
// immutable and the log is the sole source of truth for the balance.
type AccountEvent interface {
	Kind() string
}

const (
	KindAccountCreated = "account-created"
	KindFundsDeposited = "funds-deposited"
	KindFundsWithdrawn = "funds-withdrawn"
)

// AccountCreated opens the account with its initial balance.
type AccountCreated struct {
	ID             string `json:"id"`
	InitialBalance int64  `json:"initial_balance"`
}

func (AccountCreated) Kind() string { return KindAccountCreated }

// FundsDeposited records a credit. PrevBalance is kept so the log is
// auditable without replaying from the start.
type FundsDeposited struct {
	NewBalance  int64 `json:"new_balance"`
	PrevBalance int64 `json:"prev_balance"`
}

func (FundsDeposited) Kind() string { return KindFundsDeposited }

// FundsWithdrawn records a debit.
type FundsWithdrawn struct {
	NewBalance  int64 `json:"new_balance"`
	PrevBalance int64 `json:"prev_balance"`
}

func (FundsWithdrawn) Kind() string { return KindFundsWithdrawn }
