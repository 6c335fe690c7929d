package validator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateEmptyBuilderSucceeds(t *testing.T) {
	res := New().Evaluate(context.Background())
	assert.True(t, res.OK)
	assert.Empty(t, res.Reason)
}

func TestEvaluateAccumulateCollectsAllFailures(t *testing.T) {
	res := New().
		Rule(
			IsEmpty("", "first is required"),
			IsLtEqZero(0, "amount must be greater than 0"),
			IsEmpty("present", "never reported"),
			IsTrue(true, "always fails"),
		).
		Evaluate(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "first is required\namount must be greater than 0\nalways fails", res.Reason)
}

func TestEvaluateFailFastStopsAtFirstFailure(t *testing.T) {
	evaluated := false
	res := New().
		Rule(
			IsTrue(true, "first failure"),
			Rule{Fails: func() bool { evaluated = true; return true }, Message: "second failure"},
		).
		Mode(FailFast).
		Evaluate(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "first failure", res.Reason)
	assert.False(t, evaluated, "fail-fast must not evaluate later rules")
}

func TestEvaluateRemoteSkippedWhenLocalFails(t *testing.T) {
	called := false
	res := New().
		Rule(IsTrue(true, "local failure")).
		Remote(Exists(func(context.Context) (bool, error) {
			called = true
			return true, nil
		}, "remote failure")).
		Evaluate(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "local failure", res.Reason)
	assert.False(t, called, "remote checks only run when local checks pass")
}

func TestEvaluateRemoteAccumulate(t *testing.T) {
	res := New().
		Remote(
			Exists(func(context.Context) (bool, error) { return false, nil }, "source account not found"),
			Exists(func(context.Context) (bool, error) { return false, nil }, "destination account not found"),
		).
		Evaluate(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "source account not found\ndestination account not found", res.Reason)
}

func TestEvaluateRemoteFailFast(t *testing.T) {
	called := false
	res := New().
		Remote(
			Exists(func(context.Context) (bool, error) { return false, nil }, "first remote"),
			Exists(func(context.Context) (bool, error) { called = true; return true, nil }, "second remote"),
		).
		Mode(FailFast).
		Evaluate(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, "first remote", res.Reason)
	assert.False(t, called)
}

func TestEvaluateRemoteErrorBecomesServiceFailure(t *testing.T) {
	res := New().
		Remote(Exists(func(context.Context) (bool, error) {
			return false, errors.New("connection refused")
		}, "entity not found")).
		Evaluate(context.Background())

	assert.False(t, res.OK)
	assert.Equal(t, ServiceFailureMessage, res.Reason)
}

func TestEvaluateAllChecksPass(t *testing.T) {
	res := New().
		Rule(
			IsEmpty("value", "unused"),
			IsLtEqZero(10, "unused"),
			IsFalse(true, "unused"),
		).
		Remote(Exists(func(context.Context) (bool, error) { return true, nil }, "unused")).
		Evaluate(context.Background())

	assert.True(t, res.OK)
	assert.Empty(t, res.Reason)
}

func TestHelperRules(t *testing.T) {
	tests := []struct {
		name  string
		rule  Rule
		fails bool
	}{
		{"empty string fails IsEmpty", IsEmpty("", "m"), true},
		{"blank string fails IsEmpty", IsEmpty("   ", "m"), true},
		{"value passes IsEmpty", IsEmpty("x", "m"), false},
		{"value fails IsNotEmpty", IsNotEmpty("x", "m"), true},
		{"zero fails IsLtEqZero", IsLtEqZero(0, "m"), true},
		{"negative fails IsLtEqZero", IsLtEqZero(-5, "m"), true},
		{"positive passes IsLtEqZero", IsLtEqZero(1, "m"), false},
		{"zero passes IsLtZero", IsLtZero(0, "m"), false},
		{"negative fails IsLtZero", IsLtZero(-1, "m"), true},
		{"true fails IsTrue", IsTrue(true, "m"), true},
		{"false fails IsFalse", IsFalse(false, "m"), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.fails, tc.rule.Fails())
		})
	}
}
