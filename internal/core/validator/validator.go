// Package validator is a small rule-evaluation combinator used by the
// decision collaborators. It composes pure local checks with remote
// existence/approval checks and reports either success or the joined
// failure reasons, so a collaborator can always answer with a plain
// Approved/Rejected outcome.
package validator

import (
	"context"
	"log/slog"
	"strings"
)

// Mode selects how checks are evaluated.
type Mode int

const (
	// Accumulate evaluates every check and collects all failures.
	Accumulate Mode = iota
	// FailFast stops at the first failure.
	FailFast
)

// ServiceFailureMessage replaces the rule message when a remote check
// errors instead of answering. The combinator is total: remote errors
// never propagate to the caller.
const ServiceFailureMessage = "service check failed"

// Rule is a pure local check. Fails must not perform I/O.
type Rule struct {
	Fails   func() bool
	Message string
}

// Remote is an asynchronous check whose affirmative answer is interpreted
// as existence or approval.
type Remote struct {
	Call    func(ctx context.Context) (bool, error)
	Message string
}

// Result is the combinator's total outcome.
type Result struct {
	OK     bool
	Reason string
}

// Builder accumulates checks; evaluate with Evaluate.
type Builder struct {
	rules   []Rule
	remotes []Remote
	mode    Mode
}

// New returns an empty builder in Accumulate mode.
func New() *Builder {
	return &Builder{}
}

// Rule appends local checks in evaluation order.
func (b *Builder) Rule(rules ...Rule) *Builder {
	b.rules = append(b.rules, rules...)
	return b
}

// Remote appends remote checks. Remote checks only run when every local
// check passed.
func (b *Builder) Remote(checks ...Remote) *Builder {
	b.remotes = append(b.remotes, checks...)
	return b
}

// Mode sets the evaluation mode.
func (b *Builder) Mode(m Mode) *Builder {
	b.mode = m
	return b
}

// Evaluate runs the checks. Local checks run first; remote checks run only
// if no local check failed. Failure messages are newline-joined in
// evaluation order.
func (b *Builder) Evaluate(ctx context.Context) Result {
	if len(b.rules) == 0 && len(b.remotes) == 0 {
		return Result{OK: true}
	}

	var reasons []string

	for _, r := range b.rules {
		if r.Fails() {
			reasons = append(reasons, r.Message)
			if b.mode == FailFast {
				break
			}
		}
	}

	if len(reasons) == 0 {
		for _, r := range b.remotes {
			ok, err := r.Call(ctx)
			if err != nil {
				slog.Error("remote check failed to answer", "error", err)
				reasons = append(reasons, ServiceFailureMessage)
			} else if !ok {
				reasons = append(reasons, r.Message)
			}
			if len(reasons) > 0 && b.mode == FailFast {
				break
			}
		}
	}

	if len(reasons) == 0 {
		return Result{OK: true}
	}

	return Result{Reason: strings.Join(reasons, "\n")}
}

// IsEmpty fails when s is blank. Used for required fields.
func IsEmpty(s, message string) Rule {
	return Rule{Fails: func() bool { return strings.TrimSpace(s) == "" }, Message: message}
}

// IsNotEmpty fails when s is non-blank.
func IsNotEmpty(s, message string) Rule {
	return Rule{Fails: func() bool { return strings.TrimSpace(s) != "" }, Message: message}
}

// IsTrue fails when cond is true.
func IsTrue(cond bool, message string) Rule {
	return Rule{Fails: func() bool { return cond }, Message: message}
}

// IsFalse fails when cond is false.
func IsFalse(cond bool, message string) Rule {
	return Rule{Fails: func() bool { return !cond }, Message: message}
}

// IsLtEqZero fails when n <= 0.
func IsLtEqZero(n int64, message string) Rule {
	return Rule{Fails: func() bool { return n <= 0 }, Message: message}
}

// IsLtZero fails when n < 0.
func IsLtZero(n int64, message string) Rule {
	return Rule{Fails: func() bool { return n < 0 }, Message: message}
}

// Exists wraps a remote call whose true answer means the checked entity
// exists or approves.
func Exists(call func(ctx context.Context) (bool, error), message string) Remote {
	return Remote{Call: call, Message: message}
}
