// Package kairoserr provides the stable, machine-readable error
// taxonomy used across the kernel. Callers classify failures by Kind
// to decide exit codes and run status without string matching.
package kairoserr

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the stable classification of a kernel failure.
type Kind string

const (
	KindConfig             Kind = "config"
	KindDataQuality        Kind = "data_quality"
	KindAgent              Kind = "agent"
	KindInvariantViolation Kind = "invariant_violation"
	KindRiskHalted         Kind = "risk_halted"
	KindOrderRejected      Kind = "order_rejected"
	KindIO                 Kind = "io"
)

// Error is a taxonomy-tagged error that still composes with errors.Is/As.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a taxonomy error wrapping err with op context.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a taxonomy error from a format string.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Config wraps err as a KindConfig error.
func Config(op string, err error) *Error { return New(KindConfig, op, err) }

// DataQuality wraps err as a KindDataQuality error.
func DataQuality(op string, err error) *Error { return New(KindDataQuality, op, err) }

// Agent wraps err as a KindAgent error.
func Agent(op string, err error) *Error { return New(KindAgent, op, err) }

// Invariant wraps err as a KindInvariantViolation error.
func Invariant(op string, err error) *Error { return New(KindInvariantViolation, op, err) }

// RiskHalted wraps err as a KindRiskHalted error.
func RiskHalted(op string, err error) *Error { return New(KindRiskHalted, op, err) }

// OrderRejected wraps err as a KindOrderRejected error: a single order
// failed its pre-trade check (position or exposure limit) without
// putting the book into a halted state.
func OrderRejected(op string, err error) *Error { return New(KindOrderRejected, op, err) }

// IO wraps err as a KindIO error.
func IO(op string, err error) *Error { return New(KindIO, op, err) }

// KindOf extracts the taxonomy Kind from err, walking the unwrap chain.
// Returns ("", false) when err carries no *Error in its chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// ExitCode maps a terminal error (or nil, for success) to the process
// exit code documented in SPEC_FULL.md §6: 0 success, 1 user error
// (config/data validation), 2 runtime/agent fatal, 3 data-quality
// strict failure, 130 user-initiated cancellation.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	kind, ok := KindOf(err)
	if !ok {
		return 1
	}
	switch kind {
	case KindConfig:
		return 1
	case KindDataQuality:
		return 3
	case KindRiskHalted:
		return 0 // a risk halt is a valid, non-error terminal run status
	case KindOrderRejected:
		return 0 // a single rejected order does not fail the run
	case KindAgent, KindInvariantViolation, KindIO:
		return 2
	default:
		return 1
	}
}
