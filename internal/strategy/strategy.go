// Package strategy defines the strategy port the orchestrator calls
// once per bar, plus the built-in baseline strategies used when no
// remote agent is configured.
package strategy

import (
	"context"

	"github.com/kairos-alloy/alloy/pkg/types"
)

// Strategy is the per-bar decision port. Implementations must be pure
// functions of the observation and portfolio view they are given; they
// must never read ahead of the current bar.
type Strategy interface {
	// Decide returns the action for the current bar. ctx carries the
	// run's deadline/cancellation only; implementations must not start
	// goroutines that outlive the call.
	Decide(ctx context.Context, bar types.Bar, obs types.Observation, pv types.PortfolioView) (types.Action, error)

	// Name identifies the strategy for audit records.
	Name() string
}

// EventKind enumerates the strategy-internal events a Strategy can
// surface to the orchestrator's audit trail beyond its returned Action.
type EventKind int

const (
	EventAgentCallAttempted EventKind = iota
	EventAgentFallbackApplied
)

// Event is one strategy-internal occurrence worth auditing, e.g. a
// remote agent call attempt or a fallback decision.
type Event struct {
	Kind   EventKind
	Reason string
}

// EventSource is an optional capability a Strategy may implement to
// surface Events produced by its most recent Decide call. Only
// agentclient.Client implements it today; the built-in strategies have
// nothing beyond their returned Action to report.
type EventSource interface {
	// DrainEvents returns and clears the events accumulated since the
	// last call.
	DrainEvents() []Event
}

// BuyAndHold emits a single BUY of size 1.0 on the first bar it may act
// on and holds for the remainder of the run; the resulting quantity
// follows orders.size_mode.
type BuyAndHold struct {
	skipWarmup bool
	bought     bool
}

// NewBuyAndHold constructs a BuyAndHold strategy. When skipWarmup is
// true (features.skip_warmup, default true) the strategy holds until
// the feature pipeline reports the observation valid; when false it
// may act during warmup.
func NewBuyAndHold(skipWarmup bool) *BuyAndHold { return &BuyAndHold{skipWarmup: skipWarmup} }

func (s *BuyAndHold) Name() string { return "buy_and_hold" }

func (s *BuyAndHold) Decide(_ context.Context, _ types.Bar, obs types.Observation, pv types.PortfolioView) (types.Action, error) {
	if (!obs.Valid && s.skipWarmup) || s.bought || !pv.PositionQty.IsZero() {
		if !s.bought && !pv.PositionQty.IsZero() {
			s.bought = true
		}
		return types.Action{Type: types.ActionHold, Reason: "buy_and_hold: position already established"}, nil
	}
	s.bought = true
	return types.Action{Type: types.ActionBuy, Size: 1.0, Confidence: 1.0, Reason: "buy_and_hold: initial entry"}, nil
}

// SmaCrossover buys when the fast SMA crosses above the slow SMA and
// sells when it crosses below, reading the fast and slow SMA values at
// the observation vector indices it was constructed with.
type SmaCrossover struct {
	fastIdx, slowIdx  int
	skipWarmup        bool
	prevFastAboveSlow *bool
}

// NewSmaCrossover constructs a crossover strategy reading the fast/slow
// SMA values at the given observation vector indices. skipWarmup mirrors
// features.skip_warmup: when true, the strategy holds while obs.Valid is
// false; when false, it evaluates the crossover as soon as the slow
// index is populated even if other feature columns are still warming up.
func NewSmaCrossover(fastIdx, slowIdx int, skipWarmup bool) *SmaCrossover {
	return &SmaCrossover{fastIdx: fastIdx, slowIdx: slowIdx, skipWarmup: skipWarmup}
}

func (s *SmaCrossover) Name() string { return "sma_crossover" }

func (s *SmaCrossover) Decide(_ context.Context, _ types.Bar, obs types.Observation, pv types.PortfolioView) (types.Action, error) {
	if len(obs.Values) <= s.slowIdx || (!obs.Valid && s.skipWarmup) {
		return types.Action{Type: types.ActionHold, Reason: "sma_crossover: warmup"}, nil
	}

	fast := obs.Values[s.fastIdx]
	slow := obs.Values[s.slowIdx]
	aboveNow := fast > slow

	defer func() { s.prevFastAboveSlow = &aboveNow }()

	if s.prevFastAboveSlow == nil {
		return types.Action{Type: types.ActionHold, Reason: "sma_crossover: no prior crossing state"}, nil
	}

	switch {
	case aboveNow && !*s.prevFastAboveSlow && pv.PositionQty.IsZero():
		return types.Action{Type: types.ActionBuy, Size: 1.0, Confidence: 1.0, Reason: "sma_crossover: fast crossed above slow"}, nil
	case !aboveNow && *s.prevFastAboveSlow && !pv.PositionQty.IsZero():
		return types.Action{Type: types.ActionSell, Size: 1.0, Confidence: 1.0, Reason: "sma_crossover: fast crossed below slow"}, nil
	default:
		return types.Action{Type: types.ActionHold, Reason: "sma_crossover: no new crossing"}, nil
	}
}
