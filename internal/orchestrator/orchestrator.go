// Package orchestrator drives the deterministic per-bar loop: for
// every bar, in strict order, it (1) runs the execution engine against
// the new bar, (2) updates features and takes a portfolio snapshot,
// (3) calls the strategy port, (4) runs the pre-trade risk check and
// schedules any resulting order, (5) records the equity curve, and
// (6) writes the bar's closing bar_processed audit event. Events from
// the earlier steps go to the audit sink as they occur, in emission
// order. This order is the kernel's
// determinism guarantee: nothing may read ahead of the bar it is
// processing.
package orchestrator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kairos-alloy/alloy/internal/audit"
	"github.com/kairos-alloy/alloy/internal/execution"
	"github.com/kairos-alloy/alloy/internal/features"
	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/internal/portfolio"
	"github.com/kairos-alloy/alloy/internal/strategy"
	"github.com/kairos-alloy/alloy/internal/telemetry"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// ProgressFunc receives a snapshot after each bar is fully processed.
type ProgressFunc func(barIdx int, totalBars int, equity types.EquityPoint)

// Orchestrator wires the feature pipeline, strategy port, execution
// engine, portfolio book, and audit sink together and drives the bar
// loop.
type Orchestrator struct {
	RunID string

	pipeline  *features.Pipeline
	strat     strategy.Strategy
	engine    *execution.Engine
	book      *portfolio.Book
	sizeMode  types.SizeMode
	sink      *audit.Sink
	telemetry *telemetry.Registry
	log       *zap.Logger
	onProgress ProgressFunc
}

// Config bundles the dependencies Orchestrator needs, already
// constructed by the caller (cmd/kairos).
type Config struct {
	Pipeline   *features.Pipeline
	Strategy   strategy.Strategy
	Engine     *execution.Engine
	Book       *portfolio.Book
	SizeMode   types.SizeMode
	Sink       *audit.Sink
	Telemetry  *telemetry.Registry
	Log        *zap.Logger
	OnProgress ProgressFunc
}

// New constructs an Orchestrator with a fresh run ID.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		RunID:      uuid.NewString(),
		pipeline:   cfg.Pipeline,
		strat:      cfg.Strategy,
		engine:     cfg.Engine,
		book:       cfg.Book,
		sizeMode:   cfg.SizeMode,
		sink:       cfg.Sink,
		telemetry:  cfg.Telemetry,
		log:        cfg.Log,
		onProgress: cfg.OnProgress,
	}
}

// Result is the orchestrator's output once the bar loop completes.
type Result struct {
	Status types.RunStatus
	Trades []types.Trade
	Equity []types.EquityPoint
}

// Run processes every bar in order, applying the six-step per-bar
// loop. If the portfolio's risk latch trips, trading is forced to
// HOLD for the remainder of the run but the loop still runs to
// completion over every bar, recording one equity point each; the
// returned Result.Status is RunStatusHaltedRisk rather than OK.
func (o *Orchestrator) Run(ctx context.Context, bars []types.Bar) (Result, error) {
	result := Result{Status: types.RunStatusOK}

	for i, bar := range bars {
		if err := ctx.Err(); err != nil {
			return result, kairoserr.IO("orchestrator.Run", err)
		}

		start := time.Now()

		// Step 1: execution against the new bar. Cash is snapshotted
		// before any of this bar's fills so buy orders cannot spend
		// more than the portfolio actually holds entering the bar.
		fills, lifecycleEvents := o.engine.Process(i, bar, o.book.State().Cash)
		for _, f := range fills {
			trade, err := o.book.ApplyFill(f.Trade)
			if err != nil {
				return result, err
			}
			result.Trades = append(result.Trades, trade)
			if o.telemetry != nil {
				o.telemetry.FillsTotal.Inc()
			}
			partial := f.Order.Qty.IsPositive()
			if o.sink != nil {
				_ = o.sink.Write(audit.DomainEvent{
					Type: audit.EventTradeExecuted, BarIndex: i, TimestampUTC: bar.TimestampUTC,
					OrderID: f.Order.ID, Trade: &trade, Partial: partial,
				})
				_ = o.sink.Write(audit.DomainEvent{
					Type: audit.EventOrderFilled, BarIndex: i, TimestampUTC: bar.TimestampUTC,
					OrderID: f.Order.ID, Trade: &trade, Partial: partial,
				})
			}
		}
		o.writeLifecycleEvents(i, bar, lifecycleEvents)

		// Step 2: features + portfolio snapshot.
		obs, err := o.pipeline.Observe(bar)
		if err != nil {
			return result, err
		}
		pv := o.book.Snapshot(bar.Close)

		// Step 3: strategy call.
		action, err := o.strat.Decide(ctx, bar, obs, pv)
		if err != nil {
			return result, kairoserr.Agent("orchestrator.Run", err)
		}
		if src, ok := o.strat.(strategy.EventSource); ok {
			o.writeAgentEvents(i, bar, src.DrainEvents())
		}

		// Step 4: pre-trade risk check + order scheduling. A position
		// or exposure breach (KindOrderRejected) only rejects this one
		// order; only a genuine drawdown trip (KindRiskHalted) cancels
		// resting orders and marks the run halted.
		if action.Type != types.ActionHold && !o.book.Halted() {
			qty := o.resolveQty(action, pv, bar.Close)
			side := types.SideBuy
			if action.Type == types.ActionSell {
				side = types.SideSell
			}

			if !qty.IsZero() {
				if rerr := o.book.PreTradeCheck(side, qty, bar.Close); rerr != nil {
					kind, _ := kairoserr.KindOf(rerr)
					switch kind {
					case kairoserr.KindRiskHalted:
						o.haltAndCancel(i, bar, rerr.Error())
					case kairoserr.KindOrderRejected:
						if o.sink != nil {
							_ = o.sink.Write(audit.DomainEvent{Type: audit.EventOrderRejected, BarIndex: i, TimestampUTC: bar.TimestampUTC, Reason: rerr.Error()})
						}
						if o.log != nil {
							o.log.Info("order rejected by pre-trade check", zap.Int("bar", i), zap.Error(rerr))
						}
					default:
						return result, rerr
					}
				} else {
					order := o.engine.Schedule(side, qty, i, o.strat.Name(), action.Reason)
					if o.sink != nil {
						_ = o.sink.Write(audit.DomainEvent{Type: audit.EventOrderScheduled, BarIndex: i, TimestampUTC: bar.TimestampUTC, OrderID: order.ID, Reason: action.Reason})
					}
				}
			}
		}

		// Step 5: equity recording. Drawdown is checked every bar,
		// independent of whether a new order was proposed this bar,
		// so the halt latch reacts to a collapsing mark price alone.
		if !o.book.Halted() {
			o.book.UpdateDrawdown(bar.Close)
			if o.book.Halted() {
				o.haltAndCancel(i, bar, "max drawdown exceeded")
			}
		}

		state := o.book.State()
		eq := types.EquityPoint{
			TimestampUTC:  bar.TimestampUTC,
			Equity:        state.Equity(bar.Close),
			Cash:          state.Cash,
			PositionQty:   state.PositionQty,
			UnrealizedPnL: state.UnrealizedPnL(bar.Close),
			RealizedPnL:   state.RealizedPnL,
		}
		result.Equity = append(result.Equity, eq)

		// Step 6: audit flush.
		if o.sink != nil {
			_ = o.sink.Write(audit.DomainEvent{Type: audit.EventBarProcessed, BarIndex: i, TimestampUTC: bar.TimestampUTC, Equity: &eq})
		}

		if o.telemetry != nil {
			o.telemetry.ObserveBar(time.Since(start))
		}
		if o.onProgress != nil {
			o.onProgress(i, len(bars), eq)
		}

		if o.book.Halted() {
			result.Status = types.RunStatusHaltedRisk
		}
	}

	return result, nil
}

// haltAndCancel records the risk-halt audit event and metric, then
// cancels every resting order. It must only be called for a genuine
// drawdown trip, not for an ordinary position/exposure rejection.
func (o *Orchestrator) haltAndCancel(barIdx int, bar types.Bar, reason string) {
	if o.sink != nil {
		_ = o.sink.Write(audit.DomainEvent{Type: audit.EventRiskHalted, BarIndex: barIdx, TimestampUTC: bar.TimestampUTC, Reason: reason})
	}
	if o.telemetry != nil {
		o.telemetry.RiskHalted.Set(1)
	}
	o.writeLifecycleEvents(barIdx, bar, o.engine.CancelAll(reason))
}

// writeLifecycleEvents translates execution.LifecycleEvents into
// audit.DomainEvents and flushes them to the sink.
func (o *Orchestrator) writeLifecycleEvents(barIdx int, bar types.Bar, events []execution.LifecycleEvent) {
	if o.sink == nil {
		return
	}
	for _, e := range events {
		var t audit.EventType
		switch e.Type {
		case execution.LifecycleActivated:
			t = audit.EventOrderActivated
		case execution.LifecycleExpired:
			t = audit.EventOrderExpired
		default:
			t = audit.EventOrderCanceled
		}
		_ = o.sink.Write(audit.DomainEvent{Type: t, BarIndex: barIdx, TimestampUTC: bar.TimestampUTC, OrderID: e.OrderID, Reason: e.Reason})
	}
}

// writeAgentEvents translates strategy.Events drained from an
// EventSource strategy (the remote agent client) into audit.DomainEvents.
func (o *Orchestrator) writeAgentEvents(barIdx int, bar types.Bar, events []strategy.Event) {
	if o.sink == nil {
		return
	}
	for _, e := range events {
		var t audit.EventType
		switch e.Kind {
		case strategy.EventAgentCallAttempted:
			t = audit.EventAgentCallAttempted
		default:
			t = audit.EventAgentFallback
		}
		_ = o.sink.Write(audit.DomainEvent{Type: t, BarIndex: barIdx, TimestampUTC: bar.TimestampUTC, Reason: e.Reason})
	}
}

// resolveQty converts an Action's Size into an absolute quantity per
// the configured size_mode. For SELL in pct_equity mode, size is a
// fraction of the held position, clamped to the full position for
// size > 1.0 (open question resolved in SPEC_FULL.md/DESIGN.md).
func (o *Orchestrator) resolveQty(action types.Action, pv types.PortfolioView, markPrice decimal.Decimal) decimal.Decimal {
	size := decimal.NewFromFloat(action.Size)

	switch o.sizeMode {
	case types.SizeModeQty:
		return size
	case types.SizeModePctEquity:
		if action.Type == types.ActionSell {
			if size.GreaterThan(decimal.NewFromInt(1)) {
				size = decimal.NewFromInt(1)
			}
			return pv.PositionQty.Mul(size)
		}
		if markPrice.IsZero() {
			return decimal.Zero
		}
		return pv.Equity.Mul(size).Div(markPrice)
	default:
		return size
	}
}
