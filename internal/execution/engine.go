// Package execution implements the deterministic order lifecycle and
// OHLC-based fill rules: order scheduling, latency-bar activation,
// market/limit/stop fills, the cost model, and the per-bar liquidity
// cap.
package execution

import (
	"go.uber.org/zap"

	"github.com/shopspring/decimal"

	"github.com/kairos-alloy/alloy/pkg/types"
)

var (
	one      = decimal.NewFromInt(1)
	bpsScale = decimal.NewFromInt(10000)
)

// bps converts a basis-points decimal to a fraction (e.g. 10 -> 0.001).
func bps(v decimal.Decimal) decimal.Decimal { return v.Div(bpsScale) }

// Engine tracks resting orders and fills them against each new bar in
// strict OHLC order. It never inspects bars beyond the one currently
// being processed.
type Engine struct {
	cfg    types.ExecSection
	costs  types.CostsSection
	log    *zap.Logger
	nextID int64
	resting []*types.Order
}

// New constructs an execution Engine.
func New(cfg types.ExecSection, costs types.CostsSection, log *zap.Logger) *Engine {
	return &Engine{cfg: cfg, costs: costs, log: log}
}

// Schedule enqueues a new order derived from a strategy action at
// submissionBar. The order activates latency_bars bars later and is
// not eligible to fill before then.
func (e *Engine) Schedule(side types.Side, qty decimal.Decimal, submissionBar int, strategyID, reason string) *types.Order {
	e.nextID++
	kind := e.cfg.BuyKind
	if side == types.SideSell {
		kind = e.cfg.SellKind
	}

	order := &types.Order{
		ID:            e.nextID,
		Side:          side,
		Kind:          kind,
		Qty:           qty,
		InitialQty:    qty,
		SubmissionBar: submissionBar,
		ActivationBar: submissionBar + e.cfg.LatencyBars,
		TIF:           e.cfg.TIF,
		Status:        types.OrderStatusScheduled,
		StrategyID:    strategyID,
		Reason:        reason,
	}
	if e.cfg.ExpireAfterBars != nil {
		exp := order.ActivationBar + *e.cfg.ExpireAfterBars
		order.ExpiryBar = &exp
	}
	e.resting = append(e.resting, order)
	return order
}

// Fill is one execution against a single order for the current bar.
type Fill struct {
	Order *types.Order
	Trade types.Trade
}

// LifecycleEventType enumerates the order-state transitions Process
// and CancelAll report back to the caller for the audit trail, for
// transitions that aren't a Fill.
type LifecycleEventType int

const (
	LifecycleActivated LifecycleEventType = iota
	LifecycleCanceled
	LifecycleExpired
)

// LifecycleEvent is one non-fill order-state transition produced while
// processing a bar.
type LifecycleEvent struct {
	OrderID int64
	Type    LifecycleEventType
	Reason  string
}

// Process advances all resting orders against bar at barIdx: it
// activates scheduled orders whose activation bar has arrived,
// resolves limit/stop trigger prices, applies TIF/expiry, attempts
// fills under the OHLC path, liquidity cap and (for buys) the cash
// cap, and returns the fills produced, plus the non-fill lifecycle
// events (activation, cancellation, expiry) so the caller can write a
// full audit trail. Terminal orders (filled/canceled/expired) are
// dropped from the resting book. cash is the portfolio's cash balance
// entering this bar (before any of this bar's fills); it is
// decremented locally as buy fills consume it so two orders active in
// the same bar cannot jointly overspend it.
func (e *Engine) Process(barIdx int, bar types.Bar, cash decimal.Decimal) ([]Fill, []LifecycleEvent) {
	var fills []Fill
	var events []LifecycleEvent
	var stillResting []*types.Order

	limitPrice, stopPrice := e.triggerPrices(bar)

	for _, order := range e.resting {
		if order.SubmissionBar == barIdx {
			// A same-bar submission waits for its ActivationBar like any
			// other order; with latency_bars = 0 it is eligible on this bar.
			if order.ActivationBar > barIdx {
				stillResting = append(stillResting, order)
				continue
			}
		}
		if order.ActivationBar > barIdx {
			stillResting = append(stillResting, order)
			continue
		}

		if order.Status == types.OrderStatusScheduled {
			order.Status = types.OrderStatusActive
			if order.Kind == types.OrderKindLimit && order.LimitPrice.IsZero() {
				order.LimitPrice = limitPrice[order.Side]
			}
			if order.Kind == types.OrderKindStop && order.StopPrice.IsZero() {
				order.StopPrice = stopPrice[order.Side]
			}
			events = append(events, LifecycleEvent{OrderID: order.ID, Type: LifecycleActivated})
		}

		if order.ExpiryBar != nil && barIdx > *order.ExpiryBar {
			order.Status = types.OrderStatusExpired
			events = append(events, LifecycleEvent{OrderID: order.ID, Type: LifecycleExpired, Reason: "past expire_after_bars"})
			continue
		}

		filled, fillPrice, ok := e.matchOrder(order, bar)
		if !ok {
			if order.TIF == types.TIFIOC || order.TIF == types.TIFFOK {
				order.Status = types.OrderStatusCanceled
				events = append(events, LifecycleEvent{OrderID: order.ID, Type: LifecycleCanceled, Reason: "unfilled at active bar under " + string(order.TIF)})
				continue
			}
			stillResting = append(stillResting, order)
			continue
		}

		fillQty := e.liquidityCappedQty(order, bar, filled)
		if order.Side == types.SideBuy {
			fillQty = e.cashCappedQty(fillQty, fillPrice, cash)
		}
		if order.TIF == types.TIFFOK && fillQty.LessThan(order.Qty) {
			order.Status = types.OrderStatusCanceled
			events = append(events, LifecycleEvent{OrderID: order.ID, Type: LifecycleCanceled, Reason: "fok: insufficient liquidity/cash for a full fill"})
			continue
		}
		if fillQty.IsZero() {
			if order.TIF == types.TIFIOC {
				order.Status = types.OrderStatusCanceled
				events = append(events, LifecycleEvent{OrderID: order.ID, Type: LifecycleCanceled, Reason: "ioc: zero fillable quantity"})
				continue
			}
			stillResting = append(stillResting, order)
			continue
		}

		trade := e.buildTrade(bar, order, fillQty, fillPrice)
		order.Qty = order.Qty.Sub(fillQty)
		fills = append(fills, Fill{Order: order, Trade: trade})
		if order.Side == types.SideBuy {
			cash = cash.Sub(trade.Qty.Mul(trade.Price).Add(trade.Fee))
		}

		if order.Qty.IsPositive() {
			if order.TIF == types.TIFIOC || order.TIF == types.TIFFOK {
				order.Status = types.OrderStatusCanceled
				events = append(events, LifecycleEvent{OrderID: order.ID, Type: LifecycleCanceled, Reason: "partial fill canceled under " + string(order.TIF)})
			} else {
				stillResting = append(stillResting, order)
			}
			continue
		}
		order.Status = types.OrderStatusFilled
	}

	e.resting = stillResting
	return fills, events
}

// triggerPrices resolves the offset-derived limit/stop reference
// prices for buy and sell orders submitted against this bar, using the
// configured price reference (open or close) and offset bps.
func (e *Engine) triggerPrices(bar types.Bar) (limit, stop map[types.Side]decimal.Decimal) {
	ref := bar.Close
	if e.cfg.PriceReference == "open" {
		ref = bar.Open
	}

	limitOff := bps(e.cfg.LimitOffsetBps)
	stopOff := bps(e.cfg.StopOffsetBps)

	limit = map[types.Side]decimal.Decimal{
		types.SideBuy:  ref.Mul(one.Sub(limitOff)),
		types.SideSell: ref.Mul(one.Add(limitOff)),
	}
	stop = map[types.Side]decimal.Decimal{
		types.SideBuy:  ref.Mul(one.Add(stopOff)),
		types.SideSell: ref.Mul(one.Sub(stopOff)),
	}
	return limit, stop
}

// matchOrder applies the deterministic OHLC fill rule for order's kind
// and side against bar. Returns the raw (pre-cost) execution price.
func (e *Engine) matchOrder(order *types.Order, bar types.Bar) (filled bool, price decimal.Decimal, ok bool) {
	switch order.Kind {
	case types.OrderKindMarket:
		ref := bar.Close
		if e.cfg.PriceReference == "open" {
			ref = bar.Open
		}
		return true, ref, true

	case types.OrderKindLimit:
		if order.Side == types.SideBuy {
			if bar.Low.LessThanOrEqual(order.LimitPrice) {
				return true, minDecimal(bar.Open, order.LimitPrice), true
			}
			return false, decimal.Zero, false
		}
		if bar.High.GreaterThanOrEqual(order.LimitPrice) {
			return true, maxDecimal(bar.Open, order.LimitPrice), true
		}
		return false, decimal.Zero, false

	case types.OrderKindStop:
		if order.Side == types.SideBuy {
			if bar.High.GreaterThanOrEqual(order.StopPrice) {
				return true, maxDecimal(bar.Open, order.StopPrice), true
			}
			return false, decimal.Zero, false
		}
		if bar.Low.LessThanOrEqual(order.StopPrice) {
			return true, minDecimal(bar.Open, order.StopPrice), true
		}
		return false, decimal.Zero, false
	}
	return false, decimal.Zero, false
}

// liquidityCappedQty returns the quantity of order that the bar's
// volume allows to fill, given max_fill_pct_of_volume. A zero
// max_fill_pct_of_volume or a zero-volume bar both suppress every fill
// (§8: "max_fill_pct_of_volume = 0 suppresses all fills"; "Volume=0
// bars yield no fills regardless of limit/stop conditions").
func (e *Engine) liquidityCappedQty(order *types.Order, bar types.Bar, wantFull bool) decimal.Decimal {
	if !wantFull {
		return decimal.Zero
	}
	if e.cfg.MaxFillPctOfVolume.IsZero() || bar.Volume.IsZero() {
		return decimal.Zero
	}
	cap := bar.Volume.Mul(e.cfg.MaxFillPctOfVolume)
	if cap.GreaterThanOrEqual(order.Qty) {
		return order.Qty
	}
	return cap
}

// cashCappedQty clamps a buy's fill quantity so that qty*price+fee
// never exceeds the cash available entering this bar (§4.3: "for BUY,
// clamped so that qty · price + fee ≤ cash"). rawPrice is the
// pre-cost-model match price; the affordability check uses the same
// executed price the fee and cash debit will ultimately be based on.
// When cash is the binding constraint, the resulting quantity is
// floored to avoid spending a fraction of cash the run doesn't have.
func (e *Engine) cashCappedQty(qty, rawPrice, cash decimal.Decimal) decimal.Decimal {
	execPrice := e.costAdjustedPrice(types.SideBuy, rawPrice)
	feeFactor := one.Add(bps(e.costs.FeeBps))
	denom := execPrice.Mul(feeFactor)
	if denom.IsZero() || cash.IsNegative() {
		return decimal.Zero
	}
	affordable := cash.Div(denom)
	if affordable.LessThan(qty) {
		if affordable.IsNegative() {
			return decimal.Zero
		}
		return affordable.Floor()
	}
	return qty
}

// costAdjustedPrice applies the spread+slippage bps adjustment from
// the cost model to a raw match price, without the fee (which is
// charged on notional, not folded into price).
func (e *Engine) costAdjustedPrice(side types.Side, rawPrice decimal.Decimal) decimal.Decimal {
	spreadAdj := bps(e.cfg.SpreadBps.Div(decimal.NewFromInt(2)))
	slipAdj := bps(e.costs.SlippageBps)
	if side == types.SideBuy {
		return rawPrice.Mul(one.Add(spreadAdj).Add(slipAdj))
	}
	return rawPrice.Mul(one.Sub(spreadAdj).Sub(slipAdj))
}

// buildTrade applies the cost model (spread + slippage + fee, all in
// bps) to the raw match price and produces the resulting Trade.
func (e *Engine) buildTrade(bar types.Bar, order *types.Order, qty, rawPrice decimal.Decimal) types.Trade {
	execPrice := e.costAdjustedPrice(order.Side, rawPrice)
	notional := qty.Mul(execPrice)
	fee := notional.Mul(bps(e.costs.FeeBps)).Abs()
	slippageCost := qty.Mul(rawPrice.Sub(execPrice)).Abs()

	return types.Trade{
		TimestampUTC: bar.TimestampUTC,
		Side:         order.Side,
		Qty:          qty,
		Price:        execPrice,
		Fee:          fee,
		Slippage:     slippageCost,
		StrategyID:   order.StrategyID,
		Reason:       order.Reason,
	}
}

// CancelAll cancels every resting order — used when the portfolio
// trips its drawdown halt — and returns the lifecycle events produced
// so the caller can audit-log them.
func (e *Engine) CancelAll(reason string) []LifecycleEvent {
	events := make([]LifecycleEvent, 0, len(e.resting))
	for _, o := range e.resting {
		o.Status = types.OrderStatusCanceled
		events = append(events, LifecycleEvent{OrderID: o.ID, Type: LifecycleCanceled, Reason: reason})
	}
	e.resting = nil
	return events
}

// Resting returns the orders still awaiting activation or a fill.
func (e *Engine) Resting() []*types.Order { return e.resting }

func minDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func maxDecimal(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
