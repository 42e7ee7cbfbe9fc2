// Package portfolio maintains the single-asset, long-only cash and
// position book, applies pre-trade risk checks, and latches a
// risk halt once tripped.
package portfolio

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// Book tracks cash, position quantity and cost-basis average price,
// and peak equity for drawdown checks.
type Book struct {
	limits     types.RiskLimits
	log        *zap.Logger
	state      types.Portfolio
	peakEquity decimal.Decimal
	halted     bool
}

// New constructs a Book seeded with the run's initial capital.
func New(initialCapital decimal.Decimal, limits types.RiskLimits, log *zap.Logger) *Book {
	return &Book{
		limits:     limits,
		log:        log,
		state:      types.Portfolio{Cash: initialCapital},
		peakEquity: initialCapital,
	}
}

// Snapshot returns the read-only view passed to the strategy port.
func (b *Book) Snapshot(markPrice decimal.Decimal) types.PortfolioView {
	return types.PortfolioView{
		Cash:             b.state.Cash,
		PositionQty:      b.state.PositionQty,
		PositionAvgPrice: b.state.PositionAvgPrice,
		Equity:           b.state.Equity(markPrice),
	}
}

// Halted reports whether the risk latch has tripped; once true it
// remains true for the rest of the run.
func (b *Book) Halted() bool { return b.halted }

// ApplyFill folds a trade into the book's cash/position cost basis. A
// BUY increases position qty and blends the average price with fees
// included; a SELL decreases qty and realizes PnL against the existing
// average price. Returns the updated Trade with RealizedPnL set.
func (b *Book) ApplyFill(trade types.Trade) (types.Trade, error) {
	switch trade.Side {
	case types.SideBuy:
		cost := trade.Qty.Mul(trade.Price).Add(trade.Fee)
		b.state.Cash = b.state.Cash.Sub(cost)

		totalQty := b.state.PositionQty.Add(trade.Qty)
		if totalQty.IsZero() {
			b.state.PositionAvgPrice = decimal.Zero
		} else {
			totalCost := b.state.PositionQty.Mul(b.state.PositionAvgPrice).Add(cost)
			b.state.PositionAvgPrice = totalCost.Div(totalQty)
		}
		b.state.PositionQty = totalQty
		trade.RealizedPnL = decimal.Zero

	case types.SideSell:
		if trade.Qty.GreaterThan(b.state.PositionQty) {
			return trade, kairoserr.Invariant("portfolio.ApplyFill",
				errQtyExceedsPosition(trade.Qty, b.state.PositionQty))
		}
		proceeds := trade.Qty.Mul(trade.Price).Sub(trade.Fee)
		costBasis := trade.Qty.Mul(b.state.PositionAvgPrice)
		pnl := proceeds.Sub(costBasis)

		b.state.Cash = b.state.Cash.Add(proceeds)
		b.state.PositionQty = b.state.PositionQty.Sub(trade.Qty)
		b.state.RealizedPnL = b.state.RealizedPnL.Add(pnl)
		trade.RealizedPnL = pnl

		if b.state.PositionQty.IsZero() {
			b.state.PositionAvgPrice = decimal.Zero
		}
	}

	if err := b.checkInvariants(); err != nil {
		return trade, err
	}
	return trade, nil
}

// checkInvariants enforces the non-negativity and finiteness
// invariants that must hold after every fill.
func (b *Book) checkInvariants() error {
	if b.state.Cash.IsNegative() {
		return kairoserr.Invariant("portfolio.checkInvariants", errNegativeCash(b.state.Cash))
	}
	if b.state.PositionQty.IsNegative() {
		return kairoserr.Invariant("portfolio.checkInvariants", errNegativePosition(b.state.PositionQty))
	}
	return nil
}

// UpdateDrawdown marks equity at markPrice against the run's peak and
// trips the risk-halt latch once drawdown exceeds max_drawdown_pct.
// Callers should invoke this once per bar regardless of whether a new
// order is proposed, since the latch must trip on drawdown alone.
func (b *Book) UpdateDrawdown(markPrice decimal.Decimal) decimal.Decimal {
	equity := b.state.Equity(markPrice)
	if equity.GreaterThan(b.peakEquity) {
		b.peakEquity = equity
	}

	if !b.halted && !b.peakEquity.IsZero() {
		drawdown := b.peakEquity.Sub(equity).Div(b.peakEquity)
		if drawdown.GreaterThan(b.limits.MaxDrawdownPct) {
			b.halted = true
			if b.log != nil {
				b.log.Warn("risk halt: max drawdown exceeded",
					zap.String("drawdown", drawdown.String()),
					zap.String("limit", b.limits.MaxDrawdownPct.String()))
			}
		}
	}
	return equity
}

// PreTradeCheck validates a proposed order against the configured risk
// limits before it is scheduled with the execution engine. It also
// updates the drawdown latch against the current mark price; once the
// latch trips, every subsequent call returns a risk-halt rejection
// regardless of the proposed order, forcing HOLD for the rest of the
// run (§ invariant on risk halts).
func (b *Book) PreTradeCheck(side types.Side, qty decimal.Decimal, markPrice decimal.Decimal) error {
	equity := b.UpdateDrawdown(markPrice)

	if b.halted {
		return kairoserr.RiskHalted("portfolio.PreTradeCheck", errRiskHalted())
	}

	if side == types.SideBuy {
		resultingQty := b.state.PositionQty.Add(qty)
		if resultingQty.GreaterThan(b.limits.MaxPositionQty) {
			return kairoserr.OrderRejected("portfolio.PreTradeCheck", errMaxPositionQty(resultingQty, b.limits.MaxPositionQty))
		}

		notional := qty.Mul(markPrice)
		exposure := b.state.PositionQty.Mul(markPrice).Add(notional)
		if !equity.IsZero() {
			exposurePct := exposure.Div(equity)
			if exposurePct.GreaterThan(b.limits.MaxExposurePct) {
				return kairoserr.OrderRejected("portfolio.PreTradeCheck", errMaxExposure(exposurePct, b.limits.MaxExposurePct))
			}
		}
	}

	return nil
}

// State returns a copy of the book's current cash/position/PnL state.
func (b *Book) State() types.Portfolio { return b.state }
