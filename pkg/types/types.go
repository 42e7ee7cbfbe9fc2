// Package types provides shared value types for the Kairos Alloy
// backtesting and paper-trading kernel.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side represents buy or sell.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Timeframe represents a fixed bar sampling interval.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1min"
	Timeframe5m  Timeframe = "5min"
	Timeframe15m Timeframe = "15min"
	Timeframe1h  Timeframe = "1h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the wall-clock step of one bar at this timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case Timeframe1m:
		return time.Minute
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return time.Minute
	}
}

// BarsPerYear is the annualization factor used by the metrics
// calculator, keyed by timeframe (§4.6 open question in SPEC_FULL.md).
func (tf Timeframe) BarsPerYear() float64 {
	switch tf {
	case Timeframe1m:
		return 525600
	case Timeframe5m:
		return 105120
	case Timeframe15m:
		return 35040
	case Timeframe1h:
		return 8760
	case Timeframe1d:
		return 365
	default:
		return 525600
	}
}

// OrderKind is the order type.
type OrderKind string

const (
	OrderKindMarket OrderKind = "market"
	OrderKindLimit  OrderKind = "limit"
	OrderKindStop   OrderKind = "stop"
)

// TIF is the order's time-in-force.
type TIF string

const (
	TIFGTC TIF = "gtc"
	TIFIOC TIF = "ioc"
	TIFFOK TIF = "fok"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusScheduled OrderStatus = "scheduled"
	OrderStatusActive    OrderStatus = "active"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusCanceled  OrderStatus = "canceled"
	OrderStatusExpired   OrderStatus = "expired"
)

// ActionType is the decision emitted by a strategy or agent for a bar.
type ActionType string

const (
	ActionBuy  ActionType = "BUY"
	ActionSell ActionType = "SELL"
	ActionHold ActionType = "HOLD"
)

// Bar is a single OHLCV candle. Timestamp is UTC seconds since epoch.
type Bar struct {
	TimestampUTC int64
	Open         decimal.Decimal
	High         decimal.Decimal
	Low          decimal.Decimal
	Close        decimal.Decimal
	Volume       decimal.Decimal
	Turnover     *decimal.Decimal
}

// Time returns the bar's timestamp as a time.Time in UTC.
func (b Bar) Time() time.Time {
	return time.Unix(b.TimestampUTC, 0).UTC()
}

// SentimentSchema is the declared, fixed order of sentiment metric
// names loaded from the sentiment source.
type SentimentSchema []string

// SentimentPoint is one observation of named sentiment metrics.
type SentimentPoint struct {
	TimestampUTC int64
	Metrics      map[string]float64
}

// Action is the decision produced by a strategy for one bar. Only
// Type and Size affect execution; the rest is audit-only.
type Action struct {
	Type           ActionType
	Size           float64
	Confidence     float64
	Reason         string
	ModelVersion   string
	AgentLatencyMs int64
}

// Order is a resting or active order tracked by the execution engine.
type Order struct {
	ID            int64
	Side          Side
	Kind          OrderKind
	Qty           decimal.Decimal // remaining quantity
	InitialQty    decimal.Decimal
	LimitPrice    decimal.Decimal // zero value when not applicable
	StopPrice     decimal.Decimal
	SubmissionBar int
	ActivationBar int
	TIF           TIF
	ExpiryBar     *int
	Status        OrderStatus
	StrategyID    string
	Reason        string
}

// Trade is a single fill produced by the execution engine.
type Trade struct {
	TimestampUTC int64
	Symbol       string
	Side         Side
	Qty          decimal.Decimal
	Price        decimal.Decimal
	Fee          decimal.Decimal
	Slippage     decimal.Decimal
	StrategyID   string
	Reason       string
	RealizedPnL  decimal.Decimal
}

// Portfolio is the run's single-asset, long-only cash+position book.
type Portfolio struct {
	Cash             decimal.Decimal
	PositionQty      decimal.Decimal
	PositionAvgPrice decimal.Decimal
	RealizedPnL      decimal.Decimal
}

// Equity returns cash + position value marked at the given price.
func (p Portfolio) Equity(markPrice decimal.Decimal) decimal.Decimal {
	return p.Cash.Add(p.PositionQty.Mul(markPrice))
}

// UnrealizedPnL returns the mark-to-market PnL on the open position.
func (p Portfolio) UnrealizedPnL(markPrice decimal.Decimal) decimal.Decimal {
	if p.PositionQty.IsZero() {
		return decimal.Zero
	}
	return p.PositionQty.Mul(markPrice.Sub(p.PositionAvgPrice))
}

// EquityPoint is one row of the equity curve, recorded once per bar.
type EquityPoint struct {
	TimestampUTC  int64
	Equity        decimal.Decimal
	Cash          decimal.Decimal
	PositionQty   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	RealizedPnL   decimal.Decimal
}

// RiskLimits are the immutable per-run risk thresholds.
type RiskLimits struct {
	MaxPositionQty  decimal.Decimal
	MaxExposurePct  decimal.Decimal
	MaxDrawdownPct  decimal.Decimal
}

// RunStatus is the terminal classification of a completed or aborted run.
type RunStatus string

const (
	RunStatusOK             RunStatus = "ok"
	RunStatusHaltedRisk     RunStatus = "halted_risk"
	RunStatusAbortedData    RunStatus = "aborted_data"
	RunStatusAbortedConfig  RunStatus = "aborted_config"
	RunStatusAbortedRuntime RunStatus = "aborted_runtime"
)

// PerformanceMetrics are the computed summary metrics for a run.
type PerformanceMetrics struct {
	NetProfit   decimal.Decimal
	Sharpe      decimal.Decimal
	MaxDrawdown decimal.Decimal
	WinRate     decimal.Decimal
	Turnover    decimal.Decimal
}

// Observation is the fixed-order feature vector sent to the strategy
// for a single bar, plus the validity flag from warmup handling.
type Observation struct {
	Values []float64
	Valid  bool
}

// PortfolioView is the read-only snapshot of the portfolio a strategy
// sees; it must never be mutated by the caller.
type PortfolioView struct {
	Cash             decimal.Decimal
	PositionQty      decimal.Decimal
	PositionAvgPrice decimal.Decimal
	Equity           decimal.Decimal
}
