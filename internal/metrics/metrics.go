// Package metrics computes the run's summary performance metrics in a
// single deterministic pass over the equity curve and trade blotter,
// in bar order.
package metrics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/kairos-alloy/alloy/pkg/types"
)

// Calculate derives net profit, Sharpe, max drawdown, win rate and
// turnover from a run's trades and equity curve. riskFreeRate is a
// per-bar rate subtracted from each return before the Sharpe reduction.
func Calculate(trades []types.Trade, equity []types.EquityPoint, initialCapital decimal.Decimal, tf types.Timeframe, riskFreeRate decimal.Decimal) types.PerformanceMetrics {
	if len(equity) == 0 {
		return types.PerformanceMetrics{}
	}

	m := types.PerformanceMetrics{}

	finalEquity := equity[len(equity)-1].Equity
	m.NetProfit = finalEquity.Sub(initialCapital)

	m.WinRate = winRate(trades)
	m.Turnover = turnover(trades, initialCapital)
	m.MaxDrawdown = maxDrawdown(equity)
	rf, _ := riskFreeRate.Float64()
	m.Sharpe = sharpe(equity, tf, rf)

	m.NetProfit = roundSigFigs(m.NetProfit, 6)
	m.Sharpe = roundSigFigs(m.Sharpe, 6)
	m.MaxDrawdown = roundSigFigs(m.MaxDrawdown, 6)
	m.WinRate = roundSigFigs(m.WinRate, 6)
	m.Turnover = roundSigFigs(m.Turnover, 6)

	return m
}

// roundSigFigs rounds v to sig significant figures (§9: "report
// metrics rounded to 6 significant figures to avoid spurious diff
// noise in golden tests"). Zero, NaN and infinite values round to zero.
func roundSigFigs(v decimal.Decimal, sig int) decimal.Decimal {
	f, _ := v.Float64()
	if f == 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return decimal.Zero
	}
	mag := math.Floor(math.Log10(math.Abs(f))) + 1
	shift := math.Pow(10, float64(sig-int(mag)))
	return decimal.NewFromFloat(math.Round(f*shift) / shift)
}

// winRate is the fraction of SELL trades (the only trades that can
// realize PnL in a long-only book) with positive RealizedPnL.
func winRate(trades []types.Trade) decimal.Decimal {
	var closed, wins int
	for _, t := range trades {
		if t.Side != types.SideSell {
			continue
		}
		closed++
		if t.RealizedPnL.IsPositive() {
			wins++
		}
	}
	if closed == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(closed)))
}

// turnover is total traded notional divided by initial capital.
func turnover(trades []types.Trade, initialCapital decimal.Decimal) decimal.Decimal {
	if initialCapital.IsZero() {
		return decimal.Zero
	}
	var notional decimal.Decimal
	for _, t := range trades {
		notional = notional.Add(t.Qty.Mul(t.Price))
	}
	return notional.Div(initialCapital)
}

// maxDrawdown is the largest peak-to-trough decline in the equity
// curve, expressed as a positive fraction.
func maxDrawdown(equity []types.EquityPoint) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}
	peak := equity[0].Equity
	maxDD := decimal.Zero
	for _, pt := range equity {
		if pt.Equity.GreaterThan(peak) {
			peak = pt.Equity
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(pt.Equity).Div(peak)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD
}

// sharpe is the annualized Sharpe ratio of per-bar equity returns,
// each reduced by riskFreeRate. Returns zero when fewer than two
// returns are available or the return series has zero variance.
func sharpe(equity []types.EquityPoint, tf types.Timeframe, riskFreeRate float64) decimal.Decimal {
	if len(equity) < 2 {
		return decimal.Zero
	}

	returns := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev, _ := equity[i-1].Equity.Float64()
		cur, _ := equity[i].Equity.Float64()
		if prev == 0 {
			continue
		}
		returns = append(returns, (cur-prev)/prev-riskFreeRate)
	}
	if len(returns) < 2 {
		return decimal.Zero
	}

	mean := meanOf(returns)
	std := stdDevOf(returns, mean)
	if std == 0 {
		return decimal.Zero
	}

	annualized := (mean / std) * math.Sqrt(tf.BarsPerYear())
	if math.IsNaN(annualized) || math.IsInf(annualized, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(annualized)
}

func meanOf(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stdDevOf(values []float64, mean float64) float64 {
	var sqSum float64
	for _, v := range values {
		d := v - mean
		sqSum += d * d
	}
	return math.Sqrt(sqSum / float64(len(values)))
}
