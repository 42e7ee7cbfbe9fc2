package orchestrator

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos-alloy/alloy/internal/execution"
	"github.com/kairos-alloy/alloy/internal/features"
	"github.com/kairos-alloy/alloy/internal/portfolio"
	"github.com/kairos-alloy/alloy/internal/strategy"
	"github.com/kairos-alloy/alloy/pkg/types"
)

func obar(ts int64, close float64) types.Bar {
	return types.Bar{
		TimestampUTC: ts,
		Open:         decimal.NewFromFloat(close),
		High:         decimal.NewFromFloat(close),
		Low:          decimal.NewFromFloat(close),
		Close:        decimal.NewFromFloat(close),
		Volume:       decimal.NewFromInt(1000),
	}
}

func TestOrchestrator_BuyAndHoldRunProducesEquityCurve(t *testing.T) {
	execCfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, SellKind: types.OrderKindMarket,
		PriceReference: "close", TIF: types.TIFGTC, MaxFillPctOfVolume: decimal.NewFromInt(1),
	}
	book := portfolio.New(decimal.NewFromInt(1000), types.RiskLimits{
		MaxPositionQty: decimal.NewFromInt(1000),
		MaxExposurePct: decimal.NewFromInt(1),
		MaxDrawdownPct: decimal.NewFromInt(1),
	}, nil)

	o := New(Config{
		Pipeline: features.NewPipeline(types.FeaturesSection{ReturnMode: types.ReturnModePct}, nil, nil),
		Strategy: strategy.NewBuyAndHold(false),
		Engine:   execution.New(execCfg, types.CostsSection{}, nil),
		Book:     book,
		SizeMode: types.SizeModeQty,
	})

	bars := []types.Bar{obar(0, 100), obar(60, 101), obar(120, 102)}
	result, err := o.Run(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusOK, result.Status)
	assert.Len(t, result.Equity, 3)
}

func TestOrchestrator_PositionLimitRejectsOrderWithoutHaltingOrCancelingRestingOrders(t *testing.T) {
	execCfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, SellKind: types.OrderKindMarket,
		PriceReference: "close", TIF: types.TIFGTC, MaxFillPctOfVolume: decimal.NewFromInt(1),
	}
	book := portfolio.New(decimal.NewFromInt(1000), types.RiskLimits{
		MaxPositionQty: decimal.NewFromFloat(0.01), // tiny: the first buy already breaches it
		MaxExposurePct: decimal.NewFromInt(1),
		MaxDrawdownPct: decimal.NewFromInt(1),
	}, nil)

	o := New(Config{
		Pipeline: features.NewPipeline(types.FeaturesSection{ReturnMode: types.ReturnModePct}, nil, nil),
		Strategy: strategy.NewBuyAndHold(false),
		Engine:   execution.New(execCfg, types.CostsSection{}, nil),
		Book:     book,
		SizeMode: types.SizeModeQty,
	})

	bars := []types.Bar{obar(0, 100), obar(60, 101)}
	result, err := o.Run(context.Background(), bars)
	require.NoError(t, err)
	// A position-limit breach rejects the proposed order only; it must
	// not trip the run's risk-halt status.
	assert.Equal(t, types.RunStatusOK, result.Status)
	assert.False(t, book.Halted())
}

func TestOrchestrator_RiskHaltForcesHoldButRunCompletes(t *testing.T) {
	execCfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, SellKind: types.OrderKindMarket,
		PriceReference: "close", TIF: types.TIFGTC, MaxFillPctOfVolume: decimal.NewFromInt(1),
	}
	book := portfolio.New(decimal.NewFromInt(1000), types.RiskLimits{
		MaxPositionQty: decimal.NewFromInt(1000),
		MaxExposurePct: decimal.NewFromInt(1),
		MaxDrawdownPct: decimal.NewFromFloat(0.01),
	}, nil)

	o := New(Config{
		Pipeline: features.NewPipeline(types.FeaturesSection{ReturnMode: types.ReturnModePct}, nil, nil),
		Strategy: strategy.NewBuyAndHold(false),
		Engine:   execution.New(execCfg, types.CostsSection{}, nil),
		Book:     book,
		SizeMode: types.SizeModePctEquity,
	})

	// Bar0 submits a full-equity buy, bar1 fills it near 100, then the
	// price craters to 1 on bar2 — a drawdown the latch must catch
	// even though the strategy is no longer proposing new orders. The
	// run must still finish normally and record every bar's equity
	// point (§7: risk halts are not aborts), with trading forced off.
	bars := []types.Bar{obar(0, 100), obar(60, 100), obar(120, 1), obar(180, 1)}
	result, err := o.Run(context.Background(), bars)
	require.NoError(t, err)
	assert.Equal(t, types.RunStatusHaltedRisk, result.Status)
	assert.Len(t, result.Equity, len(bars))
}
