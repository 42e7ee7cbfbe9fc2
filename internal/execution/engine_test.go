package execution

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos-alloy/alloy/pkg/types"
)

func d(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func testBar(ts int64, o, h, l, c, v float64) types.Bar {
	return types.Bar{TimestampUTC: ts, Open: d(o), High: d(h), Low: d(l), Close: d(c), Volume: d(v)}
}

func TestEngine_MarketOrderFillsAtActivationBar(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, SellKind: types.OrderKindMarket,
		PriceReference: "close", TIF: types.TIFGTC, LatencyBars: 1,
		MaxFillPctOfVolume: d(1),
	}
	e := New(cfg, types.CostsSection{}, nil)

	e.Schedule(types.SideBuy, d(10), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 1000), d(1_000_000))
	assert.Empty(t, fills, "order not yet active at submission bar")

	fills, _ = e.Process(1, testBar(60, 101, 102, 100, 101, 1000), d(1_000_000))
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Trade.Qty.Equal(d(10)))
	assert.Equal(t, types.OrderStatusFilled, fills[0].Order.Status)
}

func TestEngine_LimitBuyFillsWhenLowCrossesLimit(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindLimit, TIF: types.TIFGTC,
		PriceReference: "close", MaxFillPctOfVolume: d(1),
	}
	e := New(cfg, types.CostsSection{}, nil)
	order := e.Schedule(types.SideBuy, d(5), 0, "s", "r")
	order.LimitPrice = d(95)

	fills, _ := e.Process(0, testBar(0, 100, 101, 96, 100, 1000), d(1_000_000))
	assert.Empty(t, fills, "low did not reach limit")

	fills, _ = e.Process(1, testBar(60, 97, 98, 90, 94, 1000), d(1_000_000))
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Trade.Price.LessThanOrEqual(d(95)))
}

func TestEngine_StopSellTriggersBelowStopPrice(t *testing.T) {
	cfg := types.ExecSection{SellKind: types.OrderKindStop, TIF: types.TIFGTC, MaxFillPctOfVolume: d(1)}
	e := New(cfg, types.CostsSection{}, nil)
	order := e.Schedule(types.SideSell, d(5), 0, "s", "r")
	order.StopPrice = d(90)

	fills, _ := e.Process(0, testBar(0, 100, 101, 95, 98, 1000), d(1_000_000))
	assert.Empty(t, fills)

	fills, _ = e.Process(1, testBar(60, 95, 96, 85, 88, 1000), d(1_000_000))
	require.Len(t, fills, 1)
}

func TestEngine_LiquidityCapPartiallyFills(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, PriceReference: "close",
		TIF: types.TIFGTC, MaxFillPctOfVolume: d(0.05),
	}
	e := New(cfg, types.CostsSection{}, nil)
	e.Schedule(types.SideBuy, d(100), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 1000), d(1_000_000))
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Trade.Qty.Equal(d(50)), "5% of 1000 volume caps the fill at 50 of the 100 requested")
	assert.Equal(t, 1, len(e.Resting()), "the unfilled remainder stays resting under GTC")
}

func TestEngine_ZeroMaxFillPctSuppressesAllFills(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, PriceReference: "close",
		TIF: types.TIFGTC, MaxFillPctOfVolume: decimal.Zero,
	}
	e := New(cfg, types.CostsSection{}, nil)
	e.Schedule(types.SideBuy, d(10), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 1000), d(1_000_000))
	assert.Empty(t, fills, "max_fill_pct_of_volume=0 must suppress all fills")
	require.Len(t, e.Resting(), 1, "order stays resting under GTC")
}

func TestEngine_ZeroVolumeBarYieldsNoFills(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, PriceReference: "close",
		TIF: types.TIFGTC, MaxFillPctOfVolume: d(1),
	}
	e := New(cfg, types.CostsSection{}, nil)
	e.Schedule(types.SideBuy, d(10), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 0), d(1_000_000))
	assert.Empty(t, fills, "zero-volume bar must yield no fills regardless of limit/stop conditions")
	require.Len(t, e.Resting(), 1, "order stays resting under GTC")
}

func TestEngine_IOCCancelsUnfilledRemainder(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindLimit, PriceReference: "close", TIF: types.TIFIOC,
		MaxFillPctOfVolume: d(1), LatencyBars: 1,
	}
	e := New(cfg, types.CostsSection{}, nil)
	order := e.Schedule(types.SideBuy, d(5), 0, "s", "r")
	order.LimitPrice = d(50) // unreachable

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 1000), d(1_000_000))
	assert.Empty(t, fills)
	fills, events := e.Process(1, testBar(60, 100, 101, 99, 100, 1000), d(1_000_000))
	assert.Empty(t, fills)
	assert.Empty(t, e.Resting(), "IOC order must not remain resting past its active bar")
	require.Len(t, events, 2, "activation, then the IOC cancellation")
	assert.Equal(t, LifecycleCanceled, events[1].Type)
}

func TestEngine_CashCapClampsBuyQtyToAffordability(t *testing.T) {
	// S1 from the spec: close=100, spread=20bps (10bps half-spread),
	// fee=10bps, slippage=0, cash=1000. The market buy fills at
	// 100*(1+0.001) = 100.1; affordable qty =
	// floor(1000 / (100.1*1.001)) = 9.
	cfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, PriceReference: "close",
		TIF: types.TIFGTC, MaxFillPctOfVolume: d(1), SpreadBps: d(20),
	}
	costs := types.CostsSection{FeeBps: d(10)}
	e := New(cfg, costs, nil)
	e.Schedule(types.SideBuy, d(100), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 1000), d(1000))
	require.Len(t, fills, 1)
	assert.True(t, fills[0].Trade.Qty.Equal(d(9)), "expected affordable qty 9, got %s", fills[0].Trade.Qty)
	cost := fills[0].Trade.Qty.Mul(fills[0].Trade.Price).Add(fills[0].Trade.Fee)
	assert.True(t, cost.LessThanOrEqual(d(1000)), "total cost %s must not exceed cash", cost)
	require.Len(t, e.Resting(), 1, "remainder stays resting under GTC")
}

func TestEngine_CashCapRejectsFOKWhenUnaffordable(t *testing.T) {
	cfg := types.ExecSection{
		BuyKind: types.OrderKindMarket, PriceReference: "close",
		TIF: types.TIFFOK, MaxFillPctOfVolume: d(1),
	}
	e := New(cfg, types.CostsSection{}, nil)
	e.Schedule(types.SideBuy, d(10), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 101, 99, 100, 1000), d(50))
	assert.Empty(t, fills, "cash affords less than qty 10 at price ~100, FOK must cancel with no fill")
	assert.Empty(t, e.Resting())
}

func TestEngine_CostModelAppliesFeeAndSlippage(t *testing.T) {
	cfg := types.ExecSection{BuyKind: types.OrderKindMarket, PriceReference: "close", TIF: types.TIFGTC, MaxFillPctOfVolume: d(1)}
	costs := types.CostsSection{FeeBps: d(100), SlippageBps: d(100)} // 1% fee, 1% slippage
	e := New(cfg, costs, nil)
	e.Schedule(types.SideBuy, d(1), 0, "s", "r")

	fills, _ := e.Process(0, testBar(0, 100, 100, 100, 100, 1000), d(1_000_000))
	require.Len(t, fills, 1)
	// buy price inflated by slippage bps, fee charged on notional
	assert.True(t, fills[0].Trade.Price.GreaterThan(d(100)))
	assert.True(t, fills[0].Trade.Fee.GreaterThan(decimal.Zero))
}
