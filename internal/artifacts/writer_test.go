package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos-alloy/alloy/pkg/types"
)

func TestWriteTrades_WritesOneRowPerTrade(t *testing.T) {
	dir := t.TempDir()
	trades := []types.Trade{
		{TimestampUTC: 1000, Side: types.SideBuy, Qty: decimal.NewFromInt(2), Price: decimal.NewFromInt(100), Fee: decimal.NewFromFloat(0.2), StrategyID: "buy_and_hold", Reason: "entry"},
		{TimestampUTC: 2000, Side: types.SideSell, Qty: decimal.NewFromInt(2), Price: decimal.NewFromInt(110), Fee: decimal.NewFromFloat(0.22), StrategyID: "buy_and_hold", Reason: "exit", RealizedPnL: decimal.NewFromInt(20)},
	}
	require.NoError(t, WriteTrades("BTC-USD", dir, trades))

	data, err := os.ReadFile(filepath.Join(dir, "trades.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "timestamp_utc")
	assert.Contains(t, string(data), "BTC-USD")
	assert.Contains(t, string(data), "buy_and_hold")
}

func TestWriteEquity_WritesOneRowPerPoint(t *testing.T) {
	dir := t.TempDir()
	equity := []types.EquityPoint{
		{TimestampUTC: 1000, Equity: decimal.NewFromInt(10000), Cash: decimal.NewFromInt(10000)},
		{TimestampUTC: 2000, Equity: decimal.NewFromInt(10200), Cash: decimal.NewFromInt(9800), PositionQty: decimal.NewFromInt(2)},
	}
	require.NoError(t, WriteEquity(dir, equity))

	data, err := os.ReadFile(filepath.Join(dir, "equity.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "equity")
	assert.Contains(t, string(data), "10200")
}

func TestWriteSummary_RoundTripsAsJSON(t *testing.T) {
	dir := t.TempDir()
	summary := Summary{
		RunID:      "run-1",
		Symbol:     "BTC-USD",
		Status:     types.RunStatusOK,
		TradeCount: 2,
		Metrics: types.PerformanceMetrics{
			NetProfit: decimal.NewFromInt(200),
			Sharpe:    decimal.NewFromFloat(1.5),
		},
	}
	require.NoError(t, WriteSummary(dir, summary))

	data, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)

	var decoded Summary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, summary.RunID, decoded.RunID)
	assert.True(t, summary.Metrics.NetProfit.Equal(decoded.Metrics.NetProfit))
}

func TestEnsureOutDir_CreatesNestedPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, EnsureOutDir(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
