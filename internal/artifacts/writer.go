// Package artifacts writes a completed run's output files:
// trades.csv and equity.csv via gocsv, summary.json via encoding/json,
// and config_snapshot.toml via internal/config.
package artifacts

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// tradeRow is the CSV projection of types.Trade.
type tradeRow struct {
	TimestampUTC int64  `csv:"timestamp_utc"`
	Symbol       string `csv:"symbol"`
	Side         string `csv:"side"`
	Qty          string `csv:"qty"`
	Price        string `csv:"price"`
	Fee          string `csv:"fee"`
	Slippage     string `csv:"slippage"`
	StrategyID   string `csv:"strategy_id"`
	Reason       string `csv:"reason"`
	RealizedPnL  string `csv:"realized_pnl"`
}

func (r *tradeRow) toTrade() (types.Trade, error) {
	qty, err := decimal.NewFromString(r.Qty)
	if err != nil {
		return types.Trade{}, err
	}
	price, err := decimal.NewFromString(r.Price)
	if err != nil {
		return types.Trade{}, err
	}
	fee, err := decimal.NewFromString(r.Fee)
	if err != nil {
		return types.Trade{}, err
	}
	slippage, err := decimal.NewFromString(r.Slippage)
	if err != nil {
		return types.Trade{}, err
	}
	realized, err := decimal.NewFromString(r.RealizedPnL)
	if err != nil {
		return types.Trade{}, err
	}
	return types.Trade{
		TimestampUTC: r.TimestampUTC,
		Symbol:       r.Symbol,
		Side:         types.Side(r.Side),
		Qty:          qty,
		Price:        price,
		Fee:          fee,
		Slippage:     slippage,
		StrategyID:   r.StrategyID,
		Reason:       r.Reason,
		RealizedPnL:  realized,
	}, nil
}

// equityRow is the CSV projection of types.EquityPoint.
type equityRow struct {
	TimestampUTC  int64  `csv:"timestamp_utc"`
	Equity        string `csv:"equity"`
	Cash          string `csv:"cash"`
	PositionQty   string `csv:"position_qty"`
	UnrealizedPnL string `csv:"unrealized_pnl"`
	RealizedPnL   string `csv:"realized_pnl"`
}

func (r *equityRow) toEquityPoint() (types.EquityPoint, error) {
	equity, err := decimal.NewFromString(r.Equity)
	if err != nil {
		return types.EquityPoint{}, err
	}
	cash, err := decimal.NewFromString(r.Cash)
	if err != nil {
		return types.EquityPoint{}, err
	}
	qty, err := decimal.NewFromString(r.PositionQty)
	if err != nil {
		return types.EquityPoint{}, err
	}
	unrealized, err := decimal.NewFromString(r.UnrealizedPnL)
	if err != nil {
		return types.EquityPoint{}, err
	}
	realized, err := decimal.NewFromString(r.RealizedPnL)
	if err != nil {
		return types.EquityPoint{}, err
	}
	return types.EquityPoint{
		TimestampUTC:  r.TimestampUTC,
		Equity:        equity,
		Cash:          cash,
		PositionQty:   qty,
		UnrealizedPnL: unrealized,
		RealizedPnL:   realized,
	}, nil
}

// Summary is the summary.json artifact.
type Summary struct {
	RunID      string                    `json:"run_id"`
	Symbol     string                    `json:"symbol"`
	Status     types.RunStatus           `json:"status"`
	TradeCount int                       `json:"trade_count"`
	Metrics    types.PerformanceMetrics  `json:"metrics"`
}

// WriteTrades serializes trades to <outDir>/trades.csv.
func WriteTrades(symbol, outDir string, trades []types.Trade) error {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, &tradeRow{
			TimestampUTC: t.TimestampUTC,
			Symbol:       symbol,
			Side:         string(t.Side),
			Qty:          t.Qty.String(),
			Price:        t.Price.String(),
			Fee:          t.Fee.String(),
			Slippage:     t.Slippage.String(),
			StrategyID:   t.StrategyID,
			Reason:       t.Reason,
			RealizedPnL:  t.RealizedPnL.String(),
		})
	}
	return writeCSV(filepath.Join(outDir, "trades.csv"), rows)
}

// WriteEquity serializes the equity curve to <outDir>/equity.csv.
func WriteEquity(outDir string, equity []types.EquityPoint) error {
	rows := make([]*equityRow, 0, len(equity))
	for _, e := range equity {
		rows = append(rows, &equityRow{
			TimestampUTC:  e.TimestampUTC,
			Equity:        e.Equity.String(),
			Cash:          e.Cash.String(),
			PositionQty:   e.PositionQty.String(),
			UnrealizedPnL: e.UnrealizedPnL.String(),
			RealizedPnL:   e.RealizedPnL.String(),
		})
	}
	return writeCSV(filepath.Join(outDir, "equity.csv"), rows)
}

// ReadTrades deserializes <outDir>/trades.csv back into types.Trade,
// the inverse of WriteTrades used by the report regenerator to
// recompute metrics from a prior run's artifacts.
func ReadTrades(outDir string) ([]types.Trade, error) {
	f, err := os.Open(filepath.Join(outDir, "trades.csv"))
	if err != nil {
		return nil, kairoserr.IO("artifacts.ReadTrades", err)
	}
	defer f.Close()

	var rows []*tradeRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, kairoserr.IO("artifacts.ReadTrades", err)
	}

	trades := make([]types.Trade, 0, len(rows))
	for _, r := range rows {
		t, err := r.toTrade()
		if err != nil {
			return nil, kairoserr.DataQuality("artifacts.ReadTrades", err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// ReadEquity deserializes <outDir>/equity.csv back into
// types.EquityPoint, the inverse of WriteEquity.
func ReadEquity(outDir string) ([]types.EquityPoint, error) {
	f, err := os.Open(filepath.Join(outDir, "equity.csv"))
	if err != nil {
		return nil, kairoserr.IO("artifacts.ReadEquity", err)
	}
	defer f.Close()

	var rows []*equityRow
	if err := gocsv.UnmarshalFile(f, &rows); err != nil {
		return nil, kairoserr.IO("artifacts.ReadEquity", err)
	}

	points := make([]types.EquityPoint, 0, len(rows))
	for _, r := range rows {
		p, err := r.toEquityPoint()
		if err != nil {
			return nil, kairoserr.DataQuality("artifacts.ReadEquity", err)
		}
		points = append(points, p)
	}
	return points, nil
}

func writeCSV[T any](path string, rows []T) error {
	f, err := os.Create(path)
	if err != nil {
		return kairoserr.IO("artifacts.writeCSV", err)
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return kairoserr.IO("artifacts.writeCSV", err)
	}
	return nil
}

// WriteSummary serializes summary to <outDir>/summary.json.
func WriteSummary(outDir string, summary Summary) error {
	f, err := os.Create(filepath.Join(outDir, "summary.json"))
	if err != nil {
		return kairoserr.IO("artifacts.WriteSummary", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return kairoserr.IO("artifacts.WriteSummary", err)
	}
	return nil
}

// ReadSummary deserializes <outDir>/summary.json, the inverse of
// WriteSummary, used by the report regenerator to recover a prior
// run's identity (run_id, symbol, status) before recomputing metrics.
func ReadSummary(outDir string) (Summary, error) {
	f, err := os.Open(filepath.Join(outDir, "summary.json"))
	if err != nil {
		return Summary{}, kairoserr.IO("artifacts.ReadSummary", err)
	}
	defer f.Close()

	var s Summary
	if err := json.NewDecoder(f).Decode(&s); err != nil {
		return Summary{}, kairoserr.IO("artifacts.ReadSummary", err)
	}
	return s, nil
}

// EnsureOutDir creates outDir if it does not already exist.
func EnsureOutDir(outDir string) error {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return kairoserr.IO("artifacts.EnsureOutDir", err)
	}
	return nil
}
