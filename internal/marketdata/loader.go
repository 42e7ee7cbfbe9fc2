// Package marketdata defines the OHLCV read port the kernel consumes
// and a flat-file CSV adapter sufficient to drive a run end to end.
// The spec's DB-backed ingestion ([db] exchange/market/ohlcv_table) is
// a collaborator specified only by the interface it exposes; this
// package supplies a concrete, file-replay implementation of that
// interface for standalone runs and tests.
package marketdata

import (
	"context"
	"encoding/csv"
	"os"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// Loader is the OHLCV read port: given a symbol and timeframe, it
// returns the full, causally-ordered bar series a run should replay.
type Loader interface {
	Load(ctx context.Context, symbol string, tf types.Timeframe) ([]types.Bar, error)
}

// CSVLoader reads OHLCV bars from a flat CSV file with header
// timestamp_utc,open,high,low,close,volume[,turnover], grounded on
// the teacher's file-per-symbol Store.LoadOHLCV shape, generalized
// from its JSON-per-symbol cache to a single CSV path since the
// kernel replays one symbol/timeframe per run.
type CSVLoader struct {
	path string
}

// NewCSVLoader returns a Loader reading bars from path.
func NewCSVLoader(path string) *CSVLoader {
	return &CSVLoader{path: path}
}

// Load reads, parses, and timestamp-sorts the CSV at l.path. symbol
// and tf are accepted to satisfy Loader but are not required to
// filter a single-file source.
func (l *CSVLoader) Load(_ context.Context, _ string, _ types.Timeframe) ([]types.Bar, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, kairoserr.IO("marketdata.Load", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return nil, kairoserr.IO("marketdata.Load", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	col := indexHeader(header)
	bars := make([]types.Bar, 0, len(records)-1)
	for _, row := range records[1:] {
		bar, err := parseBarRow(row, col)
		if err != nil {
			return nil, kairoserr.DataQuality("marketdata.Load", err)
		}
		bars = append(bars, bar)
	}

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].TimestampUTC < bars[j].TimestampUTC
	})
	return bars, nil
}

func indexHeader(header []string) map[string]int {
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	return col
}

func parseBarRow(row []string, col map[string]int) (types.Bar, error) {
	ts, err := strconv.ParseInt(row[col["timestamp_utc"]], 10, 64)
	if err != nil {
		return types.Bar{}, err
	}
	open, err := decimal.NewFromString(row[col["open"]])
	if err != nil {
		return types.Bar{}, err
	}
	high, err := decimal.NewFromString(row[col["high"]])
	if err != nil {
		return types.Bar{}, err
	}
	low, err := decimal.NewFromString(row[col["low"]])
	if err != nil {
		return types.Bar{}, err
	}
	closePrice, err := decimal.NewFromString(row[col["close"]])
	if err != nil {
		return types.Bar{}, err
	}
	volume, err := decimal.NewFromString(row[col["volume"]])
	if err != nil {
		return types.Bar{}, err
	}

	bar := types.Bar{
		TimestampUTC: ts,
		Open:         open,
		High:         high,
		Low:          low,
		Close:        closePrice,
		Volume:       volume,
	}
	if idx, ok := col["turnover"]; ok && idx < len(row) && row[idx] != "" {
		turnover, err := decimal.NewFromString(row[idx])
		if err != nil {
			return types.Bar{}, err
		}
		bar.Turnover = &turnover
	}
	return bar, nil
}
