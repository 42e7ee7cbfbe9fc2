package marketdata

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos-alloy/alloy/pkg/types"
)

func writeCSVFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestCSVLoader_ParsesAndSortsBars(t *testing.T) {
	path := writeCSVFile(t, `timestamp_utc,open,high,low,close,volume
120,101,102,99,100,10
60,100,101,98,99,10
`)
	loader := NewCSVLoader(path)
	bars, err := loader.Load(context.Background(), "BTC-USD", types.Timeframe1m)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, int64(60), bars[0].TimestampUTC)
	assert.Equal(t, int64(120), bars[1].TimestampUTC)
}

func TestCSVLoader_ParsesOptionalTurnoverColumn(t *testing.T) {
	path := writeCSVFile(t, `timestamp_utc,open,high,low,close,volume,turnover
60,100,101,98,99,10,990
`)
	loader := NewCSVLoader(path)
	bars, err := loader.Load(context.Background(), "BTC-USD", types.Timeframe1m)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	require.NotNil(t, bars[0].Turnover)
	assert.True(t, bars[0].Turnover.Equal(bars[0].Turnover.Truncate(0)))
}

func TestCSVLoader_MissingFileReturnsIOError(t *testing.T) {
	loader := NewCSVLoader(filepath.Join(t.TempDir(), "missing.csv"))
	_, err := loader.Load(context.Background(), "BTC-USD", types.Timeframe1m)
	assert.Error(t, err)
}

func TestCSVLoader_MalformedRowReturnsDataQualityError(t *testing.T) {
	path := writeCSVFile(t, `timestamp_utc,open,high,low,close,volume
notanumber,100,101,98,99,10
`)
	loader := NewCSVLoader(path)
	_, err := loader.Load(context.Background(), "BTC-USD", types.Timeframe1m)
	assert.Error(t, err)
}
