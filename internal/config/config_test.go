package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "run.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_AppliesDefaultsForUnsetKeys(t *testing.T) {
	path := writeTOML(t, `
[run]
symbol = "BTC-USD"
initial_capital = "10000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", cfg.Run.Symbol)
	assert.Empty(t, cfg.Feats.SMAWindows)
	assert.True(t, cfg.Risk.MaxExposurePct.Equal(decimal.NewFromInt(1)))
}

func TestLoad_RejectsMissingSymbol(t *testing.T) {
	path := writeTOML(t, `
[run]
initial_capital = "10000"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsNonPositiveCapital(t *testing.T) {
	path := writeTOML(t, `
[run]
symbol = "BTC-USD"
initial_capital = "0"
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestWriteSnapshot_RoundTripsThroughLoad(t *testing.T) {
	path := writeTOML(t, `
[run]
symbol = "BTC-USD"
initial_capital = "5000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "config_snapshot.toml")
	require.NoError(t, WriteSnapshot(cfg, outPath))

	reloaded, err := Load(outPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Run.Symbol, reloaded.Run.Symbol)
}
