// Package config loads a run's TOML configuration via viper, applying
// KAIROS_-prefixed environment overrides, and can freeze the resolved
// result back out to config_snapshot.toml for the run's artifacts.
package config

import (
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// decimalDecodeHook lets viper/mapstructure decode TOML string values
// (e.g. initial_capital = "10000") into decimal.Decimal fields.
func decimalDecodeHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(decimal.Decimal{}) {
		return data, nil
	}
	switch from.Kind() {
	case reflect.String:
		return decimal.NewFromString(data.(string))
	case reflect.Float64:
		return decimal.NewFromFloat(data.(float64)), nil
	case reflect.Int, reflect.Int64:
		return decimal.NewFromInt(reflect.ValueOf(data).Int()), nil
	default:
		return data, nil
	}
}

const envPrefix = "KAIROS"

// Load reads path as TOML, overlays KAIROS_-prefixed environment
// variables, and decodes the result into a types.RunConfig seeded with
// types.Default().
func Load(path string) (types.RunConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := types.Default()
	applyDefaults(v, cfg)

	if err := v.ReadInConfig(); err != nil {
		return cfg, kairoserr.Config("config.Load", err)
	}

	decodeHook := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		decimalDecodeHook,
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook)); err != nil {
		return cfg, kairoserr.Config("config.Load", err)
	}

	if err := validate(cfg); err != nil {
		return cfg, kairoserr.Config("config.Load", err)
	}

	return cfg, nil
}

// applyDefaults seeds viper with types.Default() so unset TOML keys
// and unset env vars still resolve to documented defaults.
func applyDefaults(v *viper.Viper, cfg types.RunConfig) {
	v.SetDefault("run.timeframe", cfg.Run.Timeframe)
	v.SetDefault("run.initial_capital", cfg.Run.InitialCapital.String())
	v.SetDefault("paths.out_dir", cfg.Paths.OutDir)
	v.SetDefault("costs.fee_bps", cfg.Costs.FeeBps.String())
	v.SetDefault("costs.slippage_bps", cfg.Costs.SlippageBps.String())
	v.SetDefault("execution.model", cfg.Exec.Model)
	v.SetDefault("execution.buy_kind", cfg.Exec.BuyKind)
	v.SetDefault("execution.sell_kind", cfg.Exec.SellKind)
	v.SetDefault("execution.price_reference", cfg.Exec.PriceReference)
	v.SetDefault("execution.tif", cfg.Exec.TIF)
	v.SetDefault("execution.max_fill_pct_of_volume", cfg.Exec.MaxFillPctOfVolume.String())
	v.SetDefault("orders.size_mode", cfg.Orders.SizeMode)
	v.SetDefault("features.return_mode", cfg.Feats.ReturnMode)
	v.SetDefault("features.sentiment_missing", cfg.Feats.SentimentMissing)
	v.SetDefault("features.skip_warmup", cfg.Feats.SkipWarmup)
	v.SetDefault("risk.max_position_qty", cfg.Risk.MaxPositionQty.String())
	v.SetDefault("risk.max_exposure_pct", cfg.Risk.MaxExposurePct.String())
	v.SetDefault("risk.max_drawdown_pct", cfg.Risk.MaxDrawdownPct.String())
	v.SetDefault("risk.risk_free_rate", cfg.Risk.RiskFreeRate.String())
	v.SetDefault("agent.mode", cfg.Agent.Mode)
	v.SetDefault("agent.baseline", cfg.Agent.Baseline)
	v.SetDefault("agent.timeout_ms", cfg.Agent.TimeoutMs)
	v.SetDefault("agent.retries", cfg.Agent.Retries)
	v.SetDefault("agent.fallback_action", cfg.Agent.FallbackAction)
	v.SetDefault("agent.api_version", cfg.Agent.APIVersion)
	v.SetDefault("data_quality.strict", cfg.DQ.Strict)
}

// validate enforces the run-config invariants that must hold before
// the kernel starts: a non-empty symbol and a positive initial
// capital.
func validate(cfg types.RunConfig) error {
	if cfg.Run.Symbol == "" {
		return errMissingSymbol()
	}
	if !cfg.Run.InitialCapital.IsPositive() {
		return errNonPositiveCapital(cfg.Run.InitialCapital)
	}
	return nil
}

// WriteSnapshot serializes cfg back to TOML at path, the frozen
// config_snapshot.toml artifact written alongside a run's other
// outputs so the run can be reproduced byte-for-byte later.
func WriteSnapshot(cfg types.RunConfig, path string) error {
	v := viper.New()
	v.SetConfigType("toml")

	v.Set("run.run_id", cfg.Run.RunID)
	v.Set("run.symbol", cfg.Run.Symbol)
	v.Set("run.timeframe", cfg.Run.Timeframe)
	v.Set("run.initial_capital", cfg.Run.InitialCapital.String())

	v.Set("db.exchange", cfg.DB.Exchange)
	v.Set("db.market", cfg.DB.Market)
	v.Set("db.ohlcv_table", cfg.DB.OHLCVTable)
	v.Set("db.source_timeframe", cfg.DB.SourceTimeframe)

	v.Set("paths.sentiment_path", cfg.Paths.SentimentPath)
	v.Set("paths.out_dir", cfg.Paths.OutDir)

	v.Set("costs.fee_bps", cfg.Costs.FeeBps.String())
	v.Set("costs.slippage_bps", cfg.Costs.SlippageBps.String())

	v.Set("execution.model", cfg.Exec.Model)
	v.Set("execution.buy_kind", cfg.Exec.BuyKind)
	v.Set("execution.sell_kind", cfg.Exec.SellKind)
	v.Set("execution.price_reference", cfg.Exec.PriceReference)
	v.Set("execution.limit_offset_bps", cfg.Exec.LimitOffsetBps.String())
	v.Set("execution.stop_offset_bps", cfg.Exec.StopOffsetBps.String())
	v.Set("execution.spread_bps", cfg.Exec.SpreadBps.String())
	v.Set("execution.latency_bars", cfg.Exec.LatencyBars)
	if cfg.Exec.ExpireAfterBars != nil {
		v.Set("execution.expire_after_bars", *cfg.Exec.ExpireAfterBars)
	}
	v.Set("execution.tif", cfg.Exec.TIF)
	v.Set("execution.max_fill_pct_of_volume", cfg.Exec.MaxFillPctOfVolume.String())

	v.Set("orders.size_mode", cfg.Orders.SizeMode)

	v.Set("features.return_mode", cfg.Feats.ReturnMode)
	v.Set("features.sma_windows", cfg.Feats.SMAWindows)
	v.Set("features.volatility_windows", cfg.Feats.VolatilityWindows)
	v.Set("features.rsi_enabled", cfg.Feats.RSIEnabled)
	v.Set("features.sentiment_lag", cfg.Feats.SentimentLag.String())
	if cfg.Feats.SentimentMaxGap != nil {
		v.Set("features.sentiment_max_gap", cfg.Feats.SentimentMaxGap.String())
	}
	v.Set("features.sentiment_missing", cfg.Feats.SentimentMissing)
	v.Set("features.skip_warmup", cfg.Feats.SkipWarmup)

	v.Set("risk.max_position_qty", cfg.Risk.MaxPositionQty.String())
	v.Set("risk.max_exposure_pct", cfg.Risk.MaxExposurePct.String())
	v.Set("risk.max_drawdown_pct", cfg.Risk.MaxDrawdownPct.String())
	v.Set("risk.risk_free_rate", cfg.Risk.RiskFreeRate.String())

	v.Set("agent.mode", cfg.Agent.Mode)
	v.Set("agent.baseline", cfg.Agent.Baseline)
	v.Set("agent.sma_fast", cfg.Agent.SmaFast)
	v.Set("agent.sma_slow", cfg.Agent.SmaSlow)
	v.Set("agent.url", cfg.Agent.URL)
	v.Set("agent.timeout_ms", cfg.Agent.TimeoutMs)
	v.Set("agent.retries", cfg.Agent.Retries)
	v.Set("agent.fallback_action", cfg.Agent.FallbackAction)
	v.Set("agent.api_version", cfg.Agent.APIVersion)
	v.Set("agent.feature_version", cfg.Agent.FeatureVersion)
	v.Set("agent.fatal_on_protocol", cfg.Agent.FatalOnProtocol)

	v.Set("data_quality.max_gaps", cfg.DQ.MaxGaps)
	v.Set("data_quality.max_missing_bars", cfg.DQ.MaxMissingBars)
	v.Set("data_quality.max_duplicates", cfg.DQ.MaxDuplicates)
	v.Set("data_quality.max_out_of_order", cfg.DQ.MaxOutOfOrder)
	v.Set("data_quality.max_invalid_close", cfg.DQ.MaxInvalidClose)
	v.Set("data_quality.strict", cfg.DQ.Strict)

	if err := v.WriteConfigAs(path); err != nil {
		return kairoserr.IO("config.WriteSnapshot", err)
	}
	return nil
}
