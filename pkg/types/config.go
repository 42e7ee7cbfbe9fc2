package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// RunConfig is the full, frozen effective configuration for one run.
// Field groups mirror the `[section]` tables documented in SPEC_FULL.md.
type RunConfig struct {
	Run     RunSection     `mapstructure:"run"`
	DB      DBSection      `mapstructure:"db"`
	Paths   PathsSection   `mapstructure:"paths"`
	Costs   CostsSection   `mapstructure:"costs"`
	Exec    ExecSection    `mapstructure:"execution"`
	Orders  OrdersSection  `mapstructure:"orders"`
	Feats   FeaturesSection `mapstructure:"features"`
	Risk    RiskSection    `mapstructure:"risk"`
	Agent   AgentSection   `mapstructure:"agent"`
	DQ      DataQualitySection `mapstructure:"data_quality"`
}

// RunSection is `[run]`.
type RunSection struct {
	RunID          string          `mapstructure:"run_id"`
	Symbol         string          `mapstructure:"symbol"`
	Timeframe      Timeframe       `mapstructure:"timeframe"`
	InitialCapital decimal.Decimal `mapstructure:"initial_capital"`
}

// DBSection is `[db]`.
type DBSection struct {
	Exchange         string    `mapstructure:"exchange"`
	Market           string    `mapstructure:"market"`
	OHLCVTable       string    `mapstructure:"ohlcv_table"`
	SourceTimeframe  Timeframe `mapstructure:"source_timeframe"`
}

// PathsSection is `[paths]`.
type PathsSection struct {
	SentimentPath string `mapstructure:"sentiment_path"`
	OutDir        string `mapstructure:"out_dir"`
}

// CostsSection is `[costs]`.
type CostsSection struct {
	FeeBps      decimal.Decimal `mapstructure:"fee_bps"`
	SlippageBps decimal.Decimal `mapstructure:"slippage_bps"`
}

// ExecModel selects the breadth of execution semantics simulated.
type ExecModel string

const (
	ExecModelSimple   ExecModel = "simple"
	ExecModelComplete ExecModel = "complete"
)

// ExecSection is `[execution]`.
type ExecSection struct {
	Model                ExecModel       `mapstructure:"model"`
	BuyKind              OrderKind       `mapstructure:"buy_kind"`
	SellKind             OrderKind       `mapstructure:"sell_kind"`
	PriceReference       string          `mapstructure:"price_reference"` // close|open
	LimitOffsetBps       decimal.Decimal `mapstructure:"limit_offset_bps"`
	StopOffsetBps        decimal.Decimal `mapstructure:"stop_offset_bps"`
	SpreadBps            decimal.Decimal `mapstructure:"spread_bps"`
	LatencyBars          int             `mapstructure:"latency_bars"`
	TIF                  TIF             `mapstructure:"tif"`
	ExpireAfterBars      *int            `mapstructure:"expire_after_bars"`
	MaxFillPctOfVolume   decimal.Decimal `mapstructure:"max_fill_pct_of_volume"`
}

// SizeMode selects how Action.Size is interpreted when sizing orders.
type SizeMode string

const (
	SizeModeQty        SizeMode = "qty"
	SizeModePctEquity  SizeMode = "pct_equity"
)

// OrdersSection is `[orders]`.
type OrdersSection struct {
	SizeMode SizeMode `mapstructure:"size_mode"`
}

// ReturnMode selects log or simple percentage returns in the feature pipeline.
type ReturnMode string

const (
	ReturnModeLog ReturnMode = "log"
	ReturnModePct ReturnMode = "pct"
)

// SentimentMissingPolicy controls how the feature pipeline handles a
// bar with no usable sentiment observation.
type SentimentMissingPolicy string

const (
	SentimentMissingError        SentimentMissingPolicy = "error"
	SentimentMissingZeroFill     SentimentMissingPolicy = "zero_fill"
	SentimentMissingForwardFill  SentimentMissingPolicy = "forward_fill"
	SentimentMissingDropRow      SentimentMissingPolicy = "drop_row"
)

// FeaturesSection is `[features]`.
type FeaturesSection struct {
	ReturnMode         ReturnMode             `mapstructure:"return_mode"`
	SMAWindows         []int                  `mapstructure:"sma_windows"`
	VolatilityWindows  []int                  `mapstructure:"volatility_windows"`
	RSIEnabled         bool                   `mapstructure:"rsi_enabled"`
	SentimentLag       time.Duration          `mapstructure:"sentiment_lag"`
	SentimentMissing   SentimentMissingPolicy `mapstructure:"sentiment_missing"`
	SentimentMaxGap    *time.Duration         `mapstructure:"sentiment_max_gap"`
	SkipWarmup         bool                   `mapstructure:"skip_warmup"`
}

// RiskSection is `[risk]`. RiskFreeRate is a per-bar rate subtracted
// from each return before the Sharpe reduction (§4.6); not part of the
// core config table in spec.md §6 but named there as "configurable",
// so it lives alongside the other risk knobs rather than inventing a
// new config section for one field.
type RiskSection struct {
	MaxPositionQty decimal.Decimal `mapstructure:"max_position_qty"`
	MaxExposurePct decimal.Decimal `mapstructure:"max_exposure_pct"`
	MaxDrawdownPct decimal.Decimal `mapstructure:"max_drawdown_pct"`
	RiskFreeRate   decimal.Decimal `mapstructure:"risk_free_rate"`
}

// AgentMode selects between built-in baselines and a remote HTTP agent.
type AgentMode string

const (
	AgentModeBaseline AgentMode = "baseline"
	AgentModeRemote   AgentMode = "remote"
)

// AgentSection is `[agent]`.
type AgentSection struct {
	Mode             AgentMode  `mapstructure:"mode"`
	Baseline         string     `mapstructure:"baseline"` // "buy_and_hold" | "sma_crossover"
	SmaFast          int        `mapstructure:"sma_fast"`
	SmaSlow          int        `mapstructure:"sma_slow"`
	URL              string     `mapstructure:"url"`
	TimeoutMs        int        `mapstructure:"timeout_ms"`
	Retries          int        `mapstructure:"retries"`
	FallbackAction   ActionType `mapstructure:"fallback_action"`
	APIVersion       string     `mapstructure:"api_version"`
	FeatureVersion   string     `mapstructure:"feature_version"`
	FatalOnProtocol  bool       `mapstructure:"fatal_on_protocol"`
}

// DataQualitySection is `[data_quality]`.
type DataQualitySection struct {
	MaxGaps         int `mapstructure:"max_gaps"`
	MaxMissingBars  int `mapstructure:"max_missing_bars"`
	MaxDuplicates   int `mapstructure:"max_duplicates"`
	MaxOutOfOrder   int `mapstructure:"max_out_of_order"`
	MaxInvalidClose int `mapstructure:"max_invalid_close"`
	Strict          bool `mapstructure:"strict"`
}

// Default returns a RunConfig populated with the spec's documented defaults.
func Default() RunConfig {
	return RunConfig{
		Run: RunSection{
			Timeframe:      Timeframe1m,
			InitialCapital: decimal.NewFromInt(10000),
		},
		Paths: PathsSection{
			OutDir: "./out",
		},
		Costs: CostsSection{
			FeeBps:      decimal.NewFromInt(10),
			SlippageBps: decimal.NewFromInt(5),
		},
		Exec: ExecSection{
			Model:              ExecModelSimple,
			BuyKind:            OrderKindMarket,
			SellKind:           OrderKindMarket,
			PriceReference:     "close",
			TIF:                TIFGTC,
			MaxFillPctOfVolume: decimal.NewFromInt(1),
		},
		Orders: OrdersSection{
			SizeMode: SizeModeQty,
		},
		Feats: FeaturesSection{
			ReturnMode:       ReturnModePct,
			RSIEnabled:       false,
			SentimentMissing: SentimentMissingZeroFill,
			SkipWarmup:       true,
		},
		Risk: RiskSection{
			MaxPositionQty: decimal.NewFromInt(1 << 30),
			MaxExposurePct: decimal.NewFromInt(1),
			MaxDrawdownPct: decimal.NewFromInt(1),
		},
		Agent: AgentSection{
			Mode:           AgentModeBaseline,
			Baseline:       "buy_and_hold",
			TimeoutMs:      2000,
			Retries:        1,
			FallbackAction: ActionHold,
			APIVersion:     "v1",
		},
		DQ: DataQualitySection{
			Strict: false,
		},
	}
}
