package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kairos-alloy/alloy/internal/agentclient"
	"github.com/kairos-alloy/alloy/internal/artifacts"
	"github.com/kairos-alloy/alloy/internal/audit"
	"github.com/kairos-alloy/alloy/internal/config"
	"github.com/kairos-alloy/alloy/internal/dataquality"
	"github.com/kairos-alloy/alloy/internal/execution"
	"github.com/kairos-alloy/alloy/internal/features"
	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/internal/marketdata"
	"github.com/kairos-alloy/alloy/internal/metrics"
	"github.com/kairos-alloy/alloy/internal/orchestrator"
	"github.com/kairos-alloy/alloy/internal/portfolio"
	"github.com/kairos-alloy/alloy/internal/progress"
	"github.com/kairos-alloy/alloy/internal/sentiment"
	"github.com/kairos-alloy/alloy/internal/strategy"
	"github.com/kairos-alloy/alloy/internal/telemetry"
	"github.com/kairos-alloy/alloy/pkg/types"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		ohlcvPath  string
		logLevel   string
		serve      bool
		servePort  int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a deterministic backtest run and write its artifacts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBacktest(cmd.Context(), runOptions{
				configPath: configPath,
				ohlcvPath:  ohlcvPath,
				logLevel:   logLevel,
				serve:      serve,
				servePort:  servePort,
			})
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "run.toml", "path to the run's TOML config")
	cmd.Flags().StringVar(&ohlcvPath, "ohlcv", "", "path to the OHLCV CSV file to replay (required)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&serve, "serve", false, "expose a live progress websocket while the run executes")
	cmd.Flags().IntVar(&servePort, "port", 8090, "port for --serve's progress server")
	_ = cmd.MarkFlagRequired("ohlcv")

	return cmd
}

type runOptions struct {
	configPath string
	ohlcvPath  string
	logLevel   string
	serve      bool
	servePort  int
}

func runBacktest(ctx context.Context, opts runOptions) error {
	logger := setupLogger(opts.logLevel)
	defer logger.Sync()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	if err := artifacts.EnsureOutDir(cfg.Paths.OutDir); err != nil {
		return err
	}

	bars, err := marketdata.NewCSVLoader(opts.ohlcvPath).Load(ctx, cfg.Run.Symbol, cfg.Run.Timeframe)
	if err != nil {
		return err
	}

	dqReport, err := dataquality.New(cfg.DQ, logger).Validate(bars, int64(cfg.Run.Timeframe.Duration().Seconds()))
	if err != nil {
		writeAbortSummary(cfg, types.RunStatusAbortedData)
		return err
	}
	logger.Info("data quality report",
		zap.Int("gaps", dqReport.Gaps),
		zap.Int("duplicates", dqReport.Duplicates),
		zap.Int("out_of_order", dqReport.OutOfOrder),
		zap.Int("invalid_close", dqReport.InvalidClose),
	)

	schema, sentimentPoints, err := sentiment.NewCSVLoader(cfg.Paths.SentimentPath).Load(ctx)
	if err != nil {
		return err
	}

	pipeline := features.NewPipeline(cfg.Feats, schema, sentimentPoints)
	strat, metricsReg, err := buildStrategy(cfg, logger)
	if err != nil {
		return err
	}

	engine := execution.New(cfg.Exec, cfg.Costs, logger)
	book := portfolio.New(cfg.Run.InitialCapital, types.RiskLimits{
		MaxPositionQty: cfg.Risk.MaxPositionQty,
		MaxExposurePct: cfg.Risk.MaxExposurePct,
		MaxDrawdownPct: cfg.Risk.MaxDrawdownPct,
	}, logger)

	sink, err := audit.NewFileSink(filepath.Join(cfg.Paths.OutDir, "logs.jsonl"), 64)
	if err != nil {
		return err
	}
	defer sink.Close()

	telemetryRegistry := telemetry.NewRegistry(metricsReg)

	var hub *progress.Hub
	if opts.serve {
		hub = progress.NewHub(logger)
		go startProgressServer(fmt.Sprintf(":%d", opts.servePort), hub.Handler(), logger)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Warn("interrupt received, stopping after current bar")
		cancel()
	}()

	orch := orchestrator.New(orchestrator.Config{
		Pipeline:  pipeline,
		Strategy:  strat,
		Engine:    engine,
		Book:      book,
		SizeMode:  cfg.Orders.SizeMode,
		Sink:      sink,
		Telemetry: telemetryRegistry,
		Log:       logger,
		OnProgress: func(barIdx, totalBars int, eq types.EquityPoint) {
			if hub == nil {
				return
			}
			hub.Broadcast(progress.Snapshot{
				BarIndex:     barIdx,
				TotalBars:    totalBars,
				TimestampUTC: eq.TimestampUTC,
				Equity:       eq,
			})
		},
	})

	result, runErr := orch.Run(runCtx, bars)
	if runErr != nil {
		// Invariant violations, fatal agent protocol errors, and
		// user cancellation all terminate the bar loop; none of them
		// are a risk halt (that is Result.Status, not an error).
		writeAbortSummaryWithID(cfg, orch.RunID, types.RunStatusAbortedRuntime)
		return runErr
	}

	cfg.Run.RunID = orch.RunID
	perf := metrics.Calculate(result.Trades, result.Equity, cfg.Run.InitialCapital, cfg.Run.Timeframe, cfg.Risk.RiskFreeRate)

	if err := artifacts.WriteTrades(cfg.Run.Symbol, cfg.Paths.OutDir, result.Trades); err != nil {
		return err
	}
	if err := artifacts.WriteEquity(cfg.Paths.OutDir, result.Equity); err != nil {
		return err
	}
	if err := artifacts.WriteSummary(cfg.Paths.OutDir, artifacts.Summary{
		RunID:      orch.RunID,
		Symbol:     cfg.Run.Symbol,
		Status:     result.Status,
		TradeCount: len(result.Trades),
		Metrics:    perf,
	}); err != nil {
		return err
	}
	if err := config.WriteSnapshot(cfg, filepath.Join(cfg.Paths.OutDir, "config_snapshot.toml")); err != nil {
		return err
	}

	logger.Info("run complete",
		zap.String("run_id", orch.RunID),
		zap.String("status", string(result.Status)),
		zap.Int("trades", len(result.Trades)),
	)

	return nil
}

// writeAbortSummary best-effort writes a minimal summary.json carrying
// an abort status when the run terminates before producing trades or
// an equity curve. It is called on a data-quality validation failure
// and (via writeAbortSummaryWithID) on a bar-loop error; the other
// early returns in runBacktest, including a config load failure,
// write no summary.
func writeAbortSummary(cfg types.RunConfig, status types.RunStatus) {
	writeAbortSummaryWithID(cfg, cfg.Run.RunID, status)
}

// writeAbortSummaryWithID is writeAbortSummary with an explicit run ID,
// used once the orchestrator (and its generated run ID) already exists
// when the abort happens.
func writeAbortSummaryWithID(cfg types.RunConfig, runID string, status types.RunStatus) {
	_ = artifacts.WriteSummary(cfg.Paths.OutDir, artifacts.Summary{
		RunID:  runID,
		Symbol: cfg.Run.Symbol,
		Status: status,
	})
}

// buildStrategy selects a baseline strategy.Strategy or a remote
// agentclient.Client per `[agent] mode`, grounded on the teacher's
// main.go component-wiring shape.
func buildStrategy(cfg types.RunConfig, logger *zap.Logger) (strategy.Strategy, prometheus.Registerer, error) {
	reg := prometheus.NewRegistry()

	switch cfg.Agent.Mode {
	case types.AgentModeRemote:
		metricsClient := agentclient.NewMetrics(reg)
		client := agentclient.New(cfg.Agent, cfg.Run.RunID, cfg.Run.Symbol, cfg.Run.Timeframe, metricsClient, logger)
		return client, reg, nil
	default:
		switch cfg.Agent.Baseline {
		case "sma_crossover":
			fastIdx, slowIdx, err := smaObservationIndices(cfg.Feats, cfg.Agent.SmaFast, cfg.Agent.SmaSlow)
			if err != nil {
				return nil, nil, err
			}
			return strategy.NewSmaCrossover(fastIdx, slowIdx, cfg.Feats.SkipWarmup), reg, nil
		default:
			return strategy.NewBuyAndHold(cfg.Feats.SkipWarmup), reg, nil
		}
	}
}

// smaObservationIndices resolves the fast/slow SMA periods configured
// under [agent] to their position in the observation vector the
// feature pipeline builds: index 0 is always the return feature,
// followed by one value per entry in features.sma_windows in
// declaration order (§4.1).
func smaObservationIndices(feats types.FeaturesSection, fastPeriod, slowPeriod int) (fastIdx, slowIdx int, err error) {
	fastIdx = -1
	slowIdx = -1
	for i, w := range feats.SMAWindows {
		if w == fastPeriod {
			fastIdx = i + 1
		}
		if w == slowPeriod {
			slowIdx = i + 1
		}
	}
	if fastIdx == -1 || slowIdx == -1 {
		return 0, 0, kairoserr.Config("buildStrategy",
			fmt.Errorf("sma_crossover requires sma_fast=%d and sma_slow=%d to both appear in features.sma_windows=%v", fastPeriod, slowPeriod, feats.SMAWindows))
	}
	return fastIdx, slowIdx, nil
}

func setupLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "time",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalColorLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func startProgressServer(addr string, handler http.Handler, logger *zap.Logger) {
	srv := &http.Server{Addr: addr, Handler: handler, ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Warn("progress server stopped", zap.Error(err))
	}
}
