// Package dataquality validates an OHLCV series for gaps, duplicate or
// out-of-order timestamps, and invalid close prices before a run is
// allowed to start.
package dataquality

import (
	"go.uber.org/zap"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// Report summarizes the quality issues found in a bar series.
type Report struct {
	Gaps         int
	MissingBars  int
	Duplicates   int
	OutOfOrder   int
	InvalidClose int
}

// Exceeds reports whether any count in the report breaches the
// configured thresholds.
func (r Report) Exceeds(cfg types.DataQualitySection) bool {
	return r.Gaps > cfg.MaxGaps ||
		r.MissingBars > cfg.MaxMissingBars ||
		r.Duplicates > cfg.MaxDuplicates ||
		r.OutOfOrder > cfg.MaxOutOfOrder ||
		r.InvalidClose > cfg.MaxInvalidClose
}

// Validator runs the configured data-quality checks over an OHLCV
// series loaded for a run.
type Validator struct {
	cfg types.DataQualitySection
	log *zap.Logger
}

// New constructs a Validator.
func New(cfg types.DataQualitySection, log *zap.Logger) *Validator {
	return &Validator{cfg: cfg, log: log}
}

// Validate checks bars (expected to already be sorted ascending by
// timestamp by the loader) for duplicates, ordering violations,
// invalid closes, and gaps relative to the expected bar step. When the
// report exceeds the configured thresholds, Validate logs a warning;
// in strict mode it also returns a KindDataQuality error, while in
// non-strict mode it returns the report with a nil error.
func (v *Validator) Validate(bars []types.Bar, step int64) (Report, error) {
	var report Report

	seen := make(map[int64]int, len(bars))
	for i, bar := range bars {
		seen[bar.TimestampUTC]++

		if bar.Close.IsNegative() || bar.Close.IsZero() {
			report.InvalidClose++
		}
		if bar.High.LessThan(bar.Low) {
			report.InvalidClose++
		}
		if bar.Close.GreaterThan(bar.High) || bar.Close.LessThan(bar.Low) {
			report.InvalidClose++
		}

		if i == 0 {
			continue
		}
		prev := bars[i-1]
		if bar.TimestampUTC <= prev.TimestampUTC {
			report.OutOfOrder++
			continue
		}

		delta := bar.TimestampUTC - prev.TimestampUTC
		if delta > step {
			report.Gaps++
			missing := delta/step - 1
			report.MissingBars += int(missing)
		}
	}
	for _, count := range seen {
		if count > 1 {
			report.Duplicates += count - 1
		}
	}

	if report.Exceeds(v.cfg) {
		if v.log != nil {
			v.log.Warn("data quality thresholds exceeded",
				zap.Int("gaps", report.Gaps),
				zap.Int("missing_bars", report.MissingBars),
				zap.Int("duplicates", report.Duplicates),
				zap.Int("out_of_order", report.OutOfOrder),
				zap.Int("invalid_close", report.InvalidClose),
				zap.Bool("strict", v.cfg.Strict))
		}
		if v.cfg.Strict {
			return report, kairoserr.DataQuality("dataquality.Validate", errThresholdsExceeded(report))
		}
	}

	return report, nil
}
