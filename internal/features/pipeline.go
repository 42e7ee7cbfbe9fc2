// Package features builds the fixed-order observation vector the
// strategy port sees for each bar: returns, rolling SMA/volatility
// windows, RSI(14), and causally-aligned sentiment metrics.
package features

import (
	"math"
	"sort"

	"github.com/kairos-alloy/alloy/internal/kairoserr"
	"github.com/kairos-alloy/alloy/pkg/types"
)

// Pipeline computes the per-bar observation vector. It is stateful
// only in that it retains the full close/return history seen so far;
// it never looks ahead of the bar it is asked to observe.
type Pipeline struct {
	cfg types.FeaturesSection

	closes  []float64
	returns []float64 // returns[i] is the return ending at closes[i]; returns[0] is NaN

	sentimentSchema types.SentimentSchema
	sentiment       []types.SentimentPoint // sorted ascending by TimestampUTC
	lastSentiment   map[string]float64     // last forward-filled values, keyed by metric name
}

// NewPipeline constructs a Pipeline over a declared sentiment schema.
// schema may be nil/empty when the run has no sentiment source.
func NewPipeline(cfg types.FeaturesSection, schema types.SentimentSchema, sentiment []types.SentimentPoint) *Pipeline {
	sorted := make([]types.SentimentPoint, len(sentiment))
	copy(sorted, sentiment)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TimestampUTC < sorted[j].TimestampUTC })

	return &Pipeline{
		cfg:             cfg,
		sentimentSchema: schema,
		sentiment:       sorted,
		lastSentiment:   make(map[string]float64, len(schema)),
	}
}

// Width returns the fixed length of the observation vector this
// pipeline produces: 1 (return) + len(SMAWindows) + len(VolatilityWindows)
// + (1 if RSIEnabled) + len(sentimentSchema).
func (p *Pipeline) Width() int {
	w := 1 + len(p.cfg.SMAWindows) + len(p.cfg.VolatilityWindows)
	if p.cfg.RSIEnabled {
		w++
	}
	return w + len(p.sentimentSchema)
}

// Observe appends bar's close to the pipeline's history and returns
// the observation vector for this bar. It must be called exactly once
// per bar, in strictly increasing TimestampUTC order.
func (p *Pipeline) Observe(bar types.Bar) (types.Observation, error) {
	close64, _ := bar.Close.Float64()
	p.closes = append(p.closes, close64)
	i := len(p.closes) - 1

	var ret float64
	if p.cfg.ReturnMode == types.ReturnModeLog {
		ret = logReturn(p.closes, i)
	} else {
		ret = simpleReturn(p.closes, i)
	}
	p.returns = append(p.returns, ret)

	values := make([]float64, 0, p.Width())
	values = append(values, ret)

	for _, w := range p.cfg.SMAWindows {
		values = append(values, rollingSMA(p.closes, i, w))
	}
	for _, w := range p.cfg.VolatilityWindows {
		values = append(values, rollingStdDev(p.returns, i, w))
	}
	if p.cfg.RSIEnabled {
		values = append(values, rsi14(p.closes, i))
	}

	sentVals, err := p.sentimentFor(bar.TimestampUTC)
	if err != nil {
		return types.Observation{}, err
	}
	if sentVals == nil {
		// drop_row: no valid observation vector for this bar.
		return types.Observation{Valid: false}, nil
	}
	values = append(values, sentVals...)

	return types.Observation{Values: values, Valid: !containsNaN(values)}, nil
}

// sentimentFor resolves the sentiment metric vector visible to bar at
// timestamp barTS, applying sentiment_lag and the configured missing
// policy. Only sentiment points with TimestampUTC + lag <= barTS are
// visible (strict causality). Returns (nil, nil) to signal drop_row.
func (p *Pipeline) sentimentFor(barTS int64) ([]float64, error) {
	if len(p.sentimentSchema) == 0 {
		return []float64{}, nil
	}

	lagSeconds := int64(p.cfg.SentimentLag.Seconds())
	var latest *types.SentimentPoint
	for idx := range p.sentiment {
		pt := p.sentiment[idx]
		if pt.TimestampUTC+lagSeconds > barTS {
			break
		}
		latest = &p.sentiment[idx]
	}

	if latest == nil {
		return p.applyMissingPolicy(barTS, nil)
	}

	if p.cfg.SentimentMaxGap != nil {
		gap := barTS - (latest.TimestampUTC + lagSeconds)
		if gap > int64(p.cfg.SentimentMaxGap.Seconds()) {
			return p.applyMissingPolicy(barTS, nil)
		}
	}

	out := make([]float64, len(p.sentimentSchema))
	missingAny := false
	for i, name := range p.sentimentSchema {
		v, ok := latest.Metrics[name]
		if !ok {
			missingAny = true
			continue
		}
		out[i] = v
		p.lastSentiment[name] = v
	}
	if missingAny {
		return p.applyMissingPolicy(barTS, out)
	}
	return out, nil
}

// applyMissingPolicy resolves a missing (or partially missing)
// sentiment observation per the configured policy. partial may be nil
// (nothing visible yet) or a vector with zero-valued gaps.
func (p *Pipeline) applyMissingPolicy(barTS int64, partial []float64) ([]float64, error) {
	switch p.cfg.SentimentMissing {
	case types.SentimentMissingError:
		return nil, kairoserr.DataQuality("features.sentiment", errSentimentMissing(barTS))
	case types.SentimentMissingDropRow:
		return nil, nil
	case types.SentimentMissingForwardFill:
		out := make([]float64, len(p.sentimentSchema))
		for i, name := range p.sentimentSchema {
			if partial != nil && partial[i] != 0 {
				out[i] = partial[i]
				continue
			}
			out[i] = p.lastSentiment[name]
		}
		return out, nil
	case types.SentimentMissingZeroFill:
		fallthrough
	default:
		if partial != nil {
			return partial, nil
		}
		return make([]float64, len(p.sentimentSchema)), nil
	}
}

func containsNaN(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

type sentimentMissingErr struct{ barTS int64 }

func (e sentimentMissingErr) Error() string {
	return "no sentiment observation available for bar"
}

func errSentimentMissing(barTS int64) error { return sentimentMissingErr{barTS: barTS} }
