package features

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos-alloy/alloy/pkg/types"
)

func bar(ts int64, close float64) types.Bar {
	return types.Bar{
		TimestampUTC: ts,
		Open:         decimal.NewFromFloat(close),
		High:         decimal.NewFromFloat(close),
		Low:          decimal.NewFromFloat(close),
		Close:        decimal.NewFromFloat(close),
		Volume:       decimal.NewFromInt(100),
	}
}

func TestPipeline_WarmupProducesInvalidObservations(t *testing.T) {
	cfg := types.FeaturesSection{
		ReturnMode: types.ReturnModePct,
		SMAWindows: []int{3},
	}
	p := NewPipeline(cfg, nil, nil)

	obs, err := p.Observe(bar(0, 100))
	require.NoError(t, err)
	assert.False(t, obs.Valid, "first bar has no prior return and no full SMA window")

	obs, err = p.Observe(bar(60, 101))
	require.NoError(t, err)
	assert.False(t, obs.Valid)

	obs, err = p.Observe(bar(120, 102))
	require.NoError(t, err)
	assert.True(t, obs.Valid, "third bar completes the 3-period SMA window")
}

func TestPipeline_ReturnModeLogVsPct(t *testing.T) {
	pct := NewPipeline(types.FeaturesSection{ReturnMode: types.ReturnModePct}, nil, nil)
	log := NewPipeline(types.FeaturesSection{ReturnMode: types.ReturnModeLog}, nil, nil)

	_, _ = pct.Observe(bar(0, 100))
	obsPct, _ := pct.Observe(bar(60, 110))

	_, _ = log.Observe(bar(0, 100))
	obsLog, _ := log.Observe(bar(60, 110))

	assert.InDelta(t, 0.10, obsPct.Values[0], 1e-9)
	assert.InDelta(t, 0.0953101798, obsLog.Values[0], 1e-9)
}

func TestPipeline_SentimentZeroFillBeforeFirstPoint(t *testing.T) {
	cfg := types.FeaturesSection{
		ReturnMode:       types.ReturnModePct,
		SentimentMissing: types.SentimentMissingZeroFill,
	}
	schema := types.SentimentSchema{"score"}
	sentiment := []types.SentimentPoint{
		{TimestampUTC: 120, Metrics: map[string]float64{"score": 0.8}},
	}
	p := NewPipeline(cfg, schema, sentiment)

	obs, err := p.Observe(bar(0, 100))
	require.NoError(t, err)
	require.Len(t, obs.Values, 2) // return + 1 sentiment metric
	assert.Equal(t, 0.0, obs.Values[1])
}

func TestPipeline_SentimentCausalLag(t *testing.T) {
	cfg := types.FeaturesSection{
		ReturnMode:       types.ReturnModePct,
		SentimentLag:     time.Minute,
		SentimentMissing: types.SentimentMissingZeroFill,
	}
	schema := types.SentimentSchema{"score"}
	sentiment := []types.SentimentPoint{
		{TimestampUTC: 0, Metrics: map[string]float64{"score": 0.5}},
	}
	p := NewPipeline(cfg, schema, sentiment)

	// At bar ts=0, the sentiment point published at ts=0 is not yet
	// visible because it needs a full minute of lag.
	obs, err := p.Observe(bar(0, 100))
	require.NoError(t, err)
	assert.Equal(t, 0.0, obs.Values[1])

	// At bar ts=60, the lag has elapsed and the point becomes visible.
	obs, err = p.Observe(bar(60, 101))
	require.NoError(t, err)
	assert.Equal(t, 0.5, obs.Values[1])
}

func TestPipeline_SentimentMissingErrorPolicy(t *testing.T) {
	cfg := types.FeaturesSection{
		ReturnMode:       types.ReturnModePct,
		SentimentMissing: types.SentimentMissingError,
	}
	schema := types.SentimentSchema{"score"}
	p := NewPipeline(cfg, schema, nil)

	_, err := p.Observe(bar(0, 100))
	assert.Error(t, err)
}

func TestPipeline_SentimentDropRowPolicy(t *testing.T) {
	cfg := types.FeaturesSection{
		ReturnMode:       types.ReturnModePct,
		SentimentMissing: types.SentimentMissingDropRow,
	}
	schema := types.SentimentSchema{"score"}
	p := NewPipeline(cfg, schema, nil)

	obs, err := p.Observe(bar(0, 100))
	require.NoError(t, err)
	assert.False(t, obs.Valid)
	assert.Nil(t, obs.Values)
}

func TestPipeline_Width(t *testing.T) {
	cfg := types.FeaturesSection{
		SMAWindows:        []int{5, 10},
		VolatilityWindows: []int{20},
		RSIEnabled:        true,
	}
	p := NewPipeline(cfg, types.SentimentSchema{"a", "b"}, nil)
	assert.Equal(t, 1+2+1+1+2, p.Width())
}
