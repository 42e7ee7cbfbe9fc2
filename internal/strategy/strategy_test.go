package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kairos-alloy/alloy/pkg/types"
)

func TestBuyAndHold_BuysOnceThenHolds(t *testing.T) {
	s := NewBuyAndHold(false)
	obs := types.Observation{Valid: true, Values: []float64{0.01}}
	pv := types.PortfolioView{Cash: decimal.NewFromInt(1000)}

	action, err := s.Decide(context.Background(), types.Bar{}, obs, pv)
	require.NoError(t, err)
	assert.Equal(t, types.ActionBuy, action.Type)

	pv.PositionQty = decimal.NewFromInt(10)
	action, err = s.Decide(context.Background(), types.Bar{}, obs, pv)
	require.NoError(t, err)
	assert.Equal(t, types.ActionHold, action.Type)
}

func TestBuyAndHold_HoldsDuringWarmup(t *testing.T) {
	s := NewBuyAndHold(true)
	obs := types.Observation{Valid: false}
	action, err := s.Decide(context.Background(), types.Bar{}, obs, types.PortfolioView{})
	require.NoError(t, err)
	assert.Equal(t, types.ActionHold, action.Type)
}

func TestBuyAndHold_NoSkipWarmupBuysDespiteInvalidObservation(t *testing.T) {
	s := NewBuyAndHold(false)
	obs := types.Observation{Valid: false}
	action, err := s.Decide(context.Background(), types.Bar{}, obs, types.PortfolioView{Cash: decimal.NewFromInt(1000)})
	require.NoError(t, err)
	assert.Equal(t, types.ActionBuy, action.Type, "features.skip_warmup=false must let the strategy act before warmup completes")
}

func TestSmaCrossover_BuysOnUpwardCross(t *testing.T) {
	s := NewSmaCrossover(0, 1, false)
	pv := types.PortfolioView{}

	// fast below slow
	_, err := s.Decide(context.Background(), types.Bar{}, types.Observation{Valid: true, Values: []float64{10, 20}}, pv)
	require.NoError(t, err)

	// fast crosses above slow
	action, err := s.Decide(context.Background(), types.Bar{}, types.Observation{Valid: true, Values: []float64{25, 20}}, pv)
	require.NoError(t, err)
	assert.Equal(t, types.ActionBuy, action.Type)
}

func TestSmaCrossover_SellsOnDownwardCross(t *testing.T) {
	s := NewSmaCrossover(0, 1, false)
	pv := types.PortfolioView{PositionQty: decimal.NewFromInt(5)}

	_, _ = s.Decide(context.Background(), types.Bar{}, types.Observation{Valid: true, Values: []float64{25, 20}}, pv)
	action, err := s.Decide(context.Background(), types.Bar{}, types.Observation{Valid: true, Values: []float64{15, 20}}, pv)
	require.NoError(t, err)
	assert.Equal(t, types.ActionSell, action.Type)
}
