package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func errQtyExceedsPosition(qty, position decimal.Decimal) error {
	return fmt.Errorf("sell qty %s exceeds held position %s", qty, position)
}

func errNegativeCash(cash decimal.Decimal) error {
	return fmt.Errorf("cash went negative: %s", cash)
}

func errNegativePosition(qty decimal.Decimal) error {
	return fmt.Errorf("position quantity went negative: %s", qty)
}

func errRiskHalted() error {
	return fmt.Errorf("run is risk-halted, no further orders may be scheduled")
}

func errMaxPositionQty(resulting, max decimal.Decimal) error {
	return fmt.Errorf("resulting position qty %s exceeds max_position_qty %s", resulting, max)
}

func errMaxExposure(pct, max decimal.Decimal) error {
	return fmt.Errorf("resulting exposure %s exceeds max_exposure_pct %s", pct, max)
}
