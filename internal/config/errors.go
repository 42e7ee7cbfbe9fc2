package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

func errMissingSymbol() error {
	return fmt.Errorf("run.symbol is required")
}

func errNonPositiveCapital(capital decimal.Decimal) error {
	return fmt.Errorf("run.initial_capital must be positive, got %s", capital)
}
