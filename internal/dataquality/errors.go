package dataquality

import "fmt"

func errThresholdsExceeded(r Report) error {
	return fmt.Errorf(
		"data quality thresholds exceeded: gaps=%d missing_bars=%d duplicates=%d out_of_order=%d invalid_close=%d",
		r.Gaps, r.MissingBars, r.Duplicates, r.OutOfOrder, r.InvalidClose,
	)
}
