package features

import "math"

// rollingSMA computes the simple moving average ending at index i over
// the last window closes. Returns NaN until enough history exists.
func rollingSMA(closes []float64, i, window int) float64 {
	if i+1 < window {
		return math.NaN()
	}
	var sum float64
	for j := i - window + 1; j <= i; j++ {
		sum += closes[j]
	}
	return sum / float64(window)
}

// rollingStdDev computes the population standard deviation of the
// pipeline's per-bar returns (log or pct, per return_mode) ending at
// index i over the last window returns.
func rollingStdDev(returns []float64, i, window int) float64 {
	if i+1 < window {
		return math.NaN()
	}
	var sum float64
	for j := i - window + 1; j <= i; j++ {
		sum += returns[j]
	}
	mean := sum / float64(window)

	var sqSum float64
	for j := i - window + 1; j <= i; j++ {
		d := returns[j] - mean
		sqSum += d * d
	}
	return math.Sqrt(sqSum / float64(window))
}

// rsi14 computes the 14-period relative strength index ending at index
// i from the simple averages of the gains and losses over the last 14
// close-to-close changes (no Wilder smoothing). Returns NaN until at
// least 15 closes are available.
func rsi14(closes []float64, i int) float64 {
	const period = 14
	if i < period {
		return math.NaN()
	}

	var gainSum, lossSum float64
	for j := i - period + 1; j <= i; j++ {
		delta := closes[j] - closes[j-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / period
	avgLoss := lossSum / period

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// simpleReturn computes (close[i] - close[i-1]) / close[i-1].
func simpleReturn(closes []float64, i int) float64 {
	if i < 1 || closes[i-1] == 0 {
		return math.NaN()
	}
	return (closes[i] - closes[i-1]) / closes[i-1]
}

// logReturn computes ln(close[i] / close[i-1]).
func logReturn(closes []float64, i int) float64 {
	if i < 1 || closes[i-1] <= 0 || closes[i] <= 0 {
		return math.NaN()
	}
	return math.Log(closes[i] / closes[i-1])
}
