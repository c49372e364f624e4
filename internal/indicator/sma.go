package indicator

// ComputeFull returns the trailing simple moving average of prices, one value
// per input price.
//
// Value i is the mean of prices[max(0, i-period+1) .. i]. Near the start the
// window is shorter than period: the first value equals the first price, the
// second is the mean of the first two, and so on. Values are rounded to
// AveragePlaces.
func ComputeFull(prices []float64, period int) []float64 {
	period = clampPeriod(period)
	out := make([]float64, len(prices))
	for i := range prices {
		start := i - period + 1
		if start < 0 {
			start = 0
		}
		out[i] = windowMean(prices[start:i], prices[i])
	}
	return out
}

// ExtendOne returns the moving average at the last index of
// append(prices, next) without recomputing the whole series.
//
// The result equals ComputeFull(append(prices, next), period)[len(prices)].
// During warm-up (fewer than period prices available) nothing drops out of
// the window.
func ExtendOne(prices []float64, next float64, period int) float64 {
	period = clampPeriod(period)
	start := len(prices) + 1 - period
	if start < 0 {
		start = 0
	}
	return windowMean(prices[start:], next)
}

// windowMean averages the prices before the newest one plus the newest one.
// Summation order is fixed so ComputeFull and ExtendOne produce identical
// floats for the same window.
func windowMean(before []float64, newest float64) float64 {
	var sum float64
	for _, p := range before {
		sum += p
	}
	sum += newest
	return Round(sum/float64(len(before)+1), AveragePlaces)
}

func clampPeriod(period int) int {
	if period < 1 {
		return 1
	}
	return period
}
