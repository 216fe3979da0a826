// Package indicators implements the pure, deterministic analytic
// primitives that scan over a single ticker's price series. Each
// function takes already-sliced data and returns a scalar or boolean
// — the per-ticker/per-date orchestration lives in package screen and
// package rank. Grounded on the internal/domain/indicators/technical.go
// RSI shape, generalized to the simple-average RSI variant and the
// remaining primitives this package needs.
package indicators

import "math"

// PctChange computes (curr-prev)/prev*100, requiring both finite and
// prev nonzero. ok is false when the guard fails.
func PctChange(prev, curr float64) (value float64, ok bool) {
	if math.IsNaN(prev) || math.IsNaN(curr) || prev == 0 {
		return 0, false
	}
	return (curr - prev) / prev * 100, true
}

// RSI computes the Relative Strength Index using the simple-average
// variant over the most recent `window` diffs: gains and
// losses are simple means over the window, not Wilder's running EMA.
// closes must be ordered ascending by date and include at least
// window+1 points ending at the evaluation date.
func RSI(closes []float64, window int) (value float64, ok bool) {
	if window <= 0 || len(closes) < window+1 {
		return 0, false
	}
	recent := closes[len(closes)-window-1:]
	var gainSum, lossSum float64
	for i := 1; i < len(recent); i++ {
		delta := recent[i] - recent[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum += -delta
		}
	}
	avgGain := gainSum / float64(window)
	avgLoss := lossSum / float64(window)
	if avgLoss == 0 {
		return 100.0, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MovingAverage is the simple mean of the last `window` values,
// including the evaluation point itself.
func MovingAverage(values []float64, window int) (value float64, ok bool) {
	if window <= 0 || len(values) < window {
		return 0, false
	}
	recent := values[len(values)-window:]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	return sum / float64(window), true
}

// PercentDeviation computes (price-ma)/ma*100; positive means above MA.
func PercentDeviation(price, ma float64) (value float64, ok bool) {
	if ma == 0 {
		return 0, false
	}
	return (price - ma) / ma * 100, true
}

// StdDev is the population standard deviation of values.
func StdDev(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(n))
}

// BollingerBands returns the 20-style band (ma, upper, lower) for the
// last `window` values including today.
func BollingerBands(values []float64, window int, mult float64) (ma, upper, lower float64, ok bool) {
	if window <= 0 || len(values) < window {
		return 0, 0, 0, false
	}
	recent := values[len(values)-window:]
	ma, _ = MovingAverage(values, window)
	sd := StdDev(recent)
	return ma, ma + mult*sd, ma - mult*sd, true
}

// PeakBreak reports whether today's close is at or above the max close
// over the trailing `periodDays` window (inclusive of today).
func PeakBreak(closes []float64, periodDays int) (hit bool, ok bool) {
	if periodDays <= 0 || len(closes) < periodDays {
		return false, false
	}
	window := closes[len(closes)-periodDays:]
	today := window[len(window)-1]
	peak := maxOf(window)
	return today >= peak, true
}

// PeakLow is the symmetric low-side check.
func PeakLow(closes []float64, periodDays int) (hit bool, ok bool) {
	if periodDays <= 0 || len(closes) < periodDays {
		return false, false
	}
	window := closes[len(closes)-periodDays:]
	today := window[len(window)-1]
	trough := minOf(window)
	return today <= trough, true
}

// OffPeak computes the drawdown from the trailing peak over periodDays
// and reports whether it meets dropMin percent.
func OffPeak(closes []float64, periodDays int, dropMin float64) (drop float64, hit bool, ok bool) {
	if periodDays <= 0 || len(closes) < periodDays {
		return 0, false, false
	}
	window := closes[len(closes)-periodDays:]
	today := window[len(window)-1]
	peak := maxOf(window)
	if peak == 0 {
		return 0, false, false
	}
	drop = (peak - today) / peak * 100
	return drop, drop >= dropMin, true
}

// VolumeSpikeRatio computes (today/avgPrior - 1)*100, where avgPrior is
// the mean of the `window` volumes preceding today (today excluded).
func VolumeSpikeRatio(priorVolumes []float64, today float64, window int) (ratio float64, ok bool) {
	if window <= 0 || len(priorVolumes) < window {
		return 0, false
	}
	recent := priorVolumes[len(priorVolumes)-window:]
	var sum float64
	for _, v := range recent {
		sum += v
	}
	avg := sum / float64(window)
	if avg == 0 {
		return 0, false
	}
	return (today/avg - 1) * 100, true
}

// CrossSign returns +1/-1/0 for the sign of MA5-MA20 at each index; used
// by screen.Cross to detect golden/dead crossings.
func CrossSign(ma5, ma20 []float64) []int {
	n := len(ma5)
	if len(ma20) < n {
		n = len(ma20)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		d := ma5[i] - ma20[i]
		switch {
		case d > 0:
			out[i] = 1
		case d < 0:
			out[i] = -1
		default:
			out[i] = 0
		}
	}
	return out
}

// SMASeries computes a simple moving average series aligned to the tail
// of values (output[i] corresponds to values[i], NaN where insufficient
// history).
func SMASeries(values []float64, window int) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		out[i] = math.NaN()
	}
	if window <= 0 {
		return out
	}
	var sum float64
	for i, v := range values {
		sum += v
		if i >= window {
			sum -= values[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// ThreeWhiteSoldiers / ThreeBlackCrows detect the 3-consecutive-candle
// pattern ending at index `at` (inclusive): white = close>open each day
// and closes strictly increasing; black = close<open each day and
// closes strictly decreasing.
func ThreeWhiteSoldiers(opens, closes []float64, at int) bool {
	return threePattern(opens, closes, at, true)
}

func ThreeBlackCrows(opens, closes []float64, at int) bool {
	return threePattern(opens, closes, at, false)
}

func threePattern(opens, closes []float64, at int, white bool) bool {
	if at < 2 || at >= len(opens) || at >= len(closes) {
		return false
	}
	for i := at - 2; i <= at; i++ {
		if white && !(closes[i] > opens[i]) {
			return false
		}
		if !white && !(closes[i] < opens[i]) {
			return false
		}
	}
	if white {
		return closes[at-1] > closes[at-2] && closes[at] > closes[at-1]
	}
	return closes[at-1] < closes[at-2] && closes[at] < closes[at-1]
}

func maxOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(xs []float64) float64 {
	m := xs[0]
	for _, v := range xs[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// Covariance and Variance support beta computation.
func Covariance(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var ma, mb float64
	for i := 0; i < n; i++ {
		ma += a[i]
		mb += b[i]
	}
	ma /= float64(n)
	mb /= float64(n)
	var cov float64
	for i := 0; i < n; i++ {
		cov += (a[i] - ma) * (b[i] - mb)
	}
	return cov / float64(n)
}

func Variance(a []float64) float64 {
	return Covariance(a, a)
}

// Returns converts a price series into simple daily returns.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}
