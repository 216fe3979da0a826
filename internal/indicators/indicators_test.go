package indicators

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPctChange(t *testing.T) {
	v, ok := PctChange(100, 110)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-9)

	_, ok = PctChange(0, 110)
	assert.False(t, ok, "zero prior close must be rejected")

	_, ok = PctChange(math.NaN(), 110)
	assert.False(t, ok)
}

func TestRSI_AllGainsReturnsOneHundred(t *testing.T) {
	closes := []float64{10, 11, 12, 13, 14, 15}
	v, ok := RSI(closes, 5)
	require.True(t, ok)
	assert.Equal(t, 100.0, v, "avgLoss==0 must map to RSI 100.0, not divide-by-zero")
}

func TestRSI_InsufficientHistory(t *testing.T) {
	_, ok := RSI([]float64{1, 2, 3}, 14)
	assert.False(t, ok)
}

func TestRSI_MixedSeries(t *testing.T) {
	closes := []float64{44, 44.5, 43.5, 45, 46, 45.5, 46.5, 47, 46.8, 47.5, 48}
	v, ok := RSI(closes, 10)
	require.True(t, ok)
	assert.Greater(t, v, 50.0)
	assert.LessOrEqual(t, v, 100.0)
}

func TestMovingAverage(t *testing.T) {
	v, ok := MovingAverage([]float64{1, 2, 3, 4, 5}, 3)
	require.True(t, ok)
	assert.InDelta(t, 4.0, v, 1e-9) // mean of 3,4,5

	_, ok = MovingAverage([]float64{1, 2}, 3)
	assert.False(t, ok)
}

func TestPercentDeviation(t *testing.T) {
	v, ok := PercentDeviation(110, 100)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-9)

	_, ok = PercentDeviation(110, 0)
	assert.False(t, ok)
}

func TestBollingerBands(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10}
	ma, upper, lower, ok := BollingerBands(values, 5, 2)
	require.True(t, ok)
	assert.Equal(t, 10.0, ma)
	assert.Equal(t, 10.0, upper, "zero stddev collapses the bands onto the mean")
	assert.Equal(t, 10.0, lower)
}

func TestPeakBreakAndPeakLow(t *testing.T) {
	closes := []float64{5, 6, 7, 8, 9}
	hit, ok := PeakBreak(closes, 5)
	require.True(t, ok)
	assert.True(t, hit, "last close is the window max")

	hit, ok = PeakLow(closes, 5)
	require.True(t, ok)
	assert.False(t, hit, "last close is the window max, not the min")
}

func TestOffPeak(t *testing.T) {
	closes := []float64{100, 100, 100, 100, 80}
	drop, hit, ok := OffPeak(closes, 5, 15)
	require.True(t, ok)
	assert.InDelta(t, 20.0, drop, 1e-9)
	assert.True(t, hit)
}

func TestVolumeSpikeRatio(t *testing.T) {
	prior := []float64{100, 100, 100, 100, 100}
	ratio, ok := VolumeSpikeRatio(prior, 200, 5)
	require.True(t, ok)
	assert.InDelta(t, 100.0, ratio, 1e-9)
}

func TestCrossSign(t *testing.T) {
	ma5 := []float64{1, 2, 3, 4}
	ma20 := []float64{2, 2, 2, 2}
	signs := CrossSign(ma5, ma20)
	assert.Equal(t, []int{-1, 0, 1, 1}, signs)
}

func TestSMASeries(t *testing.T) {
	out := SMASeries([]float64{1, 2, 3, 4, 5}, 2)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 1.5, out[1], 1e-9)
	assert.InDelta(t, 4.5, out[4], 1e-9)
}

func TestThreeWhiteSoldiersAndBlackCrows(t *testing.T) {
	opens := []float64{10, 11, 12, 13}
	closes := []float64{10.5, 11.8, 12.9, 14}
	assert.True(t, ThreeWhiteSoldiers(opens, closes, 3))
	assert.False(t, ThreeBlackCrows(opens, closes, 3))

	opensDown := []float64{14, 13, 12, 11}
	closesDown := []float64{13.5, 12.2, 11.1, 10}
	assert.True(t, ThreeBlackCrows(opensDown, closesDown, 3))
}

func TestCovarianceVarianceReturns(t *testing.T) {
	a := []float64{1, 2, 3, 4}
	assert.InDelta(t, Variance(a), Covariance(a, a), 1e-9)

	returns := Returns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
}
