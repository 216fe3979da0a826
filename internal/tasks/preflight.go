package tasks

import (
	"time"

	"github.com/sawpanic/hanguk-agent/internal/dialog"
)

// LookbackDepth computes the max lookback (in trading days) the present
// condition leaves require, so the caller can
// fetch the slab once covering [nth_prev_trading_day(date, depth), date].
func LookbackDepth(c dialog.Conditions) int {
	depth := 1 // pct_change / gap default
	if c.RSI != nil {
		depth = maxInt(depth, 14)
	}
	if c.VolumeSpike != nil {
		w := 20
		if c.VolumeSpike.Window != nil {
			w = *c.VolumeSpike.Window
		}
		depth = maxInt(depth, w)
	}
	if c.MovingAvg != nil {
		w := 20
		if c.MovingAvg.Window != nil {
			w = *c.MovingAvg.Window
		}
		depth = maxInt(depth, w)
	}
	if c.BollingerTouch != nil {
		depth = maxInt(depth, 20)
	}
	for _, pw := range []*dialog.PeakWindow{c.PeakBreak, c.PeakLow} {
		if pw != nil {
			d := 260
			if pw.PeriodDays != nil {
				d = *pw.PeriodDays
			}
			depth = maxInt(depth, d)
		}
	}
	if c.OffPeak != nil {
		d := 260
		if c.OffPeak.PeriodDays != nil {
			d = *c.OffPeak.PeriodDays
		}
		depth = maxInt(depth, d)
	}
	return depth
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ParseDate parses an ISO date string at UTC midnight, matching the
// slab's date-keying convention (marketdata.Slab.Bar).
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}
