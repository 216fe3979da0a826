// Package screen applies the Conditions tree over a universe of
// tickers and an OHLCV slab, intersecting successive filters for
// stock_search/count_search/date_search. Grounded on the original
// router's per-condition scan loops and the reference service's
// internal/domain/indicators package for the per-primitive
// shape; the fan-out/intersection orchestration is new to this domain.
package screen

import (
	"sort"
	"time"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/dialog"
	"github.com/sawpanic/hanguk-agent/internal/indicators"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
)

// Engine evaluates Conditions leaves against a slab.
type Engine struct {
	Slab *marketdata.Slab
	Cal  calendar.Oracle
}

func NewEngine(slab *marketdata.Slab, cal calendar.Oracle) *Engine {
	return &Engine{Slab: slab, Cal: cal}
}

// priorClose walks back up to 7 trading days for the last usable close
// strictly before d.
func (e *Engine) priorClose(ticker string, d time.Time) (float64, bool) {
	date, ok := calendar.WalkPriorClose(e.Cal, d, 7, func(t time.Time) bool {
		b, ok := e.Slab.Bar(t, ticker)
		return ok && b.Valid()
	})
	if !ok {
		return 0, false
	}
	b, _ := e.Slab.Bar(date, ticker)
	return b.Close, true
}

func inRange(v float64, r *dialog.Range) bool {
	if r == nil {
		return true
	}
	if r.Min != nil && v < *r.Min {
		return false
	}
	if r.Max != nil && v > *r.Max {
		return false
	}
	return true
}

// Filter narrows `universe` to tickers that have a valid same-day bar on
// date d AND satisfy every present leaf of cond.
func (e *Engine) Filter(universe []string, d time.Time, cond dialog.Conditions) []string {
	out := make([]string, 0, len(universe))
	for _, t := range universe {
		bar, ok := e.Slab.Bar(d, t)
		if !ok || !bar.Valid() {
			continue
		}
		if e.matches(t, d, bar, cond) {
			out = append(out, t)
		}
	}
	return out
}

func (e *Engine) matches(ticker string, d time.Time, bar marketdata.Bar, cond dialog.Conditions) bool {
	if cond.PriceClose != nil && !inRange(bar.Close, cond.PriceClose) {
		return false
	}
	if cond.Volume != nil && !inRange(bar.Volume, cond.Volume) {
		return false
	}
	if cond.PctChange != nil {
		prev, ok := e.priorClose(ticker, d)
		if !ok {
			return false
		}
		pc, ok := indicators.PctChange(prev, bar.Close)
		if !ok || !inRange(pc, cond.PctChange) {
			return false
		}
	}
	if cond.VolumePct != nil {
		prevBar, ok := e.priorBar(ticker, d)
		if !ok || prevBar.Volume == 0 {
			return false
		}
		vp, ok := indicators.PctChange(prevBar.Volume, bar.Volume)
		if !ok || !inRange(vp, cond.VolumePct) {
			return false
		}
	}
	if cond.GapPct != nil {
		prev, ok := e.priorClose(ticker, d)
		if !ok {
			return false
		}
		gp, ok := indicators.PctChange(prev, bar.Open)
		if !ok || !inRange(gp, cond.GapPct) {
			return false
		}
	}
	if cond.RSI != nil {
		window := 14
		closes := e.adjClosesUpTo(ticker, d, window+1)
		val, ok := indicators.RSI(closes, window)
		if !ok || !inRange(val, cond.RSI) {
			return false
		}
	}
	if cond.VolumeSpike != nil {
		window := 20
		if cond.VolumeSpike.Window != nil {
			window = *cond.VolumeSpike.Window
		}
		volumes := e.volumesUpTo(ticker, d, window+1)
		if len(volumes) < window+1 {
			return false
		}
		ratio, ok := indicators.VolumeSpikeRatio(volumes[:len(volumes)-1], volumes[len(volumes)-1], window)
		if !ok {
			return false
		}
		if cond.VolumeSpike.RatioMin != nil && ratio < *cond.VolumeSpike.RatioMin {
			return false
		}
	}
	if cond.MovingAvg != nil {
		window := 20
		if cond.MovingAvg.Window != nil {
			window = *cond.MovingAvg.Window
		}
		closes := e.adjClosesUpTo(ticker, d, window)
		ma, ok := indicators.MovingAverage(closes, window)
		if !ok {
			return false
		}
		dev, ok := indicators.PercentDeviation(bar.AdjClose, ma)
		if !ok || !inRange(dev, &cond.MovingAvg.DiffPct) {
			return false
		}
	}
	if cond.BollingerTouch != nil {
		closes := e.adjClosesUpTo(ticker, d, 20)
		_, upper, lower, ok := indicators.BollingerBands(closes, 20, 2)
		if !ok {
			return false
		}
		switch *cond.BollingerTouch {
		case "upper":
			if bar.AdjClose < upper {
				return false
			}
		case "lower":
			if bar.AdjClose > lower {
				return false
			}
		default:
			return false
		}
	}
	if cond.PeakBreak != nil {
		period := peakPeriod(cond.PeakBreak.PeriodDays)
		closes := e.closesUpTo(ticker, d, period)
		hit, ok := indicators.PeakBreak(closes, period)
		if !ok || !hit {
			return false
		}
	}
	if cond.PeakLow != nil {
		period := peakPeriod(cond.PeakLow.PeriodDays)
		closes := e.closesUpTo(ticker, d, period)
		hit, ok := indicators.PeakLow(closes, period)
		if !ok || !hit {
			return false
		}
	}
	if cond.OffPeak != nil {
		period := peakPeriod(cond.OffPeak.PeriodDays)
		dropMin := 0.0
		if cond.OffPeak.DropMin != nil {
			dropMin = *cond.OffPeak.DropMin
		}
		closes := e.closesUpTo(ticker, d, period)
		_, hit, ok := indicators.OffPeak(closes, period, dropMin)
		if !ok || !hit {
			return false
		}
	}
	return true
}

func peakPeriod(p *int) int {
	if p != nil {
		return *p
	}
	return 260
}

func (e *Engine) priorBar(ticker string, d time.Time) (marketdata.Bar, bool) {
	date, ok := calendar.WalkPriorClose(e.Cal, d, 7, func(t time.Time) bool {
		b, ok := e.Slab.Bar(t, ticker)
		return ok && b.Valid()
	})
	if !ok {
		return marketdata.Bar{}, false
	}
	return e.Slab.Bar(date, ticker)
}

// closesUpTo/volumesUpTo walk back from d collecting up to `n` valid
// trading-day samples ending at d, returned in ascending date order.
// closesUpTo uses raw Close, for the price/volume/peak family of
// filters; adjClosesUpTo uses Adj Close, for RSI/MA/Bollinger.
func (e *Engine) closesUpTo(ticker string, d time.Time, n int) []float64 {
	dates := e.tradingDatesUpTo(d, n)
	return e.Slab.Series(ticker, dates, false)
}

func (e *Engine) adjClosesUpTo(ticker string, d time.Time, n int) []float64 {
	dates := e.tradingDatesUpTo(d, n)
	return e.Slab.Series(ticker, dates, true)
}

func (e *Engine) volumesUpTo(ticker string, d time.Time, n int) []float64 {
	dates := e.tradingDatesUpTo(d, n)
	out := make([]float64, 0, len(dates))
	for _, dt := range dates {
		b, ok := e.Slab.Bar(dt, ticker)
		if !ok {
			continue
		}
		out = append(out, b.Volume)
	}
	return out
}

func (e *Engine) tradingDatesUpTo(d time.Time, n int) []time.Time {
	out := make([]time.Time, n)
	cur := d
	for i := n - 1; i >= 0; i-- {
		out[i] = cur
		cur = e.Cal.PrevTradingDay(cur)
	}
	return out
}

// RangeFilter applies the range-task leaves (pct_change_range,
// consecutive_change, cross, three_pattern) over [dateFrom, dateTo].
func (e *Engine) RangeFilter(universe []string, dateFrom, dateTo time.Time, cond dialog.Conditions) []string {
	dates := datesBetween(dateFrom, dateTo, e.Cal)
	out := make([]string, 0, len(universe))
	for _, t := range universe {
		if e.rangeMatches(t, dates, cond) {
			out = append(out, t)
		}
	}
	return out
}

func datesBetween(from, to time.Time, cal calendar.Oracle) []time.Time {
	var out []time.Time
	cur := from
	for !cur.After(to) {
		if cal.IsTradingDay(cur) {
			out = append(out, cur)
		}
		cur = cal.NextDay(cur)
	}
	return out
}

func (e *Engine) rangeMatches(ticker string, dates []time.Time, cond dialog.Conditions) bool {
	closes := e.Slab.Series(ticker, dates, false)
	opens := make([]float64, 0, len(dates))
	for _, d := range dates {
		b, ok := e.Slab.Bar(d, ticker)
		if !ok {
			return false
		}
		opens = append(opens, b.Open)
	}
	if len(closes) != len(dates) || len(closes) == 0 {
		return false
	}

	if cond.PctChangeRange != nil {
		pc, ok := indicators.PctChange(closes[0], closes[len(closes)-1])
		if !ok || !inRange(pc, cond.PctChangeRange) {
			return false
		}
	}
	if cond.ConsecutiveChange != nil {
		if !consecutiveMatches(closes, *cond.ConsecutiveChange) {
			return false
		}
	}
	if cond.Cross != nil {
		if !e.crossMatches(ticker, dates, *cond.Cross) {
			return false
		}
	}
	if cond.ThreePattern != nil {
		adjCloses := e.Slab.Series(ticker, dates, true)
		if len(adjCloses) != len(dates) {
			return false
		}
		if !threePatternMatches(opens, adjCloses, *cond.ThreePattern) {
			return false
		}
	}
	return true
}

func consecutiveMatches(closes []float64, direction string) bool {
	if len(closes) < 2 {
		return false
	}
	for i := 1; i < len(closes); i++ {
		switch direction {
		case "up":
			if closes[i] <= closes[i-1] {
				return false
			}
		case "down":
			if closes[i] >= closes[i-1] {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// crossMatches scans MA5/MA20 over a window that starts 19 trading days
// before the range start so MA20, and with it the cross-sign series, is
// defined at dates[0].
func (e *Engine) crossMatches(ticker string, dates []time.Time, side string) bool {
	if len(dates) == 0 {
		return false
	}
	lead := e.tradingDatesUpTo(dates[0], 20)
	lead = lead[:len(lead)-1] // exclude dates[0], added back below
	full := append(append([]time.Time{}, lead...), dates...)
	closes := e.Slab.Series(ticker, full, true)
	if len(closes) != len(full) {
		return false
	}
	ma5 := indicators.SMASeries(closes, 5)
	ma20 := indicators.SMASeries(closes, 20)
	signs := indicators.CrossSign(ma5, ma20)

	rangeStart := len(lead)
	for i := rangeStart + 1; i < len(signs); i++ {
		prev, cur := signs[i-1], signs[i]
		if prev == 0 || cur == 0 {
			continue
		}
		golden := prev < 0 && cur > 0
		dead := prev > 0 && cur < 0
		switch side {
		case "golden":
			if golden {
				return true
			}
		case "dead":
			if dead {
				return true
			}
		case "both":
			if golden || dead {
				return true
			}
		}
	}
	return false
}

func threePatternMatches(opens, closes []float64, kind string) bool {
	for i := 2; i < len(closes); i++ {
		var hit bool
		if kind == "white" {
			hit = indicators.ThreeWhiteSoldiers(opens, closes, i)
		} else {
			hit = indicators.ThreeBlackCrows(opens, closes, i)
		}
		if hit {
			return true
		}
	}
	return false
}

// ThreePatternDates returns every date on which the 3-day pattern ends,
// used by count_search/date_search.
func (e *Engine) ThreePatternDates(ticker string, dateFrom, dateTo time.Time, kind string) []time.Time {
	dates := datesBetween(dateFrom, dateTo, e.Cal)
	closes := e.Slab.Series(ticker, dates, true)
	opens := make([]float64, 0, len(dates))
	for _, d := range dates {
		b, _ := e.Slab.Bar(d, ticker)
		opens = append(opens, b.Open)
	}
	var out []time.Time
	for i := 2; i < len(closes) && i < len(dates); i++ {
		var hit bool
		if kind == "white" {
			hit = indicators.ThreeWhiteSoldiers(opens, closes, i)
		} else {
			hit = indicators.ThreeBlackCrows(opens, closes, i)
		}
		if hit {
			out = append(out, dates[i])
		}
	}
	return out
}

// CrossDates returns every date a golden/dead/both crossing occurs,
// mirroring ThreePatternDates for count_search/date_search on `cross`.
func (e *Engine) CrossDates(ticker string, dateFrom, dateTo time.Time, side string) []time.Time {
	dates := datesBetween(dateFrom, dateTo, e.Cal)
	if len(dates) == 0 {
		return nil
	}
	lead := e.tradingDatesUpTo(dates[0], 20)
	lead = lead[:len(lead)-1]
	full := append(append([]time.Time{}, lead...), dates...)
	closes := e.Slab.Series(ticker, full, true)
	if len(closes) != len(full) {
		return nil
	}
	ma5 := indicators.SMASeries(closes, 5)
	ma20 := indicators.SMASeries(closes, 20)
	signs := indicators.CrossSign(ma5, ma20)

	var out []time.Time
	rangeStart := len(lead)
	for i := rangeStart + 1; i < len(signs); i++ {
		prev, cur := signs[i-1], signs[i]
		if prev == 0 || cur == 0 {
			continue
		}
		golden := prev < 0 && cur > 0
		dead := prev > 0 && cur < 0
		match := false
		switch side {
		case "golden":
			match = golden
		case "dead":
			match = dead
		case "both":
			match = golden || dead
		}
		if match {
			out = append(out, full[i])
		}
	}
	return out
}

// SortNames resolves codes to display names and sorts ascending, per
// "final answer lists names ... in sorted order".
func SortNames(codes []string, nameOf func(string) string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = nameOf(c)
	}
	sort.Strings(out)
	return out
}
