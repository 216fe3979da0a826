// Package tasks implements the seven task handlers: preflight
// (holiday/data-absent terminal messages), slab-horizon computation,
// primitive composition via screen/rank/indicators, and Korean-language
// answer formatting. Grounded on the original router's per-task
// response builders and the reference service's internal/application
// report formatting style.
package tasks

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Non-trading-day and data-absent terminal messages, verbatim with the
// original router's wording.
func holidayMessage(date string) string {
	return fmt.Sprintf("%s는 휴장일입니다. 데이터가 없습니다.", date)
}

func dataAbsentMessage(date string) string {
	return fmt.Sprintf("%s 데이터가 없습니다.", date)
}

// metricUnit returns the display unit for a metric.
func metricUnit(metric string) string {
	switch metric {
	case "close", "open", "high", "low", "turnover":
		return "원"
	case "volume":
		return "주"
	case "pct_change", "ascend_rate", "descend_rate":
		return "%"
	default:
		return ""
	}
}

// formatNumber renders a float with comma-grouped integer part, trimming
// a trailing ".00" — matching the Korean-locale number formatting the
// original renders via Python's f"{x:,.2f}" idiom.
func formatNumber(v float64) string {
	neg := v < 0
	if neg {
		v = -v
	}
	whole := int64(v)
	frac := v - float64(whole)

	s := strconv.FormatInt(whole, 10)
	var grouped strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			grouped.WriteByte(',')
		}
		grouped.WriteRune(c)
	}
	out := grouped.String()
	if frac >= 0.005 {
		out += strconv.FormatFloat(frac, 'f', 2, 64)[1:]
	}
	if neg {
		out = "-" + out
	}
	return out
}

// metricDisplayValue formats value+unit with the appropriate unit: 원
// for prices, 주 for volume, % for pct_change, raw for index, 원 for
// turnover, unitless for volatility/beta.
func metricDisplayValue(metric string, value float64) string {
	unit := metricUnit(metric)
	if unit == "" {
		return formatNumber(value)
	}
	return formatNumber(value) + unit
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
