package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/catalog"
	"github.com/sawpanic/hanguk-agent/internal/dialog"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
	"github.com/sawpanic/hanguk-agent/internal/rank"
	"github.com/sawpanic/hanguk-agent/internal/screen"
)

// Result is a handler's outcome: the Korean-language answer, and
// whether the session should be cleared (every terminal answer clears
// it; "Session" lifecycle).
type Result struct {
	Answer   string
	Terminal bool
}

// Preflight checks whether `date` is a trading day with usable data,
// returning the terminal holiday/data-absent message when not.
// ok=false means the caller should return the Result as-is.
func Preflight(cal calendar.Oracle, slab *marketdata.Slab, date string) (Result, bool) {
	d, err := ParseDate(date)
	if err != nil {
		return Result{Answer: "날짜 형식을 이해하지 못했습니다.", Terminal: true}, false
	}
	if !cal.IsTradingDay(d) {
		return Result{Answer: holidayMessage(date), Terminal: true}, false
	}
	if !slab.HasAny(d) {
		return Result{Answer: dataAbsentMessage(date), Terminal: true}, false
	}
	return Result{}, true
}

func marketPtr(q dialog.QueryParams) *catalog.Market {
	if q.Market == nil {
		return nil
	}
	m := catalog.Market(*q.Market)
	return &m
}

func namesInOrder(codes []string, nameOf func(string) string) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = nameOf(c)
	}
	return out
}

// SimpleLookup reports one or more metrics for one or more tickers on a
// single day.
func SimpleLookup(cal calendar.Oracle, slab *marketdata.Slab, cat *catalog.Catalog, rk *rank.Engine, q dialog.QueryParams, codes []string) Result {
	if res, ok := Preflight(cal, slab, *q.Date); !ok {
		return res
	}
	d, _ := ParseDate(*q.Date)

	hasRisk := containsAny(q.Metrics, "volatility", "beta")
	if hasRisk || len(codes) > 1 || len(q.Metrics) > 1 {
		return vectorizedLookup(slab, cat, rk, q, codes, d)
	}

	metric := q.Metrics[0]
	if metric == "index" {
		return indexLookup(slab, q, d)
	}
	if len(codes) == 0 {
		return Result{Answer: "어떤 종목에 대해 알려 드릴까요?", Terminal: false}
	}
	code := codes[0]
	name := cat.NameOrCode(code)
	value, ok := lookupMetric(cal, slab, code, metric, d)
	if !ok {
		return Result{Answer: dataAbsentMessage(*q.Date), Terminal: true}
	}
	answer := fmt.Sprintf("%s에 %s의 %s은(는) %s 입니다.", *q.Date, name, metricKorean(metric), metricDisplayValue(metric, value))
	return Result{Answer: answer, Terminal: true}
}

func containsAny(xs []string, targets ...string) bool {
	set := map[string]bool{}
	for _, t := range targets {
		set[t] = true
	}
	for _, x := range xs {
		if set[x] {
			return true
		}
	}
	return false
}

func metricKorean(metric string) string {
	names := map[string]string{
		"close": "종가", "open": "시가", "high": "고가", "low": "저가",
		"volume": "거래량", "pct_change": "등락률", "turnover": "거래대금",
		"volatility": "변동성", "beta": "베타", "index": "지수",
		"volume_spike": "거래량 급증", "moving_avg": "이동평균", "bollinger": "볼린저밴드",
		"ascend_rate": "상승률", "descend_rate": "하락률",
	}
	if k, ok := names[metric]; ok {
		return k
	}
	return metric
}

// lookupMetric fetches a single-ticker single-metric value on date d,
// using the prior-close walk for pct_change.
func lookupMetric(cal calendar.Oracle, slab *marketdata.Slab, code, metric string, d time.Time) (float64, bool) {
	bar, ok := slab.Bar(d, code)
	if !ok || !bar.Valid() {
		return 0, false
	}
	switch metric {
	case "close":
		return bar.Close, true
	case "open":
		return bar.Open, true
	case "high":
		return bar.High, true
	case "low":
		return bar.Low, true
	case "volume":
		return bar.Volume, true
	case "turnover":
		return bar.Close * bar.Volume, true
	case "pct_change":
		prevDate, ok := calendar.WalkPriorClose(cal, d, 7, func(t time.Time) bool {
			b, ok := slab.Bar(t, code)
			return ok && b.Valid()
		})
		if !ok {
			return 0, false
		}
		prev, _ := slab.Bar(prevDate, code)
		if prev.Close == 0 {
			return 0, false
		}
		return (bar.Close - prev.Close) / prev.Close * 100, true
	default:
		return 0, false
	}
}

func indexLookup(slab *marketdata.Slab, q dialog.QueryParams, d time.Time) Result {
	market := catalog.KOSPI
	if q.Market != nil {
		market = catalog.Market(*q.Market)
	}
	ticker := catalog.IndexFor(market)
	bar, ok := slab.Bar(d, ticker)
	if !ok || !bar.Valid() {
		return Result{Answer: dataAbsentMessage(*q.Date), Terminal: true}
	}
	return Result{
		Answer:   fmt.Sprintf("%s에 %s 지수는 %s 입니다.", *q.Date, market, formatNumber(bar.Close)),
		Terminal: true,
	}
}

// vectorizedLookup handles multi-ticker and/or multi-metric and/or
// risk-metric requests by reporting each (ticker, metric) pair in turn.
func vectorizedLookup(slab *marketdata.Slab, cat *catalog.Catalog, rk *rank.Engine, q dialog.QueryParams, codes []string, d time.Time) Result {
	var parts []string
	for _, code := range codes {
		name := cat.NameOrCode(code)
		for _, metric := range q.Metrics {
			var value float64
			var ok bool
			switch metric {
			case "volatility":
				value, ok = rk.Volatility(code, d, 60)
			case "beta":
				value, ok = rk.Beta(code, d, marketPtr(q), 60)
			default:
				value, ok = lookupMetric(rk.Cal, slab, code, metric, d)
			}
			if !ok {
				parts = append(parts, fmt.Sprintf("%s의 %s은(는) 데이터 없음", name, metricKorean(metric)))
				continue
			}
			parts = append(parts, fmt.Sprintf("%s의 %s은(는) %s", name, metricKorean(metric), metricDisplayValue(metric, value)))
		}
	}
	return Result{Answer: fmt.Sprintf("%s에 %s 입니다.", *q.Date, strings.Join(parts, ", ")), Terminal: true}
}

// MarketRank dispatches by metric to the corresponding ranking primitive.
func MarketRank(cal calendar.Oracle, slab *marketdata.Slab, cat *catalog.Catalog, rk *rank.Engine, q dialog.QueryParams) Result {
	if res, ok := Preflight(cal, slab, *q.Date); !ok {
		return res
	}
	d, _ := ParseDate(*q.Date)
	market := marketPtr(q)
	metric := ""
	if len(q.Metrics) > 0 {
		metric = q.Metrics[0]
	}
	n := q.RankN
	if n <= 0 {
		n = 1
	}

	var names []string
	switch metric {
	case "volume":
		names = namesInOrder(rk.TopVolume(d, market, n), cat.NameOrCode)
	case "price":
		names = namesInOrder(rk.TopPrice(d, market, n), cat.NameOrCode)
	case "ascend_rate":
		codes, err := rk.TopMover(context.Background(), d, market, "up", n)
		if err != nil {
			return Result{Answer: "요청을 처리하는 중 문제가 발생했습니다.", Terminal: false}
		}
		names = namesInOrder(codes, cat.NameOrCode)
	case "descend_rate":
		codes, err := rk.TopMover(context.Background(), d, market, "down", n)
		if err != nil {
			return Result{Answer: "요청을 처리하는 중 문제가 발생했습니다.", Terminal: false}
		}
		names = namesInOrder(codes, cat.NameOrCode)
	case "volatility", "beta":
		order := "high"
		if q.Conditions.Order != nil {
			order = *q.Conditions.Order
		}
		names = namesInOrder(rk.TopByRisk(d, market, metric, order, n, 60), cat.NameOrCode)
	default:
		return Result{Answer: "어떤 지표를 기준으로 순위를 알려 드릴까요?", Terminal: false}
	}

	if n == 1 {
		if len(names) == 0 {
			return Result{Answer: dataAbsentMessage(*q.Date), Terminal: true}
		}
		return Result{Answer: fmt.Sprintf("%s에 %s 기준 1위 종목은 %s입니다.", *q.Date, metricKorean(metric), names[0]), Terminal: true}
	}
	return Result{Answer: fmt.Sprintf("%s에 %s 기준 상위 %d개 종목: %s", *q.Date, metricKorean(metric), n, joinNames(names)), Terminal: true}
}

// CountTask answers advancers/decliners/traded counts.
func CountTask(cal calendar.Oracle, slab *marketdata.Slab, cat *catalog.Catalog, rk *rank.Engine, q dialog.QueryParams) Result {
	if res, ok := Preflight(cal, slab, *q.Date); !ok {
		return res
	}
	d, _ := ParseDate(*q.Date)
	market := marketPtr(q)
	marketLabel := "전체 시장"
	if market != nil {
		marketLabel = string(*market)
	}

	switch q.Task {
	case dialog.TaskTradedCount:
		n := rk.Traded(d, market)
		return Result{Answer: fmt.Sprintf("%s에 %s에서 거래된 종목은 %d개입니다.", *q.Date, marketLabel, n), Terminal: true}
	case dialog.TaskAdvancersCount, dialog.TaskDecliners:
		counts, err := rk.AdvancersDecliners(context.Background(), d, market)
		if err != nil {
			return Result{Answer: "요청을 처리하는 중 문제가 발생했습니다.", Terminal: false}
		}
		if q.Task == dialog.TaskAdvancersCount {
			return Result{Answer: fmt.Sprintf("%s에 %s에서 상승한 종목은 %d개입니다.", *q.Date, marketLabel, counts.Advancers), Terminal: true}
		}
		return Result{Answer: fmt.Sprintf("%s에 %s에서 하락한 종목은 %d개입니다.", *q.Date, marketLabel, counts.Decliners), Terminal: true}
	default:
		return Result{Answer: "요청을 이해하지 못했습니다.", Terminal: false}
	}
}

// StockSearch intersects every present condition leaf over universe(market)
// on a single day, returning the sorted matching names.
func StockSearch(cal calendar.Oracle, slab *marketdata.Slab, cat *catalog.Catalog, q dialog.QueryParams) Result {
	usesRange := q.Conditions.PctChangeRange != nil || q.Conditions.ConsecutiveChange != nil || q.Conditions.Cross != nil
	eng := screen.NewEngine(slab, cal)
	market := marketPtr(q)
	universe := cat.Universe(market)

	if usesRange {
		from, err1 := ParseDate(*q.DateFrom)
		to, err2 := ParseDate(*q.DateTo)
		if err1 != nil || err2 != nil {
			return Result{Answer: "날짜 형식을 이해하지 못했습니다.", Terminal: true}
		}
		codes := eng.RangeFilter(universe, from, to, q.Conditions)
		names := screen.SortNames(codes, cat.NameOrCode)
		return Result{Answer: describeSearch(names), Terminal: true}
	}

	if res, ok := Preflight(cal, slab, *q.Date); !ok {
		return res
	}
	d, _ := ParseDate(*q.Date)
	codes := eng.Filter(universe, d, q.Conditions)
	names := screen.SortNames(codes, cat.NameOrCode)
	return Result{Answer: describeSearch(names), Terminal: true}
}

func describeSearch(names []string) string {
	if len(names) == 0 {
		return "조건에 해당하는 종목이 없습니다."
	}
	return fmt.Sprintf("조건에 해당하는 종목: %s", joinNames(names))
}

// CountSearch / DateSearch operate on a single resolved ticker, returning
// an occurrence count or the list of occurrence dates.
func CountSearch(cal calendar.Oracle, slab *marketdata.Slab, cat *catalog.Catalog, q dialog.QueryParams, codes []string) Result {
	dates, label, ok := patternDates(cal, slab, q, codes)
	if !ok {
		return Result{Answer: "조회할 종목을 확인하지 못했습니다.", Terminal: false}
	}
	name := cat.NameOrCode(codes[0])
	return Result{
		Answer:   fmt.Sprintf("%s~%s 동안 %s의 %s가 발생한 횟수는 %d번입니다.", *q.DateFrom, *q.DateTo, name, label, len(dates)),
		Terminal: true,
	}
}

func DateSearch(cal calendar.Oracle, slab *marketdata.Slab, cat *catalog.Catalog, q dialog.QueryParams, codes []string) Result {
	dates, label, ok := patternDates(cal, slab, q, codes)
	if !ok {
		return Result{Answer: "조회할 종목을 확인하지 못했습니다.", Terminal: false}
	}
	name := cat.NameOrCode(codes[0])
	if len(dates) == 0 {
		return Result{Answer: fmt.Sprintf("%s~%s 동안 %s의 %s는 발생하지 않았습니다.", *q.DateFrom, *q.DateTo, name, label), Terminal: true}
	}
	strs := make([]string, len(dates))
	for i, d := range dates {
		strs[i] = formatDate(d)
	}
	return Result{Answer: fmt.Sprintf("%s의 %s 발생일: %s", name, label, strings.Join(strs, ", ")), Terminal: true}
}

// patternDates dispatches to the screen engine's cross/three_pattern date
// scan depending on which condition leaf is present.
func patternDates(cal calendar.Oracle, slab *marketdata.Slab, q dialog.QueryParams, codes []string) ([]time.Time, string, bool) {
	if len(codes) == 0 || q.DateFrom == nil || q.DateTo == nil {
		return nil, "", false
	}
	from, err1 := ParseDate(*q.DateFrom)
	to, err2 := ParseDate(*q.DateTo)
	if err1 != nil || err2 != nil {
		return nil, "", false
	}
	eng := screen.NewEngine(slab, cal)
	code := codes[0]

	if q.Conditions.Cross != nil {
		side := *q.Conditions.Cross
		label := crossLabel(side)
		return eng.CrossDates(code, from, to, side), label, true
	}
	if q.Conditions.ThreePattern != nil {
		kind := *q.Conditions.ThreePattern
		label := "삼양봉"
		if kind == "black" {
			label = "삼음봉"
		}
		return eng.ThreePatternDates(code, from, to, kind), label, true
	}
	return nil, "", false
}

func crossLabel(side string) string {
	switch side {
	case "golden":
		return "골든크로스"
	case "dead":
		return "데드크로스"
	default:
		return "골든/데드크로스"
	}
}
