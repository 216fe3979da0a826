package dialog

import (
	"fmt"
	"strings"
)

// directionalMetrics are "naturally directional" ranking metrics whose
// default order is "highest" without requiring an explicit order
// sub-field.
var directionalMetrics = map[string]bool{
	"volume": true, "ascend_rate": true, "descend_rate": true, "price": true,
}

var bidirectionalMetrics = map[string]bool{
	"volatility": true, "beta": true,
}

// indexOnlyMetrics are satisfiable without tickers (simple_lookup).
var indexOnlyMetrics = map[string]bool{
	"index": true, "turnover": true,
}

// Check runs the per-task checker, returning whether the record is
// ready to dispatch, the missing slot-path set, and a synthesized
// follow-up sentence when not ready.
func Check(q QueryParams) (ready bool, missing map[string]bool, prompt string) {
	switch q.Task {
	case TaskSimpleLookup:
		return checkSimpleLookup(q)
	case TaskMarketRank:
		return checkMarketRank(q)
	case TaskAdvancersCount, TaskDecliners, TaskTradedCount:
		return checkCountTask(q)
	case TaskStockSearch:
		return checkStockSearch(q)
	case TaskCountSearch, TaskDateSearch:
		return checkRangeSearch(q)
	default:
		return false, map[string]bool{}, "질문을 더 정확히 이해하기 위해 추가 정보가 필요합니다. 어떤 종목/지표/날짜를 원하시나요?"
	}
}

func metricsSubsetOf(metrics []string, allowed map[string]bool) bool {
	for _, m := range metrics {
		if !allowed[m] {
			return false
		}
	}
	return true
}

func checkSimpleLookup(q QueryParams) (bool, map[string]bool, string) {
	missing := map[string]bool{}
	if q.Date == nil {
		missing["date"] = true
	}
	if len(q.Metrics) == 0 {
		missing["metrics"] = true
	}
	if len(q.Tickers) == 0 && !metricsSubsetOf(q.Metrics, indexOnlyMetrics) {
		missing["tickers"] = true
	}
	if containsStr(q.Metrics, "index") && q.Market == nil {
		missing["market"] = true
	}
	if len(missing) == 0 {
		return true, missing, ""
	}
	return false, missing, promptSimpleLookup(q, missing)
}

func promptSimpleLookup(q QueryParams, missing map[string]bool) string {
	var known []string
	if len(q.Tickers) > 0 {
		known = append(known, strings.Join(q.Tickers, ", ")+"의")
	}
	if q.Date != nil {
		known = append(known, *q.Date+"에")
	}
	prefix := strings.Join(known, " ")
	switch {
	case missing["metrics"] && missing["date"]:
		return fmt.Sprintf("%s 어떤 날짜에 어떤 지표를 알려 드릴까요?", strings.Join(q.Tickers, ", "))
	case missing["metrics"]:
		return fmt.Sprintf("%s 어떤 지표를 알려 드릴까요?", prefix)
	case missing["date"]:
		return fmt.Sprintf("%s 언제 시점의 정보를 원하시나요?", prefix)
	case missing["tickers"]:
		return "어떤 종목에 대해 알려 드릴까요?"
	case missing["market"]:
		return "KOSPI와 KOSDAQ 중 어느 시장의 지수를 원하시나요?"
	default:
		return "질문을 더 정확히 이해하기 위해 추가 정보가 필요합니다."
	}
}

func checkMarketRank(q QueryParams) (bool, map[string]bool, string) {
	missing := map[string]bool{}
	if q.Date == nil {
		missing["date"] = true
	}
	if len(q.Metrics) == 0 {
		missing["metrics"] = true
	}
	if len(q.Metrics) > 0 {
		metric := q.Metrics[0]
		if bidirectionalMetrics[metric] && q.Conditions.Order == nil {
			missing["conditions.order"] = true
		}
	}
	if len(missing) == 0 {
		return true, missing, ""
	}
	return false, missing, promptMarketRank(q, missing)
}

func promptMarketRank(q QueryParams, missing map[string]bool) string {
	switch {
	case missing["metrics"]:
		return "어떤 지표를 기준으로 순위를 알려 드릴까요?"
	case missing["conditions.order"]:
		return "가장 높은 종목을 원하시나요, 가장 낮은 종목을 원하시나요?"
	case missing["date"]:
		return "어느 날짜 기준으로 순위를 알려 드릴까요?"
	default:
		return "질문을 더 정확히 이해하기 위해 추가 정보가 필요합니다."
	}
}

func checkCountTask(q QueryParams) (bool, map[string]bool, string) {
	missing := map[string]bool{}
	if q.Date == nil {
		missing["date"] = true
	}
	if len(missing) == 0 {
		return true, missing, ""
	}
	return false, missing, "어느 날짜 기준으로 알려 드릴까요?"
}

// conditionHoles enumerates the under-specified sub-fields of a
// Conditions tree as dotted slot paths, along with a human phrase describing what is already known.
func conditionHoles(c Conditions) (holes []string, filledPhrases []string) {
	if c.VolumeSpike != nil {
		if c.VolumeSpike.Window == nil {
			holes = append(holes, "volume_spike.window")
		}
		if c.VolumeSpike.RatioMin == nil {
			holes = append(holes, "volume_spike.volume_ratio.min")
		}
		if len(holes) == 0 {
			filledPhrases = append(filledPhrases, "거래량 급증")
		}
	}
	if c.MovingAvg != nil {
		if c.MovingAvg.Window == nil {
			holes = append(holes, "moving_avg.window")
		}
		if c.MovingAvg.DiffPct.Min == nil && c.MovingAvg.DiffPct.Max == nil {
			holes = append(holes, "moving_avg.diff_pct.min")
		} else {
			filledPhrases = append(filledPhrases, "이동평균 대비 괴리율")
		}
	}
	if c.BollingerTouch == nil {
		// absent leaf, no hole
	}
	if c.PeakBreak != nil && c.PeakBreak.PeriodDays == nil {
		holes = append(holes, "peak_break.period_days")
	}
	if c.PeakLow != nil && c.PeakLow.PeriodDays == nil {
		holes = append(holes, "peak_low.period_days")
	}
	if c.OffPeak != nil {
		if c.OffPeak.PeriodDays == nil {
			holes = append(holes, "off_peak.period_days")
		}
		if c.OffPeak.DropMin == nil {
			holes = append(holes, "off_peak.min")
		}
	}
	return holes, filledPhrases
}

func checkStockSearch(q QueryParams) (bool, map[string]bool, string) {
	missing := map[string]bool{}
	holes, filled := conditionHoles(q.Conditions)
	for _, h := range holes {
		missing["conditions."+h] = true
	}
	usesRange := q.Conditions.PctChangeRange != nil || q.Conditions.ConsecutiveChange != nil ||
		q.Conditions.Cross != nil
	if usesRange {
		if q.DateFrom == nil {
			missing["date_from"] = true
		}
		if q.DateTo == nil {
			missing["date_to"] = true
		}
	} else if q.Date == nil {
		missing["date"] = true
	}
	if len(missing) == 0 {
		return true, missing, ""
	}
	prompt := "질문을 더 정확히 이해하기 위해 추가 정보가 필요합니다."
	if len(filled) > 0 {
		prompt = strings.Join(filled, ", ") + " 조건은 확인했습니다. 나머지 조건을 추가로 알려주시겠어요?"
	}
	return false, missing, prompt
}

func checkRangeSearch(q QueryParams) (bool, map[string]bool, string) {
	missing := map[string]bool{}
	if q.DateFrom == nil {
		missing["date_from"] = true
	}
	if q.DateTo == nil {
		missing["date_to"] = true
	}
	if len(q.Tickers) == 0 {
		missing["tickers"] = true
	}
	if q.Conditions.Cross == nil && q.Conditions.ThreePattern == nil {
		missing["conditions.pattern"] = true
	}
	if len(missing) == 0 {
		return true, missing, ""
	}
	return false, missing, "조회할 기간, 종목, 그리고 골든/데드크로스 또는 캔들 패턴 중 어떤 것을 원하시는지 알려 주세요."
}

func containsStr(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
