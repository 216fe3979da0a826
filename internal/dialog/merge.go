package dialog

import (
	"strings"
	"time"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
)

var recentKeywords = []string{"최근", "요즘", "근래", "요새", "이즈음"}
var todayKeywords = []string{"오늘", "금일", "당일", "오늘자"}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// ApplyRelativeDateAutoFill sets `date` (and `date_to` when `date_from`
// is already present) from the question text
func ApplyRelativeDateAutoFill(q *QueryParams, question string, cal calendar.Oracle, today time.Time) {
	if q.Date != nil || q.DateTo != nil {
		return
	}
	if !containsAny(question, recentKeywords) && !containsAny(question, todayKeywords) {
		return
	}
	recent := calendar.MostRecentTradingDay(cal, today)
	iso := recent.Format("2006-01-02")
	q.Date = &iso
	if q.DateFrom != nil {
		q.DateTo = &iso
	}
}

// MergeExtracted merges a freshly extracted/filled parameter set into a
// pending record: ticker accumulation (dedup-preserving concatenation)
// and non-overwrite for scalar fields already set.
func MergeExtracted(pending *QueryParams, fresh map[string]any) {
	if v, ok := fresh["tickers"].([]any); ok {
		var add []string
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				add = append(add, s)
			}
		}
		pending.Tickers = DedupTickers(append(pending.Tickers, add...))
	}
	if v, ok := fresh["metrics"].([]any); ok && len(pending.Metrics) == 0 {
		for _, x := range v {
			if s, ok := x.(string); ok {
				pending.Metrics = append(pending.Metrics, s)
			}
		}
	}
	mergeScalarString(&pending.Date, fresh["date"])
	mergeScalarString(&pending.DateFrom, fresh["date_from"])
	mergeScalarString(&pending.DateTo, fresh["date_to"])
	mergeScalarString(&pending.Market, fresh["market"])

	if pending.RankN == 0 {
		if n, ok := fresh["rank_n"].(int); ok && n > 0 {
			pending.RankN = n
		}
	}
}

// mergeScalarString applies non-overwrite: only fills a nil target.
func mergeScalarString(target **string, v any) {
	if *target != nil || v == nil {
		return
	}
	if s, ok := v.(string); ok && s != "" {
		*target = &s
	}
}

// RemoveTicker drops one alias from the pending tickers list, used by
// the ambiguous-ticker re-prompt path.
func RemoveTicker(q *QueryParams, alias string) {
	out := q.Tickers[:0]
	for _, t := range q.Tickers {
		if t != alias {
			out = append(out, t)
		}
	}
	q.Tickers = out
}
