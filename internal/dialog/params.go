// Package dialog implements the slot-filling state machine: the
// QueryParams/Conditions data model, the per-session merge rules, the
// per-task checker, and the follow-up prompt synthesizer. Grounded on
// the original router's route()/_check_and_prompt() functions and the
// state-machine style in internal/application/services.
package dialog

import "sort"

// Task is the closed set of dispatchable intents.
type Task string

const (
	TaskSimpleLookup    Task = "simple_lookup"
	TaskMarketRank      Task = "market_rank"
	TaskAdvancersCount  Task = "advancers_count"
	TaskDecliners       Task = "decliners_count"
	TaskTradedCount     Task = "traded_count"
	TaskStockSearch     Task = "stock_search"
	TaskCountSearch     Task = "count_search"
	TaskDateSearch      Task = "date_search"
	TaskUnknown         Task = "unknown"
)

// Range is a simple {min?, max?} numeric window; nil means unspecified.
type Range struct {
	Min *float64
	Max *float64
}

func (r *Range) Specified() bool { return r != nil }

// VolumeSpike is the {window, volume_ratio:{min}} leaf.
type VolumeSpike struct {
	Window      *int
	RatioMin    *float64
}

// MovingAvg is the {window, diff_pct:{min?,max?}} leaf.
type MovingAvg struct {
	Window  *int
	DiffPct Range
}

// PeakWindow backs peak_break/peak_low ({period_days}).
type PeakWindow struct {
	PeriodDays *int
}

// OffPeak is {period_days, min}.
type OffPeak struct {
	PeriodDays *int
	DropMin    *float64
}

// Conditions is the tagged-union tree: each field is an
// independent optional leaf, itself possibly partially specified. A nil
// pointer/zero-value field means "leaf absent"; a non-nil leaf with nil
// sub-fields means "leaf present but under-specified" — conditionHoles in
// checker.go skips absent leaves and reports the nil sub-fields of present
// leaves as missing slots.
type Conditions struct {
	PriceClose       *Range
	Volume           *Range
	PctChange        *Range
	VolumePct        *Range
	PctChangeRange   *Range
	GapPct           *Range
	RSI              *Range
	VolumeSpike      *VolumeSpike
	MovingAvg        *MovingAvg
	BollingerTouch   *string // "upper" | "lower"
	PeakBreak        *PeakWindow
	PeakLow          *PeakWindow
	OffPeak          *OffPeak
	Cross            *string // "golden" | "dead" | "both"
	ConsecutiveChange *string // "up" | "down"
	ThreePattern     *string // "white" | "black"
	Order            *string // "high" | "low"
}

// QueryParams is the full parameter record.
type QueryParams struct {
	Task       Task
	Date       *string
	DateFrom   *string
	DateTo     *string
	Market     *string // "KOSPI" | "KOSDAQ" | nil=both
	Tickers    []string
	Metrics    []string
	RankN      int
	Conditions Conditions

	// Missing holds session-managed slot identifiers; never user-visible.
	Missing map[string]bool
}

// NewQueryParams returns a zero record with defaults applied.
func NewQueryParams() QueryParams {
	return QueryParams{
		Task:    TaskUnknown,
		Tickers: []string{},
		Metrics: []string{},
		RankN:   10,
		Missing: map[string]bool{},
	}
}

// DedupTickers re-applies the dedup-preserving-insertion-order invariant.
func DedupTickers(tickers []string) []string {
	seen := make(map[string]bool, len(tickers))
	out := make([]string, 0, len(tickers))
	for _, t := range tickers {
		if seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// MissingSlots returns the session's _missing set as a sorted slice, for
// deterministic prompt assembly and test assertions.
func (q QueryParams) MissingSlots() []string {
	out := make([]string, 0, len(q.Missing))
	for k, v := range q.Missing {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Pending reports whether the session should stay open.
func (q QueryParams) Pending() bool {
	return len(q.MissingSlots()) > 0
}
