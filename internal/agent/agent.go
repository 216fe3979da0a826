// Package agent wires the dialog router, the ticker disambiguator, the
// LLM bridge, the analytic engines, and the session store into the
// single per-turn entrypoint the HTTP adapter calls. Grounded on the
// original router's route() function, the orchestration spine the rest
// of the original scatters across module functions.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/catalog"
	"github.com/sawpanic/hanguk-agent/internal/dialog"
	"github.com/sawpanic/hanguk-agent/internal/disambig"
	"github.com/sawpanic/hanguk-agent/internal/llm"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
	"github.com/sawpanic/hanguk-agent/internal/metrics"
	"github.com/sawpanic/hanguk-agent/internal/rank"
	"github.com/sawpanic/hanguk-agent/internal/session"
	"github.com/sawpanic/hanguk-agent/internal/tasks"
)

// Agent is the assembled per-turn pipeline.
type Agent struct {
	Catalog  *catalog.Catalog
	Calendar calendar.Oracle
	Provider marketdata.Provider
	Bridge   llm.Bridge
	Resolver *disambig.Resolver
	Sessions session.Store
	Metrics  *metrics.Registry
	Now      func() time.Time
}

// Turn is one request/response cycle.
type Turn struct {
	Answer    string
	SessionID string
}

// Handle runs one full per-turn control flow.
func (a *Agent) Handle(ctx context.Context, sessionID, question string) Turn {
	logger := log.With().Str("session_id", sessionID).Logger()

	pending, hasSession, err := a.Sessions.Get(ctx, sessionID)
	if err != nil {
		logger.Error().Err(err).Msg("session load failed")
		hasSession = false
	}

	var q dialog.QueryParams
	if hasSession && pending.Pending() {
		q = a.mergeFollowUp(ctx, pending, question)
	} else {
		raw, err := a.Bridge.ExtractParams(ctx, question)
		if err != nil {
			logger.Error().Err(err).Msg("extract_params failed")
			return Turn{Answer: "죄송합니다, 질문을 이해하지 못했습니다.", SessionID: sessionID}
		}
		q = dialog.ParseQueryParams(raw)
	}

	dialog.ApplyRelativeDateAutoFill(&q, question, a.Calendar, a.Now())

	if q.Task == dialog.TaskUnknown {
		_ = a.Sessions.Clear(ctx, sessionID)
		return Turn{Answer: "죄송합니다, 질문을 이해하지 못했습니다.", SessionID: sessionID}
	}

	codes, ambiguous := a.resolveTickers(ctx, &q)
	if ambiguous != nil {
		q.Missing["tickers"] = true
		_ = a.Sessions.Set(ctx, sessionID, q)
		if a.Metrics != nil {
			a.Metrics.AmbiguousTickers.Inc()
		}
		return Turn{Answer: ambiguousPrompt(ambiguous), SessionID: sessionID}
	}

	ready, missing, prompt := dialog.Check(q)
	q.Missing = missing
	if !ready {
		_ = a.Sessions.Set(ctx, sessionID, q)
		return Turn{Answer: prompt, SessionID: sessionID}
	}

	result, err := a.dispatch(ctx, q, codes)
	if err != nil {
		logger.Error().Err(err).Msg("handler failed")
		return Turn{Answer: "요청을 처리하는 중 문제가 발생했습니다.", SessionID: sessionID}
	}
	if result.Terminal {
		_ = a.Sessions.Clear(ctx, sessionID)
	} else {
		_ = a.Sessions.Set(ctx, sessionID, q)
	}
	return Turn{Answer: result.Answer, SessionID: sessionID}
}

// mergeFollowUp implements step 1: fill_slots on the exact missing set
// (flat fields via MergeExtracted, condition-tree holes via
// ApplyFilledConditions), then an independent extract_params pass merged
// with ticker-accumulation/non-overwrite semantics.
func (a *Agent) mergeFollowUp(ctx context.Context, pending dialog.QueryParams, reply string) dialog.QueryParams {
	if slots := pending.MissingSlots(); len(slots) > 0 {
		filled, err := a.Bridge.FillSlots(ctx, reply, slots)
		if err == nil && filled != nil {
			dialog.MergeExtracted(&pending, filled)
			dialog.ApplyFilledConditions(&pending.Conditions, filled)
		}
	}
	if raw, err := a.Bridge.ExtractParams(ctx, reply); err == nil {
		fresh := dialog.ParseQueryParams(raw)
		dialog.MergeExtracted(&pending, map[string]any{
			"tickers":   toAnySlice(fresh.Tickers),
			"metrics":   toAnySlice(fresh.Metrics),
			"date":      derefOrNil(fresh.Date),
			"date_from": derefOrNil(fresh.DateFrom),
			"date_to":   derefOrNil(fresh.DateTo),
			"market":    derefOrNil(fresh.Market),
		})
		dialog.MergeConditions(&pending.Conditions, fresh.Conditions)
		if pending.Task == dialog.TaskUnknown && fresh.Task != dialog.TaskUnknown {
			pending.Task = fresh.Task
		}
	}
	return pending
}

func toAnySlice(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func derefOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// resolveTickers resolves every alias in q.Tickers to a canonical code,
// short-circuiting on the first ambiguous alias.
func (a *Agent) resolveTickers(ctx context.Context, q *dialog.QueryParams) ([]string, *disambig.AmbiguousTicker) {
	codes := make([]string, 0, len(q.Tickers))
	for _, alias := range q.Tickers {
		code, _, err := a.Resolver.Resolve(ctx, alias)
		if err != nil {
			if amb, ok := err.(*disambig.AmbiguousTicker); ok {
				dialog.RemoveTicker(q, alias)
				return nil, amb
			}
			continue
		}
		codes = append(codes, code)
	}
	return codes, nil
}

func ambiguousPrompt(amb *disambig.AmbiguousTicker) string {
	if len(amb.Candidates) == 0 {
		return "종목명 인식에 실패하였습니다. 조회할 종목명을 정확하게 입력해 주세요."
	}
	list := amb.Candidates[0]
	for _, c := range amb.Candidates[1:] {
		list += ", " + c
	}
	return fmt.Sprintf("종목명 인식에 실패하였습니다. 조회할 종목명을 정확하게 입력해 주세요 (제안: %s).", list)
}

// dispatch computes the slab horizon, fetches it once, and invokes the
// matching task handler.
func (a *Agent) dispatch(ctx context.Context, q dialog.QueryParams, codes []string) (tasks.Result, error) {
	universe := a.Catalog.Universe(marketPtrFromParams(q))

	switch q.Task {
	case dialog.TaskStockSearch:
		slab, err := a.loadSlabForSearch(ctx, q, universe)
		if err != nil {
			return tasks.Result{}, err
		}
		return tasks.StockSearch(a.Calendar, slab, a.Catalog, q), nil

	case dialog.TaskCountSearch, dialog.TaskDateSearch:
		from, err1 := tasks.ParseDate(*q.DateFrom)
		to, err2 := tasks.ParseDate(*q.DateTo)
		if err1 != nil || err2 != nil {
			return tasks.Result{Answer: "날짜 형식을 이해하지 못했습니다.", Terminal: true}, nil
		}
		start := a.Calendar.NthPrevTradingDay(from, 20)
		slab, err := a.Provider.Load(ctx, codes, start, a.Calendar.NextDay(to))
		if err != nil {
			return tasks.Result{}, err
		}
		if q.Task == dialog.TaskCountSearch {
			return tasks.CountSearch(a.Calendar, slab, a.Catalog, q, codes), nil
		}
		return tasks.DateSearch(a.Calendar, slab, a.Catalog, q, codes), nil

	default:
		// Point-in-time tasks: simple_lookup, market_rank, and the three
		// aggregate counts all key off a single `date` and the computed
		// lookback depth.
		d, err := tasks.ParseDate(*q.Date)
		if err != nil {
			return tasks.Result{Answer: "날짜 형식을 이해하지 못했습니다.", Terminal: true}, nil
		}
		depth := tasks.LookbackDepth(q.Conditions)
		if containsRisk(q.Metrics) {
			depth = maxInt(depth, 60)
		}
		start := a.Calendar.NthPrevTradingDay(d, depth)
		tickers := codes
		if len(tickers) == 0 || q.Task != dialog.TaskSimpleLookup {
			tickers = append(append([]string{}, universe...), catalog.KOSPIIndex, catalog.KOSDAQIndex)
		}
		slab, err := a.Provider.Load(ctx, tickers, start, a.Calendar.NextDay(d))
		if err != nil {
			return tasks.Result{}, err
		}
		rk := rank.NewEngine(slab, a.Calendar, a.Catalog)
		switch q.Task {
		case dialog.TaskSimpleLookup:
			return tasks.SimpleLookup(a.Calendar, slab, a.Catalog, rk, q, codes), nil
		case dialog.TaskMarketRank:
			return tasks.MarketRank(a.Calendar, slab, a.Catalog, rk, q), nil
		case dialog.TaskAdvancersCount, dialog.TaskDecliners, dialog.TaskTradedCount:
			return tasks.CountTask(a.Calendar, slab, a.Catalog, rk, q), nil
		default:
			return tasks.Result{Answer: "죄송합니다, 요청을 이해하지 못했습니다.", Terminal: true}, nil
		}
	}
}

func (a *Agent) loadSlabForSearch(ctx context.Context, q dialog.QueryParams, universe []string) (*marketdata.Slab, error) {
	depth := tasks.LookbackDepth(q.Conditions)
	if q.Date != nil {
		d, err := tasks.ParseDate(*q.Date)
		if err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}
		start := a.Calendar.NthPrevTradingDay(d, depth)
		return a.Provider.Load(ctx, universe, start, a.Calendar.NextDay(d))
	}
	from, err := tasks.ParseDate(*q.DateFrom)
	if err != nil {
		return nil, fmt.Errorf("parse date_from: %w", err)
	}
	to, err := tasks.ParseDate(*q.DateTo)
	if err != nil {
		return nil, fmt.Errorf("parse date_to: %w", err)
	}
	start := a.Calendar.NthPrevTradingDay(from, 20)
	return a.Provider.Load(ctx, universe, start, a.Calendar.NextDay(to))
}

func marketPtrFromParams(q dialog.QueryParams) *catalog.Market {
	if q.Market == nil {
		return nil
	}
	m := catalog.Market(*q.Market)
	return &m
}

func containsRisk(metrics []string) bool {
	for _, m := range metrics {
		if m == "volatility" || m == "beta" {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
