// Package rank implements the market-wide counts and rankings: advancers,
// decliners, traded, top_volume/top_mover/top_price/top_volatility/
// top_beta, plus volatility/beta. Fan-out over the ticker universe uses
// golang.org/x/sync/errgroup for bounded concurrency, grounded on the
// reference service's internal/application worker-pool scan pattern
// (internal/domain/scan, which also uses errgroup for per-symbol work).
package rank

import (
	"context"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/catalog"
	"github.com/sawpanic/hanguk-agent/internal/indicators"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
)

// Engine computes aggregates over a slab for a given date/market.
type Engine struct {
	Slab *marketdata.Slab
	Cal  calendar.Oracle
	Cat  *catalog.Catalog
}

func NewEngine(slab *marketdata.Slab, cal calendar.Oracle, cat *catalog.Catalog) *Engine {
	return &Engine{Slab: slab, Cal: cal, Cat: cat}
}

const maxConcurrency = 8

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

// Move is a ticker's percent change on a date, used by both the
// advancers/decliners counts and top_mover ranking.
type Move struct {
	Ticker string
	Pct    float64
}

// moves computes every eligible ticker's percent change on d, in
// parallel, bounded by maxConcurrency via errgroup.
func (e *Engine) moves(ctx context.Context, universe []string, d time.Time) ([]Move, error) {
	results := make([]*Move, len(universe))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, t := range universe {
		i, t := i, t
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			bar, ok := e.Slab.Bar(d, t)
			if !ok || !bar.Valid() {
				return nil
			}
			prev, ok := e.priorClose(t, d)
			if !ok {
				return nil
			}
			pc, ok := indicators.PctChange(prev, bar.Close)
			if !ok {
				return nil
			}
			results[i] = &Move{Ticker: t, Pct: pc}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]Move, 0, len(universe))
	for _, m := range results {
		if m != nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

// Counts is the (advancers, decliners, unchanged) triple. Tickers without
// a valid prior close within 7 trading days are not counted, so the sum
// can be below the traded count.
type Counts struct {
	Advancers, Decliners, Unchanged int
}

func (e *Engine) AdvancersDecliners(ctx context.Context, d time.Time, market *catalog.Market) (Counts, error) {
	moves, err := e.moves(ctx, e.Cat.Universe(market), d)
	if err != nil {
		return Counts{}, err
	}
	var c Counts
	for _, m := range moves {
		switch {
		case m.Pct > 0:
			c.Advancers++
		case m.Pct < 0:
			c.Decliners++
		default:
			c.Unchanged++
		}
	}
	return c, nil
}

// Traded counts tickers with finite positive same-day volume.
func (e *Engine) Traded(d time.Time, market *catalog.Market) int {
	n := 0
	for _, t := range e.Cat.Universe(market) {
		bar, ok := e.Slab.Bar(d, t)
		if ok && bar.Valid() {
			n++
		}
	}
	return n
}

// TopVolume sorts by same-day volume descending, dropping invalid bars.
func (e *Engine) TopVolume(d time.Time, market *catalog.Market, n int) []string {
	type row struct {
		ticker string
		volume float64
	}
	var rows []row
	for _, t := range e.Cat.Universe(market) {
		bar, ok := e.Slab.Bar(d, t)
		if !ok || !bar.Valid() {
			continue
		}
		rows = append(rows, row{t, bar.Volume})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].volume > rows[j].volume })
	return topTickers(rows, n, func(r row) string { return r.ticker })
}

// TopPrice sorts by same-day close descending.
func (e *Engine) TopPrice(d time.Time, market *catalog.Market, n int) []string {
	type row struct {
		ticker string
		close  float64
	}
	var rows []row
	for _, t := range e.Cat.Universe(market) {
		bar, ok := e.Slab.Bar(d, t)
		if !ok || !bar.Valid() {
			continue
		}
		rows = append(rows, row{t, bar.Close})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].close > rows[j].close })
	return topTickers(rows, n, func(r row) string { return r.ticker })
}

// TopMover sorts movers ascending for "down", descending for "up".
func (e *Engine) TopMover(ctx context.Context, d time.Time, market *catalog.Market, direction string, n int) ([]string, error) {
	moves, err := e.moves(ctx, e.Cat.Universe(market), d)
	if err != nil {
		return nil, err
	}
	sort.Slice(moves, func(i, j int) bool {
		if direction == "down" {
			return moves[i].Pct < moves[j].Pct
		}
		return moves[i].Pct > moves[j].Pct
	})
	return topTickers(moves, n, func(m Move) string { return m.Ticker }), nil
}

func topTickers[T any](rows []T, n int, ticker func(T) string) []string {
	if n <= 0 {
		n = 1
	}
	if n > len(rows) {
		n = len(rows)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ticker(rows[i])
	}
	return out
}

// Volatility is the annualized standard deviation of daily simple
// returns over `lookback` trading days ending at d.
func (e *Engine) Volatility(ticker string, d time.Time, lookback int) (float64, bool) {
	closes := e.closesUpTo(ticker, d, lookback+1)
	if len(closes) < lookback+1 {
		return 0, false
	}
	returns := indicators.Returns(closes)
	sd := indicators.StdDev(returns)
	return sd * math.Sqrt(252), true
}

// Beta is cov(r_ticker, r_index)/var(r_index) over `lookback` returns,
// auto-inferring the index from the ticker's market when hint is nil.
func (e *Engine) Beta(ticker string, d time.Time, marketHint *catalog.Market, lookback int) (float64, bool) {
	index := e.indexFor(ticker, marketHint)
	tc := e.closesUpTo(ticker, d, lookback+1)
	ic := e.closesUpTo(index, d, lookback+1)
	if len(tc) < lookback+1 || len(ic) < lookback+1 {
		return 0, false
	}
	rt := indicators.Returns(tc)
	ri := indicators.Returns(ic)
	v := indicators.Variance(ri)
	if v == 0 {
		return 0, false
	}
	return indicators.Covariance(rt, ri) / v, true
}

func (e *Engine) indexFor(ticker string, hint *catalog.Market) string {
	if hint != nil {
		return catalog.IndexFor(*hint)
	}
	if m, ok := e.Cat.Market(ticker); ok {
		return catalog.IndexFor(m)
	}
	return catalog.KOSPIIndex
}

func (e *Engine) closesUpTo(ticker string, d time.Time, n int) []float64 {
	dates := make([]time.Time, n)
	cur := d
	for i := n - 1; i >= 0; i-- {
		dates[i] = cur
		cur = e.Cal.PrevTradingDay(cur)
	}
	return e.Slab.Series(ticker, dates, false)
}

// TopByRisk ranks by volatility or beta, "high" (default) sorts
// descending, "low" ascending.
func (e *Engine) TopByRisk(d time.Time, market *catalog.Market, metric string, order string, n int, lookback int) []string {
	type row struct {
		ticker string
		value  float64
	}
	var rows []row
	for _, t := range e.Cat.Universe(market) {
		var v float64
		var ok bool
		if metric == "beta" {
			v, ok = e.Beta(t, d, market, lookback)
		} else {
			v, ok = e.Volatility(t, d, lookback)
		}
		if !ok {
			continue
		}
		rows = append(rows, row{t, v})
	}
	sort.Slice(rows, func(i, j int) bool {
		if order == "low" {
			return rows[i].value < rows[j].value
		}
		return rows[i].value > rows[j].value
	})
	return topTickers(rows, n, func(r row) string { return r.ticker })
}
