// Package marketdata models the OHLCV slab that the analytic engine
// consumes. The on-disk cache files and the remote OHLCV service are
// external; this package owns the data shape, the abstract Provider
// interface and its two implementations (CSVProvider, HTTPProvider),
// grounded on the reference service's data-facade pattern
// (internal/data/facade, internal/infrastructure/providers).
package marketdata

import (
	"context"
	"math"
	"time"
)

// Bar is one ticker's OHLCV+AdjClose for a single date.
type Bar struct {
	Open, High, Low, Close, AdjClose float64
	Volume                           float64
}

// Valid reports whether a bar carries a usable same-day price/volume —
// the "exclude NaN or zero-volume rows" guard repeated across every handler.
func (b Bar) Valid() bool {
	return !math.IsNaN(b.Close) && b.Close != 0 && !math.IsNaN(b.Volume) && b.Volume > 0
}

// Slab is a date-indexed table of bars per ticker, covering a requested
// date window. Dates are stored as truncated UTC midnight for stable
// map-keying.
type Slab struct {
	Start, End time.Time
	Tickers    []string
	byDate     map[string]map[string]Bar // dateKey -> ticker -> Bar
}

func NewSlab(start, end time.Time, tickers []string) *Slab {
	return &Slab{Start: start, End: end, Tickers: tickers, byDate: make(map[string]map[string]Bar)}
}

func dateKey(d time.Time) string { return d.Format("2006-01-02") }

// Put stores a bar for ticker on date d.
func (s *Slab) Put(d time.Time, ticker string, bar Bar) {
	k := dateKey(d)
	m, ok := s.byDate[k]
	if !ok {
		m = make(map[string]Bar)
		s.byDate[k] = m
	}
	m[ticker] = bar
}

// Bar returns the bar for ticker on date d, if present.
func (s *Slab) Bar(d time.Time, ticker string) (Bar, bool) {
	m, ok := s.byDate[dateKey(d)]
	if !ok {
		return Bar{}, false
	}
	b, ok := m[ticker]
	return b, ok
}

// Dates returns the set of dates with at least one bar, in the slab's
// insertion order is not guaranteed — callers that need order should
// sort the result.
func (s *Slab) Dates() []string {
	out := make([]string, 0, len(s.byDate))
	for k := range s.byDate {
		out = append(out, k)
	}
	return out
}

// HasAny reports whether any ticker has a valid bar on date d — used for
// the "non-trading / data-absent" preflight distinction.
func (s *Slab) HasAny(d time.Time) bool {
	m, ok := s.byDate[dateKey(d)]
	if !ok {
		return false
	}
	for _, b := range m {
		if b.Valid() {
			return true
		}
	}
	return false
}

// Series returns the AdjClose (adj=true) or Close (adj=false) series for
// ticker across a slice of ascending dates, skipping dates without data.
// The adjusted series feeds RSI/MA/Bollinger.
func (s *Slab) Series(ticker string, dates []time.Time, adj bool) []float64 {
	out := make([]float64, 0, len(dates))
	for _, d := range dates {
		b, ok := s.Bar(d, ticker)
		if !ok {
			continue
		}
		if adj {
			out = append(out, b.AdjClose)
		} else {
			out = append(out, b.Close)
		}
	}
	return out
}

// Provider fetches a slab covering [start, end) for the given tickers.
// Implementations carry their own retry/caching; callers treat this as a
// pure read.
type Provider interface {
	Load(ctx context.Context, tickers []string, start, end time.Time) (*Slab, error)
}
