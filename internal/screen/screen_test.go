package screen

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/dialog"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func ptr(f float64) *float64 { return &f }

// buildSlab fills a slab for two tickers across five consecutive weekdays
// (2026-07-27 Mon .. 2026-07-31 Fri).
func buildSlab() (*marketdata.Slab, calendar.Oracle) {
	cal := calendar.NewKRX(nil)
	dates := []string{"2026-07-27", "2026-07-28", "2026-07-29", "2026-07-30", "2026-07-31"}
	slab := marketdata.NewSlab(d(dates[0]), d(dates[len(dates)-1]), []string{"005930", "000660"})

	risingCloses := []float64{100, 102, 104, 103, 110}
	fallingCloses := []float64{200, 198, 195, 190, 180}
	for i, ds := range dates {
		slab.Put(d(ds), "005930", marketdata.Bar{
			Open: risingCloses[i] - 1, High: risingCloses[i] + 2, Low: risingCloses[i] - 2,
			Close: risingCloses[i], AdjClose: risingCloses[i], Volume: 1000 + float64(i)*10,
		})
		slab.Put(d(ds), "000660", marketdata.Bar{
			Open: fallingCloses[i] + 1, High: fallingCloses[i] + 2, Low: fallingCloses[i] - 2,
			Close: fallingCloses[i], AdjClose: fallingCloses[i], Volume: 2000,
		})
	}
	return slab, cal
}

func TestFilter_PriceCloseRange(t *testing.T) {
	slab, cal := buildSlab()
	e := NewEngine(slab, cal)
	cond := dialog.Conditions{PriceClose: &dialog.Range{Min: ptr(105)}}
	got := e.Filter([]string{"005930", "000660"}, d("2026-07-31"), cond)
	assert.Equal(t, []string{"005930"}, got, "only 005930 closes above 105 on Friday")
}

func TestFilter_PctChangeUsesPriorClose(t *testing.T) {
	slab, cal := buildSlab()
	e := NewEngine(slab, cal)
	// Friday close 110 vs Thursday close 103 is roughly +6.8%.
	cond := dialog.Conditions{PctChange: &dialog.Range{Min: ptr(5)}}
	got := e.Filter([]string{"005930", "000660"}, d("2026-07-31"), cond)
	assert.Equal(t, []string{"005930"}, got)
}

func TestFilter_ExcludesInvalidBars(t *testing.T) {
	slab, cal := buildSlab()
	slab.Put(d("2026-07-31"), "005930", marketdata.Bar{Close: 0, Volume: 0})
	e := NewEngine(slab, cal)
	got := e.Filter([]string{"005930"}, d("2026-07-31"), dialog.Conditions{})
	assert.Empty(t, got, "zero-close/zero-volume bar is invalid and must be excluded")
}

func TestRangeFilter_PctChangeRangeOverWindow(t *testing.T) {
	slab, cal := buildSlab()
	e := NewEngine(slab, cal)
	cond := dialog.Conditions{PctChangeRange: &dialog.Range{Min: ptr(5)}}
	got := e.RangeFilter([]string{"005930", "000660"}, d("2026-07-27"), d("2026-07-31"), cond)
	assert.Equal(t, []string{"005930"}, got, "005930 rises from 100 to 110 across the window; 000660 falls")
}

func TestRangeFilter_ConsecutiveChangeDown(t *testing.T) {
	slab, cal := buildSlab()
	e := NewEngine(slab, cal)
	cross := "down"
	cond := dialog.Conditions{ConsecutiveChange: &cross}
	got := e.RangeFilter([]string{"005930", "000660"}, d("2026-07-27"), d("2026-07-31"), cond)
	assert.Equal(t, []string{"000660"}, got, "000660 closes strictly lower every day in the window")
}

func TestRangeFilter_ConsecutiveChangeUpFailsOnNonMonotonicSeries(t *testing.T) {
	slab, cal := buildSlab()
	e := NewEngine(slab, cal)
	up := "up"
	cond := dialog.Conditions{ConsecutiveChange: &up}
	got := e.RangeFilter([]string{"005930"}, d("2026-07-27"), d("2026-07-31"), cond)
	assert.Empty(t, got, "005930 dips on Thursday, breaking the strictly-up run")
}

func TestSortNames_SortsAscending(t *testing.T) {
	names := map[string]string{"005930": "삼성전자", "000660": "SK하이닉스"}
	got := SortNames([]string{"005930", "000660"}, func(c string) string { return names[c] })
	assert.Equal(t, []string{"SK하이닉스", "삼성전자"}, got)
}

func TestCrossDates_EmptyWhenSeriesTooShort(t *testing.T) {
	slab, cal := buildSlab()
	e := NewEngine(slab, cal)
	got := e.CrossDates("005930", d("2026-07-27"), d("2026-07-31"), "golden")
	require.Empty(t, got, "insufficient lead history yields no detected cross rather than a panic")
}
