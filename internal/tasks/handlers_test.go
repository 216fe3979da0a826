package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/hanguk-agent/internal/calendar"
	"github.com/sawpanic/hanguk-agent/internal/catalog"
	"github.com/sawpanic/hanguk-agent/internal/dialog"
	"github.com/sawpanic/hanguk-agent/internal/marketdata"
	"github.com/sawpanic/hanguk-agent/internal/rank"
)

func d(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// fixture builds a two-ticker KOSPI universe over 25 consecutive trading
// days ending 2026-07-31 (Friday), plus the KOSPI index.
func fixture() (calendar.Oracle, *marketdata.Slab, *catalog.Catalog, *rank.Engine, time.Time) {
	cal := calendar.NewKRX(nil)
	cat := catalog.New()
	cat.Add(catalog.KOSPI, "005930", "삼성전자")
	cat.Add(catalog.KOSPI, "000660", "SK하이닉스")

	last := d("2026-07-31")
	var dates []time.Time
	cur := last
	for i := 0; i < 25; i++ {
		dates = append([]time.Time{cur}, dates...)
		cur = cal.PrevTradingDay(cur)
	}

	slab := marketdata.NewSlab(dates[0], last, []string{"005930", "000660", catalog.KOSPIIndex})
	for i, dt := range dates {
		slab.Put(dt, "005930", marketdata.Bar{Close: 70000 + float64(i)*100, Open: 70000, High: 70200, Low: 69900, Volume: 1_000_000})
		slab.Put(dt, "000660", marketdata.Bar{Close: 150000 - float64(i)*50, Open: 150000, High: 150200, Low: 149900, Volume: 500_000})
		slab.Put(dt, catalog.KOSPIIndex, marketdata.Bar{Close: 2500 + float64(i), Open: 2499, High: 2501, Low: 2498, Volume: 1})
	}
	rk := rank.NewEngine(slab, cal, cat)
	return cal, slab, cat, rk, last
}

func dateStr(t time.Time) *string {
	s := t.Format("2006-01-02")
	return &s
}

func TestPreflight_NonTradingDayReturnsHolidayMessage(t *testing.T) {
	cal, slab, _, _, _ := fixture()
	res, ok := Preflight(cal, slab, "2026-08-01") // Saturday
	assert.False(t, ok)
	assert.Contains(t, res.Answer, "휴장일")
	assert.True(t, res.Terminal)
}

func TestPreflight_DataAbsentDay(t *testing.T) {
	cal, slab, _, _, _ := fixture()
	// 2026-06-01 is a trading day but has no slab data loaded.
	res, ok := Preflight(cal, slab, "2026-06-01")
	assert.False(t, ok)
	assert.Contains(t, res.Answer, "데이터가 없습니다")
}

func TestPreflight_MalformedDate(t *testing.T) {
	cal, slab, _, _, _ := fixture()
	res, ok := Preflight(cal, slab, "not-a-date")
	assert.False(t, ok)
	assert.True(t, res.Terminal)
}

func TestSimpleLookup_SingleTickerSingleMetric(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskSimpleLookup
	q.Date = dateStr(last)
	q.Tickers = []string{"005930"}
	q.Metrics = []string{"close"}

	res := SimpleLookup(cal, slab, cat, rk, q, []string{"005930"})
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "삼성전자")
	assert.Contains(t, res.Answer, "종가")
}

func TestSimpleLookup_IndexMetric(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskSimpleLookup
	q.Date = dateStr(last)
	q.Metrics = []string{"index"}
	market := "KOSPI"
	q.Market = &market

	res := SimpleLookup(cal, slab, cat, rk, q, nil)
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "KOSPI 지수")
}

func TestSimpleLookup_MultiTickerUsesVectorizedForm(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskSimpleLookup
	q.Date = dateStr(last)
	q.Tickers = []string{"005930", "000660"}
	q.Metrics = []string{"close"}

	res := SimpleLookup(cal, slab, cat, rk, q, []string{"005930", "000660"})
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "삼성전자")
	assert.Contains(t, res.Answer, "SK하이닉스")
}

func TestMarketRank_TopOneProducesSingularPhrasing(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskMarketRank
	q.Date = dateStr(last)
	q.Metrics = []string{"volume"}
	q.RankN = 1

	res := MarketRank(cal, slab, cat, rk, q)
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "1위")
	assert.Contains(t, res.Answer, "삼성전자", "005930 has the higher volume in the fixture")
}

func TestMarketRank_BidirectionalMetricRespectsOrder(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskMarketRank
	q.Date = dateStr(last)
	q.Metrics = []string{"volatility"}
	q.RankN = 1
	order := "low"
	q.Conditions.Order = &order

	res := MarketRank(cal, slab, cat, rk, q)
	assert.True(t, res.Terminal)
	assert.NotEmpty(t, res.Answer)
}

func TestCountTask_TradedCount(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskTradedCount
	q.Date = dateStr(last)

	res := CountTask(cal, slab, cat, rk, q)
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "2개")
}

func TestCountTask_AdvancersCount(t *testing.T) {
	cal, slab, cat, rk, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskAdvancersCount
	q.Date = dateStr(last)

	res := CountTask(cal, slab, cat, rk, q)
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "상승한 종목은 1개")
}

func TestStockSearch_PointInTimeFilter(t *testing.T) {
	cal, slab, cat, _, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskStockSearch
	q.Date = dateStr(last)
	min := 100000.0
	q.Conditions.PriceClose = &dialog.Range{Min: &min}

	res := StockSearch(cal, slab, cat, q)
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "SK하이닉스")
	assert.NotContains(t, res.Answer, "삼성전자")
}

func TestStockSearch_NoMatchesProducesEmptyMessage(t *testing.T) {
	cal, slab, cat, _, last := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskStockSearch
	q.Date = dateStr(last)
	min := 1_000_000.0
	q.Conditions.PriceClose = &dialog.Range{Min: &min}

	res := StockSearch(cal, slab, cat, q)
	assert.Equal(t, "조건에 해당하는 종목이 없습니다.", res.Answer)
}

func TestCountSearch_RequiresResolvedTicker(t *testing.T) {
	cal, slab, cat, _, _ := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskCountSearch
	from, to := "2026-06-01", "2026-07-31"
	q.DateFrom, q.DateTo = &from, &to
	cross := "golden"
	q.Conditions.Cross = &cross

	res := CountSearch(cal, slab, cat, q, nil)
	assert.False(t, res.Terminal)
	assert.Contains(t, res.Answer, "확인하지 못했습니다")
}

func TestDateSearch_NoOccurrencesInRange(t *testing.T) {
	cal, slab, cat, _, _ := fixture()
	q := dialog.NewQueryParams()
	q.Task = dialog.TaskDateSearch
	// Ticker 005930 closes at or above its open every day in the fixture, so the
	// three-black-crows pattern (close < open) can never occur.
	from, to := "2026-06-29", "2026-07-31"
	q.DateFrom, q.DateTo = &from, &to
	three := "black"
	q.Conditions.ThreePattern = &three

	res := DateSearch(cal, slab, cat, q, []string{"005930"})
	assert.True(t, res.Terminal)
	assert.Contains(t, res.Answer, "발생하지 않았습니다")
}

func TestRequire_FixtureHasTwoTradedTickers(t *testing.T) {
	_, slab, _, _, last := fixture()
	require.True(t, slab.HasAny(last))
}
