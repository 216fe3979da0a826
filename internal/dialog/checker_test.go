package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestCheck_SimpleLookup_MissingDateAndMetrics(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskSimpleLookup
	q.Tickers = []string{"005930"}

	ready, missing, prompt := Check(q)
	assert.False(t, ready)
	assert.True(t, missing["date"])
	assert.True(t, missing["metrics"])
	assert.NotEmpty(t, prompt)
}

func TestCheck_SimpleLookup_ReadyWhenComplete(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskSimpleLookup
	q.Tickers = []string{"005930"}
	q.Metrics = []string{"price"}
	q.Date = strPtr("2026-07-29")

	ready, missing, _ := Check(q)
	assert.True(t, ready)
	assert.Empty(t, missing)
}

func TestCheck_SimpleLookup_IndexMetricNeedsMarket(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskSimpleLookup
	q.Metrics = []string{"index"}
	q.Date = strPtr("2026-07-29")

	ready, missing, _ := Check(q)
	assert.False(t, ready)
	assert.True(t, missing["market"])
	assert.False(t, missing["tickers"], "index-only metrics don't require tickers")
}

func TestCheck_MarketRank_BidirectionalMetricNeedsOrder(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskMarketRank
	q.Date = strPtr("2026-07-29")
	q.Metrics = []string{"volatility"}

	ready, missing, _ := Check(q)
	assert.False(t, ready)
	assert.True(t, missing["conditions.order"])
}

func TestCheck_MarketRank_DirectionalMetricSkipsOrder(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskMarketRank
	q.Date = strPtr("2026-07-29")
	q.Metrics = []string{"volume"}

	ready, _, _ := Check(q)
	assert.True(t, ready)
}

func TestCheck_StockSearch_PartialLeafProducesDottedSlotPath(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskStockSearch
	q.Date = strPtr("2026-07-29")
	q.Conditions.MovingAvg = &MovingAvg{}

	ready, missing, prompt := Check(q)
	require.False(t, ready)
	assert.True(t, missing["conditions.moving_avg.window"])
	assert.True(t, missing["conditions.moving_avg.diff_pct.min"])
	assert.NotEmpty(t, prompt)
}

func TestCheck_StockSearch_RangeLeafRequiresDateFromTo(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskStockSearch
	q.Date = strPtr("2026-07-29") // present but irrelevant once a range leaf is set
	cross := "golden"
	q.Conditions.Cross = &cross

	ready, missing, _ := Check(q)
	assert.False(t, ready)
	assert.True(t, missing["date_from"])
	assert.True(t, missing["date_to"])
}

func TestCheck_RangeSearch_RequiresPatternLeaf(t *testing.T) {
	q := NewQueryParams()
	q.Task = TaskCountSearch
	q.DateFrom = strPtr("2026-07-01")
	q.DateTo = strPtr("2026-07-29")
	q.Tickers = []string{"005930"}

	ready, missing, _ := Check(q)
	assert.False(t, ready)
	assert.True(t, missing["conditions.pattern"])
}

func TestCheck_UnknownTaskIsNeverReady(t *testing.T) {
	q := NewQueryParams()
	ready, _, prompt := Check(q)
	assert.False(t, ready)
	assert.NotEmpty(t, prompt)
}
