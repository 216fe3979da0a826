package dialog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseQueryParams_FullRecord(t *testing.T) {
	raw := map[string]any{
		"task":      "simple_lookup",
		"date":      "2026-07-29",
		"market":    "KOSPI",
		"tickers":   []any{"005930", "005930"},
		"metrics":   []any{"price", "volume"},
		"rank_n":    5.0,
		"conditions": map[string]any{
			"cross": "golden",
		},
	}
	q := ParseQueryParams(raw)
	assert.Equal(t, TaskSimpleLookup, q.Task)
	require.NotNil(t, q.Date)
	assert.Equal(t, "2026-07-29", *q.Date)
	require.NotNil(t, q.Market)
	assert.Equal(t, "KOSPI", *q.Market)
	assert.Equal(t, []string{"005930"}, q.Tickers, "tickers are deduped")
	assert.Equal(t, []string{"price", "volume"}, q.Metrics)
	assert.Equal(t, 5, q.RankN)
	require.NotNil(t, q.Conditions.Cross)
	assert.Equal(t, "golden", *q.Conditions.Cross)
}

func TestParseQueryParams_EmptyMapYieldsUnknownTaskAndDefaults(t *testing.T) {
	q := ParseQueryParams(map[string]any{})
	assert.Equal(t, TaskUnknown, q.Task)
	assert.Nil(t, q.Date)
	assert.Nil(t, q.Market)
	assert.Equal(t, 10, q.RankN, "rank_n falls back to the NewQueryParams default when absent/invalid")
}

func TestParseQueryParams_NonPositiveRankNIsIgnored(t *testing.T) {
	q := ParseQueryParams(map[string]any{"rank_n": -1.0})
	assert.Equal(t, 10, q.RankN)
}

func TestParseQueryParams_EmptyDateStringIsTreatedAsAbsent(t *testing.T) {
	q := ParseQueryParams(map[string]any{"date": ""})
	assert.Nil(t, q.Date)
}
