package dialog

// ParseQueryParams converts extract_params' raw JSON map into a fresh
// QueryParams record.
func ParseQueryParams(raw map[string]any) QueryParams {
	q := NewQueryParams()
	if t, ok := raw["task"].(string); ok {
		q.Task = Task(t)
	}
	if s, ok := raw["date"].(string); ok && s != "" {
		q.Date = &s
	}
	if s, ok := raw["date_from"].(string); ok && s != "" {
		q.DateFrom = &s
	}
	if s, ok := raw["date_to"].(string); ok && s != "" {
		q.DateTo = &s
	}
	if s, ok := raw["market"].(string); ok && s != "" {
		q.Market = &s
	}
	if v, ok := raw["tickers"].([]any); ok {
		for _, x := range v {
			if s, ok := x.(string); ok && s != "" {
				q.Tickers = append(q.Tickers, s)
			}
		}
		q.Tickers = DedupTickers(q.Tickers)
	}
	if v, ok := raw["metrics"].([]any); ok {
		for _, x := range v {
			if s, ok := x.(string); ok {
				q.Metrics = append(q.Metrics, s)
			}
		}
	}
	switch n := raw["rank_n"].(type) {
	case float64:
		if int(n) > 0 {
			q.RankN = int(n)
		}
	case int:
		if n > 0 {
			q.RankN = n
		}
	}
	q.Conditions = ParseConditions(raw)
	return q
}
