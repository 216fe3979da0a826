package dialog

import "strconv"

// ParseConditions converts the raw nested map produced by the LLM bridge
// (extract_params/fill_slots) into a Conditions tree. Unknown/malformed
// leaves are silently skipped — validation happens via the checker's
// hole-enumeration, not here.
func ParseConditions(raw map[string]any) Conditions {
	var c Conditions
	m, ok := raw["conditions"].(map[string]any)
	if !ok {
		return c
	}
	if v, ok := m["price_close"].(map[string]any); ok {
		c.PriceClose = parseRange(v)
	}
	if v, ok := m["volume"].(map[string]any); ok {
		c.Volume = parseRange(v)
	}
	if v, ok := m["pct_change"].(map[string]any); ok {
		c.PctChange = parseRange(v)
	}
	if v, ok := m["volume_pct"].(map[string]any); ok {
		c.VolumePct = parseRange(v)
	}
	if v, ok := m["pct_change_range"].(map[string]any); ok {
		c.PctChangeRange = parseRange(v)
	}
	if v, ok := m["gap_pct"].(map[string]any); ok {
		c.GapPct = parseRange(v)
	}
	if v, ok := m["rsi"].(map[string]any); ok {
		c.RSI = parseRange(v)
	}
	if v, ok := m["volume_spike"].(map[string]any); ok {
		vs := &VolumeSpike{}
		if w := parseIntPtr(v["window"]); w != nil {
			vs.Window = w
		}
		if ratio, ok := v["volume_ratio"].(map[string]any); ok {
			vs.RatioMin = parseFloatPtr(ratio["min"])
		}
		c.VolumeSpike = vs
	}
	if v, ok := m["moving_avg"].(map[string]any); ok {
		ma := &MovingAvg{}
		ma.Window = parseIntPtr(v["window"])
		if diff, ok := v["diff_pct"].(map[string]any); ok {
			ma.DiffPct = Range{Min: parseFloatPtr(diff["min"]), Max: parseFloatPtr(diff["max"])}
		}
		c.MovingAvg = ma
	}
	if v, ok := m["bollinger_touch"].(string); ok && v != "" {
		c.BollingerTouch = &v
	}
	if v, ok := m["peak_break"].(map[string]any); ok {
		c.PeakBreak = &PeakWindow{PeriodDays: parseIntPtr(v["period_days"])}
	}
	if v, ok := m["peak_low"].(map[string]any); ok {
		c.PeakLow = &PeakWindow{PeriodDays: parseIntPtr(v["period_days"])}
	}
	if v, ok := m["off_peak"].(map[string]any); ok {
		c.OffPeak = &OffPeak{PeriodDays: parseIntPtr(v["period_days"]), DropMin: parseFloatPtr(v["min"])}
	}
	if v, ok := m["cross"].(string); ok && v != "" {
		c.Cross = &v
	}
	if v, ok := m["consecutive_change"].(string); ok && v != "" {
		c.ConsecutiveChange = &v
	}
	if v, ok := m["three_pattern"].(string); ok && v != "" {
		c.ThreePattern = &v
	}
	if v, ok := m["order"].(string); ok && v != "" {
		c.Order = &v
	}
	return c
}

func parseRange(m map[string]any) *Range {
	r := &Range{Min: parseFloatPtr(m["min"]), Max: parseFloatPtr(m["max"])}
	return r
}

func parseFloatPtr(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case int:
		f := float64(n)
		return &f
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return &f
		}
		return nil
	default:
		return nil
	}
}

func parseIntPtr(v any) *int {
	switch n := v.(type) {
	case float64:
		i := int(n)
		return &i
	case int:
		return &n
	case string:
		if i, err := strconv.Atoi(n); err == nil {
			return &i
		}
		return nil
	default:
		return nil
	}
}

// MergeConditions fills only the absent leaves/sub-fields of pending
// from fresh (non-overwrite, mirroring the scalar merge rule).
func MergeConditions(pending *Conditions, fresh Conditions) {
	if pending.PriceClose == nil {
		pending.PriceClose = fresh.PriceClose
	}
	if pending.Volume == nil {
		pending.Volume = fresh.Volume
	}
	if pending.PctChange == nil {
		pending.PctChange = fresh.PctChange
	}
	if pending.VolumePct == nil {
		pending.VolumePct = fresh.VolumePct
	}
	if pending.PctChangeRange == nil {
		pending.PctChangeRange = fresh.PctChangeRange
	}
	if pending.GapPct == nil {
		pending.GapPct = fresh.GapPct
	}
	if pending.RSI == nil {
		pending.RSI = fresh.RSI
	}
	if pending.VolumeSpike == nil {
		pending.VolumeSpike = fresh.VolumeSpike
	} else if fresh.VolumeSpike != nil {
		if pending.VolumeSpike.Window == nil {
			pending.VolumeSpike.Window = fresh.VolumeSpike.Window
		}
		if pending.VolumeSpike.RatioMin == nil {
			pending.VolumeSpike.RatioMin = fresh.VolumeSpike.RatioMin
		}
	}
	if pending.MovingAvg == nil {
		pending.MovingAvg = fresh.MovingAvg
	} else if fresh.MovingAvg != nil {
		if pending.MovingAvg.Window == nil {
			pending.MovingAvg.Window = fresh.MovingAvg.Window
		}
		if pending.MovingAvg.DiffPct.Min == nil {
			pending.MovingAvg.DiffPct.Min = fresh.MovingAvg.DiffPct.Min
		}
		if pending.MovingAvg.DiffPct.Max == nil {
			pending.MovingAvg.DiffPct.Max = fresh.MovingAvg.DiffPct.Max
		}
	}
	if pending.BollingerTouch == nil {
		pending.BollingerTouch = fresh.BollingerTouch
	}
	if pending.PeakBreak == nil {
		pending.PeakBreak = fresh.PeakBreak
	} else if fresh.PeakBreak != nil && pending.PeakBreak.PeriodDays == nil {
		pending.PeakBreak.PeriodDays = fresh.PeakBreak.PeriodDays
	}
	if pending.PeakLow == nil {
		pending.PeakLow = fresh.PeakLow
	} else if fresh.PeakLow != nil && pending.PeakLow.PeriodDays == nil {
		pending.PeakLow.PeriodDays = fresh.PeakLow.PeriodDays
	}
	if pending.OffPeak == nil {
		pending.OffPeak = fresh.OffPeak
	} else if fresh.OffPeak != nil {
		if pending.OffPeak.PeriodDays == nil {
			pending.OffPeak.PeriodDays = fresh.OffPeak.PeriodDays
		}
		if pending.OffPeak.DropMin == nil {
			pending.OffPeak.DropMin = fresh.OffPeak.DropMin
		}
	}
	if pending.Cross == nil {
		pending.Cross = fresh.Cross
	}
	if pending.ConsecutiveChange == nil {
		pending.ConsecutiveChange = fresh.ConsecutiveChange
	}
	if pending.ThreePattern == nil {
		pending.ThreePattern = fresh.ThreePattern
	}
	if pending.Order == nil {
		pending.Order = fresh.Order
	}
}

// ApplyFilledConditions applies a fill_slots result (flat map keyed by the
// exact dotted slot path the checker emitted, e.g.
// "conditions.volume_spike.window") onto pending's Conditions tree.
// Non-overwrite: a leaf already set is left untouched. "conditions.pattern"
// is a synthetic bucket (checkRangeSearch's "neither cross nor three_pattern
// set" hole, not a literal field) and is dispatched to Cross or ThreePattern
// by matching the reply value against each condition's value vocabulary.
func ApplyFilledConditions(pending *Conditions, filled map[string]any) {
	get := func(key string) (any, bool) {
		v, ok := filled["conditions."+key]
		return v, ok
	}

	if v, ok := get("order"); ok && pending.Order == nil {
		if s, ok := v.(string); ok && s != "" {
			pending.Order = &s
		}
	}
	if v, ok := get("pattern"); ok {
		if s, ok := v.(string); ok {
			switch s {
			case "golden", "dead", "both":
				if pending.Cross == nil {
					pending.Cross = &s
				}
			case "white", "black":
				if pending.ThreePattern == nil {
					pending.ThreePattern = &s
				}
			}
		}
	}

	if v, ok := get("volume_spike.window"); ok {
		if i := parseIntPtr(v); i != nil {
			if pending.VolumeSpike == nil {
				pending.VolumeSpike = &VolumeSpike{}
			}
			if pending.VolumeSpike.Window == nil {
				pending.VolumeSpike.Window = i
			}
		}
	}
	if v, ok := get("volume_spike.volume_ratio.min"); ok {
		if f := parseFloatPtr(v); f != nil {
			if pending.VolumeSpike == nil {
				pending.VolumeSpike = &VolumeSpike{}
			}
			if pending.VolumeSpike.RatioMin == nil {
				pending.VolumeSpike.RatioMin = f
			}
		}
	}

	if v, ok := get("moving_avg.window"); ok {
		if i := parseIntPtr(v); i != nil {
			if pending.MovingAvg == nil {
				pending.MovingAvg = &MovingAvg{}
			}
			if pending.MovingAvg.Window == nil {
				pending.MovingAvg.Window = i
			}
		}
	}
	if v, ok := get("moving_avg.diff_pct.min"); ok {
		if f := parseFloatPtr(v); f != nil {
			if pending.MovingAvg == nil {
				pending.MovingAvg = &MovingAvg{}
			}
			if pending.MovingAvg.DiffPct.Min == nil && pending.MovingAvg.DiffPct.Max == nil {
				pending.MovingAvg.DiffPct.Min = f
			}
		}
	}

	if v, ok := get("peak_break.period_days"); ok {
		if i := parseIntPtr(v); i != nil {
			if pending.PeakBreak == nil {
				pending.PeakBreak = &PeakWindow{}
			}
			if pending.PeakBreak.PeriodDays == nil {
				pending.PeakBreak.PeriodDays = i
			}
		}
	}
	if v, ok := get("peak_low.period_days"); ok {
		if i := parseIntPtr(v); i != nil {
			if pending.PeakLow == nil {
				pending.PeakLow = &PeakWindow{}
			}
			if pending.PeakLow.PeriodDays == nil {
				pending.PeakLow.PeriodDays = i
			}
		}
	}
	if v, ok := get("off_peak.period_days"); ok {
		if i := parseIntPtr(v); i != nil {
			if pending.OffPeak == nil {
				pending.OffPeak = &OffPeak{}
			}
			if pending.OffPeak.PeriodDays == nil {
				pending.OffPeak.PeriodDays = i
			}
		}
	}
	if v, ok := get("off_peak.min"); ok {
		if f := parseFloatPtr(v); f != nil {
			if pending.OffPeak == nil {
				pending.OffPeak = &OffPeak{}
			}
			if pending.OffPeak.DropMin == nil {
				pending.OffPeak.DropMin = f
			}
		}
	}
}
