package llm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// reservedFields are exempt from the non-alphanumeric scrub applied to
// fill_slots output.
var reservedFields = map[string]bool{
	"date": true, "date_from": true, "date_to": true,
	"metrics": true, "market": true, "tickers": true, "rank_n": true,
}

var nonAlnumDash = regexp.MustCompile(`[^A-Za-z0-9\-]+`)

// stripNoise removes every character other than ASCII letters, digits and
// '-' (Hangul included) from non-reserved fill_slots values, coercing a
// purely-numeric result to an int,
// mirroring app/llm_bridge.py's _strip_alphanum.
func stripNoise(key string, v any) any {
	if reservedFields[key] {
		return v
	}
	switch val := v.(type) {
	case string:
		cleaned := nonAlnumDash.ReplaceAllString(val, "")
		if cleaned != "" {
			if n, err := strconv.Atoi(cleaned); err == nil {
				return n
			}
		}
		return cleaned
	case []any:
		out := make([]any, len(val))
		for i, x := range val {
			out[i] = stripNoise(key, x)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, x := range val {
			out[k] = stripNoise(k, x)
		}
		return out
	default:
		return val
	}
}

func cleanParams(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = stripNoise(k, v)
	}
	return out
}

const systemPromptFile = "extract_params.txt"

// loadSystemPrompt reads a prompt asset from the configured assets
// directory.
func loadSystemPrompt(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("load prompt asset %s: %w", name, err)
	}
	return strings.TrimSpace(string(b)), nil
}

// ExtractParams parses an initial user question into a full parameter
// record, applying the defaults on success and falling back
// to {"task":"unknown"} on parse failure.
func (b *HTTPBridge) ExtractParams(ctx context.Context, question string) (map[string]any, error) {
	system, err := loadSystemPrompt(b.cfg.PromptDir, systemPromptFile)
	if err != nil {
		system = defaultExtractPrompt
	}

	text, err := b.chat(ctx, system, question, 256, 0.5)
	if err != nil {
		return map[string]any{"task": "unknown"}, nil //nolint:nilerr // LLM-transient collapses to unknown
	}

	data, ok := extractJSON(text)
	if !ok || data["task"] == nil {
		return map[string]any{"task": "unknown"}, nil
	}

	applyExtractDefaults(data)
	return data, nil
}

func applyExtractDefaults(data map[string]any) {
	setDefault(data, "market", nil)
	setDefault(data, "tickers", []any{})
	setDefault(data, "metrics", []any{})
	setDefault(data, "rank_n", 10)
	setDefault(data, "conditions", map[string]any{})
	// date/date_from/date_to are only guaranteed to exist as keys; no
	// trading-day default is filled here or in the dialog layer, so the
	// checker reports a nil date as a missing slot.
	setDefault(data, "date", nil)
	setDefault(data, "date_from", nil)
	setDefault(data, "date_to", nil)
}

func setDefault(m map[string]any, key string, def any) {
	if _, ok := m[key]; !ok {
		m[key] = def
	}
}

// FillSlots extracts values for specific missing slots from a follow-up
// reply. Non-reserved fields are scrubbed of non-alphanumeric noise.
func (b *HTTPBridge) FillSlots(ctx context.Context, reply string, slots []string) (map[string]any, error) {
	if len(slots) == 0 {
		return map[string]any{}, nil
	}
	system := buildFillSlotsPrompt(slots)
	text, err := b.chat(ctx, system, reply, 128, 0.2)
	if err != nil {
		return nil, nil //nolint:nilerr // caller treats nil as "no slots filled"
	}
	data, ok := extractJSON(text)
	if !ok {
		return nil, nil
	}
	data = cleanParams(data)

	out := make(map[string]any)
	for _, s := range slots {
		v, ok := data[s]
		if !ok {
			continue
		}
		if isEmpty(v) {
			continue
		}
		out[s] = v
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}

func buildFillSlotsPrompt(slots []string) string {
	var sb strings.Builder
	sb.WriteString("당신은 한국 주식 질의용 AI이다.\n")
	sb.WriteString("사용자 답변에서 다음 필드(")
	sb.WriteString(strings.Join(slots, ", "))
	sb.WriteString(")의 값을 추출해 JSON 한 줄로만 응답하라.\n")
	sb.WriteString("값이 없으면 null을 입력하라.\n")
	return sb.String()
}

// ChooseAlias asks the LLM which candidate best matches an alias,
// forcing confidence to 0 if the returned best is not among the candidates.
func (b *HTTPBridge) ChooseAlias(ctx context.Context, alias string, candidates []string) (string, float64, error) {
	system := disambigSystemPrompt
	user := fmt.Sprintf("사용자 별칭: '%s'\n후보: %s\n가장 잘 맞는 하나를 골라 JSON 형식으로 답변하세요.", alias, strings.Join(candidates, ", "))

	text, err := b.chat(ctx, system, user, 128, 0.0)
	if err != nil {
		return "", 0, nil //nolint:nilerr // transient error degrades to zero confidence -> ambiguous
	}
	data, ok := extractJSON(text)
	if !ok {
		return "", 0, nil
	}
	best, _ := data["best"].(string)
	conf := toFloat(data["confidence"])

	if !contains(candidates, best) {
		if len(candidates) == 0 {
			return "", 0, nil
		}
		return candidates[0], 0, nil
	}
	return best, conf, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

const disambigSystemPrompt = `당신은 한국 주식 종목명을 해석하는 AI입니다.
주어진 '사용자 별칭'을 가장 잘 설명하는 하나의 '후보' 종목명을 골라야 합니다.
반환 형식(JSON only): {"best": "<후보 중 하나 그대로>", "confidence": 0~1}`

const defaultExtractPrompt = `당신은 한국 주식 시장 질의를 구조화된 JSON 파라미터로 변환하는 AI이다.
task, date, date_from, date_to, market, tickers, metrics, rank_n, conditions 필드를 갖는 JSON 객체 하나만 반환하라.`
