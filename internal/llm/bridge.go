// Package llm wraps the external completion service behind three
// abstract operations (extract_params, fill_slots, choose_alias). Wire
// format is HTTP POST; retries only happen on a rate-limit signal, with
// exponential backoff, using the reference service's circuit-breaker-
// per-dependency pattern (infra/breakers).
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// ErrRateLimited signals the wire-level 429 that alone is worth retrying.
var ErrRateLimited = errors.New("llm: rate limited")

type apiKeyCtxKey struct{}

// WithAPIKey attaches the per-request bearer token extracted at the HTTP
// edge, overriding the bridge's configured default for this call.
func WithAPIKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, apiKeyCtxKey{}, key)
}

func apiKeyFrom(ctx context.Context, fallback string) string {
	if v, ok := ctx.Value(apiKeyCtxKey{}).(string); ok && v != "" {
		return v
	}
	return fallback
}

// Bridge is the abstract surface the dialog router and disambiguator
// consume; a fake implementation backs unit tests.
type Bridge interface {
	ExtractParams(ctx context.Context, question string) (map[string]any, error)
	FillSlots(ctx context.Context, reply string, slots []string) (map[string]any, error)
	ChooseAlias(ctx context.Context, alias string, candidates []string) (best string, confidence float64, err error)
}

// Config tunes the HTTP bridge's transport and retry policy.
type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	BackoffBase time.Duration
	RatePerSec  float64
	PromptDir   string
}

// HTTPBridge is the production Bridge: one chat-completion endpoint
// guarded by a circuit breaker and a token-bucket limiter, retried with
// exponential backoff solely on 429.
type HTTPBridge struct {
	cfg     Config
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
}

func NewHTTPBridge(cfg Config) *HTTPBridge {
	st := gobreaker.Settings{
		Name:    "llm-bridge",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &HTTPBridge{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"maxTokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// chat performs one completion call with retry-on-429 + circuit breaker,
// returning the raw assistant text.
func (b *HTTPBridge) chat(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	apiKey := apiKeyFrom(ctx, b.cfg.APIKey)
	if apiKey == "" {
		return "", errors.New("llm: no api key configured")
	}

	var content string
	attempts := b.cfg.MaxRetries
	if attempts <= 0 {
		attempts = 1
	}
	delay := b.cfg.BackoffBase
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := b.limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, err := b.breaker.Execute(func() (any, error) {
			return b.doChat(ctx, apiKey, system, user, maxTokens, temperature)
		})
		if err == nil {
			content = out.(string)
			return content, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			return "", err
		}
		log.Ctx(ctx).Warn().Int("attempt", attempt+1).Dur("delay", delay).Msg("llm rate limited, backing off")
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
		delay *= 2
	}
	return "", fmt.Errorf("llm: exhausted retries: %w", lastErr)
}

func (b *HTTPBridge) doChat(ctx context.Context, apiKey, system, user string, maxTokens int, temperature float64) (string, error) {
	body, err := json.Marshal(chatRequest{
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("llm returned %d: %s", resp.StatusCode, string(data))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", fmt.Errorf("decode llm response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return "", nil
	}
	return cr.Choices[0].Message.Content, nil
}

var firstJSONObject = regexp.MustCompile(`(?s)\{.*\}`)

// extractJSON extracts the first balanced-looking JSON object in text,
// matching the non-greedy scan contract via a greedy match
// over the outermost braces (the wire responses never nest a second
// top-level object, so greedy == first-and-only object in practice).
func extractJSON(text string) (map[string]any, bool) {
	m := firstJSONObject.FindString(text)
	if m == "" {
		return nil, false
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(m), &out); err != nil {
		return nil, false
	}
	return out, true
}
