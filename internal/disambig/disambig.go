// Package disambig implements the ticker disambiguation pipeline:
// exact alias lookup, a fuzzy-match shortlist, a semantic shortlist, and
// an LLM tie-break gated by confidence. Grounded on the original
// router's five-stage to_ticker() and its particle-stripping regex
// `[의은는이가를]`.
package disambig

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/sawpanic/hanguk-agent/internal/catalog"
	"github.com/sawpanic/hanguk-agent/internal/llm"
)

// AmbiguousTicker is the structured signal the dialog layer converts
// into a re-prompt.
type AmbiguousTicker struct {
	Alias      string
	Candidates []string
}

func (e *AmbiguousTicker) Error() string {
	return fmt.Sprintf("ambiguous ticker %q: %v", e.Alias, e.Candidates)
}

// Config tunes shortlist sizes and the confidence gate.
type Config struct {
	TopKFuzzy        int
	TopKEmbed        int
	ConfidenceThresh float64
}

func DefaultConfig() Config {
	return Config{TopKFuzzy: 3, TopKEmbed: 3, ConfidenceThresh: 0.82}
}

// Resolver resolves a user alias to a canonical code.
type Resolver struct {
	cat    *catalog.Catalog
	bridge llm.Bridge
	cfg    Config

	indexOnce sync.Once
	index     *semanticIndex
}

func NewResolver(cat *catalog.Catalog, bridge llm.Bridge, cfg Config) *Resolver {
	return &Resolver{cat: cat, bridge: bridge, cfg: cfg}
}

var particleRE = regexp.MustCompile(`[의은는이가를]$`)

func stripParticle(s string) string {
	return particleRE.ReplaceAllString(s, "")
}

type candidate struct {
	name  string
	score float64
}

// Resolve maps an alias to (code, official name), or returns
// *AmbiguousTicker when the LLM tie-break confidence is below the gate.
func (r *Resolver) Resolve(ctx context.Context, alias string) (code string, name string, err error) {
	alias = strings.TrimSpace(alias)

	// 1. Direct lookup: verbatim, then with one trailing particle stripped.
	for _, try := range []string{alias, stripParticle(alias)} {
		if code, ok := r.cat.CodeByExactName(try); ok {
			return code, r.cat.NameOrCode(code), nil
		}
	}

	// 2 & 3. Fuzzy + semantic shortlists over the catalog's key space.
	keys := r.cat.Keys()
	fuzzy := r.fuzzyShortlist(alias, keys)
	semantic := r.semanticShortlist(alias, keys)

	// 4. Merge candidates, keeping the max score per name.
	merged := map[string]float64{}
	for _, c := range append(fuzzy, semantic...) {
		if c.score > merged[c.name] {
			merged[c.name] = c.score
		}
	}
	names := make([]string, 0, len(merged))
	for n := range merged {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return merged[names[i]] > merged[names[j]] })
	limit := r.cfg.TopKFuzzy + r.cfg.TopKEmbed
	if limit <= 0 {
		limit = 6
	}
	if len(names) > limit {
		names = names[:limit]
	}
	if len(names) == 0 {
		return "", "", &AmbiguousTicker{Alias: alias, Candidates: nil}
	}

	// 5. LLM tie-break.
	best, confidence, err := r.bridge.ChooseAlias(ctx, alias, names)
	if err != nil {
		return "", "", fmt.Errorf("choose alias: %w", err)
	}

	// 6. Confidence gate.
	if confidence >= r.cfg.ConfidenceThresh {
		if code, ok := r.cat.CodeByExactName(best); ok {
			return code, r.cat.NameOrCode(code), nil
		}
	}
	return "", "", &AmbiguousTicker{Alias: alias, Candidates: names}
}

func (r *Resolver) fuzzyShortlist(alias string, keys []string) []candidate {
	out := make([]candidate, 0, len(keys))
	for _, k := range keys {
		out = append(out, candidate{name: k, score: normalizedSimilarity(alias, k)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].score > out[j].score })
	k := r.cfg.TopKFuzzy
	if k <= 0 {
		k = 3
	}
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// semanticShortlist builds the embedding index exactly once, safe under
// concurrent first callers.
func (r *Resolver) semanticShortlist(alias string, keys []string) []candidate {
	r.indexOnce.Do(func() {
		r.index = buildSemanticIndex(keys)
	})
	return r.index.search(alias, r.cfg.TopKEmbed)
}
