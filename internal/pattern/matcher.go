package pattern

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/internal/policy"
)

// Embedder produces an embedding vector for a piece of text. The matcher
// only uses it when exact term lookup misses; a nil Embedder disables the
// fuzzy fallback entirely.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// MatcherConfig holds the matcher's tuning knobs
type MatcherConfig struct {
	// FuzzyMaxDistance is the cosine-distance ceiling for embedding-based
	// fallback matches
	FuzzyMaxDistance float64
}

// Matcher looks up raw message tokens against a user's learned patterns
// before classification. It is strictly read-only: usage accounting happens
// later, and only when the hint is acted upon.
type Matcher struct {
	store    Store
	pol      *policy.Policy
	embedder Embedder
	cfg      MatcherConfig
	logger   *slog.Logger
}

// NewMatcher creates a matcher over the given store and policy
func NewMatcher(store Store, pol *policy.Policy, embedder Embedder, cfg MatcherConfig, logger *slog.Logger) *Matcher {
	return &Matcher{
		store:    store,
		pol:      pol,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Match returns the best learned association for a message, or nil when the
// user has no pattern covering any of its significant tokens.
//
// Selection: highest confidence wins across all candidate terms; on a tie,
// the most recently used pattern wins.
func (m *Matcher) Match(ctx context.Context, userID uuid.UUID, message string) (*Hint, error) {
	terms := Tokenize(message, m.pol)
	if len(terms) == 0 {
		return nil, nil
	}

	var best *Pattern
	for _, term := range terms {
		patterns, err := m.store.FindByTerm(ctx, userID, term)
		if err != nil {
			return nil, err
		}
		for i := range patterns {
			p := &patterns[i]
			if best == nil || betterThan(p, best) {
				best = p
			}
		}
	}

	if best != nil {
		m.logger.Debug("Pattern match",
			"term", best.Term,
			"value", best.AssociatedValue,
			"confidence", best.Confidence)
		return hintFrom(best, false), nil
	}

	return m.fuzzyMatch(ctx, userID, terms)
}

// fuzzyMatch falls back to embedding distance over stored terms. Applied to
// the whole significant-token string so multiword vocabulary still lands
// near its taught form.
func (m *Matcher) fuzzyMatch(ctx context.Context, userID uuid.UUID, terms []string) (*Hint, error) {
	if m.embedder == nil {
		return nil, nil
	}

	embedding, err := m.embedder.Embed(ctx, strings.Join(terms, " "))
	if err != nil {
		// Fuzzy lookup is best-effort; a missing embedding service must not
		// fail the turn.
		m.logger.Warn("Failed to embed message for fuzzy match", "error", err)
		return nil, nil
	}

	p, err := m.store.FindNearest(ctx, userID, embedding, m.cfg.FuzzyMaxDistance)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	m.logger.Debug("Fuzzy pattern match",
		"term", p.Term,
		"value", p.AssociatedValue,
		"confidence", p.Confidence)
	return hintFrom(p, true), nil
}

func hintFrom(p *Pattern, fuzzy bool) *Hint {
	return &Hint{
		PatternID:  p.ID,
		Term:       p.Term,
		Type:       p.Type,
		Value:      p.AssociatedValue,
		Confidence: p.Confidence,
		Fuzzy:      fuzzy,
	}
}

func betterThan(a, b *Pattern) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return laterThan(a.LastUsed, b.LastUsed)
}

// Tokenize splits a message into lowercase candidate terms, dropping
// punctuation, stop words and tokens shorter than two runes.
func Tokenize(message string, pol *policy.Policy) []string {
	fields := strings.FieldsFunc(strings.ToLower(message), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	var terms []string
	seen := make(map[string]bool)
	for _, f := range fields {
		f = strings.Trim(f, "'")
		if len([]rune(f)) < 2 {
			continue
		}
		if pol.IsStopWord(f) {
			continue
		}
		if seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}

	return terms
}
