package learning

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/internal/pattern"
	"github.com/tallybot/tally-platform/internal/policy"
	"github.com/tallybot/tally-platform/internal/session"
)

// Signal is the kind of learning evidence detected in a turn
type Signal string

const (
	SignalTeach        Signal = "teach"
	SignalCorrection   Signal = "correction"
	SignalConfirmation Signal = "confirmation"
	SignalNone         Signal = "none"
)

// TurnResult is what the processor hands over after a turn completes
type TurnResult struct {
	UserID  uuid.UUID
	Message string
	Intent  string
	// Hint is the pattern hint that drove this turn's interpretation, if any
	Hint *pattern.Hint
	// Success is true when the handler completed the action
	Success bool
}

// Config holds the orchestrator's tuning knobs
type Config struct {
	// Step is the confidence step used for both reinforcement and decay
	Step float64
	// Floor is the lower bound confidence never decays below, so a decayed
	// pattern can still recover
	Floor float64
	// KnownIntents decides whether a taught target becomes an intent
	// pattern or a synonym pattern
	KnownIntents []string
}

// Orchestrator runs after a turn completes and updates the pattern store
// from teaching, correction and confirmation signals. Every update is
// best-effort: a storage error is logged and dropped, never surfaced to the
// user-visible response.
type Orchestrator struct {
	store    pattern.Store
	sessions session.Manager
	embedder pattern.Embedder
	pol      *policy.Policy
	cfg      Config
	logger   *slog.Logger
}

// NewOrchestrator creates a learning orchestrator. A nil embedder disables
// term embeddings, leaving fuzzy lookup without candidates for the taught
// patterns.
func NewOrchestrator(store pattern.Store, sessions session.Manager, embedder pattern.Embedder, pol *policy.Policy, cfg Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:    store,
		sessions: sessions,
		embedder: embedder,
		pol:      pol,
		cfg:      cfg,
		logger:   logger,
	}
}

// Observe inspects a completed turn for learning signals, in priority order:
// explicit teaching, correction, confirmation, none. Returns the signal that
// was acted on, for logging and tests.
func (o *Orchestrator) Observe(ctx context.Context, turn TurnResult) Signal {
	message := strings.ToLower(strings.TrimSpace(turn.Message))

	corrective := o.startsWithCorrection(message)

	// A teaching phrase inside a corrective message ("no, that's a todo")
	// is handled as a correction so the wrong pattern also decays.
	if !corrective {
		if o.handleTeach(ctx, turn, message) {
			return SignalTeach
		}
	}

	if corrective {
		if o.handleCorrection(ctx, turn, message) {
			return SignalCorrection
		}
	}

	if o.handleConfirmation(ctx, turn, message) {
		return SignalConfirmation
	}

	// No explicit signal. A successfully applied hint still counts as a use.
	if turn.Hint != nil && turn.Success {
		if err := o.store.MarkUsed(ctx, turn.Hint.PatternID); err != nil {
			o.logger.Warn("Failed to record pattern use", "pattern_id", turn.Hint.PatternID, "error", err)
		}
		o.recordApplied(ctx, turn)
	}

	return SignalNone
}

// handleTeach detects an explicit teaching phrase and upserts the taught
// mapping. "dhamaka practice, count it as a workout" stores a pattern per
// significant token before the marker, each mapping to the canonical target.
func (o *Orchestrator) handleTeach(ctx context.Context, turn TurnResult, message string) bool {
	marker, before, after := o.findMarker(message, o.pol.TeachMarkers)
	if marker == "" {
		return false
	}

	target, ptype := o.resolveTarget(after)
	if target == "" {
		return false
	}

	terms := pattern.Tokenize(before, o.pol)
	if len(terms) == 0 {
		// "that's a workout" with no clause: apply to the term behind the
		// last interpretation, if we have one.
		if applied := o.lastApplied(ctx, turn.UserID); applied != nil && applied.Term != "" {
			terms = []string{applied.Term}
		}
	}
	if len(terms) == 0 {
		return false
	}

	taught := false
	for _, term := range terms {
		if term == target {
			continue
		}
		p, err := o.store.Teach(ctx, pattern.Teaching{
			UserID:          turn.UserID,
			Term:            term,
			Type:            ptype,
			AssociatedValue: target,
			Context:         strings.TrimSpace(turn.Message),
			Step:            o.cfg.Step,
			TermEmbedding:   o.embedTerm(ctx, term),
		})
		if err != nil {
			o.logger.Warn("Failed to store taught pattern", "term", term, "error", err)
			continue
		}
		taught = true
		o.logger.Info("Pattern taught",
			"user_id", turn.UserID,
			"term", term,
			"value", target,
			"confidence", p.Confidence)
	}

	return taught
}

// handleCorrection decays the pattern behind the prior interpretation and,
// when the message names the right mapping, teaches it at initial confidence
func (o *Orchestrator) handleCorrection(ctx context.Context, turn TurnResult, message string) bool {
	applied := o.lastApplied(ctx, turn.UserID)
	if applied == nil {
		return false
	}

	if applied.PatternID != uuid.Nil {
		if err := o.store.Decay(ctx, applied.PatternID, o.cfg.Step, o.cfg.Floor); err != nil {
			o.logger.Warn("Failed to decay corrected pattern", "pattern_id", applied.PatternID, "error", err)
		} else {
			o.logger.Info("Pattern decayed after correction",
				"user_id", turn.UserID,
				"pattern_id", applied.PatternID)
		}
	}

	// "no, that's actually a todo" also teaches the corrected mapping
	if target, ptype := o.correctedTarget(message); target != "" && applied.Term != "" {
		_, err := o.store.Teach(ctx, pattern.Teaching{
			UserID:          turn.UserID,
			Term:            applied.Term,
			Type:            ptype,
			AssociatedValue: target,
			Context:         strings.TrimSpace(turn.Message),
			Step:            o.cfg.Step,
			TermEmbedding:   o.embedTerm(ctx, applied.Term),
		})
		if err != nil {
			o.logger.Warn("Failed to store corrected pattern", "term", applied.Term, "error", err)
		}
	}

	o.clearApplied(ctx, turn.UserID)
	return true
}

// handleConfirmation reinforces the pattern behind the prior interpretation
// when the user replies with a bare affirmative
func (o *Orchestrator) handleConfirmation(ctx context.Context, turn TurnResult, message string) bool {
	if !o.pol.IsConfirmation(message) {
		return false
	}

	applied := o.lastApplied(ctx, turn.UserID)
	if applied == nil || applied.PatternID == uuid.Nil {
		return false
	}

	if err := o.store.Reinforce(ctx, applied.PatternID, o.cfg.Step); err != nil {
		o.logger.Warn("Failed to reinforce confirmed pattern", "pattern_id", applied.PatternID, "error", err)
	} else {
		o.logger.Info("Pattern reinforced after confirmation",
			"user_id", turn.UserID,
			"pattern_id", applied.PatternID)
	}

	o.clearApplied(ctx, turn.UserID)
	return true
}

// findMarker returns the first marker present in the message and the text
// around it
func (o *Orchestrator) findMarker(message string, markers []string) (marker, before, after string) {
	idx := -1
	for _, m := range markers {
		i := strings.Index(message, m)
		if i >= 0 && (idx < 0 || i < idx) {
			idx, marker = i, m
		}
	}
	if idx < 0 {
		return "", "", ""
	}
	return marker, message[:idx], message[idx+len(marker):]
}

func (o *Orchestrator) startsWithCorrection(message string) bool {
	for _, m := range o.pol.CorrectionMarkers {
		if strings.HasPrefix(message, m) {
			return true
		}
	}
	return false
}

// resolveTarget maps the text after a teach marker to a canonical value.
// "a workout" resolves to the gym_workout intent; an unrecognized word is
// stored as a synonym mapping.
func (o *Orchestrator) resolveTarget(after string) (string, pattern.Type) {
	tokens := pattern.Tokenize(after, o.pol)
	if len(tokens) == 0 {
		return "", ""
	}

	// Filler tokens may precede the category word ("that's actually a
	// workout"), so the first token that canonicalizes to a known intent
	// wins over strict position.
	for _, tok := range tokens {
		canonical := o.pol.CanonicalIntent(tok)
		if o.isKnownIntent(canonical) {
			return canonical, pattern.TypeIntent
		}
	}
	return tokens[0], pattern.TypeSynonym
}

// correctedTarget finds the corrected mapping named in a correction message
func (o *Orchestrator) correctedTarget(message string) (string, pattern.Type) {
	_, _, after := o.findMarker(message, o.pol.CorrectionMarkers)
	if after == "" {
		after = message
	}
	return o.resolveTarget(after)
}

// embedTerm computes the vector stored alongside a taught term so later
// fuzzy lookups can land near it. Best-effort: with no embedder, or when the
// embedding service is down, the pattern is stored without a vector and exact
// matching still works.
func (o *Orchestrator) embedTerm(ctx context.Context, term string) []float32 {
	if o.embedder == nil {
		return nil
	}
	embedding, err := o.embedder.Embed(ctx, term)
	if err != nil {
		o.logger.Warn("Failed to embed taught term", "term", term, "error", err)
		return nil
	}
	return embedding
}

func (o *Orchestrator) isKnownIntent(value string) bool {
	for _, intent := range o.cfg.KnownIntents {
		if value == intent {
			return true
		}
	}
	return false
}

func (o *Orchestrator) lastApplied(ctx context.Context, userID uuid.UUID) *session.AppliedPattern {
	applied, err := o.sessions.LastApplied(ctx, userID)
	if err != nil {
		o.logger.Warn("Failed to read last applied pattern", "user_id", userID, "error", err)
		return nil
	}
	return applied
}

func (o *Orchestrator) recordApplied(ctx context.Context, turn TurnResult) {
	err := o.sessions.SetLastApplied(ctx, turn.UserID, session.AppliedPattern{
		PatternID: turn.Hint.PatternID,
		Term:      turn.Hint.Term,
		Intent:    turn.Intent,
	})
	if err != nil {
		o.logger.Warn("Failed to record applied pattern", "user_id", turn.UserID, "error", err)
	}
}

func (o *Orchestrator) clearApplied(ctx context.Context, userID uuid.UUID) {
	if err := o.sessions.ClearLastApplied(ctx, userID); err != nil {
		o.logger.Warn("Failed to clear applied pattern", "user_id", userID, "error", err)
	}
}
