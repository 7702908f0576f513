package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/internal/learning"
	"github.com/tallybot/tally-platform/internal/nlp"
	"github.com/tallybot/tally-platform/internal/pattern"
	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
)

const (
	genericFailureReply = "Something went wrong on my end. Please try again."
	fallbackReply       = "I couldn't understand that right now. Please try again in a moment."
)

// UserResolver resolves a channel identity to a user record
type UserResolver interface {
	Resolve(ctx context.Context, channel, handle string) (*repo.User, error)
}

// PatternMatcher looks up learned vocabulary for a message
type PatternMatcher interface {
	Match(ctx context.Context, userID uuid.UUID, message string) (*pattern.Hint, error)
}

// Learner observes completed turns for teaching, correction and
// confirmation signals
type Learner interface {
	Observe(ctx context.Context, turn learning.TurnResult) learning.Signal
}

// Config holds the processor's tuning knobs
type Config struct {
	// ConfidenceThreshold is the minimum learned-pattern confidence at
	// which an intent hint bypasses classification
	ConfidenceThreshold float64
}

// Inbound is one raw message arriving from a channel
type Inbound struct {
	Channel string
	Handle  string
	Text    string
}

// Reply is the processor's user-facing response
type Reply struct {
	Text string
	// NumberedList marks replies that present numbered options, so channel
	// frontends can render them distinctly
	NumberedList bool
}

// Processor runs the full turn sequence for one inbound message: user
// resolution, pending-confirmation shortcut, pattern matching,
// classification, extraction, handler dispatch and learning.
type Processor struct {
	users      UserResolver
	matcher    PatternMatcher
	classifier nlp.Classifier
	sessions   session.Manager
	learner    Learner
	registry   *Registry
	cfg        Config
	logger     *slog.Logger
	locks      *userLocks
	now        func() time.Time
}

// NewProcessor creates a message processor
func NewProcessor(users UserResolver, matcher PatternMatcher, classifier nlp.Classifier,
	sessions session.Manager, learner Learner, registry *Registry, cfg Config, logger *slog.Logger) *Processor {
	return &Processor{
		users:      users,
		matcher:    matcher,
		classifier: classifier,
		sessions:   sessions,
		learner:    learner,
		registry:   registry,
		cfg:        cfg,
		logger:     logger,
		locks:      newUserLocks(),
		now:        time.Now,
	}
}

// Process handles one inbound message end to end. Turns for the same user
// run strictly one at a time; distinct users proceed concurrently.
func (p *Processor) Process(ctx context.Context, msg Inbound) Reply {
	user, err := p.users.Resolve(ctx, msg.Channel, msg.Handle)
	if err != nil {
		p.logger.Error("Failed to resolve user",
			"channel", msg.Channel,
			"handle", msg.Handle,
			"error", err)
		return Reply{Text: genericFailureReply}
	}

	// Serialize on the resolved account, not the channel identity, so a user
	// reachable over several channels still gets one turn at a time.
	// Resolution itself runs unserialized; the upsert is idempotent.
	unlock := p.locks.acquire(user.ID.String())
	defer unlock()

	text := strings.TrimSpace(msg.Text)
	day := p.now()

	// A bare digit resolves a pending numbered choice without touching the
	// classifier at all.
	if selection, ok := digitSelection(text); ok {
		if reply, handled := p.resolveSelection(ctx, user, selection, day); handled {
			return reply
		}
	}

	return p.interpret(ctx, user, text, day)
}

// resolveSelection tries the pending-confirmation shortcut. Returns
// handled=false when there is no live pending state, in which case the digit
// goes through normal interpretation as literal text.
func (p *Processor) resolveSelection(ctx context.Context, user *repo.User, selection int, day time.Time) (Reply, bool) {
	candidate, err := p.sessions.ResolvePendingConfirmation(ctx, user.ID, selection)
	if err != nil {
		if errors.Is(err, session.ErrNoPending) {
			return Reply{}, false
		}
		if errors.Is(err, session.ErrInvalidSelection) {
			// Out-of-range digit: the options stay live, fall through to
			// interpretation of the literal text.
			return Reply{}, false
		}
		p.logger.Error("Failed to resolve pending confirmation", "user_id", user.ID, "error", err)
		return Reply{Text: genericFailureReply}, true
	}

	p.logger.Info("Pending confirmation resolved",
		"user_id", user.ID,
		"selection", selection,
		"intent", candidate.Intent)

	outcome := p.dispatch(ctx, user, candidate.Intent, Request{
		Text:     candidate.Label,
		Entities: candidate.Entities,
		Day:      day,
	})
	return p.finish(ctx, user, candidate.Label, candidate.Intent, nil, outcome), true
}

// interpret runs pattern matching, classification and extraction, then
// dispatches the resolved intent
func (p *Processor) interpret(ctx context.Context, user *repo.User, text string, day time.Time) Reply {
	hint, err := p.matcher.Match(ctx, user.ID, text)
	if err != nil {
		// Pattern lookup is an accelerator, not a dependency.
		p.logger.Warn("Pattern match failed", "user_id", user.ID, "error", err)
		hint = nil
	}

	intent := ""
	hintApplied := false
	userContext := ""

	if hint != nil {
		switch hint.Type {
		case pattern.TypeIntent:
			if hint.Confidence >= p.cfg.ConfidenceThreshold {
				intent = hint.Value
				hintApplied = true
			}
		case pattern.TypeSynonym, pattern.TypeEntity:
			// Below-threshold or non-intent hints bias classification
			// instead of deciding it.
			userContext = fmt.Sprintf("the user's word %q means %q", hint.Term, hint.Value)
		}
		if intent == "" && hint.Type == pattern.TypeIntent {
			userContext = fmt.Sprintf("the user's word %q may mean the %s intent", hint.Term, hint.Value)
		}
	}

	if intent == "" {
		classification, err := p.classifier.Classify(ctx, text, userContext)
		if err != nil {
			p.logger.Error("Classification failed", "user_id", user.ID, "error", err)
			return Reply{Text: fallbackReply}
		}
		intent = classification.Intent
	}

	entities, err := p.extract(ctx, text, intent, hint)
	if err != nil {
		p.logger.Error("Entity extraction failed", "user_id", user.ID, "intent", intent, "error", err)
		return Reply{Text: fallbackReply}
	}

	outcome := p.dispatch(ctx, user, intent, Request{Text: text, Entities: entities, Day: day})

	if outcome.Status == StatusAmbiguous {
		return p.askConfirmation(ctx, user, outcome)
	}

	var appliedHint *pattern.Hint
	if hintApplied {
		appliedHint = hint
	}
	return p.finish(ctx, user, text, intent, appliedHint, outcome)
}

// extract produces the entity map for the resolved intent. An applied
// entity-type hint substitutes its canonical value for the extractor call.
func (p *Processor) extract(ctx context.Context, text, intent string, hint *pattern.Hint) (map[string]interface{}, error) {
	if hint != nil && hint.Type == pattern.TypeEntity && hint.Confidence >= p.cfg.ConfidenceThreshold {
		return map[string]interface{}{"canonical": hint.Value}, nil
	}

	entities, err := p.classifier.Extract(ctx, text, intent)
	if err != nil {
		return nil, err
	}
	if entities == nil {
		entities = map[string]interface{}{}
	}

	// A synonym hint applied alongside classification still contributes its
	// canonical value.
	if hint != nil && hint.Type == pattern.TypeSynonym && hint.Confidence >= p.cfg.ConfidenceThreshold {
		if _, exists := entities["canonical"]; !exists {
			entities["canonical"] = hint.Value
		}
	}
	return entities, nil
}

func (p *Processor) dispatch(ctx context.Context, user *repo.User, intent string, req Request) Outcome {
	handler, ok := p.registry.Get(intent)
	if !ok {
		p.logger.Warn("No handler for intent", "intent", intent)
		handler, ok = p.registry.Get("unknown")
		if !ok {
			return Outcome{Status: StatusFailure}
		}
	}
	return handler(ctx, user, req)
}

// askConfirmation stores the candidate options and prompts with a numbered
// list. Ambiguous turns produce no learning.
func (p *Processor) askConfirmation(ctx context.Context, user *repo.User, outcome Outcome) Reply {
	if err := p.sessions.SetPendingConfirmation(ctx, user.ID, outcome.Candidates); err != nil {
		p.logger.Error("Failed to store pending confirmation", "user_id", user.ID, "error", err)
		return Reply{Text: genericFailureReply}
	}

	var b strings.Builder
	b.WriteString("Which one did you mean?\n")
	for i, c := range outcome.Candidates {
		fmt.Fprintf(&b, "%d. %s\n", i+1, c.Label)
	}
	b.WriteString("Reply with a number.")
	return Reply{Text: b.String(), NumberedList: true}
}

// finish runs the learning pass and renders the final reply
func (p *Processor) finish(ctx context.Context, user *repo.User, text, intent string, hint *pattern.Hint, outcome Outcome) Reply {
	signal := p.learner.Observe(ctx, learning.TurnResult{
		UserID:  user.ID,
		Message: text,
		Intent:  intent,
		Hint:    hint,
		Success: outcome.Status == StatusSuccess,
	})
	if signal != learning.SignalNone {
		p.logger.Info("Learning signal processed",
			"user_id", user.ID,
			"signal", signal)
	}

	if outcome.Status == StatusFailure {
		if outcome.Message != "" {
			return Reply{Text: outcome.Message}
		}
		return Reply{Text: genericFailureReply}
	}

	reply := outcome.Message
	if signal == learning.SignalTeach {
		reply = "Got it, I'll remember that."
		if outcome.Message != "" {
			reply = outcome.Message + " I'll remember that."
		}
	}
	return Reply{Text: reply}
}

// digitSelection reports whether the message is a bare single digit 1-9
func digitSelection(text string) (int, bool) {
	if len(text) != 1 || text[0] < '1' || text[0] > '9' {
		return 0, false
	}
	return int(text[0] - '0'), true
}
