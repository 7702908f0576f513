package learning

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/internal/pattern"
	"github.com/tallybot/tally-platform/internal/policy"
	"github.com/tallybot/tally-platform/internal/session"
)

var knownIntents = []string{
	"food_log", "water_log", "gym_workout", "sleep_log",
	"todo_add", "todo_complete", "todo_list", "note_add",
	"query_summary", "forget_pattern", "help", "unknown",
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type fixture struct {
	store    *pattern.MemoryStore
	sessions session.Manager
	orch     *Orchestrator
	userID   uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := pattern.NewMemoryStore()
	sessions := session.NewMemoryManager(&noopSource{}, 5*time.Minute)
	orch := NewOrchestrator(store, sessions, nil, policy.Default(), Config{
		Step:         0.15,
		Floor:        0.05,
		KnownIntents: knownIntents,
	}, testLogger())
	return &fixture{store: store, sessions: sessions, orch: orch, userID: uuid.New()}
}

type noopSource struct{}

func (noopSource) BuildDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*session.Summary, error) {
	return &session.Summary{}, nil
}

func TestObserveTeach(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signal := f.orch.Observe(ctx, TurnResult{
		UserID:  f.userID,
		Message: "Dhamaka practice, count it as a workout",
		Intent:  "note_add",
		Success: true,
	})

	if signal != SignalTeach {
		t.Fatalf("Observe() signal = %q, want %q", signal, SignalTeach)
	}

	for _, term := range []string{"dhamaka", "practice"} {
		patterns, err := f.store.FindByTerm(ctx, f.userID, term)
		if err != nil {
			t.Fatalf("FindByTerm(%q) error: %v", term, err)
		}
		if len(patterns) != 1 {
			t.Fatalf("Expected 1 pattern for %q, got %d", term, len(patterns))
		}
		p := patterns[0]
		if p.Type != pattern.TypeIntent || p.AssociatedValue != "gym_workout" {
			t.Errorf("Pattern %q = %s/%s, want intent/gym_workout", term, p.Type, p.AssociatedValue)
		}
		if p.Confidence != pattern.InitialConfidence {
			t.Errorf("Fresh pattern confidence = %f, want %f", p.Confidence, pattern.InitialConfidence)
		}
	}
}

func TestObserveTeachSynonymTarget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	signal := f.orch.Observe(ctx, TurnResult{
		UserID:  f.userID,
		Message: "protein shake, count it as smoothie",
		Intent:  "food_log",
		Success: true,
	})
	if signal != SignalTeach {
		t.Fatalf("Observe() signal = %q, want %q", signal, SignalTeach)
	}

	patterns, err := f.store.FindByTerm(ctx, f.userID, "protein")
	if err != nil {
		t.Fatalf("FindByTerm() error: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("Expected 1 pattern, got %d", len(patterns))
	}
	if patterns[0].Type != pattern.TypeSynonym || patterns[0].AssociatedValue != "smoothie" {
		t.Errorf("Pattern = %s/%s, want synonym/smoothie", patterns[0].Type, patterns[0].AssociatedValue)
	}
}

func TestObserveConfirmationReinforces(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taught, err := f.store.Teach(ctx, pattern.Teaching{
		UserID: f.userID, Term: "dhamaka", Type: pattern.TypeIntent,
		AssociatedValue: "gym_workout", Step: 0.15,
	})
	if err != nil {
		t.Fatalf("Teach() error: %v", err)
	}

	// First turn applies the hint
	hint := &pattern.Hint{PatternID: taught.ID, Term: "dhamaka", Type: pattern.TypeIntent, Value: "gym_workout", Confidence: taught.Confidence}
	signal := f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "dhamaka tonight", Intent: "gym_workout",
		Hint: hint, Success: true,
	})
	if signal != SignalNone {
		t.Fatalf("Applied-hint turn signal = %q, want %q", signal, SignalNone)
	}

	before, _ := f.store.Get(taught.ID)

	// Second turn is a bare affirmative
	signal = f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "yes", Intent: "", Success: true,
	})
	if signal != SignalConfirmation {
		t.Fatalf("Confirmation turn signal = %q, want %q", signal, SignalConfirmation)
	}

	after, _ := f.store.Get(taught.ID)
	if after.Confidence <= before.Confidence {
		t.Errorf("Confirmation did not raise confidence: %f -> %f", before.Confidence, after.Confidence)
	}
	if after.SuccessCount != before.SuccessCount+1 {
		t.Errorf("Success count = %d, want %d", after.SuccessCount, before.SuccessCount+1)
	}

	// The applied record is consumed; a second "yes" does nothing
	signal = f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "yes", Success: true,
	})
	if signal != SignalNone {
		t.Errorf("Repeated confirmation signal = %q, want %q", signal, SignalNone)
	}
}

func TestObserveCorrectionDecaysAndReteaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taught, err := f.store.Teach(ctx, pattern.Teaching{
		UserID: f.userID, Term: "dhamaka", Type: pattern.TypeIntent,
		AssociatedValue: "gym_workout", Step: 0.15,
	})
	if err != nil {
		t.Fatalf("Teach() error: %v", err)
	}

	hint := &pattern.Hint{PatternID: taught.ID, Term: "dhamaka", Type: pattern.TypeIntent, Value: "gym_workout", Confidence: taught.Confidence}
	f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "dhamaka tomorrow", Intent: "gym_workout",
		Hint: hint, Success: true,
	})

	signal := f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "no, that's a todo", Success: true,
	})
	if signal != SignalCorrection {
		t.Fatalf("Correction turn signal = %q, want %q", signal, SignalCorrection)
	}

	decayed, _ := f.store.Get(taught.ID)
	if decayed.Confidence >= taught.Confidence {
		t.Errorf("Correction did not decay confidence: %f -> %f", taught.Confidence, decayed.Confidence)
	}
	if decayed.FailureCount != taught.FailureCount+1 {
		t.Errorf("Failure count = %d, want %d", decayed.FailureCount, taught.FailureCount+1)
	}

	// The corrected mapping is taught for the same term
	patterns, err := f.store.FindByTerm(ctx, f.userID, "dhamaka")
	if err != nil {
		t.Fatalf("FindByTerm() error: %v", err)
	}
	var corrected *pattern.Pattern
	for i := range patterns {
		if patterns[i].AssociatedValue == "todo_add" {
			corrected = &patterns[i]
		}
	}
	if corrected == nil {
		t.Fatal("Correction did not teach the corrected mapping")
	}
	if corrected.Confidence != pattern.InitialConfidence {
		t.Errorf("Corrected mapping confidence = %f, want %f", corrected.Confidence, pattern.InitialConfidence)
	}
}

func TestObserveCorrectionWithoutContext(t *testing.T) {
	f := newFixture(t)

	// No prior applied pattern: nothing to attribute the correction to
	signal := f.orch.Observe(context.Background(), TurnResult{
		UserID: f.userID, Message: "no, that's wrong", Success: false,
	})
	if signal != SignalNone {
		t.Errorf("Unattributable correction signal = %q, want %q", signal, SignalNone)
	}
}

func TestObserveTeachMarkerWithoutClauseUsesLastTerm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	taught, err := f.store.Teach(ctx, pattern.Teaching{
		UserID: f.userID, Term: "dhamaka", Type: pattern.TypeSynonym,
		AssociatedValue: "dance", Step: 0.15,
	})
	if err != nil {
		t.Fatalf("Teach() error: %v", err)
	}

	hint := &pattern.Hint{PatternID: taught.ID, Term: "dhamaka", Type: pattern.TypeSynonym, Value: "dance", Confidence: taught.Confidence}
	f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "dhamaka tonight", Intent: "note_add",
		Hint: hint, Success: true,
	})

	// Teaching with no clause before the marker falls back to the term
	// behind the previous interpretation
	signal := f.orch.Observe(ctx, TurnResult{
		UserID: f.userID, Message: "count it as a workout", Success: true,
	})
	if signal != SignalTeach {
		t.Fatalf("Observe() signal = %q, want %q", signal, SignalTeach)
	}

	patterns, err := f.store.FindByTerm(ctx, f.userID, "dhamaka")
	if err != nil {
		t.Fatalf("FindByTerm() error: %v", err)
	}
	found := false
	for _, p := range patterns {
		if p.Type == pattern.TypeIntent && p.AssociatedValue == "gym_workout" {
			found = true
		}
	}
	if !found {
		t.Error("Clause-less teaching did not map the previous term to the taught intent")
	}
}

// recordingStore captures the Teaching inputs on their way to storage
type recordingStore struct {
	*pattern.MemoryStore
	taught []pattern.Teaching
}

func (r *recordingStore) Teach(ctx context.Context, t pattern.Teaching) (*pattern.Pattern, error) {
	r.taught = append(r.taught, t)
	return r.MemoryStore.Teach(ctx, t)
}

type stubEmbedder struct {
	err error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func TestObserveTeachEmbedsTaughtTerms(t *testing.T) {
	store := &recordingStore{MemoryStore: pattern.NewMemoryStore()}
	sessions := session.NewMemoryManager(&noopSource{}, 5*time.Minute)
	orch := NewOrchestrator(store, sessions, &stubEmbedder{}, policy.Default(), Config{
		Step: 0.15, Floor: 0.05, KnownIntents: knownIntents,
	}, testLogger())

	signal := orch.Observe(context.Background(), TurnResult{
		UserID:  uuid.New(),
		Message: "Dhamaka practice, count it as a workout",
		Success: true,
	})
	if signal != SignalTeach {
		t.Fatalf("Observe() signal = %q, want %q", signal, SignalTeach)
	}

	if len(store.taught) == 0 {
		t.Fatal("Teaching did not reach the store")
	}
	for _, taught := range store.taught {
		if len(taught.TermEmbedding) == 0 {
			t.Errorf("Taught term %q stored without an embedding", taught.Term)
		}
	}
}

func TestObserveTeachSurvivesEmbedderFailure(t *testing.T) {
	store := &recordingStore{MemoryStore: pattern.NewMemoryStore()}
	sessions := session.NewMemoryManager(&noopSource{}, 5*time.Minute)
	orch := NewOrchestrator(store, sessions, &stubEmbedder{err: fmt.Errorf("embedding service down")},
		policy.Default(), Config{
			Step: 0.15, Floor: 0.05, KnownIntents: knownIntents,
		}, testLogger())

	signal := orch.Observe(context.Background(), TurnResult{
		UserID:  uuid.New(),
		Message: "Dhamaka practice, count it as a workout",
		Success: true,
	})
	if signal != SignalTeach {
		t.Fatalf("Observe() signal = %q, want %q", signal, SignalTeach)
	}

	if len(store.taught) == 0 {
		t.Fatal("Teaching did not reach the store")
	}
	for _, taught := range store.taught {
		if len(taught.TermEmbedding) != 0 {
			t.Errorf("Taught term %q carries an embedding from a failing embedder", taught.Term)
		}
	}
}

type failingStore struct {
	*pattern.MemoryStore
}

func (f *failingStore) Teach(ctx context.Context, t pattern.Teaching) (*pattern.Pattern, error) {
	return nil, fmt.Errorf("db down")
}

func TestObserveStoreErrorsAreSwallowed(t *testing.T) {
	store := &failingStore{MemoryStore: pattern.NewMemoryStore()}
	sessions := session.NewMemoryManager(&noopSource{}, 5*time.Minute)
	orch := NewOrchestrator(store, sessions, nil, policy.Default(), Config{
		Step: 0.15, Floor: 0.05, KnownIntents: knownIntents,
	}, testLogger())

	// Teaching fails in storage; the observation completes without error
	// and reports no acted-on signal
	signal := orch.Observe(context.Background(), TurnResult{
		UserID:  uuid.New(),
		Message: "dhamaka practice, count it as a workout",
		Success: true,
	})
	if signal != SignalNone {
		t.Errorf("Observe() with failing store signal = %q, want %q", signal, SignalNone)
	}
}
