package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubSource struct {
	builds  int
	summary Summary
	err     error
}

func (s *stubSource) BuildDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*Summary, error) {
	s.builds++
	if s.err != nil {
		return nil, s.err
	}
	copied := s.summary
	copied.Date = DayKey(day)
	return &copied, nil
}

func twoOptions() []Candidate {
	return []Candidate{
		{Label: "Log a workout", Intent: "gym_workout"},
		{Label: "Add a todo", Intent: "todo_add"},
	}
}

func TestPendingConfirmationLifecycle(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute)
	userID := uuid.New()
	ctx := context.Background()

	has, err := m.HasPendingConfirmation(ctx, userID)
	if err != nil {
		t.Fatalf("HasPendingConfirmation() error: %v", err)
	}
	if has {
		t.Fatal("Fresh user reported pending confirmation")
	}

	if err := m.SetPendingConfirmation(ctx, userID, twoOptions()); err != nil {
		t.Fatalf("SetPendingConfirmation() error: %v", err)
	}

	candidate, err := m.ResolvePendingConfirmation(ctx, userID, 2)
	if err != nil {
		t.Fatalf("ResolvePendingConfirmation() error: %v", err)
	}
	if candidate.Intent != "todo_add" {
		t.Errorf("Resolved candidate intent = %q, want todo_add", candidate.Intent)
	}

	// Resolution consumes the pending state
	if _, err := m.ResolvePendingConfirmation(ctx, userID, 1); !errors.Is(err, ErrNoPending) {
		t.Errorf("Second resolve error = %v, want ErrNoPending", err)
	}
}

func TestPendingConfirmationReplacement(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute)
	userID := uuid.New()
	ctx := context.Background()

	if err := m.SetPendingConfirmation(ctx, userID, twoOptions()); err != nil {
		t.Fatalf("SetPendingConfirmation() error: %v", err)
	}

	replacement := []Candidate{
		{Label: "Log water", Intent: "water_log"},
		{Label: "Log food", Intent: "food_log"},
		{Label: "Save a note", Intent: "note_add"},
	}
	if err := m.SetPendingConfirmation(ctx, userID, replacement); err != nil {
		t.Fatalf("SetPendingConfirmation() replacement error: %v", err)
	}

	// Only the newest options are live: 3 resolves against the replacement
	candidate, err := m.ResolvePendingConfirmation(ctx, userID, 3)
	if err != nil {
		t.Fatalf("ResolvePendingConfirmation() error: %v", err)
	}
	if candidate.Intent != "note_add" {
		t.Errorf("Resolved candidate intent = %q, want note_add from the replacement", candidate.Intent)
	}
}

func TestPendingConfirmationInvalidSelection(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute)
	userID := uuid.New()
	ctx := context.Background()

	if err := m.SetPendingConfirmation(ctx, userID, twoOptions()); err != nil {
		t.Fatalf("SetPendingConfirmation() error: %v", err)
	}

	if _, err := m.ResolvePendingConfirmation(ctx, userID, 9); !errors.Is(err, ErrInvalidSelection) {
		t.Fatalf("Out-of-range selection error = %v, want ErrInvalidSelection", err)
	}

	// An invalid digit keeps the options live
	candidate, err := m.ResolvePendingConfirmation(ctx, userID, 1)
	if err != nil {
		t.Fatalf("Resolve after invalid selection error: %v", err)
	}
	if candidate.Intent != "gym_workout" {
		t.Errorf("Resolved candidate intent = %q, want gym_workout", candidate.Intent)
	}
}

func TestPendingConfirmationRejectsSingleOption(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute)

	err := m.SetPendingConfirmation(context.Background(), uuid.New(), []Candidate{
		{Label: "Only one", Intent: "todo_add"},
	})
	if err == nil {
		t.Error("SetPendingConfirmation() accepted a single option")
	}
}

func TestPendingConfirmationTimeout(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute).(*memoryManager)
	userID := uuid.New()
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return current }

	if err := m.SetPendingConfirmation(ctx, userID, twoOptions()); err != nil {
		t.Fatalf("SetPendingConfirmation() error: %v", err)
	}

	current = current.Add(6 * time.Minute)

	if _, err := m.ResolvePendingConfirmation(ctx, userID, 1); !errors.Is(err, ErrNoPending) {
		t.Errorf("Expired confirmation resolve error = %v, want ErrNoPending", err)
	}
}

func TestPendingConfirmationUserIsolation(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	if err := m.SetPendingConfirmation(ctx, alice, twoOptions()); err != nil {
		t.Fatalf("SetPendingConfirmation() error: %v", err)
	}

	if _, err := m.ResolvePendingConfirmation(ctx, bob, 1); !errors.Is(err, ErrNoPending) {
		t.Errorf("Another user's resolve error = %v, want ErrNoPending", err)
	}
}

func TestLastAppliedLifecycle(t *testing.T) {
	m := NewMemoryManager(&stubSource{}, 5*time.Minute)
	userID := uuid.New()
	ctx := context.Background()

	applied, err := m.LastApplied(ctx, userID)
	if err != nil {
		t.Fatalf("LastApplied() error: %v", err)
	}
	if applied != nil {
		t.Fatalf("Fresh user has applied pattern: %+v", applied)
	}

	record := AppliedPattern{PatternID: uuid.New(), Term: "dhamaka", Intent: "gym_workout"}
	if err := m.SetLastApplied(ctx, userID, record); err != nil {
		t.Fatalf("SetLastApplied() error: %v", err)
	}

	applied, err = m.LastApplied(ctx, userID)
	if err != nil {
		t.Fatalf("LastApplied() error: %v", err)
	}
	if applied == nil || applied.PatternID != record.PatternID {
		t.Errorf("LastApplied() = %+v, want %+v", applied, record)
	}

	if err := m.ClearLastApplied(ctx, userID); err != nil {
		t.Fatalf("ClearLastApplied() error: %v", err)
	}
	applied, _ = m.LastApplied(ctx, userID)
	if applied != nil {
		t.Errorf("LastApplied() after clear = %+v, want nil", applied)
	}
}

func TestDailySummaryCaching(t *testing.T) {
	source := &stubSource{summary: Summary{WaterTotalML: 500}}
	m := NewMemoryManager(source, 5*time.Minute)
	userID := uuid.New()
	ctx := context.Background()
	day := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

	first, err := m.DailySummary(ctx, userID, day)
	if err != nil {
		t.Fatalf("DailySummary() error: %v", err)
	}
	if first.WaterTotalML != 500 {
		t.Errorf("Summary water = %d, want 500", first.WaterTotalML)
	}
	if source.builds != 1 {
		t.Fatalf("Source builds = %d, want 1", source.builds)
	}

	// Second read is served from cache
	if _, err := m.DailySummary(ctx, userID, day); err != nil {
		t.Fatalf("DailySummary() error: %v", err)
	}
	if source.builds != 1 {
		t.Errorf("Source builds after cached read = %d, want 1", source.builds)
	}

	// Invalidation forces a rebuild, so a write is immediately visible
	source.summary.WaterTotalML = 750
	if err := m.InvalidateDailySummary(ctx, userID, day); err != nil {
		t.Fatalf("InvalidateDailySummary() error: %v", err)
	}

	fresh, err := m.DailySummary(ctx, userID, day)
	if err != nil {
		t.Fatalf("DailySummary() error: %v", err)
	}
	if source.builds != 2 {
		t.Errorf("Source builds after invalidation = %d, want 2", source.builds)
	}
	if fresh.WaterTotalML != 750 {
		t.Errorf("Summary water after invalidation = %d, want 750", fresh.WaterTotalML)
	}
}

func TestDailySummarySourceError(t *testing.T) {
	source := &stubSource{err: errors.New("db down")}
	m := NewMemoryManager(source, 5*time.Minute)

	if _, err := m.DailySummary(context.Background(), uuid.New(), time.Now()); err == nil {
		t.Error("DailySummary() swallowed the source error")
	}
}
