package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoPending is returned when a user has no live pending confirmation
var ErrNoPending = errors.New("no pending confirmation")

// ErrInvalidSelection is returned when a digit reply does not index into the
// stored options list
var ErrInvalidSelection = errors.New("invalid confirmation selection")

// Candidate is one interpretation offered to the user in a numbered list
type Candidate struct {
	Label    string                 `json:"label"`
	Intent   string                 `json:"intent"`
	Entities map[string]interface{} `json:"entities,omitempty"`
}

// PendingConfirmation holds the numbered options awaiting a one-digit reply.
// At most one exists per user; storing a new one replaces the old.
type PendingConfirmation struct {
	Options   []Candidate `json:"options"`
	CreatedAt time.Time   `json:"created_at"`
}

// AppliedPattern records the learned pattern behind the most recent
// interpretation, so a following correction or confirmation can be
// attributed to it
type AppliedPattern struct {
	PatternID uuid.UUID `json:"pattern_id"`
	Term      string    `json:"term"`
	Intent    string    `json:"intent"`
}

// Summary aggregates a user's logs for one day
type Summary struct {
	Date          string  `json:"date"`
	WaterTotalML  int     `json:"water_total_ml"`
	Calories      int     `json:"calories"`
	ProteinG      float64 `json:"protein_g"`
	MealCount     int     `json:"meal_count"`
	WorkoutCount  int     `json:"workout_count"`
	SleepHours    float64 `json:"sleep_hours"`
	OpenTodoCount int     `json:"open_todo_count"`
}

// SummarySource recomputes a daily summary from the log repositories
type SummarySource interface {
	BuildDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*Summary, error)
}

// Manager holds short-lived per-user conversational state: the pending
// numbered-choice confirmation, the last applied pattern, and the cached
// daily summary. All state is partitioned strictly by user.
type Manager interface {
	// SetPendingConfirmation stores a numbered options list, replacing any
	// existing pending state. Lists with fewer than two options are a
	// caller error: a single unambiguous interpretation needs no
	// confirmation.
	SetPendingConfirmation(ctx context.Context, userID uuid.UUID, options []Candidate) error

	// ResolvePendingConfirmation resolves a 1-based digit selection and
	// clears the pending state. ErrNoPending when none exists or it timed
	// out; ErrInvalidSelection when the digit is out of range (pending
	// state is kept in that case).
	ResolvePendingConfirmation(ctx context.Context, userID uuid.UUID, selection int) (*Candidate, error)

	// HasPendingConfirmation reports whether a live pending confirmation exists
	HasPendingConfirmation(ctx context.Context, userID uuid.UUID) (bool, error)

	// SetLastApplied records the pattern behind the current interpretation
	SetLastApplied(ctx context.Context, userID uuid.UUID, applied AppliedPattern) error

	// LastApplied returns the recorded pattern application, or nil
	LastApplied(ctx context.Context, userID uuid.UUID) (*AppliedPattern, error)

	// ClearLastApplied drops the recorded pattern application
	ClearLastApplied(ctx context.Context, userID uuid.UUID) error

	// DailySummary returns the cached summary for the day, recomputing
	// from the repositories on a cache miss
	DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*Summary, error)

	// InvalidateDailySummary drops the cached summary. Every handler that
	// writes a log row calls this before its response is finalized, so a
	// same-turn follow-up sees fresh data.
	InvalidateDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) error
}

// DayKey formats a day for cache keys
func DayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

func validateOptions(options []Candidate) error {
	if len(options) < 2 {
		return fmt.Errorf("pending confirmation requires at least 2 options, got %d", len(options))
	}
	return nil
}
