package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/internal/session"
)

// SummaryBuilder aggregates the log tables into a daily context summary.
// It implements session.SummarySource.
type SummaryBuilder struct {
	db *sql.DB
}

// NewSummaryBuilder creates a summary builder over the log tables
func NewSummaryBuilder(db *sql.DB) *SummaryBuilder {
	return &SummaryBuilder{db: db}
}

// BuildDailySummary computes the aggregate totals for one user and day
func (b *SummaryBuilder) BuildDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*session.Summary, error) {
	start, end := dayRange(day)

	summary := session.Summary{Date: session.DayKey(day)}

	err := b.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_ml), 0)
		FROM water_logs
		WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3`,
		userID, start, end).Scan(&summary.WaterTotalML)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate water: %w", err)
	}

	err = b.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(calories), 0), COALESCE(SUM(protein_g), 0)
		FROM food_logs
		WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3`,
		userID, start, end).Scan(&summary.MealCount, &summary.Calories, &summary.ProteinG)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate food: %w", err)
	}

	err = b.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM gym_logs
		WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3`,
		userID, start, end).Scan(&summary.WorkoutCount)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate workouts: %w", err)
	}

	err = b.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(hours), 0)
		FROM sleep_logs
		WHERE user_id = $1 AND logged_at >= $2 AND logged_at < $3`,
		userID, start, end).Scan(&summary.SleepHours)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sleep: %w", err)
	}

	err = b.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM todos
		WHERE user_id = $1 AND NOT completed`,
		userID).Scan(&summary.OpenTodoCount)
	if err != nil {
		return nil, fmt.Errorf("failed to count open todos: %w", err)
	}

	return &summary, nil
}
