package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FoodEntry is one logged meal or snack
type FoodEntry struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Description string
	Calories    *int
	ProteinG    *float64
	LoggedAt    time.Time
}

// WaterEntry is one logged drink
type WaterEntry struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	AmountML int
	LoggedAt time.Time
}

// GymEntry is one logged workout
type GymEntry struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Activity    string
	DurationMin *int
	LoggedAt    time.Time
}

// SleepEntry is one logged night of sleep
type SleepEntry struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Hours    float64
	Quality  string
	LoggedAt time.Time
}

// Logs provides persistent storage for the daily activity logs
type Logs struct {
	db *sql.DB
}

// NewLogs creates a new log repository
func NewLogs(db *sql.DB) *Logs {
	return &Logs{db: db}
}

// CreateFood stores a food log entry
func (r *Logs) CreateFood(ctx context.Context, entry *FoodEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO food_logs (id, user_id, description, calories, protein_g, logged_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.UserID, entry.Description, entry.Calories, entry.ProteinG, entry.LoggedAt)
	if err != nil {
		return fmt.Errorf("failed to insert food entry: %w", err)
	}
	return nil
}

// CreateWater stores a water log entry
func (r *Logs) CreateWater(ctx context.Context, entry *WaterEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}
	if entry.AmountML <= 0 {
		return fmt.Errorf("water amount must be positive, got %d", entry.AmountML)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO water_logs (id, user_id, amount_ml, logged_at)
		VALUES ($1, $2, $3, $4)`,
		entry.ID, entry.UserID, entry.AmountML, entry.LoggedAt)
	if err != nil {
		return fmt.Errorf("failed to insert water entry: %w", err)
	}
	return nil
}

// CreateGym stores a workout log entry
func (r *Logs) CreateGym(ctx context.Context, entry *GymEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}
	if entry.Activity == "" {
		return fmt.Errorf("workout activity is required")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO gym_logs (id, user_id, activity, duration_min, logged_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.ID, entry.UserID, entry.Activity, entry.DurationMin, entry.LoggedAt)
	if err != nil {
		return fmt.Errorf("failed to insert gym entry: %w", err)
	}
	return nil
}

// CreateSleep stores a sleep log entry
func (r *Logs) CreateSleep(ctx context.Context, entry *SleepEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}
	if entry.Hours <= 0 || entry.Hours > 24 {
		return fmt.Errorf("sleep hours must be in (0,24], got %.1f", entry.Hours)
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sleep_logs (id, user_id, hours, quality, logged_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		entry.ID, entry.UserID, entry.Hours, entry.Quality, entry.LoggedAt)
	if err != nil {
		return fmt.Errorf("failed to insert sleep entry: %w", err)
	}
	return nil
}

// dayRange returns the [start, end) bounds of the calendar day containing t
func dayRange(t time.Time) (time.Time, time.Time) {
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.Add(24 * time.Hour)
}
