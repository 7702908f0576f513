package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Note is a free-form knowledge entry ("remember that my gym card code is …")
type Note struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Body      string
	Category  string
	CreatedAt time.Time
}

// Notes provides persistent storage for knowledge entries
type Notes struct {
	db *sql.DB
}

// NewNotes creates a new knowledge repository
func NewNotes(db *sql.DB) *Notes {
	return &Notes{db: db}
}

// Create stores a new note
func (r *Notes) Create(ctx context.Context, userID uuid.UUID, body, category string) (*Note, error) {
	if body == "" {
		return nil, fmt.Errorf("note body is required")
	}

	note := Note{
		ID:        uuid.New(),
		UserID:    userID,
		Body:      body,
		Category:  category,
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO knowledge_notes (id, user_id, body, category, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)`,
		note.ID, note.UserID, note.Body, note.Category, note.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert note: %w", err)
	}

	return &note, nil
}

// ListRecent returns a user's most recent notes
func (r *Notes) ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]Note, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, body, COALESCE(category, ''), created_at
		FROM knowledge_notes
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Body, &n.Category, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}
	return notes, nil
}
