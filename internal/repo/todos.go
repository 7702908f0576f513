package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Todo is one task item
type Todo struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Title       string
	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
}

// Todos provides persistent storage for task items
type Todos struct {
	db *sql.DB
}

// NewTodos creates a new todo repository
func NewTodos(db *sql.DB) *Todos {
	return &Todos{db: db}
}

// Create stores a new open todo
func (r *Todos) Create(ctx context.Context, userID uuid.UUID, title string) (*Todo, error) {
	if title == "" {
		return nil, fmt.Errorf("todo title is required")
	}

	todo := Todo{
		ID:        uuid.New(),
		UserID:    userID,
		Title:     title,
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO todos (id, user_id, title, created_at)
		VALUES ($1, $2, $3, $4)`,
		todo.ID, todo.UserID, todo.Title, todo.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert todo: %w", err)
	}

	return &todo, nil
}

// ListOpen returns a user's open todos, oldest first
func (r *Todos) ListOpen(ctx context.Context, userID uuid.UUID) ([]Todo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, completed, completed_at, created_at
		FROM todos
		WHERE user_id = $1 AND NOT completed
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list open todos: %w", err)
	}
	defer rows.Close()

	return scanTodos(rows)
}

// FindOpenByTitle returns open todos whose title matches the given text,
// case-insensitively. More than one match means the caller must disambiguate.
func (r *Todos) FindOpenByTitle(ctx context.Context, userID uuid.UUID, title string) ([]Todo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, completed, completed_at, created_at
		FROM todos
		WHERE user_id = $1 AND NOT completed AND title ILIKE '%' || $2 || '%'
		ORDER BY created_at`, userID, title)
	if err != nil {
		return nil, fmt.Errorf("failed to find todos by title: %w", err)
	}
	defer rows.Close()

	return scanTodos(rows)
}

// Complete marks a todo as done
func (r *Todos) Complete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE todos SET completed = true, completed_at = now()
		WHERE id = $1 AND NOT completed`, id)
	if err != nil {
		return fmt.Errorf("failed to complete todo %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check completed todo: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("todo not found or already completed: %s", id)
	}
	return nil
}

func scanTodos(rows *sql.Rows) ([]Todo, error) {
	var todos []Todo
	for rows.Next() {
		var t Todo
		var completedAt sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Completed, &completedAt, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan todo: %w", err)
		}
		if completedAt.Valid {
			at := completedAt.Time
			t.CompletedAt = &at
		}
		todos = append(todos, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate todos: %w", err)
	}
	return todos, nil
}
