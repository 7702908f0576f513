package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// User is an account resolved from a channel identity (phone number for the
// SMS gateway, account name for web chat)
type User struct {
	ID          uuid.UUID
	Channel     string
	Handle      string
	DisplayName string
	Timezone    string
	CreatedAt   time.Time
}

// Users provides persistent storage for user accounts
type Users struct {
	db *sql.DB
}

// NewUsers creates a new user repository
func NewUsers(db *sql.DB) *Users {
	return &Users{db: db}
}

// Resolve returns the user for a channel identity, creating the account on
// first contact
func (r *Users) Resolve(ctx context.Context, channel, handle string) (*User, error) {
	if channel == "" || handle == "" {
		return nil, fmt.Errorf("channel and handle are required")
	}

	query := `
		INSERT INTO users (id, channel, handle)
		VALUES ($1, $2, $3)
		ON CONFLICT (channel, handle) DO UPDATE SET handle = EXCLUDED.handle
		RETURNING id, channel, handle, COALESCE(display_name, ''), timezone, created_at`

	var u User
	err := r.db.QueryRowContext(ctx, query, uuid.New(), channel, handle).Scan(
		&u.ID, &u.Channel, &u.Handle, &u.DisplayName, &u.Timezone, &u.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user %s/%s: %w", channel, handle, err)
	}

	return &u, nil
}

// Get retrieves a user by ID
func (r *Users) Get(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `
		SELECT id, channel, handle, COALESCE(display_name, ''), timezone, created_at
		FROM users
		WHERE id = $1`

	var u User
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.Channel, &u.Handle, &u.DisplayName, &u.Timezone, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}

	return &u, nil
}

// List returns all users, for digest fan-out
func (r *Users) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, channel, handle, COALESCE(display_name, ''), timezone, created_at
		FROM users
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Channel, &u.Handle, &u.DisplayName, &u.Timezone, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}
