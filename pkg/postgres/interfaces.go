package postgres

import (
	"context"
	"database/sql"
)

// Client manages the Postgres connection pool lifecycle. Repositories work
// against the *sql.DB from DB() directly; the interface exists for wiring
// and for the health checker.
type Client interface {
	// Connect establishes the connection pool
	Connect(ctx context.Context) error

	// Disconnect closes the connection pool
	Disconnect() error

	// DB returns the underlying connection pool
	DB() *sql.DB

	// HealthCheck reports connection state and server version
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
