package pattern

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Store is the persistence boundary for learned patterns
type Store interface {
	// Teach upserts a pattern. New mappings start at InitialConfidence;
	// re-teaching an existing mapping increments usage_count and moves
	// confidence one step toward 1.0.
	Teach(ctx context.Context, t Teaching) (*Pattern, error)

	// FindByTerm returns all patterns a user has for an exact term
	FindByTerm(ctx context.Context, userID uuid.UUID, term string) ([]Pattern, error)

	// FindNearest returns the closest pattern by term embedding within
	// maxDistance (cosine), or nil when none qualifies
	FindNearest(ctx context.Context, userID uuid.UUID, embedding []float32, maxDistance float64) (*Pattern, error)

	// Reinforce moves confidence one step toward 1.0 and increments
	// success_count and usage_count
	Reinforce(ctx context.Context, id uuid.UUID, step float64) error

	// Decay moves confidence one step toward 0.0, clamped at floor, and
	// increments failure_count
	Decay(ctx context.Context, id uuid.UUID, step, floor float64) error

	// MarkUsed increments usage_count and refreshes last_used without
	// touching confidence
	MarkUsed(ctx context.Context, id uuid.UUID) error

	// Forget removes all of a user's patterns for a term and returns the
	// number of rows deleted. Only the explicit user "forget" action calls
	// this; the learning path never deletes.
	Forget(ctx context.Context, userID uuid.UUID, term string) (int64, error)
}

// Teaching is the input to Store.Teach
type Teaching struct {
	UserID          uuid.UUID
	Term            string
	Type            Type
	AssociatedValue string
	Context         string
	Category        string
	Step            float64
	TermEmbedding   []float32
}

// postgresStore implements Store on PostgreSQL with a pgvector column for
// fuzzy term lookup
type postgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed pattern store
func NewPostgresStore(db *sql.DB) Store {
	return &postgresStore{db: db}
}

const patternColumns = `
	id, user_id, pattern_term, pattern_type, associated_value,
	COALESCE(context, ''), COALESCE(category, ''),
	confidence, usage_count, success_count, failure_count, last_used, created_at`

func (s *postgresStore) Teach(ctx context.Context, t Teaching) (*Pattern, error) {
	if _, err := ParseType(string(t.Type)); err != nil {
		return nil, err
	}
	if t.Term == "" {
		return nil, fmt.Errorf("pattern term is required")
	}
	if t.AssociatedValue == "" {
		return nil, fmt.Errorf("associated value is required")
	}

	var embedding interface{}
	if len(t.TermEmbedding) > 0 {
		embedding = pgvector.NewVector(t.TermEmbedding)
	}

	query := `
		INSERT INTO learned_patterns (
			id, user_id, pattern_term, pattern_type, associated_value,
			context, category, confidence, usage_count, term_embedding,
			last_used, created_at
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''), $8, 0, $9, now(), now())
		ON CONFLICT (user_id, pattern_term, pattern_type, associated_value) DO UPDATE SET
			usage_count = learned_patterns.usage_count + 1,
			confidence = learned_patterns.confidence + $10 * (1.0 - learned_patterns.confidence),
			context = COALESCE(NULLIF($6, ''), learned_patterns.context),
			term_embedding = COALESCE($9, learned_patterns.term_embedding),
			last_used = now()
		RETURNING ` + patternColumns

	row := s.db.QueryRowContext(ctx, query,
		uuid.New(), t.UserID, t.Term, string(t.Type), t.AssociatedValue,
		t.Context, t.Category, InitialConfidence, embedding, t.Step)

	p, err := scanPattern(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert pattern: %w", err)
	}
	return p, nil
}

func (s *postgresStore) FindByTerm(ctx context.Context, userID uuid.UUID, term string) ([]Pattern, error) {
	query := `
		SELECT ` + patternColumns + `
		FROM learned_patterns
		WHERE user_id = $1 AND pattern_term = $2
		ORDER BY confidence DESC, last_used DESC NULLS LAST`

	rows, err := s.db.QueryContext(ctx, query, userID, term)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer rows.Close()

	var patterns []Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate patterns: %w", err)
	}

	return patterns, nil
}

func (s *postgresStore) FindNearest(ctx context.Context, userID uuid.UUID, embedding []float32, maxDistance float64) (*Pattern, error) {
	if len(embedding) == 0 {
		return nil, fmt.Errorf("embedding is required")
	}

	vec := pgvector.NewVector(embedding)
	query := `
		SELECT ` + patternColumns + `
		FROM learned_patterns
		WHERE user_id = $1
		  AND term_embedding IS NOT NULL
		  AND (term_embedding <=> $2) <= $3
		ORDER BY term_embedding <=> $2
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, userID, vec, maxDistance)
	p, err := scanPattern(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query nearest pattern: %w", err)
	}
	return p, nil
}

func (s *postgresStore) Reinforce(ctx context.Context, id uuid.UUID, step float64) error {
	query := `
		UPDATE learned_patterns SET
			confidence = confidence + $2 * (1.0 - confidence),
			success_count = success_count + 1,
			usage_count = usage_count + 1,
			last_used = now()
		WHERE id = $1`

	if err := s.exec(ctx, query, id, step); err != nil {
		return fmt.Errorf("failed to reinforce pattern %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) Decay(ctx context.Context, id uuid.UUID, step, floor float64) error {
	query := `
		UPDATE learned_patterns SET
			confidence = GREATEST($3, confidence + $2 * (0.0 - confidence)),
			failure_count = failure_count + 1,
			last_used = now()
		WHERE id = $1`

	if err := s.exec(ctx, query, id, step, floor); err != nil {
		return fmt.Errorf("failed to decay pattern %s: %w", id, err)
	}
	return nil
}

func (s *postgresStore) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE learned_patterns SET
			usage_count = usage_count + 1,
			last_used = now()
		WHERE id = $1`

	if err := s.exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to mark pattern %s used: %w", id, err)
	}
	return nil
}

func (s *postgresStore) Forget(ctx context.Context, userID uuid.UUID, term string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM learned_patterns WHERE user_id = $1 AND pattern_term = $2`,
		userID, term)
	if err != nil {
		return 0, fmt.Errorf("failed to forget patterns for term %q: %w", term, err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count forgotten patterns: %w", err)
	}
	return deleted, nil
}

func (s *postgresStore) exec(ctx context.Context, query string, args ...interface{}) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("pattern not found")
	}
	return nil
}

// rowScanner covers both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPattern(row rowScanner) (*Pattern, error) {
	var p Pattern
	var ptype string
	var lastUsed sql.NullTime

	err := row.Scan(
		&p.ID, &p.UserID, &p.Term, &ptype, &p.AssociatedValue,
		&p.Context, &p.Category,
		&p.Confidence, &p.UsageCount, &p.SuccessCount, &p.FailureCount,
		&lastUsed, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.Type, err = ParseType(ptype)
	if err != nil {
		return nil, fmt.Errorf("stored pattern has invalid type: %w", err)
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		p.LastUsed = &t
	}

	return &p, nil
}
