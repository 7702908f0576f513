package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/pkg/redis"
)

// summaryTTL bounds how long a cached daily summary lives without an
// invalidating write. Correctness comes from invalidate-on-write; the TTL is
// only hygiene for abandoned days.
const summaryTTL = time.Hour

// redisManager implements Manager on Redis. Pending-confirmation timeout is
// delegated to key TTL.
type redisManager struct {
	client     redis.Client
	source     SummarySource
	confirmTTL time.Duration
	logger     *slog.Logger
}

// NewRedisManager creates a Redis-backed session manager
func NewRedisManager(client redis.Client, source SummarySource, confirmTTL time.Duration, logger *slog.Logger) Manager {
	return &redisManager{
		client:     client,
		source:     source,
		confirmTTL: confirmTTL,
		logger:     logger,
	}
}

func (m *redisManager) SetPendingConfirmation(ctx context.Context, userID uuid.UUID, options []Candidate) error {
	if err := validateOptions(options); err != nil {
		return err
	}

	pending := PendingConfirmation{Options: options, CreatedAt: time.Now()}
	data, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending confirmation: %w", err)
	}

	// SET replaces any previous pending state; a new ambiguous turn
	// overwrites rather than stacks.
	key := redis.PendingConfirmationKey(userID.String())
	if err := m.client.Set(ctx, key, data, m.confirmTTL); err != nil {
		return fmt.Errorf("failed to store pending confirmation: %w", err)
	}
	return nil
}

func (m *redisManager) ResolvePendingConfirmation(ctx context.Context, userID uuid.UUID, selection int) (*Candidate, error) {
	key := redis.PendingConfirmationKey(userID.String())

	data, err := m.client.Get(ctx, key)
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, ErrNoPending
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read pending confirmation: %w", err)
	}

	var pending PendingConfirmation
	if err := json.Unmarshal([]byte(data), &pending); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending confirmation: %w", err)
	}

	if selection < 1 || selection > len(pending.Options) {
		return nil, ErrInvalidSelection
	}

	if err := m.client.Del(ctx, key); err != nil {
		m.logger.Warn("Failed to clear pending confirmation", "user_id", userID, "error", err)
	}

	candidate := pending.Options[selection-1]
	return &candidate, nil
}

func (m *redisManager) HasPendingConfirmation(ctx context.Context, userID uuid.UUID) (bool, error) {
	_, err := m.client.Get(ctx, redis.PendingConfirmationKey(userID.String()))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check pending confirmation: %w", err)
	}
	return true, nil
}

func (m *redisManager) SetLastApplied(ctx context.Context, userID uuid.UUID, applied AppliedPattern) error {
	data, err := json.Marshal(applied)
	if err != nil {
		return fmt.Errorf("failed to marshal applied pattern: %w", err)
	}

	key := redis.LastAppliedKey(userID.String())
	if err := m.client.Set(ctx, key, data, m.confirmTTL); err != nil {
		return fmt.Errorf("failed to store applied pattern: %w", err)
	}
	return nil
}

func (m *redisManager) LastApplied(ctx context.Context, userID uuid.UUID) (*AppliedPattern, error) {
	data, err := m.client.Get(ctx, redis.LastAppliedKey(userID.String()))
	if errors.Is(err, redis.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read applied pattern: %w", err)
	}

	var applied AppliedPattern
	if err := json.Unmarshal([]byte(data), &applied); err != nil {
		return nil, fmt.Errorf("failed to unmarshal applied pattern: %w", err)
	}
	return &applied, nil
}

func (m *redisManager) ClearLastApplied(ctx context.Context, userID uuid.UUID) error {
	return m.client.Del(ctx, redis.LastAppliedKey(userID.String()))
}

func (m *redisManager) DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*Summary, error) {
	key := redis.DailySummaryKey(userID.String(), DayKey(day))

	data, err := m.client.Get(ctx, key)
	if err == nil {
		var summary Summary
		if err := json.Unmarshal([]byte(data), &summary); err == nil {
			return &summary, nil
		}
		// Unreadable cache entry; fall through to recompute
		m.logger.Warn("Dropping unreadable summary cache entry", "user_id", userID)
	} else if !errors.Is(err, redis.ErrKeyNotFound) {
		return nil, fmt.Errorf("failed to read summary cache: %w", err)
	}

	summary, err := m.source.BuildDailySummary(ctx, userID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to build daily summary: %w", err)
	}

	if encoded, err := json.Marshal(summary); err == nil {
		if err := m.client.Set(ctx, key, encoded, summaryTTL); err != nil {
			m.logger.Warn("Failed to cache daily summary", "user_id", userID, "error", err)
		}
	}

	return summary, nil
}

func (m *redisManager) InvalidateDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) error {
	key := redis.DailySummaryKey(userID.String(), DayKey(day))
	if err := m.client.Del(ctx, key); err != nil {
		return fmt.Errorf("failed to invalidate daily summary: %w", err)
	}
	return nil
}
