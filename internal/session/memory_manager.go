package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryManager implements Manager with in-process maps, for tests and
// single-node runs without Redis
type memoryManager struct {
	mu         sync.Mutex
	pending    map[uuid.UUID]*PendingConfirmation
	applied    map[uuid.UUID]*AppliedPattern
	summaries  map[string]*Summary
	source     SummarySource
	confirmTTL time.Duration
	now        func() time.Time
}

// NewMemoryManager creates an in-memory session manager
func NewMemoryManager(source SummarySource, confirmTTL time.Duration) Manager {
	return &memoryManager{
		pending:    make(map[uuid.UUID]*PendingConfirmation),
		applied:    make(map[uuid.UUID]*AppliedPattern),
		summaries:  make(map[string]*Summary),
		source:     source,
		confirmTTL: confirmTTL,
		now:        time.Now,
	}
}

func (m *memoryManager) SetPendingConfirmation(ctx context.Context, userID uuid.UUID, options []Candidate) error {
	if err := validateOptions(options); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[userID] = &PendingConfirmation{Options: options, CreatedAt: m.now()}
	return nil
}

func (m *memoryManager) ResolvePendingConfirmation(ctx context.Context, userID uuid.UUID, selection int) (*Candidate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pending := m.livePending(userID)
	if pending == nil {
		return nil, ErrNoPending
	}

	if selection < 1 || selection > len(pending.Options) {
		return nil, ErrInvalidSelection
	}

	delete(m.pending, userID)
	candidate := pending.Options[selection-1]
	return &candidate, nil
}

func (m *memoryManager) HasPendingConfirmation(ctx context.Context, userID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.livePending(userID) != nil, nil
}

// livePending returns the pending confirmation if it has not timed out.
// Caller holds the lock.
func (m *memoryManager) livePending(userID uuid.UUID) *PendingConfirmation {
	pending, ok := m.pending[userID]
	if !ok {
		return nil
	}
	if m.now().Sub(pending.CreatedAt) > m.confirmTTL {
		delete(m.pending, userID)
		return nil
	}
	return pending
}

func (m *memoryManager) SetLastApplied(ctx context.Context, userID uuid.UUID, applied AppliedPattern) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applied[userID] = &applied
	return nil
}

func (m *memoryManager) LastApplied(ctx context.Context, userID uuid.UUID) (*AppliedPattern, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	applied, ok := m.applied[userID]
	if !ok {
		return nil, nil
	}
	copied := *applied
	return &copied, nil
}

func (m *memoryManager) ClearLastApplied(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.applied, userID)
	return nil
}

func (m *memoryManager) DailySummary(ctx context.Context, userID uuid.UUID, day time.Time) (*Summary, error) {
	key := userID.String() + ":" + DayKey(day)

	m.mu.Lock()
	if cached, ok := m.summaries[key]; ok {
		copied := *cached
		m.mu.Unlock()
		return &copied, nil
	}
	m.mu.Unlock()

	summary, err := m.source.BuildDailySummary(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.summaries[key] = summary
	m.mu.Unlock()

	copied := *summary
	return &copied, nil
}

func (m *memoryManager) InvalidateDailySummary(ctx context.Context, userID uuid.UUID, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.summaries, userID.String()+":"+DayKey(day))
	return nil
}
