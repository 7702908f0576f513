package pattern

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store used in tests and single-node setups
// without Postgres. Semantics mirror the Postgres store except for
// FindNearest, which it does not support.
type MemoryStore struct {
	mu       sync.Mutex
	patterns map[uuid.UUID]*Pattern
}

// NewMemoryStore creates an empty in-memory pattern store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{patterns: make(map[uuid.UUID]*Pattern)}
}

func (s *MemoryStore) Teach(ctx context.Context, t Teaching) (*Pattern, error) {
	if _, err := ParseType(string(t.Type)); err != nil {
		return nil, err
	}
	if t.Term == "" {
		return nil, fmt.Errorf("pattern term is required")
	}
	if t.AssociatedValue == "" {
		return nil, fmt.Errorf("associated value is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, p := range s.patterns {
		if p.UserID == t.UserID && p.Term == t.Term && p.Type == t.Type && p.AssociatedValue == t.AssociatedValue {
			p.UsageCount++
			p.Confidence = Step(p.Confidence, 1.0, t.Step)
			if t.Context != "" {
				p.Context = t.Context
			}
			p.LastUsed = &now
			copied := *p
			return &copied, nil
		}
	}

	p := &Pattern{
		ID:              uuid.New(),
		UserID:          t.UserID,
		Term:            t.Term,
		Type:            t.Type,
		AssociatedValue: t.AssociatedValue,
		Context:         t.Context,
		Category:        t.Category,
		Confidence:      InitialConfidence,
		LastUsed:        &now,
		CreatedAt:       now,
	}
	s.patterns[p.ID] = p
	copied := *p
	return &copied, nil
}

func (s *MemoryStore) FindByTerm(ctx context.Context, userID uuid.UUID, term string) ([]Pattern, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Pattern
	for _, p := range s.patterns {
		if p.UserID == userID && p.Term == term {
			result = append(result, *p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Confidence != result[j].Confidence {
			return result[i].Confidence > result[j].Confidence
		}
		return laterThan(result[i].LastUsed, result[j].LastUsed)
	})

	return result, nil
}

func (s *MemoryStore) FindNearest(ctx context.Context, userID uuid.UUID, embedding []float32, maxDistance float64) (*Pattern, error) {
	return nil, nil
}

func (s *MemoryStore) Reinforce(ctx context.Context, id uuid.UUID, step float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[id]
	if !ok {
		return fmt.Errorf("pattern not found")
	}
	p.Confidence = Step(p.Confidence, 1.0, step)
	p.SuccessCount++
	p.UsageCount++
	now := time.Now()
	p.LastUsed = &now
	return nil
}

func (s *MemoryStore) Decay(ctx context.Context, id uuid.UUID, step, floor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[id]
	if !ok {
		return fmt.Errorf("pattern not found")
	}
	p.Confidence = ClampFloor(Step(p.Confidence, 0.0, step), floor)
	p.FailureCount++
	now := time.Now()
	p.LastUsed = &now
	return nil
}

func (s *MemoryStore) MarkUsed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[id]
	if !ok {
		return fmt.Errorf("pattern not found")
	}
	p.UsageCount++
	now := time.Now()
	p.LastUsed = &now
	return nil
}

func (s *MemoryStore) Forget(ctx context.Context, userID uuid.UUID, term string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, p := range s.patterns {
		if p.UserID == userID && p.Term == term {
			delete(s.patterns, id)
			deleted++
		}
	}
	return deleted, nil
}

// Get returns a copy of a pattern by ID, for assertions in tests
func (s *MemoryStore) Get(id uuid.UUID) (*Pattern, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[id]
	if !ok {
		return nil, false
	}
	copied := *p
	return &copied, true
}

func laterThan(a, b *time.Time) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return a.After(*b)
}
