package pattern

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies what a learned pattern maps its term to.
// The set is closed; unknown values are rejected at the store boundary.
type Type string

const (
	TypeIntent  Type = "intent"
	TypeEntity  Type = "entity"
	TypeSynonym Type = "synonym"
)

// ParseType validates a pattern type string
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeIntent, TypeEntity, TypeSynonym:
		return Type(s), nil
	default:
		return "", fmt.Errorf("unknown pattern type: %q", s)
	}
}

// InitialConfidence is the confidence assigned to a freshly taught pattern
const InitialConfidence = 0.5

// Pattern is a per-user learned association between a vocabulary term and an
// intent or canonical entity value. Rows are unique per
// (user_id, pattern_term, pattern_type, associated_value); re-teaching the
// same mapping reinforces the existing row.
type Pattern struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	Term            string
	Type            Type
	AssociatedValue string
	Context         string
	Category        string
	Confidence      float64
	UsageCount      int
	SuccessCount    int
	FailureCount    int
	LastUsed        *time.Time
	CreatedAt       time.Time
}

// Hint is the matcher's output: the best learned association for a message,
// handed to the processor to seed or bypass classification.
type Hint struct {
	PatternID  uuid.UUID
	Term       string
	Type       Type
	Value      string
	Confidence float64
	Fuzzy      bool
}

// Step moves a confidence value one step toward a target.
//
//	new = old + step * (target - old)
//
// With target 1.0 this reinforces, with target 0.0 it decays; either way the
// result approaches the target asymptotically and never reaches it for
// step in (0,1). The same function is used for both directions so updates
// stay deterministic and testable.
func Step(old, target, step float64) float64 {
	return old + step*(target-old)
}

// ClampFloor raises a confidence value to the floor if decay pushed it below
func ClampFloor(confidence, floor float64) float64 {
	if confidence < floor {
		return floor
	}
	return confidence
}
