package redis

import "fmt"

// Key construction helpers for assistant hot state.

// PendingConfirmationKey returns the key holding a user's pending
// numbered-choice confirmation (JSON value with TTL)
// Pattern: session:pending:{user_id}
func PendingConfirmationKey(userID string) string {
	return fmt.Sprintf("session:pending:%s", userID)
}

// LastAppliedKey returns the key holding the most recent learned-pattern
// application for a user, consulted by correction/confirmation handling
// Pattern: session:last:{user_id}
func LastAppliedKey(userID string) string {
	return fmt.Sprintf("session:last:%s", userID)
}

// DailySummaryKey returns the key caching a user's daily context summary
// Pattern: summary:{user_id}:{yyyy-mm-dd}
func DailySummaryKey(userID, day string) string {
	return fmt.Sprintf("summary:%s:%s", userID, day)
}
