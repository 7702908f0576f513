package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
)

// Status is the result class of a handler execution
type Status string

const (
	StatusSuccess   Status = "success"
	StatusAmbiguous Status = "ambiguous"
	StatusFailure   Status = "failure"
)

// Outcome is what a handler returns to the processor
type Outcome struct {
	Status     Status
	Message    string
	Candidates []session.Candidate
}

// Request carries the resolved turn input into a handler
type Request struct {
	// Text is the raw message, for handlers that fall back to it when the
	// extractor produced no usable field
	Text string
	// Entities is the structured extraction for the resolved intent
	Entities map[string]interface{}
	// Day is the logical day of the turn, used for summary invalidation
	Day time.Time
}

// HandlerFunc executes one intent against the repositories
type HandlerFunc func(ctx context.Context, user *repo.User, req Request) Outcome

// Registry routes resolved intents to handlers
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry creates an empty handler registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]HandlerFunc)}
}

// Register binds an intent name to a handler. Registering the same intent
// twice is a programming error.
func (r *Registry) Register(intent string, handler HandlerFunc) error {
	if _, exists := r.handlers[intent]; exists {
		return fmt.Errorf("handler already registered for intent %q", intent)
	}
	r.handlers[intent] = handler
	return nil
}

// Get returns the handler for an intent
func (r *Registry) Get(intent string) (HandlerFunc, bool) {
	h, ok := r.handlers[intent]
	return h, ok
}

// Intents returns the registered intent names
func (r *Registry) Intents() []string {
	intents := make([]string, 0, len(r.handlers))
	for intent := range r.handlers {
		intents = append(intents, intent)
	}
	return intents
}
