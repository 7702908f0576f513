package processor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tallybot/tally-platform/internal/pattern"
	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
)

// LogStore is the slice of the repository layer the logging handlers need
type LogStore interface {
	CreateFood(ctx context.Context, entry *repo.FoodEntry) error
	CreateWater(ctx context.Context, entry *repo.WaterEntry) error
	CreateGym(ctx context.Context, entry *repo.GymEntry) error
	CreateSleep(ctx context.Context, entry *repo.SleepEntry) error
}

// TodoStore is the slice of the repository layer the todo handlers need
type TodoStore interface {
	Create(ctx context.Context, userID uuid.UUID, title string) (*repo.Todo, error)
	ListOpen(ctx context.Context, userID uuid.UUID) ([]repo.Todo, error)
	FindOpenByTitle(ctx context.Context, userID uuid.UUID, title string) ([]repo.Todo, error)
	Complete(ctx context.Context, id uuid.UUID) error
}

// NoteStore is the slice of the repository layer the note handler needs
type NoteStore interface {
	Create(ctx context.Context, userID uuid.UUID, body, category string) (*repo.Note, error)
}

// Handlers implements the built-in intent handlers over the repositories.
// Every write handler invalidates the daily summary cache before returning,
// so a same-turn or immediately-following summary read is fresh.
type Handlers struct {
	logs     LogStore
	todos    TodoStore
	notes    NoteStore
	patterns pattern.Store
	sessions session.Manager
	logger   *slog.Logger
}

// NewHandlers creates the built-in handler set
func NewHandlers(logs LogStore, todos TodoStore, notes NoteStore, patterns pattern.Store, sessions session.Manager, logger *slog.Logger) *Handlers {
	return &Handlers{
		logs:     logs,
		todos:    todos,
		notes:    notes,
		patterns: patterns,
		sessions: sessions,
		logger:   logger,
	}
}

// RegisterAll binds every built-in handler to its intent
func (h *Handlers) RegisterAll(registry *Registry) error {
	bindings := map[string]HandlerFunc{
		"food_log":       h.FoodLog,
		"water_log":      h.WaterLog,
		"gym_workout":    h.GymWorkout,
		"sleep_log":      h.SleepLog,
		"todo_add":       h.TodoAdd,
		"todo_complete":  h.TodoComplete,
		"todo_list":      h.TodoList,
		"note_add":       h.NoteAdd,
		"query_summary":  h.QuerySummary,
		"forget_pattern": h.ForgetPattern,
		"help":           h.Help,
		"unknown":        h.Unknown,
	}
	for intent, handler := range bindings {
		if err := registry.Register(intent, handler); err != nil {
			return err
		}
	}
	return nil
}

// FoodLog records a meal or snack
func (h *Handlers) FoodLog(ctx context.Context, user *repo.User, req Request) Outcome {
	description := entityString(req.Entities, "description", "canonical")
	if description == "" {
		description = req.Text
	}

	entry := repo.FoodEntry{UserID: user.ID, Description: description}
	if calories, ok := entityInt(req.Entities, "calories"); ok {
		entry.Calories = &calories
	}
	if protein, ok := entityFloat(req.Entities, "protein_g"); ok {
		entry.ProteinG = &protein
	}

	if err := h.logs.CreateFood(ctx, &entry); err != nil {
		return h.failure(ctx, user, req, "food write", err)
	}
	h.invalidateSummary(ctx, user, req)

	if entry.Calories != nil {
		return success(fmt.Sprintf("Logged: %s (~%d kcal).", description, *entry.Calories))
	}
	return success(fmt.Sprintf("Logged: %s.", description))
}

// WaterLog records a drink; a message with no amount counts as one glass
func (h *Handlers) WaterLog(ctx context.Context, user *repo.User, req Request) Outcome {
	amount, ok := entityInt(req.Entities, "amount_ml")
	if !ok {
		amount = 250
	}

	entry := repo.WaterEntry{UserID: user.ID, AmountML: amount}
	if err := h.logs.CreateWater(ctx, &entry); err != nil {
		return h.failure(ctx, user, req, "water write", err)
	}
	h.invalidateSummary(ctx, user, req)

	// The invalidation above makes this read hit the repositories, so the
	// total already includes this turn's write.
	if summary, err := h.sessions.DailySummary(ctx, user.ID, req.Day); err == nil {
		return success(fmt.Sprintf("Logged %d ml of water. Total today: %d ml.", amount, summary.WaterTotalML))
	}
	return success(fmt.Sprintf("Logged %d ml of water.", amount))
}

// GymWorkout records a workout
func (h *Handlers) GymWorkout(ctx context.Context, user *repo.User, req Request) Outcome {
	activity := entityString(req.Entities, "activity", "canonical")
	if activity == "" {
		activity = req.Text
	}

	entry := repo.GymEntry{UserID: user.ID, Activity: activity}
	if duration, ok := entityInt(req.Entities, "duration_min"); ok {
		entry.DurationMin = &duration
	}

	if err := h.logs.CreateGym(ctx, &entry); err != nil {
		return h.failure(ctx, user, req, "gym write", err)
	}
	h.invalidateSummary(ctx, user, req)

	if entry.DurationMin != nil {
		return success(fmt.Sprintf("Workout logged: %s, %d min. Nice work!", activity, *entry.DurationMin))
	}
	return success(fmt.Sprintf("Workout logged: %s. Nice work!", activity))
}

// SleepLog records a night of sleep
func (h *Handlers) SleepLog(ctx context.Context, user *repo.User, req Request) Outcome {
	hours, ok := entityFloat(req.Entities, "hours")
	if !ok {
		return Outcome{Status: StatusFailure, Message: "I couldn't find the hours slept. Try something like \"slept 7 hours\"."}
	}

	entry := repo.SleepEntry{
		UserID:  user.ID,
		Hours:   hours,
		Quality: entityString(req.Entities, "quality"),
	}
	if err := h.logs.CreateSleep(ctx, &entry); err != nil {
		return h.failure(ctx, user, req, "sleep write", err)
	}
	h.invalidateSummary(ctx, user, req)

	return success(fmt.Sprintf("Sleep logged: %.1f hours.", hours))
}

// TodoAdd creates a new open task
func (h *Handlers) TodoAdd(ctx context.Context, user *repo.User, req Request) Outcome {
	title := entityString(req.Entities, "title", "canonical")
	if title == "" {
		title = req.Text
	}

	todo, err := h.todos.Create(ctx, user.ID, title)
	if err != nil {
		return h.failure(ctx, user, req, "todo write", err)
	}
	h.invalidateSummary(ctx, user, req)

	return success(fmt.Sprintf("Added to your list: %s.", todo.Title))
}

// TodoComplete marks a task done; multiple title matches come back as a
// numbered-choice ambiguity
func (h *Handlers) TodoComplete(ctx context.Context, user *repo.User, req Request) Outcome {
	// A resolved confirmation carries the chosen todo ID directly
	if idStr := entityString(req.Entities, "todo_id"); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return h.failure(ctx, user, req, "todo id parse", err)
		}
		return h.completeTodo(ctx, user, req, id, entityString(req.Entities, "title"))
	}

	title := entityString(req.Entities, "title", "canonical")
	if title == "" {
		title = req.Text
	}

	matches, err := h.todos.FindOpenByTitle(ctx, user.ID, title)
	if err != nil {
		return h.failure(ctx, user, req, "todo lookup", err)
	}

	switch len(matches) {
	case 0:
		return Outcome{Status: StatusFailure, Message: fmt.Sprintf("No open todo matches %q.", title)}
	case 1:
		return h.completeTodo(ctx, user, req, matches[0].ID, matches[0].Title)
	default:
		candidates := make([]session.Candidate, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, session.Candidate{
				Label:  m.Title,
				Intent: "todo_complete",
				Entities: map[string]interface{}{
					"todo_id": m.ID.String(),
					"title":   m.Title,
				},
			})
		}
		return Outcome{Status: StatusAmbiguous, Candidates: candidates}
	}
}

func (h *Handlers) completeTodo(ctx context.Context, user *repo.User, req Request, id uuid.UUID, title string) Outcome {
	if err := h.todos.Complete(ctx, id); err != nil {
		return h.failure(ctx, user, req, "todo complete", err)
	}
	h.invalidateSummary(ctx, user, req)

	if title != "" {
		return success(fmt.Sprintf("Done: %s.", title))
	}
	return success("Done.")
}

// TodoList replies with the open tasks
func (h *Handlers) TodoList(ctx context.Context, user *repo.User, req Request) Outcome {
	todos, err := h.todos.ListOpen(ctx, user.ID)
	if err != nil {
		return h.failure(ctx, user, req, "todo list", err)
	}

	if len(todos) == 0 {
		return success("Nothing on your list. Enjoy it!")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Open todos (%d):\n", len(todos))
	for i, t := range todos {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Title)
	}
	return success(strings.TrimRight(b.String(), "\n"))
}

// NoteAdd stores a free-form knowledge note
func (h *Handlers) NoteAdd(ctx context.Context, user *repo.User, req Request) Outcome {
	body := entityString(req.Entities, "body", "canonical")
	if body == "" {
		body = req.Text
	}

	if _, err := h.notes.Create(ctx, user.ID, body, entityString(req.Entities, "category")); err != nil {
		return h.failure(ctx, user, req, "note write", err)
	}

	return success("Noted.")
}

// QuerySummary replies with today's aggregates
func (h *Handlers) QuerySummary(ctx context.Context, user *repo.User, req Request) Outcome {
	summary, err := h.sessions.DailySummary(ctx, user.ID, req.Day)
	if err != nil {
		return h.failure(ctx, user, req, "summary", err)
	}

	return success(fmt.Sprintf(
		"Today so far: %d ml water, %d meals (%d kcal, %.0fg protein), %d workouts, %.1fh sleep, %d open todos.",
		summary.WaterTotalML, summary.MealCount, summary.Calories, summary.ProteinG,
		summary.WorkoutCount, summary.SleepHours, summary.OpenTodoCount))
}

// ForgetPattern removes learned vocabulary on explicit user request. This is
// the only path that deletes patterns; learning itself never does.
func (h *Handlers) ForgetPattern(ctx context.Context, user *repo.User, req Request) Outcome {
	term := strings.ToLower(entityString(req.Entities, "term", "canonical"))
	if term == "" {
		return Outcome{Status: StatusFailure, Message: "Which word should I forget?"}
	}

	deleted, err := h.patterns.Forget(ctx, user.ID, term)
	if err != nil {
		return h.failure(ctx, user, req, "pattern forget", err)
	}

	if deleted == 0 {
		return success(fmt.Sprintf("I had nothing learned for %q.", term))
	}
	return success(fmt.Sprintf("Forgotten: %q.", term))
}

// Help replies with a short usage summary
func (h *Handlers) Help(ctx context.Context, user *repo.User, req Request) Outcome {
	return success("You can log food, water, workouts and sleep, manage todos, " +
		"save notes, or ask for a summary. Teach me your words with " +
		"\"..., count it as a workout\".")
}

// Unknown is the fallback when classification produced nothing actionable
func (h *Handlers) Unknown(ctx context.Context, user *repo.User, req Request) Outcome {
	return success("I didn't catch that. Text \"help\" to see what I can do.")
}

func (h *Handlers) invalidateSummary(ctx context.Context, user *repo.User, req Request) {
	if err := h.sessions.InvalidateDailySummary(ctx, user.ID, req.Day); err != nil {
		h.logger.Warn("Failed to invalidate daily summary", "user_id", user.ID, "error", err)
	}
}

// failure logs the repository error and converts it into the failure
// outcome; the processor maps that to the generic user-facing reply
func (h *Handlers) failure(ctx context.Context, user *repo.User, req Request, op string, err error) Outcome {
	h.logger.Error("Handler repository operation failed",
		"op", op,
		"user_id", user.ID,
		"error", err)
	return Outcome{Status: StatusFailure}
}

func success(message string) Outcome {
	return Outcome{Status: StatusSuccess, Message: message}
}

// entityString returns the first present, non-empty string among the keys
func entityString(entities map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := entities[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// entityInt reads an integer entity; JSON numbers arrive as float64
func entityInt(entities map[string]interface{}, key string) (int, bool) {
	switch v := entities[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// entityFloat reads a numeric entity
func entityFloat(entities map[string]interface{}, key string) (float64, bool) {
	switch v := entities[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
