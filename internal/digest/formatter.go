package digest

import (
	"fmt"
	"strings"

	"github.com/tallybot/tally-platform/internal/repo"
	"github.com/tallybot/tally-platform/internal/session"
)

// Kind distinguishes the two scheduled digests
type Kind string

const (
	KindMorning Kind = "morning"
	KindEvening Kind = "evening"
)

// FormatMorning renders the morning digest: the open list for the day ahead
func FormatMorning(user *repo.User, todos []repo.Todo) string {
	var b strings.Builder

	name := user.DisplayName
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Good morning, %s!\n", name)

	if len(todos) == 0 {
		b.WriteString("Nothing on your list today. Fresh start!")
		return b.String()
	}

	fmt.Fprintf(&b, "On your list today (%d):\n", len(todos))
	for i, t := range todos {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Title)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatEvening renders the evening digest: a recap of the day's logs
func FormatEvening(user *repo.User, summary *session.Summary) string {
	var b strings.Builder

	b.WriteString("Evening recap:\n")
	fmt.Fprintf(&b, "Water: %d ml\n", summary.WaterTotalML)
	fmt.Fprintf(&b, "Meals: %d (%d kcal, %.0fg protein)\n", summary.MealCount, summary.Calories, summary.ProteinG)
	if summary.WorkoutCount > 0 {
		fmt.Fprintf(&b, "Workouts: %d\n", summary.WorkoutCount)
	}
	if summary.SleepHours > 0 {
		fmt.Fprintf(&b, "Sleep: %.1f h\n", summary.SleepHours)
	}
	if summary.OpenTodoCount > 0 {
		fmt.Fprintf(&b, "Still open: %d todos\n", summary.OpenTodoCount)
	} else {
		b.WriteString("Todo list is clear. Well done!\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
