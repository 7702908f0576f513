package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Default policy failed validation: %v", err)
	}
}

func TestIsConfirmation(t *testing.T) {
	pol := Default()

	tests := []struct {
		message string
		want    bool
	}{
		{message: "yes", want: true},
		{message: "yep", want: true},
		{message: "correct", want: true},
		{message: "yes!", want: true},
		{message: "right.", want: true},
		{message: "yes please log it", want: false},
		{message: "no", want: false},
		{message: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := pol.IsConfirmation(tt.message); got != tt.want {
				t.Errorf("IsConfirmation(%q) = %v, want %v", tt.message, got, tt.want)
			}
		})
	}
}

func TestCanonicalIntent(t *testing.T) {
	pol := Default()

	tests := []struct {
		word string
		want string
	}{
		{word: "workout", want: "gym_workout"},
		{word: "gym", want: "gym_workout"},
		{word: "todo", want: "todo_add"},
		{word: "meal", want: "food_log"},
		{word: "dance", want: "dance"},
	}

	for _, tt := range tests {
		if got := pol.CanonicalIntent(tt.word); got != tt.want {
			t.Errorf("CanonicalIntent(%q) = %q, want %q", tt.word, got, tt.want)
		}
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")

	content := `
teach_markers:
  - "merkkaa se"
intent_aliases:
  treeni: gym_workout
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	pol, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Overridden sections are replaced entirely
	if len(pol.TeachMarkers) != 1 || pol.TeachMarkers[0] != "merkkaa se" {
		t.Errorf("TeachMarkers = %v, want the file's list", pol.TeachMarkers)
	}
	if got := pol.CanonicalIntent("treeni"); got != "gym_workout" {
		t.Errorf("CanonicalIntent(treeni) = %q, want gym_workout", got)
	}

	// Untouched sections keep their defaults
	if !pol.IsStopWord("the") {
		t.Error("Default stop words were lost on partial load")
	}
	if !pol.IsConfirmation("yes") {
		t.Error("Default confirmation words were lost on partial load")
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	if err := os.WriteFile(path, []byte("teach_markers: [\"  \"]"), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() accepted a policy with a blank teach marker")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/policy.yaml"); err == nil {
		t.Error("Load() accepted a missing file")
	}
}
