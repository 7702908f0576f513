package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Policy holds the language-level knobs of the assistant: which tokens carry
// no information, which phrasings count as teaching, correction or
// confirmation signals, and how spoken category words map onto intent names.
//
// The defaults are compiled in; a YAML file can replace any section. This is
// the extension point for tuning the assistant's vocabulary handling without
// a rebuild.
type Policy struct {
	// StopWords are filtered out before pattern lookup and term extraction
	StopWords []string `yaml:"stop_words"`

	// TeachMarkers are phrases that mark an explicit teaching message,
	// e.g. "dhamaka practice, count it as a workout"
	TeachMarkers []string `yaml:"teach_markers"`

	// CorrectionMarkers are phrases that mark the previous interpretation
	// as wrong, e.g. "no, that's actually a todo"
	CorrectionMarkers []string `yaml:"correction_markers"`

	// ConfirmationWords are bare affirmative replies
	ConfirmationWords []string `yaml:"confirmation_words"`

	// IntentAliases map spoken category words to canonical intent names,
	// e.g. "workout" -> "gym_workout"
	IntentAliases map[string]string `yaml:"intent_aliases"`

	stopWordSet map[string]bool
	confirmSet  map[string]bool
}

// Default returns the compiled-in policy
func Default() *Policy {
	p := &Policy{
		StopWords: []string{
			"a", "an", "the", "i", "me", "my", "we", "our", "you", "your",
			"it", "its", "this", "that", "these", "those", "is", "am", "are",
			"was", "were", "be", "been", "do", "did", "done", "have", "had",
			"has", "having", "just", "some", "of", "for", "to", "at", "in",
			"on", "with", "and", "or", "so", "today", "yesterday", "now",
			"had", "ate", "drank", "went", "got", "please",
		},
		TeachMarkers: []string{
			"count it as",
			"count that as",
			"that's a",
			"thats a",
			"that is a",
			"remember that",
			"call that",
			"treat it as",
		},
		CorrectionMarkers: []string{
			"no,",
			"no ",
			"that's wrong",
			"thats wrong",
			"actually",
			"i meant",
			"not that",
		},
		ConfirmationWords: []string{
			"yes", "yep", "yeah", "correct", "right", "exactly", "y",
		},
		IntentAliases: map[string]string{
			"workout":  "gym_workout",
			"gym":      "gym_workout",
			"exercise": "gym_workout",
			"food":     "food_log",
			"meal":     "food_log",
			"snack":    "food_log",
			"water":    "water_log",
			"drink":    "water_log",
			"sleep":    "sleep_log",
			"todo":     "todo_add",
			"task":     "todo_add",
			"note":     "note_add",
			"reminder": "todo_add",
		},
	}
	p.buildSets()
	return p
}

// Load reads a policy YAML file and merges it over the defaults.
// Sections present in the file replace the default section entirely.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var loaded Policy
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, fmt.Errorf("failed to parse policy YAML: %w", err)
	}

	p := Default()
	if len(loaded.StopWords) > 0 {
		p.StopWords = loaded.StopWords
	}
	if len(loaded.TeachMarkers) > 0 {
		p.TeachMarkers = loaded.TeachMarkers
	}
	if len(loaded.CorrectionMarkers) > 0 {
		p.CorrectionMarkers = loaded.CorrectionMarkers
	}
	if len(loaded.ConfirmationWords) > 0 {
		p.ConfirmationWords = loaded.ConfirmationWords
	}
	if len(loaded.IntentAliases) > 0 {
		p.IntentAliases = loaded.IntentAliases
	}
	p.buildSets()

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("policy validation failed: %w", err)
	}

	return p, nil
}

// Validate checks that the policy is usable
func (p *Policy) Validate() error {
	if len(p.StopWords) == 0 {
		return fmt.Errorf("stop word list must not be empty")
	}
	if len(p.TeachMarkers) == 0 {
		return fmt.Errorf("teach marker list must not be empty")
	}
	if len(p.CorrectionMarkers) == 0 {
		return fmt.Errorf("correction marker list must not be empty")
	}
	if len(p.ConfirmationWords) == 0 {
		return fmt.Errorf("confirmation word list must not be empty")
	}
	for _, m := range p.TeachMarkers {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("teach markers must not be blank")
		}
	}
	return nil
}

// IsStopWord reports whether a lowercased token is a stop word
func (p *Policy) IsStopWord(token string) bool {
	if p.stopWordSet == nil {
		p.buildSets()
	}
	return p.stopWordSet[token]
}

// IsConfirmation reports whether a trimmed, lowercased message is a bare
// affirmative reply
func (p *Policy) IsConfirmation(message string) bool {
	if p.confirmSet == nil {
		p.buildSets()
	}
	return p.confirmSet[strings.TrimRight(message, ".!")]
}

// CanonicalIntent maps a spoken category word to an intent name.
// Unknown words are returned unchanged.
func (p *Policy) CanonicalIntent(word string) string {
	if intent, ok := p.IntentAliases[word]; ok {
		return intent
	}
	return word
}

func (p *Policy) buildSets() {
	p.stopWordSet = make(map[string]bool, len(p.StopWords))
	for _, w := range p.StopWords {
		p.stopWordSet[strings.ToLower(w)] = true
	}
	p.confirmSet = make(map[string]bool, len(p.ConfirmationWords))
	for _, w := range p.ConfirmationWords {
		p.confirmSet[strings.ToLower(w)] = true
	}
}
