package digest

import (
	"time"

	"github.com/sixdouglas/suncalc"
)

// QuietHours decides whether a scheduled digest may be delivered. The base
// rule is a fixed night window on the local clock; within that window actual
// daylight overrides it, so high-latitude summer evenings still get their
// digest and dark winter nights stay silent.
type QuietHours struct {
	latitude  float64
	longitude float64
	// grace extends the daylight period on both ends: the sky is still
	// usable for this long after dusk and before dawn
	grace time.Duration
}

// Fixed clock bounds of the night window
const (
	nightStartHour = 22
	nightEndHour   = 7
)

// NewQuietHours creates a quiet-hours guard for a location
func NewQuietHours(latitude, longitude float64, grace time.Duration) *QuietHours {
	return &QuietHours{
		latitude:  latitude,
		longitude: longitude,
		grace:     grace,
	}
}

// IsQuiet reports whether t falls in quiet hours
func (q *QuietHours) IsQuiet(t time.Time) bool {
	if !inNightWindow(t) {
		return false
	}

	times := suncalc.GetTimes(t, q.latitude, q.longitude)
	dawn := times[suncalc.Dawn].Value
	dusk := times[suncalc.Dusk].Value

	// Daylight within the clock window still counts as daytime
	if t.After(dawn.Add(-q.grace)) && t.Before(dusk.Add(q.grace)) {
		return false
	}

	return true
}

func inNightWindow(t time.Time) bool {
	h := t.Hour()
	return h >= nightStartHour || h < nightEndHour
}
