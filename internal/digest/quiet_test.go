package digest

import (
	"testing"
	"time"
)

// Helsinki
const (
	testLat = 60.1699
	testLon = 24.9384
)

func TestIsQuiet(t *testing.T) {
	quiet := NewQuietHours(testLat, testLon, 90*time.Minute)

	winter := time.FixedZone("EET", 2*3600)
	summer := time.FixedZone("EEST", 3*3600)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{
			name: "winter noon",
			t:    time.Date(2026, 12, 21, 12, 0, 0, 0, winter),
			want: false,
		},
		{
			name: "winter late night",
			t:    time.Date(2026, 12, 21, 23, 30, 0, 0, winter),
			want: true,
		},
		{
			name: "winter small hours",
			t:    time.Date(2026, 12, 22, 2, 0, 0, 0, winter),
			want: true,
		},
		{
			name: "summer noon",
			t:    time.Date(2026, 6, 21, 12, 0, 0, 0, summer),
			want: false,
		},
		{
			name: "light summer evening inside the clock window",
			t:    time.Date(2026, 6, 21, 22, 30, 0, 0, summer),
			want: false,
		},
		{
			name: "evening outside the clock window",
			t:    time.Date(2026, 12, 21, 20, 0, 0, 0, winter),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := quiet.IsQuiet(tt.t); got != tt.want {
				t.Errorf("IsQuiet(%s) = %v, want %v", tt.t, got, tt.want)
			}
		})
	}
}
