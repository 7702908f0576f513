package assistant

import "testing"

func TestParseInboundPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "json envelope",
			payload: `{"text":"had lunch"}`,
			want:    "had lunch",
		},
		{
			name:    "json envelope with whitespace",
			payload: `{"text":"  had lunch  "}`,
			want:    "had lunch",
		},
		{
			name:    "bare text",
			payload: "drank 500ml",
			want:    "drank 500ml",
		},
		{
			name:    "json without text field falls back to raw",
			payload: `{"body":"hello"}`,
			want:    `{"body":"hello"}`,
		},
		{
			name:    "empty payload",
			payload: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseInboundPayload([]byte(tt.payload)); got != tt.want {
				t.Errorf("parseInboundPayload(%q) = %q, want %q", tt.payload, got, tt.want)
			}
		})
	}
}
