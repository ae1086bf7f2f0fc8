package dispatch

import (
	"testing"
	"time"
)

func TestDateKey(t *testing.T) {
	tests := []struct {
		name     string
		input    time.Time
		expected string
	}{
		{
			name:     "plain date",
			input:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			expected: "2024-03-01T00:00:00.000Z",
		},
		{
			name:     "time of day is dropped",
			input:    time.Date(2024, 3, 1, 17, 45, 12, 999, time.UTC),
			expected: "2024-03-01T00:00:00.000Z",
		},
		{
			name:     "zone is ignored, calendar day wins",
			input:    time.Date(2024, 3, 1, 23, 0, 0, 0, time.FixedZone("IST", 5*3600+1800)),
			expected: "2024-03-01T00:00:00.000Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DateKey(tt.input); got != tt.expected {
				t.Errorf("DateKey() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestParseExamDate(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		expected  string
		expectErr bool
	}{
		{
			name:     "slash format",
			raw:      "3/15/2024",
			expected: "2024-03-15T00:00:00.000Z",
		},
		{
			name:     "zero padded slash format",
			raw:      "03/15/2024",
			expected: "2024-03-15T00:00:00.000Z",
		},
		{
			name:     "iso date",
			raw:      "2024-03-15",
			expected: "2024-03-15T00:00:00.000Z",
		},
		{
			name:     "already normalized",
			raw:      "2024-03-15T00:00:00.000Z",
			expected: "2024-03-15T00:00:00.000Z",
		},
		{
			name:     "surrounding whitespace",
			raw:      " 2024-03-15 ",
			expected: "2024-03-15T00:00:00.000Z",
		},
		{
			name:      "empty",
			raw:       "",
			expectErr: true,
		},
		{
			name:      "garbage",
			raw:       "not-a-date",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseExamDate(tt.raw)
			if tt.expectErr {
				if err == nil {
					t.Errorf("ParseExamDate(%q) expected error, got %v", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseExamDate(%q) failed: %v", tt.raw, err)
			}
			if key := DateKey(got); key != tt.expected {
				t.Errorf("ParseExamDate(%q) = %q, want %q", tt.raw, key, tt.expected)
			}
		})
	}
}
