package types

import (
	"testing"
	"time"
)

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-05-01T10:00:00.500Z", time.Date(2024, 5, 1, 10, 0, 0, 500e6, time.UTC)},
		{"2024-05-01T10:00:00Z", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T12:00:00+02:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-05-01T10:00:00.25", time.Date(2024, 5, 1, 10, 0, 0, 250e6, time.UTC)},
		{"2024-05-01T10:00", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{"2024-06-01", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{" 2024-06-01 ", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
		{"", time.Time{}},
		{"yesterday", time.Time{}},
	}

	for _, tt := range tests {
		if got := ParseTime(tt.in); !got.Equal(tt.want) {
			t.Errorf("ParseTime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTime(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"2024-05-01T10:00:00Z", "2024-05-01T10:00:00.000Z"},
		{"2024-05-01T10:00:00.500Z", "2024-05-01T10:00:00.500Z"},
		{"2024-05-01T12:30:00+02:00", "2024-05-01T10:30:00.000Z"},
		{"2024-06-01", "2024-06-01T00:00:00.000Z"},
		{"yesterday", "yesterday"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeTime(tt.in); got != tt.want {
			t.Errorf("NormalizeTime(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	// Normalized values order the same way as the times they encode.
	if NormalizeTime("2024-05-01T10:00:00Z") >= NormalizeTime("2024-05-01T10:00:00.500Z") {
		t.Error("normalized timestamps do not sort chronologically")
	}
}
