package utils

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	t.Parallel()
	want := time.Date(2026, 8, 25, 14, 30, 0, 0, time.UTC)

	cases := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", "2026-08-25T14:30:00Z", want},
		{"rfc3339 with offset", "2026-08-25T16:30:00+02:00", want},
		{"iso without zone", "2026-08-25T14:30:00", want},
		{"space separated", "2026-08-25 14:30:00", want},
		{"date with meridiem", "2026-08-25 02:30 PM", want},
		{"day first", "25-08-2026 14:30:00", want},
		{"month first", "08/25/2026 14:30:00", want},
		{"padded", "  2026-08-25 14:30:00  ", want},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestamp(tc.in)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tc.in, err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("ParseTimestamp(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestParseTimestampBareClock(t *testing.T) {
	t.Parallel()
	got, err := ParseTimestamp("09:30 am")
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	now := time.Now().UTC()
	if got.Year() != now.Year() || got.Month() != now.Month() || got.Day() != now.Day() {
		t.Fatalf("bare clock not placed on today: %v", got)
	}
	if got.Hour() != 9 || got.Minute() != 30 {
		t.Fatalf("clock = %02d:%02d, want 09:30", got.Hour(), got.Minute())
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	t.Parallel()
	for _, in := range []string{"", "   ", "yesterday", "25:99", "2026-13-40 00:00:00"} {
		if _, err := ParseTimestamp(in); err == nil {
			t.Fatalf("ParseTimestamp(%q) accepted", in)
		}
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	got, err := ParseDate("2026-08-25")
	if err != nil {
		t.Fatalf("ParseDate: %v", err)
	}
	want := time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("ParseDate = %v, want %v", got, want)
	}
	if _, err := ParseDate("25/08/2026"); err == nil {
		t.Fatal("ParseDate accepted a non-ISO date")
	}
}

func TestNewOTP(t *testing.T) {
	t.Parallel()
	for i := 0; i < 20; i++ {
		code, err := NewOTP(6)
		if err != nil {
			t.Fatalf("NewOTP: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("len(%q) = %d, want 6", code, len(code))
		}
		for _, r := range code {
			if r < '0' || r > '9' {
				t.Fatalf("non-digit in code %q", code)
			}
		}
	}
}
