package dateparse

import (
	"testing"
	"time"
)

// Wednesday, 2026-03-04 12:30 local time.
var ref = time.Date(2026, 3, 4, 12, 30, 0, 0, time.Local)

func mustParse(t *testing.T, input string) int64 {
	t.Helper()
	ms, err := ParseDateFrom(input, ref)
	if err != nil {
		t.Fatalf("ParseDateFrom(%q): %v", input, err)
	}
	return ms
}

func TestParseDateFrom(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"2026-03-01", "2026-03-01"},
		{"today", "2026-03-04"},
		{"TODAY", "2026-03-04"},
		{"yesterday", "2026-03-03"},
		{"-1d", "2026-03-03"},
		{"-7d", "2026-02-25"},
		{"-0d", "2026-03-04"},
		{"-2w", "2026-02-18"},
		{"-1m", "2026-02-04"},
		{"tuesday", "2026-03-03"},
		{"monday", "2026-03-02"},
		// Same weekday as the reference steps back a full week.
		{"wednesday", "2026-02-25"},
		{"sunday", "2026-03-01"},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			got := FormatDate(mustParse(t, tc.input))
			if got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestParseDateMidnight(t *testing.T) {
	ms := mustParse(t, "today")
	at := time.UnixMilli(ms)
	if at.Hour() != 0 || at.Minute() != 0 || at.Second() != 0 {
		t.Fatalf("not midnight: %v", at)
	}
}

func TestParseDateErrors(t *testing.T) {
	for _, input := range []string{"", "  ", "not-a-date", "-3x", "03/04/2026", "tomorrow"} {
		if _, err := ParseDateFrom(input, ref); err == nil {
			t.Fatalf("ParseDateFrom(%q) succeeded, want error", input)
		}
	}
}
