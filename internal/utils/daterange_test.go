package utils

import (
	"errors"
	"testing"
	"time"
)

func TestPeriodRange(t *testing.T) {
	now := time.Date(2025, 7, 3, 15, 30, 0, 0, time.UTC)
	midnight := time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		period   string
		from, to time.Time
	}{
		{"", time.Time{}, time.Time{}},
		{"today", midnight, now},
		{"TODAY", midnight, now},
		{"yesterday", midnight.AddDate(0, 0, -1), midnight},
		{"7days", now.AddDate(0, 0, -7), now},
		{"30days", now.AddDate(0, 0, -30), now},
	}
	for _, tc := range cases {
		from, to, err := PeriodRange(tc.period, now)
		if err != nil {
			t.Fatalf("PeriodRange(%q): %v", tc.period, err)
		}
		if !from.Equal(tc.from) || !to.Equal(tc.to) {
			t.Fatalf("PeriodRange(%q) = %v..%v; want %v..%v", tc.period, from, to, tc.from, tc.to)
		}
	}

	if _, _, err := PeriodRange("fortnight", now); !errors.Is(err, ErrUnknownPeriod) {
		t.Fatalf("unknown period: got %v", err)
	}
}

func TestParseTimeParam(t *testing.T) {
	if got, err := ParseTimeParam(""); got != nil || err != nil {
		t.Fatalf("empty = %v, %v", got, err)
	}
	got, err := ParseTimeParam("2025-07-03T10:00:00Z")
	if err != nil || !got.Equal(time.Date(2025, 7, 3, 10, 0, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339 = %v, %v", got, err)
	}
	got, err = ParseTimeParam("2025-07-03")
	if err != nil || !got.Equal(time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date = %v, %v", got, err)
	}
	if _, err := ParseTimeParam("03/07/2025"); err == nil {
		t.Fatal("expected parse error")
	}
}
