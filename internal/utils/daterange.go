package utils

import (
	"errors"
	"strings"
	"time"
)

// ErrUnknownPeriod is returned by PeriodRange for an unrecognized preset.
var ErrUnknownPeriod = errors.New("period must be one of: today, yesterday, 7days, 30days")

// PeriodRange turns a reporting preset into a half-open [from, to) range
// in now's location. An empty period yields zero times (no bound).
//
//	today      midnight today .. now
//	yesterday  midnight yesterday .. midnight today
//	7days      now - 7 days .. now
//	30days     now - 30 days .. now
func PeriodRange(period string, now time.Time) (from, to time.Time, err error) {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "":
		return time.Time{}, time.Time{}, nil
	case "today":
		return midnight, now, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), midnight, nil
	case "7days":
		return now.AddDate(0, 0, -7), now, nil
	case "30days":
		return now.AddDate(0, 0, -30), now, nil
	default:
		return time.Time{}, time.Time{}, ErrUnknownPeriod
	}
}

// ParseTimeParam parses a query value as RFC 3339 or a plain YYYY-MM-DD
// date (UTC midnight). Empty input returns nil.
func ParseTimeParam(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
