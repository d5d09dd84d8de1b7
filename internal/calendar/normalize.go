package calendar

import (
	"strings"
	"time"
)

// RawRow carries the text of one calendar row as read from the page.
type RawRow struct {
	Time     string
	Currency string
	Impact   string
	Name     string
	Actual   string
	Forecast string
	Previous string
}

// Normalized is the outcome of Normalize for a kept row.
type Normalized struct {
	Event    Event
	TimeKind TimeKind
}

// Normalize validates a raw row for day. ok is false when the impact label is
// not exactly one of the kept tiers.
// Detail is left empty.
func Normalize(row RawRow, day time.Time) (Normalized, bool) {
	impact := ParseImpactLabel(row.Impact)
	if impact == ImpactNone {
		return Normalized{}, false
	}

	ts, kind := DecodeTime(day, row.Time)
	return Normalized{
		Event: Event{
			Timestamp: ts,
			Currency:  strings.TrimSpace(row.Currency),
			Impact:    impact,
			Name:      strings.TrimSpace(row.Name),
			Actual:    strings.TrimSpace(row.Actual),
			Forecast:  strings.TrimSpace(row.Forecast),
			Previous:  strings.TrimSpace(row.Previous),
		},
		TimeKind: kind,
	}, true
}
