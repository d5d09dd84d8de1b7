package calendar

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// TimeKind reports how a time-of-day text was decoded.
type TimeKind int

const (
	TimeExact TimeKind = iota
	TimeAllDay
	// TimeUnrecognized leaves the timestamp at the start of the day.
	TimeUnrecognized
)

func (k TimeKind) String() string {
	switch k {
	case TimeExact:
		return "exact"
	case TimeAllDay:
		return "all_day"
	default:
		return "unrecognized"
	}
}

var clockPattern = regexp.MustCompile(`^(\d{1,2}):(\d{2})(am|pm)`)

// StartOfDay returns midnight of t's calendar date in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// DecodeTime turns the calendar's time column into an instant on day.
// day must already be a start-of-day value in the target zone.
func DecodeTime(day time.Time, text string) (time.Time, TimeKind) {
	t := strings.ToLower(strings.TrimSpace(text))
	if strings.Contains(t, "day") {
		return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, day.Location()), TimeAllDay
	}

	m := clockPattern.FindStringSubmatch(t)
	if m == nil {
		return day, TimeUnrecognized
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return day, TimeUnrecognized
	}

	switch {
	case m[3] == "pm" && hour < 12:
		hour += 12
	case m[3] == "am" && hour == 12:
		hour = 0
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location()), TimeExact
}

// DayToken encodes a date the way the calendar page addresses days, e.g. "jan05.2024".
func DayToken(day time.Time) string {
	return strings.ToLower(day.Format("Jan02.2006"))
}
