package calendar

import (
	"sort"
	"strings"
	"time"
)

// Impact is the importance tier of a calendar entry. Only High and Medium are kept.
type Impact int

const (
	ImpactNone Impact = iota
	ImpactMedium
	ImpactHigh
)

const (
	highImpactLabel   = "High Impact Expected"
	mediumImpactLabel = "Medium Impact Expected"
)

// ParseImpactLabel maps the page's impact tooltip to a tier. Matching is exact.
func ParseImpactLabel(label string) Impact {
	switch label {
	case highImpactLabel:
		return ImpactHigh
	case mediumImpactLabel:
		return ImpactMedium
	default:
		return ImpactNone
	}
}

// ParseImpact accepts the stored short form ("High") as well as the page label.
func ParseImpact(s string) Impact {
	switch strings.TrimSpace(s) {
	case "High", highImpactLabel:
		return ImpactHigh
	case "Medium", mediumImpactLabel:
		return ImpactMedium
	default:
		return ImpactNone
	}
}

func (i Impact) String() string {
	switch i {
	case ImpactHigh:
		return "High"
	case ImpactMedium:
		return "Medium"
	default:
		return ""
	}
}

// Event is one economic calendar entry.
type Event struct {
	Timestamp time.Time
	Currency  string
	Impact    Impact
	Name      string
	Actual    string
	Forecast  string
	Previous  string
	// Detail is the serialized detail block; empty when not fetched.
	Detail string
}

// Key is the composite identity of an event.
type Key struct {
	Timestamp string
	Currency  string
	Name      string
}

// Key returns the identity key, with the timestamp rendered as an ISO instant in its own zone.
func (e Event) Key() Key {
	return Key{
		Timestamp: FormatTimestamp(e.Timestamp),
		Currency:  strings.TrimSpace(e.Currency),
		Name:      strings.TrimSpace(e.Name),
	}
}

// FormatTimestamp renders t the way it is stored and compared.
func FormatTimestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}

// DayResult holds the qualifying events of one calendar day in page order.
type DayResult []Event

// Index answers detail lookups against a persisted dataset.
type Index struct {
	details map[Key]string
}

// NewIndex builds a lookup over events that carry a non-empty detail.
func NewIndex(events []Event) Index {
	details := make(map[Key]string)
	for _, ev := range events {
		detail := strings.TrimSpace(ev.Detail)
		if detail == "" {
			continue
		}
		if _, ok := details[ev.Key()]; !ok {
			details[ev.Key()] = detail
		}
	}
	return Index{details: details}
}

// Detail returns the stored detail for key, if any.
func (ix Index) Detail(key Key) (string, bool) {
	detail, ok := ix.details[key]
	return detail, ok
}

// Len reports how many keys carry a detail.
func (ix Index) Len() int {
	return len(ix.details)
}

// Merge folds incoming into existing keyed by identity. Incoming rows replace the
// market fields of a matching row; an existing non-empty detail survives an empty
// incoming one. The result is sorted chronologically.
func Merge(existing, incoming []Event) []Event {
	merged := make([]Event, 0, len(existing)+len(incoming))
	positions := make(map[Key]int, len(existing)+len(incoming))

	for _, ev := range existing {
		key := ev.Key()
		if pos, ok := positions[key]; ok {
			merged[pos] = mergeEvent(merged[pos], ev)
			continue
		}
		positions[key] = len(merged)
		merged = append(merged, ev)
	}

	for _, ev := range incoming {
		key := ev.Key()
		if pos, ok := positions[key]; ok {
			merged[pos] = mergeEvent(merged[pos], ev)
			continue
		}
		positions[key] = len(merged)
		merged = append(merged, ev)
	}

	Sort(merged)
	return merged
}

func mergeEvent(current, next Event) Event {
	if strings.TrimSpace(next.Detail) == "" {
		next.Detail = current.Detail
	}
	return next
}

// Sort orders events by timestamp, then currency, then name.
func Sort(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		if a.Currency != b.Currency {
			return a.Currency < b.Currency
		}
		return a.Name < b.Name
	})
}

// Between returns events whose timestamp falls in [from, to).
func Between(events []Event, from, to time.Time) []Event {
	out := make([]Event, 0)
	for _, ev := range events {
		if ev.Timestamp.Before(from) || !ev.Timestamp.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}
