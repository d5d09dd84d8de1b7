package calendar

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNoValue is returned when a value column cannot be read as a number.
var ErrNoValue = errors.New("calendar: value not numeric")

// Value is a numeric reading of an actual/forecast/previous column.
type Value struct {
	Amount decimal.Decimal
	// Unit is the trailing suffix, e.g. "%", "K", "M", "B", "T" or "".
	Unit string
}

// ParseValue reads texts like "1.2%", "-0.3K", "<0.1%" or "250B".
func ParseValue(text string) (Value, error) {
	s := strings.TrimSpace(text)
	s = strings.TrimLeft(s, "<>")
	if s == "" {
		return Value{}, ErrNoValue
	}

	unit := ""
	last := s[len(s)-1]
	switch last {
	case '%', 'K', 'M', 'B', 'T':
		unit = string(last)
		s = s[:len(s)-1]
	}
	s = strings.ReplaceAll(s, ",", "")

	amount, err := decimal.NewFromString(s)
	if err != nil {
		return Value{}, ErrNoValue
	}
	return Value{Amount: amount, Unit: unit}, nil
}

// Surprise returns actual minus forecast when both parse with the same unit.
func (e Event) Surprise() (Value, bool) {
	actual, err := ParseValue(e.Actual)
	if err != nil {
		return Value{}, false
	}
	forecast, err := ParseValue(e.Forecast)
	if err != nil {
		return Value{}, false
	}
	if actual.Unit != forecast.Unit {
		return Value{}, false
	}
	return Value{Amount: actual.Amount.Sub(forecast.Amount), Unit: actual.Unit}, true
}

func (v Value) String() string {
	return v.Amount.String() + v.Unit
}
