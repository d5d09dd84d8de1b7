package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tehran(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)
	return loc
}

func TestDecodeTimeClock(t *testing.T) {
	loc := tehran(t)
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, loc)

	cases := []struct {
		text         string
		hour, minute int
	}{
		{"12:30am", 0, 30},
		{"12:15pm", 12, 15},
		{"1:05pm", 13, 5},
		{"9:00am", 9, 0},
		{"11:59pm", 23, 59},
		{"  3:45PM ", 15, 45},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, kind := DecodeTime(day, tc.text)
			assert.Equal(t, TimeExact, kind)
			assert.Equal(t, time.Date(2024, 1, 5, tc.hour, tc.minute, 0, 0, loc), got)
		})
	}
}

func TestDecodeTimeAllDay(t *testing.T) {
	loc := tehran(t)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	for _, text := range []string{"All Day", "all day", "DAY 2", "Tentative Day"} {
		got, kind := DecodeTime(day, text)
		assert.Equal(t, TimeAllDay, kind, text)
		assert.Equal(t, time.Date(2024, 3, 10, 23, 59, 59, 0, loc), got, text)
	}
}

func TestDecodeTimeUnrecognizedKeepsStartOfDay(t *testing.T) {
	loc := tehran(t)
	day := time.Date(2024, 3, 10, 0, 0, 0, 0, loc)

	for _, text := range []string{"", "Tentative", "13:00pm", "0:30am", "9:75am", "noon"} {
		got, kind := DecodeTime(day, text)
		assert.Equal(t, TimeUnrecognized, kind, text)
		assert.Equal(t, day, got, text)
	}
}

func TestDayToken(t *testing.T) {
	assert.Equal(t, "jan05.2024", DayToken(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "dec31.2023", DayToken(time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestNormalizeFiltersImpact(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	base := RawRow{Time: "8:30am", Currency: " USD ", Name: " Non-Farm Employment Change ", Actual: "216K", Forecast: "170K", Previous: "173K"}

	for _, label := range []string{"Low Impact Expected", "Non-Economic", "Holiday", "", "high impact expected", "High Impact Expected ", " High Impact Expected ", " Medium Impact Expected"} {
		row := base
		row.Impact = label
		_, ok := Normalize(row, day)
		assert.False(t, ok, "label %q", label)
	}

	row := base
	row.Impact = "Medium Impact Expected"
	got, ok := Normalize(row, day)
	require.True(t, ok)
	assert.Equal(t, ImpactMedium, got.Event.Impact)
	assert.Equal(t, "USD", got.Event.Currency)
	assert.Equal(t, "Non-Farm Employment Change", got.Event.Name)
	assert.Equal(t, time.Date(2024, 1, 5, 8, 30, 0, 0, time.UTC), got.Event.Timestamp)
	assert.Empty(t, got.Event.Detail)
}

func TestKeyUsesZoneOffset(t *testing.T) {
	loc := tehran(t)
	ev := Event{Timestamp: time.Date(2024, 1, 5, 13, 30, 0, 0, loc), Currency: "USD", Name: "CPI m/m"}
	assert.Equal(t, Key{Timestamp: "2024-01-05T13:30:00+03:30", Currency: "USD", Name: "CPI m/m"}, ev.Key())
}

func TestMergeKeepsDetailAndCountsNewRows(t *testing.T) {
	day := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	existing := []Event{
		{Timestamp: day.Add(15 * time.Hour), Currency: "USD", Name: "CPI m/m", Impact: ImpactHigh, Forecast: "0.2%", Detail: `{"specs":[]}`},
	}
	incoming := []Event{
		{Timestamp: day.Add(15 * time.Hour), Currency: "USD", Name: "CPI m/m", Impact: ImpactHigh, Actual: "0.3%", Forecast: "0.2%"},
		{Timestamp: day.Add(9 * time.Hour), Currency: "EUR", Name: "German Prelim CPI m/m", Impact: ImpactHigh},
	}

	merged := Merge(existing, incoming)
	require.Len(t, merged, 2)
	assert.Equal(t, "EUR", merged[0].Currency, "sorted chronologically")
	assert.Equal(t, "0.3%", merged[1].Actual, "market fields refreshed")
	assert.Equal(t, `{"specs":[]}`, merged[1].Detail, "detail preserved")

	again := Merge(merged, incoming)
	assert.Len(t, again, len(merged), "re-merge adds nothing")
}

func TestIndexIgnoresEmptyDetail(t *testing.T) {
	day := time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)
	withDetail := Event{Timestamp: day, Currency: "GBP", Name: "GDP m/m", Detail: "x"}
	without := Event{Timestamp: day, Currency: "JPY", Name: "BOJ Policy Rate", Detail: "  "}

	ix := NewIndex([]Event{withDetail, without})
	assert.Equal(t, 1, ix.Len())

	got, ok := ix.Detail(withDetail.Key())
	assert.True(t, ok)
	assert.Equal(t, "x", got)

	_, ok = ix.Detail(without.Key())
	assert.False(t, ok)
}

func TestSurprise(t *testing.T) {
	ev := Event{Actual: "0.4%", Forecast: "0.2%"}
	s, ok := ev.Surprise()
	require.True(t, ok)
	assert.Equal(t, "0.2%", s.String())

	_, ok = Event{Actual: "216K", Forecast: "0.2%"}.Surprise()
	assert.False(t, ok)

	_, ok = Event{Actual: "", Forecast: "1.0%"}.Surprise()
	assert.False(t, ok)

	v, err := ParseValue("<0.1%")
	require.NoError(t, err)
	assert.Equal(t, "%", v.Unit)

	v, err = ParseValue("-1,250.5B")
	require.NoError(t, err)
	assert.Equal(t, "-1250.5B", v.String())
}
