package app

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"ffcalendar/internal/calendar"
	"ffcalendar/internal/storage"
)

// Export renders stored events as CSV and/or a PNG chart of events per day.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	from, to, err := a.resolveRange(opts.From, opts.To, a.Config.ResolveDays(opts.Days))
	if err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	events, err := storage.ListBetween(ctx, store, from, to)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		a.Logger.Info().Msg("no events found for export window")
		return nil
	}
	a.Logger.Info().Int("events", len(events)).Time("from", from).Time("to", to).Msg("exporting events")

	if opts.CSVPath != "" {
		if err := writeEventsCSV(opts.CSVPath, events); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		loc, _ := a.location()
		if err := writeEventsPNG(opts.PNGPath, dailyCounts(events, from, to, loc)); err != nil {
			return err
		}
	}

	return nil
}

// dayCount is the number of High and Medium events of one day.
type dayCount struct {
	Day    time.Time
	High   int
	Medium int
}

// dailyCounts buckets events per day of [from, to), including empty days.
func dailyCounts(events []calendar.Event, from, to time.Time, loc *time.Location) []dayCount {
	index := make(map[string]int)
	counts := make([]dayCount, 0)
	for day := calendar.StartOfDay(from, loc); day.Before(to); day = calendar.StartOfDay(day.AddDate(0, 0, 1), loc) {
		index[day.Format(time.DateOnly)] = len(counts)
		counts = append(counts, dayCount{Day: day})
	}

	for _, ev := range events {
		i, ok := index[ev.Timestamp.In(loc).Format(time.DateOnly)]
		if !ok {
			continue
		}
		switch ev.Impact {
		case calendar.ImpactHigh:
			counts[i].High++
		case calendar.ImpactMedium:
			counts[i].Medium++
		}
	}
	return counts
}

func writeEventsCSV(path string, events []calendar.Event) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"DateTime", "Currency", "Impact", "Event", "Actual", "Forecast", "Previous", "Surprise"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, ev := range events {
		surprise := ""
		if s, ok := ev.Surprise(); ok {
			surprise = s.String()
		}
		record := []string{
			calendar.FormatTimestamp(ev.Timestamp),
			ev.Currency,
			ev.Impact.String(),
			ev.Name,
			ev.Actual,
			ev.Forecast,
			ev.Previous,
			surprise,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeEventsPNG(path string, counts []dayCount) error {
	if len(counts) < 2 {
		return errors.New("chart export needs a range of at least two days")
	}
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(counts))
	high := make([]float64, len(counts))
	medium := make([]float64, len(counts))
	peak := 1.0

	for i, c := range counts {
		x[i] = c.Day
		high[i] = float64(c.High)
		medium[i] = float64(c.Medium)
		peak = max(peak, high[i], medium[i])
	}

	countFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.0f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           "Events per day",
			ValueFormatter: countFormatter,
			Range:          &chart.ContinuousRange{Min: 0, Max: peak + 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "High",
				XValues: x,
				YValues: high,
			},
			chart.TimeSeries{
				Name:    "Medium",
				XValues: x,
				YValues: medium,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
