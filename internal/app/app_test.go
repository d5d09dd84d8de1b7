package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffcalendar/internal/config"
	"ffcalendar/internal/renderer"
	"ffcalendar/internal/storage"
)

type fakeElement string

func (e fakeElement) String() string { return string(e) }

// calendarPage renders one High impact row for whatever day is loaded.
type calendarPage struct {
	urls   []string
	closed bool
}

var rowTexts = map[string]string{
	"td.calendar__time":     "8:30am",
	"td.calendar__currency": "USD",
	"td.calendar__impact":   "",
	"td.calendar__event":    "CPI m/m",
	"td.calendar__actual":   "0.3%",
	"td.calendar__forecast": "0.2%",
	"td.calendar__previous": "0.1%",
}

func (p *calendarPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.urls = append(p.urls, url)
	return nil
}

func (p *calendarPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}

func (p *calendarPage) FindAll(ctx context.Context, selector string) ([]renderer.Element, error) {
	return []renderer.Element{fakeElement("row")}, nil
}

func (p *calendarPage) FindOne(ctx context.Context, scope renderer.Element, selector string) (renderer.Element, error) {
	if scope == nil {
		return nil, renderer.ErrNotFound
	}
	if _, ok := rowTexts[selector]; ok && scope.String() == "row" {
		return fakeElement(selector), nil
	}
	if scope.String() == "td.calendar__impact" && selector == "span" {
		return fakeElement("impact-marker"), nil
	}
	return nil, renderer.ErrNotFound
}

func (p *calendarPage) Text(ctx context.Context, el renderer.Element) (string, error) {
	return rowTexts[el.String()], nil
}

func (p *calendarPage) Attribute(ctx context.Context, el renderer.Element, name string) (string, bool, error) {
	switch {
	case el.String() == "row" && name == "class":
		return "calendar__row", true, nil
	case el.String() == "impact-marker" && name == "title":
		return "High Impact Expected", true, nil
	}
	return "", false, nil
}

func (p *calendarPage) OuterHTML(ctx context.Context, el renderer.Element) (string, error) {
	return "", renderer.ErrNotFound
}

func (p *calendarPage) ScrollIntoView(ctx context.Context, el renderer.Element) error { return nil }
func (p *calendarPage) Click(ctx context.Context, el renderer.Element) error          { return nil }

func (p *calendarPage) Close() error {
	p.closed = true
	return nil
}

type fakeLauncher struct {
	pages []*calendarPage
}

func (l *fakeLauncher) Launch(ctx context.Context) (renderer.Page, error) {
	page := &calendarPage{}
	l.pages = append(l.pages, page)
	return page, nil
}

func newTestApp(t *testing.T) (*App, *fakeLauncher, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.CSVPath = filepath.Join(t.TempDir(), "calendar.csv")
	cfg.Scrape.RestartDelay = 0

	a := NewApp(cfg, zerolog.Nop())
	launcher := &fakeLauncher{}
	a.SetLauncher(launcher)
	out := &bytes.Buffer{}
	a.SetOutput(out)
	return a, launcher, out
}

func TestParseDate(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Tehran")
	require.NoError(t, err)

	got, err := ParseDate("2024-01-05", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, loc), got)

	got, err = ParseDate("2024-01-05T08:30", loc)
	require.NoError(t, err)
	assert.Equal(t, 8, got.Hour())

	_, err = ParseDate("05/01/2024", loc)
	assert.Error(t, err)
}

func TestScrapeWritesDatasetAndIsIdempotent(t *testing.T) {
	a, launcher, out := newTestApp(t)
	ctx := context.Background()
	opts := ScrapeOptions{Start: "2024-01-05", End: "2024-01-06"}

	require.NoError(t, a.Scrape(ctx, opts))
	assert.Contains(t, out.String(), "2 new records")
	require.Len(t, launcher.pages, 1)
	assert.Equal(t, []string{
		"https://www.forexfactory.com/calendar?day=jan05.2024",
		"https://www.forexfactory.com/calendar?day=jan06.2024",
	}, launcher.pages[0].urls)
	assert.True(t, launcher.pages[0].closed)

	events, err := storage.NewCSVStore(a.Config.Storage.CSVPath).Load(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "2024-01-05T08:30:00+03:30", events[0].Timestamp.Format(time.RFC3339))
	assert.Equal(t, "CPI m/m", events[0].Name)

	out.Reset()
	require.NoError(t, a.Scrape(ctx, opts))
	assert.Contains(t, out.String(), "0 new records")
}

func TestScrapeRejectsBadInputBeforeLaunching(t *testing.T) {
	for name, opts := range map[string]ScrapeOptions{
		"timezone":  {Start: "2024-01-05", End: "2024-01-06", Timezone: "Mars/Olympus"},
		"start":     {Start: "jan 5", End: "2024-01-06"},
		"inverted":  {Start: "2024-01-06", End: "2024-01-05"},
		"empty end": {Start: "2024-01-06"},
	} {
		t.Run(name, func(t *testing.T) {
			a, launcher, _ := newTestApp(t)
			require.Error(t, a.Scrape(context.Background(), opts))
			assert.Empty(t, launcher.pages)
			_, err := os.Stat(a.Config.Storage.CSVPath)
			assert.True(t, os.IsNotExist(err), "no output is produced")
		})
	}
}

func TestShowAndExport(t *testing.T) {
	a, _, out := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Scrape(ctx, ScrapeOptions{Start: "2024-01-05", End: "2024-01-06"}))

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{From: "2024-01-05", To: "2024-01-05"}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "CPI m/m")
	assert.Contains(t, lines[1], "0.1%")

	out.Reset()
	require.NoError(t, a.Show(ctx, ShowOptions{From: "2024-01-05", To: "2024-01-06", Currency: "EUR"}))
	assert.Contains(t, out.String(), "no events found")

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "out", "events.csv")
	pngPath := filepath.Join(dir, "out", "events.png")
	require.NoError(t, a.Export(ctx, ExportOptions{From: "2024-01-05", To: "2024-01-06", CSVPath: csvPath, PNGPath: pngPath}))

	raw, err := os.ReadFile(csvPath)
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(string(raw), "\n"))
	assert.Contains(t, string(raw), "Surprise")

	info, err := os.Stat(pngPath)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	assert.Error(t, a.Export(ctx, ExportOptions{}))
}

func TestNotifySendsStoredDay(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		texts = append(texts, body["text"])
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	a, _, _ := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, a.Scrape(ctx, ScrapeOptions{Start: "2024-01-05", End: "2024-01-05"}))

	assert.Error(t, a.Notify(ctx, NotifyOptions{Day: "2024-01-05"}), "alerting disabled")

	a.Config.Alerting.Enabled = true
	a.Config.Alerting.Telegram = config.TelegramConfig{Enabled: true, BotToken: "t", ChatID: "c", APIBase: srv.URL, Timeout: time.Second}
	require.NoError(t, a.Notify(ctx, NotifyOptions{Day: "2024-01-05"}))
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "CPI m/m")

	require.NoError(t, a.Notify(ctx, NotifyOptions{Day: "2024-01-07"}))
	assert.Len(t, texts, 1, "empty day sends nothing")
}
