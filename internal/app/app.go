package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/alerting"
	"ffcalendar/internal/config"
	"ffcalendar/internal/metrics"
	"ffcalendar/internal/publish"
	"ffcalendar/internal/renderer"
	"ffcalendar/internal/scraper"
	"ffcalendar/internal/service"
	"ffcalendar/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Recorder

	out      io.Writer
	launcher renderer.Launcher
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config:  cfg,
		Logger:  logger.With().Str("component", "app").Logger(),
		Metrics: metrics.New(),
		out:     os.Stdout,
	}
}

// SetOutput redirects command output.
func (a *App) SetOutput(w io.Writer) {
	a.out = w
}

// SetLauncher replaces the browser launcher.
func (a *App) SetLauncher(l renderer.Launcher) {
	a.launcher = l
}

func (a *App) location() (*time.Location, error) {
	return a.Config.Calendar.Location()
}

func (a *App) newLauncher() renderer.Launcher {
	if a.launcher != nil {
		return a.launcher
	}
	b := a.Config.Browser
	return renderer.NewChrome(renderer.ChromeOptions{
		RemoteURL:     b.RemoteURL,
		ExecPath:      b.ExecPath,
		Headless:      b.Headless,
		WindowWidth:   b.WindowWidth,
		WindowHeight:  b.WindowHeight,
		UserAgent:     b.UserAgent,
		ActionTimeout: b.ActionTimeout,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) newPublisher() (publish.Publisher, func(), error) {
	if a.Config.NATS.URL == "" {
		return nil, func() {}, nil
	}
	pub, err := publish.Connect(a.Config.NATS.URL, a.Config.NATS.Subject, a.Logger)
	if err != nil {
		return nil, nil, err
	}
	return pub, pub.Close, nil
}

func (a *App) openStore(ctx context.Context) (storage.Store, func(), error) {
	store, err := storage.Open(ctx, a.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", a.Config.Storage.Driver, err)
	}
	return store, store.Close, nil
}

// pipeline wires the scrape chain for one run. The returned controller owns
// the browser and must be closed.
func (a *App) pipeline(store storage.Store, pub publish.Publisher, loc *time.Location, logger zerolog.Logger) (*service.Walker, *service.RetryController) {
	sc := a.Config.Scrape

	details := scraper.NewDetailResolver(scraper.DetailOptions{
		Enabled:      sc.Details,
		PanelTimeout: sc.DetailTimeout,
		SettleDelay:  sc.DetailSettle,
	}, a.Metrics, logger)

	day := scraper.NewDayScraper(scraper.Options{
		BaseURL:         a.Config.Calendar.BaseURL,
		PageLoadTimeout: sc.PageLoadTimeout,
		TableTimeout:    sc.TableTimeout,
		Location:        loc,
	}, details, a.Metrics, logger)

	retry := service.NewRetryController(service.RetryOptions{
		MaxAttempts:  sc.MaxAttempts,
		RestartDelay: sc.RestartDelay,
	}, a.newLauncher(), day, a.Metrics, logger)

	return service.NewWalker(store, retry, pub, loc, a.Metrics, logger), retry
}

var dateLayouts = []string{
	time.DateOnly,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	"2006-01-02 15:04",
}

// ParseDate reads an ISO date or local date-time in loc.
func ParseDate(text string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or YYYY-MM-DDTHH:MM[:SS]", text)
}

// ShowOptions configure the show command.
type ShowOptions struct {
	From      string
	To        string
	Currency  string
	MinImpact string
}

// ExportOptions hold parameters for exporting stored events.
type ExportOptions struct {
	From    string
	To      string
	Days    int
	CSVPath string
	PNGPath string
}

// ScrapeOptions configure a one-shot scrape.
type ScrapeOptions struct {
	Start    string
	End      string
	CSVPath  string
	Timezone string
	Details  bool
	Fresh    bool
}

// NotifyOptions select the stored day to announce.
type NotifyOptions struct {
	Day string
}
