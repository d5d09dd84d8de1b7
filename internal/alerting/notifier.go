package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ffcalendar/internal/calendar"
)

// maxDigestLines keeps a digest under Telegram's message size limit.
const maxDigestLines = 40

// Digest groups events worth announcing.
type Digest struct {
	Title  string
	From   time.Time
	To     time.Time
	Events []calendar.Event
}

// Empty reports whether the digest has nothing to send.
func (d Digest) Empty() bool {
	return len(d.Events) == 0
}

// Notifier delivers digests.
type Notifier interface {
	Notify(ctx context.Context, digest Digest) error
}

// Select keeps events at or above threshold, in chronological order.
func Select(events []calendar.Event, threshold calendar.Impact) []calendar.Event {
	out := make([]calendar.Event, 0, len(events))
	for _, ev := range events {
		if ev.Impact >= threshold && ev.Impact != calendar.ImpactNone {
			out = append(out, ev)
		}
	}
	calendar.Sort(out)
	return out
}

// TelegramNotifier sends digests through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify posts the digest via sendMessage. Empty digests are not sent.
func (n *TelegramNotifier) Notify(ctx context.Context, digest Digest) error {
	if digest.Empty() {
		return nil
	}

	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderDigest(digest),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Int("events", len(digest.Events)).
		Time("from", digest.From).
		Time("to", digest.To).
		Msg("digest sent (Telegram)")
	return nil
}

func renderDigest(d Digest) string {
	builder := strings.Builder{}
	title := d.Title
	if title == "" {
		title = "Economic calendar"
	}
	builder.WriteString(fmt.Sprintf("[%s]\n", title))
	if !d.From.IsZero() {
		builder.WriteString(fmt.Sprintf("%s to %s\n", d.From.Format(time.DateOnly), d.To.Format(time.DateOnly)))
	}

	for i, ev := range d.Events {
		if i == maxDigestLines {
			builder.WriteString(fmt.Sprintf("... and %d more\n", len(d.Events)-maxDigestLines))
			break
		}
		builder.WriteString(fmt.Sprintf("%s %s [%s] %s", ev.Timestamp.Format("Mon 02 Jan 15:04"), ev.Currency, ev.Impact, ev.Name))
		if ev.Actual != "" || ev.Forecast != "" {
			builder.WriteString(fmt.Sprintf(" A:%s F:%s P:%s", dash(ev.Actual), dash(ev.Forecast), dash(ev.Previous)))
		}
		if s, ok := ev.Surprise(); ok {
			builder.WriteString(fmt.Sprintf(" (%s)", s))
		}
		builder.WriteString("\n")
	}
	return builder.String()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

var _ Notifier = (*TelegramNotifier)(nil)
