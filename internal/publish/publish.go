// Package publish announces newly captured calendar events on NATS.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"ffcalendar/internal/calendar"
)

// Publisher receives the events a run added to the dataset.
type Publisher interface {
	Publish(ctx context.Context, events []calendar.Event) error
}

// Conn is the subset of *nats.Conn used for publishing.
type Conn interface {
	Publish(subject string, data []byte) error
	Flush() error
	Close()
}

// Message is the wire form of one event.
type Message struct {
	Key       string          `json:"key"`
	Timestamp time.Time       `json:"timestamp"`
	Currency  string          `json:"currency"`
	Impact    string          `json:"impact"`
	Name      string          `json:"name"`
	Actual    string          `json:"actual,omitempty"`
	Forecast  string          `json:"forecast,omitempty"`
	Previous  string          `json:"previous,omitempty"`
	Detail    json.RawMessage `json:"detail,omitempty"`
}

// NewMessage converts an event into its wire form.
func NewMessage(ev calendar.Event) Message {
	key := ev.Key()
	msg := Message{
		Key:       fmt.Sprintf("%s|%s|%s", key.Timestamp, key.Currency, key.Name),
		Timestamp: ev.Timestamp,
		Currency:  ev.Currency,
		Impact:    ev.Impact.String(),
		Name:      ev.Name,
		Actual:    ev.Actual,
		Forecast:  ev.Forecast,
		Previous:  ev.Previous,
	}
	if ev.Detail != "" && json.Valid([]byte(ev.Detail)) {
		msg.Detail = json.RawMessage(ev.Detail)
	}
	return msg
}

// NATSPublisher publishes one message per event on a fixed subject.
type NATSPublisher struct {
	conn    Conn
	subject string
	logger  zerolog.Logger
}

// Connect dials url and returns a publisher on subject.
func Connect(url, subject string, logger zerolog.Logger) (*NATSPublisher, error) {
	log := logger.With().Str("component", "publish_nats").Logger()
	nc, err := nats.Connect(url,
		nats.Name("ffcal"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
		nats.Timeout(10*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(nc, subject, logger), nil
}

// NewNATSPublisher wraps an existing connection.
func NewNATSPublisher(conn Conn, subject string, logger zerolog.Logger) *NATSPublisher {
	return &NATSPublisher{
		conn:    conn,
		subject: subject,
		logger:  logger.With().Str("component", "publish_nats").Logger(),
	}
}

// Publish sends every event and flushes once.
func (p *NATSPublisher) Publish(ctx context.Context, events []calendar.Event) error {
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(NewMessage(ev))
		if err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
		if err := p.conn.Publish(p.subject, data); err != nil {
			return fmt.Errorf("publish %s: %w", p.subject, err)
		}
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("flush nats: %w", err)
	}
	p.logger.Debug().Int("events", len(events)).Str("subject", p.subject).Msg("events published")
	return nil
}

// Close drains nothing; it closes the connection.
func (p *NATSPublisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

var _ Publisher = (*NATSPublisher)(nil)
