package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ffcalendar/internal/calendar"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	flushes  int
	closed   bool
	failWith error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	if c.failWith != nil {
		return c.failWith
	}
	c.subjects = append(c.subjects, subject)
	c.payloads = append(c.payloads, data)
	return nil
}

func (c *fakeConn) Flush() error { c.flushes++; return nil }
func (c *fakeConn) Close()       { c.closed = true }

func sampleEvent() calendar.Event {
	return calendar.Event{
		Timestamp: time.Date(2024, 1, 5, 17, 0, 0, 0, time.FixedZone("+0330", 12600)),
		Currency:  "USD",
		Impact:    calendar.ImpactHigh,
		Name:      "Non-Farm Employment Change",
		Actual:    "216K",
		Forecast:  "170K",
		Detail:    `{"specs":[{"name":"Source","value":"BLS"}]}`,
	}
}

func TestPublishEncodesEvents(t *testing.T) {
	conn := &fakeConn{}
	pub := NewNATSPublisher(conn, "calendar.events", zerolog.Nop())

	require.NoError(t, pub.Publish(context.Background(), []calendar.Event{sampleEvent()}))
	require.Len(t, conn.payloads, 1)
	assert.Equal(t, "calendar.events", conn.subjects[0])
	assert.Equal(t, 1, conn.flushes)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(conn.payloads[0], &msg))
	assert.Equal(t, "2024-01-05T17:00:00+03:30|USD|Non-Farm Employment Change", msg["key"])
	assert.Equal(t, "High", msg["impact"])
	assert.NotContains(t, msg, "previous")
	detail, ok := msg["detail"].(map[string]any)
	require.True(t, ok, "detail is embedded as JSON")
	assert.Contains(t, detail, "specs")
}

func TestPublishNothingSkipsFlush(t *testing.T) {
	conn := &fakeConn{}
	pub := NewNATSPublisher(conn, "s", zerolog.Nop())
	require.NoError(t, pub.Publish(context.Background(), nil))
	assert.Zero(t, conn.flushes)
}

func TestPublishError(t *testing.T) {
	conn := &fakeConn{failWith: errors.New("boom")}
	pub := NewNATSPublisher(conn, "s", zerolog.Nop())
	err := pub.Publish(context.Background(), []calendar.Event{sampleEvent()})
	assert.ErrorContains(t, err, "boom")

	pub.Close()
	assert.True(t, conn.closed)
}
