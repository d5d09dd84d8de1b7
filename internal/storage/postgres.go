package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ffcalendar/internal/calendar"
)

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS calendar_events (
        event_key_ts TEXT        NOT NULL,
        currency     TEXT        NOT NULL,
        event_name   TEXT        NOT NULL,
        event_ts     TIMESTAMPTZ NOT NULL,
        impact       TEXT        NOT NULL,
        actual       TEXT        NOT NULL DEFAULT '',
        forecast     TEXT        NOT NULL DEFAULT '',
        previous     TEXT        NOT NULL DEFAULT '',
        detail       TEXT        NOT NULL DEFAULT '',
        updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (event_key_ts, currency, event_name)
    );
    CREATE INDEX IF NOT EXISTS calendar_events_ts_idx ON calendar_events (event_ts);`

	upsertEventSQL = `INSERT INTO calendar_events (
        event_key_ts,
        currency,
        event_name,
        event_ts,
        impact,
        actual,
        forecast,
        previous,
        detail
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (event_key_ts, currency, event_name) DO UPDATE
    SET
        event_ts   = EXCLUDED.event_ts,
        impact     = EXCLUDED.impact,
        actual     = EXCLUDED.actual,
        forecast   = EXCLUDED.forecast,
        previous   = EXCLUDED.previous,
        detail     = CASE WHEN EXCLUDED.detail <> '' THEN EXCLUDED.detail ELSE calendar_events.detail END,
        updated_at = now();`

	selectEventsSQL = `SELECT
        event_key_ts,
        currency,
        event_name,
        impact,
        actual,
        forecast,
        previous,
        detail
    FROM calendar_events`

	listAllEventsSQL     = selectEventsSQL + ` ORDER BY event_ts, currency, event_name;`
	listEventsBetweenSQL = selectEventsSQL + `
    WHERE event_ts >= $1
      AND event_ts < $2
    ORDER BY event_ts, currency, event_name;`

	truncateEventsSQL = `TRUNCATE calendar_events;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// PostgresStore keeps the dataset in PostgreSQL. Rows are upserted on the
// identity key, so concurrent writers from other processes cannot duplicate events.
type PostgresStore struct {
	pool *pgxpool.Pool

	// persisted mirrors what the table holds for rows this store has seen,
	// so Persist only ships changed rows.
	persisted map[calendar.Key]calendar.Event
	unlock    func()
}

// NewPostgresStore wires a pgx pool into a PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, persisted: make(map[calendar.Key]calendar.Event)}
}

// Close releases the advisory lock and the pool.
func (s *PostgresStore) Close() {
	if s == nil {
		return
	}
	if s.unlock != nil {
		s.unlock()
		s.unlock = nil
	}
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the events table when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Lock takes a session advisory lock held until Close.
func (s *PostgresStore) Lock(ctx context.Context, key int64) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return false, nil
	}

	s.unlock = func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// best effort; the lock dies with the session anyway
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return true, nil
}

// Load reads the whole table in chronological order.
func (s *PostgresStore) Load(ctx context.Context) ([]calendar.Event, error) {
	events, err := s.query(ctx, listAllEventsSQL)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}
	for _, ev := range events {
		s.persisted[ev.Key()] = ev
	}
	return events, nil
}

// ListBetween lists events within a time window.
func (s *PostgresStore) ListBetween(ctx context.Context, from, to time.Time) ([]calendar.Event, error) {
	events, err := s.query(ctx, listEventsBetweenSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("list events between: %w", err)
	}
	return events, nil
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]calendar.Event, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]calendar.Event, 0)
	for rows.Next() {
		ev, scanErr := scanEvent(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		events = append(events, ev)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return events, nil
}

// Merge applies the keyed last-write-wins policy of calendar.Merge.
func (s *PostgresStore) Merge(existing, incoming []calendar.Event) []calendar.Event {
	return calendar.Merge(existing, incoming)
}

// Persist upserts rows that changed since the last persist in one transaction.
func (s *PostgresStore) Persist(ctx context.Context, events []calendar.Event) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	changed := changedEvents(s.persisted, events)
	if len(changed) == 0 {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin persist: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, ev := range changed {
		key := ev.Key()
		batch.Queue(upsertEventSQL,
			key.Timestamp,
			key.Currency,
			key.Name,
			ev.Timestamp,
			ev.Impact.String(),
			ev.Actual,
			ev.Forecast,
			ev.Previous,
			ev.Detail,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for range changed {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("upsert event: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit persist: %w", err)
	}

	for _, ev := range changed {
		s.persisted[ev.Key()] = ev
	}
	return nil
}

// Reset empties the table.
func (s *PostgresStore) Reset(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, truncateEventsSQL); err != nil {
		return fmt.Errorf("truncate events: %w", err)
	}
	s.persisted = make(map[calendar.Key]calendar.Event)
	return nil
}

func changedEvents(persisted map[calendar.Key]calendar.Event, events []calendar.Event) []calendar.Event {
	changed := make([]calendar.Event, 0)
	for _, ev := range events {
		prev, ok := persisted[ev.Key()]
		if ok && sameRow(prev, ev) {
			continue
		}
		changed = append(changed, ev)
	}
	return changed
}

func sameRow(a, b calendar.Event) bool {
	return a.Timestamp.Equal(b.Timestamp) &&
		a.Impact == b.Impact &&
		a.Actual == b.Actual &&
		a.Forecast == b.Forecast &&
		a.Previous == b.Previous &&
		a.Detail == b.Detail
}

func scanEvent(rows pgx.Rows) (calendar.Event, error) {
	var (
		keyTS    string
		currency string
		name     string
		impact   string
		actual   string
		forecast string
		previous string
		detail   string
	)

	if err := rows.Scan(
		&keyTS,
		&currency,
		&name,
		&impact,
		&actual,
		&forecast,
		&previous,
		&detail,
	); err != nil {
		return calendar.Event{}, err
	}

	// The key text keeps the original zone offset that TIMESTAMPTZ drops.
	ts, err := time.Parse(time.RFC3339, keyTS)
	if err != nil {
		return calendar.Event{}, fmt.Errorf("parse event timestamp: %w", err)
	}

	return calendar.Event{
		Timestamp: ts,
		Currency:  currency,
		Impact:    calendar.ParseImpact(impact),
		Name:      name,
		Actual:    actual,
		Forecast:  forecast,
		Previous:  previous,
		Detail:    detail,
	}, nil
}

var _ Store = (*PostgresStore)(nil)
var _ RangeReader = (*PostgresStore)(nil)
var _ Resetter = (*PostgresStore)(nil)
