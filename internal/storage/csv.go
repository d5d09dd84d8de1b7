package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"ffcalendar/internal/calendar"
)

var csvHeader = []string{"DateTime", "Currency", "Impact", "Event", "Actual", "Forecast", "Previous", "Detail"}

// CSVStore keeps the dataset in a single CSV file.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store backed by path. The file is created on first persist.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file.
func (s *CSVStore) Path() string {
	return s.path
}

// Load reads the dataset; a missing file is an empty dataset.
func (s *CSVStore) Load(ctx context.Context) ([]calendar.Event, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []calendar.Event{}, nil
		}
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	return readEvents(file)
}

func readEvents(r io.Reader) ([]calendar.Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return []calendar.Event{}, nil
		}
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected dataset header %q at column %d", header[i], i+1)
		}
	}

	events := make([]calendar.Event, 0)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, record[0])
		if err != nil {
			return nil, fmt.Errorf("dataset line %d: parse DateTime: %w", line, err)
		}
		events = append(events, calendar.Event{
			Timestamp: ts,
			Currency:  record[1],
			Impact:    calendar.ParseImpact(record[2]),
			Name:      record[3],
			Actual:    record[4],
			Forecast:  record[5],
			Previous:  record[6],
			Detail:    record[7],
		})
	}
	return events, nil
}

// Merge applies the keyed last-write-wins policy of calendar.Merge.
func (s *CSVStore) Merge(existing, incoming []calendar.Event) []calendar.Event {
	return calendar.Merge(existing, incoming)
}

// Persist writes a sibling temp file and renames it over the dataset so an
// interrupted write never truncates the previous version.
func (s *CSVStore) Persist(ctx context.Context, events []calendar.Event) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dataset dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp dataset: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := writeEvents(tmp, events); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dataset: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace dataset: %w", err)
	}
	committed = true
	return nil
}

func writeEvents(w io.Writer, events []calendar.Event) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write dataset header: %w", err)
	}
	for _, ev := range events {
		record := []string{
			calendar.FormatTimestamp(ev.Timestamp),
			ev.Currency,
			ev.Impact.String(),
			ev.Name,
			ev.Actual,
			ev.Forecast,
			ev.Previous,
			ev.Detail,
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Reset deletes the dataset file.
func (s *CSVStore) Reset(ctx context.Context) error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove dataset: %w", err)
	}
	return nil
}

// Close is a no-op for files.
func (s *CSVStore) Close() {}

var _ Store = (*CSVStore)(nil)
var _ Resetter = (*CSVStore)(nil)
