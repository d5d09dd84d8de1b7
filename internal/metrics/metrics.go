// Package metrics exposes scrape counters through Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Day outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeEmpty     = "empty"
	OutcomeExhausted = "exhausted"
	OutcomeFailed    = "failed"
)

// Row results.
const (
	RowKept     = "kept"
	RowFiltered = "filtered"
	RowSkipped  = "skipped"
)

// Detail sources.
const (
	DetailReused  = "reused"
	DetailFetched = "fetched"
	DetailFailed  = "failed"
)

// Recorder owns the collectors of one process. A nil Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	days              *prometheus.CounterVec
	rows              *prometheus.CounterVec
	details           *prometheus.CounterVec
	unrecognizedTimes prometheus.Counter
	replacements      prometheus.Counter
	newRecords        prometheus.Counter
	dayDuration       prometheus.Histogram
	lastPersist       prometheus.Gauge
}

// New registers the scraper collectors on a private registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		days: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ffcal",
			Name:      "days_total",
			Help:      "Calendar days processed by outcome",
		}, []string{"outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ffcal",
			Name:      "rows_total",
			Help:      "Calendar rows seen by result",
		}, []string{"result"}),
		details: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ffcal",
			Name:      "details_total",
			Help:      "Detail blocks resolved by source",
		}, []string{"source"}),
		unrecognizedTimes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ffcal",
			Name:      "unrecognized_times_total",
			Help:      "Rows whose time text could not be decoded",
		}),
		replacements: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ffcal",
			Name:      "renderer_replacements_total",
			Help:      "Browser sessions replaced after a transient failure",
		}),
		newRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ffcal",
			Name:      "new_records_total",
			Help:      "Events added to the dataset",
		}),
		dayDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ffcal",
			Name:      "day_duration_seconds",
			Help:      "Time spent scraping one calendar day",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		lastPersist: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ffcal",
			Name:      "last_persist_timestamp_seconds",
			Help:      "Unix time of the last successful persist",
		}),
	}
	r.registry.MustRegister(r.days, r.rows, r.details, r.unrecognizedTimes, r.replacements, r.newRecords, r.dayDuration, r.lastPersist)
	return r
}

// Registry exposes the underlying registry for HTTP handlers and pushes.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Day(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.days.WithLabelValues(outcome).Inc()
	r.dayDuration.Observe(took.Seconds())
}

func (r *Recorder) Row(result string) {
	if r == nil {
		return
	}
	r.rows.WithLabelValues(result).Inc()
}

func (r *Recorder) Detail(source string) {
	if r == nil {
		return
	}
	r.details.WithLabelValues(source).Inc()
}

func (r *Recorder) UnrecognizedTime() {
	if r == nil {
		return
	}
	r.unrecognizedTimes.Inc()
}

func (r *Recorder) Replacement() {
	if r == nil {
		return
	}
	r.replacements.Inc()
}

func (r *Recorder) Persisted(added int, at time.Time) {
	if r == nil {
		return
	}
	r.newRecords.Add(float64(added))
	r.lastPersist.Set(float64(at.Unix()))
}

// Push sends the current values to a Prometheus Pushgateway.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	if r == nil || url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
