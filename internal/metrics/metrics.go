// Package metrics exposes Prometheus collectors for scrape runs and pushes
// them to a Pushgateway when the run is over.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Page status labels.
const (
	PageOK     = "ok"
	PageFailed = "failed"
)

var (
	registry *prometheus.Registry

	pagesTotal             *prometheus.CounterVec
	recordsTotal           prometheus.Counter
	containersSkippedTotal prometheus.Counter
	rowsPersistedTotal     prometheus.Counter
	runsTotal              *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		registry = prometheus.NewRegistry()
		factory := promauto.With(registry)

		pagesTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogscraper_pages_total",
				Help: "Total number of archive pages requested, labeled by status.",
			},
			[]string{"status"},
		)

		recordsTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blogscraper_records_total",
				Help: "Total number of posts extracted into records.",
			},
		)

		containersSkippedTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blogscraper_containers_skipped_total",
				Help: "Total number of post containers skipped for a missing required field.",
			},
		)

		rowsPersistedTotal = factory.NewCounter(
			prometheus.CounterOpts{
				Name: "blogscraper_rows_persisted_total",
				Help: "Total number of rows committed to the database.",
			},
		)

		runsTotal = factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blogscraper_runs_total",
				Help: "Total number of scrape runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)
	})
}

// Registry returns the registry holding every collector of this package.
func Registry() *prometheus.Registry {
	Init()
	return registry
}

// ObservePage counts one page request.
func ObservePage(status string) {
	Init()
	pagesTotal.WithLabelValues(status).Inc()
}

// ObserveExtracted records the outcome of extracting one page.
func ObserveExtracted(records, skipped int) {
	Init()
	if records > 0 {
		recordsTotal.Add(float64(records))
	}
	if skipped > 0 {
		containersSkippedTotal.Add(float64(skipped))
	}
}

// ObservePersisted records committed rows.
func ObservePersisted(rows int) {
	Init()
	if rows > 0 {
		rowsPersistedTotal.Add(float64(rows))
	}
}

// ObserveRun increments the run counter for the given outcome.
func ObserveRun(outcome string) {
	Init()
	runsTotal.WithLabelValues(outcome).Inc()
}

// Push sends the current values to a Pushgateway, grouped by run ID.
func Push(ctx context.Context, gatewayURL, job, runID string) error {
	if strings.TrimSpace(gatewayURL) == "" {
		return errors.New("pushgateway url is required")
	}
	if job == "" {
		job = "blogscraper"
	}
	pusher := push.New(gatewayURL, job).Gatherer(Registry())
	if runID != "" {
		pusher = pusher.Grouping("run_id", runID)
	}
	if err := pusher.PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
