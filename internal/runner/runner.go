// Package runner wires one scrape run: collect, persist, report.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-archive-scraper/internal/blog"
	"github.com/JakeFAU/blog-archive-scraper/internal/metrics"
)

// Run outcomes, also used as the blogscraper_runs_total label.
const (
	OutcomeOK            = "ok"
	OutcomeEmpty         = "empty"
	OutcomePartial       = "partial"
	OutcomeFetchFailed   = "fetch_failed"
	OutcomePersistFailed = "persist_failed"
)

const reportTimeout = 10 * time.Second

// Collector is the traversal half of a run.
type Collector interface {
	Collect(ctx context.Context, start string) (blog.Result, error)
}

// Config carries the run parameters that do not belong to a component.
type Config struct {
	StartURL string
	// PushgatewayURL enables a metrics push at the end of the run.
	PushgatewayURL string
	MetricsJob     string
}

// Summary describes a finished run. It is logged and published as JSON.
type Summary struct {
	RunID        string    `json:"run_id"`
	StartURL     string    `json:"start_url"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	Pages        int       `json:"pages"`
	Records      int       `json:"records"`
	Skipped      int       `json:"skipped_containers"`
	Persisted    int       `json:"persisted_rows"`
	Outcome      string    `json:"outcome"`
	FetchError   string    `json:"fetch_error,omitempty"`
	PersistError string    `json:"persist_error,omitempty"`
}

// Runner executes a single collect-then-persist pass.
type Runner struct {
	cfg       Config
	collector Collector
	sink      blog.RecordSink
	publisher blog.Publisher
	ids       blog.IDGenerator
	now       func() time.Time
	logger    *zap.Logger
}

// New constructs a Runner. publisher and ids may be nil.
func New(
	cfg Config,
	collector Collector,
	sink blog.RecordSink,
	publisher blog.Publisher,
	ids blog.IDGenerator,
	logger *zap.Logger,
) (*Runner, error) {
	if collector == nil {
		return nil, errors.New("runner requires a collector")
	}
	if sink == nil {
		return nil, errors.New("runner requires a record sink")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:       cfg,
		collector: collector,
		sink:      sink,
		publisher: publisher,
		ids:       ids,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}, nil
}

// Run collects every record reachable from the start URL and persists them
// in one batch. Failures are logged and reflected in the Summary, never
// returned.
func (r *Runner) Run(ctx context.Context) Summary {
	summary := Summary{
		RunID:     r.newRunID(),
		StartURL:  r.cfg.StartURL,
		StartedAt: r.now(),
	}
	ctx, span := otel.Tracer("github.com/JakeFAU/blog-archive-scraper/internal/runner").Start(ctx, "scrape.run")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", summary.RunID), attribute.String("start_url", r.cfg.StartURL))

	logger := r.logger.With(zap.String("run_id", summary.RunID))
	logger.Info("scrape started", zap.String("start_url", r.cfg.StartURL))

	result, err := r.collector.Collect(ctx, r.cfg.StartURL)
	summary.Pages = result.Pages
	summary.Records = len(result.Records)
	summary.Skipped = result.Skipped
	if err != nil {
		summary.FetchError = err.Error()
		logger.Error("collection stopped early",
			zap.Int("records", summary.Records),
			zap.Error(err),
		)
	}

	if len(result.Records) == 0 {
		logger.Info("no records collected; skipping persist")
	} else {
		n, err := r.sink.Persist(ctx, result.Records)
		summary.Persisted = n
		if err != nil {
			summary.PersistError = err.Error()
			logger.Error("persist failed", zap.Int("records", summary.Records), zap.Error(err))
		} else {
			metrics.ObservePersisted(n)
		}
	}

	summary.Outcome = outcomeOf(summary)
	summary.FinishedAt = r.now()
	metrics.ObserveRun(summary.Outcome)
	span.SetAttributes(attribute.String("outcome", summary.Outcome), attribute.Int("records", summary.Records))
	if summary.FetchError != "" || summary.PersistError != "" {
		span.SetStatus(codes.Error, summary.Outcome)
	}

	logger.Info("scrape finished",
		zap.String("outcome", summary.Outcome),
		zap.Int("pages", summary.Pages),
		zap.Int("records", summary.Records),
		zap.Int("skipped", summary.Skipped),
		zap.Int("persisted", summary.Persisted),
		zap.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)

	r.report(ctx, summary, logger)
	return summary
}

func (r *Runner) newRunID() string {
	if r.ids == nil {
		return ""
	}
	id, err := r.ids.NewID()
	if err != nil {
		r.logger.Warn("run id generation failed", zap.Error(err))
		return ""
	}
	return id
}

// report publishes the summary and pushes metrics. Both still happen after
// the run context was canceled.
func (r *Runner) report(ctx context.Context, summary Summary, logger *zap.Logger) {
	if r.publisher == nil && r.cfg.PushgatewayURL == "" {
		return
	}
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if r.publisher != nil {
		id, err := r.publisher.Publish(reportCtx, summary)
		if err != nil {
			logger.Error("publish run summary failed", zap.Error(err))
		} else {
			logger.Debug("published run summary", zap.String("message_id", id))
		}
	}
	if r.cfg.PushgatewayURL != "" {
		if err := metrics.Push(reportCtx, r.cfg.PushgatewayURL, r.cfg.MetricsJob, summary.RunID); err != nil {
			logger.Error("push metrics failed", zap.Error(fmt.Errorf("pushgateway %s: %w", r.cfg.PushgatewayURL, err)))
		}
	}
}

func outcomeOf(s Summary) string {
	switch {
	case s.PersistError != "":
		return OutcomePersistFailed
	case s.FetchError != "" && s.Records == 0:
		return OutcomeFetchFailed
	case s.FetchError != "":
		return OutcomePartial
	case s.Records == 0:
		return OutcomeEmpty
	default:
		return OutcomeOK
	}
}
