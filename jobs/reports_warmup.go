package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/pharmadist/pharmadist-erp/internal/jobs"
	"github.com/pharmadist/pharmadist-erp/internal/reports"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// ReportBuilder is the slice of the reports service the warm-up touches.
type ReportBuilder interface {
	TrialBalance(ctx context.Context, filter reports.TrialBalanceFilter) (reports.TrialBalance, error)
	ProfitAndLoss(ctx context.Context, window reports.DateRange) (reports.ProfitAndLoss, error)
	BalanceSheet(ctx context.Context, asOf *time.Time) (reports.BalanceSheet, error)
	Aging(ctx context.Context, asOf *time.Time) (reports.AgingReport, error)
}

// ReportsWarmupJob builds the month's reports so the first reader hits cache.
type ReportsWarmupJob struct {
	Reports ReportBuilder
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
	clock   func() time.Time
}

// NewReportsWarmupJob wires dependencies for the warmup handler.
func NewReportsWarmupJob(builder ReportBuilder, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReportsWarmupJob {
	return &ReportsWarmupJob{
		Reports: builder,
		Logger:  logger,
		Metrics: metrics,
		Timeout: 2 * time.Minute,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes TaskReportsWarmup tasks.
func (j *ReportsWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Reports == nil {
		return errors.New("reports warmup: handler not configured")
	}
	var payload ReportsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	start, end, err := payload.Window(j.now())
	if err != nil {
		j.logger().Warn("reports warmup payload rejected", slog.Any("error", err))
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReportsWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("month", start.Format("2006-01")))
	logger.Info("starting reports warmup")
	began := time.Now()

	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	window := reports.DateRange{Start: &start, End: &end}
	asOf := end

	g, gctx := errgroup.WithContext(ctx)
	warm := func(name string, build func(context.Context) error) {
		g.Go(func() error {
			if err := build(gctx); err != nil {
				logger.Error("warm report", slog.String("report", name), slog.Any("error", err))
				return err
			}
			j.metrics().AddWarmed(name)
			return nil
		})
	}
	warm(reports.ReportTrialBalance, func(ctx context.Context) error {
		_, err := j.Reports.TrialBalance(ctx, reports.TrialBalanceFilter{DateRange: window})
		return err
	})
	warm(reports.ReportProfitLoss, func(ctx context.Context) error {
		_, err := j.Reports.ProfitAndLoss(ctx, window)
		return err
	})
	// Balance sheet and aging are requested without asOf by default, so the
	// open-ended position and today's aging are always warmed. A past month
	// also gets its month-end snapshot.
	warm(reports.ReportBalanceSheet, func(ctx context.Context) error {
		_, err := j.Reports.BalanceSheet(ctx, nil)
		return err
	})
	warm(reports.ReportAging, func(ctx context.Context) error {
		_, err := j.Reports.Aging(ctx, nil)
		return err
	})
	if payload.Month != "" && asOf.Before(j.now()) {
		warm(reports.ReportBalanceSheet, func(ctx context.Context) error {
			_, err := j.Reports.BalanceSheet(ctx, &asOf)
			return err
		})
		warm(reports.ReportAging, func(ctx context.Context) error {
			_, err := j.Reports.Aging(ctx, &asOf)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("completed reports warmup", slog.Duration("duration", time.Since(began)))
	return nil
}

func (j *ReportsWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}

func (j *ReportsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *ReportsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
