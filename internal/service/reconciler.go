package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/provider"
	"github.com/kursadbilgin/tutor-notifier/internal/ratelimit"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"go.uber.org/zap"
)

const (
	defaultReconcileMinAge   = time.Minute
	defaultReconcilePageSize = 200
)

type ReconcilerConfig struct {
	// MinAge keeps records that may still be mid-dispatch out of the sweep.
	MinAge   time.Duration
	PageSize int
}

// ReconcileReport summarizes one sweep over pending notifications.
type ReconcileReport struct {
	Selected     int
	Sent         int
	StillPending int
	Errors       int
}

// Reconciler resends notifications left in pending. It is the only automatic
// retry path: failed records are never read, and a record that keeps failing
// is retried on every sweep.
type Reconciler struct {
	notifications repository.NotificationRepository
	delivery      *deliverer
	audit         *jobAudit
	logger        *zap.Logger
	minAge        time.Duration
	pageSize      int
	now           func() time.Time
}

func NewReconciler(
	notifications repository.NotificationRepository,
	attempts repository.AttemptRepository,
	jobRuns repository.JobRunRepository,
	senders provider.Senders,
	cfg ReconcilerConfig,
	logger *zap.Logger,
) (*Reconciler, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if jobRuns == nil {
		return nil, fmt.Errorf("job run repository is required")
	}
	if len(senders) == 0 {
		return nil, fmt.Errorf("at least one sender is required")
	}
	if cfg.MinAge <= 0 {
		cfg.MinAge = defaultReconcileMinAge
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = defaultReconcilePageSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reconciler{
		notifications: notifications,
		delivery: &deliverer{
			senders:  senders,
			attempts: attempts,
			logger:   logger,
			now:      time.Now,
		},
		audit: &jobAudit{
			runs:   jobRuns,
			logger: logger,
			now:    time.Now,
		},
		logger:   logger,
		minAge:   cfg.MinAge,
		pageSize: cfg.PageSize,
		now:      time.Now,
	}, nil
}

// SetMetrics records retry outcomes and job runs on metrics.
func (r *Reconciler) SetMetrics(metrics *observability.Metrics) {
	if r == nil {
		return
	}
	r.delivery.metrics = metrics
	r.audit.metrics = metrics
}

// SetRateLimiter throttles retries by channel, sharing the dispatch budget.
func (r *Reconciler) SetRateLimiter(limiter ratelimit.RateLimiter) {
	if r == nil {
		return
	}
	r.delivery.rateLimiter = limiter
}

// ReconcilePending resends every pending notification older than the
// configured minimum age, reusing the persisted content verbatim. Failures on
// one record never abort the sweep. A job run is recorded only when at least
// one record was selected.
func (r *Reconciler) ReconcilePending(ctx context.Context) (ReconcileReport, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		report ReconcileReport
		run    *domain.JobRun
	)
	query := repository.PendingQuery{
		CreatedBefore: r.now().UTC().Add(-r.minAge),
		Limit:         r.pageSize,
	}

	for {
		if err := ctx.Err(); err != nil {
			r.finishRun(run, report)
			return report, err
		}

		page, err := r.notifications.ListPending(ctx, query)
		if err != nil {
			r.finishRun(run, report)
			return report, fmt.Errorf("failed to list pending notifications: %w", err)
		}
		if len(page) == 0 {
			break
		}
		if run == nil {
			run = r.audit.start(ctx, domain.JobReconcilePending)
		}

		for i := range page {
			report.Selected++
			r.reconcileOne(ctx, &page[i], &report)
		}

		query.AfterID = page[len(page)-1].ID
		if len(page) < query.Limit {
			break
		}
	}

	r.finishRun(run, report)
	if report.Selected > 0 {
		r.logger.Info("reconcile sweep completed",
			zap.Int("selected", report.Selected),
			zap.Int("sent", report.Sent),
			zap.Int("stillPending", report.StillPending),
			zap.Int("errors", report.Errors),
		)
	}
	return report, nil
}

func (r *Reconciler) reconcileOne(ctx context.Context, n *domain.Notification, report *ReconcileReport) {
	outcome, err := r.delivery.send(ctx, n, domain.AttemptSourceReconcile)
	if err != nil {
		report.Errors++
		r.delivery.metrics.IncReconciled(observability.ReconcileError)
		r.logger.Error("reconcile send aborted",
			zap.String("notificationId", n.ID),
			zap.String("channel", n.Channel.String()),
			zap.Error(err),
		)
		return
	}

	if !outcome.Completed() {
		report.StillPending++
		r.delivery.metrics.IncReconciled(observability.ReconcileStillPending)
		r.logger.Warn("reconcile send failed, left pending",
			zap.String("notificationId", n.ID),
			zap.String("channel", n.Channel.String()),
			zap.Error(outcome.Err()),
		)
		return
	}

	if err := r.notifications.MarkSent(ctx, n.ID, r.now().UTC()); err != nil {
		report.Errors++
		r.delivery.metrics.IncReconciled(observability.ReconcileError)
		if errors.Is(err, domain.ErrConflict) {
			r.logger.Warn("notification left pending state during reconcile",
				zap.String("notificationId", n.ID),
			)
			return
		}
		r.logger.Error("failed to mark reconciled notification sent",
			zap.String("notificationId", n.ID),
			zap.Error(err),
		)
		return
	}

	report.Sent++
	r.delivery.metrics.IncReconciled(observability.ReconcileSent)
}

// finishRun uses a fresh context so a shutdown still closes the audit row.
func (r *Reconciler) finishRun(run *domain.JobRun, report ReconcileReport) {
	if run == nil {
		return
	}
	run.Total = report.Selected
	run.Succeeded = report.Sent
	run.Failed = report.StillPending + report.Errors

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()
	r.audit.finish(ctx, run)
}
