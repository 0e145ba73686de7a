package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/observability"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"go.uber.org/zap"
)

const auditTimeout = 5 * time.Second

// jobAudit writes job_runs rows. Audit failures are logged and never fail
// the job itself.
type jobAudit struct {
	runs    repository.JobRunRepository
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func (a *jobAudit) start(ctx context.Context, job string) *domain.JobRun {
	run := &domain.JobRun{
		ID:        uuid.NewString(),
		Job:       job,
		Status:    domain.JobRunStatusRunning,
		StartedAt: a.now().UTC(),
	}
	if err := a.runs.Create(ctx, run); err != nil {
		a.logger.Error("failed to record job run start",
			zap.String("job", job),
			zap.String("jobRunId", run.ID),
			zap.Error(err),
		)
	}
	return run
}

func (a *jobAudit) finish(ctx context.Context, run *domain.JobRun) {
	finishedAt := a.now().UTC()
	run.FinishedAt = &finishedAt
	run.Status = run.FinalStatus()

	a.metrics.IncJobRun(run.Job, run.Status)

	if err := a.runs.Finish(ctx, run); err != nil {
		a.logger.Error("failed to record job run result",
			zap.String("job", run.Job),
			zap.String("jobRunId", run.ID),
			zap.Error(err),
		)
		return
	}

	a.logger.Info("job run finished",
		zap.String("job", run.Job),
		zap.String("jobRunId", run.ID),
		zap.String("status", run.Status.String()),
		zap.Int("total", run.Total),
		zap.Int("succeeded", run.Succeeded),
		zap.Int("failed", run.Failed),
	)
}
