package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ErrJobRunning is returned when another run of the job holds its lease.
var ErrJobRunning = fmt.Errorf("%w: job already running", domain.ErrConflict)

// JobLocker hands out cross-instance leases for batch jobs. held is true
// when another instance owns the lease.
type JobLocker interface {
	TryLock(ctx context.Context, job string) (release func(context.Context) error, held bool, err error)
}

// JobFunc is one run of a batch job.
type JobFunc func(ctx context.Context) error

// JobScheduler triggers batch jobs on cron schedules. A job never overlaps
// itself in this process, and the locker keeps other instances out.
type JobScheduler struct {
	cron   *cron.Cron
	locker JobLocker
	logger *zap.Logger

	mu      sync.RWMutex
	baseCtx context.Context
}

func NewJobScheduler(locker JobLocker, logger *zap.Logger) *JobScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLog := cronLogger{logger: logger.Sugar()}
	return &JobScheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
			cron.WithLogger(cronLog),
		),
		locker:  locker,
		logger:  logger,
		baseCtx: context.Background(),
	}
}

// Register schedules job. spec accepts standard five-field expressions and
// descriptors such as "@every 5m" or "@daily".
func (s *JobScheduler) Register(job string, spec string, run JobFunc) error {
	job = strings.TrimSpace(job)
	if job == "" {
		return fmt.Errorf("job name is required")
	}
	if run == nil {
		return fmt.Errorf("job %s: run func is required", job)
	}

	_, err := s.cron.AddFunc(spec, func() {
		if err := s.RunLocked(s.context(), job, run); err != nil {
			if errors.Is(err, ErrJobRunning) {
				s.logger.Info("job skipped, lease held elsewhere", zap.String("job", job))
				return
			}
			s.logger.Error("scheduled job failed", zap.String("job", job), zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("job %s: invalid schedule %q: %w", job, spec, err)
	}

	s.logger.Info("job registered", zap.String("job", job), zap.String("schedule", spec))
	return nil
}

// RunLocked runs job once under its lease. Manual triggers go through here
// so they respect the same exclusion as scheduled runs.
func (s *JobScheduler) RunLocked(ctx context.Context, job string, run JobFunc) error {
	if s.locker == nil {
		return run(ctx)
	}

	release, held, err := s.locker.TryLock(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to acquire lease for %s: %w", job, err)
	}
	if held {
		return ErrJobRunning
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), auditTimeout)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			s.logger.Warn("failed to release job lease", zap.String("job", job), zap.Error(err))
		}
	}()

	return run(ctx)
}

// Start runs the cron loop until ctx ends, then waits for running jobs.
func (s *JobScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.cron.Entries())))

	<-ctx.Done()

	<-s.cron.Stop().Done()
	s.logger.Info("job scheduler stopped")
	return nil
}

func (s *JobScheduler) context() context.Context {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseCtx
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
