package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"github.com/kursadbilgin/tutor-notifier/internal/service"
)

type Reconciler interface {
	ReconcilePending(ctx context.Context) (service.ReconcileReport, error)
}

type ExpirySweeper interface {
	SweepExpiring(ctx context.Context) (service.SweepReport, error)
}

// JobRunner runs a job under its cross-instance lease.
type JobRunner interface {
	RunLocked(ctx context.Context, job string, run service.JobFunc) error
}

type JobRunReader interface {
	GetLatest(ctx context.Context, job string) (*domain.JobRun, error)
}

type JobHandler struct {
	reconciler Reconciler
	sweeper    ExpirySweeper
	runner     JobRunner
	runs       JobRunReader
}

func RegisterJobRoutes(
	router fiber.Router,
	reconciler Reconciler,
	sweeper ExpirySweeper,
	runner JobRunner,
	runs JobRunReader,
) error {
	if reconciler == nil || sweeper == nil || runner == nil || runs == nil {
		return fmt.Errorf("job handler dependencies are required")
	}
	h := &JobHandler{reconciler: reconciler, sweeper: sweeper, runner: runner, runs: runs}

	v1 := router.Group("/v1")
	v1.Post("/jobs/reconcile", h.RunReconcile)
	v1.Post("/jobs/expiry-sweep", h.RunExpirySweep)
	v1.Get("/jobs/:job/latest", h.GetLatestRun)

	return nil
}

type jobRunResponse struct {
	ID         string     `json:"id"`
	Job        string     `json:"job"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (h *JobHandler) RunReconcile(c *fiber.Ctx) error {
	var report service.ReconcileReport
	err := h.runner.RunLocked(c.UserContext(), domain.JobReconcilePending, func(ctx context.Context) error {
		var runErr error
		report, runErr = h.reconciler.ReconcilePending(ctx)
		return runErr
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"job":          domain.JobReconcilePending,
		"selected":     report.Selected,
		"sent":         report.Sent,
		"stillPending": report.StillPending,
		"errors":       report.Errors,
	})
}

func (h *JobHandler) RunExpirySweep(c *fiber.Ctx) error {
	var report service.SweepReport
	err := h.runner.RunLocked(c.UserContext(), domain.JobExpirySweep, func(ctx context.Context) error {
		var runErr error
		report, runErr = h.sweeper.SweepExpiring(ctx)
		return runErr
	})
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"job":         domain.JobExpirySweep,
		"deactivated": report.Deactivated,
		"expiring":    report.Expiring,
		"notified":    report.Notified,
		"failed":      report.Failed,
	})
}

func (h *JobHandler) GetLatestRun(c *fiber.Ctx) error {
	job := strings.TrimSpace(c.Params("job"))
	if job != domain.JobReconcilePending && job != domain.JobExpirySweep {
		return fmt.Errorf("%w: unknown job %q", domain.ErrNotFound, job)
	}

	run, err := h.runs.GetLatest(c.UserContext(), job)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(jobRunResponse{
		ID:         run.ID,
		Job:        run.Job,
		Status:     run.Status.String(),
		Total:      run.Total,
		Succeeded:  run.Succeeded,
		Failed:     run.Failed,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
	})
}
