package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"gorm.io/gorm"
)

type JobRunRepository interface {
	Create(ctx context.Context, run *domain.JobRun) error
	Finish(ctx context.Context, run *domain.JobRun) error
	GetLatest(ctx context.Context, job string) (*domain.JobRun, error)
}

type GormJobRunRepo struct {
	db *gorm.DB
}

func NewGormJobRunRepo(db *gorm.DB) *GormJobRunRepo {
	return &GormJobRunRepo{db: db}
}

func (r *GormJobRunRepo) Create(ctx context.Context, run *domain.JobRun) error {
	model := jobRunModelFromDomain(run)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if run != nil {
		*run = *jobRunModelToDomain(model)
	}
	return nil
}

// Finish stores the final counters and status of a run.
func (r *GormJobRunRepo) Finish(ctx context.Context, run *domain.JobRun) error {
	if run == nil {
		return domain.ErrValidation
	}

	finishedAt := time.Now().UTC()
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	result := r.db.WithContext(ctx).
		Model(&JobRunModel{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"total":       run.Total,
			"succeeded":   run.Succeeded,
			"failed":      run.Failed,
			"status":      run.Status,
			"finished_at": finishedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	run.FinishedAt = &finishedAt
	return nil
}

func (r *GormJobRunRepo) GetLatest(ctx context.Context, job string) (*domain.JobRun, error) {
	var model JobRunModel
	err := r.db.WithContext(ctx).
		Where("job = ?", job).
		Order("started_at DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return jobRunModelToDomain(&model), nil
}
