package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"gorm.io/gorm"
)

// AttemptRepository is the append-only audit trail of provider calls.
type AttemptRepository interface {
	Create(ctx context.Context, a *domain.NotificationAttempt) error
	GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error)
	CountByNotificationID(ctx context.Context, notificationID string) (int64, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

// Create appends an attempt, filling ID and CreatedAt when unset.
func (r *GormAttemptRepo) Create(ctx context.Context, a *domain.NotificationAttempt) error {
	if a == nil || strings.TrimSpace(a.NotificationID) == "" {
		return fmt.Errorf("%w: attempt requires a notification id", domain.ErrValidation)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if err := r.db.WithContext(ctx).Create(attemptModelFromDomain(a)).Error; err != nil {
		return fmt.Errorf("insert attempt %d for %s: %w", a.AttemptNumber, a.NotificationID, err)
	}
	return nil
}

func (r *GormAttemptRepo) GetByNotificationID(ctx context.Context, notificationID string) ([]domain.NotificationAttempt, error) {
	var models []NotificationAttemptModel
	if err := r.forNotification(ctx, notificationID).
		Order("attempt_number ASC").
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}

	attempts := make([]domain.NotificationAttempt, len(models))
	for i := range models {
		attempts[i] = *attemptModelToDomain(&models[i])
	}
	return attempts, nil
}

func (r *GormAttemptRepo) CountByNotificationID(ctx context.Context, notificationID string) (int64, error) {
	var count int64
	err := r.forNotification(ctx, notificationID).Count(&count).Error
	return count, err
}

func (r *GormAttemptRepo) forNotification(ctx context.Context, notificationID string) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&NotificationAttemptModel{}).
		Where("notification_id = ?", notificationID)
}
