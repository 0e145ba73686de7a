package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"gorm.io/gorm"
)

const (
	defaultPageSize    = 50
	maxPageSize        = 100
	defaultPendingPage = 200
)

type ListParams struct {
	Status   *domain.Status
	Channel  *domain.Channel
	UserID   *string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// PendingQuery selects one page of pending notifications ordered by id.
// AfterID is the last id of the previous page.
type PendingQuery struct {
	CreatedBefore time.Time
	AfterID       string
	Limit         int
}

type StatusCount struct {
	Status domain.Status `gorm:"column:status"`
	Count  int64         `gorm:"column:count"`
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)
	ListPending(ctx context.Context, q PendingQuery) ([]domain.Notification, error)
	MarkSent(ctx context.Context, id string, sentAt time.Time) error
	MarkFailed(ctx context.Context, id string) error
	Requeue(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model := notificationModelFromDomain(n)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		*n = *notificationModelToDomain(model)
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model), nil
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	pageSize = min(pageSize, maxPageSize)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	return notificationsToDomain(models), total, nil
}

func (r *GormNotificationRepo) ListPending(ctx context.Context, q PendingQuery) ([]domain.Notification, error) {
	limit := q.Limit
	if limit < 1 {
		limit = defaultPendingPage
	}

	query := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusPending)
	if !q.CreatedBefore.IsZero() {
		query = query.Where("created_at <= ?", q.CreatedBefore)
	}
	if q.AfterID != "" {
		query = query.Where("id > ?", q.AfterID)
	}

	var models []NotificationModel
	err := query.
		Order("id ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	return notificationsToDomain(models), nil
}

// MarkSent transitions a pending record to sent. Any other current status
// yields ErrConflict.
func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string, sentAt time.Time) error {
	return r.transition(ctx, id, domain.StatusPending, map[string]any{
		"status":  domain.StatusSent,
		"sent_at": sentAt,
	})
}

func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.StatusPending, map[string]any{
		"status": domain.StatusFailed,
	})
}

func (r *GormNotificationRepo) Requeue(ctx context.Context, id string) error {
	return r.transition(ctx, id, domain.StatusFailed, map[string]any{
		"status": domain.StatusPending,
	})
}

func (r *GormNotificationRepo) transition(ctx context.Context, id string, from domain.Status, values map[string]any) error {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (r *GormNotificationRepo) CountByStatus(ctx context.Context) (map[domain.Status]int64, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func notificationsToDomain(models []NotificationModel) []domain.Notification {
	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		notifications = append(notifications, *notificationModelToDomain(&models[i]))
	}
	return notifications
}
