package repository

import (
	"context"
	"errors"
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"gorm.io/gorm"
)

// ContactDirectory resolves stored contact addresses for a user.
type ContactDirectory interface {
	GetContactInfo(ctx context.Context, userID string) (*domain.ContactInfo, error)
}

type SubscriptionRepository interface {
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
	ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.ExpiringSubscription, error)
}

type GormContactDirectory struct {
	db *gorm.DB
}

func NewGormContactDirectory(db *gorm.DB) *GormContactDirectory {
	return &GormContactDirectory{db: db}
}

func (r *GormContactDirectory) GetContactInfo(ctx context.Context, userID string) (*domain.ContactInfo, error) {
	var model UserModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &domain.ContactInfo{
		Name:         model.Name,
		Email:        model.Email,
		MobileNumber: model.MobileNumber,
	}, nil
}

type GormSubscriptionRepo struct {
	db *gorm.DB
}

func NewGormSubscriptionRepo(db *gorm.DB) *GormSubscriptionRepo {
	return &GormSubscriptionRepo{db: db}
}

// DeactivateExpired flips is_active off for every active subscription whose
// end date is before now. Running it twice is a no-op.
func (r *GormSubscriptionRepo) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&SubscriptionModel{}).
		Where("is_active = ? AND end_date < ?", true, now).
		Updates(map[string]any{"is_active": false})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

type expiringRow struct {
	ID           string    `gorm:"column:id"`
	UserID       string    `gorm:"column:user_id"`
	PlanName     string    `gorm:"column:plan_name"`
	EndDate      time.Time `gorm:"column:end_date"`
	IsActive     bool      `gorm:"column:is_active"`
	Name         string    `gorm:"column:name"`
	Email        string    `gorm:"column:email"`
	MobileNumber string    `gorm:"column:mobile_number"`
}

// ListExpiringWithin returns active subscriptions ending in (now, now+window].
func (r *GormSubscriptionRepo) ListExpiringWithin(ctx context.Context, now time.Time, window time.Duration) ([]domain.ExpiringSubscription, error) {
	var rows []expiringRow
	err := r.db.WithContext(ctx).
		Table("subscriptions").
		Select("subscriptions.id, subscriptions.user_id, subscriptions.plan_name, subscriptions.end_date, subscriptions.is_active, users.name, users.email, users.mobile_number").
		Joins("JOIN users ON users.id = subscriptions.user_id").
		Where("subscriptions.is_active = ? AND subscriptions.end_date > ? AND subscriptions.end_date <= ?", true, now, now.Add(window)).
		Order("subscriptions.end_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ExpiringSubscription, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.ExpiringSubscription{
			Subscription: domain.Subscription{
				ID:       row.ID,
				UserID:   row.UserID,
				PlanName: row.PlanName,
				EndDate:  row.EndDate,
				IsActive: row.IsActive,
			},
			Contact: domain.ContactInfo{
				Name:         row.Name,
				Email:        row.Email,
				MobileNumber: row.MobileNumber,
			},
		})
	}
	return out, nil
}
