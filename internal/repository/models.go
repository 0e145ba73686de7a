package repository

import (
	"time"

	"github.com/kursadbilgin/tutor-notifier/internal/domain"
	"gorm.io/datatypes"
)

// NotificationModel is the persistence model for the notifications table.
type NotificationModel struct {
	ID           string                                     `gorm:"type:uuid;primaryKey"`
	UserID       *string                                    `gorm:"type:varchar(64)"`
	Channel      domain.Channel                             `gorm:"type:varchar(10);not null"`
	TemplateName string                                     `gorm:"type:varchar(100);not null"`
	Recipient    string                                     `gorm:"type:varchar(255);not null"`
	Content      datatypes.JSONType[domain.RenderedMessage] `gorm:"type:jsonb;not null"`
	Status       domain.Status                              `gorm:"type:varchar(10);not null"`
	SentAt       *time.Time                                 `gorm:"type:timestamptz"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

// NotificationAttemptModel is the persistence model for notification_attempts.
type NotificationAttemptModel struct {
	ID                string                `gorm:"type:uuid;primaryKey"`
	NotificationID    string                `gorm:"type:uuid;not null"`
	AttemptNumber     int                   `gorm:"not null"`
	Source            domain.AttemptSource  `gorm:"type:varchar(16);not null"`
	Outcome           domain.AttemptOutcome `gorm:"type:varchar(16);not null"`
	StatusCode        *int                  `gorm:"type:int"`
	ProviderMessageID *string               `gorm:"type:varchar(255)"`
	Error             *string               `gorm:"type:text"`
	CreatedAt         time.Time
}

func (NotificationAttemptModel) TableName() string {
	return "notification_attempts"
}

// JobRunModel is the persistence model for job_runs.
type JobRunModel struct {
	ID         string              `gorm:"type:uuid;primaryKey"`
	Job        string              `gorm:"type:varchar(64);not null"`
	Total      int                 `gorm:"not null"`
	Succeeded  int                 `gorm:"not null"`
	Failed     int                 `gorm:"not null"`
	Status     domain.JobRunStatus `gorm:"type:varchar(20);not null"`
	StartedAt  time.Time           `gorm:"type:timestamptz;not null"`
	FinishedAt *time.Time          `gorm:"type:timestamptz"`
}

func (JobRunModel) TableName() string {
	return "job_runs"
}

// UserModel is the subset of the marketplace users table read for recipient
// resolution.
type UserModel struct {
	ID           string `gorm:"type:varchar(64);primaryKey"`
	Name         string `gorm:"type:varchar(255)"`
	Email        string `gorm:"type:varchar(255)"`
	MobileNumber string `gorm:"type:varchar(32)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (UserModel) TableName() string {
	return "users"
}

// SubscriptionModel is the subset of the marketplace subscriptions table used
// by the expiry sweep.
type SubscriptionModel struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	UserID    string    `gorm:"type:varchar(64);not null"`
	PlanName  string    `gorm:"type:varchar(100)"`
	EndDate   time.Time `gorm:"type:timestamptz;not null"`
	IsActive  bool      `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (SubscriptionModel) TableName() string {
	return "subscriptions"
}

func notificationModelFromDomain(n *domain.Notification) *NotificationModel {
	if n == nil {
		return nil
	}

	return &NotificationModel{
		ID:           n.ID,
		UserID:       n.UserID,
		Channel:      n.Channel,
		TemplateName: n.TemplateName,
		Recipient:    n.Recipient,
		Content:      datatypes.NewJSONType(n.Content),
		Status:       n.Status,
		SentAt:       n.SentAt,
		CreatedAt:    n.CreatedAt,
		UpdatedAt:    n.UpdatedAt,
	}
}

func notificationModelToDomain(m *NotificationModel) *domain.Notification {
	if m == nil {
		return nil
	}

	return &domain.Notification{
		ID:           m.ID,
		UserID:       m.UserID,
		Channel:      m.Channel,
		TemplateName: m.TemplateName,
		Recipient:    m.Recipient,
		Content:      m.Content.Data(),
		Status:       m.Status,
		SentAt:       m.SentAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.NotificationAttempt) *NotificationAttemptModel {
	if a == nil {
		return nil
	}

	return &NotificationAttemptModel{
		ID:                a.ID,
		NotificationID:    a.NotificationID,
		AttemptNumber:     a.AttemptNumber,
		Source:            a.Source,
		Outcome:           a.Outcome,
		StatusCode:        a.StatusCode,
		ProviderMessageID: a.ProviderMessageID,
		Error:             a.Error,
		CreatedAt:         a.CreatedAt,
	}
}

func attemptModelToDomain(m *NotificationAttemptModel) *domain.NotificationAttempt {
	if m == nil {
		return nil
	}

	return &domain.NotificationAttempt{
		ID:                m.ID,
		NotificationID:    m.NotificationID,
		AttemptNumber:     m.AttemptNumber,
		Source:            m.Source,
		Outcome:           m.Outcome,
		StatusCode:        m.StatusCode,
		ProviderMessageID: m.ProviderMessageID,
		Error:             m.Error,
		CreatedAt:         m.CreatedAt,
	}
}

func jobRunModelFromDomain(r *domain.JobRun) *JobRunModel {
	if r == nil {
		return nil
	}

	return &JobRunModel{
		ID:         r.ID,
		Job:        r.Job,
		Total:      r.Total,
		Succeeded:  r.Succeeded,
		Failed:     r.Failed,
		Status:     r.Status,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
	}
}

func jobRunModelToDomain(m *JobRunModel) *domain.JobRun {
	if m == nil {
		return nil
	}

	return &domain.JobRun{
		ID:         m.ID,
		Job:        m.Job,
		Total:      m.Total,
		Succeeded:  m.Succeeded,
		Failed:     m.Failed,
		Status:     m.Status,
		StartedAt:  m.StartedAt,
		FinishedAt: m.FinishedAt,
	}
}
