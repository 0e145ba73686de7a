package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"gorm.io/gorm"
)

// Attempts are read per notification in attempt order and counted to number
// the next one, so a single composite index serves both.
func createNotificationAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.NotificationAttemptModel{}); err != nil {
				return err
			}
			return tx.Exec(`
				CREATE INDEX IF NOT EXISTS idx_notification_attempts_trail
				ON notification_attempts (notification_id, attempt_number, created_at)
			`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable("notification_attempts")
		},
	}
}
