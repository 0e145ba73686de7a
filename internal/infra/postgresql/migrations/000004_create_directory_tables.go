package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/tutor-notifier/internal/repository"
	"gorm.io/gorm"
)

// The users and subscriptions tables belong to the marketplace. AutoMigrate
// only creates them, or missing columns, when absent.
func createDirectoryTables() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000004_create_directory_tables",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.UserModel{}, &repository.SubscriptionModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_subscriptions_active_end ON subscriptions (end_date) WHERE is_active`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Exec(`DROP INDEX IF EXISTS idx_subscriptions_active_end`).Error
		},
	}
}
