package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// All returns the ordered migration list.
func All() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		createNotificationsTable(),
		createNotificationAttemptsTable(),
		createJobRunsTable(),
		createDirectoryTables(),
	}
}

func Migrate(db *gorm.DB) error {
	return gormigrate.New(db, gormigrate.DefaultOptions, All()).Migrate()
}
