// Package migrations holds the schema history. Importing it for side
// effects registers every migration with pkg/migration; `foodtruck migrate`
// applies them.
package migrations

import (
	"gorm.io/gorm"

	"github.com/alumbrados-dev/Concessions-Connection-sub000/app/models"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/migration"
	"github.com/alumbrados-dev/Concessions-Connection-sub000/pkg/queue"
)

func init() {
	migration.Register("20260101000000_create_users", tables(&models.User{}))
	migration.Register("20260101000100_create_email_verifications", tables(&models.EmailVerification{}))
	migration.Register("20260101000200_create_menu_items", tables(&models.MenuItem{}))
	// payment_status and updated_at are indexed for the stale-attempt sweep
	migration.Register("20260101000300_create_orders", tables(&models.Order{}))
	migration.Register("20260101000400_create_content", tables(
		&models.Event{}, &models.Ad{}, &models.TruckLocation{}, &models.Setting{},
	))
	migration.Register("20260101000500_create_failed_jobs", tables(&queue.FailedJobRecord{}))
}

// createTables creates its models on Up and drops them in reverse on Down.
type createTables struct {
	models []interface{}
}

func tables(m ...interface{}) createTables { return createTables{models: m} }

func (t createTables) Up(db *gorm.DB) error {
	return db.AutoMigrate(t.models...)
}

func (t createTables) Down(db *gorm.DB) error {
	for i := len(t.models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(t.models[i]); err != nil {
			return err
		}
	}
	return nil
}
