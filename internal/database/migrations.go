package database

import (
	"fmt"
	"log"

	"github.com/yukikurage/task-sync/internal/models"
	"gorm.io/gorm"
)

// AddIndexes adds the indexes the task queries rely on. Indexes declared on
// the model are created by AutoMigrate; this re-checks them by name so that a
// schema created by an older build gets them too.
func AddIndexes(db *gorm.DB) error {
	indexes := []string{
		// FetchAll: WHERE user_id = ? ORDER BY sort_order
		"idx_tasks_user_order",
		// cascade lookups by parent
		"idx_tasks_parent_id",
	}

	migrator := db.Migrator()
	for _, name := range indexes {
		if migrator.HasIndex(&models.TaskRecord{}, name) {
			continue
		}

		if err := migrator.CreateIndex(&models.TaskRecord{}, name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", name, err)
		}

		log.Printf("Created index %s on tasks", name)
	}

	return nil
}
