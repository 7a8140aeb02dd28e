package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/task-sync/internal/config"
	"github.com/yukikurage/task-sync/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	return db
}

func TestDialector(t *testing.T) {
	for _, driver := range []string{"mysql", "postgres", "sqlite", ""} {
		cfg := config.Defaults()
		cfg.DBDriver = driver

		d, err := Dialector(cfg)
		require.NoError(t, err, driver)
		assert.NotNil(t, d)
	}

	cfg := config.Defaults()
	cfg.DBDriver = "oracle"
	_, err := Dialector(cfg)
	assert.EqualError(t, err, `unsupported database driver "oracle"`)
}

func TestAutoMigrateAndIndexes(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))
	require.NoError(t, AddIndexes(db))
	// second run is a no-op
	require.NoError(t, AddIndexes(db))

	migrator := db.Migrator()
	assert.True(t, migrator.HasTable("tasks"))
	assert.True(t, migrator.HasIndex(&models.TaskRecord{}, "idx_tasks_user_order"))
	assert.True(t, migrator.HasIndex(&models.TaskRecord{}, "idx_tasks_parent_id"))
	assert.True(t, migrator.HasColumn(&models.TaskRecord{}, "task_group"))
	assert.True(t, migrator.HasColumn(&models.TaskRecord{}, "sort_order"))
}

func TestScopes(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	records := []models.TaskRecord{
		{ID: "b", UserID: "1", Title: "b", Status: "open", Group: "Work", SortOrder: 1},
		{ID: "a", UserID: "1", Title: "a", Status: "open", Group: "Work", SortOrder: 0},
		{ID: "x", UserID: "2", Title: "x", Status: "open", Group: "Work", SortOrder: 0},
	}
	require.NoError(t, db.Create(&records).Error)

	var got []models.TaskRecord
	require.NoError(t, db.Scopes(OwnedBy("1"), InDisplayOrder).Find(&got).Error)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}
