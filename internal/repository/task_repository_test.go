package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/task-sync/internal/database"
	"github.com/yukikurage/task-sync/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type TaskRepositoryTestSuite struct {
	suite.Suite
	db   *gorm.DB
	repo TaskRepository
	ctx  context.Context
}

func (suite *TaskRepositoryTestSuite) SetupTest() {
	var err error

	suite.db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)

	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)

	suite.Require().NoError(database.AutoMigrate(suite.db))

	suite.repo = NewTaskRepository(suite.db)
	suite.ctx = context.Background()
}

func (suite *TaskRepositoryTestSuite) TearDownTest() {
	sqlDB, err := suite.db.DB()
	suite.Require().NoError(err)
	sqlDB.Close()
}

func (suite *TaskRepositoryTestSuite) createRecord(userID, title string, order int) *models.TaskRecord {
	now := time.Now().UTC().Truncate(time.Millisecond)
	record := &models.TaskRecord{
		UserID:    userID,
		Title:     title,
		Status:    string(models.TaskStatusOpen),
		Group:     "Personal",
		SortOrder: order,
		CreatedAt: now,
		UpdatedAt: now,
	}
	suite.Require().NoError(suite.repo.Create(suite.ctx, record))
	return record
}

func (suite *TaskRepositoryTestSuite) TestCreate_AssignsID() {
	record := suite.createRecord("1", "Buy milk", 0)

	suite.NotEmpty(record.ID)
	suite.Len(record.ID, 36)
}

func (suite *TaskRepositoryTestSuite) TestListByUser_ScopedAndOrdered() {
	suite.createRecord("1", "second", 1)
	suite.createRecord("1", "first", 0)
	suite.createRecord("2", "someone else", 0)

	records, err := suite.repo.ListByUser(suite.ctx, "1")

	suite.Require().NoError(err)
	suite.Require().Len(records, 2)
	suite.Equal("first", records[0].Title)
	suite.Equal("second", records[1].Title)
}

func (suite *TaskRepositoryTestSuite) TestUpdateColumns() {
	desc := "details"
	record := suite.createRecord("1", "Buy milk", 0)
	suite.Require().NoError(suite.db.Model(record).Update("description", desc).Error)

	owner, err := suite.repo.UpdateColumns(suite.ctx, record.ID, map[string]any{
		"title":       "Buy oat milk",
		"description": nil,
	})

	suite.Require().NoError(err)
	suite.Equal("1", owner)

	var stored models.TaskRecord
	suite.Require().NoError(suite.db.First(&stored, "id = ?", record.ID).Error)
	suite.Equal("Buy oat milk", stored.Title)
	suite.Nil(stored.Description)
}

func (suite *TaskRepositoryTestSuite) TestUpdateColumns_NotFound() {
	_, err := suite.repo.UpdateColumns(suite.ctx, "missing", map[string]any{"title": "x"})

	suite.ErrorIs(err, gorm.ErrRecordNotFound)
}

func (suite *TaskRepositoryTestSuite) TestDelete() {
	record := suite.createRecord("1", "Buy milk", 0)

	owner, found, err := suite.repo.Delete(suite.ctx, record.ID)
	suite.Require().NoError(err)
	suite.True(found)
	suite.Equal("1", owner)

	owner, found, err = suite.repo.Delete(suite.ctx, record.ID)
	suite.Require().NoError(err)
	suite.False(found)
	suite.Empty(owner)
}

func TestTaskRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(TaskRepositoryTestSuite))
}

func TestUpdateColumns_RollsBackOnFailure(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM `tasks`").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("t1", "7"))
	mock.ExpectExec("UPDATE `tasks` SET").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	repo := NewTaskRepository(db)
	_, err = repo.UpdateColumns(context.Background(), "t1", map[string]any{
		"title":      "new",
		"sort_order": 3,
	})

	assert.EqualError(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
