package models

import "time"

// TaskRecord is the persisted row for a task. Optional columns are nullable so
// that an absent value is stored as NULL rather than an empty string.
type TaskRecord struct {
	ID          string     `gorm:"primarykey;type:varchar(36)"`
	UserID      string     `gorm:"type:varchar(64);not null;index:idx_tasks_user_order,priority:1"`
	ParentID    *string    `gorm:"type:varchar(36);index"`
	Title       string     `gorm:"type:varchar(200);not null"`
	Description *string    `gorm:"type:text"`
	Status      string     `gorm:"type:varchar(20);not null;default:'open'"`
	Priority    *string    `gorm:"type:varchar(10)"`
	Group       string     `gorm:"column:task_group;type:varchar(50);not null"`
	SortOrder   int        `gorm:"not null;default:0;index:idx_tasks_user_order,priority:2"`
	DueDate     *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

// TableName pins the table name independently of the struct name.
func (TaskRecord) TableName() string {
	return "tasks"
}
