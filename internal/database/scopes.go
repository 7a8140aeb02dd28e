package database

import (
	"gorm.io/gorm"
)

// OwnedBy restricts a task query to one owner
func OwnedBy(userID string) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("user_id = ?", userID)
	}
}

// InDisplayOrder sorts tasks by their sibling order, oldest first on ties
func InDisplayOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order ASC").Order("created_at ASC").Order("id ASC")
}
