package models

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

type User struct {
	ID           uint64         `gorm:"primarykey" json:"id"`
	Username     string         `gorm:"type:varchar(50);uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// OwnerKey is the identifier tasks use to reference their owner.
func (u User) OwnerKey() string {
	return OwnerKey(u.ID)
}

// OwnerKey formats a numeric user id as a task owner key.
func OwnerKey(userID uint64) string {
	return strconv.FormatUint(userID, 10)
}
