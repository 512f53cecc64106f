package model

import (
	"time"
)

// User 身份提供方同步过来的用户
type User struct {
	ID         uint64  `gorm:"primaryKey"`
	ExternalID string  `gorm:"type:varchar(64);uniqueIndex:idx_external_id;not null"`
	Name       string  `gorm:"type:varchar(128);not null"`
	Email      string  `gorm:"type:varchar(255);index:idx_email"`
	ImageURL   *string `gorm:"type:varchar(512)"`
	IsOnline   bool    `gorm:"type:tinyint(1);default:0"`
	LastSeen   int64   `gorm:"not null;default:0;index:idx_online_last_seen"` // 毫秒时间戳，离线时不更新
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (User) TableName() string {
	return "users"
}
