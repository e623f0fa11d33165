package models

import "time"

// Account 是 auth adapter 自己持有的帳號資料，核心邏輯不會讀取
type Account struct {
	ID               string     `gorm:"type:uuid;primaryKey;<-:create"`
	Email            string     `gorm:"type:varchar(255);not null;uniqueIndex"`
	PasswordHash     string     `gorm:"type:varchar(255);not null"`
	Nickname         string     `gorm:"type:varchar(20);not null;default:''"`
	EmailConfirmedAt *time.Time `gorm:"type:timestamp with time zone"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (Account) TableName() string {
	return "accounts"
}
