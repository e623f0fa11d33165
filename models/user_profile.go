package models

import "time"

// UserProfile 是賣家顯示資訊的備援來源，註冊時依暱稱建立
type UserProfile struct {
	ID        string  `gorm:"type:varchar(64);primaryKey"`
	Nickname  *string `gorm:"type:varchar(20)"`
	Phone     *string `gorm:"type:varchar(50)"`
	AvatarURL *string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserProfile) TableName() string {
	return "user_profiles"
}
