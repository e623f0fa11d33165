package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Item 代表二手市集中的一件商品
// 狀態只會從 active 轉為 sold 或 removed，下架為軟刪除
type Item struct {
	ID            string          `gorm:"type:uuid;primaryKey;<-:create"`
	Title         string          `gorm:"type:varchar(100);not null"`
	Description   string          `gorm:"type:text;not null;default:''"`
	Price         decimal.Decimal `gorm:"type:numeric(7,2);not null"`
	Category      string          `gorm:"type:varchar(64);not null;index"`
	Images        pq.StringArray  `gorm:"type:text[];not null;default:'{}'"`
	SellerID      string          `gorm:"type:varchar(64);not null;index;<-:create"`
	SellerName    *string         `gorm:"type:varchar(20)"`
	SellerContact *string         `gorm:"type:varchar(50)"`
	Status        string          `gorm:"type:varchar(16);not null;default:'active';index"`
	CreatedAt     time.Time       `gorm:"type:timestamp with time zone;not null;<-:create"`
	UpdatedAt     time.Time       `gorm:"type:timestamp with time zone;not null"`

	// 外鍵關聯
	CategoryRef *Category `gorm:"foreignKey:Category;references:ID"`
}

func (Item) TableName() string {
	return "items"
}
