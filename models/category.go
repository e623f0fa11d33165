package models

import "time"

// Category 是唯讀的商品分類資料
type Category struct {
	ID        string    `gorm:"type:varchar(64);primaryKey"`
	Name      string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Icon      string    `gorm:"type:varchar(64);not null;default:''"`
	CreatedAt time.Time `gorm:"type:timestamp with time zone;not null;<-:create"`
}

func (Category) TableName() string {
	return "categories"
}

// DefaultCategories 是 migrate 時寫入的預設分類
var DefaultCategories = []Category{
	{ID: "electronics", Name: "Electronics", Icon: "laptop"},
	{ID: "books", Name: "Books", Icon: "book"},
	{ID: "clothing", Name: "Clothing", Icon: "shirt"},
	{ID: "daily", Name: "Daily Goods", Icon: "home"},
	{ID: "sports", Name: "Sports", Icon: "bike"},
	{ID: "others", Name: "Others", Icon: "box"},
}
