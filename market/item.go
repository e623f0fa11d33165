package market

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"campusmart/models"
)

// Status 是商品的生命週期狀態
type Status string

const (
	StatusActive  Status = "active"
	StatusSold    Status = "sold"
	StatusRemoved Status = "removed"
)

// ParseStatus 解析狀態字串，未知的狀態回傳錯誤
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusSold, StatusRemoved:
		return st, nil
	}
	return "", fmt.Errorf("unknown item status %q", s)
}

// CanTransition 判斷狀態轉換是否合法；sold 與 removed 為終止狀態
func CanTransition(from, to Status) bool {
	return from == StatusActive && (to == StatusSold || to == StatusRemoved)
}

// Item 是經過驗證的商品
type Item struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	Images        []string        `json:"images"`
	SellerID      string          `json:"seller_id"`
	SellerName    *string         `json:"seller_name,omitempty"`
	SellerContact *string         `json:"seller_contact,omitempty"`
	Status        Status          `json:"status"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Category 是商品分類
type Category struct {
	ID        string    `json:"id" msgpack:"id"`
	Name      string    `json:"name" msgpack:"name"`
	Icon      string    `json:"icon" msgpack:"icon"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// SellerInfo 是對外顯示的賣家資訊；Email 只有賣家本人檢視時才會帶出
type SellerInfo struct {
	SellerID string  `json:"seller_id"`
	Name     string  `json:"name"`
	Contact  string  `json:"contact"`
	Email    string  `json:"email,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// itemFromRow 把後端資料列轉成 Item，不信任任何未驗證的欄位
func itemFromRow(row models.Item) (Item, error) {
	if row.ID == "" {
		return Item{}, fmt.Errorf("item row without id")
	}
	status, err := ParseStatus(row.Status)
	if err != nil {
		return Item{}, fmt.Errorf("item %s: %w", row.ID, err)
	}
	images := []string(row.Images)
	if images == nil {
		images = []string{}
	}
	return Item{
		ID:            row.ID,
		Title:         row.Title,
		Description:   row.Description,
		Price:         row.Price,
		Category:      row.Category,
		Images:        images,
		SellerID:      row.SellerID,
		SellerName:    row.SellerName,
		SellerContact: row.SellerContact,
		Status:        status,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

func categoryFromRow(row models.Category) Category {
	return Category{
		ID:        row.ID,
		Name:      row.Name,
		Icon:      row.Icon,
		CreatedAt: row.CreatedAt,
	}
}

// CountByStatus 統計各狀態的商品數量
func CountByStatus(items []Item) map[Status]int {
	counts := map[Status]int{
		StatusActive:  0,
		StatusSold:    0,
		StatusRemoved: 0,
	}
	for _, item := range items {
		counts[item.Status]++
	}
	return counts
}
