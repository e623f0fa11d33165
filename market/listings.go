package market

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"campusmart/backend"
	"campusmart/models"
)

// ListingLimit 是列表查詢回傳的最大筆數
const ListingLimit = 50

// StatusFilter 是「我的商品」的狀態過濾，StatusAll 代表不過濾
type StatusFilter string

const StatusAll StatusFilter = "all"

// Listings 是以使用情境劃分的查詢層，負責固定的預設條件與錯誤正規化
type Listings struct {
	data   backend.DataClient
	logger *zap.Logger
	cache  CategoryCache
}

func newOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewListings 建立查詢層
func NewListings(data backend.DataClient, opts ...Option) (*Listings, error) {
	const op = "market.NewListings"
	if data == nil {
		return nil, NewConfigurationError(op, "data capability is required", backend.ErrMissingCapability)
	}
	o := newOptions(opts)
	return &Listings{
		data:   data,
		logger: o.logger,
		cache:  o.cache,
	}, nil
}

func latestFirst() []backend.Order {
	return []backend.Order{{Column: "created_at", Desc: true}}
}

func (l *Listings) selectItems(ctx context.Context, op string, query backend.Query) ([]Item, error) {
	var rows []models.Item
	if err := l.data.Select(ctx, backend.TableItems, query, &rows); err != nil {
		return nil, normalize(op, err)
	}
	items := make([]Item, 0, len(rows))
	for _, row := range rows {
		item, err := itemFromRow(row)
		if err != nil {
			l.logger.Warn("Skip malformed item row", zap.String("op", op), zap.Error(err))
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// ListActiveItems 回傳最新的上架商品
func (l *Listings) ListActiveItems(ctx context.Context) ([]Item, error) {
	const op = "market.ListActiveItems"
	return l.selectItems(ctx, op, backend.Query{
		Filters: []backend.Filter{backend.Eq("status", string(StatusActive))},
		Order:   latestFirst(),
		Limit:   ListingLimit,
	})
}

// ListItemsByCategory 回傳指定分類中最新的上架商品
func (l *Listings) ListItemsByCategory(ctx context.Context, categoryID string) ([]Item, error) {
	const op = "market.ListItemsByCategory"
	return l.selectItems(ctx, op, backend.Query{
		Filters: []backend.Filter{
			backend.Eq("status", string(StatusActive)),
			backend.Eq("category", categoryID),
		},
		Order: latestFirst(),
		Limit: ListingLimit,
	})
}

// GetItem 依 ID 取得任意狀態的商品，不存在時回傳 nil, nil。
// 不是合法 UUID 的 ID 不可能對應任何商品，直接視為不存在。
func (l *Listings) GetItem(ctx context.Context, id string) (*Item, error) {
	const op = "market.GetItem"
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, nil
	}
	var rows []models.Item
	err = l.data.Select(ctx, backend.TableItems, backend.Query{
		Filters: []backend.Filter{backend.Eq("id", parsed.String())},
		Limit:   1,
	}, &rows)
	if err != nil {
		if errors.Is(err, backend.ErrNoRows) {
			return nil, nil
		}
		return nil, normalize(op, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	item, err := itemFromRow(rows[0])
	if err != nil {
		return nil, newTransient(op, err)
	}
	return &item, nil
}

// ListOwnItems 回傳身分本人刊登的商品，可依狀態過濾
func (l *Listings) ListOwnItems(ctx context.Context, identity Identity, filter StatusFilter) ([]Item, error) {
	const op = "market.ListOwnItems"
	if !identity.IsAuthenticated() {
		return nil, newUnauthorized(op, "sign in to see your items")
	}
	filters := []backend.Filter{backend.Eq("seller_id", identity.ID)}
	switch filter {
	case StatusAll, "":
	default:
		status, err := ParseStatus(string(filter))
		if err != nil {
			return nil, newValidationError(op, []FieldError{{Field: "status", Message: "must be one of all, active, sold, removed"}})
		}
		filters = append(filters, backend.Eq("status", string(status)))
	}
	return l.selectItems(ctx, op, backend.Query{
		Filters: filters,
		Order:   latestFirst(),
	})
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchItems 以標題或描述做不分大小寫的子字串搜尋
func (l *Listings) SearchItems(ctx context.Context, query string) ([]Item, error) {
	const op = "market.SearchItems"
	query = strings.TrimSpace(query)
	if query == "" {
		return l.ListActiveItems(ctx)
	}
	pattern := "%" + likeEscaper.Replace(query) + "%"
	return l.selectItems(ctx, op, backend.Query{
		Filters: []backend.Filter{backend.Eq("status", string(StatusActive))},
		AnyOf: []backend.Filter{
			backend.ILike("title", pattern),
			backend.ILike("description", pattern),
		},
		Order: latestFirst(),
		Limit: ListingLimit,
	})
}

// ListCategories 依名稱排序回傳所有分類
func (l *Listings) ListCategories(ctx context.Context) ([]Category, error) {
	if l.cache != nil {
		return l.cache.Categories(ctx, l.loadCategories)
	}
	return l.loadCategories(ctx)
}

func (l *Listings) loadCategories(ctx context.Context) ([]Category, error) {
	const op = "market.ListCategories"
	var rows []models.Category
	err := l.data.Select(ctx, backend.TableCategories, backend.Query{
		Order: []backend.Order{{Column: "name"}},
	}, &rows)
	if err != nil {
		return nil, normalize(op, err)
	}
	categories := make([]Category, 0, len(rows))
	for _, row := range rows {
		categories = append(categories, categoryFromRow(row))
	}
	return categories, nil
}

func (l *Listings) categoryExists(ctx context.Context, id string) (bool, error) {
	categories, err := l.ListCategories(ctx)
	if err != nil {
		return false, err
	}
	for _, c := range categories {
		if c.ID == id {
			return true, nil
		}
	}
	return false, nil
}
