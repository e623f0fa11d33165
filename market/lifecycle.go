package market

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"campusmart/backend"
	"campusmart/models"
)

// Lifecycle 管理商品的刊登與狀態轉換。
//
// 這裡的權限檢查只是為了提早回饋；真正的權限邊界在儲存層，
// 狀態更新一律帶上 seller_id 與 status 條件，由後端決定是否生效。
type Lifecycle struct {
	data     backend.DataClient
	storage  backend.StorageClient
	listings *Listings
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewLifecycle 建立 Lifecycle，client 需要提供 data 與 storage 能力
func NewLifecycle(client backend.Client, opts ...Option) (*Lifecycle, error) {
	const op = "market.NewLifecycle"
	if client.Data == nil || client.Storage == nil {
		return nil, NewConfigurationError(op, "data and storage capabilities are required", backend.ErrMissingCapability)
	}
	o := newOptions(opts)
	listings, err := NewListings(client.Data, opts...)
	if err != nil {
		return nil, err
	}
	return &Lifecycle{
		data:     client.Data,
		storage:  client.Storage,
		listings: listings,
		logger:   o.logger,
		now:      o.now,
		newID:    o.newID,
	}, nil
}

// CanManage 判斷身分是否可以管理商品：已登入、是賣家本人、且商品仍在上架中
func CanManage(identity Identity, item Item) bool {
	return identity.IsAuthenticated() &&
		identity.ID == item.SellerID &&
		item.Status == StatusActive
}

// MarkSold 將商品標記為已售出
func (lc *Lifecycle) MarkSold(ctx context.Context, item Item, identity Identity) (Item, error) {
	return lc.transition(ctx, "market.MarkSold", item, identity, StatusSold)
}

// RemoveItem 下架商品 (軟刪除，資料列保留)
func (lc *Lifecycle) RemoveItem(ctx context.Context, item Item, identity Identity) (Item, error) {
	return lc.transition(ctx, "market.RemoveItem", item, identity, StatusRemoved)
}

func (lc *Lifecycle) transition(ctx context.Context, op string, item Item, identity Identity, to Status) (Item, error) {
	if !CanManage(identity, item) {
		return Item{}, newUnauthorized(op, "only the seller can manage an active item")
	}
	if !CanTransition(item.Status, to) {
		return Item{}, newUnauthorized(op, fmt.Sprintf("item %s cannot move from %s to %s", item.ID, item.Status, to))
	}
	now := lc.now()
	_, err := lc.data.Update(ctx, backend.TableItems,
		[]backend.Filter{
			backend.Eq("id", item.ID),
			backend.Eq("seller_id", identity.ID),
			backend.Eq("status", string(StatusActive)),
		},
		map[string]any{
			"status":     string(to),
			"updated_at": now,
		},
	)
	if errors.Is(err, backend.ErrNoRows) {
		// 條件更新沒有命中，重新讀取以區分不存在與已被變更
		current, gerr := lc.listings.GetItem(ctx, item.ID)
		if gerr != nil {
			return Item{}, gerr
		}
		if current == nil {
			return Item{}, newNotFound(op, fmt.Sprintf("item %s does not exist", item.ID))
		}
		return Item{}, newUnauthorized(op, fmt.Sprintf("item %s is %s and can no longer be managed", item.ID, current.Status))
	}
	if err != nil {
		return Item{}, normalize(op, err)
	}
	lc.logger.Info("Item status changed",
		zap.String("op", op),
		zap.String("item", item.ID),
		zap.String("from", string(item.Status)),
		zap.String("to", string(to)),
	)
	itemTransitions.WithLabelValues(string(to)).Inc()
	item.Status = to
	item.UpdatedAt = now
	return item, nil
}

// Publish 驗證並刊登商品；有圖片時先上傳，上傳失敗則不會建立資料列
func (lc *Lifecycle) Publish(ctx context.Context, draft Draft, identity Identity) (Item, error) {
	const op = "market.Publish"
	draft = draft.normalized(identity)

	fields := validateDraft(draft)
	var img *preparedImage
	if draft.Image != nil {
		var fe *FieldError
		if img, fe = prepareImage(draft.Image); fe != nil {
			fields = append(fields, *fe)
		}
	}
	if draft.Category != "" {
		exists, err := lc.listings.categoryExists(ctx, draft.Category)
		if err != nil {
			itemPublish.WithLabelValues("error").Inc()
			return Item{}, err
		}
		if !exists {
			fields = append(fields, FieldError{Field: "category", Message: "does not exist"})
		}
	}
	if len(fields) > 0 {
		itemPublish.WithLabelValues("invalid").Inc()
		return Item{}, newValidationError(op, fields)
	}

	now := lc.now()
	images := []string{}
	if img != nil {
		path := fmt.Sprintf("%d-%s.%s", now.UnixMilli(), lc.newID(), img.ext)
		if err := lc.storage.Upload(ctx, backend.BucketItemImages, path, img.contentType, img.data); err != nil {
			itemPublish.WithLabelValues("error").Inc()
			return Item{}, normalize(op, err)
		}
		images = append(images, lc.storage.PublicURL(backend.BucketItemImages, path))
	}

	sellerID := identity.ID
	if !identity.IsAuthenticated() {
		sellerID = NewGuestID(now)
	}
	row := models.Item{
		ID:            lc.newID(),
		Title:         draft.Title,
		Description:   draft.Description,
		Price:         draft.Price,
		Category:      draft.Category,
		Images:        images,
		SellerID:      sellerID,
		SellerName:    &draft.Publisher,
		SellerContact: &draft.Contact,
		Status:        string(StatusActive),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := lc.data.Insert(ctx, backend.TableItems, &row); err != nil {
		itemPublish.WithLabelValues("error").Inc()
		return Item{}, normalize(op, err)
	}
	item, err := itemFromRow(row)
	if err != nil {
		itemPublish.WithLabelValues("error").Inc()
		return Item{}, newTransient(op, err)
	}
	itemPublish.WithLabelValues("ok").Inc()
	lc.logger.Info("Item published",
		zap.String("op", op),
		zap.String("item", item.ID),
		zap.String("seller", item.SellerID),
	)
	return item, nil
}

// Listings 回傳共用的查詢層
func (lc *Lifecycle) Listings() *Listings {
	return lc.listings
}
