package market

import (
	"context"

	"go.uber.org/zap"

	"campusmart/backend"
	"campusmart/models"
)

const (
	DefaultGuestName = "Guest user"
	DefaultUserName  = "User"
	DefaultContact   = "Not provided"
)

func defaultSeller(sellerID string) SellerInfo {
	name := DefaultUserName
	if IsGuestID(sellerID) {
		name = DefaultGuestName
	}
	return SellerInfo{SellerID: sellerID, Name: name, Contact: DefaultContact}
}

// ResolveSeller 推導賣家顯示資訊，優先序為商品內嵌資料、使用者檔案、預設值。
// 任何查詢失敗都只記錄 log 並退回下一個來源，不會回傳錯誤。
func (l *Listings) ResolveSeller(ctx context.Context, sellerID string, viewer Identity) SellerInfo {
	const op = "market.ResolveSeller"
	info := defaultSeller(sellerID)
	if viewer.IsAuthenticated() && viewer.ID == sellerID {
		info.Email = viewer.Email
	}
	if sellerID == "" {
		return info
	}

	// 1. 該賣家最新一筆有填寫名稱的商品
	var items []models.Item
	err := l.data.Select(ctx, backend.TableItems, backend.Query{
		Filters: []backend.Filter{
			backend.Eq("seller_id", sellerID),
			backend.NotNull("seller_name"),
		},
		Order: latestFirst(),
		Limit: 1,
	}, &items)
	if err != nil {
		l.logger.Warn("Fail to load seller from items", zap.String("op", op), zap.String("seller", sellerID), zap.Error(err))
	}
	if err == nil && len(items) > 0 && items[0].SellerName != nil && *items[0].SellerName != "" {
		info.Name = *items[0].SellerName
		if c := items[0].SellerContact; c != nil && *c != "" {
			info.Contact = *c
		}
		return info
	}

	// 2. 使用者檔案，訪客沒有檔案
	if IsGuestID(sellerID) {
		return info
	}
	var profiles []models.UserProfile
	err = l.data.Select(ctx, backend.TableUserProfiles, backend.Query{
		Filters: []backend.Filter{backend.Eq("id", sellerID)},
		Limit:   1,
	}, &profiles)
	if err != nil {
		l.logger.Warn("Fail to load seller profile", zap.String("op", op), zap.String("seller", sellerID), zap.Error(err))
		return info
	}
	if len(profiles) == 0 {
		return info
	}
	p := profiles[0]
	if p.Nickname != nil && *p.Nickname != "" {
		info.Name = *p.Nickname
	}
	if p.Phone != nil && *p.Phone != "" {
		info.Contact = *p.Phone
	}
	info.Avatar = p.AvatarURL
	return info
}
