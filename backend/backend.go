// Package backend 定義外部後端平台的能力介面 (auth / data / storage)，
// 核心邏輯只依賴這些介面，具體實作位於 adapters 之下。
package backend

import (
	"errors"
	"fmt"
)

// 資料表與儲存桶名稱
const (
	TableItems        = "items"
	TableCategories   = "categories"
	TableUserProfiles = "user_profiles"

	BucketItemImages = "item-images"
)

var (
	// ErrNoRows 表示查詢或更新沒有命中任何資料列
	ErrNoRows = errors.New("no rows in result set")
	// ErrMissingCapability 表示 Client 缺少必要的能力實作
	ErrMissingCapability = errors.New("missing backend capability")
)

// Client 將三種能力打包在一起，每種能力都可以獨立替換
type Client struct {
	Auth    AuthClient
	Data    DataClient
	Storage StorageClient
}

// Validate 檢查必要的能力是否都已提供
func (c Client) Validate() error {
	const op = "backend.Client.Validate"
	missing := make([]string, 0, 3)
	if c.Auth == nil {
		missing = append(missing, "auth")
	}
	if c.Data == nil {
		missing = append(missing, "data")
	}
	if c.Storage == nil {
		missing = append(missing, "storage")
	}
	if len(missing) > 0 {
		return fmt.Errorf("[%s] %w: %v", op, ErrMissingCapability, missing)
	}
	return nil
}
