//go:generate mockgen -package=backend -destination=mock_storage.go -source=storage.go

package backend

import "context"

// StorageClient 是物件儲存能力
type StorageClient interface {
	Upload(ctx context.Context, bucket, path, contentType string, data []byte) error
	PublicURL(bucket, path string) string
}
