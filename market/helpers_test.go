package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"campusmart/backend"
	"campusmart/market"
	"campusmart/models"
)

var now = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

const (
	itemA       = "5f0c9d7e-1b2a-4c3d-8e4f-a1b2c3d4e5f6"
	itemB       = "6a1d0e8f-2c3b-4d4e-9f50-b2c3d4e5f607"
	itemC       = "7b2e1f90-3d4c-4e5f-a061-c3d4e5f60718"
	missingItem = "00000000-0000-4000-8000-000000000000"
)

var (
	pngData  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), make([]byte, 64)...)
	jpegData = append([]byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), make([]byte, 64)...)
	gifData  = append([]byte("GIF89a"), make([]byte, 64)...)
)

type fixture struct {
	data      *backend.MockDataClient
	storage   *backend.MockStorageClient
	lifecycle *market.Lifecycle
	listings  *market.Listings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		data:    backend.NewMockDataClient(ctrl),
		storage: backend.NewMockStorageClient(ctrl),
	}
	lc, err := market.NewLifecycle(
		backend.Client{Data: f.data, Storage: f.storage},
		market.WithClock(func() time.Time { return now }),
		market.WithIDGenerator(func() string { return "item-1" }),
	)
	require.NoError(t, err)
	f.lifecycle = lc
	f.listings = lc.Listings()
	return f
}

// expectSelect 讓 Select 回傳指定的資料列
func expectSelect[T any](f *fixture, table string, rows []T) *gomock.Call {
	return f.data.EXPECT().
		Select(gomock.Any(), table, gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ backend.Query, dest any) error {
			*(dest.(*[]T)) = append([]T(nil), rows...)
			return nil
		})
}

func (f *fixture) expectCategories(ids ...string) {
	rows := make([]models.Category, 0, len(ids))
	for _, id := range ids {
		rows = append(rows, models.Category{ID: id, Name: id})
	}
	expectSelect(f, backend.TableCategories, rows).AnyTimes()
}

func itemRow(id, seller string, status market.Status) models.Item {
	return models.Item{
		ID:            id,
		Title:         "Desk Lamp",
		Description:   "Works fine",
		Price:         decimal.RequireFromString("150"),
		Category:      "daily",
		Images:        pq.StringArray{},
		SellerID:      seller,
		SellerName:    lo.ToPtr("Amy"),
		SellerContact: lo.ToPtr("amy@line"),
		Status:        string(status),
		CreatedAt:     now.Add(-time.Hour),
		UpdatedAt:     now.Add(-time.Hour),
	}
}

func activeItem(id, seller string) market.Item {
	return market.Item{
		ID:        id,
		Title:     "Desk Lamp",
		Price:     decimal.RequireFromString("150"),
		Category:  "daily",
		Images:    []string{},
		SellerID:  seller,
		Status:    market.StatusActive,
		CreatedAt: now.Add(-time.Hour),
		UpdatedAt: now.Add(-time.Hour),
	}
}

func validDraft() market.Draft {
	return market.Draft{
		Title:       "Desk Lamp",
		Description: "Works fine",
		Price:       decimal.RequireFromString("150"),
		Category:    "daily",
		Publisher:   "Amy",
		Contact:     "amy@line",
	}
}
