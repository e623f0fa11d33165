package market_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"campusmart/backend"
	"campusmart/market"
	"campusmart/models"
)

func TestListings_ListActiveItems(t *testing.T) {
	f := newFixture(t)
	want := backend.Query{
		Filters: []backend.Filter{backend.Eq("status", "active")},
		Order:   []backend.Order{{Column: "created_at", Desc: true}},
		Limit:   market.ListingLimit,
	}
	f.data.EXPECT().
		Select(gomock.Any(), backend.TableItems, want, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ backend.Query, dest any) error {
			*(dest.(*[]models.Item)) = []models.Item{
				itemRow(itemA, "u1", market.StatusActive),
				itemRow(itemB, "u2", market.StatusActive),
			}
			return nil
		})

	items, err := f.listings.ListActiveItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.Equal(t, market.StatusActive, item.Status)
	}
}

func TestListings_SkipsMalformedRows(t *testing.T) {
	f := newFixture(t)
	bad := itemRow(itemB, "u2", market.StatusActive)
	bad.Status = "archived"
	expectSelect(f, backend.TableItems, []models.Item{itemRow(itemA, "u1", market.StatusActive), bad, itemRow("", "u3", market.StatusActive)})

	items, err := f.listings.ListActiveItems(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, itemA, items[0].ID)
}

func TestListings_ListItemsByCategory(t *testing.T) {
	f := newFixture(t)
	f.data.EXPECT().
		Select(gomock.Any(), backend.TableItems, backend.Query{
			Filters: []backend.Filter{backend.Eq("status", "active"), backend.Eq("category", "books")},
			Order:   []backend.Order{{Column: "created_at", Desc: true}},
			Limit:   market.ListingLimit,
		}, gomock.Any()).
		Return(nil)

	items, err := f.listings.ListItemsByCategory(context.Background(), "books")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestListings_GetItem(t *testing.T) {
	t.Run("found in any status", func(t *testing.T) {
		f := newFixture(t)
		expectSelect(f, backend.TableItems, []models.Item{itemRow(itemA, "u1", market.StatusRemoved)})
		item, err := f.listings.GetItem(context.Background(), itemA)
		require.NoError(t, err)
		require.NotNil(t, item)
		assert.Equal(t, market.StatusRemoved, item.Status)
	})
	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t)
		expectSelect(f, backend.TableItems, []models.Item{})
		item, err := f.listings.GetItem(context.Background(), missingItem)
		assert.NoError(t, err)
		assert.Nil(t, item)
	})
	t.Run("no rows error", func(t *testing.T) {
		f := newFixture(t)
		f.data.EXPECT().Select(gomock.Any(), backend.TableItems, gomock.Any(), gomock.Any()).Return(backend.ErrNoRows)
		item, err := f.listings.GetItem(context.Background(), missingItem)
		assert.NoError(t, err)
		assert.Nil(t, item)
	})
	t.Run("backend failure", func(t *testing.T) {
		f := newFixture(t)
		f.data.EXPECT().Select(gomock.Any(), backend.TableItems, gomock.Any(), gomock.Any()).Return(errors.New("dial tcp: timeout"))
		_, err := f.listings.GetItem(context.Background(), itemA)
		assert.ErrorIs(t, err, market.ErrTransient)
	})
	t.Run("canonical id in filter", func(t *testing.T) {
		f := newFixture(t)
		f.data.EXPECT().
			Select(gomock.Any(), backend.TableItems, backend.Query{
				Filters: []backend.Filter{backend.Eq("id", itemA)},
				Limit:   1,
			}, gomock.Any()).
			Return(nil)
		item, err := f.listings.GetItem(context.Background(), " "+strings.ToUpper(itemA)+" ")
		assert.NoError(t, err)
		assert.Nil(t, item)
	})
}

func TestListings_GetItemMalformedID(t *testing.T) {
	for _, id := range []string{"", "   ", "does-not-exist", "123", "5f0c9d7e-1b2a-4c3d-8e4f", "'; drop table items; --"} {
		t.Run(id, func(t *testing.T) {
			// 沒有設定 Select 預期，任何查詢都會讓 gomock 失敗
			f := newFixture(t)
			item, err := f.listings.GetItem(context.Background(), id)
			assert.NoError(t, err)
			assert.Nil(t, item)
		})
	}
}

func TestListings_ListOwnItems(t *testing.T) {
	owner := market.Authenticated("u1", "u1@campus.edu")
	tests := []struct {
		name        string
		identity    market.Identity
		filter      market.StatusFilter
		wantFilters []backend.Filter
		wantErr     error
	}{
		{
			name:        "all",
			identity:    owner,
			filter:      market.StatusAll,
			wantFilters: []backend.Filter{backend.Eq("seller_id", "u1")},
		},
		{
			name:        "sold only",
			identity:    owner,
			filter:      market.StatusFilter("sold"),
			wantFilters: []backend.Filter{backend.Eq("seller_id", "u1"), backend.Eq("status", "sold")},
		},
		{name: "anonymous", identity: market.Anonymous(), filter: market.StatusAll, wantErr: market.ErrUnauthorized},
		{name: "unknown filter", identity: owner, filter: market.StatusFilter("archived"), wantErr: market.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if tt.wantErr == nil {
				f.data.EXPECT().
					Select(gomock.Any(), backend.TableItems, backend.Query{
						Filters: tt.wantFilters,
						Order:   []backend.Order{{Column: "created_at", Desc: true}},
					}, gomock.Any()).
					Return(nil)
			}
			_, err := f.listings.ListOwnItems(context.Background(), tt.identity, tt.filter)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestListings_SearchItems(t *testing.T) {
	f := newFixture(t)
	f.data.EXPECT().
		Select(gomock.Any(), backend.TableItems, backend.Query{
			Filters: []backend.Filter{backend.Eq("status", "active")},
			AnyOf: []backend.Filter{
				backend.ILike("title", `%50\% off%`),
				backend.ILike("description", `%50\% off%`),
			},
			Order: []backend.Order{{Column: "created_at", Desc: true}},
			Limit: market.ListingLimit,
		}, gomock.Any()).
		Return(nil)

	_, err := f.listings.SearchItems(context.Background(), "  50% off ")
	assert.NoError(t, err)
}

func TestListings_SearchItemsBlankQuery(t *testing.T) {
	f := newFixture(t)
	f.data.EXPECT().
		Select(gomock.Any(), backend.TableItems, backend.Query{
			Filters: []backend.Filter{backend.Eq("status", "active")},
			Order:   []backend.Order{{Column: "created_at", Desc: true}},
			Limit:   market.ListingLimit,
		}, gomock.Any()).
		Return(nil)

	_, err := f.listings.SearchItems(context.Background(), "   ")
	assert.NoError(t, err)
}

func TestListings_ListCategories(t *testing.T) {
	f := newFixture(t)
	f.data.EXPECT().
		Select(gomock.Any(), backend.TableCategories, backend.Query{Order: []backend.Order{{Column: "name"}}}, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, _ backend.Query, dest any) error {
			*(dest.(*[]models.Category)) = []models.Category{{ID: "books", Name: "Books"}, {ID: "daily", Name: "Daily Goods"}}
			return nil
		})

	categories, err := f.listings.ListCategories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"books", "daily"}, lo.Map(categories, func(c market.Category, _ int) string { return c.ID }))
}

type stubCache struct {
	hits int
	data []market.Category
}

func (s *stubCache) Categories(ctx context.Context, load func(context.Context) ([]market.Category, error)) ([]market.Category, error) {
	if s.data != nil {
		s.hits++
		return s.data, nil
	}
	data, err := load(ctx)
	if err != nil {
		return nil, err
	}
	s.data = data
	return data, nil
}

func TestListings_ListCategoriesCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	data := backend.NewMockDataClient(ctrl)
	cache := &stubCache{}
	listings, err := market.NewListings(data, market.WithCategoryCache(cache))
	require.NoError(t, err)
	data.EXPECT().Select(gomock.Any(), backend.TableCategories, gomock.Any(), gomock.Any()).Return(nil).Times(1)

	for i := 0; i < 3; i++ {
		_, err := listings.ListCategories(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.hits)
}

func TestListings_ResolveSeller(t *testing.T) {
	tests := []struct {
		name     string
		sellerID string
		viewer   market.Identity
		setup    func(f *fixture)
		want     market.SellerInfo
	}{
		{
			name:     "item embedded info wins",
			sellerID: "u1",
			viewer:   market.Anonymous(),
			setup: func(f *fixture) {
				expectSelect(f, backend.TableItems, []models.Item{itemRow(itemA, "u1", market.StatusSold)})
			},
			want: market.SellerInfo{SellerID: "u1", Name: "Amy", Contact: "amy@line"},
		},
		{
			name:     "profile fallback",
			sellerID: "u1",
			viewer:   market.Anonymous(),
			setup: func(f *fixture) {
				expectSelect(f, backend.TableItems, []models.Item{})
				expectSelect(f, backend.TableUserProfiles, []models.UserProfile{{
					ID:        "u1",
					Nickname:  lo.ToPtr("Amy C."),
					Phone:     lo.ToPtr("0912"),
					AvatarURL: lo.ToPtr("https://cdn.example.com/a.png"),
				}})
			},
			want: market.SellerInfo{SellerID: "u1", Name: "Amy C.", Contact: "0912", Avatar: lo.ToPtr("https://cdn.example.com/a.png")},
		},
		{
			name:     "default for user",
			sellerID: "u1",
			viewer:   market.Anonymous(),
			setup: func(f *fixture) {
				expectSelect(f, backend.TableItems, []models.Item{})
				expectSelect(f, backend.TableUserProfiles, []models.UserProfile{})
			},
			want: market.SellerInfo{SellerID: "u1", Name: market.DefaultUserName, Contact: market.DefaultContact},
		},
		{
			name:     "guest skips profile",
			sellerID: "guest_01J00000000000000000000000",
			viewer:   market.Anonymous(),
			setup: func(f *fixture) {
				expectSelect(f, backend.TableItems, []models.Item{})
			},
			want: market.SellerInfo{SellerID: "guest_01J00000000000000000000000", Name: market.DefaultGuestName, Contact: market.DefaultContact},
		},
		{
			name:     "guest with failing backend",
			sellerID: "guest_01J00000000000000000000000",
			viewer:   market.Anonymous(),
			setup: func(f *fixture) {
				f.data.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("boom")).AnyTimes()
			},
			want: market.SellerInfo{SellerID: "guest_01J00000000000000000000000", Name: market.DefaultGuestName, Contact: market.DefaultContact},
		},
		{
			name:     "email only for the seller",
			sellerID: "u1",
			viewer:   market.Authenticated("u1", "amy@campus.edu"),
			setup: func(f *fixture) {
				f.data.EXPECT().Select(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("boom")).AnyTimes()
			},
			want: market.SellerInfo{SellerID: "u1", Name: market.DefaultUserName, Contact: market.DefaultContact, Email: "amy@campus.edu"},
		},
		{
			name:     "no email for other viewers",
			sellerID: "u1",
			viewer:   market.Authenticated("u2", "bob@campus.edu"),
			setup: func(f *fixture) {
				expectSelect(f, backend.TableItems, []models.Item{itemRow(itemA, "u1", market.StatusActive)})
			},
			want: market.SellerInfo{SellerID: "u1", Name: "Amy", Contact: "amy@line"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tt.setup(f)
			got := f.listings.ResolveSeller(context.Background(), tt.sellerID, tt.viewer)
			assert.Equal(t, tt.want, got)
			if market.IsGuestID(tt.sellerID) {
				assert.Contains(t, got.Name, "Guest")
			}
		})
	}
}

func TestCountByStatus(t *testing.T) {
	items := []market.Item{
		activeItem(itemA, "u1"),
		activeItem(itemB, "u1"),
		{ID: itemC, Status: market.StatusSold},
	}
	assert.Equal(t, map[market.Status]int{
		market.StatusActive:  2,
		market.StatusSold:    1,
		market.StatusRemoved: 0,
	}, market.CountByStatus(items))
}
