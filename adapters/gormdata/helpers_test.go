package gormdata_test

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"campusmart/models"
)

var base = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

// setupDB 建立獨立的 in-memory sqlite 資料庫
func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Discard,
	})
	require.NoError(t, err)
	schema, err := os.ReadFile("../../models/testdata/sqlite.sql")
	require.NoError(t, err)
	require.NoError(t, db.Exec(string(schema)).Error)
	require.NoError(t, db.Create(&[]models.Category{
		{ID: "books", Name: "Books", CreatedAt: base},
		{ID: "electronics", Name: "Electronics", CreatedAt: base},
	}).Error)
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func itemRow(id, title, seller, status string, age time.Duration) models.Item {
	return models.Item{
		ID:            id,
		Title:         title,
		Description:   "description of " + title,
		Price:         decimal.RequireFromString("12.50"),
		Category:      "books",
		Images:        pq.StringArray{},
		SellerID:      seller,
		SellerName:    lo.ToPtr("seller"),
		SellerContact: lo.ToPtr("0912345678"),
		Status:        status,
		CreatedAt:     base.Add(-age),
		UpdatedAt:     base.Add(-age),
	}
}
