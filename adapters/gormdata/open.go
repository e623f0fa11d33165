package gormdata

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"campusmart/models"
)

// Config 是資料庫連線設定
type Config struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

// DSN 組出 postgres 連線字串，schema 透過 search_path 指定
func (c Config) DSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", c.User, c.Password, c.Host, c.Port, c.Database)
	if c.Schema != "" {
		dsn += "&search_path=" + c.Schema
	}
	return dsn
}

// Open 開啟 postgres 連線
func Open(config Config) (*gorm.DB, error) {
	const op = "gormdata.Open"
	db, err := gorm.Open(postgres.Open(config.DSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger.Default.LogMode(gormLogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to database, err=%w", op, err)
	}
	return db, nil
}

// Migrate 建立資料表並寫入預設分類，已存在的分類不會被覆蓋
func Migrate(ctx context.Context, db *gorm.DB) error {
	const op = "gormdata.Migrate"
	if err := db.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("[%s] Fail to migrate tables, err=%w", op, err)
	}
	categories := make([]models.Category, len(models.DefaultCategories))
	copy(categories, models.DefaultCategories)
	if result := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&categories); result.Error != nil {
		return fmt.Errorf("[%s] Fail to seed categories, err=%w", op, result.Error)
	}
	return nil
}
