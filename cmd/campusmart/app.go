package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusmart/adapters/auth"
	"campusmart/adapters/gormdata"
	redisAdapter "campusmart/adapters/redis"
	"campusmart/adapters/s3"
	"campusmart/backend"
	"campusmart/config"
	"campusmart/identity"
	"campusmart/market"
)

// resources 是 CLI 使用的外部資源，測試時以 sqlite 與 miniredis 替換
type resources struct {
	DB      *gorm.DB
	Redis   redis.UniversalClient
	Storage backend.StorageClient
	Mailer  auth.Mailer
}

func openResources(ctx context.Context, cfg config.Config, logger *zap.Logger) (resources, error) {
	const op = "cli.openResources"
	db, err := gormdata.Open(cfg.DB)
	if err != nil {
		return resources{}, fmt.Errorf("[%s] Fail to open database, err=%w", op, err)
	}
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return resources{}, multierr.Append(
			fmt.Errorf("[%s] Fail to connect to redis, err=%w", op, err),
			closeDB(db),
		)
	}
	storage, err := s3.Open(ctx, cfg.S3, s3.WithLogger(logger))
	if err != nil {
		return resources{}, multierr.Combine(
			fmt.Errorf("[%s] Fail to open object storage, err=%w", op, err),
			closeDB(db),
			redisClient.Close(),
		)
	}
	return resources{DB: db, Redis: redisClient, Storage: storage}, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// app 是一次 CLI 執行的狀態，整個行程共用一個 identity.Context
type app struct {
	lifecycle *market.Lifecycle
	listings  *market.Listings
	auth      *auth.Client
	identity  *identity.Context
	res       resources
	logger    *zap.Logger

	out      io.Writer
	in       *bufio.Reader
	jsonMode bool
}

func newApp(ctx context.Context, res resources, cfg config.Config, profile string, logger *zap.Logger) (*app, error) {
	const op = "cli.newApp"
	prefix := cfg.Redis.KeyPrefix

	opts := []market.Option{market.WithLogger(logger)}
	if cfg.Redis.CategoryCacheTTL > 0 {
		cache := redisAdapter.NewCache(res.Redis,
			redisAdapter.WithCachePrefix(prefix+"cache:"),
			redisAdapter.WithCacheLogger(logger),
		)
		opts = append(opts, market.WithCategoryCache(redisAdapter.NewCategoryCache(cache, cfg.Redis.CategoryCacheTTL)))
	}
	lifecycle, err := market.NewLifecycle(backend.Client{
		Data:    gormdata.New(res.DB, gormdata.WithLogger(logger)),
		Storage: res.Storage,
	}, opts...)
	if err != nil {
		return nil, err
	}

	service, err := auth.NewService(
		res.DB,
		redisAdapter.NewTokenStore(res.Redis, redisAdapter.WithTokenPrefix(prefix+"token:")),
		auth.Config{
			Issuer:          cfg.Auth.Issuer,
			Audience:        cfg.Auth.Audience,
			PrivateKey:      cfg.Auth.PrivateKey,
			AccessTokenTTL:  cfg.Auth.AccessTokenTTL,
			RefreshTokenTTL: cfg.Auth.RefreshTokenTTL,
			AutoConfirm:     cfg.Auth.AutoConfirm,
			ConfirmURL:      cfg.Auth.ConfirmURL,
		},
		auth.WithLogger(logger),
		auth.WithMailer(res.Mailer),
	)
	if err != nil {
		return nil, market.NewConfigurationError(op, "invalid auth settings", err)
	}

	// CLI 的登入狀態沒有 cookie 期限，跟著 refresh token 過期
	refreshTTL := cfg.Auth.RefreshTokenTTL
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	client := auth.NewClient(service,
		redisAdapter.NewStore(res.Redis,
			redisAdapter.WithStorePrefix(prefix+"cli:"),
			redisAdapter.WithStoreTTL(refreshTTL),
		),
		profile,
		auth.WithClientLogger(logger),
	)

	return &app{
		lifecycle: lifecycle,
		listings:  lifecycle.Listings(),
		auth:      client,
		identity:  identity.New(ctx, client, identity.WithLogger(logger)),
		res:       res,
		logger:    logger,
	}, nil
}

// current 等待身分解析完成後回傳目前的身分
func (a *app) current(ctx context.Context) (market.Identity, error) {
	return a.identity.Wait(ctx)
}

// Close 依序停止身分訂閱、事件通知並關閉連線
func (a *app) Close() error {
	a.identity.Close()
	a.auth.Close()
	return multierr.Combine(closeDB(a.res.DB), a.res.Redis.Close())
}
