package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"campusmart/adapters/auth"
	"campusmart/adapters/gormdata"
	redisAdapter "campusmart/adapters/redis"
	"campusmart/adapters/s3"
	"campusmart/adapters/session"
	"campusmart/backend"
	"campusmart/market"
)

// Dependencies 是 Server 使用的外部資源，測試時可以替換
type Dependencies struct {
	DB      *gorm.DB
	Redis   redis.UniversalClient
	Storage backend.StorageClient
	Mailer  auth.Mailer
}

// Server 以 HTTP 提供商品與帳號操作
type Server struct {
	engine    *gin.Engine
	lifecycle *market.Lifecycle
	listings  *market.Listings
	auth      *auth.Service
	sessions  session.IStore
	db        *gorm.DB
	redis     redis.UniversalClient
	logger    *zap.Logger
	config    ServerConfig
}

// NewServer 依設定建立所有連線後組出 Server
func NewServer(ctx context.Context, config ServerConfig, logger *zap.Logger) (*Server, error) {
	const op = "NewServer"

	// 初始化資料庫連線
	db, err := gormdata.Open(config.DB)
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to open database, err=%w", op, err)
	}
	if config.AutoMigrate {
		if err := gormdata.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("[%s] Fail to migrate database, err=%w", op, err)
		}
	}

	// 初始化Redis連線
	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.Redis.Addr,
		Password: config.Redis.Password,
		DB:       config.Redis.DB,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("[%s] Fail to connect to redis, err=%w", op, err)
	}

	// 初始化S3客戶端
	storage, err := s3.Open(ctx, config.S3, s3.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("[%s] Fail to open object storage, err=%w", op, err)
	}

	return New(Dependencies{DB: db, Redis: redisClient, Storage: storage}, config, logger)
}

// New 以既有的資源組出 Server
func New(deps Dependencies, config ServerConfig, logger *zap.Logger) (*Server, error) {
	const op = "api.New"
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.DB == nil || deps.Redis == nil {
		return nil, market.NewConfigurationError(op, "database and redis are required", nil)
	}

	if config.HTTP.Session.CookieMaxAge <= 0 {
		config.HTTP.Session.CookieMaxAge = 24 * time.Hour
	}
	prefix := config.Redis.KeyPrefix
	opts := []market.Option{market.WithLogger(logger)}
	if config.Redis.CategoryCacheTTL > 0 {
		cache := redisAdapter.NewCache(deps.Redis,
			redisAdapter.WithCachePrefix(prefix+"cache:"),
			redisAdapter.WithCacheLogger(logger),
		)
		opts = append(opts, market.WithCategoryCache(redisAdapter.NewCategoryCache(cache, config.Redis.CategoryCacheTTL)))
	}
	lifecycle, err := market.NewLifecycle(backend.Client{
		Data:    gormdata.New(deps.DB, gormdata.WithLogger(logger)),
		Storage: deps.Storage,
	}, opts...)
	if err != nil {
		return nil, err
	}

	authService, err := auth.NewService(
		deps.DB,
		redisAdapter.NewTokenStore(deps.Redis, redisAdapter.WithTokenPrefix(prefix+"token:")),
		auth.Config{
			Issuer:          config.Auth.Issuer,
			Audience:        config.Auth.Audience,
			PrivateKey:      config.Auth.PrivateKey,
			AccessTokenTTL:  config.Auth.AccessTokenTTL,
			RefreshTokenTTL: config.Auth.RefreshTokenTTL,
			AutoConfirm:     config.Auth.AutoConfirm,
			ConfirmURL:      config.Auth.ConfirmURL,
		},
		auth.WithLogger(logger),
		auth.WithMailer(deps.Mailer),
	)
	if err != nil {
		return nil, market.NewConfigurationError(op, "invalid auth settings", err)
	}

	s := &Server{
		lifecycle: lifecycle,
		listings:  lifecycle.Listings(),
		auth:      authService,
		sessions: redisAdapter.NewStore(deps.Redis,
			redisAdapter.WithStorePrefix(prefix+"session:"),
			redisAdapter.WithStoreTTL(config.HTTP.Session.CookieMaxAge),
		),
		db:     deps.DB,
		redis:  deps.Redis,
		logger: logger,
		config: config,
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	r.Use(ginzap.RecoveryWithZap(s.logger, true))
	r.Use(s.corsMiddleware())
	r.Use(metricsMiddleware())

	r.GET("/healthz", s.healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.Use(s.sessionMiddleware(), s.identityMiddleware())

	authGroup := r.Group("/auth")
	if s.config.HTTP.AuthRateLimit > 0 {
		authGroup.Use(rateLimitPerIP(s.config.HTTP.AuthRateLimit, max(1, s.config.HTTP.AuthRateBurst)))
	}
	authGroup.POST("/signup", s.signUp)
	authGroup.POST("/login", s.login)
	authGroup.POST("/logout", s.logout)
	authGroup.POST("/refresh", s.refresh)
	authGroup.POST("/resend", s.resendVerification)
	authGroup.GET("/confirm", s.confirmEmail)
	authGroup.GET("/session", s.currentSession)

	r.GET("/categories", s.listCategories)
	r.GET("/items", s.listItems)
	r.POST("/items", s.publishItem)
	r.GET("/items/:id", s.getItem)
	r.GET("/items/:id/seller", s.getSeller)
	r.POST("/items/:id/sold", s.markSold)
	r.DELETE("/items/:id", s.removeItem)
	r.GET("/me/items", s.listOwnItems)
	return r
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Location"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.config.HTTP.AllowOrigins) == 0 {
		cfg.AllowAllOrigins = true
		cfg.AllowCredentials = false
	} else {
		cfg.AllowOrigins = s.config.HTTP.AllowOrigins
	}
	return cors.New(cfg)
}

// Handler 回傳 http.Handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	var errs error
	if err := s.redis.Ping(ctx).Err(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("redis: %w", err))
	}
	if sqlDB, err := s.db.DB(); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("database: %w", err))
	} else if err := sqlDB.PingContext(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("database: %w", err))
	}
	if errs != nil {
		s.logger.Warn("Health check failed", zap.Error(errs))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Close 關閉資料庫與 Redis 連線
func (s *Server) Close() error {
	var errs error
	if sqlDB, err := s.db.DB(); err != nil {
		errs = multierr.Append(errs, err)
	} else {
		errs = multierr.Append(errs, sqlDB.Close())
	}
	errs = multierr.Append(errs, s.redis.Close())
	return errs
}
