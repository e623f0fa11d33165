package api

import (
	"crypto/ed25519"
	"time"

	"golang.org/x/time/rate"

	"campusmart/adapters/gormdata"
	"campusmart/adapters/s3"
)

type ServerConfig struct {
	HTTP  HTTPConfig
	Auth  AuthConfig
	S3    s3.Config
	DB    gormdata.Config
	Redis RedisConfig

	// AutoMigrate 為 true 時啟動會建立資料表並寫入預設分類
	AutoMigrate bool
}

type HTTPConfig struct {
	AllowOrigins []string
	// AuthRateLimit 是 /auth 路由每個 IP 每秒允許的請求數，0 代表不限制
	AuthRateLimit rate.Limit
	AuthRateBurst int
	Session       SessionConfig
}

type SessionConfig struct {
	KeyForCookie string
	CookieMaxAge time.Duration
	CookieSecure bool
}

type AuthConfig struct {
	Issuer          string
	Audience        string
	PrivateKey      ed25519.PrivateKey
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	AutoConfirm     bool
	ConfirmURL      string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string

	CategoryCacheTTL time.Duration
}
