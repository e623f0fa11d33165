// Package config 定義伺服器與 CLI 共用的設定：命令列參數優先，
// 其次為 CAMPUSMART_ 開頭的環境變數 (可寫在 .env)。
package config

import (
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"campusmart/adapters/gormdata"
	"campusmart/adapters/logger"
	"campusmart/adapters/s3"
	"campusmart/api"
	"campusmart/backend"
	"campusmart/market"
)

const EnvPrefix = "CAMPUSMART"

// Config 是伺服器與 CLI 共用的設定
type Config struct {
	Log   logger.Options
	Viper *viper.Viper

	DB    gormdata.Config
	Redis api.RedisConfig
	S3    s3.Config
	Auth  api.AuthConfig
}

// RegisterFlags 註冊共用的命令列參數
func RegisterFlags(flags *pflag.FlagSet) {
	// log config
	flags.String("log-level", "info", "debug, info, warn or error")
	flags.Bool("log-json", false, "write logs as JSON")
	flags.String("log-file", "", "also write logs to this file with rotation")

	// db config
	flags.String("db-user", "", "")
	flags.String("db-password", "", "")
	flags.String("db-host", "localhost", "")
	flags.Int("db-port", 5432, "")
	flags.String("db-database", "", "")
	flags.String("db-schema", "", "")

	// redis config
	flags.String("redis-addr", "localhost:6379", "")
	flags.String("redis-password", "", "")
	flags.Int("redis-db", 0, "")
	flags.String("redis-key-prefix", "campusmart:", "")
	flags.Duration("category-cache-ttl", 0, "cache categories in redis, 0 disables the cache")

	// s3 config
	flags.String("s3-endpoint", "", "")
	flags.String("s3-access-key-id", "", "")
	flags.String("s3-secret-access-key", "", "")
	flags.String("s3-public-base-url", "", "")
	flags.String("s3-bucket-item-images", "", "bucket for item images, defaults to "+backend.BucketItemImages)
	flags.Bool("s3-path-style", false, "use path-style addressing")

	// auth config
	flags.String("auth-private-key", "", "base64 encoded ed25519 seed used to sign access tokens")
	flags.String("auth-issuer", "campusmart", "")
	flags.String("auth-audience", "campusmart", "")
	flags.Duration("auth-access-token-ttl", 0, "")
	flags.Duration("auth-refresh-token-ttl", 0, "")
	flags.Bool("auth-auto-confirm", false, "skip email verification")
	flags.String("auth-confirm-url", "", "link placed in verification mails")
}

// Load 讀取 .env 後將參數綁定到 viper，flags 必須已經 Parse
func Load(flags *pflag.FlagSet) (Config, error) {
	const op = "config.Load"
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, market.NewConfigurationError(op, "cannot read .env", err)
	}

	v := viper.New()
	if err := v.BindPFlags(flags); err != nil {
		return Config{}, market.NewConfigurationError(op, "cannot bind flags", err)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cfg := Config{
		Viper: v,
		Log: logger.Options{
			Level: v.GetString("log-level"),
			JSON:  v.GetBool("log-json"),
			File:  v.GetString("log-file"),
		},
		DB: gormdata.Config{
			User:     v.GetString("db-user"),
			Password: v.GetString("db-password"),
			Host:     v.GetString("db-host"),
			Port:     v.GetInt("db-port"),
			Database: v.GetString("db-database"),
			Schema:   v.GetString("db-schema"),
		},
		Redis: api.RedisConfig{
			Addr:             v.GetString("redis-addr"),
			Password:         v.GetString("redis-password"),
			DB:               v.GetInt("redis-db"),
			KeyPrefix:        v.GetString("redis-key-prefix"),
			CategoryCacheTTL: v.GetDuration("category-cache-ttl"),
		},
		S3: s3.Config{
			Endpoint:        v.GetString("s3-endpoint"),
			AccessKeyID:     v.GetString("s3-access-key-id"),
			SecretAccessKey: v.GetString("s3-secret-access-key"),
			PublicBaseURL:   v.GetString("s3-public-base-url"),
			UsePathStyle:    v.GetBool("s3-path-style"),
		},
		Auth: api.AuthConfig{
			Issuer:          v.GetString("auth-issuer"),
			Audience:        v.GetString("auth-audience"),
			AccessTokenTTL:  v.GetDuration("auth-access-token-ttl"),
			RefreshTokenTTL: v.GetDuration("auth-refresh-token-ttl"),
			AutoConfirm:     v.GetBool("auth-auto-confirm"),
			ConfirmURL:      v.GetString("auth-confirm-url"),
		},
	}
	if bucket := v.GetString("s3-bucket-item-images"); bucket != "" {
		cfg.S3.Buckets = map[string]string{backend.BucketItemImages: bucket}
	}
	if seed := v.GetString("auth-private-key"); seed != "" {
		key, err := ParsePrivateKey(seed)
		if err != nil {
			return Config{}, market.NewConfigurationError(op, "invalid auth-private-key", err)
		}
		cfg.Auth.PrivateKey = key
	}
	return cfg, nil
}

// ParsePrivateKey 解析 base64 編碼的 ed25519 seed
func ParsePrivateKey(encoded string) (ed25519.PrivateKey, error) {
	seed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

// Validate 檢查必要的設定，缺少時回傳列出所有缺少項目的 ConfigurationError
func (c Config) Validate() error {
	const op = "config.Validate"
	var missing []string
	for _, setting := range []struct{ name, value string }{
		{"db-user", c.DB.User},
		{"db-database", c.DB.Database},
		{"redis-addr", c.Redis.Addr},
		{"s3-endpoint", c.S3.Endpoint},
		{"s3-public-base-url", c.S3.PublicBaseURL},
		{"s3-access-key-id", c.S3.AccessKeyID},
		{"s3-secret-access-key", c.S3.SecretAccessKey},
	} {
		if setting.value == "" {
			missing = append(missing, setting.name)
		}
	}
	if len(c.Auth.PrivateKey) == 0 {
		missing = append(missing, "auth-private-key")
	}
	if len(missing) > 0 {
		return market.NewConfigurationError(op, "missing settings: "+strings.Join(missing, ", "), nil)
	}
	return nil
}
