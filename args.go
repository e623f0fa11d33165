package main

import (
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"campusmart/api"
	"campusmart/config"
)

type Args struct {
	ServerURL       string
	ShutdownTimeout time.Duration
	Shared          config.Config
	ServerConfig    api.ServerConfig
}

// ParseArgs 讀取命令列參數與環境變數
func ParseArgs() (Args, error) {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")
	pflag.Duration("shutdown-timeout", 10*time.Second, "")
	pflag.Bool("auto-migrate", false, "create tables and default categories on start")

	// http config
	pflag.StringSlice("cors-allow-origins", nil, "allowed origins, empty allows any origin without credentials")
	pflag.Float64("auth-rate-limit", 5, "requests per second per IP on /auth, 0 disables the limit")
	pflag.Int("auth-rate-burst", 10, "")
	pflag.String("session-cookie-name", "campusmart-session", "")
	pflag.Duration("session-cookie-max-age", 30*24*time.Hour, "")
	pflag.Bool("session-cookie-secure", true, "")

	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		return Args{}, err
	}
	v := cfg.Viper
	return Args{
		ServerURL:       v.GetString("server-url"),
		ShutdownTimeout: v.GetDuration("shutdown-timeout"),
		Shared:          cfg,
		ServerConfig: api.ServerConfig{
			HTTP: api.HTTPConfig{
				AllowOrigins:  v.GetStringSlice("cors-allow-origins"),
				AuthRateLimit: rate.Limit(v.GetFloat64("auth-rate-limit")),
				AuthRateBurst: v.GetInt("auth-rate-burst"),
				Session: api.SessionConfig{
					KeyForCookie: v.GetString("session-cookie-name"),
					CookieMaxAge: v.GetDuration("session-cookie-max-age"),
					CookieSecure: v.GetBool("session-cookie-secure"),
				},
			},
			Auth:        cfg.Auth,
			S3:          cfg.S3,
			DB:          cfg.DB,
			Redis:       cfg.Redis,
			AutoMigrate: v.GetBool("auto-migrate"),
		},
	}, nil
}

// Validate 檢查伺服器必要的設定
func (a Args) Validate() error {
	return a.Shared.Validate()
}
