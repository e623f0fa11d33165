package api

import (
	"github.com/gin-gonic/gin"

	"campusmart/adapters/session"
)

// 存在 cookie session 中的欄位
const (
	SessionKeyAccessToken  = "access_token"
	SessionKeyRefreshToken = "refresh_token"
)

func (s *Server) sessionMiddleware() gin.HandlerFunc {
	cfg := s.config.HTTP.Session
	opts := []session.Option{session.WithCookieSecure(cfg.CookieSecure)}
	if cfg.KeyForCookie != "" {
		opts = append(opts, session.WithCookieName(cfg.KeyForCookie))
	}
	if cfg.CookieMaxAge > 0 {
		opts = append(opts, session.WithCookieMaxAge(cfg.CookieMaxAge))
	}
	return session.GinMiddleware(s.sessions, opts...)
}
