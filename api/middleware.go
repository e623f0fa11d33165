package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"campusmart/adapters/session"
	"campusmart/backend"
	"campusmart/market"
)

const identityKeyForContext = "campusmart-identity"

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "campusmart_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "campusmart_http_request_duration_seconds",
		Help:    "HTTP request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() { prometheus.MustRegister(httpRequests, httpDuration) }

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// minBucketIdle 是閒置 bucket 保留的最短時間
const minBucketIdle = 10 * time.Minute

type ipBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters 為每個來源 IP 維護一個 token bucket。
// 閒置超過 idle 的 bucket 已回滿，清掉後重建的行為相同。
type ipLimiters struct {
	mu        sync.Mutex
	limit     rate.Limit
	burst     int
	idle      time.Duration
	now       func() time.Time
	buckets   map[string]*ipBucket
	lastSweep time.Time
}

func newIPLimiters(limit rate.Limit, burst int, now func() time.Time) *ipLimiters {
	idle := minBucketIdle
	if limit > 0 && limit != rate.Inf {
		if refill := time.Duration(float64(burst) / float64(limit) * float64(time.Second)); refill > idle {
			idle = refill
		}
	}
	return &ipLimiters{
		limit:     limit,
		burst:     burst,
		idle:      idle,
		now:       now,
		buckets:   make(map[string]*ipBucket),
		lastSweep: now(),
	}
}

func (l *ipLimiters) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) >= l.idle {
		for key, b := range l.buckets {
			if now.Sub(b.lastSeen) >= l.idle {
				delete(l.buckets, key)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.buckets[ip]
	if !ok {
		b = &ipBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (l *ipLimiters) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// rateLimitPerIP 為每個來源 IP 建立獨立的 token bucket
func rateLimitPerIP(limit rate.Limit, burst int) gin.HandlerFunc {
	limiters := newIPLimiters(limit, burst, time.Now)
	return func(c *gin.Context) {
		if !limiters.allow(c.ClientIP()) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// identityMiddleware 依序從 Bearer token、cookie session 解析身分，都沒有時為匿名。
// cookie session 的 access token 過期時會以 refresh token 換發。
func (s *Server) identityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := market.Anonymous()
		if token := bearerToken(c); token != "" {
			if user, err := s.auth.Verify(token); err == nil {
				identity = market.Identity{Kind: market.KindAuthenticated, ID: user.ID, Email: user.Email, Nickname: user.Nickname}
			}
		} else if sess, err := session.GetSession(c); err == nil {
			identity = s.identityFromSession(c, sess)
		} else {
			s.logger.Warn("Fail to load session", zap.Error(err))
		}
		c.Set(identityKeyForContext, identity)
		c.Next()
	}
}

func (s *Server) identityFromSession(c *gin.Context, sess session.ISession) market.Identity {
	token := sess.Get(SessionKeyAccessToken)
	if token == "" {
		return market.Anonymous()
	}
	if user, err := s.auth.Verify(token); err == nil {
		return market.Identity{Kind: market.KindAuthenticated, ID: user.ID, Email: user.Email, Nickname: user.Nickname}
	}

	refreshed, err := s.auth.Refresh(c.Request.Context(), sess.Get(SessionKeyRefreshToken))
	if err != nil && !errors.Is(err, backend.ErrSessionExpired) {
		s.logger.Warn("Fail to refresh session", zap.Error(err))
		return market.Anonymous()
	}
	if err != nil {
		sess.Clear()
		if err := sess.Save(); err != nil {
			s.logger.Warn("Fail to clear expired session", zap.Error(err))
		}
		return market.Anonymous()
	}
	sess.Set(SessionKeyAccessToken, refreshed.AccessToken)
	sess.Set(SessionKeyRefreshToken, refreshed.RefreshToken)
	if err := sess.Save(); err != nil {
		s.logger.Warn("Fail to save refreshed session", zap.Error(err))
	}
	return market.IdentityFromSession(refreshed)
}

func currentIdentity(c *gin.Context) market.Identity {
	if v, ok := c.Get(identityKeyForContext); ok {
		if identity, ok := v.(market.Identity); ok {
			return identity
		}
	}
	return market.Anonymous()
}
