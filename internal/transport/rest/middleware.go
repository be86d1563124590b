package rest

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	CallerHeader = "X-Caller-ID"
	callerKey    = "callerID"
)

// requireCaller rejects requests without a caller identity. Authentication
// happens upstream; this layer only trusts the header the gateway sets.
func requireCaller() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(CallerHeader))
		if id == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, envelope{
				StatusCode: http.StatusUnauthorized,
				Message:    "missing " + CallerHeader + " header",
			})
			return
		}
		c.Set(callerKey, id)
		c.Next()
	}
}

func caller(c *gin.Context) string {
	return c.GetString(callerKey)
}

const (
	limiterIdleTTL       = 10 * time.Minute
	limiterSweepInterval = time.Minute
)

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipLimiters keeps one limiter per client IP. Entries idle for longer than
// limiterIdleTTL are swept at most once per limiterSweepInterval.
type ipLimiters struct {
	mu        sync.Mutex
	limiters  map[string]*ipLimiter
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

func newIPLimiters(limit rate.Limit, burst int) *ipLimiters {
	return &ipLimiters{
		limiters: make(map[string]*ipLimiter),
		limit:    limit,
		burst:    burst,
		now:      time.Now,
	}
}

func (s *ipLimiters) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) >= limiterSweepInterval {
		for key, entry := range s.limiters {
			if now.Sub(entry.lastSeen) > limiterIdleTTL {
				delete(s.limiters, key)
			}
		}
		s.lastSweep = now
	}

	entry, ok := s.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// rateLimit caps requests per client IP. A non-positive perSecond disables it.
func rateLimit(perSecond float64, burst int, log *slog.Logger) gin.HandlerFunc {
	if perSecond <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	if burst <= 0 {
		burst = 1
	}
	store := newIPLimiters(rate.Limit(perSecond), burst)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !store.get(ip).Allow() {
			log.Warn("rate limit exceeded", slog.String("ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, envelope{
				StatusCode: http.StatusTooManyRequests,
				Message:    "rate limit exceeded, try again later",
			})
			return
		}
		c.Next()
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info(
			"http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}

func recoverer(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("unhandled panic", slog.Any("panic", r), slog.String("path", c.FullPath()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, envelope{
					StatusCode: http.StatusInternalServerError,
					Message:    "internal error",
				})
			}
		}()
		c.Next()
	}
}
