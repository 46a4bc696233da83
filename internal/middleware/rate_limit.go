// Package middleware holds gin middleware for the HTTP surface in spec §6.
// RateLimit's per-IP token-bucket store is carried over from the teacher
// pack's leomuguchia-Bloomify_Server/middleware/rate_limiter.go; the two-
// tier split (a stricter bucket for hold creation, a looser general one)
// is this module's own, per SPEC_FULL.md's DOMAIN STACK section.
package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/bookwell/scheduling-core/pkg/logger"
)

// limiterStore holds one token bucket per key (client IP plus route),
// creating buckets lazily.
type limiterStore struct {
	mu                sync.Mutex
	limiters          map[string]*rate.Limiter
	rps               rate.Limit
	burst             int
	retryAfterSeconds string
}

func newLimiterStore(perMinute, burst int) *limiterStore {
	return &limiterStore{
		limiters:          make(map[string]*rate.Limiter),
		rps:               rate.Limit(float64(perMinute) / 60.0),
		burst:             burst,
		retryAfterSeconds: strconv.Itoa(int(math.Ceil(60.0 / float64(perMinute)))),
	}
}

func (s *limiterStore) get(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	limiter, ok := s.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(s.rps, s.burst)
		s.limiters[key] = limiter
	}
	return limiter
}

// RateLimiter builds gin middleware enforcing a per-(client IP, route)
// budget of perMinute requests (with a matching burst), scoped under name
// so the same client gets independent budgets for independent tiers
// (spec §6: hold creation is budgeted separately from the general
// surface). The route is gin's matched route pattern, not the raw URL.
func RateLimiter(name string, perMinute int, log *logger.Logger) gin.HandlerFunc {
	store := newLimiterStore(perMinute, perMinute)
	return func(c *gin.Context) {
		ip := clientIP(c)
		if !store.get(ip + " " + c.FullPath()).Allow() {
			log.Warn("rate limit exceeded", "tier", name, "ip", ip, "path", c.Request.URL.Path)
			c.Header("Retry-After", store.retryAfterSeconds)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"kind":    "rate_limited",
					"message": "too many requests, try again later",
				},
			})
			return
		}
		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 && strings.TrimSpace(ips[0]) != "" {
			return strings.TrimSpace(ips[0])
		}
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	addr := c.Request.RemoteAddr
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
