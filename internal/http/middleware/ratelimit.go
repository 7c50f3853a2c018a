package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter keeps one token bucket per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
}

func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 10
	}
	if burst <= 0 {
		burst = perMinute
	}
	return &IPRateLimiter{
		limiters: map[string]*limiterEntry{},
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     10 * time.Minute,
	}
}

func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	entry, ok := l.limiters[ip]
	if !ok {
		if len(l.limiters) > 10000 {
			l.prune(now)
		}
		entry = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter.Allow()
}

func (l *IPRateLimiter) prune(now time.Time) {
	for ip, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, ip)
		}
	}
}

func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	retry := strconv.Itoa(int((time.Duration(float64(time.Second) / float64(l.limit))).Seconds()) + 1)
	return func(c *gin.Context) {
		if l.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		log.Warn().Str("client_ip", c.ClientIP()).Str("path", c.Request.URL.Path).Msg("[ratelimit] login attempts throttled")
		c.Header("Retry-After", retry)
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many login attempts, try again later"})
	}
}
