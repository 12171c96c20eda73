package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/communityhub/backend/pkg/response"
)

const (
	visitorTTL         = 10 * time.Minute
	defaultMaxVisitors = 10000
)

// IPRateLimiter keeps one token bucket per client IP. Buckets live in a bounded LRU;
// idle ones expire and the least recent is evicted when full.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors *expirable.LRU[string, *rate.Limiter]
	limit    rate.Limit
	burst    int
}

// NewIPRateLimiter allows perMinute requests per IP with the given burst.
func NewIPRateLimiter(perMinute, burst int) *IPRateLimiter {
	return newIPRateLimiter(perMinute, burst, defaultMaxVisitors)
}

func newIPRateLimiter(perMinute, burst, maxVisitors int) *IPRateLimiter {
	if perMinute <= 0 {
		perMinute = 20
	}
	if burst <= 0 {
		burst = 1
	}
	return &IPRateLimiter{
		visitors: expirable.NewLRU[string, *rate.Limiter](maxVisitors, nil, visitorTTL),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

// Allow reports whether ip may make a request now.
func (l *IPRateLimiter) Allow(ip string) bool {
	l.mu.Lock()
	lim, ok := l.visitors.Get(ip)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.visitors.Add(ip, lim)
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Visitors returns the number of tracked IPs.
func (l *IPRateLimiter) Visitors() int { return l.visitors.Len() }

// RateLimit rejects requests over the per-IP budget with 429.
func RateLimit(l *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.Allow(c.ClientIP()) {
			response.TooManyRequests(c, "too many requests, please try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}

// TrustProxies limits which peers may set the client IP through forwarding headers.
// With no proxies, c.ClientIP() is always the socket peer.
func TrustProxies(r *gin.Engine, proxies []string) error {
	if len(proxies) == 0 {
		return r.SetTrustedProxies(nil)
	}
	return r.SetTrustedProxies(proxies)
}
