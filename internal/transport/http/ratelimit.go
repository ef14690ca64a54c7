package http

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/squadchat/internal/core"
	"github.com/vovakirdan/squadchat/internal/metrics"
)

// fixedWindow counts events in a window that starts at the first event.
type fixedWindow struct {
	start time.Time
	count int
}

// allow records one event at now and reports whether it fits under limit.
// When it does not, it also returns how long until the window resets.
func (w *fixedWindow) allow(now time.Time, limit int, window time.Duration) (bool, time.Duration) {
	if w.start.IsZero() || now.Sub(w.start) >= window {
		w.start = now
		w.count = 0
	}
	if w.count >= limit {
		return false, window - now.Sub(w.start)
	}
	w.count++
	return true, 0
}

// ipRateLimiter keeps one fixed window per client IP. The least recently
// seen IPs are evicted once the cache is full.
type ipRateLimiter struct {
	mu      sync.Mutex
	windows *lru.Cache
	limit   int
	window  time.Duration
	now     func() time.Time
}

// newIPRateLimiter returns nil (no limiting) when limit is not positive.
func newIPRateLimiter(limit int, window time.Duration, cacheSize int) (*ipRateLimiter, error) {
	if limit <= 0 {
		return nil, nil
	}
	if cacheSize <= 0 {
		cacheSize = 10000
	}
	cache, err := lru.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create rate limit cache: %w", err)
	}
	return &ipRateLimiter{
		windows: cache,
		limit:   limit,
		window:  window,
		now:     time.Now,
	}, nil
}

func (l *ipRateLimiter) allow(ip string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var w *fixedWindow
	if v, ok := l.windows.Get(ip); ok {
		w = v.(*fixedWindow)
	} else {
		w = &fixedWindow{}
		l.windows.Add(ip, w)
	}
	return w.allow(l.now(), l.limit, l.window)
}

// RateLimitMiddleware answers 429 once a client IP exceeds its request budget.
func RateLimitMiddleware(limiter *ipRateLimiter, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, retryAfter := limiter.allow(c.ClientIP())
		if ok {
			c.Next()
			return
		}

		metrics.RateLimitHits.WithLabelValues("http").Inc()
		logger.Debug().Str("client_ip", c.ClientIP()).Msg("rate limit exceeded")
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "too many requests, please try again later",
			Code:  core.ErrCodeRateLimited,
		})
	}
}

// connRateLimiter limits live send-message commands per connection.
// It is owned by the connection's read loop and is not safe for concurrent use.
type connRateLimiter struct {
	w     fixedWindow
	limit int
	now   func() time.Time
}

func newConnRateLimiter(perMinute int) *connRateLimiter {
	return &connRateLimiter{limit: perMinute, now: time.Now}
}

func (r *connRateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	ok, _ := r.w.allow(r.now(), r.limit, time.Minute)
	return ok
}
