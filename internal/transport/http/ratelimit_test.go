package http

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/squadchat/internal/config"
	"github.com/vovakirdan/squadchat/internal/core"
)

func TestFixedWindow(t *testing.T) {
	var w fixedWindow
	start := time.Unix(1_700_000_000, 0)

	ok, _ := w.allow(start, 2, time.Minute)
	require.True(t, ok)
	ok, _ = w.allow(start.Add(time.Second), 2, time.Minute)
	require.True(t, ok)

	ok, retry := w.allow(start.Add(20*time.Second), 2, time.Minute)
	require.False(t, ok)
	require.Equal(t, 40*time.Second, retry)

	ok, _ = w.allow(start.Add(time.Minute), 2, time.Minute)
	require.True(t, ok)
}

func TestIPRateLimiterPerIP(t *testing.T) {
	l, err := newIPRateLimiter(1, time.Minute, 2)
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.allow("10.0.0.1")
	require.True(t, ok)
	ok, _ = l.allow("10.0.0.1")
	require.False(t, ok)
	ok, _ = l.allow("10.0.0.2")
	require.True(t, ok)

	disabled, err := newIPRateLimiter(0, time.Minute, 10)
	require.NoError(t, err)
	require.Nil(t, disabled)
	ok, _ = disabled.allow("10.0.0.1")
	require.True(t, ok)
}

func TestConnRateLimiter(t *testing.T) {
	r := newConnRateLimiter(2)
	now := time.Unix(1_700_000_000, 0)
	r.now = func() time.Time { return now }

	require.True(t, r.allow())
	require.True(t, r.allow())
	require.False(t, r.allow())

	now = now.Add(time.Minute)
	require.True(t, r.allow())

	require.True(t, newConnRateLimiter(0).allow())
}

func TestRateLimitMiddleware(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.Config) {
		cfg.HTTPRateLimit = 2
		cfg.HTTPRateWindow = time.Minute
	})

	for range 2 {
		resp := env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "nobody", Password: "secret1"})
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	}

	resp := env.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "nobody", Password: "secret1"})
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.NotEmpty(t, resp.Header().Get("Retry-After"))
	require.Equal(t, core.ErrCodeRateLimited, decode[ErrorResponse](t, resp).Code)

	// health sits outside the api group
	resp = env.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.Code)
}
