package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	redisdb "github.com/acim-association/members-dashboard/internal/infrastructure/db/redis"
)

func newLimitedEcho(t *testing.T, capacity int, window time.Duration) (*echo.Echo, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	e := echo.New()
	limiter := redisdb.NewRateLimiter(rdb, redisdb.Limit{Name: "login", Capacity: capacity, Window: window})
	e.POST("/auth/login", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, RateLimit(limiter, zerolog.Nop()))
	return e, mr
}

func doLogin(e *echo.Echo, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.Header.Set(echo.HeaderXRealIP, ip)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_AllowsWithinCapacity(t *testing.T) {
	e, _ := newLimitedEcho(t, 2, time.Minute)

	assert.Equal(t, http.StatusOK, doLogin(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doLogin(e, "10.0.0.1").Code)

	rec := doLogin(e, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	// Other clients are unaffected.
	assert.Equal(t, http.StatusOK, doLogin(e, "10.0.0.2").Code)
}

func TestRateLimit_FailsOpen(t *testing.T) {
	e, mr := newLimitedEcho(t, 1, time.Minute)
	mr.Close()

	assert.Equal(t, http.StatusOK, doLogin(e, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doLogin(e, "10.0.0.1").Code)
}
