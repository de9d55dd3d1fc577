package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/event-ticket-booking/internal/config"
	"github.com/iliyamo/event-ticket-booking/internal/notify"
)

const secret = "test-secret"

func token(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"user_id": id, "role": Role(c)})
}

func serve(e *echo.Echo, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	g := e.Group("", JWTAuth(secret))
	g.GET("/me", whoami)
	g.GET("/owner", whoami, RequireRole(RoleOwner))

	exp := time.Now().Add(time.Hour).Unix()

	rec := serve(e, http.MethodGet, "/me", token(t, jwt.MapClaims{"sub": "42", "role": RoleCustomer, "exp": exp}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":42,"role":"CUSTOMER"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/me", token(t, jwt.MapClaims{"sub": 7, "role": RoleOwner, "exp": exp}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":7,"role":"OWNER"}`, rec.Body.String())

	rec = serve(e, http.MethodGet, "/owner", token(t, jwt.MapClaims{"sub": "42", "role": RoleCustomer, "exp": exp}))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(e, http.MethodGet, "/me", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", token(t, jwt.MapClaims{"sub": "42", "exp": time.Now().Add(-time.Minute).Unix()}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = serve(e, http.MethodGet, "/me", token(t, jwt.MapClaims{"sub": "alice", "exp": exp}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "1"}).SignedString([]byte("other"))
	require.NoError(t, err)
	rec = serve(e, http.MethodGet, "/me", forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/events/3/tickets", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.9")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/events/:id/tickets")
	c.Set(ctxUserID, uint64(12))

	cfg := config.RateLimitConfig{Prefix: "rl"}
	assert.Equal(t, "rl:ip:10.0.0.9:user:12:route:POST /v1/events/:id/tickets", rateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:ip:10.0.0.9", rateKey(cfg, c))

	cfg.KeyStrategy = "user"
	c.Set(ctxUserID, nil)
	assert.Equal(t, "rl:user:anon", rateKey(cfg, c))
}

func TestTokenBucket_FailsOpenWithoutRedis(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	e := echo.New()
	e.Use(NewTokenBucket(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Second, TTL: time.Minute, Prefix: "rl"}, rdb))
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	rec := serve(e, http.MethodGet, "/ping", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRedisCache(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Second, Prefix: "cache"}

	e := echo.New()
	calls := 0
	e.GET("/v1/events/:id", func(c echo.Context) error {
		calls++
		return c.JSON(http.StatusOK, echo.Map{"id": c.Param("id")})
	}, NewRedisCache(cfg, rdb))

	key := cacheKey("cache", httptest.NewRequest(http.MethodGet, "/v1/events/1", nil))
	assert.NotEqual(t, key, cacheKey("cache", httptest.NewRequest(http.MethodGet, "/v1/events/2", nil)))

	// miss
	mock.ExpectGet(key).RedisNil()
	rec := serve(e, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, 1, calls)

	// hit
	hdr := http.Header{}
	hdr.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	payload, err := encodePayload(http.StatusOK, hdr, []byte(`{"id":"1"}`))
	require.NoError(t, err)
	mock.ExpectGet(key).SetVal(string(payload))

	rec = serve(e, http.MethodGet, "/v1/events/1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, echo.MIMEApplicationJSON, rec.Header().Get(echo.HeaderContentType))
	assert.JSONEq(t, `{"id":"1"}`, rec.Body.String())
	assert.Equal(t, 1, calls)
}

func eventPath(id uint64) string { return fmt.Sprintf("/v1/events/%d", id) }

func TestCacheInvalidator_DropsEventRead(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	cfg := config.CacheConfig{Enabled: true, Methods: map[string]bool{"GET": true}, TTL: time.Second, Prefix: "cache"}
	inv := NewCacheInvalidator(cfg, rdb, eventPath)
	require.NotNil(t, inv)

	key := cacheKey("cache", httptest.NewRequest(http.MethodGet, "/v1/events/3", nil))
	mock.ExpectDel(key).SetVal(1)
	require.NoError(t, inv.Notify(context.Background(), notify.Change{Kind: notify.TicketBooked, EventID: 3}))

	mock.ExpectDel(key).SetVal(0)
	require.NoError(t, inv.Notify(context.Background(), notify.Change{Kind: notify.TicketCancelled, EventID: 3}))

	// used tickets keep the counters
	require.NoError(t, inv.Notify(context.Background(), notify.Change{Kind: notify.TicketUsed, EventID: 3}))
	assert.NoError(t, mock.ExpectationsWereMet())

	mock.ExpectDel(key).SetErr(errors.New("connection refused"))
	assert.Error(t, inv.Notify(context.Background(), notify.Change{Kind: notify.TicketBooked, EventID: 3}))
}

func TestCacheInvalidator_DisabledIsNoop(t *testing.T) {
	rdb, _ := redismock.NewClientMock()
	inv := NewCacheInvalidator(config.CacheConfig{Enabled: false}, rdb, eventPath)
	assert.Nil(t, inv)
	assert.NoError(t, inv.Notify(context.Background(), notify.Change{Kind: notify.TicketBooked, EventID: 3}))
}

func TestDecodePayload_RejectsTruncated(t *testing.T) {
	_, _, _, ok := decodePayload([]byte{0, 0})
	assert.False(t, ok)
	_, _, _, ok = decodePayload([]byte{0, 0, 0, 200, 0, 0, 0, 50, '{'})
	assert.False(t, ok)
}
