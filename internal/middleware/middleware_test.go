package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"store_api/internal/apperr"
	"store_api/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

type tokens map[string]*model.User

func (t tokens) Authenticate(_ context.Context, token string) (*model.User, error) {
	if u, ok := t[token]; ok {
		return u, nil
	}
	return nil, apperr.ErrUnauthorized
}

func serve(r *gin.Engine, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthAndAdmin(t *testing.T) {
	auth := tokens{
		"user-token":  {ID: 1, Role: model.RoleUser},
		"admin-token": {ID: 2, Role: model.RoleAdmin},
	}
	r := gin.New()
	r.GET("/me", Auth(auth), func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"id": CurrentUser(c).ID}) })
	r.GET("/admin", Auth(auth), RequireAdmin(), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, http.MethodGet, "/me", "nope").Code)

	w := serve(r, http.MethodGet, "/me", "user-token")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":1}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, serve(r, http.MethodGet, "/admin", "user-token").Code)
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/admin", "admin-token").Code)
}

func TestRedisRateLimitPerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	auth := tokens{"a": {ID: 1}, "b": {ID: 2}}
	r := gin.New()
	r.POST("/orders", Auth(auth), RedisRateLimit(rdb, "orders", 2, time.Minute, nil), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/orders", "a").Code)
	w := serve(r, http.MethodPost, "/orders", "a")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, http.StatusTooManyRequests, serve(r, http.MethodPost, "/orders", "a").Code)

	assert.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/orders", "b").Code, "buckets are per user")
	assert.True(t, mr.Exists("store_api:rate_limit:orders:user:1"))
}

func TestRedisRateLimitFailsOpen(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := rd.NewClient(&rd.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	mr.Close()

	r := gin.New()
	r.GET("/products", RedisRateLimit(rdb, "public", 1, time.Minute, nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/products", "").Code)
	}
}
