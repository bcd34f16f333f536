// Package middleware holds the gin middleware shared by the API routes.
package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	rediskey "store_api/pkg/redis"

	"github.com/gin-gonic/gin"
	rd "github.com/redis/go-redis/v9"
)

// luaRateLimit is an atomic sliding window over a sorted set.
// KEYS[1]=bucket, ARGV[1]=now ms, ARGV[2]=window ms, ARGV[3]=member, ARGV[4]=limit.
// Returns the count including this request, or -1 when the request is rejected.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local member = ARGV[3]
local limit = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, window)
  return count + 1
end
return -1
`

var rateLimitScript = rd.NewScript(luaRateLimit)

// RedisRateLimit limits requests per authenticated user, or per client IP when
// the route is anonymous. Redis failures let the request through.
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(c *gin.Context) {
		var key string
		if u := CurrentUser(c); u != nil {
			key = rediskey.RateLimitUserKey(scope, u.ID)
		} else {
			key = rediskey.RateLimitIPKey(scope, c.ClientIP())
		}

		now := time.Now()
		member := fmt.Sprintf("%d-%s", now.UnixNano(), c.ClientIP())
		res, err := rateLimitScript.Run(c.Request.Context(), rdb, []string{key},
			now.UnixMilli(), window.Milliseconds(), member, limit).Int()
		if err != nil {
			log.WarnContext(c.Request.Context(), "rate limit unavailable", "scope", scope, "err", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		if res < 0 {
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"message": "Too many requests, please slow down.",
				"data":    nil,
			})
			return
		}
		c.Header("X-RateLimit-Remaining", strconv.Itoa(limit-res))
		c.Next()
	}
}
