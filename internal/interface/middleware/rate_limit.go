package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/oksasatya/go-account-service/pkg/response"
)

const rateKeyPrefix = "accounts:rl:"

// KeyFunc maps a request to the bucket it is counted in.
type KeyFunc func(c *gin.Context) string

// SkipFunc returns true for requests the limiter should not count.
type SkipFunc func(c *gin.Context) bool

// RateRule is one fixed-window limit: at most Max requests per Window per key.
type RateRule struct {
	Max    int
	Window time.Duration
	Key    KeyFunc
	Skip   SkipFunc
}

func ByIP(c *gin.Context) string { return "ip:" + ClientIP(c) }

// ByRoute counts each route template separately per client IP.
func ByRoute(c *gin.Context) string {
	route := c.FullPath()
	if route == "" {
		route = c.Request.URL.Path
	}
	return "route:" + route + ":ip:" + ClientIP(c)
}

// ByUser counts authenticated users by id and everyone else by IP.
// It must run after Auth.
func ByUser(c *gin.Context) string {
	if u := CurrentUser(c); u != nil {
		return "user:" + u.ID
	}
	return "user:anon:ip:" + ClientIP(c)
}

func SkipPrivateIP(c *gin.Context) bool {
	ip := net.ParseIP(ClientIP(c))
	return ip != nil && (ip.IsLoopback() || ip.IsPrivate())
}

// SkipAny skips when any of fns does. Nil entries are ignored.
func SkipAny(fns ...SkipFunc) SkipFunc {
	return func(c *gin.Context) bool {
		for _, fn := range fns {
			if fn != nil && fn(c) {
				return true
			}
		}
		return false
	}
}

// hitScript increments the bucket, starts its window on the first hit and
// returns {count, pttl} in one round trip.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {n, redis.call("PTTL", KEYS[1])}
`)

// RateLimit enforces rule against Redis and sets the X-RateLimit-* headers.
// It fails open: a Redis error lets the request through.
func RateLimit(rdb *redis.Client, rule RateRule) gin.HandlerFunc {
	if rdb == nil || rule.Max <= 0 || rule.Window <= 0 || rule.Key == nil {
		return func(c *gin.Context) { c.Next() }
	}
	limit := strconv.Itoa(rule.Max)
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || (rule.Skip != nil && rule.Skip(c)) {
			c.Next()
			return
		}

		res, err := hitScript.Run(c.Request.Context(), rdb, []string{rateKeyPrefix + rule.Key(c)}, rule.Window.Milliseconds()).Int64Slice()
		if err != nil || len(res) != 2 {
			c.Next()
			return
		}
		count, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
		reset := 0
		if ttl > 0 {
			reset = int((ttl + time.Second - 1) / time.Second)
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(rule.Max-count, 0)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(reset))

		if count > rule.Max {
			if reset > 0 {
				c.Header("Retry-After", strconv.Itoa(reset))
			}
			response.Error(c, http.StatusTooManyRequests, "rate limit exceeded", nil)
			return
		}
		c.Next()
	}
}
