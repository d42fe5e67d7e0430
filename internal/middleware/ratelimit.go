package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
)

// takeToken refills the bucket at KEYS[1] for the whole intervals elapsed
// since the last refill, then takes one token if there is one.
//
//	ARGV: now_ms, capacity, refill_tokens, interval_ms, ttl_s
//	returns: {allowed (0|1), tokens_left, retry_after_ms}
var takeToken = redis.NewScript(`
local now, cap, step, every, ttl =
	tonumber(ARGV[1]), tonumber(ARGV[2]), tonumber(ARGV[3]), tonumber(ARGV[4]), tonumber(ARGV[5])

local b = redis.call('HMGET', KEYS[1], 'tokens', 'at')
local tokens, at = tonumber(b[1]), tonumber(b[2])
if not tokens or not at then
	tokens, at = cap, now
end

local n = math.floor(math.max(0, now - at) / every)
if n > 0 then
	tokens = math.min(cap, tokens + n * step)
	at = at + n * every
end

local ok, wait = 0, 0
if tokens >= 1 then
	ok, tokens = 1, tokens - 1
else
	wait = math.max(0, at + every - now)
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'at', at)
redis.call('EXPIRE', KEYS[1], ttl)
return {ok, tokens, wait}
`)

// NewTokenBucket rate limits requests with a per-key token bucket kept in
// Redis.  Disabled config or a nil client turn it into a no-op; a Redis
// failure lets the request through.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	cfg = cfg.Normalize()
	limit := strconv.Itoa(cfg.Capacity)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := rateKey(cfg, c)
			res, err := takeToken.Run(c.Request().Context(), rdb, []string{key},
				time.Now().UnixMilli(),
				cfg.Capacity,
				cfg.RefillTokens,
				cfg.RefillInterval.Milliseconds(),
				int64(cfg.TTL.Seconds()),
			).Int64Slice()
			if err != nil || len(res) != 3 {
				log.Warn("ratelimit: bucket unavailable, allowing request", zap.String("key", key), zap.Error(err))
				return next(c)
			}

			h := c.Response().Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res[1], 10))
			if cfg.Debug {
				h.Set("X-RateLimit-Key", key)
			}
			if res[0] == 1 {
				return next(c)
			}

			retry := int((time.Duration(res[2])*time.Millisecond + time.Second - 1) / time.Second)
			h.Set("Retry-After", strconv.Itoa(retry))
			if cfg.Debug {
				log.Info("ratelimit: blocked", zap.String("key", key), zap.Int("retry_after", retry))
			}
			return c.JSON(http.StatusTooManyRequests, echo.Map{
				"success":     false,
				"error":       "TOO_MANY_REQUESTS",
				"message":     "Too many requests. Please try again later.",
				"retry_after": retry,
			})
		}
	}
}

// rateKey names the bucket for c.  The strategy is a list of dimensions
// joined by underscores, e.g. "ip_route"; unknown strategies use all three.
func rateKey(cfg config.RateLimitConfig, c echo.Context) string {
	dims := strings.Split(strings.ToLower(cfg.KeyStrategy), "_")
	switch strings.ToLower(cfg.KeyStrategy) {
	case "ip", "user", "route", "ip_user", "ip_route", "user_route":
	default:
		dims = []string{"ip", "user", "route"}
	}

	parts := []string{cfg.Prefix}
	for _, d := range dims {
		switch d {
		case "ip":
			ip := c.RealIP()
			if ip == "" {
				ip = "unknown"
			}
			parts = append(parts, "ip", ip)
		case "user":
			parts = append(parts, "user", userID(c))
		case "route":
			parts = append(parts, "route", c.Request().Method+" "+c.Path())
		}
	}
	return strings.Join(parts, ":")
}
