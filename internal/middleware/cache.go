package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/danielolaru91/AuthSystem/internal/config"
)

const cacheHeader = "X-Cache"

// cachedResponse is what a cache entry holds in Redis.
type cachedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// recorder copies the response body while it is written.  Once the body
// outgrows limit the copy is abandoned and the response is not stored.
type recorder struct {
	http.ResponseWriter
	status   int
	body     bytes.Buffer
	limit    int
	overflow bool
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.overflow {
		if r.limit > 0 && r.body.Len()+len(b) > r.limit {
			r.overflow = true
			r.body.Reset()
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}

func cacheKey(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	sum := sha256.Sum256([]byte(strings.Join(cfg.KeyParts(r.Method, c.Path(), r.URL.RawQuery), "\x00")))
	return cfg.Prefix + ":" + hex.EncodeToString(sum[:16])
}

// NewRedisCache serves repeated reads from Redis.  Only 200 responses are
// stored; X-Cache says HIT or MISS.  With caching disabled or no client it
// is a no-op, and Redis errors fall through to the handler.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	cfg = cfg.Normalize()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Caches(c.Request().Method) {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKey(cfg, c)

			hit, err := lookup(ctx, rdb, key)
			if err != nil {
				log.Warn("cache: lookup failed", zap.String("key", key), zap.Error(err))
			}
			if hit != nil {
				return replay(c, hit)
			}

			rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = rec
			c.Response().Header().Set(cacheHeader, "MISS")

			if err := next(c); err != nil {
				return err
			}
			if rec.status != http.StatusOK || rec.overflow {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del(cacheHeader)
			hdr.Del(echo.HeaderContentLength)
			entry, err := json.Marshal(cachedResponse{Status: rec.status, Header: hdr, Body: rec.body.Bytes()})
			if err != nil {
				return nil
			}
			// the client may already be gone; the entry is still worth keeping
			if err := rdb.Set(context.WithoutCancel(ctx), key, entry, cfg.TTL).Err(); err != nil {
				log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
			}
			return nil
		}
	}
}

// lookup returns nil, nil on a miss.  Unreadable entries count as misses.
func lookup(ctx context.Context, rdb *redis.Client, key string) (*cachedResponse, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry cachedResponse
	if json.Unmarshal(raw, &entry) != nil || entry.Status == 0 {
		return nil, nil
	}
	return &entry, nil
}

func replay(c echo.Context, entry *cachedResponse) error {
	h := c.Response().Header()
	for k, vals := range entry.Header {
		for _, v := range vals {
			h.Add(k, v)
		}
	}
	h.Set(cacheHeader, "HIT")
	c.Response().WriteHeader(entry.Status)
	_, err := c.Response().Write(entry.Body)
	return err
}
