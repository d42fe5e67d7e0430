package config

// Redis backs the auth rate limiter and the roles response cache.  Both
// degrade to pass-through when no client is available, so a failed
// connection at startup is reported but never fatal.

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection settings for Redis.
type RedisConfig struct {
	Addr     string // host:port; empty disables redis
	Password string
	DB       int
	TLS      bool
}

// NewRedisClient connects to Redis and pings it with a short timeout.  It
// returns nil when Addr is empty, and nil plus the ping error when the
// server is unreachable.
func NewRedisClient(rc RedisConfig) (*redis.Client, error) {
	if rc.Addr == "" {
		return nil, nil
	}
	var tlsConf *tls.Config
	if rc.TLS {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(&redis.Options{
		Addr:      rc.Addr,
		Password:  rc.Password,
		DB:        rc.DB,
		TLSConfig: tlsConf,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
