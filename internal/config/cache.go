package config

import (
	"strings"
	"time"
)

// CacheConfig drives the Redis response cache in front of read-only
// endpoints.  It is inert without a Redis client.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool // upper-case HTTP methods eligible for caching
	TTL          time.Duration
	KeyStrategy  string // route, route_query (default), method_route, method_route_query
	Prefix       string
	MaxBodyBytes int // responses larger than this are not stored; 0 means no limit
}

// Normalize fills in defaults for unset values.
func (c CacheConfig) Normalize() CacheConfig {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.Prefix == "" {
		c.Prefix = "cache"
	}
	if len(c.Methods) == 0 {
		c.Methods = map[string]bool{"GET": true}
	}
	return c
}

// Caches reports whether responses to method are cached.
func (c CacheConfig) Caches(method string) bool {
	return c.Methods[strings.ToUpper(method)]
}

// KeyParts returns the request attributes that make up a cache key under
// the configured strategy.
func (c CacheConfig) KeyParts(method, route, rawQuery string) []string {
	switch strings.ToLower(c.KeyStrategy) {
	case "route":
		return []string{route}
	case "method_route":
		return []string{method, route}
	case "method_route_query":
		return []string{method, route, rawQuery}
	default:
		return []string{route, rawQuery}
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range splitList(s) {
		m[strings.ToUpper(p)] = true
	}
	return m
}
