package config

import (
    "strings"
    "time"
)

// CacheConfig configures the Redis response cache in front of the public
// room endpoints.  Writes that change a room's ledger purge every entry
// under Prefix, so TTL only bounds staleness when a purge fails.
//
// Fields:
//  Enabled      – CACHE_ENABLED, default true (still needs Redis).
//  Methods      – cached HTTP methods, upper-cased.
//  TTL          – entry lifetime.
//  KeyStrategy  – "route_query" (default), "route" or "method_route_query".
//  Prefix       – Redis key prefix, also the purge pattern.
//  MaxBodyBytes – larger responses are served but not stored.
//  Paths        – cached path prefixes; the status report is never listed.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool
    TTL          time.Duration
    KeyStrategy  string
    Prefix       string
    MaxBodyBytes int
    Paths        []string
}

// LoadCacheConfig reads CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    cfg := CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      map[string]bool{},
        TTL:          envDur("CACHE_TTL", 30*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "route_query"),
        Prefix:       envStr("CACHE_PREFIX", "cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
        Paths:        envList("CACHE_PATHS", "/v1/rooms"),
    }
    for _, m := range envList("CACHE_METHODS", "GET") {
        cfg.Methods[strings.ToUpper(m)] = true
    }
    return cfg
}
