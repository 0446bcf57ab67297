package config

import "time"

// Bucket is one token bucket: Capacity requests at once, refilled by
// RefillTokens every RefillInterval.
type Bucket struct {
    Capacity       int
    RefillTokens   int
    RefillInterval time.Duration
}

// RateLimitConfig configures the Redis token-bucket middleware.
//
// Fields:
//  Enabled     – RATE_LIMIT_ENABLED, default true (still needs Redis).
//  Read        – bucket for GET/HEAD requests (RATE_LIMIT_*).
//  Write       – stricter bucket for booking writes (RATE_LIMIT_WRITE_*);
//                bookings take a room lock, reads do not.
//  TTL         – idle lifetime of a bucket key, at least five refills.
//  KeyStrategy – ip, user, route or a combination joined by "_".
//  Prefix      – Redis key prefix.
//  Debug       – log blocked requests and expose the bucket key.
type RateLimitConfig struct {
    Enabled     bool
    Read        Bucket
    Write       Bucket
    TTL         time.Duration
    KeyStrategy string
    Prefix      string
    Debug       bool
}

// LoadRateLimitConfig reads RATE_LIMIT_* variables.
func LoadRateLimitConfig() RateLimitConfig {
    cfg := RateLimitConfig{
        Enabled: envBool("RATE_LIMIT_ENABLED", true),
        Read: Bucket{
            Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
            RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
            RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
        },
        Write: Bucket{
            Capacity:       envInt("RATE_LIMIT_WRITE_CAPACITY", 10),
            RefillTokens:   envInt("RATE_LIMIT_WRITE_REFILL_TOKENS", 1),
            RefillInterval: envDur("RATE_LIMIT_WRITE_REFILL_INTERVAL", 6*time.Second),
        },
        TTL:         envDur("RATE_LIMIT_TTL", 10*time.Minute),
        KeyStrategy: envStr("RATE_LIMIT_KEY_STRATEGY", "ip_user"),
        Prefix:      envStr("RATE_LIMIT_PREFIX", "rl"),
        Debug:       envBool("RATE_LIMIT_DEBUG", false),
    }
    cfg.Read = cfg.Read.clamped()
    cfg.Write = cfg.Write.clamped()
    slowest := cfg.Read.RefillInterval
    if cfg.Write.RefillInterval > slowest {
        slowest = cfg.Write.RefillInterval
    }
    if cfg.TTL < 5*slowest {
        cfg.TTL = 5 * slowest
    }
    return cfg
}

func (b Bucket) clamped() Bucket {
    if b.Capacity < 1 {
        b.Capacity = 1
    }
    if b.RefillTokens < 1 {
        b.RefillTokens = 1
    }
    if b.RefillInterval <= 0 {
        b.RefillInterval = time.Second
    }
    return b
}
