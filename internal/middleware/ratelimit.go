package middleware

import (
    "fmt"
    "math"
    "net/http"
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/hotel-reservation/internal/config"
)

// tokenBucket refills and takes one token atomically.  It returns
// {allowed, remaining, retry_after_ms}.
var tokenBucket = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local capacity = tonumber(ARGV[2])
    local refill_tokens = tonumber(ARGV[3])
    local interval_ms = tonumber(ARGV[4])
    local ttl_seconds = tonumber(ARGV[5])

    local state = redis.call('HMGET', key, 'tokens', 'last_refill_ms')
    local tokens = tonumber(state[1])
    local last_refill = tonumber(state[2])
    if tokens == nil or last_refill == nil then
        tokens = capacity
        last_refill = now_ms
    end

    local intervals = math.floor(math.max(0, now_ms - last_refill) / interval_ms)
    if intervals > 0 then
        tokens = math.min(capacity, tokens + intervals * refill_tokens)
        last_refill = last_refill + intervals * interval_ms
    end

    local allowed = 0
    local retry_after_ms = 0
    if tokens > 0 then
        allowed = 1
        tokens = tokens - 1
    else
        retry_after_ms = math.max(0, interval_ms - (now_ms - last_refill))
    end

    redis.call('HSET', key, 'tokens', tokens, 'last_refill_ms', last_refill)
    redis.call('EXPIRE', key, ttl_seconds)
    return { allowed, tokens, retry_after_ms }
`)

// bucketResult is the decoded script reply.
type bucketResult struct {
    allowed   bool
    remaining int64
    retry     time.Duration
}

func parseBucketResult(v interface{}) (bucketResult, bool) {
    arr, ok := v.([]interface{})
    if !ok || len(arr) != 3 {
        return bucketResult{}, false
    }
    var out [3]int64
    for i, x := range arr {
        n, ok := x.(int64)
        if !ok {
            return bucketResult{}, false
        }
        out[i] = n
    }
    return bucketResult{allowed: out[0] == 1, remaining: out[1], retry: time.Duration(out[2]) * time.Millisecond}, true
}

// isWrite reports whether the request mutates bookings and therefore
// draws from the stricter write bucket.
func isWrite(method string) bool {
    switch method {
    case http.MethodGet, http.MethodHead, http.MethodOptions:
        return false
    }
    return true
}

// NewTokenBucket limits requests per key with a Redis token bucket.  Reads
// and writes have separate buckets.  Redis errors fail open.
func NewTokenBucket(cfg config.RateLimitConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := int64(cfg.TTL / time.Second)

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            bucket, kind := cfg.Read, "r"
            if isWrite(c.Request().Method) {
                bucket, kind = cfg.Write, "w"
            }
            key := rateKey(cfg, c, kind)

            reply, err := tokenBucket.Run(c.Request().Context(), rdb, []string{key},
                time.Now().UnixMilli(), bucket.Capacity, bucket.RefillTokens,
                bucket.RefillInterval.Milliseconds(), ttl).Result()
            if err != nil {
                if cfg.Debug {
                    c.Logger().Warnf("ratelimit: %s: %v", key, err)
                }
                return next(c)
            }
            res, ok := parseBucketResult(reply)
            if !ok {
                c.Logger().Warnf("ratelimit: unexpected reply for %s: %#v", key, reply)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(bucket.Capacity))
            h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.remaining, 10))
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            if res.allowed {
                return next(c)
            }

            secs := int(math.Ceil(res.retry.Seconds()))
            h.Set("Retry-After", strconv.Itoa(secs))
            if cfg.Debug {
                c.Logger().Infof("ratelimit: blocked %s, retry in %s", key, res.retry)
            }
            return c.JSON(http.StatusTooManyRequests, echo.Map{
                "error":       "too many requests",
                "retry_after": secs,
            })
        }
    }
}

// rateKey builds the bucket key from the parts named in cfg.KeyStrategy
// ("ip", "user", "route", joined by "_").  Unknown strategies use ip_user.
func rateKey(cfg config.RateLimitConfig, c echo.Context, kind string) string {
    parts := []string{cfg.Prefix, kind}
    strategy := strings.ToLower(cfg.KeyStrategy)
    if strategy == "" {
        strategy = "ip_user"
    }
    for _, part := range strings.Split(strategy, "_") {
        switch part {
        case "ip":
            ip := c.RealIP()
            if ip == "" {
                ip = "unknown"
            }
            parts = append(parts, "ip", ip)
        case "user":
            uid := "anon"
            if id, ok := UserID(c); ok {
                uid = strconv.FormatUint(id, 10)
            }
            parts = append(parts, "user", uid)
        case "route":
            parts = append(parts, "route", fmt.Sprintf("%s %s", c.Request().Method, c.Path()))
        }
    }
    return strings.Join(parts, ":")
}
