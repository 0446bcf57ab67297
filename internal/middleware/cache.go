package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/hotel-reservation/internal/config"
)

// cachedResponse is what the cache stores per key.  Headers are kept so a
// hit is byte-for-byte identical to the miss that filled it.
type cachedResponse struct {
    Status int         `json:"s"`
    Header http.Header `json:"h"`
    Body   []byte      `json:"b"`
}

// recorder tees the response to the client and buffers it up to limit
// bytes.  overflow is set once the body outgrows the buffer.
type recorder struct {
    http.ResponseWriter
    status   int
    buf      bytes.Buffer
    limit    int
    overflow bool
}

func (r *recorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
    if !r.overflow {
        if r.limit > 0 && r.buf.Len()+len(b) > r.limit {
            r.overflow = true
            r.buf.Reset()
        } else {
            r.buf.Write(b)
        }
    }
    return r.ResponseWriter.Write(b)
}

// cacheKey hashes the request according to cfg.KeyStrategy.  Query
// parameters are re-encoded so ?order=asc&x=1 and ?x=1&order=asc share an
// entry.
func cacheKey(cfg config.CacheConfig, r *http.Request) string {
    query := r.URL.Query().Encode()
    var tail string
    switch strings.ToLower(cfg.KeyStrategy) {
    case "route":
        tail = r.URL.Path
    case "method_route_query":
        tail = r.Method + " " + r.URL.Path + "?" + query
    default: // "route_query"
        tail = r.URL.Path + "?" + query
    }
    return fmt.Sprintf("%s:%x", cfg.Prefix, sha1.Sum([]byte(tail)))
}

// NewRedisCache serves cached GET responses for the paths in cfg.Paths.
// Only 200 responses that fit in MaxBodyBytes are stored.  Without Redis
// the middleware is a pass-through.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
    if !cfg.Enabled || rdb == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    ttl := cfg.TTL
    if ttl <= 0 {
        ttl = 30 * time.Second
    }

    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            if !cfg.Methods[req.Method] || !cacheablePath(cfg, req.URL.Path) {
                return next(c)
            }
            key := cacheKey(cfg, req)

            if bs, err := rdb.Get(req.Context(), key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    h := c.Response().Header()
                    for k, vals := range hit.Header {
                        if strings.EqualFold(k, echo.HeaderContentLength) {
                            continue
                        }
                        h[k] = vals
                    }
                    h.Set("X-Cache", "HIT")
                    c.Response().WriteHeader(hit.Status)
                    _, err := c.Response().Write(hit.Body)
                    return err
                }
            }

            rec := &recorder{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
            c.Response().Writer = rec
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if rec.status != http.StatusOK || rec.overflow {
                return nil
            }

            entry := cachedResponse{Status: rec.status, Header: c.Response().Header().Clone(), Body: rec.buf.Bytes()}
            if payload, err := json.Marshal(entry); err == nil {
                if err := rdb.Set(context.WithoutCancel(req.Context()), key, payload, ttl).Err(); err != nil {
                    c.Logger().Warnf("cache: store %s: %v", key, err)
                }
            }
            return nil
        }
    }
}

func cacheablePath(cfg config.CacheConfig, path string) bool {
    if len(cfg.Paths) == 0 {
        return true
    }
    for _, p := range cfg.Paths {
        if path == p || strings.HasPrefix(path, strings.TrimSuffix(p, "/")+"/") {
            return true
        }
    }
    return false
}

// CachePurger drops every cached response under a prefix.  Handlers call
// it after writes that change room availability.
type CachePurger struct {
    rdb    *redis.Client
    prefix string
}

// NewCachePurger returns nil when caching is disabled or Redis is absent;
// a nil purger is a no-op.
func NewCachePurger(cfg config.CacheConfig, rdb *redis.Client) *CachePurger {
    if !cfg.Enabled || rdb == nil {
        return nil
    }
    return &CachePurger{rdb: rdb, prefix: cfg.Prefix}
}

// Purge deletes cached entries in SCAN batches.
func (p *CachePurger) Purge(ctx context.Context) error {
    if p == nil {
        return nil
    }
    iter := p.rdb.Scan(ctx, 0, p.prefix+":*", 100).Iterator()
    keys := make([]string, 0, 100)
    for iter.Next(ctx) {
        keys = append(keys, iter.Val())
        if len(keys) == cap(keys) {
            if err := p.rdb.Del(ctx, keys...).Err(); err != nil {
                return err
            }
            keys = keys[:0]
        }
    }
    if err := iter.Err(); err != nil {
        return err
    }
    if len(keys) > 0 {
        return p.rdb.Del(ctx, keys...).Err()
    }
    return nil
}
