package config

// This file defines the Redis settings and client constructor.  Redis backs
// the per-room booking locks, distributed rate limiting and the public
// response cache.  If the server cannot be reached at startup the
// constructor returns nil and callers degrade gracefully: locks fall back to
// the in-process locker while caching and rate limiting are disabled.

import (
    "context"
    "crypto/tls"
    "os"
    "strings"
    "time"

    "github.com/redis/go-redis/v9"
)

// RedisConfig holds the connection parameters for Redis.
type RedisConfig struct {
    Addr     string
    Password string
    DB       int
    TLS      bool
}

// LoadRedisConfig reads the Redis variables.  Supported variables are:
//   REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//   REDIS_ADDR – host:port shorthand (host/port win when both are set)
//   REDIS_PASSWORD – optional password
//   REDIS_DB – database number (default 0)
//   REDIS_TLS – enable TLS when "true" or "1"
func LoadRedisConfig() RedisConfig {
    host := os.Getenv("REDIS_HOST")
    port := os.Getenv("REDIS_PORT")
    addr := os.Getenv("REDIS_ADDR")
    if host != "" && port != "" {
        addr = host + ":" + port
    }
    if addr == "" {
        addr = "localhost:6379"
    }
    tlsEnv := os.Getenv("REDIS_TLS")
    return RedisConfig{
        Addr:     addr,
        Password: os.Getenv("REDIS_PASSWORD"),
        DB:       envInt("REDIS_DB", 0),
        TLS:      strings.EqualFold(tlsEnv, "true") || tlsEnv == "1",
    }
}

// NewRedisClient connects using cfg and pings the server with a short
// timeout.  The returned client is nil if the ping fails.
func NewRedisClient(cfg RedisConfig) *redis.Client {
    var tlsConf *tls.Config
    if cfg.TLS {
        tlsConf = &tls.Config{InsecureSkipVerify: true}
    }
    client := redis.NewClient(&redis.Options{
        Addr:      cfg.Addr,
        Password:  cfg.Password,
        DB:        cfg.DB,
        TLSConfig: tlsConf,
    })
    ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
    defer cancel()
    if err := client.Ping(ctx).Err(); err != nil {
        _ = client.Close()
        return nil
    }
    return client
}
