package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/labstack/gommon/log"
)

func TestLoadBookingConfigDefaults(t *testing.T) {
    cfg := LoadBookingConfig()
    if cfg.MaxRetries != 3 || cfg.StrictAvailability || cfg.LockDriver != LockRedis {
        t.Fatalf("unexpected defaults: %+v", cfg)
    }
    if cfg.Location != time.UTC {
        t.Fatalf("expected UTC, got %v", cfg.Location)
    }
    if cfg.MaxNights != DefaultMaxNights {
        t.Fatalf("expected max nights %d, got %d", DefaultMaxNights, cfg.MaxNights)
    }
}

func TestLoadBookingConfigMaxNights(t *testing.T) {
    t.Setenv("BOOKING_MAX_NIGHTS", "30")
    if cfg := LoadBookingConfig(); cfg.MaxNights != 30 {
        t.Fatalf("expected 30, got %d", cfg.MaxNights)
    }
    t.Setenv("BOOKING_MAX_NIGHTS", "0")
    if cfg := LoadBookingConfig(); cfg.MaxNights != DefaultMaxNights {
        t.Fatalf("non-positive cap should fall back to %d, got %d", DefaultMaxNights, cfg.MaxNights)
    }
}

func TestLoadBookingConfigOverrides(t *testing.T) {
    t.Setenv("BOOKING_MAX_RETRIES", "-4")
    t.Setenv("BOOKING_STRICT_AVAILABILITY", "true")
    t.Setenv("LOCK_DRIVER", "local")
    t.Setenv("LOCK_WAIT", "250ms")
    t.Setenv("HOTEL_TIMEZONE", "Not/AZone")
    cfg := LoadBookingConfig()
    if cfg.MaxRetries != 0 {
        t.Fatalf("negative retries should clamp to 0, got %d", cfg.MaxRetries)
    }
    if !cfg.StrictAvailability || cfg.LockDriver != LockLocal || cfg.LockWait != 250*time.Millisecond {
        t.Fatalf("overrides not applied: %+v", cfg)
    }
    if cfg.Location != time.UTC {
        t.Fatalf("unknown zone should fall back to UTC, got %v", cfg.Location)
    }
}

func TestLoadQueueConfigURLFallback(t *testing.T) {
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")
    cfg := LoadQueueConfig()
    if cfg.URL != "amqp://u:p@broker:5672/" || cfg.Queue != "booking.events" {
        t.Fatalf("unexpected queue config: %+v", cfg)
    }
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
    path := filepath.Join(t.TempDir(), ".env")
    if err := os.WriteFile(path, []byte("HOTEL_TEST_A=fromfile\nHOTEL_TEST_B=fromfile\n"), 0o600); err != nil {
        t.Fatal(err)
    }
    t.Setenv("HOTEL_TEST_A", "fromenv")
    t.Setenv("HOTEL_TEST_B", "")
    os.Unsetenv("HOTEL_TEST_B")
    LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env"))
    if got := os.Getenv("HOTEL_TEST_A"); got != "fromenv" {
        t.Fatalf("existing variable overwritten: %q", got)
    }
    if got := os.Getenv("HOTEL_TEST_B"); got != "fromfile" {
        t.Fatalf("expected value from file, got %q", got)
    }
    os.Unsetenv("HOTEL_TEST_B")
}

func TestGommonLevel(t *testing.T) {
    if lvl := (Config{LogLevel: "DEBUG"}).GommonLevel(); lvl != log.DEBUG {
        t.Fatalf("expected DEBUG level, got %d", lvl)
    }
    if lvl := (Config{LogLevel: "bogus"}).GommonLevel(); lvl != log.INFO {
        t.Fatalf("expected INFO fallback, got %d", lvl)
    }
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_CAPACITY", "0")
    t.Setenv("RATE_LIMIT_WRITE_REFILL_INTERVAL", "1m")
    t.Setenv("RATE_LIMIT_TTL", "1s")
    cfg := LoadRateLimitConfig()
    if cfg.Read.Capacity != 1 {
        t.Fatalf("capacity should clamp to 1, got %d", cfg.Read.Capacity)
    }
    if cfg.TTL != 5*time.Minute {
        t.Fatalf("ttl should cover five write refills, got %s", cfg.TTL)
    }
}

func TestLoadCacheConfigLists(t *testing.T) {
    t.Setenv("CACHE_METHODS", "get, head")
    t.Setenv("CACHE_PATHS", "/v1/rooms, ,/v1/extra")
    cfg := LoadCacheConfig()
    if !cfg.Methods["GET"] || !cfg.Methods["HEAD"] || len(cfg.Methods) != 2 {
        t.Fatalf("methods: %v", cfg.Methods)
    }
    if len(cfg.Paths) != 2 || cfg.Paths[1] != "/v1/extra" {
        t.Fatalf("paths: %v", cfg.Paths)
    }
}
