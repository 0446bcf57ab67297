package config

import (
    "time"

    "github.com/labstack/gommon/log"
)

// Lock drivers selectable with LOCK_DRIVER.
const (
    LockRedis = "redis"
    LockLocal = "local"
)

// DefaultMaxNights caps a single stay when BOOKING_MAX_NIGHTS is unset.
const DefaultMaxNights = 365

// BookingConfig tunes the booking orchestrator.
//
// Fields:
//  MaxRetries         – retries after a conflict before ErrConflict is returned.
//  RetryInitialDelay  – first backoff delay; doubled per retry.
//  RetryMaxDelay      – backoff ceiling.
//  StrictAvailability – reject reservations whose nights are already blocked.
//  LockDriver         – "redis" or "local"; redis falls back to local when
//                       no Redis client is available.
//  LockPrefix         – Redis key namespace for room locks.
//  LockTTL            – lifetime of a held Redis lock.
//  LockWait           – how long a flow waits for a room lock.
//  Location           – hotel time zone used to compute "today".
//  RequestTimeout     – deadline applied to each service call from HTTP.
//  MaxNights          – longest stay a single reservation may cover.
type BookingConfig struct {
    MaxRetries         int
    RetryInitialDelay  time.Duration
    RetryMaxDelay      time.Duration
    StrictAvailability bool
    LockDriver         string
    LockPrefix         string
    LockTTL            time.Duration
    LockWait           time.Duration
    Location           *time.Location
    RequestTimeout     time.Duration
    MaxNights          int
}

// LoadBookingConfig reads BOOKING_* and LOCK_* variables.  Unknown time
// zones fall back to UTC with a warning.
func LoadBookingConfig() BookingConfig {
    cfg := BookingConfig{
        MaxRetries:         envInt("BOOKING_MAX_RETRIES", 3),
        RetryInitialDelay:  envDur("BOOKING_RETRY_INITIAL_DELAY", 20*time.Millisecond),
        RetryMaxDelay:      envDur("BOOKING_RETRY_MAX_DELAY", 500*time.Millisecond),
        StrictAvailability: envBool("BOOKING_STRICT_AVAILABILITY", false),
        LockDriver:         envStr("LOCK_DRIVER", LockRedis),
        LockPrefix:         envStr("LOCK_PREFIX", "lock"),
        LockTTL:            envDur("LOCK_TTL", 10*time.Second),
        LockWait:           envDur("LOCK_WAIT", 3*time.Second),
        Location:           time.UTC,
        RequestTimeout:     envDur("BOOKING_REQUEST_TIMEOUT", 5*time.Second),
        MaxNights:          envInt("BOOKING_MAX_NIGHTS", DefaultMaxNights),
    }
    if tz := envStr("HOTEL_TIMEZONE", "UTC"); tz != "UTC" {
        loc, err := time.LoadLocation(tz)
        if err != nil {
            log.Warnf("config: unknown HOTEL_TIMEZONE %q, using UTC", tz)
        } else {
            cfg.Location = loc
        }
    }
    if cfg.MaxRetries < 0 { cfg.MaxRetries = 0 }
    if cfg.RetryInitialDelay <= 0 { cfg.RetryInitialDelay = time.Millisecond }
    if cfg.RetryMaxDelay < cfg.RetryInitialDelay { cfg.RetryMaxDelay = cfg.RetryInitialDelay }
    if cfg.LockDriver != LockLocal { cfg.LockDriver = LockRedis }
    if cfg.MaxNights <= 0 { cfg.MaxNights = DefaultMaxNights }
    return cfg
}
