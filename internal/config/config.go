package config // package config loads application configuration from environment variables

import (
    "os"      // os provides access to environment variables
    "strings" // strings normalizes enum-like values

    "github.com/joho/godotenv"       // godotenv loads a local .env file into the environment
    "github.com/labstack/gommon/log" // log reports configuration errors and halts execution
)

// Storage engines selectable with STORE_DRIVER.
const (
    StoreMySQL = "mysql"
    StoreBolt  = "bolt"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Optional groups (booking, queue, cache, rate
// limit) are loaded by their own Load* functions.
type Config struct {
    Env              string // application environment (e.g. "dev", "prod")
    Port             string // HTTP port to listen on
    StoreDriver      string // "mysql" (default) or "bolt"
    BoltPath         string // Bolt database file when StoreDriver is "bolt"
    DBUser           string // database username
    DBPass           string // database password (optional)
    DBHost           string // database host address
    DBPort           string // database port number
    DBName           string // database name
    JWTSecret        string // secret used to verify JWTs
    LogLevel         string // DEBUG, INFO, WARN, ERROR or OFF
    ReconcileOnStart bool   // rebuild ledgers and booking indexes at startup
}

// LoadDotEnv loads variables from the given files (default ".env") into
// the environment.  Existing variables win and a missing file is not an
// error.
func LoadDotEnv(files ...string) {
    if len(files) == 0 {
        files = []string{".env"}
    }
    for _, f := range files {
        if _, err := os.Stat(f); err != nil {
            continue
        }
        if err := godotenv.Load(f); err != nil {
            log.Warnf("config: cannot load %s: %v", f, err)
        }
    }
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  The MySQL settings
// are only required when the MySQL engine is selected.
func Load() Config {
    cfg := Config{
        Env:              must("APP_ENV"),                                    // environment (dev/test/prod)
        Port:             must("APP_PORT"),                                   // port to bind the HTTP server
        StoreDriver:      strings.ToLower(envStr("STORE_DRIVER", StoreMySQL)), // storage engine
        BoltPath:         envStr("BOLT_PATH", "data/hotel.db"),               // embedded database file
        DBPass:           os.Getenv("DB_PASS"),                               // database password (empty allowed)
        JWTSecret:        must("JWT_SECRET"),                                 // secret used for verifying JWTs
        LogLevel:         strings.ToUpper(envStr("LOG_LEVEL", "INFO")),       // logger level
        ReconcileOnStart: envBool("RECONCILE_ON_START", false),               // startup recovery sweep
    }
    switch cfg.StoreDriver {
    case StoreMySQL:
        cfg.DBUser = must("DB_USER") // database user
        cfg.DBHost = must("DB_HOST") // database host
        cfg.DBPort = must("DB_PORT") // database port
        cfg.DBName = must("DB_NAME") // database name
    case StoreBolt:
    default:
        log.Fatalf("invalid STORE_DRIVER: %q", cfg.StoreDriver)
    }
    return cfg
}

// GommonLevel maps the configured level name onto a gommon log level.
func (c Config) GommonLevel() log.Lvl {
    switch c.LogLevel {
    case "DEBUG":
        return log.DEBUG
    case "WARN":
        return log.WARN
    case "ERROR":
        return log.ERROR
    case "OFF":
        return log.OFF
    default:
        return log.INFO
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}
