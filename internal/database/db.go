// Package database opens the MySQL pool and creates the schema used by
// repository.MySQLStore.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/hotel-reservation/internal/config"
)

// DSN builds the driver configuration from cfg.  Times are read back as
// UTC time.Time values, and RowsAffected counts matched rather than changed
// rows so an idempotent UPDATE is not mistaken for a missing row.
func DSN(cfg config.Config) string {
	c := mysql.NewConfig()
	c.User = cfg.DBUser
	c.Passwd = cfg.DBPass
	c.Net = "tcp"
	c.Addr = cfg.DBHost + ":" + cfg.DBPort
	c.DBName = cfg.DBName
	c.ParseTime = true
	c.Loc = time.UTC
	c.ClientFoundRows = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and verifies the connection within ctx.
func Open(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
