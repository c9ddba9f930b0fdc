// Package database opens the storage backends and applies the MySQL schema.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/lang-test-booking/internal/config"
)

const pingTimeout = 5 * time.Second

// Open connects to MySQL with the pool limits of c and pings it once.
func Open(c config.DBConfig) (*sql.DB, error) {
	db, err := sql.Open("mysql", c.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql %s:%s: %w", c.Host, c.Port, err)
	}
	log.WithFields(log.Fields{
		"host":      c.Host,
		"db":        c.Name,
		"max_open":  c.MaxOpenConns,
		"max_idle":  c.MaxIdleConns,
		"conn_life": c.ConnMaxLifetime,
	}).Info("mysql connected")
	return db, nil
}
