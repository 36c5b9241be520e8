// Package db opens the optional direct connection to the hosted Postgres database.
package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ErrEmptyDSN is returned by Open when no DSN is configured.
var ErrEmptyDSN = errors.New("db: empty DSN")

const (
	maxOpenConns    = 10
	connMaxIdleTime = 5 * time.Minute
	pingTimeout     = 5 * time.Second
)

// Open opens a pgx-backed pool for dsn and pings it. Caller must call Close when done.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, ErrEmptyDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxOpenConns / 2)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
