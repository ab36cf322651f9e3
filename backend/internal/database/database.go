// Package database opens the monitor database on SQLite or PostgreSQL and keeps its schema
// current.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"greenhouse-monitor/backend/internal/migrations"
	"greenhouse-monitor/backend/pkg/dialect"
	"greenhouse-monitor/backend/pkg/migrator"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// FileName is the SQLite database file created inside the data directory.
const FileName = "greenhouse.db"

const (
	busyTimeout = 5 * time.Second

	postgresMaxOpenConns = 10
	postgresConnLifetime = 30 * time.Minute
)

// DB is an open, migrated database.
type DB struct {
	*sql.DB

	Dialect  dialect.Dialect
	migrator *migrator.Migrator
}

// Open applies pending migrations and opens a connection pool. conn is the database file
// path for SQLite, whose directory is created if needed, and a postgres:// URL for
// PostgreSQL.
func Open(ctx context.Context, l *slog.Logger, d dialect.Dialect, conn string) (*DB, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if conn == "" {
		return nil, errors.New("database connection string is required")
	}

	driverConn := conn

	if d == dialect.SQLite {
		if err := os.MkdirAll(filepath.Dir(conn), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}

		driverConn = sqliteDSN(conn)
	}

	m, err := migrator.New(l, d, migrations.GetFS(), conn, d.MigrationsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Migrate(); err != nil {
		return nil, err
	}

	db, err := sql.Open(d.Driver(), driverConn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	switch d {
	case dialect.SQLite:
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY between our own goroutines
		db.SetMaxOpenConns(1)
	case dialect.PostgreSQL:
		db.SetMaxOpenConns(postgresMaxOpenConns)
		db.SetConnMaxLifetime(postgresConnLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	l.Info("Database ready", slog.String("dialect", d.String()))

	return &DB{DB: db, Dialect: d, migrator: m}, nil
}

// Rebind rewrites ? placeholders for the database's dialect.
func (db *DB) Rebind(query string) string {
	return db.Dialect.Rebind(query)
}

// Check pings the database and verifies that every migration is applied.
func (db *DB) Check(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}

	applied, total, err := db.migrator.Status()
	if err != nil {
		return err
	}

	if applied != total {
		return fmt.Errorf("%d of %d migrations pending", total-applied, total)
	}

	return nil
}

func sqliteDSN(path string) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprint(busyTimeout.Milliseconds()))
	q.Set("_journal_mode", "WAL")
	q.Set("_foreign_keys", "on")

	return "file:" + path + "?" + q.Encode()
}
