package migrator

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"

	"greenhouse-monitor/backend/pkg/dialect"
	"greenhouse-monitor/backend/pkg/utils"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/sqlite"
)

const defaultMigrationsDir = "migrations"

// Migrator applies embedded dbmate migrations to a SQLite file or a PostgreSQL database.
type Migrator struct {
	db      *dbmate.DB
	fs      fs.FS
	dialect dialect.Dialect
	conn    string
	l       *slog.Logger
}

// New creates a migrator. conn is the database file path for SQLite and a postgres:// URL
// for PostgreSQL. Migrations are read from the given directories of fsys, "migrations" when
// none are given.
func New(l *slog.Logger, d dialect.Dialect, fsys fs.FS, conn string, migrationDirs ...string) (*Migrator, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	if conn == "" {
		return nil, errors.New("connection string is required")
	}

	if fsys == nil {
		return nil, errors.New("migrations filesystem is required")
	}

	if len(migrationDirs) == 0 {
		migrationDirs = []string{defaultMigrationsDir}
	}

	for _, dir := range migrationDirs {
		if _, err := fs.ReadDir(fsys, dir); err != nil {
			return nil, fmt.Errorf("failed to read migrations directory %q: %w", dir, err)
		}
	}

	u, err := databaseURL(d, conn)
	if err != nil {
		return nil, err
	}

	db := dbmate.New(u)
	db.Strict = true
	db.FS = fsys
	db.MigrationsDir = migrationDirs
	db.AutoDumpSchema = false

	l = l.With(slog.String("component", "db-migrator"), slog.String("dialect", d.String()))
	db.Log = utils.NewSlogWriter(l)

	return &Migrator{
		l:       l,
		db:      db,
		fs:      fsys,
		dialect: d,
		conn:    conn,
	}, nil
}

func databaseURL(d dialect.Dialect, conn string) (*url.URL, error) {
	switch d {
	case dialect.SQLite:
		if strings.Contains(conn, ":memory:") {
			return nil, errors.New("in-memory databases are not supported")
		}

		conn = "sqlite:" + conn
	case dialect.PostgreSQL:
		if !strings.HasPrefix(conn, "postgres://") && !strings.HasPrefix(conn, "postgresql://") {
			return nil, errors.New("postgres connection string must be a postgres:// URL")
		}
	}

	u, err := url.Parse(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}

	return u, nil
}

// Migrate applies all pending migrations. The SQLite file is created when missing; a
// PostgreSQL database must already exist.
func (m *Migrator) Migrate() error {
	m.l.Info("Migrating database")

	migrate := m.db.Migrate
	if m.dialect == dialect.SQLite {
		migrate = m.db.CreateAndMigrate
	}

	if err := migrate(); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Status reports how many migrations are known and how many of them are applied.
func (m *Migrator) Status() (applied, total int, err error) {
	migrations, err := m.db.FindMigrations()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list migrations: %w", err)
	}

	for _, mig := range migrations {
		if mig.Applied {
			applied++
		}
	}

	return applied, len(migrations), nil
}
