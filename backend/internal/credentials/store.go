// Package credentials persists the channel id and API keys used by the telemetry client.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"greenhouse-monitor/backend/internal/database"
	"greenhouse-monitor/backend/internal/telemetry"
	"greenhouse-monitor/backend/pkg/utils"
)

// DefaultCacheTTL bounds how long a lookup is reused before the database is read again.
const DefaultCacheTTL = 5 * time.Minute

const (
	keyChannelID = "channel_id"
	keyReadKey   = "read_api_key"
	keyWriteKey  = "write_api_key"
)

// Store is a database backed telemetry.CredentialProvider.
type Store struct {
	l   *slog.Logger
	db  *database.DB
	ttl time.Duration
	now func() time.Time

	mu       sync.Mutex
	cached   *telemetry.Credentials
	cachedAt time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCacheTTL overrides DefaultCacheTTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// New creates a store on a migrated database.
func New(l *slog.Logger, db *database.DB, opts ...Option) *Store {
	s := &Store{
		l:   l.With(slog.String("component", "credential-store")),
		db:  db,
		ttl: DefaultCacheTTL,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Credentials returns the stored credentials. Missing values are returned empty, which the
// telemetry client treats like placeholders.
func (s *Store) Credentials(ctx context.Context) (telemetry.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.now().Sub(s.cachedAt) < s.ttl {
		return *s.cached, nil
	}

	creds, err := s.load(ctx)
	if err != nil {
		return telemetry.Credentials{}, err
	}

	s.cached = &creds
	s.cachedAt = s.now()

	return creds, nil
}

func (s *Store) load(ctx context.Context) (telemetry.Credentials, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM credentials`)
	if err != nil {
		return telemetry.Credentials{}, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer utils.LogOnError(s.l, rows.Close, "failed to close credential rows")

	var creds telemetry.Credentials

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return telemetry.Credentials{}, fmt.Errorf("failed to scan credential: %w", err)
		}

		switch key {
		case keyChannelID:
			creds.ChannelID = value
		case keyReadKey:
			creds.ReadKey = value
		case keyWriteKey:
			creds.WriteKey = value
		default:
			s.l.Warn("ignoring unknown credential", slog.String("key", key))
		}
	}

	if err := rows.Err(); err != nil {
		return telemetry.Credentials{}, fmt.Errorf("failed to iterate credentials: %w", err)
	}

	return creds, nil
}

// Set stores the non-empty fields of creds; empty fields keep their current value.
func (s *Store) Set(ctx context.Context, creds telemetry.Credentials) error {
	values := map[string]string{
		keyChannelID: creds.ChannelID,
		keyReadKey:   creds.ReadKey,
		keyWriteKey:  creds.WriteKey,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	upsert := s.db.Rebind(`
		INSERT INTO credentials (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	updated := 0

	for key, value := range values {
		if value == "" {
			continue
		}

		_, err := tx.ExecContext(ctx, upsert, key, value, s.now().UTC())
		if err != nil {
			return errors.Join(fmt.Errorf("failed to store %s: %w", key, err), tx.Rollback())
		}

		updated++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit credentials: %w", err)
	}

	s.cached = nil

	s.l.Info("credentials updated", slog.Int("fields", updated), slog.String("channel", creds.ChannelID))

	return nil
}

// Clear removes every stored credential.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM credentials`); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	s.cached = nil

	s.l.Info("credentials cleared")

	return nil
}

// Bootstrap stores credentials supplied through the environment. Placeholder and empty
// values are skipped so they never overwrite real stored keys.
func (s *Store) Bootstrap(ctx context.Context, creds telemetry.Credentials) error {
	if creds.ChannelID == telemetry.PlaceholderChannelID {
		creds.ChannelID = ""
	}

	if creds.ReadKey == telemetry.PlaceholderReadKey {
		creds.ReadKey = ""
	}

	if creds.WriteKey == telemetry.PlaceholderWriteKey {
		creds.WriteKey = ""
	}

	if creds == (telemetry.Credentials{}) {
		return nil
	}

	return s.Set(ctx, creds)
}
