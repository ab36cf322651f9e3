// Package commandlog keeps an audit trail of actuator commands and their outcome.
package commandlog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"greenhouse-monitor/backend/internal/database"
	"greenhouse-monitor/backend/pkg/utils"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Entry is one dispatched command.
type Entry struct {
	ID       string `json:"id"`
	Actuator string `json:"actuator"`
	On       bool   `json:"on"`
	Accepted bool   `json:"accepted"`
	// Origin of the command: "api", "mqtt" or "auto-stop"
	Origin    string    `json:"origin"`
	CreatedAt time.Time `json:"createdAt"`
}

// Log stores entries in the command_log table.
type Log struct {
	l   *slog.Logger
	db  *database.DB
	now func() time.Time
}

func New(l *slog.Logger, db *database.DB) *Log {
	return &Log{
		l:   l.With(slog.String("component", "command-log")),
		db:  db,
		now: time.Now,
	}
}

// Record appends an entry. ID and CreatedAt are filled in when empty.
func (g *Log) Record(ctx context.Context, e Entry) error {
	if e.ID == "" {
		e.ID = utils.NewUUID()
	}

	if e.CreatedAt.IsZero() {
		e.CreatedAt = g.now()
	}

	_, err := g.db.ExecContext(ctx,
		g.db.Rebind(`INSERT INTO command_log (id, actuator, value, accepted, source, created_at) VALUES (?, ?, ?, ?, ?, ?)`),
		e.ID, e.Actuator, e.On, e.Accepted, e.Origin, e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first.
func (g *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	limit = min(limit, MaxLimit)

	rows, err := g.db.QueryContext(ctx,
		g.db.Rebind(`SELECT id, actuator, value, accepted, source, created_at FROM command_log ORDER BY created_at DESC, id DESC LIMIT ?`),
		limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query command log: %w", err)
	}
	defer utils.LogOnError(g.l, rows.Close, "failed to close command log rows")

	entries := make([]Entry, 0, limit)

	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Actuator, &e.On, &e.Accepted, &e.Origin, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan command: %w", err)
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate command log: %w", err)
	}

	return entries, nil
}
