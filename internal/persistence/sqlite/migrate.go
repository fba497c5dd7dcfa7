package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// migration is one schema version applied in order.
type migration struct {
	version    int
	statements []string
}

var migrations = []migration{
	{
		version: 1,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				display_name TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				is_admin INTEGER NOT NULL DEFAULT 0,
				disabled INTEGER NOT NULL DEFAULT 0,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id),
				token TEXT NOT NULL UNIQUE,
				fingerprint TEXT NOT NULL DEFAULT '',
				expires_at TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				revoked_at TEXT
			)`,
		},
	},
	{
		version: 2,
		statements: []string{
			`CREATE TABLE IF NOT EXISTS reminder_configs (
				id TEXT PRIMARY KEY,
				title TEXT NOT NULL,
				enabled INTEGER NOT NULL DEFAULT 1,
				day_mode TEXT NOT NULL DEFAULT 'lastDay',
				day_of_month INTEGER NOT NULL DEFAULT 28,
				time_hhmm TEXT NOT NULL DEFAULT '09:30',
				timezone TEXT NOT NULL DEFAULT '',
				categories TEXT NOT NULL DEFAULT '[]',
				extra_emails TEXT NOT NULL DEFAULT '[]',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE TABLE IF NOT EXISTS reminder_runs (
				id TEXT PRIMARY KEY,
				config_id TEXT NOT NULL REFERENCES reminder_configs(id),
				period_key TEXT NOT NULL,
				due_at TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending'
					CHECK (status IN ('pending', 'sent', 'failed')),
				sent_at TEXT,
				attempts INTEGER NOT NULL DEFAULT 0,
				last_error TEXT NOT NULL DEFAULT '',
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL,
				UNIQUE (config_id, period_key)
			)`,
		},
	},
}

// Migrate applies pending schema migrations in order, tracking the applied
// versions in schema_migrations.
func (cp *ConnectionPool) Migrate(ctx context.Context) error {
	if _, err := cp.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to initialize schema_migrations: %w", err)
	}

	var current sql.NullInt64
	if err := cp.db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	for _, m := range migrations {
		if current.Valid && int64(m.version) <= current.Int64 {
			continue
		}
		err := cp.WithTransaction(ctx, func(tx *sql.Tx) error {
			for _, stmt := range m.statements {
				if _, err := tx.Exec(stmt); err != nil {
					return fmt.Errorf("migration %d failed: %w", m.version, err)
				}
			}
			_, err := tx.Exec(
				"INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)",
				m.version, time.Now().UTC().Format(time.RFC3339),
			)
			return err
		})
		if err != nil {
			return err
		}
	}

	return nil
}
