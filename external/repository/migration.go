package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		joined_at TIMESTAMPTZ NOT NULL,
		recording BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rooms_unconfirmed ON rooms (joined_at) WHERE recording = FALSE`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq BIGSERIAL PRIMARY KEY,
		room_id TEXT NOT NULL,
		text TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		server_time TIMESTAMPTZ NOT NULL,
		category TEXT NOT NULL,
		spans JSONB NOT NULL DEFAULT '[]'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages (room_id, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS action_ledger (
		event_id TEXT PRIMARY KEY,
		handled BOOLEAN NOT NULL DEFAULT FALSE,
		handled_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

var sqliteMigrationStatements = []string{
	`CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		joined_at INTEGER NOT NULL,
		recording INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		text TEXT NOT NULL,
		sender_id TEXT NOT NULL,
		server_time INTEGER NOT NULL,
		category TEXT NOT NULL,
		spans TEXT NOT NULL DEFAULT '[]',
		created_at INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_room_seq ON messages (room_id, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS action_ledger (
		event_id TEXT PRIMARY KEY,
		handled INTEGER NOT NULL DEFAULT 0,
		handled_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sync_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range postgresMigrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func RunSQLiteMigration(ctx context.Context, db *sql.DB) error {
	for _, s := range sqliteMigrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
