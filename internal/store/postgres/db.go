package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the message schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		// Display profiles; owned by the account service in production
		`CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			email      TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL DEFAULT '',
			avatar     TEXT NOT NULL DEFAULT ''
		)`,

		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id              UUID             PRIMARY KEY,
			conversation_id TEXT             NOT NULL,
			sender_id       TEXT             NOT NULL,
			receiver_id     TEXT             NOT NULL,
			body            TEXT             NOT NULL DEFAULT '',
			message_type    VARCHAR(20)      NOT NULL DEFAULT 'text',
			voice_data      TEXT             NOT NULL DEFAULT '',
			voice_duration  DOUBLE PRECISION,
			files           JSONB            NOT NULL DEFAULT '[]'::jsonb,
			is_read         BOOLEAN          NOT NULL DEFAULT FALSE,
			read_at         TIMESTAMPTZ,
			is_edited       BOOLEAN          NOT NULL DEFAULT FALSE,
			edited_at       TIMESTAMPTZ,
			created_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ      NOT NULL DEFAULT NOW()
		)`,

		// Indexes
		`CREATE INDEX IF NOT EXISTS idx_messages_conv_created ON messages(conversation_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_sender ON messages(sender_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_receiver_read ON messages(receiver_id, is_read)`,
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
