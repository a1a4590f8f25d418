package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const messagesTable = "chat_messages"

// Migrate creates the message table and its indexes when missing.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	table := pgIdent(schema, messagesTable)
	stmts := []string{
		`CREATE SCHEMA IF NOT EXISTS ` + pgx.Identifier{schema}.Sanitize(),
		`CREATE TABLE IF NOT EXISTS ` + table + ` (
			id          BIGSERIAL PRIMARY KEY,
			public_id   UUID        NOT NULL UNIQUE,
			group_id    TEXT        NOT NULL,
			sender_id   TEXT        NOT NULL,
			content     TEXT        NOT NULL,
			kind        SMALLINT    NOT NULL,
			sent_at     TIMESTAMPTZ NOT NULL,
			edited_at   TIMESTAMPTZ,
			deleted     BOOLEAN     NOT NULL DEFAULT FALSE,
			deleted_at  TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_group_sent_idx ON ` + table + ` (group_id, sent_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS chat_messages_sender_idx ON ` + table + ` (sender_id, sent_at DESC)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: migrate: %w", err)
		}
	}
	return nil
}

func pgIdent(schema, table string) string {
	return pgx.Identifier{schema, table}.Sanitize()
}
