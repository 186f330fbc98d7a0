package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id                TEXT PRIMARY KEY,
		username          TEXT NOT NULL UNIQUE,
		email             TEXT NOT NULL DEFAULT '',
		display_name      TEXT NOT NULL DEFAULT '',
		avatar            TEXT NOT NULL DEFAULT '',
		permissions       JSONB NOT NULL DEFAULT '{}',
		password_hash     TEXT NOT NULL DEFAULT '',
		email_verified_at TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS users_email_idx ON users (email);

	CREATE TABLE IF NOT EXISTS action_tokens (
		hash       TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		kind       TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);
`

// EnsureSchema crea las tablas del servidor de desarrollo si no existen.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
