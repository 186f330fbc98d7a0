package tokenstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgSchema = `
	CREATE TABLE IF NOT EXISTS client_storage (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)
`

type pgExecQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStorage guarda los items en la tabla client_storage.
type PgStorage struct {
	db pgExecQuerier
}

// NewPgStorage acepta un *pgxpool.Pool o cualquier conexion pgx.
func NewPgStorage(db pgExecQuerier) *PgStorage {
	return &PgStorage{db: db}
}

// EnsureSchema crea la tabla si no existe.
func (s *PgStorage) EnsureSchema(ctx context.Context) error {
	_, err := s.db.Exec(ctx, pgSchema)
	return err
}

func (s *PgStorage) GetItem(ctx context.Context, key string) (string, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, ErrEmptyKey
	}
	const query = `
		SELECT value
		FROM client_storage
		WHERE key = $1
	`
	var v string
	err := s.db.QueryRow(ctx, query, key).Scan(&v)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *PgStorage) SetItem(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	const query = `
		INSERT INTO client_storage (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.Exec(ctx, query, key, value, time.Now().UTC())
	return err
}

func (s *PgStorage) RemoveItem(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyKey
	}
	const query = `DELETE FROM client_storage WHERE key = $1`
	_, err := s.db.Exec(ctx, query, key)
	return err
}
