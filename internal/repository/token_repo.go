package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"appsession/internal/domain"
)

// ActionTokenRepository guarda tokens de un solo uso (reset de password,
// confirmacion de email). Consume borra el token al leerlo.
type ActionTokenRepository interface {
	Create(ctx context.Context, token domain.ActionToken) error
	Consume(ctx context.Context, hash string, kind domain.TokenKind) (domain.ActionToken, error)
}

type PgActionTokenRepository struct {
	pool *pgxpool.Pool
}

func NewPgActionTokenRepository(pool *pgxpool.Pool) *PgActionTokenRepository {
	return &PgActionTokenRepository{pool: pool}
}

func (r *PgActionTokenRepository) Create(ctx context.Context, token domain.ActionToken) error {
	const query = `
		INSERT INTO action_tokens (hash, user_id, kind, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := r.pool.Exec(ctx, query,
		token.Hash,
		token.UserID,
		string(token.Kind),
		token.ExpiresAt,
		token.CreatedAt,
	)
	return err
}

func (r *PgActionTokenRepository) Consume(ctx context.Context, hash string, kind domain.TokenKind) (domain.ActionToken, error) {
	const query = `
		DELETE FROM action_tokens
		WHERE hash = $1 AND kind = $2
		RETURNING hash, user_id, kind, expires_at, created_at
	`
	var (
		t       domain.ActionToken
		rawKind string
	)
	err := r.pool.QueryRow(ctx, query, hash, string(kind)).Scan(
		&t.Hash,
		&t.UserID,
		&rawKind,
		&t.ExpiresAt,
		&t.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ActionToken{}, err
	}
	t.Kind = domain.TokenKind(rawKind)
	return t, err
}

// DeleteExpired limpia tokens vencidos; devuelve cuantos borro.
func (r *PgActionTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM action_tokens WHERE expires_at < $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
