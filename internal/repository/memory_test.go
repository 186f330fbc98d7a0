package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"appsession/internal/domain"
)

func TestMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryUserRepository()
	user := domain.User{
		ID:          "1",
		Username:    "root",
		Email:       "root@example.com",
		Permissions: domain.Permissions{"reports": true},
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(ctx, user); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, domain.User{ID: "2", Username: "root"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate username, got %v", err)
	}

	got, err := repo.GetByUsername(ctx, "root")
	if err != nil || got.ID != "1" {
		t.Fatalf("get by username: %+v %v", got, err)
	}
	got.Permissions["billing"] = true
	again, _ := repo.GetByID(ctx, "1")
	if again.Permissions.Has("billing") {
		t.Fatalf("returned permissions must be a copy")
	}

	if _, err := repo.GetByEmail(ctx, "root@example.com"); err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody@example.com"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}

	if err := repo.UpdatePassword(ctx, "1", "hash"); err != nil {
		t.Fatalf("update password: %v", err)
	}
	now := time.Now().UTC()
	if err := repo.VerifyEmail(ctx, "1", now); err != nil {
		t.Fatalf("verify email: %v", err)
	}
	got, _ = repo.GetByID(ctx, "1")
	if got.PasswordHash != "hash" || got.EmailVerifiedAt == nil {
		t.Fatalf("updates not applied: %+v", got)
	}
	if err := repo.UpdatePassword(ctx, "missing", "x"); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}

func TestMemoryActionTokenRepositoryConsumeOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryActionTokenRepository()
	token := domain.ActionToken{Hash: "h1", UserID: "1", Kind: domain.TokenPasswordReset, ExpiresAt: time.Now().Add(time.Hour)}
	if err := repo.Create(ctx, token); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.Consume(ctx, "h1", domain.TokenEmailConfirmation); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("kind mismatch must not consume, got %v", err)
	}
	got, err := repo.Consume(ctx, "h1", domain.TokenPasswordReset)
	if err != nil || got.UserID != "1" {
		t.Fatalf("consume: %+v %v", got, err)
	}
	if _, err := repo.Consume(ctx, "h1", domain.TokenPasswordReset); !errors.Is(err, pgx.ErrNoRows) {
		t.Fatalf("second consume must fail, got %v", err)
	}
}
