package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"appsession/internal/domain"
)

var ErrDuplicate = errors.New("duplicate record")

// MemoryUserRepository implementa UserRepository en memoria; se usa cuando el
// servidor de desarrollo arranca sin DATABASE_URL.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]domain.User
	byUsername map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[string]domain.User),
		byUsername: make(map[string]string),
	}
}

func (r *MemoryUserRepository) Create(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return ErrDuplicate
	}
	user.Permissions = user.Permissions.Clone()
	r.byID[user.ID] = user
	r.byUsername[user.Username] = user.ID
	return nil
}

func (r *MemoryUserRepository) GetByID(_ context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	user.Permissions = user.Permissions.Clone()
	return user, nil
}

func (r *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	id, ok := r.byUsername[username]
	r.mu.RUnlock()
	if !ok {
		return domain.User{}, pgx.ErrNoRows
	}
	return r.GetByID(ctx, id)
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.byID {
		if email != "" && user.Email == email {
			user.Permissions = user.Permissions.Clone()
			return user, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (r *MemoryUserRepository) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.PasswordHash = passwordHash
	r.byID[id] = user
	return nil
}

func (r *MemoryUserRepository) VerifyEmail(_ context.Context, id string, verifiedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.byID[id]
	if !ok {
		return pgx.ErrNoRows
	}
	user.EmailVerifiedAt = &verifiedAt
	r.byID[id] = user
	return nil
}

// MemoryActionTokenRepository implementa ActionTokenRepository en memoria.
type MemoryActionTokenRepository struct {
	mu     sync.Mutex
	tokens map[string]domain.ActionToken
}

func NewMemoryActionTokenRepository() *MemoryActionTokenRepository {
	return &MemoryActionTokenRepository{tokens: make(map[string]domain.ActionToken)}
}

func (r *MemoryActionTokenRepository) Create(_ context.Context, token domain.ActionToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tokens[token.Hash]; ok {
		return ErrDuplicate
	}
	r.tokens[token.Hash] = token
	return nil
}

func (r *MemoryActionTokenRepository) Consume(_ context.Context, hash string, kind domain.TokenKind) (domain.ActionToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[hash]
	if !ok || token.Kind != kind {
		return domain.ActionToken{}, pgx.ErrNoRows
	}
	delete(r.tokens, hash)
	return token, nil
}
