package domain

import "time"

type User struct {
	ID              string      `json:"id"`
	Username        string      `json:"username"`
	Email           string      `json:"email"`
	DisplayName     string      `json:"display_name,omitempty"`
	Avatar          string      `json:"avatar,omitempty"`
	Permissions     Permissions `json:"permissions,omitempty"`
	PasswordHash    string      `json:"-"`
	EmailVerifiedAt *time.Time  `json:"email_verified_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
}

// AuthInfo proyecta el usuario al bloque "auth" que consume el cliente.
func (u User) AuthInfo() AuthInfo {
	perms := u.Permissions
	if perms == nil {
		perms = Permissions{}
	}
	return AuthInfo{
		UserID:      UserID(u.ID),
		Username:    u.Username,
		Permissions: perms,
		Avatar:      u.Avatar,
	}
}

// TokenKind distingue los tokens de un solo uso enviados por email.
type TokenKind string

const (
	TokenPasswordReset     TokenKind = "password_reset"
	TokenEmailConfirmation TokenKind = "email_confirmation"
)

// ActionToken es un token de un solo uso; solo se guarda su hash.
type ActionToken struct {
	Hash      string    `json:"-"`
	UserID    string    `json:"user_id"`
	Kind      TokenKind `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
