package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UserID identifica al usuario autenticado. El servidor puede enviarlo como
// numero o como string; vacio significa "sin sesion".
type UserID string

func (id *UserID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("user_id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = UserID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = UserID(n.String())
	return nil
}

func (id UserID) String() string { return string(id) }

// Permissions mapea nombre de permiso a concedido/no concedido.
// Al decodificar acepta cualquier valor JSON y guarda si es "truthy".
type Permissions map[string]bool

func (p *Permissions) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("permissions: %w", err)
	}
	out := make(Permissions, len(raw))
	for name, v := range raw {
		out[name] = truthy(v)
	}
	*p = out
	return nil
}

// Has reporta si el permiso existe y esta concedido.
func (p Permissions) Has(name string) bool {
	return p[name]
}

// Clone devuelve una copia independiente; nunca devuelve nil.
func (p Permissions) Clone() Permissions {
	out := make(Permissions, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

func truthy(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return false
	}
	switch v[0] {
	case 'n', 'f':
		return false
	case 't', '{', '[':
		return true
	case '"':
		return len(v) > 2
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return false
	}
	return f != 0
}

// AuthInfo es el bloque "auth" de una respuesta de sesion.
type AuthInfo struct {
	UserID      UserID      `json:"user_id,omitempty"`
	Username    string      `json:"username,omitempty"`
	Permissions Permissions `json:"permissions,omitempty"`
	Avatar      string      `json:"avatar,omitempty"`
	Token       string      `json:"token,omitempty"`
}

// SessionPayload es el cuerpo "data" de check-authentication, signin y signup.
type SessionPayload struct {
	Settings map[string]any `json:"settings,omitempty"`
	Auth     *AuthInfo      `json:"auth,omitempty"`
	Token    string         `json:"token,omitempty"`
}

// SessionToken devuelve el token del payload; data.token tiene prioridad
// sobre data.auth.token.
func (p SessionPayload) SessionToken() string {
	if p.Token != "" {
		return p.Token
	}
	if p.Auth != nil {
		return p.Auth.Token
	}
	return ""
}
