package session

import (
	"appsession/internal/access"
	"appsession/internal/domain"
)

func (s *Store) Title() string     { return s.cfg.Title }
func (s *Store) TitleIcon() string { return s.cfg.TitleIcon }

// IsInitialized es false hasta la primera respuesta valida de
// CheckAuthentication o Signin; antes de eso el estado de autenticacion es desconocido.
func (s *Store) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID != ""
}

func (s *Store) IsRoot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRootLocked()
}

func (s *Store) isRootLocked() bool {
	return access.RootIdentity{
		UserID:   s.cfg.RootUserID,
		Username: s.cfg.RootUserName,
	}.Matches(string(s.userID), s.username)
}

// HasPermissions evalua los nombres en orden: "*", "guest", "user", "root" o
// un permiso literal. Sin nombres devuelve false.
func (s *Store) HasPermissions(names ...string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasPermissionsLocked(names)
}

func (s *Store) hasPermissionsLocked(names []string) bool {
	return access.Check(access.Subject{
		Authenticated: s.userID != "",
		Root:          s.isRootLocked(),
		Permissions:   s.permissions,
	}, names...)
}

// SigninPermissions devuelve la lista de permisos requeridos, calculada una sola vez.
func (s *Store) SigninPermissions() []string {
	s.signinOnce.Do(func() {
		s.signinPerms = access.ParseList(s.cfg.SigninPermissions)
	})
	return s.signinPerms
}

func (s *Store) UserID() domain.UserID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Store) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.username
}

func (s *Store) Avatar() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.avatar
}

// Permissions devuelve una copia del mapa de permisos.
func (s *Store) Permissions() domain.Permissions {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.permissions.Clone()
}

// Settings devuelve una copia superficial de los settings de la aplicacion.
func (s *Store) Settings() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySettings(s.settings)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	return Snapshot{
		Initialized: s.initialized,
		UserID:      s.userID,
		Username:    s.username,
		Avatar:      s.avatar,
		Permissions: s.permissions.Clone(),
		Settings:    copySettings(s.settings),
		Token:       s.api.Token(),
	}
}

func copySettings(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Subscribe registra fn para recibir una copia del estado tras cada cambio.
// Las entregas no se solapan. fn puede leer el store pero no debe llamar
// operaciones que lo modifiquen.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// notify entrega snap salvo que ya se haya entregado un cambio posterior;
// asi el ultimo snapshot recibido siempre es el estado final.
func (s *Store) notify(seq uint64, snap Snapshot) {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq

	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}
