// Package session mantiene el estado de autenticacion del cliente: usuario,
// permisos, settings y el token que usa el transporte de la API.
//
// Cada operacion publica hace como mucho una llamada remota y luego aplica el
// resultado de forma atomica. Las llamadas pueden solaparse; gana la ultima
// respuesta aplicada.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"appsession/internal/api"
	"appsession/internal/domain"
)

// TokenKey es la clave del token en el almacenamiento duradero.
const TokenKey = "token"

// Metodos remotos que invoca el store.
const (
	MethodCheckAuthentication    = "session/check-authentication"
	MethodSignin                 = "session/signin"
	MethodSignout                = "session/signout"
	MethodSignup                 = "session/signup"
	MethodSetPassword            = "account/set-password"
	MethodSendPasswordResetEmail = "session/send-password-reset-email"
	MethodConfirmEmailByToken    = "session/confirm-email-by-token"
	MethodSetPasswordByToken     = "session/set-password-by-token"
)

// Storage es el almacenamiento duradero del token.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Config se fija al construir el store.
type Config struct {
	Title     string
	TitleIcon string
	// RootUserID se compara con el user id y RootUserName con el username;
	// cualquiera de los dos que coincida marca al usuario como root.
	RootUserID   string
	RootUserName string
	// SigninPermissions es la lista separada por comas que toda sesion debe cumplir.
	SigninPermissions string
}

// Snapshot es una copia de los campos observables.
type Snapshot struct {
	Initialized bool
	UserID      domain.UserID
	Username    string
	Avatar      string
	Permissions domain.Permissions
	Settings    map[string]any
	Token       string
}

// Authenticated reporta si la copia corresponde a una sesion iniciada.
func (s Snapshot) Authenticated() bool { return s.UserID != "" }

// Store es el estado de sesion del cliente.
type Store struct {
	cfg     Config
	api     api.Client
	storage Storage
	logger  *zap.Logger

	mu          sync.RWMutex
	initialized bool
	userID      domain.UserID
	username    string
	avatar      string
	permissions domain.Permissions
	settings    map[string]any

	signinOnce  sync.Once
	signinPerms []string

	// seq numera cada cambio de estado bajo mu; delivered es el ultimo
	// numerado entregado a los suscriptores, bajo notifyMu.
	seq       uint64
	notifyMu  sync.Mutex
	delivered uint64

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	stopSignout func()
}

// New crea un store vacio y lo suscribe al signout forzado del transporte.
func New(cfg Config, client api.Client, storage Storage, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{
		cfg:         cfg,
		api:         client,
		storage:     storage,
		logger:      logger,
		permissions: domain.Permissions{},
		settings:    map[string]any{},
		subs:        make(map[int]func(Snapshot)),
	}
	s.stopSignout = client.OnSignout(s.onForcedSignout)
	return s
}

// Close desuscribe el store del transporte.
func (s *Store) Close() {
	if s.stopSignout != nil {
		s.stopSignout()
	}
}

// Restore instala en el transporte el token guardado en una ejecucion anterior.
func (s *Store) Restore(ctx context.Context) error {
	token, ok, err := s.storage.GetItem(ctx, TokenKey)
	if err != nil {
		return err
	}
	if ok && token != "" {
		s.api.SetToken(token)
	}
	return nil
}

// CheckAuthentication valida el token actual contra el servidor. Una respuesta
// ok con un payload ilegible se trata como sesion invalida.
func (s *Store) CheckAuthentication(ctx context.Context) *api.Response {
	res := s.api.Call(ctx, MethodCheckAuthentication)

	if res.IsUnauthorized() {
		s.logger.Info("session token rejected", zap.Int("status", res.Status))
		s.update(func() { s.revokeLocked(ctx) })
		return res
	}
	if !res.OK {
		return res
	}

	payload, ok := decodePayload(res, s.logger)
	s.update(func() {
		s.initialized = true
		if !ok {
			s.revokeLocked(ctx)
			return
		}
		s.applyLocked(ctx, payload)
		if allow := s.SigninPermissions(); allow != nil && !s.hasPermissionsLocked(allow) {
			s.logger.Info("session does not satisfy signin permissions", zap.Strings("required", allow))
			s.revokeLocked(ctx)
		}
	})
	return res
}

// Signin autentica con credentials. La lista de permisos requeridos viaja al
// servidor, que es quien la hace cumplir en este flujo.
func (s *Store) Signin(ctx context.Context, credentials any) *api.Response {
	res := s.api.Call(ctx, MethodSignin, credentials, s.SigninPermissions())
	payload, ok := decodePayload(res, s.logger)
	s.update(func() {
		if res.OK {
			s.initialized = true
			if !ok {
				s.revokeLocked(ctx)
				return
			}
		}
		s.applyLocked(ctx, payload)
	})
	return res
}

// Signout cierra la sesion remota y limpia el estado local pase lo que pase.
func (s *Store) Signout(ctx context.Context) *api.Response {
	res := s.api.Call(ctx, MethodSignout)
	if !res.OK {
		s.logger.Warn("remote signout failed", zap.Int("status", res.Status), zap.String("status_text", res.StatusText))
	}
	s.update(func() { s.revokeLocked(ctx) })
	return res
}

// Signup registra un usuario. Si la respuesta trae token se trata como login.
func (s *Store) Signup(ctx context.Context, data any) *api.Response {
	res := s.api.Call(ctx, MethodSignup, data)
	if !res.OK {
		return res
	}
	payload, ok := decodePayload(res, s.logger)
	if !ok || payload.SessionToken() == "" {
		return res
	}
	s.update(func() { s.applyLocked(ctx, payload) })
	return res
}

func (s *Store) SetPassword(ctx context.Context, password string) *api.Response {
	return s.api.Call(ctx, MethodSetPassword, password)
}

func (s *Store) SendPasswordResetEmail(ctx context.Context, username string) *api.Response {
	return s.api.Call(ctx, MethodSendPasswordResetEmail, username)
}

func (s *Store) ConfirmEmailByToken(ctx context.Context, token string) *api.Response {
	return s.api.Call(ctx, MethodConfirmEmailByToken, token)
}

// SetPasswordByToken reenvia args tal cual (normalmente token y password nueva).
func (s *Store) SetPasswordByToken(ctx context.Context, args ...any) *api.Response {
	return s.api.Call(ctx, MethodSetPasswordByToken, args...)
}

func (s *Store) onForcedSignout() {
	s.logger.Info("forced signout")
	s.update(func() { s.revokeLocked(context.Background()) })
}

// decodePayload devuelve false si la respuesta trae datos que no son un
// payload de sesion valido. Sin datos devuelve un payload vacio.
func decodePayload(res *api.Response, logger *zap.Logger) (domain.SessionPayload, bool) {
	var payload domain.SessionPayload
	if err := res.Decode(&payload); err != nil && !errors.Is(err, api.ErrNoData) {
		logger.Warn("invalid session payload", zap.Int("status", res.Status), zap.Error(err))
		return domain.SessionPayload{}, false
	}
	return payload, true
}

// applyLocked aplica la regla de sesion. Requiere s.mu tomado.
func (s *Store) applyLocked(ctx context.Context, payload domain.SessionPayload) {
	if payload.Settings != nil {
		s.settings = payload.Settings
	}

	if payload.Auth == nil || payload.Auth.UserID == "" {
		s.clearUserLocked()
		return
	}

	s.userID = payload.Auth.UserID
	s.username = payload.Auth.Username
	s.permissions = payload.Auth.Permissions.Clone()
	s.avatar = payload.Auth.Avatar

	if token := payload.SessionToken(); token != "" {
		if err := s.storage.SetItem(context.WithoutCancel(ctx), TokenKey, token); err != nil {
			s.logger.Warn("persist token failed", zap.Error(err))
		}
		s.api.SetToken(token)
	}
}

// revokeLocked borra el token de ambos lados y limpia el usuario.
func (s *Store) revokeLocked(ctx context.Context) {
	// el token se borra aunque la llamada que llevo hasta aqui se haya cancelado
	if err := s.storage.RemoveItem(context.WithoutCancel(ctx), TokenKey); err != nil {
		s.logger.Warn("remove token failed", zap.Error(err))
	}
	s.api.SetToken("")
	s.clearUserLocked()
}

func (s *Store) clearUserLocked() {
	s.userID = ""
	s.username = ""
	s.avatar = ""
	s.permissions = domain.Permissions{}
}

// update ejecuta fn con el lock tomado y despues notifica a los suscriptores
// en el mismo orden en que se aplicaron los cambios.
func (s *Store) update(fn func()) {
	s.mu.Lock()
	fn()
	s.seq++
	seq := s.seq
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(seq, snap)
}
