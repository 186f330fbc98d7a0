package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appsession/internal/access"
	"appsession/internal/api"
	"appsession/internal/domain"
	"appsession/internal/service"
)

// SessionHandler atiende los metodos session/* y account/* del protocolo RPC.
type SessionHandler struct {
	logger   *zap.Logger
	userServ *service.UserService
	jwtServ  *service.JWTService
	opts     SessionHandlerOptions
}

type SessionHandlerOptions struct {
	RootUserID   string
	RootUserName string
	// Settings se envia al cliente en cada respuesta de sesion.
	Settings map[string]any
}

func NewSessionHandler(logger *zap.Logger, userServ *service.UserService, jwtServ *service.JWTService, opts SessionHandlerOptions) *SessionHandler {
	if opts.Settings == nil {
		opts.Settings = map[string]any{}
	}
	return &SessionHandler{
		logger:   logger,
		userServ: userServ,
		jwtServ:  jwtServ,
		opts:     opts,
	}
}

type credentials struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c credentials) login() string {
	for _, v := range []string{c.Login, c.Username, c.Email} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type signupRequest struct {
	Username    string `json:"username"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// CheckAuthentication maneja session/check-authentication. Sin token responde
// solo con settings; el middleware estricto ya rechazo los tokens invalidos.
func (h *SessionHandler) CheckAuthentication(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respond(c, http.StatusOK, domain.SessionPayload{Settings: h.opts.Settings})
		return
	}
	user, err := h.userServ.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			respondError(c, api.StatusSessionInvalid, "session user no longer exists")
			return
		}
		h.logger.Error("check authentication failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not load session")
		return
	}
	auth := user.AuthInfo()
	respond(c, http.StatusOK, domain.SessionPayload{Settings: h.opts.Settings, Auth: &auth})
}

// Signin maneja session/signin: args [credentials, allow-list|null].
func (h *SessionHandler) Signin(c *gin.Context) {
	args, err := bindArgs(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	var creds credentials
	if err := args.decode(0, &creds); err != nil {
		respondError(c, http.StatusBadRequest, "invalid credentials argument")
		return
	}
	var allow []string
	if err := args.decode(1, &allow); err != nil && !errors.Is(err, errMissingArg) {
		respondError(c, http.StatusBadRequest, "invalid permissions argument")
		return
	}

	user, err := h.userServ.Authenticate(c.Request.Context(), creds.login(), creds.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			respondError(c, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, service.ErrEmailNotConfirmed):
			respondError(c, http.StatusForbidden, "email not confirmed")
		default:
			h.logger.Error("signin failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "could not sign in")
		}
		return
	}

	if len(allow) > 0 && !access.Check(h.subject(user), allow...) {
		h.logger.Info("signin rejected by permissions", zap.String("user_id", user.ID), zap.Strings("required", allow))
		respondError(c, http.StatusForbidden, "insufficient permissions")
		return
	}

	h.startSession(c, user)
}

// Signout maneja session/signout. Es idempotente: sin sesion valida responde 200.
func (h *SessionHandler) Signout(c *gin.Context) {
	if claims, ok := GetAuthClaims(c); ok {
		if err := h.jwtServ.Revoke(claims); err != nil {
			h.logger.Error("revoke session failed", zap.Error(err), zap.String("sid", claims.SessionID()))
			respondError(c, http.StatusInternalServerError, "could not sign out")
			return
		}
	}
	respond(c, http.StatusOK, nil)
}

// Signup maneja session/signup: args [data]. Si hace falta confirmar el email
// la respuesta no trae token y el cliente sigue sin sesion.
func (h *SessionHandler) Signup(c *gin.Context) {
	args, err := bindArgs(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	var req signupRequest
	if err := args.decode(0, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid signup argument")
		return
	}

	user, err := h.userServ.Signup(c.Request.Context(), service.SignupInput{
		Username:    req.Username,
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			respondError(c, http.StatusConflict, "user already exists")
		case errors.Is(err, service.ErrInvalidUsername),
			errors.Is(err, service.ErrInvalidEmail),
			errors.Is(err, service.ErrWeakPassword):
			respondError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrEmailSendFailure):
			respondError(c, http.StatusServiceUnavailable, "email delivery unavailable")
		default:
			h.logger.Error("signup failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "could not sign up")
		}
		return
	}

	if h.userServ.RequiresEmailConfirmation() {
		respond(c, http.StatusOK, gin.H{"username": user.Username, "email_confirmation_sent": true})
		return
	}
	h.startSession(c, user)
}

// SetPassword maneja account/set-password: args [password]. Requiere sesion.
func (h *SessionHandler) SetPassword(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "authentication required")
		return
	}
	args, err := bindArgs(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	password, err := args.str(0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid password argument")
		return
	}
	if err := h.userServ.SetPassword(c.Request.Context(), claims.UserID, password); err != nil {
		switch {
		case errors.Is(err, service.ErrWeakPassword):
			respondError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUserNotFound):
			respondError(c, api.StatusSessionInvalid, "session user no longer exists")
		default:
			h.logger.Error("set password failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "could not set password")
		}
		return
	}
	respond(c, http.StatusOK, nil)
}

// SendPasswordResetEmail maneja session/send-password-reset-email: args [username].
func (h *SessionHandler) SendPasswordResetEmail(c *gin.Context) {
	args, err := bindArgs(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	login, err := args.str(0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid username argument")
		return
	}
	if err := h.userServ.SendPasswordReset(c.Request.Context(), login); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidEmail):
			respondError(c, http.StatusBadRequest, "invalid username")
		case errors.Is(err, service.ErrRateLimited):
			respondError(c, http.StatusTooManyRequests, "too many requests")
		case errors.Is(err, service.ErrEmailSendFailure):
			respondError(c, http.StatusServiceUnavailable, "email delivery unavailable")
		default:
			h.logger.Error("send password reset failed", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "could not send password reset")
		}
		return
	}
	respond(c, http.StatusOK, nil)
}

// ConfirmEmailByToken maneja session/confirm-email-by-token: args [token].
func (h *SessionHandler) ConfirmEmailByToken(c *gin.Context) {
	args, err := bindArgs(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	token, err := args.str(0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid token argument")
		return
	}
	user, err := h.userServ.ConfirmEmail(c.Request.Context(), token)
	if err != nil {
		h.tokenError(c, "confirm email", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"username": user.Username})
}

// SetPasswordByToken maneja session/set-password-by-token: args [token, password].
func (h *SessionHandler) SetPasswordByToken(c *gin.Context) {
	args, err := bindArgs(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}
	token, err := args.str(0)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid token argument")
		return
	}
	password, err := args.str(1)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid password argument")
		return
	}
	user, err := h.userServ.SetPasswordByToken(c.Request.Context(), token, password)
	if err != nil {
		if errors.Is(err, service.ErrWeakPassword) {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
		h.tokenError(c, "set password by token", err)
		return
	}
	respond(c, http.StatusOK, gin.H{"username": user.Username})
}

func (h *SessionHandler) tokenError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, service.ErrTokenInvalid):
		respondError(c, http.StatusBadRequest, "token invalid")
	case errors.Is(err, service.ErrTokenExpired):
		respondError(c, http.StatusGone, "token expired")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not complete request")
	}
}

func (h *SessionHandler) startSession(c *gin.Context, user domain.User) {
	token, claims, err := h.jwtServ.Issue(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "could not issue token")
		return
	}
	h.logger.Info("session started", zap.String("user_id", user.ID), zap.String("sid", claims.SessionID()))
	auth := user.AuthInfo()
	respond(c, http.StatusOK, domain.SessionPayload{
		Settings: h.opts.Settings,
		Auth:     &auth,
		Token:    token,
	})
}

func (h *SessionHandler) subject(user domain.User) access.Subject {
	return access.Subject{
		Authenticated: true,
		Root: access.RootIdentity{
			UserID:   h.opts.RootUserID,
			Username: h.opts.RootUserName,
		}.Matches(user.ID, user.Username),
		Permissions: user.Permissions,
	}
}
