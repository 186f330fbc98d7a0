package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"appsession/internal/domain"
	"appsession/internal/email"
	"appsession/internal/repository"
)

// UserService coordina reglas de negocio para cuentas: alta, login, cambio de
// password y los flujos por email (reset y confirmacion).
type UserService struct {
	logger       *zap.Logger
	users        repository.UserRepository
	tokens       repository.ActionTokenRepository
	emailSender  email.Sender
	resetLimiter RateLimiter
	publicURL    string
	requireEmail bool
	tokenTTL     time.Duration
	bcryptCost   int
}

type UserServiceOptions struct {
	PublicURL                string
	RequireEmailConfirmation bool
	ResetLimiter             RateLimiter
	TokenTTL                 time.Duration
}

func NewUserService(logger *zap.Logger, users repository.UserRepository, tokens repository.ActionTokenRepository, emailSender email.Sender, opts UserServiceOptions) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ResetLimiter == nil {
		opts.ResetLimiter = NewMemoryRateLimiter(actionTokenTTL, 3)
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = actionTokenTTL
	}
	return &UserService{
		logger:       logger,
		users:        users,
		tokens:       tokens,
		emailSender:  emailSender,
		resetLimiter: opts.ResetLimiter,
		publicURL:    strings.TrimRight(strings.TrimSpace(opts.PublicURL), "/"),
		requireEmail: opts.RequireEmailConfirmation,
		tokenTTL:     opts.TokenTTL,
		bcryptCost:   bcrypt.DefaultCost,
	}
}

type SignupInput struct {
	Username    string
	Email       string
	Password    string
	DisplayName string
}

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrUserExists           = errors.New("user already exists")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidEmail         = errors.New("invalid email")
	ErrWeakPassword         = errors.New("password too short")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrEmailNotConfirmed    = errors.New("email not confirmed")
	ErrTokenInvalid         = errors.New("token invalid")
	ErrTokenExpired         = errors.New("token expired")
	ErrEmailSendFailure     = errors.New("email send failed")
	ErrRateLimited          = errors.New("rate limited")
	errServiceNotConfigured = errors.New("user service not configured")
)

const (
	actionTokenTTL    = time.Hour
	minPasswordLength = 8
)

func (s *UserService) RequiresEmailConfirmation() bool {
	return s.requireEmail
}

// EnsureRoot crea el usuario root si todavia no existe. Sin password solo
// devuelve el root existente.
func (s *UserService) EnsureRoot(ctx context.Context, id, username, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceNotConfigured
	}
	if user, err := s.users.GetByID(ctx, id); err == nil {
		return user, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if strings.TrimSpace(password) == "" {
		return domain.User{}, ErrWeakPassword
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:              id,
		Username:        normalizeLogin(username),
		DisplayName:     username,
		Permissions:     domain.Permissions{},
		PasswordHash:    hash,
		EmailVerifiedAt: &now,
		CreatedAt:       now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return domain.User{}, err
	}
	s.logger.Info("root user created", zap.String("user_id", id), zap.String("username", user.Username))
	return user, nil
}

// Signup registra un usuario. Si la confirmacion por email esta activa, envia
// el link y el usuario no puede iniciar sesion hasta confirmarlo.
func (s *UserService) Signup(ctx context.Context, input SignupInput) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceNotConfigured
	}
	username := normalizeLogin(input.Username)
	if username == "" || strings.ContainsAny(username, " @") {
		return domain.User{}, ErrInvalidUsername
	}
	emailAddr := normalizeLogin(input.Email)
	if emailAddr != "" && !strings.Contains(emailAddr, "@") {
		return domain.User{}, ErrInvalidEmail
	}
	if s.requireEmail && emailAddr == "" {
		return domain.User{}, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return domain.User{}, ErrUserExists
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, err
	}
	if emailAddr != "" {
		if _, err := s.users.GetByEmail(ctx, emailAddr); err == nil {
			return domain.User{}, ErrUserExists
		} else if !errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, err
		}
	}

	hash, err := s.hashPassword(input.Password)
	if err != nil {
		return domain.User{}, err
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        emailAddr,
		DisplayName:  strings.TrimSpace(input.DisplayName),
		Permissions:  domain.Permissions{},
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if !s.requireEmail {
		user.EmailVerifiedAt = &now
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return domain.User{}, ErrUserExists
		}
		return domain.User{}, err
	}

	if s.requireEmail {
		if err := s.sendActionEmail(ctx, user, domain.TokenEmailConfirmation); err != nil {
			return domain.User{}, err
		}
	}
	return user, nil
}

// Authenticate acepta username o email como login.
func (s *UserService) Authenticate(ctx context.Context, login, password string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceNotConfigured
	}
	login = normalizeLogin(login)
	if login == "" || password == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	user, err := s.lookup(ctx, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if user.PasswordHash == "" {
		return domain.User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrInvalidCredentials
	}
	if s.requireEmail && user.EmailVerifiedAt == nil {
		return domain.User{}, ErrEmailNotConfirmed
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id string) (domain.User, error) {
	if s.users == nil {
		return domain.User{}, errServiceNotConfigured
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

// SetPassword cambia el password de un usuario ya autenticado por su sesion.
func (s *UserService) SetPassword(ctx context.Context, userID, password string) error {
	if len(password) < minPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	return s.users.UpdatePassword(ctx, user.ID, hash)
}

// SendPasswordReset no revela si el login existe: un usuario desconocido
// devuelve nil igual que uno valido.
func (s *UserService) SendPasswordReset(ctx context.Context, login string) error {
	if s.users == nil {
		return errServiceNotConfigured
	}
	login = normalizeLogin(login)
	if login == "" {
		return ErrInvalidEmail
	}
	if s.resetLimiter != nil && !s.resetLimiter.Allow(login) {
		return ErrRateLimited
	}
	user, err := s.lookup(ctx, login)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			s.logger.Info("password reset requested for unknown login", zap.String("login", login))
			return nil
		}
		return err
	}
	if user.Email == "" {
		s.logger.Warn("password reset requested for user without email", zap.String("user_id", user.ID))
		return nil
	}
	return s.sendActionEmail(ctx, user, domain.TokenPasswordReset)
}

func (s *UserService) ConfirmEmail(ctx context.Context, token string) (domain.User, error) {
	user, err := s.consume(ctx, token, domain.TokenEmailConfirmation)
	if err != nil {
		return domain.User{}, err
	}
	verifiedAt := time.Now().UTC()
	if err := s.users.VerifyEmail(ctx, user.ID, verifiedAt); err != nil {
		return domain.User{}, err
	}
	user.EmailVerifiedAt = &verifiedAt
	return user, nil
}

// SetPasswordByToken completa el reset de password. El token prueba el acceso
// al email, asi que tambien lo marca como verificado.
func (s *UserService) SetPasswordByToken(ctx context.Context, token, password string) (domain.User, error) {
	if len(password) < minPasswordLength {
		return domain.User{}, ErrWeakPassword
	}
	user, err := s.consume(ctx, token, domain.TokenPasswordReset)
	if err != nil {
		return domain.User{}, err
	}
	hash, err := s.hashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return domain.User{}, err
	}
	user.PasswordHash = hash
	if user.EmailVerifiedAt == nil {
		verifiedAt := time.Now().UTC()
		if err := s.users.VerifyEmail(ctx, user.ID, verifiedAt); err != nil {
			return domain.User{}, err
		}
		user.EmailVerifiedAt = &verifiedAt
	}
	return user, nil
}

func (s *UserService) lookup(ctx context.Context, login string) (domain.User, error) {
	var (
		user domain.User
		err  error
	)
	if strings.Contains(login, "@") {
		user, err = s.users.GetByEmail(ctx, login)
	} else {
		user, err = s.users.GetByUsername(ctx, login)
	}
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrUserNotFound
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) sendActionEmail(ctx context.Context, user domain.User, kind domain.TokenKind) error {
	if s.tokens == nil {
		return errServiceNotConfigured
	}
	token, hash, err := generateActionToken()
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	if err := s.tokens.Create(ctx, domain.ActionToken{
		Hash:      hash,
		UserID:    user.ID,
		Kind:      kind,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}); err != nil {
		return err
	}

	if s.emailSender == nil {
		return ErrEmailSendFailure
	}
	link := s.actionLink(kind, token)
	switch kind {
	case domain.TokenPasswordReset:
		err = s.emailSender.SendPasswordReset(ctx, user.Email, link, expiresAt)
	default:
		err = s.emailSender.SendEmailConfirmation(ctx, user.Email, link, expiresAt)
	}
	if err != nil {
		s.logger.Warn("send account email failed",
			zap.Error(err),
			zap.String("kind", string(kind)),
			zap.String("user_id", user.ID),
		)
		return ErrEmailSendFailure
	}
	return nil
}

func (s *UserService) consume(ctx context.Context, token string, kind domain.TokenKind) (domain.User, error) {
	if s.users == nil || s.tokens == nil {
		return domain.User{}, errServiceNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, ErrTokenInvalid
	}
	stored, err := s.tokens.Consume(ctx, hashActionToken(token), kind)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, err
	}
	if time.Now().UTC().After(stored.ExpiresAt) {
		return domain.User{}, ErrTokenExpired
	}
	user, err := s.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return domain.User{}, ErrTokenInvalid
		}
		return domain.User{}, err
	}
	return user, nil
}

func (s *UserService) actionLink(kind domain.TokenKind, token string) string {
	path := "/confirm-email"
	if kind == domain.TokenPasswordReset {
		path = "/reset-password"
	}
	return s.publicURL + path + "?token=" + url.QueryEscape(token)
}

func (s *UserService) hashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

func generateActionToken() (string, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", "", err
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	return token, hashActionToken(token), nil
}

func hashActionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeLogin(login string) string {
	return strings.ToLower(strings.TrimSpace(login))
}
