package config

import (
	"time"

	"github.com/caarlos0/env/v10"

	"appsession/internal/session"
)

// Config centraliza la configuracion del cliente de sesion y del servidor de desarrollo.
type Config struct {
	AppTitle          string `env:"APP_TITLE"`
	AppTitleIcon      string `env:"APP_TITLE_ICON"`
	SigninPermissions string `env:"APP_SIGNIN_PERMISSIONS"`
	RootUserID        string `env:"APP_ROOT_USER_ID" envDefault:"1"`
	RootUserName      string `env:"APP_ROOT_USER_NAME" envDefault:"root"`

	APIURL            string `env:"API_URL" envDefault:"http://localhost:8080/api"`
	APITimeoutSeconds int    `env:"API_TIMEOUT_SECONDS" envDefault:"30"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`

	TokenStorage  string `env:"TOKEN_STORAGE" envDefault:"file"`
	TokenFile     string `env:"TOKEN_FILE" envDefault:".appsession/storage.json"`
	TokenPrefix   string `env:"TOKEN_PREFIX" envDefault:"appsession:"`
	DatabaseURL   string `env:"DATABASE_URL"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	HTTPPort            string `env:"HTTP_PORT" envDefault:"8080"`
	JWTSecret           string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"1440"`
	RootPassword        string `env:"APP_ROOT_PASSWORD"`
	PublicURL           string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`
	SMTPHost            string `env:"SMTP_HOST"`
	SMTPPort            int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser            string `env:"SMTP_USER"`
	SMTPPass            string `env:"SMTP_PASS"`
	SMTPFrom            string `env:"SMTP_FROM"`
	SMTPFromName        string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS          bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	SignupRequireEmailConfirmation bool `env:"SIGNUP_REQUIRE_EMAIL_CONFIRMATION" envDefault:"false"`
}

// LoadConfig carga la configuracion desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// APITimeout devuelve el timeout del transporte; nunca cero.
func (c *Config) APITimeout() time.Duration {
	if c.APITimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.APITimeoutSeconds) * time.Second
}

// JWTAccessTTL devuelve la vida de los tokens emitidos por el servidor de desarrollo.
func (c *Config) JWTAccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

// SessionConfig proyecta la configuracion sobre el store de sesion.
func (c *Config) SessionConfig() session.Config {
	return session.Config{
		Title:             c.AppTitle,
		TitleIcon:         c.AppTitleIcon,
		RootUserID:        c.RootUserID,
		RootUserName:      c.RootUserName,
		SigninPermissions: c.SigninPermissions,
	}
}
