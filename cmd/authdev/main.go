package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"appsession/internal/config"
	"appsession/internal/db"
	"appsession/internal/email"
	apihttp "appsession/internal/http"
	"appsession/internal/repository"
	"appsession/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	var (
		userRepo  repository.UserRepository
		tokenRepo repository.ActionTokenRepository
		pool      *pgxpool.Pool
	)
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg)
		if err != nil {
			logger.Fatal("db connect", zap.Error(err))
		}
		defer pool.Close()
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("db schema", zap.Error(err))
		}
		pgTokens := repository.NewPgActionTokenRepository(pool)
		userRepo = repository.NewPgUserRepository(pool)
		tokenRepo = pgTokens
		go purgeExpiredTokens(ctx, logger, pgTokens)
	} else {
		logger.Warn("DATABASE_URL not set, users are kept in memory")
		userRepo = repository.NewMemoryUserRepository()
		tokenRepo = repository.NewMemoryActionTokenRepository()
	}

	emailSender := email.NewDisabledSender("email sender not configured")
	if cfg.SMTPHost != "" {
		sender, err := email.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPUseTLS)
		if err != nil {
			logger.Warn("smtp sender init failed", zap.Error(err))
		} else {
			emailSender = sender
		}
	}

	var (
		resetLimiter service.RateLimiter
		revocations  service.RevocationStore
		redisClient  *redis.Client
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer redisClient.Close()
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			resetLimiter = service.NewRedisRateLimiter(redisClient, "auth:reset:rl:", time.Hour, 3)
			revocations = service.NewRedisRevocationStore(redisClient)
		}
		cancel()
	}

	if cfg.JWTSecret == "" {
		logger.Fatal("jwt secret not configured")
	}
	jwtSvc := service.NewJWTServiceWithStore(cfg.JWTSecret, cfg.JWTAccessTTL(), revocations)

	userSvc := service.NewUserService(logger, userRepo, tokenRepo, emailSender, service.UserServiceOptions{
		PublicURL:                cfg.PublicURL,
		RequireEmailConfirmation: cfg.SignupRequireEmailConfirmation,
		ResetLimiter:             resetLimiter,
	})
	if cfg.RootPassword != "" {
		if _, err := userSvc.EnsureRoot(ctx, cfg.RootUserID, cfg.RootUserName, cfg.RootPassword); err != nil {
			logger.Fatal("ensure root user", zap.Error(err))
		}
	} else {
		logger.Warn("APP_ROOT_PASSWORD not set, root user is not seeded")
	}

	sessionHandler := apihttp.NewSessionHandler(logger, userSvc, jwtSvc, apihttp.SessionHandlerOptions{
		RootUserID:   cfg.RootUserID,
		RootUserName: cfg.RootUserName,
		Settings: map[string]any{
			"title":      cfg.AppTitle,
			"title_icon": cfg.AppTitleIcon,
		},
	})
	router := apihttp.NewRouter(logger, sessionHandler, jwtSvc)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
	}()

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func purgeExpiredTokens(ctx context.Context, logger *zap.Logger, tokens *repository.PgActionTokenRepository) {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := tokens.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Warn("purge expired tokens failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("expired tokens purged", zap.Int64("count", n))
			}
		}
	}
}
