package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appsession/internal/service"
)

// NewRouter configura el router de Gin con middlewares y los metodos RPC bajo /api.
func NewRouter(
	logger *zap.Logger,
	sessionH *SessionHandler,
	jwtServ *service.JWTService,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	api := r.Group("/api")

	strict := api.Group("", SessionMiddleware(logger, jwtServ, true))
	strict.POST("/session/check-authentication", sessionH.CheckAuthentication)
	strict.POST("/account/set-password", sessionH.SetPassword)

	lenient := api.Group("", SessionMiddleware(logger, jwtServ, false))
	lenient.POST("/session/signin", sessionH.Signin)
	lenient.POST("/session/signout", sessionH.Signout)
	lenient.POST("/session/signup", sessionH.Signup)
	lenient.POST("/session/send-password-reset-email", sessionH.SendPasswordResetEmail)
	lenient.POST("/session/confirm-email-by-token", sessionH.ConfirmEmailByToken)
	lenient.POST("/session/set-password-by-token", sessionH.SetPasswordByToken)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "unknown method")
	})

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetHeader("X-Request-ID")),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
