package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"appsession/internal/api"
	"appsession/internal/service"
)

const authClaimsKey = "auth_claims"

// SessionMiddleware resuelve la sesion a partir del bearer token. Sin token la
// llamada sigue como anonima; con un token invalido responde 4401 solo si
// strict, y si no lo ignora (signin, signout y los flujos por email).
func SessionMiddleware(logger *zap.Logger, jwtSvc *service.JWTService, strict bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSvc == nil {
			respondError(c, http.StatusInternalServerError, "jwt not configured")
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		if !strings.HasPrefix(strings.ToLower(header), "bearer ") {
			if strict {
				respondError(c, api.StatusSessionInvalid, "invalid authorization header")
				return
			}
			c.Next()
			return
		}

		token := strings.TrimSpace(header[len("Bearer "):])
		claims, err := jwtSvc.Parse(token)
		if err != nil {
			logger.Debug("session token rejected", zap.Error(err), zap.String("path", c.Request.URL.Path))
			if strict {
				respondError(c, api.StatusSessionInvalid, "session invalid")
				return
			}
			c.Next()
			return
		}

		c.Set(authClaimsKey, claims)
		c.Next()
	}
}

// GetAuthClaims obtiene claims de JWT desde el contexto.
func GetAuthClaims(c *gin.Context) (service.Claims, bool) {
	val, ok := c.Get(authClaimsKey)
	if !ok {
		return service.Claims{}, false
	}
	claims, ok := val.(service.Claims)
	return claims, ok
}
