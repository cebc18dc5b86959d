package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const identityKey = "admin.identity"

// Middleware rejects requests without a valid Bearer token and stores the
// admin identity in the gin context. Browsers cannot set headers on a
// websocket handshake, so an access_token query parameter is accepted too.
func Middleware(v Verifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok && c.GetHeader("Authorization") == "" {
			token, ok = c.GetQuery("access_token")
		}
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}
		id, err := v.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				logger.Error("verify admin token", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "auth_unavailable"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// FromContext returns the identity set by Middleware.
func FromContext(c *gin.Context) (*Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*Identity)
	return id, ok
}
