package middleware

import (
	"errors"
	"net/http"

	"powerhause/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const ContextIdentityKey = "identity"

// AuthMiddleware 识别操作员并注入 gin 上下文与 request context
func AuthMiddleware(provider session.Provider, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := provider.Authenticate(c.Request)
		if err != nil {
			status := http.StatusUnauthorized
			msg := err.Error()
			switch {
			case errors.Is(err, session.ErrMissingCredentials),
				errors.Is(err, session.ErrInvalidFormat),
				errors.Is(err, session.ErrInvalidToken),
				errors.Is(err, session.ErrReplaced):
			default:
				logger.Error("session lookup failed", zap.Error(err))
				status = http.StatusInternalServerError
				msg = "session store unavailable"
			}
			c.AbortWithStatusJSON(status, gin.H{"msg": msg})
			return
		}

		c.Set(ContextIdentityKey, id)
		c.Request = c.Request.WithContext(session.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// Identity 读取 AuthMiddleware 注入的操作员
func Identity(c *gin.Context) (session.Identity, bool) {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return session.Identity{}, false
	}
	id, ok := v.(session.Identity)
	return id, ok
}
