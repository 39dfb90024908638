package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/farmlink/farmhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// UserAuthenticator resolves a bearer token to a user record.
// Keep this small interface so tests can fake it easily.
type UserAuthenticator interface {
	Authenticate(ctx context.Context, rawToken string) (user.User, error)
}

type AuthMiddleware struct {
	strategy UserAuthenticator
}

func NewAuthMiddleware(strategy UserAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{strategy: strategy}
}

// RequireAuth runs the token strategy and stores the resolved user on
// the request context. Handlers read it back via CurrentUser; nothing
// downstream ever sees a half-authenticated request.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid bearer token",
				},
			})
			return
		}

		u, err := m.strategy.Authenticate(c.Request.Context(), raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		SetCurrentUser(c, u)

		c.Next()
	}
}

// SetCurrentUser stashes the resolved identity; RequireAuth calls it and
// handler tests can call it directly.
func SetCurrentUser(c *gin.Context, u user.User) {
	c.Set(ctxUserKey, u)
}

// CurrentUser returns the user resolved by RequireAuth.

func CurrentUser(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
