package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"vpms_console/internal/domain"
	"vpms_console/internal/router"
)

const UserKey = "user"

// SessionReader is the part of the session store the middleware needs.
type SessionReader interface {
	Current() domain.Session
}

type AuthMiddleware struct {
	session SessionReader
	caps    router.Capabilities
	logger  *zap.Logger
}

func NewAuthMiddleware(s SessionReader, caps router.Capabilities, l *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{session: s, caps: caps, logger: l}
}

// Authenticate rejects requests while nobody is signed in to the console.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := m.session.Current()
		if !s.Authenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Please log in"})
			return
		}
		c.Set(UserKey, *s.User)
		c.Next()
	}
}

// AuthorizeAction checks the capability table for the signed-in role.
func (m *AuthMiddleware) AuthorizeAction(action domain.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		if !m.caps.CanDo(u.Role, action) {
			m.logger.Info("action denied", zap.String("role", string(u.Role)), zap.String("action", string(action)))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (domain.User, bool) {
	v, ok := c.Get(UserKey)
	if !ok {
		return domain.User{}, false
	}
	u, ok := v.(domain.User)
	return u, ok
}
