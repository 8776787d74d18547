package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
)

// SessionChecker reports whether sid is the live session of userID.
type SessionChecker interface {
	SessionValid(ctx context.Context, userID, sid string) bool
}

// UserLoader loads the authenticated user.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

// Auth validates the access token and ensures it belongs to the active session.
// It sets userID and sessionID in the Gin context on success.
func Auth(sessions SessionChecker, jwt *helpers.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := accessToken(c)
		if token == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing access token", nil)
			c.Abort()
			return
		}
		claims, err := jwt.ParseAccessToken(token)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid access token", err.Error())
			c.Abort()
			return
		}
		if sessions != nil && !sessions.SessionValid(c.Request.Context(), claims.UserID, claims.SessionID) {
			response.Error[any](c, http.StatusUnauthorized, "session not found", nil)
			c.Abort()
			return
		}
		c.Set(CtxUserIDKey, claims.UserID)
		c.Set(CtxSessionIDKey, claims.SessionID)
		c.Next()
	}
}

// RequireSuperuser must run after Auth. Inactive or regular users get 403.
func RequireSuperuser(users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetByID(c.Request.Context(), c.GetString(CtxUserIDKey))
		if err != nil || u == nil {
			response.Error[any](c, http.StatusUnauthorized, "user not found", nil)
			c.Abort()
			return
		}
		if !u.IsActive || !u.IsSuperuser {
			response.Error[any](c, http.StatusForbidden, "the user doesn't have enough privileges", nil)
			c.Abort()
			return
		}
		c.Next()
	}
}
