package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
)

const (
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
)

// accessToken reads the access_token cookie, falling back to an Authorization: Bearer header.
func accessToken(c *gin.Context) string {
	if token, err := c.Cookie(helpers.AccessCookie); err == nil && token != "" {
		return token
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
