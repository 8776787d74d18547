package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/internal/interface/middleware"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
)

// fail writes err as a response, logging server side failures.
func fail(c *gin.Context, logger *logrus.Logger, err error, message string) {
	if apperror.HTTPStatus(err) >= http.StatusInternalServerError {
		helpers.LogError(logger, message, err, logrus.Fields{
			"request_id": c.GetString("request_id"),
			"path":       c.FullPath(),
		})
	}
	response.FromError(c, err, message)
}

func currentUserID(c *gin.Context) string {
	return c.GetString(middleware.CtxUserIDKey)
}

func toUserResponse(u *entity.User) gin.H {
	following := u.Following
	if following == nil {
		following = []string{}
	}
	return gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"full_name":    u.FullName,
		"is_active":    u.IsActive,
		"is_superuser": u.IsSuperuser,
		"avatar_path":  u.AvatarPath,
		"following":    following,
		"created_at":   u.CreatedAt,
		"updated_at":   u.UpdatedAt,
	}
}
