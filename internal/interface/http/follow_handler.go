package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
)

type FollowHandler struct {
	Svc    *userapp.FollowService
	Logger *logrus.Logger
}

func NewFollowHandler(svc *userapp.FollowService, logger *logrus.Logger) *FollowHandler {
	return &FollowHandler{Svc: svc, Logger: logger}
}

// Follow POST /api/users/:id/:action where action is follow or unfollow.
func (h *FollowHandler) Follow(c *gin.Context) {
	u, err := h.Svc.Follow(c.Request.Context(), c.Param("action"), c.Param("id"), currentUserID(c))
	if err != nil {
		fail(c, h.Logger, err, c.Param("action")+" failed")
		return
	}
	response.Success(c, http.StatusOK, toUserResponse(u), c.Param("action")+" applied", nil)
}

// Following GET /api/users/:id/following
func (h *FollowHandler) Following(c *gin.Context) {
	ids, err := h.Svc.ListFollowing(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, err, "list following failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user_id": c.Param("id"), "following": ids}, "following", map[string]any{"count": len(ids)})
}

// Followers GET /api/users/:id/followers
func (h *FollowHandler) Followers(c *gin.Context) {
	ids, err := h.Svc.ListFollowers(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, err, "list followers failed")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user_id": c.Param("id"), "followers": ids}, "followers", map[string]any{"count": len(ids)})
}
