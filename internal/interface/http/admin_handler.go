package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/internal/domain/entity"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/validation"
)

// AdminHandler serves superuser-only account management.
type AdminHandler struct {
	Svc      *userapp.Service
	Notifier *userapp.NotificationService
	Logger   *logrus.Logger
}

func NewAdminHandler(svc *userapp.Service, notifier *userapp.NotificationService, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{Svc: svc, Notifier: notifier, Logger: logger}
}

type createUserRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,pwd"`
	FullName    string `json:"full_name" binding:"max=255"`
	IsSuperuser bool   `json:"is_superuser"`
}

// CreateUser POST /api/admin/users
// The welcome email is best effort: a failed send is reported in meta, the user stays created.
func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	ctx := c.Request.Context()
	u, err := h.Svc.Create(ctx, entity.UserCreate{Email: req.Email, Password: req.Password, FullName: req.FullName, IsSuperuser: req.IsSuperuser})
	if err != nil {
		fail(c, h.Logger, err, "create user failed")
		return
	}

	email := map[string]any{"sent": false}
	if h.Notifier != nil && h.Notifier.Enabled() {
		if res, err := h.Notifier.SendNewAccountEmail(ctx, u.Email, u.Email, req.Password); err != nil {
			email["error"] = apperror.Code(err)
		} else {
			email["sent"] = true
			email["transport"] = res.Transport
		}
	}
	response.Success(c, http.StatusCreated, toUserResponse(u), "user created", map[string]any{"email": email})
}

// DeleteUser DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id := c.Param("id")
	if id == currentUserID(c) {
		response.Error[any](c, http.StatusBadRequest, "superusers cannot delete themselves", nil)
		return
	}
	if err := h.Svc.Delete(c.Request.Context(), id); err != nil {
		fail(c, h.Logger, err, "delete user failed")
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"deleted": id}, "user deleted", nil)
}
