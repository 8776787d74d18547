package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/validation"
)

// AuthHandler serves the password recovery flow.
type AuthHandler struct {
	Svc    *userapp.Service
	Logger *logrus.Logger
}

func NewAuthHandler(svc *userapp.Service, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger}
}

type recoverRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

// RecoverPassword POST /api/auth/password/recover
// Unknown addresses get the same 200 as registered ones. A failed delivery to a
// registered address surfaces as 502 so operators can alert on it.
func (h *AuthHandler) RecoverPassword(c *gin.Context) {
	var req recoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.RecoverPassword(c.Request.Context(), req.Email); err != nil {
		fail(c, h.Logger, err, "password recovery failed")
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"sent": true}, "password recovery email sent", nil)
}

// ResetPassword POST /api/auth/password/reset
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if _, err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		fail(c, h.Logger, err, "password reset failed")
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"updated": true}, "password updated successfully", nil)
}
