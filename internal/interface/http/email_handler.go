package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	userapp "github.com/oksasatya/go-ddd-user-accounts/internal/application"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/response"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/validation"
)

const (
	testEmailSubject = "{{ .project_name }} - Test email"
	testEmailHTML    = "<p>Test email for {{ .email }} from {{ .project_name }}.</p>"
)

type EmailHandler struct {
	Notifier *userapp.NotificationService
	Logger   *logrus.Logger
}

func NewEmailHandler(notifier *userapp.NotificationService, logger *logrus.Logger) *EmailHandler {
	return &EmailHandler{Notifier: notifier, Logger: logger}
}

type testEmailRequest struct {
	To      string `json:"to" binding:"required,email"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Queue   bool   `json:"queue"`
}

// Test POST /api/admin/email/test sends (or enqueues) a test message.
func (h *EmailHandler) Test(c *gin.Context) {
	var req testEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	subject, html := req.Subject, req.HTML
	if subject == "" {
		subject = testEmailSubject
	}
	if html == "" {
		html = testEmailHTML
	}
	vars := map[string]any{"project_name": h.Notifier.ProjectName, "email": req.To}

	send := h.Notifier.SendEmail
	status, msg := http.StatusCreated, "test email sent"
	if req.Queue {
		send = h.Notifier.Enqueue
		status, msg = http.StatusAccepted, "test email enqueued"
	}
	res, err := send(c.Request.Context(), req.To, subject, html, vars)
	if err != nil {
		fail(c, h.Logger, err, "test email failed")
		return
	}
	response.Success(c, status, res, msg, nil)
}
