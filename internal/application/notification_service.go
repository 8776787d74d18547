package application

import (
	"context"
	"io/fs"
	"net/url"
	"time"

	"github.com/samber/oops"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-ddd-user-accounts/config"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/apperror"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/helpers"
	"github.com/oksasatya/go-ddd-user-accounts/pkg/mailer"
	mailtpl "github.com/oksasatya/go-ddd-user-accounts/pkg/mailer/templates"
)

const sendTimeout = 15 * time.Second

const (
	resetPasswordSubject = "{{ .project_name }} - Password recovery for user {{ .username }}"
	newAccountSubject    = "{{ .project_name }} - New account for user {{ .username }}"
)

// JobPublisher puts a JSON payload on the email queue.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// DeliveryResult describes a message handed to a transport or the queue.
type DeliveryResult struct {
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Transport string    `json:"transport"`
	Queued    bool      `json:"queued"`
	At        time.Time `json:"at"`
}

type NotificationService struct {
	Sender          mailer.Sender
	Templates       fs.FS
	Publisher       JobPublisher
	Logger          *logrus.Logger
	ProjectName     string
	ServerHost      string
	ResetValidHours int
	IncludePassword bool
	enabled         bool
}

func NewNotificationService(cfg *config.Config, sender mailer.Sender, templates fs.FS, publisher JobPublisher, logger *logrus.Logger) *NotificationService {
	return &NotificationService{
		Sender:          sender,
		Templates:       templates,
		Publisher:       publisher,
		Logger:          logger,
		ProjectName:     cfg.ProjectName,
		ServerHost:      cfg.ServerHost,
		ResetValidHours: cfg.EmailResetTokenExpireHours,
		IncludePassword: cfg.EmailNewAccountIncludePassword,
		enabled:         cfg.EmailsEnabled() && sender != nil,
	}
}

func (s *NotificationService) Enabled() bool { return s.enabled }

// SendEmail renders the subject and HTML body with vars and delivers them synchronously.
func (s *NotificationService) SendEmail(ctx context.Context, to, subjectTemplate, htmlTemplate string, vars map[string]any) (DeliveryResult, error) {
	if !s.enabled {
		return DeliveryResult{}, apperror.Configuration("EMAILS_DISABLED", "no provided configuration for email variables")
	}
	msg, err := render(to, subjectTemplate, htmlTemplate, vars)
	if err != nil {
		return DeliveryResult{}, err
	}
	return s.Deliver(ctx, mailer.EmailJob{To: msg.To, Subject: msg.Subject, HTML: msg.HTML})
}

// Deliver sends an already rendered job through the configured transport.
// Transport failures are logged and returned as DeliveryFailure.
func (s *NotificationService) Deliver(ctx context.Context, job mailer.EmailJob) (DeliveryResult, error) {
	if !s.enabled {
		return DeliveryResult{}, apperror.Configuration("EMAILS_DISABLED", "no provided configuration for email variables")
	}
	res := DeliveryResult{To: job.To, Subject: job.Subject, Transport: s.Sender.Transport()}
	c, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	if err := s.Sender.Send(c, job.Message()); err != nil {
		err = apperror.DeliveryFailure("EMAIL_SEND_FAILED", err, "to", job.To, "transport", res.Transport)
		helpers.LogError(s.Logger, "send email failed", err, nil)
		return res, err
	}
	res.At = time.Now().UTC()
	helpers.LogInfo(s.Logger, "send email result", logrus.Fields{"to": job.To, "subject": job.Subject, "transport": res.Transport})
	return res, nil
}

// Enqueue renders the message and publishes it for the email worker.
func (s *NotificationService) Enqueue(ctx context.Context, to, subjectTemplate, htmlTemplate string, vars map[string]any) (DeliveryResult, error) {
	if !s.enabled {
		return DeliveryResult{}, apperror.Configuration("EMAILS_DISABLED", "no provided configuration for email variables")
	}
	if s.Publisher == nil {
		return DeliveryResult{}, apperror.Configuration("EMAIL_QUEUE_DISABLED", "email queue is not configured")
	}
	msg, err := render(to, subjectTemplate, htmlTemplate, vars)
	if err != nil {
		return DeliveryResult{}, err
	}
	job := mailer.EmailJob{To: msg.To, Subject: msg.Subject, HTML: msg.HTML, EnqueuedAt: time.Now().UTC()}
	res := DeliveryResult{To: job.To, Subject: job.Subject, Transport: "queue", Queued: true, At: job.EnqueuedAt}
	if err := s.Publisher.PublishJSON(ctx, job); err != nil {
		err = apperror.DeliveryFailure("EMAIL_ENQUEUE_FAILED", err, "to", to)
		helpers.LogError(s.Logger, "enqueue email failed", err, nil)
		return res, err
	}
	return res, nil
}

// SendResetPasswordEmail mails the password recovery link for token.
func (s *NotificationService) SendResetPasswordEmail(ctx context.Context, emailTo, email, token string) (DeliveryResult, error) {
	if !s.enabled {
		return DeliveryResult{}, apperror.Configuration("EMAILS_DISABLED", "no provided configuration for email variables")
	}
	tpl, err := s.template(mailtpl.ResetPassword)
	if err != nil {
		return DeliveryResult{}, err
	}
	return s.SendEmail(ctx, emailTo, resetPasswordSubject, tpl, map[string]any{
		"project_name": s.ProjectName,
		"username":     email,
		"email":        emailTo,
		"valid_hours":  s.ResetValidHours,
		"link":         s.ServerHost + "/reset-password?token=" + url.QueryEscape(token),
	})
}

// SendNewAccountEmail welcomes a new user. The password is only included when
// EMAIL_NEW_ACCOUNT_INCLUDE_PASSWORD is on; otherwise the mail points to password recovery.
func (s *NotificationService) SendNewAccountEmail(ctx context.Context, emailTo, username, password string) (DeliveryResult, error) {
	if !s.enabled {
		return DeliveryResult{}, apperror.Configuration("EMAILS_DISABLED", "no provided configuration for email variables")
	}
	tpl, err := s.template(mailtpl.NewAccount)
	if err != nil {
		return DeliveryResult{}, err
	}
	if !s.IncludePassword {
		password = ""
	}
	return s.SendEmail(ctx, emailTo, newAccountSubject, tpl, map[string]any{
		"project_name": s.ProjectName,
		"username":     username,
		"password":     password,
		"email":        emailTo,
		"link":         s.ServerHost,
	})
}

func (s *NotificationService) template(name string) (string, error) {
	fsys := s.Templates
	if fsys == nil {
		fsys = mailtpl.FS
	}
	src, err := mailtpl.Load(fsys, name)
	if err != nil {
		return "", oops.Code("EMAIL_TEMPLATE_MISSING").With("template", name).Wrap(err)
	}
	return src, nil
}

func render(to, subjectTemplate, htmlTemplate string, vars map[string]any) (mailer.Message, error) {
	subject, err := mailtpl.RenderText(subjectTemplate, vars)
	if err != nil {
		return mailer.Message{}, oops.Code("EMAIL_RENDER_FAILED").With("part", "subject").Wrap(err)
	}
	html, err := mailtpl.RenderHTML(htmlTemplate, vars)
	if err != nil {
		return mailer.Message{}, oops.Code("EMAIL_RENDER_FAILED").With("part", "html").Wrap(err)
	}
	return mailer.Message{To: to, Subject: subject, HTML: html}, nil
}
