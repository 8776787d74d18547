// Package mailer delivers already-rendered messages over SMTP or Mailgun.
package mailer

import (
	"context"
	"errors"

	"github.com/oksasatya/go-ddd-user-accounts/config"
)

// Message is a rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a Message through one transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Transport() string
}

var ErrUnknownTransport = errors.New("unknown email transport")

// NewSender builds the transport selected by EMAIL_TRANSPORT.
func NewSender(cfg *config.Config) (Sender, error) {
	switch cfg.EmailTransport {
	case "smtp", "":
		return NewSMTP(SMTPConfig{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			TLS:       cfg.SMTPTLS,
			SSL:       cfg.SMTPSSL,
			User:      cfg.SMTPUser,
			Password:  cfg.SMTPPassword,
			FromName:  cfg.EmailsFromName,
			FromEmail: cfg.EmailsFromEmail,
		}), nil
	case "mailgun":
		sender := cfg.MailgunSender
		if sender == "" {
			sender = formatFrom(cfg.EmailsFromName, cfg.EmailsFromEmail)
		}
		return NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, sender), nil
	default:
		return nil, ErrUnknownTransport
	}
}

func formatFrom(name, email string) string {
	if name == "" {
		return email
	}
	return name + " <" + email + ">"
}
