package mailer

import (
	"context"
	"crypto/tls"

	"gopkg.in/gomail.v2"
)

// SMTPConfig mirrors the SMTP_* settings. TLS asks for a STARTTLS upgrade on a
// plain connection; SSL asks for implicit TLS on connect, which port 465 always
// gets.
type SMTPConfig struct {
	Host      string
	Port      int
	TLS       bool
	SSL       bool
	User      string
	Password  string
	FromName  string
	FromEmail string
}

type SMTP struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.SSL {
		d.SSL = true
	}
	if cfg.TLS || d.SSL {
		d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	}
	return &SMTP{cfg: cfg, dialer: d}
}

func (s *SMTP) Transport() string { return "smtp" }

// Send dials, delivers and closes. gomail has no context support, so ctx only
// bounds how long the caller waits.
func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m := s.build(msg)
	done := make(chan error, 1)
	go func() { done <- s.dialer.DialAndSend(m) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SMTP) build(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.cfg.FromEmail, s.cfg.FromName)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	switch {
	case msg.Text != "" && msg.HTML != "":
		m.SetBody("text/plain", msg.Text)
		m.AddAlternative("text/html", msg.HTML)
	case msg.HTML != "":
		m.SetBody("text/html", msg.HTML)
	default:
		m.SetBody("text/plain", msg.Text)
	}
	return m
}
