package smtp

import (
	"fmt"
	"net/smtp"

	"github.com/go-email-otp/internal/config"
	"github.com/jordan-wright/email"
)

// Mailer sends emails.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

type sendFunc func(addr string, auth smtp.Auth, e *email.Email) error

type mailer struct {
	addr string
	from string
	auth smtp.Auth
	send sendFunc
}

func NewMailer(cfg *config.Config) Mailer {
	var auth smtp.Auth
	if cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &mailer{
		addr: fmt.Sprintf("%s:%s", cfg.SMTPHost, cfg.SMTPPort),
		from: cfg.SMTPFrom,
		auth: auth,
		send: func(addr string, auth smtp.Auth, e *email.Email) error { return e.Send(addr, auth) },
	}
}

func (m *mailer) SendEmail(to, subject, body string) error {
	e := email.NewEmail()
	e.From = m.from
	e.To = []string{to}
	e.Subject = subject
	e.Text = []byte(body)
	if err := m.send(m.addr, m.auth, e); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
