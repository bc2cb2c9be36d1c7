package mailer

import (
	"errors"
	"strings"

	"github.com/Caqil/iprofit-admin-sub003/internal/config"
	mail "gopkg.in/mail.v2"
)

// ErrNotConfigured indicates the SMTP channel is not set up.
var ErrNotConfigured = errors.New("mailer: smtp not configured")

// Sender delivers one email message.
type Sender interface {
	Send(to, subject, body string) error
}

// Mailer delivers email over SMTP.
type Mailer struct {
	cfg config.SMTPConfig
}

// New constructs a Mailer from SMTP settings.
func New(cfg config.SMTPConfig) *Mailer {
	return &Mailer{cfg: cfg}
}

// Send delivers a plain-text message to a single recipient.
func (m *Mailer) Send(to, subject, body string) error {
	if m == nil || !m.cfg.Enabled() {
		return ErrNotConfigured
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return errors.New("mailer: empty recipient")
	}

	from := strings.TrimSpace(m.cfg.From)
	if from == "" {
		from = m.cfg.Username
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	dialer := mail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)
	return dialer.DialAndSend(msg)
}
