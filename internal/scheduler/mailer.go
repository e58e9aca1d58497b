package scheduler

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer sends a single rendered email. The digest jobs build one message
// per recipient and hand it off here; Mailer does not know about
// notifications.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends mail through a configured SMTP relay. No third-party
// mail library appears anywhere in the example pack, so this stays on
// net/smtp rather than introducing one for a single outbound call site.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

func (m *SMTPMailer) Send(to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	var auth smtp.Auth
	if m.User != "" {
		auth = smtp.PlainAuth("", m.User, m.Password, m.Host)
	}

	msg := strings.Builder{}
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(addr, auth, m.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("scheduler: send mail to %s: %w", to, err)
	}
	return nil
}

// NoopMailer discards mail, used when mailer.enabled is false.
type NoopMailer struct{}

func (NoopMailer) Send(string, string, string) error { return nil }
