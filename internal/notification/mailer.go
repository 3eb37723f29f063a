package notification

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stanstork/adscope-api/internal/config"
)

// Mailer delivers plain text email.
type Mailer interface {
	Send(to []string, subject, body string) error
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends email through an SMTP relay.
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
	now  func() time.Time
	send sendFunc
}

func NewSMTPMailer(cfg config.EmailConfig) (*SMTPMailer, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	if host == "" {
		return nil, fmt.Errorf("email.smtp_host is required")
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		return nil, fmt.Errorf("email.from is required")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}

	m := &SMTPMailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		from: from,
		now:  time.Now,
		send: smtp.SendMail,
	}
	if user := strings.TrimSpace(cfg.Username); user != "" {
		m.auth = smtp.PlainAuth("", user, cfg.Password, host)
	}
	return m, nil
}

func (m *SMTPMailer) Send(to []string, subject, body string) error {
	if len(to) == 0 {
		return nil
	}
	if err := m.send(m.addr, m.auth, m.from, to, m.message(to, subject, body)); err != nil {
		return fmt.Errorf("send mail via %s: %w", m.addr, err)
	}
	return nil
}

func (m *SMTPMailer) message(to []string, subject, body string) []byte {
	domain := "adscope.local"
	if at := strings.LastIndex(m.from, "@"); at >= 0 {
		domain = m.from[at+1:]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	// Subjects carry agent supplied run ids.
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.NewReplacer("\r", " ", "\n", " ").Replace(subject))
	fmt.Fprintf(&b, "Date: %s\r\n", m.now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.NewString(), domain)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n"))
	return []byte(b.String())
}
