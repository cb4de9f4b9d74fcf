package email

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"lead_outreach_backend/internal/outreach/domain"

	gomail "github.com/wneessen/go-mail"
)

// SMTPTransport delivers through a direct SMTP connection via go-mail.
// The generated Message-ID doubles as the provider message id.
type SMTPTransport struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

func NewSMTPTransport(host string, port int, username, password, fromEmail, fromName string) *SMTPTransport {
	return &SMTPTransport{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPTransport) buildMessage(lead domain.Lead, msg domain.Message) (*gomail.Msg, error) {
	to := strings.TrimSpace(lead.Email)
	if to == "" {
		return nil, fmt.Errorf("lead has no email address")
	}
	subject := subjectFor(lead, msg)
	html, err := renderMessageHTML(subject, msg.Body, s.fromName)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMsg()
	if err := m.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(to); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(subject)
	m.SetMessageID()
	m.SetBodyString(gomail.TypeTextPlain, msg.Body)
	m.AddAlternativeString(gomail.TypeTextHTML, html)
	return m, nil
}

// Deliver sends msg and returns its Message-ID.
func (s *SMTPTransport) Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error) {
	m, err := s.buildMessage(lead, msg)
	if err != nil {
		return "", err
	}

	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return "", fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return "", fmt.Errorf("smtp send: %w", err)
	}

	return m.GetMessageID(), nil
}
