// Package email delivers outreach messages by email, through Brevo's
// transactional API or a plain SMTP server.
package email

import (
	"context"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"
)

// Transport delivers one rendered message and returns the provider message id.
type Transport interface {
	Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error)
}

// NewTransport picks Brevo when an API key is set, SMTP when a host is set,
// and returns nil when email is not configured.
func NewTransport(cfg config.EmailConfig, log *logger.Logger) Transport {
	switch {
	case cfg.IsBrevoEnabled():
		log.Info("email channel enabled", "provider", "brevo")
		return NewBrevoTransport(cfg.GetBrevoAPIKey(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
	case cfg.IsSMTPEnabled():
		log.Info("email channel enabled", "provider", "smtp", "host", cfg.GetSMTPHost())
		return NewSMTPTransport(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
	default:
		return nil
	}
}
