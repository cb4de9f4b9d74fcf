package outreach

import (
	"lead_outreach_backend/internal/channel"
	"lead_outreach_backend/internal/email"
	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/internal/sms"
	"lead_outreach_backend/internal/whatsapp"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"
)

// ChannelConfig is what the provider transports read.
type ChannelConfig interface {
	config.WhatsAppConfig
	config.EmailConfig
	config.SMSConfig
	config.OutreachConfig
}

// NewChannelRegistry registers a transport for every configured provider.
// Sends on an unconfigured channel fail with channel.ErrNotConfigured.
func NewChannelRegistry(cfg ChannelConfig, log *logger.Logger) *channel.Registry {
	registry := channel.NewRegistry(log)
	region := cfg.GetPhoneDefaultRegion()

	if wa := whatsapp.NewClient(cfg, region, log); wa != nil {
		registry.Register(domain.ChannelWhatsApp, wa)
	} else {
		log.Warn("WHATSAPP_URL not configured; whatsapp channel disabled")
	}

	if mail := email.NewTransport(cfg, log); mail != nil {
		registry.Register(domain.ChannelEmail, mail)
	} else {
		log.Warn("no email provider configured; email channel disabled")
	}

	if text := sms.NewClient(cfg, region, log); text != nil {
		registry.Register(domain.ChannelSMS, text)
	} else {
		log.Warn("SMS provider not configured; sms channel disabled")
	}

	return registry
}
