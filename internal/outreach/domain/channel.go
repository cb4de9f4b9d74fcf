package domain

import (
	"fmt"
	"strings"
)

// Channel is a messaging transport.
type Channel string

const (
	ChannelWhatsApp Channel = "whatsapp"
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
)

// Channels lists every supported channel.
func Channels() []Channel {
	return []Channel{ChannelWhatsApp, ChannelEmail, ChannelSMS}
}

// ParseChannel accepts any casing of whatsapp, email or sms.
func ParseChannel(raw string) (Channel, error) {
	c := Channel(strings.ToLower(strings.TrimSpace(raw)))
	switch c {
	case ChannelWhatsApp, ChannelEmail, ChannelSMS:
		return c, nil
	}
	return "", fmt.Errorf("unknown channel %q", raw)
}

// UsesPhone reports whether the channel addresses leads by phone number.
func (c Channel) UsesPhone() bool {
	return c == ChannelWhatsApp || c == ChannelSMS
}
