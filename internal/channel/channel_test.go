package channel

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/platform/logger"
)

func TestRegistryRoutesByChannel(t *testing.T) {
	reg := NewRegistry(logger.NewWithWriter("development", io.Discard))
	var got string
	reg.Register(domain.ChannelSMS, TransportFunc(func(_ context.Context, lead domain.Lead, msg domain.Message) (string, error) {
		got = lead.Phone + ":" + msg.Body
		return "SM123", nil
	}))

	res := reg.Send(context.Background(), domain.Lead{Phone: "+355691234567"}, domain.Message{Body: "hi"}, domain.ChannelSMS)
	if !res.Success || res.ProviderMessageID != "SM123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if got != "+355691234567:hi" {
		t.Fatalf("transport received %q", got)
	}
}

func TestRegistryFailures(t *testing.T) {
	reg := NewRegistry(logger.NewWithWriter("development", io.Discard))
	reg.Register(domain.ChannelEmail, TransportFunc(func(context.Context, domain.Lead, domain.Message) (string, error) {
		return "", errors.New("mailbox unavailable")
	}))
	reg.Register(domain.ChannelWhatsApp, TransportFunc(func(context.Context, domain.Lead, domain.Message) (string, error) {
		panic("boom")
	}))
	reg.Register(domain.ChannelSMS, nil)

	tests := []struct {
		ch   domain.Channel
		want string
	}{
		{domain.ChannelEmail, "mailbox unavailable"},
		{domain.ChannelWhatsApp, "transport panic: boom"},
		{domain.ChannelSMS, "channel not configured"},
	}
	for _, tt := range tests {
		res := reg.Send(context.Background(), domain.Lead{}, domain.Message{}, tt.ch)
		if res.Success || !strings.Contains(res.Error, tt.want) {
			t.Errorf("%s: expected failure containing %q, got %+v", tt.ch, tt.want, res)
		}
	}
	if reg.Configured(domain.ChannelSMS) {
		t.Fatal("nil transport must not configure a channel")
	}
}
