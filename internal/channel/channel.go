// Package channel routes rendered outreach messages to the transport that
// owns each channel. Engines depend on Sender only.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/platform/logger"
)

// ErrNotConfigured is reported when no transport is registered for a channel.
var ErrNotConfigured = errors.New("channel not configured")

// Result is the outcome of one send. Error is a human readable provider message.
type Result struct {
	Success           bool
	ProviderMessageID string
	Error             string
}

// Sender delivers a rendered message to a lead on a channel.
type Sender interface {
	Send(ctx context.Context, lead domain.Lead, msg domain.Message, ch domain.Channel) Result
}

// Transport is a provider adapter. It returns the provider's message id, if any.
type Transport interface {
	Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error)

func (f TransportFunc) Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error) {
	return f(ctx, lead, msg)
}

// Registry is a Sender that dispatches by channel.
type Registry struct {
	mu         sync.RWMutex
	transports map[domain.Channel]Transport
	log        *logger.Logger
}

func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{transports: make(map[domain.Channel]Transport), log: log}
}

// Register installs t for ch. A nil transport leaves the channel unconfigured.
func (r *Registry) Register(ch domain.Channel, t Transport) {
	if t == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transports[ch] = t
}

// Configured reports whether ch has a transport.
func (r *Registry) Configured(ch domain.Channel) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.transports[ch]
	return ok
}

// Send never panics; transport panics become failed results.
func (r *Registry) Send(ctx context.Context, lead domain.Lead, msg domain.Message, ch domain.Channel) (result Result) {
	r.mu.RLock()
	t, ok := r.transports[ch]
	r.mu.RUnlock()
	if !ok {
		return r.fail(ch, lead, fmt.Errorf("%w: %s", ErrNotConfigured, ch))
	}

	defer func() {
		if p := recover(); p != nil {
			result = r.fail(ch, lead, fmt.Errorf("transport panic: %v", p))
		}
	}()

	id, err := t.Deliver(ctx, lead, msg)
	if err != nil {
		return r.fail(ch, lead, err)
	}
	return Result{Success: true, ProviderMessageID: id}
}

func (r *Registry) fail(ch domain.Channel, lead domain.Lead, err error) Result {
	r.log.SendFailed(string(ch), lead.ID.String(), err.Error())
	return Result{Error: err.Error()}
}
