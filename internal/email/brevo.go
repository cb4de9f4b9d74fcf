package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
)

const brevoSendURL = "https://api.brevo.com/v3/smtp/email"

type BrevoTransport struct {
	apiKey    string
	fromName  string
	fromEmail string
	endpoint  string
	client    *http.Client
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoEmailRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
	TextContent string         `json:"textContent"`
	Tags        []string       `json:"tags,omitempty"`
}

type brevoEmailResponse struct {
	MessageID string `json:"messageId"`
}

func NewBrevoTransport(apiKey, fromEmail, fromName string) *BrevoTransport {
	return &BrevoTransport{
		apiKey:    apiKey,
		fromName:  fromName,
		fromEmail: fromEmail,
		endpoint:  brevoSendURL,
		client:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Deliver sends msg to the lead's email address and returns Brevo's message id.
func (b *BrevoTransport) Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error) {
	to := strings.TrimSpace(lead.Email)
	if to == "" {
		return "", fmt.Errorf("lead has no email address")
	}
	subject := subjectFor(lead, msg)
	html, err := renderMessageHTML(subject, msg.Body, b.fromName)
	if err != nil {
		return "", err
	}

	payload := brevoEmailRequest{
		Sender:      brevoContact{Name: b.fromName, Email: b.fromEmail},
		To:          []brevoContact{{Name: lead.Name, Email: to}},
		Subject:     subject,
		HTMLContent: html,
		TextContent: msg.Body,
	}
	if msg.Variant != "" {
		payload.Tags = []string{"variant-" + msg.Variant}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("api-key", b.apiKey)
	req.Header.Set("content-type", "application/json")
	req.Header.Set("accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("brevo send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded brevoEmailResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return "", fmt.Errorf("decode brevo response: %w", err)
	}
	return decoded.MessageID, nil
}
