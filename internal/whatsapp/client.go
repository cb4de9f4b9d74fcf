// Package whatsapp delivers outreach messages through a GOWA (go-whatsapp-web-multidevice) gateway.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/phone"
)

type Client struct {
	baseURL  string
	apiKey   string
	deviceID string
	region   string
	http     *http.Client
	log      *logger.Logger
}

type gowaRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

type gowaResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Results struct {
		MessageID string `json:"message_id"`
		Status    string `json:"status"`
	} `json:"results"`
}

// NewClient returns nil when no gateway URL is configured.
func NewClient(cfg config.WhatsAppConfig, region string, log *logger.Logger) *Client {
	if cfg.GetWhatsAppURL() == "" {
		return nil
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.GetWhatsAppURL(), "/"),
		apiKey:   cfg.GetWhatsAppKey(),
		deviceID: cfg.GetWhatsAppDeviceID(),
		region:   region,
		http:     &http.Client{Timeout: 10 * time.Second},
		log:      log,
	}
}

// Deliver sends msg to the lead's phone and returns the gateway message id.
func (c *Client) Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error) {
	e164, err := phone.Validate(lead.Phone, c.region)
	if err != nil {
		return "", fmt.Errorf("whatsapp recipient: %w", err)
	}
	return c.SendMessage(ctx, e164, msg.Body)
}

func (c *Client) SendMessage(ctx context.Context, phoneNumber string, message string) (string, error) {
	if c == nil {
		return "", nil
	}

	normalized := strings.TrimPrefix(phone.NormalizeE164(phoneNumber, c.region), "+")

	payload := gowaRequest{
		Phone:   normalized,
		Message: message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal whatsapp payload: %w", err)
	}

	url := fmt.Sprintf("%s/send/message", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", formatAuthHeader(c.apiKey))
	}
	if c.deviceID != "" {
		req.Header.Set("X-Device-Id", c.deviceID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("whatsapp request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("whatsapp service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var decoded gowaResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		c.log.Warn("whatsapp response not understood", "error", err)
	}

	c.log.Debug("whatsapp sent via gowa", "phone", normalized, "messageId", decoded.Results.MessageID)
	return decoded.Results.MessageID, nil
}

func formatAuthHeader(apiKey string) string {
	if strings.HasPrefix(strings.ToLower(apiKey), "basic ") {
		return apiKey
	}

	encoded := base64.StdEncoding.EncodeToString([]byte(apiKey))
	return "Basic " + encoded
}
