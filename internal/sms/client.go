// Package sms delivers outreach messages through a Twilio-compatible Messages API.
package sms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"lead_outreach_backend/internal/outreach/domain"
	"lead_outreach_backend/platform/config"
	"lead_outreach_backend/platform/logger"
	"lead_outreach_backend/platform/phone"
)

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	region     string
	http       *http.Client
	log        *logger.Logger
}

type messageResponse struct {
	SID     string `json:"sid"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// NewClient returns nil when SMS credentials are not configured.
func NewClient(cfg config.SMSConfig, region string, log *logger.Logger) *Client {
	if !cfg.IsSMSEnabled() {
		return nil
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.GetSMSAPIURL(), "/"),
		accountSID: cfg.GetSMSAccountSID(),
		authToken:  cfg.GetSMSAuthToken(),
		from:       cfg.GetSMSFromNumber(),
		region:     region,
		http:       &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Deliver sends msg to the lead's phone and returns the message SID.
func (c *Client) Deliver(ctx context.Context, lead domain.Lead, msg domain.Message) (string, error) {
	to, err := phone.Validate(lead.Phone, c.region)
	if err != nil {
		return "", fmt.Errorf("sms recipient: %w", err)
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Body", msg.Body)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", c.baseURL, url.PathEscape(c.accountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sms request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var decoded messageResponse
	_ = json.Unmarshal(data, &decoded)

	if resp.StatusCode >= http.StatusBadRequest {
		if decoded.Message != "" {
			return "", fmt.Errorf("sms provider returned %d: %s (code %d)", resp.StatusCode, decoded.Message, decoded.Code)
		}
		return "", fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	c.log.Debug("sms accepted", "sid", decoded.SID, "status", decoded.Status)
	return decoded.SID, nil
}
