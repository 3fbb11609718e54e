// Package quo sends text messages through the Quo (formerly OpenPhone) API.
package quo

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"nomination-relay/internal/common/config"
	commonhttp "nomination-relay/internal/common/http"
)

type Client struct {
	apiKey        string
	phoneNumberID string
	fromNumber    string
	baseURL       string
	httpClient    *commonhttp.Client
}

type messageRequest struct {
	Content        string   `json:"content"`
	To             []string `json:"to"`
	From           string   `json:"from,omitempty"`
	PhoneNumberID  string   `json:"phoneNumberId,omitempty"`
	SetInboxStatus string   `json:"setInboxStatus"`
}

func NewClient(cfg config.QuoConfig) *Client {
	return &Client{
		apiKey:        cfg.APIKey,
		phoneNumberID: cfg.PhoneNumberID,
		fromNumber:    cfg.FromNumber,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:    commonhttp.NewClient("quo", config.GetDuration(cfg.Timeout)),
	}
}

func (c *Client) Name() string { return config.SMSProviderQuo }

func (c *Client) Configured() bool { return c.apiKey != "" }

// Send posts one message to a single recipient and marks the conversation done.
func (c *Client) Send(ctx context.Context, to, content string) error {
	if !c.Configured() {
		return fmt.Errorf("failed to send message: api key not configured")
	}

	resp, err := c.httpClient.DoJSON(ctx, commonhttp.Request{
		Method:    http.MethodPost,
		URL:       c.baseURL + "/v1/messages",
		Operation: "send_message",
		Headers:   map[string]string{"Authorization": c.apiKey},
		Body: messageRequest{
			Content:        content,
			To:             []string{to},
			From:           c.fromNumber,
			PhoneNumberID:  c.phoneNumberID,
			SetInboxStatus: "done",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.IsSuccess() {
		body := strings.TrimSpace(string(resp.Body))
		if len(body) > 500 {
			body = body[:500] + "..."
		}
		return fmt.Errorf("failed to send message (status %d): %s", resp.StatusCode, body)
	}
	return nil
}
