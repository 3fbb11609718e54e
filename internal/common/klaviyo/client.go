// Package klaviyo is a minimal client for the Klaviyo JSON:API endpoints the
// relay needs: profiles, bulk subscription jobs and lists.
package klaviyo

import (
	"context"
	"fmt"
	"strings"

	"nomination-relay/internal/common/config"
	commonhttp "nomination-relay/internal/common/http"
)

const (
	contentType = "application/vnd.api+json"
	serviceName = "klaviyo"
)

type Client struct {
	apiKey     string
	revision   string
	baseURL    string
	httpClient *commonhttp.Client
}

func NewClient(cfg config.KlaviyoConfig) *Client {
	return &Client{
		apiKey:     cfg.PrivateKey,
		revision:   cfg.Revision,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: commonhttp.NewClient(serviceName, config.GetDuration(cfg.Timeout)),
	}
}

func (c *Client) headers() map[string]string {
	return map[string]string{
		"Authorization": "Klaviyo-API-Key " + c.apiKey,
		"revision":      c.revision,
		"Content-Type":  contentType,
		"Accept":        contentType,
	}
}

func (c *Client) call(ctx context.Context, method, path, operation string, body interface{}) (*commonhttp.Response, error) {
	headers := c.headers()
	if body == nil {
		delete(headers, "Content-Type")
	}
	return c.httpClient.DoJSON(ctx, commonhttp.Request{
		Method:    method,
		URL:       c.baseURL + path,
		Operation: operation,
		Headers:   headers,
		Body:      body,
	})
}

// maxErrorBody bounds how much upstream text ends up in error messages.
const maxErrorBody = 500

func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}

func statusError(action string, resp *commonhttp.Response) error {
	return fmt.Errorf("failed to %s (status %d): %s", action, resp.StatusCode, snippet(resp.Body))
}
