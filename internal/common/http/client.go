// internal/common/http/client.go
package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"nomination-relay/internal/common/metrics"
)

// maxResponseBody caps how much of an upstream reply is read.
const maxResponseBody = 1 << 20

type Client struct {
	httpClient *http.Client
	service    string
}

// Request describes one JSON call to an upstream API.
type Request struct {
	Method    string
	URL       string
	Operation string
	Headers   map[string]string
	Body      interface{}
}

// Response is the upstream status and raw body.
type Response struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// NewClient builds a client whose calls are labelled with service in metrics.
func NewClient(service string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		service: service,
	}
}

// DoJSON sends r with a JSON encoded body and returns the full response. A
// non-2xx status is not an error; callers decide what each status means.
func (c *Client) DoJSON(ctx context.Context, r Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		payload, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(r.Operation, "error", start)
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	c.observe(r.Operation, strconv.Itoa(resp.StatusCode), start)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}

func (c *Client) observe(operation, status string, start time.Time) {
	metrics.UpstreamDuration.
		WithLabelValues(c.service, operation, status).
		Observe(time.Since(start).Seconds())
}
