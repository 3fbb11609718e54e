package klaviyo

import (
	"context"
	"fmt"
	"net/http"
)

// Subscribe queues a bulk subscription job for a single profile. Klaviyo
// answers 202 Accepted; any 2xx counts as success.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) error {
	if sub.ListID == "" {
		return fmt.Errorf("failed to subscribe profile: list id is required")
	}

	resp, err := c.call(ctx, http.MethodPost, "/api/profile-subscription-bulk-create-jobs/", "subscribe_profile", document{Data: sub.job()})
	if err != nil {
		return fmt.Errorf("failed to subscribe profile: %w", err)
	}
	if !resp.IsSuccess() {
		return statusError("subscribe profile", resp)
	}
	return nil
}
