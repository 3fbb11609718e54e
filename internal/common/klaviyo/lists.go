package klaviyo

import (
	"context"
	"fmt"
	"net/http"
)

// GetLists returns the first page of lists visible to the API key.
func (c *Client) GetLists(ctx context.Context) ([]List, error) {
	resp, err := c.call(ctx, http.MethodGet, "/api/lists/", "get_lists", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get lists: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("get lists", resp)
	}

	var result listsResponse
	if err := resp.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to get lists: %w", err)
	}

	lists := make([]List, 0, len(result.Data))
	for _, l := range result.Data {
		lists = append(lists, List{ID: l.ID, Name: l.Attributes.Name})
	}
	return lists, nil
}

// TestConnection checks that the key is accepted.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.GetLists(ctx)
	return err
}
