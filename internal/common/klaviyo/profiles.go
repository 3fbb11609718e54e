package klaviyo

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CreateProfile creates the profile, or resolves the existing one when
// Klaviyo reports a duplicate. Any other answer is an error.
func (c *Client) CreateProfile(ctx context.Context, profile *Profile) (UpsertOutcome, error) {
	resp, err := c.call(ctx, http.MethodPost, "/api/profiles/", "create_profile", document{Data: profile.createResource()})
	if err != nil {
		return UpsertOutcome{}, fmt.Errorf("failed to create profile: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated:
		var created createProfileResponse
		if err := resp.Decode(&created); err != nil {
			return UpsertOutcome{}, fmt.Errorf("failed to create profile: %w", err)
		}
		if created.Data.ID == "" {
			return UpsertOutcome{}, fmt.Errorf("failed to create profile: no id in response")
		}
		return Created(created.Data.ID), nil

	case http.StatusConflict:
		var conflict apiErrorResponse
		if err := resp.Decode(&conflict); err != nil {
			return UpsertOutcome{}, fmt.Errorf("failed to resolve duplicate profile: %w", err)
		}
		if len(conflict.Errors) == 0 || conflict.Errors[0].Meta.DuplicateProfileID == "" {
			return UpsertOutcome{}, statusError("resolve duplicate profile", resp)
		}
		return AlreadyExists(conflict.Errors[0].Meta.DuplicateProfileID), nil

	default:
		return UpsertOutcome{}, statusError("create profile", resp)
	}
}

// UpdateProfile patches names, phone and properties of an existing profile.
func (c *Client) UpdateProfile(ctx context.Context, profileID string, profile *Profile) error {
	path := fmt.Sprintf("/api/profiles/%s/", url.PathEscape(profileID))

	resp, err := c.call(ctx, http.MethodPatch, path, "update_profile", document{Data: profile.updateResource(profileID)})
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if !resp.IsSuccess() {
		return statusError("update profile", resp)
	}
	return nil
}
