package client

import (
	"context"
	"net/url"
)

// User is the authenticated account.
type User struct {
	ID           string         `json:"id"`
	Username     string         `json:"username,omitempty"`
	FirstName    string         `json:"first_name,omitempty"`
	LastName     string         `json:"last_name,omitempty"`
	ImageURL     string         `json:"image_url,omitempty"`
	Emails       []any          `json:"email_addresses,omitempty"`
	Metadata     map[string]any `json:"public_metadata,omitempty"`
	CreatedAt    any            `json:"created_at,omitempty"`
	LastSignInAt any            `json:"last_sign_in_at,omitempty"`
}

// OrgStorage is an organization's storage consumption.
type OrgStorage struct {
	OrgID     string         `json:"org_id,omitempty"`
	UsedBytes int64          `json:"used_bytes,omitempty"`
	Limit     int64          `json:"limit_bytes,omitempty"`
	Breakdown map[string]any `json:"breakdown,omitempty"`
}

// GetCurrentUser returns the account the credentials belong to.
func (c *Client) GetCurrentUser(ctx context.Context) (*User, error) {
	var result User
	if err := c.get(ctx, "/user/me", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrgStorage reports storage usage of an organization.
func (c *Client) GetOrgStorage(ctx context.Context, orgID string, breakdown bool) (*OrgStorage, error) {
	org, err := c.orgID("user.org_storage", orgID)
	if err != nil {
		return nil, err
	}
	q := url.Values{"org_id": {org}, "include_breakdown": {boolParam(breakdown)}}
	var result OrgStorage
	if err := c.get(ctx, "/user/org/storage", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
