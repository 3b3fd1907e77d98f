package client

import (
	"context"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// Settings are the per-user defaults stored on the platform.
type Settings struct {
	AIParams        map[string]any `json:"ai_params,omitempty"`
	LinkPreferences map[string]any `json:"link_preferences,omitempty"`
	UIPreferences   map[string]any `json:"ui_preferences,omitempty"`
}

// GetSettings returns the current user's settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var result struct {
		Settings Settings `json:"settings"`
	}
	if err := c.get(ctx, "/settings/get", nil, &result); err != nil {
		return nil, err
	}
	return &result.Settings, nil
}

// UpdateSettings merges the given categories into the stored settings.
// Nil categories are left unchanged; at least one must be set.
func (c *Client) UpdateSettings(ctx context.Context, s *Settings) (*StatusMessage, error) {
	if s == nil || (s.AIParams == nil && s.LinkPreferences == nil && s.UIPreferences == nil) {
		return nil, apierr.Validation("settings.update", "at least one of ai_params, link_preferences or ui_preferences must be provided")
	}
	var result StatusMessage
	if err := c.put(ctx, "/settings/update", nil, s, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
