package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// Brand is a styling preset applied to renders.
type Brand struct {
	BrandID   string         `json:"brand_id"`
	Name      string         `json:"name"`
	OrgID     string         `json:"org_id,omitempty"`
	LogoKey   string         `json:"logo_key,omitempty"`
	LogoURL   string         `json:"logo_url,omitempty"`
	IsDefault bool           `json:"is_default"`
	IsPublic  bool           `json:"is_public"`
	Styling   map[string]any `json:"styling,omitempty"`
}

// CreateBrandRequest is the body of POST /brand/create. Styling keys are sent flat.
type CreateBrandRequest struct {
	Name      string
	OrgID     string
	LogoKey   string
	IsDefault bool
	IsPublic  bool
	Styling   map[string]any
}

// BrandList is a page of brands.
type BrandList struct {
	Brands     []Brand `json:"brands"`
	Total      int     `json:"total,omitempty"`
	Page       int     `json:"page,omitempty"`
	TotalPages int     `json:"total_pages,omitempty"`
}

// ListBrands pages through the organization's brands.
func (c *Client) ListBrands(ctx context.Context, orgID string, page, limit int) (*BrandList, error) {
	org, err := c.orgID("brand.list", orgID)
	if err != nil {
		return nil, err
	}
	q := pageParams(page, limit, 10)
	q.Set("org_id", org)
	q.Set("include_urls", "true")
	var result BrandList
	if err := c.get(ctx, "/brand/get_all", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetBrand fetches a brand, or the organization default when brandID is empty.
func (c *Client) GetBrand(ctx context.Context, brandID, orgID string) (*Brand, error) {
	q := url.Values{}
	if brandID != "" {
		q.Set("brand_id", brandID)
	} else {
		org, err := c.orgID("brand.get", orgID)
		if err != nil {
			return nil, err
		}
		q.Set("org_id", org)
	}
	var result struct {
		Brand Brand `json:"brand"`
	}
	if err := c.get(ctx, "/brand/get", q, &result); err != nil {
		return nil, err
	}
	return &result.Brand, nil
}

// CreateBrand creates a brand preset.
func (c *Client) CreateBrand(ctx context.Context, req *CreateBrandRequest) (*Brand, error) {
	const op = "brand.create"
	if req.Name == "" {
		return nil, apierr.Validation(op, "name is required")
	}
	org, err := c.orgID(op, req.OrgID)
	if err != nil {
		return nil, err
	}
	body := make(map[string]any, len(req.Styling)+5)
	for k, v := range req.Styling {
		body[k] = v
	}
	body["org_id"] = org
	body["name"] = req.Name
	body["is_default"] = req.IsDefault
	body["is_public"] = req.IsPublic
	if req.LogoKey != "" {
		body["logo_key"] = req.LogoKey
	}
	var result struct {
		Brand Brand `json:"brand"`
	}
	if err := c.post(ctx, "/brand/create", nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Brand, nil
}

// GetDefaultBrand fetches the organization's default brand.
func (c *Client) GetDefaultBrand(ctx context.Context, orgID string) (*Brand, error) {
	org, err := c.orgID("brand.get_default", orgID)
	if err != nil {
		return nil, err
	}
	var result struct {
		Brand Brand `json:"brand"`
	}
	if err := c.get(ctx, "/brand/get_default", url.Values{"org_id": {org}}, &result); err != nil {
		return nil, err
	}
	return &result.Brand, nil
}

// UpdateBrand sends fields as the new values for a brand. Styling keys are flat.
func (c *Client) UpdateBrand(ctx context.Context, brandID string, fields map[string]any) (*Brand, error) {
	const op = "brand.update"
	if brandID == "" {
		return nil, apierr.Validation(op, "brand_id is required")
	}
	if len(fields) == 0 {
		return nil, apierr.Validation(op, "at least one field must be provided")
	}
	var result struct {
		Brand Brand `json:"brand"`
	}
	if err := c.put(ctx, "/brand/update", url.Values{"brand_id": {brandID}}, fields, &result); err != nil {
		return nil, err
	}
	return &result.Brand, nil
}

// DeleteBrand removes a brand.
func (c *Client) DeleteBrand(ctx context.Context, brandID string) (*StatusMessage, error) {
	if brandID == "" {
		return nil, apierr.Validation("brand.delete", "brand_id is required")
	}
	var result StatusMessage
	if err := c.del(ctx, "/brand/delete", url.Values{"brand_id": {brandID}}, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SetDefaultBrand makes brandID the organization default.
func (c *Client) SetDefaultBrand(ctx context.Context, brandID string) (*StatusMessage, error) {
	if brandID == "" {
		return nil, apierr.Validation("brand.set_default", "brand_id is required")
	}
	var result StatusMessage
	if err := c.put(ctx, "/brand/set_default", url.Values{"brand_id": {brandID}}, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DuplicateBrand copies a brand, optionally under a new name.
func (c *Client) DuplicateBrand(ctx context.Context, brandID, name, orgID string) (*Brand, error) {
	const op = "brand.duplicate"
	if brandID == "" {
		return nil, apierr.Validation(op, "brand_id is required")
	}
	org, err := c.orgID(op, orgID)
	if err != nil {
		return nil, err
	}
	body := map[string]string{"brand_id": brandID, "org_id": org}
	if name != "" {
		body["name"] = name
	}
	var result struct {
		Brand Brand `json:"brand"`
	}
	if err := c.post(ctx, "/brand/duplicate", nil, body, &result); err != nil {
		return nil, err
	}
	return &result.Brand, nil
}

func pageParams(page, limit, defaultLimit int) url.Values {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	return url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
}
