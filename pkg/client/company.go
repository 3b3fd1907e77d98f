package client

import (
	"context"
	"net/url"

	"github.com/storylinez/storylinez-go/pkg/apierr"
)

// CompanyDetails is a reusable company profile fed into prompts and outros.
type CompanyDetails struct {
	CompanyDetailsID string `json:"company_details_id"`
	OrgID            string `json:"org_id,omitempty"`
	CompanyName      string `json:"company_name"`
	CompanyType      string `json:"company_type,omitempty"`
	Description      string `json:"description,omitempty"`
	Tagline          string `json:"tag_line,omitempty"`
	Website          string `json:"website,omitempty"`
	CallToAction     string `json:"cta_text,omitempty"`
	CallToActionURL  string `json:"cta_url,omitempty"`
	IsDefault        bool   `json:"is_default"`
}

// CompanyDetailsList is a page of company profiles.
type CompanyDetailsList struct {
	CompanyDetails []CompanyDetails `json:"company_details"`
	Total          int              `json:"total,omitempty"`
	Page           int              `json:"page,omitempty"`
	TotalPages     int              `json:"total_pages,omitempty"`
}

// ListCompanyDetails pages through the organization's company profiles, newest first.
func (c *Client) ListCompanyDetails(ctx context.Context, orgID string, page, limit int) (*CompanyDetailsList, error) {
	org, err := c.orgID("company.list", orgID)
	if err != nil {
		return nil, err
	}
	q := pageParams(page, limit, 10)
	q.Set("org_id", org)
	q.Set("sort_by", "created_at")
	q.Set("order", "desc")
	var result CompanyDetailsList
	if err := c.get(ctx, "/company/get_all", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetCompanyDetails fetches a profile by id, or the organization default.
func (c *Client) GetCompanyDetails(ctx context.Context, companyDetailsID, orgID string) (*CompanyDetails, error) {
	if orgID == "" {
		orgID = c.DefaultOrg()
	}
	if companyDetailsID == "" && orgID == "" {
		return nil, apierr.Validation("company.get", "either company_details_id or org_id is required")
	}
	q := url.Values{}
	if companyDetailsID != "" {
		q.Set("company_details_id", companyDetailsID)
	}
	if orgID != "" {
		q.Set("org_id", orgID)
	}
	var result struct {
		CompanyDetails CompanyDetails `json:"company_details"`
	}
	if err := c.get(ctx, "/company/get_one", q, &result); err != nil {
		return nil, err
	}
	return &result.CompanyDetails, nil
}
