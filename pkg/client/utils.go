package client

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// VoiceType is one selectable narration voice.
type VoiceType struct {
	Code        string `json:"voiceover_code"`
	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Accent      string `json:"accent,omitempty"`
	Description string `json:"description,omitempty"`
}

// AlterPromptRequest enhances or randomizes a prompt as a remote job.
type AlterPromptRequest struct {
	OldPrompt      string         `json:"old_prompt" validate:"required"`
	OrgID          string         `json:"org_id"`
	JobName        string         `json:"job_name,omitempty"`
	EditedJSON     map[string]any `json:"edited_json,omitempty"`
	CompanyDetails string         `json:"company_details,omitempty"`
	AlterType      string         `json:"-" validate:"omitempty,oneof=enhance randomize"`
	PromptType     string         `json:"-" validate:"omitempty,oneof=prompt storyboard sequence"`
}

// OrganizationInfoRequest extracts company details from a website as a remote job.
type OrganizationInfoRequest struct {
	WebsiteURL     string           `json:"website_url" validate:"required,http_url"`
	OrgID          string           `json:"org_id"`
	JobName        string           `json:"job_name,omitempty"`
	ScrapedContent string           `json:"scraped_content,omitempty"`
	Documents      []map[string]any `json:"documents,omitempty"`
	Temperature    *float64         `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Deepthink      bool             `json:"-"`
	WebSearch      bool             `json:"-"`
}

// WebScrapingRequest crawls a website as a remote job. Timeout is in seconds.
type WebScrapingRequest struct {
	WebsiteURL string `json:"website_url" validate:"required,http_url"`
	Timeout    int    `json:"timeout" validate:"gte=0"`
	Depth      int    `json:"depth" validate:"gte=0,lte=5"`
	EnableJS   bool   `json:"enable_js"`
	Deepthink  bool   `json:"deepthink"`
	Overdrive  bool   `json:"overdrive"`
	WebSearch  bool   `json:"web_search"`
	Eco        bool   `json:"eco"`
}

// BrandExtractionRequest derives brand settings from a website, optionally
// seeded with the output of a scraping job.
type BrandExtractionRequest struct {
	WebsiteURL        string          `json:"website_url" validate:"required,http_url"`
	ScrapedData       json.RawMessage `json:"scraped_data,omitempty"`
	IncludePalette    bool            `json:"include_palette"`
	DynamicExtraction bool            `json:"dynamic_extraction"`
	Deepthink         bool            `json:"deepthink"`
	Overdrive         bool            `json:"overdrive"`
	WebSearch         bool            `json:"web_search"`
	Eco               bool            `json:"eco"`
}

// UtilityJob is the state of a utility job.
type UtilityJob struct {
	JobID   string          `json:"job_id"`
	JobType string          `json:"job_type,omitempty"`
	Status  string          `json:"status"`
	Error   string          `json:"error,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// Snapshot classifies the utility job.
func (j *UtilityJob) Snapshot() poller.Snapshot {
	return poller.Snapshot{Phase: QueryGenStatuses.Phase(j.Status), Status: j.Status, Message: j.Error}
}

// GetVoiceTypes lists available narration voices.
func (c *Client) GetVoiceTypes(ctx context.Context) ([]VoiceType, error) {
	var result struct {
		VoiceTypes []VoiceType `json:"voice_types"`
	}
	if err := c.get(ctx, "/utils/voice-types", nil, &result); err != nil {
		return nil, err
	}
	return result.VoiceTypes, nil
}

// GetTransitionTypes lists the transitions a sequence can use, keyed by name.
func (c *Client) GetTransitionTypes(ctx context.Context) (map[string]json.RawMessage, error) {
	var result struct {
		TransitionTypes map[string]json.RawMessage `json:"transition_types"`
	}
	if err := c.get(ctx, "/utils/transition-types", nil, &result); err != nil {
		return nil, err
	}
	return result.TransitionTypes, nil
}

// GetTemplateTypes lists render templates grouped by category.
func (c *Client) GetTemplateTypes(ctx context.Context) (map[string]json.RawMessage, error) {
	var result struct {
		TemplateTypes map[string]json.RawMessage `json:"template_types"`
	}
	if err := c.get(ctx, "/utils/template-types", nil, &result); err != nil {
		return nil, err
	}
	return result.TemplateTypes, nil
}

// GetColorGrades lists the available color grades keyed by name.
func (c *Client) GetColorGrades(ctx context.Context) (map[string]json.RawMessage, error) {
	var result struct {
		ColorGrades map[string]json.RawMessage `json:"color_grades"`
	}
	if err := c.get(ctx, "/utils/color-grades", nil, &result); err != nil {
		return nil, err
	}
	return result.ColorGrades, nil
}

// ListJobsOptions filters GET /utils/list-jobs.
type ListJobsOptions struct {
	OrgID   string
	JobType string `validate:"omitempty,oneof=alter_prompt search_recommendations organization_info"`
	Page    int
	Limit   int
}

// JobList is a page of utility jobs.
type JobList struct {
	Jobs       []UtilityJob `json:"jobs"`
	Total      int          `json:"total,omitempty"`
	Page       int          `json:"page,omitempty"`
	TotalPages int          `json:"total_pages,omitempty"`
}

// ListJobs pages through the organization's utility jobs.
func (c *Client) ListJobs(ctx context.Context, opts ListJobsOptions) (*JobList, error) {
	const op = "utils.list_jobs"
	if err := c.check(op, &opts); err != nil {
		return nil, err
	}
	org, err := c.orgID(op, opts.OrgID)
	if err != nil {
		return nil, err
	}
	q := pageParams(opts.Page, opts.Limit, 20)
	q.Set("org_id", org)
	if opts.JobType != "" {
		q.Set("job_type", opts.JobType)
	}
	var result JobList
	if err := c.get(ctx, "/utils/list-jobs", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// AlterPrompt starts a prompt rewrite job.
func (c *Client) AlterPrompt(ctx context.Context, req *AlterPromptRequest) (*JobAck, error) {
	const op = "utils.alter_prompt"
	body := *req
	org, err := c.orgID(op, body.OrgID)
	if err != nil {
		return nil, err
	}
	body.OrgID = org
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	q := url.Values{
		"alter_type":  {defaultString(body.AlterType, "enhance")},
		"prompt_type": {defaultString(body.PromptType, "prompt")},
	}
	var result JobAck
	if err := c.post(ctx, "/utils/alter-prompt", q, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrganizationInfo starts a job that profiles an organization from its website.
func (c *Client) GetOrganizationInfo(ctx context.Context, req *OrganizationInfoRequest) (*JobAck, error) {
	const op = "utils.organization_info"
	body := *req
	org, err := c.orgID(op, body.OrgID)
	if err != nil {
		return nil, err
	}
	body.OrgID = org
	if err := c.check(op, &body); err != nil {
		return nil, err
	}
	if body.Temperature == nil {
		body.Temperature = Float(0.7)
	}
	q := url.Values{
		"deepthink":  {boolParam(body.Deepthink)},
		"web_search": {boolParam(body.WebSearch)},
		"overdrive":  {"false"},
		"eco":        {"false"},
	}
	var result JobAck
	if err := c.post(ctx, "/utils/organization-info", q, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StartWebScraping starts a scraping job.
func (c *Client) StartWebScraping(ctx context.Context, req *WebScrapingRequest) (*JobAck, error) {
	const op = "utils.web_scraping"
	body := *req
	if body.Timeout == 0 {
		body.Timeout = 60
	}
	if body.Depth == 0 {
		body.Depth = 1
	}
	return c.startUtilityJob(ctx, op, "/utils/web-scraping", &body)
}

// StartBrandExtraction starts a brand extraction job.
func (c *Client) StartBrandExtraction(ctx context.Context, req *BrandExtractionRequest) (*JobAck, error) {
	return c.startUtilityJob(ctx, "utils.brand_extraction", "/utils/brand-extraction", req)
}

func (c *Client) startUtilityJob(ctx context.Context, op, path string, body any) (*JobAck, error) {
	if err := c.check(op, body); err != nil {
		return nil, err
	}
	var result JobAck
	if err := c.post(ctx, path, nil, body, &result); err != nil {
		return nil, err
	}
	if result.JobID == "" {
		return nil, apierr.New(apierr.KindServer, op, "response carried no job_id")
	}
	return &result, nil
}

// GetJobResult fetches a utility job.
func (c *Client) GetJobResult(ctx context.Context, jobID string) (*UtilityJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, apierr.Validation("utils.get_result", "job_id is required")
	}
	var result UtilityJob
	if err := c.get(ctx, "/utils/get-result", url.Values{"job_id": {jobID}}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForJobResult polls a utility job until it is terminal.
func (c *Client) WaitForJobResult(ctx context.Context, jobID string, opts poller.Options) (*UtilityJob, error) {
	if strings.TrimSpace(jobID) == "" {
		return nil, apierr.Validation("utils.wait", "job_id is required")
	}
	if opts.Name == "" {
		opts.Name = "utility-job"
	}
	j, _, err := poller.Poll(ctx,
		func(ctx context.Context) (*UtilityJob, error) { return c.GetJobResult(ctx, jobID) },
		(*UtilityJob).Snapshot,
		opts,
	)
	return j, err
}

func defaultString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
