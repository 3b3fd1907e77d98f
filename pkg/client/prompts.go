package client

import (
	"context"
	"net/url"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// Prompt is the creative brief attached to a project.
type Prompt struct {
	PromptID        string   `json:"prompt_id"`
	ProjectID       string   `json:"project_id,omitempty"`
	PromptType      string   `json:"prompt_type,omitempty"`
	MainPrompt      string   `json:"main_prompt,omitempty"`
	DocumentContext string   `json:"document_context,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	TotalLength     *int     `json:"total_length,omitempty"`
	Iterations      *int     `json:"iterations,omitempty"`
}

// CreateTextPromptRequest is the body of POST /prompts/create.
type CreateTextPromptRequest struct {
	ProjectID       string        `json:"project_id" validate:"required"`
	MainPrompt      string        `json:"main_prompt" validate:"required"`
	DocumentContext string        `json:"document_context"`
	Temperature     *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	TotalLength     *int          `json:"total_length,omitempty" validate:"omitempty,gte=10,lte=60"`
	Iterations      *int          `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
	Deepthink       bool          `json:"deepthink"`
	Overdrive       bool          `json:"overdrive"`
	WebSearch       bool          `json:"web_search"`
	Eco             bool          `json:"eco"`
	SkipVoiceover   bool          `json:"skip_voiceover"`
	VoiceoverMode   VoiceoverMode `json:"voiceover_mode,omitempty" validate:"omitempty,oneof=generated uploaded"`
}

// PromptResponse wraps a single prompt.
type PromptResponse struct {
	Prompt  Prompt `json:"prompt"`
	Message string `json:"message,omitempty"`
}

// UpdatePromptRequest is the body of PUT /prompts/update. Nil fields are left unchanged.
type UpdatePromptRequest struct {
	PromptID        string   `json:"prompt_id,omitempty"`
	ProjectID       string   `json:"project_id,omitempty"`
	MainPrompt      *string  `json:"main_prompt,omitempty"`
	DocumentContext *string  `json:"document_context,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	TotalLength     *int     `json:"total_length,omitempty" validate:"omitempty,gte=10,lte=60"`
	Iterations      *int     `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// GenerateSearchRequest starts remote search query generation for a prompt.
type GenerateSearchRequest struct {
	PromptID       string   `json:"prompt_id,omitempty"`
	ProjectID      string   `json:"project_id,omitempty"`
	NumVideos      int      `json:"num_videos" validate:"gte=0,lte=50"`
	NumAudio       int      `json:"num_audio" validate:"gte=0,lte=50"`
	NumImages      int      `json:"num_images" validate:"gte=0,lte=50"`
	CompanyDetails string   `json:"company_details,omitempty"`
	Documents      []string `json:"documents,omitempty"`
	Temperature    *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
}

// SearchQueries are the queries generated per media type.
type SearchQueries struct {
	Videos []string `json:"videos,omitempty"`
	Audio  []string `json:"audio,omitempty"`
	Images []string `json:"images,omitempty"`
}

// ForMediaType returns the queries generated for a stock collection.
func (q SearchQueries) ForMediaType(mt MediaType) []string {
	switch mt {
	case MediaVideos:
		return q.Videos
	case MediaAudios:
		return q.Audio
	case MediaImages:
		return q.Images
	}
	return nil
}

// SearchQueryResults is the state of a query generation job.
type SearchQueryResults struct {
	JobID  string `json:"job_id,omitempty"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Result struct {
		Results SearchQueries `json:"results"`
	} `json:"result"`
}

// Snapshot classifies the query generation job.
func (r *SearchQueryResults) Snapshot() poller.Snapshot {
	return poller.Snapshot{Phase: QueryGenStatuses.Phase(r.Status), Status: r.Status, Message: r.Error}
}

// Queries returns the generated queries once the job is complete.
func (r *SearchQueryResults) Queries() SearchQueries {
	return r.Result.Results
}

// CreateTextPrompt attaches a text prompt to a project.
func (c *Client) CreateTextPrompt(ctx context.Context, req *CreateTextPromptRequest) (*PromptResponse, error) {
	const op = "prompts.create"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result PromptResponse
	if err := c.post(ctx, "/prompts/create", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPrompt fetches a prompt by prompt id or project id.
func (c *Client) GetPrompt(ctx context.Context, promptID, projectID string) (*PromptResponse, error) {
	const op = "prompts.get"
	if err := requireOne(op, [2]string{"prompt_id", "project_id"}, promptID, projectID); err != nil {
		return nil, err
	}
	q := url.Values{}
	if promptID != "" {
		q.Set("prompt_id", promptID)
	}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	var result PromptResponse
	if err := c.get(ctx, "/prompts/get", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdatePrompt changes prompt fields.
func (c *Client) UpdatePrompt(ctx context.Context, req *UpdatePromptRequest) (*PromptResponse, error) {
	const op = "prompts.update"
	if err := requireOne(op, [2]string{"prompt_id", "project_id"}, req.PromptID, req.ProjectID); err != nil {
		return nil, err
	}
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result PromptResponse
	if err := c.put(ctx, "/prompts/update", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GenerateSearchQueries starts a remote job deriving search queries from the prompt.
func (c *Client) GenerateSearchQueries(ctx context.Context, req *GenerateSearchRequest) (*JobAck, error) {
	const op = "prompts.query.generate"
	if err := requireOne(op, [2]string{"prompt_id", "project_id"}, req.PromptID, req.ProjectID); err != nil {
		return nil, err
	}
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result JobAck
	if err := c.post(ctx, "/prompts/query/generate", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSearchQueryResults fetches the state of a query generation job.
func (c *Client) GetSearchQueryResults(ctx context.Context, promptID, projectID string) (*SearchQueryResults, error) {
	const op = "prompts.query.results"
	if err := requireOne(op, [2]string{"prompt_id", "project_id"}, promptID, projectID); err != nil {
		return nil, err
	}
	q := url.Values{}
	if promptID != "" {
		q.Set("prompt_id", promptID)
	}
	if projectID != "" {
		q.Set("project_id", projectID)
	}
	var result SearchQueryResults
	if err := c.get(ctx, "/prompts/query/results", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForSearchQueries polls query generation for a project until it finishes.
func (c *Client) WaitForSearchQueries(ctx context.Context, projectID string, opts poller.Options) (*SearchQueryResults, error) {
	if projectID == "" {
		return nil, apierr.Validation("prompts.query.wait", "project_id is required")
	}
	if opts.Name == "" {
		opts.Name = "search-queries"
	}
	res, _, err := poller.Poll(ctx,
		func(ctx context.Context) (*SearchQueryResults, error) { return c.GetSearchQueryResults(ctx, "", projectID) },
		(*SearchQueryResults).Snapshot,
		opts,
	)
	return res, err
}
