package client

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// ToolType names one of the AI creative tools.
type ToolType string

const (
	ToolCreativeBrief    ToolType = "creative_brief"
	ToolAudienceResearch ToolType = "audience_research"
	ToolVideoPlan        ToolType = "video_plan"
	ToolShotlist         ToolType = "shotlist"
	ToolAdConcept        ToolType = "ad_concept"
	ToolSceneTransitions ToolType = "scene_transitions"
	ToolSceneSplitter    ToolType = "scene_splitter"
)

// ToolStatuses classifies tool jobs.
var ToolStatuses = QueryGenStatuses

// Extensions accepted by the scene splitter.
var splitterExtensions = []string{"mp4", "mov", "avi", "mkv", "webm"}

// Tool is a stored tool run with its job state.
type Tool struct {
	ToolID    string     `json:"tool_id"`
	Name      string     `json:"name"`
	ToolType  ToolType   `json:"tool_type"`
	OrgID     string     `json:"org_id,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
	JobID     string     `json:"job_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	CreatedAt string     `json:"created_at,omitempty"`
	JobResult *JobResult `json:"job_result,omitempty"`
}

// Snapshot classifies the tool job.
func (t *Tool) Snapshot() poller.Snapshot {
	return snapshot(ToolStatuses, t.Status, t.JobResult)
}

// ToolTypeInfo describes an available tool.
type ToolTypeInfo struct {
	Type        ToolType `json:"type"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
}

// CreateToolRequest is the body of POST /tools/create. Which fields matter
// depends on the tool; unset flags take the per-tool defaults.
type CreateToolRequest struct {
	ToolType           ToolType         `json:"tool_type"`
	OrgID              string           `json:"org_id"`
	Name               string           `json:"name" validate:"required"`
	UserInput          string           `json:"user_input,omitempty"`
	CompanyDetails     string           `json:"company_details,omitempty"`
	BrandDetails       string           `json:"brand_details,omitempty"`
	BrandGuidelines    string           `json:"brand_guidelines,omitempty"`
	AutoCompanyDetails *bool            `json:"auto_company_details,omitempty"`
	CompanyDetailsID   string           `json:"company_details_id,omitempty"`
	AdditionalContext  string           `json:"additional_context,omitempty"`
	SceneDetails       string           `json:"scene_details,omitempty"`
	VisualStyle        string           `json:"visual_style,omitempty"`
	CampaignGoals      string           `json:"campaign_goals,omitempty"`
	TargetAudience     string           `json:"target_audience,omitempty"`
	SceneDescriptions  []string         `json:"scene_descriptions,omitempty"`
	ProjectStyle       string           `json:"project_style,omitempty"`
	Mood               string           `json:"mood,omitempty"`
	VideoPath          string           `json:"video_path,omitempty"`
	BucketName         string           `json:"bucket_name,omitempty"`
	Documents          []map[string]any `json:"documents,omitempty"`
	Temperature        *float64         `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Deepthink          *bool            `json:"deepthink,omitempty"`
	Overdrive          *bool            `json:"overdrive,omitempty"`
	WebSearch          *bool            `json:"web_search,omitempty"`
	Eco                *bool            `json:"eco,omitempty"`
}

// ToolAck is returned when a tool job starts.
type ToolAck struct {
	Tool    Tool   `json:"tool"`
	JobID   string `json:"job_id"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListToolsOptions filters GET /tools/list.
type ListToolsOptions struct {
	OrgID          string
	ToolType       ToolType
	IncludeResults bool
	Page           int
	Limit          int
}

// ToolList is a page of tools.
type ToolList struct {
	Tools      []Tool `json:"tools"`
	Total      int    `json:"total,omitempty"`
	Page       int    `json:"page,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
}

// UpdateToolRequest edits tool metadata. At least one of Name or Tags must be set.
type UpdateToolRequest struct {
	ToolID string   `json:"tool_id"`
	Name   *string  `json:"name,omitempty"`
	Tags   []string `json:"tags,omitempty"`
}

// RedoToolRequest restarts a tool job, optionally overriding its inputs.
type RedoToolRequest struct {
	ToolID             string         `json:"tool_id"`
	InputData          map[string]any `json:"input_data,omitempty"`
	AutoCompanyDetails *bool          `json:"auto_company_details,omitempty"`
	CompanyDetailsID   string         `json:"company_details_id,omitempty"`
	Deepthink          *bool          `json:"deepthink,omitempty"`
	Overdrive          *bool          `json:"overdrive,omitempty"`
	WebSearch          *bool          `json:"web_search,omitempty"`
	Eco                *bool          `json:"eco,omitempty"`
}

// GetToolTypes lists the available tools.
func (c *Client) GetToolTypes(ctx context.Context) ([]ToolTypeInfo, error) {
	var result struct {
		ToolTypes []ToolTypeInfo `json:"tool_types"`
	}
	if err := c.get(ctx, "/tools/types", nil, &result); err != nil {
		return nil, err
	}
	return result.ToolTypes, nil
}

// CreateCreativeBrief starts a creative brief.
func (c *Client) CreateCreativeBrief(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolCreativeBrief, req)
}

// CreateAudienceResearch starts an audience research job.
func (c *Client) CreateAudienceResearch(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolAudienceResearch, req)
}

// CreateVideoPlan starts a video plan.
func (c *Client) CreateVideoPlan(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolVideoPlan, req)
}

// CreateShotlist starts a shotlist.
func (c *Client) CreateShotlist(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolShotlist, req)
}

// CreateAdConcept starts an ad concept.
func (c *Client) CreateAdConcept(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolAdConcept, req)
}

// CreateSceneTransitions plans transitions between at least two scenes.
func (c *Client) CreateSceneTransitions(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolSceneTransitions, req)
}

// CreateSceneSplitter splits an uploaded video into scenes. Only the name,
// video path and bucket are sent.
func (c *Client) CreateSceneSplitter(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	return c.createTool(ctx, ToolSceneSplitter, req)
}

// CreateTool dispatches on req.ToolType.
func (c *Client) CreateTool(ctx context.Context, req *CreateToolRequest) (*ToolAck, error) {
	if req == nil {
		return nil, apierr.Validation("tools.create", "request is required")
	}
	return c.createTool(ctx, req.ToolType, req)
}

func (c *Client) createTool(ctx context.Context, tt ToolType, req *CreateToolRequest) (*ToolAck, error) {
	op := "tools.create." + string(tt)
	body, err := toolBody(op, tt, req)
	if err != nil {
		return nil, err
	}
	org, err := c.orgID(op, body.OrgID)
	if err != nil {
		return nil, err
	}
	body.OrgID = org
	if err := c.check(op, body); err != nil {
		return nil, err
	}
	var result ToolAck
	if err := c.post(ctx, "/tools/create", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// toolBody checks the tool-specific inputs and fills in the defaults each
// tool runs with.
func toolBody(op string, tt ToolType, req *CreateToolRequest) (*CreateToolRequest, error) {
	if req == nil {
		return nil, apierr.Validation(op, "request is required")
	}
	body := *req
	body.ToolType = tt

	switch tt {
	case ToolSceneSplitter:
		if strings.TrimSpace(body.VideoPath) == "" {
			return nil, apierr.Validation(op, "video_path is required")
		}
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(body.VideoPath)), ".")
		if !containsFold(splitterExtensions, ext) {
			return nil, apierr.Validation(op, "video_path must be one of mp4, mov, avi, mkv, webm")
		}
		if strings.TrimSpace(body.BucketName) == "" {
			return nil, apierr.Validation(op, "bucket_name is required")
		}
		return &CreateToolRequest{
			ToolType:   tt,
			OrgID:      body.OrgID,
			Name:       body.Name,
			VideoPath:  body.VideoPath,
			BucketName: body.BucketName,
		}, nil
	case ToolSceneTransitions:
		if len(body.SceneDescriptions) < 2 {
			return nil, apierr.Validation(op, "scene_descriptions needs at least 2 scenes")
		}
	case ToolCreativeBrief, ToolAudienceResearch, ToolVideoPlan, ToolShotlist, ToolAdConcept:
		if strings.TrimSpace(body.UserInput) == "" {
			return nil, apierr.Validation(op, "user_input is required")
		}
	default:
		return nil, apierr.Validation(op, "unknown tool_type %q", tt)
	}

	if body.Temperature == nil {
		body.Temperature = Float(0.7)
	}
	if tt != ToolShotlist && body.AutoCompanyDetails == nil {
		body.AutoCompanyDetails = Bool(true)
	}
	// The research-style tools run with deepthink and overdrive unless told otherwise.
	thorough := tt == ToolAudienceResearch || tt == ToolVideoPlan || tt == ToolAdConcept || tt == ToolSceneTransitions
	if body.Deepthink == nil {
		body.Deepthink = Bool(thorough)
	}
	if body.Overdrive == nil {
		body.Overdrive = Bool(thorough)
	}
	if body.Eco == nil {
		body.Eco = Bool(false)
	}
	if body.WebSearch == nil && (tt == ToolCreativeBrief || tt == ToolShotlist) {
		body.WebSearch = Bool(false)
	}
	return &body, nil
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// GetTool fetches a tool, with its job result when includeJob is set.
func (c *Client) GetTool(ctx context.Context, toolID string, includeJob bool) (*Tool, error) {
	if strings.TrimSpace(toolID) == "" {
		return nil, apierr.Validation("tools.get", "tool_id is required")
	}
	q := url.Values{"tool_id": {toolID}, "include_job": {boolParam(includeJob)}}
	var result Tool
	if err := c.get(ctx, "/tools/get", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListTools pages through the organization's tools.
func (c *Client) ListTools(ctx context.Context, opts ListToolsOptions) (*ToolList, error) {
	org, err := c.orgID("tools.list", opts.OrgID)
	if err != nil {
		return nil, err
	}
	q := pageParams(opts.Page, opts.Limit, 20)
	q.Set("org_id", org)
	q.Set("include_results", boolParam(opts.IncludeResults))
	if opts.ToolType != "" {
		q.Set("tool_type", string(opts.ToolType))
	}
	var result ToolList
	if err := c.get(ctx, "/tools/list", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateTool renames or retags a tool.
func (c *Client) UpdateTool(ctx context.Context, req *UpdateToolRequest) (*StatusMessage, error) {
	const op = "tools.update"
	if strings.TrimSpace(req.ToolID) == "" {
		return nil, apierr.Validation(op, "tool_id is required")
	}
	if req.Name == nil && req.Tags == nil {
		return nil, apierr.Validation(op, "name or tags must be provided")
	}
	var result StatusMessage
	if err := c.put(ctx, "/tools/update", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DeleteTool removes a tool.
func (c *Client) DeleteTool(ctx context.Context, toolID string) (*StatusMessage, error) {
	if strings.TrimSpace(toolID) == "" {
		return nil, apierr.Validation("tools.delete", "tool_id is required")
	}
	var result StatusMessage
	if err := c.del(ctx, "/tools/delete", url.Values{"tool_id": {toolID}}, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RedoTool restarts a tool job.
func (c *Client) RedoTool(ctx context.Context, req *RedoToolRequest) (*JobAck, error) {
	if strings.TrimSpace(req.ToolID) == "" {
		return nil, apierr.Validation("tools.redo", "tool_id is required")
	}
	var result JobAck
	if err := c.post(ctx, "/tools/redo", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForTool polls a tool until its job is terminal.
func (c *Client) WaitForTool(ctx context.Context, toolID string, opts poller.Options) (*Tool, error) {
	if strings.TrimSpace(toolID) == "" {
		return nil, apierr.Validation("tools.wait", "tool_id is required")
	}
	if opts.Name == "" {
		opts.Name = "tool"
	}
	t, _, err := poller.Poll(ctx,
		func(ctx context.Context) (*Tool, error) { return c.GetTool(ctx, toolID, true) },
		(*Tool).Snapshot,
		opts,
	)
	return t, err
}
