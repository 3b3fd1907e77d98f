package client

import (
	"context"
	"net/url"

	"github.com/storylinez/storylinez-go/pkg/poller"
)

// Scene is one entry of a storyboard.
type Scene struct {
	SceneID           string  `json:"scene_id,omitempty"`
	VisualDescription string  `json:"visual_description,omitempty"`
	VoiceoverText     string  `json:"voiceover_text,omitempty"`
	SceneType         string  `json:"scene_type,omitempty"`
	Duration          float64 `json:"duration,omitempty"`
	StartTime         float64 `json:"start_time,omitempty"`
}

// Storyboard is a remote storyboard record together with its job state.
type Storyboard struct {
	StoryboardID string     `json:"storyboard_id"`
	ProjectID    string     `json:"project_id,omitempty"`
	JobID        string     `json:"job_id,omitempty"`
	Status       string     `json:"status,omitempty"`
	JobResult    *JobResult `json:"job_result,omitempty"`
	Scenes       []Scene    `json:"scenes,omitempty"`
	Videos       []any      `json:"videos,omitempty"`
	BGMusic      []any      `json:"background_music,omitempty"`
}

// Snapshot classifies the storyboard job.
func (s *Storyboard) Snapshot() poller.Snapshot {
	return snapshot(StoryboardStatuses, s.Status, s.JobResult)
}

// CreateStoryboardRequest is the body of POST /storyboard/create.
type CreateStoryboardRequest struct {
	ProjectID     string        `json:"project_id" validate:"required"`
	Deepthink     bool          `json:"deepthink"`
	Overdrive     bool          `json:"overdrive"`
	WebSearch     bool          `json:"web_search"`
	Eco           bool          `json:"eco"`
	Temperature   *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Iterations    *int          `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
	FullLength    *int          `json:"full_length,omitempty" validate:"omitempty,gte=1"`
	VoiceoverMode VoiceoverMode `json:"voiceover_mode,omitempty" validate:"omitempty,oneof=generated uploaded"`
	SkipVoiceover bool          `json:"skip_voiceover"`
}

// StoryboardAck is returned by create and redo.
type StoryboardAck struct {
	JobID      string     `json:"job_id"`
	Storyboard Storyboard `json:"storyboard"`
	Message    string     `json:"message,omitempty"`
}

// UpdateStoryboardValuesRequest edits a completed storyboard, optionally regenerating it.
type UpdateStoryboardValuesRequest struct {
	StoryboardID       string         `json:"storyboard_id,omitempty"`
	ProjectID          string         `json:"project_id,omitempty"`
	EditedStoryboard   map[string]any `json:"edited_storyboard,omitempty"`
	RegenerationPrompt string         `json:"regeneration_prompt,omitempty"`
	Temperature        *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Iterations         *int           `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// CreateStoryboard starts a storyboard job for a project.
func (c *Client) CreateStoryboard(ctx context.Context, req *CreateStoryboardRequest) (*StoryboardAck, error) {
	const op = "storyboard.create"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	q := url.Values{"include_details": {"false"}}
	var result StoryboardAck
	if err := c.post(ctx, "/storyboard/create", q, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetStoryboard fetches a storyboard including its job result.
func (c *Client) GetStoryboard(ctx context.Context, ref Ref, includeDetails bool) (*Storyboard, error) {
	q, err := ref.query("storyboard.get", "storyboard_id")
	if err != nil {
		return nil, err
	}
	q.Set("include_results", "true")
	q.Set("include_details", boolParam(includeDetails))
	var result Storyboard
	if err := c.get(ctx, "/storyboard/get", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateStoryboardValues edits storyboard content.
func (c *Client) UpdateStoryboardValues(ctx context.Context, req *UpdateStoryboardValuesRequest) (*StoryboardAck, error) {
	const op = "storyboard.update"
	if err := requireOne(op, [2]string{"storyboard_id", "project_id"}, req.StoryboardID, req.ProjectID); err != nil {
		return nil, err
	}
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result StoryboardAck
	if err := c.put(ctx, "/storyboard/update", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RedoStoryboard starts a fresh storyboard job for the same project.
func (c *Client) RedoStoryboard(ctx context.Context, ref Ref) (*StoryboardAck, error) {
	body, err := ref.body("storyboard.redo", "storyboard_id")
	if err != nil {
		return nil, err
	}
	var result StoryboardAck
	if err := c.post(ctx, "/storyboard/redo", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForStoryboard polls until the storyboard job is terminal.
func (c *Client) WaitForStoryboard(ctx context.Context, ref Ref, opts poller.Options) (*Storyboard, error) {
	if err := ref.check("storyboard.wait", "storyboard_id"); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "storyboard"
	}
	sb, _, err := poller.Poll(ctx,
		func(ctx context.Context) (*Storyboard, error) { return c.GetStoryboard(ctx, ref, false) },
		(*Storyboard).Snapshot,
		opts,
	)
	return sb, err
}

// CreateStoryboardAndWait is create followed by WaitForStoryboard.
func (c *Client) CreateStoryboardAndWait(ctx context.Context, req *CreateStoryboardRequest, opts poller.Options) (*StoryboardAck, *Storyboard, error) {
	if opts.Name == "" {
		opts.Name = "storyboard"
	}
	ack, sb, _, err := poller.CreateThenPoll(ctx,
		func(ctx context.Context) (*StoryboardAck, error) { return c.CreateStoryboard(ctx, req) },
		func(ctx context.Context, ack *StoryboardAck) (*Storyboard, error) {
			return c.GetStoryboard(ctx, ack.ref(req.ProjectID), false)
		},
		(*Storyboard).Snapshot,
		opts,
	)
	return ack, sb, err
}

func (a *StoryboardAck) ref(projectID string) Ref {
	if a != nil && a.Storyboard.StoryboardID != "" {
		return Ref{ID: a.Storyboard.StoryboardID}
	}
	return Ref{ProjectID: projectID}
}
