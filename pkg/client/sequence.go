package client

import (
	"context"

	"github.com/storylinez/storylinez-go/pkg/poller"
)

// Sequence is the edit decision list assembled from a storyboard.
type Sequence struct {
	SequenceID    string         `json:"sequence_id"`
	ProjectID     string         `json:"project_id,omitempty"`
	JobID         string         `json:"job_id,omitempty"`
	Status        string         `json:"status,omitempty"`
	ApplyTemplate bool           `json:"apply_template"`
	ApplyGrade    bool           `json:"apply_grade"`
	GradeType     GradeType      `json:"grade_type,omitempty"`
	Orientation   Orientation    `json:"orientation,omitempty"`
	JobResult     *JobResult     `json:"job_result,omitempty"`
	Settings      map[string]any `json:"settings,omitempty"`
}

// Snapshot classifies the sequence job.
func (s *Sequence) Snapshot() poller.Snapshot {
	return snapshot(SequenceStatuses, s.Status, s.JobResult)
}

// CreateSequenceRequest is the body of POST /sequence/create.
type CreateSequenceRequest struct {
	ProjectID     string      `json:"project_id" validate:"required"`
	ApplyTemplate bool        `json:"apply_template"`
	ApplyGrade    bool        `json:"apply_grade"`
	GradeType     GradeType   `json:"grade_type,omitempty" validate:"omitempty,oneof=single multiple"`
	Orientation   Orientation `json:"orientation,omitempty" validate:"omitempty,oneof=landscape portrait"`
	Deepthink     bool        `json:"deepthink"`
	Overdrive     bool        `json:"overdrive"`
	WebSearch     bool        `json:"web_search"`
	Eco           bool        `json:"eco"`
	Temperature   *float64    `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Iterations    *int        `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// UpdateSequenceSettingsRequest is the body of PUT /sequence/update. Nil fields are left unchanged.
type UpdateSequenceSettingsRequest struct {
	SequenceID       string         `json:"sequence_id,omitempty"`
	ProjectID        string         `json:"project_id,omitempty"`
	ApplyTemplate    *bool          `json:"apply_template,omitempty"`
	ApplyGrade       *bool          `json:"apply_grade,omitempty"`
	GradeType        GradeType      `json:"grade_type,omitempty" validate:"omitempty,oneof=single multiple"`
	Orientation      Orientation    `json:"orientation,omitempty" validate:"omitempty,oneof=landscape portrait"`
	Temperature      *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Iterations       *int           `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
	RegeneratePrompt string         `json:"regenerate_prompt,omitempty"`
	EditedSequence   map[string]any `json:"edited_sequence,omitempty"`
}

// SequenceAck is returned by create and redo.
type SequenceAck struct {
	JobID    string   `json:"job_id"`
	Sequence Sequence `json:"sequence"`
	Message  string   `json:"message,omitempty"`
}

func (a *SequenceAck) ref(projectID string) Ref {
	if a != nil && a.Sequence.SequenceID != "" {
		return Ref{ID: a.Sequence.SequenceID}
	}
	return Ref{ProjectID: projectID}
}

// CreateSequence starts sequence assembly. The project must have a completed storyboard.
func (c *Client) CreateSequence(ctx context.Context, req *CreateSequenceRequest) (*SequenceAck, error) {
	const op = "sequence.create"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	body := *req
	if body.GradeType == "" {
		body.GradeType = GradeSingle
	}
	var result SequenceAck
	if err := c.post(ctx, "/sequence/create", nil, &body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSequence fetches a sequence including its job result.
func (c *Client) GetSequence(ctx context.Context, ref Ref) (*Sequence, error) {
	q, err := ref.query("sequence.get", "sequence_id")
	if err != nil {
		return nil, err
	}
	q.Set("include_results", "true")
	q.Set("include_storyboard", "false")
	var result Sequence
	if err := c.get(ctx, "/sequence/get", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateSequenceSettings changes sequence settings, optionally regenerating it.
func (c *Client) UpdateSequenceSettings(ctx context.Context, req *UpdateSequenceSettingsRequest) (*SequenceAck, error) {
	const op = "sequence.update"
	if err := requireOne(op, [2]string{"sequence_id", "project_id"}, req.SequenceID, req.ProjectID); err != nil {
		return nil, err
	}
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result SequenceAck
	if err := c.put(ctx, "/sequence/update", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RedoSequence starts a fresh sequence job, optionally steered by a prompt.
func (c *Client) RedoSequence(ctx context.Context, ref Ref, regeneratePrompt string) (*SequenceAck, error) {
	body, err := ref.body("sequence.redo", "sequence_id")
	if err != nil {
		return nil, err
	}
	if regeneratePrompt != "" {
		body["regenerate_prompt"] = regeneratePrompt
	}
	var result SequenceAck
	if err := c.post(ctx, "/sequence/redo", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForSequence polls until the sequence job is terminal.
func (c *Client) WaitForSequence(ctx context.Context, ref Ref, opts poller.Options) (*Sequence, error) {
	if err := ref.check("sequence.wait", "sequence_id"); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "sequence"
	}
	s, _, err := poller.Poll(ctx,
		func(ctx context.Context) (*Sequence, error) { return c.GetSequence(ctx, ref) },
		(*Sequence).Snapshot,
		opts,
	)
	return s, err
}
