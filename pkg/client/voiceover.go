package client

import (
	"context"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// Voiceover is a generated narration track.
type Voiceover struct {
	VoiceoverID   string     `json:"voiceover_id"`
	ProjectID     string     `json:"project_id,omitempty"`
	VoiceoverCode string     `json:"voiceover_code,omitempty"`
	JobID         string     `json:"job_id,omitempty"`
	Status        string     `json:"status,omitempty"`
	AudioURL      string     `json:"audio_url,omitempty"`
	JobResult     *JobResult `json:"job_result,omitempty"`
}

// Snapshot classifies the voiceover job.
func (v *Voiceover) Snapshot() poller.Snapshot {
	return snapshot(VoiceoverStatuses, v.Status, v.JobResult)
}

// VoiceoverAck is returned by create and redo.
type VoiceoverAck struct {
	JobID     string    `json:"job_id"`
	Voiceover Voiceover `json:"voiceover"`
	Message   string    `json:"message,omitempty"`
}

func (a *VoiceoverAck) ref(projectID string) Ref {
	if a != nil && a.Voiceover.VoiceoverID != "" {
		return Ref{ID: a.Voiceover.VoiceoverID}
	}
	return Ref{ProjectID: projectID}
}

// CreateVoiceover starts narration generation for a project's storyboard.
// An empty voiceoverCode lets the platform pick its default voice.
func (c *Client) CreateVoiceover(ctx context.Context, projectID, voiceoverCode string) (*VoiceoverAck, error) {
	if projectID == "" {
		return nil, apierr.Validation("voiceover.create", "project_id is required")
	}
	body := map[string]string{"project_id": projectID}
	if voiceoverCode != "" {
		body["voiceover_code"] = voiceoverCode
	}
	var result VoiceoverAck
	if err := c.post(ctx, "/voiceover/create", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetVoiceover fetches a voiceover including its job result and, optionally, a temporary audio link.
func (c *Client) GetVoiceover(ctx context.Context, ref Ref, audioLink bool) (*Voiceover, error) {
	q, err := ref.query("voiceover.get", "voiceover_id")
	if err != nil {
		return nil, err
	}
	q.Set("include_results", "true")
	q.Set("include_storyboard", "false")
	q.Set("generate_audio_link", boolParam(audioLink))
	var result Voiceover
	if err := c.get(ctx, "/voiceover/get", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RedoVoiceover regenerates a voiceover, optionally with another voice.
func (c *Client) RedoVoiceover(ctx context.Context, ref Ref, voiceoverCode string) (*VoiceoverAck, error) {
	body, err := ref.body("voiceover.redo", "voiceover_id")
	if err != nil {
		return nil, err
	}
	if voiceoverCode != "" {
		body["voiceover_code"] = voiceoverCode
	}
	var result VoiceoverAck
	if err := c.post(ctx, "/voiceover/redo", nil, body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForVoiceover polls until the voiceover job is terminal.
func (c *Client) WaitForVoiceover(ctx context.Context, ref Ref, opts poller.Options) (*Voiceover, error) {
	if err := ref.check("voiceover.wait", "voiceover_id"); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "voiceover"
	}
	v, _, err := poller.Poll(ctx,
		func(ctx context.Context) (*Voiceover, error) { return c.GetVoiceover(ctx, ref, false) },
		(*Voiceover).Snapshot,
		opts,
	)
	return v, err
}
