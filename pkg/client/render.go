package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/storylinez/storylinez-go/pkg/poller"
)

// ErrLinksUnavailable is returned by WaitForRender together with the completed
// render when its signed links could not be fetched. The render itself is done.
var ErrLinksUnavailable = errors.New("render completed but its links could not be fetched")

// Render is a final video render of a sequence.
type Render struct {
	RenderID            string     `json:"render_id"`
	ProjectID           string     `json:"project_id,omitempty"`
	JobID               string     `json:"job_id,omitempty"`
	Status              string     `json:"status,omitempty"`
	TargetWidth         int        `json:"target_width,omitempty"`
	TargetHeight        int        `json:"target_height,omitempty"`
	IsStale             bool       `json:"is_stale,omitempty"`
	DownloadURL         string     `json:"download_url,omitempty"`
	DownloadExpiresIn   int        `json:"download_expires_in,omitempty"`
	StreamableURL       string     `json:"streamable_url,omitempty"`
	StreamableExpiresIn int        `json:"streamable_expires_in,omitempty"`
	ThumbnailURL        string     `json:"thumbnail_streamable_url,omitempty"`
	SubtitleDownloadURL string     `json:"srt_download_url,omitempty"`
	JobResult           *JobResult `json:"job_result,omitempty"`
	CreatedAt           string     `json:"created_at,omitempty"`
	UpdatedAt           string     `json:"updated_at,omitempty"`
}

// Snapshot classifies the render job.
func (r *Render) Snapshot() poller.Snapshot {
	return snapshot(RenderStatuses, r.Status, r.JobResult)
}

// RenderSettings are the output options shared by create, redo and update.
type RenderSettings struct {
	TargetWidth      *int     `json:"target_width,omitempty" validate:"omitempty,gte=1"`
	TargetHeight     *int     `json:"target_height,omitempty" validate:"omitempty,gte=1"`
	BGMusicVolume    *float64 `json:"bg_music_volume,omitempty" validate:"omitempty,gte=0,lte=1"`
	VideoAudioVolume *float64 `json:"video_audio_volume,omitempty" validate:"omitempty,gte=0,lte=1"`
	VoiceoverVolume  *float64 `json:"voiceover_volume,omitempty" validate:"omitempty,gte=0,lte=1"`

	SubtitleEnabled   *bool    `json:"subtitle_enabled,omitempty"`
	SubtitleFontSize  *int     `json:"subtitle_font_size,omitempty" validate:"omitempty,gte=1"`
	SubtitleColor     string   `json:"subtitle_color,omitempty"`
	SubtitleBGColor   string   `json:"subtitle_bg_color,omitempty"`
	SubtitleBGOpacity *float64 `json:"subtitle_bg_opacity,omitempty" validate:"omitempty,gte=0,lte=1"`

	OutroDuration         *float64 `json:"outro_duration,omitempty" validate:"omitempty,gte=0"`
	CompanyName           string   `json:"company_name,omitempty"`
	CompanySubtext        string   `json:"company_subtext,omitempty"`
	CallToAction          string   `json:"call_to_action,omitempty"`
	CallToActionSubtext   string   `json:"call_to_action_subtext,omitempty"`
	EnableCTA             *bool    `json:"enable_cta,omitempty"`
	StandardizeResolution *bool    `json:"standardize_resolution_enabled,omitempty"`
	ColorBalanceFix       *bool    `json:"color_balance_fix,omitempty"`
	ColorExposureFix      *bool    `json:"color_exposure_fix,omitempty"`
	ColorContrastFix      *bool    `json:"color_contrast_fix,omitempty"`
	FPS                   *int     `json:"fps,omitempty" validate:"omitempty,gte=1,lte=120"`
}

// CreateRenderRequest is the body of POST /render/create.
type CreateRenderRequest struct {
	ProjectID string `json:"project_id" validate:"required"`
	RenderSettings
}

// UpdateRenderSettingsRequest is the body of PUT /render/update.
type UpdateRenderSettingsRequest struct {
	RenderID  string `json:"render_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	RenderSettings
}

// RenderAck is returned by create and redo.
type RenderAck struct {
	JobID   string `json:"job_id"`
	Render  Render `json:"render"`
	Message string `json:"message,omitempty"`
}

func (a *RenderAck) ref(projectID string) Ref {
	if a != nil && a.Render.RenderID != "" {
		return Ref{ID: a.Render.RenderID}
	}
	return Ref{ProjectID: projectID}
}

// CreateRender starts a render. The project must have a completed sequence.
func (c *Client) CreateRender(ctx context.Context, req *CreateRenderRequest) (*RenderAck, error) {
	const op = "render.create"
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result RenderAck
	if err := c.post(ctx, "/render/create", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRender fetches a render. With links set the platform signs download and stream URLs.
func (c *Client) GetRender(ctx context.Context, ref Ref, links bool) (*Render, error) {
	q, err := ref.query("render.get", "render_id")
	if err != nil {
		return nil, err
	}
	q.Set("include_results", "true")
	q.Set("include_sequence", "false")
	q.Set("generate_download_link", boolParam(links))
	q.Set("generate_streamable_link", boolParam(links))
	var result Render
	if err := c.get(ctx, "/render/get", q, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RedoRender re-renders with optional new settings.
func (c *Client) RedoRender(ctx context.Context, ref Ref, settings *RenderSettings) (*RenderAck, error) {
	const op = "render.redo"
	if err := ref.check(op, "render_id"); err != nil {
		return nil, err
	}
	req := UpdateRenderSettingsRequest{RenderID: ref.ID, ProjectID: ref.ProjectID}
	if settings != nil {
		req.RenderSettings = *settings
	}
	if err := c.check(op, &req); err != nil {
		return nil, err
	}
	var result RenderAck
	if err := c.post(ctx, "/render/redo", nil, &req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateRenderSettings stores new settings without starting a render.
func (c *Client) UpdateRenderSettings(ctx context.Context, req *UpdateRenderSettingsRequest) (*StatusMessage, error) {
	const op = "render.update"
	if err := requireOne(op, [2]string{"render_id", "project_id"}, req.RenderID, req.ProjectID); err != nil {
		return nil, err
	}
	if err := c.check(op, req); err != nil {
		return nil, err
	}
	var result StatusMessage
	if err := c.put(ctx, "/render/update", nil, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// WaitForRender polls until the render job is terminal. The completed render
// carries signed download and stream URLs.
func (c *Client) WaitForRender(ctx context.Context, ref Ref, opts poller.Options) (*Render, error) {
	if err := ref.check("render.wait", "render_id"); err != nil {
		return nil, err
	}
	if opts.Name == "" {
		opts.Name = "render"
	}
	r, snap, err := poller.Poll(ctx,
		func(ctx context.Context) (*Render, error) { return c.GetRender(ctx, ref, false) },
		(*Render).Snapshot,
		opts,
	)
	if err != nil || snap.Phase != poller.PhaseCompleted {
		return r, err
	}
	// Links are only signed on request; fetch them once the job is done.
	withLinks, err := c.GetRender(ctx, ref, true)
	if err != nil {
		return r, fmt.Errorf("%w: %w", ErrLinksUnavailable, err)
	}
	return withLinks, nil
}
