package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/poller"
)

// clientActions binds every menu action to the platform client.
func clientActions(c *client.Client, poll poller.Options) map[menuAction]actionFunc {
	return map[menuAction]actionFunc{
		actionProject: func(ctx context.Context, _ string, v map[string]string) (actionResult, error) {
			if id := v["project_id"]; id != "" {
				resp, err := c.GetProject(ctx, id)
				if err != nil {
					return actionResult{}, err
				}
				return actionResult{ProjectID: id, ProjectName: resp.Project.Name, Message: "selected project " + id}, nil
			}
			resp, err := c.CreateProject(ctx, &client.CreateProjectRequest{
				Name:           v["name"],
				Orientation:    client.Orientation(v["orientation"]),
				Purpose:        v["purpose"],
				TargetAudience: v["target_audience"],
			})
			if err != nil {
				return actionResult{}, err
			}
			p := resp.Project
			return actionResult{ProjectID: p.ProjectID, ProjectName: p.Name, Message: "created project " + p.ProjectID}, nil
		},

		actionFiles: func(ctx context.Context, projectID string, v map[string]string) (actionResult, error) {
			var err error
			if v["operation"] == "remove" {
				_, err = c.RemoveAssociatedFile(ctx, projectID, v["file_id"])
			} else {
				_, err = c.AddAssociatedFile(ctx, projectID, v["file_id"])
			}
			if err != nil {
				return actionResult{}, err
			}
			return actionResult{Message: fmt.Sprintf("file %s: %s done", v["file_id"], v["operation"])}, nil
		},

		actionPrompt: func(ctx context.Context, projectID string, v map[string]string) (actionResult, error) {
			req := &client.CreateTextPromptRequest{
				ProjectID:       projectID,
				MainPrompt:      v["main_prompt"],
				DocumentContext: v["document_context"],
			}
			var err error
			if req.TotalLength, err = optionalInt("length", v["total_length"]); err != nil {
				return actionResult{}, err
			}
			if req.Temperature, err = optionalFloat("temperature", v["temperature"]); err != nil {
				return actionResult{}, err
			}
			resp, err := c.CreateTextPrompt(ctx, req)
			if err != nil {
				return actionResult{}, err
			}
			return actionResult{Message: "created prompt " + resp.Prompt.PromptID}, nil
		},

		actionStoryboard: func(ctx context.Context, projectID string, v map[string]string) (actionResult, error) {
			temp, err := optionalFloat("temperature", v["temperature"])
			if err != nil {
				return actionResult{}, err
			}
			req := &client.CreateStoryboardRequest{
				ProjectID:     projectID,
				Temperature:   temp,
				SkipVoiceover: v["voiceover"] == "no",
			}
			ack, sb, err := c.CreateStoryboardAndWait(ctx, req, poll)
			if err != nil {
				return actionResult{}, err
			}
			return actionResult{Message: fmt.Sprintf("storyboard %s ready with %d scenes", ack.Storyboard.StoryboardID, len(sb.Scenes))}, nil
		},

		actionVoiceover: func(ctx context.Context, projectID string, v map[string]string) (actionResult, error) {
			ack, err := c.CreateVoiceover(ctx, projectID, v["voiceover_code"])
			if err != nil {
				return actionResult{}, err
			}
			ref := client.Ref{ID: ack.Voiceover.VoiceoverID}
			if ref.ID == "" {
				ref.ProjectID = projectID
			}
			if _, err := c.WaitForVoiceover(ctx, ref, poll); err != nil {
				return actionResult{}, err
			}
			return actionResult{Message: "voiceover ready"}, nil
		},

		actionSequence: func(ctx context.Context, projectID string, v map[string]string) (actionResult, error) {
			ack, err := c.CreateSequence(ctx, &client.CreateSequenceRequest{
				ProjectID:     projectID,
				GradeType:     client.GradeType(v["grade_type"]),
				ApplyGrade:    true,
				ApplyTemplate: v["apply_template"] == "yes",
			})
			if err != nil {
				return actionResult{}, err
			}
			ref := client.Ref{ID: ack.Sequence.SequenceID}
			if ref.ID == "" {
				ref.ProjectID = projectID
			}
			if _, err := c.WaitForSequence(ctx, ref, poll); err != nil {
				return actionResult{}, err
			}
			return actionResult{Message: "sequence ready"}, nil
		},

		actionRender: func(ctx context.Context, projectID string, v map[string]string) (actionResult, error) {
			req := &client.CreateRenderRequest{ProjectID: projectID}
			if v["subtitles"] == "yes" {
				req.SubtitleEnabled = client.Bool(true)
			}
			ack, err := c.CreateRender(ctx, req)
			if err != nil {
				return actionResult{}, err
			}
			ref := client.Ref{ID: ack.Render.RenderID}
			if ref.ID == "" {
				ref.ProjectID = projectID
			}
			out, err := c.WaitForRender(ctx, ref, poll)
			if err != nil {
				return actionResult{}, err
			}
			return actionResult{Message: "render ready: " + out.DownloadURL}, nil
		},
	}
}

func optionalInt(name, s string) (*int, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%s must be a whole number", name)
	}
	return &n, nil
}

func optionalFloat(name, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("%s must be a number", name)
	}
	return &f, nil
}
