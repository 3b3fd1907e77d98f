package pipeline

import (
	"github.com/storylinez/storylinez-go/pkg/client"
	"github.com/storylinez/storylinez-go/pkg/selector"
)

// AIParams are the generation knobs shared by prompt, storyboard and sequence.
type AIParams struct {
	Temperature *float64 `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=1"`
	Iterations  *int     `json:"iterations,omitempty" validate:"omitempty,gte=1,lte=10"`
	Deepthink   bool     `json:"deepthink,omitempty"`
	Overdrive   bool     `json:"overdrive,omitempty"`
	WebSearch   bool     `json:"web_search,omitempty"`
	Eco         bool     `json:"eco,omitempty"`
}

// ProjectSpec either names an existing project or describes a new one.
type ProjectSpec struct {
	ID               string             `json:"id,omitempty"`
	Name             string             `json:"name,omitempty" validate:"required_without=ID"`
	OrgID            string             `json:"org_id,omitempty"`
	Orientation      client.Orientation `json:"orientation,omitempty" validate:"omitempty,oneof=landscape portrait"`
	Purpose          string             `json:"purpose,omitempty"`
	TargetAudience   string             `json:"target_audience,omitempty"`
	FolderID         string             `json:"folder_id,omitempty"`
	BrandID          string             `json:"brand_id,omitempty"`
	CompanyDetailsID string             `json:"company_details_id,omitempty"`
}

// StockRef names a stock item to attach.
type StockRef struct {
	StockID   string           `json:"stock_id" validate:"required"`
	MediaType client.MediaType `json:"media_type" validate:"required,oneof=videos audios images"`
}

// PromptSpec is the creative brief.
type PromptSpec struct {
	MainPrompt      string               `json:"main_prompt" validate:"required"`
	DocumentContext string               `json:"document_context,omitempty"`
	TotalLength     *int                 `json:"total_length,omitempty" validate:"omitempty,gte=10,lte=60"`
	VoiceoverMode   client.VoiceoverMode `json:"voiceover_mode,omitempty" validate:"omitempty,oneof=generated uploaded"`
	AIParams
}

// ContentSpec enables automatic stock selection before the storyboard.
type ContentSpec struct {
	MediaTypes      []client.MediaType `json:"media_types,omitempty" validate:"omitempty,dive,oneof=videos audios images"`
	QueriesPerType  int                `json:"queries_per_type,omitempty" validate:"gte=0,lte=50"`
	ResultsPerQuery int                `json:"results_per_query,omitempty" validate:"gte=0"`
	Threshold       float64            `json:"threshold" validate:"gte=0,lte=1"`
	TopN            int                `json:"top_n" validate:"gte=0"`
}

// StoryboardSpec tunes storyboard generation.
type StoryboardSpec struct {
	FullLength *int `json:"full_length,omitempty" validate:"omitempty,gte=1"`
	AIParams
}

// VoiceoverSpec enables narration. An empty Code uses the platform default voice.
type VoiceoverSpec struct {
	Code string `json:"voiceover_code,omitempty"`
}

// SequenceSpec tunes sequence assembly.
type SequenceSpec struct {
	ApplyTemplate bool             `json:"apply_template,omitempty"`
	ApplyGrade    bool             `json:"apply_grade,omitempty"`
	GradeType     client.GradeType `json:"grade_type,omitempty" validate:"omitempty,oneof=single multiple"`
	AIParams
}

// Spec describes a whole run, from project to render.
type Spec struct {
	Project    ProjectSpec           `json:"project"`
	Files      []string              `json:"files,omitempty" validate:"dive,required"`
	Stock      []StockRef            `json:"stock,omitempty" validate:"dive"`
	Prompt     PromptSpec            `json:"prompt"`
	Content    *ContentSpec          `json:"content,omitempty"`
	Storyboard StoryboardSpec        `json:"storyboard"`
	Voiceover  *VoiceoverSpec        `json:"voiceover,omitempty"`
	Sequence   SequenceSpec          `json:"sequence"`
	Render     client.RenderSettings `json:"render"`
	// Archive copies the finished render into the configured bucket.
	Archive bool `json:"archive,omitempty"`
}

// Validate checks the spec without contacting the platform.
func (s *Spec) Validate() error {
	return client.ValidateStruct("pipeline.spec", s)
}

func (c *ContentSpec) request(projectID string, o client.Orientation) selector.Request {
	return selector.Request{
		ProjectID:       projectID,
		MediaTypes:      c.MediaTypes,
		QueriesPerType:  c.QueriesPerType,
		ResultsPerQuery: c.ResultsPerQuery,
		Threshold:       c.Threshold,
		TopN:            c.TopN,
		Orientation:     o,
		Attach:          true,
	}
}
