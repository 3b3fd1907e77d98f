package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/storylinez/storylinez-go/pkg/apierr"
	"github.com/storylinez/storylinez-go/pkg/selector"
)

// Stage names one step of a run.
type Stage string

const (
	StageProject    Stage = "project"
	StageAttach     Stage = "attach"
	StagePrompt     Stage = "prompt"
	StageContent    Stage = "content"
	StageStoryboard Stage = "storyboard"
	StageVoiceover  Stage = "voiceover"
	StageSequence   Stage = "sequence"
	StageRender     Stage = "render"
	StageArchive    Stage = "archive"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageProject, StageAttach, StagePrompt, StageContent, StageStoryboard,
	StageVoiceover, StageSequence, StageRender, StageArchive,
}

// State is the overall outcome of a run.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	// StatePending means a remote job outlived the poll timeout; Resume picks it up.
	StatePending State = "pending"
	StateFailed  State = "failed"
)

// Result carries every id a run produced. It is returned on success and on
// failure so a caller can inspect or resume the run.
type Result struct {
	State State `json:"state"`
	// Stage is the stage in progress, pending or failed. Empty once succeeded.
	Stage     Stage   `json:"stage,omitempty"`
	Completed []Stage `json:"completed,omitempty"`

	ProjectID    string `json:"project_id,omitempty"`
	PromptID     string `json:"prompt_id,omitempty"`
	StoryboardID string `json:"storyboard_id,omitempty"`
	VoiceoverID  string `json:"voiceover_id,omitempty"`
	SequenceID   string `json:"sequence_id,omitempty"`
	RenderID     string `json:"render_id,omitempty"`

	DownloadURL   string `json:"download_url,omitempty"`
	StreamableURL string `json:"streamable_url,omitempty"`
	ArchiveURL    string `json:"archive_url,omitempty"`

	Content   *selector.Selection `json:"content,omitempty"`
	Error     string              `json:"error,omitempty"`
	ErrorKind apierr.Kind         `json:"error_kind,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
}

// Done reports whether stage already completed.
func (r *Result) Done(stage Stage) bool {
	return slices.Contains(r.Completed, stage)
}

// Clone returns a copy that does not share the completed list.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	out.Completed = slices.Clone(r.Completed)
	return &out
}

// StageError reports which stage stopped a run.
type StageError struct {
	Stage Stage
	// Pending is set when the stage's remote job was still running at the poll timeout.
	Pending bool
	Err     error
}

func (e *StageError) Error() string {
	if e.Pending {
		return fmt.Sprintf("stage %s still pending: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsPending reports whether err stopped a run on a job that may still finish.
func IsPending(err error) bool {
	var se *StageError
	return errors.As(err, &se) && se.Pending
}

// StageOf returns the stage that produced err, or "" if err is not a StageError.
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
