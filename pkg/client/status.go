package client

import (
	"encoding/json"
	"strings"

	"github.com/storylinez/storylinez-go/pkg/poller"
)

// StatusSet enumerates the labels a resource family uses for its jobs.
// Labels are compared case-insensitively; anything not listed is unknown.
type StatusSet struct {
	Queued     []string
	Processing []string
	Success    []string
	Failure    []string
}

var (
	// StoryboardStatuses also covers sequences and voiceovers.
	StoryboardStatuses = StatusSet{
		Queued:     []string{"QUEUED", "PENDING"},
		Processing: []string{"PROCESSING", "RUNNING", "IN_PROGRESS"},
		Success:    []string{"COMPLETED"},
		Failure:    []string{"FAILED", "ERROR"},
	}
	SequenceStatuses  = StoryboardStatuses
	VoiceoverStatuses = StoryboardStatuses

	RenderStatuses = StatusSet{
		Queued:     []string{"QUEUED", "PENDING"},
		Processing: []string{"PROCESSING", "RUNNING", "RENDERING"},
		Success:    []string{"COMPLETED"},
		Failure:    []string{"FAILED", "ERROR", "CANCELLED"},
	}

	QueryGenStatuses = StatusSet{
		Queued:     []string{"QUEUED", "PENDING"},
		Processing: []string{"PROCESSING"},
		Success:    []string{"COMPLETED"},
		Failure:    []string{"FAILED", "ERROR"},
	}
)

// Phase maps a raw label to its normalized phase.
func (s StatusSet) Phase(status string) poller.Phase {
	label := strings.ToUpper(strings.TrimSpace(status))
	switch {
	case label == "":
		return poller.PhaseUnknown
	case contains(s.Success, label):
		return poller.PhaseCompleted
	case contains(s.Failure, label):
		return poller.PhaseFailed
	case contains(s.Processing, label):
		return poller.PhaseProcessing
	case contains(s.Queued, label):
		return poller.PhaseQueued
	default:
		return poller.PhaseUnknown
	}
}

func contains(labels []string, label string) bool {
	for _, l := range labels {
		if l == label {
			return true
		}
	}
	return false
}

// JobResult is the job block embedded in storyboard, sequence, voiceover and render records.
type JobResult struct {
	JobID        string          `json:"job_id,omitempty"`
	Status       string          `json:"status,omitempty"`
	Progress     *int            `json:"progress,omitempty"`
	Error        string          `json:"error,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Result       json.RawMessage `json:"result,omitempty"`
}

// JobAck is returned by every create/redo call that starts a remote job.
type JobAck struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}

// jobState picks the most specific status and error text for a record.
func jobState(status string, jr *JobResult) (string, *int, string) {
	var progress *int
	msg := ""
	if jr != nil {
		if jr.Status != "" {
			status = jr.Status
		}
		progress = jr.Progress
		msg = jr.ErrorMessage
		if msg == "" {
			msg = jr.Error
		}
	}
	return status, progress, msg
}

func snapshot(set StatusSet, status string, jr *JobResult) poller.Snapshot {
	status, progress, msg := jobState(status, jr)
	return poller.Snapshot{
		Phase:    set.Phase(status),
		Status:   status,
		Progress: progress,
		Message:  msg,
	}
}
