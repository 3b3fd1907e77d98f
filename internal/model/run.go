package model

import (
	"time"

	"github.com/storylinez/storylinez-go/pkg/pipeline"
)

// RunStatus is the lifecycle label of a queued pipeline run
type RunStatus string

const (
	RunStatusQueued    RunStatus = "queued"
	RunStatusRunning   RunStatus = "running"
	RunStatusPending   RunStatus = "pending"
	RunStatusRetrying  RunStatus = "retrying"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCanceled  RunStatus = "canceled"
)

// Terminal reports whether the run will not be picked up again.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSucceeded || s == RunStatusFailed || s == RunStatusCanceled
}

// Run is a pipeline run executed in the background
type Run struct {
	ID           string           `json:"id"`
	Status       RunStatus        `json:"status"`
	CurrentStage pipeline.Stage   `json:"currentStage,omitempty"`
	Spec         pipeline.Spec    `json:"spec"`
	Result       *pipeline.Result `json:"result,omitempty"`
	Error        *string          `json:"error,omitempty"`
	CreatedAt    time.Time        `json:"createdAt"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
	Attempts     int              `json:"attempts"`
}

// StatusFromState maps an orchestrator outcome to a run status.
func StatusFromState(s pipeline.State) RunStatus {
	switch s {
	case pipeline.StateSucceeded:
		return RunStatusSucceeded
	case pipeline.StatePending:
		return RunStatusPending
	case pipeline.StateFailed:
		return RunStatusFailed
	default:
		return RunStatusRunning
	}
}

// Task types
const (
	TaskTypePipeline = "pipeline:run"
)

// RunPayload is the asynq task body. The spec itself lives in the run record.
type RunPayload struct {
	RunID string `json:"runId"`
}
