package model

import "github.com/storylinez/storylinez-go/pkg/pipeline"

// WebSocket message types
const (
	WSMessageTypeProgress = "progress"
	WSMessageTypeStatus   = "status"
	WSMessageTypeComplete = "complete"
	WSMessageTypeError    = "error"
	WSMessageTypePing     = "ping"
	WSMessageTypePong     = "pong"
)

// WSMessage is the envelope every frame shares
type WSMessage struct {
	Type string `json:"type"`
}

// WSProgressMessage reports one stage transition of a run
type WSProgressMessage struct {
	Type   string             `json:"type"`
	RunID  string             `json:"runId"`
	Stage  pipeline.Stage     `json:"stage"`
	Event  pipeline.EventKind `json:"event"`
	Result *pipeline.Result   `json:"result,omitempty"`
	Error  string             `json:"error,omitempty"`
}

// WSStatusMessage reports a run that ended an attempt without finishing.
type WSStatusMessage struct {
	Type   string    `json:"type"`
	RunID  string    `json:"runId"`
	Status RunStatus `json:"status"`
	Run    *Run      `json:"run"`
}

// WSCompleteMessage carries the succeeded run
type WSCompleteMessage struct {
	Type   string `json:"type"`
	RunID  string `json:"runId"`
	Result *Run   `json:"result"`
}

// WSErrorMessage reports a failed or canceled run
type WSErrorMessage struct {
	Type  string  `json:"type"`
	RunID string  `json:"runId"`
	Error WSError `json:"error"`
}

// WSError contains error details
type WSError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
