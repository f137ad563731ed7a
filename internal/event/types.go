package event

import "github.com/WilliamStanton/vibe-build/pkg/types"

// SessionData is the data for session.created and session.deleted events.
type SessionData struct {
	SessionID string `json:"sessionID"`
	PeerName  string `json:"peerName,omitempty"`
}

// SessionRegisteredData is the data for session.registered events.
type SessionRegisteredData struct {
	SessionID string `json:"sessionID"`
	PeerName  string `json:"peerName"`
	// Superseded is the session that previously held the name, if any.
	Superseded string `json:"superseded,omitempty"`
}

// PipelineStartedData is the data for pipeline.started events.
type PipelineStartedData struct {
	SessionID string         `json:"sessionID"`
	Prompt    string         `json:"prompt"`
	Position  types.Position `json:"position"`
}

// PipelinePlannedData is the data for pipeline.planned events.
type PipelinePlannedData struct {
	SessionID string         `json:"sessionID"`
	Title     string         `json:"title"`
	Origin    types.Position `json:"origin"`
	StepCount int            `json:"stepCount"`
}

// PipelineStepData is the data for pipeline.step events.
type PipelineStepData struct {
	SessionID string `json:"sessionID"`
	Index     int    `json:"index"`
	Total     int    `json:"total"`
	StepID    string `json:"stepID"`
	Feature   string `json:"feature"`
}

// PipelineCompletedData is the data for pipeline.completed events.
type PipelineCompletedData struct {
	SessionID      string `json:"sessionID"`
	ToolCount      int    `json:"toolCount"`
	CompletedSteps int    `json:"completedSteps"`
}

// PipelineFailedData is the data for pipeline.failed events.
type PipelineFailedData struct {
	SessionID string `json:"sessionID"`
	Error     string `json:"error"`
	Cancelled bool   `json:"cancelled"`
}

// ActionRequestedData is the data for action.requested events.
type ActionRequestedData struct {
	SessionID string `json:"sessionID"`
	CallID    string `json:"callID"`
	Name      string `json:"name"`
}

// ActionResolvedData is the data for action.resolved events.
type ActionResolvedData struct {
	SessionID string             `json:"sessionID"`
	CallID    string             `json:"callID"`
	Name      string             `json:"name"`
	Result    types.ActionResult `json:"result"`
}
