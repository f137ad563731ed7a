package protocol

import (
	"encoding/json"

	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Outbound frame types.
const (
	TypeThinking     = "thinking"
	TypeDelta        = "delta"
	TypeTextComplete = "text_content_complete"
	TypePlanReady    = "plan_ready"
	TypeStep         = "step"
	TypeToolCall     = "tool_call"
	TypeDone         = "done"
	TypeError        = "error"
)

// Outbound is a frame sent to the peer.
type Outbound interface {
	FrameType() string
}

// Sender delivers outbound frames for one connection. Implementations must
// be safe for concurrent use and preserve call order.
type Sender interface {
	Send(frame Outbound) error
}

// ContentFrame is used by every frame whose only payload is text.
type ContentFrame struct {
	Type    string `json:"type"`
	Content string `json:"content,omitempty"`
}

func (f ContentFrame) FrameType() string { return f.Type }

// PlanReadyFrame announces a validated plan.
type PlanReadyFrame struct {
	Type      string         `json:"type"`
	Origin    types.Position `json:"origin"`
	StepCount int            `json:"stepCount"`
}

func (f PlanReadyFrame) FrameType() string { return f.Type }

// ToolCallFrame asks the peer to perform one action.
type ToolCallFrame struct {
	Type       string          `json:"type"`
	ToolCallID string          `json:"toolCallId"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
}

func (f ToolCallFrame) FrameType() string { return f.Type }

// DoneFrame ends a successful run.
type DoneFrame struct {
	Type           string `json:"type"`
	ToolCount      int    `json:"toolCount"`
	CompletedSteps int    `json:"completedSteps"`
}

func (f DoneFrame) FrameType() string { return f.Type }

// Thinking signals that a run started.
func Thinking() Outbound {
	return ContentFrame{Type: TypeThinking}
}

// Delta carries one raw streamed token.
func Delta(content string) Outbound {
	return ContentFrame{Type: TypeDelta, Content: content}
}

// TextComplete carries one flushed chunk of aggregated text.
func TextComplete(content string) Outbound {
	return ContentFrame{Type: TypeTextComplete, Content: content}
}

// Step reports executor progress.
func Step(content string) Outbound {
	return ContentFrame{Type: TypeStep, Content: content}
}

// Error reports a failed request or run.
func Error(content string) Outbound {
	return ContentFrame{Type: TypeError, Content: content}
}

// PlanReady reports the validated plan's origin and size.
func PlanReady(origin types.Position, stepCount int) Outbound {
	return PlanReadyFrame{Type: TypePlanReady, Origin: origin, StepCount: stepCount}
}

// ToolCall asks the peer to run an action. Invalid or empty args are sent
// as an empty object.
func ToolCall(id, name string, args json.RawMessage) Outbound {
	if len(args) == 0 || !json.Valid(args) {
		args = json.RawMessage("{}")
	}
	return ToolCallFrame{Type: TypeToolCall, ToolCallID: id, Name: name, Args: args}
}

// Done reports a completed run.
func Done(toolCount, completedSteps int) Outbound {
	return DoneFrame{Type: TypeDone, ToolCount: toolCount, CompletedSteps: completedSteps}
}

// Encode marshals an outbound frame.
func Encode(frame Outbound) ([]byte, error) {
	return json.Marshal(frame)
}
