package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// PeerFrame is the wire form of a frame sent by the peer. It is used by
// the development peer client and by tests.
type PeerFrame struct {
	Type           string      `json:"type"`
	PlayerName     string      `json:"playerName,omitempty"`
	Content        string      `json:"content,omitempty"`
	PlayerPosition *types.Vec3 `json:"playerPosition,omitempty"`
	ToolCallID     string      `json:"toolCallId,omitempty"`
	Result         string      `json:"result,omitempty"`
}

// NewRegister builds a register frame.
func NewRegister(playerName string) PeerFrame {
	return PeerFrame{Type: TypeRegister, PlayerName: playerName}
}

// NewPrompt builds a prompt frame.
func NewPrompt(content string, pos *types.Vec3) PeerFrame {
	return PeerFrame{Type: TypePrompt, Content: content, PlayerPosition: pos}
}

// NewToolResult builds a tool_result frame with the outcome JSON-encoded
// into the result string.
func NewToolResult(callID string, result types.ActionResult) PeerFrame {
	data, _ := json.Marshal(result)
	return PeerFrame{Type: TypeToolResult, ToolCallID: callID, Result: string(data)}
}

// NewCancel builds a cancel frame.
func NewCancel() PeerFrame {
	return PeerFrame{Type: TypeCancel}
}

// ServerFrame is the union of every outbound field, as seen by the peer.
type ServerFrame struct {
	Type           string          `json:"type"`
	Content        string          `json:"content,omitempty"`
	Origin         *types.Position `json:"origin,omitempty"`
	StepCount      int             `json:"stepCount,omitempty"`
	ToolCallID     string          `json:"toolCallId,omitempty"`
	Name           string          `json:"name,omitempty"`
	Args           json.RawMessage `json:"args,omitempty"`
	ToolCount      int             `json:"toolCount,omitempty"`
	CompletedSteps int             `json:"completedSteps,omitempty"`
}

// DecodeServerFrame parses a frame sent by the server.
func DecodeServerFrame(data []byte) (ServerFrame, error) {
	var f ServerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == "" {
		return f, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	return f, nil
}
