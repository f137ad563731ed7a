package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Inbound frame types.
const (
	TypeRegister     = "register"
	TypePrompt       = "prompt"
	TypeActionResult = "action_result"
	TypeToolResult   = "tool_result"
	TypeCancel       = "cancel"
)

// ErrMalformed is returned by Decode for frames that are not a JSON object
// with a string "type" field.
var ErrMalformed = errors.New("malformed frame")

// Inbound is a decoded frame sent by the peer. The concrete type is one of
// *Register, *Prompt, *ActionResult, *Cancel or *Unknown.
type Inbound interface {
	inbound()
}

// Register binds a player name to the connection.
type Register struct {
	PlayerName string `json:"playerName"`
}

// Prompt asks for a new build.
type Prompt struct {
	Content        string       `json:"content"`
	PlayerPosition *RawPosition `json:"playerPosition,omitempty"`
}

// RawPosition is a player position as sent. Any axis may be missing.
type RawPosition struct {
	X *float64 `json:"x"`
	Y *float64 `json:"y"`
	Z *float64 `json:"z"`
}

// Position returns the rounded player position. Each missing axis takes
// its value from the default spawn position.
func (p *Prompt) Position() types.Position {
	d := types.DefaultPosition
	v := types.Vec3{X: float64(d.X), Y: float64(d.Y), Z: float64(d.Z)}
	if raw := p.PlayerPosition; raw != nil {
		if raw.X != nil {
			v.X = *raw.X
		}
		if raw.Y != nil {
			v.Y = *raw.Y
		}
		if raw.Z != nil {
			v.Z = *raw.Z
		}
	}
	return v.Round()
}

// ActionResult carries the peer's outcome for one action call.
type ActionResult struct {
	ToolCallID string `json:"toolCallId"`
	// Result is the raw outcome payload, normally a JSON-encoded
	// {success, message} object. Nil when the frame had no result.
	Result []byte `json:"-"`
}

// Cancel stops the current build.
type Cancel struct{}

// Unknown is any frame with an unrecognized type.
type Unknown struct {
	Type string
}

func (*Register) inbound()     {}
func (*Prompt) inbound()       {}
func (*ActionResult) inbound() {}
func (*Cancel) inbound()       {}
func (*Unknown) inbound()      {}

type envelope struct {
	Type string `json:"type"`
}

type actionResultWire struct {
	ToolCallID string          `json:"toolCallId"`
	Result     json.RawMessage `json:"result"`
}

// Decode classifies a raw text frame.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	}

	switch env.Type {
	case TypeRegister:
		var f Register
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return &f, nil

	case TypePrompt:
		var f Prompt
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return &f, nil

	case TypeActionResult, TypeToolResult:
		var w actionResultWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return &ActionResult{ToolCallID: w.ToolCallID, Result: unwrapResult(w.Result)}, nil

	case TypeCancel:
		return &Cancel{}, nil

	default:
		return &Unknown{Type: env.Type}, nil
	}
}

// unwrapResult accepts the result either as a JSON string holding the
// encoded object (the peer's convention) or as an inline object.
func unwrapResult(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []byte(s)
	}
	return raw
}
