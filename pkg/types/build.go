package types

import (
	"fmt"
	"math"
)

// Position is an integer block coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

// DefaultPosition is used when a prompt carries no player position.
var DefaultPosition = Position{X: 0, Y: 64, Z: 0}

// String renders the position as "x, y, z".
func (p Position) String() string {
	return fmt.Sprintf("%d, %d, %d", p.X, p.Y, p.Z)
}

// Vec3 is a raw coordinate as reported by the peer. Players stand at
// fractional positions, so it is rounded before use.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Round converts to a block position.
func (v Vec3) Round() Position {
	return Position{
		X: int(math.Round(v.X)),
		Y: int(math.Round(v.Y)),
		Z: int(math.Round(v.Z)),
	}
}

// PlanStep is one feature of a build plan.
type PlanStep struct {
	ID      string `json:"id"`
	Feature string `json:"feature"`
	Details string `json:"details"`
}

// Plan is the validated output of the planning stage.
type Plan struct {
	Title  string     `json:"planTitle"`
	Origin Position   `json:"origin"`
	Steps  []PlanStep `json:"steps"`
}

// ActionResult is the outcome of a remote action reported by the peer.
type ActionResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Role tags a history message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a session's conversational history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
