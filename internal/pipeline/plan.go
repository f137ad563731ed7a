package pipeline

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// SubmitPlanTool is the only tool offered to the planner.
const SubmitPlanTool = "submit_plan"

// maxSummaryDetails bounds each step's details in the history summary.
const maxSummaryDetails = 200

//go:embed plan.schema.json
var planSchemaJSON string

var planSchema = mustCompilePlanSchema()

func mustCompilePlanSchema() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(planSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("plan schema: %v", err))
	}
	return s
}

// submitPlanInfo describes submit_plan with the same parameter shape the
// schema validates.
func submitPlanInfo() *schema.ToolInfo {
	coord := func(axis string) *action.Param {
		return &action.Param{Type: "integer", Description: axis + " coordinate"}
	}
	return action.ToolInfo(
		SubmitPlanTool,
		"Submit the build plan. Call this exactly once with the complete feature list.",
		map[string]*action.Param{
			"planTitle": {Type: "string", Description: "Short title for the build"},
			"origin": {
				Type:        "object",
				Description: "Block the build is anchored to",
				Properties:  map[string]*action.Param{"x": coord("X"), "y": coord("Y"), "z": coord("Z")},
				Required:    []string{"x", "y", "z"},
			},
			"steps": {
				Type:        "array",
				Description: "Ordered list of features to build",
				Items: &action.Param{
					Type: "object",
					Properties: map[string]*action.Param{
						"id":      {Type: "string", Description: "Short kebab-case id like 'foundation' or 'roof'"},
						"feature": {Type: "string", Description: "What this feature is, e.g. 'Stone brick foundation 12x10 at ground level'"},
						"details": {Type: "string", Description: "Materials, dimensions, coordinates and block states for the executor"},
					},
					Required: []string{"id", "feature", "details"},
				},
			},
		},
		[]string{"planTitle", "origin", "steps"},
	)
}

// PlanError reports a plan payload that failed validation.
type PlanError struct {
	Problems []string
}

func (e *PlanError) Error() string {
	return "invalid plan: " + strings.Join(e.Problems, "; ")
}

// ParsePlan validates a submit_plan payload and decodes it.
func ParsePlan(payload string) (*types.Plan, error) {
	if !json.Valid([]byte(payload)) {
		return nil, &PlanError{Problems: []string{"payload is not valid JSON"}}
	}

	result, err := planSchema.Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		return nil, &PlanError{Problems: []string{err.Error()}}
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return nil, &PlanError{Problems: problems}
	}

	// Integers may arrive as 12.0; decode as floats and round.
	var wire struct {
		Title  string           `json:"planTitle"`
		Origin types.Vec3       `json:"origin"`
		Steps  []types.PlanStep `json:"steps"`
	}
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return nil, &PlanError{Problems: []string{err.Error()}}
	}
	return &types.Plan{
		Title:  wire.Title,
		Origin: wire.Origin.Round(),
		Steps:  wire.Steps,
	}, nil
}

// PlanSummary condenses a plan for the session history.
func PlanSummary(plan *types.Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan: \"%s\" at (%s)", plan.Title, plan.Origin)
	for _, s := range plan.Steps {
		fmt.Fprintf(&b, "\n- %s: %s — %s", s.ID, s.Feature, truncate(s.Details, maxSummaryDetails))
	}
	return b.String()
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
