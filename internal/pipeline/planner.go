package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// plan runs the planning stage. The request and, on success, a summary of
// the plan are appended to the session history.
func (r *Runner) plan(ctx context.Context, s *session.Session, req Request) (*types.Plan, error) {
	log := s.Logger()
	if err := s.Send(protocol.Thinking()); err != nil {
		return nil, err
	}

	s.AppendHistory(types.Message{
		Role:    types.RoleUser,
		Content: fmt.Sprintf("Player position: %s\nBuild request: %s", req.Position, req.Prompt),
	})

	history := s.History()
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, schema.SystemMessage(systemText(spatialPrefix, plannerPrompt)))
	for _, m := range history {
		if m.Role == types.RoleAssistant {
			messages = append(messages, schema.AssistantMessage(m.Content, nil))
		} else {
			messages = append(messages, schema.UserMessage(m.Content))
		}
	}

	log.Debug().Int("history", len(history)).Msg("Planner started")
	agg := NewAggregator(s)
	t, err := generate(ctx, r.completer, &provider.CompletionRequest{
		Model:     r.cfg.Model,
		Messages:  messages,
		Tools:     []*schema.ToolInfo{submitPlanInfo()},
		MaxTokens: r.cfg.PlannerMaxTokens,
	}, streamHooks{
		onText: func(delta string) error {
			agg.Append(delta)
			return s.Send(protocol.Delta(delta))
		},
		onCallStart: func(string) error {
			return agg.Flush()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("planner: %w", err)
	}
	if err := agg.Flush(); err != nil {
		return nil, err
	}

	var payload string
	for _, c := range t.calls {
		if c.name == SubmitPlanTool {
			payload = strings.TrimSpace(c.args.String())
		}
	}
	if payload == "" {
		return nil, ErrNoPlan
	}

	plan, err := ParsePlan(payload)
	if err != nil {
		return nil, err
	}

	s.AppendHistory(types.Message{Role: types.RoleAssistant, Content: PlanSummary(plan)})

	log.Info().
		Str("title", plan.Title).
		Stringer("origin", plan.Origin).
		Int("steps", len(plan.Steps)).
		Msg("Plan ready")
	r.publish(event.PipelinePlanned, event.PipelinePlannedData{
		SessionID: s.ID,
		Title:     plan.Title,
		Origin:    plan.Origin,
		StepCount: len(plan.Steps),
	})

	if err := s.Send(protocol.PlanReady(plan.Origin, len(plan.Steps))); err != nil {
		return nil, err
	}
	return plan, nil
}
