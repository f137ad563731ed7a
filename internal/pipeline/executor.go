package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// recentSteps is how many completed steps the executor sees.
const recentSteps = 2

// execute builds the plan's steps in order and returns the number of
// actions forwarded to the peer.
func (r *Runner) execute(ctx context.Context, s *session.Session, req Request, plan *types.Plan) (int, error) {
	log := s.Logger()
	total := len(plan.Steps)
	toolCount := 0

	for i, step := range plan.Steps {
		if s.Cancelled() {
			log.Info().Int("step", i+1).Msg("Cancelled before step")
			return toolCount, ErrCancelled
		}

		if err := s.Send(protocol.Step(fmt.Sprintf("[%d/%d] %s", i+1, total, step.Feature))); err != nil {
			return toolCount, err
		}
		r.publish(event.PipelineStep, event.PipelineStepData{
			SessionID: s.ID,
			Index:     i + 1,
			Total:     total,
			StepID:    step.ID,
			Feature:   step.Feature,
		})
		log.Info().Int("step", i+1).Int("total", total).Str("id", step.ID).Msg(step.Feature)

		count, text, err := r.runStep(ctx, s, executorInput(req, plan, i))
		toolCount += count
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return toolCount, err
			}
			return toolCount, fmt.Errorf("step %d (%s): %w", i+1, step.ID, err)
		}
		log.Debug().
			Int("step", i+1).
			Int("actions", count).
			Int("toolCount", toolCount).
			Str("text", strings.TrimSpace(text)).
			Msg("Step done")
	}
	return toolCount, nil
}

// executorInput renders the user message for step i.
func executorInput(req Request, plan *types.Plan, i int) string {
	from := max(0, i-recentSteps)
	recent := make([]string, 0, recentSteps)
	for j := from; j < i; j++ {
		recent = append(recent, fmt.Sprintf("%d. %s: %s", j+1, plan.Steps[j].ID, plan.Steps[j].Feature))
	}
	recentText := strings.Join(recent, " | ")
	if recentText == "" {
		recentText = "none"
	}

	step := plan.Steps[i]
	return strings.Join([]string{
		"Player request: " + req.Prompt,
		"Build origin: " + plan.Origin.String(),
		"Recent completed steps (latest up to 2): " + recentText,
		"",
		fmt.Sprintf("Current step (%d/%d):", i+1, len(plan.Steps)),
		"Feature: " + step.Feature,
		"Details: " + step.Details,
	}, "\n")
}

// runStep is the agent loop for one step: generate, forward every action
// call, feed the results back, until a response has no calls. It returns
// the number of forwarded actions and the step's streamed text.
func (r *Runner) runStep(ctx context.Context, s *session.Session, input string) (int, string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(systemText(spatialPrefix, executorPrompt)),
		schema.UserMessage(input),
	}
	agg := NewAggregator(s)
	hooks := streamHooks{
		onText: func(delta string) error {
			agg.Append(delta)
			return nil
		},
		onCallStart: func(string) error {
			return agg.Flush()
		},
	}

	count := 0
	for round := 0; ; round++ {
		if round >= r.cfg.MaxRounds {
			return count, "", fmt.Errorf("exceeded %d action rounds", r.cfg.MaxRounds)
		}

		t, err := generate(ctx, r.completer, &provider.CompletionRequest{
			Model:     r.cfg.Model,
			Messages:  messages,
			Tools:     r.tools,
			MaxTokens: r.cfg.ExecutorMaxTokens,
		}, hooks)
		if err != nil {
			return count, "", err
		}
		if err := agg.Flush(); err != nil {
			return count, "", err
		}
		if len(t.calls) == 0 {
			return count, agg.Text(), nil
		}

		messages = append(messages, t.assistantMessage())
		for _, call := range t.calls {
			result, forwarded, err := r.invoke(ctx, s, call)
			if err != nil {
				return count, "", err
			}
			if forwarded {
				count++
			}
			messages = append(messages, schema.ToolMessage(resultJSON(result), call.id))
		}
	}
}

// invoke forwards one action call to the peer. Unknown actions are answered
// locally and not forwarded.
func (r *Runner) invoke(ctx context.Context, s *session.Session, call *toolCall) (types.ActionResult, bool, error) {
	log := s.Logger()
	if !r.catalog.Has(call.name) {
		msg := "unknown action " + call.name
		if suggestion, ok := r.catalog.Suggest(call.name); ok {
			msg += "; did you mean " + suggestion + "?"
		}
		log.Warn().Str("action", call.name).Msg("Model called unknown action")
		return types.ActionResult{Success: false, Message: msg}, false, nil
	}
	if s.Cancelled() {
		return types.ActionResult{}, false, ErrCancelled
	}

	args := call.arguments()
	log.Debug().Str("action", call.name).RawJSON("args", validJSON(args)).Msg("Forwarding action")
	result, err := s.Actions().Invoke(ctx, call.name, json.RawMessage(args))
	if err != nil {
		return result, false, err
	}

	ev := log.Debug()
	if !result.Success {
		ev = log.Warn()
	}
	ev.Str("action", call.name).Bool("success", result.Success).Str("message", result.Message).Msg("Action resolved")
	return result, true, nil
}

func resultJSON(r types.ActionResult) string {
	data, _ := json.Marshal(r)
	return string(data)
}

// validJSON guards RawJSON log fields against malformed model output.
func validJSON(s string) []byte {
	if json.Valid([]byte(s)) {
		return []byte(s)
	}
	quoted, _ := json.Marshal(s)
	return quoted
}
