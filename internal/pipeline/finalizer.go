package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// finalize generates a short summary and sends it to the peer. The done
// frame is left to the caller.
func (r *Runner) finalize(ctx context.Context, s *session.Session, req Request, plan *types.Plan, toolCount int) error {
	features := make([]string, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		features = append(features, step.Feature)
	}
	input := strings.Join([]string{
		"Player request: " + req.Prompt,
		fmt.Sprintf("Completed: %d features, %d total commands", len(plan.Steps), toolCount),
		"Features built: " + strings.Join(features, ", "),
	}, "\n")

	t, err := generate(ctx, r.completer, &provider.CompletionRequest{
		Model: r.cfg.Model,
		Messages: []*schema.Message{
			schema.SystemMessage(systemText(finalizerPrompt)),
			schema.UserMessage(input),
		},
		MaxTokens: r.cfg.FinalizerMaxTokens,
	}, streamHooks{})
	if err != nil {
		return fmt.Errorf("finalizer: %w", err)
	}

	summary := t.text.String()
	s.Logger().Debug().Str("summary", strings.TrimSpace(summary)).Msg("Finalizer done")
	if strings.TrimSpace(summary) == "" {
		return nil
	}
	return s.Send(protocol.TextComplete(summary))
}
