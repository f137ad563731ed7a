package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino/schema"
	"github.com/oklog/ulid/v2"

	"github.com/WilliamStanton/vibe-build/internal/provider"
)

// toolCall is one action call assembled from stream chunks.
type toolCall struct {
	id   string
	name string
	args strings.Builder
}

// arguments returns the accumulated argument JSON, "{}" when none arrived.
func (c *toolCall) arguments() string {
	if s := strings.TrimSpace(c.args.String()); s != "" {
		return s
	}
	return "{}"
}

// turn is the assembled result of one streamed generation call.
type turn struct {
	text         strings.Builder
	calls        []*toolCall
	finishReason string

	byIndex map[int]*toolCall
	byID    map[string]*toolCall
}

func newTurn() *turn {
	return &turn{
		byIndex: make(map[int]*toolCall),
		byID:    make(map[string]*toolCall),
	}
}

// lookup finds the call a chunk belongs to. Chunks are keyed by Index when
// the provider sets it, by ID otherwise; argument-only chunks with neither
// continue the most recent call.
func (t *turn) lookup(tc schema.ToolCall) (call *toolCall, started bool) {
	switch {
	case tc.Index != nil:
		call = t.byIndex[*tc.Index]
	case tc.ID != "":
		call = t.byID[tc.ID]
	case tc.Function.Name == "" && len(t.calls) > 0:
		call = t.calls[len(t.calls)-1]
	}
	if call == nil {
		call = &toolCall{}
		t.calls = append(t.calls, call)
		if tc.Index != nil {
			t.byIndex[*tc.Index] = call
		}
		started = true
	}
	if tc.ID != "" && call.id == "" {
		call.id = tc.ID
		t.byID[tc.ID] = call
	}
	if tc.Function.Name != "" && call.name == "" {
		call.name = tc.Function.Name
	}
	return call, started
}

// streamHooks observe a generation stream as it is consumed.
type streamHooks struct {
	// onText receives each text delta.
	onText func(delta string) error
	// onCallStart fires when a new action call begins.
	onCallStart func(name string) error
}

// generate runs one streaming completion and assembles the response.
// A stream error is a hard failure.
func generate(ctx context.Context, completer provider.Completer, req *provider.CompletionRequest, hooks streamHooks) (*turn, error) {
	stream, err := completer.CreateCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("start generation: %w", err)
	}
	defer stream.Close()

	t := newTurn()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("generation stream: %w", err)
		}
		if msg == nil {
			continue
		}

		if msg.Content != "" {
			t.text.WriteString(msg.Content)
			if hooks.onText != nil {
				if err := hooks.onText(msg.Content); err != nil {
					return nil, err
				}
			}
		}

		for _, tc := range msg.ToolCalls {
			call, started := t.lookup(tc)
			if started && hooks.onCallStart != nil {
				if err := hooks.onCallStart(call.name); err != nil {
					return nil, err
				}
			}
			call.args.WriteString(tc.Function.Arguments)
		}

		if msg.ResponseMeta != nil && msg.ResponseMeta.FinishReason != "" {
			t.finishReason = msg.ResponseMeta.FinishReason
		}
	}

	for _, c := range t.calls {
		if c.id == "" {
			c.id = "call_" + ulid.Make().String()
		}
	}
	return t, nil
}

// assistantMessage renders the turn as an Eino assistant message so it can
// be replayed to the model with its tool results.
func (t *turn) assistantMessage() *schema.Message {
	calls := make([]schema.ToolCall, 0, len(t.calls))
	for _, c := range t.calls {
		calls = append(calls, schema.ToolCall{
			ID:   c.id,
			Type: "function",
			Function: schema.FunctionCall{
				Name:      c.name,
				Arguments: c.arguments(),
			},
		})
	}
	return schema.AssistantMessage(t.text.String(), calls)
}
