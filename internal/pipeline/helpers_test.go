package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/session"
)

// reply is one scripted model response.
type reply struct {
	chunks []*schema.Message
	err    error // returned from the stream after chunks
	panic  bool
}

// scriptedCompleter answers completions from a fixed script, in order.
type scriptedCompleter struct {
	mu       sync.Mutex
	script   []reply
	requests []*provider.CompletionRequest
}

func (c *scriptedCompleter) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if len(c.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	r := c.script[0]
	c.script = c.script[1:]
	if r.panic {
		panic("scripted panic")
	}
	if r.err == nil {
		return provider.NewCompletionStream(schema.StreamReaderFromArray(r.chunks)), nil
	}

	sr, sw := schema.Pipe[*schema.Message](len(r.chunks) + 1)
	go func() {
		defer sw.Close()
		for _, m := range r.chunks {
			sw.Send(m, nil)
		}
		sw.Send(nil, r.err)
	}()
	return provider.NewCompletionStream(sr), nil
}

func (c *scriptedCompleter) request(t *testing.T, i int) *provider.CompletionRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.Greater(t, len(c.requests), i)
	return c.requests[i]
}

func text(parts ...string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(parts))
	for _, p := range parts {
		msgs = append(msgs, schema.AssistantMessage(p, nil))
	}
	return msgs
}

// callChunks streams one tool call the way providers do: a start chunk with
// id and name, then argument fragments keyed only by index.
func callChunks(index int, id, name string, args ...string) []*schema.Message {
	idx := index
	msgs := []*schema.Message{schema.AssistantMessage("", []schema.ToolCall{{
		Index:    &idx,
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name},
	}})}
	for _, a := range args {
		i := index
		msgs = append(msgs, schema.AssistantMessage("", []schema.ToolCall{{
			Index:    &i,
			Function: schema.FunctionCall{Arguments: a},
		}}))
	}
	return msgs
}

func concat(parts ...[]*schema.Message) []*schema.Message {
	var out []*schema.Message
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// fakePeer records frames and answers tool calls.
type fakePeer struct {
	mu     sync.Mutex
	frames []protocol.Outbound
	sess   *session.Session
	onCall func(p *fakePeer, call protocol.ToolCallFrame)

	// busyAtEnd holds sess.Busy() as seen when each done or error frame
	// arrived.
	busyAtEnd []bool
	// onEnd runs once, on the first done or error frame.
	onEnd func(p *fakePeer)
}

func (p *fakePeer) Send(f protocol.Outbound) error {
	p.mu.Lock()
	p.frames = append(p.frames, f)
	var onEnd func(p *fakePeer)
	if t := f.FrameType(); t == protocol.TypeDone || t == protocol.TypeError {
		p.busyAtEnd = append(p.busyAtEnd, p.sess.Busy())
		onEnd, p.onEnd = p.onEnd, nil
	}
	onCall := p.onCall
	p.mu.Unlock()

	if onEnd != nil {
		onEnd(p)
	}

	if call, ok := f.(protocol.ToolCallFrame); ok && onCall != nil {
		go onCall(p, call)
	}
	return nil
}

func (p *fakePeer) snapshot() []protocol.Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]protocol.Outbound, len(p.frames))
	copy(out, p.frames)
	return out
}

func (p *fakePeer) types() []string {
	var out []string
	for _, f := range p.snapshot() {
		out = append(out, f.FrameType())
	}
	return out
}

func (p *fakePeer) ofType(t string) []protocol.Outbound {
	var out []protocol.Outbound
	for _, f := range p.snapshot() {
		if f.FrameType() == t {
			out = append(out, f)
		}
	}
	return out
}

// succeed resolves every call with success.
func succeed(p *fakePeer, call protocol.ToolCallFrame) {
	p.sess.Actions().Resolve(call.ToolCallID, []byte(`{"success":true,"message":"done"}`))
}

type fixture struct {
	completer *scriptedCompleter
	peer      *fakePeer
	sess      *session.Session
	runner    *Runner
}

func newFixture(t *testing.T, cfg Config, script ...reply) *fixture {
	t.Helper()
	catalog, err := action.Load()
	require.NoError(t, err)

	completer := &scriptedCompleter{script: script}
	peer := &fakePeer{onCall: succeed}
	sess, err := session.NewRegistry().Create("test", peer)
	require.NoError(t, err)
	peer.sess = sess

	return &fixture{
		completer: completer,
		peer:      peer,
		sess:      sess,
		runner:    NewRunner(completer, catalog, cfg),
	}
}

func (f *fixture) run(t *testing.T, prompt string) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return f.runner.Run(ctx, f.sess, Request{Prompt: prompt, Position: defaultPos})
}
