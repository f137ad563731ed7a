package server

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/pipeline"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/provider"
	"github.com/WilliamStanton/vibe-build/internal/session"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// scriptedCompleter answers completions from a fixed script, in order.
type scriptedCompleter struct {
	mu     sync.Mutex
	script [][]*schema.Message
}

func (c *scriptedCompleter) CreateCompletion(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.script) == 0 {
		return nil, errors.New("script exhausted")
	}
	chunks := c.script[0]
	c.script = c.script[1:]
	return provider.NewCompletionStream(schema.StreamReaderFromArray(chunks)), nil
}

func say(s string) []*schema.Message {
	return []*schema.Message{schema.AssistantMessage(s, nil)}
}

func call(id, name, args string) []*schema.Message {
	idx := 0
	return []*schema.Message{schema.AssistantMessage("", []schema.ToolCall{{
		Index:    &idx,
		ID:       id,
		Type:     "function",
		Function: schema.FunctionCall{Name: name, Arguments: args},
	}})}
}

const hutPlan = `{"planTitle":"Hut","origin":{"x":3,"y":64,"z":3},"steps":[` +
	`{"id":"base","feature":"Floor","details":"5x5 oak planks"},` +
	`{"id":"walls","feature":"Walls","details":"cobblestone"}]}`

func hutScript() [][]*schema.Message {
	return [][]*schema.Message{
		call("p", pipeline.SubmitPlanTool, hutPlan),
		call("c1", "set", `{"pattern":"oak_planks"}`),
		say("Floor done."),
		call("c2", "we_walls", `{"pattern":"cobblestone"}`),
		say("Walls done."),
		say("Enjoy your hut!"),
	}
}

type fakeImages struct {
	prompt string
	err    error
	calls  int
	notes  string
	mime   string
}

func (f *fakeImages) Generate(_ context.Context, image []byte, mimeType, notes string) (string, error) {
	f.calls++
	f.notes = notes
	f.mime = mimeType
	return f.prompt, f.err
}

type testEnv struct {
	srv      *Server
	registry *session.Registry
	bus      *event.Bus
	images   *fakeImages
}

func newTestEnv(t *testing.T, script ...[]*schema.Message) *testEnv {
	t.Helper()
	bus := event.NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	registry := session.NewRegistry(session.WithBus(bus))
	runner := pipeline.NewRunner(&scriptedCompleter{script: script}, action.MustLoad(), pipeline.Config{}, pipeline.WithBus(bus))
	images := &fakeImages{prompt: "A small oak hut with a cobblestone base."}

	cfg := DefaultConfig()
	cfg.WebPort = 9999
	cfg.PingInterval = 0

	return &testEnv{
		srv:      New(cfg, registry, runner, images, bus),
		registry: registry,
		bus:      bus,
		images:   images,
	}
}

// dial opens a game connection against a test WebSocket server.
func (e *testEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(e.srv.WebSocketHandler())
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) protocol.ServerFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	f, err := protocol.DecodeServerFrame(data)
	require.NoError(t, err)
	return f
}

// readUntil reads frames until one of type typ arrives, answering every
// tool_call with a successful result.
func readUntil(t *testing.T, conn *websocket.Conn, typ string) (protocol.ServerFrame, []protocol.ServerFrame) {
	t.Helper()
	var seen []protocol.ServerFrame
	for {
		f := readFrame(t, conn)
		seen = append(seen, f)
		if f.Type == typ {
			return f, seen
		}
		if f.Type == protocol.TypeToolCall {
			send(t, conn, protocol.NewToolResult(f.ToolCallID, types.ActionResult{Success: true, Message: "ok"}))
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}
