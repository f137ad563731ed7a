package server

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WilliamStanton/vibe-build/internal/pipeline"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

func TestConnection_EndToEnd(t *testing.T) {
	env := newTestEnv(t, hutScript()...)
	conn := env.dial(t)

	send(t, conn, protocol.NewRegister("Steve"))
	send(t, conn, protocol.NewPrompt("build a hut", &types.Vec3{X: 0.4, Y: 64, Z: -0.2}))

	done, seen := readUntil(t, conn, protocol.TypeDone)
	assert.Equal(t, 2, done.ToolCount)
	assert.Equal(t, 2, done.CompletedSteps)

	assert.Equal(t, protocol.TypeThinking, seen[0].Type)
	var calls []string
	for _, f := range seen {
		if f.Type == protocol.TypeToolCall {
			calls = append(calls, f.Name)
		}
		if f.Type == protocol.TypePlanReady {
			require.NotNil(t, f.Origin)
			assert.Equal(t, types.Position{X: 3, Y: 64, Z: 3}, *f.Origin)
			assert.Equal(t, 2, f.StepCount)
		}
	}
	assert.Equal(t, []string{"set", "we_walls"}, calls)

	sess, ok := env.registry.LookupByPeerName("Steve")
	require.True(t, ok)
	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, "Player position: 0, 64, 0\nBuild request: build a hut", history[0].Content)
	assert.False(t, sess.Busy())
}

func TestConnection_PromptRightAfterDone(t *testing.T) {
	env := newTestEnv(t, append(hutScript(), hutScript()...)...)
	conn := env.dial(t)

	send(t, conn, protocol.NewRegister("Steve"))
	send(t, conn, protocol.NewPrompt("build a hut", nil))
	readUntil(t, conn, protocol.TypeDone)

	send(t, conn, protocol.NewPrompt("build another hut", nil))
	f := readFrame(t, conn)
	assert.Equal(t, protocol.TypeThinking, f.Type, "got %s %q", f.Type, f.Content)

	done, seen := readUntil(t, conn, protocol.TypeDone)
	assert.Equal(t, 2, done.ToolCount)
	for _, f := range seen {
		assert.NotEqual(t, protocol.TypeError, f.Type)
	}
}

func TestConnection_RegisterWithoutName(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, protocol.NewRegister("   "))
	f := readFrame(t, conn)
	assert.Equal(t, protocol.TypeError, f.Type)
	assert.Equal(t, MsgMissingPlayerName, f.Content)
}

func TestConnection_EmptyPrompt(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, protocol.NewPrompt("  \n", nil))
	f := readFrame(t, conn)
	assert.Equal(t, protocol.TypeError, f.Type)
	assert.Equal(t, MsgEmptyPrompt, f.Content)
}

func TestConnection_MalformedFramesIgnored(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"teleport"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"tool_result","toolCallId":"nope","result":"{}"}`)))
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	// The connection still answers afterwards.
	send(t, conn, protocol.NewRegister(""))
	f := readFrame(t, conn)
	assert.Equal(t, MsgMissingPlayerName, f.Content)
}

func TestConnection_BusyThenCancel(t *testing.T) {
	env := newTestEnv(t,
		call("p", pipeline.SubmitPlanTool, hutPlan),
		call("c1", "set", `{}`),
		say("Stopped."),
	)
	conn := env.dial(t)
	send(t, conn, protocol.NewRegister("Alex"))
	send(t, conn, protocol.NewPrompt("build a hut", nil))

	// Hold the first action unanswered.
	pending, _ := readUntilNoReply(t, conn, protocol.TypeToolCall)
	assert.Equal(t, "set", pending.Name)

	send(t, conn, protocol.NewPrompt("something else", nil))
	f := readFrame(t, conn)
	assert.Equal(t, protocol.TypeError, f.Type)
	assert.Equal(t, MsgBusy, f.Content)

	sess, ok := env.registry.LookupByPeerName("Alex")
	require.True(t, ok)
	assert.Len(t, sess.History(), 2)

	send(t, conn, protocol.NewCancel())
	errFrame, seen := readUntilNoReply(t, conn, protocol.TypeError)
	assert.Equal(t, "Build cancelled by player", errFrame.Content)
	for _, f := range seen {
		assert.NotEqual(t, protocol.TypeStep, f.Type, "no step may start after cancel")
		assert.NotEqual(t, protocol.TypeDone, f.Type)
	}

	// A late reply for the cancelled call is ignored.
	send(t, conn, protocol.NewToolResult(pending.ToolCallID, types.ActionResult{Success: true}))
	assert.False(t, sess.Busy())
	assert.Equal(t, 0, sess.Actions().Pending())
}

func TestConnection_CloseDestroysSession(t *testing.T) {
	env := newTestEnv(t)
	conn := env.dial(t)

	send(t, conn, protocol.NewRegister("Steve"))
	require.Eventually(t, func() bool {
		_, ok := env.registry.LookupByPeerName("Steve")
		return ok
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, env.registry.Count())

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return env.registry.Count() == 0 }, time.Second, 10*time.Millisecond)
	_, ok := env.registry.LookupByPeerName("Steve")
	assert.False(t, ok)
}

func TestConnection_ReRegisterSupersedes(t *testing.T) {
	env := newTestEnv(t)
	first := env.dial(t)
	second := env.dial(t)

	send(t, first, protocol.NewRegister("Steve"))
	require.Eventually(t, func() bool { _, ok := env.registry.LookupByPeerName("Steve"); return ok }, time.Second, 10*time.Millisecond)
	firstSess, _ := env.registry.LookupByPeerName("Steve")

	send(t, second, protocol.NewRegister("Steve"))
	require.Eventually(t, func() bool {
		s, ok := env.registry.LookupByPeerName("Steve")
		return ok && s != firstSess
	}, time.Second, 10*time.Millisecond)

	first.Close()
	require.Eventually(t, func() bool { return env.registry.Count() == 1 }, time.Second, 10*time.Millisecond)
	_, ok := env.registry.LookupByPeerName("Steve")
	assert.True(t, ok)
}

func TestConnection_Pings(t *testing.T) {
	env := newTestEnv(t)
	env.srv.config.PingInterval = 50 * time.Millisecond
	conn := env.dial(t)

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return conn.WriteControl(websocket.PongMessage, nil, time.Now().Add(time.Second))
	})
	// The ping handler only runs while reading.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

// readUntilNoReply reads frames until one of type typ arrives without
// answering tool calls.
func readUntilNoReply(t *testing.T, conn *websocket.Conn, typ string) (protocol.ServerFrame, []protocol.ServerFrame) {
	t.Helper()
	var seen []protocol.ServerFrame
	for {
		f := readFrame(t, conn)
		seen = append(seen, f)
		if f.Type == typ {
			return f, seen
		}
	}
}
