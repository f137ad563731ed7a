package server

import (
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/pipeline"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/internal/session"
)

const (
	// maxFrameSize bounds a single inbound frame.
	maxFrameSize = 1 << 20
	// writeWait bounds a single outbound write.
	writeWait = 10 * time.Second
)

// Messages sent to the peer for rejected requests.
const (
	MsgMissingPlayerName = "Missing playerName in register message."
	MsgEmptyPrompt       = "Prompt cannot be empty."
	MsgBusy              = "Build already in progress. Wait or cancel first."
)

// connection is one game client. It is the session's frame sender.
type connection struct {
	srv  *Server
	conn *websocket.Conn
	sess *session.Session

	writeMu sync.Mutex
}

// Send writes one frame. Safe for concurrent use.
func (c *connection) Send(frame protocol.Outbound) error {
	data, err := protocol.Encode(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connection) ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// handleWebSocket upgrades the request and runs the connection until the
// peer disconnects.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	c := &connection{srv: s, conn: conn}
	sess, err := s.registry.Create(session.NewID(), c)
	if err != nil {
		logging.Error().Err(err).Msg("Could not create session")
		return
	}
	c.sess = sess
	log := sess.Logger()
	log.Info().Str("remote", r.RemoteAddr).Int("active", s.registry.Count()).Msg("Client connected")

	defer func() {
		s.registry.Destroy(sess.ID)
		log.Info().Int("active", s.registry.Count()).Msg("Client disconnected")
	}()

	conn.SetReadLimit(maxFrameSize)
	stopPing := c.keepalive(s.config.PingInterval)
	defer stopPing()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				log.Debug().Err(err).Msg("Read failed")
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		c.handle(data)
	}
}

// keepalive pings the peer every interval and extends the read deadline
// on every pong. It returns a function that stops the pinger.
func (c *connection) keepalive(interval time.Duration) func() {
	if interval <= 0 {
		return func() {}
	}
	pongWait := 2 * interval
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// handle dispatches one inbound frame. It never blocks on a build.
func (c *connection) handle(data []byte) {
	log := c.sess.Logger()

	in, err := protocol.Decode(data)
	if err != nil {
		log.Debug().Err(err).Msg("Ignoring frame")
		return
	}

	switch f := in.(type) {
	case *protocol.Register:
		name := strings.TrimSpace(f.PlayerName)
		if name == "" {
			c.reject(MsgMissingPlayerName)
			return
		}
		if err := c.srv.registry.BindPeerName(c.sess, name); err != nil {
			log.Warn().Err(err).Msg("Register failed")
			return
		}
		log.Info().Str("player", name).Msg("Registered player")

	case *protocol.ActionResult:
		if f.ToolCallID == "" {
			log.Debug().Msg("Ignoring action result without toolCallId")
			return
		}
		if !c.sess.Actions().Resolve(f.ToolCallID, f.Result) {
			log.Debug().Str("toolCallId", f.ToolCallID).Msg("No pending call for result")
		}

	case *protocol.Cancel:
		n := c.sess.Cancel()
		log.Info().Int("pending", n).Msg("Client requested cancel")

	case *protocol.Prompt:
		prompt := strings.TrimSpace(f.Content)
		if prompt == "" {
			c.reject(MsgEmptyPrompt)
			return
		}
		c.srv.startBuild(c.sess, pipeline.Request{Prompt: prompt, Position: f.Position()})

	case *protocol.Unknown:
		log.Debug().Str("type", f.Type).Msg("Ignoring unknown frame type")
	}
}

func (c *connection) reject(message string) {
	if err := c.Send(protocol.Error(message)); err != nil {
		c.sess.Logger().Debug().Err(err).Msg("Could not send error frame")
	}
}

// startBuild starts a run for sess on its own goroutine. The run ends
// when it completes or the session is destroyed.
func (s *Server) startBuild(sess *session.Session, req pipeline.Request) error {
	_, err := s.runner.Start(sess.Context(), sess, req)
	if errors.Is(err, pipeline.ErrBusy) {
		if sendErr := sess.Send(protocol.Error(MsgBusy)); sendErr != nil {
			sess.Logger().Debug().Err(sendErr).Msg("Could not send error frame")
		}
		return err
	}
	if err != nil {
		return err
	}
	sess.Logger().Info().Str("prompt", req.Prompt).Stringer("position", req.Position).Msg("Prompt received")
	return nil
}
