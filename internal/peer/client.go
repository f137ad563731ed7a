package peer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

const (
	// DefaultURL is the local WebSocket listener.
	DefaultURL = "ws://localhost:8080/"
	// DefaultReconnectInterval is the first reconnect delay.
	DefaultReconnectInterval = 500 * time.Millisecond
	// maxReconnectInterval caps the reconnect delay.
	maxReconnectInterval = 15 * time.Second
	writeWait            = 10 * time.Second
)

// ErrClosed is returned when the server closes the connection.
var ErrClosed = errors.New("connection closed by server")

// Responder produces the outcome reported for one action call.
type Responder func(call protocol.ServerFrame) types.ActionResult

// DryRun reports every action as a success without performing it.
func DryRun(call protocol.ServerFrame) types.ActionResult {
	return types.ActionResult{Success: true, Message: "dry-run: " + call.Name}
}

// Config configures a Client.
type Config struct {
	URL        string
	PlayerName string
	// Prompt, when set, is sent once after the first successful register.
	Prompt   string
	Position *types.Vec3

	// Reconnect redials with exponential backoff after a dropped connection.
	Reconnect         bool
	ReconnectInterval time.Duration

	// ExitOnDone stops the client after the first done or error frame.
	ExitOnDone bool

	Responder Responder
	OnFrame   func(protocol.ServerFrame)
}

// Client is a simulated game connection.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	prompted bool
	log      zerolog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

// New creates a client. Empty fields fall back to defaults.
func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Responder == nil {
		cfg.Responder = DryRun
	}
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = DefaultReconnectInterval
	}
	return &Client{
		cfg: cfg,
		log: logging.Component("peer"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// Run connects and serves frames until ctx is done, the server goes away
// without Reconnect, or a run finishes with ExitOnDone.
func (c *Client) Run(ctx context.Context) error {
	if !c.cfg.Reconnect {
		return c.session(ctx, func() {})
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.ReconnectInterval
	exp.MaxInterval = maxReconnectInterval
	exp.MaxElapsedTime = 0
	exp.Reset()

	return backoff.RetryNotify(func() error {
		err := c.session(ctx, exp.Reset)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}, backoff.WithContext(exp, ctx), func(err error, wait time.Duration) {
		c.log.Warn().Err(err).Dur("retryIn", wait).Msg("Peer disconnected")
	})
}

// Cancel asks the server to stop the current build.
func (c *Client) Cancel() error {
	return c.write(protocol.NewCancel())
}

func (c *Client) write(frame protocol.PeerFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("not connected")
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(frame)
}

// session runs one connection. connected is called once registered.
func (c *Client) session(ctx context.Context, connected func()) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	if err := c.write(protocol.NewRegister(c.cfg.PlayerName)); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	connected()
	c.log.Info().Str("url", c.cfg.URL).Str("player", c.cfg.PlayerName).Msg("Peer connected")

	if c.cfg.Prompt != "" && !c.prompted {
		if err := c.write(protocol.NewPrompt(c.cfg.Prompt, c.cfg.Position)); err != nil {
			return fmt.Errorf("prompt: %w", err)
		}
		c.prompted = true
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrClosed
			}
			return fmt.Errorf("read: %w", err)
		}

		f, err := protocol.DecodeServerFrame(data)
		if err != nil {
			c.log.Debug().Err(err).Msg("Peer ignoring frame")
			continue
		}
		if c.cfg.OnFrame != nil {
			c.cfg.OnFrame(f)
		}

		switch f.Type {
		case protocol.TypeToolCall:
			result := c.cfg.Responder(f)
			if err := c.write(protocol.NewToolResult(f.ToolCallID, result)); err != nil {
				return fmt.Errorf("tool result: %w", err)
			}
		case protocol.TypeDone, protocol.TypeError:
			if c.cfg.ExitOnDone {
				c.close(conn)
				return nil
			}
		}
	}
}

func (c *Client) close(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}
