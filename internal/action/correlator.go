package action

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Outcome messages synthesized by the correlator.
const (
	MsgInvalidResult = "invalid result"
	MsgMissingResult = "missing result"
	MsgTimedOut      = "action timed out"
	MsgCancelled     = "cancelled by player"
)

// pendingCall is a single-use completion handle.
type pendingCall struct {
	name   string
	result chan types.ActionResult
}

// Correlator matches action replies from the peer to the calls that
// requested them. There is one Correlator per session.
type Correlator struct {
	// sendMu spans registering a call and sending its frame, so CancelAll
	// never lands between the two.
	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[string]*pendingCall
	// halted is set by CancelAll and cleared by Resume. Invoke fails with
	// haltMsg without sending while it is set.
	halted  bool
	haltMsg string

	sessionID string
	sender    protocol.Sender
	bus       *event.Bus
	timeout   time.Duration
}

// Option configures a Correlator.
type Option func(*Correlator)

// WithTimeout bounds each call. Zero waits until reply or cancellation.
func WithTimeout(d time.Duration) Option {
	return func(c *Correlator) { c.timeout = d }
}

// WithBus publishes action events on bus.
func WithBus(bus *event.Bus) Option {
	return func(c *Correlator) { c.bus = bus }
}

// NewCorrelator creates a correlator that sends tool_call frames through sender.
func NewCorrelator(sessionID string, sender protocol.Sender, opts ...Option) *Correlator {
	c := &Correlator{
		pending:   make(map[string]*pendingCall),
		sessionID: sessionID,
		sender:    sender,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Invoke sends an action call to the peer and blocks until it is resolved,
// cancelled, timed out, or ctx is done. Peer-side failures are reported in
// the returned ActionResult; the error is non-nil only when the call could
// not be sent or ctx ended first. After CancelAll and before Resume, Invoke
// returns the cancel result without sending anything.
func (c *Correlator) Invoke(ctx context.Context, name string, args json.RawMessage) (types.ActionResult, error) {
	callID := ulid.Make().String()
	call := &pendingCall{name: name, result: make(chan types.ActionResult, 1)}

	c.sendMu.Lock()
	c.mu.Lock()
	if c.halted {
		msg := c.haltMsg
		c.mu.Unlock()
		c.sendMu.Unlock()
		return types.ActionResult{Success: false, Message: msg}, nil
	}
	c.pending[callID] = call
	c.mu.Unlock()

	c.publish(event.ActionRequested, event.ActionRequestedData{
		SessionID: c.sessionID,
		CallID:    callID,
		Name:      name,
	})

	err := c.sender.Send(protocol.ToolCall(callID, name, args))
	c.sendMu.Unlock()
	if err != nil {
		c.take(callID)
		return types.ActionResult{}, fmt.Errorf("send %s: %w", name, err)
	}

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var result types.ActionResult
	select {
	case result = <-call.result:
	case <-timeout:
		if c.take(callID) != nil {
			result = types.ActionResult{Success: false, Message: MsgTimedOut}
		} else {
			// Resolved concurrently with the timer firing.
			result = <-call.result
		}
	case <-ctx.Done():
		if c.take(callID) != nil {
			return types.ActionResult{}, ctx.Err()
		}
		result = <-call.result
	}

	c.publish(event.ActionResolved, event.ActionResolvedData{
		SessionID: c.sessionID,
		CallID:    callID,
		Name:      name,
		Result:    result,
	})
	return result, nil
}

// Resolve fulfils the call with the given id. Unknown or already-resolved
// ids are ignored and return false.
func (c *Correlator) Resolve(callID string, raw []byte) bool {
	result := ParseResult(raw)

	c.mu.Lock()
	defer c.mu.Unlock()

	call, ok := c.pending[callID]
	if !ok {
		return false
	}
	delete(c.pending, callID)
	call.result <- result
	return true
}

// CancelAll fails every pending call with message and returns how many
// calls were pending. Later calls fail with the same message, unsent,
// until Resume. A call whose frame is being written is waited for and
// then failed.
func (c *Correlator) CancelAll(message string) int {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	c.halted, c.haltMsg = true, message

	n := len(c.pending)
	for id, call := range c.pending {
		delete(c.pending, id)
		call.result <- types.ActionResult{Success: false, Message: message}
	}
	return n
}

// Resume lets Invoke send again after CancelAll.
func (c *Correlator) Resume() {
	c.mu.Lock()
	c.halted = false
	c.mu.Unlock()
}

// Pending returns the number of outstanding calls.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// take removes and returns the pending call, or nil.
func (c *Correlator) take(callID string) *pendingCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	call, ok := c.pending[callID]
	if !ok {
		return nil
	}
	delete(c.pending, callID)
	return call
}

func (c *Correlator) publish(t event.EventType, data any) {
	if c.bus != nil {
		c.bus.Publish(event.Event{Type: t, Data: data})
	}
}

// ParseResult decodes a peer outcome payload. Only an explicit
// "success": false is a failure.
func ParseResult(raw []byte) types.ActionResult {
	if raw == nil {
		return types.ActionResult{Success: false, Message: MsgMissingResult}
	}
	var wire struct {
		Success *bool  `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return types.ActionResult{Success: false, Message: MsgInvalidResult}
	}
	return types.ActionResult{
		Success: wire.Success == nil || *wire.Success,
		Message: wire.Message,
	}
}
