package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/internal/logging"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
	"github.com/WilliamStanton/vibe-build/pkg/types"
)

// Session is the server-side state of one live peer connection.
type Session struct {
	ID string

	mu        sync.Mutex
	peerName  string
	history   []types.Message
	cancelled bool
	busy      bool

	sender     protocol.Sender
	correlator *action.Correlator

	// ctx is cancelled when the session is destroyed.
	ctx    context.Context
	cancel context.CancelFunc

	log zerolog.Logger
}

func newSession(id string, sender protocol.Sender, opts []action.Option) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:         id,
		sender:     sender,
		correlator: action.NewCorrelator(id, sender, opts...),
		ctx:        ctx,
		cancel:     cancel,
		log:        logging.Session(id),
	}
}

// TryBegin marks the session busy, clears the cancelled flag and lets
// action calls through again. It returns false, changing nothing, when a
// run is already active.
func (s *Session) TryBegin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return false
	}
	s.busy = true
	s.cancelled = false
	s.correlator.Resume()
	return true
}

// End clears the busy flag.
func (s *Session) End() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Busy reports whether a run is active.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Cancel sets the cancelled flag and fails every pending action call.
// It returns the number of calls that were pending.
func (s *Session) Cancel() int {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
	return s.correlator.CancelAll(action.MsgCancelled)
}

// Cancelled reports whether the current run was cancelled.
func (s *Session) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// AppendHistory appends messages to the conversation.
func (s *Session) AppendHistory(msgs ...types.Message) {
	s.mu.Lock()
	s.history = append(s.history, msgs...)
	s.mu.Unlock()
}

// History returns a copy of the conversation.
func (s *Session) History() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.history))
	copy(out, s.history)
	return out
}

// PeerName returns the registered player name, if any.
func (s *Session) PeerName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerName
}

func (s *Session) setPeerName(name string) (previous string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	previous, s.peerName = s.peerName, name
	return previous
}

// Send writes a frame to the peer.
func (s *Session) Send(frame protocol.Outbound) error {
	return s.sender.Send(frame)
}

// Actions returns the session's action correlator.
func (s *Session) Actions() *action.Correlator {
	return s.correlator
}

// Context is cancelled when the session is destroyed.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Logger returns a logger tagged with the session id.
func (s *Session) Logger() *zerolog.Logger {
	return &s.log
}

// Info is a diagnostic snapshot of a session.
type Info struct {
	ID       string `json:"id"`
	PeerName string `json:"peerName,omitempty"`
	Busy     bool   `json:"busy"`
	History  int    `json:"history"`
	Pending  int    `json:"pendingActions"`
}

// Info returns a diagnostic snapshot.
func (s *Session) Info() Info {
	s.mu.Lock()
	info := Info{ID: s.ID, PeerName: s.peerName, Busy: s.busy, History: len(s.history)}
	s.mu.Unlock()
	info.Pending = s.correlator.Pending()
	return info
}
