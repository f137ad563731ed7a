package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WilliamStanton/vibe-build/internal/action"
	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/protocol"
)

var (
	// ErrDuplicateID is returned by Create on an id collision.
	ErrDuplicateID = errors.New("session id already exists")
	// ErrEmptyName is returned by BindPeerName for a blank name.
	ErrEmptyName = errors.New("peer name is empty")
	// ErrUnknownSession is returned when binding a session that is not registered.
	ErrUnknownSession = errors.New("session not registered")
)

// NewID returns a short random session id.
func NewID() string {
	return uuid.NewString()[:8]
}

// Registry owns all live sessions and the peer name bindings that route
// side-channel requests to them.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	names    map[string]string // peer name -> session id

	bus           *event.Bus
	actionTimeout time.Duration
}

// Option configures a Registry.
type Option func(*Registry)

// WithBus publishes session events on bus and hands it to each session's
// correlator.
func WithBus(bus *event.Bus) Option {
	return func(r *Registry) { r.bus = bus }
}

// WithActionTimeout bounds each action call. Zero means no timeout.
func WithActionTimeout(d time.Duration) Option {
	return func(r *Registry) { r.actionTimeout = d }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		names:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create registers a new session whose frames are written through sender.
func (r *Registry) Create(id string, sender protocol.Sender) (*Session, error) {
	var opts []action.Option
	if r.bus != nil {
		opts = append(opts, action.WithBus(r.bus))
	}
	if r.actionTimeout > 0 {
		opts = append(opts, action.WithTimeout(r.actionTimeout))
	}
	s := newSession(id, sender, opts)

	r.mu.Lock()
	if _, exists := r.sessions[id]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrDuplicateID, id)
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.publish(event.SessionCreated, event.SessionData{SessionID: id})
	return s, nil
}

// BindPeerName binds name to s, superseding any session previously bound
// to it. A name s held before is released.
func (r *Registry) BindPeerName(s *Session, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	r.mu.Lock()
	if r.sessions[s.ID] != s {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSession, s.ID)
	}
	superseded := ""
	if prev, ok := r.names[name]; ok && prev != s.ID {
		superseded = prev
	}
	r.names[name] = s.ID
	if old := s.setPeerName(name); old != "" && old != name && r.names[old] == s.ID {
		delete(r.names, old)
	}
	r.mu.Unlock()

	r.publish(event.SessionRegistered, event.SessionRegisteredData{
		SessionID:  s.ID,
		PeerName:   name,
		Superseded: superseded,
	})
	return nil
}

// LookupByPeerName returns the live session bound to name.
func (r *Registry) LookupByPeerName(name string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.names[strings.TrimSpace(name)]
	if !ok {
		return nil, false
	}
	s, ok := r.sessions[id]
	return s, ok
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Destroy removes the session, releases its name binding if it still owns
// it, fails its pending action calls, and cancels its context. Unknown ids
// are ignored.
func (r *Registry) Destroy(id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.sessions, id)
	name := s.PeerName()
	if name != "" && r.names[name] == id {
		delete(r.names, name)
	}
	r.mu.Unlock()

	s.Actions().CancelAll(action.MsgCancelled)
	s.cancel()

	r.publish(event.SessionDeleted, event.SessionData{SessionID: id, PeerName: name})
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// List returns diagnostic snapshots of all sessions, sorted by id.
func (r *Registry) List() []Info {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	infos := make([]Info, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}

func (r *Registry) publish(t event.EventType, data any) {
	if r.bus != nil {
		r.bus.Publish(event.Event{Type: t, Data: data})
	}
}
