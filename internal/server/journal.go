package server

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/WilliamStanton/vibe-build/internal/event"
	"github.com/WilliamStanton/vibe-build/internal/logging"
)

// DefaultJournalSize is how many events the journal keeps.
const DefaultJournalSize = 200

// JournalEntry is one recorded event.
type JournalEntry struct {
	ID   string          `json:"id"`
	Type event.EventType `json:"type"`
	Time time.Time       `json:"time"`
	Data any             `json:"data"`
}

// Journal keeps the most recent events published on the bus, consumed
// from its watermill mirror.
type Journal struct {
	mu      sync.RWMutex
	entries []JournalEntry
	next    int
	full    bool
}

// NewJournal creates a journal holding up to size entries.
func NewJournal(size int) *Journal {
	if size <= 0 {
		size = DefaultJournalSize
	}
	return &Journal{entries: make([]JournalEntry, size)}
}

// Run subscribes to bus and records events until ctx is done.
func (j *Journal) Run(ctx context.Context, bus *event.Bus) error {
	messages, err := bus.Messages(ctx)
	if err != nil {
		return err
	}
	log := logging.Component("journal")
	go func() {
		for msg := range messages {
			e, err := event.Decode(msg)
			if err != nil {
				log.Warn().Err(err).Str("id", msg.UUID).Msg("Undecodable event")
				msg.Ack()
				continue
			}
			j.add(JournalEntry{ID: msg.UUID, Type: e.Type, Time: time.Now(), Data: e.Data})
			msg.Ack()
		}
	}()
	return nil
}

func (j *Journal) add(e JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries[j.next] = e
	j.next = (j.next + 1) % len(j.entries)
	if j.next == 0 {
		j.full = true
	}
}

// Recent returns up to limit entries, oldest first. limit <= 0 returns all.
func (j *Journal) Recent(limit int) []JournalEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()

	out := make([]JournalEntry, 0, len(j.entries))
	if j.full {
		out = append(out, j.entries[j.next:]...)
	}
	out = append(out, j.entries[:j.next]...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// recentEvents handles GET /api/events?limit=N.
func (s *Server) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, s.journal.Recent(limit))
}
