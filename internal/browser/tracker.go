package browser

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Tracker holds sessions left open after their tool call returned.
type Tracker struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*Session)}
}

func (t *Tracker) Add(s *Session) {
	if s == nil {
		return
	}
	t.mu.Lock()
	t.sessions[s.ID] = s
	t.mu.Unlock()
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// CloseAll closes and forgets every tracked session, returning how many were
// closed.
func (t *Tracker) CloseAll() (int, error) {
	t.mu.Lock()
	sessions := t.sessions
	t.sessions = make(map[string]*Session)
	t.mu.Unlock()

	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var errs []error
	for _, id := range ids {
		if err := sessions[id].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close session %s: %w", id, err))
		}
	}
	return len(ids), errors.Join(errs...)
}
