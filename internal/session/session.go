// Package session provides conversation history: an in-memory append-only
// turn sequence and a SQLite-backed repository for persistent sessions.
//
// History is append-only by construction: no turn is ever mutated or removed
// once appended, and timestamps are strictly increasing. Edits are modeled as
// new turns. This underlies reproducibility of any generated reply from its
// exact history snapshot.
package session

import (
	"sync"
	"time"
)

// Role constants define valid turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is a single conversation turn.
type Turn struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// History holds the ordered turn sequence of one conversation.
//
// The zero value is NOT useful - use NewHistory() to create instances.
// History is safe for concurrent use by multiple goroutines, but turns within
// one session are expected to be produced sequentially by the pipeline.
type History struct {
	mu    sync.RWMutex
	turns []Turn
	// now is swappable for tests; defaults to time.Now.
	now func() time.Time
}

// NewHistory creates an empty History.
func NewHistory() *History {
	return &History{now: time.Now}
}

// AppendUser appends a user turn and returns it.
func (h *History) AppendUser(text string) Turn {
	return h.append(RoleUser, text)
}

// AppendAssistant appends an assistant turn and returns it.
func (h *History) AppendAssistant(text string) Turn {
	return h.append(RoleAssistant, text)
}

// append records a turn with a timestamp strictly greater than the previous
// turn's, bumping by a nanosecond when the clock has not advanced.
func (h *History) append(role, text string) Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	ts := h.now()
	if n := len(h.turns); n > 0 && !ts.After(h.turns[n-1].CreatedAt) {
		ts = h.turns[n-1].CreatedAt.Add(time.Nanosecond)
	}

	turn := Turn{Role: role, Content: text, CreatedAt: ts}
	h.turns = append(h.turns, turn)
	return turn
}

// Turns returns a copy of all turns in append order.
func (h *History) Turns() []Turn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	result := make([]Turn, len(h.turns))
	copy(result, h.turns)
	return result
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.turns)
}
