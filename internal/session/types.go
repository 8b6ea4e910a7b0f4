package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound indicates the requested session does not exist.
var ErrNotFound = errors.New("session not found")

// Session represents a persisted conversation session.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message represents a single persisted conversation message.
type Message struct {
	ID             uuid.UUID `json:"id"`
	SessionID      uuid.UUID `json:"sessionId"`
	Role           string    `json:"role"` // "user" | "assistant"
	Content        string    `json:"content"`
	SequenceNumber int       `json:"sequenceNumber"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Repository is the persistence boundary for sessions and their messages.
// Messages are append-only: implementations never mutate or delete a message
// short of deleting its whole session. The persistence mechanism (SQLite,
// file, database) is swappable without touching pipeline logic.
type Repository interface {
	CreateSession(ctx context.Context, title string) (Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	ListSessions(ctx context.Context) ([]Session, error)
	RenameSession(ctx context.Context, id uuid.UUID, title string) error
	DeleteSession(ctx context.Context, id uuid.UUID) error

	AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (Message, error)
	Messages(ctx context.Context, sessionID uuid.UUID) ([]Message, error)
}
