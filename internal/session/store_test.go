package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/devsharma/sakhi/internal/database"
	"github.com/devsharma/sakhi/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "sessions.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing database: %v", err)
		}
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrating database: %v", err)
	}
	return NewStore(db, log.NewNop())
}

func TestStore_CreateAndGetSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "Weekly planning")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected non-nil session ID")
	}

	got, err := store.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "Weekly planning" {
		t.Fatalf("title = %q, want %q", got.Title, "Weekly planning")
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("created_at round-trip mismatch: %v vs %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestStore_GetSession_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListSessions_OrderedByUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.CreateSession(ctx, "first")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := store.CreateSession(ctx, "second")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Touch the first session; it should sort to the front.
	if _, err := store.AppendMessage(ctx, first.ID, RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	sessions, err := store.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != first.ID {
		t.Fatalf("expected most recently updated session first, got %v then %v",
			sessions[0].ID, second.ID)
	}
}

func TestStore_RenameSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "old title")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.RenameSession(ctx, created.ID, "new title"); err != nil {
		t.Fatalf("RenameSession: %v", err)
	}

	got, err := store.GetSession(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if got.Title != "new title" {
		t.Fatalf("title = %q, want %q", got.Title, "new title")
	}

	if err := store.RenameSession(ctx, uuid.New(), "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown session, got %v", err)
	}
}

func TestStore_DeleteSession_CascadesMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "doomed")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := store.AppendMessage(ctx, created.ID, RoleUser, "hello"); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	if err := store.DeleteSession(ctx, created.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := store.GetSession(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	messages, err := store.Messages(ctx, created.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != 0 {
		t.Fatalf("expected cascade delete of messages, got %d", len(messages))
	}

	if err := store.DeleteSession(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestStore_AppendMessage_SequenceAndTimestamps(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "chat")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	const n = 10
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := store.AppendMessage(ctx, created.ID, role, "msg"); err != nil {
			t.Fatalf("AppendMessage %d: %v", i, err)
		}
	}

	messages, err := store.Messages(ctx, created.ID)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(messages) != n {
		t.Fatalf("expected %d messages, got %d", n, len(messages))
	}
	for i, msg := range messages {
		if msg.SequenceNumber != i+1 {
			t.Fatalf("message %d has sequence %d", i, msg.SequenceNumber)
		}
		if i > 0 && !msg.CreatedAt.After(messages[i-1].CreatedAt) {
			t.Fatalf("message %d timestamp %v not after previous %v",
				i, msg.CreatedAt, messages[i-1].CreatedAt)
		}
	}
}

func TestStore_AppendMessage_UnknownSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.AppendMessage(context.Background(), uuid.New(), RoleUser, "hello")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_AppendMessage_InvalidRole(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.CreateSession(ctx, "chat")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if _, err := store.AppendMessage(ctx, created.ID, "system", "nope"); err == nil {
		t.Fatal("expected error for invalid role")
	}
}
