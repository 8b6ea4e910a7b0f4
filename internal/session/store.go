package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Store is the SQLite-backed Repository implementation.
// Timestamps are stored as integer nanoseconds so append ordering survives
// round-trips exactly.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Compile-time check that Store satisfies Repository.
var _ Repository = (*Store)(nil)

// NewStore creates a Store over an opened and migrated database handle.
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// CreateSession creates a new conversation session.
func (s *Store) CreateSession(ctx context.Context, title string) (Session, error) {
	sess := Session{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: time.Now(),
	}
	sess.UpdatedAt = sess.CreatedAt

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		sess.ID.String(), sess.Title, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano())
	if err != nil {
		return Session{}, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID, "title", title)
	return sess, nil
}

// GetSession returns a session by ID, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = ?`, id.String())

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return Session{}, fmt.Errorf("getting session: %w", err)
	}
	return sess, nil
}

// ListSessions returns all sessions, most recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// RenameSession updates a session's title.
func (s *Store) RenameSession(ctx context.Context, id uuid.UUID, title string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET title = ?, updated_at = ? WHERE id = ?`,
		title, time.Now().UnixNano(), id.String())
	if err != nil {
		return fmt.Errorf("renaming session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renaming session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSession removes a session and its messages (FK cascade).
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendMessage appends one message to a session.
// Sequence numbers are dense and ascending; creation timestamps are strictly
// increasing within a session even when the clock has not advanced.
func (s *Store) AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (Message, error) {
	if role != RoleUser && role != RoleAssistant {
		return Message{}, fmt.Errorf("invalid role %q", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("beginning append: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var exists int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM sessions WHERE id = ?`, sessionID.String()).Scan(&exists)
	if err != nil {
		return Message{}, fmt.Errorf("checking session: %w", err)
	}
	if exists == 0 {
		return Message{}, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}

	var maxSeq int
	var maxCreatedNS sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence_number), 0), MAX(created_at)
		 FROM messages WHERE session_id = ?`, sessionID.String()).Scan(&maxSeq, &maxCreatedNS)
	if err != nil {
		return Message{}, fmt.Errorf("reading sequence: %w", err)
	}

	createdNS := time.Now().UnixNano()
	if maxCreatedNS.Valid && createdNS <= maxCreatedNS.Int64 {
		createdNS = maxCreatedNS.Int64 + 1
	}

	msg := Message{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Role:           role,
		Content:        content,
		SequenceNumber: maxSeq + 1,
		CreatedAt:      time.Unix(0, createdNS),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (id, session_id, role, content, sequence_number, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID.String(), sessionID.String(), msg.Role, msg.Content, msg.SequenceNumber, createdNS)
	if err != nil {
		return Message{}, fmt.Errorf("appending message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE sessions SET updated_at = ? WHERE id = ?`, createdNS, sessionID.String())
	if err != nil {
		return Message{}, fmt.Errorf("touching session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("committing append: %w", err)
	}

	return msg, nil
}

// Messages returns a session's messages in append order.
func (s *Store) Messages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, role, content, sequence_number, created_at
		 FROM messages WHERE session_id = ? ORDER BY sequence_number ASC`,
		sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("listing messages: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var messages []Message
	for rows.Next() {
		var (
			msg               Message
			idStr, sessionStr string
			createdNS         int64
		)
		if err := rows.Scan(&idStr, &sessionStr, &msg.Role, &msg.Content, &msg.SequenceNumber, &createdNS); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		if msg.ID, err = uuid.Parse(idStr); err != nil {
			return nil, fmt.Errorf("parsing message id: %w", err)
		}
		if msg.SessionID, err = uuid.Parse(sessionStr); err != nil {
			return nil, fmt.Errorf("parsing session id: %w", err)
		}
		msg.CreatedAt = time.Unix(0, createdNS)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return messages, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanSession.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var (
		sess                 Session
		idStr                string
		createdNS, updatedNS int64
	)
	if err := row.Scan(&idStr, &sess.Title, &createdNS, &updatedNS); err != nil {
		return Session{}, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Session{}, fmt.Errorf("parsing session id: %w", err)
	}
	sess.ID = id
	sess.CreatedAt = time.Unix(0, createdNS)
	sess.UpdatedAt = time.Unix(0, updatedNS)
	return sess, nil
}
