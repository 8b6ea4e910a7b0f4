package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devsharma/sakhi/internal/log"
	"github.com/devsharma/sakhi/internal/security"
	"github.com/devsharma/sakhi/internal/session"
)

const cannedReply = "Arre yaar, itni bakwaas mat kar! Thoda dimag laga ke baat kar."

// stubResponder counts pipeline invocations and returns a fixed answer.
type stubResponder struct {
	mu      sync.Mutex
	answer  string
	err     error
	calls   int
	lastMsg string
}

func (s *stubResponder) Respond(ctx context.Context, sessionID uuid.UUID, message string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.lastMsg = message
	if s.err != nil {
		return "", s.err
	}
	return s.answer, nil
}

func (s *stubResponder) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// fakeRepo is an in-memory session.Repository with call counting.
type fakeRepo struct {
	mu          sync.Mutex
	sessions    map[uuid.UUID]session.Session
	messages    map[uuid.UUID][]session.Message
	createCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		sessions: make(map[uuid.UUID]session.Session),
		messages: make(map[uuid.UUID][]session.Message),
	}
}

func (r *fakeRepo) CreateSession(ctx context.Context, title string) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.createCalls++
	s := session.Session{ID: uuid.New(), Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	r.sessions[s.ID] = s
	return s, nil
}

func (r *fakeRepo) GetSession(ctx context.Context, id uuid.UUID) (session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) ListSessions(ctx context.Context) ([]session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out, nil
}

func (r *fakeRepo) RenameSession(ctx context.Context, id uuid.UUID, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return session.ErrNotFound
	}
	s.Title = title
	r.sessions[id] = s
	return nil
}

func (r *fakeRepo) DeleteSession(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return session.ErrNotFound
	}
	delete(r.sessions, id)
	delete(r.messages, id)
	return nil
}

func (r *fakeRepo) AppendMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (session.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sessionID]; !ok {
		return session.Message{}, session.ErrNotFound
	}
	msg := session.Message{
		ID:             uuid.New(),
		SessionID:      sessionID,
		Role:           role,
		Content:        content,
		SequenceNumber: len(r.messages[sessionID]) + 1,
		CreatedAt:      time.Now(),
	}
	r.messages[sessionID] = append(r.messages[sessionID], msg)
	return msg, nil
}

func (r *fakeRepo) Messages(ctx context.Context, sessionID uuid.UUID) ([]session.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[sessionID]
	out := make([]session.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func newTestServer(t *testing.T, responder Responder, repo session.Repository) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Responder: responder,
		Screener:  security.NewFilter([]string{"fuck", "shit", "stupid", "bakwaas"}, cannedReply),
		Sessions:  repo,
		Logger:    log.NewNop(),
	})
	require.NoError(t, err)
	return srv
}

func postChat(t *testing.T, srv *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestChat_DenylistShortCircuit(t *testing.T) {
	responder := &stubResponder{answer: "should never be used"}
	repo := newFakeRepo()
	srv := newTestServer(t, responder, repo)

	w := postChat(t, srv, `{"message":"bakwaas"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cannedReply, resp.Answer)

	// The screened request makes zero pipeline and zero session calls.
	assert.Equal(t, 0, responder.callCount())
	assert.Equal(t, 0, repo.createCalls)
}

func TestChat_DenylistCaseInsensitive(t *testing.T) {
	responder := &stubResponder{answer: "unused"}
	srv := newTestServer(t, responder, newFakeRepo())

	w := postChat(t, srv, `{"message":"yeh sab BAKWAAS hai"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, cannedReply, resp.Answer)
	assert.Equal(t, 0, responder.callCount())
}

func TestChat_NewSession(t *testing.T) {
	responder := &stubResponder{answer: "Meetings Monday ko hain!"}
	repo := newFakeRepo()
	srv := newTestServer(t, responder, repo)

	w := postChat(t, srv, `{"message":"When are meetings?"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Meetings Monday ko hain!", resp.Answer)
	require.NotEmpty(t, resp.SessionID)

	id, err := uuid.Parse(resp.SessionID)
	require.NoError(t, err)
	created, err := repo.GetSession(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "When are meetings?", created.Title)
	assert.Equal(t, 1, responder.callCount())
}

func TestChat_ExistingSession(t *testing.T) {
	responder := &stubResponder{answer: "hello again"}
	repo := newFakeRepo()
	sess, err := repo.CreateSession(context.Background(), "existing")
	require.NoError(t, err)
	srv := newTestServer(t, responder, repo)

	w := postChat(t, srv, `{"message":"hi","sessionId":"`+sess.ID.String()+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, sess.ID.String(), resp.SessionID)
	// No second session was created.
	assert.Equal(t, 1, repo.createCalls)
}

func TestChat_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "invalid json", body: `{"message": `, want: http.StatusBadRequest},
		{name: "empty message", body: `{"message":"   "}`, want: http.StatusBadRequest},
		{name: "missing message", body: `{}`, want: http.StatusBadRequest},
		{name: "bad session id", body: `{"message":"hi","sessionId":"not-a-uuid"}`, want: http.StatusBadRequest},
		{name: "unknown session", body: `{"message":"hi","sessionId":"` + uuid.NewString() + `"}`, want: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &stubResponder{answer: "unused"}
			srv := newTestServer(t, responder, newFakeRepo())

			w := postChat(t, srv, tt.body)

			require.Equal(t, tt.want, w.Code)
			var resp errorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
			assert.Equal(t, 0, responder.callCount())
		})
	}
}

func TestChat_ResponderNotFound(t *testing.T) {
	repo := newFakeRepo()
	sess, err := repo.CreateSession(context.Background(), "gone")
	require.NoError(t, err)

	responder := &stubResponder{err: session.ErrNotFound}
	srv := newTestServer(t, responder, repo)

	w := postChat(t, srv, `{"message":"hi","sessionId":"`+sess.ID.String()+`"}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestChat_BodyTooLarge(t *testing.T) {
	responder := &stubResponder{answer: "unused"}
	srv := newTestServer(t, responder, newFakeRepo())

	big := strings.Repeat("x", maxChatBodyBytes+1)
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(chatRequest{Message: big}))

	w := postChat(t, srv, buf.String())
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, responder.callCount())
}
