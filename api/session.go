package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/devsharma/sakhi/internal/session"
)

// sessionPayload is the wire form of a session: {id, title, messages}.
// Messages are omitted from list responses.
type sessionPayload struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Messages  []messagePayload `json:"messages,omitempty"`
}

type messagePayload struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

type createSessionRequest struct {
	Title string `json:"title"`
}

type renameSessionRequest struct {
	Title string `json:"title"`
}

type sessionHandler struct {
	store  session.Repository
	logger *slog.Logger
}

// list handles GET /api/sessions.
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.ListSessions(r.Context())
	if err != nil {
		h.logger.Error("listing sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	payload := make([]sessionPayload, 0, len(sessions))
	for _, s := range sessions {
		payload = append(payload, toSessionPayload(s, nil))
	}
	writeJSON(w, http.StatusOK, payload)
}

// create handles POST /api/sessions.
func (h *sessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = "New chat"
	}

	created, err := h.store.CreateSession(r.Context(), title)
	if err != nil {
		h.logger.Error("creating session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionPayload(created, nil))
}

// get handles GET /api/sessions/{id}, returning the session with its full
// transcript.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sess, err := h.store.GetSession(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "getting session")
		return
	}

	messages, err := h.store.Messages(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "loading messages")
		return
	}

	writeJSON(w, http.StatusOK, toSessionPayload(sess, messages))
}

// rename handles PATCH /api/sessions/{id}.
func (h *sessionHandler) rename(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req renameSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	if err := h.store.RenameSession(r.Context(), id, title); err != nil {
		h.respondStoreError(w, err, "renaming session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// delete handles DELETE /api/sessions/{id}.
func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteSession(r.Context(), id); err != nil {
		h.respondStoreError(w, err, "deleting session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *sessionHandler) respondStoreError(w http.ResponseWriter, err error, op string) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	h.logger.Error(op, "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}

func toSessionPayload(s session.Session, messages []session.Message) sessionPayload {
	p := sessionPayload{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	if len(messages) > 0 {
		p.Messages = make([]messagePayload, 0, len(messages))
		for _, m := range messages {
			p.Messages = append(p.Messages, messagePayload{
				Role:      m.Role,
				Content:   m.Content,
				CreatedAt: m.CreatedAt,
			})
		}
	}
	return p
}
