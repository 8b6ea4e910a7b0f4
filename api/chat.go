package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/devsharma/sakhi/internal/session"
)

// maxChatBodyBytes bounds the request body so a hostile client cannot feed
// the pipeline unbounded input.
const maxChatBodyBytes = 64 * 1024

// maxAutoTitleRunes caps titles derived from the first message.
const maxAutoTitleRunes = 60

// Responder runs one conversation turn. Satisfied by *chat.Pipeline.
type Responder interface {
	Respond(ctx context.Context, sessionID uuid.UUID, message string) (string, error)
}

// Screener checks a message against the moderation denylist. Satisfied by
// *security.Filter.
type Screener interface {
	Screen(message string) (string, bool)
}

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"sessionId"`
}

type chatHandler struct {
	responder Responder
	screener  Screener
	sessions  session.Repository
	logger    *slog.Logger
}

// send handles POST /api/chat.
//
// A message matching the denylist is answered with the canned reply before
// any session or pipeline work happens; a screened request makes zero
// model, retrieval, or storage calls beyond parsing.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if reply, blocked := h.screener.Screen(message); blocked {
		h.logger.Info("message screened by denylist")
		writeJSON(w, http.StatusOK, chatResponse{Answer: reply, SessionID: req.SessionID})
		return
	}

	sessionID, err := h.resolveSession(r.Context(), req.SessionID, message)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		if errors.Is(err, errBadSessionID) {
			writeError(w, http.StatusBadRequest, "invalid session id")
			return
		}
		h.logger.Error("resolving session", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	answer, err := h.responder.Respond(r.Context(), sessionID, message)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}
		h.logger.Error("chat turn failed", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Answer: answer, SessionID: sessionID.String()})
}

var errBadSessionID = errors.New("invalid session id")

// resolveSession parses the provided session ID or creates a fresh session
// titled from the first message.
func (h *chatHandler) resolveSession(ctx context.Context, rawID, message string) (uuid.UUID, error) {
	if rawID != "" {
		id, err := uuid.Parse(rawID)
		if err != nil {
			return uuid.Nil, errBadSessionID
		}
		if _, err := h.sessions.GetSession(ctx, id); err != nil {
			return uuid.Nil, err
		}
		return id, nil
	}

	created, err := h.sessions.CreateSession(ctx, autoTitle(message))
	if err != nil {
		return uuid.Nil, err
	}
	return created.ID, nil
}

// autoTitle derives a session title from the opening message.
func autoTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= maxAutoTitleRunes {
		return message
	}
	return string(runes[:maxAutoTitleRunes]) + "…"
}
