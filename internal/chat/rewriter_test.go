package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/devsharma/sakhi/internal/log"
	"github.com/devsharma/sakhi/internal/session"
)

// stubCompleter is a scripted Completer. respond decides the reply from the
// request; err short-circuits every call.
type stubCompleter struct {
	mu       sync.Mutex
	respond  func(req CompletionRequest) string
	err      error
	calls    int
	requests []CompletionRequest
}

func (s *stubCompleter) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	s.calls++
	s.requests = append(s.requests, req)
	respond := s.respond
	err := s.err
	s.mu.Unlock()

	if err != nil {
		return "", err
	}
	if respond != nil {
		return respond(req), nil
	}
	return "ok", nil
}

func (s *stubCompleter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubCompleter) lastRequest() CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return CompletionRequest{}
	}
	return s.requests[len(s.requests)-1]
}

func someHistory() []session.Turn {
	return []session.Turn{
		{Role: session.RoleUser, Content: "tell me about the office schedule"},
		{Role: session.RoleAssistant, Content: "Meetings happen weekly."},
	}
}

func TestRewriter_EmptyHistory_NoModelCall(t *testing.T) {
	stub := &stubCompleter{}
	r, err := NewRewriter(stub, time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}

	got, err := r.Rewrite(context.Background(), nil, "when are meetings?")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if got != "when are meetings?" {
		t.Fatalf("expected utterance unchanged, got %q", got)
	}
	if stub.callCount() != 0 {
		t.Fatalf("expected no completer calls for empty history, got %d", stub.callCount())
	}
}

func TestRewriter_ResolvesReferences(t *testing.T) {
	stub := &stubCompleter{
		respond: func(req CompletionRequest) string {
			return "  when are the weekly office meetings  "
		},
	}
	r, err := NewRewriter(stub, time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}

	got, err := r.Rewrite(context.Background(), someHistory(), "when are they?")
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if got != "when are the weekly office meetings" {
		t.Fatalf("expected trimmed rewritten query, got %q", got)
	}

	req := stub.lastRequest()
	if req.System == "" {
		t.Fatal("expected a system instruction")
	}
	if len(req.History) != 2 {
		t.Fatalf("expected history forwarded, got %d turns", len(req.History))
	}
	if req.Prompt != "when are they?" {
		t.Fatalf("expected utterance as prompt, got %q", req.Prompt)
	}
}

func TestRewriter_EmptyModelOutput_Fails(t *testing.T) {
	stub := &stubCompleter{respond: func(CompletionRequest) string { return "   " }}
	r, err := NewRewriter(stub, time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}

	_, err = r.Rewrite(context.Background(), someHistory(), "when are they?")
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

func TestRewriter_BackendError_Propagates(t *testing.T) {
	stub := &stubCompleter{err: fmt.Errorf("calling model: %w", ErrUnavailable)}
	r, err := NewRewriter(stub, time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}

	_, err = r.Rewrite(context.Background(), someHistory(), "when are they?")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable to propagate, got %v", err)
	}
}

func TestRewriter_EmptyUtterance(t *testing.T) {
	r, err := NewRewriter(&stubCompleter{}, time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("NewRewriter: %v", err)
	}

	if _, err := r.Rewrite(context.Background(), nil, "   "); err == nil {
		t.Fatal("expected error for empty utterance")
	}
}

func TestNewRewriter_NilCompleter(t *testing.T) {
	if _, err := NewRewriter(nil, time.Second, log.NewNop()); err == nil {
		t.Fatal("expected error for nil completer")
	}
}
