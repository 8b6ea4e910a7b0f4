package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devsharma/sakhi/internal/log"
)

const testPersona = "You are Laiba, a friendly Hinglish companion."

func newTestGenerator(t *testing.T, stub *stubCompleter) *Generator {
	t.Helper()
	g, err := NewGenerator(stub, testPersona, time.Second, log.NewNop())
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	return g
}

func TestGenerator_ContextAssembly(t *testing.T) {
	stub := &stubCompleter{respond: func(CompletionRequest) string { return "here you go" }}
	g := newTestGenerator(t, stub)

	passages := []string{"first passage", "second passage", "third passage"}
	_, err := g.Generate(context.Background(), someHistory(), passages, "what do you know?")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	req := stub.lastRequest()
	if !strings.HasPrefix(req.System, testPersona) {
		t.Fatalf("system instruction must start with the persona, got %q", req.System)
	}

	// Passages appear joined by the separator, in retrieval order.
	joined := strings.Join(passages, contextSeparator)
	if !strings.Contains(req.System, joined) {
		t.Fatalf("system instruction missing ordered context block:\n%s", req.System)
	}

	if len(req.History) != 2 {
		t.Fatalf("expected history forwarded, got %d turns", len(req.History))
	}
	if req.Prompt != "what do you know?" {
		t.Fatalf("prompt = %q", req.Prompt)
	}
}

func TestGenerator_NoPassages_PersonaOnly(t *testing.T) {
	stub := &stubCompleter{}
	g := newTestGenerator(t, stub)

	if _, err := g.Generate(context.Background(), nil, nil, "hi"); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if got := stub.lastRequest().System; got != testPersona {
		t.Fatalf("expected bare persona with no passages, got %q", got)
	}
}

func TestGenerator_EmptyPayload_Fallback(t *testing.T) {
	stub := &stubCompleter{respond: func(CompletionRequest) string { return "  \n " }}
	g := newTestGenerator(t, stub)

	reply, err := g.Generate(context.Background(), nil, nil, "hi")
	if err != nil {
		t.Fatalf("empty payload must not be an error: %v", err)
	}
	if reply != FallbackResponse {
		t.Fatalf("expected fallback response, got %q", reply)
	}
}

func TestGenerator_TrimsReply(t *testing.T) {
	stub := &stubCompleter{respond: func(CompletionRequest) string { return "\n  answer  \n" }}
	g := newTestGenerator(t, stub)

	reply, err := g.Generate(context.Background(), nil, nil, "hi")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if reply != "answer" {
		t.Fatalf("expected trimmed reply, got %q", reply)
	}
}

func TestGenerator_BackendError(t *testing.T) {
	stub := &stubCompleter{err: errors.New("boom")}
	g := newTestGenerator(t, stub)

	if _, err := g.Generate(context.Background(), nil, nil, "hi"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewGenerator_Validation(t *testing.T) {
	if _, err := NewGenerator(nil, testPersona, time.Second, log.NewNop()); err == nil {
		t.Fatal("expected error for nil completer")
	}
	if _, err := NewGenerator(&stubCompleter{}, "  ", time.Second, log.NewNop()); err == nil {
		t.Fatal("expected error for empty persona")
	}
}
