package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/devsharma/sakhi/internal/knowledge"
	"github.com/devsharma/sakhi/internal/session"
)

// State names the stage a session's current turn is in. Transitions run
// Idle -> Rewriting -> Retrieving -> Generating -> Idle; any stage may
// drop to Failed, after which the next turn starts from Idle again.
type State string

const (
	StateIdle       State = "idle"
	StateRewriting  State = "rewriting"
	StateRetrieving State = "retrieving"
	StateGenerating State = "generating"
	StateFailed     State = "failed"
)

// Searcher is the retrieval capability the pipeline depends on. Satisfied
// by *knowledge.Store.
type Searcher interface {
	Search(ctx context.Context, query string, opts ...knowledge.SearchOption) ([]knowledge.Result, error)
}

// PipelineConfig wires a Pipeline's collaborators.
type PipelineConfig struct {
	Rewriter  *Rewriter
	Searcher  Searcher
	Generator *Generator
	Sessions  session.Repository
	TopK      int
	Logger    *slog.Logger
}

// Pipeline runs the full turn for a session: persist the user's message,
// rewrite it into a standalone query, retrieve supporting passages, and
// generate the reply. Turns within a session are serialized; separate
// sessions proceed concurrently.
type Pipeline struct {
	rewriter  *Rewriter
	searcher  Searcher
	generator *Generator
	sessions  session.Repository
	topK      int
	logger    *slog.Logger

	mu     sync.Mutex
	locks  map[uuid.UUID]*sync.Mutex
	states map[uuid.UUID]State
}

// NewPipeline validates the config and builds a Pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	switch {
	case cfg.Rewriter == nil:
		return nil, errors.New("new pipeline: rewriter is nil")
	case cfg.Searcher == nil:
		return nil, errors.New("new pipeline: searcher is nil")
	case cfg.Generator == nil:
		return nil, errors.New("new pipeline: generator is nil")
	case cfg.Sessions == nil:
		return nil, errors.New("new pipeline: session repository is nil")
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		rewriter:  cfg.Rewriter,
		searcher:  cfg.Searcher,
		generator: cfg.Generator,
		sessions:  cfg.Sessions,
		topK:      cfg.TopK,
		logger:    cfg.Logger,
		locks:     make(map[uuid.UUID]*sync.Mutex),
		states:    make(map[uuid.UUID]State),
	}, nil
}

// State reports the stage of the session's most recent turn.
func (p *Pipeline) State(sessionID uuid.UUID) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	if st, ok := p.states[sessionID]; ok {
		return st
	}
	return StateIdle
}

func (p *Pipeline) setState(sessionID uuid.UUID, st State) {
	p.mu.Lock()
	p.states[sessionID] = st
	p.mu.Unlock()
}

// sessionLock returns the mutex serializing turns for one session.
func (p *Pipeline) sessionLock(sessionID uuid.UUID) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	lock, ok := p.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[sessionID] = lock
	}
	return lock
}

// Respond runs one conversation turn and returns the assistant's reply.
//
// The user's message is persisted before any model work starts, so a failed
// turn still shows what the user said. When a stage fails, the turn ends in
// Failed: no assistant message is recorded and FailureReply is returned in
// place of an answer. The returned error is reserved for request-level
// problems such as an unknown session.
func (p *Pipeline) Respond(ctx context.Context, sessionID uuid.UUID, utterance string) (string, error) {
	lock := p.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	priorMessages, err := p.sessions.Messages(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("loading history: %w", err)
	}
	history := turnsFromMessages(priorMessages)

	if _, err := p.sessions.AppendMessage(ctx, sessionID, session.RoleUser, utterance); err != nil {
		return "", fmt.Errorf("recording user message: %w", err)
	}

	p.setState(sessionID, StateRewriting)
	query, err := p.rewriter.Rewrite(ctx, history, utterance)
	if err != nil {
		// An unreachable or slow rewriter degrades to searching on the raw
		// utterance. A malformed rewrite fails the turn instead, since the
		// backend is answering but answering garbage.
		if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrTimeout) {
			p.logger.Warn("rewriter unavailable, searching on raw utterance",
				"session_id", sessionID, "error", err)
			query = utterance
		} else {
			return p.failTurn(sessionID, "rewrite", err)
		}
	}

	p.setState(sessionID, StateRetrieving)
	results, err := p.searcher.Search(ctx, query, knowledge.WithTopK(p.topK))
	if err != nil {
		return p.failTurn(sessionID, "retrieve", err)
	}

	passages := make([]string, 0, len(results))
	for _, res := range results {
		passages = append(passages, res.Text)
	}

	p.setState(sessionID, StateGenerating)
	reply, err := p.generator.Generate(ctx, history, passages, utterance)
	if err != nil {
		return p.failTurn(sessionID, "generate", err)
	}

	if _, err := p.sessions.AppendMessage(ctx, sessionID, session.RoleAssistant, reply); err != nil {
		// The reply exists and the user gets it; only the transcript is
		// short one turn.
		p.logger.Error("failed to persist assistant message",
			"session_id", sessionID, "error", err)
	}

	p.setState(sessionID, StateIdle)
	p.logger.Debug("turn completed",
		"session_id", sessionID,
		"passages", len(passages),
	)
	return reply, nil
}

// failTurn marks the session Failed and returns the canned failure reply.
// The user's message stays in the transcript; the failed turn records no
// assistant message.
func (p *Pipeline) failTurn(sessionID uuid.UUID, stage string, err error) (string, error) {
	p.setState(sessionID, StateFailed)
	p.logger.Error("turn failed",
		"session_id", sessionID,
		"stage", stage,
		"error", err,
	)
	return FailureReply, nil
}

// turnsFromMessages projects persisted messages onto history turns.
func turnsFromMessages(messages []session.Message) []session.Turn {
	turns := make([]session.Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, session.Turn{
			Role:      msg.Role,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt,
		})
	}
	return turns
}
