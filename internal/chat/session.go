package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"director/internal/llm"
	"director/internal/logging"
)

// SessionConfig bundles what the session needs per generation. It is read
// through a provider func so config edits apply to the next turn without a
// restart.
type SessionConfig struct {
	UserName      string
	AssistantName string
	SystemPrompt  string
	Generate      llm.GenerateConfig
}

// Generator is the slice of the LLM client the session uses.
type Generator interface {
	Generate(ctx context.Context, messages []llm.Message, cfg llm.GenerateConfig, onDelta llm.DeltaFunc) (string, error)
}

// Session hosts the conversation: it appends turns, produces assistant
// replies, and tells the director when an assistant turn lands. It also
// exposes a readiness indicator so the director can avoid injecting while
// the host is mid-generation.
type Session struct {
	store  Store
	client Generator
	config func() SessionConfig

	// OnAssistantTurn fires after every assistant turn is appended,
	// including replies to director-injected turns.
	OnAssistantTurn func()

	mu         sync.Mutex
	generating bool
	changed    chan struct{} // closed and replaced on every state flip
}

// NewSession creates a session over the given store and client.
func NewSession(store Store, client Generator, config func() SessionConfig) *Session {
	return &Session{
		store:   store,
		client:  client,
		config:  config,
		changed: make(chan struct{}),
	}
}

// Store returns the underlying conversation log.
func (s *Session) Store() Store {
	return s.store
}

// Send appends a user turn, generates the assistant reply, and appends it.
// Deltas stream to onDelta when the transport supports it.
func (s *Session) Send(ctx context.Context, text string, onDelta llm.DeltaFunc) (Turn, error) {
	cfg := s.config()
	if err := s.store.Append(NewUserTurn(cfg.UserName, text)); err != nil {
		return Turn{}, err
	}
	return s.reply(ctx, cfg, onDelta)
}

// Inject appends a user-authored turn and generates the assistant reply in
// the background. The director fires this and moves on; failures surface in
// the transcript as a system notice, not as an error to the caller.
func (s *Session) Inject(text string) {
	go func() {
		cfg := s.config()
		if err := s.store.Append(NewUserTurn(cfg.UserName, text)); err != nil {
			logging.SessionError("inject: failed to append turn: %v", err)
			return
		}
		logging.Session("injected user turn (%d chars)", len(text))
		if _, err := s.reply(context.Background(), cfg, nil); err != nil {
			s.store.Append(NewSystemNotice(fmt.Sprintf("reply failed: %s", llm.Summary(err))))
		}
	}()
}

// reply generates and appends the assistant turn, then notifies the
// director.
func (s *Session) reply(ctx context.Context, cfg SessionConfig, onDelta llm.DeltaFunc) (Turn, error) {
	s.setGenerating(true)
	defer s.setGenerating(false)

	turns, err := s.store.Recent(0)
	if err != nil {
		return Turn{}, err
	}
	messages := turnsToMessages(cfg.SystemPrompt, turns)

	text, err := s.client.Generate(ctx, messages, cfg.Generate, onDelta)
	if err != nil {
		logging.SessionError("reply generation failed: %v", err)
		return Turn{}, err
	}

	turn := NewAssistantTurn(cfg.AssistantName, text)
	if err := s.store.Append(turn); err != nil {
		return Turn{}, err
	}

	if s.OnAssistantTurn != nil {
		s.OnAssistantTurn()
	}
	return turn, nil
}

// turnsToMessages converts the transcript into the chat-completion message
// list. System notices are display-only and never sent.
func turnsToMessages(systemPrompt string, turns []Turn) []llm.Message {
	messages := make([]llm.Message, 0, len(turns)+1)
	if strings.TrimSpace(systemPrompt) != "" {
		messages = append(messages, llm.NewSystemMessage(systemPrompt))
	}
	for _, t := range turns {
		if t.IsSystemNotice || strings.TrimSpace(t.Text) == "" {
			continue
		}
		if t.IsUserAuthored {
			messages = append(messages, llm.NewUserMessage(t.Text))
		} else {
			messages = append(messages, llm.NewAssistantMessage(t.Text))
		}
	}
	return messages
}

// Generating reports whether an assistant reply is currently in flight.
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

func (s *Session) setGenerating(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generating == v {
		return
	}
	s.generating = v
	close(s.changed)
	s.changed = make(chan struct{})
}

// AwaitReady blocks until the host looks idle: it waits up to startTimeout
// for a generation to begin (it may simply never start), then up to
// finishTimeout for it to end. Both waits are best-effort; on timeout the
// caller proceeds anyway.
func (s *Session) AwaitReady(ctx context.Context, startTimeout, finishTimeout time.Duration) {
	if !s.waitFor(ctx, true, startTimeout) {
		return // never started; treat as ready
	}
	if !s.waitFor(ctx, false, finishTimeout) {
		logging.SessionDebug("AwaitReady: generation still running after %v, proceeding", finishTimeout)
	}
}

// waitFor blocks until Generating() == want, the timeout passes, or ctx is
// done. Returns whether the desired state was reached.
func (s *Session) waitFor(ctx context.Context, want bool, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		s.mu.Lock()
		state, changed := s.generating, s.changed
		s.mu.Unlock()
		if state == want {
			return true
		}
		select {
		case <-changed:
		case <-deadline.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}
