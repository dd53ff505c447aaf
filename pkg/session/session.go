// Package session ties a conversation together: one Session owns a token
// budget, a generation backend, and the identifier used in published events.
package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/mledur/quill/pkg/ai"
	"github.com/mledur/quill/pkg/budget"
	"github.com/mledur/quill/pkg/events"
	"github.com/mledur/quill/pkg/guard"
	"github.com/mledur/quill/pkg/logging"
	"github.com/mledur/quill/pkg/prompts"
)

const conversationPrompt = "conversation"

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session identifier.
func WithID(id string) Option {
	return func(s *Session) {
		if strings.TrimSpace(id) != "" {
			s.id = id
		}
	}
}

// WithPublisher sets the event publisher for chat lifecycle events.
func WithPublisher(publisher events.Publisher) Option {
	return func(s *Session) {
		if publisher != nil {
			s.publisher = publisher
		}
	}
}

// WithLoader sets the prompt loader. Defaults to the embedded prompts.
func WithLoader(loader prompts.Loader) Option {
	return func(s *Session) {
		if loader != nil {
			s.loader = loader
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is one conversation: every turn is recorded in the budget manager,
// which evicts older turns as the token ceiling demands.
type Session struct {
	id        string
	budget    *budget.Manager
	gen       ai.Gen
	loader    prompts.Loader
	publisher events.Publisher
	logger    logging.Logger
}

// NewSession creates a session around an existing budget manager and backend.
func NewSession(gen ai.Gen, budgetManager *budget.Manager, opts ...Option) (*Session, error) {
	if gen == nil {
		return nil, fmt.Errorf("%w: gen must not be nil", budget.ErrInvalidArgument)
	}
	if budgetManager == nil {
		return nil, fmt.Errorf("%w: budget manager must not be nil", budget.ErrInvalidArgument)
	}

	s := &Session{
		id:        uuid.NewString(),
		budget:    budgetManager,
		gen:       gen,
		loader:    &prompts.DefaultLoader{},
		publisher: &events.NoOpPublisher{},
		logger:    logging.NewComponentLogger("session"),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Budget exposes the underlying budget manager.
func (s *Session) Budget() *budget.Manager {
	return s.budget
}

// SetSystemPrompt records a system message. System messages are never evicted.
func (s *Session) SetSystemPrompt(content string) error {
	_, err := s.budget.AddMessage("system", content)
	return err
}

// Ask sends one user message through the backend and records both sides of
// the exchange in the budget. The reply is returned verbatim.
func (s *Session) Ask(ctx context.Context, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", fmt.Errorf("%w: message must not be empty", budget.ErrInvalidArgument)
	}

	if report := guard.Inspect(message); report.Suspicious {
		s.logger.Warn("message flagged by input heuristics",
			"session", s.id, "score", report.Score, "findings", len(report.Findings))
	}

	s.publisher.Publish(events.ChatStartedEvent{}.Topic(), events.ChatStartedEvent{
		SessionID: s.id,
		Message:   message,
	})

	history := s.historyText()

	if _, err := s.budget.AddMessage("user", message); err != nil {
		return "", err
	}

	prompt, err := s.loader.LoadPrompt(conversationPrompt)
	if err != nil {
		return "", fmt.Errorf("loading conversation prompt: %w", err)
	}

	response, err := s.gen.GenerateContent(ctx, prompt,
		ai.Attr{Key: "message", Value: message},
		ai.Attr{Key: "context", Value: history},
	)

	s.publisher.Publish(events.ChatResponseEvent{}.Topic(), events.ChatResponseEvent{
		SessionID: s.id,
		Message:   message,
		Response:  response,
		Error:     err,
	})

	if err != nil {
		return "", err
	}

	if strings.TrimSpace(response) != "" {
		if _, err := s.budget.AddMessage("assistant", response); err != nil {
			return "", err
		}
	}

	return response, nil
}

// historyText renders prior turns for the conversation prompt, oldest first.
// System messages are carried by the prompt instruction, not the history.
func (s *Session) historyText() string {
	messages := s.budget.Messages()
	var b strings.Builder
	for _, msg := range messages {
		if msg.IsSystem() {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(string(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
	}
	return b.String()
}

// Snapshot serializes the session's budget state.
func (s *Session) Snapshot() ([]byte, error) {
	return s.budget.Snapshot()
}

// RestoreSession rebuilds a session from a budget snapshot.
func RestoreSession(data []byte, gen ai.Gen, opts ...Option) (*Session, error) {
	manager, err := budget.Restore(data)
	if err != nil {
		return nil, err
	}
	return NewSession(gen, manager, opts...)
}
