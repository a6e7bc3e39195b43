package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"daftarchat/internal/briefing"
	"daftarchat/internal/dispatch"
	"daftarchat/internal/memory"
	"daftarchat/internal/models"
	"daftarchat/internal/protocol"
	"daftarchat/internal/provider"
)

// ErrBusy signals that another turn or pending-action operation is already
// in flight for the session; the caller should retry after it settles.
var ErrBusy = errors.New("another operation is in flight for this session")

// ErrActionNotFound signals a confirm/cancel against a message or index
// that no longer holds a pending action.
var ErrActionNotFound = errors.New("pending action not found")

const historyWindow = 10

const canceledPrefix = "🚫 Canceled: "

// Session holds one user's live conversation and drives the full turn
// pipeline: briefing, generation, parsing, classification, and dispatch.
// All mutation funnels through a single in-flight guard, so confirm/cancel
// index splices can never interleave.
type Session struct {
	tenant   string
	userID   int64
	username string

	generator  provider.Generator
	assembler  *briefing.Assembler
	dispatcher *dispatch.Dispatcher
	memory     *memory.Service

	guard    sync.Mutex
	messages []*models.ChatMessage
}

// TurnResult is what one completed turn hands back to the client.
type TurnResult struct {
	Message    *models.ChatMessage `json:"message"`
	NavTargets []string            `json:"nav_targets,omitempty"`
}

func NewSession(tenant string, userID int64, username string, generator provider.Generator, assembler *briefing.Assembler, dispatcher *dispatch.Dispatcher, mem *memory.Service) *Session {
	return &Session{
		tenant:     tenant,
		userID:     userID,
		username:   username,
		generator:  generator,
		assembler:  assembler,
		dispatcher: dispatcher,
		memory:     mem,
	}
}

// navCollector gathers navigation targets emitted during one turn.
type navCollector struct {
	pages []string
}

func (n *navCollector) Navigate(page string) {
	n.pages = append(n.pages, page)
}

// SendMessage runs one full turn. A second call while a turn is in flight
// returns ErrBusy instead of queueing.
func (s *Session) SendMessage(ctx context.Context, content string) (*TurnResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.New("message cannot be empty")
	}
	if !s.guard.TryLock() {
		return nil, ErrBusy
	}
	defer s.guard.Unlock()

	userMsg := &models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	s.messages = append(s.messages, userMsg)

	prompt := s.buildPrompt(ctx, content)
	reply, err := s.generator.Generate(ctx, s.userID, prompt, briefing.SystemInstruction, provider.Options{})
	if err != nil {
		return nil, err
	}

	display, actions := protocol.Parse(reply)

	nav := &navCollector{}
	execCtx := dispatch.WithNavSink(ctx, nav)

	var (
		outcomes []string
		pending  []models.ActionDescriptor
	)
	for _, action := range actions {
		if IsAutoExecute(action.Action) {
			outcomes = append(outcomes, s.dispatcher.Execute(execCtx, action, s.tenant, s.userID))
			continue
		}
		pending = append(pending, action)
	}

	assistantMsg := &models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   joinContent(display, outcomes),
		CreatedAt: time.Now().UTC(),
	}
	if len(pending) > 0 {
		assistantMsg.PendingActions = pending
	}
	s.messages = append(s.messages, assistantMsg)

	return &TurnResult{Message: assistantMsg, NavTargets: nav.pages}, nil
}

// ConfirmAction executes the pending action at index on the given message,
// removes it from the pending list, and appends its outcome to the message
// content.
func (s *Session) ConfirmAction(ctx context.Context, messageID string, index int) (*models.ChatMessage, error) {
	return s.resolveAction(messageID, index, func(action models.ActionDescriptor) string {
		return s.dispatcher.Execute(ctx, action, s.tenant, s.userID)
	})
}

// CancelAction removes the pending action at index without executing it and
// records the cancellation on the message.
func (s *Session) CancelAction(_ context.Context, messageID string, index int) (*models.ChatMessage, error) {
	return s.resolveAction(messageID, index, func(action models.ActionDescriptor) string {
		return canceledPrefix + action.Confirmation
	})
}

func (s *Session) resolveAction(messageID string, index int, settle func(models.ActionDescriptor) string) (*models.ChatMessage, error) {
	if !s.guard.TryLock() {
		return nil, ErrBusy
	}
	defer s.guard.Unlock()

	msg := s.findMessage(messageID)
	if msg == nil || msg.Role != models.RoleAssistant {
		return nil, ErrActionNotFound
	}
	if index < 0 || index >= len(msg.PendingActions) {
		return nil, ErrActionNotFound
	}

	action := msg.PendingActions[index]
	outcome := settle(action)

	msg.PendingActions = append(msg.PendingActions[:index], msg.PendingActions[index+1:]...)
	if len(msg.PendingActions) == 0 {
		msg.PendingActions = nil
	}
	msg.Content = joinContent(msg.Content, []string{outcome})
	return msg, nil
}

// Clear ends the session: the conversation is summarized into memory (when
// long enough) and the message sequence is dropped as a whole.
func (s *Session) Clear(ctx context.Context) error {
	if !s.guard.TryLock() {
		return ErrBusy
	}
	defer s.guard.Unlock()

	s.memory.SummarizeAndStore(ctx, s.tenant, s.userID, s.messages)
	s.messages = nil
	return nil
}

// Messages returns a snapshot of the conversation. Unlike the mutating
// operations it waits for an in-flight turn to settle rather than failing,
// so a history read never looks like an empty session.
func (s *Session) Messages() []*models.ChatMessage {
	s.guard.Lock()
	defer s.guard.Unlock()
	out := make([]*models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

func (s *Session) findMessage(id string) *models.ChatMessage {
	for _, msg := range s.messages {
		if msg.ID == id {
			return msg
		}
	}
	return nil
}

// buildPrompt combines the briefing context with the recent conversation
// window; the latest user input is already in the message sequence.
func (s *Session) buildPrompt(ctx context.Context, content string) string {
	var b strings.Builder
	if brief := s.assembler.Assemble(ctx, s.tenant, s.userID, s.username); brief != "" {
		b.WriteString(brief)
		b.WriteString("\n\n")
	}

	history := s.messages
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}
	if len(history) > 1 {
		b.WriteString("Conversation so far:\n")
		for _, msg := range history[:len(history)-1] {
			switch msg.Role {
			case models.RoleUser:
				fmt.Fprintf(&b, "User: %s\n", msg.Content)
			case models.RoleAssistant:
				fmt.Fprintf(&b, "Assistant: %s\n", msg.Content)
			}
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "User: %s", content)
	return b.String()
}

func joinContent(base string, extra []string) string {
	parts := make([]string, 0, 1+len(extra))
	if strings.TrimSpace(base) != "" {
		parts = append(parts, strings.TrimSpace(base))
	}
	for _, e := range extra {
		if strings.TrimSpace(e) != "" {
			parts = append(parts, strings.TrimSpace(e))
		}
	}
	return strings.Join(parts, "\n")
}
