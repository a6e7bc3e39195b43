package orchestrator

import (
	"sync"

	"daftarchat/internal/briefing"
	"daftarchat/internal/dispatch"
	"daftarchat/internal/memory"
	"daftarchat/internal/provider"
)

// Manager owns the live sessions, one per user.
type Manager struct {
	generator  provider.Generator
	assembler  *briefing.Assembler
	dispatcher *dispatch.Dispatcher
	memory     *memory.Service

	mu       sync.Mutex
	sessions map[int64]*Session
}

func NewManager(generator provider.Generator, assembler *briefing.Assembler, dispatcher *dispatch.Dispatcher, mem *memory.Service) *Manager {
	return &Manager{
		generator:  generator,
		assembler:  assembler,
		dispatcher: dispatcher,
		memory:     mem,
		sessions:   make(map[int64]*Session),
	}
}

// Session returns the user's live session, creating it on first use.
func (m *Manager) Session(tenant string, userID int64, username string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[userID]; ok {
		return s
	}
	s := NewSession(tenant, userID, username, m.generator, m.assembler, m.dispatcher, m.memory)
	m.sessions[userID] = s
	return s
}

// Drop forgets the user's session without summarizing; used on logout.
func (m *Manager) Drop(userID int64) {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
}
