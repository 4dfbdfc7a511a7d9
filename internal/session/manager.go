package session

import (
	"context"
	"sync"

	"github.com/retail-insights/backend/pkg/logger"
	"go.uber.org/zap"
)

// Archive receives copies of committed turns for durable storage outside the
// process. Archive failures are logged and never affect the turn itself.
type Archive interface {
	AppendTurn(ctx context.Context, sessionID string, turn Turn) error
	Turns(ctx context.Context, sessionID string) ([]Turn, error)
	Clear(ctx context.Context, sessionID string) error
}

type noopArchive struct{}

func (noopArchive) AppendTurn(context.Context, string, Turn) error { return nil }
func (noopArchive) Turns(context.Context, string) ([]Turn, error)  { return nil, nil }
func (noopArchive) Clear(context.Context, string) error            { return nil }

// Manager owns all live sessions, keyed by client-chosen session ID.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	archive  Archive
}

func NewManager(archive Archive) *Manager {
	if archive == nil {
		archive = noopArchive{}
	}
	return &Manager{
		sessions: make(map[string]*Session),
		archive:  archive,
	}
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(id string) *Session {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return s
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s
	}
	s = newSession(id)
	m.sessions[id] = s
	return s
}

// Lookup returns the session without creating it.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Commit appends the turn to the live session and mirrors it to the archive.
func (m *Manager) Commit(ctx context.Context, s *Session, t Turn) {
	s.Append(t)
	if err := m.archive.AppendTurn(ctx, s.ID, t); err != nil {
		logger.Warn("turn archive write failed",
			zap.String("session_id", s.ID),
			zap.Error(err))
	}
}

// ArchivedTurns loads a session's durable history, for sessions that are no
// longer live in this process.
func (m *Manager) ArchivedTurns(ctx context.Context, id string) []Turn {
	turns, err := m.archive.Turns(ctx, id)
	if err != nil {
		logger.Warn("turn archive read failed",
			zap.String("session_id", id),
			zap.Error(err))
		return nil
	}
	return turns
}

// ClearMemory resets the session and its archive copy. Idempotent.
func (m *Manager) ClearMemory(ctx context.Context, id string) {
	s := m.Get(id)
	s.Clear()
	if err := m.archive.Clear(ctx, id); err != nil {
		logger.Warn("turn archive clear failed",
			zap.String("session_id", id),
			zap.Error(err))
	}
}
