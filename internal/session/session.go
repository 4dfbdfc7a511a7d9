// Package session holds per-conversation state: the ordered turn history,
// running evaluation aggregates and any uploaded report context.
package session

import (
	"sync"
	"time"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/evaluation"
)

// Turn is one completed question/answer exchange. A turn is appended to the
// session only once every field is final; partial turns are never visible.
type Turn struct {
	ID        string                     `json:"id"`
	Question  string                     `json:"question"`
	Intent    string                     `json:"intent"`
	Query     string                     `json:"query,omitempty"`
	Result    *datastore.ExecutionResult `json:"result,omitempty"`
	Answer    string                     `json:"answer"`
	Scores    *evaluation.Score          `json:"scores,omitempty"`
	Error     string                     `json:"error,omitempty"`
	CreatedAt time.Time                  `json:"created_at"`
}

// Session is safe for concurrent use. In-flight processing is serialized
// through Acquire/Release so two questions on the same session never
// interleave their generation context.
type Session struct {
	ID string

	flight sync.Mutex

	mu            sync.RWMutex
	turns         []Turn
	reportContext string

	Aggregate *evaluation.Aggregate
}

func newSession(id string) *Session {
	return &Session{
		ID:        id,
		Aggregate: evaluation.NewAggregate(),
	}
}

// Acquire blocks until this session has no other question in flight.
func (s *Session) Acquire() { s.flight.Lock() }

func (s *Session) Release() { s.flight.Unlock() }

func (s *Session) Append(t Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns = append(s.turns, t)
}

// History returns the most recent n turns, oldest first. n <= 0 returns the
// full history.
func (s *Session) History(n int) []Turn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && len(s.turns) > n {
		start = len(s.turns) - n
	}
	out := make([]Turn, len(s.turns)-start)
	copy(out, s.turns[start:])
	return out
}

func (s *Session) TurnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.turns)
}

// Clear drops all turns, report context and evaluation aggregates. Clearing
// an already-empty session is a no-op.
func (s *Session) Clear() {
	s.mu.Lock()
	s.turns = nil
	s.reportContext = ""
	s.mu.Unlock()
	s.Aggregate.Reset()
}

func (s *Session) SetReportContext(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportContext = text
}

func (s *Session) ReportContext() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reportContext
}
