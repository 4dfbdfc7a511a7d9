package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-insights/backend/internal/evaluation"
)

func TestManagerCreatesOnFirstUse(t *testing.T) {
	m := NewManager(nil)

	s1 := m.Get("alpha")
	s2 := m.Get("alpha")
	s3 := m.Get("beta")

	assert.Same(t, s1, s2)
	assert.NotSame(t, s1, s3)
	assert.Equal(t, 2, m.Count())
}

func TestLookupDoesNotCreate(t *testing.T) {
	m := NewManager(nil)

	_, ok := m.Lookup("ghost")
	assert.False(t, ok)
	assert.Zero(t, m.Count())
}

func TestHistoryWindow(t *testing.T) {
	m := NewManager(nil)
	s := m.Get("alpha")

	for i := 0; i < 5; i++ {
		s.Append(Turn{ID: fmt.Sprintf("turn-%d", i)})
	}

	recent := s.History(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "turn-3", recent[0].ID)
	assert.Equal(t, "turn-4", recent[1].ID)

	all := s.History(0)
	assert.Len(t, all, 5)
}

func TestClearResetsEverything(t *testing.T) {
	m := NewManager(nil)
	s := m.Get("alpha")

	s.Append(Turn{ID: "turn-1"})
	s.SetReportContext("quarterly report")
	s.Aggregate.Add(evaluation.Score{Overall: 0.9})

	s.Clear()

	assert.Zero(t, s.TurnCount())
	assert.Empty(t, s.ReportContext())
	assert.Zero(t, s.Aggregate.Summary().TotalEvaluations)

	// Clearing again is harmless.
	s.Clear()
	assert.Zero(t, s.TurnCount())
}

func TestSessionsAreIndependent(t *testing.T) {
	m := NewManager(nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := m.Get(fmt.Sprintf("session-%d", i))
			for j := 0; j < 20; j++ {
				s.Append(Turn{ID: fmt.Sprintf("t-%d-%d", i, j)})
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, m.Count())
	for i := 0; i < 10; i++ {
		s := m.Get(fmt.Sprintf("session-%d", i))
		assert.Equal(t, 20, s.TurnCount())
	}
}

func TestAcquireSerializesFlights(t *testing.T) {
	m := NewManager(nil)
	s := m.Get("alpha")

	var inFlight, maxInFlight int
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Acquire()
			defer s.Release()

			mu.Lock()
			inFlight++
			if inFlight > maxInFlight {
				maxInFlight = inFlight
			}
			mu.Unlock()

			mu.Lock()
			inFlight--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight, "one question in flight per session")
}

// recordingArchive captures archive calls for assertion.
type recordingArchive struct {
	mu       sync.Mutex
	appended []Turn
	cleared  []string
	failWith error
}

func (r *recordingArchive) AppendTurn(_ context.Context, _ string, turn Turn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failWith != nil {
		return r.failWith
	}
	r.appended = append(r.appended, turn)
	return nil
}

func (r *recordingArchive) Turns(context.Context, string) ([]Turn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Turn(nil), r.appended...), nil
}

func (r *recordingArchive) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleared = append(r.cleared, sessionID)
	return nil
}

func TestCommitMirrorsToArchive(t *testing.T) {
	archive := &recordingArchive{}
	m := NewManager(archive)
	s := m.Get("alpha")

	m.Commit(context.Background(), s, Turn{ID: "turn-1", Answer: "done"})

	assert.Equal(t, 1, s.TurnCount())
	require.Len(t, archive.appended, 1)
	assert.Equal(t, "turn-1", archive.appended[0].ID)
}

func TestArchiveFailureDoesNotLoseTurn(t *testing.T) {
	archive := &recordingArchive{failWith: errors.New("redis down")}
	m := NewManager(archive)
	s := m.Get("alpha")

	m.Commit(context.Background(), s, Turn{ID: "turn-1"})

	assert.Equal(t, 1, s.TurnCount(), "live history survives archive failures")
}

func TestClearMemoryClearsArchive(t *testing.T) {
	archive := &recordingArchive{}
	m := NewManager(archive)
	s := m.Get("alpha")
	s.Append(Turn{ID: "turn-1"})

	m.ClearMemory(context.Background(), "alpha")

	assert.Zero(t, s.TurnCount())
	assert.Equal(t, []string{"alpha"}, archive.cleared)

	// Clearing an unknown session is a quiet no-op on the live side.
	m.ClearMemory(context.Background(), "never-seen")
	assert.Contains(t, archive.cleared, "never-seen")
}
