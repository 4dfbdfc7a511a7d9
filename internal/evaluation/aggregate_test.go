package evaluation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregateStreamingMeans(t *testing.T) {
	a := NewAggregate()

	a.Add(Score{Accuracy: 1.0, Faithfulness: 1.0, Relevance: 1.0, Completeness: 1.0, Overall: 1.0})
	a.Add(Score{Accuracy: 0.5, Faithfulness: 0.7, Relevance: 0.3, Completeness: 0.5, Overall: 0.52})

	s := a.Summary()
	assert.Equal(t, 2, s.TotalEvaluations)
	assert.InDelta(t, 0.75, s.Accuracy, 1e-9)
	assert.InDelta(t, 0.85, s.Faithfulness, 1e-9)
	assert.InDelta(t, 0.65, s.Relevance, 1e-9)
	assert.InDelta(t, 0.75, s.Completeness, 1e-9)
	assert.InDelta(t, 0.76, s.Overall, 1e-9)
}

func TestAggregateEmptySummaryIsZero(t *testing.T) {
	s := NewAggregate().Summary()
	assert.Zero(t, s.TotalEvaluations)
	assert.Zero(t, s.Overall)
}

func TestAggregateReset(t *testing.T) {
	a := NewAggregate()
	a.Add(Score{Overall: 0.9})
	a.Reset()

	s := a.Summary()
	assert.Zero(t, s.TotalEvaluations)
	assert.Zero(t, s.Overall)
}

func TestAggregateConcurrentAdds(t *testing.T) {
	a := NewAggregate()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Add(Score{Overall: 0.5})
		}()
	}
	wg.Wait()

	s := a.Summary()
	assert.Equal(t, 50, s.TotalEvaluations)
	assert.InDelta(t, 0.5, s.Overall, 1e-9)
}
