package evaluation

import "sync"

// Aggregate keeps running means for every dimension of every evaluated turn
// in a session. Means are updated incrementally per turn, never recomputed
// from stored scores.
type Aggregate struct {
	mu    sync.Mutex
	count int
	sums  struct {
		accuracy     float64
		faithfulness float64
		relevance    float64
		completeness float64
		overall      float64
	}
}

// Summary is the exported view of a session's aggregate quality.
type Summary struct {
	Accuracy         float64 `json:"accuracy"`
	Faithfulness     float64 `json:"faithfulness"`
	Relevance        float64 `json:"relevance"`
	Completeness     float64 `json:"completeness"`
	Overall          float64 `json:"overall"`
	TotalEvaluations int     `json:"total_evaluations"`
}

func NewAggregate() *Aggregate {
	return &Aggregate{}
}

func (a *Aggregate) Add(s Score) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count++
	a.sums.accuracy += s.Accuracy
	a.sums.faithfulness += s.Faithfulness
	a.sums.relevance += s.Relevance
	a.sums.completeness += s.Completeness
	a.sums.overall += s.Overall
}

// Summary returns the current running means. With no evaluated turns all
// means are zero.
func (a *Aggregate) Summary() Summary {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.count == 0 {
		return Summary{}
	}
	n := float64(a.count)
	return Summary{
		Accuracy:         a.sums.accuracy / n,
		Faithfulness:     a.sums.faithfulness / n,
		Relevance:        a.sums.relevance / n,
		Completeness:     a.sums.completeness / n,
		Overall:          a.sums.overall / n,
		TotalEvaluations: a.count,
	}
}

func (a *Aggregate) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.count = 0
	a.sums.accuracy = 0
	a.sums.faithfulness = 0
	a.sums.relevance = 0
	a.sums.completeness = 0
	a.sums.overall = 0
}
