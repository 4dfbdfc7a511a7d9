package evaluation

// Score is the quality judgment of one completed analytics turn. All
// sub-scores are in [0,1]; Overall is always the fixed weighted combination,
// never independently assigned.
type Score struct {
	Accuracy     float64 `json:"accuracy"`
	Faithfulness float64 `json:"faithfulness"`
	Relevance    float64 `json:"relevance"`
	Completeness float64 `json:"completeness"`
	Overall      float64 `json:"overall"`
}

// Ungrounded answers are the costliest failure mode, so faithfulness carries
// the largest weight.
const (
	weightAccuracy     = 0.25
	weightFaithfulness = 0.30
	weightRelevance    = 0.25
	weightCompleteness = 0.20
)

func Combine(accuracy, faithfulness, relevance, completeness float64) float64 {
	return weightAccuracy*accuracy +
		weightFaithfulness*faithfulness +
		weightRelevance*relevance +
		weightCompleteness*completeness
}
