package evaluation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-insights/backend/internal/datastore"
)

func TestCombineWeights(t *testing.T) {
	// With all dimensions equal the overall must equal that value exactly,
	// proving the weights sum to one.
	assert.InDelta(t, 0.8, Combine(0.8, 0.8, 0.8, 0.8), 1e-9)

	// Faithfulness carries the largest weight.
	lowFaithfulness := Combine(1, 0, 1, 1)
	lowAccuracy := Combine(0, 1, 1, 1)
	assert.Less(t, lowFaithfulness, lowAccuracy)
}

func TestEvaluateTopNScenario(t *testing.T) {
	e := NewEngine()

	question := "What are the top 3 states by revenue?"
	query := "SELECT state, SUM(revenue) AS revenue FROM sales GROUP BY state ORDER BY revenue DESC LIMIT 3"
	result := &datastore.ExecutionResult{
		Columns: []string{"state", "revenue"},
		Rows: [][]string{
			{"MAHARASHTRA", "13335534"},
			{"KARNATAKA", "10481114"},
			{"TELANGANA", "6916616"},
		},
	}
	answer := "The top 3 states by revenue are Maharashtra (13335534), Karnataka (10481114) and Telangana (6916616)."

	s := e.Evaluate(question, query, answer, result)

	assert.Equal(t, 1.0, s.Accuracy, "query structure matches the top-N request")
	assert.Equal(t, 1.0, s.Faithfulness, "every figure comes from the rows")
	assert.Equal(t, 1.0, s.Completeness, "all three states are named")
	assert.Greater(t, s.Relevance, 0.5)
	assert.InDelta(t, Combine(s.Accuracy, s.Faithfulness, s.Relevance, s.Completeness), s.Overall, 1e-9)
}

func TestEvaluateSameInputsSameScores(t *testing.T) {
	e := NewEngine()

	question := "total revenue by category"
	query := "SELECT category, SUM(revenue) FROM sales GROUP BY category"
	result := &datastore.ExecutionResult{
		Columns: []string{"category", "revenue"},
		Rows:    [][]string{{"Kurta", "21000000"}},
	}
	answer := "Kurta generated 21000000 in revenue."

	first := e.Evaluate(question, query, answer, result)
	second := e.Evaluate(question, query, answer, result)

	assert.Equal(t, first, second, "scoring must be reproducible")
}

func TestFaithfulnessPenalizesInventedFigures(t *testing.T) {
	e := NewEngine()

	result := &datastore.ExecutionResult{
		Columns: []string{"revenue"},
		Rows:    [][]string{{"5000"}},
	}

	grounded := e.Evaluate("total revenue", "SELECT SUM(revenue) FROM sales",
		"Total revenue is 5000.", result)
	invented := e.Evaluate("total revenue", "SELECT SUM(revenue) FROM sales",
		"Total revenue is 5000, up 12% from 4400 last year.", result)

	assert.Equal(t, 1.0, grounded.Faithfulness)
	assert.Less(t, invented.Faithfulness, 1.0, "figures absent from rows and question are ungrounded")
}

func TestFaithfulnessToleratesFormatting(t *testing.T) {
	e := NewEngine()

	result := &datastore.ExecutionResult{
		Columns: []string{"revenue"},
		Rows:    [][]string{{"13335534.5"}},
	}

	s := e.Evaluate("total revenue", "SELECT SUM(revenue) FROM sales",
		"Total revenue came to 13,335,534.5.", result)

	assert.Equal(t, 1.0, s.Faithfulness, "thousands separators must not break grounding")
}

func TestFaithfulnessAllowsQuestionNumbers(t *testing.T) {
	e := NewEngine()

	result := &datastore.ExecutionResult{
		Columns: []string{"orders"},
		Rows:    [][]string{{"812"}},
	}

	s := e.Evaluate("how many orders in 2022?", "SELECT COUNT(*) FROM sales WHERE year = 2022",
		"There were 812 orders in 2022.", result)

	assert.Equal(t, 1.0, s.Faithfulness, "numbers quoted from the question are grounded")
}

func TestAnswerWithoutNumbersIsFullyGrounded(t *testing.T) {
	e := NewEngine()

	s := e.Evaluate("which category leads?", "SELECT category FROM sales LIMIT 1",
		"Kurta is the leading category.", &datastore.ExecutionResult{
			Columns: []string{"category"},
			Rows:    [][]string{{"Kurta"}},
		})

	assert.Equal(t, 1.0, s.Faithfulness)
}

func TestAccuracyPenalizesMissingStructure(t *testing.T) {
	e := NewEngine()

	// "by state" asks for grouping; a bare scan does not provide it.
	s := e.Evaluate("revenue by state", "SELECT state, revenue FROM sales LIMIT 200", "rows", nil)

	assert.Less(t, s.Accuracy, 1.0)
}

func TestAccuracyOfNonSelectIsZero(t *testing.T) {
	e := NewEngine()
	s := e.Evaluate("anything", "not sql at all", "answer", nil)
	assert.Zero(t, s.Accuracy)
}

func TestCompletenessCountsMentionedRows(t *testing.T) {
	e := NewEngine()

	result := &datastore.ExecutionResult{
		Columns: []string{"state", "revenue"},
		Rows: [][]string{
			{"MAHARASHTRA", "100"},
			{"KARNATAKA", "90"},
			{"TELANGANA", "80"},
			{"DELHI", "70"},
		},
	}

	// Top-2 question with only the leader named: half covered.
	s := e.Evaluate("top 2 states by revenue",
		"SELECT state, SUM(revenue) FROM sales GROUP BY state ORDER BY 2 DESC LIMIT 2",
		"Maharashtra leads with 100.", result)

	require.InDelta(t, 0.5, s.Completeness, 1e-9)
}

func TestCompletenessOfEmptyResultIsFull(t *testing.T) {
	e := NewEngine()
	s := e.Evaluate("revenue for 2019", "SELECT SUM(revenue) FROM sales WHERE year = 2019",
		"No matching records were found.", &datastore.ExecutionResult{Columns: []string{"revenue"}})
	assert.Equal(t, 1.0, s.Completeness)
}

func TestRelevanceRewardsTopicOverlap(t *testing.T) {
	e := NewEngine()

	onTopic := e.Evaluate("revenue by category", "SELECT 1",
		"Revenue by category: Kurta leads.", nil)
	offTopic := e.Evaluate("revenue by category", "SELECT 1",
		"The weather is lovely today.", nil)

	assert.Greater(t, onTopic.Relevance, offTopic.Relevance)
}
