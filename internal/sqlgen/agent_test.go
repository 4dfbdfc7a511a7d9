package sqlgen

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-insights/backend/internal/llm"
)

// scriptedReasoner replays responses in order, one per call.
type scriptedReasoner struct {
	responses []string
	errs      []error
	calls     int
	requests  []llm.Request
}

func (s *scriptedReasoner) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	i := s.calls
	s.calls++
	s.requests = append(s.requests, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, errors.New("unexpected extra reasoning call")
	}
	return &llm.Response{Content: s.responses[i]}, nil
}

const testSchema = "Table sales: columns order_id, date, category, state, revenue"

func newTestAgent(r llm.Reasoner) *Agent {
	return New(r, "sales", 5, 200)
}

func TestGenerateStripsFencesAndProse(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{
		"Here is your query:\n```sql\nSELECT category, SUM(revenue) FROM sales GROUP BY category;\n```",
	}}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "revenue by category", testSchema, nil)

	require.NoError(t, err)
	assert.Equal(t, "SELECT category, SUM(revenue) FROM sales GROUP BY category", plan.Query)
	assert.Equal(t, "sales", plan.Table)
}

func TestGenerateRejectsWriteStatements(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{
		"INSERT INTO sales SELECT * FROM staging",
		"SELECT * FROM sales WHERE 1=1; DELETE FROM sales",
	}}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "clear the data", testSchema, nil)

	// The second attempt survives because everything after the first
	// statement is cut before execution.
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM sales WHERE 1=1 LIMIT 200", plan.Query)
	assert.Equal(t, 2, fake.calls, "write output must trigger the simplified retry")
}

func TestGenerateNeverSalvagesWritePrefix(t *testing.T) {
	// An INSERT ... SELECT must not survive as the embedded SELECT with the
	// write prefix trimmed away.
	fake := &scriptedReasoner{responses: []string{
		"INSERT INTO sales SELECT * FROM staging",
		"INSERT INTO archive SELECT * FROM sales",
	}}
	agent := newTestAgent(fake)

	_, err := agent.Generate(context.Background(), "copy the data", testSchema, nil)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempts)
}

func TestGenerateRejectsWriteVerbsOutright(t *testing.T) {
	// A write verb inside the first statement cannot be salvaged by the
	// statement cut, so both attempts fail and the error surfaces.
	fake := &scriptedReasoner{responses: []string{
		"WITH doomed AS (SELECT 1) DELETE FROM sales",
		"WITH doomed AS (SELECT 1) UPDATE sales SET revenue = 0",
	}}
	agent := newTestAgent(fake)

	_, err := agent.Generate(context.Background(), "break things", testSchema, nil)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempts)
}

func TestGenerateKeepsFirstStatementOnly(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{
		"SELECT state FROM sales; SELECT category FROM sales",
	}}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "states", testSchema, nil)

	require.NoError(t, err)
	assert.Equal(t, "SELECT state FROM sales LIMIT 200", plan.Query)
}

func TestGenerateAppendsLimitToRawSelects(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{
		"SELECT order_id, revenue FROM sales WHERE state = 'MAHARASHTRA'",
	}}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "orders in Maharashtra", testSchema, nil)

	require.NoError(t, err)
	assert.Contains(t, plan.Query, "LIMIT 200")
}

func TestGenerateLeavesAggregatesUncapped(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{
		"SELECT SUM(revenue) FROM sales",
	}}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "total revenue", testSchema, nil)

	require.NoError(t, err)
	assert.NotContains(t, plan.Query, "LIMIT")
}

func TestGenerateRespectsExistingLimit(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{
		"SELECT category FROM sales ORDER BY revenue DESC LIMIT 5",
	}}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "top 5 categories", testSchema, nil)

	require.NoError(t, err)
	assert.Equal(t, "SELECT category FROM sales ORDER BY revenue DESC LIMIT 5", plan.Query)
}

func TestGenerateRetriesWithSimplifiedPrompt(t *testing.T) {
	fake := &scriptedReasoner{
		responses: []string{"I cannot write SQL for that", "SELECT COUNT(*) FROM sales"},
	}
	agent := newTestAgent(fake)

	plan, err := agent.Generate(context.Background(), "how many orders", testSchema, nil)

	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(*) FROM sales", plan.Query)
	assert.Equal(t, 2, fake.calls)
}

func TestGenerateFailsAfterBothAttempts(t *testing.T) {
	fake := &scriptedReasoner{errs: []error{
		errors.New("upstream down"),
		errors.New("upstream down"),
	}}
	agent := newTestAgent(fake)

	_, err := agent.Generate(context.Background(), "total revenue", testSchema, nil)

	var genErr *GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.Equal(t, 2, genErr.Attempts)
}

func TestGenerateIncludesHistoryWindow(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{"SELECT SUM(revenue) FROM sales"}}
	agent := New(fake, "sales", 2, 200)

	history := []Exchange{
		{Question: "oldest", Query: "SELECT 1"},
		{Question: "middle", Query: "SELECT 2"},
		{Question: "newest", Query: "SELECT 3"},
	}
	_, err := agent.Generate(context.Background(), "same for last month", testSchema, history)

	require.NoError(t, err)
	user := fake.requests[0].User
	assert.Contains(t, user, "newest")
	assert.Contains(t, user, "middle")
	assert.NotContains(t, user, "oldest", "history beyond the window must be dropped")
}

func TestRegenerateCarriesRejectionDetails(t *testing.T) {
	fake := &scriptedReasoner{responses: []string{"SELECT category FROM sales GROUP BY category"}}
	agent := newTestAgent(fake)

	plan, err := agent.Regenerate(context.Background(), "categories", testSchema, nil,
		"SELECT catgory FROM sales", "no such column: catgory")

	require.NoError(t, err)
	assert.NotEmpty(t, plan.Query)
	user := fake.requests[0].User
	assert.Contains(t, user, "SELECT catgory FROM sales")
	assert.Contains(t, user, "no such column: catgory")
}
