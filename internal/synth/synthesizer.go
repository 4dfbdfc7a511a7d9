// Package synth turns execution results into natural-language answers.
package synth

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/llm"
	"github.com/retail-insights/backend/internal/validate"
	"github.com/retail-insights/backend/pkg/logger"
)

const (
	emptyAnswer = "I ran the analysis, but no matching records were found for that question. " +
		"You could widen the date range or relax a filter and try again."

	malformedAnswer = "I'm sorry, the analysis did not produce a readable result, so I can't " +
		"give you a trustworthy answer. Please try rephrasing the question."
)

const synthesisSystem = `You are a retail business analyst. Answer the user's question using ONLY the query result rows provided.

Rules:
- Every figure you state must come from the rows. Never invent or extrapolate numbers.
- Name the actual categories, states, or items from the rows.
- Be concise and business-focused; use plain language, not SQL jargon.
- If supplementary report context is provided, you may use it for framing, but data figures come from the rows.`

type Synthesizer struct {
	reasoner llm.Reasoner
	maxRows  int
}

func New(reasoner llm.Reasoner, maxRows int) *Synthesizer {
	if maxRows <= 0 {
		maxRows = 50
	}
	return &Synthesizer{reasoner: reasoner, maxRows: maxRows}
}

// Synthesize produces the user-facing answer for one validated execution
// result. Empty and malformed outcomes short-circuit to deterministic text;
// a failed reasoning call on the valid path degrades to a plain rendering of
// the rows rather than failing the turn.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, result *datastore.ExecutionResult, outcome validate.Outcome, reportContext string) string {
	switch outcome {
	case validate.OutcomeEmpty:
		return emptyAnswer
	case validate.OutcomeMalformed:
		return malformedAnswer
	}

	table, truncated := s.renderRows(result)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("Question: %s\n\nQuery result:\n%s\n", question, table))
	if truncated > 0 {
		builder.WriteString(fmt.Sprintf("(%d additional rows omitted)\n", truncated))
	}
	if reportContext != "" {
		builder.WriteString(fmt.Sprintf("\nSupplementary report context:\n%s\n", reportContext))
	}
	builder.WriteString("\nAnswer the question from these rows.")

	resp, err := s.reasoner.Complete(ctx, llm.Request{
		System:      synthesisSystem,
		User:        builder.String(),
		Temperature: 0.2,
		MaxTokens:   800,
	})
	if err != nil {
		logger.Warn("Answer synthesis failed, returning plain rendering", zap.Error(err))
		return s.plainAnswer(result, truncated)
	}

	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return s.plainAnswer(result, truncated)
	}

	return answer
}

// renderRows formats the result as a compact text table, capped at maxRows so
// large result sets never blow up the prompt. Returns the rendering and how
// many rows were dropped.
func (s *Synthesizer) renderRows(result *datastore.ExecutionResult) (string, int) {
	var builder strings.Builder
	builder.WriteString(strings.Join(result.Columns, " | "))
	builder.WriteString("\n")

	shown := len(result.Rows)
	truncated := 0
	if shown > s.maxRows {
		truncated = shown - s.maxRows
		shown = s.maxRows
	}

	for _, row := range result.Rows[:shown] {
		builder.WriteString(strings.Join(row, " | "))
		builder.WriteString("\n")
	}

	return builder.String(), truncated
}

func (s *Synthesizer) plainAnswer(result *datastore.ExecutionResult, truncated int) string {
	table, _ := s.renderRows(result)
	answer := fmt.Sprintf("Here is what the data shows:\n\n%s", table)
	if truncated > 0 {
		answer += fmt.Sprintf("\n(%d additional rows not shown)", truncated)
	}
	return answer
}
