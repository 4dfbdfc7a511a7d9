// Package sqlgen converts natural-language analytics questions into SQL over
// the sales schema.
package sqlgen

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/llm"
	"github.com/retail-insights/backend/pkg/logger"
)

// Plan is one generated query. Only the text outlives execution; the
// executed query string is retained on the turn for audit.
type Plan struct {
	Query string
	Table string
}

// GenerationError means query synthesis failed or produced unusable text
// after the bounded in-stage retry.
type GenerationError struct {
	Attempts int
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("query generation failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Exchange is one prior turn made available for reference resolution
// ("that category", "same period").
type Exchange struct {
	Question string
	Query    string
}

type Agent struct {
	reasoner      llm.Reasoner
	table         string
	historyWindow int
	rowLimit      int
}

func New(reasoner llm.Reasoner, table string, historyWindow, rowLimit int) *Agent {
	if historyWindow <= 0 {
		historyWindow = 5
	}
	if rowLimit <= 0 {
		rowLimit = 200
	}
	return &Agent{
		reasoner:      reasoner,
		table:         table,
		historyWindow: historyWindow,
		rowLimit:      rowLimit,
	}
}

const generateSystem = `You are an expert SQL analyst for a retail sales database (SQLite dialect).
Write a single read-only SELECT statement answering the user's question.

Rules:
- Use ONLY columns listed in the schema below.
- Prefer aggregate and filter queries; never modify data.
- Revenue questions should use the revenue column (already excludes cancelled orders).
- Return ONLY the SQL statement, no explanation.

%s`

const simplifiedSystem = `Write one simple SQLite SELECT statement over the %q table answering the question.
Use only columns from the schema. Return only SQL.

%s`

// Generate produces a query plan for an analytics question. The reasoning
// call gets one in-stage retry with a simplified prompt before the failure is
// surfaced as a GenerationError.
func (a *Agent) Generate(ctx context.Context, question, schema string, history []Exchange) (*Plan, error) {
	user := a.buildUserPrompt(question, history, "")

	plan, err := a.generateOnce(ctx, fmt.Sprintf(generateSystem, schema), user)
	if err == nil {
		return plan, nil
	}

	logger.Warn("Query generation failed, retrying with simplified prompt", zap.Error(err))

	plan, retryErr := a.generateOnce(ctx, fmt.Sprintf(simplifiedSystem, a.table, schema), question)
	if retryErr != nil {
		return nil, &GenerationError{Attempts: 2, Err: retryErr}
	}
	return plan, nil
}

// Regenerate produces a replacement plan after the store rejected the
// previous query. The prompt carries the rejected text and the store's
// complaint so the model can correct rather than repeat it.
func (a *Agent) Regenerate(ctx context.Context, question, schema string, history []Exchange, failedQuery, cause string) (*Plan, error) {
	user := a.buildUserPrompt(question, history, fmt.Sprintf(
		"The previous attempt was rejected by the database.\nRejected SQL: %s\nDatabase error: %s\nWrite a corrected statement.",
		failedQuery, cause,
	))

	plan, err := a.generateOnce(ctx, fmt.Sprintf(generateSystem, schema), user)
	if err != nil {
		return nil, &GenerationError{Attempts: 1, Err: err}
	}
	return plan, nil
}

func (a *Agent) generateOnce(ctx context.Context, system, user string) (*Plan, error) {
	resp, err := a.reasoner.Complete(ctx, llm.Request{
		System:      system,
		User:        user,
		Temperature: 0.01,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, err
	}

	query, err := a.extractSQL(resp.Content)
	if err != nil {
		return nil, err
	}

	logger.Debug("SQL generated", zap.String("query", query))

	return &Plan{Query: query, Table: a.table}, nil
}

func (a *Agent) buildUserPrompt(question string, history []Exchange, note string) string {
	var builder strings.Builder

	if len(history) > 0 {
		start := 0
		if len(history) > a.historyWindow {
			start = len(history) - a.historyWindow
		}
		builder.WriteString("Recent conversation (for resolving references):\n")
		for _, ex := range history[start:] {
			builder.WriteString(fmt.Sprintf("Q: %s\n", ex.Question))
			if ex.Query != "" {
				builder.WriteString(fmt.Sprintf("SQL: %s\n", ex.Query))
			}
		}
		builder.WriteString("\n")
	}

	if note != "" {
		builder.WriteString(note)
		builder.WriteString("\n\n")
	}

	builder.WriteString("Question: ")
	builder.WriteString(question)

	return builder.String()
}

var writeVerbs = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|truncate|attach|pragma|vacuum)\b`)

var limitClause = regexp.MustCompile(`(?i)\blimit\s+\d+`)

// extractSQL pulls a usable statement out of the completion: fences stripped,
// write statements rejected, leading prose dropped, and a LIMIT guard
// appended to un-aggregated selects. Syntactic validity is NOT checked here;
// only execution confirms it.
func (a *Agent) extractSQL(content string) (string, error) {
	text := llm.StripFences(content)

	// Keep the first statement only.
	if semi := strings.Index(text, ";"); semi >= 0 {
		text = strings.TrimSpace(text[:semi])
	}

	// The read-only check runs before any prefix is discarded: a write verb
	// ahead of an embedded SELECT must reject the whole statement, not be
	// trimmed into something executable.
	if writeVerbs.MatchString(text) {
		return "", fmt.Errorf("generated statement is not read-only")
	}

	// Models sometimes preface the statement with a sentence; keep from the
	// first SELECT or WITH onward.
	upper := strings.ToUpper(text)
	idx := strings.Index(upper, "SELECT")
	if widx := strings.Index(upper, "WITH"); widx >= 0 && (idx < 0 || widx < idx) {
		idx = widx
	}
	if idx < 0 {
		return "", fmt.Errorf("no SELECT statement in completion")
	}
	text = strings.TrimSpace(text[idx:])

	if !limitClause.MatchString(text) && !hasAggregate(text) {
		text = fmt.Sprintf("%s LIMIT %d", text, a.rowLimit)
	}

	return text, nil
}

var aggregateFns = regexp.MustCompile(`(?i)\b(sum|count|avg|min|max|group_concat|total)\s*\(`)

func hasAggregate(query string) bool {
	return aggregateFns.MatchString(query)
}
