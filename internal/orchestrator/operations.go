package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/evaluation"
	"github.com/retail-insights/backend/internal/llm"
	"github.com/retail-insights/backend/internal/reports"
	"github.com/retail-insights/backend/internal/session"
	"github.com/retail-insights/backend/pkg/logger"
)

// History returns the most recent n committed turns for a session, oldest
// first. Sessions not live in this process fall back to the durable archive.
func (o *Orchestrator) History(ctx context.Context, sessionID string, n int) []session.Turn {
	sess, ok := o.sessions.Lookup(sessionID)
	if !ok {
		turns := o.sessions.ArchivedTurns(ctx, sessionID)
		if n > 0 && len(turns) > n {
			turns = turns[len(turns)-n:]
		}
		return turns
	}
	return sess.History(n)
}

// EvaluationSummary returns the session's running quality means.
func (o *Orchestrator) EvaluationSummary(sessionID string) evaluation.Summary {
	sess, ok := o.sessions.Lookup(sessionID)
	if !ok {
		return evaluation.Summary{}
	}
	return sess.Aggregate.Summary()
}

// ClearMemory resets a session's history, report context and evaluation
// aggregates. Clearing an unknown or empty session succeeds quietly.
func (o *Orchestrator) ClearMemory(ctx context.Context, sessionID string) {
	o.sessions.ClearMemory(ctx, sessionID)
	logger.Info("Session memory cleared", zap.String("session_id", sessionID))
}

// AttachReport normalizes uploaded report content and makes it available as
// context for the session's subsequent questions.
func (o *Orchestrator) AttachReport(sessionID, content string) (string, error) {
	text, err := reports.Normalize(content)
	if err != nil {
		return "", err
	}

	sess := o.sessions.Get(sessionID)
	sess.SetReportContext(text)

	logger.Info("Report context attached",
		zap.String("session_id", sessionID),
		zap.Int("chars", len(text)),
	)
	return text, nil
}

// Stats returns precomputed dataset-level summary statistics.
func (o *Orchestrator) Stats(ctx context.Context) (*datastore.SummaryStats, error) {
	return o.stats.SummaryStats(ctx)
}

const executiveSystemPrompt = `You are a retail analytics expert writing for business executives.
Given summary statistics of a sales dataset, write a concise executive summary:
3-5 short paragraphs covering overall performance, regional highlights,
category mix and monthly trend. Use only figures present in the statistics.
Do not invent numbers. Plain prose, no markdown headers.`

// GenerateExecutiveSummary produces a narrative summary of the whole dataset
// from its precomputed statistics.
func (o *Orchestrator) GenerateExecutiveSummary(ctx context.Context) (string, error) {
	stats, err := o.stats.SummaryStats(ctx)
	if err != nil {
		return "", err
	}

	resp, err := o.reasoner.Complete(ctx, llm.Request{
		System: executiveSystemPrompt,
		User:   formatStats(stats),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate executive summary: %w", err)
	}
	return resp.Content, nil
}

func formatStats(stats *datastore.SummaryStats) string {
	out := fmt.Sprintf(
		"Overall: %d orders over %s, total revenue %.2f, total profit %.2f, average order value %.2f, %d cancelled orders\n",
		stats.Overall.TotalOrders,
		stats.Overall.DateRange,
		stats.Overall.TotalRevenue,
		stats.Overall.TotalProfit,
		stats.Overall.AvgOrderValue,
		stats.Overall.CancelledOrders,
	)
	out += "Top states by revenue:\n"
	for _, s := range stats.TopStates {
		out += fmt.Sprintf("- %s: %.2f (%d orders)\n", s.State, s.Revenue, s.Orders)
	}
	out += "Revenue by category:\n"
	for _, c := range stats.ByCategory {
		out += fmt.Sprintf("- %s: %.2f (%d orders)\n", c.Category, c.Revenue, c.Orders)
	}
	out += "Monthly revenue trend:\n"
	for _, m := range stats.MonthlyTrend {
		out += fmt.Sprintf("- %d-%02d: revenue %.2f, profit %.2f, %d orders\n", m.Year, m.Month, m.Revenue, m.Profit, m.Orders)
	}
	return out
}
