// Package orchestrator drives a question through the full pipeline: intent
// routing, SQL generation, execution, validation, answer synthesis and
// quality evaluation, committing one finished turn per question.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/datastore"
	"github.com/retail-insights/backend/internal/evaluation"
	"github.com/retail-insights/backend/internal/llm"
	"github.com/retail-insights/backend/internal/metrics"
	"github.com/retail-insights/backend/internal/router"
	"github.com/retail-insights/backend/internal/session"
	"github.com/retail-insights/backend/internal/sqlgen"
	"github.com/retail-insights/backend/internal/synth"
	"github.com/retail-insights/backend/internal/validate"
	"github.com/retail-insights/backend/pkg/logger"
)

type Orchestrator struct {
	router       *router.Router
	generator    *sqlgen.Agent
	store        datastore.Store
	stats        datastore.StatsProvider
	synthesizer  *synth.Synthesizer
	evaluator    *evaluation.Engine
	reasoner     llm.Reasoner
	sessions     *session.Manager
	queryTimeout time.Duration
}

// Answer is the terminal output of one processed question.
type Answer struct {
	TurnID     string            `json:"turn_id"`
	Text       string            `json:"text"`
	Intent     string            `json:"intent"`
	Query      string            `json:"query,omitempty"`
	Scores     *evaluation.Score `json:"scores,omitempty"`
	Confidence float64           `json:"confidence"`
	LatencyMS  int               `json:"latency_ms"`
}

func New(
	rt *router.Router,
	generator *sqlgen.Agent,
	store datastore.Store,
	stats datastore.StatsProvider,
	synthesizer *synth.Synthesizer,
	evaluator *evaluation.Engine,
	reasoner llm.Reasoner,
	sessions *session.Manager,
	queryTimeout time.Duration,
) *Orchestrator {
	return &Orchestrator{
		router:       rt,
		generator:    generator,
		store:        store,
		stats:        stats,
		synthesizer:  synthesizer,
		evaluator:    evaluator,
		reasoner:     reasoner,
		sessions:     sessions,
		queryTimeout: queryTimeout,
	}
}

// ProcessQuery runs one question through the pipeline. The turn is committed
// to the session atomically at the end: either the fully-populated turn
// appears in history, or nothing does. Questions on the same session are
// processed one at a time in arrival order.
func (o *Orchestrator) ProcessQuery(ctx context.Context, sessionID, question string) (*Answer, error) {
	startTime := time.Now()
	turnID := uuid.New().String()

	sess := o.sessions.Get(sessionID)
	sess.Acquire()
	defer sess.Release()

	logger.Info("Processing query",
		zap.String("turn_id", turnID),
		zap.String("session_id", sessionID),
		zap.String("question", question),
	)

	routeStart := time.Now()
	route := o.router.Classify(ctx, question, sess.ReportContext())
	metrics.StageDuration.WithLabelValues("routing").Observe(time.Since(routeStart).Seconds())
	if route.FailedOpen() {
		metrics.RouterFailOpen.Inc()
	}

	if route.Intent != router.IntentAnalytics {
		return o.finishGuardrail(ctx, sess, turnID, question, route, startTime), nil
	}

	answer, err := o.runAnalytics(ctx, sess, turnID, question, route, startTime)
	if err != nil {
		// A cancelled turn never reaches history.
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		metrics.QueryTotal.WithLabelValues(string(route.Intent), "error").Inc()
		return nil, err
	}
	return answer, nil
}

// finishGuardrail commits a conversational turn that never touched the
// analytics pipeline.
func (o *Orchestrator) finishGuardrail(ctx context.Context, sess *session.Session, turnID, question string, route router.Result, startTime time.Time) *Answer {
	latency := int(time.Since(startTime).Milliseconds())

	o.sessions.Commit(ctx, sess, session.Turn{
		ID:        turnID,
		Question:  question,
		Intent:    string(route.Intent),
		Answer:    route.Reply,
		CreatedAt: time.Now(),
	})

	metrics.GuardrailReplies.WithLabelValues(string(route.Intent)).Inc()
	metrics.QueryTotal.WithLabelValues(string(route.Intent), "ok").Inc()
	metrics.QueryDuration.WithLabelValues(string(route.Intent)).Observe(time.Since(startTime).Seconds())

	logger.Info("Conversational reply issued",
		zap.String("turn_id", turnID),
		zap.String("intent", string(route.Intent)),
		zap.Int("latency_ms", latency),
	)

	return &Answer{
		TurnID:     turnID,
		Text:       route.Reply,
		Intent:     string(route.Intent),
		Confidence: 1.0,
		LatencyMS:  latency,
	}
}

func (o *Orchestrator) runAnalytics(ctx context.Context, sess *session.Session, turnID, question string, route router.Result, startTime time.Time) (*Answer, error) {
	schema, err := o.store.DescribeSchema(ctx)
	if err != nil {
		o.commitFailed(ctx, sess, turnID, question, route, "", err)
		return nil, fmt.Errorf("failed to describe schema: %w", err)
	}

	history := o.priorExchanges(sess)

	genStart := time.Now()
	plan, err := o.generator.Generate(ctx, question, schema, history)
	metrics.StageDuration.WithLabelValues("generation").Observe(time.Since(genStart).Seconds())
	if err != nil {
		o.commitFailed(ctx, sess, turnID, question, route, "", err)
		return nil, err
	}

	result, plan, err := o.executeWithRecovery(ctx, sess, question, schema, history, plan)
	if err != nil {
		o.commitFailed(ctx, sess, turnID, question, route, plan.Query, err)
		return nil, err
	}

	outcome := validate.Check(result)
	metrics.ResultRows.Observe(float64(result.RowCount()))

	synthStart := time.Now()
	text := o.synthesizer.Synthesize(ctx, question, result, outcome, sess.ReportContext())
	metrics.StageDuration.WithLabelValues("synthesis").Observe(time.Since(synthStart).Seconds())

	evalStart := time.Now()
	scores := o.evaluator.Evaluate(question, plan.Query, text, result)
	metrics.StageDuration.WithLabelValues("evaluation").Observe(time.Since(evalStart).Seconds())
	recordScores(scores)

	confidence := calculateConfidence(scores, outcome)
	metrics.ConfidenceScore.Observe(confidence)

	latency := int(time.Since(startTime).Milliseconds())

	sess.Aggregate.Add(scores)
	o.sessions.Commit(ctx, sess, session.Turn{
		ID:        turnID,
		Question:  question,
		Intent:    string(route.Intent),
		Query:     plan.Query,
		Result:    result,
		Answer:    text,
		Scores:    &scores,
		CreatedAt: time.Now(),
	})

	metrics.QueryTotal.WithLabelValues(string(route.Intent), "ok").Inc()
	metrics.QueryDuration.WithLabelValues(string(route.Intent)).Observe(time.Since(startTime).Seconds())

	logger.Info("Query processed successfully",
		zap.String("turn_id", turnID),
		zap.String("query", plan.Query),
		zap.Float64("overall_score", scores.Overall),
		zap.Float64("confidence", confidence),
		zap.Int("latency_ms", latency),
	)

	return &Answer{
		TurnID:     turnID,
		Text:       text,
		Intent:     string(route.Intent),
		Query:      plan.Query,
		Scores:     &scores,
		Confidence: confidence,
		LatencyMS:  latency,
	}, nil
}

// executeWithRecovery runs the plan against the store, regenerating the SQL
// exactly once if the store rejects it as malformed. Store unavailability is
// terminal immediately: retrying cannot fix an unreachable store.
func (o *Orchestrator) executeWithRecovery(ctx context.Context, sess *session.Session, question, schema string, history []sqlgen.Exchange, plan *sqlgen.Plan) (*datastore.ExecutionResult, *sqlgen.Plan, error) {
	result, err := o.execute(ctx, plan.Query)
	if err == nil {
		return result, plan, nil
	}

	var malformed *datastore.MalformedQueryError
	if !errors.As(err, &malformed) {
		return nil, plan, err
	}

	metrics.QueryRegenerations.Inc()
	logger.Warn("Query rejected by store, regenerating",
		zap.String("query", plan.Query),
		zap.Error(malformed.Err),
	)

	regenerated, err := o.generator.Regenerate(ctx, question, schema, history, plan.Query, malformed.Err.Error())
	if err != nil {
		return nil, plan, err
	}

	result, err = o.execute(ctx, regenerated.Query)
	if err != nil {
		return nil, regenerated, err
	}
	return result, regenerated, nil
}

func (o *Orchestrator) execute(ctx context.Context, query string) (*datastore.ExecutionResult, error) {
	if o.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.queryTimeout)
		defer cancel()
	}
	start := time.Now()
	result, err := o.store.Execute(ctx, query)
	metrics.StageDuration.WithLabelValues("execution").Observe(time.Since(start).Seconds())
	return result, err
}

// commitFailed records a terminal analytics failure as a fully-populated
// turn. Cancelled contexts skip the commit so an abandoned question leaves
// no trace.
func (o *Orchestrator) commitFailed(ctx context.Context, sess *session.Session, turnID, question string, route router.Result, query string, cause error) {
	if errors.Is(cause, context.Canceled) {
		return
	}
	o.sessions.Commit(ctx, sess, session.Turn{
		ID:        turnID,
		Question:  question,
		Intent:    string(route.Intent),
		Query:     query,
		Answer:    failureAnswer(cause),
		Error:     cause.Error(),
		CreatedAt: time.Now(),
	})
}

const (
	generationFailedAnswer = "I wasn't able to build a valid query for that question. Could you rephrase it, perhaps naming the metric or dimension you're interested in?"
	storeUnavailableAnswer = "The sales data store is currently unavailable. Please try again in a moment."
	queryRejectedAnswer    = "I generated a query for your question, but the data store rejected it. Could you try rewording the question?"
)

func failureAnswer(err error) string {
	var genErr *sqlgen.GenerationError
	var malformed *datastore.MalformedQueryError
	switch {
	case errors.Is(err, datastore.ErrStoreUnavailable):
		return storeUnavailableAnswer
	case errors.As(err, &genErr):
		return generationFailedAnswer
	case errors.As(err, &malformed):
		return queryRejectedAnswer
	default:
		return generationFailedAnswer
	}
}

// priorExchanges converts recent successful analytics turns into generation
// context.
func (o *Orchestrator) priorExchanges(sess *session.Session) []sqlgen.Exchange {
	turns := sess.History(0)
	exchanges := make([]sqlgen.Exchange, 0, len(turns))
	for _, t := range turns {
		if t.Intent != string(router.IntentAnalytics) || t.Query == "" || t.Error != "" {
			continue
		}
		exchanges = append(exchanges, sqlgen.Exchange{Question: t.Question, Query: t.Query})
	}
	return exchanges
}

func recordScores(s evaluation.Score) {
	metrics.EvaluationScore.WithLabelValues("accuracy").Observe(s.Accuracy)
	metrics.EvaluationScore.WithLabelValues("faithfulness").Observe(s.Faithfulness)
	metrics.EvaluationScore.WithLabelValues("relevance").Observe(s.Relevance)
	metrics.EvaluationScore.WithLabelValues("completeness").Observe(s.Completeness)
	metrics.EvaluationScore.WithLabelValues("overall").Observe(s.Overall)
}

// calculateConfidence maps the evaluation outcome onto a single 0-1 figure
// surfaced to clients alongside the answer. For a populated result this is
// the weighted overall score itself.
func calculateConfidence(scores evaluation.Score, outcome validate.Outcome) float64 {
	if outcome == validate.OutcomeEmpty {
		// Nothing matched: the answer is honest but thin.
		return 0.5
	}
	return scores.Overall
}
