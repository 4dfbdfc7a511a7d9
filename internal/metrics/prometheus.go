package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retail_insights_query_duration_seconds",
			Help:    "End-to-end query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 20},
		},
		[]string{"intent"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_insights_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"intent", "status"},
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retail_insights_stage_duration_seconds",
			Help:    "Per-stage pipeline duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	GuardrailReplies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_insights_guardrail_replies_total",
			Help: "Total conversational replies that bypassed the analytics pipeline",
		},
		[]string{"intent"},
	)

	RouterFailOpen = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retail_insights_router_fail_open_total",
			Help: "Total classification failures routed to analytics by default",
		},
	)

	QueryRegenerations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "retail_insights_query_regenerations_total",
			Help: "Total SQL regeneration attempts after execution failure",
		},
	)

	EvaluationScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "retail_insights_evaluation_score",
			Help:    "Per-dimension evaluation scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
		[]string{"dimension"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retail_insights_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_insights_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	ResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "retail_insights_result_rows",
			Help:    "Number of rows returned per executed query",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 200},
		},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_insights_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retail_insights_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)
)

func Init() {
	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(QueryTotal)
	prometheus.MustRegister(StageDuration)
	prometheus.MustRegister(GuardrailReplies)
	prometheus.MustRegister(RouterFailOpen)
	prometheus.MustRegister(QueryRegenerations)
	prometheus.MustRegister(EvaluationScore)
	prometheus.MustRegister(ConfidenceScore)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(ResultRows)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
