// Package router classifies raw user input into intents and produces
// guardrail replies for everything that is not an analytics question.
package router

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/retail-insights/backend/internal/llm"
	"github.com/retail-insights/backend/pkg/logger"
)

type Intent string

const (
	IntentAnalytics    Intent = "analytics"
	IntentGreeting     Intent = "greeting"
	IntentAppreciation Intent = "appreciation"
	IntentOutOfScope   Intent = "out_of_scope"
)

// Result is one classification outcome. Reply is populated for every
// non-analytics intent; for analytics it is empty and the pipeline proceeds.
type Result struct {
	Intent    Intent
	Reasoning string
	Reply     string
}

// FailedOpen reports whether this result came from the fail-open path, where
// a classification failure is absorbed by proceeding to analytics.
func (r Result) FailedOpen() bool {
	return strings.HasPrefix(r.Reasoning, failOpenPrefix)
}

const (
	fastPathReasoning = "matched via fast path"
	failOpenPrefix    = "classification failed"

	greetingReply = "Hello! I'm your Retail Insights Assistant. How can I help you analyze your data today?"

	appreciationReply = "You're very welcome! I'm here to help you get the most out of your retail data. " +
		"Is there anything else you'd like to analyze?"
)

// greetings and appreciations are the constant-time fast paths: the most
// common non-analytics inputs never cost a reasoning call.
var greetings = map[string]bool{
	"hi": true, "hello": true, "hey": true, "hola": true,
}

var appreciations = map[string]bool{
	"thanks": true, "thank you": true, "great": true, "awesome": true, "good": true,
}

const systemPrompt = `You are a specialized router and conversational guardrail for a Retail Insights Assistant.
Classify the user's input into one of these categories:
1. analytics: Questions about sales, revenue, products, orders, or customers. This includes requests for SQL queries or data synthesis from reports.
2. greeting: Simple hellos, greetings, or "how are you".
3. appreciation: "thanks", "great job", "you are helpful", etc.
4. out_of_scope: Questions about topics not related to retail (e.g., weather, recipes, personal advice, news).

Information about available context:
- Database: Structured sales data is available.
- Report Context: %s

Instructions for Non-Analytics responses:
- For greetings: Respond with a warm, professional welcome. Briefly mention your expertise in retail data analysis.
- For appreciation: Respond with humble professionalism and offer further assistance with data insights.
- For out_of_scope: DO NOT simply say "I can't help". Instead, acknowledge the user's input politely, then explain that your primary purpose is to provide deep retail business insights. Offer a relevant bridge back to retail (e.g., "While I don't follow the weather, I can tell you how seasonal patterns usually affect retail sales based on your data!").`

const classificationHint = `{"intent": "analytics|greeting|appreciation|out_of_scope", "reasoning": "brief reason", "response_if_not_analytics": "reply text, empty for analytics"}`

type classification struct {
	Intent                 string `json:"intent"`
	Reasoning              string `json:"reasoning"`
	ResponseIfNotAnalytics string `json:"response_if_not_analytics"`
}

type Router struct {
	reasoner llm.Reasoner
}

func New(reasoner llm.Reasoner) *Router {
	return &Router{reasoner: reasoner}
}

// Classify resolves the intent of one user turn. It never returns an error:
// a failed or unparseable reasoning call fails open to analytics so the
// expensive path gets a chance rather than the user getting a silent refusal.
func (r *Router) Classify(ctx context.Context, question, reportContext string) Result {
	normalized := strings.ToLower(strings.TrimSpace(question))

	if greetings[normalized] {
		return Result{
			Intent:    IntentGreeting,
			Reasoning: fastPathReasoning,
			Reply:     greetingReply,
		}
	}
	if appreciations[normalized] {
		return Result{
			Intent:    IntentAppreciation,
			Reasoning: fastPathReasoning,
			Reply:     appreciationReply,
		}
	}

	reportInfo := "No additional reports are currently loaded."
	if reportContext != "" {
		reportInfo = "An additional summarized report is available as context."
	}

	resp, err := r.reasoner.Complete(ctx, llm.Request{
		System:      fmt.Sprintf(systemPrompt, reportInfo),
		User:        question,
		JSONHint:    classificationHint,
		Temperature: 0.01,
		MaxTokens:   400,
	})
	if err != nil {
		logger.Warn("Intent classification failed, failing open to analytics", zap.Error(err))
		return failOpen(err)
	}

	var parsed classification
	if err := llm.ExtractJSON(resp.Content, &parsed); err != nil {
		logger.Warn("Unparseable classification output, failing open to analytics", zap.Error(err))
		return failOpen(err)
	}

	intent := Intent(strings.ToLower(strings.TrimSpace(parsed.Intent)))
	switch intent {
	case IntentAnalytics, IntentGreeting, IntentAppreciation, IntentOutOfScope:
	default:
		logger.Warn("Unknown intent from classifier, failing open to analytics",
			zap.String("intent", parsed.Intent),
		)
		return failOpen(fmt.Errorf("unknown intent %q", parsed.Intent))
	}

	result := Result{
		Intent:    intent,
		Reasoning: parsed.Reasoning,
		Reply:     strings.TrimSpace(parsed.ResponseIfNotAnalytics),
	}

	// A non-analytics intent without a reply would stonewall the user.
	if result.Intent != IntentAnalytics && result.Reply == "" {
		result.Reply = fallbackReply(result.Intent)
	}
	if result.Intent == IntentAnalytics {
		result.Reply = ""
	}

	return result
}

func failOpen(cause error) Result {
	return Result{
		Intent:    IntentAnalytics,
		Reasoning: fmt.Sprintf("%s: %v", failOpenPrefix, cause),
		Reply:     "",
	}
}

func fallbackReply(intent Intent) string {
	switch intent {
	case IntentGreeting:
		return greetingReply
	case IntentAppreciation:
		return appreciationReply
	default:
		return "That's an interesting topic! My focus is deep retail business insight: " +
			"I can show you how your sales, categories, and regions are performing. " +
			"Would you like to explore your retail data?"
	}
}
