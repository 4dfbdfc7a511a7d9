package router

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/retail-insights/backend/internal/llm"
)

// fakeReasoner counts calls and replays a scripted response.
type fakeReasoner struct {
	calls   int
	lastReq llm.Request
	content string
	err     error
}

func (f *fakeReasoner) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.Response{Content: f.content}, nil
}

func TestGreetingFastPathSkipsReasoner(t *testing.T) {
	fake := &fakeReasoner{}
	r := New(fake)

	for _, input := range []string{"hi", "Hello", "  HEY  ", "hola"} {
		res := r.Classify(context.Background(), input, "")
		assert.Equal(t, IntentGreeting, res.Intent, input)
		assert.Contains(t, res.Reply, "Retail Insights Assistant")
	}

	assert.Zero(t, fake.calls, "fast path must not spend a reasoning call")
}

func TestAppreciationFastPath(t *testing.T) {
	fake := &fakeReasoner{}
	r := New(fake)

	res := r.Classify(context.Background(), "thank you", "")

	require.Equal(t, IntentAppreciation, res.Intent)
	assert.Contains(t, res.Reply, "welcome")
	assert.Zero(t, fake.calls)
}

func TestFastPathRequiresExactMatch(t *testing.T) {
	// "hi, show me revenue" is a real question; only the bare token short-circuits.
	fake := &fakeReasoner{content: `{"intent": "analytics", "reasoning": "asks about revenue", "response_if_not_analytics": ""}`}
	r := New(fake)

	res := r.Classify(context.Background(), "hi, show me revenue by state", "")

	assert.Equal(t, IntentAnalytics, res.Intent)
	assert.Equal(t, 1, fake.calls)
}

func TestAnalyticsNeverCarriesReply(t *testing.T) {
	fake := &fakeReasoner{content: `{"intent": "analytics", "reasoning": "sales question", "response_if_not_analytics": "stray text"}`}
	r := New(fake)

	res := r.Classify(context.Background(), "total revenue last month", "")

	assert.Equal(t, IntentAnalytics, res.Intent)
	assert.Empty(t, res.Reply)
	assert.False(t, res.FailedOpen())
}

func TestOutOfScopeUsesModelReply(t *testing.T) {
	fake := &fakeReasoner{content: `{"intent": "out_of_scope", "reasoning": "weather question", "response_if_not_analytics": "While I don't follow the weather, I can show how seasonal patterns affect your sales!"}`}
	r := New(fake)

	res := r.Classify(context.Background(), "what's the weather in Mumbai?", "")

	require.Equal(t, IntentOutOfScope, res.Intent)
	assert.Contains(t, res.Reply, "seasonal patterns")
}

func TestNonAnalyticsWithEmptyReplyGetsFallback(t *testing.T) {
	fake := &fakeReasoner{content: `{"intent": "out_of_scope", "reasoning": "recipe question", "response_if_not_analytics": ""}`}
	r := New(fake)

	res := r.Classify(context.Background(), "how do I bake bread?", "")

	require.Equal(t, IntentOutOfScope, res.Intent)
	assert.NotEmpty(t, res.Reply, "guardrail must never stonewall")
}

func TestClassificationErrorFailsOpen(t *testing.T) {
	fake := &fakeReasoner{err: errors.New("upstream down")}
	r := New(fake)

	res := r.Classify(context.Background(), "revenue by category", "")

	assert.Equal(t, IntentAnalytics, res.Intent)
	assert.Empty(t, res.Reply)
	assert.True(t, res.FailedOpen())
}

func TestUnparseableClassificationFailsOpen(t *testing.T) {
	fake := &fakeReasoner{content: "I think this is about sales"}
	r := New(fake)

	res := r.Classify(context.Background(), "revenue by category", "")

	assert.Equal(t, IntentAnalytics, res.Intent)
	assert.True(t, res.FailedOpen())
}

func TestUnknownIntentFailsOpen(t *testing.T) {
	fake := &fakeReasoner{content: `{"intent": "chitchat", "reasoning": "?", "response_if_not_analytics": "hello"}`}
	r := New(fake)

	res := r.Classify(context.Background(), "tell me something", "")

	assert.Equal(t, IntentAnalytics, res.Intent)
	assert.True(t, res.FailedOpen())
}

func TestReportContextMentionedInPrompt(t *testing.T) {
	fake := &fakeReasoner{content: `{"intent": "analytics", "reasoning": "report question", "response_if_not_analytics": ""}`}
	r := New(fake)

	r.Classify(context.Background(), "summarize the uploaded report", "Q3 performance report text")

	assert.Contains(t, fake.lastReq.System, "summarized report is available")
}
