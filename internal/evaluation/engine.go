// Package evaluation scores completed analytics turns on four independent
// dimensions and maintains per-session running aggregates.
//
// The sub-scores are rule-based rather than model-judged: the combined score
// gates user trust, so it must be reproducible for a given turn.
package evaluation

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jdkato/prose/v2"

	"github.com/retail-insights/backend/internal/datastore"
)

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Evaluate scores one completed analytics turn. Guardrail turns are never
// evaluated; callers enforce that.
func (e *Engine) Evaluate(question, query, answer string, result *datastore.ExecutionResult) Score {
	s := Score{
		Accuracy:     e.accuracy(question, query),
		Faithfulness: e.faithfulness(question, answer, result),
		Relevance:    e.relevance(question, answer),
		Completeness: e.completeness(question, answer, result),
	}
	s.Overall = Combine(s.Accuracy, s.Faithfulness, s.Relevance, s.Completeness)
	return s
}

var (
	topNPattern      = regexp.MustCompile(`(?i)\btop\s+(\d+)`)
	aggregateWords   = regexp.MustCompile(`(?i)\b(total|sum|average|avg|count|how many|overall|rate)\b`)
	groupingWords    = regexp.MustCompile(`(?i)\b(by|per|each|across|breakdown|distribut\w*)\b`)
	aggregateFns     = regexp.MustCompile(`(?i)\b(sum|count|avg|min|max|total)\s*\(`)
	groupByClause    = regexp.MustCompile(`(?i)\bgroup\s+by\b`)
	orderLimitClause = regexp.MustCompile(`(?i)\border\s+by\b[\s\S]*\blimit\s+\d+`)
)

// accuracy checks whether the generated query's structure matches what the
// question asked for: aggregation when an aggregate was requested, grouping
// for per-dimension questions, order+limit for top-N questions.
func (e *Engine) accuracy(question, query string) float64 {
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT") &&
		!strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "WITH") {
		return 0
	}

	checks := 0
	passed := 0

	if aggregateWords.MatchString(question) {
		checks++
		if aggregateFns.MatchString(query) {
			passed++
		}
	}
	if groupingWords.MatchString(question) {
		checks++
		if groupByClause.MatchString(query) {
			passed++
		}
	}
	if m := topNPattern.FindStringSubmatch(question); m != nil {
		checks++
		if orderLimitClause.MatchString(query) && strings.Contains(query, m[1]) {
			passed++
		}
	}

	if checks == 0 {
		return 1
	}
	return float64(passed) / float64(checks)
}

// faithfulness checks that every numeric claim in the answer is traceable to
// the execution result (or quoted from the question itself). An answer with
// no figures makes no ungrounded claims and scores 1.
func (e *Engine) faithfulness(question, answer string, result *datastore.ExecutionResult) float64 {
	claims := extractNumbers(answer)
	if len(claims) == 0 {
		return 1
	}

	allowed := extractNumbers(question)
	if result != nil {
		for _, row := range result.Rows {
			for _, cell := range row {
				allowed = append(allowed, extractNumbers(cell)...)
			}
		}
	}

	grounded := 0
	for _, claim := range claims {
		if isGrounded(claim, allowed) {
			grounded++
		}
	}

	return float64(grounded) / float64(len(claims))
}

// relevance measures how much of the question's content vocabulary the
// answer engages with.
func (e *Engine) relevance(question, answer string) float64 {
	content := contentTokens(question)
	if len(content) == 0 {
		return 1
	}

	answerTokens := tokenSet(answer)
	matched := 0
	for token := range content {
		if answerTokens[token] {
			matched++
		}
	}

	return float64(matched) / float64(len(content))
}

// completeness measures whether the answer covers the scope the question
// implied: for "top N" questions, all N returned items should be named; for
// anything else, the leading values of the result should appear.
func (e *Engine) completeness(question, answer string, result *datastore.ExecutionResult) float64 {
	if result == nil || len(result.Rows) == 0 {
		return 1
	}

	expected := len(result.Rows)
	if m := topNPattern.FindStringSubmatch(question); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n < expected {
			expected = n
		}
	}
	const coverageCap = 10
	if expected > coverageCap {
		expected = coverageCap
	}

	lowerAnswer := strings.ToLower(answer)
	answerNumbers := extractNumbers(answer)

	mentioned := 0
	for _, row := range result.Rows[:expected] {
		if rowMentioned(row, lowerAnswer, answerNumbers) {
			mentioned++
		}
	}

	return float64(mentioned) / float64(expected)
}

func rowMentioned(row []string, lowerAnswer string, answerNumbers []claim) bool {
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		if f, err := strconv.ParseFloat(cell, 64); err == nil {
			for _, n := range answerNumbers {
				if approxEqual(n.value, f, n.decimals) {
					return true
				}
			}
			continue
		}
		if strings.Contains(lowerAnswer, strings.ToLower(cell)) {
			return true
		}
	}
	return false
}

// claim is one numeric token with the precision it was stated at.
type claim struct {
	value    float64
	decimals int
}

var numberPattern = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

func extractNumbers(text string) []claim {
	matches := numberPattern.FindAllString(text, -1)
	claims := make([]claim, 0, len(matches))
	for _, m := range matches {
		normalized := strings.ReplaceAll(m, ",", "")
		f, err := strconv.ParseFloat(normalized, 64)
		if err != nil {
			continue
		}
		decimals := 0
		if dot := strings.IndexByte(normalized, '.'); dot >= 0 {
			decimals = len(normalized) - dot - 1
		}
		claims = append(claims, claim{value: f, decimals: decimals})
	}
	return claims
}

func isGrounded(c claim, allowed []claim) bool {
	for _, a := range allowed {
		if approxEqual(c.value, a.value, c.decimals) {
			return true
		}
	}
	return false
}

// approxEqual compares a stated figure against a source value at the stated
// precision, so "1,234.5" matches a stored 1234.49.
func approxEqual(stated, source float64, decimals int) bool {
	if decimals > 6 {
		decimals = 6
	}
	scale := math.Pow(10, float64(decimals))
	return math.Abs(math.Round(stated*scale)-math.Round(source*scale)) < 1
}

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true, "was": true,
	"what": true, "which": true, "who": true, "how": true, "show": true,
	"me": true, "of": true, "in": true, "on": true, "for": true, "to": true,
	"and": true, "or": true, "by": true, "with": true, "please": true,
	"do": true, "does": true, "did": true, "can": true, "you": true,
	"our": true, "their": true, "its": true, "it": true, "be": true,
	"that": true, "this": true, "these": true, "those": true, "s": true,
}

// contentTokens extracts the question's content vocabulary: nouns,
// adjectives and numbers per POS tagging, with a plain token fallback when
// tagging fails.
func contentTokens(text string) map[string]bool {
	tokens := make(map[string]bool)

	doc, err := prose.NewDocument(text, prose.WithExtraction(false), prose.WithSegmentation(false))
	if err == nil {
		for _, tok := range doc.Tokens() {
			tag := tok.Tag
			if !strings.HasPrefix(tag, "NN") && !strings.HasPrefix(tag, "JJ") && tag != "CD" {
				continue
			}
			addToken(tokens, tok.Text)
		}
		if len(tokens) > 0 {
			return tokens
		}
	}

	for _, word := range strings.Fields(text) {
		addToken(tokens, word)
	}
	return tokens
}

func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	for _, word := range strings.Fields(text) {
		addToken(tokens, word)
	}
	return tokens
}

func addToken(set map[string]bool, word string) {
	word = strings.ToLower(strings.Trim(word, ".,:;!?()'\"`*"))
	word = strings.TrimSuffix(word, "'s")
	if len(word) < 2 || stopwords[word] {
		return
	}
	set[word] = true
	// Naive singular so "categories" in the question matches "category".
	if strings.HasSuffix(word, "ies") {
		set[strings.TrimSuffix(word, "ies")+"y"] = true
	} else if strings.HasSuffix(word, "s") {
		set[strings.TrimSuffix(word, "s")] = true
	}
}
