// Package reports normalizes uploaded report content into plain text suitable
// for prompt context.
package reports

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

const maxContextChars = 8000

var whitespacePattern = regexp.MustCompile(`[ \t]+`)

// Normalize strips markup from report content and collapses whitespace.
// Plain-text input passes through with the same whitespace treatment.
func Normalize(content string) (string, error) {
	text := content
	if strings.Contains(content, "<") && strings.Contains(content, ">") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
		if err != nil {
			return "", fmt.Errorf("failed to parse report content: %w", err)
		}
		doc.Find("script, style").Remove()
		text = doc.Text()
	}

	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(whitespacePattern.ReplaceAllString(line, " "))
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}

	out := strings.Join(cleaned, "\n")
	if len(out) > maxContextChars {
		// Truncate on a rune boundary so the context stays valid UTF-8.
		cut := maxContextChars
		for cut > 0 && !utf8.RuneStart(out[cut]) {
			cut--
		}
		out = out[:cut]
	}
	return out, nil
}
