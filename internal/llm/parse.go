package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractJSON unmarshals the first JSON object found in a completion into v.
// Models routinely wrap JSON in markdown fences or prose even when instructed
// not to, so this scans for a balanced {...} block instead of trusting the
// whole payload.
func ExtractJSON(content string, v interface{}) error {
	content = stripFences(content)

	start := strings.IndexByte(content, '{')
	if start < 0 {
		return fmt.Errorf("no JSON object in completion")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(content); i++ {
		ch := content[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return json.Unmarshal([]byte(content[start:i+1]), v)
			}
		}
	}

	return fmt.Errorf("unbalanced JSON object in completion")
}

// StripFences removes markdown code fences around a completion, keeping the
// fenced body. Language tags like ```sql or ```json are dropped.
func StripFences(content string) string {
	return stripFences(content)
}

func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}

	content = strings.TrimPrefix(content, "```")
	if idx := strings.IndexByte(content, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(content[:idx])
		// A short first line is a language tag, not content.
		if len(firstLine) <= 10 && !strings.ContainsAny(firstLine, " {") {
			content = content[idx+1:]
		}
	}
	content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	return strings.TrimSpace(content)
}
