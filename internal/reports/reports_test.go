package reports

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStripsMarkup(t *testing.T) {
	html := `<html><head><style>body { color: red }</style></head>
<body><h1>Q3 Report</h1><p>Revenue grew   12%.</p>
<script>alert("x")</script></body></html>`

	text, err := Normalize(html)
	require.NoError(t, err)

	assert.Contains(t, text, "Q3 Report")
	assert.Contains(t, text, "Revenue grew 12%.")
	assert.NotContains(t, text, "<p>")
	assert.NotContains(t, text, "alert")
	assert.NotContains(t, text, "color: red")
}

func TestNormalizePlainTextPassesThrough(t *testing.T) {
	text, err := Normalize("Revenue grew.\n\n   Profit   held steady.  ")
	require.NoError(t, err)
	assert.Equal(t, "Revenue grew.\nProfit held steady.", text)
}

func TestNormalizeCapsLength(t *testing.T) {
	text, err := Normalize(strings.Repeat("a", 20000))
	require.NoError(t, err)
	assert.Len(t, text, maxContextChars)
}

func TestNormalizeTruncatesOnRuneBoundary(t *testing.T) {
	// Each euro sign is three bytes, so a byte-index cut would land inside
	// a rune.
	text, err := Normalize(strings.Repeat("€", 4000))
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(text), "truncated context must stay valid UTF-8")
	assert.LessOrEqual(t, len(text), maxContextChars)
	assert.True(t, strings.HasSuffix(text, "€"))
}
