package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMarkdownTable(t *testing.T) {
	table := markdownTable([]string{"a", "b"}, [][]string{{"1", "2"}, {"3", "4"}})

	assert.Contains(t, table, "| a | b |")
	assert.Contains(t, table, "| --- | --- |")
	assert.Contains(t, table, "| 1 | 2 |")
	assert.Contains(t, table, "| 3 | 4 |")
}

func TestRenderMarkdown_NeverErrors(t *testing.T) {
	out := renderMarkdown("# hello\n\nsome *text*")
	assert.NotEmpty(t, out)
}

func TestRenderMarkdown_TrimsTrailingNewline(t *testing.T) {
	out := renderMarkdown("plain text")
	assert.False(t, strings.HasSuffix(out, "\n\n"))
}
