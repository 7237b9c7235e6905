package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantOK   bool
		contains string
	}{
		{name: "plain paragraph", input: "just text", wantOK: false},
		{name: "empty", input: "", wantOK: false},
		{name: "bold", input: "a **b** c", wantOK: true, contains: "<strong>b</strong>"},
		{name: "code block", input: "```go\nfmt.Println()\n```", wantOK: true, contains: "<pre><code"},
		{name: "list", input: "- one\n- two", wantOK: true, contains: "<li>one</li>"},
		{name: "table", input: "| a | b |\n|---|---|\n| 1 | 2 |", wantOK: true, contains: "<table>"},
		{name: "hard wraps", input: "line one\nline **two**", wantOK: true, contains: "<br"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := RenderHTML(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.contains != "" {
				assert.Contains(t, got, tt.contains)
			}
		})
	}
}
