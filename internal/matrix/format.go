// ABOUTME: Markdown to Matrix HTML rendering for outgoing messages
// ABOUTME: Uses goldmark with GitHub-flavoured extensions and hard wraps

package matrix

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
	"maunium.net/go/mautrix/event"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithHardWraps()),
)

// RenderHTML converts Markdown to HTML. ok is false when rendering fails or
// produces nothing beyond a single plain paragraph, in which case the plain
// body is enough.
func RenderHTML(text string) (string, bool) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return "", false
	}
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "", false
	}
	if inner, found := strings.CutPrefix(out, "<p>"); found {
		if inner, found = strings.CutSuffix(inner, "</p>"); found && !strings.Contains(inner, "<") && !strings.Contains(inner, "&") {
			return "", false
		}
	}
	return out, true
}

// textContent builds a message event body, attaching formatted HTML when the
// text contains Markdown.
func textContent(msgType event.MessageType, text string) *event.MessageEventContent {
	content := &event.MessageEventContent{
		MsgType: msgType,
		Body:    text,
	}
	if formatted, ok := RenderHTML(text); ok {
		content.Format = event.FormatHTML
		content.FormattedBody = formatted
	}
	return content
}
