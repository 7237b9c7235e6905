// ABOUTME: Codex CLI provider using `codex exec --json`
// ABOUTME: Only '{'-prefixed lines are structured; thread.started carries the session id

package provider

import "strings"

type codex struct {
	base
}

func newCodex(opts Options) *codex {
	return &codex{base: newBase("codex", opts, AggregateLast)}
}

func (c *codex) BuildCommand(prompt, model, sessionID string) []string {
	args := []string{c.path, "exec"}
	if sessionID != "" {
		args = append(args, "resume")
	}
	args = append(args,
		"--dangerously-bypass-approvals-and-sandbox",
		"--json",
		"-m", model,
	)
	if sessionID != "" {
		args = append(args, sessionID)
	}
	return append(args, prompt)
}

// ParseLine ignores the plain-text banner codex prints around its JSON events.
func (c *codex) ParseLine(line string) (Record, bool) {
	return parseBraceLine(line)
}

func (c *codex) MergeStderr() bool { return true }

func (c *codex) Classify(rec Record) []Event {
	var events []Event
	eventType := rec.Type()

	if status := codexItemStatus(eventType, rec.Object("item")); status != "" {
		events = append(events, Status(status))
	}

	switch eventType {
	case "turn.started":
		events = append(events, Status("Working..."))
	case "error":
		if msg := rec.String("message"); msg != "" {
			events = append(events, Error(msg))
			if strings.Contains(strings.ToLower(msg), "reconnect") {
				events = append(events, Status("Reconnecting..."))
			}
		}
	case "item.completed":
		item := rec.Object("item")
		if item.Type() == "agent_message" {
			if text := item.String("text"); text != "" {
				events = append(events, Response(text))
			}
		}
	case "turn.failed":
		msg := rec.String("message")
		if msg == "" {
			msg = rec.Object("error").String("message")
		}
		if msg != "" {
			events = append(events, Error(msg))
		}
	case "thread.started":
		if id := rec.String("thread_id"); id != "" {
			events = append(events, Session(id))
		}
	}
	return events
}
