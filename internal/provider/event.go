// ABOUTME: Normalized stream events and the Provider contract shared by all agent CLIs
// ABOUTME: Record is a parsed output line; Event is what flows up to the orchestrator

package provider

import (
	"encoding/json"
	"strings"
)

// Kind identifies the type of a normalized stream event.
type Kind string

const (
	KindStatus   Kind = "status"
	KindResponse Kind = "response"
	KindSession  Kind = "session"
	KindError    Kind = "error"
)

// Event is the unit of information flowing from a provider's output to the
// orchestrator. Text is set for status, response and error events; SessionID
// is set for session events.
type Event struct {
	Kind      Kind
	Text      string
	SessionID string
}

// Status returns a status event.
func Status(text string) Event { return Event{Kind: KindStatus, Text: text} }

// Response returns a response fragment event.
func Response(text string) Event { return Event{Kind: KindResponse, Text: text} }

// Error returns an error event.
func Error(text string) Event { return Event{Kind: KindError, Text: text} }

// Session returns a session event.
func Session(id string) Event { return Event{Kind: KindSession, SessionID: id} }

// Provider is the capability set every agent CLI adapter implements.
type Provider interface {
	// Name returns the registry name ("claude", "codex", "gemini").
	Name() string

	// DisplayName is used in user-facing prefixes ("Claude").
	DisplayName() string

	// BuildCommand returns argv for one invocation. A non-empty sessionID
	// resumes that session; otherwise a fresh one is started.
	BuildCommand(prompt, model, sessionID string) []string

	// ParseLine returns the structured record for a raw output line, or
	// false for blank or unstructured lines. It never fails loudly.
	ParseLine(line string) (Record, bool)

	// Classify maps one record to zero or more events, in order.
	Classify(rec Record) []Event

	// MergeStderr reports whether stderr should be merged into stdout.
	MergeStderr() bool

	// BufferLimit is the maximum line length to accept, or 0 for the default.
	BufferLimit() int

	// Aggregate turns the collected response fragments into the final text.
	Aggregate(parts []string) string

	// ClearSession removes on-disk session artifacts and returns a summary.
	ClearSession(sessionID, workDir string) string
}

// Record is one parsed JSON object from an agent's output stream.
type Record map[string]any

// String returns the string value at key, or "" if absent or not a string.
func (r Record) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Bool returns the boolean value at key.
func (r Record) Bool(key string) bool {
	b, _ := r[key].(bool)
	return b
}

// Object returns the nested object at key, or an empty record.
func (r Record) Object(key string) Record {
	m, ok := r[key].(map[string]any)
	if !ok {
		return Record{}
	}
	return Record(m)
}

// Objects returns the array at key filtered to its object elements.
func (r Record) Objects(key string) []Record {
	items, ok := r[key].([]any)
	if !ok {
		return nil
	}
	out := make([]Record, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Record(m))
		}
	}
	return out
}

// Type is shorthand for r.String("type").
func (r Record) Type() string { return r.String("type") }

// parseJSONLine decodes a line that must be a JSON object in its entirety.
func parseJSONLine(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil, false
	}
	var rec Record
	if err := json.Unmarshal([]byte(trimmed), &rec); err != nil {
		return nil, false
	}
	if rec == nil {
		return nil, false
	}
	return rec, true
}

// parseBraceLine only considers lines starting with '{' as structured.
func parseBraceLine(line string) (Record, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, false
	}
	return parseJSONLine(trimmed)
}
