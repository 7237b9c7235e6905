// ABOUTME: Tests for provider command building, line parsing, and event classification
// ABOUTME: Covers all built-in providers plus aggregation and registry behaviour

package provider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, p Provider, line string) Record {
	t.Helper()
	rec, ok := p.ParseLine(line)
	require.True(t, ok, "line should parse: %s", line)
	return rec
}

func TestClaude_BuildCommand(t *testing.T) {
	p := newClaude(Options{Path: "/bin/claude"})

	fresh := p.BuildCommand("hi", "opus", "")
	assert.Equal(t, []string{
		"/bin/claude", "-p", "--continue",
		"--output-format", "stream-json", "--verbose",
		"--dangerously-skip-permissions", "--model", "opus", "hi",
	}, fresh)

	resumed := p.BuildCommand("hi", "opus", "sess-1")
	assert.Contains(t, resumed, "--resume")
	assert.Contains(t, resumed, "sess-1")
	assert.NotContains(t, resumed, "--continue")
	assert.Equal(t, "hi", resumed[len(resumed)-1])
}

func TestClaude_Classify(t *testing.T) {
	p := newClaude(Options{})

	tests := []struct {
		name string
		line string
		want []Event
	}{
		{
			name: "assistant text",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}`,
			want: []Event{Response("hello")},
		},
		{
			name: "tool use then text",
			line: `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/a/b/main.go"}},{"type":"text","text":"done"}]}}`,
			want: []Event{Status("Reading main.go..."), Response("done")},
		},
		{
			name: "result",
			line: `{"type":"result","result":"hello"}`,
			want: []Event{Response("hello")},
		},
		{
			name: "error result",
			line: `{"type":"result","is_error":true,"result":"rate limited"}`,
			want: []Event{Error("rate limited")},
		},
		{
			name: "error event",
			line: `{"type":"error","message":"boom"}`,
			want: []Event{Error("boom")},
		},
		{
			name: "init carries session",
			line: `{"type":"system","subtype":"init","session_id":"abc"}`,
			want: []Event{Session("abc")},
		},
		{
			name: "empty text ignored",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":""}]}}`,
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Classify(mustParse(t, p, tt.line))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Malformed(t *testing.T) {
	for _, name := range Names {
		p, err := New(name, Options{})
		require.NoError(t, err)
		for _, line := range []string{"", "   ", "not-json", "[1,2]", `"str"`, "null", "{broken"} {
			_, ok := p.ParseLine(line)
			assert.False(t, ok, "%s should skip %q", name, line)
		}
	}
}

func TestCodex_ParseLineRequiresBrace(t *testing.T) {
	p := newCodex(Options{})
	_, ok := p.ParseLine(`  {"type":"turn.started"}`)
	assert.True(t, ok)
	_, ok = p.ParseLine(`2025-01-01 INFO {"type":"turn.started"}`)
	assert.False(t, ok)
}

func TestCodex_BuildCommand(t *testing.T) {
	p := newCodex(Options{Path: "codex"})

	assert.Equal(t, []string{
		"codex", "exec", "--dangerously-bypass-approvals-and-sandbox", "--json", "-m", "gpt", "go",
	}, p.BuildCommand("go", "gpt", ""))

	assert.Equal(t, []string{
		"codex", "exec", "resume", "--dangerously-bypass-approvals-and-sandbox", "--json", "-m", "gpt", "t-1", "go",
	}, p.BuildCommand("go", "gpt", "t-1"))
}

func TestCodex_Classify(t *testing.T) {
	p := newCodex(Options{})

	tests := []struct {
		name string
		line string
		want []Event
	}{
		{"thread started", `{"type":"thread.started","thread_id":"t-9"}`, []Event{Session("t-9")}},
		{"turn started", `{"type":"turn.started"}`, []Event{Status("Working...")}},
		{
			"command",
			`{"type":"item.started","item":{"type":"command_execution","command":"bash -lc 'ls -la'"}}`,
			[]Event{Status("Running ls -la")},
		},
		{
			"agent message",
			`{"type":"item.completed","item":{"type":"agent_message","text":"all done"}}`,
			[]Event{Response("all done")},
		},
		{
			"reasoning summary",
			`{"type":"item.completed","item":{"type":"reasoning","text":"**Planning the change**"}}`,
			[]Event{Status("Planning the change")},
		},
		{
			"reconnect error",
			`{"type":"error","message":"stream disconnected, Reconnecting 1/5"}`,
			[]Event{Error("stream disconnected, Reconnecting 1/5"), Status("Reconnecting...")},
		},
		{"turn failed", `{"type":"turn.failed","error":{"message":"quota"}}`, []Event{Error("quota")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Classify(mustParse(t, p, tt.line)))
		})
	}
	assert.True(t, p.MergeStderr())
}

func TestGemini_BuildCommandAndClassify(t *testing.T) {
	p := newGemini(Options{})

	cmd := p.BuildCommand("q", "gemini-2.5-pro", "s-2")
	assert.Equal(t, []string{"gemini", "-p", "q", "--output-format", "stream-json", "--yolo", "-m", "gemini-2.5-pro", "--resume", "s-2"}, cmd)
	assert.NotContains(t, p.BuildCommand("q", "m", ""), "--resume")

	assert.Equal(t, []Event{Session("s-2")}, p.Classify(mustParse(t, p, `{"type":"init","session_id":"s-2"}`)))
	assert.Equal(t, []Event{Response("Hel")}, p.Classify(mustParse(t, p, `{"type":"message","role":"assistant","content":"Hel"}`)))
	assert.Empty(t, p.Classify(mustParse(t, p, `{"type":"message","role":"user","content":"q"}`)))
	assert.Equal(t,
		[]Event{Status("Running go test ./...")},
		p.Classify(mustParse(t, p, `{"type":"tool_use","tool_name":"run_shell_command","parameters":{"command":"go test ./..."}}`)))
	assert.Equal(t,
		[]Event{Error("boom"), Status("Error: boom")},
		p.Classify(mustParse(t, p, `{"type":"error","message":"boom"}`)))
}

func TestAggregate(t *testing.T) {
	claude := newClaude(Options{})
	gemini := newGemini(Options{})

	assert.Equal(t, "", claude.Aggregate(nil))
	assert.Equal(t, "b", claude.Aggregate([]string{"a", "b"}))
	assert.Equal(t, "ab", gemini.Aggregate([]string{"a", "b"}))

	overridden := newClaude(Options{Aggregate: AggregateConcat})
	assert.Equal(t, "ab", overridden.Aggregate([]string{"a", "b"}))
}

func TestParseAggregation(t *testing.T) {
	got, err := ParseAggregation("Concat")
	require.NoError(t, err)
	assert.Equal(t, AggregateConcat, got)

	got, err = ParseAggregation("")
	require.NoError(t, err)
	assert.Equal(t, AggregateDefault, got)

	_, err = ParseAggregation("first")
	assert.Error(t, err)
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistry(map[string]Options{"codex": {Path: "/opt/codex", DisplayName: "Codex CLI"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"claude", "codex", "gemini"}, reg.Names())

	p, err := reg.Get("codex")
	require.NoError(t, err)
	assert.Equal(t, "Codex CLI", p.DisplayName())
	assert.Equal(t, "/opt/codex", p.BuildCommand("x", "m", "")[0])

	_, err = reg.Get("cursor")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = NewRegistry(map[string]Options{"cursor": {}})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestClaude_ClearSession(t *testing.T) {
	home := t.TempDir()
	work := t.TempDir()

	p := newClaude(Options{})
	p.home = home

	dir, err := p.projectDir(work)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, name := range []string{"a.jsonl", "b.jsonl", "keep.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0o644))
	}

	assert.Equal(t, "2 session files deleted", p.ClearSession("", work))
	assert.FileExists(t, filepath.Join(dir, "keep.txt"))
	assert.Equal(t, "0 session files deleted", p.ClearSession("", work))
}

func TestBaseClearSession(t *testing.T) {
	p := newGemini(Options{})
	assert.Equal(t, "session cleared", p.ClearSession("s", t.TempDir()))
	assert.Equal(t, "no session", p.ClearSession("", t.TempDir()))
}

func TestToolStatusTruncation(t *testing.T) {
	long := "echo 0123456789012345678901234567890123456789012345678901234567890"
	got := claudeToolStatus("Bash", Record{"command": long})
	assert.Equal(t, "Running "+long[:50]+"...", got)
	assert.Equal(t, "Using Frobnicate...", claudeToolStatus("Frobnicate", Record{}))
}
