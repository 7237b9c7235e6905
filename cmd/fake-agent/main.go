// ABOUTME: Scripted stand-in for the claude, codex and gemini CLIs used in end-to-end testing
// ABOUTME: Detects the dialect from its argv and prints matching stream-json events

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

// Point a provider's path at this binary, e.g. providers.claude.path: fake-agent.
// The prompt selects the script:
//
//	contains "error"    the agent reports a failure
//	contains "sleep"    the agent works for a minute (use !stop)
//	contains "markdown" the answer is formatted
//	anything else       the prompt is echoed back
func main() {
	inv := parseArgs(os.Args[1:])
	if inv.prompt == "" {
		fmt.Fprintln(os.Stderr, "fake-agent: no prompt given")
		os.Exit(2)
	}

	// Ignore SIGTERM when asked, to exercise the SIGKILL path.
	if os.Getenv("FAKE_AGENT_IGNORE_TERM") != "" {
		signal.Ignore(syscall.SIGTERM)
	}

	if err := run(os.Stdout, inv, 200*time.Millisecond); err != nil {
		fmt.Fprintf(os.Stderr, "fake-agent: %v\n", err)
		os.Exit(1)
	}
}

type dialect int

const (
	dialectClaude dialect = iota
	dialectCodex
	dialectGemini
)

// invocation is what the caller asked for.
type invocation struct {
	dialect   dialect
	prompt    string
	model     string
	sessionID string
}

// parseArgs understands the argv shapes the three real CLIs are invoked with.
func parseArgs(args []string) invocation {
	inv := invocation{dialect: dialectClaude}
	if len(args) > 0 && args[0] == "exec" {
		inv.dialect = dialectCodex
		args = args[1:]
		resume := len(args) > 0 && args[0] == "resume"
		if resume {
			args = args[1:]
		}
		var positional []string
		for i := 0; i < len(args); i++ {
			switch args[i] {
			case "-m":
				if i+1 < len(args) {
					inv.model = args[i+1]
					i++
				}
			case "--json", "--dangerously-bypass-approvals-and-sandbox":
			default:
				positional = append(positional, args[i])
			}
		}
		if resume && len(positional) > 1 {
			inv.sessionID = positional[0]
			positional = positional[1:]
		}
		if len(positional) > 0 {
			inv.prompt = positional[len(positional)-1]
		}
		return inv
	}

	for _, a := range args {
		if a == "--yolo" {
			inv.dialect = dialectGemini
		}
	}

	var positional []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-p":
			if inv.dialect == dialectGemini && i+1 < len(args) {
				inv.prompt = args[i+1]
				i++
			}
		case "-m", "--model":
			if i+1 < len(args) {
				inv.model = args[i+1]
				i++
			}
		case "--resume":
			if i+1 < len(args) {
				inv.sessionID = args[i+1]
				i++
			}
		case "--output-format":
			i++
		case "--continue", "--verbose", "--dangerously-skip-permissions", "--yolo":
		default:
			positional = append(positional, args[i])
		}
	}
	if inv.prompt == "" && len(positional) > 0 {
		inv.prompt = positional[len(positional)-1]
	}
	return inv
}

// run plays the script for inv, pausing step between events.
func run(w io.Writer, inv invocation, step time.Duration) error {
	enc := json.NewEncoder(w)
	emit := func(v map[string]any) error {
		time.Sleep(step)
		return enc.Encode(v)
	}

	session := inv.sessionID
	if session == "" {
		session = uuid.NewString()
	}
	answer := reply(inv.prompt)
	lower := strings.ToLower(inv.prompt)

	var script []map[string]any
	switch inv.dialect {
	case dialectCodex:
		script = codexScript(session, inv.prompt, answer, lower)
	case dialectGemini:
		script = geminiScript(session, inv.model, answer, lower)
	default:
		script = claudeScript(session, inv.model, answer, lower)
	}

	for i, ev := range script {
		if ev == nil {
			// A nil entry marks where the "sleep" script stalls.
			time.Sleep(time.Minute)
			continue
		}
		if i == 0 {
			if err := enc.Encode(ev); err != nil {
				return err
			}
			continue
		}
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func reply(prompt string) string {
	if strings.Contains(strings.ToLower(prompt), "markdown") {
		return "Here is a **markdown** response:\n\n- First item\n- Second item with `code`\n- Third item\n\n> This is a blockquote."
	}
	return fmt.Sprintf("Echo: %s", prompt)
}

func claudeScript(session, model, answer, lower string) []map[string]any {
	script := []map[string]any{
		{"type": "system", "subtype": "init", "session_id": session, "model": model},
		{"type": "assistant", "message": map[string]any{"content": []any{
			map[string]any{"type": "tool_use", "name": "Bash", "input": map[string]any{"command": "ls -la"}},
		}}},
	}
	if strings.Contains(lower, "sleep") {
		script = append(script, nil)
	}
	if strings.Contains(lower, "error") {
		return append(script, map[string]any{
			"type": "result", "subtype": "error_during_execution", "is_error": true,
			"result": "fake-agent was asked to fail", "session_id": session,
		})
	}
	return append(script,
		map[string]any{"type": "assistant", "message": map[string]any{"content": []any{
			map[string]any{"type": "text", "text": answer},
		}}},
		map[string]any{"type": "result", "subtype": "success", "result": answer, "session_id": session},
	)
}

func codexScript(session, prompt, answer, lower string) []map[string]any {
	script := []map[string]any{
		{"type": "thread.started", "thread_id": session},
		{"type": "turn.started"},
		{"type": "item.started", "item": map[string]any{"type": "command_execution", "command": "ls -la"}},
	}
	if strings.Contains(lower, "sleep") {
		script = append(script, nil)
	}
	if strings.Contains(lower, "error") {
		return append(script, map[string]any{"type": "turn.failed", "error": map[string]any{"message": "fake-agent was asked to fail"}})
	}
	return append(script,
		map[string]any{"type": "item.completed", "item": map[string]any{"type": "agent_message", "text": answer}},
		map[string]any{"type": "turn.completed", "usage": map[string]any{"input_tokens": len(prompt)}},
	)
}

func geminiScript(session, model, answer, lower string) []map[string]any {
	script := []map[string]any{
		{"type": "init", "session_id": session, "model": model},
		{"type": "tool_use", "tool_name": "run_shell_command", "parameters": map[string]any{"command": "ls -la"}},
	}
	if strings.Contains(lower, "sleep") {
		script = append(script, nil)
	}
	if strings.Contains(lower, "error") {
		return append(script, map[string]any{"type": "error", "message": "fake-agent was asked to fail"})
	}
	// Gemini streams the answer as deltas.
	half := len(answer) / 2
	for half > 0 && half < len(answer) && (answer[half]&0xC0) == 0x80 {
		half--
	}
	return append(script,
		map[string]any{"type": "message", "role": "assistant", "content": answer[:half], "delta": true},
		map[string]any{"type": "message", "role": "assistant", "content": answer[half:], "delta": true},
		map[string]any{"type": "result", "status": "success"},
	)
}
