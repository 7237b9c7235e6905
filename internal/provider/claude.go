// ABOUTME: Claude Code CLI provider using --output-format stream-json
// ABOUTME: Emits status for tool_use blocks, responses for text and result events

package provider

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const longLineLimit = 10 * 1024 * 1024

type claude struct {
	base
	// home overrides the user home directory when locating session files.
	home string
}

func newClaude(opts Options) *claude {
	return &claude{base: newBase("claude", opts, AggregateLast)}
}

func (c *claude) BuildCommand(prompt, model, sessionID string) []string {
	args := []string{c.path, "-p"}
	if sessionID != "" {
		args = append(args, "--resume", sessionID)
	} else {
		args = append(args, "--continue")
	}
	return append(args,
		"--output-format", "stream-json",
		"--verbose",
		"--dangerously-skip-permissions",
		"--model", model,
		prompt,
	)
}

func (c *claude) BufferLimit() int { return longLineLimit }

func (c *claude) Classify(rec Record) []Event {
	var events []Event
	switch rec.Type() {
	case "system":
		if rec.String("subtype") == "init" {
			if id := rec.String("session_id"); id != "" {
				events = append(events, Session(id))
			}
		}
	case "assistant":
		for _, block := range rec.Object("message").Objects("content") {
			switch block.Type() {
			case "tool_use":
				events = append(events, Status(claudeToolStatus(block.String("name"), block.Object("input"))))
			case "text":
				if text := block.String("text"); text != "" {
					events = append(events, Response(text))
				}
			}
		}
	case "result":
		text := rec.String("result")
		if rec.Bool("is_error") {
			if text == "" {
				text = rec.String("subtype")
			}
			if text != "" {
				events = append(events, Error(text))
			}
		} else if text != "" {
			events = append(events, Response(text))
		}
	case "error":
		if msg := rec.String("message"); msg != "" {
			events = append(events, Error(msg))
		}
	}
	return events
}

// ClearSession removes the transcript files Claude keeps for the working
// directory, which also resets what --continue would pick up.
func (c *claude) ClearSession(_ string, workDir string) string {
	dir, err := c.projectDir(workDir)
	if err != nil {
		return fmt.Sprintf("could not locate session files: %v", err)
	}
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl"))
	if err != nil {
		return fmt.Sprintf("could not list session files: %v", err)
	}
	removed := 0
	var failed int
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			failed++
			continue
		}
		removed++
	}
	summary := fmt.Sprintf("%d session %s deleted", removed, plural(removed, "file", "files"))
	if failed > 0 {
		summary += fmt.Sprintf(", %d failed", failed)
	}
	return summary
}

// projectDir mirrors how Claude names per-project session directories: the
// absolute working directory with every '/' replaced by '-'.
func (c *claude) projectDir(workDir string) (string, error) {
	abs, err := filepath.Abs(workDir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	home := c.home
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return "", err
		}
	}
	mangled := strings.ReplaceAll(abs, "/", "-")
	return filepath.Join(home, ".claude", "projects", mangled), nil
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
