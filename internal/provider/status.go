// ABOUTME: Tool-use to human status text projections used by the classifiers
// ABOUTME: Purely cosmetic; templates convey which action the agent is taking

package provider

import (
	"path/filepath"
	"strings"
)

const (
	commandPreviewLen = 50
	urlPreviewLen     = 40
	thoughtPreviewLen = 40
)

// shorten truncates s to n runes, appending "..." when truncated.
func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// clip truncates s to n runes without a marker.
func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func baseName(path, fallback string) string {
	if path == "" {
		return fallback
	}
	return filepath.Base(path)
}

func runningStatus(cmd string) string {
	return "Running " + shorten(cmd, commandPreviewLen)
}

// claudeToolStatus describes a Claude Code tool_use block.
func claudeToolStatus(name string, input Record) string {
	switch name {
	case "Read":
		return "Reading " + baseName(input.String("file_path"), "file") + "..."
	case "Write":
		return "Writing " + baseName(input.String("file_path"), "file") + "..."
	case "Edit", "MultiEdit":
		return "Editing " + baseName(input.String("file_path"), "file") + "..."
	case "Bash":
		return runningStatus(input.String("command"))
	case "Glob":
		return "Finding " + input.String("pattern") + "..."
	case "Grep":
		return "Searching for " + input.String("pattern") + "..."
	case "WebFetch":
		return "Fetching " + clip(input.String("url"), urlPreviewLen) + "..."
	case "WebSearch":
		return "Searching: " + input.String("query") + "..."
	case "Task":
		return "Running subagent..."
	default:
		return "Using " + name + "..."
	}
}

// geminiToolStatus describes a Gemini CLI tool_use event.
func geminiToolStatus(name string, params Record) string {
	switch name {
	case "read_file":
		return "Reading " + baseName(params.String("file_path"), "file") + "..."
	case "read_many_files":
		return "Reading files..."
	case "write_file":
		return "Writing " + baseName(params.String("file_path"), "file") + "..."
	case "replace":
		return "Editing " + baseName(params.String("file_path"), "file") + "..."
	case "run_shell_command":
		return runningStatus(params.String("command"))
	case "list_directory":
		dir := params.String("dir_path")
		if dir == "" {
			dir = "."
		}
		return "Listing " + dir + "..."
	case "glob", "find_files":
		return "Finding " + params.String("pattern") + "..."
	case "web_fetch":
		return "Fetching " + clip(params.String("url"), urlPreviewLen) + "..."
	case "google_web_search":
		return "Searching: " + params.String("query") + "..."
	default:
		return "Using " + name + "..."
	}
}

// codexItemStatus describes a Codex item event, or returns "" when the event
// carries nothing worth showing.
func codexItemStatus(eventType string, item Record) string {
	itemType := item.Type()
	switch eventType {
	case "item.started":
		switch itemType {
		case "command_execution":
			cmd := item.String("command")
			if _, after, found := strings.Cut(cmd, "-lc "); found {
				cmd = strings.Trim(after, `'"`)
			}
			return runningStatus(cmd)
		case "reasoning":
			return "Thinking..."
		case "file_change", "file_changes":
			return "Editing files..."
		case "web_search", "web_searches":
			return "Searching the web..."
		case "mcp_tool_call", "mcp_tool_calls":
			return "Using tool..."
		}
	case "item.completed":
		if itemType == "reasoning" {
			text := strings.TrimSpace(strings.Trim(item.String("text"), "*"))
			if text != "" {
				return shorten(text, thoughtPreviewLen)
			}
		}
	}
	return ""
}
