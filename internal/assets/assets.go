// Package assets embeds the operator's system prompt and installs it as the
// convention file each agent CLI reads from its working directory.
package assets

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

//go:embed system_prompt.md
var systemPrompt string

// PromptFiles are the per-agent convention files: Claude Code reads
// CLAUDE.md, Codex reads AGENTS.md and Gemini CLI reads GEMINI.md.
var PromptFiles = []string{"CLAUDE.md", "AGENTS.md", "GEMINI.md"}

// SystemPrompt returns the embedded prompt text.
func SystemPrompt() string {
	return systemPrompt
}

// InstallPrompts writes the system prompt to each convention file in dir
// that does not exist yet. Existing files are never touched. It returns the
// names written; failures are logged and joined into the returned error.
func InstallPrompts(dir string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var written []string
	var errs []error
	for _, name := range PromptFiles {
		target := filepath.Join(dir, name)
		if _, err := os.Stat(target); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("could not check prompt file", "file", target, "error", err)
			errs = append(errs, err)
			continue
		}

		// O_EXCL keeps a file created concurrently by the user.
		f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			logger.Warn("could not write prompt file", "file", target, "error", err)
			errs = append(errs, fmt.Errorf("writing %s: %w", name, err))
			continue
		}
		_, werr := f.WriteString(systemPrompt)
		cerr := f.Close()
		if err := errors.Join(werr, cerr); err != nil {
			logger.Warn("could not write prompt file", "file", target, "error", err)
			errs = append(errs, fmt.Errorf("writing %s: %w", name, err))
			continue
		}
		logger.Info("wrote system prompt", "file", name, "dir", dir)
		written = append(written, name)
	}
	return written, errors.Join(errs...)
}
