// ABOUTME: Transport-agnostic dispatcher for !-prefixed chat commands
// ABOUTME: Switches providers and models, stops requests and clears sessions

package command

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/2389/coven-operator/internal/provider"
	"github.com/2389/coven-operator/internal/state"
	"github.com/2389/coven-operator/internal/store"
)

// DefaultPrefix marks a message as a command.
const DefaultPrefix = "!"

const historyLimit = 10

// Stopper stops a conversation's running request.
type Stopper interface {
	Stop(conversation string) (bool, error)
}

// Options configures a Dispatcher.
type Options struct {
	Prefix    string
	Runtime   *state.Runtime
	Providers *provider.Registry
	Stopper   Stopper
	// Ledger backs !history; nil reports the ledger as disabled.
	Ledger  store.Store
	WorkDir string
	// Restart is invoked by !restart; nil reports restart as unavailable.
	Restart func()
	Logger  *slog.Logger
}

// Dispatcher interprets chat commands.
type Dispatcher struct {
	prefix    string
	runtime   *state.Runtime
	providers *provider.Registry
	stopper   Stopper
	ledger    store.Store
	workDir   string
	restart   func()
	logger    *slog.Logger
}

// New creates a Dispatcher.
func New(opts Options) *Dispatcher {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		prefix:    opts.Prefix,
		runtime:   opts.Runtime,
		providers: opts.Providers,
		stopper:   opts.Stopper,
		ledger:    opts.Ledger,
		workDir:   opts.WorkDir,
		restart:   opts.Restart,
		logger:    opts.Logger.With("component", "command"),
	}
}

// IsCommand reports whether text is addressed to the dispatcher.
func (d *Dispatcher) IsCommand(text string) bool {
	return strings.HasPrefix(strings.TrimSpace(text), d.prefix)
}

// Dispatch runs the command in text for conversation and returns the reply.
// The boolean is false when text is not a command and should go to an agent.
func (d *Dispatcher) Dispatch(ctx context.Context, conversation, text string) (string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, d.prefix) {
		return "", false
	}

	fields := strings.Fields(strings.TrimPrefix(text, d.prefix))
	if len(fields) == 0 {
		return d.unknown(), true
	}
	name, args := strings.ToLower(fields[0]), fields[1:]
	logger := d.logger.With("conversation", conversation, "command", name)
	logger.Debug("dispatching command")

	switch name {
	case "stop":
		return d.stop(logger, conversation), true
	case "use":
		return d.use(logger, conversation, args), true
	case "status":
		p := d.runtime.ActiveProvider(conversation)
		return fmt.Sprintf("Provider: %s\nModel: %s", p, d.runtime.ActiveModel(conversation, p)), true
	case "models":
		return d.models(conversation), true
	case "model":
		return d.model(logger, conversation, args), true
	case "clear":
		return d.clear(logger, conversation, args), true
	case "history":
		return d.history(ctx, logger, conversation), true
	case "restart":
		if d.restart == nil {
			return "Restart is not available.", true
		}
		logger.Info("restart requested")
		d.restart()
		return "Restarting...", true
	case "help":
		return d.help(), true
	}

	if d.providers.Has(name) && len(args) == 0 {
		return d.use(logger, conversation, []string{name}), true
	}
	return d.unknown(), true
}

func (d *Dispatcher) stop(logger *slog.Logger, conversation string) string {
	logger.Info("stop requested")
	stopped, err := d.stopper.Stop(conversation)
	switch {
	case !stopped:
		return "No process running."
	case err != nil:
		logger.Warn("error stopping process", "error", err)
		return fmt.Sprintf("Error stopping: %v", err)
	default:
		return "Process stopped."
	}
}

func (d *Dispatcher) use(logger *slog.Logger, conversation string, args []string) string {
	names := d.providers.Names()
	if len(args) != 1 || !slices.Contains(names, args[0]) {
		return fmt.Sprintf("Usage: %suse %s", d.prefix, strings.Join(names, "|"))
	}
	old := d.runtime.ActiveProvider(conversation)
	d.runtime.SetActiveProvider(conversation, args[0])
	logger.Info("provider switched", "from", old, "to", args[0])
	return fmt.Sprintf("Provider set to %s.", args[0])
}

func (d *Dispatcher) models(conversation string) string {
	p := d.runtime.ActiveProvider(conversation)
	models := d.runtime.Models(p)
	if len(models) == 0 {
		return fmt.Sprintf("No models configured for %s.", p)
	}

	active := d.runtime.ActiveModel(conversation, p)
	lines := []string{fmt.Sprintf("Models for %s:", p)}
	for i, m := range models {
		marker := ""
		if m == active {
			marker = " (active)"
		}
		lines = append(lines, fmt.Sprintf("  %d. %s%s", i+1, m, marker))
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) model(logger *slog.Logger, conversation string, args []string) string {
	hint := fmt.Sprintf("Use %smodels to see options.", d.prefix)
	if len(args) == 0 {
		return fmt.Sprintf("Usage: %smodel <index|name>\n%s", d.prefix, hint)
	}

	p := d.runtime.ActiveProvider(conversation)
	models := d.runtime.Models(p)
	choice := strings.Join(args, " ")

	var selected string
	if idx, err := strconv.Atoi(choice); err == nil {
		if idx < 1 || idx > len(models) {
			return fmt.Sprintf("Invalid index. Use 1-%d.\n%s", len(models), hint)
		}
		selected = models[idx-1]
	} else if slices.Contains(models, choice) {
		selected = choice
	} else {
		return fmt.Sprintf("Unknown model '%s'.\n%s", choice, hint)
	}

	old := d.runtime.ActiveModel(conversation, p)
	d.runtime.SetActiveModel(conversation, p, selected)
	logger.Info("model switched", "provider", p, "from", old, "to", selected)
	return fmt.Sprintf("%s model set to %s.", p, selected)
}

func (d *Dispatcher) clear(logger *slog.Logger, conversation string, args []string) string {
	all := len(args) == 1 && strings.EqualFold(args[0], "all")
	if len(args) > 0 && !all {
		return fmt.Sprintf("Usage: %sclear [all]", d.prefix)
	}

	active := d.runtime.ActiveProvider(conversation)
	var lines []string
	for _, name := range d.providers.Names() {
		if !all && name != active {
			continue
		}
		p, err := d.providers.Get(name)
		if err != nil {
			continue
		}
		sessionID, _ := d.runtime.ClearSessionID(conversation, name)
		summary := p.ClearSession(sessionID, d.workDir)
		logger.Info("cleared session", "provider", name, "summary", summary)
		lines = append(lines, fmt.Sprintf("%s: %s", p.DisplayName(), summary))
	}

	msg := "Cleared current provider!"
	if all {
		msg = "Cleared all providers!"
	}
	return msg + "\n" + strings.Join(lines, "\n")
}

func (d *Dispatcher) history(ctx context.Context, logger *slog.Logger, conversation string) string {
	if d.ledger == nil {
		return "History is disabled."
	}
	events, err := d.ledger.ListRecentEvents(ctx, conversation, historyLimit)
	if err != nil {
		logger.Warn("failed to read history", "error", err)
		return fmt.Sprintf("Error reading history: %v", err)
	}
	if len(events) == 0 {
		return "No history yet."
	}
	return FormatHistory(events)
}

// FormatHistory renders ledger events one per line, oldest first.
func FormatHistory(events []*store.LedgerEvent) string {
	lines := make([]string, 0, len(events))
	for _, e := range events {
		arrow := "<"
		if e.Direction == store.EventDirectionInbound {
			arrow = ">"
		}
		text := strings.Join(strings.Fields(e.Text), " ")
		if r := []rune(text); len(r) > 80 {
			text = string(r[:80]) + "..."
		}
		lines = append(lines, fmt.Sprintf("%s %s %s/%s [%s] %s",
			e.Timestamp.Local().Format("01-02 15:04"), arrow, e.Provider, e.Model, e.Type, text))
	}
	return strings.Join(lines, "\n")
}

func (d *Dispatcher) help() string {
	p := d.prefix
	names := strings.Join(d.providers.Names(), "|")
	shortcuts := p + strings.Join(d.providers.Names(), "|"+p)
	return strings.Join([]string{
		p + "status - Show active provider & model",
		p + "use " + names + " - Switch provider",
		shortcuts + " - Shortcuts for " + p + "use",
		p + "models - List models for current provider",
		p + "model <index|name> - Switch model",
		p + "stop - Kill running process",
		p + "clear - Clear current provider session",
		p + "clear all - Clear all provider sessions",
		p + "history - Show recent requests",
		p + "restart - Restart the operator",
		p + "help - Show this message",
	}, "\n")
}

func (d *Dispatcher) unknown() string {
	return fmt.Sprintf("Unknown command. Try %shelp", d.prefix)
}
