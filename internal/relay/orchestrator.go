// ABOUTME: Request orchestrator: one prompt, one agent subprocess, one delivered answer
// ABOUTME: Enforces one in-flight request per conversation by rejection, never queueing

package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/2389/coven-operator/internal/provider"
	"github.com/2389/coven-operator/internal/state"
	"github.com/2389/coven-operator/internal/store"
	"github.com/2389/coven-operator/internal/supervisor"
)

var (
	// ErrBusy is returned when the conversation already has a request in flight.
	ErrBusy = errors.New("conversation busy")
	// ErrStopped is the cancellation cause of a user-requested stop.
	ErrStopped = errors.New("request stopped")
)

// BusyMessage is sent when a prompt arrives while another is running.
const BusyMessage = "A request is already running. Use !stop to cancel it."

const (
	DefaultMessageLimit = 4096
	DefaultTickInterval = time.Second
	DefaultEditTimeout  = 5 * time.Second

	initialStatus   = "Working..."
	noResponseText  = "(No response)"
	errorTextLimit  = 4000
	promptLogLength = 80
)

// Request is one inbound prompt.
type Request struct {
	Conversation string
	Sender       string
	Prompt       string
}

// Options configures an Orchestrator.
type Options struct {
	Runtime    *state.Runtime
	Providers  *provider.Registry
	Supervisor *supervisor.Supervisor

	// MessageLimit is the transport's maximum message size in bytes.
	MessageLimit int
	TickInterval time.Duration
	EditTimeout  time.Duration

	// Ledger records prompts and outcomes; nil disables recording.
	Ledger   store.Store
	Observer Observer
	Logger   *slog.Logger
}

// Orchestrator drives agent requests for every conversation.
type Orchestrator struct {
	runtime      *state.Runtime
	providers    *provider.Registry
	supervisor   *supervisor.Supervisor
	messageLimit int
	tickInterval time.Duration
	editTimeout  time.Duration
	ledger       store.Store
	observer     Observer
	logger       *slog.Logger
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = DefaultMessageLimit
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.EditTimeout <= 0 {
		opts.EditTimeout = DefaultEditTimeout
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{
		runtime:      opts.Runtime,
		providers:    opts.Providers,
		supervisor:   opts.Supervisor,
		messageLimit: opts.MessageLimit,
		tickInterval: opts.TickInterval,
		editTimeout:  opts.EditTimeout,
		ledger:       opts.Ledger,
		observer:     opts.Observer,
		logger:       opts.Logger.With("component", "relay"),
	}
}

// turn is what one agent run produced.
type turn struct {
	parts    []string
	errText  string
	err      error
	exitCode int
}

// Handle runs req to completion and delivers the outcome through t. It
// returns ErrBusy when the conversation already has a request in flight and
// the cancellation cause when the request was stopped. Agent-reported errors
// are delivered to the user and do not produce a returned error.
func (o *Orchestrator) Handle(ctx context.Context, req Request, t Transport) error {
	logger := o.logger.With("conversation", req.Conversation)

	lock := o.runtime.Lock(req.Conversation)
	if !lock.TryLock() {
		o.observer.BusyRejected()
		logger.Info("rejecting request, conversation busy")
		if err := t.Send(ctx, BusyMessage); err != nil {
			logger.Warn("failed to send busy notice", "error", err)
		}
		return ErrBusy
	}
	defer lock.Unlock()

	name := o.runtime.ActiveProvider(req.Conversation)
	p, err := o.providers.Get(name)
	if err != nil {
		return fmt.Errorf("resolving provider: %w", err)
	}
	model := o.runtime.ActiveModel(req.Conversation, name)
	sessionID, _ := o.runtime.SessionID(req.Conversation, name)

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	run := &state.Running{
		RequestID: uuid.NewString(),
		Provider:  name,
		StartedAt: time.Now(),
		Cancel:    cancel,
	}
	o.runtime.SetRunning(req.Conversation, run)
	defer o.runtime.ClearRunning(req.Conversation, run)

	logger = logger.With("request_id", run.RequestID, "provider", name, "model", model)
	logger.Info("handling request", "prompt", Truncate(req.Prompt, promptLogLength), "resume", sessionID != "")
	o.observer.RequestStarted(name)
	o.record(ctx, logger, run, req, model, store.EventDirectionInbound, store.EventTypeMessage, req.Prompt, 0)

	label := p.DisplayName() + "/" + model
	handle, err := t.SendStatus(ctx, fmt.Sprintf("[%s 0s] %s", label, initialStatus))
	if err != nil {
		logger.Warn("failed to send status indicator", "error", err)
	}
	tk := startTicker(ctx, t, handle, label, o.tickInterval, o.editTimeout, logger)
	defer tk.stop()

	result := o.drive(runCtx, p, req, model, sessionID, run, tk)
	tk.stop()
	elapsed := tk.seconds()
	prefix := fmt.Sprintf("[%s %ds]", label, elapsed)

	var outcome Outcome
	switch {
	case result.err != nil && runCtx.Err() != nil && errors.Is(result.err, context.Cause(runCtx)):
		outcome = OutcomeStopped
		cause := context.Cause(runCtx)
		logger.Info("request stopped", "elapsed", elapsed, "cause", cause)
		o.finishStopped(ctx, logger, t, handle, label)
		o.record(ctx, logger, run, req, model, store.EventDirectionOutbound, store.EventTypeStopped, "stopped", elapsed)
		o.observer.RequestFinished(name, outcome, time.Since(run.StartedAt))
		return cause

	case result.err != nil:
		outcome = OutcomeFailed
		logger.Error("request failed", "error", result.err, "elapsed", elapsed)
		o.finishFailed(ctx, logger, t, handle, prefix, result.err.Error())
		o.record(ctx, logger, run, req, model, store.EventDirectionOutbound, store.EventTypeError, result.err.Error(), elapsed)

	default:
		o.deleteStatus(ctx, logger, t, handle)
		text := p.Aggregate(result.parts)
		switch {
		case text != "":
			outcome = OutcomeResponse
			logger.Info("delivering response", "chars", len(text), "elapsed", elapsed, "exit_code", result.exitCode)
			o.deliver(ctx, logger, t, prefix, text)
			o.record(ctx, logger, run, req, model, store.EventDirectionOutbound, store.EventTypeMessage, text, elapsed)
		case result.errText != "":
			outcome = OutcomeError
			logger.Warn("agent reported error", "error", result.errText, "elapsed", elapsed, "exit_code", result.exitCode)
			o.deliver(ctx, logger, t, prefix, "Error: "+Truncate(result.errText, errorTextLimit))
			o.record(ctx, logger, run, req, model, store.EventDirectionOutbound, store.EventTypeError, result.errText, elapsed)
		default:
			outcome = OutcomeEmpty
			logger.Warn("empty response", "elapsed", elapsed, "exit_code", result.exitCode)
			o.deliver(ctx, logger, t, prefix, noResponseText)
			o.record(ctx, logger, run, req, model, store.EventDirectionOutbound, store.EventTypeEmpty, noResponseText, elapsed)
		}
	}

	o.observer.RequestFinished(name, outcome, time.Since(run.StartedAt))
	return nil
}

// drive spawns the agent and consumes its events.
func (o *Orchestrator) drive(ctx context.Context, p provider.Provider, req Request, model, sessionID string, run *state.Running, tk *ticker) turn {
	proc, err := o.supervisor.Start(ctx, p, supervisor.Request{
		Prompt:    req.Prompt,
		Model:     model,
		SessionID: sessionID,
		OnSession: func(id string) {
			o.runtime.SetSessionID(req.Conversation, p.Name(), id)
			o.observer.SessionCaptured(p.Name())
		},
	})
	if err != nil {
		return turn{err: err, exitCode: -1}
	}
	run.Attach(proc)

	var result turn
	for ev := range proc.Events() {
		switch ev.Kind {
		case provider.KindStatus:
			tk.setStatus(ev.Text)
		case provider.KindResponse:
			result.parts = append(result.parts, ev.Text)
		case provider.KindError:
			if result.errText == "" {
				result.errText = ev.Text
			} else {
				o.logger.Debug("additional agent error", "error", ev.Text)
			}
		}
	}
	result.err = proc.Err()
	result.exitCode = proc.ExitCode()
	o.observer.ProcessExited(p.Name(), result.exitCode)
	return result
}

// Stop cancels the conversation's running request and terminates its
// process. It reports whether anything was running.
func (o *Orchestrator) Stop(conversation string) (bool, error) {
	run, ok := o.runtime.Running(conversation)
	if !ok {
		return false, nil
	}
	o.logger.Info("stopping request", "conversation", conversation, "request_id", run.RequestID)
	run.Cancel(ErrStopped)
	if proc := run.Process(); proc != nil {
		if err := proc.Stop(); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Running reports whether the conversation has a request in flight.
func (o *Orchestrator) Running(conversation string) bool {
	_, ok := o.runtime.Running(conversation)
	return ok
}

func (o *Orchestrator) finishStopped(ctx context.Context, logger *slog.Logger, t Transport, h StatusHandle, label string) {
	text := fmt.Sprintf("[%s] Stopped.", label)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.editTimeout)
	defer cancel()
	if h == "" {
		if err := t.Send(ctx, text); err != nil {
			logger.Debug("failed to send stop notice", "error", err)
		}
		return
	}
	if err := t.EditStatus(ctx, h, text); err != nil {
		logger.Debug("failed to mark status stopped", "error", err)
	}
}

func (o *Orchestrator) finishFailed(ctx context.Context, logger *slog.Logger, t Transport, h StatusHandle, prefix, errText string) {
	if h != "" {
		err := t.EditStatus(ctx, h, prefix+" Error: "+Truncate(errText, errorTextLimit))
		if err == nil {
			return
		}
		logger.Warn("failed to edit status with error, sending instead", "error", err)
	}
	for _, chunk := range Split(prefix+" Error: "+errText, o.messageLimit) {
		if err := t.Send(ctx, chunk); err != nil {
			logger.Error("failed to send error message", "error", err)
			return
		}
	}
}

func (o *Orchestrator) deleteStatus(ctx context.Context, logger *slog.Logger, t Transport, h StatusHandle) {
	if h == "" {
		return
	}
	if err := t.DeleteStatus(ctx, h); err != nil {
		logger.Warn("failed to delete status indicator", "error", err)
	}
}

// deliver sends text in chunks that fit the message limit once prefixed.
func (o *Orchestrator) deliver(ctx context.Context, logger *slog.Logger, t Transport, prefix, text string) {
	limit := max(o.messageLimit-len(prefix)-1, 1)
	for _, chunk := range Split(text, limit) {
		if err := t.Send(ctx, prefix+" "+chunk); err != nil {
			logger.Error("failed to deliver message", "error", err)
			return
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, logger *slog.Logger, run *state.Running, req Request, model string, dir store.EventDirection, typ store.EventType, text string, elapsed int) {
	if o.ledger == nil {
		return
	}
	author := run.Provider
	if dir == store.EventDirectionInbound {
		author = req.Sender
	}
	event := &store.LedgerEvent{
		ID:              uuid.NewString(),
		RequestID:       run.RequestID,
		ConversationKey: req.Conversation,
		Direction:       dir,
		Author:          author,
		Provider:        run.Provider,
		Model:           model,
		Timestamp:       time.Now(),
		Type:            typ,
		Text:            text,
		ElapsedSeconds:  elapsed,
	}
	if err := o.ledger.SaveEvent(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("failed to record ledger event", "error", err)
	}
}
