// ABOUTME: Spawns agent CLI subprocesses and streams their classified output as events
// ABOUTME: Graceful teardown: SIGTERM to the process group, grace period, then SIGKILL

package supervisor

import (
	"bufio"
	"context"
	"errors"
	"iter"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/2389/coven-operator/internal/provider"
)

const (
	// DefaultGrace is how long a terminated child gets before SIGKILL.
	DefaultGrace = 500 * time.Millisecond

	defaultLineLimit  = 64 * 1024
	stderrPrefixLimit = 2000
	killWait          = 100 * time.Millisecond
	// pipeDrainDelay bounds how long Wait keeps copying stderr after exit
	// when an escaped grandchild still holds the pipe open.
	pipeDrainDelay = 2 * time.Second
)

// Options configures a Supervisor.
type Options struct {
	// WorkDir is the working directory for every spawned agent.
	WorkDir string
	// Grace is the delay between SIGTERM and SIGKILL. Defaults to DefaultGrace.
	Grace time.Duration
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Supervisor spawns agent subprocesses.
type Supervisor struct {
	workDir string
	grace   time.Duration
	logger  *slog.Logger
}

// New creates a Supervisor.
func New(opts Options) *Supervisor {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Supervisor{
		workDir: opts.WorkDir,
		grace:   opts.Grace,
		logger:  opts.Logger.With("component", "supervisor"),
	}
}

// WorkDir returns the directory agents run in.
func (s *Supervisor) WorkDir() string { return s.workDir }

// Request describes one agent invocation.
type Request struct {
	Prompt    string
	Model     string
	SessionID string
	// OnSession is called with every session id the agent reports, before
	// the corresponding event is yielded.
	OnSession func(sessionID string)
}

// Start spawns the provider's command for req. The returned Process must be
// drained with Events; cancelling ctx terminates the child.
func (s *Supervisor) Start(ctx context.Context, p provider.Provider, req Request) (*Process, error) {
	if ctx.Err() != nil {
		return nil, context.Cause(ctx)
	}

	argv := p.BuildCommand(req.Prompt, req.Model, req.SessionID)
	if len(argv) == 0 {
		return nil, &ProcessError{Message: "provider built an empty command"}
	}
	logger := s.logger.With("provider", p.Name())
	logger.Info("spawning agent", "argv", previewArgv(argv))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = s.workDir
	cmd.WaitDelay = pipeDrainDelay
	setProcAttr(cmd)

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &ProcessError{Message: "failed to create stdout pipe", Cause: err}
	}
	cmd.Stdout = stdoutW

	var stderr *prefixBuffer
	if p.MergeStderr() {
		cmd.Stderr = stdoutW
	} else {
		stderr = &prefixBuffer{limit: stderrPrefixLimit}
		cmd.Stderr = stderr
	}

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, &CLINotFoundError{Path: argv[0], Cause: err}
		}
		return nil, &ProcessError{Message: "failed to start agent process", Cause: err}
	}
	// The child holds its own copy of the write end; ours must go so EOF
	// arrives when the child exits.
	stdoutW.Close()

	proc := &Process{
		provider:  p,
		cmd:       cmd,
		stdout:    stdoutR,
		stderr:    stderr,
		onSession: req.OnSession,
		grace:     s.grace,
		logger:    logger.With("pid", cmd.Process.Pid),
		ctx:       ctx,
		exited:    make(chan struct{}),
	}
	go proc.wait()
	proc.releaseCancel = context.AfterFunc(ctx, func() {
		_ = proc.Stop()
	})

	proc.logger.Info("agent process started")
	return proc, nil
}

// Process is one running agent subprocess.
type Process struct {
	provider  provider.Provider
	cmd       *exec.Cmd
	stdout    *os.File
	stderr    *prefixBuffer
	onSession func(string)
	grace     time.Duration
	logger    *slog.Logger
	ctx       context.Context

	releaseCancel func() bool

	exited  chan struct{}
	waitErr error

	consumed  atomic.Bool
	stopping  atomic.Bool
	signalled atomic.Bool
	stopOnce sync.Once
	stopErr  error

	mu        sync.Mutex
	err       error
	cancelled bool
	records   int
}

// PID returns the child's process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Exited is closed once the child has been reaped.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// ExitCode returns the child's exit status, or -1 while it is running or
// when it was killed by a signal.
func (p *Process) ExitCode() int {
	select {
	case <-p.exited:
	default:
		return -1
	}
	if p.cmd.ProcessState == nil {
		return -1
	}
	return p.cmd.ProcessState.ExitCode()
}

// Events returns the lazy event sequence for this process. It can be ranged
// over once; the sequence ends when the child closes stdout. Breaking out of
// the loop early stops the child.
func (p *Process) Events() iter.Seq[provider.Event] {
	return func(yield func(provider.Event) bool) {
		if !p.consumed.CompareAndSwap(false, true) {
			p.setErr(ErrAlreadyConsumed)
			return
		}
		defer p.finish()

		limit := p.provider.BufferLimit()
		if limit <= 0 {
			limit = defaultLineLimit
		}
		scanner := bufio.NewScanner(p.stdout)
		scanner.Buffer(make([]byte, 0, min(limit, defaultLineLimit)), limit)

		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			rec, ok := p.provider.ParseLine(line)
			if !ok {
				p.logger.Debug("skipped line", "line", preview(line, 200))
				continue
			}
			p.records++
			p.logger.Debug("agent event", "n", p.records, "type", rec.Type())

			for _, ev := range p.provider.Classify(rec) {
				if ev.Kind == provider.KindSession && ev.SessionID != "" {
					p.logger.Info("new session", "session_id", ev.SessionID)
					if p.onSession != nil {
						p.onSession(ev.SessionID)
					}
				}
				if !yield(ev) {
					_ = p.Stop()
					return
				}
			}
		}

		if err := scanner.Err(); err != nil && !p.stopping.Load() {
			p.setErr(&ProcessError{Message: "reading agent output", Cause: err})
			_ = p.Stop()
		}
	}
}

// Err reports why the event sequence ended: nil after a normal completion,
// the context's cause when cancellation had to signal the child, or an I/O
// error. Cancelling after the child already exited leaves Err nil.
func (p *Process) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancelled {
		return context.Cause(p.ctx)
	}
	return p.err
}

// Stop terminates the child: SIGTERM to its process group, a grace period,
// then SIGKILL. It is safe to call more than once and from any goroutine.
func (p *Process) Stop() error {
	p.stopOnce.Do(func() {
		p.stopping.Store(true)
		p.stopErr = p.terminate()
	})
	return p.stopErr
}

func (p *Process) terminate() error {
	select {
	case <-p.exited:
		return nil
	default:
	}

	p.logger.Info("terminating agent process")
	p.signalled.Store(true)
	var errs []error
	if err := signalGroup(p.cmd.Process, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
		errs = append(errs, err)
	}

	select {
	case <-p.exited:
		return errors.Join(errs...)
	case <-time.After(p.grace):
	}

	p.logger.Warn("agent ignored SIGTERM, killing", "grace", p.grace)
	if err := signalGroup(p.cmd.Process, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		errs = append(errs, err)
		if killErr := p.cmd.Process.Kill(); killErr != nil && !errors.Is(killErr, os.ErrProcessDone) {
			errs = append(errs, killErr)
		}
	}

	select {
	case <-p.exited:
	case <-time.After(killWait):
	}
	// An escaped grandchild may still hold stdout; closing our end unblocks
	// the reader.
	p.stdout.Close()
	return errors.Join(errs...)
}

func (p *Process) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
}

func (p *Process) finish() {
	<-p.exited
	if p.releaseCancel != nil {
		p.releaseCancel()
	}
	p.stdout.Close()

	p.mu.Lock()
	// A child that exited on its own before Stop reached it completed normally.
	p.cancelled = p.ctx.Err() != nil && p.signalled.Load()
	p.mu.Unlock()

	code := p.ExitCode()
	p.logger.Info("agent process finished", "exit_code", code, "events", p.records)
	var exitErr *exec.ExitError
	if p.waitErr != nil && !errors.As(p.waitErr, &exitErr) {
		p.logger.Warn("waiting for agent process", "error", p.waitErr)
	}

	if code != 0 && p.stderr != nil {
		if text := strings.TrimSpace(p.stderr.String()); text != "" {
			p.logger.Error("agent stderr", "stderr", text)
		}
	}
}

func (p *Process) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err == nil {
		p.err = err
	}
}

// prefixBuffer keeps the first limit bytes written to it and discards the rest.
type prefixBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (b *prefixBuffer) Write(data []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - len(b.buf); room > 0 {
		b.buf = append(b.buf, data[:min(room, len(data))]...)
	}
	return len(data), nil
}

func (b *prefixBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return strings.ToValidUTF8(string(b.buf), "�")
}

func previewArgv(argv []string) string {
	shown := argv
	if len(shown) > 6 {
		shown = shown[:6]
	}
	out := strings.Join(shown, " ")
	if len(argv) > len(shown) {
		out += " ..."
	}
	return out
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
