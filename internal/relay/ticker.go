// ABOUTME: Periodic rewrite of the live status indicator while an agent runs
// ABOUTME: Counts ticks for the elapsed display and never blocks final delivery

package relay

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

type ticker struct {
	transport   Transport
	handle      StatusHandle
	label       string
	interval    time.Duration
	editTimeout time.Duration
	logger      *slog.Logger

	elapsed atomic.Int64
	status  atomic.Value // string

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func startTicker(ctx context.Context, t Transport, h StatusHandle, label string, interval, editTimeout time.Duration, logger *slog.Logger) *ticker {
	ctx, cancel := context.WithCancel(ctx)
	tk := &ticker{
		transport:   t,
		handle:      h,
		label:       label,
		interval:    interval,
		editTimeout: editTimeout,
		logger:      logger,
		cancel:      cancel,
		done:        make(chan struct{}),
	}
	tk.status.Store(initialStatus)
	go tk.run(ctx)
	return tk
}

func (tk *ticker) run(ctx context.Context) {
	defer close(tk.done)
	t := time.NewTicker(tk.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		tk.elapsed.Add(1)
		if tk.handle == "" {
			continue
		}

		text := fmt.Sprintf("[%s %ds] %s", tk.label, tk.seconds(), tk.status.Load().(string))
		editCtx, cancel := context.WithTimeout(ctx, tk.editTimeout)
		err := tk.transport.EditStatus(editCtx, tk.handle, text)
		cancel()
		if err != nil && ctx.Err() == nil {
			tk.logger.Debug("status edit failed", "error", err)
		}
	}
}

func (tk *ticker) setStatus(text string) {
	if text != "" {
		tk.status.Store(text)
	}
}

// seconds is the tick count scaled by the interval, in whole seconds.
func (tk *ticker) seconds() int {
	return int(time.Duration(tk.elapsed.Load()) * tk.interval / time.Second)
}

// stop cancels the ticker and waits for any in-flight edit to return, so no
// edit lands after the indicator is finalised.
func (tk *ticker) stop() {
	tk.stopOnce.Do(func() {
		tk.cancel()
		<-tk.done
	})
}
