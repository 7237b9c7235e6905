// ABOUTME: Scheduled ledger retention using robfig/cron
// ABOUTME: Deletes ledger rows older than the configured retention window

package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// pruneTimeout bounds a single scheduled prune.
const pruneTimeout = time.Minute

// Pruner periodically removes ledger events older than a retention window.
type Pruner struct {
	store     Store
	retention time.Duration
	cron      *cron.Cron
	logger    *slog.Logger
	now       func() time.Time
}

// NewPruner schedules pruning with a standard cron expression or descriptor
// such as "@daily". Call Start to begin.
func NewPruner(s Store, retention time.Duration, schedule string, logger *slog.Logger) (*Pruner, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be positive, got %s", retention)
	}
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pruner{
		store:     s,
		retention: retention,
		cron:      cron.New(),
		logger:    logger.With("component", "ledger-pruner"),
		now:       time.Now,
	}
	if _, err := p.cron.AddFunc(schedule, p.run); err != nil {
		return nil, fmt.Errorf("parsing prune schedule %q: %w", schedule, err)
	}
	return p, nil
}

// Start runs the schedule in the background.
func (p *Pruner) Start() {
	p.logger.Info("ledger pruning scheduled", "retention", p.retention)
	p.cron.Start()
}

// Stop halts the schedule and waits for a running prune to finish.
func (p *Pruner) Stop() {
	<-p.cron.Stop().Done()
}

// PruneNow deletes every event older than the retention window.
func (p *Pruner) PruneNow(ctx context.Context) (int64, error) {
	return p.store.PruneBefore(ctx, p.now().Add(-p.retention))
}

func (p *Pruner) run() {
	ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
	defer cancel()
	n, err := p.PruneNow(ctx)
	if err != nil {
		p.logger.Error("pruning ledger", "error", err)
		return
	}
	p.logger.Debug("ledger pruned", "removed", n)
}
