package service

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/scango-office/gatepass/server/internal/gatepass/store"
)

type PrunerConfig struct {
	// RetentionDays is how many days of heartbeat history to keep.
	// 0 keeps everything and Start is a no-op.
	RetentionDays int

	// IntervalHours is how often the pruner runs. Defaults to 6.
	IntervalHours int

	// Now overrides the clock in tests.
	Now func() time.Time
}

// HeartbeatPruner trims gate heartbeat history on a timer. Only heartbeats are
// removed; the access ledger and the gate snapshot columns stay.
type HeartbeatPruner struct {
	store     store.HeartbeatStore
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewHeartbeatPruner(s store.HeartbeatStore, cfg PrunerConfig, logger *slog.Logger) *HeartbeatPruner {
	if cfg.IntervalHours <= 0 {
		cfg.IntervalHours = 6
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HeartbeatPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  time.Duration(cfg.IntervalHours) * time.Hour,
		now:       cfg.Now,
		logger:    logger.With("component", "heartbeat_pruner"),
	}
}

// Start prunes once in the background and then every interval until ctx is
// cancelled or Stop is called. Calling Start twice is a no-op.
func (p *HeartbeatPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("disabled", "retention_days", 0)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			p.runOnce(ctx)
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	p.logger.Info("started", "retention", p.retention.String(), "interval", p.interval.String())
}

// Stop cancels the loop and waits for an in-flight prune. Safe to call more
// than once, or without Start.
func (p *HeartbeatPruner) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// PruneOnce deletes heartbeats older than the retention window and returns
// what was removed per gate.
func (p *HeartbeatPruner) PruneOnce(ctx context.Context) (store.PruneCounts, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	return p.store.PruneOlderThan(ctx, cutoff)
}

func (p *HeartbeatPruner) runOnce(ctx context.Context) {
	counts, err := p.PruneOnce(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Error("prune failed", "error", err)
		}
		return
	}
	if len(counts) == 0 {
		return
	}

	gates := make([]string, 0, len(counts))
	for id := range counts {
		gates = append(gates, id)
	}
	sort.Strings(gates)
	for _, id := range gates {
		p.logger.Debug("pruned gate heartbeats", "gate_id", id, "deleted", counts[id])
	}
	p.logger.Info("pruned", "deleted", counts.Total(), "gates", len(gates))
}
